package services

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/tgregoire/invgov-backend/models"
	"github.com/tgregoire/invgov-backend/shared"
)

// RequestInput carries the client-editable fields of an investment request.
type RequestInput struct {
	Title                 string          `json:"request_title"`
	AccountID             *string         `json:"account_id"`
	AccountName           *string         `json:"account_name"`
	InvestmentType        *string         `json:"investment_type"`
	RequestedAmount       decimal.Decimal `json:"requested_amount"`
	Quarter               *string         `json:"investment_quarter"`
	BusinessJustification *string         `json:"business_justification"`
	ExpectedOutcome       *string         `json:"expected_outcome"`
	RiskAssessment        *string         `json:"risk_assessment"`
	ExpectedROI           *string         `json:"expected_roi"`
	OpportunityLinkText   *string         `json:"sfdc_opportunity_link"`
	Theater               *string         `json:"theater"`
	IndustrySegment       *string         `json:"industry_segment"`
}

// RequestService composes the state machine, routing resolver, cache store
// and remote store adapter into the externally visible operations. Writes
// land in the cache first and replicate to the remote store asynchronously
// through the pending sync journal.
type RequestService struct {
	store    Store
	remote   RemoteStore
	routing  *RoutingResolver
	syncSvc  *CacheSyncService
	metrics  *shared.ServiceMetrics
	maxFlush int

	// recordLocks serializes writes per request ID so a provisional-ID
	// promotion and a concurrent transition cannot interleave.
	recordLocks sync.Map
}

// NewRequestService creates the orchestration layer
func NewRequestService(store Store, remote RemoteStore, routing *RoutingResolver, syncSvc *CacheSyncService, maxFlushAttempts int) *RequestService {
	if maxFlushAttempts <= 0 {
		maxFlushAttempts = 5
	}
	return &RequestService{
		store:    store,
		remote:   remote,
		routing:  routing,
		syncSvc:  syncSvc,
		metrics:  shared.NewServiceMetrics("request-service"),
		maxFlush: maxFlushAttempts,
	}
}

// Metrics exposes request counters for periodic summaries.
func (s *RequestService) Metrics() *shared.ServiceMetrics {
	return s.metrics
}

func (s *RequestService) lockRecord(id int64) func() {
	value, _ := s.recordLocks.LoadOrStore(id, &sync.Mutex{})
	mu := value.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// List returns the cached requests matching the filter.
func (s *RequestService) List(filter models.RequestFilter) ([]models.InvestmentRequest, error) {
	return s.store.ListRequests(filter)
}

// Get returns one request or NotFound.
func (s *RequestService) Get(id int64) (*models.InvestmentRequest, error) {
	req, err := s.store.GetRequest(id)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, shared.NewNotFound("request", id)
	}
	return req, nil
}

// History returns the reconstructed audit trail for one request.
func (s *RequestService) History(id int64) ([]models.AuditEvent, error) {
	req, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	return BuildHistory(req), nil
}

// ApprovalSteps resolves the approval chain for a request's creator and
// annotates each step with what the record has witnessed: stamped levels are
// approved, the level the request is waiting on is current, everything above
// stays pending.
func (s *RequestService) ApprovalSteps(id int64) ([]models.ApprovalStep, error) {
	req, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	chain, err := s.routing.ResolveApprovalChain(req.CreatedBy)
	if err != nil {
		return nil, err
	}
	awaiting := inFlight(req.Status)
	for i := range chain {
		if stamp := req.StampForLevel(chain[i].Order); stamp != nil && stamp.IsSet() {
			chain[i].Status = models.StepStatusApproved
			chain[i].ApprovedAt = stamp.ApprovedAt
			chain[i].Comments = stamp.Comments
			continue
		}
		if awaiting && chain[i].Order == req.CurrentApprovalLevel {
			chain[i].Status = models.StepStatusCurrent
		}
	}
	return chain, nil
}

// Summary aggregates portfolio counts and totals for the given filter and
// acting user.
func (s *RequestService) Summary(filter models.RequestFilter, username string) (*models.RequestSummary, error) {
	return s.store.Summary(filter, username)
}

func validateInput(input *RequestInput) error {
	if strings.TrimSpace(input.Title) == "" {
		return shared.NewServiceError(
			shared.ErrorCategoryValidation,
			"INVALID_REQUEST",
			"request_title is required",
			"request-service",
			"validate",
			false,
			nil,
		)
	}
	if input.RequestedAmount.IsNegative() {
		return shared.NewServiceError(
			shared.ErrorCategoryValidation,
			"INVALID_REQUEST",
			"requested_amount must not be negative",
			"request-service",
			"validate",
			false,
			nil,
		)
	}
	return nil
}

func applyInput(req *models.InvestmentRequest, input *RequestInput) {
	req.Title = input.Title
	req.AccountID = input.AccountID
	req.AccountName = input.AccountName
	req.InvestmentType = input.InvestmentType
	req.RequestedAmount = input.RequestedAmount
	req.Quarter = input.Quarter
	req.BusinessJustification = input.BusinessJustification
	req.ExpectedOutcome = input.ExpectedOutcome
	req.RiskAssessment = input.RiskAssessment
	req.ExpectedROI = input.ExpectedROI
	req.OpportunityLinkText = input.OpportunityLinkText
	req.Theater = input.Theater
	req.IndustrySegment = input.IndustrySegment
}

// Create stores a new DRAFT under a provisional negative ID, immediately
// visible to the creator, and replicates to the remote store asynchronously.
// The returned record carries the provisional ID until promotion.
func (s *RequestService) Create(input RequestInput, actor models.Identity) (*models.InvestmentRequest, error) {
	started := time.Now()

	if err := validateInput(&input); err != nil {
		s.metrics.RecordRequest(false, time.Since(started))
		return nil, err
	}

	provisionalID, err := s.store.NextProvisionalID()
	if err != nil {
		s.metrics.RecordRequest(false, time.Since(started))
		return nil, err
	}

	now := time.Now()
	req := &models.InvestmentRequest{
		ID:                   provisionalID,
		Status:               models.StatusDraft,
		CurrentApprovalLevel: 0,
		CreatedBy:            actor.Username,
		CreatedByName:        actor.DisplayName,
		CreatedByEmployeeID:  actor.EmployeeID,
		CreatedAt:            now,
		UpdatedAt:            now,
		RequestedAmount:      decimal.Zero,
	}
	applyInput(req, &input)

	if err := s.store.InsertRequest(req); err != nil {
		s.metrics.RecordRequest(false, time.Since(started))
		return nil, err
	}

	if err := s.journalAndReplicate(models.SyncOpCreate, req.ID, req); err != nil {
		s.metrics.RecordRequest(false, time.Since(started))
		return nil, err
	}

	s.metrics.RecordRequest(true, time.Since(started))
	s.metrics.IncrementCustomCounter("requests_created")
	return req, nil
}

// Update edits an existing request. Only DRAFT records are editable.
func (s *RequestService) Update(id int64, input RequestInput, actor models.Identity) (*models.InvestmentRequest, error) {
	if err := validateInput(&input); err != nil {
		return nil, err
	}

	unlock := s.lockRecord(id)
	defer unlock()

	req, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if req.Status != models.StatusDraft {
		return nil, shared.NewIllegalTransition("edit", req.Status)
	}

	applyInput(req, &input)
	req.UpdatedAt = time.Now()

	if err := s.store.UpdateRequest(req); err != nil {
		return nil, err
	}

	if err := s.journalAndReplicate(models.SyncOpUpdate, req.ID, req); err != nil {
		return nil, err
	}

	return req, nil
}

// Delete removes a DRAFT record. Anything past DRAFT must go through the
// state machine instead.
func (s *RequestService) Delete(id int64, actor models.Identity) error {
	unlock := s.lockRecord(id)
	defer unlock()

	req, err := s.Get(id)
	if err != nil {
		return err
	}
	if req.Status != models.StatusDraft {
		return shared.NewIllegalTransition("delete", req.Status)
	}

	if err := s.store.DeleteRequest(id); err != nil {
		return err
	}

	if req.IsProvisional() {
		// The remote never saw this record; retire any queued replication
		// instead of creating then deleting it remotely.
		s.cancelPendingFor(id)
		return nil
	}

	return s.journalAndReplicate(models.SyncOpDelete, id, nil)
}

// TransitionRequest carries the parameters of a workflow action.
type TransitionRequest struct {
	Action    string
	Comment   *string
	SubmitNow bool
}

// Transition applies a workflow action through the state machine and
// replicates the result. Illegal pairs are rejected before any mutation.
func (s *RequestService) Transition(id int64, tr TransitionRequest, actor models.Identity) (*models.InvestmentRequest, error) {
	started := time.Now()

	unlock := s.lockRecord(id)
	defer unlock()

	req, err := s.Get(id)
	if err != nil {
		s.metrics.RecordRequest(false, time.Since(started))
		return nil, err
	}

	input := TransitionInput{
		Action:    tr.Action,
		Actor:     actor,
		Comment:   tr.Comment,
		SubmitNow: tr.SubmitNow,
		Now:       time.Now(),
	}
	if tr.Action == ActionSubmit {
		creator := s.routing.IdentityFor(req.CreatedBy)
		input.NextApproverName, input.NextApproverTitle = s.routing.ResolveNextApprover(creator)
	}

	if err := ApplyTransition(req, input); err != nil {
		s.metrics.RecordRequest(false, time.Since(started))
		return nil, err
	}

	if err := s.store.UpdateRequest(req); err != nil {
		s.metrics.RecordRequest(false, time.Since(started))
		return nil, err
	}

	if err := s.journalAndReplicate(models.SyncOpUpdate, req.ID, req); err != nil {
		s.metrics.RecordRequest(false, time.Since(started))
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"component":  "RequestService",
		"request_id": req.ID,
		"action":     tr.Action,
		"status":     req.Status,
		"actor":      actor.Username,
	}).Info("Applied workflow transition")

	s.metrics.RecordRequest(true, time.Since(started))
	return req, nil
}

// LinkOpportunity associates a request with an external opportunity.
func (s *RequestService) LinkOpportunity(requestID int64, opportunityID string, actor models.Identity) (*models.OpportunityLink, error) {
	if _, err := s.Get(requestID); err != nil {
		return nil, err
	}

	link := models.OpportunityLink{
		RequestID:     requestID,
		OpportunityID: opportunityID,
		LinkedBy:      actor.Username,
		LinkedAt:      time.Now(),
	}
	if err := s.store.InsertOpportunityLink(link); err != nil {
		return nil, err
	}

	if err := s.journalAndReplicate(models.SyncOpLink, requestID, link); err != nil {
		return nil, err
	}

	return &link, nil
}

// UnlinkOpportunity removes an opportunity association.
func (s *RequestService) UnlinkOpportunity(requestID int64, opportunityID string, actor models.Identity) error {
	if _, err := s.Get(requestID); err != nil {
		return err
	}

	if err := s.store.DeleteOpportunityLink(requestID, opportunityID); err != nil {
		return err
	}

	link := models.OpportunityLink{RequestID: requestID, OpportunityID: opportunityID, LinkedBy: actor.Username}
	return s.journalAndReplicate(models.SyncOpUnlink, requestID, link)
}

// ListOpportunities returns the opportunity links for one request.
func (s *RequestService) ListOpportunities(requestID int64) ([]models.OpportunityLink, error) {
	if _, err := s.Get(requestID); err != nil {
		return nil, err
	}
	return s.store.ListOpportunityLinks(requestID)
}

// journalAndReplicate records the write in the pending sync journal, then
// kicks off asynchronous replication. A failure to journal is a hard error:
// the write would otherwise be silently unreplicated.
func (s *RequestService) journalAndReplicate(operation string, requestID int64, payload interface{}) error {
	var raw json.RawMessage
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return shared.WrapError(err, shared.ErrorCategoryProcessing, shared.CodeDecodeFailure, "request-service", "journal", false)
		}
		raw = encoded
	}

	now := time.Now()
	entry := models.PendingSyncEntry{
		ID:        uuid.New().String(),
		Operation: operation,
		RequestID: requestID,
		Payload:   raw,
		Status:    models.SyncStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.InsertPendingSync(entry); err != nil {
		return err
	}

	go s.flushEntry(entry)
	return nil
}

func (s *RequestService) cancelPendingFor(requestID int64) {
	entries, err := s.store.ListPendingSync(0)
	if err != nil {
		logrus.WithField("component", "RequestService").WithError(err).Warn("Failed to list pending sync entries for cancellation")
		return
	}
	for _, entry := range entries {
		if entry.RequestID != requestID {
			continue
		}
		if err := s.store.UpdatePendingSync(entry.ID, models.SyncStatusDone, entry.Attempts, nil); err != nil {
			logrus.WithField("component", "RequestService").WithError(err).Warn("Failed to retire pending sync entry")
		}
	}
}

// FlushPending replays every pending or failed journal entry against the
// remote store. Called by the background flush job and safe to call at any
// time; entries past the attempt cap stay failed and are only logged.
func (s *RequestService) FlushPending() {
	entries, err := s.store.ListPendingSync(0)
	if err != nil {
		logrus.WithField("component", "RequestService").WithError(err).Error("Failed to list pending sync entries")
		return
	}

	for _, entry := range entries {
		if entry.Attempts >= s.maxFlush {
			logrus.WithFields(logrus.Fields{
				"component": "RequestService",
				"entry_id":  entry.ID,
				"operation": entry.Operation,
				"attempts":  entry.Attempts,
			}).Warn("Pending sync entry exceeded attempt cap, leaving for operator attention")
			continue
		}
		s.flushEntry(entry)
	}
}

// flushEntry pushes one journal entry to the remote store and records the
// outcome. Create entries promote the provisional ID on success.
//
// The entry handed in may be stale: a concurrent create flush can promote the
// record's provisional ID and remap the journal rows between queueing and this
// call. The journal row is re-read by UUID under the record lock so the flush
// always replicates against the current request ID; a remap that lands after
// the re-read is excluded by the lock, which the promoting flush holds under
// the same provisional ID.
func (s *RequestService) flushEntry(entry models.PendingSyncEntry) {
	unlock := s.lockRecord(entry.RequestID)
	defer unlock()

	current, err := s.store.GetPendingSync(entry.ID)
	if err != nil {
		logrus.WithField("component", "RequestService").WithError(err).Error("Failed to re-read pending sync entry")
		return
	}
	if current == nil || current.Status == models.SyncStatusDone {
		return
	}
	entry = *current

	err = s.replicate(entry)
	attempts := entry.Attempts + 1

	if err != nil {
		message := err.Error()
		if updateErr := s.store.UpdatePendingSync(entry.ID, models.SyncStatusFailed, attempts, &message); updateErr != nil {
			logrus.WithField("component", "RequestService").WithError(updateErr).Error("Failed to mark pending sync entry failed")
		}
		logrus.WithFields(logrus.Fields{
			"component": "RequestService",
			"entry_id":  entry.ID,
			"operation": entry.Operation,
			"attempts":  attempts,
		}).WithError(err).Warn("Remote replication failed, entry stays pending remote confirmation")
		return
	}

	if err := s.store.UpdatePendingSync(entry.ID, models.SyncStatusDone, attempts, nil); err != nil {
		logrus.WithField("component", "RequestService").WithError(err).Error("Failed to mark pending sync entry done")
	}
}

func (s *RequestService) replicate(entry models.PendingSyncEntry) error {
	switch entry.Operation {
	case models.SyncOpCreate:
		req, err := s.store.GetRequest(entry.RequestID)
		if err != nil {
			return err
		}
		if req == nil {
			// Deleted locally before replication; nothing to create.
			return nil
		}
		remoteID, err := s.remote.CreateRequest(req)
		if err != nil {
			return err
		}
		return s.syncSvc.PromoteRequest(entry.RequestID, remoteID)

	case models.SyncOpUpdate:
		req, err := s.store.GetRequest(entry.RequestID)
		if err != nil {
			return err
		}
		if req == nil {
			return nil
		}
		if req.IsProvisional() {
			// The remote has not confirmed the create yet; the update
			// rides along once the create entry flushes and promotes.
			return shared.NewRemoteUnavailable("update", nil)
		}
		return s.remote.UpdateRequest(req)

	case models.SyncOpDelete:
		return s.remote.DeleteRequest(entry.RequestID)

	case models.SyncOpLink:
		var link models.OpportunityLink
		if err := json.Unmarshal(entry.Payload, &link); err != nil {
			return shared.NewDecodeFailure("decode link payload", err)
		}
		link.RequestID = entry.RequestID
		return s.remote.CreateOpportunityLink(link)

	case models.SyncOpUnlink:
		var link models.OpportunityLink
		if err := json.Unmarshal(entry.Payload, &link); err != nil {
			return shared.NewDecodeFailure("decode unlink payload", err)
		}
		return s.remote.DeleteOpportunityLink(entry.RequestID, link.OpportunityID)
	}

	return shared.NewDecodeFailure("replicate", nil)
}
