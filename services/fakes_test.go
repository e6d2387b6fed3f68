package services

import (
	"database/sql"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/tgregoire/invgov-backend/models"
)

// fakeStore is an in-memory Store for service tests.
type fakeStore struct {
	mu       sync.Mutex
	requests map[int64]models.InvestmentRequest
	users    map[string]models.HierarchyEntry
	accounts []models.Account
	budgets  []models.Budget
	links    []models.OpportunityLink
	pending  map[string]models.PendingSyncEntry
	provSeq  int64

	// replaceCalls records the order in which refresh stages hit the store.
	replaceCalls []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		requests: make(map[int64]models.InvestmentRequest),
		users:    make(map[string]models.HierarchyEntry),
		pending:  make(map[string]models.PendingSyncEntry),
	}
}

func (f *fakeStore) Ping() error { return nil }

func (f *fakeStore) ListRequests(filter models.RequestFilter) ([]models.InvestmentRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.InvestmentRequest, 0, len(f.requests))
	for _, req := range f.requests {
		if filter.Status != "" && req.Status != filter.Status {
			continue
		}
		out = append(out, req)
	}
	return out, nil
}

func (f *fakeStore) GetRequest(id int64) (*models.InvestmentRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	req, ok := f.requests[id]
	if !ok {
		return nil, nil
	}
	copied := req
	return &copied, nil
}

func (f *fakeStore) InsertRequest(req *models.InvestmentRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests[req.ID] = *req
	return nil
}

func (f *fakeStore) UpdateRequest(req *models.InvestmentRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.requests[req.ID]; !ok {
		return sql.ErrNoRows
	}
	f.requests[req.ID] = *req
	return nil
}

func (f *fakeStore) DeleteRequest(id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.requests, id)
	remaining := f.links[:0]
	for _, link := range f.links {
		if link.RequestID != id {
			remaining = append(remaining, link)
		}
	}
	f.links = remaining
	return nil
}

func (f *fakeStore) NextProvisionalID() (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.provSeq--
	return f.provSeq, nil
}

func (f *fakeStore) PromoteRequest(oldID, newID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	req, ok := f.requests[oldID]
	if !ok {
		return sql.ErrNoRows
	}
	delete(f.requests, oldID)
	req.ID = newID
	f.requests[newID] = req
	for i := range f.links {
		if f.links[i].RequestID == oldID {
			f.links[i].RequestID = newID
		}
	}
	for id, entry := range f.pending {
		if entry.RequestID == oldID {
			entry.RequestID = newID
			f.pending[id] = entry
		}
	}
	return nil
}

func (f *fakeStore) Summary(filter models.RequestFilter, username string) (*models.RequestSummary, error) {
	requests, _ := f.ListRequests(filter)
	summary := &models.RequestSummary{
		TotalInvestmentRequested: decimal.Zero,
		TotalInvestmentApproved:  decimal.Zero,
	}
	for _, req := range requests {
		summary.TotalRequests++
		switch req.Status {
		case models.StatusDraft:
			summary.TotalDraft++
		case models.StatusFinalApproved:
			summary.TotalApproved++
		case models.StatusRejected, models.StatusDenied:
			summary.TotalRejected++
		default:
			summary.TotalInFlight++
		}
		summary.TotalInvestmentRequested = summary.TotalInvestmentRequested.Add(req.RequestedAmount)
	}
	return summary, nil
}

func (f *fakeStore) ReplaceUsers(entries []models.HierarchyEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replaceCalls = append(f.replaceCalls, "users")
	f.users = make(map[string]models.HierarchyEntry, len(entries))
	for _, entry := range entries {
		f.users[entry.Username] = entry
	}
	return nil
}

func (f *fakeStore) ReplaceRequests(requests []models.InvestmentRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replaceCalls = append(f.replaceCalls, "requests")
	for _, req := range requests {
		if _, exists := f.requests[req.ID]; !exists {
			f.requests[req.ID] = req
		}
	}
	return nil
}

func (f *fakeStore) ReplaceBudgets(budgets []models.Budget) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replaceCalls = append(f.replaceCalls, "budgets")
	f.budgets = budgets
	return nil
}

func (f *fakeStore) ReplaceAccounts(accounts []models.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replaceCalls = append(f.replaceCalls, "accounts")
	f.accounts = accounts
	return nil
}

func (f *fakeStore) GetUserByUsername(username string) (*models.HierarchyEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry, ok := f.users[username]
	if !ok {
		return nil, nil
	}
	copied := entry
	return &copied, nil
}

func (f *fakeStore) GetUserByDisplayName(displayName string) (*models.HierarchyEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, entry := range f.users {
		if entry.DisplayName == displayName {
			copied := entry
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) SearchAccounts(query string, limit int) ([]models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Account
	for _, acct := range f.accounts {
		if strings.Contains(strings.ToLower(acct.AccountName), strings.ToLower(query)) {
			out = append(out, acct)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *fakeStore) TheaterIndustryLookups() (*models.TheaterIndustryLookup, error) {
	return &models.TheaterIndustryLookup{}, nil
}

func (f *fakeStore) ListBudgets(fiscalYear string) ([]models.Budget, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Budget(nil), f.budgets...), nil
}

func (f *fakeStore) ListOpportunityLinks(requestID int64) ([]models.OpportunityLink, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.OpportunityLink
	for _, link := range f.links {
		if link.RequestID == requestID {
			out = append(out, link)
		}
	}
	return out, nil
}

func (f *fakeStore) InsertOpportunityLink(link models.OpportunityLink) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.links = append(f.links, link)
	return nil
}

func (f *fakeStore) DeleteOpportunityLink(requestID int64, opportunityID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	remaining := f.links[:0]
	for _, link := range f.links {
		if link.RequestID == requestID && link.OpportunityID == opportunityID {
			continue
		}
		remaining = append(remaining, link)
	}
	f.links = remaining
	return nil
}

func (f *fakeStore) InsertPendingSync(entry models.PendingSyncEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending[entry.ID] = entry
	return nil
}

func (f *fakeStore) GetPendingSync(id string) (*models.PendingSyncEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry, ok := f.pending[id]
	if !ok {
		return nil, nil
	}
	copied := entry
	return &copied, nil
}

func (f *fakeStore) UpdatePendingSync(id, status string, attempts int, errorMessage *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry, ok := f.pending[id]
	if !ok {
		return sql.ErrNoRows
	}
	entry.Status = status
	entry.Attempts = attempts
	entry.ErrorMessage = errorMessage
	f.pending[id] = entry
	return nil
}

func (f *fakeStore) ListPendingSync(limit int) ([]models.PendingSyncEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.PendingSyncEntry
	for _, entry := range f.pending {
		if entry.Status == models.SyncStatusDone {
			continue
		}
		out = append(out, entry)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *fakeStore) pendingByStatus(status string) []models.PendingSyncEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.PendingSyncEntry
	for _, entry := range f.pending {
		if entry.Status == status {
			out = append(out, entry)
		}
	}
	return out
}

// fakeRemote is a scriptable RemoteStore.
type fakeRemote struct {
	mu sync.Mutex

	pingErr     error
	hierarchy   []models.HierarchyEntry
	requests    []models.InvestmentRequest
	budgets     []models.Budget
	accounts    []models.Account
	requestsErr error

	nextID    int64
	createErr error
	created   []models.InvestmentRequest
	updated   []models.InvestmentRequest
	deleted   []int64
	fetches   []string
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{nextID: 1000}
}

func (f *fakeRemote) Ping() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pingErr
}

func (f *fakeRemote) FetchHierarchy() ([]models.HierarchyEntry, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches = append(f.fetches, "hierarchy")
	return f.hierarchy, 0, nil
}

func (f *fakeRemote) FetchRequests() ([]models.InvestmentRequest, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches = append(f.fetches, "requests")
	if f.requestsErr != nil {
		return nil, 0, f.requestsErr
	}
	return f.requests, 0, nil
}

func (f *fakeRemote) FetchBudgets() ([]models.Budget, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches = append(f.fetches, "budgets")
	return f.budgets, 0, nil
}

func (f *fakeRemote) FetchAccounts() ([]models.Account, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches = append(f.fetches, "accounts")
	return f.accounts, 0, nil
}

func (f *fakeRemote) CreateRequest(req *models.InvestmentRequest) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return 0, f.createErr
	}
	id := f.nextID
	f.nextID++
	f.created = append(f.created, *req)
	return id, nil
}

func (f *fakeRemote) UpdateRequest(req *models.InvestmentRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated = append(f.updated, *req)
	return nil
}

func (f *fakeRemote) DeleteRequest(id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeRemote) CreateOpportunityLink(link models.OpportunityLink) error { return nil }

func (f *fakeRemote) DeleteOpportunityLink(requestID int64, opportunityID string) error { return nil }

func (f *fakeRemote) fetchOrder() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.fetches...)
}
