package handlers

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/tgregoire/invgov-backend/models"
	"github.com/tgregoire/invgov-backend/services"
)

// memStore implements the subset of services.Store the handler paths touch.
// The embedded interface panics on anything unimplemented, which is the
// point: a test reaching an unstubbed method is a test with a gap.
type memStore struct {
	services.Store

	mu       sync.Mutex
	requests map[int64]models.InvestmentRequest
	users    map[string]models.HierarchyEntry
	pending  map[string]models.PendingSyncEntry
	provSeq  int64
}

func newMemStore() *memStore {
	return &memStore{
		requests: make(map[int64]models.InvestmentRequest),
		users:    make(map[string]models.HierarchyEntry),
		pending:  make(map[string]models.PendingSyncEntry),
	}
}

func (m *memStore) Ping() error { return nil }

func (m *memStore) GetRequest(id int64) (*models.InvestmentRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[id]
	if !ok {
		return nil, nil
	}
	copied := req
	return &copied, nil
}

func (m *memStore) InsertRequest(req *models.InvestmentRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[req.ID] = *req
	return nil
}

func (m *memStore) UpdateRequest(req *models.InvestmentRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.requests[req.ID]; !ok {
		return sql.ErrNoRows
	}
	m.requests[req.ID] = *req
	return nil
}

func (m *memStore) NextProvisionalID() (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.provSeq--
	return m.provSeq, nil
}

func (m *memStore) PromoteRequest(oldID, newID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[oldID]
	if !ok {
		return sql.ErrNoRows
	}
	delete(m.requests, oldID)
	req.ID = newID
	m.requests[newID] = req
	return nil
}

func (m *memStore) GetUserByUsername(username string) (*models.HierarchyEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.users[username]
	if !ok {
		return nil, nil
	}
	copied := entry
	return &copied, nil
}

func (m *memStore) GetUserByDisplayName(displayName string) (*models.HierarchyEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, entry := range m.users {
		if entry.DisplayName == displayName {
			copied := entry
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *memStore) InsertPendingSync(entry models.PendingSyncEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending[entry.ID] = entry
	return nil
}

func (m *memStore) GetPendingSync(id string) (*models.PendingSyncEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.pending[id]
	if !ok {
		return nil, nil
	}
	copied := entry
	return &copied, nil
}

func (m *memStore) UpdatePendingSync(id, status string, attempts int, errorMessage *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.pending[id]
	if !ok {
		return sql.ErrNoRows
	}
	entry.Status = status
	entry.Attempts = attempts
	entry.ErrorMessage = errorMessage
	m.pending[id] = entry
	return nil
}

func (m *memStore) ListPendingSync(limit int) ([]models.PendingSyncEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.PendingSyncEntry
	for _, entry := range m.pending {
		if entry.Status != models.SyncStatusDone {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (m *memStore) ReplaceUsers(entries []models.HierarchyEntry) error        { return nil }
func (m *memStore) ReplaceRequests(requests []models.InvestmentRequest) error { return nil }
func (m *memStore) ReplaceBudgets(budgets []models.Budget) error              { return nil }
func (m *memStore) ReplaceAccounts(accounts []models.Account) error           { return nil }

// memRemote is a RemoteStore whose writes always succeed.
type memRemote struct {
	services.RemoteStore
}

func (memRemote) Ping() error                                             { return nil }
func (memRemote) FetchHierarchy() ([]models.HierarchyEntry, int, error)   { return nil, 0, nil }
func (memRemote) FetchRequests() ([]models.InvestmentRequest, int, error) { return nil, 0, nil }
func (memRemote) FetchBudgets() ([]models.Budget, int, error)             { return nil, 0, nil }
func (memRemote) FetchAccounts() ([]models.Account, int, error)           { return nil, 0, nil }
func (memRemote) CreateRequest(req *models.InvestmentRequest) (int64, error) {
	return 1000, nil
}
func (memRemote) UpdateRequest(req *models.InvestmentRequest) error { return nil }
func (memRemote) DeleteRequest(id int64) error                      { return nil }

func newTestApp(store *memStore) *fiber.App {
	routing := services.NewRoutingResolver(store)
	syncSvc := services.NewCacheSyncService(store, memRemote{})
	requestService := services.NewRequestService(store, memRemote{}, routing, syncSvc, 3)

	requestHandler := NewRequestHandler(requestService, routing)
	cacheHandler := NewCacheHandler(syncSvc)
	lookupHandler := NewLookupHandler(requestService, store, routing)

	app := fiber.New()
	app.Get("/requests/:id", requestHandler.Get)
	app.Post("/requests", requestHandler.Create)
	app.Post("/requests/:id/approve", requestHandler.Approve)
	app.Post("/requests/:id/submit", requestHandler.Submit)
	app.Get("/requests/:id/steps", requestHandler.Steps)
	app.Get("/approval-chain", lookupHandler.ApprovalChain)
	app.Get("/cache/progress", cacheHandler.Progress)
	app.Post("/cache/refresh", cacheHandler.Refresh)
	return app
}

func decodeBody(t *testing.T, resp *http.Response, into interface{}) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		t.Fatalf("decoding response body: %v", err)
	}
}

func TestGetUnknownRequestReturns404WithErrorBody(t *testing.T) {
	app := newTestApp(newMemStore())

	req := httptest.NewRequest(http.MethodGet, "/requests/999", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("got status %d, want 404", resp.StatusCode)
	}

	var body map[string]string
	decodeBody(t, resp, &body)
	if body["error"] == "" {
		t.Fatal("error body missing descriptive message")
	}
}

func TestCreateReturns201WithAssignedID(t *testing.T) {
	app := newTestApp(newMemStore())

	payload, _ := json.Marshal(map[string]interface{}{
		"request_title":    "Territory expansion pilot",
		"requested_amount": "25000",
	})
	req := httptest.NewRequest(http.MethodPost, "/requests", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Remote-User", "jdoe")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("got status %d, want 201", resp.StatusCode)
	}

	var created models.InvestmentRequest
	decodeBody(t, resp, &created)
	if created.ID == 0 {
		t.Fatal("no id assigned in the create response")
	}
	if created.Status != models.StatusDraft {
		t.Fatalf("got status %q, want DRAFT", created.Status)
	}
	if created.CreatedBy != "jdoe" {
		t.Fatalf("creator %q not taken from the identity header", created.CreatedBy)
	}
}

func TestCreateBlankTitleReturns400(t *testing.T) {
	app := newTestApp(newMemStore())

	payload, _ := json.Marshal(map[string]interface{}{"request_title": ""})
	req := httptest.NewRequest(http.MethodPost, "/requests", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("got status %d, want 400", resp.StatusCode)
	}
}

func TestIllegalTransitionReturns409(t *testing.T) {
	store := newMemStore()
	store.InsertRequest(&models.InvestmentRequest{
		ID:              5,
		Title:           "Pilot program",
		RequestedAmount: decimal.NewFromInt(10),
		Status:          models.StatusDraft,
	})
	app := newTestApp(store)

	req := httptest.NewRequest(http.MethodPost, "/requests/5/approve", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("got status %d, want 409", resp.StatusCode)
	}

	var body map[string]string
	decodeBody(t, resp, &body)
	if body["error"] == "" {
		t.Fatal("error body missing descriptive message")
	}
}

func TestSubmitWithoutIdentityHeaderStillWorks(t *testing.T) {
	store := newMemStore()
	store.InsertRequest(&models.InvestmentRequest{
		ID:              6,
		Title:           "Renewal campaign",
		RequestedAmount: decimal.NewFromInt(10),
		Status:          models.StatusDraft,
	})
	app := newTestApp(store)

	req := httptest.NewRequest(http.MethodPost, "/requests/6/submit", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got status %d, want 200", resp.StatusCode)
	}

	var submitted models.InvestmentRequest
	decodeBody(t, resp, &submitted)
	if submitted.Status != models.StatusSubmitted {
		t.Fatalf("got status %q, want SUBMITTED", submitted.Status)
	}
}

func TestCacheRefreshReturns202AndProgressBecomesTerminal(t *testing.T) {
	app := newTestApp(newMemStore())

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/cache/refresh", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("got status %d, want 202", resp.StatusCode)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/cache/progress", nil))
		if err != nil {
			t.Fatalf("app.Test: %v", err)
		}
		var progress models.CacheProgress
		decodeBody(t, resp, &progress)
		if progress.Terminal() {
			if progress.Status != models.CacheStatusComplete {
				t.Fatalf("refresh ended in %q: %s", progress.Status, progress.Message)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("refresh never reached a terminal state")
}

func TestAdminImportRejectsMissingToken(t *testing.T) {
	adminHandler := NewAdminHandler(nil, "secret")
	app := fiber.New()
	app.Post("/admin/hierarchy/import", adminHandler.ImportHierarchy)

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/admin/hierarchy/import", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("got status %d, want 401", resp.StatusCode)
	}

	// An unset token must fail closed, not open.
	openHandler := NewAdminHandler(nil, "")
	openApp := fiber.New()
	openApp.Post("/admin/hierarchy/import", openHandler.ImportHierarchy)
	req := httptest.NewRequest(http.MethodPost, "/admin/hierarchy/import", nil)
	req.Header.Set("X-Admin-Token", "")
	resp, err = openApp.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("empty configured token: got status %d, want 401", resp.StatusCode)
	}
}

func TestRequestStepsEndpointAnnotatesChain(t *testing.T) {
	store := newMemStore()
	dm := "Bob Boss"
	dmTitle := "District Manager"
	rd := "Carol Chief"
	rdTitle := "Regional Director"
	store.users["jdoe"] = models.HierarchyEntry{
		Username: "jdoe", DisplayName: "Jane Doe", Role: models.RoleAE, ManagerName: &dm,
	}
	store.users["bboss"] = models.HierarchyEntry{
		Username: "bboss", DisplayName: dm, Title: &dmTitle, Role: models.RoleDM, ManagerName: &rd,
	}
	store.users["cchief"] = models.HierarchyEntry{
		Username: "cchief", DisplayName: rd, Title: &rdTitle, Role: models.RoleRD, IsFinalApprover: true,
	}
	dmAt := time.Date(2025, 5, 2, 10, 0, 0, 0, time.UTC)
	store.requests[42] = models.InvestmentRequest{
		ID:                   42,
		Title:                "Territory expansion pilot",
		CreatedBy:            "jdoe",
		Status:               models.StatusDMApproved,
		CurrentApprovalLevel: 2,
		DM:                   models.ApprovalStamp{ApprovedBy: &dm, ApprovedAt: &dmAt},
	}
	app := newTestApp(store)

	req := httptest.NewRequest(http.MethodGet, "/requests/42/steps", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got status %d, want 200", resp.StatusCode)
	}

	var steps []models.ApprovalStep
	decodeBody(t, resp, &steps)
	if len(steps) != 2 {
		t.Fatalf("got %d steps, want 2", len(steps))
	}
	if steps[0].Status != models.StepStatusApproved {
		t.Errorf("stamped step status %q, want approved", steps[0].Status)
	}
	if steps[1].Status != models.StepStatusCurrent {
		t.Errorf("awaited step status %q, want current", steps[1].Status)
	}
	if !steps[1].IsFinalStep {
		t.Error("final approver step not flagged")
	}
}

func TestApprovalChainEndpointUnknownLoginReturnsEmptyList(t *testing.T) {
	app := newTestApp(newMemStore())

	req := httptest.NewRequest(http.MethodGet, "/approval-chain?username=ghost", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got status %d, want 200", resp.StatusCode)
	}

	var chain []models.ApprovalStep
	decodeBody(t, resp, &chain)
	if chain == nil || len(chain) != 0 {
		t.Fatalf("got %v, want an empty list", chain)
	}
}
