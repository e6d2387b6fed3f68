package services

import (
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/tgregoire/invgov-backend/models"
	"github.com/tgregoire/invgov-backend/shared"
)

func TestProgressBeforeFirstRefreshIsIdle(t *testing.T) {
	syncSvc := NewCacheSyncService(newFakeStore(), newFakeRemote())
	progress := syncSvc.Progress()
	if progress.Status != models.CacheStatusIdle {
		t.Fatalf("got status %q, want idle", progress.Status)
	}
	if progress.TotalSteps != 5 {
		t.Fatalf("got %d total steps, want 5", progress.TotalSteps)
	}
}

func TestRefreshRunsStagesInOrder(t *testing.T) {
	store := newFakeStore()
	remote := newFakeRemote()
	remote.hierarchy = []models.HierarchyEntry{{Username: "jdoe", DisplayName: "Jane Doe"}}
	remote.requests = []models.InvestmentRequest{{ID: 7, Title: "Trade show sponsorship", RequestedAmount: decimal.NewFromInt(1), Status: models.StatusDraft}}
	remote.budgets = []models.Budget{{BudgetID: 1, FiscalYear: "FY26"}}
	remote.accounts = []models.Account{{AccountName: "Acme Corp"}}

	syncSvc := NewCacheSyncService(store, remote)
	syncSvc.Refresh()

	progress := syncSvc.Progress()
	if progress.Status != models.CacheStatusComplete {
		t.Fatalf("got status %q (%s), want complete", progress.Status, progress.Message)
	}
	if progress.StepsCompleted != 5 {
		t.Errorf("got %d steps completed, want 5", progress.StepsCompleted)
	}

	wantFetches := []string{"hierarchy", "requests", "budgets", "accounts"}
	if !reflect.DeepEqual(remote.fetchOrder(), wantFetches) {
		t.Errorf("fetch order %v, want %v", remote.fetchOrder(), wantFetches)
	}
	wantReplaces := []string{"users", "requests", "budgets", "accounts"}
	if !reflect.DeepEqual(store.replaceCalls, wantReplaces) {
		t.Errorf("replace order %v, want %v", store.replaceCalls, wantReplaces)
	}

	if got, _ := store.GetRequest(7); got == nil {
		t.Error("refreshed request not visible in cache")
	}
}

func TestRefreshUnreachableRemoteDegradesToError(t *testing.T) {
	store := newFakeStore()
	remote := newFakeRemote()
	remote.pingErr = errors.New("connection refused")

	syncSvc := NewCacheSyncService(store, remote)
	syncSvc.Refresh()

	progress := syncSvc.Progress()
	if progress.Status != models.CacheStatusError {
		t.Fatalf("got status %q, want error", progress.Status)
	}
	if progress.Message == "" {
		t.Fatal("error message not surfaced")
	}
	if len(remote.fetchOrder()) != 0 {
		t.Error("data stages ran after fatal connectivity failure")
	}

	err := syncSvc.AwaitReady(50 * time.Millisecond)
	if err == nil {
		t.Fatal("AwaitReady returned nil against an errored refresh")
	}
	if shared.IsTimeout(err) {
		t.Fatal("errored refresh surfaced as timeout")
	}
}

func TestRefreshStageFailureStopsSequence(t *testing.T) {
	store := newFakeStore()
	remote := newFakeRemote()
	remote.requestsErr = errors.New("decode failure batch abort")

	syncSvc := NewCacheSyncService(store, remote)
	syncSvc.Refresh()

	progress := syncSvc.Progress()
	if progress.Status != models.CacheStatusError {
		t.Fatalf("got status %q, want error", progress.Status)
	}
	for _, call := range store.replaceCalls {
		if call == "budgets" || call == "accounts" {
			t.Errorf("stage %q ran after an earlier stage failed", call)
		}
	}
}

func TestConcurrentRefreshRunsOneStageSequence(t *testing.T) {
	store := newFakeStore()
	remote := newFakeRemote()
	syncSvc := NewCacheSyncService(store, remote)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			syncSvc.Refresh()
		}()
	}
	wg.Wait()

	// Joiners return immediately, so at least one full sequence ran but the
	// first run was never raced by a second interleaved sequence: fetches come
	// in whole groups of four, in order.
	fetches := remote.fetchOrder()
	if len(fetches)%4 != 0 || len(fetches) == 0 {
		t.Fatalf("got %d fetches, want a whole number of stage sequences", len(fetches))
	}
	want := []string{"hierarchy", "requests", "budgets", "accounts"}
	for i, fetch := range fetches {
		if fetch != want[i%4] {
			t.Fatalf("fetch %d was %q, want %q: sequences interleaved", i, fetch, want[i%4])
		}
	}

	if syncSvc.Progress().Status != models.CacheStatusComplete {
		t.Errorf("terminal status %q, want complete", syncSvc.Progress().Status)
	}
}

func TestAwaitReadyTimesOutDistinctly(t *testing.T) {
	syncSvc := NewCacheSyncService(newFakeStore(), newFakeRemote())

	// Nothing is refreshing; status stays idle forever.
	err := syncSvc.AwaitReady(30 * time.Millisecond)
	if !shared.IsTimeout(err) {
		t.Fatalf("got %v, want timeout", err)
	}
}

func TestAwaitReadyWakesOnCompletion(t *testing.T) {
	syncSvc := NewCacheSyncService(newFakeStore(), newFakeRemote())

	done := make(chan error, 1)
	go func() {
		done <- syncSvc.AwaitReady(5 * time.Second)
	}()

	time.Sleep(10 * time.Millisecond)
	syncSvc.Refresh()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("AwaitReady: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("AwaitReady did not wake after refresh completed")
	}
}

func TestPromoteRequestRemapsID(t *testing.T) {
	store := newFakeStore()
	syncSvc := NewCacheSyncService(store, newFakeRemote())

	store.InsertRequest(&models.InvestmentRequest{ID: -3, Title: "Partner enablement", Status: models.StatusDraft})
	store.InsertOpportunityLink(models.OpportunityLink{RequestID: -3, OpportunityID: "OPP-9"})

	if err := syncSvc.PromoteRequest(-3, 501); err != nil {
		t.Fatalf("promote: %v", err)
	}

	if old, _ := store.GetRequest(-3); old != nil {
		t.Error("provisional record still visible under negative ID")
	}
	promoted, _ := store.GetRequest(501)
	if promoted == nil {
		t.Fatal("record not visible under remote-assigned ID")
	}
	if promoted.Title != "Partner enablement" {
		t.Error("record content diverged across promotion")
	}
	links, _ := store.ListOpportunityLinks(501)
	if len(links) != 1 {
		t.Error("opportunity link not remapped with the request")
	}
}
