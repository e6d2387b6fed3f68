package services

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tgregoire/invgov-backend/models"
	"github.com/tgregoire/invgov-backend/shared"
)

const refreshTotalSteps = 5

// CacheSyncService brings the local cache to a state consistent with the
// remote system of record in a fixed sequence of stages, and lets any number
// of callers observe or await progress. One instance owns the progress state;
// nothing here is package-global, so tests can run independent instances.
type CacheSyncService struct {
	store   Store
	remote  RemoteStore
	metrics *shared.RefreshMetrics

	mu       sync.Mutex
	progress models.CacheProgress
	inFlight bool
	// changed is closed and replaced on every progress mutation; waiters
	// block on the current channel instead of polling.
	changed chan struct{}
}

// NewCacheSyncService creates a synchronizer over the given cache and remote stores
func NewCacheSyncService(store Store, remote RemoteStore) *CacheSyncService {
	return &CacheSyncService{
		store:   store,
		remote:  remote,
		metrics: shared.NewRefreshMetrics(),
		progress: models.CacheProgress{
			Status:     models.CacheStatusIdle,
			TotalSteps: refreshTotalSteps,
		},
		changed: make(chan struct{}),
	}
}

// Metrics exposes refresh counters for periodic summaries.
func (c *CacheSyncService) Metrics() *shared.RefreshMetrics {
	return c.metrics
}

// Progress returns a snapshot of the current refresh state. Safe to call at
// any time; before the first refresh it reports idle.
func (c *CacheSyncService) Progress() models.CacheProgress {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.progress
}

// setProgress applies fn to the progress under the lock and wakes waiters.
func (c *CacheSyncService) setProgress(fn func(p *models.CacheProgress)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.progress)
	close(c.changed)
	c.changed = make(chan struct{})
}

// Refresh runs the staged synchronization. It is non-reentrant: a call while
// a refresh is in flight returns immediately and the caller observes the
// already-running sequence through Progress or AwaitReady. Exactly one stage
// sequence executes per run.
func (c *CacheSyncService) Refresh() {
	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		logrus.WithField("component", "CacheSyncService").Debug("Refresh already in flight, joining existing run")
		return
	}
	c.inFlight = true
	c.progress = models.CacheProgress{
		Status:     models.CacheStatusLoading,
		TotalSteps: refreshTotalSteps,
	}
	close(c.changed)
	c.changed = make(chan struct{})
	c.mu.Unlock()

	started := time.Now()
	err := c.runStages()

	c.mu.Lock()
	c.inFlight = false
	if err != nil {
		c.progress.Status = models.CacheStatusError
		c.progress.Message = err.Error()
	} else {
		c.progress.Status = models.CacheStatusComplete
		c.progress.Message = fmt.Sprintf("cache refreshed in %s", time.Since(started).Round(time.Millisecond))
	}
	close(c.changed)
	c.changed = make(chan struct{})
	c.mu.Unlock()

	c.metrics.RecordRefresh(err == nil, time.Since(started))

	if err != nil {
		logrus.WithField("component", "CacheSyncService").WithError(err).Error("Cache refresh failed")
	} else {
		logrus.WithFields(logrus.Fields{
			"component": "CacheSyncService",
			"duration":  time.Since(started),
		}).Info("Cache refresh completed")
	}
}

func (c *CacheSyncService) beginStep(name string) {
	c.setProgress(func(p *models.CacheProgress) {
		p.CurrentStep = name
		p.Message = ""
	})
	logrus.WithFields(logrus.Fields{
		"component": "CacheSyncService",
		"step":      name,
	}).Info("Starting refresh stage")
}

func (c *CacheSyncService) completeStep() {
	c.setProgress(func(p *models.CacheProgress) {
		p.StepsCompleted++
	})
}

// runStages executes the fixed stage order. The connectivity check is fatal;
// within the data stages, individual malformed records were already skipped
// by the remote adapter, so a stage error here means the stage as a whole
// failed and nothing further runs.
func (c *CacheSyncService) runStages() error {
	c.beginStep("connecting to remote store")
	if err := c.remote.Ping(); err != nil {
		return fmt.Errorf("remote store unreachable: %w", err)
	}
	c.completeStep()

	c.beginStep("refreshing user hierarchy")
	users, skipped, err := c.remote.FetchHierarchy()
	if err != nil {
		return fmt.Errorf("refreshing user hierarchy: %w", err)
	}
	c.recordStage(len(users), skipped)
	if err := c.store.ReplaceUsers(users); err != nil {
		return fmt.Errorf("storing user hierarchy: %w", err)
	}
	c.completeStep()

	c.beginStep("refreshing investment requests")
	requests, skipped, err := c.remote.FetchRequests()
	if err != nil {
		return fmt.Errorf("refreshing investment requests: %w", err)
	}
	c.recordStage(len(requests), skipped)
	if err := c.store.ReplaceRequests(requests); err != nil {
		return fmt.Errorf("storing investment requests: %w", err)
	}
	c.completeStep()

	c.beginStep("refreshing budgets")
	budgets, skipped, err := c.remote.FetchBudgets()
	if err != nil {
		return fmt.Errorf("refreshing budgets: %w", err)
	}
	c.recordStage(len(budgets), skipped)
	if err := c.store.ReplaceBudgets(budgets); err != nil {
		return fmt.Errorf("storing budgets: %w", err)
	}
	c.completeStep()

	c.beginStep("refreshing account lookups")
	accounts, skipped, err := c.remote.FetchAccounts()
	if err != nil {
		return fmt.Errorf("refreshing account lookups: %w", err)
	}
	c.recordStage(len(accounts), skipped)
	if err := c.store.ReplaceAccounts(accounts); err != nil {
		return fmt.Errorf("storing account lookups: %w", err)
	}
	c.completeStep()

	return nil
}

func (c *CacheSyncService) recordStage(loaded, skipped int) {
	c.metrics.RecordRecordsLoaded(loaded)
	for i := 0; i < skipped; i++ {
		c.metrics.RecordRecordSkipped()
	}
}

// AwaitReady blocks until the current refresh reaches a terminal state or
// the timeout elapses. A refresh that finished in error status returns that
// error; a caller that simply waited too long gets a distinct Timeout, and
// the refresh keeps running for other waiters.
func (c *CacheSyncService) AwaitReady(timeout time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		c.mu.Lock()
		snapshot := c.progress
		waitCh := c.changed
		c.mu.Unlock()

		switch snapshot.Status {
		case models.CacheStatusComplete:
			return nil
		case models.CacheStatusError:
			return shared.NewServiceError(
				shared.ErrorCategoryProcessing,
				shared.CodeRefreshFailed,
				snapshot.Message,
				"cache-sync",
				"await_ready",
				true,
				nil,
			)
		}

		select {
		case <-waitCh:
		case <-deadline.C:
			return shared.NewTimeout("await_ready", timeout)
		}
	}
}

// PromoteRequest remaps a provisional negative ID to the remote-assigned
// positive ID and notifies waiters so listings re-read promptly.
func (c *CacheSyncService) PromoteRequest(oldID, newID int64) error {
	if err := c.store.PromoteRequest(oldID, newID); err != nil {
		return err
	}
	c.setProgress(func(p *models.CacheProgress) {})
	return nil
}
