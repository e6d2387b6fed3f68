package jobs

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tgregoire/invgov-backend/services"
)

// CacheRefreshJob runs the staged cache refresh on startup and then on a
// fixed interval. The synchronizer's non-reentrancy means an operator-
// triggered refresh mid-interval is joined, not duplicated.
type CacheRefreshJob struct {
	Sync     *services.CacheSyncService
	Interval time.Duration
}

func NewCacheRefreshJob(sync *services.CacheSyncService, interval time.Duration) *CacheRefreshJob {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	return &CacheRefreshJob{Sync: sync, Interval: interval}
}

func (j *CacheRefreshJob) Start() {
	logrus.Infof("Starting Cache Refresh Job (runs every %v)...", j.Interval)
	ticker := time.NewTicker(j.Interval)

	go func() {
		// Run immediately on start
		j.Run()

		for range ticker.C {
			j.Run()
		}
	}()
}

func (j *CacheRefreshJob) Run() {
	startTime := time.Now()
	logrus.Info("Running Cache Refresh Job...")

	j.Sync.Refresh()

	progress := j.Sync.Progress()
	if progress.Status == "error" {
		logrus.Errorf("Cache Refresh Job failed: %s", progress.Message)
		return
	}

	logrus.Infof("Cache Refresh Job completed: %d/%d steps (took %v)",
		progress.StepsCompleted, progress.TotalSteps, time.Since(startTime))
}
