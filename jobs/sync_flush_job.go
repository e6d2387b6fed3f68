package jobs

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tgregoire/invgov-backend/services"
)

// SyncFlushJob replays the pending sync journal against the remote system of
// record. Writes queued while the remote was unreachable drain here.
type SyncFlushJob struct {
	Service  *services.RequestService
	Interval time.Duration
}

func NewSyncFlushJob(service *services.RequestService, interval time.Duration) *SyncFlushJob {
	if interval <= 0 {
		interval = 1 * time.Minute
	}
	return &SyncFlushJob{Service: service, Interval: interval}
}

func (j *SyncFlushJob) Start() {
	logrus.Infof("Starting Sync Flush Job (runs every %v)...", j.Interval)
	ticker := time.NewTicker(j.Interval)

	go func() {
		for range ticker.C {
			j.Run()
		}
	}()
}

func (j *SyncFlushJob) Run() {
	startTime := time.Now()
	logrus.Debug("Running Sync Flush Job...")

	j.Service.FlushPending()

	logrus.Debugf("Sync Flush Job completed (took %v)", time.Since(startTime))
}
