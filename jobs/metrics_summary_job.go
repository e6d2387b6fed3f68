package jobs

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tgregoire/invgov-backend/services"
)

// MetricsSummaryJob periodically logs the service, refresh and remote HTTP
// counters so operators get a trend line without an external metrics stack.
type MetricsSummaryJob struct {
	RequestService *services.RequestService
	Sync           *services.CacheSyncService
	Remote         *services.HTTPRemoteStore
	Interval       time.Duration
}

func NewMetricsSummaryJob(requestService *services.RequestService, sync *services.CacheSyncService, remote *services.HTTPRemoteStore, interval time.Duration) *MetricsSummaryJob {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &MetricsSummaryJob{
		RequestService: requestService,
		Sync:           sync,
		Remote:         remote,
		Interval:       interval,
	}
}

func (j *MetricsSummaryJob) Start() {
	logrus.Infof("Starting Metrics Summary Job (runs every %v)...", j.Interval)
	ticker := time.NewTicker(j.Interval)

	go func() {
		for range ticker.C {
			j.Run()
		}
	}()
}

func (j *MetricsSummaryJob) Run() {
	j.RequestService.Metrics().LogSummary()
	j.Sync.Metrics().LogSummary()
	if j.Remote != nil {
		j.Remote.Metrics().LogHTTPSummary()
	}
}
