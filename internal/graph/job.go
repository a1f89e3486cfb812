package graph

import (
	"context"
	"time"

	"github.com/onnwee/forcemap/internal/logger"
)

// Job periodically recomputes layouts for every graph.
type Job struct {
	service  *Service
	interval time.Duration
}

func NewJob(service *Service, interval time.Duration) *Job {
	return &Job{service: service, interval: interval}
}

// Start blocks until ctx is cancelled, running RelayoutAll immediately and
// then once per interval. The immediate pass gives fresh deployments
// positions without waiting out the first tick.
func (j *Job) Start(ctx context.Context) {
	log := logger.WithComponent("relayout-job")
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	if err := j.service.RelayoutAll(ctx); err != nil {
		log.Error("Failed to recompute layouts", "error", err)
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := j.service.RelayoutAll(ctx); err != nil {
				log.Error("Failed to recompute layouts", "error", err)
			}
		}
	}
}
