package jobs

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/avaliaedu/avalia-backend/internal/types"
)

// control projects the job record's externally-writable status onto the
// running goroutine: pause becomes a flag the runner polls at checkpoints,
// cancel becomes context cancellation.
type control struct {
	paused atomic.Bool
	cancel context.CancelFunc
}

// watch polls the job record until the run's context ends. A status the
// watcher does not own (completed/error) is left alone; the runner writes
// those itself.
func (r *Runner) watch(ctx context.Context, jobID uuid.UUID, ctl *control) {
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		job, err := r.jobs.GetByID(ctx, nil, jobID)
		if err != nil || job == nil {
			continue
		}
		switch job.Status {
		case types.JobStatusPaused:
			ctl.paused.Store(true)
		case types.JobStatusProcessing:
			ctl.paused.Store(false)
		case types.JobStatusCancelled:
			ctl.cancel()
			return
		}
	}
}
