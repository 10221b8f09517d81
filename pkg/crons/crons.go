package crons

import (
	"context"
	"sync/atomic"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job is one reconciliation pass. Jobs are re-run on their schedule and must
// tolerate partial previous runs.
type Job interface {
	Run(ctx context.Context) error
}

// Runner schedules reconciliation jobs. Each job carries an in-memory
// re-entrancy flag: a tick that fires while the previous run is still in
// flight is skipped. This assumes a single process instance owns the cron
// schedule.
type Runner struct {
	cron   *cron.Cron
	ctx    context.Context
	logger *zap.Logger
}

func NewRunner(ctx context.Context, logger *zap.Logger) *Runner {
	return &Runner{
		cron:   cron.New(),
		ctx:    ctx,
		logger: logger.Named("crons"),
	}
}

// Add schedules a job with a standard 5-field cron expression.
func (r *Runner) Add(name, schedule string, job Job) error {
	var running atomic.Bool

	_, err := r.cron.AddFunc(schedule, func() {
		if !running.CompareAndSwap(false, true) {
			r.logger.Warn("previous run still in flight, skipping", zap.String("job", name))
			return
		}
		defer running.Store(false)

		if err := job.Run(r.ctx); err != nil {
			r.logger.Error("cron job failed", zap.String("job", name), zap.Error(err))
		}
	})
	return err
}

// Start begins scheduling. Jobs run on their own goroutines.
func (r *Runner) Start() {
	r.cron.Start()
}

// Stop halts scheduling and waits for in-flight jobs to finish.
func (r *Runner) Stop() {
	<-r.cron.Stop().Done()
}
