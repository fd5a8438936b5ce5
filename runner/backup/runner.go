package backup

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/adhocore/gronx"
	"github.com/pkg/errors"
)

// Runner fires the backup executor on a cron schedule. Backup failures are
// logged and never affect serving.
type Runner struct {
	executor *Executor
	schedule string
	maxCount int
	maxDays  int

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRunner validates the cron expression and builds the runner.
func NewRunner(executor *Executor, schedule string, maxCount, maxDays int) (*Runner, error) {
	if !gronx.New().IsValid(schedule) {
		return nil, errors.Errorf("invalid backup cron expression: %s", schedule)
	}
	return &Runner{
		executor: executor,
		schedule: schedule,
		maxCount: maxCount,
		maxDays:  maxDays,
	}, nil
}

// Run starts the scheduling loop. It returns immediately; the loop runs until
// ctx is cancelled or Destroy is called.
func (r *Runner) Run(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	r.wg.Add(1)
	go r.loop(ctx)
	slog.Info("backup runner started", slog.String("schedule", r.schedule))
}

// Destroy cancels in-flight work and waits for the loop to exit.
func (r *Runner) Destroy() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
	slog.Info("backup runner stopped")
}

func (r *Runner) loop(ctx context.Context) {
	defer r.wg.Done()
	for {
		next, err := gronx.NextTickAfter(r.schedule, time.Now(), false)
		if err != nil {
			slog.Error("failed to compute next backup tick",
				slog.String("schedule", r.schedule),
				slog.String("error", err.Error()))
			return
		}

		timer := time.NewTimer(time.Until(next))
		select {
		case <-timer.C:
			r.runOnce(ctx)
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

// RunOnce triggers a single backup plus retention cleanup, outside the
// schedule.
func (r *Runner) RunOnce(ctx context.Context) {
	r.runOnce(ctx)
}

func (r *Runner) runOnce(ctx context.Context) {
	key, err := r.executor.ExecuteBackup(ctx)
	if err != nil {
		slog.Error("backup failed", slog.String("error", err.Error()))
		return
	}
	slog.Info("backup completed", slog.String("key", key))

	if err := r.executor.CleanupOldBackups(ctx, r.maxCount, r.maxDays); err != nil {
		slog.Warn("backup cleanup failed", slog.String("error", err.Error()))
	}
}
