package sweep

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"alertcast/internal/config"
	"alertcast/internal/logging"
)

// Runner drives the sweeper on a fixed cadence for daemon operation.
type Runner struct {
	sweeper  *Sweeper
	interval time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// NewRunner wraps a sweeper with the configured interval.
func NewRunner(sweeper *Sweeper, cfg *config.Config, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Runner{
		sweeper:  sweeper,
		interval: cfg.SweepInterval(),
		logger:   logging.NewComponentLogger(logger, "sweep-runner"),
	}
}

// Start launches the sweep loop. The first sweep runs immediately so a
// restarted daemon repairs state without waiting a full interval.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	r.running = true

	go func() {
		defer close(r.done)
		r.runOnce(ctx)

		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.runOnce(ctx)
			}
		}
	}()
}

func (r *Runner) runOnce(ctx context.Context) {
	if _, err := r.sweeper.Sweep(ctx, time.Now().UTC()); err != nil && ctx.Err() == nil {
		r.logger.Warn("sweep reported errors", logging.Error(err))
	}
}

// Stop halts the loop and waits for any in-flight sweep to finish.
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	cancel := r.cancel
	done := r.done
	r.running = false
	r.mu.Unlock()

	cancel()
	<-done
}
