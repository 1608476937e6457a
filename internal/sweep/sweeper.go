// Package sweep implements the reconciliation job that advances queue entries
// and repairs stuck state. The sweep is the correctness guarantee for the
// whole system: clients and broadcasts only shave latency off what these
// passes would eventually do anyway.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"alertcast/internal/broadcast"
	"alertcast/internal/config"
	"alertcast/internal/engine"
	"alertcast/internal/logging"
	"alertcast/internal/queue"
)

// Notifier receives operator-facing alerts about force-closed entries.
type Notifier interface {
	QueueEntryForceClosed(ctx context.Context, entryID int64, age time.Duration) error
}

// Summary counts what one sweep invocation did.
type Summary struct {
	Promoted       int
	Expired        int
	Stale          int
	ForceCompleted int
}

// Total returns how many rows the sweep touched.
func (s Summary) Total() int {
	return s.Promoted + s.Expired + s.Stale + s.ForceCompleted
}

// Sweeper runs the promote, expire, stale, and dead-letter passes in fixed
// order. Every pass conditions its writes on current status, so overlapping
// invocations and concurrent client activity are safe.
type Sweeper struct {
	coordinator *engine.Coordinator
	store       *queue.Store
	cfg         *config.Config
	notifier    Notifier
	logger      *slog.Logger
}

// New wires a sweeper. notifier may be nil.
func New(coordinator *engine.Coordinator, cfg *config.Config, notifier Notifier, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Sweeper{
		coordinator: coordinator,
		store:       coordinator.Store(),
		cfg:         cfg,
		notifier:    notifier,
		logger:      logging.NewComponentLogger(logger, "sweep"),
	}
}

// Sweep performs one full invocation. Row-level failures are logged and do
// not stop the remaining passes; the joined error reports everything that
// went wrong.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) (Summary, error) {
	var (
		summary Summary
		errs    []error
	)

	promoted, err := s.coordinator.PromoteNext(ctx, now)
	if err != nil {
		errs = append(errs, fmt.Errorf("promote pass: %w", err))
	} else if promoted != nil {
		summary.Promoted++
	}

	count, err := s.completeAll(ctx, now, broadcast.ReasonExpired)
	summary.Expired = count
	if err != nil {
		errs = append(errs, err)
	}

	count, err = s.completeAll(ctx, now, broadcast.ReasonStale)
	summary.Stale = count
	if err != nil {
		errs = append(errs, err)
	}

	count, err = s.deadLetterPass(ctx, now)
	summary.ForceCompleted = count
	if err != nil {
		errs = append(errs, err)
	}

	if summary.Total() > 0 {
		s.logger.Info("sweep advanced queue",
			slog.Int("promoted", summary.Promoted),
			slog.Int("expired", summary.Expired),
			slog.Int("stale", summary.Stale),
			slog.Int("force_completed", summary.ForceCompleted))
	}
	return summary, errors.Join(errs...)
}

func (s *Sweeper) completeAll(ctx context.Context, now time.Time, reason broadcast.Reason) (int, error) {
	var entries []*queue.Entry
	var err error
	switch reason {
	case broadcast.ReasonExpired:
		entries, err = s.store.OverduePlaying(ctx, now)
	case broadcast.ReasonStale:
		entries, err = s.store.StalePlaying(ctx, now.Add(-s.cfg.StaleGrace()))
	default:
		return 0, fmt.Errorf("unsupported sweep reason %q", reason)
	}
	if err != nil {
		return 0, fmt.Errorf("%s pass: %w", reason, err)
	}

	var (
		completed int
		errs      []error
	)
	for _, entry := range entries {
		_, won, err := s.coordinator.Complete(ctx, entry.ID, reason)
		if err != nil {
			s.logger.Warn("sweep completion failed",
				logging.EntryID(entry.ID), logging.Error(err))
			errs = append(errs, fmt.Errorf("%s entry %d: %w", reason, entry.ID, err))
			continue
		}
		if won {
			completed++
		}
	}
	return completed, errors.Join(errs...)
}

// deadLetterPass force-completes any playing entry older than the hard
// ceiling, regardless of deadline bookkeeping. A wedged row is healed here,
// never reported as an error.
func (s *Sweeper) deadLetterPass(ctx context.Context, now time.Time) (int, error) {
	cutoff := now.Add(-s.cfg.DeadLetterCeiling())
	entries, err := s.store.LongRunningPlaying(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("dead-letter pass: %w", err)
	}

	var (
		completed int
		errs      []error
	)
	for _, entry := range entries {
		age := now.Sub(entry.ScheduledFor)
		if entry.ProcessingStartedAt != nil {
			age = now.Sub(*entry.ProcessingStartedAt)
		}
		_, won, err := s.coordinator.Complete(ctx, entry.ID, broadcast.ReasonForceClosed)
		if err != nil {
			errs = append(errs, fmt.Errorf("force close entry %d: %w", entry.ID, err))
			continue
		}
		if !won {
			continue
		}
		completed++
		s.logger.Warn("force closed wedged entry",
			logging.EntryID(entry.ID),
			slog.Duration("age", age))
		if s.notifier != nil {
			if err := s.notifier.QueueEntryForceClosed(ctx, entry.ID, age); err != nil {
				s.logger.Warn("dead-letter notification failed",
					logging.EntryID(entry.ID), logging.Error(err))
			}
		}
	}
	return completed, errors.Join(errs...)
}
