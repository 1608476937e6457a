// Package engine coordinates queue lifecycle transitions. Every promotion and
// completion in the daemon flows through one Coordinator so the fan-out work
// that follows a completion happens exactly once, on the writer that won the
// conditional update.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"alertcast/internal/alerts"
	"alertcast/internal/broadcast"
	"alertcast/internal/config"
	"alertcast/internal/logging"
	"alertcast/internal/queue"
	"alertcast/internal/stats"
)

// Publisher is the completion fan-out surface the coordinator needs.
type Publisher interface {
	PublishCompletion(ctx context.Context, event broadcast.CompletionEvent) error
}

// Recorder consumes completed gift alerts.
type Recorder interface {
	Record(ctx context.Context, completion stats.Completion) (bool, error)
}

// Coordinator owns the promote and complete paths over the queue store.
type Coordinator struct {
	store     *queue.Store
	defs      *alerts.Store
	cfg       *config.Config
	publisher Publisher
	recorder  Recorder
	logger    *slog.Logger
}

// New wires a coordinator. publisher and recorder may be nil in tools that
// only need promotion (the CLI's one-shot sweep passes both).
func New(store *queue.Store, defs *alerts.Store, cfg *config.Config, publisher Publisher, recorder Recorder, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Coordinator{
		store:     store,
		defs:      defs,
		cfg:       cfg,
		publisher: publisher,
		recorder:  recorder,
		logger:    logging.NewComponentLogger(logger, "engine"),
	}
}

// PromoteNext attempts to move the oldest eligible pending entry into the
// now-playing slot. It re-reads the pause flag on every call rather than
// caching it, and returns nil when nothing was promoted: paused, slot
// occupied, nothing due, or another writer won the race.
func (c *Coordinator) PromoteNext(ctx context.Context, now time.Time) (*queue.Entry, error) {
	paused, err := c.store.IsPaused(ctx)
	if err != nil {
		return nil, fmt.Errorf("read pause flag: %w", err)
	}
	if paused {
		return nil, nil
	}

	playing, err := c.store.CurrentlyPlaying(ctx)
	if err != nil {
		return nil, err
	}
	if playing != nil {
		return nil, nil
	}

	next, err := c.store.NextEligiblePending(ctx, now)
	if err != nil {
		return nil, err
	}
	if next == nil {
		return nil, nil
	}

	deadline := c.resolveDeadline(ctx, next, now)
	won, err := c.store.MarkPlaying(ctx, next.ID, now, deadline)
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, nil
	}

	promoted, err := c.store.GetByID(ctx, next.ID)
	if err != nil {
		return nil, err
	}
	if promoted == nil {
		// The row was removed between winning the slot and this read, so
		// the slot is already free again.
		c.logger.Warn("promoted entry removed before read back",
			logging.EntryID(next.ID))
		return nil, nil
	}
	c.logger.Info("promoted entry",
		logging.EntryID(promoted.ID),
		slog.Int64(logging.FieldAlertID, promoted.AlertID))
	return promoted, nil
}

// resolveDeadline computes scheduled_completion for a promotion. Video alerts
// get no deadline: the media's own end signal completes them, and the stale
// sweep bounds how long they may linger if that signal never arrives.
func (c *Coordinator) resolveDeadline(ctx context.Context, entry *queue.Entry, now time.Time) *time.Time {
	duration := c.cfg.DefaultDuration()
	def, err := c.defs.GetByID(ctx, entry.AlertID)
	switch {
	case errors.Is(err, alerts.ErrNotFound):
		c.logger.Warn("promoting entry with missing alert definition",
			logging.EntryID(entry.ID),
			slog.Int64(logging.FieldAlertID, entry.AlertID))
	case err != nil:
		c.logger.Warn("alert definition lookup failed, using default duration",
			logging.EntryID(entry.ID), logging.Error(err))
	default:
		if def.MediaKind == alerts.KindVideo {
			return nil
		}
		if authored := def.Duration(); authored > 0 {
			duration = authored
		}
	}
	deadline := now.Add(duration)
	return &deadline
}

// Complete conditionally finishes a playing entry. The winner publishes one
// completion event and feeds the gift aggregator; losers return (nil, false,
// nil) and perform no side effects.
func (c *Coordinator) Complete(ctx context.Context, id int64, reason broadcast.Reason) (*queue.Entry, bool, error) {
	entry, won, err := c.store.CompletePlaying(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if !won {
		return nil, false, nil
	}

	isGift := c.isGiftAlert(ctx, entry)
	completedAt := time.Now().UTC()
	if entry.CompletedAt != nil {
		completedAt = *entry.CompletedAt
	}

	if c.publisher != nil {
		event := broadcast.CompletionEvent{
			EntryID:     entry.ID,
			AlertID:     entry.AlertID,
			Username:    entry.Username,
			GiftCount:   entry.GiftCount,
			IsGiftAlert: isGift,
			Reason:      reason,
			CompletedAt: completedAt,
		}
		if err := c.publisher.PublishCompletion(ctx, event); err != nil {
			// Broadcast is a latency optimization; the sweep converges
			// subscribers that miss it.
			c.logger.Warn("completion broadcast failed",
				logging.EntryID(entry.ID), logging.Error(err))
		}
	}

	if c.recorder != nil {
		completion := stats.Completion{
			EntryID:     entry.ID,
			AlertID:     entry.AlertID,
			Username:    entry.Username,
			GiftCount:   entry.GiftCount,
			IsGiftAlert: isGift,
			CompletedAt: completedAt,
		}
		if _, err := c.recorder.Record(ctx, completion); err != nil {
			c.logger.Warn("gift aggregation failed",
				logging.EntryID(entry.ID), logging.Error(err))
		}
	}

	c.logger.Info("completed entry",
		logging.EntryID(entry.ID),
		slog.String(logging.FieldReason, string(reason)))
	return entry, true, nil
}

func (c *Coordinator) isGiftAlert(ctx context.Context, entry *queue.Entry) bool {
	def, err := c.defs.GetByID(ctx, entry.AlertID)
	switch {
	case errors.Is(err, alerts.ErrNotFound):
		return false
	case err != nil:
		c.logger.Warn("gift flag lookup failed, treating completion as non-gift",
			logging.EntryID(entry.ID),
			slog.Int64(logging.FieldAlertID, entry.AlertID),
			logging.Error(err))
		return false
	}
	return def.IsGiftAlert
}

// Store exposes the queue store for callers wired only with a coordinator.
func (c *Coordinator) Store() *queue.Store {
	return c.store
}

// Definitions exposes the alert definition store.
func (c *Coordinator) Definitions() *alerts.Store {
	return c.defs
}
