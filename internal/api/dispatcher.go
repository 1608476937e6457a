package api

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"alertcast/internal/alerts"
	"alertcast/internal/logging"
	"alertcast/internal/queue"
)

// Dispatcher turns trigger requests into queue entries. One trigger of a
// repeat-count alert expands into that many entries with staggered
// scheduled_for times, inserted in a single batch.
type Dispatcher struct {
	store  *queue.Store
	defs   *alerts.Store
	logger *slog.Logger
}

// NewDispatcher wires a dispatcher over the shared stores.
func NewDispatcher(store *queue.Store, defs *alerts.Store, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Dispatcher{
		store:  store,
		defs:   defs,
		logger: logging.NewComponentLogger(logger, "dispatch"),
	}
}

// Trigger enqueues the alert identified by slug. username and giftCount are
// optional payload carried through to gift aggregation on completion.
func (d *Dispatcher) Trigger(ctx context.Context, slug, username string, giftCount int64) ([]*queue.Entry, error) {
	def, err := d.defs.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	count := def.RepeatCount
	if count < 1 {
		count = 1
	}
	now := time.Now().UTC()
	batch := make([]queue.NewEntry, 0, count)
	for i := 0; i < count; i++ {
		batch = append(batch, queue.NewEntry{
			AlertID:      def.ID,
			Username:     username,
			GiftCount:    giftCount,
			ScheduledFor: now.Add(time.Duration(i) * def.RepeatDelay),
		})
	}

	entries, err := d.store.EnqueueBatch(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("enqueue alert %q: %w", slug, err)
	}
	d.logger.Info("alert triggered",
		slog.String("slug", def.Slug),
		slog.Int64(logging.FieldAlertID, def.ID),
		slog.Int("entries", len(entries)))
	return entries, nil
}
