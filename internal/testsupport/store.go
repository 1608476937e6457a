package testsupport

import (
	"context"
	"testing"
	"time"

	"alertcast/internal/alerts"
	"alertcast/internal/config"
	"alertcast/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// SeedDefinition saves an alert definition for tests using the store's
// database handle and returns it with its assigned ID.
func SeedDefinition(t testing.TB, store *queue.Store, slug string, opts ...DefinitionOption) *alerts.Definition {
	t.Helper()

	def := &alerts.Definition{
		Slug:            slug,
		Title:           slug,
		MediaKind:       alerts.KindImage,
		DurationSeconds: 5,
		RepeatCount:     1,
	}
	for _, opt := range opts {
		opt(def)
	}

	if err := alerts.NewStore(store.DB()).Save(context.Background(), def); err != nil {
		t.Fatalf("save alert definition: %v", err)
	}
	return def
}

// DefinitionOption customizes a seeded alert definition.
type DefinitionOption func(*alerts.Definition)

// AsGift marks the seeded definition as a gift alert.
func AsGift() DefinitionOption {
	return func(def *alerts.Definition) {
		def.IsGiftAlert = true
	}
}

// AsVideo marks the seeded definition as video media.
func AsVideo() DefinitionOption {
	return func(def *alerts.Definition) {
		def.MediaKind = alerts.KindVideo
	}
}

// WithDuration sets the display duration on the seeded definition.
func WithDuration(seconds int) DefinitionOption {
	return func(def *alerts.Definition) {
		def.DurationSeconds = seconds
	}
}

// WithRepeat sets repeat count and delay on the seeded definition.
func WithRepeat(count int, delay time.Duration) DefinitionOption {
	return func(def *alerts.Definition) {
		def.RepeatCount = count
		def.RepeatDelay = delay
	}
}

// Enqueue inserts a pending entry for tests and returns it. ScheduledFor is
// pinned to a fixed instant that precedes both the playback rig's fake clock
// seed (2026-03-14T20:00Z) and the real clock, so the entry is immediately
// eligible under either.
func Enqueue(t testing.TB, store *queue.Store, alertID int64) *queue.Entry {
	t.Helper()

	entry, err := store.Enqueue(context.Background(), queue.NewEntry{
		AlertID:      alertID,
		ScheduledFor: time.Date(2026, time.March, 14, 19, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("store.Enqueue: %v", err)
	}
	return entry
}
