package api_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"alertcast/internal/alerts"
	"alertcast/internal/api"
	"alertcast/internal/logging"
	"alertcast/internal/queue"
	"alertcast/internal/testsupport"
)

func TestTriggerExpandsRepeatCount(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	def := testsupport.SeedDefinition(t, store, "mega-gift", testsupport.AsGift(), testsupport.WithRepeat(3, time.Second))
	dispatcher := api.NewDispatcher(store, alerts.NewStore(store.DB()), logging.NewNop())

	entries, err := dispatcher.Trigger(context.Background(), "mega-gift", "bits4days", 5)
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	for i, entry := range entries {
		if entry.AlertID != def.ID || entry.Username != "bits4days" || entry.GiftCount != 5 {
			t.Fatalf("entry %d has wrong payload: %+v", i, entry)
		}
		if entry.Status != queue.StatusPending {
			t.Fatalf("entry %d status %s", i, entry.Status)
		}
	}
	for i := 1; i < len(entries); i++ {
		gap := entries[i].ScheduledFor.Sub(entries[i-1].ScheduledFor)
		if gap != time.Second {
			t.Fatalf("entries %d/%d staggered by %s, want 1s", i-1, i, gap)
		}
	}
}

func TestTriggerSingleShotByDefault(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	testsupport.SeedDefinition(t, store, "follow")
	dispatcher := api.NewDispatcher(store, alerts.NewStore(store.DB()), logging.NewNop())

	entries, err := dispatcher.Trigger(context.Background(), "follow", "", 0)
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Username != "" || entries[0].GiftCount != 0 {
		t.Fatalf("expected empty payload, got %+v", entries[0])
	}
}

func TestTriggerUnknownSlug(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	dispatcher := api.NewDispatcher(store, alerts.NewStore(store.DB()), logging.NewNop())

	_, err := dispatcher.Trigger(context.Background(), "nope", "", 0)
	if !errors.Is(err, alerts.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
