package api_test

import (
	"context"
	"testing"
	"time"

	"alertcast/internal/api"
	"alertcast/internal/queue"
	"alertcast/internal/testsupport"
)

func TestQueueServiceListAndStats(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	def := testsupport.SeedDefinition(t, store, "follow")
	svc := api.NewQueueService(store)
	ctx := context.Background()

	first := testsupport.Enqueue(t, store, def.ID)
	testsupport.Enqueue(t, store, def.ID)
	if won, err := store.MarkPlaying(ctx, first.ID, time.Now().UTC(), nil); err != nil || !won {
		t.Fatalf("promote: won=%v err=%v", won, err)
	}

	pending, err := svc.List(ctx, queue.StatusPending)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(pending) != 1 || pending[0].Status != "pending" {
		t.Fatalf("unexpected pending list: %+v", pending)
	}

	counts, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if counts["pending"] != 1 || counts["playing"] != 1 || counts["completed"] != 0 {
		t.Fatalf("unexpected stats: %v", counts)
	}

	count, err := svc.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 active entries, got %d", count)
	}
}

func TestMergeQueueStatsFillsEveryStatus(t *testing.T) {
	merged := api.MergeQueueStats(map[queue.Status]int{queue.StatusPlaying: 1})

	statuses := queue.AllStatuses()
	if len(merged) != len(statuses) {
		t.Fatalf("expected %d keys, got %v", len(statuses), merged)
	}
	for _, status := range statuses {
		if _, ok := merged[string(status)]; !ok {
			t.Fatalf("missing status %q in %v", status, merged)
		}
	}
	if merged["playing"] != 1 || merged["pending"] != 0 {
		t.Fatalf("unexpected counts: %v", merged)
	}
}

func TestQueueServiceDescribe(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	def := testsupport.SeedDefinition(t, store, "sub")
	entry := testsupport.Enqueue(t, store, def.ID)
	svc := api.NewQueueService(store)
	ctx := context.Background()

	dto, err := svc.Describe(ctx, entry.ID)
	if err != nil {
		t.Fatalf("describe: %v", err)
	}
	if dto == nil || dto.ID != entry.ID || dto.AlertID != def.ID {
		t.Fatalf("unexpected dto: %+v", dto)
	}
	if dto.CreatedAt == "" || dto.ScheduledFor == "" {
		t.Fatalf("expected timestamps, got %+v", dto)
	}
	if dto.CompletedAt != "" {
		t.Fatalf("pending entry has completedAt %q", dto.CompletedAt)
	}

	missing, err := svc.Describe(ctx, entry.ID+100)
	if err != nil {
		t.Fatalf("describe missing: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for missing entry, got %+v", missing)
	}
}

func TestQueueServiceHistory(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	def := testsupport.SeedDefinition(t, store, "cheer")
	svc := api.NewQueueService(store)
	ctx := context.Background()

	var last int64
	for i := 0; i < 3; i++ {
		last = testsupport.Enqueue(t, store, def.ID).ID
	}

	page, err := svc.History(ctx, 1, 2)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(page) != 2 || page[0].ID != last {
		t.Fatalf("unexpected history page: %+v", page)
	}
}
