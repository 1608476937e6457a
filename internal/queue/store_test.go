package queue_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"alertcast/internal/queue"
	"alertcast/internal/testsupport"
)

func TestEnqueuePreservesSubmissionOrder(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	def := testsupport.SeedDefinition(t, store, "follow")
	ctx := context.Background()

	var ids []int64
	for i := 0; i < 4; i++ {
		entry, err := store.Enqueue(ctx, queue.NewEntry{AlertID: def.ID})
		if err != nil {
			t.Fatalf("enqueue: %v", err)
		}
		ids = append(ids, entry.ID)
	}

	pending, err := store.List(ctx, queue.StatusPending)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != len(ids) {
		t.Fatalf("expected %d pending entries, got %d", len(ids), len(pending))
	}
	for i, entry := range pending {
		if entry.ID != ids[i] {
			t.Fatalf("position %d: expected entry %d, got %d", i, ids[i], entry.ID)
		}
	}
}

func TestEnqueueBatchStaggersScheduledFor(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	def := testsupport.SeedDefinition(t, store, "mega-gift", testsupport.AsGift(), testsupport.WithRepeat(3, time.Second))
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Millisecond)
	batch := make([]queue.NewEntry, 0, def.RepeatCount)
	for i := 0; i < def.RepeatCount; i++ {
		batch = append(batch, queue.NewEntry{
			AlertID:      def.ID,
			Username:     "bits4days",
			GiftCount:    5,
			ScheduledFor: base.Add(time.Duration(i) * def.RepeatDelay),
		})
	}

	entries, err := store.EnqueueBatch(ctx, batch)
	if err != nil {
		t.Fatalf("enqueue batch: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	for i, entry := range entries {
		if entry.AlertID != def.ID {
			t.Fatalf("entry %d: alert id %d, want %d", i, entry.AlertID, def.ID)
		}
		if entry.Username != "bits4days" {
			t.Fatalf("entry %d: username %q", i, entry.Username)
		}
		want := base.Add(time.Duration(i) * time.Second)
		if !entry.ScheduledFor.Equal(want) {
			t.Fatalf("entry %d: scheduled_for %s, want %s", i, entry.ScheduledFor, want)
		}
	}
	gap := entries[2].ScheduledFor.Sub(entries[1].ScheduledFor)
	if gap != time.Second {
		t.Fatalf("expected 1s stagger, got %s", gap)
	}
}

func TestMarkPlayingSingleWinner(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	def := testsupport.SeedDefinition(t, store, "raid")
	entry := testsupport.Enqueue(t, store, def.ID)
	ctx := context.Background()

	const attempts = 8
	deadline := time.Now().UTC().Add(5 * time.Second)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			won, err := store.MarkPlaying(ctx, entry.ID, time.Now().UTC(), &deadline)
			if err != nil {
				t.Errorf("mark playing: %v", err)
				return
			}
			if won {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if winners != 1 {
		t.Fatalf("expected exactly one winner, got %d", winners)
	}
	updated, err := store.GetByID(ctx, entry.ID)
	if err != nil {
		t.Fatalf("get entry: %v", err)
	}
	if updated.Status != queue.StatusPlaying {
		t.Fatalf("status %s, want playing", updated.Status)
	}
	if updated.ProcessingStartedAt == nil || updated.ScheduledCompletion == nil {
		t.Fatal("expected start and deadline to be stamped")
	}
}

func TestMarkPlayingRejectsSecondSlotOccupant(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	def := testsupport.SeedDefinition(t, store, "sub")
	first := testsupport.Enqueue(t, store, def.ID)
	second := testsupport.Enqueue(t, store, def.ID)
	ctx := context.Background()

	won, err := store.MarkPlaying(ctx, first.ID, time.Now().UTC(), nil)
	if err != nil || !won {
		t.Fatalf("first promotion: won=%v err=%v", won, err)
	}
	won, err = store.MarkPlaying(ctx, second.ID, time.Now().UTC(), nil)
	if err != nil {
		t.Fatalf("second promotion returned error: %v", err)
	}
	if won {
		t.Fatal("second promotion succeeded while slot occupied")
	}

	playing, err := store.List(ctx, queue.StatusPlaying)
	if err != nil {
		t.Fatalf("list playing: %v", err)
	}
	if len(playing) != 1 {
		t.Fatalf("expected one playing entry, got %d", len(playing))
	}
}

func TestCompletePlayingIsConditional(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	def := testsupport.SeedDefinition(t, store, "cheer")
	entry := testsupport.Enqueue(t, store, def.ID)
	ctx := context.Background()

	if _, _, err := store.CompletePlaying(ctx, entry.ID); err != nil {
		t.Fatalf("complete pending: %v", err)
	}
	if fresh, _ := store.GetByID(ctx, entry.ID); fresh.Status != queue.StatusPending {
		t.Fatalf("completing a pending row changed status to %s", fresh.Status)
	}

	if won, err := store.MarkPlaying(ctx, entry.ID, time.Now().UTC(), nil); err != nil || !won {
		t.Fatalf("promotion: won=%v err=%v", won, err)
	}

	completed, won, err := store.CompletePlaying(ctx, entry.ID)
	if err != nil {
		t.Fatalf("complete playing: %v", err)
	}
	if !won || completed == nil {
		t.Fatal("expected first completion to win")
	}
	if completed.CompletedAt == nil || completed.PlayedAt == nil {
		t.Fatal("expected completed_at and played_at to be stamped")
	}

	again, won, err := store.CompletePlaying(ctx, entry.ID)
	if err != nil {
		t.Fatalf("repeat completion: %v", err)
	}
	if won || again != nil {
		t.Fatal("repeat completion on a completed row should lose quietly")
	}
}

func TestNextEligiblePendingHonorsSchedule(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	def := testsupport.SeedDefinition(t, store, "hype")
	ctx := context.Background()
	now := time.Now().UTC()

	future, err := store.Enqueue(ctx, queue.NewEntry{AlertID: def.ID, ScheduledFor: now.Add(time.Hour)})
	if err != nil {
		t.Fatalf("enqueue future: %v", err)
	}
	due, err := store.Enqueue(ctx, queue.NewEntry{AlertID: def.ID, ScheduledFor: now.Add(-time.Second)})
	if err != nil {
		t.Fatalf("enqueue due: %v", err)
	}

	next, err := store.NextEligiblePending(ctx, now)
	if err != nil {
		t.Fatalf("next eligible: %v", err)
	}
	if next == nil || next.ID != due.ID {
		t.Fatalf("expected due entry %d, got %+v", due.ID, next)
	}

	next, err = store.NextEligiblePending(ctx, now.Add(-time.Minute))
	if err != nil {
		t.Fatalf("next eligible before schedule: %v", err)
	}
	if next != nil {
		t.Fatalf("expected nothing due, got entry %d", next.ID)
	}
	_ = future
}

func TestSweepSelections(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	def := testsupport.SeedDefinition(t, store, "stinger")
	ctx := context.Background()
	now := time.Now().UTC()

	overdue := testsupport.Enqueue(t, store, def.ID)
	pastDeadline := now.Add(-10 * time.Second)
	if won, err := store.MarkPlaying(ctx, overdue.ID, now.Add(-30*time.Second), &pastDeadline); err != nil || !won {
		t.Fatalf("promote overdue: won=%v err=%v", won, err)
	}

	found, err := store.OverduePlaying(ctx, now)
	if err != nil {
		t.Fatalf("overdue playing: %v", err)
	}
	if len(found) != 1 || found[0].ID != overdue.ID {
		t.Fatalf("expected overdue entry %d, got %v", overdue.ID, found)
	}

	if _, won, err := store.CompletePlaying(ctx, overdue.ID); err != nil || !won {
		t.Fatalf("complete overdue: won=%v err=%v", won, err)
	}

	stale := testsupport.Enqueue(t, store, def.ID)
	if won, err := store.MarkPlaying(ctx, stale.ID, now.Add(-time.Minute), nil); err != nil || !won {
		t.Fatalf("promote stale: won=%v err=%v", won, err)
	}

	staleRows, err := store.StalePlaying(ctx, now.Add(-10*time.Second))
	if err != nil {
		t.Fatalf("stale playing: %v", err)
	}
	if len(staleRows) != 1 || staleRows[0].ID != stale.ID {
		t.Fatalf("expected stale entry %d, got %v", stale.ID, staleRows)
	}

	longRows, err := store.LongRunningPlaying(ctx, now.Add(-30*time.Second))
	if err != nil {
		t.Fatalf("long running playing: %v", err)
	}
	if len(longRows) != 1 || longRows[0].ID != stale.ID {
		t.Fatalf("expected long-running entry %d, got %v", stale.ID, longRows)
	}
}

func TestListHistoryPagesNewestFirst(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	def := testsupport.SeedDefinition(t, store, "donate")
	ctx := context.Background()

	var ids []int64
	for i := 0; i < 5; i++ {
		entry := testsupport.Enqueue(t, store, def.ID)
		ids = append(ids, entry.ID)
	}

	page1, err := store.ListHistory(ctx, 1, 2)
	if err != nil {
		t.Fatalf("history page 1: %v", err)
	}
	if len(page1) != 2 || page1[0].ID != ids[4] || page1[1].ID != ids[3] {
		t.Fatalf("unexpected first page: %v", page1)
	}

	page3, err := store.ListHistory(ctx, 3, 2)
	if err != nil {
		t.Fatalf("history page 3: %v", err)
	}
	if len(page3) != 1 || page3[0].ID != ids[0] {
		t.Fatalf("unexpected last page: %v", page3)
	}
}

func TestCountActiveAndClearCompleted(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	def := testsupport.SeedDefinition(t, store, "shoutout")
	ctx := context.Background()

	first := testsupport.Enqueue(t, store, def.ID)
	testsupport.Enqueue(t, store, def.ID)

	if won, err := store.MarkPlaying(ctx, first.ID, time.Now().UTC(), nil); err != nil || !won {
		t.Fatalf("promote: won=%v err=%v", won, err)
	}
	if _, won, err := store.CompletePlaying(ctx, first.ID); err != nil || !won {
		t.Fatalf("complete: won=%v err=%v", won, err)
	}

	active, err := store.CountActive(ctx)
	if err != nil {
		t.Fatalf("count active: %v", err)
	}
	if active != 1 {
		t.Fatalf("expected 1 active entry, got %d", active)
	}

	removed, err := store.ClearCompleted(ctx)
	if err != nil {
		t.Fatalf("clear completed: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 cleared row, got %d", removed)
	}

	health, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if health.Total != 1 || health.Pending != 1 || health.Completed != 0 {
		t.Fatalf("unexpected health summary: %+v", health)
	}
}

func TestRemoveEntry(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	def := testsupport.SeedDefinition(t, store, "bye")
	entry := testsupport.Enqueue(t, store, def.ID)
	ctx := context.Background()

	removed, err := store.Remove(ctx, entry.ID)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if !removed {
		t.Fatal("expected removal to report success")
	}
	removed, err = store.Remove(ctx, entry.ID)
	if err != nil {
		t.Fatalf("second remove: %v", err)
	}
	if removed {
		t.Fatal("second removal should report no rows")
	}
}
