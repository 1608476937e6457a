package sweep_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"alertcast/internal/alerts"
	"alertcast/internal/broadcast"
	"alertcast/internal/config"
	"alertcast/internal/engine"
	"alertcast/internal/logging"
	"alertcast/internal/queue"
	"alertcast/internal/stats"
	"alertcast/internal/sweep"
	"alertcast/internal/testsupport"
)

type countingPublisher struct {
	mu     sync.Mutex
	events []broadcast.CompletionEvent
}

func (p *countingPublisher) PublishCompletion(_ context.Context, event broadcast.CompletionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *countingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

type forceCloseRecorder struct {
	mu      sync.Mutex
	entries []int64
}

func (n *forceCloseRecorder) QueueEntryForceClosed(_ context.Context, entryID int64, _ time.Duration) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.entries = append(n.entries, entryID)
	return nil
}

type harness struct {
	cfg       *config.Config
	store     *queue.Store
	sweeper   *sweep.Sweeper
	publisher *countingPublisher
	notifier  *forceCloseRecorder
	agg       *stats.Aggregator
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	publisher := &countingPublisher{}
	agg := stats.NewAggregator(store.DB(), logging.NewNop())
	coordinator := engine.New(store, alerts.NewStore(store.DB()), cfg, publisher, agg, logging.NewNop())
	notifier := &forceCloseRecorder{}
	return &harness{
		cfg:       cfg,
		store:     store,
		sweeper:   sweep.New(coordinator, cfg, notifier, logging.NewNop()),
		publisher: publisher,
		notifier:  notifier,
		agg:       agg,
	}
}

func TestSweepPromotesNextAfterExpiry(t *testing.T) {
	h := newHarness(t)
	def := testsupport.SeedDefinition(t, h.store, "follow")
	ctx := context.Background()

	a := testsupport.Enqueue(t, h.store, def.ID)
	b := testsupport.Enqueue(t, h.store, def.ID)

	now := time.Now().UTC()
	summary, err := h.sweeper.Sweep(ctx, now)
	if err != nil {
		t.Fatalf("first sweep: %v", err)
	}
	if summary.Promoted != 1 {
		t.Fatalf("expected one promotion, got %+v", summary)
	}
	playing, _ := h.store.CurrentlyPlaying(ctx)
	if playing == nil || playing.ID != a.ID {
		t.Fatalf("expected entry %d playing, got %+v", a.ID, playing)
	}

	// Past A's deadline: the expire pass completes it, and the following
	// sweep promotes B.
	later := playing.ScheduledCompletion.Add(time.Second)
	summary, err = h.sweeper.Sweep(ctx, later)
	if err != nil {
		t.Fatalf("expiry sweep: %v", err)
	}
	if summary.Expired != 1 {
		t.Fatalf("expected one expiry, got %+v", summary)
	}

	summary, err = h.sweeper.Sweep(ctx, later)
	if err != nil {
		t.Fatalf("promotion sweep: %v", err)
	}
	if summary.Promoted != 1 {
		t.Fatalf("expected promotion of next entry, got %+v", summary)
	}
	playing, _ = h.store.CurrentlyPlaying(ctx)
	if playing == nil || playing.ID != b.ID {
		t.Fatalf("expected entry %d playing, got %+v", b.ID, playing)
	}
}

func TestSweepExpiryIsIdempotent(t *testing.T) {
	h := newHarness(t)
	def := testsupport.SeedDefinition(t, h.store, "cheer", testsupport.AsGift())
	ctx := context.Background()

	entry, err := h.store.Enqueue(ctx, queue.NewEntry{AlertID: def.ID, Username: "bits4days", GiftCount: 5})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	now := time.Now().UTC()
	deadline := now.Add(-time.Second)
	if won, err := h.store.MarkPlaying(ctx, entry.ID, now.Add(-10*time.Second), &deadline); err != nil || !won {
		t.Fatalf("promote: won=%v err=%v", won, err)
	}

	for i := 0; i < 2; i++ {
		if _, err := h.sweeper.Sweep(ctx, now); err != nil {
			t.Fatalf("sweep %d: %v", i, err)
		}
	}

	if h.publisher.count() != 1 {
		t.Fatalf("expected exactly one broadcast, got %d", h.publisher.count())
	}
	record, err := h.agg.StatsFor(ctx, "bits4days")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if record == nil || record.TotalGifts != 5 {
		t.Fatalf("expected total 5, got %+v", record)
	}
}

func TestSweeperOnlyRecovery(t *testing.T) {
	// Every client crashed immediately after promotion: the sweeps alone
	// must drive every entry to completed.
	h := newHarness(t)
	def := testsupport.SeedDefinition(t, h.store, "sub", testsupport.WithDuration(1))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		testsupport.Enqueue(t, h.store, def.ID)
	}

	now := time.Now().UTC()
	for i := 0; i < 12; i++ {
		if _, err := h.sweeper.Sweep(ctx, now); err != nil {
			t.Fatalf("sweep %d: %v", i, err)
		}
		now = now.Add(2 * time.Second)
	}

	health, err := h.store.Health(ctx)
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if health.Completed != 3 || health.Pending != 0 || health.Playing != 0 {
		t.Fatalf("queue not drained: %+v", health)
	}
}

func TestSweepCompletesStaleEntriesWithoutDeadline(t *testing.T) {
	h := newHarness(t)
	def := testsupport.SeedDefinition(t, h.store, "stinger", testsupport.AsVideo())
	entry := testsupport.Enqueue(t, h.store, def.ID)
	ctx := context.Background()
	now := time.Now().UTC()

	if won, err := h.store.MarkPlaying(ctx, entry.ID, now.Add(-30*time.Second), nil); err != nil || !won {
		t.Fatalf("promote: won=%v err=%v", won, err)
	}

	summary, err := h.sweeper.Sweep(ctx, now)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if summary.Stale != 1 {
		t.Fatalf("expected one stale completion, got %+v", summary)
	}
	event := h.publisher.events[0]
	if event.Reason != broadcast.ReasonStale {
		t.Fatalf("expected stale reason, got %s", event.Reason)
	}
}

func TestSweepForceClosesWedgedEntries(t *testing.T) {
	h := newHarness(t)
	def := testsupport.SeedDefinition(t, h.store, "raid")
	entry := testsupport.Enqueue(t, h.store, def.ID)
	ctx := context.Background()
	now := time.Now().UTC()

	// Started long ago with a far-future deadline: only the dead-letter
	// ceiling catches it.
	farFuture := now.Add(time.Hour)
	if won, err := h.store.MarkPlaying(ctx, entry.ID, now.Add(-20*time.Minute), &farFuture); err != nil || !won {
		t.Fatalf("promote: won=%v err=%v", won, err)
	}

	summary, err := h.sweeper.Sweep(ctx, now)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if summary.ForceCompleted != 1 {
		t.Fatalf("expected one force completion, got %+v", summary)
	}
	h.notifier.mu.Lock()
	notified := len(h.notifier.entries) == 1 && h.notifier.entries[0] == entry.ID
	h.notifier.mu.Unlock()
	if !notified {
		t.Fatalf("expected force-close notification for entry %d", entry.ID)
	}
}

func TestSweepDoesNotPromoteWhilePaused(t *testing.T) {
	h := newHarness(t)
	def := testsupport.SeedDefinition(t, h.store, "hype")
	testsupport.Enqueue(t, h.store, def.ID)
	ctx := context.Background()

	if err := h.store.SetPaused(ctx, true); err != nil {
		t.Fatalf("pause: %v", err)
	}
	summary, err := h.sweeper.Sweep(ctx, time.Now().UTC())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if summary.Promoted != 0 {
		t.Fatalf("paused sweep promoted, got %+v", summary)
	}
}

func TestPauseDoesNotRevertPlayingEntry(t *testing.T) {
	h := newHarness(t)
	def := testsupport.SeedDefinition(t, h.store, "donate")
	entry := testsupport.Enqueue(t, h.store, def.ID)
	ctx := context.Background()
	now := time.Now().UTC()

	deadline := now.Add(time.Minute)
	if won, err := h.store.MarkPlaying(ctx, entry.ID, now, &deadline); err != nil || !won {
		t.Fatalf("promote: won=%v err=%v", won, err)
	}
	if err := h.store.SetPaused(ctx, true); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if _, err := h.sweeper.Sweep(ctx, now); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	fresh, err := h.store.GetByID(ctx, entry.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if fresh.Status != queue.StatusPlaying {
		t.Fatalf("pause changed playing entry to %s", fresh.Status)
	}
}

func TestConcurrentSweepsProduceOneOutcome(t *testing.T) {
	h := newHarness(t)
	def := testsupport.SeedDefinition(t, h.store, "shoutout")
	entry := testsupport.Enqueue(t, h.store, def.ID)
	ctx := context.Background()
	now := time.Now().UTC()

	deadline := now.Add(-time.Second)
	if won, err := h.store.MarkPlaying(ctx, entry.ID, now.Add(-5*time.Second), &deadline); err != nil || !won {
		t.Fatalf("promote: won=%v err=%v", won, err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := h.sweeper.Sweep(ctx, now); err != nil {
				t.Errorf("sweep: %v", err)
			}
		}()
	}
	wg.Wait()

	if h.publisher.count() != 1 {
		t.Fatalf("expected one broadcast from racing sweeps, got %d", h.publisher.count())
	}
}
