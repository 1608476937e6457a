package stats_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"alertcast/internal/logging"
	"alertcast/internal/stats"
	"alertcast/internal/testsupport"
)

func newAggregator(t *testing.T) *stats.Aggregator {
	t.Helper()
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	return stats.NewAggregator(store.DB(), logging.NewNop())
}

func giftCompletion(entryID int64, username string, count int64, at time.Time) stats.Completion {
	return stats.Completion{
		EntryID:     entryID,
		AlertID:     1,
		Username:    username,
		GiftCount:   count,
		IsGiftAlert: true,
		CompletedAt: at,
	}
}

func TestRecordCountsGiftOnce(t *testing.T) {
	agg := newAggregator(t)
	ctx := context.Background()
	at := time.Date(2026, time.March, 14, 20, 0, 0, 0, time.UTC)

	counted, err := agg.Record(ctx, giftCompletion(1, "bits4days", 5, at))
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if !counted {
		t.Fatal("expected first record to count")
	}

	// A duplicate broadcast replays the same entry.
	counted, err = agg.Record(ctx, giftCompletion(1, "bits4days", 5, at))
	if err != nil {
		t.Fatalf("replay record: %v", err)
	}
	if counted {
		t.Fatal("expected replay to be skipped")
	}

	record, err := agg.StatsFor(ctx, "bits4days")
	if err != nil {
		t.Fatalf("stats for: %v", err)
	}
	if record == nil || record.TotalGifts != 5 {
		t.Fatalf("expected total 5, got %+v", record)
	}
	if record.MonthlyGifts["2026-03"] != 5 {
		t.Fatalf("unexpected monthly buckets: %v", record.MonthlyGifts)
	}
	if record.YearlyGifts["2026"] != 5 {
		t.Fatalf("unexpected yearly buckets: %v", record.YearlyGifts)
	}
	if !record.LastGiftDate.Equal(at) {
		t.Fatalf("last gift date %s, want %s", record.LastGiftDate, at)
	}
}

func TestRecordSkipsNonGiftCompletions(t *testing.T) {
	agg := newAggregator(t)
	ctx := context.Background()

	cases := []stats.Completion{
		{EntryID: 1, Username: "viewer", GiftCount: 3, IsGiftAlert: false},
		{EntryID: 2, Username: "", GiftCount: 3, IsGiftAlert: true},
		{EntryID: 3, Username: "viewer", GiftCount: 0, IsGiftAlert: true},
	}
	for _, completion := range cases {
		counted, err := agg.Record(ctx, completion)
		if err != nil {
			t.Fatalf("record %d: %v", completion.EntryID, err)
		}
		if counted {
			t.Fatalf("entry %d should have been skipped", completion.EntryID)
		}
	}

	visible, err := agg.LeaderboardVisible(ctx)
	if err != nil {
		t.Fatalf("leaderboard visible: %v", err)
	}
	if visible {
		t.Fatal("leaderboard should stay hidden with no counted gifts")
	}
}

func TestConcurrentRecordsAccumulate(t *testing.T) {
	agg := newAggregator(t)
	ctx := context.Background()
	at := time.Date(2026, time.March, 14, 20, 0, 0, 0, time.UTC)

	const gifts = 10
	var wg sync.WaitGroup
	for i := 0; i < gifts; i++ {
		wg.Add(1)
		go func(entryID int64) {
			defer wg.Done()
			if _, err := agg.Record(ctx, giftCompletion(entryID, "bits4days", 2, at)); err != nil {
				t.Errorf("record %d: %v", entryID, err)
			}
		}(int64(i + 1))
	}
	wg.Wait()

	record, err := agg.StatsFor(ctx, "bits4days")
	if err != nil {
		t.Fatalf("stats for: %v", err)
	}
	if record.TotalGifts != gifts*2 {
		t.Fatalf("expected total %d, got %d", gifts*2, record.TotalGifts)
	}
}

func TestLeaderboardOrdering(t *testing.T) {
	agg := newAggregator(t)
	ctx := context.Background()
	at := time.Now().UTC()

	seed := []struct {
		entry    int64
		username string
		count    int64
	}{
		{1, "quiet", 1},
		{2, "whale", 50},
		{3, "regular", 10},
		{4, "whale", 25},
	}
	for _, gift := range seed {
		if _, err := agg.Record(ctx, giftCompletion(gift.entry, gift.username, gift.count, at)); err != nil {
			t.Fatalf("record %d: %v", gift.entry, err)
		}
	}

	top, err := agg.Leaderboard(ctx, 2)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(top) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(top))
	}
	if top[0].Username != "whale" || top[0].TotalGifts != 75 {
		t.Fatalf("unexpected leader: %+v", top[0])
	}
	if top[1].Username != "regular" {
		t.Fatalf("unexpected runner-up: %+v", top[1])
	}

	visible, err := agg.LeaderboardVisible(ctx)
	if err != nil {
		t.Fatalf("leaderboard visible: %v", err)
	}
	if !visible {
		t.Fatal("expected visibility flag after counted gifts")
	}

	missing, err := agg.StatsFor(ctx, "stranger")
	if err != nil {
		t.Fatalf("stats for stranger: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil record for unknown user, got %+v", missing)
	}
}
