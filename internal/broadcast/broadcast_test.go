package broadcast_test

import (
	"context"
	"testing"
	"time"

	"alertcast/internal/broadcast"
	"alertcast/internal/logging"
)

func TestPublishReachesAllSubscribers(t *testing.T) {
	b := broadcast.New(logging.NewNop())
	t.Cleanup(func() { b.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first, err := b.SubscribeCompletions(ctx)
	if err != nil {
		t.Fatalf("subscribe first: %v", err)
	}
	second, err := b.SubscribeCompletions(ctx)
	if err != nil {
		t.Fatalf("subscribe second: %v", err)
	}

	sent := broadcast.CompletionEvent{
		EntryID:     42,
		AlertID:     7,
		Username:    "bits4days",
		GiftCount:   5,
		IsGiftAlert: true,
		Reason:      broadcast.ReasonReported,
		CompletedAt: time.Now().UTC(),
	}
	if err := b.PublishCompletion(ctx, sent); err != nil {
		t.Fatalf("publish: %v", err)
	}

	for name, ch := range map[string]<-chan broadcast.CompletionEvent{"first": first, "second": second} {
		select {
		case got := <-ch:
			if got.EntryID != sent.EntryID || got.Reason != sent.Reason || got.GiftCount != sent.GiftCount {
				t.Fatalf("%s subscriber: unexpected event %+v", name, got)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("%s subscriber: timed out waiting for event", name)
		}
	}
}

func TestSubscriptionClosesOnCancel(t *testing.T) {
	b := broadcast.New(logging.NewNop())
	t.Cleanup(func() { b.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	events, err := b.SubscribeCompletions(ctx)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	cancel()

	select {
	case _, open := <-events:
		if open {
			t.Fatal("expected channel closed after cancel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for channel close")
	}
}

func TestPublishWithoutSubscribersDoesNotBlock(t *testing.T) {
	b := broadcast.New(logging.NewNop())
	t.Cleanup(func() { b.Close() })

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = b.PublishCompletion(context.Background(), broadcast.CompletionEvent{EntryID: 1})
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked with no subscribers")
	}
}
