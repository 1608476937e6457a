// Package broadcast fans completion events out to every rendering surface.
//
// Delivery is best effort. A surface that misses an event still converges
// because the reconciliation sweep re-reads queue state on its own cadence;
// the broadcast exists only to shave latency off the common path.
package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
)

// TopicCompleted carries one message per completed queue entry.
const TopicCompleted = "alerts.completed"

// Reason records which path completed an entry.
type Reason string

const (
	ReasonReported    Reason = "reported"
	ReasonExpired     Reason = "expired"
	ReasonStale       Reason = "stale"
	ReasonForceClosed Reason = "force_closed"
)

// CompletionEvent is the payload published on TopicCompleted.
type CompletionEvent struct {
	EntryID     int64     `json:"entry_id"`
	AlertID     int64     `json:"alert_id"`
	Username    string    `json:"username,omitempty"`
	GiftCount   int64     `json:"gift_count,omitempty"`
	IsGiftAlert bool      `json:"is_gift_alert"`
	Reason      Reason    `json:"reason"`
	CompletedAt time.Time `json:"completed_at"`
}

// Broadcaster is an in-process fan-out channel over watermill's gochannel
// transport. Every subscriber receives every published event.
type Broadcaster struct {
	pubsub *gochannel.GoChannel
	logger *slog.Logger
}

// New creates a broadcaster. Subscribers that fall behind drop messages once
// their buffer fills rather than blocking publishers.
func New(logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	pubsub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer:            64,
		BlockPublishUntilSubscriberAck: false,
	}, newLoggerAdapter(logger))
	return &Broadcaster{pubsub: pubsub, logger: logger}
}

// PublishCompletion emits one completion event. Publish failures are returned
// so callers can log them, but they never gate queue progress.
func (b *Broadcaster) PublishCompletion(ctx context.Context, event CompletionEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode completion event: %w", err)
	}
	msg := message.NewMessage(uuid.NewString(), payload)
	msg.SetContext(ctx)
	if err := b.pubsub.Publish(TopicCompleted, msg); err != nil {
		return fmt.Errorf("publish completion event: %w", err)
	}
	return nil
}

// SubscribeCompletions returns a channel of decoded completion events. The
// channel closes when ctx is cancelled or the broadcaster shuts down.
// Malformed payloads are logged and skipped.
func (b *Broadcaster) SubscribeCompletions(ctx context.Context) (<-chan CompletionEvent, error) {
	messages, err := b.pubsub.Subscribe(ctx, TopicCompleted)
	if err != nil {
		return nil, fmt.Errorf("subscribe completions: %w", err)
	}

	events := make(chan CompletionEvent, 16)
	go func() {
		defer close(events)
		for msg := range messages {
			var event CompletionEvent
			if err := json.Unmarshal(msg.Payload, &event); err != nil {
				b.logger.Warn("dropping malformed completion event",
					slog.String("message_id", msg.UUID),
					slog.Any("error", err))
				msg.Ack()
				continue
			}
			msg.Ack()
			select {
			case events <- event:
			case <-ctx.Done():
				return
			}
		}
	}()
	return events, nil
}

// Close shuts the underlying channel down and terminates all subscriptions.
func (b *Broadcaster) Close() error {
	return b.pubsub.Close()
}
