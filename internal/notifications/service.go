package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"alertcast/internal/config"
)

const userAgent = "Alertcast-Go/0.1.0"

// Service defines the operator notification surface.
type Service interface {
	NotifyQueuePaused(ctx context.Context) error
	NotifyQueueResumed(ctx context.Context) error
	CompletionReportFailed(ctx context.Context, entryID int64, reportErr error) error
	QueueEntryForceClosed(ctx context.Context, entryID int64, age time.Duration) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		cfg:      cfg,
		client:   &http.Client{Timeout: timeout},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	cfg      *config.Config
	client   *http.Client
}

func (n *ntfyService) NotifyQueuePaused(ctx context.Context) error {
	if !n.cfg.Notifications.PauseEvents {
		return nil
	}
	data := payload{
		title:   "Alertcast - Queue Paused",
		message: "Alert queue paused; pending alerts will hold until resumed",
		tags:    []string{"alertcast", "queue", "paused"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyQueueResumed(ctx context.Context) error {
	if !n.cfg.Notifications.PauseEvents {
		return nil
	}
	data := payload{
		title:   "Alertcast - Queue Resumed",
		message: "Alert queue resumed",
		tags:    []string{"alertcast", "queue", "resumed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) CompletionReportFailed(ctx context.Context, entryID int64, reportErr error) error {
	if !n.cfg.Notifications.ReportFailures {
		return nil
	}
	reason := "unknown"
	if reportErr != nil {
		reason = strings.TrimSpace(reportErr.Error())
	}
	data := payload{
		title:    "Alertcast - Report Failed",
		message:  fmt.Sprintf("Completion report for entry %d failed twice: %s\nThe sweep will complete it", entryID, reason),
		tags:     []string{"alertcast", "playback", "error"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) QueueEntryForceClosed(ctx context.Context, entryID int64, age time.Duration) error {
	if !n.cfg.Notifications.DeadLetter {
		return nil
	}
	age = age.Round(time.Second)
	if age < 0 {
		age = 0
	}
	data := payload{
		title:    "Alertcast - Entry Force Closed",
		message:  fmt.Sprintf("Entry %d was stuck playing for %s and was force completed", entryID, age),
		tags:     []string{"alertcast", "sweep", "force-closed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Alertcast - Test",
		message:  "Notification system test",
		tags:     []string{"alertcast", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyQueuePaused(context.Context) error                       { return nil }
func (noopService) NotifyQueueResumed(context.Context) error                      { return nil }
func (noopService) CompletionReportFailed(context.Context, int64, error) error    { return nil }
func (noopService) QueueEntryForceClosed(context.Context, int64, time.Duration) error {
	return nil
}
func (noopService) TestNotification(context.Context) error { return nil }
