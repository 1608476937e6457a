// Package playback runs the client-side queue manager for one rendering
// surface. The manager promotes pending entries when the surface is idle,
// times out non-video alerts locally, and reports completions back through
// the coordinator. It is an optimization layer only: if it crashes mid-alert,
// the reconciliation sweep completes the entry.
package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"alertcast/internal/alerts"
	"alertcast/internal/broadcast"
	"alertcast/internal/config"
	"alertcast/internal/engine"
	"alertcast/internal/logging"
	"alertcast/internal/queue"
)

// State is the client-local lifecycle position.
type State string

const (
	StateIdle       State = "idle"
	StateAwaiting   State = "awaiting"
	StateCompleting State = "completing"
)

// Notifier surfaces repeated completion-report failures to the operator.
type Notifier interface {
	CompletionReportFailed(ctx context.Context, entryID int64, reportErr error) error
}

// Subscriber provides the completion event feed.
type Subscriber interface {
	SubscribeCompletions(ctx context.Context) (<-chan broadcast.CompletionEvent, error)
}

// Manager drives playback for a single surface.
type Manager struct {
	coordinator *engine.Coordinator
	subscriber  Subscriber
	cfg         *config.Config
	clock       Clock
	notifier    Notifier
	logger      *slog.Logger
	surface     string

	mu          sync.Mutex
	state       State
	current     *queue.Entry
	paused      bool
	timerCancel chan struct{}
	started     bool

	fires chan int64
	done  chan struct{}
}

// NewManager wires a manager for the configured surface. clock and notifier
// may be nil; the system clock and no notifications are used.
func NewManager(coordinator *engine.Coordinator, subscriber Subscriber, cfg *config.Config, clock Clock, notifier Notifier, logger *slog.Logger) *Manager {
	if clock == nil {
		clock = NewRealClock()
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	surface := cfg.Playback.Surface
	return &Manager{
		coordinator: coordinator,
		subscriber:  subscriber,
		cfg:         cfg,
		clock:       clock,
		notifier:    notifier,
		logger: logging.NewComponentLogger(logger, "playback").
			With(slog.String(logging.FieldSurface, surface)),
		surface: surface,
		state:   StateIdle,
		fires:   make(chan int64, 4),
	}
}

// State reports the current client-local state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Current returns the entry this surface is driving, or nil when idle.
func (m *Manager) Current() *queue.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Start launches the event loop. Starting an already-started manager is an
// error so a duplicate mount cannot double-process the queue.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return errors.New("playback manager already started")
	}
	m.started = true
	m.done = make(chan struct{})
	m.mu.Unlock()

	events, err := m.subscriber.SubscribeCompletions(ctx)
	if err != nil {
		m.mu.Lock()
		m.started = false
		m.mu.Unlock()
		return fmt.Errorf("subscribe completions: %w", err)
	}

	m.refreshPause(ctx)
	m.tryPromote(ctx)

	go m.run(ctx, events)
	return nil
}

// Wait blocks until the event loop exits.
func (m *Manager) Wait() {
	m.mu.Lock()
	done := m.done
	m.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (m *Manager) run(ctx context.Context, events <-chan broadcast.CompletionEvent) {
	defer close(m.done)

	pollInterval := time.Duration(m.cfg.Playback.PausePollIntervalSeconds) * time.Second
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	pauseTicker := time.NewTicker(pollInterval)
	defer pauseTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.cancelTimer()
			return
		case event, ok := <-events:
			if !ok {
				m.cancelTimer()
				return
			}
			m.handleCompletionEvent(ctx, event)
		case entryID := <-m.fires:
			m.handleTimerFired(ctx, entryID)
		case <-pauseTicker.C:
			m.refreshPause(ctx)
		}
	}
}

// handleCompletionEvent reacts to an entry completing anywhere. When the
// completed entry is the one this surface is driving (the sweep expired it,
// or another caller reported it first), the surface releases it and returns
// to idle; otherwise an idle, unpaused surface races for the next promotion.
func (m *Manager) handleCompletionEvent(ctx context.Context, event broadcast.CompletionEvent) {
	m.mu.Lock()
	if m.state == StateAwaiting && m.current != nil && m.current.ID == event.EntryID {
		m.state = StateIdle
		m.current = nil
		m.mu.Unlock()
		m.logger.Info("current entry completed externally, releasing surface",
			logging.EntryID(event.EntryID),
			slog.String(logging.FieldReason, string(event.Reason)))
		m.cancelTimer()
		m.tryPromote(ctx)
		return
	}
	idle := m.state == StateIdle && !m.paused
	m.mu.Unlock()
	if idle {
		m.tryPromote(ctx)
	}
}

// tryPromote attempts to win the next promotion and take ownership of the
// entry. Losing the race leaves the manager idle.
func (m *Manager) tryPromote(ctx context.Context) {
	m.mu.Lock()
	if m.state != StateIdle || m.paused {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	entry, err := m.coordinator.PromoteNext(ctx, m.clock.Now().UTC())
	if err != nil {
		m.logger.Warn("promotion attempt failed", logging.Error(err))
		return
	}
	if entry == nil {
		return
	}

	m.mu.Lock()
	m.state = StateAwaiting
	m.current = entry
	m.mu.Unlock()

	if entry.ScheduledCompletion == nil {
		// Video alerts complete on the media's own end signal; running a
		// parallel timer would race it.
		m.logger.Info("awaiting media end signal", logging.EntryID(entry.ID))
		return
	}
	m.armTimer(entry.ID, entry.ScheduledCompletion.Sub(m.clock.Now().UTC()))
}

// MediaEnded is invoked by the rendering surface when video playback reaches
// its natural end. Signals for entries this surface does not own are no-ops.
func (m *Manager) MediaEnded(ctx context.Context, entryID int64) {
	m.mu.Lock()
	owned := m.state == StateAwaiting && m.current != nil && m.current.ID == entryID
	m.mu.Unlock()
	if !owned {
		return
	}
	m.reportCompletion(ctx, entryID)
}

func (m *Manager) armTimer(entryID int64, d time.Duration) {
	if d < 0 {
		d = 0
	}
	cancel := make(chan struct{})
	timer := m.clock.NewTimer(d)

	m.mu.Lock()
	m.timerCancel = cancel
	m.mu.Unlock()

	go func() {
		select {
		case <-timer.C():
			select {
			case m.fires <- entryID:
			case <-cancel:
			}
		case <-cancel:
			timer.Stop()
		}
	}()
}

func (m *Manager) cancelTimer() {
	m.mu.Lock()
	cancel := m.timerCancel
	m.timerCancel = nil
	m.mu.Unlock()
	if cancel != nil {
		close(cancel)
	}
}

func (m *Manager) handleTimerFired(ctx context.Context, entryID int64) {
	m.mu.Lock()
	owned := m.state == StateAwaiting && m.current != nil && m.current.ID == entryID
	m.mu.Unlock()
	if !owned {
		// A completion report received while idle is a no-op.
		return
	}
	m.reportCompletion(ctx, entryID)
}

// reportCompletion drives Awaiting -> Completing -> Idle. A failed report is
// retried once after a fixed backoff; a second failure is logged and surfaced
// to the operator, and the sweep remains the backstop.
func (m *Manager) reportCompletion(ctx context.Context, entryID int64) {
	m.mu.Lock()
	m.state = StateCompleting
	m.timerCancel = nil
	m.mu.Unlock()

	_, _, err := m.coordinator.Complete(ctx, entryID, broadcast.ReasonReported)
	if err != nil {
		backoff := time.Duration(m.cfg.Playback.ReportRetryBackoffSeconds) * time.Second
		m.logger.Warn("completion report failed, retrying",
			logging.EntryID(entryID),
			slog.Duration("backoff", backoff),
			logging.Error(err))
		if waitErr := m.sleep(ctx, backoff); waitErr == nil {
			_, _, err = m.coordinator.Complete(ctx, entryID, broadcast.ReasonReported)
		}
	}
	if err != nil {
		m.logger.Error("completion report failed twice, leaving entry to the sweep",
			logging.EntryID(entryID), logging.Error(err))
		if m.notifier != nil {
			if notifyErr := m.notifier.CompletionReportFailed(ctx, entryID, err); notifyErr != nil {
				m.logger.Warn("report-failure notification failed", logging.Error(notifyErr))
			}
		}
	}

	m.mu.Lock()
	m.state = StateIdle
	m.current = nil
	m.mu.Unlock()

	// Chain into the next entry without waiting for our own broadcast.
	m.tryPromote(ctx)
}

func (m *Manager) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := m.clock.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// refreshPause re-reads the pause flag. Flipping to paused cancels the armed
// timer without completing the current entry; its original deadline stays on
// the row, so the expiry sweep may still complete it while paused. Flipping
// back to unpaused promotes only when idle and never re-arms a timer.
func (m *Manager) refreshPause(ctx context.Context) {
	paused, err := m.coordinator.Store().IsPaused(ctx)
	if err != nil {
		m.logger.Warn("pause flag read failed", logging.Error(err))
		return
	}

	m.mu.Lock()
	was := m.paused
	m.paused = paused
	m.mu.Unlock()

	switch {
	case paused && !was:
		m.logger.Info("queue paused, cancelling local timer")
		m.cancelTimer()
	case !paused && was:
		m.logger.Info("queue resumed")
		m.tryPromote(ctx)
	}
}

// Definition resolves the alert backing an entry, for surfaces that need
// media details to render.
func (m *Manager) Definition(ctx context.Context, entry *queue.Entry) (*alerts.Definition, error) {
	return m.coordinator.Definitions().GetByID(ctx, entry.AlertID)
}
