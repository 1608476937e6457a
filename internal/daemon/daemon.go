package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"alertcast/internal/alerts"
	"alertcast/internal/api"
	"alertcast/internal/broadcast"
	"alertcast/internal/config"
	"alertcast/internal/engine"
	"alertcast/internal/logging"
	"alertcast/internal/notifications"
	"alertcast/internal/playback"
	"alertcast/internal/queue"
	"alertcast/internal/stats"
	"alertcast/internal/sweep"
)

// Daemon coordinates the queue engine's background services and enforces
// single-instance execution.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger

	store       *queue.Store
	defs        *alerts.Store
	broadcaster *broadcast.Broadcaster
	aggregator  *stats.Aggregator
	coordinator *engine.Coordinator
	sweeper     *sweep.Sweeper
	sweepRunner *sweep.Runner
	playback    *playback.Manager
	dispatcher  *api.Dispatcher
	notifier    notifications.Service
	apiServer   *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	Paused       bool
	QueueDBPath  string
	LockFilePath string
	QueueStats   map[queue.Status]int
}

// New constructs a daemon with all services wired but not started.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil {
		return nil, errors.New("daemon requires config and store")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	defs := alerts.NewStore(store.DB())
	broadcaster := broadcast.New(logger)
	aggregator := stats.NewAggregator(store.DB(), logger)
	coordinator := engine.New(store, defs, cfg, broadcaster, aggregator, logger)
	notifier := notifications.NewService(cfg)
	sweeper := sweep.New(coordinator, cfg, notifier, logger)

	d := &Daemon{
		cfg:         cfg,
		logger:      logger,
		store:       store,
		defs:        defs,
		broadcaster: broadcaster,
		aggregator:  aggregator,
		coordinator: coordinator,
		sweeper:     sweeper,
		sweepRunner: sweep.NewRunner(sweeper, cfg, logger),
		playback:    playback.NewManager(coordinator, broadcaster, cfg, nil, notifier, logger),
		dispatcher:  api.NewDispatcher(store, defs, logger),
		notifier:    notifier,
		lockPath:    filepath.Join(cfg.Paths.DataDir, "alertcastd.lock"),
	}
	d.lock = flock.New(d.lockPath)

	server, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.apiServer = server
	return d, nil
}

// Start acquires the daemon lock and launches the sweep loop, the playback
// manager, and the API server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another alertcast daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	d.sweepRunner.Start(runCtx)
	if err := d.playback.Start(runCtx); err != nil {
		d.sweepRunner.Stop()
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start playback manager: %w", err)
	}
	if d.apiServer != nil {
		if err := d.apiServer.start(runCtx); err != nil {
			d.sweepRunner.Stop()
			cancel()
			_ = d.lock.Unlock()
			return err
		}
	}

	d.running.Store(true)
	d.logger.Info("alertcast daemon started", slog.String("lock", d.lockPath))
	return nil
}

// Stop halts background services and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.apiServer != nil {
		d.apiServer.stop()
	}
	d.sweepRunner.Stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.playback.Wait()
	if err := d.broadcaster.Close(); err != nil {
		d.logger.Warn("broadcaster close failed", logging.Error(err))
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("alertcast daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// APIAddr reports the bound API address, or "" before Start.
func (d *Daemon) APIAddr() string {
	if d.apiServer == nil {
		return ""
	}
	return d.apiServer.addr()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	paused, err := d.store.IsPaused(ctx)
	if err != nil {
		d.logger.Warn("pause flag read failed", logging.Error(err))
	}
	counts, err := d.store.Stats(ctx)
	if err != nil {
		d.logger.Warn("queue stats read failed", logging.Error(err))
	}
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Paused:       paused,
		QueueDBPath:  d.store.Path(),
		LockFilePath: d.lockPath,
		QueueStats:   counts,
	}
}

// SetPaused flips the global pause flag and notifies the operator.
func (d *Daemon) SetPaused(ctx context.Context, paused bool) error {
	current, err := d.store.IsPaused(ctx)
	if err != nil {
		return err
	}
	if current == paused {
		return nil
	}
	if err := d.store.SetPaused(ctx, paused); err != nil {
		return err
	}
	if paused {
		d.logger.Info("queue paused")
		if err := d.notifier.NotifyQueuePaused(ctx); err != nil {
			d.logger.Warn("pause notification failed", logging.Error(err))
		}
	} else {
		d.logger.Info("queue resumed")
		if err := d.notifier.NotifyQueueResumed(ctx); err != nil {
			d.logger.Warn("resume notification failed", logging.Error(err))
		}
	}
	return nil
}

// IsPaused reads the pause flag.
func (d *Daemon) IsPaused(ctx context.Context) (bool, error) {
	return d.store.IsPaused(ctx)
}

// CompleteEntry reports an entry's completion on behalf of a rendering
// surface. Losing the conditional update is not an error.
func (d *Daemon) CompleteEntry(ctx context.Context, id int64) (*queue.Entry, bool, error) {
	return d.coordinator.Complete(ctx, id, broadcast.ReasonReported)
}

// MediaEnded forwards a video end-of-playback signal to the local surface.
func (d *Daemon) MediaEnded(ctx context.Context, id int64) {
	d.playback.MediaEnded(ctx, id)
}

// Trigger enqueues the alert identified by slug.
func (d *Daemon) Trigger(ctx context.Context, slug, username string, giftCount int64) ([]*queue.Entry, error) {
	return d.dispatcher.Trigger(ctx, slug, username, giftCount)
}

// RemoveEntry deletes a queue entry.
func (d *Daemon) RemoveEntry(ctx context.Context, id int64) (bool, error) {
	return d.store.Remove(ctx, id)
}

// ClearCompleted removes completed entries.
func (d *Daemon) ClearCompleted(ctx context.Context) (int64, error) {
	return d.store.ClearCompleted(ctx)
}

// Sweep runs one reconciliation pass on demand.
func (d *Daemon) Sweep(ctx context.Context) (sweep.Summary, error) {
	return d.sweeper.Sweep(ctx, time.Now().UTC())
}

// Leaderboard returns the top gifters and the visibility flag.
func (d *Daemon) Leaderboard(ctx context.Context, limit int) (bool, []*stats.GiftStatRecord, error) {
	visible, err := d.aggregator.LeaderboardVisible(ctx)
	if err != nil {
		return false, nil, err
	}
	records, err := d.aggregator.Leaderboard(ctx, limit)
	if err != nil {
		return false, nil, err
	}
	return visible, records, nil
}

// ListAlerts returns every alert definition.
func (d *Daemon) ListAlerts(ctx context.Context) ([]*alerts.Definition, error) {
	return d.defs.List(ctx)
}

// SaveAlert creates or updates an alert definition.
func (d *Daemon) SaveAlert(ctx context.Context, def *alerts.Definition) error {
	return d.defs.Save(ctx, def)
}

// TestNotification triggers a test notification using the current
// configuration.
func (d *Daemon) TestNotification(ctx context.Context) error {
	return d.notifier.TestNotification(ctx)
}

// Store exposes the queue store for API services.
func (d *Daemon) Store() *queue.Store {
	return d.store
}
