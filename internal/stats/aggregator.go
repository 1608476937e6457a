// Package stats accumulates per-username gift totals from completed alerts.
package stats

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"alertcast/internal/logging"
)

// leaderboardVisibleKey flips on after the first recorded gift so the
// overlay can start rendering the leaderboard.
const leaderboardVisibleKey = "leaderboard_visible"

// Completion carries the fields the aggregator needs from a finished entry.
type Completion struct {
	EntryID     int64
	AlertID     int64
	Username    string
	GiftCount   int64
	IsGiftAlert bool
	CompletedAt time.Time
}

// Aggregator records gift history and maintains cumulative counters. It is
// safe to invoke twice for the same entry: the history table's unique
// entry_id constraint makes replays a no-op.
type Aggregator struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewAggregator wraps the shared database handle.
func NewAggregator(db *sql.DB, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Aggregator{db: db, logger: logging.NewComponentLogger(logger, "stats")}
}

// Record processes one completion. Non-gift completions and completions
// without a username or positive count are skipped. Returns true when the
// gift was counted, false when skipped or already counted.
func (a *Aggregator) Record(ctx context.Context, completion Completion) (bool, error) {
	if !completion.IsGiftAlert || completion.Username == "" || completion.GiftCount <= 0 {
		return false, nil
	}

	at := completion.CompletedAt
	if at.IsZero() {
		at = time.Now()
	}
	at = at.UTC()

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin gift tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO gift_history (entry_id, username, gift_count, recorded_at)
         VALUES (?, ?, ?, ?)`,
		completion.EntryID, completion.Username, completion.GiftCount, at.Format(time.RFC3339Nano))
	if err != nil {
		return false, fmt.Errorf("insert gift history: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if inserted == 0 {
		a.logger.Debug("gift already counted", logging.EntryID(completion.EntryID))
		return false, nil
	}

	// Counter updates are single-statement upserts so concurrent
	// completions for the same username cannot lose increments.
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO gift_stats (username, total_gifts, last_gift_date)
         VALUES (?, ?, ?)
         ON CONFLICT (username) DO UPDATE SET
             total_gifts = total_gifts + excluded.total_gifts,
             last_gift_date = excluded.last_gift_date`,
		completion.Username, completion.GiftCount, at.Format(time.RFC3339Nano)); err != nil {
		return false, fmt.Errorf("update gift totals: %w", err)
	}

	for _, bucket := range []string{at.Format("2006-01"), at.Format("2006")} {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO gift_stat_buckets (username, bucket, count)
             VALUES (?, ?, ?)
             ON CONFLICT (username, bucket) DO UPDATE SET
                 count = count + excluded.count`,
			completion.Username, bucket, completion.GiftCount); err != nil {
			return false, fmt.Errorf("update gift bucket %q: %w", bucket, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit gift tx: %w", err)
	}

	// The visibility flag lives outside the transaction; a failure here is
	// logged and retried implicitly on the next gift.
	if _, err := a.db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, 'true')
         ON CONFLICT (key) DO UPDATE SET value = 'true'`,
		leaderboardVisibleKey); err != nil {
		a.logger.Warn("failed to flip leaderboard visibility",
			logging.EntryID(completion.EntryID), logging.Error(err))
	}

	a.logger.Info("gift counted",
		logging.EntryID(completion.EntryID),
		slog.String("username", completion.Username),
		slog.Int64("gift_count", completion.GiftCount))
	return true, nil
}

// LeaderboardVisible reports whether any gift has ever been recorded.
func (a *Aggregator) LeaderboardVisible(ctx context.Context) (bool, error) {
	var value string
	err := a.db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = ?`, leaderboardVisibleKey).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read leaderboard visibility: %w", err)
	}
	return value == "true", nil
}
