package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// MarkPlaying conditionally promotes a pending entry into the now-playing
// slot. deadline may be nil for entries that rely on a natural end-of-media
// signal. Returns false with no error when another writer won the race, either
// by transitioning the row first or by occupying the playing slot.
func (s *Store) MarkPlaying(ctx context.Context, id int64, startedAt time.Time, deadline *time.Time) (bool, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE queue_entries
         SET status = ?, processing_started_at = ?, scheduled_completion = ?
         WHERE id = ? AND status = ?`,
		StatusPlaying,
		formatTime(startedAt),
		nullableTime(deadline),
		id,
		StatusPending,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("mark playing: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// CompletePlaying conditionally completes a playing entry and returns the
// finished row. Returns (nil, false, nil) when the entry was not playing;
// losing this race is expected and not an error.
func (s *Store) CompletePlaying(ctx context.Context, id int64) (*Entry, bool, error) {
	now := time.Now().UTC()
	res, err := s.execWithRetry(
		ctx,
		`UPDATE queue_entries
         SET status = ?, completed_at = ?, played_at = COALESCE(played_at, processing_started_at, ?)
         WHERE id = ? AND status = ?`,
		StatusCompleted,
		formatTime(now),
		formatTime(now),
		id,
		StatusPlaying,
	)
	if err != nil {
		return nil, false, fmt.Errorf("complete playing: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return nil, false, nil
	}
	entry, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return entry, true, nil
}

// CurrentlyPlaying returns the entry occupying the now-playing slot, or nil.
func (s *Store) CurrentlyPlaying(ctx context.Context) (*Entry, error) {
	row := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT `+entryColumns+` FROM queue_entries WHERE status = ? LIMIT 1`,
		StatusPlaying,
	)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("currently playing: %w", err)
	}
	return entry, nil
}

// NextEligiblePending returns the oldest pending entry whose scheduled_for has
// passed, or nil when none is due.
func (s *Store) NextEligiblePending(ctx context.Context, now time.Time) (*Entry, error) {
	row := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT `+entryColumns+` FROM queue_entries
         WHERE status = ? AND processing_started_at IS NULL AND scheduled_for <= ?
         ORDER BY created_at, id LIMIT 1`,
		StatusPending,
		formatTime(now),
	)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("next eligible pending: %w", err)
	}
	return entry, nil
}

// OverduePlaying returns playing entries whose deadline has passed.
func (s *Store) OverduePlaying(ctx context.Context, now time.Time) ([]*Entry, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT `+entryColumns+` FROM queue_entries
         WHERE status = ? AND scheduled_completion IS NOT NULL AND scheduled_completion <= ?
         ORDER BY created_at, id`,
		StatusPlaying,
		formatTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("overdue playing: %w", err)
	}
	defer rows.Close()
	return collectEntries(rows)
}

// StalePlaying returns playing entries without a deadline that started before
// the cutoff. These rows predate deadline bookkeeping or belong to media that
// reports its own end; the grace window bounds how long they may linger.
func (s *Store) StalePlaying(ctx context.Context, cutoff time.Time) ([]*Entry, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT `+entryColumns+` FROM queue_entries
         WHERE status = ? AND scheduled_completion IS NULL
           AND processing_started_at IS NOT NULL AND processing_started_at < ?
         ORDER BY created_at, id`,
		StatusPlaying,
		formatTime(cutoff),
	)
	if err != nil {
		return nil, fmt.Errorf("stale playing: %w", err)
	}
	defer rows.Close()
	return collectEntries(rows)
}

// LongRunningPlaying returns every playing entry that started before the
// cutoff, regardless of deadline bookkeeping. The dead-letter cleanup uses it
// to guarantee the queue can never wedge on a single row.
func (s *Store) LongRunningPlaying(ctx context.Context, cutoff time.Time) ([]*Entry, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT `+entryColumns+` FROM queue_entries
         WHERE status = ? AND processing_started_at IS NOT NULL AND processing_started_at < ?
         ORDER BY created_at, id`,
		StatusPlaying,
		formatTime(cutoff),
	)
	if err != nil {
		return nil, fmt.Errorf("long running playing: %w", err)
	}
	defer rows.Close()
	return collectEntries(rows)
}
