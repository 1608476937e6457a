package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const entryColumns = "id, alert_id, username, gift_count, status, created_at, scheduled_for, processing_started_at, scheduled_completion, played_at, completed_at"

// Enqueue inserts one entry. ScheduledFor defaults to the insertion time when
// zero.
func (s *Store) Enqueue(ctx context.Context, entry NewEntry) (*Entry, error) {
	entries, err := s.EnqueueBatch(ctx, []NewEntry{entry})
	if err != nil {
		return nil, err
	}
	return entries[0], nil
}

// EnqueueBatch inserts several entries in one transaction, preserving slice
// order. Used for repeat-count alerts whose occurrences carry staggered
// scheduled_for times.
func (s *Store) EnqueueBatch(ctx context.Context, batch []NewEntry) ([]*Entry, error) {
	if len(batch) == 0 {
		return nil, errors.New("empty batch")
	}
	ctx = ensureContext(ctx)
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin enqueue tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	ids := make([]int64, 0, len(batch))
	for _, item := range batch {
		scheduled := item.ScheduledFor
		if scheduled.IsZero() {
			scheduled = now
		}
		res, err := tx.ExecContext(
			ctx,
			`INSERT INTO queue_entries (alert_id, username, gift_count, status, created_at, scheduled_for)
             VALUES (?, ?, ?, ?, ?, ?)`,
			item.AlertID,
			nullableString(item.Username),
			item.GiftCount,
			StatusPending,
			formatTime(now),
			formatTime(scheduled),
		)
		if err != nil {
			return nil, fmt.Errorf("insert entry: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("last insert id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit enqueue: %w", err)
	}

	entries := make([]*Entry, 0, len(ids))
	for _, id := range ids {
		entry, err := s.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// GetByID fetches a queue entry by identifier.
func (s *Store) GetByID(ctx context.Context, id int64) (*Entry, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+entryColumns+` FROM queue_entries WHERE id = ?`, id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}
	return entry, nil
}

// List returns queue entries filtered by status set (or all entries when no
// status is provided), oldest first.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Entry, error) {
	ctx = ensureContext(ctx)
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + entryColumns + ` FROM queue_entries`
	orderClause := ` ORDER BY created_at, id`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list queue entries: %w", err)
	}
	defer rows.Close()

	return collectEntries(rows)
}

// ListHistory returns entries newest first for the operator history view.
// Pages are 1-based.
func (s *Store) ListHistory(ctx context.Context, page, pageSize int) ([]*Entry, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 1
	}
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT `+entryColumns+` FROM queue_entries ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		pageSize,
		(page-1)*pageSize,
	)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	return collectEntries(rows)
}

// Remove deletes an entry by identifier.
func (s *Store) Remove(ctx context.Context, id int64) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM queue_entries WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete entry: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ClearCompleted removes only completed entries from the queue.
func (s *Store) ClearCompleted(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM queue_entries WHERE status = ?`, StatusCompleted)
	if err != nil {
		return 0, fmt.Errorf("clear completed: %w", err)
	}
	return res.RowsAffected()
}

// Stats returns a count of entries grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT status, COUNT(1) FROM queue_entries GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// CountActive returns the number of non-completed entries, used for UI badges.
func (s *Store) CountActive(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT COUNT(1) FROM queue_entries WHERE status != ?`,
		StatusCompleted,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count active: %w", err)
	}
	return count, nil
}

// Health aggregates queue state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for status, count := range stats {
		health.Total += count
		switch status {
		case StatusPending:
			health.Pending += count
		case StatusPlaying:
			health.Playing += count
		case StatusCompleted:
			health.Completed += count
		}
	}
	return health, nil
}

func collectEntries(rows *sql.Rows) ([]*Entry, error) {
	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func scanEntry(scanner interface{ Scan(dest ...any) error }) (*Entry, error) {
	var (
		id           int64
		alertID      int64
		username     sql.NullString
		giftCount    sql.NullInt64
		statusStr    string
		createdRaw   sql.NullString
		scheduledRaw sql.NullString
		startedRaw   sql.NullString
		deadlineRaw  sql.NullString
		playedRaw    sql.NullString
		completedRaw sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&alertID,
		&username,
		&giftCount,
		&statusStr,
		&createdRaw,
		&scheduledRaw,
		&startedRaw,
		&deadlineRaw,
		&playedRaw,
		&completedRaw,
	); err != nil {
		return nil, err
	}

	entry := &Entry{
		ID:        id,
		AlertID:   alertID,
		Username:  username.String,
		GiftCount: giftCount.Int64,
		Status:    Status(statusStr),
	}

	if created, err := parseTimeString(createdRaw.String); err == nil {
		entry.CreatedAt = created
	}
	if scheduled, err := parseTimeString(scheduledRaw.String); err == nil {
		entry.ScheduledFor = scheduled
	}
	entry.ProcessingStartedAt = parseNullableTime(startedRaw)
	entry.ScheduledCompletion = parseNullableTime(deadlineRaw)
	entry.PlayedAt = parseNullableTime(playedRaw)
	entry.CompletedAt = parseNullableTime(completedRaw)
	return entry, nil
}

func parseNullableTime(raw sql.NullString) *time.Time {
	if !raw.Valid {
		return nil
	}
	t, err := parseTimeString(raw.String)
	if err != nil {
		return nil
	}
	return &t
}
