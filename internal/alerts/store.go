package alerts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound reports a lookup for a definition that does not exist.
var ErrNotFound = errors.New("alert definition not found")

// Store provides access to alert definitions. It shares the queue database
// handle so definitions and queue entries live in one transaction domain.
type Store struct {
	db *sql.DB
}

// NewStore wraps an open database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const definitionColumns = `id, slug, title, media_path, media_kind, duration_seconds, is_gift_alert, repeat_count, repeat_delay_ms, created_at, updated_at`

// Save inserts a new definition or updates the existing row with the same
// slug. The definition's ID and timestamps are refreshed from the database.
func (s *Store) Save(ctx context.Context, def *Definition) error {
	if def == nil {
		return errors.New("save alert definition: nil definition")
	}
	if def.Slug == "" {
		def.Slug = Slugify(def.Title)
	}
	if def.Slug == "" {
		return errors.New("save alert definition: empty slug")
	}
	if _, ok := ParseMediaKind(string(def.MediaKind)); !ok {
		return fmt.Errorf("save alert definition %q: unknown media kind %q", def.Slug, def.MediaKind)
	}
	if def.RepeatCount < 1 {
		def.RepeatCount = 1
	}

	now := time.Now().UTC()
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO alert_definitions (slug, title, media_path, media_kind, duration_seconds, is_gift_alert, repeat_count, repeat_delay_ms, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(slug) DO UPDATE SET
			title = excluded.title,
			media_path = excluded.media_path,
			media_kind = excluded.media_kind,
			duration_seconds = excluded.duration_seconds,
			is_gift_alert = excluded.is_gift_alert,
			repeat_count = excluded.repeat_count,
			repeat_delay_ms = excluded.repeat_delay_ms,
			updated_at = excluded.updated_at
		RETURNING id, created_at, updated_at`,
		def.Slug, def.Title, def.MediaPath, string(def.MediaKind), def.DurationSeconds,
		def.IsGiftAlert, def.RepeatCount, def.RepeatDelay.Milliseconds(),
		now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano))

	var createdAt, updatedAt string
	if err := row.Scan(&def.ID, &createdAt, &updatedAt); err != nil {
		return fmt.Errorf("save alert definition %q: %w", def.Slug, err)
	}
	def.CreatedAt = parseDefinitionTime(createdAt)
	def.UpdatedAt = parseDefinitionTime(updatedAt)
	return nil
}

// GetByID fetches a definition by primary key.
func (s *Store) GetByID(ctx context.Context, id int64) (*Definition, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+definitionColumns+` FROM alert_definitions WHERE id = ?`, id)
	def, err := scanDefinition(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("alert definition %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get alert definition %d: %w", id, err)
	}
	return def, nil
}

// GetBySlug fetches a definition by its trigger slug.
func (s *Store) GetBySlug(ctx context.Context, slug string) (*Definition, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+definitionColumns+` FROM alert_definitions WHERE slug = ?`, strings.TrimSpace(slug))
	def, err := scanDefinition(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("alert definition %q: %w", slug, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get alert definition %q: %w", slug, err)
	}
	return def, nil
}

// List returns every definition ordered by slug.
func (s *Store) List(ctx context.Context) ([]*Definition, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+definitionColumns+` FROM alert_definitions ORDER BY slug`)
	if err != nil {
		return nil, fmt.Errorf("list alert definitions: %w", err)
	}
	defer rows.Close()

	var defs []*Definition
	for rows.Next() {
		def, err := scanDefinition(rows)
		if err != nil {
			return nil, fmt.Errorf("list alert definitions: %w", err)
		}
		defs = append(defs, def)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list alert definitions: %w", err)
	}
	return defs, nil
}

// Delete removes a definition. Deletion fails while queue entries still
// reference the row; callers clear the queue first.
func (s *Store) Delete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM alert_definitions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete alert definition %d: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete alert definition %d: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("alert definition %d: %w", id, ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDefinition(row rowScanner) (*Definition, error) {
	var (
		def           Definition
		kind          string
		repeatDelayMS int64
		createdAt     string
		updatedAt     string
	)
	if err := row.Scan(&def.ID, &def.Slug, &def.Title, &def.MediaPath, &kind,
		&def.DurationSeconds, &def.IsGiftAlert, &def.RepeatCount, &repeatDelayMS,
		&createdAt, &updatedAt); err != nil {
		return nil, err
	}
	def.MediaKind = MediaKind(kind)
	def.RepeatDelay = time.Duration(repeatDelayMS) * time.Millisecond
	def.CreatedAt = parseDefinitionTime(createdAt)
	def.UpdatedAt = parseDefinitionTime(updatedAt)
	return &def, nil
}

func parseDefinitionTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed.UTC()
		}
	}
	return time.Time{}
}
