package stats

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// GiftStatRecord is a per-username aggregate with calendar buckets.
type GiftStatRecord struct {
	Username     string
	TotalGifts   int64
	LastGiftDate time.Time
	MonthlyGifts map[string]int64
	YearlyGifts  map[string]int64
}

// StatsFor assembles the full record for one username, or nil when the user
// has never gifted.
func (a *Aggregator) StatsFor(ctx context.Context, username string) (*GiftStatRecord, error) {
	record := &GiftStatRecord{
		Username:     username,
		MonthlyGifts: make(map[string]int64),
		YearlyGifts:  make(map[string]int64),
	}

	var lastGift sql.NullString
	err := a.db.QueryRowContext(ctx,
		`SELECT total_gifts, last_gift_date FROM gift_stats WHERE username = ?`,
		username).Scan(&record.TotalGifts, &lastGift)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read gift stats for %q: %w", username, err)
	}
	if lastGift.Valid {
		if parsed, parseErr := time.Parse(time.RFC3339Nano, lastGift.String); parseErr == nil {
			record.LastGiftDate = parsed.UTC()
		}
	}

	rows, err := a.db.QueryContext(ctx,
		`SELECT bucket, count FROM gift_stat_buckets WHERE username = ?`, username)
	if err != nil {
		return nil, fmt.Errorf("read gift buckets for %q: %w", username, err)
	}
	defer rows.Close()

	for rows.Next() {
		var bucket string
		var count int64
		if err := rows.Scan(&bucket, &count); err != nil {
			return nil, fmt.Errorf("scan gift bucket: %w", err)
		}
		if strings.Contains(bucket, "-") {
			record.MonthlyGifts[bucket] = count
		} else {
			record.YearlyGifts[bucket] = count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read gift buckets for %q: %w", username, err)
	}
	return record, nil
}

// Leaderboard returns the top gifters by cumulative total.
func (a *Aggregator) Leaderboard(ctx context.Context, limit int) ([]*GiftStatRecord, error) {
	if limit < 1 {
		limit = 10
	}
	rows, err := a.db.QueryContext(ctx,
		`SELECT username, total_gifts, last_gift_date FROM gift_stats
         ORDER BY total_gifts DESC, username LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("read leaderboard: %w", err)
	}
	defer rows.Close()

	var records []*GiftStatRecord
	for rows.Next() {
		record := &GiftStatRecord{}
		var lastGift sql.NullString
		if err := rows.Scan(&record.Username, &record.TotalGifts, &lastGift); err != nil {
			return nil, fmt.Errorf("scan leaderboard row: %w", err)
		}
		if lastGift.Valid {
			if parsed, parseErr := time.Parse(time.RFC3339Nano, lastGift.String); parseErr == nil {
				record.LastGiftDate = parsed.UTC()
			}
		}
		records = append(records, record)
	}
	return records, rows.Err()
}
