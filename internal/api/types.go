package api

import (
	"time"

	"alertcast/internal/alerts"
	"alertcast/internal/queue"
	"alertcast/internal/stats"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// QueueEntry describes a queue entry in a transport-friendly format.
type QueueEntry struct {
	ID                  int64  `json:"id"`
	AlertID             int64  `json:"alertId"`
	Username            string `json:"username,omitempty"`
	GiftCount           int64  `json:"giftCount,omitempty"`
	Status              string `json:"status"`
	CreatedAt           string `json:"createdAt,omitempty"`
	ScheduledFor        string `json:"scheduledFor,omitempty"`
	ProcessingStartedAt string `json:"processingStartedAt,omitempty"`
	ScheduledCompletion string `json:"scheduledCompletion,omitempty"`
	PlayedAt            string `json:"playedAt,omitempty"`
	CompletedAt         string `json:"completedAt,omitempty"`
}

// AlertDefinition is the transport form of an authored alert.
type AlertDefinition struct {
	ID              int64  `json:"id"`
	Slug            string `json:"slug"`
	Title           string `json:"title"`
	MediaPath       string `json:"mediaPath,omitempty"`
	MediaKind       string `json:"mediaKind"`
	DurationSeconds int    `json:"durationSeconds"`
	IsGiftAlert     bool   `json:"isGiftAlert"`
	RepeatCount     int    `json:"repeatCount"`
	RepeatDelayMS   int64  `json:"repeatDelayMs"`
}

// LeaderboardEntry is one row of the gift leaderboard.
type LeaderboardEntry struct {
	Username     string `json:"username"`
	TotalGifts   int64  `json:"totalGifts"`
	LastGiftDate string `json:"lastGiftDate,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool           `json:"running"`
	PID          int            `json:"pid"`
	Paused       bool           `json:"paused"`
	QueueDBPath  string         `json:"queueDbPath"`
	LockFilePath string         `json:"lockFilePath"`
	QueueStats   map[string]int `json:"queueStats"`
}

// QueueListResponse wraps a collection of queue entries.
type QueueListResponse struct {
	Entries []QueueEntry `json:"entries"`
}

// QueueEntryResponse wraps a single queue entry.
type QueueEntryResponse struct {
	Entry QueueEntry `json:"entry"`
}

// QueueCountResponse carries the active-entry count for UI badges.
type QueueCountResponse struct {
	Count int `json:"count"`
}

// PauseStateResponse reports the pause flag.
type PauseStateResponse struct {
	Paused bool `json:"paused"`
}

// TriggerResponse lists the entries created by one trigger call.
type TriggerResponse struct {
	Entries []QueueEntry `json:"entries"`
}

// LeaderboardResponse wraps leaderboard rows and the visibility flag.
type LeaderboardResponse struct {
	Visible bool               `json:"visible"`
	Entries []LeaderboardEntry `json:"entries"`
}

// ClearCompletedResponse reports how many history rows were removed.
type ClearCompletedResponse struct {
	Removed int64 `json:"removed"`
}

// SweepResponse summarizes one reconciliation pass.
type SweepResponse struct {
	Promoted       int `json:"promoted"`
	Expired        int `json:"expired"`
	Stale          int `json:"stale"`
	ForceCompleted int `json:"forceCompleted"`
}

// AlertListResponse wraps alert definitions.
type AlertListResponse struct {
	Alerts []AlertDefinition `json:"alerts"`
}

// FromQueueEntry converts an internal entry into its DTO.
func FromQueueEntry(entry *queue.Entry) QueueEntry {
	if entry == nil {
		return QueueEntry{}
	}
	return QueueEntry{
		ID:                  entry.ID,
		AlertID:             entry.AlertID,
		Username:            entry.Username,
		GiftCount:           entry.GiftCount,
		Status:              string(entry.Status),
		CreatedAt:           formatTimestamp(entry.CreatedAt),
		ScheduledFor:        formatTimestamp(entry.ScheduledFor),
		ProcessingStartedAt: formatTimestampPtr(entry.ProcessingStartedAt),
		ScheduledCompletion: formatTimestampPtr(entry.ScheduledCompletion),
		PlayedAt:            formatTimestampPtr(entry.PlayedAt),
		CompletedAt:         formatTimestampPtr(entry.CompletedAt),
	}
}

// FromQueueEntries converts a slice of entries.
func FromQueueEntries(entries []*queue.Entry) []QueueEntry {
	out := make([]QueueEntry, 0, len(entries))
	for _, entry := range entries {
		out = append(out, FromQueueEntry(entry))
	}
	return out
}

// FromDefinition converts an alert definition into its DTO.
func FromDefinition(def *alerts.Definition) AlertDefinition {
	if def == nil {
		return AlertDefinition{}
	}
	return AlertDefinition{
		ID:              def.ID,
		Slug:            def.Slug,
		Title:           def.Title,
		MediaPath:       def.MediaPath,
		MediaKind:       string(def.MediaKind),
		DurationSeconds: def.DurationSeconds,
		IsGiftAlert:     def.IsGiftAlert,
		RepeatCount:     def.RepeatCount,
		RepeatDelayMS:   def.RepeatDelay.Milliseconds(),
	}
}

// FromGiftStats converts leaderboard records.
func FromGiftStats(records []*stats.GiftStatRecord) []LeaderboardEntry {
	out := make([]LeaderboardEntry, 0, len(records))
	for _, record := range records {
		entry := LeaderboardEntry{
			Username:   record.Username,
			TotalGifts: record.TotalGifts,
		}
		if !record.LastGiftDate.IsZero() {
			entry.LastGiftDate = record.LastGiftDate.Format(dateTimeFormat)
		}
		out = append(out, entry)
	}
	return out
}

// MergeQueueStats converts status-keyed counts into string keys, filling in
// zeroes for missing statuses so consumers get a stable shape.
func MergeQueueStats(counts map[queue.Status]int) map[string]int {
	statuses := queue.AllStatuses()
	merged := make(map[string]int, len(statuses))
	for _, status := range statuses {
		merged[string(status)] = counts[status]
	}
	return merged
}

func formatTimestamp(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(dateTimeFormat)
}

func formatTimestampPtr(value *time.Time) string {
	if value == nil {
		return ""
	}
	return formatTimestamp(*value)
}
