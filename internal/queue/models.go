package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a queue entry. The state machine is
// strictly forward-only: pending -> playing -> completed.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPlaying   Status = "playing"
	StatusCompleted Status = "completed"
)

var allStatuses = []Status{
	StatusPending,
	StatusPlaying,
	StatusCompleted,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether a status permits no further transitions.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted
}

// Entry represents one scheduled occurrence of an alert.
type Entry struct {
	ID                  int64
	AlertID             int64
	Username            string
	GiftCount           int64
	Status              Status
	CreatedAt           time.Time
	ScheduledFor        time.Time
	ProcessingStartedAt *time.Time
	ScheduledCompletion *time.Time
	PlayedAt            *time.Time
	CompletedAt         *time.Time
}

// HasGiftPayload reports whether the entry carries gift metadata worth
// aggregating.
func (e *Entry) HasGiftPayload() bool {
	return e != nil && strings.TrimSpace(e.Username) != "" && e.GiftCount > 0
}

// NewEntry describes an entry to insert.
type NewEntry struct {
	AlertID      int64
	Username     string
	GiftCount    int64
	ScheduledFor time.Time
}

// HealthSummary describes aggregated queue counts per lifecycle state.
type HealthSummary struct {
	Total     int
	Pending   int
	Playing   int
	Completed int
}
