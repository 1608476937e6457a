package alerts

import (
	"regexp"
	"strings"
	"time"
)

// MediaKind classifies what an alert renders.
type MediaKind string

const (
	KindImage MediaKind = "image"
	KindAudio MediaKind = "audio"
	KindVideo MediaKind = "video"
)

// ParseMediaKind converts a string into a known MediaKind.
func ParseMediaKind(value string) (MediaKind, bool) {
	normalized := MediaKind(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case KindImage, KindAudio, KindVideo:
		return normalized, true
	}
	return "", false
}

// Definition describes an alert as authored in the editor subsystem. The queue
// engine reads definitions to resolve display duration and media kind during
// promotion; it never mutates them.
type Definition struct {
	ID              int64
	Slug            string
	Title           string
	MediaPath       string
	MediaKind       MediaKind
	DurationSeconds int
	IsGiftAlert     bool
	RepeatCount     int
	RepeatDelay     time.Duration
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Duration returns the authored display duration, or zero when unset.
func (d *Definition) Duration() time.Duration {
	if d == nil || d.DurationSeconds <= 0 {
		return 0
	}
	return time.Duration(d.DurationSeconds) * time.Second
}

var slugInvalidPattern = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify normalizes a title into the URL-safe slug used by trigger endpoints.
func Slugify(value string) string {
	lowered := strings.ToLower(strings.TrimSpace(value))
	slug := slugInvalidPattern.ReplaceAllString(lowered, "-")
	return strings.Trim(slug, "-")
}
