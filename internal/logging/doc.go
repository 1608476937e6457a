// Package logging wraps log/slog with the handlers and attribute helpers used
// throughout alertcast.
//
// Two output formats are supported: a compact console format for interactive
// use and standard JSON for ingestion. Attribute helpers (String, Int64,
// Error, ...) keep call sites terse, and the Field* constants keep keys
// consistent so queue activity can be traced by entry_id across the sweeper,
// the playback manager, and the API server.
package logging
