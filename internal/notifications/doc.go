// Package notifications delivers operator-facing events via ntfy.
//
// The default implementation publishes to the topic configured in
// config.toml and gracefully degrades to a no-op when notifications are
// disabled. All queue code depends only on the small Service interface, so
// alternative transports can be added without touching callers.
package notifications
