// Package api defines wire-format types, converters, and services for the
// HTTP API layer. It translates internal queue models into transport-friendly
// DTOs so overlay clients and operator tooling never couple to internal types.
//
// DTOs use camelCase JSON tags for JavaScript consumers. Internal enums
// (queue.Status, alerts.MediaKind) are exposed as lowercase strings and
// timestamps use RFC3339 with milliseconds.
package api
