// Package queue persists alert queue entries in SQLite and exposes the
// conditional transitions that coordinate playback across clients and the
// reconciliation sweep.
//
// Every status transition is conditioned on the row's current status, so
// concurrent writers resolve to exactly one winner and losers observe a plain
// zero-rows-affected outcome rather than an error. A partial unique index on
// playing rows enforces the single now-playing slot at the data layer.
//
// Treat this package as the single source of truth for queue semantics; the
// alert_definitions and gift_stats tables live in the same schema.sql and are
// served to sibling packages through the shared database handle. Schema
// changes bump schemaVersion; users clear the database to adopt the new
// schema.
package queue
