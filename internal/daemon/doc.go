// Package daemon wires the queue engine's long-running services: the SQLite
// queue store, the reconciliation sweep loop, the local playback manager, the
// completion broadcaster, and the HTTP API. A file lock enforces a single
// daemon instance per data directory.
package daemon
