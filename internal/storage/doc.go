// Package storage persists the run journal: a bounded, append-only record
// of task runs kept for post-mortem inspection.
//
// Schedules themselves are never persisted; a restarted daemon rebuilds
// them from its config.
package storage
