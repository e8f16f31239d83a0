package storage

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
)

var ErrClosed = errors.New("journal closed")

// Config configures the run journal.
//
// Driver values:
//   - "file": JSON Lines file, compacted to the newest MaxRows records
//   - "sqlite": SQLite database file (pure Go driver)
//
// If Driver is empty or "none", the journal is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
	MaxRows     int           // 0 means defaultMaxRows
}

const defaultMaxRows = 10000

func (c Config) maxRows() int {
	if c.MaxRows <= 0 {
		return defaultMaxRows
	}
	return c.MaxRows
}

// Outcome values for RunRecord.Outcome.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
	OutcomePanic = "panic"
)

// RunRecord is one completed task run.
// Keep it compact and schema-stable.
type RunRecord struct {
	// RunID is a ULID assigned on append when empty; it sorts by time.
	RunID      string    `json:"run_id"`
	Started    time.Time `json:"started"`
	TaskID     uint64    `json:"task_id"`
	Name       string    `json:"name"`
	Mode       string    `json:"mode"`
	LatenessMS int64     `json:"lateness_ms"`
	DurationMS int64     `json:"duration_ms"`
	Outcome    string    `json:"outcome"`
	Error      string    `json:"error,omitempty"`
}

// Journal is an append-only record of task runs.
type Journal interface {
	AppendRun(ctx context.Context, r RunRecord) error
	// Recent returns up to n records, newest first.
	Recent(ctx context.Context, n int) ([]RunRecord, error)
	Close() error
}

func ensureRunID(r *RunRecord) {
	if r.RunID == "" {
		r.RunID = ulid.Make().String()
	}
}
