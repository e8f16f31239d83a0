package scheduler

import (
	"context"
	"strconv"
	"time"
)

// TaskID identifies a scheduled task for its whole lifetime, across every
// repeat. IDs are never reused within one Scheduler.
type TaskID uint64

func (id TaskID) String() string { return "task-" + strconv.FormatUint(uint64(id), 10) }

// RepeatMode selects how a task is rescheduled after it runs.
type RepeatMode int

const (
	// RepeatNone runs the task once.
	RepeatNone RepeatMode = iota
	// RepeatFixedRate runs ticks at start+k*interval regardless of run time.
	// Ticks missed because a run overran are coalesced, not replayed.
	RepeatFixedRate
	// RepeatFixedDelay waits interval after each run completes.
	RepeatFixedDelay
)

func (m RepeatMode) String() string {
	switch m {
	case RepeatNone:
		return "once"
	case RepeatFixedRate:
		return "fixed-rate"
	case RepeatFixedDelay:
		return "fixed-delay"
	default:
		return "unknown"
	}
}

// Work is the unit of work run by the scheduler. Arguments are captured by
// the closure at schedule time.
//
// ctx is canceled when the scheduler stops (and at the task timeout, if any).
// Work should return promptly once ctx is done; Stop waits for it regardless.
type Work func(ctx context.Context) error

// Config controls a Scheduler.
type Config struct {
	// Strict rejects scheduling calls with ErrNotRunning while the scheduler
	// is stopped. By default such entries are queued and run after Start.
	Strict bool

	// AutoStart starts the worker on the first scheduling call.
	AutoStart bool

	// StopTimeout bounds Stop when the caller's context has no deadline.
	// 0 applies the default (5s); negative waits without bound.
	StopTimeout time.Duration

	// HistorySize is the number of recent runs kept for Snapshot.
	// 0 applies the default (200); negative disables history.
	HistorySize int

	// SkipWarnEvery throttles per-task warn-level "ticks skipped" notices.
	// 0 applies the default (5s).
	SkipWarnEvery time.Duration
}

const (
	defaultStopTimeout   = 5 * time.Second
	defaultHistorySize   = 200
	defaultSkipWarnEvery = 5 * time.Second
)

func (c Config) withDefaults() Config {
	if c.StopTimeout == 0 {
		c.StopTimeout = defaultStopTimeout
	}
	if c.HistorySize == 0 {
		c.HistorySize = defaultHistorySize
	}
	if c.SkipWarnEvery <= 0 {
		c.SkipWarnEvery = defaultSkipWarnEvery
	}
	return c
}

// TaskOption customizes a single scheduling call.
type TaskOption func(*taskOptions)

type taskOptions struct {
	name    string
	timeout time.Duration
}

// WithName labels the task in logs, events and history.
func WithName(name string) TaskOption {
	return func(o *taskOptions) { o.name = name }
}

// WithTimeout bounds each run's context. The scheduler does not abandon a
// run that ignores its context.
func WithTimeout(d time.Duration) TaskOption {
	return func(o *taskOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// Event types published on the event bus.
const (
	EventStarted   = "task.started"
	EventFinished  = "task.finished"
	EventFailed    = "task.failed"
	EventSkipped   = "task.skipped"
	EventCancelled = "task.cancelled"
)

// TaskEvent is the Data payload of scheduler events.
type TaskEvent struct {
	ID       TaskID        `json:"id"`
	Name     string        `json:"name"`
	Mode     string        `json:"mode"`
	DueAt    time.Time     `json:"due_at"`
	Started  time.Time     `json:"started"`
	Lateness time.Duration `json:"lateness"`
	Duration time.Duration `json:"duration"`
	Skipped  int64         `json:"skipped,omitempty"`
	Error    string        `json:"error,omitempty"`
	Panic    bool          `json:"panic,omitempty"`
}

type HistoryItem struct {
	ID       TaskID
	Name     string
	Mode     RepeatMode
	DueAt    time.Time
	Started  time.Time
	Lateness time.Duration
	Duration time.Duration
	Error    string
}

// Snapshot is a point-in-time view for diagnostics.
type Snapshot struct {
	Running bool
	Pending int
	NextDue time.Time // zero when nothing is queued

	CurrentID   TaskID // 0 when idle
	CurrentName string

	Executed     uint64
	Failed       uint64
	Panics       uint64
	SkippedTicks uint64
	Cancelled    uint64

	History []HistoryItem
}
