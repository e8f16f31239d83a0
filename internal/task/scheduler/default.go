package scheduler

import (
	"context"
	"sync"
	"time"

	logx "tickd/pkg/logx"
)

var (
	defMu  sync.Mutex
	defSch *Scheduler
)

// Default returns the process-wide scheduler, creating it on first use.
// It starts itself on the first scheduling call and logs to stdout at info.
func Default() *Scheduler {
	defMu.Lock()
	defer defMu.Unlock()
	if defSch == nil {
		log := logx.NewConsole("info").With(logx.String("comp", "scheduler"))
		defSch = New(Config{AutoStart: true}, log, nil)
	}
	return defSch
}

// SetDefault replaces the process-wide scheduler and returns the previous
// one (nil if none). The previous scheduler is not stopped.
func SetDefault(s *Scheduler) *Scheduler {
	defMu.Lock()
	defer defMu.Unlock()
	prev := defSch
	defSch = s
	return prev
}

// Shutdown stops and drops the process-wide scheduler. A later call to
// Default creates a fresh one.
func Shutdown(ctx context.Context) error {
	defMu.Lock()
	s := defSch
	defSch = nil
	defMu.Unlock()
	if s == nil {
		return nil
	}
	return s.Stop(ctx)
}

func ScheduleOnce(delay time.Duration, work Work, opts ...TaskOption) (TaskID, error) {
	return Default().ScheduleOnce(delay, work, opts...)
}

func ScheduleFixedRate(interval time.Duration, work Work, opts ...TaskOption) (TaskID, error) {
	return Default().ScheduleFixedRate(interval, work, opts...)
}

func ScheduleFixedDelay(interval time.Duration, work Work, opts ...TaskOption) (TaskID, error) {
	return Default().ScheduleFixedDelay(interval, work, opts...)
}

func Cancel(id TaskID) bool { return Default().Cancel(id) }

func CancelAll() int { return Default().CancelAll() }

func PendingCount() int { return Default().PendingCount() }
