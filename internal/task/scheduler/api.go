package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	logx "tickd/pkg/logx"
)

// ScheduleOnce runs work once after delay. A delay <= 0 means as soon as possible.
func (s *Scheduler) ScheduleOnce(delay time.Duration, work Work, opts ...TaskOption) (TaskID, error) {
	if delay < 0 {
		delay = 0
	}
	return s.add(RepeatNone, 0, delay, work, opts)
}

// ScheduleFixedRate runs work every interval on a fixed grid starting at
// now+interval. If a run overruns, missed ticks are skipped (coalesced) and
// the next run lands on the first grid tick that is not in the past.
func (s *Scheduler) ScheduleFixedRate(interval time.Duration, work Work, opts ...TaskOption) (TaskID, error) {
	if interval <= 0 {
		return 0, fmt.Errorf("%w: fixed-rate interval must be > 0, got %s", ErrInvalidArgument, interval)
	}
	return s.add(RepeatFixedRate, interval, interval, work, opts)
}

// ScheduleFixedDelay runs work first at now+interval, then interval after
// each run completes.
func (s *Scheduler) ScheduleFixedDelay(interval time.Duration, work Work, opts ...TaskOption) (TaskID, error) {
	if interval <= 0 {
		return 0, fmt.Errorf("%w: fixed-delay interval must be > 0, got %s", ErrInvalidArgument, interval)
	}
	return s.add(RepeatFixedDelay, interval, interval, work, opts)
}

// Schedule registers work according to a parsed schedule spec.
func (s *Scheduler) Schedule(spec ParsedSpec, work Work, opts ...TaskOption) (TaskID, error) {
	switch spec.Mode {
	case RepeatNone:
		return s.ScheduleOnce(spec.Every, work, opts...)
	case RepeatFixedRate:
		return s.ScheduleFixedRate(spec.Every, work, opts...)
	case RepeatFixedDelay:
		return s.ScheduleFixedDelay(spec.Every, work, opts...)
	default:
		return 0, fmt.Errorf("%w: unknown repeat mode %d", ErrInvalidArgument, spec.Mode)
	}
}

func (s *Scheduler) add(mode RepeatMode, interval, delay time.Duration, work Work, opts []TaskOption) (TaskID, error) {
	if work == nil {
		return 0, fmt.Errorf("%w: work is nil", ErrInvalidArgument)
	}
	var o taskOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	s.mu.Lock()
	autoStart := false
	if !s.runningLocked() {
		switch {
		case s.cfg.AutoStart && s.stopCh == nil:
			autoStart = true
		case s.cfg.Strict:
			s.mu.Unlock()
			return 0, ErrNotRunning
		}
	}

	s.lastID++
	id := TaskID(s.lastID)
	name := strings.TrimSpace(o.name)
	if name == "" {
		name = id.String()
	}
	e := newEntry(id, name, work, mode, interval, o, time.Now().Add(delay), s.cfg.SkipWarnEvery)
	s.q.insert(e)
	if autoStart {
		s.startLocked(context.Background())
	}
	s.mu.Unlock()
	s.signal()

	s.log.Debug("task scheduled",
		logx.Uint64("id", uint64(id)),
		logx.String("task", name),
		logx.String("mode", mode.String()),
		logx.Duration("delay", delay),
		logx.Duration("interval", interval),
	)
	return id, nil
}

// Cancel prevents any future run of id. A run already in progress is not
// interrupted. It returns false if id is unknown, already cancelled, or a
// one-shot task that has already started.
func (s *Scheduler) Cancel(id TaskID) bool {
	s.mu.Lock()
	ok := s.q.cancel(id)
	s.mu.Unlock()
	if !ok {
		return false
	}
	s.cancelled.Add(1)
	s.signal()
	s.publish(EventCancelled, TaskEvent{ID: id})
	s.log.Debug("task cancelled", logx.Uint64("id", uint64(id)))
	return true
}

// CancelAll cancels every queued task, and the repeat of a task currently
// running, and returns how many were cancelled.
func (s *Scheduler) CancelAll() int {
	s.mu.Lock()
	n := s.q.clear()
	s.mu.Unlock()
	if n == 0 {
		return 0
	}
	s.cancelled.Add(uint64(n))
	s.signal()
	s.log.Debug("all tasks cancelled", logx.Int("count", n))
	return n
}
