package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	logx "tickd/pkg/logx"
)

// run is the worker loop. It pops due entries one at a time and runs them
// synchronously, and otherwise sleeps until the earliest due time, a wake
// signal, or stop.
func (s *Scheduler) run(ctx context.Context, stopCh <-chan struct{}) {
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		s.mu.Lock()
		// stopCh is closed under s.mu, so nothing is popped after Stop cleared the queue.
		select {
		case <-stopCh:
			s.mu.Unlock()
			return
		default:
		}
		now := time.Now()
		if e := s.q.popDueBefore(now); e != nil {
			s.q.current = e
			s.mu.Unlock()

			res := s.execute(ctx, e)
			s.finish(e, res, stopCh)
			continue
		}
		due, ok := s.q.peekDueAt()
		s.mu.Unlock()

		var timerC <-chan time.Time
		if ok {
			timer.Reset(time.Until(due))
			timerC = timer.C
		}
		select {
		case <-stopCh:
			return
		case <-s.wake:
		case <-timerC:
		}
		timer.Stop()
	}
}

type runResult struct {
	started  time.Time
	finished time.Time
	err      error
}

// execute runs e.work outside the lock. A panic is recovered into a
// *PanicError; neither errors nor panics escape the worker.
func (s *Scheduler) execute(ctx context.Context, e *entry) runResult {
	runCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	started := time.Now()
	s.publish(EventStarted, TaskEvent{
		ID:       e.id,
		Name:     e.name,
		Mode:     e.mode.String(),
		DueAt:    e.dueAt,
		Started:  started,
		Lateness: started.Sub(e.dueAt),
	})

	err := s.invoke(runCtx, e)
	return runResult{started: started, finished: time.Now(), err: err}
}

func (s *Scheduler) invoke(ctx context.Context, e *entry) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Task: e.id, Name: e.name, Value: r, Stack: string(debug.Stack())}
		}
	}()
	return e.work(ctx)
}

// finish records the run, then re-inserts a repeating entry unless it was
// cancelled while running.
func (s *Scheduler) finish(e *entry, res runResult, stopCh <-chan struct{}) {
	e.runs++
	s.executed.Add(1)
	s.recordRun(e, res)

	var (
		skipped  int64
		requeued bool
	)
	s.mu.Lock()
	s.q.current = nil
	if e.mode != RepeatNone && !e.cancelled {
		next, k := nextDue(e.mode, e.interval, e.dueAt, res.finished)
		e.dueAt = next
		skipped = k
		select {
		case <-stopCh:
			// Stop raced with the run; the entry goes away with the rest of the queue.
		default:
			s.q.insert(e)
			requeued = true
		}
	}
	s.mu.Unlock()

	if skipped > 0 && requeued {
		s.reportSkipped(e, skipped)
	}
}

// recordRun logs, counts and publishes the outcome of one run.
func (s *Scheduler) recordRun(e *entry, res runResult) {
	dur := res.finished.Sub(res.started)
	ev := TaskEvent{
		ID:       e.id,
		Name:     e.name,
		Mode:     e.mode.String(),
		DueAt:    e.dueAt,
		Started:  res.started,
		Lateness: res.started.Sub(e.dueAt),
		Duration: dur,
	}

	item := HistoryItem{
		ID:       e.id,
		Name:     e.name,
		Mode:     e.mode,
		DueAt:    e.dueAt,
		Started:  res.started,
		Lateness: ev.Lateness,
		Duration: dur,
	}

	if res.err == nil {
		s.appendHistory(item)
		s.publish(EventFinished, ev)
		s.log.Debug("task finished",
			logx.Uint64("id", uint64(e.id)),
			logx.String("task", e.name),
			logx.Duration("took", dur),
			logx.Duration("late", ev.Lateness),
		)
		return
	}

	s.failed.Add(1)
	ev.Error = res.err.Error()
	item.Error = ev.Error

	var pe *PanicError
	if errors.As(res.err, &pe) {
		s.panics.Add(1)
		ev.Panic = true
		s.log.Error("task panic",
			logx.Uint64("id", uint64(e.id)),
			logx.String("task", e.name),
			logx.String("panic", fmt.Sprint(pe.Value)),
			logx.Stack(pe.Stack),
		)
	} else {
		s.log.Warn("task failed",
			logx.Uint64("id", uint64(e.id)),
			logx.String("task", e.name),
			logx.Duration("took", dur),
			logx.Err(res.err),
		)
	}
	s.appendHistory(item)
	s.publish(EventFailed, ev)
}
