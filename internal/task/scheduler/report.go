package scheduler

import (
	"time"

	logx "tickd/pkg/logx"
)

// reportSkipped records fixed-rate ticks coalesced after an overrun. The
// warn-level notice is throttled per task; the rest go to debug.
func (s *Scheduler) reportSkipped(e *entry, skipped int64) {
	s.skipped.Add(uint64(skipped))
	s.publish(EventSkipped, TaskEvent{
		ID:      e.id,
		Name:    e.name,
		Mode:    e.mode.String(),
		DueAt:   e.dueAt,
		Skipped: skipped,
	})

	fields := []logx.Field{
		logx.Uint64("id", uint64(e.id)),
		logx.String("task", e.name),
		logx.Int64("skipped", skipped),
		logx.Duration("interval", e.interval),
		logx.Duration("next_in", time.Until(e.dueAt)),
		logx.Uint64("runs", e.runs),
	}
	warned := false
	e.skipNotice.Do(func() {
		warned = true
		s.log.Warn("ticks skipped: run overran its interval", fields...)
	})
	if !warned {
		s.log.Debug("ticks skipped", fields...)
	}
}
