package scheduler

import (
	"time"

	"golang.org/x/time/rate"
)

// entry is one scheduled task. Scheduling fields are guarded by Scheduler.mu;
// work, id, name and mode never change after creation.
type entry struct {
	id       TaskID
	name     string
	work     Work
	mode     RepeatMode
	interval time.Duration
	timeout  time.Duration

	// dueAt comes from time.Now() and keeps its monotonic reading.
	dueAt time.Time
	seq   uint64
	index int // position in the heap; -1 when not queued

	cancelled bool

	// Worker-only state.
	runs       uint64
	skipNotice rate.Sometimes
}

func newEntry(id TaskID, name string, work Work, mode RepeatMode, interval time.Duration, o taskOptions, dueAt time.Time, warnEvery time.Duration) *entry {
	return &entry{
		id:         id,
		name:       name,
		work:       work,
		mode:       mode,
		interval:   interval,
		timeout:    o.timeout,
		dueAt:      dueAt,
		index:      -1,
		skipNotice: rate.Sometimes{First: 1, Interval: warnEvery},
	}
}

// nextDue returns the due time of the occurrence after one that was due at
// prevDue and finished at finished.
//
// Fixed-rate ticks stay on the prevDue+k*interval grid. If the run overran so
// the next tick is already behind finished, it jumps to the first grid tick
// at or after finished and reports how many ticks were skipped.
// Fixed-delay measures interval from finished.
func nextDue(mode RepeatMode, interval time.Duration, prevDue, finished time.Time) (next time.Time, skipped int64) {
	switch mode {
	case RepeatFixedRate:
		next = prevDue.Add(interval)
		if next.Before(finished) {
			behind := finished.Sub(next)
			skipped = int64(behind / interval)
			if behind%interval != 0 {
				skipped++
			}
			next = next.Add(time.Duration(skipped) * interval)
		}
		return next, skipped
	case RepeatFixedDelay:
		return finished.Add(interval), 0
	default:
		return time.Time{}, 0
	}
}
