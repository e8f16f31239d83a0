package app

import (
	"context"
	"time"

	"tickd/internal/eventbus"
	"tickd/internal/storage"
	"tickd/internal/task/scheduler"
	logx "tickd/pkg/logx"
)

const journalAppendTimeout = 2 * time.Second

// runRecord converts a finished or failed run event into a journal record.
func runRecord(e eventbus.Event) (storage.RunRecord, bool) {
	te, ok := e.Data.(scheduler.TaskEvent)
	if !ok {
		return storage.RunRecord{}, false
	}
	outcome := storage.OutcomeOK
	switch e.Type {
	case scheduler.EventFinished:
	case scheduler.EventFailed:
		outcome = storage.OutcomeError
		if te.Panic {
			outcome = storage.OutcomePanic
		}
	default:
		return storage.RunRecord{}, false
	}
	return storage.RunRecord{
		Started:    te.Started,
		TaskID:     uint64(te.ID),
		Name:       te.Name,
		Mode:       te.Mode,
		LatenessMS: te.Lateness.Milliseconds(),
		DurationMS: te.Duration.Milliseconds(),
		Outcome:    outcome,
		Error:      te.Error,
	}, true
}

// journalRuns appends every completed run to j until ctx is done.
func journalRuns(ctx context.Context, bus eventbus.Bus, j storage.Journal, log logx.Logger) {
	eventbus.Consume(ctx, bus, 512, func(e eventbus.Event) {
		rec, ok := runRecord(e)
		if !ok {
			return
		}
		// Runs finishing during shutdown are still recorded.
		actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), journalAppendTimeout)
		defer cancel()
		if err := j.AppendRun(actx, rec); err != nil {
			log.Warn("run journal append failed", logx.String("task", rec.Name), logx.Err(err))
		}
	})
}
