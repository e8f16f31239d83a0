package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"tickd/internal/config"
	"tickd/internal/task/scheduler"
	logx "tickd/pkg/logx"
)

// jobSet keeps the scheduler's configured jobs in sync with the config file.
type jobSet struct {
	sched *scheduler.Scheduler
	log   logx.Logger

	mu     sync.Mutex
	active map[string]activeJob
}

type activeJob struct {
	cfg config.JobConfig
	id  scheduler.TaskID
}

func newJobSet(sched *scheduler.Scheduler, log logx.Logger) *jobSet {
	return &jobSet{sched: sched, log: log, active: map[string]activeJob{}}
}

// Reconcile cancels jobs that were removed, disabled or changed and schedules
// the new or changed ones. Unchanged jobs keep their task and phase.
func (js *jobSet) Reconcile(jobs []config.JobConfig) (added, removed int, err error) {
	want := make(map[string]config.JobConfig, len(jobs))
	for _, j := range jobs {
		if j.Disabled {
			continue
		}
		want[strings.TrimSpace(j.Name)] = j
	}

	js.mu.Lock()
	defer js.mu.Unlock()

	for name, cur := range js.active {
		if next, ok := want[name]; ok && next == cur.cfg {
			continue
		}
		js.sched.Cancel(cur.id)
		delete(js.active, name)
		removed++
		js.log.Debug("job unscheduled", logx.String("job", name), logx.Uint64("id", uint64(cur.id)))
	}

	names := make([]string, 0, len(want))
	for name := range want {
		if _, ok := js.active[name]; !ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var errs []error
	for _, name := range names {
		j := want[name]
		id, serr := js.schedule(j)
		if serr != nil {
			errs = append(errs, fmt.Errorf("job %q: %w", name, serr))
			continue
		}
		js.active[name] = activeJob{cfg: j, id: id}
		added++
		js.log.Debug("job scheduled",
			logx.String("job", name),
			logx.Uint64("id", uint64(id)),
			logx.String("schedule", j.Schedule),
		)
	}
	if len(errs) > 0 {
		return added, removed, errors.Join(errs...)
	}
	return added, removed, nil
}

func (js *jobSet) schedule(j config.JobConfig) (scheduler.TaskID, error) {
	spec, err := scheduler.ParseSchedule(j.Schedule)
	if err != nil {
		return 0, err
	}
	timeout, err := config.ParseDurationField("jobs."+j.Name+".timeout", j.Timeout)
	if err != nil {
		return 0, err
	}
	work, err := js.work(j)
	if err != nil {
		return 0, err
	}
	return js.sched.Schedule(spec, work, scheduler.WithName(j.Name), scheduler.WithTimeout(timeout))
}

func (js *jobSet) work(j config.JobConfig) (scheduler.Work, error) {
	log := js.log.With(logx.String("job", j.Name))
	var runs atomic.Uint64

	switch strings.ToLower(strings.TrimSpace(j.Action)) {
	case config.ActionLog, "":
		msg := j.Message
		if strings.TrimSpace(msg) == "" {
			msg = "tick"
		}
		return func(ctx context.Context) error {
			log.Info(msg, logx.Uint64("run", runs.Add(1)))
			return nil
		}, nil
	case config.ActionSnapshot:
		return func(ctx context.Context) error {
			snap := js.sched.Snapshot()
			log.Info("scheduler snapshot",
				logx.Uint64("run", runs.Add(1)),
				logx.Int("pending", snap.Pending),
				logx.Uint64("executed", snap.Executed),
				logx.Uint64("failed", snap.Failed),
				logx.Uint64("panics", snap.Panics),
				logx.Uint64("skipped_ticks", snap.SkippedTicks),
				logx.Uint64("cancelled", snap.Cancelled),
			)
			return nil
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown action %q", scheduler.ErrInvalidArgument, j.Action)
	}
}

// Names returns the scheduled job names, sorted.
func (js *jobSet) Names() []string {
	js.mu.Lock()
	defer js.mu.Unlock()
	out := make([]string, 0, len(js.active))
	for name := range js.active {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Clear forgets all jobs. The scheduler discards its queue on Stop.
func (js *jobSet) Clear() {
	js.mu.Lock()
	js.active = map[string]activeJob{}
	js.mu.Unlock()
}
