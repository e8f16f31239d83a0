// Package app wires the tickd daemon: config, logging, the scheduler and its
// jobs, the run journal, metrics and the observability HTTP server.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/prometheus/client_golang/prometheus"

	"tickd/internal/config"
	"tickd/internal/eventbus"
	"tickd/internal/metrics"
	"tickd/internal/observability/httpd"
	rtsup "tickd/internal/runtime/supervisor"
	"tickd/internal/storage"
	"tickd/internal/task/scheduler"
	logx "tickd/pkg/logx"
)

type App struct {
	cfgPath string

	cfgm *config.Manager
	sup  *rtsup.Supervisor
	// consumers outlive sup so runs finishing during Stop are still observed.
	consumers *rtsup.Supervisor

	log     logx.Logger
	logs    *logx.Service
	bus     eventbus.Bus
	journal storage.Journal

	sched   *scheduler.Scheduler
	jobs    *jobSet
	reg     *prometheus.Registry
	metrics *metrics.SchedulerMetrics
	httpd   *httpd.Service
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load(context.Background())
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLoggingConfig(cfg))
	log = log.With(logx.String("comp", "app"))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	bus := eventbus.New()

	// Run journal (optional)
	var journal storage.Journal
	if sc, enabled, err := mapStorageConfig(cfg); err != nil {
		return nil, err
	} else if enabled {
		j, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
		if err != nil {
			return nil, err
		}
		journal = j
		log.Info("run journal enabled", logx.String("driver", sc.Driver), logx.String("path", sc.Path))
	}

	schedCfg, err := mapSchedulerConfig(cfg)
	if err != nil {
		closeJournal(journal)
		return nil, err
	}
	sched := scheduler.New(schedCfg, log.With(logx.String("comp", "scheduler")), bus)

	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg, bus, sched.Snapshot)
	if err != nil {
		closeJournal(journal)
		return nil, fmt.Errorf("metrics: %w", err)
	}

	return &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		bus:     bus,
		journal: journal,
		sched:   sched,
		jobs:    newJobSet(sched, log.With(logx.String("comp", "jobs"))),
		reg:     reg,
		metrics: m,
		httpd:   httpd.New(mapHTTPDConfig(cfg), reg, sched.IsRunning, log.With(logx.String("comp", "httpd"))),
	}, nil
}

func closeJournal(j storage.Journal) {
	if j != nil {
		_ = j.Close()
	}
}

// Scheduler returns the scheduler hosted by the app.
func (a *App) Scheduler() *scheduler.Scheduler { return a.sched }

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// Reload re-reads the config file now. Changes are applied by the reload loop.
func (a *App) Reload(ctx context.Context) error {
	_, err := a.cfgm.Reload(ctx)
	return err
}

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))
	c := a.sup.Context()

	// Consumers subscribe before the first job can run.
	a.consumers = rtsup.New(context.WithoutCancel(ctx), rtsup.WithLogger(a.log))
	a.consumers.Go0("metrics.observe", func(c context.Context) { a.metrics.Run(c, a.bus) })
	if a.journal != nil {
		a.consumers.Go0("journal.append", func(c context.Context) {
			journalRuns(c, a.bus, a.journal, a.log.With(logx.String("comp", "journal")))
		})
	}
	a.consumers.Go0("eventbus.log", func(c context.Context) {
		eventbus.Consume(c, a.bus, 128, func(e eventbus.Event) {
			// Debug-level: fixed-rate jobs are frequent.
			a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
		})
	})

	// The scheduler outlives the app context; Stop stops it explicitly so
	// in-flight runs are waited for.
	a.sched.Start(context.WithoutCancel(c))

	cfg := a.cfgm.Get()
	added, _, err := a.jobs.Reconcile(cfg.Jobs)
	if err != nil {
		return fmt.Errorf("schedule jobs: %w", err)
	}
	a.log.Info("jobs scheduled", logx.Int("count", added))

	a.httpd.Reconfigure(c, mapHTTPDConfig(cfg))

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(c, sub)
	})
	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})
	a.sup.Go0("systemd.watchdog", func(c context.Context) {
		watchdog(c, a.log.With(logx.String("comp", "systemd")), a.sched.IsRunning)
	})

	sdNotify(a.log, daemon.SdNotifyReady)
	a.log.Info("app started", logx.String("config", a.cfgPath))
	return nil
}

// reloadLoop applies published configs until ctx is done.
func (a *App) reloadLoop(ctx context.Context, sub <-chan *config.Config) {
	lastApplied := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case newCfg, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts: keep only the latest config.
		drain:
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						newCfg = newer
					}
				default:
					break drain
				}
			}
			a.applyConfig(ctx, lastApplied, newCfg)
			lastApplied = newCfg
		}
	}
}

func (a *App) applyConfig(ctx context.Context, prev, next *config.Config) {
	sdNotify(a.log, daemon.SdNotifyReloading)
	defer sdNotify(a.log, daemon.SdNotifyReady)

	sections, attrs, changedJobs := config.SummarizeChange(prev, next)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Debug("config change summary", fields...)

	for _, s := range sections {
		switch s {
		case "storage":
			a.log.Warn("storage config changed; restart required for changes to take effect")
		case "scheduler":
			a.log.Warn("scheduler config changed; restart required for changes to take effect")
		}
	}

	a.logs.Apply(mapLoggingConfig(next))
	a.httpd.Reconfigure(ctx, mapHTTPDConfig(next))

	if len(changedJobs) > 0 {
		added, removed, err := a.jobs.Reconcile(next.Jobs)
		if err != nil {
			a.log.Warn("some jobs could not be scheduled", logx.Err(err))
		}
		a.log.Info("jobs reconciled",
			logx.Any("changed", changedJobs),
			logx.Int("added", added),
			logx.Int("removed", removed),
		)
	}

	a.log.Info("config reloaded", fields...)
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	sdNotify(a.log, daemon.SdNotifyStopping)

	// Cancel the app context first so background loops start unwinding.
	a.sup.Cancel()

	a.step(ctx, "scheduler", 6*time.Second, func(c context.Context) error {
		defer a.jobs.Clear()
		return a.sched.Stop(c)
	})
	a.step(ctx, "httpd", 1*time.Second, func(c context.Context) error { a.httpd.Stop(c); return nil })
	// The journal consumer must exit before the journal is closed under it.
	a.step(ctx, "consumers", 1*time.Second, func(c context.Context) error {
		return a.consumers.Stop(c)
	})
	a.step(ctx, "supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })
	a.step(ctx, "storage", 1*time.Second, func(c context.Context) error {
		if a.journal != nil {
			return a.journal.Close()
		}
		return nil
	})

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}

// step runs one shutdown step bounded by max and by ctx's deadline, so one
// component cannot stall the whole stop.
func (a *App) step(ctx context.Context, name string, max time.Duration, fn func(context.Context) error) {
	start := time.Now()
	a.log.Debug("stop step begin", logx.String("name", name), logx.Duration("max", max))

	stepCtx := ctx
	if max > 0 {
		var cancel context.CancelFunc
		stepCtx, cancel = context.WithTimeout(ctx, max)
		defer cancel()
	}

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic in stop step %s: %v", name, r)
			}
		}()
		done <- fn(stepCtx)
	}()

	select {
	case err := <-done:
		if err != nil {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
		}
		took := time.Since(start)
		if took >= 500*time.Millisecond {
			a.log.Info("stop step end", logx.String("name", name), logx.Duration("took", took))
		} else {
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", took))
		}
	case <-stepCtx.Done():
		a.log.Warn("stop step deadline reached (continuing)",
			logx.String("name", name),
			logx.Err(stepCtx.Err()),
			logx.Duration("elapsed", time.Since(start)),
		)
		go func() {
			err := <-done
			took := time.Since(start)
			if err != nil {
				a.log.Warn("stop step finished after deadline", logx.String("name", name), logx.Err(err), logx.Duration("took", took))
			} else {
				a.log.Info("stop step finished after deadline", logx.String("name", name), logx.Duration("took", took))
			}
		}()
	}
}
