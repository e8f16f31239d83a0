// Package metrics exposes scheduler activity as Prometheus collectors.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"tickd/internal/eventbus"
	"tickd/internal/task/scheduler"
)

const (
	namespace = "tickd"
	subsystem = "scheduler"
)

// SchedulerMetrics holds the scheduler collectors. Counters are driven by
// bus events; gauges are sampled from a Snapshot source at scrape time.
type SchedulerMetrics struct {
	runs      *prometheus.CounterVec
	duration  prometheus.Histogram
	lateness  prometheus.Histogram
	skipped   prometheus.Counter
	cancelled prometheus.Counter
	busDrops  prometheus.CounterFunc
	pending   prometheus.GaugeFunc
	running   prometheus.GaugeFunc
}

// New creates the collectors and registers them (plus Go and process
// collectors) with reg. snap feeds the pending/running gauges; it may be nil.
func New(reg prometheus.Registerer, bus eventbus.Bus, snap func() scheduler.Snapshot) (*SchedulerMetrics, error) {
	if snap == nil {
		snap = func() scheduler.Snapshot { return scheduler.Snapshot{} }
	}
	m := &SchedulerMetrics{
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "runs_total",
				Help:      "Total task runs by outcome",
			},
			[]string{"outcome"},
		),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "run_duration_seconds",
			Help:      "Task run duration",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
		lateness: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "start_lateness_seconds",
			Help:      "Delay between a task's due time and its start",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 10),
		}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "skipped_ticks_total",
			Help:      "Fixed-rate ticks coalesced because a run overran",
		}),
		cancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "cancelled_total",
			Help:      "Tasks cancelled by id",
		}),
		busDrops: prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "eventbus_dropped_total",
			Help:      "Events dropped because a subscriber was full",
		}, func() float64 { return float64(eventbus.Dropped(bus)) }),
		pending: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "pending",
			Help:      "Live entries waiting in the queue",
		}, func() float64 { return float64(snap().Pending) }),
		running: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "running",
			Help:      "1 if the scheduler worker is running",
		}, func() float64 {
			if snap().Running {
				return 1
			}
			return 0
		}),
	}

	for _, c := range []prometheus.Collector{
		m.runs, m.duration, m.lateness, m.skipped, m.cancelled, m.busDrops, m.pending, m.running,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Observe updates counters from one scheduler event. Unknown events are ignored.
func (m *SchedulerMetrics) Observe(e eventbus.Event) {
	te, ok := e.Data.(scheduler.TaskEvent)
	if !ok {
		return
	}
	switch e.Type {
	case scheduler.EventFinished:
		m.runs.WithLabelValues("ok").Inc()
		m.observeRun(te)
	case scheduler.EventFailed:
		if te.Panic {
			m.runs.WithLabelValues("panic").Inc()
		} else {
			m.runs.WithLabelValues("error").Inc()
		}
		m.observeRun(te)
	case scheduler.EventSkipped:
		m.skipped.Add(float64(te.Skipped))
	case scheduler.EventCancelled:
		m.cancelled.Inc()
	}
}

func (m *SchedulerMetrics) observeRun(te scheduler.TaskEvent) {
	m.duration.Observe(te.Duration.Seconds())
	if te.Lateness > 0 {
		m.lateness.Observe(te.Lateness.Seconds())
	}
}

// Run feeds bus events into m until ctx is done.
func (m *SchedulerMetrics) Run(ctx context.Context, bus eventbus.Bus) {
	eventbus.Consume(ctx, bus, 256, m.Observe)
}
