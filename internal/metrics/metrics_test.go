package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"tickd/internal/eventbus"
	"tickd/internal/task/scheduler"
)

func newTestMetrics(t *testing.T, snap func() scheduler.Snapshot) (*SchedulerMetrics, *prometheus.Registry, eventbus.Bus) {
	t.Helper()
	reg := prometheus.NewRegistry()
	bus := eventbus.New()
	m, err := New(reg, bus, snap)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return m, reg, bus
}

func TestObserveCountsOutcomes(t *testing.T) {
	t.Parallel()
	m, _, _ := newTestMetrics(t, nil)

	ev := func(typ string, te scheduler.TaskEvent) eventbus.Event {
		return eventbus.Event{Type: typ, Data: te}
	}
	m.Observe(ev(scheduler.EventFinished, scheduler.TaskEvent{Duration: 2 * time.Millisecond}))
	m.Observe(ev(scheduler.EventFinished, scheduler.TaskEvent{Duration: 3 * time.Millisecond}))
	m.Observe(ev(scheduler.EventFailed, scheduler.TaskEvent{Error: "x"}))
	m.Observe(ev(scheduler.EventFailed, scheduler.TaskEvent{Error: "p", Panic: true}))
	m.Observe(ev(scheduler.EventSkipped, scheduler.TaskEvent{Skipped: 3}))
	m.Observe(ev(scheduler.EventCancelled, scheduler.TaskEvent{}))
	m.Observe(eventbus.Event{Type: "other", Data: 42})

	checks := []struct {
		name string
		c    prometheus.Collector
		want float64
	}{
		{"ok", m.runs.WithLabelValues("ok"), 2},
		{"error", m.runs.WithLabelValues("error"), 1},
		{"panic", m.runs.WithLabelValues("panic"), 1},
		{"skipped", m.skipped, 3},
		{"cancelled", m.cancelled, 1},
	}
	for _, c := range checks {
		if got := testutil.ToFloat64(c.c); got != c.want {
			t.Fatalf("%s = %v, want %v", c.name, got, c.want)
		}
	}
	if n := testutil.CollectAndCount(m.duration); n != 1 {
		t.Fatalf("duration series = %d, want 1", n)
	}
}

func TestGaugesSampleSnapshot(t *testing.T) {
	t.Parallel()
	m, _, _ := newTestMetrics(t, func() scheduler.Snapshot {
		return scheduler.Snapshot{Running: true, Pending: 7}
	})
	if got := testutil.ToFloat64(m.pending); got != 7 {
		t.Fatalf("pending = %v, want 7", got)
	}
	if got := testutil.ToFloat64(m.running); got != 1 {
		t.Fatalf("running = %v, want 1", got)
	}
}

func TestDuplicateRegistrationFails(t *testing.T) {
	t.Parallel()
	_, reg, bus := newTestMetrics(t, nil)
	if _, err := New(reg, bus, nil); err == nil {
		t.Fatal("second New on the same registry succeeded")
	}
}

func TestRunConsumesBus(t *testing.T) {
	t.Parallel()
	m, _, bus := newTestMetrics(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx, bus)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for testutil.ToFloat64(m.cancelled) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("event never observed")
		}
		// Publish until the subscriber is registered.
		bus.Publish(eventbus.Event{Type: scheduler.EventCancelled, Data: scheduler.TaskEvent{ID: 1}})
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
