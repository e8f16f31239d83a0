package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	logx "tickd/pkg/logx"
)

// Not parallel: these tests replace the process-wide scheduler.

func TestDefaultIsLazyAndShared(t *testing.T) {
	prev := SetDefault(nil)
	t.Cleanup(func() {
		_ = Shutdown(context.Background())
		SetDefault(prev)
	})

	a := Default()
	if a == nil || a != Default() {
		t.Fatal("Default did not return a shared instance")
	}
	if a.IsRunning() {
		t.Fatal("default scheduler running before first use")
	}

	var calls atomic.Int32
	if _, err := ScheduleOnce(10*time.Millisecond, func(context.Context) error {
		calls.Add(1)
		return nil
	}); err != nil {
		t.Fatalf("ScheduleOnce: %v", err)
	}
	if !a.IsRunning() {
		t.Fatal("default scheduler did not auto-start")
	}
	waitFor(t, time.Second, func() bool { return calls.Load() == 1 }, "default task")

	if err := Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if a.IsRunning() {
		t.Fatal("Shutdown left the scheduler running")
	}
	if b := Default(); b == a {
		t.Fatal("Default after Shutdown returned the stopped instance")
	}
}

func TestPackageFunctionsForwardToDefault(t *testing.T) {
	s := New(Config{}, logx.Nop(), nil)
	prev := SetDefault(s)
	t.Cleanup(func() {
		_ = s.Stop(context.Background())
		SetDefault(prev)
	})

	rate, err := ScheduleFixedRate(time.Hour, noopWork)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ScheduleFixedDelay(time.Hour, noopWork); err != nil {
		t.Fatal(err)
	}
	if got := PendingCount(); got != 2 {
		t.Fatalf("PendingCount = %d, want 2", got)
	}
	if !Cancel(rate) {
		t.Fatal("Cancel = false")
	}
	if n := CancelAll(); n != 1 {
		t.Fatalf("CancelAll = %d, want 1", n)
	}
	if s.PendingCount() != 0 {
		t.Fatal("calls did not reach the configured default")
	}
}

func TestShutdownWithoutDefault(t *testing.T) {
	prev := SetDefault(nil)
	t.Cleanup(func() { SetDefault(prev) })
	if err := Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}
