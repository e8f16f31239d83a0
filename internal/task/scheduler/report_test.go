package scheduler

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"tickd/internal/eventbus"
	logx "tickd/pkg/logx"
)

func TestReportSkippedThrottlesWarnings(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	bus := eventbus.New()
	events, unsub := bus.Subscribe(8)
	defer unsub()

	s := New(Config{}, logx.NewWriter(&buf, "debug"), bus)
	e := newEntry(1, "slow", noopWork, RepeatFixedRate, 10*time.Millisecond, taskOptions{}, time.Now(), time.Hour)

	s.reportSkipped(e, 2)
	s.reportSkipped(e, 3)
	s.reportSkipped(e, 1)

	out := buf.String()
	if got := strings.Count(out, `"level":"warn"`); got != 1 {
		t.Fatalf("warn lines = %d, want 1:\n%s", got, out)
	}
	if got := strings.Count(out, `"level":"debug"`); got != 2 {
		t.Fatalf("debug lines = %d, want 2:\n%s", got, out)
	}
	if got := s.Snapshot().SkippedTicks; got != 6 {
		t.Fatalf("SkippedTicks = %d, want 6", got)
	}

	var total int64
	for i := 0; i < 3; i++ {
		ev := <-events
		te, ok := ev.Data.(TaskEvent)
		if ev.Type != EventSkipped || !ok || te.Name != "slow" {
			t.Fatalf("event = %+v", ev)
		}
		total += te.Skipped
	}
	if total != 6 {
		t.Fatalf("skipped in events = %d, want 6", total)
	}
}
