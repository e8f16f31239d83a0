package scheduler

import (
	"testing"
	"time"
)

func TestNextDue(t *testing.T) {
	t.Parallel()
	base := time.Now()
	iv := 100 * time.Millisecond

	tests := []struct {
		name     string
		mode     RepeatMode
		finished time.Duration
		next     time.Duration
		skipped  int64
	}{
		{name: "rate on time", mode: RepeatFixedRate, finished: 30 * time.Millisecond, next: 100 * time.Millisecond},
		{name: "rate finished at next tick", mode: RepeatFixedRate, finished: 100 * time.Millisecond, next: 100 * time.Millisecond},
		{name: "rate overran one tick", mode: RepeatFixedRate, finished: 150 * time.Millisecond, next: 200 * time.Millisecond, skipped: 1},
		{name: "rate overran exactly", mode: RepeatFixedRate, finished: 300 * time.Millisecond, next: 300 * time.Millisecond, skipped: 2},
		{name: "rate overran many", mode: RepeatFixedRate, finished: 1010 * time.Millisecond, next: 1100 * time.Millisecond, skipped: 10},
		{name: "delay", mode: RepeatFixedDelay, finished: 350 * time.Millisecond, next: 450 * time.Millisecond},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			next, skipped := nextDue(tt.mode, iv, base, base.Add(tt.finished))
			if got := next.Sub(base); got != tt.next {
				t.Fatalf("next = base+%v, want base+%v", got, tt.next)
			}
			if skipped != tt.skipped {
				t.Fatalf("skipped = %d, want %d", skipped, tt.skipped)
			}
		})
	}
}

func TestNextDueNone(t *testing.T) {
	t.Parallel()
	next, skipped := nextDue(RepeatNone, time.Second, time.Now(), time.Now())
	if !next.IsZero() || skipped != 0 {
		t.Fatalf("nextDue(RepeatNone) = %v, %d", next, skipped)
	}
}
