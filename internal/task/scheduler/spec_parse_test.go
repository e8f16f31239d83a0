package scheduler

import (
	"errors"
	"testing"
	"time"
)

func TestParseScheduleVariants(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		raw      string
		mode     RepeatMode
		source   string
		duration time.Duration
	}{
		{name: "duration", raw: "10m", mode: RepeatFixedDelay, source: "duration", duration: 10 * time.Minute},
		{name: "hhmm", raw: "01:30", mode: RepeatFixedDelay, source: "hhmm", duration: 90 * time.Minute},
		{name: "every prefix", raw: "every:45s", mode: RepeatFixedDelay, source: "duration", duration: 45 * time.Second},
		{name: "delay prefix", raw: "delay:2s", mode: RepeatFixedDelay, source: "duration", duration: 2 * time.Second},
		{name: "fixed-delay hhmm", raw: "fixed-delay:00:05", mode: RepeatFixedDelay, source: "hhmm", duration: 5 * time.Minute},
		{name: "rate prefix", raw: "rate:250ms", mode: RepeatFixedRate, source: "duration", duration: 250 * time.Millisecond},
		{name: "fixed-rate upper", raw: "Fixed-Rate:1h", mode: RepeatFixedRate, source: "duration", duration: time.Hour},
		{name: "once", raw: "once:30s", mode: RepeatNone, source: "duration", duration: 30 * time.Second},
		{name: "once zero", raw: "once:0s", mode: RepeatNone, source: "duration", duration: 0},
		{name: "every descriptor", raw: "@every 5m", mode: RepeatFixedRate, source: "descriptor", duration: 5 * time.Minute},
		{name: "every descriptor truncated", raw: "@every 1500ms", mode: RepeatFixedRate, source: "descriptor", duration: time.Second},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSchedule(tt.raw)
			if err != nil {
				t.Fatalf("ParseSchedule(%q) error: %v", tt.raw, err)
			}
			if got.Mode != tt.mode {
				t.Fatalf("Mode = %v, want %v", got.Mode, tt.mode)
			}
			if got.Source != tt.source {
				t.Fatalf("Source = %s, want %s", got.Source, tt.source)
			}
			if got.Every != tt.duration {
				t.Fatalf("Every = %v, want %v", got.Every, tt.duration)
			}
		})
	}
}

func TestParseScheduleInvalid(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{
		"",
		"not-a-schedule",
		"*/5 * * * *",
		"@hourly",
		"@every nope",
		"rate:0s",
		"delay:-1s",
		"once:-1s",
		"cron:0 0 * * *",
		"01:75",
		"00:00",
	} {
		_, err := ParseSchedule(raw)
		if err == nil {
			t.Fatalf("ParseSchedule(%q): expected error", raw)
		}
		if !errors.Is(err, ErrInvalidArgument) {
			t.Fatalf("ParseSchedule(%q): error %v does not match ErrInvalidArgument", raw, err)
		}
	}
}

func TestParseHHMMDuration(t *testing.T) {
	t.Parallel()
	d, err := parseHHMMDuration("23:15")
	if err != nil {
		t.Fatalf("parseHHMMDuration error: %v", err)
	}
	if d != 23*time.Hour+15*time.Minute {
		t.Fatalf("unexpected result: %v", d)
	}
}
