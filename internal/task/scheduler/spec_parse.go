package scheduler

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// ParsedSpec is a schedule string resolved to a repeat mode and interval.
// For RepeatNone, Every is the initial delay.
type ParsedSpec struct {
	Mode   RepeatMode
	Every  time.Duration
	Source string // "duration" | "hhmm" | "descriptor"
}

func (p ParsedSpec) String() string {
	return p.Mode.String() + " " + p.Every.String()
}

var reHHMM = regexp.MustCompile(`^\s*(\d{1,3}):(\d{2})\s*$`)

// ParseSchedule parses a schedule string.
//
// Supported forms:
//   - "once:30s"                                  one-shot after a delay ("once:0s" allowed)
//   - "rate:10s", "fixed-rate:10s", "@every 10s"  fixed-rate
//   - "delay:1m", "fixed-delay:1m", "every:1m"     fixed-delay
//   - "55m", "02:30" (2h30m)                       fixed-delay
//
// Calendar cron expressions ("*/5 * * * *", "@hourly") are rejected.
func ParseSchedule(raw string) (ParsedSpec, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ParsedSpec{}, fmt.Errorf("%w: schedule required", ErrInvalidArgument)
	}
	if strings.HasPrefix(s, "@") {
		return parseDescriptor(s)
	}
	if prefix, v, ok := strings.Cut(s, ":"); ok && !reHHMM.MatchString(s) {
		prefix = strings.ToLower(strings.TrimSpace(prefix))
		switch prefix {
		case "once":
			d, src, err := parseInterval(v, true)
			if err != nil {
				return ParsedSpec{}, err
			}
			return ParsedSpec{Mode: RepeatNone, Every: d, Source: src}, nil
		case "rate", "fixed-rate":
			d, src, err := parseInterval(v, false)
			if err != nil {
				return ParsedSpec{}, err
			}
			return ParsedSpec{Mode: RepeatFixedRate, Every: d, Source: src}, nil
		case "delay", "fixed-delay", "every", "interval":
			d, src, err := parseInterval(v, false)
			if err != nil {
				return ParsedSpec{}, err
			}
			return ParsedSpec{Mode: RepeatFixedDelay, Every: d, Source: src}, nil
		default:
			return ParsedSpec{}, fmt.Errorf("%w: unknown schedule prefix %q", ErrInvalidArgument, prefix)
		}
	}
	if strings.ContainsAny(s, " \t\n\r") {
		return ParsedSpec{}, fmt.Errorf("%w: calendar schedules are not supported: %q", ErrInvalidArgument, raw)
	}

	d, src, err := parseInterval(s, false)
	if err != nil {
		return ParsedSpec{}, fmt.Errorf(
			"%w: invalid schedule %q (use 'rate:10s', 'delay:1m', 'once:30s', '@every 5m', HH:MM like '02:30', or duration like '55m')",
			ErrInvalidArgument, raw,
		)
	}
	return ParsedSpec{Mode: RepeatFixedDelay, Every: d, Source: src}, nil
}

// parseDescriptor accepts only "@every <duration>" through the cron parser.
// cron truncates the interval to whole seconds (minimum 1s).
func parseDescriptor(s string) (ParsedSpec, error) {
	sched, err := cron.ParseStandard(s)
	if err != nil {
		return ParsedSpec{}, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	every, ok := sched.(cron.ConstantDelaySchedule)
	if !ok {
		return ParsedSpec{}, fmt.Errorf("%w: calendar schedules are not supported: %q", ErrInvalidArgument, s)
	}
	return ParsedSpec{Mode: RepeatFixedRate, Every: every.Delay, Source: "descriptor"}, nil
}

func parseInterval(v string, allowZero bool) (time.Duration, string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, "", fmt.Errorf("%w: interval required", ErrInvalidArgument)
	}
	if reHHMM.MatchString(v) {
		d, err := parseHHMMDuration(v)
		if err != nil {
			return 0, "", err
		}
		if d <= 0 && !allowZero {
			return 0, "", fmt.Errorf("%w: interval must be > 0", ErrInvalidArgument)
		}
		return d, "hhmm", nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, "", fmt.Errorf("%w: invalid interval %q (use HH:MM or Go duration like '55m'/'2h30m')", ErrInvalidArgument, v)
	}
	if d < 0 || (d == 0 && !allowZero) {
		return 0, "", fmt.Errorf("%w: interval must be > 0", ErrInvalidArgument)
	}
	return d, "duration", nil
}

func parseHHMMDuration(v string) (time.Duration, error) {
	m := reHHMM.FindStringSubmatch(v)
	if len(m) != 3 {
		return 0, fmt.Errorf("%w: invalid HH:MM %q", ErrInvalidArgument, v)
	}
	hh, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, fmt.Errorf("%w: invalid hours in %q", ErrInvalidArgument, v)
	}
	mm, err := strconv.Atoi(m[2])
	if err != nil || mm > 59 {
		return 0, fmt.Errorf("%w: invalid minutes in %q", ErrInvalidArgument, v)
	}
	return time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute, nil
}
