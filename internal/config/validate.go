package config

import (
	"errors"
	"fmt"
	"strings"

	"tickd/internal/task/scheduler"
	logx "tickd/pkg/logx"
)

var ErrInvalidConfig = errors.New("invalid config")

// Validate checks cross-field constraints that strict decoding can't.
// All problems are reported together.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: config is nil", ErrInvalidConfig)
	}
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if lvl := strings.TrimSpace(cfg.Logging.Level); lvl != "" && !logx.ValidLevel(lvl) {
		add("logging.level: unknown level %q", cfg.Logging.Level)
	}
	if err := logx.ValidFormat(cfg.Logging.Format); err != nil {
		add("logging.format: %v", err)
	}
	if cfg.Logging.File.MaxSizeMB < 0 || cfg.Logging.File.MaxBackups < 0 {
		add("logging.file: max_size_mb and max_backups must be >= 0")
	}

	if _, err := ParseDurationField("scheduler.stop_timeout", cfg.Scheduler.StopTimeout); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseDurationField("scheduler.skip_warn_every", cfg.Scheduler.SkipWarnEvery); err != nil {
		errs = append(errs, err)
	}
	if cfg.Scheduler.HistorySize < 0 {
		add("scheduler.history_size: must be >= 0")
	}

	if s := cfg.Storage; s != nil {
		switch strings.ToLower(strings.TrimSpace(s.Driver)) {
		case "", "none":
		case "file", "sqlite":
			if strings.TrimSpace(s.Path) == "" {
				add("storage.path: required for driver %q", s.Driver)
			}
		default:
			add("storage.driver: unknown driver %q", s.Driver)
		}
		if _, err := ParseDurationField("storage.busy_timeout", s.BusyTimeout); err != nil {
			errs = append(errs, err)
		}
		if s.MaxRows < 0 {
			add("storage.max_rows: must be >= 0")
		}
	}

	if m := cfg.Metrics; m != nil && m.Enabled {
		if p := strings.TrimSpace(m.Path); p != "" && !strings.HasPrefix(p, "/") {
			add("metrics.path: must start with '/'")
		}
	}

	seen := make(map[string]int, len(cfg.Jobs))
	for i, j := range cfg.Jobs {
		path := fmt.Sprintf("jobs[%d]", i)
		name := strings.TrimSpace(j.Name)
		if name == "" {
			add("%s.name: required", path)
		} else if prev, dup := seen[name]; dup {
			add("%s.name: duplicate of jobs[%d] (%q)", path, prev, name)
		} else {
			seen[name] = i
		}
		if _, err := scheduler.ParseSchedule(j.Schedule); err != nil {
			add("%s.schedule: %v", path, err)
		}
		switch strings.ToLower(strings.TrimSpace(j.Action)) {
		case ActionLog:
			if strings.TrimSpace(j.Message) == "" {
				add("%s.message: required for action %q", path, ActionLog)
			}
		case ActionSnapshot:
		default:
			add("%s.action: unknown action %q (use %q or %q)", path, j.Action, ActionLog, ActionSnapshot)
		}
		if _, err := ParseDurationField(path+".timeout", j.Timeout); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}
