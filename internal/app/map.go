package app

import (
	"strings"
	"time"

	"tickd/internal/config"
	"tickd/internal/observability/httpd"
	"tickd/internal/storage"
	"tickd/internal/task/scheduler"
	logx "tickd/pkg/logx"
)

func mapLoggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled:    cfg.Logging.File.Enabled,
			Path:       cfg.Logging.File.Path,
			MaxSizeMB:  cfg.Logging.File.MaxSizeMB,
			MaxBackups: cfg.Logging.File.MaxBackups,
		},
	}
}

func mapSchedulerConfig(cfg *config.Config) (scheduler.Config, error) {
	sc := cfg.Scheduler
	stopTimeout, err := config.ParseDurationField("scheduler.stop_timeout", sc.StopTimeout)
	if err != nil {
		return scheduler.Config{}, err
	}
	skipWarn, err := config.ParseDurationField("scheduler.skip_warn_every", sc.SkipWarnEvery)
	if err != nil {
		return scheduler.Config{}, err
	}
	return scheduler.Config{
		Strict:        sc.Strict,
		StopTimeout:   stopTimeout,
		HistorySize:   sc.HistorySize,
		SkipWarnEvery: skipWarn,
	}, nil
}

// mapStorageConfig reports enabled=false when the journal is not configured.
func mapStorageConfig(cfg *config.Config) (storage.Config, bool, error) {
	if cfg == nil || cfg.Storage == nil {
		return storage.Config{}, false, nil
	}
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	if driver == "" || driver == "none" {
		return storage.Config{}, false, nil
	}
	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
	if err != nil {
		return storage.Config{}, false, err
	}
	return storage.Config{
		Driver:      driver,
		Path:        strings.TrimSpace(sc.Path),
		BusyTimeout: busy,
		MaxRows:     sc.MaxRows,
	}, true, nil
}

func mapHTTPDConfig(cfg *config.Config) httpd.Config {
	if cfg == nil || cfg.Metrics == nil {
		return httpd.Config{}
	}
	m := cfg.Metrics
	return httpd.Config{
		Enabled:       m.Enabled,
		Addr:          m.Addr,
		MetricsPath:   m.Path,
		Pprof:         m.Pprof,
		Token:         m.Token,
		AllowInsecure: m.AllowInsecure,
		ReadTimeout:   5 * time.Second,
		// pprof profiles stream for 30s+; only bound writes when pprof is off.
		WriteTimeout: writeTimeout(m.Pprof),
		IdleTimeout:  30 * time.Second,
	}
}

func writeTimeout(pprof bool) time.Duration {
	if pprof {
		return 0
	}
	return 10 * time.Second
}
