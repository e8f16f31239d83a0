package config

// Config is the tickd daemon configuration. It is decoded strictly: unknown
// keys are rejected, so typos surface on load and on reload.
type Config struct {
	Logging   LoggingConfig   `json:"logging"`
	Scheduler SchedulerConfig `json:"scheduler"`

	// Storage enables the run journal. Nil means disabled.
	Storage *StorageConfig `json:"storage,omitempty"`

	// Metrics enables the Prometheus endpoint. Nil means disabled.
	Metrics *MetricsConfig `json:"metrics,omitempty"`

	Jobs []JobConfig `json:"jobs,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Format  string      `json:"format,omitempty"` // "console" (default) | "json" | "auto"
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

// LoggingFile writes JSON lines to Path. MaxSizeMB > 0 enables size-based
// rotation keeping MaxBackups old files.
type LoggingFile struct {
	Enabled    bool   `json:"enabled"`
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb,omitempty"`
	MaxBackups int    `json:"max_backups,omitempty"`
}

// SchedulerConfig controls the scheduler hosted by the daemon.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
//
// Defaults (when fields are omitted/zero):
//   - stop_timeout: "5s"
//   - history_size: 200
//   - skip_warn_every: "5s"
type SchedulerConfig struct {
	// Strict rejects scheduling while the scheduler is stopped.
	Strict bool `json:"strict,omitempty"`

	StopTimeout   string `json:"stop_timeout,omitempty"`
	HistorySize   int    `json:"history_size,omitempty"`
	SkipWarnEvery string `json:"skip_warn_every,omitempty"`
}

// StorageConfig controls the run journal.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./tickd.db", "max_rows": 10000 }
type StorageConfig struct {
	Driver      string `json:"driver"` // "file" | "sqlite" | "none"
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)

	// MaxRows bounds the journal. 0 applies the driver default.
	MaxRows int `json:"max_rows,omitempty"`
}

// MetricsConfig controls the Prometheus endpoint.
//
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"` // default: "127.0.0.1:9464"
	Path    string `json:"path,omitempty"` // default: "/metrics"

	// Pprof also mounts net/http/pprof under /debug/pprof/.
	Pprof bool `json:"pprof,omitempty"`

	// Token, if set, is required as a bearer token or ?token= (do not log).
	// A non-loopback Addr needs a token or allow_insecure.
	Token         string `json:"token,omitempty"`
	AllowInsecure bool   `json:"allow_insecure,omitempty"`
}

// JobConfig declares a job run by the daemon.
//
// Schedule accepts the forms understood by scheduler.ParseSchedule,
// e.g. "rate:10s", "delay:1m", "once:30s", "@every 5m", "02:30".
type JobConfig struct {
	Name     string `json:"name"`
	Schedule string `json:"schedule"`
	// Action is "log" (log Message) or "snapshot" (log a scheduler summary).
	Action  string `json:"action"`
	Message string `json:"message,omitempty"`
	// Timeout bounds each run's context (Go duration string).
	Timeout string `json:"timeout,omitempty"`
	// Disabled keeps the job in the file without scheduling it.
	Disabled bool `json:"disabled,omitempty"`
}

const (
	ActionLog      = "log"
	ActionSnapshot = "snapshot"
)
