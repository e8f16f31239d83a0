package config

import (
	"sort"
	"strings"

	logx "tickd/pkg/logx"
)

// SummarizeChange returns (1) a sorted list of changed sections, (2)
// structured attrs for logging, and (3) the names of jobs that were added,
// removed or modified.
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field, []string) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 5)
	attrs := make([]logx.Field, 0, 16)

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.String("logging.format", newCfg.Logging.Format),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	if oldCfg.Scheduler != newCfg.Scheduler {
		changed = append(changed, "scheduler")
		attrs = append(attrs,
			logx.Bool("scheduler.strict", newCfg.Scheduler.Strict),
			logx.String("scheduler.stop_timeout", strings.TrimSpace(newCfg.Scheduler.StopTimeout)),
			logx.Int("scheduler.history_size", newCfg.Scheduler.HistorySize),
		)
	}

	// Nil means disabled.
	oS, nS := derefStorage(oldCfg.Storage), derefStorage(newCfg.Storage)
	if oS != nS {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", strings.TrimSpace(nS.Driver)),
			logx.Bool("storage.path_set", strings.TrimSpace(nS.Path) != ""),
			logx.Int("storage.max_rows", nS.MaxRows),
		)
	}

	oM, nM := derefMetrics(oldCfg.Metrics), derefMetrics(newCfg.Metrics)
	if oM != nM {
		changed = append(changed, "metrics")
		attrs = append(attrs,
			logx.Bool("metrics.enabled", nM.Enabled),
			logx.String("metrics.addr", strings.TrimSpace(nM.Addr)),
			logx.Bool("metrics.pprof", nM.Pprof),
			logx.Bool("metrics.token_set", strings.TrimSpace(nM.Token) != ""),
		)
	}

	jobs := diffJobs(oldCfg.Jobs, newCfg.Jobs)
	if len(jobs) > 0 {
		changed = append(changed, "jobs")
		attrs = append(attrs,
			logx.Int("jobs.changed_count", len(jobs)),
			logx.Int("jobs.total", len(newCfg.Jobs)),
		)
	}

	sort.Strings(changed)
	return changed, attrs, jobs
}

func derefStorage(s *StorageConfig) StorageConfig {
	if s == nil {
		return StorageConfig{}
	}
	return *s
}

func derefMetrics(m *MetricsConfig) MetricsConfig {
	if m == nil {
		return MetricsConfig{}
	}
	return *m
}

// JobsByName indexes jobs by trimmed name. Later duplicates win.
func JobsByName(jobs []JobConfig) map[string]JobConfig {
	out := make(map[string]JobConfig, len(jobs))
	for _, j := range jobs {
		out[strings.TrimSpace(j.Name)] = j
	}
	return out
}

func diffJobs(oldJobs, newJobs []JobConfig) []string {
	oldM, newM := JobsByName(oldJobs), JobsByName(newJobs)
	out := make([]string, 0)
	for name, o := range oldM {
		if n, ok := newM[name]; !ok || n != o {
			out = append(out, name)
		}
	}
	for name := range newM {
		if _, ok := oldM[name]; !ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
