package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleYAML = `
logging:
  level: debug
  console: true
scheduler:
  stop_timeout: 3s
  history_size: 50
storage:
  driver: sqlite
  path: ./tickd.db
  max_rows: 1000
metrics:
  enabled: true
  addr: 127.0.0.1:9464
jobs:
  - name: heartbeat
    schedule: rate:10s
    action: log
    message: alive
  - name: summary
    schedule: "@every 1m"
    action: snapshot
    timeout: 5s
`

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}

func TestLoadYAML(t *testing.T) {
	t.Parallel()
	p := writeFile(t, t.TempDir(), "tickd.yaml", sampleYAML)

	m := NewManager(p)
	cfg, err := m.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logging.Level != "debug" || !cfg.Logging.Console {
		t.Fatalf("logging = %+v", cfg.Logging)
	}
	if cfg.Storage == nil || cfg.Storage.Driver != "sqlite" || cfg.Storage.MaxRows != 1000 {
		t.Fatalf("storage = %+v", cfg.Storage)
	}
	if len(cfg.Jobs) != 2 || cfg.Jobs[1].Schedule != "@every 1m" {
		t.Fatalf("jobs = %+v", cfg.Jobs)
	}
	if m.Get() != cfg {
		t.Fatal("Get did not return the committed config")
	}
}

func TestDecodeRejectsUnknownFieldsAndTrailingData(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		path string
		body string
	}{
		{name: "unknown json key", path: "c.json", body: `{"logging":{"level":"info"},"telegram":{}}`},
		{name: "unknown nested yaml key", path: "c.yml", body: "jobs:\n  - name: a\n    every: 1s\n"},
		{name: "trailing json", path: "c.json", body: `{} {}`},
		{name: "bad yaml", path: "c.yaml", body: "logging: [\n"},
		{name: "multiple yaml documents", path: "c.yaml", body: "logging: {}\n---\njobs: []\n"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode(tt.path, []byte(tt.body)); err == nil {
				t.Fatalf("Decode(%s) accepted %q", tt.path, tt.body)
			}
		})
	}
}

func TestDecodeEmptyYAML(t *testing.T) {
	t.Parallel()
	for _, body := range []string{"", "# nothing yet\n", "---\n"} {
		cfg, err := Decode("c.yaml", []byte(body))
		if err != nil {
			t.Fatalf("Decode(%q): %v", body, err)
		}
		if len(cfg.Jobs) != 0 || cfg.Storage != nil || cfg.Metrics != nil {
			t.Fatalf("Decode(%q) = %+v, want zero config", body, cfg)
		}
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	valid := func() *Config {
		return &Config{
			Logging: LoggingConfig{Level: "info"},
			Jobs: []JobConfig{
				{Name: "a", Schedule: "delay:1s", Action: ActionLog, Message: "hi"},
			},
		}
	}
	if err := Validate(valid()); err != nil {
		t.Fatalf("Validate(valid) = %v", err)
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }},
		{"negative rotation", func(c *Config) { c.Logging.File.MaxSizeMB = -1 }},
		{"bad stop timeout", func(c *Config) { c.Scheduler.StopTimeout = "soon" }},
		{"negative history", func(c *Config) { c.Scheduler.HistorySize = -1 }},
		{"unknown driver", func(c *Config) { c.Storage = &StorageConfig{Driver: "redis", Path: "x"} }},
		{"missing path", func(c *Config) { c.Storage = &StorageConfig{Driver: "file"} }},
		{"metrics path", func(c *Config) { c.Metrics = &MetricsConfig{Enabled: true, Path: "metrics"} }},
		{"missing name", func(c *Config) { c.Jobs[0].Name = "" }},
		{"duplicate name", func(c *Config) { c.Jobs = append(c.Jobs, c.Jobs[0]) }},
		{"bad schedule", func(c *Config) { c.Jobs[0].Schedule = "*/5 * * * *" }},
		{"bad action", func(c *Config) { c.Jobs[0].Action = "exec" }},
		{"log without message", func(c *Config) { c.Jobs[0].Message = "" }},
		{"bad timeout", func(c *Config) { c.Jobs[0].Timeout = "-1s" }},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := Validate(c)
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("Validate = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestReloadPublishesOnlyChanges(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	p := writeFile(t, dir, "tickd.json", `{"logging":{"level":"info"}}`)

	m := NewManager(p)
	if _, err := m.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	if ok, err := m.Reload(context.Background()); ok || err != nil {
		t.Fatalf("Reload unchanged = %v, %v", ok, err)
	}

	writeFile(t, dir, "tickd.json", `{"logging":{"level":"debug"}}`)
	ok, err := m.Reload(context.Background())
	if !ok || err != nil {
		t.Fatalf("Reload changed = %v, %v", ok, err)
	}
	select {
	case cfg := <-ch:
		if cfg.Logging.Level != "debug" {
			t.Fatalf("published level = %q", cfg.Logging.Level)
		}
	default:
		t.Fatal("no config published")
	}

	writeFile(t, dir, "tickd.json", `{"logging":{"level":"nope"}}`)
	if ok, err := m.Reload(context.Background()); ok || err == nil {
		t.Fatalf("Reload invalid = %v, %v", ok, err)
	}
	if m.Get().Logging.Level != "debug" {
		t.Fatal("invalid config was committed")
	}
}

func TestPublishKeepsNewest(t *testing.T) {
	t.Parallel()
	m := NewManager("unused.json")
	ch := m.Subscribe(1)
	a, b := &Config{}, &Config{}
	m.publish(a)
	m.publish(b)
	if got := <-ch; got != b {
		t.Fatal("slow subscriber did not receive the newest config")
	}
	m.Unsubscribe(ch)
	if _, ok := <-ch; ok {
		t.Fatal("channel not closed by Unsubscribe")
	}
}

func TestWatchReloadsOnWrite(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	p := writeFile(t, dir, "tickd.json", `{"logging":{"level":"info"}}`)

	m := NewManager(p)
	if _, err := m.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	ch := m.Subscribe(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = m.Watch(ctx) }()

	// Give the watcher time to register before writing.
	time.Sleep(200 * time.Millisecond)
	writeFile(t, dir, "tickd.json", `{"logging":{"level":"warn"}}`)

	select {
	case cfg := <-ch:
		if cfg.Logging.Level != "warn" {
			t.Fatalf("level = %q, want warn", cfg.Logging.Level)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not publish the new config")
	}
}

func TestSummarizeChange(t *testing.T) {
	t.Parallel()
	oldCfg := &Config{
		Jobs: []JobConfig{
			{Name: "keep", Schedule: "1m", Action: ActionSnapshot},
			{Name: "edit", Schedule: "1m", Action: ActionSnapshot},
			{Name: "drop", Schedule: "1m", Action: ActionSnapshot},
		},
	}
	newCfg := &Config{
		Logging: LoggingConfig{Level: "debug"},
		Metrics: &MetricsConfig{Enabled: true},
		Jobs: []JobConfig{
			{Name: "keep", Schedule: "1m", Action: ActionSnapshot},
			{Name: "edit", Schedule: "2m", Action: ActionSnapshot},
			{Name: "add", Schedule: "1m", Action: ActionSnapshot},
		},
	}
	sections, attrs, jobs := SummarizeChange(oldCfg, newCfg)
	wantSections := []string{"jobs", "logging", "metrics"}
	if len(sections) != len(wantSections) {
		t.Fatalf("sections = %v, want %v", sections, wantSections)
	}
	for i := range wantSections {
		if sections[i] != wantSections[i] {
			t.Fatalf("sections = %v, want %v", sections, wantSections)
		}
	}
	if len(attrs) == 0 {
		t.Fatal("no attrs")
	}
	wantJobs := []string{"add", "drop", "edit"}
	if len(jobs) != len(wantJobs) {
		t.Fatalf("jobs = %v, want %v", jobs, wantJobs)
	}
	for i := range wantJobs {
		if jobs[i] != wantJobs[i] {
			t.Fatalf("jobs = %v, want %v", jobs, wantJobs)
		}
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()
	if d, err := ParseDurationField("x", ""); err != nil || d != 0 {
		t.Fatalf("empty = %v, %v", d, err)
	}
	if d, err := ParseDurationOrDefault("x", "0s", time.Second); err != nil || d != time.Second {
		t.Fatalf("default = %v, %v", d, err)
	}
	if _, err := ParseDurationField("x", "-1s"); err == nil {
		t.Fatal("negative accepted")
	}
}
