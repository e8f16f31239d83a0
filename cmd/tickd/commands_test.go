package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tickd/internal/app"
	"tickd/internal/storage"
	logx "tickd/pkg/logx"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "tickd.yaml")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCheckListsJobs(t *testing.T) {
	t.Parallel()
	p := writeConfig(t, `
jobs:
  - name: beat
    schedule: rate:10s
    action: log
    message: alive
  - name: nightly
    schedule: "02:30"
    action: snapshot
    disabled: true
`)
	out, err := execute(t, "check", "--config", p)
	if err != nil {
		t.Fatalf("check: %v\n%s", err, out)
	}
	for _, want := range []string{"config ok", "beat", "fixed-rate 10s", "nightly", "disabled"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestCheckRejectsInvalidConfig(t *testing.T) {
	t.Parallel()
	p := writeConfig(t, "jobs:\n  - name: x\n    schedule: sometimes\n    action: log\n    message: m\n")
	if _, err := execute(t, "check", "-c", p); err == nil {
		t.Fatal("check accepted an invalid schedule")
	}
}

func TestHistoryPrintsJournal(t *testing.T) {
	t.Parallel()
	journal := filepath.Join(t.TempDir(), "runs.jsonl")
	p := writeConfig(t, "storage:\n  driver: file\n  path: "+journal+"\n")

	j, err := storage.Open(storage.Config{Driver: "file", Path: journal}, logx.Nop())
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	for i, name := range []string{"first", "second"} {
		rec := storage.RunRecord{
			Started: time.Now().Add(time.Duration(i) * time.Second),
			TaskID:  uint64(i + 1), Name: name, Mode: "fixed-delay",
			DurationMS: 12, Outcome: storage.OutcomeOK,
		}
		if err := j.AppendRun(context.Background(), rec); err != nil {
			t.Fatalf("AppendRun: %v", err)
		}
	}
	_ = j.Close()

	out, err := execute(t, "history", "-c", p, "-n", "1")
	if err != nil {
		t.Fatalf("history: %v\n%s", err, out)
	}
	if !strings.Contains(out, "second") || strings.Contains(out, "first") {
		t.Fatalf("history -n 1 output:\n%s", out)
	}
}

func TestHistoryWithoutStorage(t *testing.T) {
	t.Parallel()
	p := writeConfig(t, "logging:\n  level: info\n")
	if _, err := execute(t, "history", "-c", p); !errors.Is(err, app.ErrJournalDisabled) {
		t.Fatalf("err = %v, want ErrJournalDisabled", err)
	}
}
