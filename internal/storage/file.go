package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	logx "tickd/pkg/logx"
)

// fileJournal is a dependency-free journal backend: one JSON Lines file
// plus an in-memory ring of the newest records for Recent.
//
// The file grows to 2*maxRows lines, then is compacted (tmp + rename) to
// the newest maxRows records.
type fileJournal struct {
	log     logx.Logger
	path    string
	maxRows int

	mu    sync.Mutex
	f     *os.File
	lines int

	// ring holds the newest maxRows records; next is the slot written next.
	ring []RunRecord
	next int
	full bool
}

func openFile(cfg Config, log logx.Logger) (Journal, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	j := &fileJournal{
		log:     log,
		path:    path,
		maxRows: cfg.maxRows(),
	}
	j.ring = make([]RunRecord, j.maxRows)

	if err := j.replay(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("run journal replay failed", logx.String("path", path), logx.Err(err))
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	j.f = f
	log.Debug("run journal opened", logx.String("path", path), logx.Int("records", j.lines))
	return j, nil
}

// replay loads existing records into the ring. Malformed lines are skipped.
func (j *fileJournal) replay() error {
	f, err := os.Open(j.path)
	if err != nil {
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		var r RunRecord
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			continue
		}
		j.push(r)
		j.lines++
	}
	return sc.Err()
}

func (j *fileJournal) push(r RunRecord) {
	j.ring[j.next] = r
	j.next++
	if j.next == len(j.ring) {
		j.next = 0
		j.full = true
	}
}

// newestLocked returns up to n records, newest first.
func (j *fileJournal) newestLocked(n int) []RunRecord {
	size := j.next
	if j.full {
		size = len(j.ring)
	}
	if n > size {
		n = size
	}
	out := make([]RunRecord, 0, n)
	for i := 1; i <= n; i++ {
		idx := (j.next - i + len(j.ring)) % len(j.ring)
		out = append(out, j.ring[idx])
	}
	return out
}

func (j *fileJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.f == nil {
		return nil
	}
	err := j.f.Close()
	j.f = nil
	return err
}

func (j *fileJournal) AppendRun(ctx context.Context, r RunRecord) error {
	_ = ctx
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.f == nil {
		return ErrClosed
	}
	ensureRunID(&r)
	if err := json.NewEncoder(j.f).Encode(r); err != nil {
		return err
	}
	j.push(r)
	j.lines++
	if j.lines >= 2*j.maxRows {
		if err := j.compactLocked(); err != nil {
			j.log.Debug("run journal compact failed", logx.Err(err))
		}
	}
	return nil
}

func (j *fileJournal) Recent(ctx context.Context, n int) ([]RunRecord, error) {
	_ = ctx
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.f == nil {
		return nil, ErrClosed
	}
	if n <= 0 {
		return nil, nil
	}
	return j.newestLocked(n), nil
}

// compactLocked rewrites the file with the ring contents, oldest first.
func (j *fileJournal) compactLocked() error {
	keep := j.newestLocked(len(j.ring))

	tmp := j.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for i := len(keep) - 1; i >= 0; i-- {
		if err := enc.Encode(keep[i]); err != nil {
			_ = f.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, j.path); err != nil {
		return err
	}

	nf, err := os.OpenFile(j.path, os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	_ = j.f.Close()
	j.f = nf
	j.lines = len(keep)
	return nil
}
