package logx

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const (
	bytesPerMB  int64 = 1024 * 1024
	logFilePerm       = 0o600
)

// rollingFile is a size-rotated log file. On overflow path is renamed to
// path.1, path.1 to path.2 and so on; backups beyond maxBackups are removed.
type rollingFile struct {
	mu         sync.Mutex
	path       string
	maxBytes   int64
	maxBackups int

	f    *os.File
	size int64
}

func newRollingFile(path string, maxBytes int64, maxBackups int) (*rollingFile, error) {
	path = filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	if maxBackups < 0 {
		maxBackups = 0
	}
	w := &rollingFile{path: path, maxBytes: maxBytes, maxBackups: maxBackups}
	if err := w.openLocked(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *rollingFile) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.f == nil {
		if err := w.openLocked(); err != nil {
			return 0, err
		}
	}
	// A single oversize record still lands in a fresh file.
	if w.maxBytes > 0 && w.size > 0 && w.size+int64(len(p)) > w.maxBytes {
		if err := w.rotateLocked(); err != nil {
			return 0, fmt.Errorf("rotate log file %s: %w", w.path, err)
		}
	}
	n, err := w.f.Write(p)
	w.size += int64(n)
	return n, err
}

func (w *rollingFile) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return nil
	}
	err := w.f.Close()
	w.f = nil
	return err
}

func (w *rollingFile) openLocked() error {
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, logFilePerm)
	if err != nil {
		return fmt.Errorf("open log file %q: %w", w.path, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("stat log file %q: %w", w.path, err)
	}
	w.f = f
	w.size = info.Size()
	return nil
}

func (w *rollingFile) rotateLocked() error {
	if err := w.f.Close(); err != nil {
		return err
	}
	w.f = nil

	if w.maxBackups == 0 {
		if err := os.Remove(w.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		return w.openLocked()
	}

	_ = os.Remove(w.backupName(w.maxBackups))
	for i := w.maxBackups - 1; i >= 1; i-- {
		if err := os.Rename(w.backupName(i), w.backupName(i+1)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	if err := os.Rename(w.path, w.backupName(1)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return w.openLocked()
}

func (w *rollingFile) backupName(i int) string {
	return fmt.Sprintf("%s.%d", w.path, i)
}
