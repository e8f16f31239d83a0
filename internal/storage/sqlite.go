package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	logx "tickd/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

// pruneEvery is how many appends pass between prunes to MaxRows.
const pruneEvery = 500

type sqliteJournal struct {
	db      *sql.DB
	log     logx.Logger
	maxRows int

	appends atomic.Uint64
}

func openSQLite(cfg Config, log logx.Logger) (Journal, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	j := &sqliteJournal{db: db, log: log, maxRows: cfg.maxRows()}

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := j.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite migrate: %w", err)
	}
	log.Debug("run journal opened", logx.String("path", path), logx.Int("max_rows", j.maxRows))
	return j, nil
}

func (j *sqliteJournal) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = j.db.ExecContext(ctx, string(b))
	return err
}

func (j *sqliteJournal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

func (j *sqliteJournal) AppendRun(ctx context.Context, r RunRecord) error {
	if j == nil || j.db == nil {
		return ErrClosed
	}
	if r.Started.IsZero() {
		r.Started = time.Now()
	}
	ensureRunID(&r)
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO runs(run_id, started, task_id, name, mode, lateness_ms, duration_ms, outcome, err)
		 VALUES(?,?,?,?,?,?,?,?,?)`,
		r.RunID, r.Started.UTC().Format(time.RFC3339Nano), int64(r.TaskID), r.Name, r.Mode,
		r.LatenessMS, r.DurationMS, r.Outcome, nullStr(r.Error),
	)
	if err == nil && j.appends.Add(1)%pruneEvery == 0 {
		pctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
		if perr := j.prune(pctx); perr != nil {
			j.log.Debug("run journal prune failed", logx.Err(perr))
		}
		cancel()
	}
	return err
}

func (j *sqliteJournal) Recent(ctx context.Context, n int) ([]RunRecord, error) {
	if j == nil || j.db == nil {
		return nil, ErrClosed
	}
	if n <= 0 {
		return nil, nil
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT run_id, started, task_id, name, mode, lateness_ms, duration_ms, outcome, err
		 FROM runs ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]RunRecord, 0, n)
	for rows.Next() {
		var (
			r       RunRecord
			started string
			taskID  int64
			errStr  sql.NullString
		)
		if err := rows.Scan(&r.RunID, &started, &taskID, &r.Name, &r.Mode, &r.LatenessMS, &r.DurationMS, &r.Outcome, &errStr); err != nil {
			return nil, err
		}
		r.Started, _ = time.Parse(time.RFC3339Nano, started)
		r.TaskID = uint64(taskID)
		r.Error = errStr.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// prune keeps the newest maxRows rows.
func (j *sqliteJournal) prune(ctx context.Context) error {
	_, err := j.db.ExecContext(ctx,
		`DELETE FROM runs WHERE id <= (SELECT id FROM runs ORDER BY id DESC LIMIT 1 OFFSET ?)`,
		j.maxRows,
	)
	return err
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
