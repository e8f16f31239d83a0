package app

import (
	"context"
	"errors"

	"tickd/internal/config"
	"tickd/internal/storage"
	logx "tickd/pkg/logx"
)

// ErrJournalDisabled is returned by RecentRuns when no journal is configured.
var ErrJournalDisabled = errors.New("run journal disabled (no storage configured)")

// RecentRuns opens the journal configured in cfg read-side and returns up to
// n records, newest first.
func RecentRuns(ctx context.Context, cfg *config.Config, n int) ([]storage.RunRecord, error) {
	sc, enabled, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	if !enabled {
		return nil, ErrJournalDisabled
	}
	j, err := storage.Open(sc, logx.Nop())
	if err != nil {
		return nil, err
	}
	defer j.Close()
	return j.Recent(ctx, n)
}
