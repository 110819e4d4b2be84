package app

import (
	"context"
	"fmt"

	"github.com/rowjay/kibana-dashboard-backup/internal/docstore"
	"github.com/rowjay/kibana-dashboard-backup/internal/lock"
	"github.com/rowjay/kibana-dashboard-backup/internal/notify"
)

type RestoreResult struct {
	Key       string
	Restored  int
	Failed    int
	FailedIDs []string
}

// Restore replays the snapshot at key into the index, writing each
// dashboard back under its original id. Running it twice converges on the
// same index state. A dashboard that fails to write is logged and skipped;
// the run only fails when the snapshot held dashboards and none of them
// could be written.
func (a *App) Restore(ctx context.Context, key string) (*RestoreResult, error) {
	start := a.now()
	var opErr error
	res := &RestoreResult{Key: key}
	defer func() {
		a.emit(notify.Event{
			Type:      "restore",
			Message:   fmt.Sprintf("restore %s into %s", key, a.Cfg.Search.Index),
			Keys:      []string{key},
			Documents: res.Restored,
		}, start, opErr)
	}()

	guard, err := lock.Acquire(a.Cfg.Global.LockFile)
	if err != nil {
		opErr = err
		return nil, err
	}
	defer guard.Release()

	data, err := a.readBackup(ctx, key)
	if err != nil {
		opErr = err
		return nil, err
	}
	snapshot, err := docstore.ParseSearchResult(data)
	if err != nil {
		opErr = fmt.Errorf("parse %s: %w", key, err)
		return nil, opErr
	}

	docs := snapshot.Documents()
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			opErr = err
			return res, err
		}
		log := a.Log.With().Str("key", key).Str("id", doc.ID).Logger()
		if a.Cfg.Restore.DryRun {
			log.Info().Int("bytes", len(doc.Source)).Msg("dry run: would restore dashboard")
			continue
		}
		if len(doc.Source) == 0 {
			log.Error().Msg("snapshot entry has no _source, skipping")
			res.Failed++
			res.FailedIDs = append(res.FailedIDs, doc.ID)
			continue
		}
		log.Info().Msg("restoring dashboard")
		if err := a.Docs.Put(ctx, doc.ID, doc.Source); err != nil {
			log.Error().Err(err).Msg("restore failed, continuing")
			res.Failed++
			res.FailedIDs = append(res.FailedIDs, doc.ID)
			continue
		}
		res.Restored++
	}

	if !a.Cfg.Restore.DryRun && len(docs) > 0 && res.Restored == 0 {
		opErr = fmt.Errorf("%w: %d of %d failed", ErrNothingRestored, res.Failed, len(docs))
		return res, opErr
	}
	return res, nil
}
