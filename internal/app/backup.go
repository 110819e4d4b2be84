package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rowjay/kibana-dashboard-backup/internal/config"
	"github.com/rowjay/kibana-dashboard-backup/internal/docstore"
	"github.com/rowjay/kibana-dashboard-backup/internal/lock"
	"github.com/rowjay/kibana-dashboard-backup/internal/notify"
)

type BackupResult struct {
	Keys      []string
	Documents int
	SizeBytes int64
}

// Backup snapshots every dashboard with one search and uploads the same
// bytes under one key per format. Keys are derived from the start time and
// overwrite whatever the previous cycle left there; that overwrite is the
// only retention there is. The first failed upload stops the run.
func (a *App) Backup(ctx context.Context, formats []string) (*BackupResult, error) {
	start := a.now()
	var opErr error
	var res *BackupResult
	defer func() {
		event := notify.Event{Type: "backup", Message: fmt.Sprintf("backup dashboards from %s", a.Cfg.Search.Index)}
		if res != nil {
			event.Keys = res.Keys
			event.Documents = res.Documents
		}
		a.emit(event, start, opErr)
	}()

	if len(formats) == 0 {
		formats = a.Cfg.Backup.Formats
	}
	if len(formats) == 0 {
		formats = config.DefaultFormats
	}
	keys, err := a.backupKeys(formats, start)
	if err != nil {
		opErr = err
		return nil, err
	}

	guard, err := lock.Acquire(a.Cfg.Global.LockFile)
	if err != nil {
		opErr = err
		return nil, err
	}
	defer guard.Release()

	snapshot, err := a.Docs.Search(ctx)
	if err != nil {
		opErr = fmt.Errorf("fetch dashboards: %w", err)
		return nil, opErr
	}
	parsed, err := docstore.ParseSearchResult(snapshot)
	if err != nil {
		opErr = err
		return nil, err
	}

	written := make([]string, 0, len(keys))
	for _, key := range keys {
		a.Log.Info().Str("key", key).Int("dashboards", len(parsed.Documents())).Msg("uploading backup")
		if err := a.putSnapshot(ctx, key, snapshot); err != nil {
			opErr = fmt.Errorf("upload %s: %w", key, err)
			return nil, opErr
		}
		written = append(written, key)
	}

	res = &BackupResult{Keys: written, Documents: len(parsed.Documents()), SizeBytes: int64(len(snapshot))}
	return res, nil
}

// backupKeys derives one key per format, dropping formats that render to a
// key already in the list.
func (a *App) backupKeys(formats []string, when time.Time) ([]string, error) {
	seen := map[string]bool{}
	keys := make([]string, 0, len(formats))
	for _, format := range formats {
		key, err := a.backupKey(format, when)
		if err != nil {
			return nil, err
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		keys = append(keys, key)
	}
	return keys, nil
}
