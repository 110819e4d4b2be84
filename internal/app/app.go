package app

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/rowjay/kibana-dashboard-backup/internal/config"
	"github.com/rowjay/kibana-dashboard-backup/internal/docstore"
	"github.com/rowjay/kibana-dashboard-backup/internal/notify"
	"github.com/rowjay/kibana-dashboard-backup/internal/storage"
	"github.com/rowjay/kibana-dashboard-backup/internal/util"
)

var (
	ErrBackupNotFound  = errors.New("backup not found")
	ErrNothingRestored = errors.New("no dashboards were restored")
)

// Documents is the slice of the Elasticsearch client the engines use.
type Documents interface {
	Search(ctx context.Context) ([]byte, error)
	SearchAll(ctx context.Context) (*docstore.SearchResult, error)
	Get(ctx context.Context, id string) (json.RawMessage, error)
	Put(ctx context.Context, id string, source []byte) error
	Delete(ctx context.Context, id string) error
}

type App struct {
	Cfg      *config.Config
	Docs     Documents
	Storage  storage.Storage
	Log      zerolog.Logger
	Notifier notify.Notifier
	Now      func() time.Time
}

func New(cfg *config.Config, docs Documents, store storage.Storage, log zerolog.Logger, notifier notify.Notifier) *App {
	return &App{Cfg: cfg, Docs: docs, Storage: store, Log: log, Notifier: notifier, Now: time.Now}
}

func (a *App) now() time.Time {
	if a.Now == nil {
		return time.Now()
	}
	return a.Now()
}

func (a *App) backupKey(format string, when time.Time) (string, error) {
	return util.BuildBackupKey(a.Cfg.Storage.Prefix, a.Cfg.Backup.Host, format, when)
}

func (a *App) prefix() string {
	return util.BuildPrefix(a.Cfg.Storage.Prefix)
}

func (a *App) emit(event notify.Event, start time.Time, opErr error) {
	if a.Notifier == nil {
		return
	}
	end := a.now()
	event.Host = a.Cfg.Backup.Host
	event.Index = a.Cfg.Search.Index
	event.StartedAt = start
	event.EndedAt = end
	event.Duration = end.Sub(start).String()
	if event.Status == "" {
		event.Status = statusFromErr(opErr)
	}
	if opErr != nil {
		event.Error = opErr.Error()
	}
	if err := a.Notifier.Notify(context.Background(), event); err != nil {
		a.Log.Warn().Err(err).Str("event", event.Type).Msg("notification failed")
	}
}

func statusFromErr(err error) string {
	if err == nil {
		return "success"
	}
	return "failed"
}
