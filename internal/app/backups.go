package app

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/rowjay/kibana-dashboard-backup/internal/storage"
)

// ListBackups returns the snapshots under the configured prefix, sorted by
// key. Directory placeholder objects are skipped.
func (a *App) ListBackups(ctx context.Context) ([]storage.ObjectInfo, error) {
	objects, err := a.Storage.List(ctx, a.prefix())
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	backups := make([]storage.ObjectInfo, 0, len(objects))
	for _, obj := range objects {
		if strings.HasSuffix(obj.Key, "/") {
			continue
		}
		backups = append(backups, obj)
	}
	sort.Slice(backups, func(i, j int) bool { return backups[i].Key < backups[j].Key })
	return backups, nil
}

// PrintBackup writes the decoded snapshot stored at key to w.
func (a *App) PrintBackup(ctx context.Context, key string, w io.Writer) error {
	data, err := a.readBackup(ctx, key)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// findBackup locates key by scanning the listing of its directory and
// matching the key exactly.
func (a *App) findBackup(ctx context.Context, key string) (storage.ObjectInfo, error) {
	listPrefix := ""
	if i := strings.LastIndex(key, "/"); i >= 0 {
		listPrefix = key[:i+1]
	}
	objects, err := a.Storage.List(ctx, listPrefix)
	if err != nil {
		return storage.ObjectInfo{}, fmt.Errorf("list backups: %w", err)
	}
	for _, obj := range objects {
		if obj.Key == key {
			return obj, nil
		}
	}
	return storage.ObjectInfo{}, fmt.Errorf("%w: %s", ErrBackupNotFound, key)
}

func (a *App) readBackup(ctx context.Context, key string) ([]byte, error) {
	if _, err := a.findBackup(ctx, key); err != nil {
		return nil, err
	}
	reader, err := a.Storage.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", key, err)
	}
	defer reader.Close()
	data, err := a.decodeSnapshot(reader)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return data, nil
}
