package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rowjay/kibana-dashboard-backup/internal/compress"
	"github.com/rowjay/kibana-dashboard-backup/internal/convert"
	"github.com/rowjay/kibana-dashboard-backup/internal/lock"
)

type DeleteResult struct {
	Deleted int
	Failed  int
}

// ListDashboards returns the id of every dashboard in the index.
func (a *App) ListDashboards(ctx context.Context) ([]string, error) {
	res, err := a.Docs.SearchAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch dashboards: %w", err)
	}
	return res.IDs(), nil
}

// DeleteDashboards issues one delete per dashboard in the index. Failed
// deletes are logged and counted; they never fail the run.
func (a *App) DeleteDashboards(ctx context.Context) (*DeleteResult, error) {
	guard, err := lock.Acquire(a.Cfg.Global.LockFile)
	if err != nil {
		return nil, err
	}
	defer guard.Release()

	ids, err := a.ListDashboards(ctx)
	if err != nil {
		return nil, err
	}
	res := &DeleteResult{}
	for _, id := range ids {
		a.Log.Info().Str("id", id).Msg("deleting dashboard")
		if err := a.Docs.Delete(ctx, id); err != nil {
			a.Log.Error().Err(err).Str("id", id).Msg("delete failed, continuing")
			res.Failed++
			continue
		}
		res.Deleted++
	}
	return res, nil
}

// ExportDashboard writes the _source of one dashboard to path, compressed
// when path ends in .gz or .zst.
func (a *App) ExportDashboard(ctx context.Context, id, path string) error {
	source, err := a.Docs.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := writeFile(path, source); err != nil {
		return fmt.Errorf("export %s: %w", id, err)
	}
	a.Log.Info().Str("id", id).Str("path", path).Msg("dashboard exported")
	return nil
}

// ImportDashboard creates or replaces dashboard id with the JSON in path.
func (a *App) ImportDashboard(ctx context.Context, id, path string) error {
	source, err := readFile(path)
	if err != nil {
		return fmt.Errorf("import %s: %w", id, err)
	}
	if !json.Valid(source) {
		return fmt.Errorf("import %s: %s is not valid JSON", id, path)
	}
	if err := a.Docs.Put(ctx, id, source); err != nil {
		return fmt.Errorf("import %s: %w", id, err)
	}
	a.Log.Info().Str("id", id).Str("path", path).Msg("dashboard imported")
	return nil
}

// ConvertFile runs conv over the dashboard in inPath and writes the result
// to outPath. It touches neither the index nor the bucket.
func ConvertFile(inPath, outPath string, conv convert.Converter) error {
	in, err := readFile(inPath)
	if err != nil {
		return err
	}
	out, err := conv.Convert(in)
	if err != nil {
		return fmt.Errorf("convert %s: %w", inPath, err)
	}
	return writeFile(outPath, out)
}

func readFile(path string) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	reader, err := compress.WrapReader(compress.ForPath(path), file)
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	return io.ReadAll(reader)
}

func writeFile(path string, data []byte) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	writer, err := compress.WrapWriter(compress.ForPath(path), file)
	if err != nil {
		file.Close()
		return err
	}
	if _, err := writer.Write(data); err != nil {
		writer.Close()
		file.Close()
		return err
	}
	if err := writer.Close(); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
