package app

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/rowjay/kibana-dashboard-backup/internal/convert"
	"github.com/rowjay/kibana-dashboard-backup/internal/docstore"
)

func TestListDashboards(t *testing.T) {
	h := newHarness(t)
	h.seed()

	ids, err := h.app.ListDashboards(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !reflect.DeepEqual(ids, []string{"db", "ops", "web"}) {
		t.Fatalf("unexpected ids: %v", ids)
	}
}

func TestDeleteDashboardsAttemptsEveryID(t *testing.T) {
	h := newHarness(t)
	h.seed()
	h.es.FailDelete["ops"] = true
	h.es.FailDelete["web"] = true

	res, err := h.app.DeleteDashboards(context.Background())
	if err != nil {
		t.Fatalf("delete should not fail on item errors: %v", err)
	}
	if len(h.es.Deletes()) != 3 {
		t.Fatalf("expected 3 delete calls, got %v", h.es.Deletes())
	}
	if res.Deleted != 1 || res.Failed != 2 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	for _, name := range []string{"ops.json", "ops.json.gz", "ops.json.zst"} {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t)
			h.seed()
			ctx := context.Background()
			path := filepath.Join(t.TempDir(), name)

			original, _ := h.es.Source("ops")
			if err := h.app.ExportDashboard(ctx, "ops", path); err != nil {
				t.Fatalf("export: %v", err)
			}
			if err := docstore.New(h.app.Cfg.Search).Delete(ctx, "ops"); err != nil {
				t.Fatalf("delete: %v", err)
			}
			if err := h.app.ImportDashboard(ctx, "ops", path); err != nil {
				t.Fatalf("import: %v", err)
			}
			restored, ok := h.es.Source("ops")
			if !ok {
				t.Fatalf("dashboard not imported")
			}
			var a, b any
			_ = json.Unmarshal([]byte(original), &a)
			_ = json.Unmarshal([]byte(restored), &b)
			if !reflect.DeepEqual(a, b) {
				t.Fatalf("round trip changed _source: %s vs %s", original, restored)
			}
		})
	}
}

func TestExportMissingDashboard(t *testing.T) {
	h := newHarness(t)
	path := filepath.Join(t.TempDir(), "missing.json")

	err := h.app.ExportDashboard(context.Background(), "missing", path)
	if !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Fatalf("export of a missing dashboard must not create %s", path)
	}
}

func TestImportRejectsInvalidJSON(t *testing.T) {
	h := newHarness(t)
	path := filepath.Join(t.TempDir(), "broken.json")
	if err := os.WriteFile(path, []byte(`{"title":`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := h.app.ImportDashboard(context.Background(), "broken", path); err == nil {
		t.Fatalf("expected invalid JSON error")
	}
	if len(h.es.Puts()) != 0 {
		t.Fatalf("invalid file must not be written")
	}
}

func TestConvertFile(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "v0.json")
	out := filepath.Join(dir, "v1.json")
	if err := os.WriteFile(in, []byte(`{"@fields.title":"x","@timestamp":"y","@user":"z"}`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := ConvertFile(in, out, convert.Text{}); err != nil {
		t.Fatalf("convert: %v", err)
	}
	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != `{"title":"x","@timestamp":"y","user":"z"}` {
		t.Fatalf("unexpected output: %s", got)
	}
}
