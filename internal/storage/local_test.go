package storage

import (
	"context"
	"io"
	"strings"
	"testing"
)

func TestLocalPutOverwrites(t *testing.T) {
	ctx := context.Background()
	store := NewLocal(t.TempDir())

	if err := store.Put(ctx, "kibana/host-dashboard_backup_today.json", strings.NewReader("first"), -1, nil); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.Put(ctx, "kibana/host-dashboard_backup_today.json", strings.NewReader("second"), -1, nil); err != nil {
		t.Fatalf("put: %v", err)
	}

	reader, err := store.Get(ctx, "kibana/host-dashboard_backup_today.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer reader.Close()
	data, _ := io.ReadAll(reader)
	if string(data) != "second" {
		t.Fatalf("expected overwritten content, got %q", data)
	}

	objects, err := store.List(ctx, "kibana/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(objects) != 1 || objects[0].Size != int64(len("second")) {
		t.Fatalf("unexpected listing: %+v", objects)
	}
}

func TestLocalListFiltersPrefix(t *testing.T) {
	ctx := context.Background()
	store := NewLocal(t.TempDir())
	for _, key := range []string{"kibana/a.json", "kibana-old/b.json", "other/c.json"} {
		if err := store.Put(ctx, key, strings.NewReader("{}"), -1, nil); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}

	objects, err := store.List(ctx, "kibana/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(objects) != 1 || objects[0].Key != "kibana/a.json" {
		t.Fatalf("unexpected listing: %+v", objects)
	}
}

func TestLocalListMissingPrefix(t *testing.T) {
	objects, err := NewLocal(t.TempDir()).List(context.Background(), "nothing/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(objects) != 0 {
		t.Fatalf("expected empty listing, got %+v", objects)
	}
}
