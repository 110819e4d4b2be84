package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const todayKey = "kibana/web01-dashboard_backup_today.json"

func (h *harness) putAged(t *testing.T, key, body string, age time.Duration) {
	t.Helper()
	if err := h.store.Put(context.Background(), key, strings.NewReader(body), int64(len(body)), nil); err != nil {
		t.Fatalf("put %s: %v", key, err)
	}
	modified := testNow.Add(-age)
	if err := os.Chtimes(filepath.Join(h.root, filepath.FromSlash(key)), modified, modified); err != nil {
		t.Fatalf("chtimes %s: %v", key, err)
	}
}

func TestVerifyNoBackups(t *testing.T) {
	h := newHarness(t)
	h.putAged(t, "kibana/web01-dashboard_backup_monday.json", `{"hits":{}}`, time.Minute)

	health, err := h.app.Verify(context.Background())
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if health.ExitCode() != 1 || health.Reason != "no backups found" {
		t.Fatalf("unexpected health: %+v", health)
	}
	if len(h.notified.events) != 1 || h.notified.events[0].Status != "unhealthy" {
		t.Fatalf("expected unhealthy notification, got %+v", h.notified.events)
	}
}

func TestVerifyEmptyBackup(t *testing.T) {
	h := newHarness(t)
	h.putAged(t, todayKey, "", 10*time.Minute)

	health, err := h.app.Verify(context.Background())
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if health.ExitCode() != 1 || !strings.Contains(health.Reason, "empty") {
		t.Fatalf("unexpected health: %+v", health)
	}
}

func TestVerifyRecentBackup(t *testing.T) {
	h := newHarness(t)
	h.putAged(t, todayKey, `{"hits":{"hits":[]}}`, 10*time.Minute)

	health, err := h.app.Verify(context.Background())
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if health.ExitCode() != 0 {
		t.Fatalf("expected healthy, got %+v", health)
	}
	if len(h.notified.events) != 0 {
		t.Fatalf("healthy runs should not notify, got %+v", h.notified.events)
	}
}

func TestVerifyStaleBackup(t *testing.T) {
	h := newHarness(t)
	h.putAged(t, todayKey, `{"hits":{"hits":[]}}`, 72*time.Hour)
	h.putAged(t, "kibana/web01-dashboard_backup_monday.json", `{"hits":{"hits":[]}}`, time.Minute)

	health, err := h.app.Verify(context.Background())
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if health.ExitCode() != 1 || !strings.Contains(health.Reason, "no recent backup") {
		t.Fatalf("unexpected health: %+v", health)
	}
	if !strings.Contains(health.Reason, "259200 seconds") {
		t.Fatalf("expected age in reason, got %q", health.Reason)
	}
}

func TestVerifyIgnoresOtherHosts(t *testing.T) {
	h := newHarness(t)
	h.putAged(t, "kibana/web02-dashboard_backup_today.json", `{"hits":{"hits":[]}}`, time.Minute)

	health, err := h.app.Verify(context.Background())
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if health.Healthy {
		t.Fatalf("another host's backup must not satisfy verification: %+v", health)
	}
}
