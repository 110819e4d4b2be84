package util

import (
	"testing"
	"time"
)

func TestBuildBackupKey(t *testing.T) {
	when := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	cases := map[string]string{
		"today": "backups/web01-dashboard_backup_today.json",
		"%A":    "backups/web01-dashboard_backup_monday.json",
		"%B":    "backups/web01-dashboard_backup_january.json",
		"%Y-%m": "backups/web01-dashboard_backup_2024-01.json",
	}
	for format, want := range cases {
		key, err := BuildBackupKey("/backups/", "web01", format, when)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", format, err)
		}
		if key != want {
			t.Fatalf("%s: expected %s, got %s", format, want, key)
		}
	}
}

func TestBuildBackupKeySameDayCollides(t *testing.T) {
	morning := time.Date(2024, 3, 5, 0, 1, 0, 0, time.UTC)
	evening := time.Date(2024, 3, 5, 23, 59, 0, 0, time.UTC)
	for _, format := range []string{"today", "%A", "%B", "%Y-%m-%d"} {
		a, _ := BuildBackupKey("kibana", "host", format, morning)
		b, _ := BuildBackupKey("kibana", "host", format, evening)
		if a != b {
			t.Fatalf("%s: expected same-day keys to collide: %s vs %s", format, a, b)
		}
	}
}

func TestBuildBackupKeyDiffersAcrossDays(t *testing.T) {
	monday := time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)
	tuesday := monday.AddDate(0, 0, 1)
	for _, format := range []string{"%A", "%Y-%m-%d"} {
		a, _ := BuildBackupKey("kibana", "host", format, monday)
		b, _ := BuildBackupKey("kibana", "host", format, tuesday)
		if a == b {
			t.Fatalf("%s: expected keys to differ across days, both %s", format, a)
		}
	}
}

func TestBuildBackupKeyDistinctHosts(t *testing.T) {
	when := time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)
	a, _ := BuildBackupKey("kibana", "web01", "today", when)
	b, _ := BuildBackupKey("kibana", "web02", "today", when)
	c, _ := BuildBackupKey("kibana-2", "web01", "today", when)
	if a == b || a == c {
		t.Fatalf("expected distinct keys: %s %s %s", a, b, c)
	}
}

func TestBuildBackupKeyRejectsBadInput(t *testing.T) {
	when := time.Now()
	if _, err := BuildBackupKey("kibana", "", "today", when); err == nil {
		t.Fatalf("expected error for empty host")
	}
	if _, err := BuildBackupKey("kibana", "a/b", "today", when); err == nil {
		t.Fatalf("expected error for host with slash")
	}
	if _, err := BuildBackupKey("kibana", "web01", "", when); err == nil {
		t.Fatalf("expected error for empty format")
	}
}

func TestBuildPrefix(t *testing.T) {
	if prefix := BuildPrefix("/kibana/"); prefix != "kibana/" {
		t.Fatalf("unexpected prefix: %s", prefix)
	}
	if prefix := BuildPrefix(""); prefix != "" {
		t.Fatalf("unexpected prefix: %s", prefix)
	}
}
