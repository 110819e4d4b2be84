package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rowjay/kibana-dashboard-backup/internal/docstore/docstoretest"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeTestConfig(t *testing.T, es *docstoretest.Server) (string, string) {
	t.Helper()
	dir := t.TempDir()
	store := filepath.Join(dir, "store")
	search := es.Config(100)
	body := fmt.Sprintf(`global:
  log_level: error
  lock_file: %s
search:
  host: %s
  port: %d
storage:
  backend: local
  prefix: kibana
  local:
    path: %s
backup:
  host: web01
`, filepath.Join(dir, "kdb.lock"), search.Host, search.Port, store)
	path := filepath.Join(dir, "kdb.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path, store
}

func TestVersion(t *testing.T) {
	out, err := runCLI(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out, "kdb dev") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestVerifyExitsUnhealthyWithoutBackups(t *testing.T) {
	es := docstoretest.New(t)
	cfgPath, _ := writeTestConfig(t, es)

	out, err := runCLI(t, "--config", cfgPath, "verify-backups")
	if !errors.Is(err, errUnhealthy) {
		t.Fatalf("expected unhealthy, got %v", err)
	}
	if strings.TrimSpace(out) != "No backups found" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestBackupVerifyRestoreFlow(t *testing.T) {
	es := docstoretest.New(t)
	es.Seed("ops", `{"title":"Ops"}`)
	es.Seed("web", `{"title":"Web"}`)
	cfgPath, store := writeTestConfig(t, es)

	out, err := runCLI(t, "--config", cfgPath, "backup", "today")
	if err != nil {
		t.Fatalf("backup: %v", err)
	}
	if !strings.Contains(out, "kibana/web01-dashboard_backup_today.json") {
		t.Fatalf("unexpected backup output: %q", out)
	}
	if _, err := os.Stat(filepath.Join(store, "kibana", "web01-dashboard_backup_today.json")); err != nil {
		t.Fatalf("snapshot not written: %v", err)
	}

	if out, err := runCLI(t, "--config", cfgPath, "verify-backups"); err != nil {
		t.Fatalf("verify: %v (%q)", err, out)
	}

	out, err = runCLI(t, "--config", cfgPath, "list-backups")
	if err != nil || !strings.Contains(out, "Kibana dashboard backup: kibana/web01-dashboard_backup_today.json") {
		t.Fatalf("list-backups: %v (%q)", err, out)
	}

	if _, err := runCLI(t, "--config", cfgPath, "delete-dashboards"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(es.Snapshot()) != 0 {
		t.Fatalf("expected empty index after delete")
	}

	out, err = runCLI(t, "--config", cfgPath, "restore-dashboards", "kibana/web01-dashboard_backup_today.json")
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if !strings.Contains(out, "Restored 2 dashboards") {
		t.Fatalf("unexpected restore output: %q", out)
	}
	if got, ok := es.Source("ops"); !ok || got != `{"title":"Ops"}` {
		t.Fatalf("ops not restored: %q", got)
	}
}

func TestImportPrintsFailure(t *testing.T) {
	es := docstoretest.New(t)
	cfgPath, _ := writeTestConfig(t, es)
	bad := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(bad, []byte("not json"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	out, err := runCLI(t, "--config", cfgPath, "import-dashboard", "ops", bad)
	if err == nil || strings.TrimSpace(out) != "FAILED." {
		t.Fatalf("expected FAILED., got %q (%v)", out, err)
	}
}

func TestConvertNeedsNoConfig(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "v0.json")
	out := filepath.Join(dir, "v1.json")
	if err := os.WriteFile(in, []byte(`{"field":"@fields.host","time":"@timestamp","m":"@message"}`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := runCLI(t, "convert-v0-to-v1", in, out); err != nil {
		t.Fatalf("convert: %v", err)
	}
	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != `{"field":"host","time":"@timestamp","m":"message"}` {
		t.Fatalf("unexpected conversion: %s", got)
	}

	if _, err := runCLI(t, "convert-v0-to-v1", "--mode", "yaml", in, out); err == nil {
		t.Fatalf("expected unknown mode error")
	}
}

func TestExecuteReportsUsageErrors(t *testing.T) {
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs([]string{"convert-v0-to-v1", "only-one-arg"})

	if code := execute(cmd); code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if !strings.HasPrefix(errOut.String(), "Error:") {
		t.Fatalf("expected error on stderr, got %q", errOut.String())
	}

	errOut.Reset()
	cmd = newRootCmd(&out, &errOut)
	cmd.SetArgs([]string{"no-such-command"})
	if code := execute(cmd); code != 1 || !strings.Contains(errOut.String(), "unknown command") {
		t.Fatalf("expected unknown command error, got %d %q", code, errOut.String())
	}
}

func TestExecuteUnhealthyPrintsOnlyReason(t *testing.T) {
	es := docstoretest.New(t)
	cfgPath, _ := writeTestConfig(t, es)
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs([]string{"--config", cfgPath, "verify-backups"})

	if code := execute(cmd); code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if strings.TrimSpace(out.String()) != "No backups found" {
		t.Fatalf("unexpected stdout: %q", out.String())
	}
	if strings.Contains(errOut.String(), "Error:") {
		t.Fatalf("unhealthy verify should not print an error banner: %q", errOut.String())
	}
}
