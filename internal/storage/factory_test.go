package storage

import (
	"testing"

	"github.com/rowjay/kibana-dashboard-backup/internal/config"
)

var (
	_ Storage = (*Local)(nil)
	_ Storage = (*S3)(nil)
)

func TestNewPicksBackend(t *testing.T) {
	local, err := New(config.StorageConfig{Backend: "local", Local: config.LocalStore{Path: t.TempDir()}})
	if err != nil {
		t.Fatalf("local: %v", err)
	}
	if _, ok := local.(*Local); !ok {
		t.Fatalf("expected *Local, got %T", local)
	}

	s3, err := New(config.StorageConfig{S3: config.S3Store{Endpoint: "s3.amazonaws.com", Bucket: "dash-backups", UseSSL: true}})
	if err != nil {
		t.Fatalf("s3: %v", err)
	}
	if got, ok := s3.(*S3); !ok || got.Bucket != "dash-backups" {
		t.Fatalf("expected *S3 for dash-backups, got %#v", s3)
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	cases := []config.StorageConfig{
		{Backend: "local"},
		{Backend: "s3", S3: config.S3Store{Endpoint: "s3.amazonaws.com"}},
		{Backend: "gcs"},
	}
	for _, cfg := range cases {
		if _, err := New(cfg); err == nil {
			t.Fatalf("expected error for %+v", cfg)
		}
	}
}
