package storage

import (
	"context"
	"io"
	"time"
)

// ObjectInfo describes one blob in the backup namespace.
type ObjectInfo struct {
	Key      string
	Size     int64
	Modified time.Time
	ETag     string
}

// Storage is a flat key/blob namespace. Put overwrites any existing blob at
// the same key, which is the only retention snapshots get; lookups go
// through List.
type Storage interface {
	Put(ctx context.Context, key string, reader io.Reader, size int64, metadata map[string]string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
}
