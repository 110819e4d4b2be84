package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rowjay/kibana-dashboard-backup/internal/notify"
)

// FreshnessToken is the format whose key every backup run rewrites. Its
// age is what verification checks.
const FreshnessToken = "today"

// DefaultMaxAge is the freshness window when verify.max_age is unset.
const DefaultMaxAge = 48 * time.Hour

// Health is the outcome of a verification run.
type Health struct {
	Healthy bool
	Reason  string
	Key     string
	Size    int64
	Age     time.Duration
}

// ExitCode maps health to the Sensu check convention.
func (h Health) ExitCode() int {
	if h.Healthy {
		return 0
	}
	return 1
}

// Verify looks for the "today" snapshot under the prefix and checks that
// it is non-empty and was modified within verify.max_age. Only that key is
// considered; weekday and month snapshots do not count as fresh.
func (a *App) Verify(ctx context.Context) (Health, error) {
	start := a.now()
	key, err := a.backupKey(FreshnessToken, start)
	if err != nil {
		return Health{}, err
	}
	objects, err := a.Storage.List(ctx, a.prefix())
	if err != nil {
		return Health{}, fmt.Errorf("list backups: %w", err)
	}

	maxAge := a.Cfg.Verify.MaxAge
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}

	health := Health{Key: key, Reason: "no backups found"}
	for _, obj := range objects {
		if obj.Key != key {
			continue
		}
		health.Size = obj.Size
		health.Age = start.Sub(obj.Modified)
		switch {
		case obj.Size == 0:
			health.Reason = "backup is empty"
		case health.Age > maxAge:
			health.Reason = fmt.Sprintf("no recent backup found (last upload is %d seconds old)", int64(health.Age.Seconds()))
		default:
			health.Healthy = true
			health.Reason = "backup is recent and non-empty"
		}
		break
	}

	a.Log.Debug().Str("key", key).Bool("healthy", health.Healthy).Str("reason", health.Reason).Msg("verified backup")
	if !health.Healthy {
		a.emit(notify.Event{Type: "verify", Status: "unhealthy", Message: health.Reason, Keys: []string{key}}, start, nil)
	}
	return health, nil
}
