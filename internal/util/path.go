package util

import (
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/lestrrat-go/strftime"
)

const backupMarker = "dashboard_backup"

// BuildBackupKey derives the object key for a snapshot taken at when:
//
//	{prefix}/{host}-dashboard_backup_{suffix}.json
//
// suffix is the lowercased strftime rendering of format. Keys are meant to
// collide: "%A" rewrites the same key every week, "%B" every year, and a
// literal such as "today" on every run.
func BuildBackupKey(prefix, host, format string, when time.Time) (string, error) {
	if host == "" || strings.Contains(host, "/") {
		return "", fmt.Errorf("invalid backup host %q", host)
	}
	if format == "" {
		return "", errors.New("backup format is empty")
	}
	suffix, err := strftime.Format(format, when)
	if err != nil {
		return "", fmt.Errorf("render backup format %q: %w", format, err)
	}
	name := fmt.Sprintf("%s-%s_%s.json", host, backupMarker, strings.ToLower(suffix))
	if p := strings.Trim(prefix, "/"); p != "" {
		return path.Join(p, name), nil
	}
	return name, nil
}

// BuildPrefix returns the listing prefix that covers every key built with
// the same prefix.
func BuildPrefix(prefix string) string {
	p := strings.Trim(prefix, "/")
	if p == "" {
		return ""
	}
	return p + "/"
}
