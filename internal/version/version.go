// Package version is stamped at build time:
//
//	go build -ldflags "-X github.com/rowjay/kibana-dashboard-backup/internal/version.Version=v1.2.0"
package version

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)
