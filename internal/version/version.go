// Package version holds build metadata injected at link time.
package version

// Set via -ldflags at build time, e.g.
//
//	go build -ldflags "-X plan-takeoff/internal/version.Version=1.2.0"
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
