// Package version holds the build version, overridden at link time with
// -ldflags "-X github.com/bnema/taskdump/internal/version.Version=v1.2.3".
package version

var Version = "dev"
