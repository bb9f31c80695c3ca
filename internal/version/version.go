// Package version reports audpipe build metadata.
package version

import (
	"runtime"
	"runtime/debug"
)

// Set through -ldflags at release build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// String renders one line of build metadata. Development builds fall back to
// the module version and VCS revision recorded by the Go toolchain.
func String() string {
	version, commit := Version, Commit
	if version == "dev" {
		if info, ok := debug.ReadBuildInfo(); ok {
			version, commit = fromBuildInfo(info, version, commit)
		}
	}
	return "audpipe " + version + " (commit=" + commit + ", date=" + Date + ", go=" + runtime.Version() + ")"
}

func fromBuildInfo(info *debug.BuildInfo, version, commit string) (string, string) {
	if v := info.Main.Version; v != "" && v != "(devel)" {
		version = v
	}
	if commit == "none" {
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" && setting.Value != "" {
				commit = setting.Value
				if len(commit) > 12 {
					commit = commit[:12]
				}
			}
		}
	}
	return version, commit
}
