package version

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStringIncludesBuildMetadata(t *testing.T) {
	originalVersion := Version
	originalCommit := Commit
	originalDate := Date
	t.Cleanup(func() {
		Version = originalVersion
		Commit = originalCommit
		Date = originalDate
	})

	Version = "1.2.3"
	Commit = "abc123"
	Date = "2026-02-18"

	got := String()
	require.Contains(t, got, "audpipe 1.2.3")
	require.Contains(t, got, "commit=abc123")
	require.Contains(t, got, "date=2026-02-18")
	require.Contains(t, got, "go=")
}

func TestFromBuildInfo(t *testing.T) {
	info := &debug.BuildInfo{
		Main: debug.Module{Version: "v0.4.0"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "0123456789abcdef0123"},
		},
	}
	version, commit := fromBuildInfo(info, "dev", "none")
	require.Equal(t, "v0.4.0", version)
	require.Equal(t, "0123456789ab", commit)

	devel := &debug.BuildInfo{Main: debug.Module{Version: "(devel)"}}
	version, commit = fromBuildInfo(devel, "dev", "pinned")
	require.Equal(t, "dev", version)
	require.Equal(t, "pinned", commit)
}
