package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rbright/audpipe/internal/audio"
	"github.com/rbright/audpipe/internal/doctor"
	"github.com/rbright/audpipe/internal/ipc"
	"github.com/rbright/audpipe/internal/pipe"
)

func TestExecuteHelp(t *testing.T) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer

	exitCode := Execute(context.Background(), []string{"--help"}, &stdout, &stderr)
	require.Equal(t, 0, exitCode)
	require.Contains(t, stdout.String(), "Usage:")
	require.Empty(t, stderr.String())
}

func TestExecuteVersion(t *testing.T) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer

	exitCode := Execute(context.Background(), []string{"version"}, &stdout, &stderr)
	require.Equal(t, 0, exitCode)
	require.Contains(t, stdout.String(), "audpipe")
	require.Empty(t, stderr.String())
}

func TestExecuteUnknownCommand(t *testing.T) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer

	exitCode := Execute(context.Background(), []string{"definitely-not-a-command"}, &stdout, &stderr)
	require.Equal(t, 2, exitCode)
	require.Contains(t, stderr.String(), "unknown command")
	require.Contains(t, stderr.String(), "Usage:")
}

// recordingDoer answers every command with reply or err and remembers what it saw.
type recordingDoer struct {
	mu       sync.Mutex
	commands []string
	reply    string
	err      error
}

func (d *recordingDoer) Do(_ context.Context, command string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.commands = append(d.commands, command)
	return d.reply, d.err
}

func (d *recordingDoer) seen() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.commands...)
}

func TestRunnerDoPrintsResponse(t *testing.T) {
	paths := setupRunnerEnv(t)
	doer := &recordingDoer{reply: "hello\nBatchCommand finished: OK\n"}

	var stdout, stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr, Doer: doer}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "do", "Message:", `Text="hello"`})
	require.Equal(t, 0, exitCode, stderr.String())
	require.Equal(t, "hello\nBatchCommand finished: OK\n", stdout.String())
	require.Equal(t, []string{`Message: Text="hello"`}, doer.seen())
}

func TestRunnerDoPeerFailureExitsThree(t *testing.T) {
	paths := setupRunnerEnv(t)
	response := "Your batch command of Bogus was not recognized.\nBatchCommand finished: Failed!"
	doer := &recordingDoer{err: &pipe.Error{Kind: pipe.KindPeerExecutionFailure, Response: response}}

	var stdout, stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr, Doer: doer}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "do", "Bogus:"})
	require.Equal(t, 3, exitCode)
	require.Contains(t, stderr.String(), response)
	require.Empty(t, stdout.String())
}

func TestRunnerDoMissingPipesReportsEnvironment(t *testing.T) {
	paths := setupRunnerEnv(t)

	var stdout, stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "do", "Play:"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), paths.toPeer+" does not exist")
	require.Contains(t, stderr.String(), "mod-script-pipe")
}

func TestRunnerInfoRejectsUnknownType(t *testing.T) {
	paths := setupRunnerEnv(t)
	doer := &recordingDoer{}

	var stdout, stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr, Doer: doer}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "info", "plugins"})
	require.Equal(t, 2, exitCode)
	require.Contains(t, stderr.String(), "unknown info type")
	require.Empty(t, doer.seen())
}

func TestRunnerInfoPrintsPayload(t *testing.T) {
	paths := setupRunnerEnv(t)
	doer := &recordingDoer{reply: "[ { \"name\":\"Audio 1\" } ]\nBatchCommand finished: OK"}

	var stdout, stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr, Doer: doer}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "info", "tracks"})
	require.Equal(t, 0, exitCode, stderr.String())
	require.Equal(t, "[ { \"name\":\"Audio 1\" } ]\n", stdout.String())
	require.Equal(t, []string{`GetInfo: Type="Tracks" Format="JSON"`}, doer.seen())
}

func TestRunnerTracksAndLabels(t *testing.T) {
	paths := setupRunnerEnv(t)

	var stdout, stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr, Doer: &recordingDoer{
		reply: `[{"name":"Audio 1","kind":"wave","selected":1,"start":0,"end":2.5,"channels":2}]` + "\nBatchCommand finished: OK",
	}}
	require.Equal(t, 0, runner.Execute(context.Background(), []string{"--config", paths.configPath, "tracks"}), stderr.String())
	require.Equal(t, "* 0 kind=wave | name=\"Audio 1\" | start=0.000 | end=2.500 | channels=2\n", stdout.String())

	stdout.Reset()
	runner.Doer = &recordingDoer{reply: `[[1,[[0.5,1,"intro"]]]]` + "\nBatchCommand finished: OK"}
	require.Equal(t, 0, runner.Execute(context.Background(), []string{"--config", paths.configPath, "labels"}), stderr.String())
	require.Equal(t, "track=1 | start=0.500 | end=1.000 | text=\"intro\"\n", stdout.String())

	stdout.Reset()
	runner.Doer = &recordingDoer{reply: "BatchCommand finished: OK"}
	require.Equal(t, 0, runner.Execute(context.Background(), []string{"--config", paths.configPath, "labels"}))
	require.Equal(t, "no labels\n", stdout.String())
}

func TestRunnerPathsPrintsEndpoints(t *testing.T) {
	paths := setupRunnerEnv(t)
	writeConfig(t, paths.configPath, `{
  "pipe": { "platform": "posix", "uid": 1000 },
}`)

	var stdout, stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "paths"})
	require.Equal(t, 0, exitCode, stderr.String())
	require.Equal(t, strings.Join([]string{
		"platform=posix",
		"to_peer=/tmp/audacity_script_pipe.to.1000",
		"from_peer=/tmp/audacity_script_pipe.from.1000",
		`terminator="\n"`,
		"",
	}, "\n"), stdout.String())
}

func TestRunnerDevicesListsAndFilters(t *testing.T) {
	paths := setupRunnerEnv(t)

	var stdout, stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr, Devices: func(context.Context) ([]audio.Device, error) {
		return []audio.Device{
			{ID: "alsa_output.analog", Description: "Built-in", State: "running", Available: true, Default: true},
			{ID: "alsa_output.usb", Description: "Scarlett", State: "suspended", Available: true, Muted: true},
		}, nil
	}}

	require.Equal(t, 0, runner.Execute(context.Background(), []string{"--config", paths.configPath, "devices"}))
	require.Contains(t, stdout.String(), `* id=alsa_output.analog | description="Built-in" | state=running | available=yes | muted=no`)
	require.Contains(t, stdout.String(), "muted=yes")

	stdout.Reset()
	require.Equal(t, 0, runner.Execute(context.Background(), []string{"--config", paths.configPath, "devices", "scarlett"}))
	require.NotContains(t, stdout.String(), "alsa_output.analog")

	stdout.Reset()
	require.Equal(t, 1, runner.Execute(context.Background(), []string{"--config", paths.configPath, "devices", "hdmi"}))
	require.Equal(t, "no audio devices found\n", stdout.String())
}

func TestRunnerDevicesPulseUnavailable(t *testing.T) {
	paths := setupRunnerEnv(t)
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")

	var stdout, stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "devices"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "error:")
}

func TestRunnerDoctorPrintsReport(t *testing.T) {
	paths := setupRunnerEnv(t)

	var stdout, stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr, Probes: doctor.Probes{
		Playback: func(context.Context) (audio.Device, error) {
			return audio.Device{ID: "alsa_output.analog", State: "idle"}, nil
		},
		Bridge: func(context.Context, string) (bool, error) { return false, nil },
	}}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "doctor"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stdout.String(), "[OK] config: loaded")
	require.Contains(t, stdout.String(), "[FAIL] pipe.to_peer")
	require.Contains(t, stdout.String(), "[OK] audio.sink")
}

func TestRunnerServeBridgesRemoteCommands(t *testing.T) {
	paths := setupRunnerEnv(t)
	doer := &recordingDoer{reply: "played\nBatchCommand finished: OK"}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var serveOut, serveErr bytes.Buffer
	server := Runner{Stdout: &serveOut, Stderr: &serveErr, Doer: doer}
	done := make(chan int, 1)
	go func() {
		done <- server.Execute(ctx, []string{"--config", paths.configPath, "serve"})
	}()
	waitForBridge(t, paths.socketPath)

	var stdout, stderr bytes.Buffer
	client := Runner{Stdout: &stdout, Stderr: &stderr}
	exitCode := client.Execute(context.Background(), []string{"--config", paths.configPath, "--remote", "do", "Play:"})
	require.Equal(t, 0, exitCode, stderr.String())
	require.Equal(t, "played\nBatchCommand finished: OK\n", stdout.String())
	require.Equal(t, []string{"Play:"}, doer.seen())

	second := Runner{Stdout: &bytes.Buffer{}, Stderr: &bytes.Buffer{}}
	require.Equal(t, 1, second.Execute(context.Background(), []string{"--config", paths.configPath, "serve"}))
	require.Contains(t, second.Stderr.(*bytes.Buffer).String(), "already running")

	cancel()
	select {
	case code := <-done:
		require.Equal(t, 0, code, serveErr.String())
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}
	require.Contains(t, serveOut.String(), "serving on "+paths.socketPath)

	_, statErr := os.Stat(paths.socketPath)
	require.ErrorIs(t, statErr, os.ErrNotExist)
}

func TestRunnerRemotePeerFailureExitsThree(t *testing.T) {
	paths := setupRunnerEnv(t)
	doer := &recordingDoer{err: &pipe.Error{Kind: pipe.KindPeerExecutionFailure, Response: "BatchCommand finished: Failed!"}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	server := Runner{Stdout: &bytes.Buffer{}, Stderr: &bytes.Buffer{}, Doer: doer}
	done := make(chan int, 1)
	go func() { done <- server.Execute(ctx, []string{"--config", paths.configPath, "serve"}) }()
	waitForBridge(t, paths.socketPath)

	var stdout, stderr bytes.Buffer
	client := Runner{Stdout: &stdout, Stderr: &stderr}
	exitCode := client.Execute(context.Background(), []string{"--config", paths.configPath, "--remote", "do", "Bogus:"})
	require.Equal(t, 3, exitCode)
	require.Contains(t, stderr.String(), "BatchCommand finished: Failed!")

	cancel()
	<-done
}

func TestRunnerRemoteWithoutBridgeFails(t *testing.T) {
	paths := setupRunnerEnv(t)

	var stdout, stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "--remote", "do", "Play:"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "bridge")
}

func TestFailMapsKindsToExitCodes(t *testing.T) {
	runner := Runner{Stdout: &bytes.Buffer{}, Stderr: &bytes.Buffer{}}
	logger := discardLogger()

	require.Equal(t, 3, runner.fail(logger, "do", &pipe.Error{Kind: pipe.KindPeerExecutionFailure, Response: "x"}))
	require.Equal(t, 1, runner.fail(logger, "do", &pipe.Error{Kind: pipe.KindEnvironmentUnavailable, Endpoint: "/tmp/x"}))
	require.Equal(t, 1, runner.fail(logger, "do", errors.New("plain")))
	require.Equal(t, 1, runner.fail(logger, "do", fmt.Errorf("wrapped: %w", &pipe.Error{Kind: pipe.KindTransport})))
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

type runnerPaths struct {
	configPath string
	runtimeDir string
	socketPath string
	toPeer     string
	fromPeer   string
}

func setupRunnerEnv(t *testing.T) runnerPaths {
	t.Helper()

	xdgStateHome := t.TempDir()
	runtimeDir := t.TempDir()
	t.Setenv("XDG_STATE_HOME", xdgStateHome)
	t.Setenv("XDG_RUNTIME_DIR", runtimeDir)

	pipeDir := t.TempDir()
	paths := runnerPaths{
		configPath: filepath.Join(t.TempDir(), "config.jsonc"),
		runtimeDir: runtimeDir,
		socketPath: filepath.Join(runtimeDir, "audpipe.sock"),
		toPeer:     filepath.Join(pipeDir, "to"),
		fromPeer:   filepath.Join(pipeDir, "from"),
	}

	writeConfig(t, paths.configPath, fmt.Sprintf(`{
  // pipes that never exist unless a test creates them
  "pipe": { "platform": "posix", "to_peer": %q, "from_peer": %q },
  "exchange": { "timeout_ms": 2000 },
}`, paths.toPeer, paths.fromPeer))

	return paths
}

func writeConfig(t *testing.T, path, contents string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
}

func waitForBridge(t *testing.T, socketPath string) {
	t.Helper()
	require.Eventually(t, func() bool {
		alive, err := ipc.Probe(context.Background(), socketPath, 200*time.Millisecond)
		return err == nil && alive
	}, 5*time.Second, 20*time.Millisecond)
}
