// Package doctor runs readiness diagnostics for config, pipes, Audacity, and audio.
package doctor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rbright/audpipe/internal/audacity"
	"github.com/rbright/audpipe/internal/audio"
	"github.com/rbright/audpipe/internal/config"
	"github.com/rbright/audpipe/internal/ipc"
	"github.com/rbright/audpipe/internal/macro"
	"github.com/rbright/audpipe/internal/pipe"
)

const pingText = "audpipe doctor"

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Probes are the live lookups a report depends on. Zero fields use the
// real pipe, Pulse, and bridge implementations.
type Probes struct {
	Stat     func(string) (os.FileInfo, error)
	Doer     audacity.Doer
	Playback func(context.Context) (audio.Device, error)
	Bridge   func(context.Context, string) (bool, error)
}

// Run executes environment/config/runtime checks for a loaded config.
func Run(ctx context.Context, loaded config.Loaded, probes Probes) Report {
	checks := []Check{checkConfig(loaded)}

	opts, err := loaded.Config.PipeOptions(nil)
	if err != nil {
		checks = append(checks, Check{Name: "platform", Pass: false, Message: err.Error()})
		return Report{Checks: checks}
	}
	client := pipe.New(opts)
	endpoints := client.Endpoints()
	platform := opts.Platform.Resolve()
	checks = append(checks, Check{
		Name:    "platform",
		Pass:    true,
		Message: fmt.Sprintf("%s (terminator %q)", platform, endpoints.Terminator),
	})

	if probes.Stat == nil {
		probes.Stat = os.Stat
	}
	toCheck := checkEndpoint("pipe.to_peer", endpoints.ToPeer, platform, probes.Stat)
	fromCheck := checkEndpoint("pipe.from_peer", endpoints.FromPeer, platform, probes.Stat)
	checks = append(checks, toCheck, fromCheck)

	if toCheck.Pass && fromCheck.Pass {
		doer := probes.Doer
		if doer == nil {
			doer = client
		}
		checks = append(checks, checkRoundTrip(ctx, doer))
	} else {
		checks = append(checks, Check{Name: "audacity.roundtrip", Pass: false, Message: "skipped: pipe endpoints missing"})
	}

	checks = append(checks, checkBridge(ctx, loaded.Config.Bridge.Socket, probes.Bridge))

	if probes.Playback == nil {
		probes.Playback = func(ctx context.Context) (audio.Device, error) {
			return audio.Playback(ctx, "default")
		}
	}
	checks = append(checks, checkPlayback(ctx, probes.Playback))

	return Report{Checks: checks}
}

func checkConfig(loaded config.Loaded) Check {
	message := fmt.Sprintf("loaded %q", loaded.Path)
	if !loaded.Exists {
		message = fmt.Sprintf("using defaults (%q not found)", loaded.Path)
	}
	if n := len(loaded.EnvKeys); n > 0 {
		message += fmt.Sprintf("; %d environment override(s)", n)
	}
	return Check{Name: "config", Pass: true, Message: message}
}

// checkEndpoint verifies that path exists and, on POSIX, is a FIFO.
func checkEndpoint(name, path string, platform pipe.Platform, stat func(string) (os.FileInfo, error)) Check {
	info, err := stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			missing := &pipe.Error{Kind: pipe.KindEnvironmentUnavailable, Op: "stat", Endpoint: path}
			return Check{Name: name, Pass: false, Message: missing.Error()}
		}
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("stat %s: %v", path, err)}
	}
	if platform == pipe.PlatformPOSIX && info.Mode()&os.ModeNamedPipe == 0 {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("%s exists but is not a named pipe (%s)", path, info.Mode().Type())}
	}
	return Check{Name: name, Pass: true, Message: path}
}

// checkRoundTrip sends a harmless Message macro and expects an OK status.
func checkRoundTrip(ctx context.Context, doer audacity.Doer) Check {
	started := time.Now()
	text, err := audacity.NewSession(doer).Message(ctx, pingText)
	if err != nil {
		return Check{Name: "audacity.roundtrip", Pass: false, Message: err.Error()}
	}

	resp := macro.ParseResponse(text)
	if !resp.OK {
		return Check{Name: "audacity.roundtrip", Pass: false, Message: fmt.Sprintf("unexpected status %q", resp.Status)}
	}
	return Check{
		Name:    "audacity.roundtrip",
		Pass:    true,
		Message: fmt.Sprintf("Message macro answered in %s", time.Since(started).Round(time.Millisecond)),
	}
}

// checkBridge reports whether a bridge owns the socket. A missing bridge is
// informational; only an inconclusive probe fails.
func checkBridge(ctx context.Context, socket string, probe func(context.Context, string) (bool, error)) Check {
	if strings.TrimSpace(socket) == "" {
		resolved, err := ipc.RuntimeSocketPath()
		if err != nil {
			return Check{Name: "bridge", Pass: true, Message: "not configured (" + err.Error() + ")"}
		}
		socket = resolved
	}
	if probe == nil {
		probe = func(ctx context.Context, path string) (bool, error) {
			return ipc.Probe(ctx, path, 300*time.Millisecond)
		}
	}

	alive, err := probe(ctx, socket)
	switch {
	case err != nil:
		return Check{Name: "bridge", Pass: false, Message: err.Error()}
	case alive:
		return Check{Name: "bridge", Pass: true, Message: fmt.Sprintf("serving on %s", socket)}
	default:
		return Check{Name: "bridge", Pass: true, Message: fmt.Sprintf("not running (%s)", socket)}
	}
}

// checkPlayback surfaces the sink Audacity will play through.
func checkPlayback(ctx context.Context, playback func(context.Context) (audio.Device, error)) Check {
	device, err := playback(ctx)
	if err != nil {
		return Check{Name: "audio.sink", Pass: false, Message: err.Error()}
	}
	return Check{Name: "audio.sink", Pass: true, Message: fmt.Sprintf("default sink %q (%s)", device.ID, device.State)}
}
