// Package app dispatches audpipe commands and maps failures to exit codes.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"

	"github.com/rbright/audpipe/internal/audacity"
	"github.com/rbright/audpipe/internal/audio"
	"github.com/rbright/audpipe/internal/cli"
	"github.com/rbright/audpipe/internal/config"
	"github.com/rbright/audpipe/internal/doctor"
	"github.com/rbright/audpipe/internal/ipc"
	"github.com/rbright/audpipe/internal/logging"
	"github.com/rbright/audpipe/internal/metrics"
	"github.com/rbright/audpipe/internal/pipe"
	"github.com/rbright/audpipe/internal/version"
)

const (
	exitOK            = 0
	exitRuntime       = 1
	exitUsage         = 2
	exitPeerExecution = 3
)

type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger

	// Doer replaces the pipe or bridge transport when set.
	Doer audacity.Doer
	// Probes replaces the live doctor lookups when set.
	Probes doctor.Probes
	// Devices replaces Pulse sink discovery when set.
	Devices func(context.Context) ([]audio.Device, error)
}

func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText("audpipe"))
		return exitUsage
	}

	if parsed.ShowHelp {
		fmt.Fprint(r.Stdout, cli.HelpText("audpipe"))
		return exitOK
	}

	if parsed.Command == cli.CommandVersion {
		fmt.Fprintln(r.Stdout, version.String())
		return exitOK
	}

	cfgLoaded, err := config.Load(parsed.ConfigPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return exitRuntime
	}

	level, _ := config.ParseLevel(cfgLoaded.Config.Log.Level)
	logRuntime, err := logging.New(level)
	if err != nil {
		fmt.Fprintf(r.Stderr, "warning: setup logging: %v\n", err)
		logRuntime = logging.Discard()
	}
	defer func() { _ = logRuntime.Close() }()

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}

	for _, w := range cfgLoaded.Warnings {
		msg := w.Message
		if w.Line > 0 {
			msg = fmt.Sprintf("line %d: %s", w.Line, w.Message)
		}
		fmt.Fprintf(r.Stderr, "warning: %s\n", msg)
		logger.Warn("config warning", "line", w.Line, "message", w.Message)
	}

	logger.Info("command start",
		"command", parsed.Command,
		"remote", parsed.Remote,
		"config", cfgLoaded.Path,
		"log", logRuntime.Path,
	)

	switch parsed.Command {
	case cli.CommandDo:
		return r.commandDo(ctx, cfgLoaded.Config, parsed, logger)
	case cli.CommandInfo:
		return r.commandInfo(ctx, cfgLoaded.Config, parsed, logger)
	case cli.CommandTracks:
		return r.commandTracks(ctx, cfgLoaded.Config, parsed, logger)
	case cli.CommandLabels:
		return r.commandLabels(ctx, cfgLoaded.Config, parsed, logger)
	case cli.CommandPaths:
		return r.commandPaths(cfgLoaded.Config, logger)
	case cli.CommandDevices:
		return r.commandDevices(ctx, parsed.Args)
	case cli.CommandServe:
		return r.commandServe(ctx, cfgLoaded.Config, logger)
	case cli.CommandDoctor:
		report := doctor.Run(ctx, cfgLoaded, r.Probes)
		fmt.Fprintln(r.Stdout, report.String())
		if report.OK() {
			return exitOK
		}
		return exitRuntime
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return exitUsage
	}
}

// session picks the transport: an injected Doer, the bridge with --remote,
// or the local pipes. The returned func releases the transport.
func (r Runner) session(cfg config.Config, remote bool, logger *slog.Logger) (audacity.Session, func(), error) {
	if r.Doer != nil {
		return audacity.NewSession(r.Doer), func() {}, nil
	}

	if remote {
		socket, err := bridgeSocket(cfg)
		if err != nil {
			return audacity.Session{}, nil, err
		}
		conn, err := ipc.Dial(socket)
		if err != nil {
			return audacity.Session{}, nil, fmt.Errorf("dial bridge %s: %w", socket, err)
		}
		remote := ipc.NewRemote(conn, socket)
		remote.Timeout = time.Duration(cfg.Exchange.TimeoutMS) * time.Millisecond
		return audacity.NewSession(remote), func() { _ = conn.Close() }, nil
	}

	opts, err := cfg.PipeOptions(logger)
	if err != nil {
		return audacity.Session{}, nil, err
	}
	return audacity.NewSession(pipe.New(opts)), func() {}, nil
}

func (r Runner) commandDo(ctx context.Context, cfg config.Config, parsed cli.Parsed, logger *slog.Logger) int {
	line := parsed.MacroLine()
	if line == "" {
		fmt.Fprintln(r.Stderr, "error: empty macro line")
		return exitUsage
	}

	session, release, err := r.session(cfg, parsed.Remote, logger)
	if err != nil {
		return r.fail(logger, "do", err)
	}
	defer release()

	started := time.Now()
	response, err := session.Doer.Do(ctx, line)
	if err != nil {
		return r.fail(logger, "do", err)
	}
	logger.Info("macro complete", "command", line, "duration_ms", time.Since(started).Milliseconds())

	fmt.Fprintln(r.Stdout, strings.TrimRight(response, "\n"))
	return exitOK
}

func (r Runner) commandInfo(ctx context.Context, cfg config.Config, parsed cli.Parsed, logger *slog.Logger) int {
	infoType, err := audacity.ParseInfoType(parsed.Args[0])
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return exitUsage
	}

	session, release, err := r.session(cfg, parsed.Remote, logger)
	if err != nil {
		return r.fail(logger, "info", err)
	}
	defer release()

	payload, err := session.InfoJSON(ctx, infoType)
	if err != nil {
		return r.fail(logger, "info", err)
	}
	fmt.Fprintln(r.Stdout, payload)
	return exitOK
}

func (r Runner) commandTracks(ctx context.Context, cfg config.Config, parsed cli.Parsed, logger *slog.Logger) int {
	session, release, err := r.session(cfg, parsed.Remote, logger)
	if err != nil {
		return r.fail(logger, "tracks", err)
	}
	defer release()

	tracks, err := session.Tracks(ctx)
	if err != nil {
		return r.fail(logger, "tracks", err)
	}
	if len(tracks) == 0 {
		fmt.Fprintln(r.Stdout, "no tracks")
		return exitOK
	}
	for i, track := range tracks {
		selected := " "
		if track.Selected != 0 {
			selected = "*"
		}
		fmt.Fprintf(r.Stdout, "%s %d kind=%s | name=%q | start=%.3f | end=%.3f | channels=%d\n",
			selected, i, track.Kind, track.Name, track.Start, track.End, track.Channels)
	}
	return exitOK
}

func (r Runner) commandLabels(ctx context.Context, cfg config.Config, parsed cli.Parsed, logger *slog.Logger) int {
	session, release, err := r.session(cfg, parsed.Remote, logger)
	if err != nil {
		return r.fail(logger, "labels", err)
	}
	defer release()

	tracks, err := session.Labels(ctx)
	if err != nil {
		return r.fail(logger, "labels", err)
	}
	count := 0
	for _, track := range tracks {
		for _, label := range track.Labels {
			count++
			fmt.Fprintf(r.Stdout, "track=%d | start=%.3f | end=%.3f | text=%q\n", track.Track, label.Start, label.End, label.Text)
		}
	}
	if count == 0 {
		fmt.Fprintln(r.Stdout, "no labels")
	}
	return exitOK
}

func (r Runner) commandPaths(cfg config.Config, logger *slog.Logger) int {
	opts, err := cfg.PipeOptions(logger)
	if err != nil {
		return r.fail(logger, "paths", err)
	}
	endpoints := pipe.New(opts).Endpoints()
	fmt.Fprintf(r.Stdout, "platform=%s\n", opts.Platform.Resolve())
	fmt.Fprintf(r.Stdout, "to_peer=%s\n", endpoints.ToPeer)
	fmt.Fprintf(r.Stdout, "from_peer=%s\n", endpoints.FromPeer)
	fmt.Fprintf(r.Stdout, "terminator=%q\n", endpoints.Terminator)
	return exitOK
}

func (r Runner) commandDevices(ctx context.Context, args []string) int {
	list := r.Devices
	if list == nil {
		list = audio.ListDevices
	}
	devices, err := list(ctx)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return exitRuntime
	}
	if len(args) > 0 {
		devices = audio.Filter(devices, args[0])
	}
	if len(devices) == 0 {
		fmt.Fprintln(r.Stdout, "no audio devices found")
		return exitRuntime
	}

	for _, device := range devices {
		defaultMark := " "
		if device.Default {
			defaultMark = "*"
		}
		availability := "yes"
		if !device.Available {
			availability = "no"
		}
		muted := "no"
		if device.Muted {
			muted = "yes"
		}
		fmt.Fprintf(
			r.Stdout,
			"%s id=%s | description=%q | state=%s | available=%s | muted=%s\n",
			defaultMark,
			device.ID,
			device.Description,
			device.State,
			availability,
			muted,
		)
	}

	return exitOK
}

func (r Runner) commandServe(ctx context.Context, cfg config.Config, logger *slog.Logger) int {
	socketPath, err := bridgeSocket(cfg)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return exitRuntime
	}

	var doer ipc.Doer = r.Doer
	if doer == nil {
		opts, err := cfg.PipeOptions(logger)
		if err != nil {
			return r.fail(logger, "serve", err)
		}
		doer = pipe.New(opts)
	}

	listener, err := ipc.Acquire(ctx, socketPath, 180*time.Millisecond, 8, nil)
	if err != nil {
		if errors.Is(err, ipc.ErrAlreadyRunning) {
			fmt.Fprintf(r.Stderr, "error: bridge already running on %s\n", socketPath)
			return exitRuntime
		}
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return exitRuntime
	}
	defer func() {
		_ = listener.Close()
		_ = os.Remove(socketPath)
	}()

	serveCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	metricsErr := make(chan error, 1)
	if addr := strings.TrimSpace(cfg.Bridge.MetricsAddr); addr != "" {
		metricsListener, err := net.Listen("tcp", addr)
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: metrics listener: %v\n", err)
			return exitRuntime
		}
		go func() { metricsErr <- metrics.Serve(serveCtx, metricsListener, logger) }()
	} else {
		metricsErr <- nil
	}

	logger.Info("bridge listening", "socket", socketPath, "metrics", cfg.Bridge.MetricsAddr)
	fmt.Fprintf(r.Stdout, "serving on %s\n", socketPath)

	serveErr := ipc.Serve(serveCtx, listener, doer, logger)
	cancel()
	if err := <-metricsErr; err != nil {
		logger.Error("metrics server failed", "error", err.Error())
	}
	if serveErr != nil {
		fmt.Fprintf(r.Stderr, "error: bridge failed: %v\n", serveErr)
		return exitRuntime
	}

	logger.Info("bridge stopped", "socket", socketPath)
	return exitOK
}

// fail reports err and maps it onto an exit code. Peer failures print the
// full Audacity response.
func (r Runner) fail(logger *slog.Logger, command string, err error) int {
	kind, _ := pipe.KindOf(err)
	logger.Error("command failed", "command", command, "kind", string(kind), "error", err.Error())

	fmt.Fprintf(r.Stderr, "error: %v\n", err)
	if kind == pipe.KindPeerExecutionFailure {
		return exitPeerExecution
	}
	return exitRuntime
}

func bridgeSocket(cfg config.Config) (string, error) {
	if socket := strings.TrimSpace(cfg.Bridge.Socket); socket != "" {
		return socket, nil
	}
	return ipc.RuntimeSocketPath()
}
