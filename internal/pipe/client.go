package pipe

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rbright/audpipe/internal/fsm"
)

const (
	// DefaultFailureMarker is printed by Audacity's batch runner when a macro fails.
	DefaultFailureMarker = "BatchCommand finished: Failed!"
	DefaultSettleDelay   = 100 * time.Microsecond
	DefaultTimeout       = 30 * time.Second
	DefaultProbeBackoff  = 5 * time.Millisecond
)

// Options configures a Client. Zero values fall back to package defaults
// except SettleDelay and Timeout, where zero disables the delay and timeout.
type Options struct {
	Platform Platform
	// Getuid supplies the POSIX session id embedded in endpoint paths.
	Getuid func() int
	// ToPeer and FromPeer override the derived endpoint paths when non-empty.
	ToPeer   string
	FromPeer string

	SettleDelay   time.Duration
	ProbeAttempts int
	ProbeBackoff  time.Duration
	Timeout       time.Duration
	FailureMarker string

	Logger *slog.Logger
	FS     FS
}

// DefaultOptions returns the options used by the package-level Do.
func DefaultOptions() Options {
	return Options{
		Platform:      PlatformAuto,
		Getuid:        os.Getuid,
		SettleDelay:   DefaultSettleDelay,
		ProbeAttempts: 1,
		ProbeBackoff:  DefaultProbeBackoff,
		Timeout:       DefaultTimeout,
		FailureMarker: DefaultFailureMarker,
	}
}

// Client performs one blocking exchange per Do call. It holds no connection
// state and does not serialize concurrent callers.
type Client struct {
	opts Options
}

// New returns a Client with missing options defaulted.
func New(opts Options) *Client {
	if opts.Platform == "" {
		opts.Platform = PlatformAuto
	}
	if opts.Getuid == nil {
		opts.Getuid = os.Getuid
	}
	if opts.ProbeAttempts < 1 {
		opts.ProbeAttempts = 1
	}
	if opts.ProbeBackoff <= 0 {
		opts.ProbeBackoff = DefaultProbeBackoff
	}
	if opts.FailureMarker == "" {
		opts.FailureMarker = DefaultFailureMarker
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.FS == nil {
		opts.FS = OSFS{}
	}
	return &Client{opts: opts}
}

var defaultClient = sync.OnceValue(func() *Client {
	return New(DefaultOptions())
})

// Do sends command with the default client.
func Do(ctx context.Context, command string) (string, error) {
	return defaultClient().Do(ctx, command)
}

// Endpoints resolves the endpoint pair for the next exchange.
func (c *Client) Endpoints() Endpoints {
	endpoints := ResolveEndpoints(c.opts.Platform, c.opts.Getuid())
	if c.opts.ToPeer != "" {
		endpoints.ToPeer = c.opts.ToPeer
	}
	if c.opts.FromPeer != "" {
		endpoints.FromPeer = c.opts.FromPeer
	}
	return endpoints
}

// Do writes command plus the platform terminator to Audacity and returns the
// raw response text. Failures are always *Error.
func (c *Client) Do(ctx context.Context, command string) (string, error) {
	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	return c.newExchange(command).run(ctx)
}

func (c *Client) newExchange(command string) *exchange {
	return &exchange{
		client:    c,
		command:   command,
		endpoints: c.Endpoints(),
		started:   time.Now(),
		state:     fsm.StateIdle,
		logger:    c.opts.Logger,
	}
}

type exchange struct {
	client    *Client
	command   string
	endpoints Endpoints
	started   time.Time
	logger    *slog.Logger
	handles   handles

	mu    sync.Mutex
	state fsm.State
}

type transferResult struct {
	response string
	err      error
}

func (ex *exchange) run(ctx context.Context) (string, error) {
	ex.advance(fsm.EventStart)

	if err := ex.checkEndpoint(ctx, ex.endpoints.ToPeer); err != nil {
		return ex.fail(err)
	}
	ex.settle(ctx)
	ex.advance(fsm.EventOutboundOK)

	if err := ex.checkEndpoint(ctx, ex.endpoints.FromPeer); err != nil {
		return ex.fail(err)
	}
	ex.settle(ctx)
	ex.advance(fsm.EventInboundOK)

	done := make(chan transferResult, 1)
	go func() {
		response, err := ex.transfer(ctx)
		done <- transferResult{response: response, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return ex.fail(res.err)
		}
		return ex.finish(res.response)
	case <-ctx.Done():
		ex.handles.abort()
		return ex.fail(&Error{
			Kind:     KindTransport,
			Op:       "await",
			Endpoint: ex.endpoints.FromPeer,
			Err:      fmt.Errorf("exchange aborted: %w", ctx.Err()),
		})
	}
}

// checkEndpoint stats name up to ProbeAttempts times with linear backoff.
func (ex *exchange) checkEndpoint(ctx context.Context, name string) error {
	opts := ex.client.opts

	var statErr error
	for attempt := 1; ; attempt++ {
		if _, statErr = opts.FS.Stat(name); statErr == nil {
			return nil
		}
		if attempt >= opts.ProbeAttempts {
			break
		}
		if err := sleep(ctx, time.Duration(attempt)*opts.ProbeBackoff); err != nil {
			return &Error{
				Kind:     KindTransport,
				Op:       "stat",
				Endpoint: name,
				Err:      fmt.Errorf("exchange aborted: %w", err),
			}
		}
	}

	return &Error{
		Kind:     KindEnvironmentUnavailable,
		Op:       "stat",
		Endpoint: name,
		Err:      statErr,
	}
}

// transfer opens both endpoints, writes the command, and reads the response.
// Both handles are released before it returns.
func (ex *exchange) transfer(ctx context.Context) (string, error) {
	fsys := ex.client.opts.FS
	to, from := ex.endpoints.ToPeer, ex.endpoints.FromPeer

	defer ex.release(ctx)

	writer, err := fsys.OpenWriter(to)
	if err != nil {
		return "", &Error{Kind: KindTransport, Op: "open", Endpoint: to, Err: err}
	}
	if !ex.handles.setWriter(writer) {
		return "", abortedError(ctx, from)
	}

	reader, err := fsys.OpenReader(from)
	if err != nil {
		return "", &Error{Kind: KindTransport, Op: "open", Endpoint: from, Err: err}
	}
	if !ex.handles.setReader(reader) {
		return "", abortedError(ctx, from)
	}
	ex.advance(fsm.EventOpened)

	ex.advance(fsm.EventWrite)
	ex.logger.Debug("pipe write", "endpoint", to, "command", ex.command)
	if _, err := io.WriteString(writer, ex.command+ex.endpoints.Terminator); err != nil {
		return "", &Error{Kind: KindTransport, Op: "write", Endpoint: to, Err: err}
	}
	if f, ok := writer.(interface{ Flush() error }); ok {
		if err := f.Flush(); err != nil {
			return "", &Error{Kind: KindTransport, Op: "flush", Endpoint: to, Err: err}
		}
	}
	ex.advance(fsm.EventWritten)

	response, err := readResponse(bufio.NewReader(reader))
	if err != nil {
		return "", &Error{Kind: KindTransport, Op: "read", Endpoint: from, Response: response, Err: err}
	}
	ex.advance(fsm.EventTerminated)
	return response, nil
}

// release closes the outbound handle, waits the settle delay, then closes the inbound handle.
func (ex *exchange) release(ctx context.Context) {
	if err := ex.handles.closeWriter(); err != nil {
		ex.logger.Debug("close outbound pipe", "endpoint", ex.endpoints.ToPeer, "error", err.Error())
	}
	ex.settle(ctx)
	if err := ex.handles.closeReader(); err != nil {
		ex.logger.Debug("close inbound pipe", "endpoint", ex.endpoints.FromPeer, "error", err.Error())
	}
}

func (ex *exchange) finish(response string) (string, error) {
	if strings.Contains(response, ex.client.opts.FailureMarker) {
		return ex.fail(&Error{
			Kind:     KindPeerExecutionFailure,
			Endpoint: ex.endpoints.FromPeer,
			Response: response,
		})
	}

	ex.advance(fsm.EventClosed)
	ex.logger.Debug("pipe exchange complete",
		"command", ex.command,
		"response_bytes", len(response),
		"duration_ms", time.Since(ex.started).Milliseconds(),
	)
	return response, nil
}

func (ex *exchange) fail(err error) (string, error) {
	ex.advance(fsm.EventFail)
	kind, _ := KindOf(err)
	ex.logger.Warn("pipe exchange failed",
		"command", ex.command,
		"kind", string(kind),
		"duration_ms", time.Since(ex.started).Milliseconds(),
		"error", err.Error(),
	)
	return "", err
}

// advance applies event; events arriving after a terminal state are dropped.
func (ex *exchange) advance(event fsm.Event) {
	ex.mu.Lock()
	defer ex.mu.Unlock()

	if fsm.Terminal(ex.state) {
		return
	}
	next, err := fsm.Transition(ex.state, event)
	if err != nil {
		ex.logger.Warn("pipe state transition rejected", "state", string(ex.state), "event", string(event), "error", err.Error())
		return
	}
	ex.logger.Debug("pipe state", "from", string(ex.state), "to", string(next), "event", string(event))
	ex.state = next
}

func (ex *exchange) currentState() fsm.State {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	return ex.state
}

func (ex *exchange) settle(ctx context.Context) {
	_ = sleep(ctx, ex.client.opts.SettleDelay)
}

func abortedError(ctx context.Context, endpoint string) error {
	return &Error{
		Kind:     KindTransport,
		Op:       "open",
		Endpoint: endpoint,
		Err:      fmt.Errorf("exchange aborted: %w", context.Cause(ctx)),
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// handles tracks the open endpoints so an aborted exchange can release them
// from another goroutine. Each handle is closed at most once.
type handles struct {
	mu      sync.Mutex
	aborted bool
	writer  io.WriteCloser
	reader  io.ReadCloser
}

func (h *handles) setWriter(w io.WriteCloser) bool {
	h.mu.Lock()
	if h.aborted {
		h.mu.Unlock()
		_ = w.Close()
		return false
	}
	h.writer = w
	h.mu.Unlock()
	return true
}

func (h *handles) setReader(r io.ReadCloser) bool {
	h.mu.Lock()
	if h.aborted {
		h.mu.Unlock()
		_ = r.Close()
		return false
	}
	h.reader = r
	h.mu.Unlock()
	return true
}

func (h *handles) closeWriter() error {
	h.mu.Lock()
	w := h.writer
	h.writer = nil
	h.mu.Unlock()
	if w == nil {
		return nil
	}
	return w.Close()
}

func (h *handles) closeReader() error {
	h.mu.Lock()
	r := h.reader
	h.reader = nil
	h.mu.Unlock()
	if r == nil {
		return nil
	}
	return r.Close()
}

func (h *handles) abort() {
	h.mu.Lock()
	h.aborted = true
	h.mu.Unlock()
	_ = h.closeWriter()
	_ = h.closeReader()
}
