package pipe

import (
	"errors"
	"fmt"
)

// Kind classifies exchange failures.
type Kind string

const (
	// KindEnvironmentUnavailable means an endpoint is missing: Audacity is not
	// running or mod-script-pipe is disabled.
	KindEnvironmentUnavailable Kind = "environment_unavailable"
	// KindPeerExecutionFailure means Audacity ran the command and reported failure.
	KindPeerExecutionFailure Kind = "peer_execution_failure"
	// KindTransport covers open, write, and read failures and aborted exchanges.
	KindTransport Kind = "transport"
)

var (
	ErrEnvironmentUnavailable = errors.New("audacity scripting pipe unavailable")
	ErrPeerExecutionFailure   = errors.New("audacity command failed")
	ErrTransport              = errors.New("audacity pipe transport failed")
)

// Error is returned by every failed exchange.
type Error struct {
	Kind     Kind
	Op       string
	Endpoint string
	// Response is the full peer response for KindPeerExecutionFailure, and any
	// partial response buffered before a transport failure.
	Response string
	Err      error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindEnvironmentUnavailable:
		return fmt.Sprintf("%s does not exist; ensure Audacity is running and mod-script-pipe is set to Enabled in the Preferences window", e.Endpoint)
	case KindPeerExecutionFailure:
		return e.Response
	default:
		if e.Err == nil {
			return fmt.Sprintf("%s %s failed", e.Op, e.Endpoint)
		}
		return fmt.Sprintf("%s %s: %v", e.Op, e.Endpoint, e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the package sentinel for e.Kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrEnvironmentUnavailable:
		return e.Kind == KindEnvironmentUnavailable
	case ErrPeerExecutionFailure:
		return e.Kind == KindPeerExecutionFailure
	case ErrTransport:
		return e.Kind == KindTransport
	default:
		return false
	}
}

// KindOf extracts the failure kind from err.
func KindOf(err error) (Kind, bool) {
	var pipeErr *Error
	if errors.As(err, &pipeErr) {
		return pipeErr.Kind, true
	}
	return "", false
}
