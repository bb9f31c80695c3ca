// Package fsm models the lifecycle of one pipe exchange.
package fsm

import "fmt"

type State string

type Event string

const (
	StateIdle             State = "idle"
	StateCheckingOutbound State = "checking_outbound"
	StateCheckingInbound  State = "checking_inbound"
	StateOpening          State = "opening"
	StateOpened           State = "opened"
	StateWriting          State = "writing"
	StateReading          State = "reading"
	StateClosing          State = "closing"
	StateSucceeded        State = "succeeded"
	StateFailed           State = "failed"
)

const (
	EventStart      Event = "start"
	EventOutboundOK Event = "outbound_ok"
	EventInboundOK  Event = "inbound_ok"
	EventOpened     Event = "opened"
	EventWrite      Event = "write"
	EventWritten    Event = "written"
	EventTerminated Event = "terminated"
	EventClosed     Event = "closed"
	EventFail       Event = "fail"
)

// Terminal reports whether no further events are accepted from state.
func Terminal(state State) bool {
	return state == StateSucceeded || state == StateFailed
}

func Transition(current State, event Event) (State, error) {
	if event == EventFail {
		if Terminal(current) {
			return current, invalidTransition(current, event)
		}
		if _, ok := forward[current]; !ok {
			return current, fmt.Errorf("unknown state %q", current)
		}
		return StateFailed, nil
	}

	step, ok := forward[current]
	if !ok {
		if Terminal(current) {
			return current, invalidTransition(current, event)
		}
		return current, fmt.Errorf("unknown state %q", current)
	}
	if step.event != event {
		return current, invalidTransition(current, event)
	}
	return step.next, nil
}

type edge struct {
	event Event
	next  State
}

// forward is the single success path; every non-terminal state has exactly one.
var forward = map[State]edge{
	StateIdle:             {EventStart, StateCheckingOutbound},
	StateCheckingOutbound: {EventOutboundOK, StateCheckingInbound},
	StateCheckingInbound:  {EventInboundOK, StateOpening},
	StateOpening:          {EventOpened, StateOpened},
	StateOpened:           {EventWrite, StateWriting},
	StateWriting:          {EventWritten, StateReading},
	StateReading:          {EventTerminated, StateClosing},
	StateClosing:          {EventClosed, StateSucceeded},
}

func invalidTransition(state State, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", state, event)
}
