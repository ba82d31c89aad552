package onebot

import (
	"errors"
	"fmt"
)

// ErrClientClosed is returned by Invoke after Stop, and delivered to any
// invocation still waiting for a response when Stop runs.
var ErrClientClosed = errors.New("onebot client stopped")

// ErrActionTimeout is returned when the peer does not answer an action
// within the action timeout window.
var ErrActionTimeout = errors.New("action timed out")

// TransportError wraps a socket or HTTP failure that prevented an exchange.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	if e.Err == nil {
		return e.Op
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// DecodeError marks an incoming frame that did not parse as protocol JSON.
// These are logged and dropped, never surfaced to callers.
type DecodeError struct {
	What string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.What, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// DeliveryError is a well-formed peer response that reports failure.
type DeliveryError struct {
	Action string
	Reason string
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("%s rejected: %s", e.Action, e.Reason)
}
