package domain

import (
	"errors"
	"fmt"
)

var (
	ErrCorrelationNotFound = errors.New("correlation not found")
	ErrPositionNotFound    = errors.New("position not found")
	ErrZeroStopDistance    = errors.New("stop loss distance is zero pips")
	ErrNotConnected        = errors.New("broker session not connected")
	ErrZeroPositionSize    = errors.New("position size rounds to zero lots")
)

type ParseErrorKind string

const (
	UnrecognizedShape ParseErrorKind = "UNRECOGNIZED_SHAPE"
	MalformedField    ParseErrorKind = "MALFORMED_FIELD"
)

// ParseError aborts the current command before any side effect.
type ParseError struct {
	Kind  ParseErrorKind
	Field string
	Raw   string
	Err   error
}

func (e *ParseError) Error() string {
	switch {
	case e.Kind == UnrecognizedShape:
		return "unrecognized signal shape"
	case e.Err != nil:
		return fmt.Sprintf("malformed %s: %v", e.Field, e.Err)
	default:
		return fmt.Sprintf("malformed %s", e.Field)
	}
}

func (e *ParseError) Unwrap() error { return e.Err }

// ConnectionError is a failure to bring up the broker session.
type ConnectionError struct {
	Stage string // get-account, deploy, wait-connected, wait-synchronized
	Err   error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("broker connection failed at %s: %v", e.Stage, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ExecutionError is a single broker call rejected or failed.
type ExecutionError struct {
	Action string
	Target string
	Err    error
}

func (e *ExecutionError) Error() string {
	if e.Target == "" {
		return fmt.Sprintf("%s failed: %v", e.Action, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %v", e.Action, e.Target, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// LookupError reports a selector that resolved to no position.
type LookupError struct {
	Selector TargetSelector
	Reason   string
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("no target for %s: %s", e.Selector, e.Reason)
}
