package gphoto2

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSessionClosed resolves commands enqueued on, or still pending in, a closed session.
var ErrSessionClosed = errors.New("gphoto2: session closed")

// ProcessError reports a failure to start, talk to, or cleanly finish the
// gphoto2 process.
type ProcessError struct {
	Op     string   // "start", "write", "read", "exit", "timeout", ...
	Args   []string // argument vector (one-shot) or command line (interactive)
	Output string   // whatever was captured before the failure
	Err    error
}

func (e *ProcessError) Error() string {
	msg := fmt.Sprintf("gphoto2 %s failed", e.Op)
	if len(e.Args) > 0 {
		msg += fmt.Sprintf(" [%s]", strings.Join(e.Args, " "))
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProcessError) Unwrap() error { return e.Err }

// DeviceError is an error announced in-band by gphoto2 on its output.
// Details holds every announced message, one per line.
type DeviceError struct {
	Details string
}

func (e *DeviceError) Error() string {
	return "camera reported an error: " + strings.ReplaceAll(e.Details, "\n", "; ")
}

// ValidationError rejects a value before anything is sent to the camera.
type ValidationError struct {
	Property string
	Value    string
	Type     string
	Reason   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid value %q for %s property %s: %s", e.Value, e.Type, e.Property, e.Reason)
}

// ParseError reports a response that did not have the mandatory shape.
type ParseError struct {
	What   string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("parse %s: %s", e.What, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() error { return e.Err }
