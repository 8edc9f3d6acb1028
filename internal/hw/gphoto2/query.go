package gphoto2

import (
	"context"
	"errors"
)

// Executor is the part of a Session the property model needs.
type Executor interface {
	Execute(ctx context.Context, args string) (string, error)
	ExecuteInteractive(ctx context.Context, line string) (string, error)
}

// Query runs payload through e in the given mode and parses the response.
// A parser error that is not already a *ParseError is wrapped in one named what.
func Query[T any](ctx context.Context, e Executor, mode Mode, payload, what string, parse func(string) (T, error)) (T, error) {
	var zero T

	var (
		output string
		err    error
	)
	if mode == ModeInteractive {
		output, err = e.ExecuteInteractive(ctx, payload)
	} else {
		output, err = e.Execute(ctx, payload)
	}
	if err != nil {
		return zero, err
	}

	v, err := parse(output)
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			return zero, err
		}
		return zero, &ParseError{What: what, Reason: "unexpected response", Err: err}
	}
	return v, nil
}

var _ Executor = (*Session)(nil)
