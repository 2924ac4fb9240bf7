package errors

import (
	"github.com/cockroachdb/errors"
)

type exitCoder struct {
	cause error
	code  int
}

func (e *exitCoder) Error() string {
	return e.cause.Error()
}

func (e *exitCoder) Cause() error {
	return e.cause
}

func (e *exitCoder) Unwrap() error {
	return e.cause
}

func (e *exitCoder) ExitCode() int {
	return e.code
}

// WithExitCode makes the process exit with code when err reaches Run
func WithExitCode(err error, code int) error {
	if err == nil {
		return nil
	}
	return &exitCoder{cause: err, code: code}
}

// GetExitCode picks the process exit code for err. An attached code wins,
// then the sentinel marks; anything else is an unexpected failure.
func GetExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var ec *exitCoder
	if errors.As(err, &ec) {
		return ec.ExitCode()
	}

	switch {
	case errors.Is(err, ErrTestsFailed), errors.Is(err, ErrCoverageBelowThreshold):
		return ExitFailed
	case errors.Is(err, ErrInputNotFound):
		return ExitInputNotFound
	case errors.Is(err, ErrMalformedInput):
		return ExitMalformedInput
	case errors.Is(err, ErrInvalidConfig), errors.Is(err, ErrUnknownReport):
		return ExitInvalidConfig
	}
	return ExitUnexpectedFailure
}
