// Package errors defines the sentinel errors, hints and exit codes the CLI
// reports. Callers import it as errUtils.
package errors

import (
	"github.com/cockroachdb/errors"
)

// Exit codes returned by the policycov binary.
const (
	ExitOK                = 0
	ExitFailed            = 1
	ExitInputNotFound     = 2
	ExitMalformedInput    = 3
	ExitInvalidConfig     = 4
	ExitUnexpectedFailure = 5
)

var (
	ErrInputNotFound          = errors.New("input file not found")
	ErrMalformedInput         = errors.New("malformed input")
	ErrInvalidConfig          = errors.New("invalid configuration")
	ErrTestsFailed            = errors.New("policy tests failed")
	ErrCoverageBelowThreshold = errors.New("coverage below threshold")
	ErrUnknownReport          = errors.New("unknown report kind")
)

// InputNotFound reports a missing input file.
func InputNotFound(path string, cause error) error {
	return Build(errors.Wrapf(cause, "cannot read %s", path)).
		WithSentinel(ErrInputNotFound).
		WithHintf("check that %s exists and was produced by the policy test run", path).
		WithExitCode(ExitInputNotFound).
		Err()
}

// MalformedInput reports structurally invalid input data.
func MalformedInput(path string, cause error) error {
	return Build(errors.Wrapf(cause, "cannot parse %s", path)).
		WithSentinel(ErrMalformedInput).
		WithHint("input must be the JSON output of the policy test runner").
		WithExitCode(ExitMalformedInput).
		Err()
}

// InvalidConfig reports a configuration value outside its allowed range.
func InvalidConfig(format string, args ...interface{}) error {
	return Build(errors.Newf(format, args...)).
		WithSentinel(ErrInvalidConfig).
		WithExitCode(ExitInvalidConfig).
		Err()
}
