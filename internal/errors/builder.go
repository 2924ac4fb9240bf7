package errors

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// ErrorBuilder attaches hints, sentinels and an exit code to an error.
type ErrorBuilder struct {
	err       error
	hints     []string
	exitCode  *int
	sentinels []error
}

// Build starts a builder around err.
func Build(err error) *ErrorBuilder {
	return &ErrorBuilder{err: err}
}

// WithHint adds a user-facing hint.
func (b *ErrorBuilder) WithHint(hint string) *ErrorBuilder {
	b.hints = append(b.hints, hint)
	return b
}

// WithHintf adds a formatted user-facing hint.
func (b *ErrorBuilder) WithHintf(format string, args ...interface{}) *ErrorBuilder {
	b.hints = append(b.hints, fmt.Sprintf(format, args...))
	return b
}

// WithSentinel marks the error so errors.Is matches sentinel.
func (b *ErrorBuilder) WithSentinel(sentinel error) *ErrorBuilder {
	b.sentinels = append(b.sentinels, sentinel)
	return b
}

// WithExitCode attaches the process exit code.
func (b *ErrorBuilder) WithExitCode(code int) *ErrorBuilder {
	b.exitCode = &code
	return b
}

// Err finalizes the error. Sentinels are marked last so they sit on top of
// the chain.
func (b *ErrorBuilder) Err() error {
	if b.err == nil {
		return nil
	}

	err := b.err
	for _, hint := range b.hints {
		err = errors.WithHint(err, hint)
	}
	for _, sentinel := range b.sentinels {
		err = errors.Mark(err, sentinel)
	}
	if b.exitCode != nil {
		err = WithExitCode(err, *b.exitCode)
	}
	return err
}

// Hints returns every hint attached anywhere in the chain.
func Hints(err error) []string {
	return errors.GetAllHints(err)
}
