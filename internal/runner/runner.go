// Package runner models the result records produced by the policy test
// runner (opa test --format=json) and groups them by policy.
package runner

import (
	"bytes"
	"io/fs"
	"os"

	"github.com/cockroachdb/errors"
	jsoniter "github.com/json-iterator/go"

	errUtils "github.com/user/policycov/internal/errors"
	"github.com/user/policycov/internal/metrics"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Outcome is the single display outcome of a test
type Outcome int

const (
	OutcomePass Outcome = iota
	OutcomeFail
	OutcomeError
	OutcomeSkip
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFail:
		return "FAIL"
	case OutcomeError:
		return "ERROR"
	case OutcomeSkip:
		return "SKIP"
	default:
		return "PASS"
	}
}

// Location points at the test rule in its source file
type Location struct {
	File string `json:"file"`
	Row  int    `json:"row"`
	Col  int    `json:"col,omitempty"`
}

// TestError is the evaluation error attached to a test
type TestError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// UnmarshalJSON accepts either an error object or a bare message string
func (e *TestError) UnmarshalJSON(data []byte) error {
	var message string
	if err := json.Unmarshal(data, &message); err == nil {
		e.Message = message
		return nil
	}

	var obj struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return errors.Wrap(err, "error must be a string or an object")
	}
	e.Code = obj.Code
	e.Message = obj.Message
	return nil
}

// Skip records whether a test was skipped and why
type Skip struct {
	Skipped bool
	Message string
}

// UnmarshalJSON accepts a bool, a reason string or an object with a message
func (s *Skip) UnmarshalJSON(data []byte) error {
	var flag bool
	if err := json.Unmarshal(data, &flag); err == nil {
		s.Skipped = flag
		return nil
	}

	var message string
	if err := json.Unmarshal(data, &message); err == nil {
		s.Skipped = true
		s.Message = message
		return nil
	}

	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return errors.Wrap(err, "skip must be a bool, a string or an object")
	}
	s.Skipped = true
	s.Message = obj.Message
	return nil
}

// Result holds the outcome of a single policy test
type Result struct {
	Location *Location  `json:"location,omitempty"`
	Package  string     `json:"package"`
	Name     string     `json:"name"`
	Fail     bool       `json:"fail,omitempty"`
	Error    *TestError `json:"error,omitempty"`
	Skip     Skip       `json:"skip"`
	Duration int64      `json:"duration"` // nanoseconds
}

// Failed reports whether the test asserted false
func (r Result) Failed() bool { return r.Fail }

// Errored reports whether evaluation of the test raised an error
func (r Result) Errored() bool { return r.Error != nil }

// Skipped reports whether the test was skipped
func (r Result) Skipped() bool { return r.Skip.Skipped }

// Outcome collapses the result flags into one display outcome.
// Errors win over failures, failures over skips.
func (r Result) Outcome() Outcome {
	switch {
	case r.Errored():
		return OutcomeError
	case r.Failed():
		return OutcomeFail
	case r.Skipped():
		return OutcomeSkip
	default:
		return OutcomePass
	}
}

// File returns the test's source file, empty when the runner omitted it
func (r Result) File() string {
	if r.Location == nil {
		return ""
	}
	return r.Location.File
}

// Row returns the test's source line, 0 when the runner omitted it
func (r Result) Row() int {
	if r.Location == nil {
		return 0
	}
	return r.Location.Row
}

// Seconds returns the test duration in seconds
func (r Result) Seconds() float64 {
	return metrics.DurationSeconds(r.Duration)
}

// LoadResults reads the runner's JSON result file
func LoadResults(path string) ([]Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errUtils.InputNotFound(path, err)
		}
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}

	results, err := ParseResults(data)
	if err != nil {
		return nil, errUtils.MalformedInput(path, err)
	}
	return results, nil
}

// ParseResults decodes and validates a JSON array of results
func ParseResults(data []byte) ([]Result, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New("empty document")
	}

	var results []Result
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, errors.Wrap(err, "failed to parse JSON")
	}

	for i, r := range results {
		if r.Package == "" {
			return nil, errors.Newf("result %d: missing package", i)
		}
		if r.Name == "" {
			return nil, errors.Newf("result %d (%s): missing name", i, r.Package)
		}
		if r.Duration < 0 {
			return nil, errors.Newf("result %d (%s.%s): negative duration %d", i, r.Package, r.Name, r.Duration)
		}
	}
	return results, nil
}
