// Package report renders aggregated policy test results and coverage into
// JUnit and Cobertura documents.
//
// Every report kind is a Builder over the same Model. The Model is built once
// per run; builders never mutate it.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"

	"github.com/user/policycov/internal/coverage"
	errUtils "github.com/user/policycov/internal/errors"
	"github.com/user/policycov/internal/metrics"
	"github.com/user/policycov/internal/policy"
	"github.com/user/policycov/internal/runner"
)

// Kind names a report variant
type Kind string

const (
	KindTests     Kind = "tests"
	KindSummary   Kind = "summary"
	KindCoverage  Kind = "coverage"
	KindCobertura Kind = "cobertura"
)

// Kinds lists every report kind in display order
func Kinds() []Kind {
	return []Kind{KindTests, KindSummary, KindCoverage, KindCobertura}
}

// Options carries the per-run settings a builder needs
type Options struct {
	Threshold *float64 // nil disables threshold gating
	Root      string   // source root recorded in Cobertura output
	Now       time.Time
}

func (o Options) now() time.Time {
	if o.Now.IsZero() {
		return time.Now()
	}
	return o.Now
}

func (o Options) timestamp() string {
	return o.now().UTC().Format("2006-01-02T15:04:05")
}

func (o Options) root() string {
	if o.Root == "" {
		return "."
	}
	return o.Root
}

// Model is the aggregated view of one run shared by every builder
type Model struct {
	Results     []runner.Result
	TestGroups  []*runner.Group
	Totals      runner.Totals
	Coverage    *coverage.Report
	Areas       []*coverage.Group
	Directories []*coverage.Group
	Overall     coverage.Summary
}

// NewModel aggregates results and coverage. Either input may be nil when the
// report kind does not need it.
func NewModel(results []runner.Result, cov *coverage.Report, namer policy.Namer) *Model {
	m := &Model{
		Results:    results,
		TestGroups: runner.GroupResults(results, namer),
		Totals:     runner.Tally(results),
		Coverage:   cov,
	}
	if cov != nil {
		m.Areas = coverage.GroupAreas(cov, namer)
		m.Directories = coverage.GroupDirectories(cov, namer)
		m.Overall = coverage.Summarize(cov, namer)
	}
	return m
}

// HasCoverage reports whether the model was built with a coverage snapshot
func (m *Model) HasCoverage() bool {
	return m.Coverage != nil
}

// Document is a rendered report tree plus the verdict it carries
type Document struct {
	Kind    Kind
	Root    any
	Doctype string
	Verdict Verdict
}

// Verdict is the pass/fail outcome of a report
type Verdict struct {
	TestsFailed    bool
	BelowThreshold bool
	Reasons        []string
}

// Passed reports whether nothing failed
func (v Verdict) Passed() bool {
	return !v.TestsFailed && !v.BelowThreshold
}

// Err returns nil for a passing verdict, otherwise an error marked with the
// matching sentinels and exit code 1.
func (v Verdict) Err() error {
	if v.Passed() {
		return nil
	}

	b := errUtils.Build(errors.New(strings.Join(v.Reasons, "; ")))
	if v.TestsFailed {
		b = b.WithSentinel(errUtils.ErrTestsFailed)
	}
	if v.BelowThreshold {
		b = b.WithSentinel(errUtils.ErrCoverageBelowThreshold)
	}
	return b.WithExitCode(errUtils.ExitFailed).Err()
}

func (v *Verdict) failTests(totals runner.Totals) {
	v.TestsFailed = true
	v.Reasons = append(v.Reasons,
		fmt.Sprintf("%d of %d tests failed, %d errored", totals.Failures, totals.Tests, totals.Errors))
}

// gate checks overall coverage against the threshold and records a failure
func (v *Verdict) gate(overall float64, threshold *float64) bool {
	if metrics.Gate(overall, threshold) {
		return true
	}
	v.BelowThreshold = true
	v.Reasons = append(v.Reasons,
		fmt.Sprintf("coverage %.2f%% is below the %.2f%% threshold", overall, *threshold))
	return false
}

// Builder renders one report kind from a Model
type Builder interface {
	Kind() Kind
	Build(m *Model) (*Document, error)
}

// New returns the builder for kind
func New(kind Kind, opts Options) (Builder, error) {
	switch kind {
	case KindTests:
		return &testsBuilder{opts: opts}, nil
	case KindSummary:
		return &summaryBuilder{opts: opts}, nil
	case KindCoverage:
		return &coverageBuilder{opts: opts}, nil
	case KindCobertura:
		return &coberturaBuilder{opts: opts}, nil
	}

	names := lo.Map(Kinds(), func(k Kind, _ int) string { return string(k) })
	return nil, errUtils.Build(errors.Newf("unknown report kind %q", kind)).
		WithSentinel(errUtils.ErrUnknownReport).
		WithHintf("supported kinds: %s", strings.Join(names, ", ")).
		WithExitCode(errUtils.ExitInvalidConfig).
		Err()
}

var errNoCoverage = errors.New("coverage report is required")

func seconds(v float64) string {
	return fmt.Sprintf("%.3f", v)
}

func percent(v float64) string {
	return fmt.Sprintf("%.2f%%", v)
}

func thresholdLabel(threshold *float64) string {
	if threshold == nil {
		return "none"
	}
	return percent(*threshold)
}
