package report

import (
	"fmt"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"

	"github.com/user/policycov/internal/coverage"
	"github.com/user/policycov/internal/runner"
)

// summaryBuilder renders the combined report: one case per policy in a
// "Policy Tests" suite and one case per coverage area in a "Coverage Summary"
// suite.
type summaryBuilder struct {
	opts Options
}

func (b *summaryBuilder) Kind() Kind { return KindSummary }

func (b *summaryBuilder) Build(m *Model) (*Document, error) {
	if !m.HasCoverage() {
		return nil, errors.Wrap(errNoCoverage, "summary report")
	}

	ts := b.opts.timestamp()
	root := &TestSuites{Name: "Policy Test and Coverage Report", Timestamp: ts}
	doc := &Document{Kind: KindSummary, Root: root}

	root.add(b.testSuite(m, ts))
	root.add(b.coverageSuite(m, ts, &doc.Verdict))
	root.Time = seconds(m.Totals.Seconds())

	if m.Totals.Failed() {
		doc.Verdict.failTests(m.Totals)
	}
	return doc, nil
}

func (b *summaryBuilder) testSuite(m *Model, ts string) TestSuite {
	suite := TestSuite{
		Name:      "Policy Tests",
		Package:   "tests",
		Tests:     len(m.TestGroups),
		Time:      seconds(m.Totals.Seconds()),
		Timestamp: ts,
		Properties: properties(
			Property{Name: "total_policies", Value: strconv.Itoa(len(m.TestGroups))},
			Property{Name: "total_tests", Value: strconv.Itoa(m.Totals.Tests)},
			Property{Name: "passed_tests", Value: strconv.Itoa(m.Totals.Passed)},
		),
	}

	for _, g := range m.TestGroups {
		tc := policyCase(g)
		if tc.Failure != nil {
			suite.Failures++
		}
		suite.Cases = append(suite.Cases, tc)
	}
	return suite
}

func policyCase(g *runner.Group) TestCase {
	tc := TestCase{
		Name: fmt.Sprintf("%s (%d tests, %d failures, %d errors, %d skipped)",
			g.Name, g.Tests, g.Failures, g.Errors, g.Skipped),
		Classname: g.Name,
		Time:      seconds(g.Seconds()),
	}

	var details, failing []string
	for _, r := range g.Results {
		details = append(details, fmt.Sprintf("%s %s (%ss)", r.Outcome(), r.Name, seconds(r.Seconds())))
		if r.Errored() {
			details = append(details, "   Error: "+orDefault(r.Error.Message, "unknown error"))
		}
		if r.Failed() || r.Errored() {
			failing = append(failing, lo.Ternary(location(r) == "", r.Name, r.Name+" at "+location(r)))
		}
	}
	tc.SystemOut = output(details)

	if g.Failed() {
		tc.Failure = &Annotation{
			Message: fmt.Sprintf("Policy has %d failures and %d errors", g.Failures, g.Errors),
			Type:    "PolicyFailure",
			Body:    cdata(joinLines(failing)),
		}
	}
	return tc
}

func (b *summaryBuilder) coverageSuite(m *Model, ts string, v *Verdict) TestSuite {
	suite := TestSuite{
		Name:       "Coverage Summary",
		Package:    "coverage",
		Time:       seconds(0),
		Timestamp:  ts,
		Properties: coverageProperties(m.Overall, b.opts.Threshold),
	}

	for _, g := range m.Areas {
		tc := areaCase(g)
		if tc.Failure != nil {
			suite.Failures++
		}
		suite.Cases = append(suite.Cases, tc)
	}

	overall := overallCase(m.Overall, b.opts.Threshold, v)
	if overall.Failure != nil {
		suite.Failures++
	}
	suite.Cases = append(suite.Cases, overall)
	suite.Tests = len(suite.Cases)
	return suite
}

// areaCase fails when any file of the area is below 100%, whatever the
// area's average.
func areaCase(g *coverage.Group) TestCase {
	tc := TestCase{
		Name:      fmt.Sprintf("%s (%s average, %s)", g.Name, percent(g.AveragePercentage()), lineFraction(g.CoveredLines, g.TotalLines())),
		Classname: "coverage." + g.Name,
		Time:      seconds(0),
	}

	var details []string
	for _, f := range g.Files {
		details = append(details, fileDetails(f, !f.Complete())...)
	}
	tc.SystemOut = output(details)

	if incomplete := g.Incomplete(); len(incomplete) > 0 {
		paths := lo.Map(incomplete, func(f coverage.File, _ int) string {
			return fmt.Sprintf("%s: %s", f.Path, percent(f.Percentage()))
		})
		tc.Failure = &Annotation{
			Message: fmt.Sprintf("%d of %d files in %s have coverage below 100%%", len(incomplete), len(g.Files), g.Name),
			Type:    "IncompleteCoverage",
			Body:    cdata(joinLines(paths)),
		}
	}
	return tc
}

func overallCase(s coverage.Summary, threshold *float64, v *Verdict) TestCase {
	tc := TestCase{
		Name:      fmt.Sprintf("Overall coverage (%s, threshold %s)", percent(s.Percentage), thresholdLabel(threshold)),
		Classname: "coverage",
		Time:      seconds(0),
	}
	if !v.gate(s.Percentage, threshold) {
		tc.Failure = &Annotation{
			Message: fmt.Sprintf("Overall coverage %s is below %s threshold", percent(s.Percentage), percent(*threshold)),
			Type:    "CoverageThreshold",
		}
	}
	return tc
}

func coverageProperties(s coverage.Summary, threshold *float64) *Properties {
	return properties(
		Property{Name: "coverage_threshold", Value: thresholdLabel(threshold)},
		Property{Name: "overall_coverage", Value: percent(s.Percentage)},
		Property{Name: "total_lines", Value: strconv.Itoa(s.TotalLines())},
		Property{Name: "covered_lines", Value: strconv.Itoa(s.CoveredLines)},
		Property{Name: "uncovered_lines", Value: strconv.Itoa(s.NotCoveredLines)},
	)
}
