package report

import (
	"fmt"

	"github.com/user/policycov/internal/runner"
)

// testsBuilder renders one suite per policy and one case per test
type testsBuilder struct {
	opts Options
}

func (b *testsBuilder) Kind() Kind { return KindTests }

func (b *testsBuilder) Build(m *Model) (*Document, error) {
	ts := b.opts.timestamp()
	root := &TestSuites{Name: "Policy Test Report", Timestamp: ts}

	for _, g := range m.TestGroups {
		suite := TestSuite{
			Name:       g.Name,
			Package:    g.Name,
			Tests:      g.Tests,
			Failures:   g.Failures,
			Errors:     g.Errors,
			Skipped:    g.Skipped,
			Time:       seconds(g.Seconds()),
			Timestamp:  ts,
			Properties: properties(Property{Name: "policy", Value: g.Name}),
		}
		for _, r := range g.Results {
			suite.Cases = append(suite.Cases, testCase(g.Name, r))
		}
		root.add(suite)
	}
	root.Time = seconds(runner.SumGroups(m.TestGroups).Seconds())

	doc := &Document{Kind: KindTests, Root: root}
	if m.Totals.Failed() {
		doc.Verdict.failTests(m.Totals)
	}
	if m.HasCoverage() {
		doc.Verdict.gate(m.Overall.Percentage, b.opts.Threshold)
	}
	return doc, nil
}

func testCase(policyName string, r runner.Result) TestCase {
	tc := TestCase{
		Name:      r.Name,
		Classname: policyName,
		Time:      seconds(r.Seconds()),
		File:      r.File(),
		Line:      r.Row(),
	}

	if r.Failed() {
		tc.Failure = &Annotation{
			Message: fmt.Sprintf("Test %s failed", r.Name),
			Type:    "AssertionError",
			Body:    cdata(location(r)),
		}
	}
	if r.Errored() {
		tc.Error = &Annotation{
			Message: orDefault(r.Error.Message, "Test error"),
			Type:    orDefault(r.Error.Code, "Error"),
			Body:    cdata(location(r)),
		}
	}
	if r.Skipped() {
		tc.Skipped = &Annotation{Message: r.Skip.Message}
	}
	return tc
}

// location renders file:row, or nothing when the runner omitted it
func location(r runner.Result) string {
	if r.File() == "" {
		return ""
	}
	if r.Row() == 0 {
		return r.File()
	}
	return fmt.Sprintf("%s:%d", r.File(), r.Row())
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
