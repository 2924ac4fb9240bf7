package report

import (
	"fmt"
	"path"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/user/policycov/internal/coverage"
	"github.com/user/policycov/internal/metrics"
)

// coverageBuilder renders one case for overall coverage. Per-area and
// per-file detail only goes to the case output.
type coverageBuilder struct {
	opts Options
}

func (b *coverageBuilder) Kind() Kind { return KindCoverage }

func (b *coverageBuilder) Build(m *Model) (*Document, error) {
	if !m.HasCoverage() {
		return nil, errors.Wrap(errNoCoverage, "coverage report")
	}

	ts := b.opts.timestamp()
	threshold := b.opts.Threshold
	doc := &Document{Kind: KindCoverage}

	tc := TestCase{
		Name:      fmt.Sprintf("Overall coverage: %s", percent(m.Overall.Percentage)),
		Classname: "coverage",
		Time:      seconds(0),
	}
	failures := 0
	passed := doc.Verdict.gate(m.Overall.Percentage, threshold)
	if !passed {
		failures = 1
		tc.Failure = &Annotation{
			Message: fmt.Sprintf("Overall coverage %s is below %s threshold", percent(m.Overall.Percentage), percent(*threshold)),
			Type:    "CoverageThreshold",
		}
	}
	tc.SystemOut = output(b.details(m, passed))

	suite := TestSuite{
		Name:       "Coverage",
		Package:    "coverage",
		Tests:      1,
		Failures:   failures,
		Time:       seconds(0),
		Timestamp:  ts,
		Properties: coverageProperties(m.Overall, threshold),
		Cases:      []TestCase{tc},
	}

	root := &TestSuites{Name: "Policy Coverage Report", Time: seconds(0), Timestamp: ts}
	root.add(suite)
	doc.Root = root
	return doc, nil
}

func (b *coverageBuilder) details(m *Model, passed bool) []string {
	s := m.Overall
	lines := []string{
		fmt.Sprintf("Overall coverage: %s (%s)", percent(s.Percentage), lineFraction(s.CoveredLines, s.TotalLines())),
		"Threshold: " + thresholdLabel(b.opts.Threshold),
		"Result: " + verdictLabel(passed),
		strings.Repeat("=", 72),
	}

	// Regions are listed for files below the threshold, or for every
	// incomplete file when no threshold is set.
	limit := 100.0
	if b.opts.Threshold != nil {
		limit = *b.opts.Threshold
	}

	for _, g := range m.Areas {
		lines = append(lines, "", fmt.Sprintf("%s: %s average (%s)",
			g.Name, percent(g.AveragePercentage()), lineFraction(g.CoveredLines, g.TotalLines())))
		for _, f := range g.Files {
			below := !metrics.MeetsThreshold(f.Percentage(), limit)
			for _, l := range fileDetails(f, below) {
				lines = append(lines, "  "+l)
			}
		}
	}
	return lines
}

// fileDetails describes one file, optionally followed by its uncovered regions
func fileDetails(f coverage.File, listRegions bool) []string {
	status := verdictLabel(f.Complete())
	name := path.Base(f.Path)

	var lines []string
	if f.HasLines {
		lines = append(lines, fmt.Sprintf("%s %s: %s (%s)", status, name, percent(f.Percentage()), lineFraction(f.CoveredLines, f.TotalLines())))
	} else {
		lines = append(lines, fmt.Sprintf("%s %s: %s", status, name, percent(f.Percentage())))
	}

	if listRegions && len(f.NotCovered) > 0 {
		lines = append(lines, "   Uncovered regions:")
		for _, r := range f.NotCovered {
			lines = append(lines, "   - "+r.String())
		}
	}
	return lines
}

func lineFraction(covered, total int) string {
	if total == 0 {
		return "line counts unavailable"
	}
	return fmt.Sprintf("%d/%d lines", covered, total)
}

func verdictLabel(ok bool) string {
	if ok {
		return "PASS"
	}
	return "FAIL"
}

func joinLines(lines []string) string {
	return strings.Join(lines, "\n")
}
