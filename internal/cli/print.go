package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/user/policycov/internal/metrics"
	"github.com/user/policycov/internal/report"
	"github.com/user/policycov/internal/runner"
)

type summaryInput struct {
	kind      report.Kind
	output    string
	model     *report.Model
	verdict   report.Verdict
	threshold *float64
	noColor   bool
}

// printSummary prints the console summary of a run
func printSummary(w io.Writer, in summaryInput) {
	r := lipgloss.NewRenderer(w)
	if in.noColor {
		r.SetColorProfile(termenv.Ascii)
	}
	pass := r.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true)
	fail := r.NewStyle().Foreground(lipgloss.Color("#F44336")).Bold(true)
	heading := r.NewStyle().Bold(true)

	m := in.model
	fmt.Fprintf(w, "%s report created: %s\n", in.kind, in.output)

	if in.kind == report.KindTests || in.kind == report.KindSummary {
		t := m.Totals
		fmt.Fprintf(w, "\n%s\n", heading.Render("Tests"))
		fmt.Fprintf(w, "  Total:    %d\n", t.Tests)
		fmt.Fprintf(w, "  Passed:   %d\n", t.Passed)
		fmt.Fprintf(w, "  Failed:   %d\n", t.Failures)
		fmt.Fprintf(w, "  Errors:   %d\n", t.Errors)
		fmt.Fprintf(w, "  Skipped:  %d\n", t.Skipped)
		fmt.Fprintf(w, "  Policies: %d\n", len(m.TestGroups))
	}

	if m.HasCoverage() {
		s := m.Overall
		fmt.Fprintf(w, "\n%s\n", heading.Render("Coverage"))
		fmt.Fprintf(w, "  Overall:   %.2f%%\n", s.Percentage)
		fmt.Fprintf(w, "  Threshold: %s\n", formatThreshold(in.threshold))
		fmt.Fprintf(w, "  Lines:     %d/%d\n", s.CoveredLines, s.TotalLines())
		fmt.Fprintf(w, "  Files:     %d (%d with full coverage)\n", s.Files, completeFiles(m))
		if in.threshold != nil {
			status := pass.Render("PASS")
			if !metrics.MeetsThreshold(s.Percentage, *in.threshold) {
				status = fail.Render("FAIL")
			}
			fmt.Fprintf(w, "  Status:    %s\n", status)
		}
	}

	fmt.Fprintln(w)
	if in.verdict.Passed() {
		fmt.Fprintf(w, "Result: %s\n", pass.Render("PASS"))
		return
	}
	fmt.Fprintf(w, "Result: %s (%s)\n", fail.Render("FAIL"), strings.Join(in.verdict.Reasons, "; "))
}

// printPolicies prints one line per policy with its test counts
func printPolicies(w io.Writer, groups []*runner.Group) {
	fmt.Fprintf(w, "\n%-50s %6s %8s %8s %8s %9s\n", "Policy", "Tests", "Failed", "Errors", "Skipped", "Time")
	fmt.Fprintln(w, strings.Repeat("-", 94))
	for _, g := range groups {
		status := "ok"
		if g.Failed() {
			status = "FAIL"
		}
		fmt.Fprintf(w, "%-50s %6d %8d %8d %8d %8.3fs %s\n",
			g.Name, g.Tests, g.Failures, g.Errors, g.Skipped, g.Seconds(), status)
	}
}

func completeFiles(m *report.Model) int {
	n := 0
	for _, g := range m.Areas {
		n += len(g.Files) - len(g.Incomplete())
	}
	return n
}

func formatThreshold(t *float64) string {
	if t == nil {
		return "none"
	}
	return fmt.Sprintf("%.2f%%", *t)
}
