package coverage

import (
	"fmt"
	"io"
	"strings"
)

// PrintReport prints a per-area coverage table. In verbose mode every file and
// its uncovered regions are listed under its area.
func PrintReport(w io.Writer, groups []*Group, summary Summary, verbose bool) {
	fmt.Fprintf(w, "\n%-40s %6s %14s %10s\n", "Area", "Files", "Lines", "Coverage")
	fmt.Fprintln(w, strings.Repeat("-", 73))

	for _, g := range groups {
		fmt.Fprintf(w, "%-40s %6d %14s %9.2f%%\n",
			truncate(g.Name, 40), len(g.Files), formatLines(g.CoveredLines, g.TotalLines()), g.Percentage())

		if !verbose {
			continue
		}
		for _, f := range g.Files {
			lines := "n/a"
			if f.HasLines {
				lines = formatLines(f.CoveredLines, f.TotalLines())
			}
			fmt.Fprintf(w, "  %-38s %6s %14s %9.2f%%\n", truncate(f.Path, 38), "", lines, f.Percentage())
			if !f.Complete() && len(f.NotCovered) > 0 {
				fmt.Fprintf(w, "    Uncovered: %s\n", FormatRanges(f.NotCovered))
			}
		}
	}

	fmt.Fprintln(w, strings.Repeat("-", 73))
	fmt.Fprintf(w, "%-40s %6d %14s %9.2f%%\n",
		"Total", summary.Files, formatLines(summary.CoveredLines, summary.TotalLines()), summary.Percentage)
}

// FormatRanges joins ranges as "Lines 3-5, Line 9"
func FormatRanges(ranges []Range) string {
	parts := make([]string, 0, len(ranges))
	for _, r := range ranges {
		parts = append(parts, r.String())
	}
	return strings.Join(parts, ", ")
}

func formatLines(covered, total int) string {
	if total == 0 {
		return "n/a"
	}
	return fmt.Sprintf("%d/%d", covered, total)
}

// truncate keeps the tail of s, which is where paths differ
func truncate(s string, width int) string {
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	return "..." + string(runes[len(runes)-width+3:])
}
