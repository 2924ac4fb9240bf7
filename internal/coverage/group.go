package coverage

import (
	"sort"

	"github.com/samber/lo"

	"github.com/user/policycov/internal/metrics"
	"github.com/user/policycov/internal/policy"
)

// File is a policy file as seen by a group
type File struct {
	Path            string
	Coverage        float64
	CoveredLines    int
	NotCoveredLines int
	HasLines        bool
	Covered         []Range
	NotCovered      []Range
}

func newFile(path string, f *FileReport) File {
	covered, notCovered, ok := f.Lines()
	return File{
		Path:            path,
		Coverage:        f.Coverage,
		CoveredLines:    covered,
		NotCoveredLines: notCovered,
		HasLines:        ok,
		Covered:         f.Covered,
		NotCovered:      f.NotCovered,
	}
}

// TotalLines returns covered plus uncovered lines
func (f File) TotalLines() int {
	return f.CoveredLines + f.NotCoveredLines
}

// Percentage returns the file's coverage rounded for display
func (f File) Percentage() float64 {
	return metrics.Round(f.Coverage, 2)
}

// Complete reports whether every line of the file is covered
func (f File) Complete() bool {
	return f.Coverage >= 100
}

// Group aggregates the policy files sharing an area or directory
type Group struct {
	Name            string
	Files           []File // sorted by path
	PercentSum      float64
	CoveredLines    int
	NotCoveredLines int
}

func (g *Group) add(f File) {
	g.Files = append(g.Files, f)
	g.PercentSum += f.Coverage
	g.CoveredLines += f.CoveredLines
	g.NotCoveredLines += f.NotCoveredLines
}

// TotalLines returns the summed line count of the group
func (g *Group) TotalLines() int {
	return g.CoveredLines + g.NotCoveredLines
}

// AveragePercentage averages the per-file percentages
func (g *Group) AveragePercentage() float64 {
	return metrics.AveragePercentage(g.PercentSum, len(g.Files))
}

// Percentage is the line-based coverage of the group, or the average of its
// files when none of them carries line counts.
func (g *Group) Percentage() float64 {
	if g.TotalLines() > 0 {
		return metrics.LinePercentage(g.CoveredLines, g.TotalLines())
	}
	return g.AveragePercentage()
}

// Incomplete returns the files below 100% coverage
func (g *Group) Incomplete() []File {
	return lo.Reject(g.Files, func(f File, _ int) bool { return f.Complete() })
}

// PolicyFiles returns the non-test files of the report, sorted by path
func PolicyFiles(r *Report, namer policy.Namer) []File {
	files := make([]File, 0, len(r.Files))
	for _, path := range r.Paths() {
		if namer.IsTestFile(path) {
			continue
		}
		files = append(files, newFile(path, r.Files[path]))
	}
	return files
}

// GroupAreas groups policy files by coverage area
func GroupAreas(r *Report, namer policy.Namer) []*Group {
	return groupFiles(PolicyFiles(r, namer), namer.Area)
}

// GroupDirectories groups policy files by directory
func GroupDirectories(r *Report, namer policy.Namer) []*Group {
	return groupFiles(PolicyFiles(r, namer), namer.Directory)
}

func groupFiles(files []File, key func(string) string) []*Group {
	byName := lo.GroupBy(files, func(f File) string { return key(f.Path) })

	names := lo.Keys(byName)
	sort.Strings(names)

	groups := make([]*Group, 0, len(names))
	for _, name := range names {
		g := &Group{Name: name}
		for _, f := range byName[name] {
			g.add(f)
		}
		groups = append(groups, g)
	}
	return groups
}

// Summary is the overall coverage of the policy files in a report
type Summary struct {
	Files           int
	CoveredLines    int
	NotCoveredLines int
	Percentage      float64
}

// TotalLines returns covered plus uncovered lines
func (s Summary) TotalLines() int {
	return s.CoveredLines + s.NotCoveredLines
}

// Summarize computes overall coverage over policy files only. It falls back
// to the average file percentage without line counts, and to the runner's own
// figure when the report holds no policy files at all.
func Summarize(r *Report, namer policy.Namer) Summary {
	files := PolicyFiles(r, namer)

	s := Summary{Files: len(files)}
	var percentSum float64
	for _, f := range files {
		s.CoveredLines += f.CoveredLines
		s.NotCoveredLines += f.NotCoveredLines
		percentSum += f.Coverage
	}

	switch {
	case s.TotalLines() > 0:
		s.Percentage = metrics.LinePercentage(s.CoveredLines, s.TotalLines())
	case len(files) > 0:
		s.Percentage = metrics.AveragePercentage(percentSum, len(files))
	case r.Coverage != nil:
		s.Percentage = metrics.Round(*r.Coverage, 2)
	}
	return s
}
