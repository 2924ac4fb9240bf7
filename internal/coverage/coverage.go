// Package coverage models the coverage snapshot produced by the policy test
// runner (opa test --coverage --format=json) and rolls it up per policy area.
package coverage

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"sort"

	"github.com/cockroachdb/errors"
	jsoniter "github.com/json-iterator/go"
	"github.com/samber/lo"

	errUtils "github.com/user/policycov/internal/errors"
	"github.com/user/policycov/internal/metrics"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Position is a row in a source file
type Position struct {
	Row int `json:"row"`
}

// Range is an inclusive span of source lines
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// String renders the range as "Line N" or "Lines start-end"
func (r Range) String() string {
	if r.End.Row <= r.Start.Row {
		return fmt.Sprintf("Line %d", r.Start.Row)
	}
	return fmt.Sprintf("Lines %d-%d", r.Start.Row, r.End.Row)
}

// Rows lists every line number in the range
func (r Range) Rows() []int {
	if r.End.Row < r.Start.Row {
		return nil
	}
	return lo.RangeFrom(r.Start.Row, r.End.Row-r.Start.Row+1)
}

// FileReport holds coverage data for a single file.
// Line counts are optional; older runners and hand-written inputs omit them.
type FileReport struct {
	Covered         []Range
	NotCovered      []Range
	CoveredLines    *int
	NotCoveredLines *int
	Coverage        float64
}

// UnmarshalJSON decodes a file entry. The region lists may be spelled
// covered/not_covered or covered_regions/not_covered_regions.
func (f *FileReport) UnmarshalJSON(data []byte) error {
	var raw struct {
		Covered           []Range  `json:"covered"`
		NotCovered        []Range  `json:"not_covered"`
		CoveredRegions    []Range  `json:"covered_regions"`
		NotCoveredRegions []Range  `json:"not_covered_regions"`
		CoveredLines      *int     `json:"covered_lines"`
		NotCoveredLines   *int     `json:"not_covered_lines"`
		Coverage          *float64 `json:"coverage"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	f.Covered = append(raw.Covered, raw.CoveredRegions...)
	f.NotCovered = append(raw.NotCovered, raw.NotCoveredRegions...)
	f.CoveredLines = raw.CoveredLines
	f.NotCoveredLines = raw.NotCoveredLines

	switch {
	case raw.Coverage != nil:
		f.Coverage = *raw.Coverage
	default:
		if covered, notCovered, ok := f.Lines(); ok {
			f.Coverage = metrics.LinePercentage(covered, covered+notCovered)
		}
	}
	return nil
}

// Lines returns the file's line counts. ok is false when the record carries
// neither count, in which case only the percentage is meaningful. An absent
// count next to a present one is zero, matching the runner's omitempty output.
func (f *FileReport) Lines() (covered, notCovered int, ok bool) {
	if f.CoveredLines == nil && f.NotCoveredLines == nil {
		return 0, 0, false
	}
	return lo.FromPtr(f.CoveredLines), lo.FromPtr(f.NotCoveredLines), true
}

// Report is the coverage snapshot for one test run
type Report struct {
	Files           map[string]*FileReport `json:"files"`
	CoveredLines    *int                   `json:"covered_lines,omitempty"`
	NotCoveredLines *int                   `json:"not_covered_lines,omitempty"`
	Coverage        *float64               `json:"coverage,omitempty"`
}

// Paths returns every file path in lexicographic order
func (r *Report) Paths() []string {
	paths := lo.Keys(r.Files)
	sort.Strings(paths)
	return paths
}

// LoadReport reads the runner's JSON coverage file
func LoadReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errUtils.InputNotFound(path, err)
		}
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}

	report, err := ParseReport(data)
	if err != nil {
		return nil, errUtils.MalformedInput(path, err)
	}
	return report, nil
}

// ParseReport decodes and validates a coverage snapshot
func ParseReport(data []byte) (*Report, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New("empty document")
	}

	var report Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, errors.Wrap(err, "failed to parse JSON")
	}
	if report.Files == nil {
		report.Files = make(map[string]*FileReport)
	}

	if err := report.validate(); err != nil {
		return nil, err
	}
	return &report, nil
}

func (r *Report) validate() error {
	if r.Coverage != nil && !validPercentage(*r.Coverage) {
		return errors.Newf("overall coverage %v is outside 0..100", *r.Coverage)
	}
	if lo.FromPtr(r.CoveredLines) < 0 || lo.FromPtr(r.NotCoveredLines) < 0 {
		return errors.New("overall line counts must not be negative")
	}

	for _, path := range r.Paths() {
		f := r.Files[path]
		if f == nil {
			return errors.Newf("%s: empty file entry", path)
		}
		if !validPercentage(f.Coverage) {
			return errors.Newf("%s: coverage %v is outside 0..100", path, f.Coverage)
		}
		if lo.FromPtr(f.CoveredLines) < 0 || lo.FromPtr(f.NotCoveredLines) < 0 {
			return errors.Newf("%s: line counts must not be negative", path)
		}
		for _, rg := range append(append([]Range{}, f.Covered...), f.NotCovered...) {
			if rg.Start.Row < 1 || rg.End.Row < rg.Start.Row {
				return errors.Newf("%s: invalid line range %d-%d", path, rg.Start.Row, rg.End.Row)
			}
		}
	}
	return nil
}

func validPercentage(v float64) bool {
	return v >= 0 && v <= 100
}
