package coverage

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errUtils "github.com/user/policycov/internal/errors"
)

const sampleCoverage = `{
  "files": {
    "policy/foo/bar.rego": {
      "covered": [{"start": {"row": 1}, "end": {"row": 4}}],
      "not_covered": [{"start": {"row": 5}, "end": {"row": 5}}],
      "covered_lines": 4,
      "not_covered_lines": 1,
      "coverage": 80
    },
    "policy/foo/bar_test.rego": {
      "covered": [{"start": {"row": 1}, "end": {"row": 30}}],
      "covered_lines": 30,
      "coverage": 100
    },
    "policy/baz/qux.rego": {
      "covered_regions": [{"start": {"row": 2}, "end": {"row": 3}}],
      "covered_lines": 2,
      "coverage": 100
    },
    "lib/util.rego": {
      "coverage": 50
    }
  },
  "covered_lines": 36,
  "not_covered_lines": 1,
  "coverage": 97.3
}`

func TestParseReport(t *testing.T) {
	report, err := ParseReport([]byte(sampleCoverage))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"lib/util.rego",
		"policy/baz/qux.rego",
		"policy/foo/bar.rego",
		"policy/foo/bar_test.rego",
	}, report.Paths())

	bar := report.Files["policy/foo/bar.rego"]
	covered, notCovered, ok := bar.Lines()
	assert.True(t, ok)
	assert.Equal(t, 4, covered)
	assert.Equal(t, 1, notCovered)
	assert.Equal(t, 80.0, bar.Coverage)

	qux := report.Files["policy/baz/qux.rego"]
	require.Len(t, qux.Covered, 1, "covered_regions is an alias of covered")
	covered, notCovered, ok = qux.Lines()
	assert.True(t, ok, "one present count is enough")
	assert.Equal(t, 2, covered)
	assert.Equal(t, 0, notCovered)

	_, _, ok = report.Files["lib/util.rego"].Lines()
	assert.False(t, ok, "no line counts at all")

	require.NotNil(t, report.Coverage)
	assert.Equal(t, 97.3, *report.Coverage)
}

func TestParseReportDerivesMissingPercentage(t *testing.T) {
	report, err := ParseReport([]byte(`{"files": {"policy/a/b.rego": {"covered_lines": 3, "not_covered_lines": 1}}}`))
	require.NoError(t, err)
	assert.Equal(t, 75.0, report.Files["policy/a/b.rego"].Coverage)
}

func TestParseReportWithoutFiles(t *testing.T) {
	report, err := ParseReport([]byte(`{"coverage": 0}`))
	require.NoError(t, err)
	assert.NotNil(t, report.Files)
	assert.Empty(t, report.Paths())
}

func TestParseReportMalformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "empty", data: ""},
		{name: "array", data: `[]`},
		{name: "truncated", data: `{"files": {`},
		{name: "coverage above 100", data: `{"files": {"a.rego": {"coverage": 120}}}`},
		{name: "negative coverage", data: `{"files": {"a.rego": {"coverage": -1}}}`},
		{name: "negative lines", data: `{"files": {"a.rego": {"coverage": 10, "covered_lines": -3}}}`},
		{name: "null file", data: `{"files": {"a.rego": null}}`},
		{name: "inverted range", data: `{"files": {"a.rego": {"coverage": 10, "not_covered": [{"start": {"row": 9}, "end": {"row": 2}}]}}}`},
		{name: "overall out of range", data: `{"coverage": 101}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseReport([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestLoadReport(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "coverage.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleCoverage), 0o644))
	report, err := LoadReport(path)
	require.NoError(t, err)
	assert.Len(t, report.Files, 4)

	_, err = LoadReport(filepath.Join(dir, "missing.json"))
	assert.True(t, errors.Is(err, errUtils.ErrInputNotFound))

	broken := filepath.Join(dir, "broken.json")
	require.NoError(t, os.WriteFile(broken, []byte(`{"files": 3}`), 0o644))
	_, err = LoadReport(broken)
	assert.True(t, errors.Is(err, errUtils.ErrMalformedInput))
}

func TestRange(t *testing.T) {
	single := Range{Start: Position{Row: 9}, End: Position{Row: 9}}
	span := Range{Start: Position{Row: 3}, End: Position{Row: 5}}

	assert.Equal(t, "Line 9", single.String())
	assert.Equal(t, "Lines 3-5", span.String())
	assert.Equal(t, []int{9}, single.Rows())
	assert.Equal(t, []int{3, 4, 5}, span.Rows())
	assert.Equal(t, "Lines 3-5, Line 9", FormatRanges([]Range{span, single}))
}

func TestPrintReport(t *testing.T) {
	report, err := ParseReport([]byte(sampleCoverage))
	require.NoError(t, err)

	namer := testNamer()
	var buf bytes.Buffer
	PrintReport(&buf, GroupAreas(report, namer), Summarize(report, namer), true)
	out := buf.String()

	assert.Contains(t, out, "Area")
	assert.Contains(t, out, "foo")
	assert.Contains(t, out, "policy/foo/bar.rego")
	assert.Contains(t, out, "Uncovered: Line 5")
	assert.Contains(t, out, "n/a", "files without line counts")
	assert.NotContains(t, out, "bar_test.rego")
	assert.Contains(t, out, "Total")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))

	long := "policy/" + strings.Repeat("é", 40) + ".rego"
	got := truncate(long, 10)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, 10, utf8.RuneCountInString(got))
	assert.Equal(t, "...éé.rego", got)
}
