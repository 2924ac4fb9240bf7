package report

import (
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/policycov/internal/coverage"
	errUtils "github.com/user/policycov/internal/errors"
	"github.com/user/policycov/internal/policy"
	"github.com/user/policycov/internal/runner"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

const sampleResults = `[
  {"location": {"file": "policy/foo/bar_test.rego", "row": 3, "col": 1}, "package": "data.policy.foo_test", "name": "test_t1", "duration": 1000000},
  {"location": {"file": "policy/foo/bar_test.rego", "row": 9, "col": 1}, "package": "data.policy.foo_test", "name": "test_t2", "fail": true, "duration": 2000000},
  {"location": {"file": "policy/baz/qux_test.rego", "row": 5, "col": 1}, "package": "data.policy.baz.qux_test", "name": "test_err", "error": {"code": "eval_type_error", "message": "boom"}, "duration": 1000000},
  {"package": "data.policy.baz.qux_test", "name": "test_skip", "skip": "not ready", "duration": 0}
]`

const sampleCoverage = `{
  "files": {
    "policy/foo/bar.rego": {
      "covered": [{"start": {"row": 1}, "end": {"row": 40}}],
      "not_covered": [{"start": {"row": 41}, "end": {"row": 50}}],
      "covered_lines": 40,
      "not_covered_lines": 10,
      "coverage": 80
    },
    "policy/foo/bar_test.rego": {
      "covered": [{"start": {"row": 1}, "end": {"row": 20}}],
      "covered_lines": 20,
      "coverage": 100
    },
    "policy/baz/qux.rego": {
      "covered": [{"start": {"row": 1}, "end": {"row": 50}}],
      "covered_lines": 50,
      "not_covered_lines": 0,
      "coverage": 100
    }
  },
  "covered_lines": 110,
  "not_covered_lines": 10,
  "coverage": 91.67
}`

func threshold(v float64) *float64 { return &v }

func loadModel(t *testing.T, results, cov string) *Model {
	t.Helper()

	var rs []runner.Result
	if results != "" {
		var err error
		rs, err = runner.ParseResults([]byte(results))
		require.NoError(t, err)
	}

	var report *coverage.Report
	if cov != "" {
		var err error
		report, err = coverage.ParseReport([]byte(cov))
		require.NoError(t, err)
	}
	return NewModel(rs, report, policy.DefaultNamer())
}

func build(t *testing.T, kind Kind, opts Options, m *Model) *Document {
	t.Helper()
	if opts.Now.IsZero() {
		opts.Now = fixedNow
	}
	b, err := New(kind, opts)
	require.NoError(t, err)
	assert.Equal(t, kind, b.Kind())

	doc, err := b.Build(m)
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, kind, doc.Kind)
	return doc
}

func TestNewUnknownKind(t *testing.T) {
	_, err := New(Kind("html"), Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errUtils.ErrUnknownReport))
	assert.Equal(t, errUtils.ExitInvalidConfig, errUtils.GetExitCode(err))
}

func TestCoverageKindsRequireCoverage(t *testing.T) {
	m := loadModel(t, sampleResults, "")
	for _, kind := range []Kind{KindSummary, KindCoverage, KindCobertura} {
		t.Run(string(kind), func(t *testing.T) {
			b, err := New(kind, Options{Now: fixedNow})
			require.NoError(t, err)
			_, err = b.Build(m)
			assert.Error(t, err)
		})
	}
}

func TestNewModel(t *testing.T) {
	m := loadModel(t, sampleResults, sampleCoverage)

	require.Len(t, m.TestGroups, 2)
	assert.Equal(t, "policy.baz.qux", m.TestGroups[0].Name)
	assert.Equal(t, "policy.foo", m.TestGroups[1].Name)
	assert.Equal(t, m.Totals, runner.SumGroups(m.TestGroups))

	require.Len(t, m.Areas, 2)
	assert.Equal(t, "baz", m.Areas[0].Name)
	assert.Equal(t, "foo", m.Areas[1].Name)

	require.Len(t, m.Directories, 2)
	assert.Equal(t, "policy.baz", m.Directories[0].Name)
	assert.Equal(t, "policy.foo", m.Directories[1].Name)

	assert.Equal(t, 90, m.Overall.CoveredLines)
	assert.Equal(t, 10, m.Overall.NotCoveredLines)
	assert.Equal(t, 90.0, m.Overall.Percentage)
}

func TestVerdict(t *testing.T) {
	assert.NoError(t, Verdict{}.Err())
	assert.True(t, Verdict{}.Passed())

	v := Verdict{TestsFailed: true, BelowThreshold: true, Reasons: []string{"a", "b"}}
	err := v.Err()
	require.Error(t, err)
	assert.Equal(t, "a; b", err.Error())
	assert.True(t, errors.Is(err, errUtils.ErrTestsFailed))
	assert.True(t, errors.Is(err, errUtils.ErrCoverageBelowThreshold))
	assert.Equal(t, errUtils.ExitFailed, errUtils.GetExitCode(err))
}

func TestTestsReport(t *testing.T) {
	m := loadModel(t, sampleResults, "")
	doc := build(t, KindTests, Options{}, m)

	root, ok := doc.Root.(*TestSuites)
	require.True(t, ok)
	assert.Equal(t, 4, root.Tests)
	assert.Equal(t, 1, root.Failures)
	assert.Equal(t, 1, root.Errors)
	assert.Equal(t, 1, root.Skipped)
	assert.Equal(t, "0.004", root.Time)
	assert.Equal(t, "2024-05-01T12:00:00", root.Timestamp)

	require.Len(t, root.Suites, 2)
	baz, foo := root.Suites[0], root.Suites[1]
	assert.Equal(t, "policy.baz.qux", baz.Name)
	assert.Equal(t, "policy.foo", foo.Name)

	require.Len(t, foo.Cases, 2)
	t1, t2 := foo.Cases[0], foo.Cases[1]
	assert.Equal(t, "test_t1", t1.Name)
	assert.Equal(t, "policy.foo", t1.Classname)
	assert.Equal(t, "0.001", t1.Time)
	assert.Equal(t, "policy/foo/bar_test.rego", t1.File)
	assert.Equal(t, 3, t1.Line)
	assert.Nil(t, t1.Failure)

	require.NotNil(t, t2.Failure)
	assert.Equal(t, "Test test_t2 failed", t2.Failure.Message)
	assert.Equal(t, "policy/foo/bar_test.rego:9", t2.Failure.Body)

	errCase, skipCase := baz.Cases[0], baz.Cases[1]
	require.NotNil(t, errCase.Error)
	assert.Equal(t, "eval_type_error", errCase.Error.Type)
	assert.Equal(t, "boom", errCase.Error.Message)
	require.NotNil(t, skipCase.Skipped)
	assert.Equal(t, "not ready", skipCase.Skipped.Message)
	assert.Empty(t, skipCase.File, "location is optional")

	assert.True(t, doc.Verdict.TestsFailed)
	assert.False(t, doc.Verdict.BelowThreshold)
}

func TestTestsReportPassing(t *testing.T) {
	m := loadModel(t, `[{"package": "data.policy.ok_test", "name": "test_ok", "duration": 10}]`, "")
	doc := build(t, KindTests, Options{}, m)
	assert.True(t, doc.Verdict.Passed())
	assert.NoError(t, doc.Verdict.Err())
}

func TestSummaryPolicyCase(t *testing.T) {
	results := `[
	  {"package": "data.policy.foo_test", "name": "t1", "duration": 1000000, "fail": false},
	  {"package": "data.policy.foo_test", "name": "t2", "duration": 2000000, "fail": true}
	]`
	m := loadModel(t, results, sampleCoverage)
	doc := build(t, KindSummary, Options{Threshold: threshold(95)}, m)

	root := doc.Root.(*TestSuites)
	require.Len(t, root.Suites, 2)
	tests := root.Suites[0]
	assert.Equal(t, "Policy Tests", tests.Name)
	require.Len(t, tests.Cases, 1)

	tc := tests.Cases[0]
	assert.Equal(t, "policy.foo (2 tests, 1 failures, 0 errors, 0 skipped)", tc.Name)
	require.NotNil(t, tc.Failure)
	assert.Equal(t, "PolicyFailure", tc.Failure.Type)
	require.NotNil(t, tc.SystemOut)
	assert.Equal(t, "PASS t1 (0.001s)\nFAIL t2 (0.002s)", tc.SystemOut.Text)
	assert.Equal(t, 1, tests.Failures)
}

func TestSummaryCoverageSuite(t *testing.T) {
	m := loadModel(t, sampleResults, sampleCoverage)

	t.Run("area fails on an incomplete file even above threshold", func(t *testing.T) {
		doc := build(t, KindSummary, Options{Threshold: threshold(75)}, m)
		suite := doc.Root.(*TestSuites).Suites[1]
		assert.Equal(t, "Coverage Summary", suite.Name)
		require.Len(t, suite.Cases, 3)

		baz, foo, overall := suite.Cases[0], suite.Cases[1], suite.Cases[2]
		assert.Equal(t, "baz (100.00% average, 50/50 lines)", baz.Name)
		assert.Nil(t, baz.Failure)

		assert.Equal(t, "foo (80.00% average, 40/50 lines)", foo.Name)
		require.NotNil(t, foo.Failure, "the area average meets the threshold but one file is incomplete")
		assert.Equal(t, "IncompleteCoverage", foo.Failure.Type)

		assert.Nil(t, overall.Failure)
		assert.False(t, doc.Verdict.BelowThreshold)
		assert.Equal(t, 3, suite.Tests)
		assert.Equal(t, 1, suite.Failures)
	})

	t.Run("overall below threshold", func(t *testing.T) {
		doc := build(t, KindSummary, Options{Threshold: threshold(95)}, m)
		suite := doc.Root.(*TestSuites).Suites[1]
		overall := suite.Cases[len(suite.Cases)-1]
		require.NotNil(t, overall.Failure)
		assert.Equal(t, "CoverageThreshold", overall.Failure.Type)
		assert.True(t, doc.Verdict.BelowThreshold)
		assert.True(t, doc.Verdict.TestsFailed)
	})

	t.Run("totals are sums over suites", func(t *testing.T) {
		doc := build(t, KindSummary, Options{Threshold: threshold(95)}, m)
		root := doc.Root.(*TestSuites)
		var tests, failures, errs, skipped int
		for _, s := range root.Suites {
			tests += s.Tests
			failures += s.Failures
			errs += s.Errors
			skipped += s.Skipped
		}
		assert.Equal(t, tests, root.Tests)
		assert.Equal(t, failures, root.Failures)
		assert.Equal(t, errs, root.Errors)
		assert.Equal(t, skipped, root.Skipped)
	})
}

func TestCoverageReport(t *testing.T) {
	single := `{"files": {"policy/foo/bar.rego": {
	  "covered": [{"start": {"row": 1}, "end": {"row": 40}}],
	  "not_covered": [{"start": {"row": 41}, "end": {"row": 50}}],
	  "covered_lines": 40, "not_covered_lines": 10, "coverage": 80}}}`

	t.Run("below threshold lists the uncovered region", func(t *testing.T) {
		doc := build(t, KindCoverage, Options{Threshold: threshold(90)}, loadModel(t, "", single))
		root := doc.Root.(*TestSuites)
		require.Len(t, root.Suites, 1)
		require.Len(t, root.Suites[0].Cases, 1)

		tc := root.Suites[0].Cases[0]
		require.NotNil(t, tc.Failure)
		assert.Equal(t, 1, root.Failures)
		assert.True(t, doc.Verdict.BelowThreshold)

		require.NotNil(t, tc.SystemOut)
		regions := 0
		for _, line := range strings.Split(tc.SystemOut.Text, "\n") {
			if strings.HasPrefix(strings.TrimSpace(line), "- ") {
				regions++
			}
		}
		assert.Equal(t, 1, regions)
		assert.Contains(t, tc.SystemOut.Text, "- Lines 41-50")
	})

	t.Run("low file does not fail a passing overall", func(t *testing.T) {
		doc := build(t, KindCoverage, Options{Threshold: threshold(90)}, loadModel(t, "", sampleCoverage))
		tc := doc.Root.(*TestSuites).Suites[0].Cases[0]
		assert.Nil(t, tc.Failure, "overall coverage meets the threshold")
		assert.True(t, doc.Verdict.Passed())
		assert.Contains(t, tc.SystemOut.Text, "FAIL bar.rego: 80.00% (40/50 lines)")
		assert.Contains(t, tc.SystemOut.Text, "Result: PASS")
	})

	t.Run("no threshold", func(t *testing.T) {
		doc := build(t, KindCoverage, Options{}, loadModel(t, "", single))
		tc := doc.Root.(*TestSuites).Suites[0].Cases[0]
		assert.Nil(t, tc.Failure)
		assert.Contains(t, tc.SystemOut.Text, "Threshold: none")
		assert.Contains(t, tc.SystemOut.Text, "- Lines 41-50", "incomplete files still list regions")
	})
}

func TestCoberturaReport(t *testing.T) {
	overlap := `{"files": {
	  "policy/foo/bar.rego": {
	    "covered": [{"start": {"row": 1}, "end": {"row": 3}}],
	    "not_covered": [{"start": {"row": 3}, "end": {"row": 4}}],
	    "covered_lines": 2, "not_covered_lines": 2, "coverage": 50},
	  "policy/tests/only_test.rego": {"covered": [{"start": {"row": 1}, "end": {"row": 2}}], "coverage": 100},
	  "main.rego": {"covered": [{"start": {"row": 1}, "end": {"row": 1}}], "covered_lines": 1, "coverage": 100}
	}}`

	doc := build(t, KindCobertura, Options{Root: "/src"}, loadModel(t, "", overlap))
	assert.Equal(t, CoberturaDoctype, doc.Doctype)
	assert.True(t, doc.Verdict.Passed(), "no threshold means no gating")

	root := doc.Root.(*Coverage)
	assert.Equal(t, []string{"/src"}, root.Sources)
	assert.Equal(t, fixedNow.Unix(), root.Timestamp)
	assert.Equal(t, 3, root.LinesCovered)
	assert.Equal(t, 5, root.LinesValid)
	assert.Equal(t, 0.6, root.LineRate)

	require.Len(t, root.Packages, 2, "test-only directories are excluded")
	assert.Equal(t, ".", root.Packages[0].Name)
	assert.Equal(t, "policy.foo", root.Packages[1].Name)

	bar := root.Packages[1].Classes[0]
	assert.Equal(t, "bar", bar.Name)
	assert.Equal(t, "policy/foo/bar.rego", bar.Filename)
	assert.Equal(t, 0.5, bar.LineRate)
	require.Len(t, bar.Methods, 1)
	assert.Equal(t, []Line{
		{Number: 1, Hits: 1, Branch: "false"},
		{Number: 2, Hits: 1, Branch: "false"},
		{Number: 3, Hits: 0, Branch: "false"},
		{Number: 4, Hits: 0, Branch: "false"},
	}, bar.Lines)

	gated := build(t, KindCobertura, Options{Threshold: threshold(80)}, loadModel(t, "", overlap))
	assert.True(t, gated.Verdict.BelowThreshold)
}

func TestReportsWithoutLineCounts(t *testing.T) {
	cov := `{"files": {"policy/lib/util.rego": {
	  "covered": [{"start": {"row": 1}, "end": {"row": 3}}],
	  "not_covered": [{"start": {"row": 4}, "end": {"row": 4}}],
	  "coverage": 75}}}`
	m := loadModel(t, "", cov)
	assert.Equal(t, 75.0, m.Overall.Percentage, "falls back to the file average")
	assert.Equal(t, 0, m.Overall.TotalLines())

	t.Run("summary", func(t *testing.T) {
		doc := build(t, KindSummary, Options{}, m)
		suite := doc.Root.(*TestSuites).Suites[1]
		require.Len(t, suite.Cases, 2)

		area := suite.Cases[0]
		assert.Equal(t, "lib (75.00% average, line counts unavailable)", area.Name)
		require.NotNil(t, area.SystemOut)
		assert.Equal(t, "FAIL util.rego: 75.00%\n   Uncovered regions:\n   - Line 4", area.SystemOut.Text)
		assert.Equal(t, "Overall coverage (75.00%, threshold none)", suite.Cases[1].Name)
	})

	t.Run("coverage", func(t *testing.T) {
		doc := build(t, KindCoverage, Options{}, m)
		out := doc.Root.(*TestSuites).Suites[0].Cases[0].SystemOut.Text
		assert.Contains(t, out, "Overall coverage: 75.00% (line counts unavailable)")
		assert.Contains(t, out, "lib: 75.00% average (line counts unavailable)")
		assert.Contains(t, out, "  FAIL util.rego: 75.00%\n")
		assert.NotContains(t, out, "0/0")
	})

	t.Run("cobertura", func(t *testing.T) {
		doc := build(t, KindCobertura, Options{}, m)
		root := doc.Root.(*Coverage)
		assert.Equal(t, 0.75, root.LineRate)
		assert.Equal(t, 0, root.LinesValid)

		require.Len(t, root.Packages, 1)
		pkg := root.Packages[0]
		assert.Equal(t, "policy.lib", pkg.Name)
		assert.Equal(t, 0.75, pkg.LineRate)
		require.Len(t, pkg.Classes, 1)
		assert.Equal(t, 0.75, pkg.Classes[0].LineRate)
		assert.Len(t, pkg.Classes[0].Lines, 4)
	})
}
