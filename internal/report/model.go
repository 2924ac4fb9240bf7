package report

import (
	"encoding/xml"
	"strings"
	"unicode/utf8"
)

// TestSuites is the root of a JUnit document
type TestSuites struct {
	XMLName   xml.Name    `xml:"testsuites"`
	Name      string      `xml:"name,attr"`
	Tests     int         `xml:"tests,attr"`
	Failures  int         `xml:"failures,attr"`
	Errors    int         `xml:"errors,attr"`
	Skipped   int         `xml:"skipped,attr"`
	Time      string      `xml:"time,attr"`
	Timestamp string      `xml:"timestamp,attr,omitempty"`
	Suites    []TestSuite `xml:"testsuite"`
}

// TestSuite groups test cases under one name
type TestSuite struct {
	Name       string      `xml:"name,attr"`
	Package    string      `xml:"package,attr,omitempty"`
	Tests      int         `xml:"tests,attr"`
	Failures   int         `xml:"failures,attr"`
	Errors     int         `xml:"errors,attr"`
	Skipped    int         `xml:"skipped,attr"`
	Time       string      `xml:"time,attr"`
	Timestamp  string      `xml:"timestamp,attr,omitempty"`
	Properties *Properties `xml:"properties,omitempty"`
	Cases      []TestCase  `xml:"testcase"`
}

// Properties wraps suite properties so an empty set drops the element
type Properties struct {
	Items []Property `xml:"property"`
}

func properties(items ...Property) *Properties {
	if len(items) == 0 {
		return nil
	}
	return &Properties{Items: items}
}

// Property is a name/value pair attached to a suite
type Property struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// TestCase is a single JUnit case
type TestCase struct {
	Name      string      `xml:"name,attr"`
	Classname string      `xml:"classname,attr"`
	Time      string      `xml:"time,attr"`
	File      string      `xml:"file,attr,omitempty"`
	Line      int         `xml:"line,attr,omitempty"`
	Failure   *Annotation `xml:"failure,omitempty"`
	Error     *Annotation `xml:"error,omitempty"`
	Skipped   *Annotation `xml:"skipped,omitempty"`
	SystemOut *Output     `xml:"system-out,omitempty"`
}

// Annotation is a failure, error or skipped marker on a case
type Annotation struct {
	Message string `xml:"message,attr,omitempty"`
	Type    string `xml:"type,attr,omitempty"`
	Body    string `xml:",cdata"`
}

// Output is free text attached to a case, kept verbatim in a CDATA section
type Output struct {
	Text string `xml:",cdata"`
}

func output(lines []string) *Output {
	if len(lines) == 0 {
		return nil
	}
	return &Output{Text: cdata(strings.Join(lines, "\n"))}
}

// cdata replaces runes XML does not allow with U+FFFD. encoding/xml escapes
// them in attributes and character data but copies CDATA sections as is.
func cdata(s string) string {
	return strings.Map(func(r rune) rune {
		if isXMLChar(r) {
			return r
		}
		return utf8.RuneError
	}, s)
}

func isXMLChar(r rune) bool {
	switch {
	case r == 0x09, r == 0x0A, r == 0x0D:
		return true
	case r >= 0x20 && r <= 0xD7FF:
		return true
	case r >= 0xE000 && r <= 0xFFFD:
		return true
	case r >= 0x10000 && r <= 0x10FFFF:
		return true
	}
	return false
}

// add appends a suite and folds its counters into the document totals
func (t *TestSuites) add(s TestSuite) {
	t.Suites = append(t.Suites, s)
	t.Tests += s.Tests
	t.Failures += s.Failures
	t.Errors += s.Errors
	t.Skipped += s.Skipped
}

// Coverage is the root of a Cobertura document
type Coverage struct {
	XMLName         xml.Name  `xml:"coverage"`
	LineRate        float64   `xml:"line-rate,attr"`
	BranchRate      float64   `xml:"branch-rate,attr"`
	LinesCovered    int       `xml:"lines-covered,attr"`
	LinesValid      int       `xml:"lines-valid,attr"`
	BranchesCovered int       `xml:"branches-covered,attr"`
	BranchesValid   int       `xml:"branches-valid,attr"`
	Complexity      int       `xml:"complexity,attr"`
	Version         string    `xml:"version,attr"`
	Timestamp       int64     `xml:"timestamp,attr"`
	Sources         []string  `xml:"sources>source"`
	Packages        []Package `xml:"packages>package"`
}

// Package is a directory of policy files
type Package struct {
	Name       string  `xml:"name,attr"`
	LineRate   float64 `xml:"line-rate,attr"`
	BranchRate float64 `xml:"branch-rate,attr"`
	Complexity int     `xml:"complexity,attr"`
	Classes    []Class `xml:"classes>class"`
}

// Class is one policy file
type Class struct {
	Name       string   `xml:"name,attr"`
	Filename   string   `xml:"filename,attr"`
	LineRate   float64  `xml:"line-rate,attr"`
	BranchRate float64  `xml:"branch-rate,attr"`
	Complexity int      `xml:"complexity,attr"`
	Methods    []Method `xml:"methods>method"`
	Lines      []Line   `xml:"lines>line"`
}

// Method is the synthetic entry point of a policy file
type Method struct {
	Name       string  `xml:"name,attr"`
	Signature  string  `xml:"signature,attr"`
	LineRate   float64 `xml:"line-rate,attr"`
	BranchRate float64 `xml:"branch-rate,attr"`
	Lines      []Line  `xml:"lines>line"`
}

// Line is the hit flag of one source line
type Line struct {
	Number int    `xml:"number,attr"`
	Hits   int    `xml:"hits,attr"`
	Branch string `xml:"branch,attr"`
}
