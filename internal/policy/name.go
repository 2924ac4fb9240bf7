// Package policy derives the policy names reports are grouped by.
//
// Tests are grouped by their dotted package (data.policy.foo_test becomes
// policy.foo) while coverage files are grouped by the directory they live in
// under the policy root (policy/foo/bar.rego becomes foo). The two schemes are
// intentionally different and are never reconciled.
package policy

import (
	"path"
	"path/filepath"
	"strings"
)

// Namer carries the naming conventions used to normalize packages and paths
type Namer struct {
	RootPackage    string // leading package segment stripped from test packages
	TestSuffix     string // suffix stripped from the last package segment
	PolicyRoot     string // first path segment of policy files
	FallbackArea   string // area used for files outside the policy root
	TestFileSuffix string // files with this suffix are test-support code
}

// DefaultNamer returns the conventions used by OPA policy repositories
func DefaultNamer() Namer {
	return Namer{
		RootPackage:    "data",
		TestSuffix:     "_test",
		PolicyRoot:     "policy",
		FallbackArea:   "other",
		TestFileSuffix: "_test.rego",
	}
}

// Package normalizes a dotted package identifier into a policy name
func (n Namer) Package(pkg string) string {
	segments := strings.Split(pkg, ".")
	if len(segments) > 0 && n.RootPackage != "" && segments[0] == n.RootPackage {
		segments = segments[1:]
	}
	if len(segments) == 0 {
		return ""
	}

	last := len(segments) - 1
	if n.TestSuffix != "" && strings.HasSuffix(segments[last], n.TestSuffix) {
		segments[last] = strings.TrimSuffix(segments[last], n.TestSuffix)
		if segments[last] == "" {
			segments = segments[:last]
		}
	}
	return strings.Join(segments, ".")
}

// Area returns the coverage area of a file: the directories between the
// policy root and the file name, or the fallback label.
func (n Namer) Area(file string) string {
	segments := splitPath(file)
	if len(segments) < 3 || segments[0] != n.PolicyRoot {
		return n.FallbackArea
	}
	return strings.Join(segments[1:len(segments)-1], ".")
}

// Directory returns the dotted directory of a file, "." for top-level files
func (n Namer) Directory(file string) string {
	segments := splitPath(file)
	if len(segments) < 2 {
		return "."
	}
	return strings.Join(segments[:len(segments)-1], ".")
}

// IsTestFile reports whether a file is test-support code
func (n Namer) IsTestFile(file string) bool {
	return n.TestFileSuffix != "" && strings.HasSuffix(file, n.TestFileSuffix)
}

func splitPath(file string) []string {
	cleaned := path.Clean(filepath.ToSlash(file))
	if cleaned == "." || cleaned == "" {
		return nil
	}
	return strings.Split(cleaned, "/")
}
