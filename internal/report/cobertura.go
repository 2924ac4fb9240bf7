package report

import (
	"path"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"

	"github.com/user/policycov/internal/coverage"
	"github.com/user/policycov/internal/metrics"
)

// CoberturaDoctype is the schema reference written before the root element
const CoberturaDoctype = `<!DOCTYPE coverage SYSTEM "http://cobertura.sourceforge.net/xml/coverage-04.dtd">`

// coberturaBuilder renders directory packages with one class per policy file
type coberturaBuilder struct {
	opts Options
}

func (b *coberturaBuilder) Kind() Kind { return KindCobertura }

func (b *coberturaBuilder) Build(m *Model) (*Document, error) {
	if !m.HasCoverage() {
		return nil, errors.Wrap(errNoCoverage, "cobertura report")
	}

	s := m.Overall
	root := &Coverage{
		LineRate:     metrics.LineRate(s.Percentage),
		LinesCovered: s.CoveredLines,
		LinesValid:   s.TotalLines(),
		Version:      "0.1",
		Timestamp:    b.opts.now().Unix(),
		Sources:      []string{b.opts.root()},
	}

	for _, g := range m.Directories {
		pkg := Package{
			Name:     g.Name,
			LineRate: metrics.LineRate(g.Percentage()),
		}
		for _, f := range g.Files {
			pkg.Classes = append(pkg.Classes, class(f))
		}
		root.Packages = append(root.Packages, pkg)
	}

	doc := &Document{Kind: KindCobertura, Root: root, Doctype: CoberturaDoctype}
	doc.Verdict.gate(s.Percentage, b.opts.Threshold)
	return doc, nil
}

func class(f coverage.File) Class {
	rate := metrics.LineRate(f.Coverage)
	base := path.Base(f.Path)
	return Class{
		Name:     strings.TrimSuffix(base, path.Ext(base)),
		Filename: f.Path,
		LineRate: rate,
		Methods:  []Method{{Name: "evaluate", LineRate: rate}},
		Lines:    lineHits(f),
	}
}

// lineHits flags every line mentioned in a region. Uncovered regions are
// applied last so a line listed in both ends up with zero hits.
func lineHits(f coverage.File) []Line {
	hits := make(map[int]int)
	for _, r := range f.Covered {
		for _, row := range r.Rows() {
			hits[row] = 1
		}
	}
	for _, r := range f.NotCovered {
		for _, row := range r.Rows() {
			hits[row] = 0
		}
	}

	rows := lo.Keys(hits)
	sort.Ints(rows)

	lines := make([]Line, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, Line{Number: row, Hits: hits[row], Branch: "false"})
	}
	return lines
}
