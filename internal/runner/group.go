package runner

import (
	"sort"

	"github.com/samber/lo"

	"github.com/user/policycov/internal/metrics"
	"github.com/user/policycov/internal/policy"
)

// Group aggregates the results of one policy
type Group struct {
	Name     string
	Results  []Result // input order
	Tests    int
	Passed   int
	Failures int
	Errors   int
	Skipped  int
	Duration int64
}

func (g *Group) add(r Result) {
	g.Results = append(g.Results, r)
	g.Tests++
	g.Duration += r.Duration
	// Flags are counted independently; one result may be both failed and errored.
	if r.Failed() {
		g.Failures++
	}
	if r.Errored() {
		g.Errors++
	}
	if r.Skipped() {
		g.Skipped++
	}
	if r.Outcome() == OutcomePass {
		g.Passed++
	}
}

// Failed reports whether any test of the policy failed or errored
func (g *Group) Failed() bool {
	return g.Failures > 0 || g.Errors > 0
}

// Seconds returns the summed duration in seconds
func (g *Group) Seconds() float64 {
	return metrics.DurationSeconds(g.Duration)
}

// Totals are run-wide counters
type Totals struct {
	Tests    int
	Passed   int
	Failures int
	Errors   int
	Skipped  int
	Duration int64
}

// Failed reports whether the run has any failure or error
func (t Totals) Failed() bool {
	return t.Failures > 0 || t.Errors > 0
}

// Seconds returns the summed duration in seconds
func (t Totals) Seconds() float64 {
	return metrics.DurationSeconds(t.Duration)
}

// GroupResults folds results into groups keyed by normalized package name,
// sorted by name.
func GroupResults(results []Result, namer policy.Namer) []*Group {
	byName := lo.GroupBy(results, func(r Result) string {
		return namer.Package(r.Package)
	})

	names := lo.Keys(byName)
	sort.Strings(names)

	groups := make([]*Group, 0, len(names))
	for _, name := range names {
		g := &Group{Name: name}
		for _, r := range byName[name] {
			g.add(r)
		}
		groups = append(groups, g)
	}
	return groups
}

// Tally computes totals straight from the flat result list
func Tally(results []Result) Totals {
	return Totals{
		Tests:    len(results),
		Passed:   lo.CountBy(results, func(r Result) bool { return r.Outcome() == OutcomePass }),
		Failures: lo.CountBy(results, Result.Failed),
		Errors:   lo.CountBy(results, Result.Errored),
		Skipped:  lo.CountBy(results, Result.Skipped),
		Duration: lo.SumBy(results, func(r Result) int64 { return r.Duration }),
	}
}

// SumGroups computes totals from already grouped results
func SumGroups(groups []*Group) Totals {
	var t Totals
	for _, g := range groups {
		t.Tests += g.Tests
		t.Passed += g.Passed
		t.Failures += g.Failures
		t.Errors += g.Errors
		t.Skipped += g.Skipped
		t.Duration += g.Duration
	}
	return t
}
