// Package metrics holds the derived numbers shared by every report: rounded
// percentages, Cobertura line rates, durations and threshold checks.
package metrics

import "math"

// Round rounds v half-up to the given number of decimal places
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Floor(v*p+0.5) / p
}

// AveragePercentage averages a sum of per-file percentages over count files
func AveragePercentage(sum float64, count int) float64 {
	if count == 0 {
		return 0
	}
	return Round(sum/float64(count), 2)
}

// LinePercentage returns covered/total as a percentage, 0 when total is 0
func LinePercentage(covered, total int) float64 {
	if total <= 0 {
		return 0
	}
	return Round(float64(covered)/float64(total)*100, 2)
}

// LineRate converts a percentage into the 0..1 rate used by Cobertura
func LineRate(percentage float64) float64 {
	return Round(percentage/100, 4)
}

// MeetsThreshold reports whether value reaches threshold (inclusive)
func MeetsThreshold(value, threshold float64) bool {
	return value >= threshold
}

// Gate is MeetsThreshold for an optional threshold. A nil threshold never fails.
func Gate(value float64, threshold *float64) bool {
	if threshold == nil {
		return true
	}
	return MeetsThreshold(value, *threshold)
}

// DurationSeconds converts nanoseconds to seconds with millisecond precision
func DurationSeconds(nanos int64) float64 {
	return Round(float64(nanos)/1e9, 3)
}
