// Package stats provides the pure numeric primitives the indicator and
// business engines are built from. Every function defines an explicit
// zero fallback for degenerate input (empty slices, zero denominators)
// instead of returning NaN or panicking.
package stats

import (
	"math"
	"sort"
)

// Sum returns the sum of nums. Empty input sums to 0.
func Sum(nums []float64) float64 {
	total := 0.0
	for _, n := range nums {
		total += n
	}
	return total
}

// Average returns the arithmetic mean, or 0 for empty input.
func Average(nums []float64) float64 {
	if len(nums) == 0 {
		return 0
	}
	return Sum(nums) / float64(len(nums))
}

// Median returns the middle value (average of the two middle values for
// even counts), or 0 for empty input. The input slice is not mutated.
func Median(nums []float64) float64 {
	if len(nums) == 0 {
		return 0
	}
	sorted := make([]float64, len(nums))
	copy(sorted, nums)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// StdDev returns the sample standard deviation (n-1 denominator).
// Fewer than 2 points yields 0.
func StdDev(nums []float64) float64 {
	if len(nums) < 2 {
		return 0
	}
	mean := Average(nums)
	variance := 0.0
	for _, n := range nums {
		variance += (n - mean) * (n - mean)
	}
	variance /= float64(len(nums) - 1)
	return math.Sqrt(variance)
}

// Clamp bounds num to [min, max].
func Clamp(num, min, max float64) float64 {
	return math.Max(min, math.Min(max, num))
}

// PercentChange returns the percent change from previous to current.
// A zero previous value yields 0 rather than a division error.
func PercentChange(current, previous float64) float64 {
	if previous == 0 {
		return 0
	}
	return (current/previous - 1) * 100
}

// GroupBy buckets items by the key function, preserving insertion order
// within each bucket.
func GroupBy[T any, K comparable](items []T, keyFn func(T) K) map[K][]T {
	out := make(map[K][]T)
	for _, item := range items {
		k := keyFn(item)
		out[k] = append(out[k], item)
	}
	return out
}

// IsFinite reports whether n is neither NaN nor infinite.
func IsFinite(n float64) bool {
	return !math.IsNaN(n) && !math.IsInf(n, 0)
}

// IsFinitePositive reports whether n is finite and strictly greater
// than 0.
func IsFinitePositive(n float64) bool {
	return IsFinite(n) && n > 0
}

// Finite filters out NaN and infinite values.
func Finite(nums []float64) []float64 {
	out := make([]float64, 0, len(nums))
	for _, n := range nums {
		if IsFinite(n) {
			out = append(out, n)
		}
	}
	return out
}

// FinitePositive filters to finite values strictly greater than 0.
func FinitePositive(nums []float64) []float64 {
	out := make([]float64, 0, len(nums))
	for _, n := range nums {
		if IsFinitePositive(n) {
			out = append(out, n)
		}
	}
	return out
}

// YearMonth truncates a YYYY-MM-DD date to its YYYY-MM prefix.
func YearMonth(dateISO string) string {
	if len(dateISO) < 7 {
		return dateISO
	}
	return dateISO[:7]
}
