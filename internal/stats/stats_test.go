package stats

import (
	"math"
	"testing"
)

func TestMedian(t *testing.T) {
	cases := []struct {
		name string
		in   []float64
		want float64
	}{
		{"empty", nil, 0},
		{"single", []float64{5}, 5},
		{"odd", []float64{3, 1, 2}, 2},
		{"even", []float64{4, 1, 3, 2}, 2.5},
		{"duplicates", []float64{10, 10, 10}, 10},
	}
	for _, tc := range cases {
		if got := Median(tc.in); got != tc.want {
			t.Errorf("%s: Median(%v) = %v, want %v", tc.name, tc.in, got, tc.want)
		}
	}
}

func TestMedian_DoesNotMutateInput(t *testing.T) {
	in := []float64{3, 1, 2}
	Median(in)
	if in[0] != 3 || in[1] != 1 || in[2] != 2 {
		t.Errorf("input mutated: %v", in)
	}
}

func TestAverage(t *testing.T) {
	if got := Average(nil); got != 0 {
		t.Errorf("Average(nil) = %v, want 0", got)
	}
	if got := Average([]float64{2, 4, 6}); got != 4 {
		t.Errorf("Average = %v, want 4", got)
	}
}

func TestStdDev(t *testing.T) {
	if got := StdDev(nil); got != 0 {
		t.Errorf("StdDev(nil) = %v, want 0", got)
	}
	if got := StdDev([]float64{7}); got != 0 {
		t.Errorf("StdDev(single) = %v, want 0", got)
	}
	// Sample stddev of {2,4,4,4,5,5,7,9} is ~2.138
	got := StdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	if math.Abs(got-2.13809) > 0.001 {
		t.Errorf("StdDev = %v, want ~2.138", got)
	}
}

func TestPercentChange(t *testing.T) {
	if got := PercentChange(110, 100); math.Abs(got-10) > 1e-9 {
		t.Errorf("PercentChange(110,100) = %v, want 10", got)
	}
	if got := PercentChange(42, 0); got != 0 {
		t.Errorf("PercentChange(x,0) = %v, want 0", got)
	}
	if got := PercentChange(80, 100); math.Abs(got+20) > 1e-9 {
		t.Errorf("PercentChange(80,100) = %v, want -20", got)
	}
}

func TestGroupBy(t *testing.T) {
	type row struct {
		city  string
		price float64
	}
	rows := []row{
		{"bogota", 100},
		{"cali", 90},
		{"bogota", 110},
	}
	groups := GroupBy(rows, func(r row) string { return r.city })
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if len(groups["bogota"]) != 2 {
		t.Errorf("expected 2 bogota rows, got %d", len(groups["bogota"]))
	}
	// Insertion order preserved within a bucket
	if groups["bogota"][0].price != 100 {
		t.Errorf("expected first bogota row 100, got %v", groups["bogota"][0].price)
	}
}

func TestIsFinite(t *testing.T) {
	cases := []struct {
		name string
		in   float64
		want bool
	}{
		{"plain", 42, true},
		{"zero", 0, true},
		{"negative", -3.5, true},
		{"nan", math.NaN(), false},
		{"inf", math.Inf(1), false},
		{"neg inf", math.Inf(-1), false},
	}
	for _, tc := range cases {
		if got := IsFinite(tc.in); got != tc.want {
			t.Errorf("%s: IsFinite(%v) = %v, want %v", tc.name, tc.in, got, tc.want)
		}
	}
}

func TestIsFinitePositive(t *testing.T) {
	cases := []struct {
		name string
		in   float64
		want bool
	}{
		{"positive", 1, true},
		{"zero", 0, false},
		{"negative", -1, false},
		{"nan", math.NaN(), false},
		{"inf", math.Inf(1), false},
	}
	for _, tc := range cases {
		if got := IsFinitePositive(tc.in); got != tc.want {
			t.Errorf("%s: IsFinitePositive(%v) = %v, want %v", tc.name, tc.in, got, tc.want)
		}
	}
}

func TestFinite(t *testing.T) {
	in := []float64{1, math.NaN(), 2, math.Inf(1), math.Inf(-1), 3}
	got := Finite(in)
	if len(got) != 3 {
		t.Fatalf("expected 3 finite values, got %d: %v", len(got), got)
	}
}

func TestFinitePositive(t *testing.T) {
	in := []float64{1, 0, -5, math.NaN(), 2}
	got := FinitePositive(in)
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("expected [1 2], got %v", got)
	}
}

func TestYearMonth(t *testing.T) {
	if got := YearMonth("2025-03-14"); got != "2025-03" {
		t.Errorf("YearMonth = %q, want 2025-03", got)
	}
	if got := YearMonth("bad"); got != "bad" {
		t.Errorf("YearMonth(short) = %q, want input back", got)
	}
}

func TestClamp(t *testing.T) {
	if got := Clamp(150, -100, 100); got != 100 {
		t.Errorf("Clamp high = %v", got)
	}
	if got := Clamp(-150, -100, 100); got != -100 {
		t.Errorf("Clamp low = %v", got)
	}
	if got := Clamp(7, -100, 100); got != 7 {
		t.Errorf("Clamp mid = %v", got)
	}
}
