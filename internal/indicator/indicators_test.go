package indicator

import (
	"math"
	"testing"

	"fruver-market/internal/model"
)

func TestInflationProxy(t *testing.T) {
	if got := InflationProxy(110, 100); math.Abs(got-10) > 1e-9 {
		t.Errorf("InflationProxy(110,100) = %v, want 10", got)
	}
	if got := InflationProxy(110, 0); got != 0 {
		t.Errorf("InflationProxy(x,0) = %v, want 0", got)
	}
	if got := InflationProxy(90, 100); math.Abs(got+10) > 1e-9 {
		t.Errorf("InflationProxy(90,100) = %v, want -10", got)
	}
}

func TestRegionalDisparity(t *testing.T) {
	if got := RegionalDisparity(nil); got != 0 {
		t.Errorf("empty input: got %v, want 0", got)
	}
	if got := RegionalDisparity([]float64{100, 100, 100}); got != 0 {
		t.Errorf("uniform prices: got %v, want 0", got)
	}
	// Prices centered on zero mean must not divide by zero.
	if got := RegionalDisparity([]float64{-5, 5}); got != 0 {
		t.Errorf("zero mean: got %v, want 0", got)
	}
	// mean=100, sample stddev=10 -> CV 10%
	got := RegionalDisparity([]float64{90, 100, 110})
	if math.Abs(got-10) > 0.001 {
		t.Errorf("CV = %v, want ~10", got)
	}
}

func TestMarketFriction(t *testing.T) {
	if got := MarketFriction(120, 80, 100); math.Abs(got-0.4) > 1e-9 {
		t.Errorf("friction = %v, want 0.4", got)
	}
	if got := MarketFriction(120, 80, 0); got != 0 {
		t.Errorf("zero median: got %v, want 0", got)
	}
	if got := MarketFriction(80, 120, 100); got != 0 {
		t.Errorf("max < min (malformed): got %v, want 0", got)
	}
}

func TestTrendScore(t *testing.T) {
	cases := []struct {
		name   string
		trends []model.Trend
		want   float64
	}{
		{"empty", nil, 0},
		{"symmetric cancellation", []model.Trend{"+++", "---"}, 0},
		{"all strong up", []model.Trend{"+++", "+++"}, 100},
		{"all strong down", []model.Trend{"---", "---"}, -100},
		{"mixed", []model.Trend{"+", ""}, 100.0 / 6.0},
		{"unknown symbol scores zero", []model.Trend{"???", "+++"}, 50},
	}
	for _, tc := range cases {
		if got := TrendScore(tc.trends); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("%s: TrendScore = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestHistoricalVolatility(t *testing.T) {
	if got := HistoricalVolatility([]float64{100, 110}); got != 0 {
		t.Errorf("fewer than 3 points: got %v, want 0", got)
	}
	// Constant series has zero volatility.
	if got := HistoricalVolatility([]float64{100, 100, 100, 100}); got != 0 {
		t.Errorf("constant series: got %v, want 0", got)
	}
	// Zero prior values are skipped; only one valid delta remains.
	if got := HistoricalVolatility([]float64{0, 100, 110}); got != 0 {
		t.Errorf("single valid delta: got %v, want 0", got)
	}
	// Changes +10%, -10%: stddev of {10,-10} is ~14.142
	got := HistoricalVolatility([]float64{100, 110, 99})
	if math.Abs(got-14.142) > 0.01 {
		t.Errorf("volatility = %v, want ~14.142", got)
	}
}

func rec(city string, min, avg, max float64, trend model.Trend) model.PriceRecord {
	return model.PriceRecord{
		Product:  "papa",
		City:     city,
		MinPrice: min,
		AvgPrice: avg,
		MaxPrice: max,
		Trend:    trend,
	}
}

func TestCompute(t *testing.T) {
	current := []model.PriceRecord{
		rec("bogota", 90, 100, 130, "+"),
		rec("cali", 85, 110, 120, "+"),
		rec("medellin", 80, 120, 125, "+"),
	}
	previous := []model.PriceRecord{
		rec("bogota", 85, 95, 110, ""),
		rec("cali", 80, 105, 115, ""),
		rec("medellin", 75, 100, 110, ""),
	}

	set := Compute(current, previous)

	// Current median 110 vs previous median 100 -> +10%
	if math.Abs(set.InflationPct-10) > 0.001 {
		t.Errorf("InflationPct = %v, want 10", set.InflationPct)
	}
	// Global min 80, max 130, median 110 -> (130-80)/110
	wantFriction := 50.0 / 110.0
	if math.Abs(set.MarketFriction-wantFriction) > 0.001 {
		t.Errorf("MarketFriction = %v, want %v", set.MarketFriction, wantFriction)
	}
	// All records "+" -> 1/3 of max -> 33.33
	if math.Abs(set.TrendScore-100.0/3.0) > 0.001 {
		t.Errorf("TrendScore = %v, want 33.33", set.TrendScore)
	}
	// Per-city medians are 100, 110, 120: CV = 10/110*100
	if math.Abs(set.RegionalDisparity-10.0/110.0*100) > 0.001 {
		t.Errorf("RegionalDisparity = %v", set.RegionalDisparity)
	}
	// Volatility is caller-supplied from series data.
	if set.VolatilityPct != 0 {
		t.Errorf("VolatilityPct = %v, want 0 in bundle", set.VolatilityPct)
	}
}

func TestCompute_SkipsNonFiniteBounds(t *testing.T) {
	current := []model.PriceRecord{
		rec("bogota", math.NaN(), 100, math.NaN(), "+"),
		rec("cali", 90, 110, 130, "+"),
	}

	set := Compute(current, nil)

	// Only cali carries usable bounds: (130-90)/median(100,110)
	wantFriction := 40.0 / 105.0
	if math.Abs(set.MarketFriction-wantFriction) > 0.001 {
		t.Errorf("MarketFriction = %v, want %v", set.MarketFriction, wantFriction)
	}

	// No row with finite bounds at all falls back to zero.
	onlyBad := []model.PriceRecord{
		rec("bogota", math.NaN(), 100, math.Inf(1), "+"),
	}
	set = Compute(onlyBad, nil)
	if set.MarketFriction != 0 {
		t.Errorf("MarketFriction = %v, want 0 when no bounds are finite", set.MarketFriction)
	}
}

func TestCompute_EmptyInput(t *testing.T) {
	set := Compute(nil, nil)
	if set.InflationPct != 0 || set.RegionalDisparity != 0 ||
		set.MarketFriction != 0 || set.TrendScore != 0 {
		t.Errorf("empty input must yield zero bundle, got %+v", set)
	}
}
