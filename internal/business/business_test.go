package business

import (
	"math"
	"testing"

	"fruver-market/internal/model"
)

func TestComputeStability(t *testing.T) {
	cases := []struct {
		name      string
		max, min  float64
		median    float64
		wantValue int
		wantRisk  string
	}{
		{"tight spread", 105, 100, 102, 5, "low"},
		{"stable", 118, 100, 100, 4, "low"},
		{"moderate", 135, 100, 100, 3, "medium"},
		{"variable", 155, 100, 100, 2, "medium"},
		{"haggling", 200, 100, 100, 1, "high"},
		{"zero median", 200, 100, 0, 5, "low"},
	}
	for _, tc := range cases {
		got := ComputeStability(tc.max, tc.min, tc.median)
		if got.Value != tc.wantValue || got.Risk != tc.wantRisk {
			t.Errorf("%s: got value=%d risk=%q, want value=%d risk=%q",
				tc.name, got.Value, got.Risk, tc.wantValue, tc.wantRisk)
		}
	}
}

func TestComputeStability_MonotonicInSpread(t *testing.T) {
	prev := 6
	for _, max := range []float64{105, 115, 135, 155, 180} {
		v := ComputeStability(max, 100, 100).Value
		if v > prev {
			t.Fatalf("stability not non-increasing: %d after %d at max=%v", v, prev, max)
		}
		prev = v
	}
}

func TestComputeVelocity(t *testing.T) {
	cases := []struct {
		cur, prev model.Trend
		wantVel   int
		wantRec   string
	}{
		{"+++", "+", 2, "accumulate"},
		{"++", "+", 1, "accumulate"},
		{"+", "+", 0, "hold"},
		{"+", "++", -1, "hold"},
		{"---", "+", -4, "liquidate"},
	}
	for _, tc := range cases {
		got := ComputeVelocity(tc.cur, tc.prev)
		if got.Velocity != tc.wantVel || got.Recommendation != tc.wantRec {
			t.Errorf("ComputeVelocity(%q,%q) = {%d %q}, want {%d %q}",
				tc.cur, tc.prev, got.Velocity, got.Recommendation, tc.wantVel, tc.wantRec)
		}
	}
}

func TestComputeArbitrage_BelowMedianIsZero(t *testing.T) {
	for _, ref := range []float64{0, 50, 99.9, 100} {
		got := ComputeArbitrage(ref, 100, DefaultTransportCostPct)
		if got.GrossPct != 0 || got.NetPct != 0 || got.Recommendation != "not recommended" {
			t.Errorf("ref=%v: got %+v, want zero margin and not recommended", ref, got)
		}
	}
	if got := ComputeArbitrage(120, 0, DefaultTransportCostPct); got.Recommendation != "not recommended" {
		t.Errorf("zero national median must not recommend, got %+v", got)
	}
}

func TestComputeArbitrage_Tiers(t *testing.T) {
	cases := []struct {
		ref  float64
		want string
	}{
		{145, "high"},            // gross 45, net 30
		{135, "medium"},          // gross 35, net 20
		{125, "low"},             // gross 25, net 10
		{115, "not recommended"}, // gross 15, net 0
	}
	for _, tc := range cases {
		got := ComputeArbitrage(tc.ref, 100, DefaultTransportCostPct)
		if got.Recommendation != tc.want {
			t.Errorf("ref=%v: recommendation %q, want %q", tc.ref, got.Recommendation, tc.want)
		}
		wantGross := (tc.ref - 100)
		if math.Abs(got.GrossPct-wantGross) > 1e-9 {
			t.Errorf("ref=%v: gross %v, want %v", tc.ref, got.GrossPct, wantGross)
		}
	}
}

func TestClassifyAlert(t *testing.T) {
	cases := []struct {
		name       string
		trend      model.Trend
		velocity   int
		volatility float64
		want       Alert
	}{
		{"strong buy", "--", -1, 50, AlertStrongBuy},
		{"strong sell", "++", 1, 50, AlertStrongSell},
		{"stable", "", 0, 5, AlertStable},
		{"flat but volatile", "", 0, 15, AlertMonitor},
		{"falling without deceleration", "---", 0, 5, AlertMonitor},
		{"buy outranks stable ordering", "---", -3, 5, AlertStrongBuy},
	}
	for _, tc := range cases {
		if got := ClassifyAlert(tc.trend, tc.velocity, tc.volatility); got != tc.want {
			t.Errorf("%s: got %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestComputeReplenishment(t *testing.T) {
	// weekly 2% -> projected 8%, then +10% safety: 1000*1.08*1.10 = 1188
	got := ComputeReplenishment(1000, 2, DefaultSafetyMarginPct)
	if got.ProjectedPrice != 1188 {
		t.Errorf("ProjectedPrice = %v, want 1188", got.ProjectedPrice)
	}
	if got.Guidance != "stable, current pricing can hold" {
		t.Errorf("guidance = %q", got.Guidance)
	}
	if g := ComputeReplenishment(1000, 3, 10).Guidance; g != "moderate volatility, monitor weekly" {
		t.Errorf("weekly 3%%: guidance = %q", g)
	}
	if g := ComputeReplenishment(1000, 6, 10).Guidance; g != "high volatility, consider repricing" {
		t.Errorf("weekly 6%%: guidance = %q", g)
	}
}

func TestProjectPrice7d(t *testing.T) {
	// Perfectly linear series with neutral trend extrapolates unadjusted.
	if got := ProjectPrice7d([]float64{100, 110, 120, 130}, model.TrendFlat); got != 140 {
		t.Errorf("linear series: got %v, want 140", got)
	}
	// Trend nudge: +++ applies 1.06x.
	if got := ProjectPrice7d([]float64{100, 110, 120, 130}, model.TrendStrongUp); got != math.Round(140*1.06) {
		t.Errorf("trend-adjusted: got %v", got)
	}
	// Fewer than 2 points return the last value.
	if got := ProjectPrice7d([]float64{123.4}, model.TrendStrongUp); got != 123 {
		t.Errorf("single point: got %v, want 123", got)
	}
	if got := ProjectPrice7d(nil, model.TrendFlat); got != 0 {
		t.Errorf("empty history: got %v, want 0", got)
	}
}

func TestComputeDistance(t *testing.T) {
	cases := []struct {
		local, national float64
		want            string
	}{
		{115, 100, "overvalued"},
		{85, 100, "undervalued"},
		{105, 100, "aligned"},
		{100, 0, "aligned"},
	}
	for _, tc := range cases {
		got := ComputeDistance(tc.local, tc.national)
		if got.Status != tc.want {
			t.Errorf("(%v,%v): status %q, want %q", tc.local, tc.national, got.Status, tc.want)
		}
	}
	d := ComputeDistance(110, 100)
	if d.Diff != 10 || math.Abs(d.DiffPct-10) > 1e-9 {
		t.Errorf("distance = %+v", d)
	}
}

func TestComputeSubstitution(t *testing.T) {
	peers := []model.GroupPrice{
		{Product: "cebolla", AvgPrice: 900},
		{Product: "zanahoria", AvgPrice: 800},
	}

	t.Run("no prior price", func(t *testing.T) {
		if got := ComputeSubstitution("papa", "tuberculos", 1250, 0, peers, nil, DefaultSubstitutionRisePct); got != nil {
			t.Errorf("got %+v, want nil", got)
		}
	})

	t.Run("rise below threshold", func(t *testing.T) {
		if got := ComputeSubstitution("papa", "tuberculos", 1100, 1000, peers, map[string]float64{"cebolla": 910}, DefaultSubstitutionRisePct); got != nil {
			t.Errorf("got %+v, want nil", got)
		}
	})

	t.Run("no peer with prior price", func(t *testing.T) {
		if got := ComputeSubstitution("papa", "tuberculos", 1250, 1000, peers, map[string]float64{}, DefaultSubstitutionRisePct); got != nil {
			t.Errorf("got %+v, want nil", got)
		}
	})

	t.Run("falling peer wins", func(t *testing.T) {
		prev := map[string]float64{
			"cebolla":   928, // fell ~3%
			"zanahoria": 700, // rose ~14%, disqualified
		}
		got := ComputeSubstitution("papa", "tuberculos", 1000, 800, peers, prev, DefaultSubstitutionRisePct)
		if got == nil {
			t.Fatal("expected a substitution")
		}
		if got.Alternative != "cebolla" {
			t.Errorf("alternative = %q, want cebolla", got.Alternative)
		}
		if math.Abs(got.SavingsPct-10) > 0.001 {
			t.Errorf("savings = %v, want ~10", got.SavingsPct)
		}
	})

	t.Run("ties keep discovery order", func(t *testing.T) {
		tied := []model.GroupPrice{
			{Product: "cebolla", AvgPrice: 900},
			{Product: "zanahoria", AvgPrice: 900},
		}
		prev := map[string]float64{"cebolla": 900, "zanahoria": 900}
		got := ComputeSubstitution("papa", "tuberculos", 1250, 1000, tied, prev, DefaultSubstitutionRisePct)
		if got == nil || got.Alternative != "cebolla" {
			t.Errorf("got %+v, want cebolla (first discovered)", got)
		}
	})
}

func TestCompute_Bundle(t *testing.T) {
	current := []model.PriceRecord{
		{Product: "papa", City: "bogota", MinPrice: 100, AvgPrice: 130, MaxPrice: 140, Trend: "++"},
		{Product: "papa", City: "cali", MinPrice: 90, AvgPrice: 100, MaxPrice: 110, Trend: "++"},
	}
	previous := []model.PriceRecord{
		{Product: "papa", City: "bogota", MinPrice: 95, AvgPrice: 120, MaxPrice: 130, Trend: "+"},
		{Product: "papa", City: "cali", MinPrice: 85, AvgPrice: 95, MaxPrice: 105, Trend: "+"},
	}
	series := []float64{100, 105, 110, 115}

	res := Compute(current, previous, series, 5, 2, "bogota")

	// National median is 115; spread (140-90)/115 ~ 0.43 -> band 2.
	if res.Stability.Value != 2 {
		t.Errorf("stability = %d, want 2", res.Stability.Value)
	}
	if res.Velocity.Velocity != 1 || res.Velocity.Recommendation != "accumulate" {
		t.Errorf("velocity = %+v", res.Velocity)
	}
	// Aggregate trend "++" rising at velocity 1 signals a sell.
	if res.Alert != AlertStrongSell {
		t.Errorf("alert = %q, want strong sell", res.Alert)
	}
	if res.Arbitrage == nil || res.Distance == nil {
		t.Fatal("reference city present, arbitrage and distance must be set")
	}
	// Bogota median 130 vs national 115: ~13% premium, overvalued.
	if res.Distance.Status != "overvalued" {
		t.Errorf("distance status = %q, want overvalued", res.Distance.Status)
	}
	if res.Projected7d == 0 {
		t.Error("projection must use the series")
	}
}

func TestCompute_NoReferenceCityRows(t *testing.T) {
	current := []model.PriceRecord{
		{Product: "papa", City: "cali", MinPrice: 90, AvgPrice: 100, MaxPrice: 110, Trend: "+"},
	}
	res := Compute(current, nil, nil, 0, 0, "bogota")
	if res.Arbitrage != nil || res.Distance != nil {
		t.Errorf("no reference rows: arbitrage=%v distance=%v, want nil", res.Arbitrage, res.Distance)
	}
}
