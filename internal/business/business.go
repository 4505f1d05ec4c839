// Package business derives purchasing decision metrics from indicator
// outputs and raw weekly price rows. All functions are pure and define
// a zero/neutral fallback for degenerate input instead of failing.
package business

import (
	"fmt"
	"math"
	"strings"

	"fruver-market/internal/model"
	"fruver-market/internal/stats"
)

// DefaultTransportCostPct is the assumed cost of moving produce from a
// regional market to the reference city, as a percentage of price.
const DefaultTransportCostPct = 15

// DefaultSafetyMarginPct pads replenishment cost estimates against
// week-to-week price noise.
const DefaultSafetyMarginPct = 10

// DefaultSubstitutionRisePct is the period-over-period increase that
// triggers a substitution search.
const DefaultSubstitutionRisePct = 20

// StabilityIndex grades how negotiable a product's price is, from 5
// (fixed price, low risk) down to 1 (heavy haggling, high risk).
type StabilityIndex struct {
	Value       int    `json:"value"`
	Description string `json:"description"`
	Risk        string `json:"risk"`
}

// TrendVelocity is the week-over-week change in numeric trend value,
// classified into an action recommendation.
type TrendVelocity struct {
	Velocity       int         `json:"velocity"`
	Current        model.Trend `json:"current"`
	Previous       model.Trend `json:"previous"`
	Change         string      `json:"change"`
	Recommendation string      `json:"recommendation"`
}

// ArbitrageMargin compares the reference city's price against the
// national median and nets out estimated transport cost.
type ArbitrageMargin struct {
	GrossPct         float64 `json:"gross_pct"`
	NetPct           float64 `json:"net_pct"`
	ReferencePrice   float64 `json:"reference_price"`
	NationalMedian   float64 `json:"national_median"`
	TransportCostPct float64 `json:"transport_cost_pct"`
	Recommendation   string  `json:"recommendation"`
}

// Alert is a coarse buy/sell signal for a product.
type Alert string

const (
	AlertStrongBuy  Alert = "strong buy"
	AlertStrongSell Alert = "strong sell"
	AlertStable     Alert = "stable"
	AlertMonitor    Alert = "monitor"
)

// ReplenishmentCost projects what restocking at current max price will
// cost a month out, given the weekly agricultural inflation proxy.
type ReplenishmentCost struct {
	MaxPrice           float64 `json:"max_price"`
	WeeklyInflationPct float64 `json:"weekly_inflation_pct"`
	ProjectedPrice     float64 `json:"projected_price"`
	SafetyMarginPct    float64 `json:"safety_margin_pct"`
	Guidance           string  `json:"guidance"`
}

// Substitution names a cheaper same-group alternative for a product
// whose price spiked.
type Substitution struct {
	Product          string  `json:"product"`
	Alternative      string  `json:"alternative"`
	CurrentPrice     float64 `json:"current_price"`
	AlternativePrice float64 `json:"alternative_price"`
	SavingsPct       float64 `json:"savings_pct"`
	FoodGroup        string  `json:"food_group"`
	Note             string  `json:"note"`
}

// PriceDistance positions a local price against the national median.
type PriceDistance struct {
	LocalPrice    float64 `json:"local_price"`
	NationalPrice float64 `json:"national_price"`
	Diff          float64 `json:"diff"`
	DiffPct       float64 `json:"diff_pct"`
	Status        string  `json:"status"`
}

// Result bundles all business metrics computed for one product's
// current and previous weekly periods. Arbitrage and Distance are nil
// when the reference city has no rows in the current period.
type Result struct {
	Stability     StabilityIndex    `json:"stability"`
	Velocity      TrendVelocity     `json:"velocity"`
	Arbitrage     *ArbitrageMargin  `json:"arbitrage,omitempty"`
	Alert         Alert             `json:"alert"`
	Replenishment ReplenishmentCost `json:"replenishment"`
	Projected7d   float64           `json:"projected_7d"`
	Distance      *PriceDistance    `json:"distance,omitempty"`
}

// ComputeStability maps the price spread ratio (max-min over median)
// to a 1..5 band. A zero median yields the widest-confidence band 5.
func ComputeStability(maxPrice, minPrice, medianPrice float64) StabilityIndex {
	var spread float64
	if medianPrice != 0 {
		spread = (maxPrice - minPrice) / medianPrice
	}
	switch {
	case spread <= 0.1:
		return StabilityIndex{Value: 5, Description: "fixed price", Risk: "low"}
	case spread <= 0.2:
		return StabilityIndex{Value: 4, Description: "stable", Risk: "low"}
	case spread <= 0.4:
		return StabilityIndex{Value: 3, Description: "moderate", Risk: "medium"}
	case spread <= 0.6:
		return StabilityIndex{Value: 2, Description: "variable", Risk: "medium"}
	default:
		return StabilityIndex{Value: 1, Description: "heavy haggling", Risk: "high"}
	}
}

// ComputeVelocity classifies the difference between current and
// previous trend values.
func ComputeVelocity(current, previous model.Trend) TrendVelocity {
	v := model.TrendValue(current) - model.TrendValue(previous)
	tv := TrendVelocity{Velocity: v, Current: current, Previous: previous}
	switch {
	case v >= 2:
		tv.Change, tv.Recommendation = "strong acceleration", "accumulate"
	case v >= 1:
		tv.Change, tv.Recommendation = "moderate acceleration", "accumulate"
	case v == 0:
		tv.Change, tv.Recommendation = "stable", "hold"
	case v >= -1:
		tv.Change, tv.Recommendation = "moderate deceleration", "hold"
	default:
		tv.Change, tv.Recommendation = "strong deceleration", "liquidate"
	}
	return tv
}

// ComputeArbitrage returns the gross and net margin of selling at the
// reference city's price versus buying at the national median. The
// margin is defined as zero whenever the reference price does not
// exceed the national median.
func ComputeArbitrage(referencePrice, nationalMedian, transportCostPct float64) ArbitrageMargin {
	m := ArbitrageMargin{
		ReferencePrice:   referencePrice,
		NationalMedian:   nationalMedian,
		TransportCostPct: transportCostPct,
		Recommendation:   "not recommended",
	}
	if nationalMedian == 0 || referencePrice <= nationalMedian {
		return m
	}
	m.GrossPct = (referencePrice - nationalMedian) / nationalMedian * 100
	m.NetPct = m.GrossPct - transportCostPct
	switch {
	case m.NetPct > 25:
		m.Recommendation = "high"
	case m.NetPct > 15:
		m.Recommendation = "medium"
	case m.NetPct > 5:
		m.Recommendation = "low"
	}
	return m
}

// ClassifyAlert evaluates the signal rules in priority order: strong
// buy, strong sell, stable, then monitor.
func ClassifyAlert(trend model.Trend, velocity int, volatilityPct float64) Alert {
	v := model.TrendValue(trend)
	switch {
	case v <= -2 && velocity <= -1:
		return AlertStrongBuy
	case v >= 2 && velocity >= 1:
		return AlertStrongSell
	case v == 0 && volatilityPct < 10:
		return AlertStable
	default:
		return AlertMonitor
	}
}

// ComputeReplenishment projects a month of weekly inflation onto the
// current max price and adds a safety margin on top.
func ComputeReplenishment(maxPrice, weeklyInflationPct, safetyMarginPct float64) ReplenishmentCost {
	projectedInflation := weeklyInflationPct * 4
	price := maxPrice * (1 + projectedInflation/100) * (1 + safetyMarginPct/100)

	guidance := "stable, current pricing can hold"
	switch {
	case projectedInflation > 20:
		guidance = "high volatility, consider repricing"
	case projectedInflation > 10:
		guidance = "moderate volatility, monitor weekly"
	}
	return ReplenishmentCost{
		MaxPrice:           maxPrice,
		WeeklyInflationPct: weeklyInflationPct,
		ProjectedPrice:     math.Round(price),
		SafetyMarginPct:    safetyMarginPct,
		Guidance:           guidance,
	}
}

// ProjectPrice7d fits an ordinary least-squares line over the price
// history (index vs value), extrapolates one step past the end, and
// applies a small multiplicative nudge per trend step. With fewer than
// two points it returns the last known value unchanged.
func ProjectPrice7d(history []float64, trend model.Trend) float64 {
	n := len(history)
	if n < 2 {
		if n == 0 {
			return 0
		}
		return math.Round(history[n-1])
	}

	var sumX, sumY, sumXY, sumX2 float64
	for i, y := range history {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumX2 += x * x
	}
	fn := float64(n)
	var slope float64
	if denom := fn*sumX2 - sumX*sumX; denom != 0 {
		slope = (fn*sumXY - sumX*sumY) / denom
	}
	intercept := (sumY - slope*sumX) / fn

	base := slope*fn + intercept
	adjust := float64(model.TrendValue(trend)) * 0.02
	return math.Round(base * (1 + adjust))
}

// ComputeDistance classifies a local price as overvalued or
// undervalued when it sits more than 10% from the national median.
func ComputeDistance(localPrice, nationalPrice float64) PriceDistance {
	d := PriceDistance{
		LocalPrice:    localPrice,
		NationalPrice: nationalPrice,
		Diff:          localPrice - nationalPrice,
		Status:        "aligned",
	}
	if nationalPrice != 0 {
		d.DiffPct = d.Diff / nationalPrice * 100
	}
	switch {
	case d.DiffPct > 10:
		d.Status = "overvalued"
	case d.DiffPct < -10:
		d.Status = "undervalued"
	}
	return d
}

// ComputeSubstitution looks for a cheaper same-group alternative when
// the focal product rose more than risePctThreshold since the previous
// period. Peers qualify only when their own increase stayed at or
// below 5% and a prior price is known for them; the alternative with
// the highest percent savings wins, first discovered on ties. Returns
// nil when the trigger condition fails or no peer qualifies.
func ComputeSubstitution(
	product string,
	foodGroup string,
	currentPrice float64,
	previousPrice float64,
	peers []model.GroupPrice,
	peerPrevious map[string]float64,
	risePctThreshold float64,
) *Substitution {
	if previousPrice == 0 {
		return nil
	}
	rise := stats.PercentChange(currentPrice, previousPrice)
	if rise <= risePctThreshold {
		return nil
	}

	var best *Substitution
	for _, p := range peers {
		if p.Product == product {
			continue
		}
		prev, ok := peerPrevious[p.Product]
		if !ok || prev == 0 {
			continue
		}
		if stats.PercentChange(p.AvgPrice, prev) > 5 {
			continue
		}
		var savings float64
		if currentPrice != 0 {
			savings = (currentPrice - p.AvgPrice) / currentPrice * 100
		}
		if best != nil && savings <= best.SavingsPct {
			continue
		}
		best = &Substitution{
			Product:          product,
			Alternative:      p.Product,
			CurrentPrice:     currentPrice,
			AlternativePrice: p.AvgPrice,
			SavingsPct:       savings,
			FoodGroup:        foodGroup,
			Note: fmt.Sprintf("%s is expensive (up %.1f%%), consider %s (saves %.1f%%)",
				product, rise, p.Product, savings),
		}
	}
	return best
}

// Compute derives the full metric bundle for one product. The national
// median series feeds the 7-day projection (last 12 points) and the
// reference city's rows feed arbitrage and distance; both are skipped
// when the city has no rows this period.
func Compute(
	current, previous []model.PriceRecord,
	nationalSeries []float64,
	volatilityPct float64,
	weeklyInflationPct float64,
	referenceCity string,
) Result {
	curAvgs := finiteAvgs(current)
	nationalMedian := stats.Median(curAvgs)

	trendCur := aggregateTrend(current)
	trendPrev := aggregateTrend(previous)
	velocity := ComputeVelocity(trendCur, trendPrev)

	minPrice, maxPrice := priceBounds(current)

	res := Result{
		Stability:     ComputeStability(maxPrice, minPrice, nationalMedian),
		Velocity:      velocity,
		Alert:         ClassifyAlert(trendCur, velocity.Velocity, volatilityPct),
		Replenishment: ComputeReplenishment(maxPrice, weeklyInflationPct, DefaultSafetyMarginPct),
	}

	series := nationalSeries
	if len(series) > 12 {
		series = series[len(series)-12:]
	}
	res.Projected7d = ProjectPrice7d(series, trendCur)

	refPrices := cityAvgs(current, referenceCity)
	if len(refPrices) > 0 {
		refMedian := stats.Median(refPrices)
		arb := ComputeArbitrage(refMedian, nationalMedian, DefaultTransportCostPct)
		res.Arbitrage = &arb
		dist := ComputeDistance(refMedian, nationalMedian)
		res.Distance = &dist
	}
	return res
}

// aggregateTrend averages the numeric trend values of a period's rows
// and quantizes the result back into a symbol.
func aggregateTrend(rows []model.PriceRecord) model.Trend {
	vals := make([]float64, 0, len(rows))
	for _, r := range rows {
		vals = append(vals, float64(model.TrendValue(r.Trend)))
	}
	return model.TrendFromNumeric(stats.Average(vals))
}

func finiteAvgs(rows []model.PriceRecord) []float64 {
	out := make([]float64, 0, len(rows))
	for _, r := range rows {
		if stats.IsFinite(r.AvgPrice) {
			out = append(out, r.AvgPrice)
		}
	}
	return out
}

func cityAvgs(rows []model.PriceRecord, city string) []float64 {
	want := strings.ToLower(city)
	var out []float64
	for _, r := range rows {
		if strings.ToLower(r.City) == want && stats.IsFinite(r.AvgPrice) {
			out = append(out, r.AvgPrice)
		}
	}
	return out
}

func priceBounds(rows []model.PriceRecord) (min, max float64) {
	first := true
	for _, r := range rows {
		if !stats.IsFinite(r.MinPrice) || !stats.IsFinite(r.MaxPrice) {
			continue
		}
		if first {
			min, max = r.MinPrice, r.MaxPrice
			first = false
			continue
		}
		if r.MinPrice < min {
			min = r.MinPrice
		}
		if r.MaxPrice > max {
			max = r.MaxPrice
		}
	}
	return min, max
}
