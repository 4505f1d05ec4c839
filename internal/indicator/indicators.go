// Package indicator computes named market indicators over weekly price
// records: inflation proxy, regional disparity, market friction, trend
// score and historical volatility.
//
// All functions are pure and tolerant of empty or degenerate input,
// returning 0 instead of failing. Aggregation is median-based to stay
// robust against per-market outliers.
package indicator

import (
	"fruver-market/internal/model"
	"fruver-market/internal/stats"
)

// Set is the indicator bundle computed per product per request. It is
// derived fresh from cached rows on every computation and never cached
// itself.
type Set struct {
	InflationPct      float64 `json:"inflation_pct"`      // period-over-period, %
	RegionalDisparity float64 `json:"regional_disparity"` // coefficient of variation, %
	MarketFriction    float64 `json:"market_friction"`    // (max-min)/median ratio
	TrendScore        float64 `json:"trend_score"`        // -100..100
	VolatilityPct     float64 `json:"volatility_pct"`     // stddev of % changes
}

// InflationProxy returns the percent change from the previous to the
// current aggregate price. A zero previous price yields 0.
func InflationProxy(current, previous float64) float64 {
	if previous == 0 {
		return 0
	}
	return (current/previous - 1) * 100
}

// RegionalDisparity returns the coefficient of variation (stddev/mean,
// as a percentage) of the given prices. Zero mean yields 0.
func RegionalDisparity(prices []float64) float64 {
	mu := stats.Average(prices)
	if mu == 0 {
		return 0
	}
	sigma := stats.StdDev(prices)
	return (sigma / mu) * 100
}

// MarketFriction returns the (max-min)/median spread ratio. A zero
// median, or max below min (malformed input), yields 0.
func MarketFriction(maxPrice, minPrice, medianPrice float64) float64 {
	if medianPrice == 0 {
		return 0
	}
	if maxPrice < minPrice {
		return 0
	}
	return (maxPrice - minPrice) / medianPrice
}

// TrendScore averages the trend symbols of the given records and
// normalizes to [-100, 100], where 100 means every record reports a
// strong rise.
func TrendScore(trends []model.Trend) float64 {
	if len(trends) == 0 {
		return 0
	}
	score := 0
	for _, t := range trends {
		score += model.TrendValue(t)
	}
	maxScore := len(trends) * 3
	return float64(score) / float64(maxScore) * 100
}

// HistoricalVolatility returns the sample standard deviation of
// period-over-period percent changes in an ordered price sequence.
// Steps whose prior value is 0 are skipped. Requires at least 3 input
// points and 2 valid deltas, else 0.
func HistoricalVolatility(orderedPrices []float64) float64 {
	if len(orderedPrices) < 3 {
		return 0
	}
	var changes []float64
	for i := 1; i < len(orderedPrices); i++ {
		prev := orderedPrices[i-1]
		if prev == 0 {
			continue
		}
		changes = append(changes, (orderedPrices[i]-prev)/prev*100)
	}
	if len(changes) < 2 {
		return 0
	}
	return stats.StdDev(changes)
}

// Compute derives the aggregate indicator bundle for a product from its
// current and previous period rows. Inflation compares national medians,
// disparity runs over per-city medians, friction over the global min/max
// against the current median, and the trend score over current-period
// trend symbols. Volatility needs the historical series and is filled in
// by callers via HistoricalVolatility.
func Compute(current, previous []model.PriceRecord) Set {
	curPrices := make([]float64, 0, len(current))
	for _, rec := range current {
		curPrices = append(curPrices, rec.AvgPrice)
	}
	curPrices = stats.Finite(curPrices)

	prevPrices := make([]float64, 0, len(previous))
	for _, rec := range previous {
		prevPrices = append(prevPrices, rec.AvgPrice)
	}
	prevPrices = stats.Finite(prevPrices)

	curMedian := stats.Median(curPrices)
	prevMedian := stats.Median(prevPrices)

	byCity := stats.GroupBy(current, func(rec model.PriceRecord) string {
		if rec.City == "" {
			return "unknown"
		}
		return rec.City
	})
	cityMedians := make([]float64, 0, len(byCity))
	for _, recs := range byCity {
		prices := make([]float64, 0, len(recs))
		for _, rec := range recs {
			prices = append(prices, rec.AvgPrice)
		}
		cityMedians = append(cityMedians, stats.Median(stats.Finite(prices)))
	}

	minPrice, maxPrice := 0.0, 0.0
	seeded := false
	for _, rec := range current {
		if !stats.IsFinite(rec.MinPrice) || !stats.IsFinite(rec.MaxPrice) {
			continue
		}
		if !seeded {
			minPrice, maxPrice = rec.MinPrice, rec.MaxPrice
			seeded = true
			continue
		}
		if rec.MinPrice < minPrice {
			minPrice = rec.MinPrice
		}
		if rec.MaxPrice > maxPrice {
			maxPrice = rec.MaxPrice
		}
	}

	trends := make([]model.Trend, 0, len(current))
	for _, rec := range current {
		trends = append(trends, rec.Trend)
	}

	return Set{
		InflationPct:      InflationProxy(curMedian, prevMedian),
		RegionalDisparity: RegionalDisparity(cityMedians),
		MarketFriction:    MarketFriction(maxPrice, minPrice, curMedian),
		TrendScore:        TrendScore(trends),
	}
}
