// Package model defines the core domain types for weekly agricultural
// price data: price records, reporting periods, and derived series points.
package model

// PriceRecord is one weekly price observation for a product at a market.
// Records are immutable once fetched; identity is (product, market, start date).
type PriceRecord struct {
	Product    string  `json:"product"`
	Market     string  `json:"market"`
	MinPrice   float64 `json:"min_price"`
	MaxPrice   float64 `json:"max_price"`
	AvgPrice   float64 `json:"avg_price"`
	Trend      Trend   `json:"trend"`
	StartDate  string  `json:"start_date"` // YYYY-MM-DD
	EndDate    string  `json:"end_date"`   // YYYY-MM-DD
	GroupCode  int     `json:"group_code"`
	FoodGroup  string  `json:"food_group"`
	City       string  `json:"city"`
	Department string  `json:"department"`
	MarketName string  `json:"market_name"`
}

// Period bounds one weekly reporting cycle.
type Period struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// ProductPeriod holds all rows for a product in one reporting period.
// An empty Start means the period does not exist (e.g. a product with a
// single period has no previous one) — that is a valid state, not an error.
type ProductPeriod struct {
	Start string        `json:"start"`
	End   string        `json:"end"`
	Rows  []PriceRecord `json:"rows"`
}

// SeriesPoint is one aggregated time bucket of a derived statistic.
type SeriesPoint struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// CatalogItem is the lightweight per-product catalog row: latest national
// price, prior price and the change between them.
type CatalogItem struct {
	Product       string   `json:"product"`
	FoodGroup     string   `json:"food_group"`
	GroupCode     int      `json:"group_code"`
	CurrentPrice  float64  `json:"current_price"`
	PreviousPrice *float64 `json:"previous_price"`
	ChangePct     *float64 `json:"change_pct"`
	StartDate     string   `json:"start_date"`
}

// GroupPrice is a (product, avg price) pair within one food group and period.
type GroupPrice struct {
	Product  string  `json:"product"`
	AvgPrice float64 `json:"avg_price"`
}

// PricePoint is one raw (period start, avg price) observation used to
// build historical series; several points share a start date when a
// product trades on multiple markets.
type PricePoint struct {
	StartDate string  `json:"start_date"`
	AvgPrice  float64 `json:"avg_price"`
}

// BasketRow is one (period start, product, avg price) observation used
// for basket valuation across several periods.
type BasketRow struct {
	StartDate string  `json:"start_date"`
	Product   string  `json:"product"`
	AvgPrice  float64 `json:"avg_price"`
}

// HistoryRange selects how much history a series query covers.
type HistoryRange string

const (
	Range1M  HistoryRange = "1m"
	Range6M  HistoryRange = "6m"
	Range1Y  HistoryRange = "1y"
	RangeMax HistoryRange = "max"
)
