package api

import (
	"context"

	"fruver-market/internal/business"
	"fruver-market/internal/indicator"
	"fruver-market/internal/model"
	"fruver-market/internal/stats"
)

// ProductSummary is the full analytical view of one product: both
// weekly periods, the indicator bundle, the decision metrics and any
// substitution suggestion.
type ProductSummary struct {
	Product      string                 `json:"product"`
	Current      model.ProductPeriod    `json:"current"`
	Previous     model.ProductPeriod    `json:"previous"`
	Indicators   indicator.Set          `json:"indicators"`
	Metrics      business.Result        `json:"metrics"`
	Substitution *business.Substitution `json:"substitution,omitempty"`
}

// buildSummary assembles the analytical bundle for one product. All
// data reads go through the cached facade; the computations themselves
// are pure and synchronous.
func (s *Server) buildSummary(ctx context.Context, product string) (ProductSummary, error) {
	current, err := s.data.CurrentPeriod(ctx, product)
	if err != nil {
		return ProductSummary{}, err
	}
	previous, err := s.data.PreviousPeriod(ctx, product)
	if err != nil {
		return ProductSummary{}, err
	}

	series, err := s.data.HistoricalSeries(ctx, product, model.Range1Y)
	if err != nil {
		return ProductSummary{}, err
	}
	history := make([]float64, len(series))
	for i, pt := range series {
		history[i] = pt.Value
	}

	ind := indicator.Compute(current.Rows, previous.Rows)
	ind.VolatilityPct = indicator.HistoricalVolatility(history)

	metrics := business.Compute(
		current.Rows, previous.Rows,
		history,
		ind.VolatilityPct,
		ind.InflationPct,
		s.referenceCity,
	)

	sub, err := s.substitution(ctx, current, previous)
	if err != nil {
		return ProductSummary{}, err
	}

	return ProductSummary{
		Product:      product,
		Current:      current,
		Previous:     previous,
		Indicators:   ind,
		Metrics:      metrics,
		Substitution: sub,
	}, nil
}

// substitution evaluates the same-group alternative rule. It needs
// both periods resolved and a food group on the current rows; anything
// missing means no recommendation, not an error.
func (s *Server) substitution(ctx context.Context, current, previous model.ProductPeriod) (*business.Substitution, error) {
	if len(current.Rows) == 0 || len(previous.Rows) == 0 {
		return nil, nil
	}
	focal := current.Rows[0]

	currentPrice := medianAvg(current.Rows)
	previousPrice := medianAvg(previous.Rows)

	peers, err := s.data.SameGroupProducts(ctx, focal.GroupCode, current.Start)
	if err != nil {
		return nil, err
	}
	prevPeers, err := s.data.SameGroupProducts(ctx, focal.GroupCode, previous.Start)
	if err != nil {
		return nil, err
	}

	return business.ComputeSubstitution(
		focal.Product, focal.FoodGroup,
		currentPrice, previousPrice,
		medianPerProduct(peers),
		medianMapPerProduct(prevPeers),
		business.DefaultSubstitutionRisePct,
	), nil
}

func medianAvg(rows []model.PriceRecord) float64 {
	vals := make([]float64, 0, len(rows))
	for _, r := range rows {
		if stats.IsFinite(r.AvgPrice) {
			vals = append(vals, r.AvgPrice)
		}
	}
	return stats.Median(vals)
}

// medianPerProduct collapses raw per-market group rows to one median
// price per product, keeping first-seen product order.
func medianPerProduct(rows []model.GroupPrice) []model.GroupPrice {
	byProduct := stats.GroupBy(rows, func(r model.GroupPrice) string { return r.Product })
	var order []string
	seen := map[string]bool{}
	for _, r := range rows {
		if !seen[r.Product] {
			seen[r.Product] = true
			order = append(order, r.Product)
		}
	}

	out := make([]model.GroupPrice, 0, len(order))
	for _, p := range order {
		vals := make([]float64, 0, len(byProduct[p]))
		for _, r := range byProduct[p] {
			if stats.IsFinite(r.AvgPrice) {
				vals = append(vals, r.AvgPrice)
			}
		}
		out = append(out, model.GroupPrice{Product: p, AvgPrice: stats.Median(vals)})
	}
	return out
}

func medianMapPerProduct(rows []model.GroupPrice) map[string]float64 {
	out := map[string]float64{}
	for _, g := range medianPerProduct(rows) {
		out[g.Product] = g.AvgPrice
	}
	return out
}
