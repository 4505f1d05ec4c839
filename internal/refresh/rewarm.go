// Package refresh rewarms the cache after the weekly source data drop
// and raises price alerts for products whose signal turned strong.
package refresh

import (
	"context"
	"log/slog"

	"fruver-market/internal/business"
	"fruver-market/internal/cache"
	"fruver-market/internal/indicator"
	"fruver-market/internal/marketdata"
	"fruver-market/internal/model"
	"fruver-market/internal/notification"
	"fruver-market/internal/stats"
)

// Rewarmer drops the cache and re-populates the heavy views so the
// first reader after a data drop never pays the cold-fetch cost.
type Rewarmer struct {
	data     *marketdata.Service
	cache    *cache.Cache
	basket   []string
	notifier notification.Notifier
	log      *slog.Logger
}

func NewRewarmer(data *marketdata.Service, c *cache.Cache, basket []string, n notification.Notifier, log *slog.Logger) *Rewarmer {
	return &Rewarmer{
		data:     data,
		cache:    c,
		basket:   basket,
		notifier: n,
		log:      log.With("component", "rewarm"),
	}
}

// Run clears the cache, warms the catalog and basket views, then
// scans every product for strong buy/sell signals. Per-product
// failures are logged and skipped so one bad product cannot abort the
// whole sweep.
func (r *Rewarmer) Run(ctx context.Context) error {
	r.log.Info("rewarm started")
	r.cache.Clear(ctx)

	items, err := r.data.Catalog(ctx)
	if err != nil {
		return err
	}

	if _, err := r.data.BasketTotal(ctx, r.basket); err != nil {
		r.log.Warn("basket warm failed", "err", err)
	}
	if _, err := r.data.BasketThreeMonthBars(ctx, r.basket); err != nil {
		r.log.Warn("basket bars warm failed", "err", err)
	}

	alerts := 0
	for _, it := range items {
		signal, err := r.scanProduct(ctx, it)
		if err != nil {
			r.log.Warn("product scan failed", "product", it.Product, "err", err)
			continue
		}
		if signal {
			alerts++
		}
	}
	r.log.Info("rewarm finished", "products", len(items), "alerts", alerts)
	return nil
}

// scanProduct warms one product's period views and sends an alert when
// its signal is a strong buy or sell. Reports whether an alert fired.
func (r *Rewarmer) scanProduct(ctx context.Context, it model.CatalogItem) (bool, error) {
	current, err := r.data.CurrentPeriod(ctx, it.Product)
	if err != nil {
		return false, err
	}
	previous, err := r.data.PreviousPeriod(ctx, it.Product)
	if err != nil {
		return false, err
	}
	if len(current.Rows) == 0 {
		return false, nil
	}

	// Warming the series doubles as the volatility input, so stable
	// and monitor classifications stay meaningful here.
	series, err := r.data.HistoricalSeries(ctx, it.Product, model.Range1Y)
	if err != nil {
		return false, err
	}
	history := make([]float64, len(series))
	for i, pt := range series {
		history[i] = pt.Value
	}

	ind := indicator.Compute(current.Rows, previous.Rows)
	ind.VolatilityPct = indicator.HistoricalVolatility(history)
	velocity := business.ComputeVelocity(
		aggregateTrend(current.Rows), aggregateTrend(previous.Rows))
	alert := business.ClassifyAlert(velocity.Current, velocity.Velocity, ind.VolatilityPct)

	if alert != business.AlertStrongBuy && alert != business.AlertStrongSell {
		return false, nil
	}

	msg := notification.PriceAlert(it.Product, string(alert), it.CurrentPrice, ind.InflationPct)
	if err := r.notifier.Send(ctx, msg); err != nil {
		r.log.Warn("alert delivery failed", "product", it.Product, "err", err)
	}
	return true, nil
}

func aggregateTrend(rows []model.PriceRecord) model.Trend {
	vals := make([]float64, 0, len(rows))
	for _, row := range rows {
		vals = append(vals, float64(model.TrendValue(row.Trend)))
	}
	return model.TrendFromNumeric(stats.Average(vals))
}
