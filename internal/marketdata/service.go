// Package marketdata exposes cache-backed, normalized views over the
// remote weekly price table: catalog, current/previous period rows,
// resampled historical series, food-group peers and basket valuation.
package marketdata

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"fruver-market/internal/cache"
	"fruver-market/internal/model"
	"fruver-market/internal/source"
	"fruver-market/internal/stats"
)

const (
	// pageSize caps each remote page; maxPages bounds a runaway fetch.
	pageSize = 5000
	maxPages = 500

	// The table updates at most weekly, so an hour of staleness is fine.
	defaultTTL = time.Hour

	// A product reports weekly; 500 rows of date pairs covers years.
	distinctDateLimit = 500

	globalDateLimit = 10000
)

// BasketValue is the summed per-product median price of a basket at
// one period. Products absent from the period are skipped, not zeroed.
type BasketValue struct {
	Total         float64  `json:"total"`
	ProductsFound int      `json:"products_found"`
	ProductsUsed  []string `json:"products_used"`
	StartDate     string   `json:"start_date"`
}

// BasketBars compares the basket at the latest cut of the current
// month against the latest cuts one and two months back. A missing
// month yields a zero value and empty date.
type BasketBars struct {
	Labels [3]string  `json:"labels"`
	Values [3]float64 `json:"values"`
	Dates  [3]string  `json:"dates"`
}

// Service is the data access facade. Every public method is wrapped
// through the cache with a 1-hour TTL and a key namespaced by
// operation and normalized product name; remote query failures
// propagate unmodified to the caller.
type Service struct {
	src   source.PriceSource
	cache *cache.Cache
	log   *slog.Logger
}

func NewService(src source.PriceSource, c *cache.Cache, log *slog.Logger) *Service {
	return &Service{src: src, cache: c, log: log.With("component", "marketdata")}
}

// normalizeProduct lower-cases and trims a product name. Byte-wise on
// purpose: lookup keys must match how products are stored, so no
// Unicode normalization is applied.
func normalizeProduct(p string) string {
	return strings.ToLower(strings.TrimSpace(p))
}

// fetchAll loops offset pages until a short page signals end of data
// or the page ceiling is hit.
func fetchAll[T any](load func(limit, offset int) ([]T, error)) ([]T, error) {
	var out []T
	for page := 0; page < maxPages; page++ {
		chunk, err := load(pageSize, page*pageSize)
		if err != nil {
			return nil, err
		}
		out = append(out, chunk...)
		if len(chunk) < pageSize {
			break
		}
	}
	return out, nil
}

// LatestGlobalDate returns the most recent period start across all
// products, "" when the table is empty.
func (s *Service) LatestGlobalDate(ctx context.Context) (string, error) {
	return cache.CachedAs(ctx, s.cache, "dates:global:current", defaultTTL,
		func(ctx context.Context) (string, error) {
			return s.src.LatestStartDate(ctx)
		})
}

// Catalog returns one row per product with its latest price, prior
// price and percent change, sorted by product name.
func (s *Service) Catalog(ctx context.Context) ([]model.CatalogItem, error) {
	return cache.CachedAs(ctx, s.cache, "catalog:basic", defaultTTL,
		func(ctx context.Context) ([]model.CatalogItem, error) {
			items, err := s.src.Catalog(ctx)
			if err != nil {
				return nil, err
			}
			sort.Slice(items, func(i, j int) bool { return items[i].Product < items[j].Product })
			s.log.Info("catalog loaded", "products", len(items))
			return items, nil
		})
}

// Products returns the distinct product names, derived from the
// catalog.
func (s *Service) Products(ctx context.Context) ([]string, error) {
	return cache.CachedAs(ctx, s.cache, "products:distinct", defaultTTL,
		func(ctx context.Context) ([]string, error) {
			items, err := s.Catalog(ctx)
			if err != nil {
				return nil, err
			}
			names := make([]string, len(items))
			for i, it := range items {
				names[i] = it.Product
			}
			return names, nil
		})
}

// distinctDates returns a product's reporting periods, most recent
// first.
func (s *Service) distinctDates(ctx context.Context, product string) ([]model.Period, error) {
	key := "product:" + product + ":distinct-dates"
	return cache.CachedAs(ctx, s.cache, key, defaultTTL,
		func(ctx context.Context) ([]model.Period, error) {
			return s.src.DistinctDatesByProduct(ctx, product, distinctDateLimit)
		})
}

// periodAt resolves the nth most recent period (0 = current) and
// fetches its full row set. Fewer than n+1 distinct dates is a valid
// empty result, not an error.
func (s *Service) periodAt(ctx context.Context, product string, nth int) (model.ProductPeriod, error) {
	dates, err := s.distinctDates(ctx, product)
	if err != nil {
		return model.ProductPeriod{}, err
	}
	if len(dates) <= nth {
		return model.ProductPeriod{Rows: []model.PriceRecord{}}, nil
	}
	period := dates[nth]

	rows, err := fetchAll(func(limit, offset int) ([]model.PriceRecord, error) {
		return s.src.RowsByProductDate(ctx, product, period.Start, limit, offset)
	})
	if err != nil {
		return model.ProductPeriod{}, err
	}
	return model.ProductPeriod{Start: period.Start, End: period.End, Rows: rows}, nil
}

// CurrentPeriod returns all rows of a product's most recent period.
func (s *Service) CurrentPeriod(ctx context.Context, product string) (model.ProductPeriod, error) {
	p := normalizeProduct(product)
	return cache.CachedAs(ctx, s.cache, "product:"+p+":current-period", defaultTTL,
		func(ctx context.Context) (model.ProductPeriod, error) {
			return s.periodAt(ctx, p, 0)
		})
}

// PreviousPeriod returns all rows of the period immediately before the
// most recent one, empty when only one period exists.
func (s *Service) PreviousPeriod(ctx context.Context, product string) (model.ProductPeriod, error) {
	p := normalizeProduct(product)
	return cache.CachedAs(ctx, s.cache, "product:"+p+":previous-period", defaultTTL,
		func(ctx context.Context) (model.ProductPeriod, error) {
			return s.periodAt(ctx, p, 1)
		})
}

// rawRowLimit sizes the history fetch per range. The table is weekly
// but holds many rows per week across markets, hence the multiplier.
func rawRowLimit(r model.HistoryRange) int {
	switch r {
	case model.Range1M:
		return 20 * 50
	case model.Range6M:
		return 60 * 50
	case model.Range1Y:
		return 80 * 50
	default:
		return 400 * 50
	}
}

// weeklyTarget is how many weekly points a short range keeps.
func weeklyTarget(r model.HistoryRange) int {
	switch r {
	case model.Range1M:
		return 4
	case model.Range6M:
		return 26
	default:
		return 52
	}
}

// HistoricalSeries returns a product's price history resampled to
// weekly buckets reduced to their median, or to monthly medians capped
// at 60 points for the maximal range.
func (s *Service) HistoricalSeries(ctx context.Context, product string, r model.HistoryRange) ([]model.SeriesPoint, error) {
	p := normalizeProduct(product)
	key := fmt.Sprintf("product:%s:series:%s", p, r)
	return cache.CachedAs(ctx, s.cache, key, defaultTTL,
		func(ctx context.Context) ([]model.SeriesPoint, error) {
			points, err := s.src.PriceHistory(ctx, p, rawRowLimit(r))
			if err != nil {
				return nil, err
			}

			weekly := medianByLabel(points,
				func(pt model.PricePoint) string { return pt.StartDate },
				func(pt model.PricePoint) float64 { return pt.AvgPrice })

			if r != model.RangeMax {
				target := weeklyTarget(r)
				if len(weekly) > target {
					weekly = weekly[len(weekly)-target:]
				}
				return weekly, nil
			}

			monthly := medianByLabel(weekly,
				func(pt model.SeriesPoint) string { return stats.YearMonth(pt.Label) },
				func(pt model.SeriesPoint) float64 { return pt.Value })
			if len(monthly) > 60 {
				monthly = monthly[len(monthly)-60:]
			}
			return monthly, nil
		})
}

// medianByLabel buckets items by label, reduces each bucket to the
// median of its finite values, and returns points sorted by label
// ascending (ISO dates and year-months sort correctly as strings).
func medianByLabel[T any](items []T, label func(T) string, value func(T) float64) []model.SeriesPoint {
	buckets := stats.GroupBy(items, label)
	labels := make([]string, 0, len(buckets))
	for l := range buckets {
		labels = append(labels, l)
	}
	sort.Strings(labels)

	out := make([]model.SeriesPoint, 0, len(labels))
	for _, l := range labels {
		vals := make([]float64, 0, len(buckets[l]))
		for _, it := range buckets[l] {
			if v := value(it); stats.IsFinite(v) {
				vals = append(vals, v)
			}
		}
		out = append(out, model.SeriesPoint{Label: l, Value: stats.Median(vals)})
	}
	return out
}

// SameGroupProducts returns the (product, avg price) rows of a food
// group at one period start, for substitution lookups.
func (s *Service) SameGroupProducts(ctx context.Context, groupCode int, startDate string) ([]model.GroupPrice, error) {
	key := fmt.Sprintf("group:%d:date:%s", groupCode, startDate)
	return cache.CachedAs(ctx, s.cache, key, defaultTTL,
		func(ctx context.Context) ([]model.GroupPrice, error) {
			return fetchAll(func(limit, offset int) ([]model.GroupPrice, error) {
				return s.src.GroupRowsAtDate(ctx, groupCode, startDate, limit, offset)
			})
		})
}

// basketTotalAt sums the per-product median price of the basket at one
// period start, skipping products with no positive finite price there.
func (s *Service) basketTotalAt(ctx context.Context, products []string, startDate string) (float64, []string, error) {
	rows, err := s.src.ProductAvgAtDates(ctx, products, []string{startDate})
	if err != nil {
		return 0, nil, err
	}
	byProduct := stats.GroupBy(rows, func(r model.BasketRow) string { return r.Product })

	var total float64
	var used []string
	for _, p := range products {
		vals := make([]float64, 0, len(byProduct[p]))
		for _, r := range byProduct[p] {
			if stats.IsFinitePositive(r.AvgPrice) {
				vals = append(vals, r.AvgPrice)
			}
		}
		if len(vals) == 0 {
			continue
		}
		used = append(used, p)
		total += stats.Median(vals)
	}
	return total, used, nil
}

// BasketTotal values the basket at the latest global period.
func (s *Service) BasketTotal(ctx context.Context, products []string) (BasketValue, error) {
	return cache.CachedAs(ctx, s.cache, "basket:current", defaultTTL,
		func(ctx context.Context) (BasketValue, error) {
			date, err := s.LatestGlobalDate(ctx)
			if err != nil {
				return BasketValue{}, err
			}
			if date == "" {
				return BasketValue{ProductsUsed: []string{}}, nil
			}

			normalized := normalizeBasket(products)
			total, used, err := s.basketTotalAt(ctx, normalized, date)
			if err != nil {
				return BasketValue{}, err
			}
			if used == nil {
				used = []string{}
			}
			return BasketValue{
				Total:         total,
				ProductsFound: len(used),
				ProductsUsed:  used,
				StartDate:     date,
			}, nil
		})
}

// globalDates returns every distinct period start in the table,
// ascending.
func (s *Service) globalDates(ctx context.Context) ([]string, error) {
	return cache.CachedAs(ctx, s.cache, "dates:global:all", defaultTTL,
		func(ctx context.Context) ([]string, error) {
			return s.src.DistinctStartDates(ctx, globalDateLimit, false)
		})
}

// BasketSeries values the basket at each of the last N weekly periods.
// Periods where no basket product has data are dropped.
func (s *Service) BasketSeries(ctx context.Context, products []string, weeks int) ([]model.SeriesPoint, error) {
	normalized := normalizeBasket(products)
	key := fmt.Sprintf("basket:series:%d:%d", weeks, len(normalized))
	return cache.CachedAs(ctx, s.cache, key, defaultTTL,
		func(ctx context.Context) ([]model.SeriesPoint, error) {
			if len(normalized) == 0 {
				return []model.SeriesPoint{}, nil
			}
			all, err := s.globalDates(ctx)
			if err != nil {
				return nil, err
			}
			if len(all) == 0 {
				s.log.Warn("no period dates available for basket series")
				return []model.SeriesPoint{}, nil
			}
			dates := all
			if len(dates) > weeks {
				dates = dates[len(dates)-weeks:]
			}

			rows, err := s.src.ProductAvgAtDates(ctx, normalized, dates)
			if err != nil {
				return nil, err
			}
			byDate := stats.GroupBy(rows, func(r model.BasketRow) string { return r.StartDate })

			series := make([]model.SeriesPoint, 0, len(dates))
			for _, date := range dates {
				byProduct := stats.GroupBy(byDate[date], func(r model.BasketRow) string { return r.Product })
				var total float64
				for _, p := range normalized {
					vals := make([]float64, 0, len(byProduct[p]))
					for _, r := range byProduct[p] {
						if stats.IsFinitePositive(r.AvgPrice) {
							vals = append(vals, r.AvgPrice)
						}
					}
					if len(vals) == 0 {
						continue
					}
					total += stats.Median(vals)
				}
				if total > 0 {
					series = append(series, model.SeriesPoint{Label: date, Value: math.Round(total)})
				}
			}
			return series, nil
		})
}

// BasketThreeMonthBars values the basket at the latest available cut
// of the current month and of the two months before it. A month with
// no cuts contributes a zero bar.
func (s *Service) BasketThreeMonthBars(ctx context.Context, products []string) (BasketBars, error) {
	return cache.CachedAs(ctx, s.cache, "basket:bars:3m", defaultTTL,
		func(ctx context.Context) (BasketBars, error) {
			bars := BasketBars{Labels: [3]string{"current", "previous month", "two months back"}}

			normalized := normalizeBasket(products)
			if len(normalized) == 0 {
				return bars, nil
			}

			all, err := s.globalDates(ctx)
			if err != nil {
				return bars, err
			}
			if len(all) == 0 {
				return bars, nil
			}

			current := all[len(all)-1]
			bars.Dates[0] = current

			anchor, err := time.Parse("2006-01-02", current)
			if err != nil {
				s.log.Warn("unparseable period date", "date", current)
				return bars, nil
			}
			for i := 1; i <= 2; i++ {
				first := time.Date(anchor.Year(), anchor.Month()-time.Month(i), 1, 0, 0, 0, 0, time.UTC)
				bars.Dates[i] = lastCutForMonth(all, first.Format("2006-01"))
			}

			for i, date := range bars.Dates {
				if date == "" {
					continue
				}
				total, _, err := s.basketTotalAt(ctx, normalized, date)
				if err != nil {
					return bars, err
				}
				bars.Values[i] = math.Round(total)
			}
			return bars, nil
		})
}

// lastCutForMonth scans ascending dates backward for the most recent
// date in the given year-month, "" when the month has none.
func lastCutForMonth(dates []string, yearMonth string) string {
	for i := len(dates) - 1; i >= 0; i-- {
		if strings.HasPrefix(dates[i], yearMonth) {
			return dates[i]
		}
	}
	return ""
}

func normalizeBasket(products []string) []string {
	out := make([]string, 0, len(products))
	for _, p := range products {
		if n := normalizeProduct(p); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// InvalidateProduct evicts every cached view of one product, forcing a
// re-fetch on next access.
func (s *Service) InvalidateProduct(ctx context.Context, product string) {
	s.cache.Invalidate(ctx, "product:"+normalizeProduct(product)+":")
}
