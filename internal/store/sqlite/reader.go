// Package sqlite provides access to the weekly price table. The Reader is
// the system's remote price source: range-filtered, offset-paginated row
// queries plus distinct-date and catalog reads. Query failures are wrapped
// once here and pass through the data facade untouched.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"fruver-market/internal/metrics"
	"fruver-market/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// Reader provides read-only access to the fruver_data price table.
type Reader struct {
	db  *sql.DB
	met *metrics.Metrics
}

// NewReader opens a SQLite connection for reading. met may be nil.
func NewReader(dbPath string, met *metrics.Metrics) (*Reader, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open reader: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)

	log.Printf("[sqlite-reader] opened %s", dbPath)
	return &Reader{db: db, met: met}, nil
}

// DB returns the underlying sql.DB for health checks.
func (r *Reader) DB() *sql.DB { return r.db }

// observe records query latency and failures under a query name.
func (r *Reader) observe(query string, start time.Time, err error) {
	if r.met == nil {
		return
	}
	r.met.QueryDur.WithLabelValues(query).Observe(time.Since(start).Seconds())
	if err != nil {
		r.met.QueryErrs.WithLabelValues(query).Inc()
	}
}

const recordColumns = `product, market, min_price, max_price, avg_price, trend,
	start_date, end_date, group_code, food_group, city, department, market_name`

func scanRecord(rows *sql.Rows) (model.PriceRecord, error) {
	var rec model.PriceRecord
	var trend string
	err := rows.Scan(&rec.Product, &rec.Market, &rec.MinPrice, &rec.MaxPrice,
		&rec.AvgPrice, &trend, &rec.StartDate, &rec.EndDate, &rec.GroupCode,
		&rec.FoodGroup, &rec.City, &rec.Department, &rec.MarketName)
	rec.Trend = model.Trend(trend)
	return rec, err
}

// RowsByProductDate reads one page of rows for a product at one period
// start, ordered by city for stable pagination.
func (r *Reader) RowsByProductDate(ctx context.Context, product, startDate string, limit, offset int) (recs []model.PriceRecord, err error) {
	start := time.Now()
	defer func() { r.observe("rows_by_product_date", start, err) }()

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+recordColumns+`
		FROM fruver_data
		WHERE product = ? AND start_date = ?
		ORDER BY city ASC, market ASC
		LIMIT ? OFFSET ?
	`, product, startDate, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("sqlite query rows: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		rec, scanErr := scanRecord(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("sqlite scan row: %w", scanErr)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// DistinctDatesByProduct returns the distinct reporting periods for a
// product, most recent first.
func (r *Reader) DistinctDatesByProduct(ctx context.Context, product string, limit int) (periods []model.Period, err error) {
	start := time.Now()
	defer func() { r.observe("distinct_dates_by_product", start, err) }()

	rows, err := r.db.QueryContext(ctx, `
		SELECT start_date, MAX(end_date)
		FROM fruver_data
		WHERE product = ?
		GROUP BY start_date
		ORDER BY start_date DESC
		LIMIT ?
	`, product, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite query distinct dates: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p model.Period
		if scanErr := rows.Scan(&p.Start, &p.End); scanErr != nil {
			return nil, fmt.Errorf("sqlite scan distinct dates: %w", scanErr)
		}
		periods = append(periods, p)
	}
	return periods, rows.Err()
}

// DistinctStartDates returns distinct period start dates across all
// products, ascending or descending.
func (r *Reader) DistinctStartDates(ctx context.Context, limit int, descending bool) (dates []string, err error) {
	start := time.Now()
	defer func() { r.observe("distinct_start_dates", start, err) }()

	order := "ASC"
	if descending {
		order = "DESC"
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT start_date FROM fruver_data
		ORDER BY start_date `+order+`
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite query global dates: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var d string
		if scanErr := rows.Scan(&d); scanErr != nil {
			return nil, fmt.Errorf("sqlite scan global dates: %w", scanErr)
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}

// LatestStartDate returns the most recent period start in the table, or
// "" for an empty table.
func (r *Reader) LatestStartDate(ctx context.Context) (date string, err error) {
	start := time.Now()
	defer func() { r.observe("latest_start_date", start, err) }()

	var d sql.NullString
	if err := r.db.QueryRowContext(ctx, `SELECT MAX(start_date) FROM fruver_data`).Scan(&d); err != nil {
		return "", fmt.Errorf("sqlite query latest date: %w", err)
	}
	if !d.Valid {
		return "", nil
	}
	return d.String, nil
}

// PriceHistory reads raw (start date, avg price) points for a product,
// most recent first, capped at limit rows.
func (r *Reader) PriceHistory(ctx context.Context, product string, limit int) (points []model.PricePoint, err error) {
	start := time.Now()
	defer func() { r.observe("price_history", start, err) }()

	rows, err := r.db.QueryContext(ctx, `
		SELECT start_date, avg_price FROM fruver_data
		WHERE product = ?
		ORDER BY start_date DESC
		LIMIT ?
	`, product, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite query history: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p model.PricePoint
		if scanErr := rows.Scan(&p.StartDate, &p.AvgPrice); scanErr != nil {
			return nil, fmt.Errorf("sqlite scan history: %w", scanErr)
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// GroupRowsAtDate reads one page of (product, avg price) rows for a food
// group at one period start, ordered by product.
func (r *Reader) GroupRowsAtDate(ctx context.Context, groupCode int, startDate string, limit, offset int) (prices []model.GroupPrice, err error) {
	start := time.Now()
	defer func() { r.observe("group_rows_at_date", start, err) }()

	rows, err := r.db.QueryContext(ctx, `
		SELECT product, avg_price FROM fruver_data
		WHERE group_code = ? AND start_date = ?
		ORDER BY product ASC
		LIMIT ? OFFSET ?
	`, groupCode, startDate, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("sqlite query group rows: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var g model.GroupPrice
		if scanErr := rows.Scan(&g.Product, &g.AvgPrice); scanErr != nil {
			return nil, fmt.Errorf("sqlite scan group rows: %w", scanErr)
		}
		prices = append(prices, g)
	}
	return prices, rows.Err()
}

// ProductAvgAtDates reads (start date, product, avg price) rows for the
// given products over the given period starts. Used for basket valuation.
func (r *Reader) ProductAvgAtDates(ctx context.Context, products, startDates []string) (basket []model.BasketRow, err error) {
	start := time.Now()
	defer func() { r.observe("product_avg_at_dates", start, err) }()

	if len(products) == 0 || len(startDates) == 0 {
		return nil, nil
	}

	args := make([]any, 0, len(products)+len(startDates))
	for _, p := range products {
		args = append(args, p)
	}
	for _, d := range startDates {
		args = append(args, d)
	}
	query := `
		SELECT start_date, product, avg_price FROM fruver_data
		WHERE product IN (` + placeholders(len(products)) + `)
		  AND start_date IN (` + placeholders(len(startDates)) + `)
	`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite query basket rows: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var b model.BasketRow
		if scanErr := rows.Scan(&b.StartDate, &b.Product, &b.AvgPrice); scanErr != nil {
			return nil, fmt.Errorf("sqlite scan basket rows: %w", scanErr)
		}
		basket = append(basket, b)
	}
	return basket, rows.Err()
}

// Catalog returns one row per product: latest per-period price, the prior
// period's price, and the product's food group. Prices are pre-aggregated
// per (product, period) by the query; finer aggregation stays in the
// indicator engine.
func (r *Reader) Catalog(ctx context.Context) (items []model.CatalogItem, err error) {
	start := time.Now()
	defer func() { r.observe("catalog", start, err) }()

	rows, err := r.db.QueryContext(ctx, `
		WITH per_period AS (
			SELECT product,
			       MAX(food_group) AS food_group,
			       MAX(group_code) AS group_code,
			       start_date,
			       AVG(avg_price) AS price
			FROM fruver_data
			GROUP BY product, start_date
		),
		ranked AS (
			SELECT *,
			       ROW_NUMBER() OVER (PARTITION BY product ORDER BY start_date DESC) AS rn
			FROM per_period
		)
		SELECT cur.product, cur.food_group, cur.group_code, cur.start_date,
		       cur.price, prev.price
		FROM ranked cur
		LEFT JOIN ranked prev ON prev.product = cur.product AND prev.rn = 2
		WHERE cur.rn = 1
		ORDER BY cur.product ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("sqlite query catalog: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item model.CatalogItem
		var prev sql.NullFloat64
		if scanErr := rows.Scan(&item.Product, &item.FoodGroup, &item.GroupCode,
			&item.StartDate, &item.CurrentPrice, &prev); scanErr != nil {
			return nil, fmt.Errorf("sqlite scan catalog: %w", scanErr)
		}
		if prev.Valid {
			p := prev.Float64
			item.PreviousPrice = &p
			if p != 0 {
				pct := (item.CurrentPrice/p - 1) * 100
				item.ChangePct = &pct
			}
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// Close closes the reader.
func (r *Reader) Close() error {
	return r.db.Close()
}
