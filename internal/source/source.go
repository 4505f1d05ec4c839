// Package source defines the port to the remote price table. The SQLite
// reader implements it in production; tests substitute fakes.
package source

import (
	"context"

	"fruver-market/internal/model"
)

// PriceSource is the remote price table collaborator: range-filtered,
// offset-paginated row queries, distinct-date reads, and one
// pre-aggregated catalog query. Implementations surface query failures
// verbatim; the data facade does not interpret or wrap them.
type PriceSource interface {
	// RowsByProductDate reads one page of rows for a product at one
	// period start.
	RowsByProductDate(ctx context.Context, product, startDate string, limit, offset int) ([]model.PriceRecord, error)

	// DistinctDatesByProduct returns a product's reporting periods, most
	// recent first.
	DistinctDatesByProduct(ctx context.Context, product string, limit int) ([]model.Period, error)

	// DistinctStartDates returns distinct period starts across all
	// products.
	DistinctStartDates(ctx context.Context, limit int, descending bool) ([]string, error)

	// LatestStartDate returns the most recent period start, "" when the
	// table is empty.
	LatestStartDate(ctx context.Context) (string, error)

	// PriceHistory reads raw (start date, avg price) points for a
	// product, most recent first.
	PriceHistory(ctx context.Context, product string, limit int) ([]model.PricePoint, error)

	// GroupRowsAtDate reads one page of (product, avg price) rows for a
	// food group at one period start.
	GroupRowsAtDate(ctx context.Context, groupCode int, startDate string, limit, offset int) ([]model.GroupPrice, error)

	// ProductAvgAtDates reads basket rows for products over period starts.
	ProductAvgAtDates(ctx context.Context, products, startDates []string) ([]model.BasketRow, error)

	// Catalog returns one row per product with its latest and prior price.
	Catalog(ctx context.Context) ([]model.CatalogItem, error)
}
