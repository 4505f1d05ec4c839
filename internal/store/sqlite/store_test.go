package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"fruver-market/internal/model"
)

func seedRecords() []model.PriceRecord {
	rec := func(product, city string, avg float64, start, end string, group int) model.PriceRecord {
		return model.PriceRecord{
			Product:    product,
			Market:     city + "-central",
			MinPrice:   avg - 100,
			MaxPrice:   avg + 100,
			AvgPrice:   avg,
			Trend:      "+",
			StartDate:  start,
			EndDate:    end,
			GroupCode:  group,
			FoodGroup:  "tuberculos",
			City:       city,
			Department: "cundinamarca",
			MarketName: city + " central",
		}
	}
	return []model.PriceRecord{
		rec("papa", "bogota", 1300, "2026-02-02", "2026-02-08", 3),
		rec("papa", "cali", 1100, "2026-02-02", "2026-02-08", 3),
		rec("papa", "bogota", 1000, "2026-01-26", "2026-02-01", 3),
		rec("yuca", "bogota", 900, "2026-02-02", "2026-02-08", 3),
	}
}

func openSeeded(t *testing.T) *Reader {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "fruver.db")

	w, err := NewWriter(WriterConfig{DBPath: dbPath})
	if err != nil {
		t.Fatal(err)
	}
	if err := w.InsertRecords(seedRecords()); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	r, err := NewReader(dbPath, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func TestWriter_ReplaceOnSameKey(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "fruver.db")
	w, err := NewWriter(WriterConfig{DBPath: dbPath})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	recs := seedRecords()
	if err := w.InsertRecords(recs); err != nil {
		t.Fatal(err)
	}
	if err := w.InsertRecords(recs); err != nil {
		t.Fatal(err)
	}
	n, err := w.CountRows()
	if err != nil {
		t.Fatal(err)
	}
	if n != int64(len(recs)) {
		t.Errorf("rows = %d after reinsert, want %d", n, len(recs))
	}
}

func TestReader_RowsByProductDate(t *testing.T) {
	r := openSeeded(t)

	rows, err := r.RowsByProductDate(context.Background(), "papa", "2026-02-02", 100, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	// Ordered by city.
	if rows[0].City != "bogota" || rows[1].City != "cali" {
		t.Errorf("order = %s, %s", rows[0].City, rows[1].City)
	}
	if rows[0].Trend != "+" || rows[0].FoodGroup != "tuberculos" {
		t.Errorf("row = %+v", rows[0])
	}
}

func TestReader_DistinctDatesByProduct(t *testing.T) {
	r := openSeeded(t)

	periods, err := r.DistinctDatesByProduct(context.Background(), "papa", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(periods) != 2 {
		t.Fatalf("periods = %d, want 2", len(periods))
	}
	if periods[0].Start != "2026-02-02" || periods[1].Start != "2026-01-26" {
		t.Errorf("periods not descending: %+v", periods)
	}
	if periods[0].End != "2026-02-08" {
		t.Errorf("end date = %q", periods[0].End)
	}
}

func TestReader_LatestStartDate(t *testing.T) {
	r := openSeeded(t)

	date, err := r.LatestStartDate(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if date != "2026-02-02" {
		t.Errorf("latest = %q", date)
	}
}

func TestReader_LatestStartDate_EmptyTable(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "fruver.db")
	w, err := NewWriter(WriterConfig{DBPath: dbPath})
	if err != nil {
		t.Fatal(err)
	}
	w.Close()

	r, err := NewReader(dbPath, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	date, err := r.LatestStartDate(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if date != "" {
		t.Errorf("latest = %q, want empty", date)
	}
}

func TestReader_PriceHistory(t *testing.T) {
	r := openSeeded(t)

	points, err := r.PriceHistory(context.Background(), "papa", 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(points) != 3 {
		t.Fatalf("points = %d, want 3", len(points))
	}
	// Most recent first.
	if points[0].StartDate != "2026-02-02" {
		t.Errorf("points = %+v", points)
	}
}

func TestReader_GroupRowsAtDate(t *testing.T) {
	r := openSeeded(t)

	rows, err := r.GroupRowsAtDate(context.Background(), 3, "2026-02-02", 100, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3 (papa x2 + yuca)", len(rows))
	}
}

func TestReader_ProductAvgAtDates(t *testing.T) {
	r := openSeeded(t)

	rows, err := r.ProductAvgAtDates(context.Background(),
		[]string{"papa", "yuca"}, []string{"2026-02-02"})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	for _, row := range rows {
		if row.StartDate != "2026-02-02" {
			t.Errorf("row outside requested date: %+v", row)
		}
	}
}

func TestReader_Catalog(t *testing.T) {
	r := openSeeded(t)

	items, err := r.Catalog(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Fatalf("items = %d, want 2", len(items))
	}

	papa := items[0]
	if papa.Product != "papa" {
		t.Fatalf("order = %q first", papa.Product)
	}
	// Latest period price is the mean of 1300 and 1100.
	if papa.CurrentPrice != 1200 {
		t.Errorf("current = %v, want 1200", papa.CurrentPrice)
	}
	if papa.PreviousPrice == nil || *papa.PreviousPrice != 1000 {
		t.Errorf("previous = %v, want 1000", papa.PreviousPrice)
	}
	if papa.ChangePct == nil || *papa.ChangePct < 19.9 || *papa.ChangePct > 20.1 {
		t.Errorf("change = %v, want ~20", papa.ChangePct)
	}

	yuca := items[1]
	if yuca.PreviousPrice != nil || yuca.ChangePct != nil {
		t.Errorf("yuca has only one period: %+v", yuca)
	}
}
