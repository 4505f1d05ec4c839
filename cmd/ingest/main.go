// cmd/ingest loads weekly price CSV exports into the SQLite price
// table. Re-running over the same file is safe: rows are keyed by
// (product, market, start date) and get replaced.
//
// Usage:
//
//	go run ./cmd/ingest --csv=data/prices.csv --db=data/fruver.db
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"fruver-market/internal/model"
	sqlitestore "fruver-market/internal/store/sqlite"
)

// columns maps CSV header names to record fields; all are required.
var requiredColumns = []string{
	"product", "market", "min_price", "max_price", "avg_price",
	"trend", "start_date", "end_date", "group_code", "food_group",
	"city", "department", "market_name",
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	csvPath := flag.String("csv", "", "Path to the weekly price CSV export")
	dbPath := flag.String("db", "data/fruver.db", "Path to SQLite database")
	flag.Parse()

	if *csvPath == "" {
		log.Fatal("[ingest] --csv is required")
	}

	f, err := os.Open(*csvPath)
	if err != nil {
		log.Fatalf("[ingest] open csv: %v", err)
	}
	defer f.Close()

	writer, err := sqlitestore.NewWriter(sqlitestore.WriterConfig{DBPath: *dbPath})
	if err != nil {
		log.Fatalf("[ingest] sqlite open failed: %v", err)
	}
	defer writer.Close()

	records, skipped, err := parseCSV(f)
	if err != nil {
		log.Fatalf("[ingest] parse csv: %v", err)
	}
	log.Printf("[ingest] parsed %d records (%d rows skipped)", len(records), skipped)

	if err := writer.InsertRecords(records); err != nil {
		log.Fatalf("[ingest] insert failed: %v", err)
	}

	total, err := writer.CountRows()
	if err != nil {
		log.Fatalf("[ingest] count rows: %v", err)
	}
	log.Printf("[ingest] done, table now holds %d rows", total)
}

// parseCSV reads the export, resolving columns by header name so the
// source can reorder them. Rows with unparseable prices are skipped
// and counted rather than aborting the load.
func parseCSV(r io.Reader) ([]model.PriceRecord, int, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("read header: %w", err)
	}
	idx := map[string]int{}
	for i, name := range header {
		idx[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, col := range requiredColumns {
		if _, ok := idx[col]; !ok {
			return nil, 0, fmt.Errorf("missing column %q", col)
		}
	}

	var out []model.PriceRecord
	skipped := 0
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("line %d: %w", line, err)
		}

		get := func(col string) string { return strings.TrimSpace(row[idx[col]]) }

		minP, err1 := strconv.ParseFloat(get("min_price"), 64)
		maxP, err2 := strconv.ParseFloat(get("max_price"), 64)
		avgP, err3 := strconv.ParseFloat(get("avg_price"), 64)
		if err1 != nil || err2 != nil || err3 != nil {
			log.Printf("[ingest] line %d: bad price, skipping", line)
			skipped++
			continue
		}
		groupCode, _ := strconv.Atoi(get("group_code"))

		product := strings.ToLower(get("product"))
		if product == "" || get("start_date") == "" {
			log.Printf("[ingest] line %d: missing product or start date, skipping", line)
			skipped++
			continue
		}

		out = append(out, model.PriceRecord{
			Product:    product,
			Market:     get("market"),
			MinPrice:   minP,
			MaxPrice:   maxP,
			AvgPrice:   avgP,
			Trend:      model.Trend(get("trend")),
			StartDate:  get("start_date"),
			EndDate:    get("end_date"),
			GroupCode:  groupCode,
			FoodGroup:  strings.ToLower(get("food_group")),
			City:       strings.ToLower(get("city")),
			Department: get("department"),
			MarketName: get("market_name"),
		})
	}
	return out, skipped, nil
}
