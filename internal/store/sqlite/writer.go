package sqlite

import (
	"database/sql"
	"fmt"
	"log"

	"fruver-market/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

const defaultBatchSize = 500

// WriterConfig configures the SQLite writer.
type WriterConfig struct {
	DBPath string // path to the price database file, e.g. "data/fruver.db"
}

// Writer loads weekly price exports into the fruver_data table using
// batched transactions. Used by the ingest command only; the service
// itself never writes price rows.
type Writer struct {
	db *sql.DB
}

// DB returns the underlying sql.DB for health checks.
func (w *Writer) DB() *sql.DB { return w.db }

// NewWriter opens the database with WAL mode and creates the schema.
func NewWriter(cfg WriterConfig) (*Writer, error) {
	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened database at %s", cfg.DBPath)
	return &Writer{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS fruver_data (
			product     TEXT    NOT NULL,
			market      TEXT    NOT NULL,
			min_price   REAL    NOT NULL,
			max_price   REAL    NOT NULL,
			avg_price   REAL    NOT NULL,
			trend       TEXT    NOT NULL DEFAULT '',
			start_date  TEXT    NOT NULL,
			end_date    TEXT    NOT NULL,
			group_code  INTEGER NOT NULL DEFAULT 0,
			food_group  TEXT    NOT NULL DEFAULT '',
			city        TEXT    NOT NULL DEFAULT '',
			department  TEXT    NOT NULL DEFAULT '',
			market_name TEXT    NOT NULL DEFAULT '',
			PRIMARY KEY (product, market, start_date)
		);

		CREATE INDEX IF NOT EXISTS idx_fruver_product_date
			ON fruver_data (product, start_date DESC);
		CREATE INDEX IF NOT EXISTS idx_fruver_group_date
			ON fruver_data (group_code, start_date);
		CREATE INDEX IF NOT EXISTS idx_fruver_date
			ON fruver_data (start_date);
	`)
	return err
}

// InsertRecords inserts records in batched transactions. Existing rows
// with the same (product, market, start date) identity are replaced.
func (w *Writer) InsertRecords(records []model.PriceRecord) error {
	for from := 0; from < len(records); from += defaultBatchSize {
		to := from + defaultBatchSize
		if to > len(records) {
			to = len(records)
		}
		if err := w.insertBatch(records[from:to]); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) insertBatch(records []model.PriceRecord) error {
	tx, err := w.db.Begin()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO fruver_data
			(product, market, min_price, max_price, avg_price, trend,
			 start_date, end_date, group_code, food_group, city, department, market_name)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, rec := range records {
		_, err := stmt.Exec(rec.Product, rec.Market, rec.MinPrice, rec.MaxPrice,
			rec.AvgPrice, string(rec.Trend), rec.StartDate, rec.EndDate,
			rec.GroupCode, rec.FoodGroup, rec.City, rec.Department, rec.MarketName)
		if err != nil {
			tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

// CountRows returns the total number of price rows stored.
func (w *Writer) CountRows() (int64, error) {
	var n int64
	if err := w.db.QueryRow(`SELECT COUNT(*) FROM fruver_data`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Close closes the database.
func (w *Writer) Close() error {
	return w.db.Close()
}
