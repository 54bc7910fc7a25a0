// Package store persists the product catalog, the append-only offer
// history, and the per-day minimum summaries in SQLite, plus an
// optional CSV export of appended offers.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"protein-hunter/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS catalog (
	catalog_id     TEXT PRIMARY KEY,
	search_keyword TEXT NOT NULL,
	brand          TEXT NOT NULL DEFAULT '',
	capacity_kg    REAL NOT NULL,
	protein_ratio  REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS price_history (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	date           TEXT NOT NULL,
	catalog_id     TEXT NOT NULL,
	item_code      TEXT NOT NULL,
	shop_name      TEXT NOT NULL,
	price          INTEGER NOT NULL,
	shipping_cost  INTEGER NOT NULL,
	point_rate     REAL NOT NULL,
	effective_cost REAL NOT NULL,
	url            TEXT NOT NULL,
	name           TEXT NOT NULL,
	image_url      TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_price_history_date ON price_history(date, catalog_id);

CREATE TABLE IF NOT EXISTS min_summary (
	date       TEXT NOT NULL,
	catalog_id TEXT NOT NULL,
	cost       REAL NOT NULL,
	shop       TEXT NOT NULL,
	url        TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	PRIMARY KEY (date, catalog_id)
);
`

// Store wraps the SQLite database holding catalog, history, and
// minimum summaries.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the database at path and applies the
// schema.
func Open(path string) (*Store, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Catalog returns all catalog entries in id order.
func (s *Store) Catalog(ctx context.Context) ([]models.CatalogEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT catalog_id, search_keyword, brand, capacity_kg, protein_ratio
		 FROM catalog ORDER BY catalog_id`)
	if err != nil {
		return nil, fmt.Errorf("query catalog: %w", err)
	}
	defer rows.Close()

	var entries []models.CatalogEntry
	for rows.Next() {
		var e models.CatalogEntry
		if err := rows.Scan(&e.ID, &e.Keyword, &e.Brand, &e.CapacityKg, &e.Ratio); err != nil {
			return nil, fmt.Errorf("scan catalog entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// UpsertCatalogEntry inserts or replaces one catalog entry.
func (s *Store) UpsertCatalogEntry(ctx context.Context, e models.CatalogEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO catalog (catalog_id, search_keyword, brand, capacity_kg, protein_ratio)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(catalog_id) DO UPDATE SET
			search_keyword = excluded.search_keyword,
			brand          = excluded.brand,
			capacity_kg    = excluded.capacity_kg,
			protein_ratio  = excluded.protein_ratio`,
		e.ID, e.Keyword, e.Brand, e.CapacityKg, e.Ratio)
	if err != nil {
		return fmt.Errorf("upsert catalog entry %s: %w", e.ID, err)
	}
	return nil
}

// SeedCatalog upserts all entries in one transaction.
func (s *Store) SeedCatalog(ctx context.Context, entries []models.CatalogEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed: %w", err)
	}
	defer tx.Rollback()

	for _, e := range entries {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO catalog (catalog_id, search_keyword, brand, capacity_kg, protein_ratio)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT(catalog_id) DO UPDATE SET
				search_keyword = excluded.search_keyword,
				brand          = excluded.brand,
				capacity_kg    = excluded.capacity_kg,
				protein_ratio  = excluded.protein_ratio`,
			e.ID, e.Keyword, e.Brand, e.CapacityKg, e.Ratio); err != nil {
			return fmt.Errorf("seed catalog entry %s: %w", e.ID, err)
		}
	}
	return tx.Commit()
}

// AppendHistory appends the offers as new history rows in a single
// transaction and returns the number of rows written.
func (s *Store) AppendHistory(ctx context.Context, offers []*models.Offer) (int, error) {
	if len(offers) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO price_history
			(date, catalog_id, item_code, shop_name, price, shipping_cost,
			 point_rate, effective_cost, url, name, image_url)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare append: %w", err)
	}
	defer stmt.Close()

	for _, o := range offers {
		if _, err := stmt.ExecContext(ctx,
			o.Date, o.CatalogID, o.ItemCode, o.ShopName, o.Price, o.ShippingCost,
			o.PointRate, o.EffectiveCost, o.URL, o.Name, o.ImageURL); err != nil {
			return 0, fmt.Errorf("append offer %s/%s: %w", o.CatalogID, o.ItemCode, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit append: %w", err)
	}
	return len(offers), nil
}

// History returns all history rows for one catalog entry and date,
// cheapest first.
func (s *Store) History(ctx context.Context, catalogID, date string) ([]*models.Offer, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT date, catalog_id, item_code, shop_name, price, shipping_cost,
			point_rate, effective_cost, url, name, image_url
		 FROM price_history
		 WHERE catalog_id = ? AND date = ?
		 ORDER BY effective_cost`,
		catalogID, date)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var offers []*models.Offer
	for rows.Next() {
		var o models.Offer
		if err := rows.Scan(&o.Date, &o.CatalogID, &o.ItemCode, &o.ShopName, &o.Price,
			&o.ShippingCost, &o.PointRate, &o.EffectiveCost, &o.URL, &o.Name, &o.ImageURL); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		offers = append(offers, &o)
	}
	return offers, rows.Err()
}

// MinimumsByDate returns the minimum summaries recorded for one date,
// keyed by catalog id.
func (s *Store) MinimumsByDate(ctx context.Context, date string) (map[string]models.MinimumRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT date, catalog_id, cost, shop, url, updated_at
		 FROM min_summary WHERE date = ?`, date)
	if err != nil {
		return nil, fmt.Errorf("query minimums: %w", err)
	}
	defer rows.Close()

	out := make(map[string]models.MinimumRecord)
	for rows.Next() {
		rec, err := scanMinimum(rows)
		if err != nil {
			return nil, err
		}
		out[rec.CatalogID] = rec
	}
	return out, rows.Err()
}

// AllMinimums returns every minimum summary in insertion order, so the
// earliest row for a given cost wins ties downstream.
func (s *Store) AllMinimums(ctx context.Context) ([]models.MinimumRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT date, catalog_id, cost, shop, url, updated_at
		 FROM min_summary ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("query all minimums: %w", err)
	}
	defer rows.Close()

	var out []models.MinimumRecord
	for rows.Next() {
		rec, err := scanMinimum(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// UpsertMinimum writes the day's minimum for one catalog entry,
// replacing any earlier row for the same (date, catalog_id).
func (s *Store) UpsertMinimum(ctx context.Context, rec models.MinimumRecord) error {
	updatedAt := rec.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = s.now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO min_summary (date, catalog_id, cost, shop, url, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(date, catalog_id) DO UPDATE SET
			cost       = excluded.cost,
			shop       = excluded.shop,
			url        = excluded.url,
			updated_at = excluded.updated_at`,
		rec.Date, rec.CatalogID, rec.Cost, rec.Shop, rec.URL, updatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("upsert minimum %s/%s: %w", rec.Date, rec.CatalogID, err)
	}
	return nil
}

func scanMinimum(rows *sql.Rows) (models.MinimumRecord, error) {
	var rec models.MinimumRecord
	var updatedAt string
	if err := rows.Scan(&rec.Date, &rec.CatalogID, &rec.Cost, &rec.Shop, &rec.URL, &updatedAt); err != nil {
		return rec, fmt.Errorf("scan minimum row: %w", err)
	}
	if t, err := time.Parse(time.RFC3339, updatedAt); err == nil {
		rec.UpdatedAt = t
	}
	return rec, nil
}
