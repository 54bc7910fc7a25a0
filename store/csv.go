package store

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"protein-hunter/models"
)

// CSVWriter exports appended offers to a flat CSV file, one row per
// offer, for spreadsheet analysis outside the database.
type CSVWriter struct {
	file   *os.File
	writer *csv.Writer
	mu     sync.Mutex
}

// NewCSVWriter initialises a CSV export and writes the header row.
func NewCSVWriter(filename string) (*CSVWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create csv file: %w", err)
	}

	writer := csv.NewWriter(f)
	header := []string{"date", "catalog_id", "item_code", "shop_name", "price",
		"shipping_cost", "point_rate", "effective_cost", "url", "name"}
	if err := writer.Write(header); err != nil {
		f.Close()
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		f.Close()
		return nil, fmt.Errorf("flush csv header: %w", err)
	}

	return &CSVWriter{
		file:   f,
		writer: writer,
	}, nil
}

// Write appends offers to the CSV export.
func (cw *CSVWriter) Write(offers []*models.Offer) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	for _, o := range offers {
		record := []string{
			o.Date,
			o.CatalogID,
			o.ItemCode,
			o.ShopName,
			strconv.Itoa(o.Price),
			strconv.Itoa(o.ShippingCost),
			strconv.FormatFloat(o.PointRate, 'f', 4, 64),
			strconv.FormatFloat(o.EffectiveCost, 'f', 2, 64),
			o.URL,
			o.Name,
		}
		if err := cw.writer.Write(record); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv records: %w", err)
	}
	return nil
}

// Close flushes and closes the file handle.
func (cw *CSVWriter) Close() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv writer: %w", err)
	}
	return cw.file.Close()
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
