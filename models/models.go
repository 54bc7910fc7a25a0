// Package models defines data structures for the price tracker.
package models

import (
	"fmt"
	"time"
)

// CatalogEntry is one tracked product definition, loaded once per run
// and read-only afterwards.
type CatalogEntry struct {
	ID         string  `json:"catalog_id"`
	Keyword    string  `json:"search_keyword"`
	Brand      string  `json:"brand"`
	CapacityKg float64 `json:"capacity_kg"`
	Ratio      float64 `json:"protein_ratio"` // 0.70 for 70%
}

// Validate reports whether the entry can be evaluated at all. Entries
// failing this are skipped with a warning, never evaluated.
func (e CatalogEntry) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("catalog entry missing id")
	}
	if e.Keyword == "" {
		return fmt.Errorf("catalog entry %s missing search keyword", e.ID)
	}
	if e.CapacityKg <= 0 {
		return fmt.Errorf("catalog entry %s has non-positive capacity %.3f", e.ID, e.CapacityKg)
	}
	if e.Ratio <= 0 {
		return fmt.Errorf("catalog entry %s has non-positive ratio %.3f", e.ID, e.Ratio)
	}
	return nil
}

// RawListing is a single marketplace search result as returned by the
// search collaborator. Image fields vary in shape across API format
// versions, hence ImageRefList.
type RawListing struct {
	ItemCode     string       `json:"itemCode"`
	ItemName     string       `json:"itemName"`
	ItemPrice    int          `json:"itemPrice"`
	ItemURL      string       `json:"itemUrl"`
	ShopName     string       `json:"shopName"`
	PostageFlag  int          `json:"postageFlag"` // 0=shipping included, 1=NOT included
	PointRate    float64      `json:"pointRate"`   // percent units
	MediumImages ImageRefList `json:"mediumImageUrls"`
	SmallImages  ImageRefList `json:"smallImageUrls"`
	Image        ImageRefList `json:"imageUrl"`
}

// Offer is a validated, priced listing. Immutable once built.
type Offer struct {
	Date          string  `json:"date" csv:"date"`
	CatalogID     string  `json:"catalog_id" csv:"catalog_id"`
	ItemCode      string  `json:"item_code" csv:"item_code"`
	ShopName      string  `json:"shop_name" csv:"shop_name"`
	Price         int     `json:"price" csv:"price"`
	ShippingCost  int     `json:"shipping_cost" csv:"shipping_cost"`
	PointRate     float64 `json:"point_rate" csv:"point_rate"` // normalized 0.0-1.0
	EffectiveCost float64 `json:"effective_cost" csv:"effective_cost"`
	URL           string  `json:"url" csv:"url"`
	Name          string  `json:"name" csv:"name"`
	ImageURL      string  `json:"image_url" csv:"image_url"`
}

// OfferKey is the identity key for in-run deduplication.
type OfferKey struct {
	Date      string
	CatalogID string
	ItemCode  string
	ShopName  string
}

// Key returns the offer's identity key.
func (o *Offer) Key() OfferKey {
	return OfferKey{Date: o.Date, CatalogID: o.CatalogID, ItemCode: o.ItemCode, ShopName: o.ShopName}
}

// MinimumRecord is the persisted cheapest-offer snapshot for one
// catalog entry on one date. One logical row per (Date, CatalogID).
type MinimumRecord struct {
	Date      string
	CatalogID string
	Cost      float64
	Shop      string
	URL       string
	UpdatedAt time.Time
}

// ChangeFlags captures day-over-day and all-time movements for one
// catalog entry.
type ChangeFlags struct {
	ChangedShop    bool
	ChangedMinCost bool
	NewAllTimeLow  bool
}

// EntrySummary records what happened to a single catalog entry during
// a run.
type EntrySummary struct {
	CatalogID  string
	Keyword    string
	Fetched    int
	Accepted   int
	Stored     int
	DropCounts map[string]int
	Flags      ChangeFlags
}

// RunResult holds the overall outcome of one scheduled run.
type RunResult struct {
	RunID          string
	Date           string
	StartTime      time.Time
	EndTime        time.Time
	AppendedRows   int
	Notifications  int
	Published      bool
	SkippedEntries int
	Entries        []EntrySummary
	Errors         []string
}
