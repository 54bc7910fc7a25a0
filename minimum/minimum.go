// Package minimum keeps per-catalog-entry daily and all-time
// minimum-cost records and detects shop, cost, and record changes.
package minimum

import (
	"math"
	"time"

	"protein-hunter/models"
)

const dateLayout = "2006-01-02"

// Tracker is a pre-run snapshot of the minimum-record store: read once
// before evaluation, never refreshed mid-run. Today's upserts go to the
// store directly and do not feed back into the snapshot, so every
// catalog entry compares against the same baseline.
type Tracker struct {
	yesterday map[string]models.MinimumRecord
	allTime   map[string]models.MinimumRecord
}

// NewTracker builds the snapshot from yesterday's records (exact date
// match, read by the caller) and the full history. The all-time
// minimum per catalog id is the lowest cost across all dates; ties
// keep the first record in storage order.
func NewTracker(yesterday, history []models.MinimumRecord) *Tracker {
	t := &Tracker{
		yesterday: make(map[string]models.MinimumRecord, len(yesterday)),
		allTime:   make(map[string]models.MinimumRecord),
	}
	for _, r := range yesterday {
		if r.CatalogID == "" {
			continue
		}
		t.yesterday[r.CatalogID] = r
	}
	for _, r := range history {
		if r.CatalogID == "" {
			continue
		}
		prev, ok := t.allTime[r.CatalogID]
		if !ok || r.Cost < prev.Cost {
			t.allTime[r.CatalogID] = r
		}
	}
	return t
}

// Yesterday returns yesterday's record for the catalog id, if any.
func (t *Tracker) Yesterday(catalogID string) (models.MinimumRecord, bool) {
	r, ok := t.yesterday[catalogID]
	return r, ok
}

// AllTime returns the historical minimum for the catalog id, if any.
func (t *Tracker) AllTime(catalogID string) (models.MinimumRecord, bool) {
	r, ok := t.allTime[catalogID]
	return r, ok
}

// Flags compares today's best offer against yesterday and history.
// With no yesterday record there is no basis for shop or cost
// comparison, but the all-time low still triggers: no history to beat.
func (t *Tracker) Flags(best *models.Offer) models.ChangeFlags {
	var f models.ChangeFlags

	if y, ok := t.yesterday[best.CatalogID]; ok {
		f.ChangedShop = best.ShopName != y.Shop
		f.ChangedMinCost = !CostsEqual(best.EffectiveCost, y.Cost)
	}

	a, ok := t.allTime[best.CatalogID]
	f.NewAllTimeLow = !ok || best.EffectiveCost < a.Cost
	return f
}

// CostsEqual compares effective costs under the engine's numeric
// tolerance: absolute 1e-6 or relative 1e-9, whichever is larger.
// Avoids floating-point false positives in change detection.
func CostsEqual(a, b float64) bool {
	diff := math.Abs(a - b)
	tol := math.Max(1e-6, 1e-9*math.Max(math.Abs(a), math.Abs(b)))
	return diff <= tol
}

// WindowMin returns the lowest recorded cost for the catalog id over
// the trailing window ending at date (inclusive). ok is false when the
// window holds no record for the id.
func WindowMin(history []models.MinimumRecord, catalogID, date string, days int) (float64, bool) {
	end, err := time.Parse(dateLayout, date)
	if err != nil {
		return 0, false
	}
	start := end.AddDate(0, 0, -(days - 1))

	min := math.Inf(1)
	found := false
	for _, r := range history {
		if r.CatalogID != catalogID {
			continue
		}
		d, err := time.Parse(dateLayout, r.Date)
		if err != nil {
			continue
		}
		if d.Before(start) || d.After(end) {
			continue
		}
		if r.Cost < min {
			min = r.Cost
			found = true
		}
	}
	return min, found
}
