package classify

import (
	"math"
	"testing"

	"protein-hunter/config"
	"protein-hunter/models"
)

func testEntry() models.CatalogEntry {
	return models.CatalogEntry{
		ID:         "wpc_choco_3kg",
		Keyword:    "ホエイプロテイン 3kg",
		Brand:      "テストブランド",
		CapacityKg: 3.0,
		Ratio:      0.75,
	}
}

func testOptions() Options {
	return Options{
		ExcludeKeywords:    []string{"シェイカー", "お試し", "プロテインバー"},
		DefaultShippingYen: 800,
		CapacityMatch:      config.CapacityMatchEnforce,
	}
}

func validListing() models.RawListing {
	return models.RawListing{
		ItemCode:    "shopA:1001",
		ItemName:    "プロテイン 3kg",
		ItemPrice:   9000,
		ItemURL:     "https://item.test/1001",
		ShopName:    "shopA",
		PostageFlag: 1,
		PointRate:   2,
	}
}

func TestClassifyReasonOrder(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.RawListing)
		want   Reason
	}{
		{
			name:   "missing item code",
			mutate: func(r *models.RawListing) { r.ItemCode = " " },
			want:   ReasonMissingRequired,
		},
		{
			name:   "missing shop",
			mutate: func(r *models.RawListing) { r.ShopName = "" },
			want:   ReasonMissingRequired,
		},
		{
			name:   "zero price",
			mutate: func(r *models.RawListing) { r.ItemPrice = 0 },
			want:   ReasonMissingRequired,
		},
		{
			name:   "negative price",
			mutate: func(r *models.RawListing) { r.ItemPrice = -500 },
			want:   ReasonMissingRequired,
		},
		{
			name:   "exclusion keyword",
			mutate: func(r *models.RawListing) { r.ItemName = "プロテイン 3kg シェイカー付き" },
			want:   ReasonExcludedKeyword,
		},
		{
			name:   "capacity mismatch",
			mutate: func(r *models.RawListing) { r.ItemName = "プロテイン 300g" },
			want:   ReasonCapacityMismatch,
		},
		{
			// Required-field failure wins even when an exclusion
			// keyword is also present: rules short-circuit in order.
			name: "missing field beats keyword",
			mutate: func(r *models.RawListing) {
				r.ItemPrice = 0
				r.ItemName = "お試し プロテイン"
			},
			want: ReasonMissingRequired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(testEntry(), "2026-08-31", testOptions())
			raw := validListing()
			tt.mutate(&raw)
			offer, reason := c.Classify(raw, map[models.OfferKey]struct{}{})
			if offer != nil {
				t.Fatalf("expected rejection, got offer %+v", offer)
			}
			if reason != tt.want {
				t.Errorf("reason = %q, want %q", reason, tt.want)
			}
		})
	}
}

func TestClassifyAcceptsAndComputesCost(t *testing.T) {
	c := New(testEntry(), "2026-08-31", testOptions())
	offer, reason := c.Classify(validListing(), map[models.OfferKey]struct{}{})
	if offer == nil {
		t.Fatalf("expected offer, got rejection %q", reason)
	}

	if offer.ShippingCost != 800 {
		t.Errorf("shipping = %d, want 800 (postage flag 1 adds default)", offer.ShippingCost)
	}
	if offer.PointRate != 0.02 {
		t.Errorf("point rate = %v, want 0.02", offer.PointRate)
	}
	// (9000+800) * 0.98 / (3.0*0.75)
	want := 9800.0 * 0.98 / 2.25
	if math.Abs(offer.EffectiveCost-want) > 1e-9 {
		t.Errorf("effective cost = %v, want %v", offer.EffectiveCost, want)
	}
	if offer.EffectiveCost <= 0 {
		t.Error("effective cost must be positive when computation succeeds")
	}
	if offer.Date != "2026-08-31" || offer.CatalogID != "wpc_choco_3kg" {
		t.Errorf("identity fields wrong: %+v", offer)
	}
}

func TestClassifyIdempotent(t *testing.T) {
	c := New(testEntry(), "2026-08-31", testOptions())
	seen := map[models.OfferKey]struct{}{}

	first, r1 := c.Classify(validListing(), seen)
	second, r2 := c.Classify(validListing(), seen)
	if r1 != "" || r2 != "" {
		t.Fatalf("unexpected rejections %q %q", r1, r2)
	}
	if *first != *second {
		t.Errorf("same input must yield identical offers: %+v vs %+v", first, second)
	}
}

func TestClassifyDuplicateKey(t *testing.T) {
	c := New(testEntry(), "2026-08-31", testOptions())
	seen := map[models.OfferKey]struct{}{}

	offer, reason := c.Classify(validListing(), seen)
	if reason != "" {
		t.Fatalf("unexpected rejection %q", reason)
	}

	// The classifier reports the key; recording it is the caller's job.
	if _, recorded := seen[offer.Key()]; recorded {
		t.Fatal("classifier must not mutate the seen set")
	}
	seen[offer.Key()] = struct{}{}

	if _, reason := c.Classify(validListing(), seen); reason != ReasonDuplicate {
		t.Errorf("reason = %q, want %q", reason, ReasonDuplicate)
	}

	// Same code, different shop is a distinct identity.
	other := validListing()
	other.ShopName = "shopB"
	if _, reason := c.Classify(other, seen); reason != "" {
		t.Errorf("different shop rejected with %q", reason)
	}
}

func TestClassifyInvalidDenominator(t *testing.T) {
	entry := testEntry()
	entry.Ratio = 0
	c := New(entry, "2026-08-31", testOptions())
	if _, reason := c.Classify(validListing(), map[models.OfferKey]struct{}{}); reason != ReasonInvalidOffer {
		t.Errorf("reason = %q, want %q", reason, ReasonInvalidOffer)
	}
}

func TestClassifyCapacityMatchDisabled(t *testing.T) {
	opts := testOptions()
	opts.CapacityMatch = config.CapacityMatchDisabled
	c := New(testEntry(), "2026-08-31", opts)

	raw := validListing()
	raw.ItemName = "プロテイン 300g" // would mismatch when enforced
	if _, reason := c.Classify(raw, map[models.OfferKey]struct{}{}); reason != "" {
		t.Errorf("disabled mode rejected with %q", reason)
	}
}

func TestClassifyFullWidthCapacity(t *testing.T) {
	entry := testEntry()
	entry.CapacityKg = 2.0
	c := New(entry, "2026-08-31", testOptions())

	raw := validListing()
	raw.ItemName = "プロテイン　２ｋｇ"
	if _, reason := c.Classify(raw, map[models.OfferKey]struct{}{}); reason != "" {
		t.Errorf("full-width capacity rejected with %q", reason)
	}
}

func TestPointRateClamping(t *testing.T) {
	tests := []struct {
		name    string
		percent float64
		extra   float64
		want    float64
	}{
		{name: "plain percent", percent: 2, extra: 0, want: 0.02},
		{name: "with boost", percent: 2, extra: 0.02, want: 0.04},
		{name: "over 100 percent clamps", percent: 250, extra: 0, want: 1.0},
		{name: "boost clamps at one", percent: 99, extra: 0.5, want: 1.0},
		{name: "negative clamps at zero", percent: -5, extra: 0, want: 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PointRate(tt.percent, tt.extra); math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("PointRate(%v, %v) = %v, want %v", tt.percent, tt.extra, got, tt.want)
			}
		})
	}
}

func TestShippingCostPolarity(t *testing.T) {
	if got := ShippingCost(1, 800); got != 800 {
		t.Errorf("flag 1 (not included) = %d, want 800", got)
	}
	if got := ShippingCost(0, 800); got != 0 {
		t.Errorf("flag 0 (included) = %d, want 0", got)
	}
}
