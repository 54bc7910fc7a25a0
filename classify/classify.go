// Package classify turns raw marketplace listings into validated,
// priced offers or rejection reason codes.
package classify

import (
	"strings"

	"protein-hunter/config"
	"protein-hunter/models"
	"protein-hunter/parser"
)

// Reason is a rejection reason code. The set is closed; counts by
// reason are reported per catalog entry and never surfaced as errors.
type Reason string

const (
	ReasonMissingRequired  Reason = "missing_required_or_invalid_price"
	ReasonExcludedKeyword  Reason = "excluded_keyword"
	ReasonCapacityMismatch Reason = "capacity_mismatch"
	ReasonInvalidOffer     Reason = "invalid_offer"
	ReasonDuplicate        Reason = "duplicate"
)

// Reasons lists every rejection code in rule order.
func Reasons() []Reason {
	return []Reason{
		ReasonMissingRequired,
		ReasonExcludedKeyword,
		ReasonCapacityMismatch,
		ReasonInvalidOffer,
		ReasonDuplicate,
	}
}

// Options carries the run-wide classification constants. An explicit
// value, not ambient state, so Classify stays a pure function of its
// inputs.
type Options struct {
	ExcludeKeywords    []string
	DefaultShippingYen int
	ExtraPointRate     float64
	CapacityMatch      config.CapacityMatchMode
}

// Classifier applies the rule chain for a single catalog entry.
type Classifier struct {
	entry   models.CatalogEntry
	date    string
	opts    Options
	matcher *parser.CapacityMatcher
}

// New builds a classifier for one catalog entry and run date.
func New(entry models.CatalogEntry, date string, opts Options) *Classifier {
	c := &Classifier{entry: entry, date: date, opts: opts}
	if opts.CapacityMatch != config.CapacityMatchDisabled {
		c.matcher = parser.NewCapacityMatcher(entry.CapacityKg)
	}
	return c
}

// Classify applies the rules in order, short-circuiting on the first
// failure: required fields, exclusion keywords, capacity match, cost
// computation, duplicate key. On success the returned offer's identity
// key must be recorded by the caller; Classify never mutates seen.
func (c *Classifier) Classify(raw models.RawListing, seen map[models.OfferKey]struct{}) (*models.Offer, Reason) {
	code := strings.TrimSpace(raw.ItemCode)
	shop := strings.TrimSpace(raw.ShopName)
	name := strings.TrimSpace(raw.ItemName)

	if code == "" || shop == "" || raw.ItemPrice <= 0 {
		return nil, ReasonMissingRequired
	}

	if containsAny(name, c.opts.ExcludeKeywords) {
		return nil, ReasonExcludedKeyword
	}

	if !c.matcher.Match(parser.NormalizeName(name)) {
		return nil, ReasonCapacityMismatch
	}

	offer, ok := c.buildOffer(raw, code, shop, name)
	if !ok {
		return nil, ReasonInvalidOffer
	}

	if _, dup := seen[offer.Key()]; dup {
		return nil, ReasonDuplicate
	}

	return offer, ""
}

func (c *Classifier) buildOffer(raw models.RawListing, code, shop, name string) (*models.Offer, bool) {
	denom := c.entry.CapacityKg * c.entry.Ratio
	if denom <= 0 {
		return nil, false
	}

	shipping := ShippingCost(raw.PostageFlag, c.opts.DefaultShippingYen)
	rate := PointRate(raw.PointRate, c.opts.ExtraPointRate)
	cost := EffectiveCost(raw.ItemPrice, shipping, rate, denom)
	if cost <= 0 {
		return nil, false
	}

	return &models.Offer{
		Date:          c.date,
		CatalogID:     c.entry.ID,
		ItemCode:      code,
		ShopName:      shop,
		Price:         raw.ItemPrice,
		ShippingCost:  shipping,
		PointRate:     rate,
		EffectiveCost: cost,
		URL:           strings.TrimSpace(raw.ItemURL),
		Name:          name,
		ImageURL:      models.FirstImageURL(raw.MediumImages, raw.SmallImages, raw.Image),
	}, true
}

// containsAny is a case-sensitive substring check against the
// configured exclusion list.
func containsAny(name string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(name, k) {
			return true
		}
	}
	return false
}
