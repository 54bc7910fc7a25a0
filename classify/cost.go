package classify

// ShippingCost resolves the shipping component from the listing's
// postage flag. Flag polarity per the marketplace API: 1 means the
// listed price does NOT include shipping, so the default is added;
// 0 means shipping is already included.
func ShippingCost(postageFlag, defaultShippingYen int) int {
	if postageFlag == 1 {
		return defaultShippingYen
	}
	return 0
}

// PointRate normalizes a percent-unit point rate into 0.0..1.0 and
// applies the run-wide extra boost, clamping after each step. The API
// may report out-of-range values; clamping absorbs them.
func PointRate(percent, extra float64) float64 {
	rate := clamp01(percent / 100.0)
	return clamp01(rate + extra)
}

// EffectiveCost is the single ranking key for the whole system: yen
// per kilogram of active ingredient, lower is better. The caller
// guards the denominator; a non-positive denom makes the offer invalid
// before this is reached.
func EffectiveCost(price, shipping int, pointRate, denom float64) float64 {
	return float64(price+shipping) * (1.0 - pointRate) / denom
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
