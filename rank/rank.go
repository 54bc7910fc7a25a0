// Package rank orders a catalog entry's classified offers into the
// day's leaderboard.
package rank

import (
	"sort"

	"protein-hunter/models"
)

// Rank sorts offers ascending by effective cost and truncates to the
// store limit. The sort is stable: ties keep input order, no secondary
// key. Offers beyond the limit are dropped entirely; downstream
// persistence and persona selection only ever see the returned slice.
// The best offer is index 0. The input slice is not modified.
func Rank(offers []*models.Offer, storeLimit int) []*models.Offer {
	out := make([]*models.Offer, len(offers))
	copy(out, offers)

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].EffectiveCost < out[j].EffectiveCost
	})

	if storeLimit > 0 && len(out) > storeLimit {
		out = out[:storeLimit]
	}
	return out
}
