// Package persona maps the day's ranked offers onto ten fixed
// audience segments. Assignment is deterministic: fixed segment order,
// stable sorts, no randomness, no wall clock.
package persona

import (
	"math"
	"sort"
	"strings"

	"protein-hunter/models"
)

// CohortStats holds the cohort-level thresholds segment filters
// compare against.
type CohortStats struct {
	MedianCost  float64
	MedianPrice float64
}

// Segment is one audience profile: a candidate filter and a fallback
// ordering used when the filter yields nothing.
type Segment struct {
	Name     string
	Label    string
	Filter   func(o *models.Offer, st CohortStats) bool
	Fallback func(cohort []*models.Offer, st CohortStats) []*models.Offer
}

// Assignment is one segment's selected recommendation.
type Assignment struct {
	Segment  string
	Label    string
	Offer    *models.Offer
	Filtered bool // selected from the filter matches, not the fallback
	Repeated bool // every candidate was already used; duplication as last resort
}

// Segments returns the ten segments in their fixed declared order.
func Segments() []Segment {
	return []Segment{
		{
			Name:  "beginner",
			Label: "はじめての人",
			Filter: func(o *models.Offer, st CohortStats) bool {
				return nameHasAny(o, "ココア", "チョコ") && float64(o.Price) <= st.MedianPrice
			},
			Fallback: byPrice,
		},
		{
			Name:  "hardcore",
			Label: "ガチトレ勢",
			Filter: func(o *models.Offer, st CohortStats) bool {
				return nameHasAny(o, "WPI", "wpi", "アイソレート")
			},
			Fallback: byCost,
		},
		{
			Name:  "budget_student",
			Label: "節約学生",
			Filter: func(o *models.Offer, st CohortStats) bool {
				return o.EffectiveCost <= st.MedianCost*0.9
			},
			Fallback: byCost,
		},
		{
			Name:  "female_fitness",
			Label: "フィットネス女子",
			Filter: func(o *models.Offer, st CohortStats) bool {
				return nameHasAny(o, "ソイ", "女性", "ダイエット")
			},
			Fallback: byMedianPriceDistance,
		},
		{
			Name:  "busy_worker",
			Label: "忙しい社会人",
			Filter: func(o *models.Offer, st CohortStats) bool {
				return o.ShippingCost == 0
			},
			Fallback: byPrice,
		},
		{
			Name:  "senior_health",
			Label: "健康志向シニア",
			Filter: func(o *models.Offer, st CohortStats) bool {
				return nameHasAny(o, "無添加", "人工甘味料不使用", "国産")
			},
			Fallback: byMedianCostDistance,
		},
		{
			Name:  "flavor_hunter",
			Label: "フレーバー探索派",
			Filter: func(o *models.Offer, st CohortStats) bool {
				return nameHasAny(o, "抹茶", "バナナ", "ストロベリー", "イチゴ", "ミルクティー")
			},
			Fallback: byMedianCostDistance,
		},
		{
			Name:  "brand_loyalist",
			Label: "ブランド重視",
			Filter: func(o *models.Offer, st CohortStats) bool {
				return shopHasAny(o, "公式", "直営", "楽天24")
			},
			Fallback: byPrice,
		},
		{
			Name:  "bulk_buyer",
			Label: "まとめ買い派",
			Filter: func(o *models.Offer, st CohortStats) bool {
				return float64(o.Price) >= st.MedianPrice && nameHasAny(o, "3kg", "5kg", "10kg")
			},
			Fallback: byCost,
		},
		{
			Name:  "point_maximizer",
			Label: "ポイ活勢",
			Filter: func(o *models.Offer, st CohortStats) bool {
				return o.PointRate >= 0.05
			},
			Fallback: byCost,
		},
	}
}

// Assign selects one offer per segment from the cohort. Segments are
// processed in declared order; the used-URL set is threaded explicitly
// through each selection so the algorithm stays referentially
// transparent. An empty cohort assigns nothing. A segment is never
// left unassigned while any offer exists: when every candidate is
// already used, the first candidate is repeated as a last resort.
func Assign(cohort []*models.Offer) []Assignment {
	if len(cohort) == 0 {
		return nil
	}

	st := Stats(cohort)
	used := make(map[string]struct{}, len(cohort))
	assignments := make([]Assignment, 0, 10)

	for _, seg := range Segments() {
		a, nextUsed := selectForSegment(seg, cohort, st, used)
		used = nextUsed
		assignments = append(assignments, a)
	}
	return assignments
}

// selectForSegment builds the segment's ordered candidate list
// (filter matches first, then the fallback-sorted remainder), picks
// the first unused candidate, and returns the updated used set.
func selectForSegment(seg Segment, cohort []*models.Offer, st CohortStats, used map[string]struct{}) (Assignment, map[string]struct{}) {
	var filtered []*models.Offer
	inFiltered := make(map[*models.Offer]struct{})
	for _, o := range cohort {
		if seg.Filter(o, st) {
			filtered = append(filtered, o)
			inFiltered[o] = struct{}{}
		}
	}

	candidates := make([]*models.Offer, 0, len(cohort))
	candidates = append(candidates, filtered...)
	for _, o := range seg.Fallback(cohort, st) {
		if _, ok := inFiltered[o]; ok {
			continue
		}
		candidates = append(candidates, o)
	}

	a := Assignment{Segment: seg.Name, Label: seg.Label}
	for _, o := range candidates {
		if _, taken := used[o.URL]; taken {
			continue
		}
		a.Offer = o
		_, a.Filtered = inFiltered[o]
		break
	}
	if a.Offer == nil {
		// Duplication allowed as last resort.
		a.Offer = candidates[0]
		_, a.Filtered = inFiltered[a.Offer]
		a.Repeated = true
	}

	used[a.Offer.URL] = struct{}{}
	return a, used
}

// Stats computes the cohort medians the filters compare against.
func Stats(cohort []*models.Offer) CohortStats {
	costs := make([]float64, 0, len(cohort))
	prices := make([]float64, 0, len(cohort))
	for _, o := range cohort {
		costs = append(costs, o.EffectiveCost)
		prices = append(prices, float64(o.Price))
	}
	return CohortStats{
		MedianCost:  median(costs),
		MedianPrice: median(prices),
	}
}

func median(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func nameHasAny(o *models.Offer, keywords ...string) bool {
	for _, k := range keywords {
		if strings.Contains(o.Name, k) {
			return true
		}
	}
	return false
}

func shopHasAny(o *models.Offer, keywords ...string) bool {
	for _, k := range keywords {
		if strings.Contains(o.ShopName, k) {
			return true
		}
	}
	return false
}

func byPrice(cohort []*models.Offer, _ CohortStats) []*models.Offer {
	return sortedBy(cohort, func(a, b *models.Offer) bool { return a.Price < b.Price })
}

func byCost(cohort []*models.Offer, _ CohortStats) []*models.Offer {
	return sortedBy(cohort, func(a, b *models.Offer) bool { return a.EffectiveCost < b.EffectiveCost })
}

func byMedianCostDistance(cohort []*models.Offer, st CohortStats) []*models.Offer {
	return sortedBy(cohort, func(a, b *models.Offer) bool {
		return math.Abs(a.EffectiveCost-st.MedianCost) < math.Abs(b.EffectiveCost-st.MedianCost)
	})
}

func byMedianPriceDistance(cohort []*models.Offer, st CohortStats) []*models.Offer {
	return sortedBy(cohort, func(a, b *models.Offer) bool {
		return math.Abs(float64(a.Price)-st.MedianPrice) < math.Abs(float64(b.Price)-st.MedianPrice)
	})
}

// sortedBy returns a stably sorted copy; ties keep cohort order.
func sortedBy(cohort []*models.Offer, less func(a, b *models.Offer) bool) []*models.Offer {
	out := make([]*models.Offer, len(cohort))
	copy(out, cohort)
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}
