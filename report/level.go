// Package report classifies the day's price movement, selects the
// marketing variant, and renders notification and blog text.
package report

// Level is the severity of the day's price movement.
type Level string

const (
	LevelBigDrop Level = "big_drop"
	LevelDrop    Level = "drop"
	LevelNormal  Level = "normal"
)

// PriceDiff describes today's best cost against yesterday's baseline
// and the trailing 30-day window.
type PriceDiff struct {
	HasBaseline  bool
	Today        float64
	Yesterday    float64
	DiffYen      float64 // signed, Today - Yesterday
	DiffPct      float64 // signed percentage
	Is30DayLow   bool
	ThirtyDayLow float64
}

// NewPriceDiff derives the diff fields from today's and yesterday's
// costs. windowMin is the recorded 30-day minimum; today's own value
// is part of the window, so a day with no recorded window is its own
// minimum and always reads as a 30-day low.
func NewPriceDiff(today float64, yesterday float64, hasBaseline bool, windowMin float64, hasWindow bool) PriceDiff {
	d := PriceDiff{HasBaseline: hasBaseline, Today: today}
	if hasBaseline {
		d.Yesterday = yesterday
		d.DiffYen = today - yesterday
		if yesterday != 0 {
			d.DiffPct = d.DiffYen / yesterday * 100.0
		}
	}
	d.ThirtyDayLow = today
	if hasWindow && windowMin < d.ThirtyDayLow {
		d.ThirtyDayLow = windowMin
	}
	d.Is30DayLow = today <= d.ThirtyDayLow
	return d
}

// ClassifyLevel maps a price diff onto a severity level. A 30-day low
// always reads as big_drop; without a day-over-day baseline the
// movement is normal; otherwise the yen and percent thresholds apply.
func ClassifyLevel(d PriceDiff) Level {
	if d.Is30DayLow {
		return LevelBigDrop
	}
	if !d.HasBaseline {
		return LevelNormal
	}
	if d.DiffPct <= -5.0 || d.DiffYen <= -500 {
		return LevelBigDrop
	}
	if d.DiffPct <= -3.0 || d.DiffYen <= -300 {
		return LevelDrop
	}
	return LevelNormal
}
