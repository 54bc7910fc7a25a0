package report

import (
	"strings"
	"testing"
	"time"

	"protein-hunter/models"
	"protein-hunter/persona"
)

func TestClassifyLevel(t *testing.T) {
	tests := []struct {
		name string
		diff PriceDiff
		want Level
	}{
		{
			name: "thirty day low overrides thresholds",
			diff: PriceDiff{HasBaseline: true, DiffYen: -10, DiffPct: -0.5, Is30DayLow: true},
			want: LevelBigDrop,
		},
		{
			name: "no baseline reads normal",
			diff: PriceDiff{HasBaseline: false},
			want: LevelNormal,
		},
		{
			name: "six percent drop is big",
			diff: PriceDiff{HasBaseline: true, DiffYen: -120, DiffPct: -6.0},
			want: LevelBigDrop,
		},
		{
			name: "five hundred yen drop is big",
			diff: PriceDiff{HasBaseline: true, DiffYen: -500, DiffPct: -2.0},
			want: LevelBigDrop,
		},
		{
			name: "four percent drop is drop",
			diff: PriceDiff{HasBaseline: true, DiffYen: -120, DiffPct: -4.0},
			want: LevelDrop,
		},
		{
			name: "three hundred yen drop is drop",
			diff: PriceDiff{HasBaseline: true, DiffYen: -300, DiffPct: -1.5},
			want: LevelDrop,
		},
		{
			name: "one percent drop is normal",
			diff: PriceDiff{HasBaseline: true, DiffYen: -50, DiffPct: -1.0},
			want: LevelNormal,
		},
		{
			name: "price rise is normal",
			diff: PriceDiff{HasBaseline: true, DiffYen: 600, DiffPct: 8.0},
			want: LevelNormal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyLevel(tt.diff); got != tt.want {
				t.Errorf("ClassifyLevel(%+v) = %v, want %v", tt.diff, got, tt.want)
			}
		})
	}
}

func TestNewPriceDiff(t *testing.T) {
	d := NewPriceDiff(950, 1000, true, 950, true)
	if d.DiffYen != -50 {
		t.Errorf("DiffYen = %v, want -50", d.DiffYen)
	}
	if d.DiffPct != -5.0 {
		t.Errorf("DiffPct = %v, want -5", d.DiffPct)
	}
	if !d.Is30DayLow {
		t.Error("Is30DayLow = false, want true (today at window minimum)")
	}

	d = NewPriceDiff(980, 0, false, 950, true)
	if d.HasBaseline {
		t.Error("HasBaseline = true, want false")
	}
	if d.Is30DayLow {
		t.Error("Is30DayLow = true, want false (today above window minimum)")
	}
}

func TestNewPriceDiffFirstDayIsWindowLow(t *testing.T) {
	// No recorded window: today's own value is the 30-day minimum.
	d := NewPriceDiff(4267.56, 0, false, 0, false)
	if !d.Is30DayLow {
		t.Fatal("Is30DayLow = false, want true on a first-ever day")
	}
	if d.ThirtyDayLow != 4267.56 {
		t.Errorf("ThirtyDayLow = %v, want today's cost", d.ThirtyDayLow)
	}
	if got := ClassifyLevel(d); got != LevelBigDrop {
		t.Errorf("ClassifyLevel = %v, want big_drop", got)
	}
}

func TestSelectVariant(t *testing.T) {
	tests := []struct {
		name   string
		day    time.Weekday
		forced string
		want   string
	}{
		{"monday runs A", time.Monday, "", "A"},
		{"wednesday runs A", time.Wednesday, "", "A"},
		{"friday runs A", time.Friday, "", "A"},
		{"tuesday runs B", time.Tuesday, "", "B"},
		{"sunday runs B", time.Sunday, "", "B"},
		{"forced B on monday", time.Monday, "B", "B"},
		{"forced A on sunday", time.Sunday, "A", "A"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SelectVariant(tt.day, tt.forced); got.Code != tt.want {
				t.Errorf("SelectVariant(%v, %q).Code = %q, want %q", tt.day, tt.forced, got.Code, tt.want)
			}
		})
	}
}

func TestVariantCopyIsFixed(t *testing.T) {
	a := SelectVariant(time.Monday, "")
	if a.Headline == "" || a.Reason == "" || a.Push == "" {
		t.Errorf("variant A copy incomplete: %+v", a)
	}
	b := SelectVariant(time.Tuesday, "")
	if a.Headline == b.Headline {
		t.Error("variants A and B share a headline")
	}
}

func sampleOffers() []*models.Offer {
	return []*models.Offer{
		{Name: "WPC 3kg", ShopName: "ShopA", Price: 6980, ShippingCost: 0, PointRate: 0.02, EffectiveCost: 3255.5, URL: "https://a"},
		{Name: "WPI 1kg", ShopName: "ShopB", Price: 4500, ShippingCost: 800, PointRate: 0.01, EffectiveCost: 5832.0, URL: "https://b"},
		{Name: "Soy 1kg", ShopName: "ShopC", Price: 2980, ShippingCost: 800, PointRate: 0.0, EffectiveCost: 6300.0, URL: "https://c"},
		{Name: "WPC 1kg", ShopName: "ShopD", Price: 3980, ShippingCost: 800, PointRate: 0.05, EffectiveCost: 6477.0, URL: "https://d"},
	}
}

func TestRankingMarkdown(t *testing.T) {
	md := RankingMarkdown("2026-08-31", sampleOffers())

	for _, want := range []string{
		"2026-08-31",
		"🥇 第1位：**WPC 3kg**",
		"🥈 第2位：**WPI 1kg**",
		"🥉 第3位：**Soy 1kg**",
		"3,256円",
		"ShopA",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}
	if strings.Contains(md, "ShopD") {
		t.Error("markdown includes a fourth rank")
	}
}

func TestRankingMarkdownEmpty(t *testing.T) {
	md := RankingMarkdown("2026-08-31", nil)
	if !strings.Contains(md, "該当なし") {
		t.Errorf("empty markdown missing placeholder:\n%s", md)
	}
}

func TestBuildReport(t *testing.T) {
	offers := sampleOffers()
	diff := NewPriceDiff(3255.5, 3500, true, 3255.5, true)
	v := SelectVariant(time.Friday, "")
	assignments := []persona.Assignment{
		{Segment: "budget_student", Label: "節約学生", Offer: offers[0]},
	}

	r := Build("2026-08-31", offers, diff, v, assignments)
	if r.Level != LevelBigDrop {
		t.Errorf("Level = %v, want big_drop (30-day low)", r.Level)
	}
	for _, want := range []string{
		v.Headline,
		v.Push,
		"直近30日の最安値を更新",
		"タイプ別おすすめ",
		"節約学生",
	} {
		if !strings.Contains(r.Markdown, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
}

func TestBuildReportWithoutBaseline(t *testing.T) {
	diff := NewPriceDiff(3255.5, 0, false, 0, false)
	r := Build("2026-08-31", sampleOffers(), diff, SelectVariant(time.Tuesday, ""), nil)
	// First-ever day: no baseline, but the window holds only today's
	// value, which is itself a 30-day low.
	if r.Level != LevelBigDrop {
		t.Errorf("Level = %v, want big_drop", r.Level)
	}
	if strings.Contains(r.Markdown, "昨日からの値動き") {
		t.Error("markdown includes movement section without a baseline")
	}
}

func TestChangeNotification(t *testing.T) {
	entry := models.CatalogEntry{ID: "wpc-3kg", Keyword: "WPC 3kg", CapacityKg: 3, Ratio: 0.75}
	offers := sampleOffers()
	yesterday := &models.MinimumRecord{Shop: "ShopB", Cost: 3400}
	allTime := &models.MinimumRecord{Shop: "ShopB", Cost: 3300}

	title, lines := ChangeNotification(entry, offers[0], offers, yesterday, allTime,
		models.ChangeFlags{ChangedShop: true, NewAllTimeLow: true}, "2026-08-31")
	if !strings.HasPrefix(title, "【過去最安更新】") {
		t.Errorf("title = %q, want all-time-low prefix", title)
	}
	if !strings.Contains(title, "wpc-3kg") {
		t.Errorf("title = %q, missing entry id", title)
	}

	body := strings.Join(lines, "\n")
	for _, want := range []string{"ShopA", "昨日の最安: ShopB", "過去最安: ShopB", "Top3:", "3. ShopC"} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q:\n%s", want, body)
		}
	}

	title, _ = ChangeNotification(entry, offers[0], offers, yesterday, allTime,
		models.ChangeFlags{ChangedShop: true}, "2026-08-31")
	if !strings.HasPrefix(title, "【最安ショップ入れ替わり】") {
		t.Errorf("title = %q, want shop-change prefix", title)
	}
}

func TestSummaryLines(t *testing.T) {
	result := &models.RunResult{
		Date:          "2026-08-31",
		AppendedRows:  42,
		Notifications: 2,
		Published:     true,
		Errors:        []string{"search failed for soy-1kg"},
	}
	body := strings.Join(SummaryLines(result, "https://blog.hatena.ne.jp/u/b/atom/entry", 201), "\n")
	for _, want := range []string{
		"appended rows: 42",
		"blog status: OK",
		"http_status: 201",
		"search failed for soy-1kg",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("summary missing %q:\n%s", want, body)
		}
	}

	body = strings.Join(SummaryLines(&models.RunResult{Date: "2026-08-31"}, "", 0), "\n")
	if !strings.Contains(body, "(not built)") || !strings.Contains(body, "http_status: N/A") {
		t.Errorf("empty-publish summary wrong:\n%s", body)
	}
}

func TestFormatInt(t *testing.T) {
	tests := []struct {
		in   int
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{1234567, "1,234,567"},
		{-45000, "-45,000"},
	}
	for _, tt := range tests {
		if got := formatInt(tt.in); got != tt.want {
			t.Errorf("formatInt(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
