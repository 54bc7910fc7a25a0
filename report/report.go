package report

import (
	"fmt"
	"strings"

	"protein-hunter/models"
	"protein-hunter/persona"
)

// PriceChangeReport is the ephemeral per-run report handed to the
// external publishers.
type PriceChangeReport struct {
	Date     string
	Level    Level
	Variant  Variant
	Diff     PriceDiff
	Markdown string
	Personas []persona.Assignment
}

// Build assembles the report for the day's overall best offer and
// ranked cohort.
func Build(date string, best []*models.Offer, diff PriceDiff, v Variant, assignments []persona.Assignment) *PriceChangeReport {
	r := &PriceChangeReport{
		Date:     date,
		Level:    ClassifyLevel(diff),
		Variant:  v,
		Diff:     diff,
		Personas: assignments,
	}
	r.Markdown = blogBody(r, best)
	return r
}

// RankingMarkdown renders the day's top-3 ranking as blog markdown.
func RankingMarkdown(date string, best []*models.Offer) string {
	lines := []string{
		fmt.Sprintf("## 🏆 今日のプロテイン価格ランキング – %s", date),
		"",
		"- 基準: タンパク質1kgあたり実質コスト（価格 + 送料 - ポイント）",
		"",
	}

	if len(best) == 0 {
		lines = append(lines,
			"### 本日のランキング結果",
			"- 該当なし（対象データが見つかりませんでした）",
		)
		return strings.Join(lines, "\n")
	}

	icons := []string{"🥇", "🥈", "🥉"}
	for i, o := range best {
		if i >= 3 {
			break
		}
		lines = append(lines,
			fmt.Sprintf("### %s 第%d位：**%s**", icons[i], i+1, o.Name),
			fmt.Sprintf("- 実質コスト：%s円 / タンパク質1kg", formatYen(o.EffectiveCost)),
			fmt.Sprintf("- 価格詳細：本体 %s円 / 送料 %s円 / ポイント %.1f%%", formatInt(o.Price), formatInt(o.ShippingCost), o.PointRate*100),
			fmt.Sprintf("- ショップ：%s", o.ShopName),
			fmt.Sprintf("- 🎯 リンク：👉 [楽天で商品を見る](%s)", o.URL),
			"",
		)
	}

	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func blogBody(r *PriceChangeReport, best []*models.Offer) string {
	sections := []string{
		"# " + r.Variant.Headline,
		"",
		r.Variant.Reason,
		"",
		RankingMarkdown(r.Date, best),
	}

	if r.Diff.HasBaseline {
		sections = append(sections, "", priceMovementSection(r))
	}

	if len(r.Personas) > 0 {
		sections = append(sections, "", personaSection(r.Personas))
	}

	sections = append(sections, "", "---", "", r.Variant.Push)
	return strings.TrimSpace(strings.Join(sections, "\n"))
}

func priceMovementSection(r *PriceChangeReport) string {
	lines := []string{
		"## 📈 昨日からの値動き",
		"",
		fmt.Sprintf("- 今日の最安実質コスト：%s円", formatYen(r.Diff.Today)),
		fmt.Sprintf("- 昨日の最安実質コスト：%s円", formatYen(r.Diff.Yesterday)),
		fmt.Sprintf("- 差分：%+.0f円（%+.1f%%）", r.Diff.DiffYen, r.Diff.DiffPct),
	}
	switch r.Level {
	case LevelBigDrop:
		if r.Diff.Is30DayLow {
			lines = append(lines, fmt.Sprintf("- 🔥 直近30日の最安値を更新（%s円）", formatYen(r.Diff.ThirtyDayLow)))
		} else {
			lines = append(lines, "- 🔥 大幅値下がりです")
		}
	case LevelDrop:
		lines = append(lines, "- ⤵️ 値下がりしています")
	}
	return strings.Join(lines, "\n")
}

func personaSection(assignments []persona.Assignment) string {
	lines := []string{"## 🎯 タイプ別おすすめ", ""}
	for _, a := range assignments {
		lines = append(lines, fmt.Sprintf("- **%s**：[%s](%s)（実質 %s円/kg）",
			a.Label, a.Offer.Name, a.Offer.URL, formatYen(a.Offer.EffectiveCost)))
	}
	return strings.Join(lines, "\n")
}

// ChangeNotification renders the title and body lines for a per-entry
// change alert.
func ChangeNotification(entry models.CatalogEntry, best *models.Offer, top []*models.Offer, yesterday, allTime *models.MinimumRecord, flags models.ChangeFlags, date string) (string, []string) {
	lines := []string{
		fmt.Sprintf("- canonical_id: `%s` / keyword: %s", entry.ID, entry.Keyword),
		fmt.Sprintf("- 今日の最安: **%s** / 実質(タンパク1kgあたり): **%s円**", best.ShopName, formatYen(best.EffectiveCost)),
		fmt.Sprintf("- 価格: %s円 送料加算:%s円 pt:%.1f%%", formatInt(best.Price), formatInt(best.ShippingCost), best.PointRate*100),
		fmt.Sprintf("- 商品: %s", truncateRunes(best.Name, 100)),
		fmt.Sprintf("- URL: %s", best.URL),
	}
	if yesterday != nil {
		lines = append(lines, fmt.Sprintf("- 昨日の最安: %s / %s円", yesterday.Shop, formatYen(yesterday.Cost)))
	}
	if allTime != nil {
		lines = append(lines, fmt.Sprintf("- 過去最安: %s / %s円", allTime.Shop, formatYen(allTime.Cost)))
	}

	lines = append(lines, "", "Top3:")
	for i, o := range top {
		if i >= 3 {
			break
		}
		lines = append(lines, fmt.Sprintf("%d. %s / %s円 (価格%s+送料%s, pt%.1f%%)",
			i+1, o.ShopName, formatYen(o.EffectiveCost), formatInt(o.Price), formatInt(o.ShippingCost), o.PointRate*100))
	}

	title := "【最安ショップ入れ替わり】"
	if flags.NewAllTimeLow {
		title = "【過去最安更新】"
	}
	return fmt.Sprintf("%s %s (%s)", title, entry.ID, date), lines
}

// SummaryLines renders the end-of-run summary notification body.
func SummaryLines(result *models.RunResult, publishEndpoint string, publishStatus int) []string {
	status := "NG"
	if result.Published {
		status = "OK"
	}
	if publishEndpoint == "" {
		publishEndpoint = "(not built)"
	}
	httpStatus := "N/A"
	if publishStatus != 0 {
		httpStatus = fmt.Sprintf("%d", publishStatus)
	}

	lines := []string{
		fmt.Sprintf("- date: %s", result.Date),
		fmt.Sprintf("- appended rows: %d", result.AppendedRows),
		fmt.Sprintf("- change notifications: %d", result.Notifications),
		fmt.Sprintf("- blog status: %s", status),
		fmt.Sprintf("- blog endpoint: %s", publishEndpoint),
		fmt.Sprintf("- blog http_status: %s", httpStatus),
	}
	if len(result.Errors) > 0 {
		lines = append(lines, "- errors:")
		for _, err := range result.Errors {
			lines = append(lines, "  - "+truncateRunes(err, 300))
		}
	}
	return lines
}

// formatYen renders a cost with thousands separators, no decimals.
func formatYen(v float64) string {
	return formatInt(int(v + 0.5))
}

func formatInt(v int) string {
	s := fmt.Sprintf("%d", v)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var parts []string
	for len(s) > 3 {
		parts = append([]string{s[len(s)-3:]}, parts...)
		s = s[:len(s)-3]
	}
	parts = append([]string{s}, parts...)
	out := strings.Join(parts, ",")
	if neg {
		out = "-" + out
	}
	return out
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
