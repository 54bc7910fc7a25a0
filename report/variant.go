package report

import "time"

// Variant is one of two fixed marketing-copy templates. The copy is
// static lookup data and must stay verbatim; only selection is logic.
type Variant struct {
	Code     string
	Headline string
	Reason   string
	Push     string
}

var variantA = Variant{
	Code:     "A",
	Headline: "本日のタンパク質コスパ最安値をチェック",
	Reason:   "実質コスト（価格＋送料−ポイント）で毎日比較しているので、表示価格の罠にかかりません。",
	Push:     "今日の最安ショップはこちら。在庫があるうちにどうぞ。",
}

var variantB = Variant{
	Code:     "B",
	Headline: "プロテインを一番安く買える店、今日も調べました",
	Reason:   "タンパク質1kgあたりの実質コストで並べ替えると、意外な店が最安になる日があります。",
	Push:     "ランキング1位のリンクから最安値で購入できます。",
}

// SelectVariant picks the day's messaging variant: Mon/Wed/Fri run
// variant A, other days B. A non-empty forced code overrides the
// calendar rule.
func SelectVariant(day time.Weekday, forced string) Variant {
	switch forced {
	case "A":
		return variantA
	case "B":
		return variantB
	}

	switch day {
	case time.Monday, time.Wednesday, time.Friday:
		return variantA
	default:
		return variantB
	}
}
