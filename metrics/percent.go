package metrics

import (
	"github.com/shopspring/decimal"
)

var (
	hundred      = decimal.NewFromInt(100)
	two          = decimal.NewFromInt(2)
	weeksPerYear = decimal.NewFromInt(52)
)

// Percent returns part/whole*100 rounded half-to-even to one decimal.
// A zero whole yields 0.
func Percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	p := decimal.NewFromInt(int64(part)).Mul(hundred).Div(decimal.NewFromInt(int64(whole)))
	return p.RoundBank(1).InexactFloat64()
}

// YTDPercentage maps an ISO week to whole-year progress. The value is rounded
// to an integer, and an odd result is replaced by round(p/2)*2.
func YTDPercentage(isoWeek int) int {
	p := decimal.NewFromInt(int64(isoWeek)).Mul(hundred).Div(weeksPerYear)
	r := p.RoundBank(0)
	if r.IntPart()%2 != 0 {
		r = p.Div(two).RoundBank(0).Mul(two)
	}
	return int(r.IntPart())
}
