package pricing

import "github.com/shopspring/decimal"

const centPlaces = 2

var hundred = decimal.NewFromInt(100)

// MaxAmount is the first value a numeric(12,2) money column cannot hold.
var MaxAmount = decimal.New(1, 10)

// RoundMoney rounds half-up to cents. Amounts reaching it are never negative, so
// shopspring's half-away-from-zero rounding is half-up here.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(centPlaces)
}

// FormatPrice renders an amount the way the booking form shows it, e.g. "$65.00".
func FormatPrice(d decimal.Decimal, symbol string) string {
	if d.IsNegative() {
		return "-" + symbol + d.Neg().StringFixed(centPlaces)
	}
	return symbol + d.StringFixed(centPlaces)
}

// Percent returns base * pct / 100 without intermediate rounding.
func Percent(base, pct decimal.Decimal) decimal.Decimal {
	return base.Mul(pct).Div(hundred)
}
