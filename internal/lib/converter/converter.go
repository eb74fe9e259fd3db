package converter

import "github.com/shopspring/decimal"

// Money moves through the engine as int64 cents. Handlers and events
// convert at the boundary only.

func AmountToCents(amount float64) int64 {
	return decimal.NewFromFloat(amount).Mul(decimal.NewFromInt(100)).IntPart()
}

func CentsToAmount(cents int64) float64 {
	f, _ := decimal.NewFromInt(cents).Div(decimal.NewFromInt(100)).Float64()

	return f
}

func CentsToString(cents int64) string {
	return decimal.NewFromInt(cents).Div(decimal.NewFromInt(100)).StringFixed(2)
}
