// Package pricing derives displayed prices from stored base prices.
package pricing

import (
	"github.com/shopspring/decimal"

	"techshop/ent"
)

var (
	hundred = decimal.NewFromInt(100)

	ProductIncrease   = decimal.RequireFromString("1.10")
	ProductDecrease   = decimal.RequireFromString("0.90")
	ComponentIncrease = decimal.RequireFromString("1.05")
	ComponentDecrease = decimal.RequireFromString("0.95")
)

// BulkDiscount is the percentage set by the "apply discount" admin action.
const BulkDiscount = 10

// Clamp limits a discount percentage to [0, 100].
func Clamp(discount int) int {
	switch {
	case discount < 0:
		return 0
	case discount > 100:
		return 100
	}
	return discount
}

// FinalPrice returns base * (100 - discount) / 100 rounded to cents.
// Out of range discounts are clamped; a zero discount returns base untouched.
func FinalPrice(base ent.Money, discount int) ent.Money {
	d := Clamp(discount)
	if d == 0 {
		return base
	}

	v := base.Decimal.Mul(decimal.NewFromInt(int64(100 - d))).Div(hundred)

	return ent.NewMoney(v.RoundBank(2))
}

// Scale multiplies an amount by factor and rounds half away from zero to
// cents. The bulk price actions store exactly this value.
func Scale(m ent.Money, factor decimal.Decimal) ent.Money {
	return ent.NewMoney(m.Decimal.Mul(factor).Round(2))
}

func IsAvailable(stock int) bool {
	return stock > 0
}
