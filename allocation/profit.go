package allocation

import "github.com/shopspring/decimal"

// ProfitGuard decides whether a transfer's margin pays for its freight.
type ProfitGuard struct {
	MarginFactor decimal.Decimal
}

// NewProfitGuard builds a guard; factors <= 0 mean 1.0.
func NewProfitGuard(factor float64) ProfitGuard {
	if factor <= 0 {
		factor = 1.0
	}
	return ProfitGuard{MarginFactor: decimal.NewFromFloat(factor)}
}

// IsProfitable reports margin >= freightCost * factor.
func (g ProfitGuard) IsProfitable(margin, freightCost decimal.Decimal) bool {
	return margin.GreaterThanOrEqual(freightCost.Mul(g.MarginFactor))
}

// LineMargin is max(0, price-cost) * qty.
func LineMargin(p Product, qty int) decimal.Decimal {
	unit := p.Price.Sub(p.Cost)
	if unit.IsNegative() {
		unit = decimal.Zero
	}
	return unit.Mul(decimal.NewFromInt(int64(qty)))
}

// LineValue is price * qty.
func LineValue(p Product, qty int) decimal.Decimal {
	return p.Price.Mul(decimal.NewFromInt(int64(qty)))
}

// ShouldShip is the economic gate for a single line. Cheap items must
// reach minLineValue on their own, and no line may be worth less than
// half of minLineValue.
func ShouldShip(price decimal.Decimal, qty int, minLineValue, minUnitPrice decimal.Decimal) bool {
	if qty <= 0 {
		return false
	}
	value := price.Mul(decimal.NewFromInt(int64(qty)))
	if price.LessThan(minUnitPrice) && value.LessThan(minLineValue) {
		return false
	}
	return !value.LessThan(minLineValue.Div(decimal.NewFromInt(2)))
}
