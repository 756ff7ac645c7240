/*
heuristics.go - Pure allocation heuristics

PURPOSE:
  Small, explicit rules the engine applies per product or per line.
  Each is a pure function so it can be tested without a database.

RULES:
  IsBlockedBeverage  name block-list for products that never transfer
  PackSize           multi-unit pack detection from name + sku
  SeedBonus          extra seed units by category/type
  SafetyCap          per-line unit cap by cost/price tier
  MonthsOfStock      company-wide cover in 30-day months
  Throttle           demand multiplier from months of stock
  ResolveWeight      explicit -> category -> type default -> 200g

SEE ALSO:
  - engine/seed.go, engine/fairshare.go, engine/materialize.go
*/
package allocation

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CANDIDATE FILTERS
// =============================================================================

var beverageBlockList = []string{
	"coca", "pepsi", "monster", "red bull", "drink", "beverage",
	"water", "juice", "soda", "energy drink",
}

// IsBlockedBeverage reports whether any name contains a block-listed
// beverage substring, case-insensitively.
func IsBlockedBeverage(names ...string) bool {
	for _, n := range names {
		n = strings.ToLower(n)
		if n == "" {
			continue
		}
		for _, term := range beverageBlockList {
			if strings.Contains(n, term) {
				return true
			}
		}
	}
	return false
}

// =============================================================================
// PACK ROUNDING
// =============================================================================

var packPatterns = []struct {
	size int
	re   *regexp.Regexp
}{
	{5, regexp.MustCompile(`5\s?pack|5pk`)},
	{4, regexp.MustCompile(`4\s?pack|4pk`)},
	{3, regexp.MustCompile(`3\s?pack|3pk`)},
	{2, regexp.MustCompile(`2\s?pack|2pk`)},
}

// PackSize detects an N-pack from name and sku (N in 2..5). Returns 1 if none.
func PackSize(name, sku string) int {
	s := strings.ToLower(name + sku)
	for _, p := range packPatterns {
		if p.re.MatchString(s) {
			return p.size
		}
	}
	return 1
}

// RoundUpToPack rounds qty up to a multiple of pack.
func RoundUpToPack(qty, pack int) int {
	if pack <= 1 || qty <= 0 {
		return qty
	}
	return (qty + pack - 1) / pack * pack
}

// =============================================================================
// SEEDING
// =============================================================================

// SeedBonuses are extra units per seeded line by product family.
type SeedBonuses struct {
	Eliquid int `json:"eliquid" mapstructure:"eliquid"`
	Coil    int `json:"coil" mapstructure:"coil"`
	Device  int `json:"device" mapstructure:"device"`
}

// DefaultSeedBonuses are +3 eliquid, +2 coil, +1 device.
var DefaultSeedBonuses = SeedBonuses{Eliquid: 3, Coil: 2, Device: 1}

// SeedBonus returns the bonus units for a classification. Bonuses stack.
func SeedBonus(c Classification, b SeedBonuses) int {
	cat := strings.ToLower(c.CategoryCode)
	typ := strings.ToLower(c.TypeCode)
	has := func(s string) bool {
		return strings.Contains(cat, s) || strings.Contains(typ, s)
	}
	bonus := 0
	if has("eliquid") {
		bonus += b.Eliquid
	}
	if has("coil") {
		bonus += b.Coil
	}
	if has("device") {
		bonus += b.Device
	}
	return bonus
}

// =============================================================================
// CAPS & THROTTLES
// =============================================================================

var (
	d30 = decimal.NewFromInt(30)
	d80 = decimal.NewFromInt(80)
	d15 = decimal.NewFromInt(15)
	d50 = decimal.NewFromInt(50)
	d5  = decimal.NewFromInt(5)
	d20 = decimal.NewFromInt(20)
)

// SafetyCap limits units per line: expensive products move in small numbers.
//
//	cost >= 30 or price >= 80  -> 3
//	cost >= 15 or price >= 50  -> 8
//	cost >= 5  or price >= 20  -> 12
//	otherwise                  -> 16
func SafetyCap(p Product) int {
	switch {
	case p.Cost.GreaterThanOrEqual(d30) || p.Price.GreaterThanOrEqual(d80):
		return 3
	case p.Cost.GreaterThanOrEqual(d15) || p.Price.GreaterThanOrEqual(d50):
		return 8
	case p.Cost.GreaterThanOrEqual(d5) || p.Price.GreaterThanOrEqual(d20):
		return 12
	default:
		return 16
	}
}

// NoDemandMOS is reported when stock exists but nothing sells.
const NoDemandMOS = 999.0

// MonthsOfStock is onHand / (daily velocity * 30).
func MonthsOfStock(onHand int, units90d float64) float64 {
	daily := units90d / 90.0
	if daily <= 0.0001 {
		if onHand > 0 {
			return NoDemandMOS
		}
		return 0
	}
	return float64(onHand) / (daily * 30.0)
}

// Throttle scales down need when the network is already oversupplied.
// Tiers are multiples of target: <=1x full, <=2x 0.70, <=3x 0.50,
// <=4x 0.35, beyond 0.20.
func Throttle(mos, target float64) float64 {
	if target <= 0 {
		target = 3
	}
	switch {
	case mos <= target:
		return 1.0
	case mos <= 2*target:
		return 0.70
	case mos <= 3*target:
		return 0.50
	case mos <= 4*target:
		return 0.35
	default:
		return 0.20
	}
}

// ClampTurnover bounds an outlet multiplier to [lo, hi].
func ClampTurnover(m, lo, hi float64) float64 {
	m = NormalizeTurnover(m)
	if m < lo {
		return lo
	}
	if m > hi {
		return hi
	}
	return m
}

// =============================================================================
// WEIGHT RESOLUTION
// =============================================================================

// WeightSource names where a product weight came from.
type WeightSource string

const (
	WeightExplicit    WeightSource = "explicit"
	WeightCategory    WeightSource = "category"
	WeightProductType WeightSource = "product_type"
	WeightFallback    WeightSource = "fallback"
)

// FallbackWeightGrams is used when nothing else is known.
const FallbackWeightGrams = 200.0

// ResolveWeight picks a per-unit weight for a product.
func ResolveWeight(p Product, c Classification, categoryWeights map[string]float64, typeDefaults map[string]ProductTypeDefault) (float64, WeightSource) {
	if p.AvgWeightGrams > 0 {
		return p.AvgWeightGrams, WeightExplicit
	}
	if c.CategoryCode != "" {
		if w := categoryWeights[c.CategoryCode]; w > 0 {
			return w, WeightCategory
		}
	}
	for _, code := range []string{c.TypeCode, p.ProductTypeCode} {
		if code == "" {
			continue
		}
		if d, ok := typeDefaults[code]; ok && d.AvgWeightGramsDefault > 0 {
			return d.AvgWeightGramsDefault, WeightProductType
		}
	}
	return FallbackWeightGrams, WeightFallback
}
