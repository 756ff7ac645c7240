package allocation

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// FREIGHT ENGINE - Weight band lookup
// =============================================================================

// FreightQuote is the container and cost chosen for a shipment.
type FreightQuote struct {
	Container string          `json:"container"`
	Cost      decimal.Decimal `json:"cost"`
}

// FreightEngine picks a container for a shipment weight.
type FreightEngine struct {
	rules []FreightRule
}

// NewFreightEngine sorts a copy of rules ascending by max weight.
// An empty rule set is a configuration error.
func NewFreightEngine(rules []FreightRule) (*FreightEngine, error) {
	if len(rules) == 0 {
		return nil, NewConfigurationError(ErrNoFreightRules, "freight_rules is empty")
	}
	sorted := append([]FreightRule(nil), rules...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].MaxWeightGrams < sorted[j].MaxWeightGrams
	})
	return &FreightEngine{rules: sorted}, nil
}

// Rules returns the ordered rule set.
func (f *FreightEngine) Rules() []FreightRule {
	return append([]FreightRule(nil), f.rules...)
}

// Pick returns the first rule whose max weight covers grams (rounded up).
// Shipments heavier than every rule fall back to the largest rule.
func (f *FreightEngine) Pick(grams float64) FreightQuote {
	w := int(math.Ceil(grams))
	for _, r := range f.rules {
		if r.MaxWeightGrams >= w {
			return FreightQuote{Container: r.Container, Cost: r.Cost}
		}
	}
	last := f.rules[len(f.rules)-1]
	return FreightQuote{Container: last.Container, Cost: last.Cost}
}
