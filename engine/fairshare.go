package engine

import (
	"context"

	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub000/allocation"
)

// need is one destination's computed shortfall for a product.
type need struct {
	dest     allocation.OutletID
	units    int
	target   int
	velocity float64
}

// fairShare splits each product's spare hub stock across destinations
// in proportion to need.
func (r *run) fairShare(ctx context.Context) {
	_, span := r.e.tracer.Start(ctx, "engine.fair_share")
	defer span.End()

	p := r.e.params
	for _, pid := range r.universe {
		prod, ok := r.products[pid]
		if !ok {
			continue
		}
		available := r.avail.Available(pid, r.e.hub)
		if available <= 0 {
			continue
		}

		mos := allocation.MonthsOfStock(r.inv.Total(pid), r.demand.CompanyUnits(pid))
		throttle := allocation.Throttle(mos, p.TargetMOS)
		needs := r.needsFor(pid, prod, throttle)
		if len(needs) == 0 {
			continue
		}

		split := make([]allocation.Need, len(needs))
		for i, n := range needs {
			split[i] = allocation.Need{Outlet: n.dest, Units: n.units}
		}
		shares := allocation.FairShare(available, split, p.RoundingMode, p.MinUnitsPerLine)

		for _, n := range needs {
			qty := shares[n.dest]
			if qty <= 0 {
				continue
			}
			if !allocation.ShouldShip(prod.Price, qty, p.MinLineValue, p.MinUnitPrice) {
				r.e.ledger.Record(string(pid), string(n.dest), StepGate, ReasonBelowLineValue, map[string]any{
					"qty":        qty,
					"unit_price": prod.Price.String(),
					"line_value": allocation.LineValue(prod, qty).String(),
				})
				continue
			}
			qty = r.avail.Take(pid, r.e.hub, qty)
			if qty <= 0 {
				continue
			}
			r.propose(n.dest, allocation.Line{
				ProductID:      pid,
				Qty:            qty,
				OptimalQty:     n.units,
				SalesVelocity:  n.velocity,
				DemandForecast: n.target,
			})
			r.e.ledger.Record(string(pid), string(n.dest), StepAllocate, ReasonFairShare, map[string]any{
				"need":      n.units,
				"share":     qty,
				"available": available,
				"mos":       mos,
				"throttle":  throttle,
			})
		}
	}
}

// needsFor computes per-destination need for one product. Destinations
// stocked by the skim seed are skipped.
func (r *run) needsFor(pid allocation.ProductID, prod allocation.Product, throttle float64) []need {
	p := r.e.params
	lineCap := allocation.SafetyCap(prod)
	var out []need
	for _, d := range r.dests {
		if r.skimmed[d.ID] {
			continue
		}
		velocity := r.demand.Units(pid, d.ID) / 90.0
		if velocity <= 0 || velocity < p.FloorSalesThreshold {
			continue
		}
		adjusted := velocity * allocation.ClampTurnover(d.TurnoverMultiplier, p.TurnoverMinMult, p.TurnoverMaxMult)
		target := p.RoundingMode.Apply(adjusted * float64(p.CoverDays))
		short := target - r.inv.OnHand(pid, d.ID) - r.allocated[d.ID][pid]
		if short <= 0 {
			continue
		}
		units := min(p.RoundingMode.Apply(float64(short)*throttle), lineCap)
		if units < p.MinUnitsPerLine {
			continue
		}
		out = append(out, need{dest: d.ID, units: units, target: target, velocity: velocity})
	}
	return out
}
