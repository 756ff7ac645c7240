package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub000/allocation"
)

// seed gives new outlets a starter range.
func (r *run) seed(ctx context.Context) error {
	ctx, span := r.e.tracer.Start(ctx, "engine.seed")
	defer span.End()

	p := r.e.params
	var ranked []allocation.ProductID
	for _, d := range r.dests {
		isNew := d.ID == p.NewStoreID
		if !isNew {
			var err error
			if isNew, err = r.e.store.IsNewStoreCandidate(ctx, d.ID); err != nil {
				return fmt.Errorf("failed to check new store %s: %w", d.ID, err)
			}
		}
		if !isNew {
			continue
		}
		if ranked == nil {
			ranked = r.rankBySales()
		}

		var n int
		if p.SeedMode == SeedMulti {
			// A new store in skim mode never takes a fair share, seeded or not.
			r.skimmed[d.ID] = true
			n = r.seedMulti(d, ranked)
		} else {
			n = r.seedHub(d, ranked)
		}
		if n == 0 {
			r.e.ledger.Record("", string(d.ID), StepSeed, ReasonNoSeedLines, map[string]any{"mode": string(p.SeedMode)})
		}
		r.e.log.Info("new store seeded", map[string]any{
			"outlet": string(d.ID), "mode": string(p.SeedMode), "lines": n,
		})
	}
	return nil
}

// rankBySales orders candidates by company-wide 90-day units, best first,
// ties by id.
func (r *run) rankBySales() []allocation.ProductID {
	ids := append([]allocation.ProductID(nil), r.universe...)
	sort.SliceStable(ids, func(i, j int) bool {
		ui, uj := r.demand.CompanyUnits(ids[i]), r.demand.CompanyUnits(ids[j])
		if ui != uj {
			return ui > uj
		}
		return ids[i] < ids[j]
	})
	return ids
}

// seedQty is the configured base plus the family bonus. A product type
// default replaces the base when set.
func (r *run) seedQty(pid allocation.ProductID, base int) (int, int) {
	c := r.classes[pid]
	for _, code := range []string{c.TypeCode, r.products[pid].ProductTypeCode} {
		if d, ok := r.e.typeDefaults[code]; ok && code != "" && d.DefaultSeedQty > 0 {
			base = d.DefaultSeedQty
			break
		}
	}
	bonus := allocation.SeedBonus(c, r.e.params.Seed.Bonuses)
	return base + bonus, bonus
}

// seedHub draws from the hub, best sellers first.
func (r *run) seedHub(d allocation.Outlet, ranked []allocation.ProductID) int {
	s := r.e.params.Seed
	minUnits := r.e.params.MinUnitsPerLine
	n := 0
	for i, pid := range ranked {
		if i >= s.PriorityLimit || n >= s.MaxLines {
			break
		}
		companyUnits := r.demand.CompanyUnits(pid)
		if companyUnits <= 0 {
			break
		}
		prod, ok := r.products[pid]
		if !ok {
			continue
		}
		q, bonus := r.seedQty(pid, s.DefaultQty)
		q = max(q, minUnits)
		q = min(q, r.avail.Available(pid, r.e.hub), allocation.SafetyCap(prod))
		if q <= 0 {
			continue
		}
		q = r.avail.Take(pid, r.e.hub, q)
		r.propose(d.ID, allocation.Line{ProductID: pid, Qty: q, OptimalQty: q, DemandForecast: q})
		r.e.ledger.Record(string(pid), string(d.ID), StepSeed, ReasonNewStoreSeed, map[string]any{
			"qty": q, "bonus": bonus, "company_units_90d": companyUnits,
		})
		n++
	}
	return n
}

// seedMulti skims a few units of every candidate from the outlet holding
// the most, which may be the hub. Seed line limits do not apply here.
func (r *run) seedMulti(d allocation.Outlet, ranked []allocation.ProductID) int {
	s := r.e.params.Seed
	n := 0
	for _, pid := range ranked {
		if _, ok := r.products[pid]; !ok {
			continue
		}
		donor, have := r.richestDonor(pid, d.ID)
		if have <= 0 {
			continue
		}
		q, bonus := r.seedQty(pid, s.SkimDefaultQty)
		q = min(q, s.SkimCap, have)
		if q <= 0 {
			continue
		}
		q = r.avail.Take(pid, donor, q)
		line := allocation.Line{ProductID: pid, Qty: q, OptimalQty: q, DemandForecast: q, Donor: donor}
		if donor == r.e.hub {
			line.Donor = ""
		}
		r.propose(d.ID, line)
		r.e.ledger.Record(string(pid), string(d.ID), StepSeedMulti, ReasonNewStoreSeed, map[string]any{
			"qty": q, "bonus": bonus, "donor": string(donor), "donor_remaining": have - q,
		})
		n++
	}
	return n
}

// richestDonor is the active outlet other than dest with the most units
// still available, ties by id.
func (r *run) richestDonor(pid allocation.ProductID, dest allocation.OutletID) (allocation.OutletID, int) {
	var best allocation.OutletID
	bestQty := 0
	for _, o := range r.e.outlets {
		if o.ID == dest {
			continue
		}
		q := r.avail.Available(pid, o.ID)
		if q > bestQty || (q == bestQty && q > 0 && o.ID < best) {
			best, bestQty = o.ID, q
		}
	}
	return best, bestQty
}
