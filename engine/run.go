package engine

import (
	"context"
	"fmt"

	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub000/allocation"
)

// run is the mutable state of one Run.
type run struct {
	e        *Engine
	dests    []allocation.Outlet
	hubStock map[allocation.ProductID]int
	universe []allocation.ProductID

	products map[allocation.ProductID]allocation.Product
	classes  map[allocation.ProductID]allocation.Classification
	inv      allocation.Inventory
	demand   allocation.Demand
	avail    *allocation.Availability

	// lines holds proposals per destination in the order they were made.
	lines map[allocation.OutletID][]allocation.Line
	// allocated counts units already proposed per destination and product.
	allocated map[allocation.OutletID]map[allocation.ProductID]int
	skimmed   map[allocation.OutletID]bool
	weights   map[allocation.ProductID]float64
}

// load reads the candidate universe and everything the passes need about it.
func (e *Engine) load(ctx context.Context, dests []allocation.Outlet) (*run, error) {
	ctx, span := e.tracer.Start(ctx, "engine.load")
	defer span.End()

	r := &run{
		e:         e,
		dests:     dests,
		lines:     make(map[allocation.OutletID][]allocation.Line),
		allocated: make(map[allocation.OutletID]map[allocation.ProductID]int),
		skimmed:   make(map[allocation.OutletID]bool),
		weights:   make(map[allocation.ProductID]float64),
	}

	hubStock, err := e.store.CandidatesFromHub(ctx, e.hub)
	if err != nil {
		return nil, fmt.Errorf("failed to load hub candidates: %w", err)
	}
	r.hubStock = hubStock
	r.universe = allocation.SortedProductIDs(hubStock)
	if len(r.universe) == 0 {
		return r, nil
	}

	if r.products, err = e.store.ProductInfoBulk(ctx, r.universe); err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}
	if r.classes, err = e.store.ClassificationFor(ctx, r.universe); err != nil {
		return nil, fmt.Errorf("failed to load classification: %w", err)
	}

	// Every active outlet is read: skim donors can be any store, and
	// months-of-stock is company-wide.
	outletIDs := make([]allocation.OutletID, len(e.outlets))
	for i, o := range e.outlets {
		outletIDs[i] = o.ID
	}
	if r.inv, err = e.store.InventoryFor(ctx, r.universe, outletIDs); err != nil {
		return nil, fmt.Errorf("failed to load inventory: %w", err)
	}
	if r.demand, err = e.store.DemandBulk(ctx, r.universe, outletIDs); err != nil {
		return nil, fmt.Errorf("failed to load demand: %w", err)
	}

	r.avail = allocation.NewAvailability(e.hub, e.params.BufferPct, hubStock, r.inv)
	e.log.Debug("candidates loaded", map[string]any{
		"products":     len(r.universe),
		"destinations": len(dests),
	})
	return r, nil
}

// propose records a line for a destination.
func (r *run) propose(dest allocation.OutletID, l allocation.Line) {
	r.lines[dest] = append(r.lines[dest], l)
	if r.allocated[dest] == nil {
		r.allocated[dest] = make(map[allocation.ProductID]int)
	}
	r.allocated[dest][l.ProductID] += l.Qty
}

// weight resolves a product's unit weight once per run.
func (r *run) weight(pid allocation.ProductID) float64 {
	if w, ok := r.weights[pid]; ok {
		return w
	}
	w, src := allocation.ResolveWeight(r.products[pid], r.classes[pid], r.e.categoryWeights, r.e.typeDefaults)
	if src == allocation.WeightFallback {
		r.e.ledger.Record(string(pid), "", StepWeight, ReasonFallbackWeight, map[string]any{"grams": w})
	}
	r.e.log.Trace("weight resolved", map[string]any{"product_id": string(pid), "grams": w, "source": string(src)})
	r.weights[pid] = w
	return w
}
