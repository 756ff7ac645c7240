package engine

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub000/allocation"
)

// materialize turns proposals into transfers, one per (donor,
// destination), and writes them when the run applies.
func (r *run) materialize(ctx context.Context, res *Result) error {
	ctx, span := r.e.tracer.Start(ctx, "engine.materialize")
	defer span.End()

	var committed []TransferRef
	for _, d := range r.dests {
		proposals := r.lines[d.ID]
		if len(proposals) == 0 {
			continue
		}
		lines := allocation.MergeLines(proposals)
		allocation.SortByValue(lines, r.products)
		if len(lines) > r.e.params.MaxLines {
			lines = lines[:r.e.params.MaxLines]
		}
		if r.e.params.PackRounding {
			r.packRound(d.ID, lines)
		}

		for _, t := range r.group(d.ID, lines) {
			if err := ctx.Err(); err != nil {
				if len(committed) > 0 {
					return &PartialFailureError{RunID: r.e.params.RunID, Committed: committed, Failed: t.Ref(), Err: err}
				}
				return err
			}
			if !t.Profitable && r.e.params.EnforceProfitGuard {
				r.e.ledger.Record("", string(d.ID), StepTransfer, ReasonUnprofitable, transferContext(t))
				continue
			}
			if !r.e.params.Apply {
				r.e.ledger.Record("", string(d.ID), StepTransfer, ReasonSimulated, transferContext(t))
				res.Transfers = append(res.Transfers, t)
				res.CreatedCount++
				continue
			}

			id, err := r.write(ctx, t)
			if err != nil {
				ref := t.Ref()
				c := transferContext(t)
				c["error"] = err.Error()
				r.e.ledger.Record("", string(d.ID), StepTransfer, ReasonDBError, c)
				return &PartialFailureError{RunID: r.e.params.RunID, Committed: committed, Failed: ref, Err: err}
			}
			t.TransferID = id
			committed = append(committed, t.Ref())
			res.Transfers = append(res.Transfers, t)
			res.CreatedCount++
			r.e.ledger.Record("", string(d.ID), StepTransfer, ReasonCreated, transferContext(t))
		}
	}
	return nil
}

// packRound rounds quantities up to the detected pack size when the donor
// can cover the extra units.
func (r *run) packRound(dest allocation.OutletID, lines []allocation.Line) {
	for i := range lines {
		l := &lines[i]
		prod := r.products[l.ProductID]
		pack := allocation.PackSize(prod.Name, prod.SKU)
		if pack <= 1 || l.Qty%pack == 0 {
			continue
		}
		extra := allocation.RoundUpToPack(l.Qty, pack) - l.Qty
		if r.avail.Available(l.ProductID, l.Donor) < extra {
			r.e.ledger.Record(string(l.ProductID), string(dest), StepPack, ReasonPackRoundSkipped, map[string]any{
				"qty": l.Qty, "pack": pack, "extra": extra,
			})
			continue
		}
		l.Qty += r.avail.Take(l.ProductID, l.Donor, extra)
	}
}

// group splits a destination's lines by donor and prices each group.
func (r *run) group(dest allocation.OutletID, lines []allocation.Line) []Transfer {
	byDonor := make(map[allocation.OutletID][]allocation.Line)
	for _, l := range lines {
		donor := l.Donor
		if donor == "" {
			donor = r.e.hub
		}
		byDonor[donor] = append(byDonor[donor], l)
	}
	donors := make([]allocation.OutletID, 0, len(byDonor))
	for d := range byDonor {
		donors = append(donors, d)
	}
	sort.Slice(donors, func(i, j int) bool { return donors[i] < donors[j] })

	out := make([]Transfer, 0, len(donors))
	for _, donor := range donors {
		t := Transfer{Source: donor, Destination: dest, Lines: byDonor[donor], Margin: decimal.Zero}
		for _, l := range t.Lines {
			prod := r.products[l.ProductID]
			t.TotalQuantity += l.Qty
			t.TotalWeightG += r.weight(l.ProductID) * float64(l.Qty)
			t.Margin = t.Margin.Add(allocation.LineMargin(prod, l.Qty))
		}
		t.ProductCount = len(t.Lines)
		quote := r.e.freight.Pick(t.TotalWeightG)
		t.DeliveryMode = quote.Container
		t.FreightCost = quote.Cost
		t.Profitable = r.e.guard.IsProfitable(t.Margin, quote.Cost)
		out = append(out, t)
	}
	return out
}

// write persists one header and its lines in a single transaction.
func (r *run) write(ctx context.Context, t Transfer) (int64, error) {
	p := r.e.params
	var id int64
	err := allocation.WithTx(ctx, r.e.store, func(w allocation.Writer) error {
		var err error
		id, err = w.CreateTransferHeader(ctx, allocation.TransferHeader{
			SourceOutletID:      t.Source,
			DestOutletID:        t.Destination,
			Status:              allocation.StatusOpen,
			MicroStatus:         allocation.MicroStatusReady,
			DeliveryMode:        t.DeliveryMode,
			RunID:               p.RunID,
			ProductCount:        t.ProductCount,
			TotalQuantity:       t.TotalQuantity,
			CreatedAt:           r.e.now(),
			CreatedByUser:       p.CreatedByUser,
			SourceModule:        allocation.SourceModule,
			CreatedBySystem:     allocation.CreatedBySystem,
			AutomationTriggered: true,
		})
		if err != nil {
			return err
		}
		for _, l := range t.Lines {
			if _, err := w.CreateTransferLine(ctx, allocation.TransferLine{
				TransferID:     id,
				ProductID:      l.ProductID,
				QtyToTransfer:  l.Qty,
				OptimalQty:     l.OptimalQty,
				DemandForecast: l.DemandForecast,
				SalesVelocity:  l.SalesVelocity,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	return id, err
}

func transferContext(t Transfer) map[string]any {
	return map[string]any{
		"source":         string(t.Source),
		"delivery_mode":  t.DeliveryMode,
		"freight_cost":   t.FreightCost.String(),
		"margin":         t.Margin.String(),
		"profitable":     t.Profitable,
		"product_count":  t.ProductCount,
		"total_quantity": t.TotalQuantity,
		"transfer_id":    t.TransferID,
	}
}
