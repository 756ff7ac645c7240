package engine

import (
	"github.com/shopspring/decimal"

	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub000/allocation"
)

// Result is the output of one run.
type Result struct {
	OK           bool                `json:"ok"`
	RunID        string              `json:"run_id"`
	Apply        bool                `json:"apply"`
	Hub          allocation.OutletID `json:"hub"`
	CreatedCount int                 `json:"created_count"`
	Message      string              `json:"message,omitempty"`
	Transfers    []Transfer          `json:"transfers"`
}

// Transfer is one planned or committed (donor, destination) header.
type Transfer struct {
	TransferID    int64               `json:"transfer_id"`
	Source        allocation.OutletID `json:"source"`
	Destination   allocation.OutletID `json:"destination"`
	DeliveryMode  string              `json:"delivery_mode"`
	FreightCost   decimal.Decimal     `json:"freight_cost"`
	Margin        decimal.Decimal     `json:"margin"`
	Profitable    bool                `json:"profitable"`
	ProductCount  int                 `json:"product_count"`
	TotalQuantity int                 `json:"total_quantity"`
	TotalWeightG  float64             `json:"total_weight_g"`
	Lines         []allocation.Line   `json:"lines"`
}

// Ref names the transfer for error reporting.
func (t Transfer) Ref() TransferRef {
	return TransferRef{Source: t.Source, Destination: t.Destination, TransferID: t.TransferID}
}

func newResult(runID string, apply bool, hub allocation.OutletID) *Result {
	return &Result{OK: true, RunID: runID, Apply: apply, Hub: hub, Transfers: []Transfer{}}
}

// TotalUnits sums quantities across all transfers.
func (r *Result) TotalUnits() int {
	n := 0
	for _, t := range r.Transfers {
		n += t.TotalQuantity
	}
	return n
}

// TotalLines counts lines across all transfers.
func (r *Result) TotalLines() int {
	n := 0
	for _, t := range r.Transfers {
		n += len(t.Lines)
	}
	return n
}
