// Package store provides an in-memory allocation.Store for tests and dev.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub000/allocation"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory holds reference data in plain maps. Populate the exported fields
// before use; they are read under the store's lock.
type Memory struct {
	mu sync.RWMutex
	// txMu serializes write transactions.
	txMu sync.Mutex

	OutletList      []allocation.Outlet
	Freight         []allocation.FreightRule
	CategoryGrams   map[string]float64
	TypeDefaults    map[string]allocation.ProductTypeDefault
	Products        map[allocation.ProductID]allocation.Product
	Stock           allocation.Inventory
	Sales           allocation.Demand
	Classifications map[allocation.ProductID]allocation.Classification
	NewStores       map[allocation.OutletID]bool
	// Blocked products never appear as hub candidates.
	Blocked map[allocation.ProductID]bool

	// FailHeader, when set, is consulted before each header insert.
	FailHeader func(h allocation.TransferHeader) error
	// FailLine, when set, is consulted before each line insert.
	FailLine func(l allocation.TransferLine) error

	headers []allocation.TransferHeader
	lines   []allocation.TransferLine
	events  []allocation.RunEvent
	nextID  int64
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{
		CategoryGrams:   make(map[string]float64),
		TypeDefaults:    make(map[string]allocation.ProductTypeDefault),
		Products:        make(map[allocation.ProductID]allocation.Product),
		Stock:           allocation.Inventory{},
		Sales:           allocation.Demand{},
		Classifications: make(map[allocation.ProductID]allocation.Classification),
		NewStores:       make(map[allocation.OutletID]bool),
		Blocked:         make(map[allocation.ProductID]bool),
	}
}

var (
	_ allocation.Store       = (*Memory)(nil)
	_ allocation.EventLogger = (*Memory)(nil)
)

// =============================================================================
// READS
// =============================================================================

func (m *Memory) Outlets(context.Context) ([]allocation.Outlet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []allocation.Outlet
	for _, o := range m.OutletList {
		if o.Active {
			out = append(out, o)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) FreightRules(context.Context) ([]allocation.FreightRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := append([]allocation.FreightRule(nil), m.Freight...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].MaxWeightGrams < out[j].MaxWeightGrams })
	return out, nil
}

func (m *Memory) CategoryWeights(context.Context) (map[string]float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]float64, len(m.CategoryGrams))
	for k, v := range m.CategoryGrams {
		out[k] = v
	}
	return out, nil
}

func (m *Memory) ProductTypeDefaults(context.Context) (map[string]allocation.ProductTypeDefault, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]allocation.ProductTypeDefault, len(m.TypeDefaults))
	for k, v := range m.TypeDefaults {
		out[k] = v
	}
	return out, nil
}

func (m *Memory) CandidatesFromHub(_ context.Context, hub allocation.OutletID) (map[allocation.ProductID]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[allocation.ProductID]int)
	for pid, byOutlet := range m.Stock {
		qty := byOutlet[hub]
		if qty <= 0 || m.Blocked[pid] {
			continue
		}
		if p, ok := m.Products[pid]; ok && allocation.IsBlockedBeverage(p.Name) {
			continue
		}
		out[pid] = qty
	}
	return out, nil
}

func (m *Memory) ProductInfoBulk(_ context.Context, ids []allocation.ProductID) (map[allocation.ProductID]allocation.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[allocation.ProductID]allocation.Product, len(ids))
	for _, id := range ids {
		if p, ok := m.Products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (m *Memory) DemandBulk(_ context.Context, ids []allocation.ProductID, outlets []allocation.OutletID) (allocation.Demand, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := allocation.Demand{}
	for _, pid := range ids {
		for _, oid := range outlets {
			if rec, ok := m.Sales[pid][oid]; ok {
				out.Add(pid, oid, rec.UnitsSold90d, rec.LastSoldAt)
			}
		}
	}
	return out, nil
}

func (m *Memory) InventoryFor(_ context.Context, ids []allocation.ProductID, outlets []allocation.OutletID) (allocation.Inventory, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := allocation.Inventory{}
	for _, pid := range ids {
		for _, oid := range outlets {
			if qty, ok := m.Stock[pid][oid]; ok {
				out.Set(pid, oid, qty)
			}
		}
	}
	return out, nil
}

func (m *Memory) ClassificationFor(_ context.Context, ids []allocation.ProductID) (map[allocation.ProductID]allocation.Classification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[allocation.ProductID]allocation.Classification)
	for _, id := range ids {
		if c, ok := m.Classifications[id]; ok {
			out[id] = c
		}
	}
	return out, nil
}

func (m *Memory) IsNewStoreCandidate(_ context.Context, outlet allocation.OutletID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.NewStores[outlet], nil
}

// =============================================================================
// TRANSACTIONAL WRITES
// =============================================================================

// Begin starts a transaction. Transactions are serialized; a rollback
// truncates back to the snapshot taken here.
func (m *Memory) Begin(context.Context) (allocation.Tx, error) {
	m.txMu.Lock()
	m.mu.RLock()
	snap := memorySnapshot{headers: len(m.headers), lines: len(m.lines)}
	m.mu.RUnlock()
	return &txMemoryView{parent: m, snap: snap}, nil
}

type memorySnapshot struct {
	headers int
	lines   int
}

type txMemoryView struct {
	parent *Memory
	snap   memorySnapshot
	done   bool
}

func (tv *txMemoryView) CreateTransferHeader(_ context.Context, h allocation.TransferHeader) (int64, error) {
	m := tv.parent
	if m.FailHeader != nil {
		if err := m.FailHeader(h); err != nil {
			return 0, &allocation.WriteError{Table: "stock_transfers", Op: "insert", Err: err}
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	h.ID = m.nextID
	m.headers = append(m.headers, h)
	return h.ID, nil
}

func (tv *txMemoryView) CreateTransferLine(_ context.Context, l allocation.TransferLine) (int64, error) {
	m := tv.parent
	if m.FailLine != nil {
		if err := m.FailLine(l); err != nil {
			return 0, &allocation.WriteError{Table: "stock_products_to_transfer", Op: "insert", Err: err}
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	l.ID = int64(len(m.lines) + 1)
	m.lines = append(m.lines, l)
	return l.ID, nil
}

func (tv *txMemoryView) Commit() error {
	if tv.done {
		return nil
	}
	tv.done = true
	tv.parent.txMu.Unlock()
	return nil
}

func (tv *txMemoryView) Rollback() error {
	if tv.done {
		return nil
	}
	tv.done = true
	m := tv.parent
	m.mu.Lock()
	m.headers = m.headers[:tv.snap.headers]
	m.lines = m.lines[:tv.snap.lines]
	m.mu.Unlock()
	m.txMu.Unlock()
	return nil
}

// =============================================================================
// INSPECTION
// =============================================================================

// LogRunEvent records a run event.
func (m *Memory) LogRunEvent(_ context.Context, ev allocation.RunEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

// Headers returns committed transfer headers in insert order.
func (m *Memory) Headers() []allocation.TransferHeader {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]allocation.TransferHeader(nil), m.headers...)
}

// Lines returns committed transfer lines in insert order.
func (m *Memory) Lines() []allocation.TransferLine {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]allocation.TransferLine(nil), m.lines...)
}

// Events returns logged run events.
func (m *Memory) Events() []allocation.RunEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]allocation.RunEvent(nil), m.events...)
}
