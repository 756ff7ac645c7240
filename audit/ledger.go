/*
ledger.go - Append-only decision ledger

PURPOSE:
  Records every non-trivial allocation decision of a run: seeds, fair-share
  allocations, weight fallbacks, gated lines, transfers created or
  simulated, and database failures. The ledger is exported with the run
  result so any quantity on a transfer can be explained after the fact.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: entries are never edited or removed.
  2. ORDERED: entries keep insertion order.
  3. SCOPED: product and store are an id or "ALL".

STEPS AND REASONS (non-exhaustive):
  SEED/NEW_STORE_SEED           hub seed line for a new store
  SEED_MULTI_DONOR/NEW_STORE_SEED  skim seed from a peer store
  ALLOCATE/FAIR_SHARE           fair-share line
  GATE/BELOW_LINE_VALUE         line dropped by the economic gate
  WEIGHT/FALLBACK_200G          no weight known, 200g assumed
  TRANSFER/CREATED|SIMULATED    header materialised
  TRANSFER/DB_ERROR             header write rolled back

SEE ALSO:
  - logger.go: free-form run log, exported alongside
  - engine/engine.go: the only writer
*/
package audit

import (
	"encoding/json"
	"sync"
	"time"
)

// Entry is one recorded decision.
type Entry struct {
	ProductID string         `json:"product_id"`
	StoreID   string         `json:"store_id"`
	Step      string         `json:"step"`
	Reason    string         `json:"reason"`
	Context   map[string]any `json:"context,omitempty"`
	At        time.Time      `json:"at"`
}

// DecisionLedger is an append-only, in-memory decision log for one run.
type DecisionLedger struct {
	mu      sync.Mutex
	entries []Entry
	now     func() time.Time
}

// NewDecisionLedger returns an empty ledger.
func NewDecisionLedger() *DecisionLedger {
	return &DecisionLedger{now: time.Now}
}

// WithClock overrides the timestamp source.
func (l *DecisionLedger) WithClock(now func() time.Time) *DecisionLedger {
	l.now = now
	return l
}

// Record appends a decision. Empty product or store become "ALL".
func (l *DecisionLedger) Record(productID, storeID, step, reason string, ctx map[string]any) {
	if productID == "" {
		productID = "ALL"
	}
	if storeID == "" {
		storeID = "ALL"
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, Entry{
		ProductID: productID,
		StoreID:   storeID,
		Step:      step,
		Reason:    reason,
		Context:   ctx,
		At:        l.now().UTC(),
	})
}

// Entries returns a copy of every entry in insertion order.
func (l *DecisionLedger) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Entry(nil), l.entries...)
}

// Find returns entries matching step and reason. An empty reason matches any.
func (l *DecisionLedger) Find(step, reason string) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Entry
	for _, e := range l.entries {
		if e.Step == step && (reason == "" || e.Reason == reason) {
			out = append(out, e)
		}
	}
	return out
}

// Len returns the number of entries.
func (l *DecisionLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// MarshalJSON exports the entries as a JSON array.
func (l *DecisionLedger) MarshalJSON() ([]byte, error) {
	entries := l.Entries()
	if entries == nil {
		entries = []Entry{}
	}
	return json.Marshal(entries)
}
