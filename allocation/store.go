/*
store.go - Data access contract for the allocation engine

PURPOSE:
  Defines the interface between the engine and the database. Reads are
  bulk and typed; writes happen only inside an explicit transaction.
  Implementations resolve physical column names themselves (see schema/).

KEY INTERFACES:
  Reader:      bulk reads used during Prime and Run
  Writer:      transfer header/line inserts
  Tx:          Writer bound to an open transaction (Commit/Rollback)
  Store:       Reader + Begin
  EventLogger: optional run-completion event sink

IMPLEMENTATIONS:
  - store/dal/dal.go: SQL (MySQL, PostgreSQL, SQLite)
  - allocation/store/memory.go: in-memory for tests and demos

SEE ALSO:
  - engine/engine.go: the only consumer
*/
package allocation

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// READER - Bulk typed reads
// =============================================================================

// Reader is every read the engine performs in a run.
type Reader interface {
	// Outlets returns active, non-deleted outlets ordered by name.
	Outlets(ctx context.Context) ([]Outlet, error)

	// FreightRules returns active rules ordered ascending by max weight.
	FreightRules(ctx context.Context) ([]FreightRule, error)

	// CategoryWeights maps category code to average grams. Empty if the
	// table is absent.
	CategoryWeights(ctx context.Context) (map[string]float64, error)

	// ProductTypeDefaults maps type code to defaults. Empty if the table is absent.
	ProductTypeDefaults(ctx context.Context) (map[string]ProductTypeDefault, error)

	// CandidatesFromHub returns hub on-hand units for transferable products.
	CandidatesFromHub(ctx context.Context, hub OutletID) (map[ProductID]int, error)

	// ProductInfoBulk returns product data for the given ids.
	ProductInfoBulk(ctx context.Context, ids []ProductID) (map[ProductID]Product, error)

	// DemandBulk returns trailing 90-day demand for ids at outlets.
	DemandBulk(ctx context.Context, ids []ProductID, outlets []OutletID) (Demand, error)

	// InventoryFor returns on-hand units for ids at outlets.
	InventoryFor(ctx context.Context, ids []ProductID, outlets []OutletID) (Inventory, error)

	// ClassificationFor returns category/type tags. Missing rows are omitted.
	ClassificationFor(ctx context.Context, ids []ProductID) (map[ProductID]Classification, error)

	// IsNewStoreCandidate reports whether an outlet looks freshly opened.
	IsNewStoreCandidate(ctx context.Context, outlet OutletID) (bool, error)
}

// =============================================================================
// WRITER - Transactional inserts
// =============================================================================

// Writer persists transfers.
type Writer interface {
	CreateTransferHeader(ctx context.Context, h TransferHeader) (int64, error)
	CreateTransferLine(ctx context.Context, l TransferLine) (int64, error)
}

// Tx is a Writer bound to an open transaction.
type Tx interface {
	Writer
	Commit() error
	Rollback() error
}

// Store is the full data access contract.
type Store interface {
	Reader
	Begin(ctx context.Context) (Tx, error)
}

// WithTx runs fn inside a transaction: commit on nil, rollback otherwise.
// A failed rollback is joined to the returned error.
func WithTx(ctx context.Context, s Store, fn func(Writer) error) (err error) {
	tx, err := s.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err == nil {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil {
			err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// =============================================================================
// RUN EVENTS
// =============================================================================

// RunEvent is a run-completion record.
type RunEvent struct {
	ID        string         `json:"id"`
	Type      string         `json:"event_type"`
	Severity  string         `json:"severity"`
	RunID     string         `json:"run_id"`
	Summary   string         `json:"summary"`
	Details   map[string]any `json:"details"`
	CreatedAt time.Time      `json:"created_at"`
}

// EventLogger is implemented by stores that keep a system event log.
type EventLogger interface {
	LogRunEvent(ctx context.Context, ev RunEvent) error
}
