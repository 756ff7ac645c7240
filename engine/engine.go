/*
engine.go - Stock transfer allocation engine

PURPOSE:
  Turns a hub's spare stock into transfer headers and lines for the
  outlets that need it. One Engine serves one run: Prime loads reference
  data, Run allocates and (when Params.Apply is set) writes.

PHASES:
  1. Prime        - active outlets, hub, freight rules, weight tables
  2. Destinations - mode and filters from Params
  3. Candidates   - hub stock that may move, plus product/demand/stock reads
  4. Seed         - new stores get a starter range (hub or multi-donor skim)
  5. Fair share   - scarce hub stock split across outlets by need
  6. Materialize  - merge, cap, pack-round, group by donor, freight, write

INVARIANTS:
  - Units taken from the hub for a product never exceed
    on_hand - ceil(on_hand * buffer_pct / 100). Every phase draws through
    one allocation.Availability counter.
  - An outlet stocked by the multi-donor skim gets no fair-share lines in
    the same run.
  - Each (donor, destination) header is written in its own transaction.
    A failed write aborts the run with a *PartialFailureError; earlier
    headers stay committed.

CONCURRENCY:
  An Engine is not safe for concurrent use. Callers serialize runs.

SEE ALSO:
  - allocation/: pure allocation math and the Store contract
  - audit/: decision ledger and run logger
  - factory/: builds Params from loose input and presets
*/
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub000/allocation"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub000/audit"
)

const tracerName = "github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub000/engine"

// Ledger steps and reasons.
const (
	StepDestinations = "DESTINATIONS"
	StepCandidates   = "CANDIDATES"
	StepSeed         = "SEED"
	StepSeedMulti    = "SEED_MULTI_DONOR"
	StepAllocate     = "ALLOCATE"
	StepGate         = "GATE"
	StepWeight       = "WEIGHT"
	StepPack         = "PACK"
	StepTransfer     = "TRANSFER"

	ReasonNoDestinations   = "NO_DESTINATIONS"
	ReasonNoHubCandidates  = "NO_HUB_CANDIDATES"
	ReasonNewStoreSeed     = "NEW_STORE_SEED"
	ReasonNoSeedLines      = "NO_SEED_LINES"
	ReasonFairShare        = "FAIR_SHARE"
	ReasonBelowLineValue   = "BELOW_LINE_VALUE"
	ReasonFallbackWeight   = "FALLBACK_200G"
	ReasonPackRoundSkipped = "PACK_ROUND_SKIPPED"
	ReasonCreated          = "CREATED"
	ReasonSimulated        = "SIMULATED"
	ReasonUnprofitable     = "UNPROFITABLE"
	ReasonDBError          = "DB_ERROR"
)

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the run logger. The default keeps info and above and
// mirrors to the standard logrus logger.
func WithLogger(l *audit.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithLedger sets the decision ledger.
func WithLedger(l *audit.DecisionLedger) Option {
	return func(e *Engine) { e.ledger = l }
}

// WithClock overrides the time source for header timestamps and run ids.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithTracer overrides the tracer. The default comes from the global
// OpenTelemetry provider.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

// Engine runs one allocation.
type Engine struct {
	store  allocation.Store
	params Params
	log    *audit.Logger
	ledger *audit.DecisionLedger
	now    func() time.Time
	tracer trace.Tracer

	primed          bool
	outlets         []allocation.Outlet
	outletByID      map[allocation.OutletID]allocation.Outlet
	hub             allocation.OutletID
	freight         *allocation.FreightEngine
	guard           allocation.ProfitGuard
	categoryWeights map[string]float64
	typeDefaults    map[string]allocation.ProductTypeDefault
}

// New validates params and builds an engine. An empty RunID is filled in.
func New(store allocation.Store, params Params, opts ...Option) (*Engine, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		store:  store,
		params: params,
		ledger: audit.NewDecisionLedger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.tracer == nil {
		e.tracer = otel.Tracer(tracerName)
	}
	if e.params.RunID == "" {
		e.params.RunID = NewRunID(e.now())
	}
	if e.log == nil {
		e.log = audit.NewLogger(audit.LevelInfo, logrus.WithField("run_id", e.params.RunID))
	}
	return e, nil
}

// Params returns the run parameters, including the generated run id.
func (e *Engine) Params() Params { return e.params }

// Ledger returns the decision ledger.
func (e *Engine) Ledger() *audit.DecisionLedger { return e.ledger }

// Logger returns the run logger.
func (e *Engine) Logger() *audit.Logger { return e.log }

// Hub returns the resolved hub. Empty before Prime.
func (e *Engine) Hub() allocation.OutletID { return e.hub }

// =============================================================================
// PRIME
// =============================================================================

// Prime loads outlets, resolves the hub and loads freight and weight
// reference data. A missing hub or empty freight table is a
// *allocation.ConfigurationError.
func (e *Engine) Prime(ctx context.Context) (err error) {
	ctx, span := e.tracer.Start(ctx, "engine.prime")
	defer func() { endSpan(span, err) }()

	outlets, err := e.store.Outlets(ctx)
	if err != nil {
		return fmt.Errorf("failed to load outlets: %w", err)
	}
	e.outlets = outlets
	e.outletByID = make(map[allocation.OutletID]allocation.Outlet, len(outlets))
	for _, o := range outlets {
		e.outletByID[o.ID] = o
	}

	hub, err := e.resolveHub()
	if err != nil {
		return err
	}
	e.hub = hub

	rules, err := e.store.FreightRules(ctx)
	if err != nil {
		return fmt.Errorf("failed to load freight rules: %w", err)
	}
	if e.freight, err = allocation.NewFreightEngine(rules); err != nil {
		return err
	}
	if e.categoryWeights, err = e.store.CategoryWeights(ctx); err != nil {
		return fmt.Errorf("failed to load category weights: %w", err)
	}
	if e.typeDefaults, err = e.store.ProductTypeDefaults(ctx); err != nil {
		return fmt.Errorf("failed to load product type defaults: %w", err)
	}
	e.guard = allocation.NewProfitGuard(e.params.ProfitFactor)
	e.primed = true

	span.SetAttributes(attribute.String("hub", string(hub)), attribute.Int("outlets", len(outlets)))
	e.log.Info("engine primed", map[string]any{
		"run_id":        e.params.RunID,
		"hub":           string(hub),
		"outlets":       len(outlets),
		"freight_rules": len(rules),
	})
	return nil
}

func (e *Engine) resolveHub() (allocation.OutletID, error) {
	if e.params.TransferMode == ModeSpecific {
		if _, ok := e.outletByID[e.params.SourceOutlet]; !ok {
			return "", allocation.NewConfigurationError(allocation.ErrNoHub,
				"source outlet %s is not an active outlet", e.params.SourceOutlet)
		}
		return e.params.SourceOutlet, nil
	}
	var warehouses []allocation.OutletID
	for _, o := range e.outlets {
		if o.IsWarehouse {
			warehouses = append(warehouses, o.ID)
		}
	}
	if len(warehouses) == 0 {
		return "", allocation.NewConfigurationError(allocation.ErrNoHub, "no active warehouse outlet")
	}
	sort.Slice(warehouses, func(i, j int) bool { return warehouses[i] < warehouses[j] })
	return warehouses[0], nil
}

// =============================================================================
// RUN
// =============================================================================

// Execute primes the engine if needed and runs it.
func (e *Engine) Execute(ctx context.Context) (*Result, error) {
	if !e.primed {
		if err := e.Prime(ctx); err != nil {
			return nil, err
		}
	}
	return e.Run(ctx)
}

// Run allocates and, with Params.Apply, writes transfers. On a mid-run
// write failure the partial result is returned with a *PartialFailureError.
func (e *Engine) Run(ctx context.Context) (res *Result, err error) {
	if !e.primed {
		return nil, fmt.Errorf("run %s: %w", e.params.RunID, allocation.ErrNotPrimed)
	}
	ctx, span := e.tracer.Start(ctx, "engine.run",
		trace.WithAttributes(attribute.String("run_id", e.params.RunID), attribute.Bool("apply", e.params.Apply)))
	defer func() { endSpan(span, err) }()

	started := e.now()
	res = newResult(e.params.RunID, e.params.Apply, e.hub)
	defer func() { e.finish(ctx, res, err, started) }()

	dests := e.destinations()
	if len(dests) == 0 {
		e.ledger.Record("", "", StepDestinations, ReasonNoDestinations, map[string]any{
			"mode": string(e.params.TransferMode), "filter": e.params.StoreFilter,
		})
		res.Message = "no eligible destinations"
		return res, nil
	}

	r, err := e.load(ctx, dests)
	if err != nil {
		return res, err
	}
	if len(r.universe) == 0 {
		e.ledger.Record("", "", StepCandidates, ReasonNoHubCandidates, map[string]any{"hub": string(e.hub)})
		res.Message = "no hub candidates"
		return res, nil
	}

	if err := r.seed(ctx); err != nil {
		return res, err
	}
	r.fairShare(ctx)
	if err := r.materialize(ctx, res); err != nil {
		return res, err
	}
	if len(res.Transfers) == 0 {
		res.Message = "no qualifying lines"
	}
	return res, nil
}

// destinations applies the mode and filters to the active outlets.
func (e *Engine) destinations() []allocation.Outlet {
	p := e.params
	if p.TransferMode == ModeSpecific {
		if o, ok := e.outletByID[p.DestOutlet]; ok && o.ID != e.hub {
			return []allocation.Outlet{o}
		}
		return nil
	}

	var allow map[allocation.OutletID]bool
	if len(p.StoreFilterList) > 0 {
		allow = make(map[allocation.OutletID]bool, len(p.StoreFilterList))
		for _, id := range p.StoreFilterList {
			allow[id] = true
		}
	}
	filter := strings.ToLower(strings.TrimSpace(p.StoreFilter))

	var out []allocation.Outlet
	for _, o := range e.outlets {
		switch {
		case o.ID == e.hub:
			continue
		case p.WarehouseOnly && !o.IsWarehouse:
			continue
		case !p.WarehouseOnly && p.ExcludeWarehouses && o.IsWarehouse:
			continue
		case filter != "" && !strings.Contains(strings.ToLower(o.Name), filter):
			continue
		case allow != nil && !allow[o.ID]:
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// finish logs the run summary and writes the run event when the store
// keeps an event log. Event failures are logged, not returned.
func (e *Engine) finish(ctx context.Context, res *Result, err error, started time.Time) {
	if res == nil {
		return
	}
	severity := "info"
	if err != nil {
		res.OK = false
		res.Message = err.Error()
		severity = "error"
		e.log.Error("run failed", map[string]any{"run_id": res.RunID, "error": err.Error()})
	}
	summary := map[string]any{
		"run_id":        res.RunID,
		"apply":         res.Apply,
		"transfers":     len(res.Transfers),
		"created_count": res.CreatedCount,
		"lines":         res.TotalLines(),
		"units":         res.TotalUnits(),
		"duration_ms":   e.now().Sub(started).Milliseconds(),
	}
	e.log.Info("run complete", summary)

	el, ok := e.store.(allocation.EventLogger)
	if !ok {
		return
	}
	ev := allocation.RunEvent{
		Type:     "transfer_run_completed",
		Severity: severity,
		RunID:    res.RunID,
		Summary:  fmt.Sprintf("%d transfers, %d units", len(res.Transfers), res.TotalUnits()),
		Details:  summary,
	}
	if evErr := el.LogRunEvent(ctx, ev); evErr != nil {
		e.log.Warn("failed to write run event", map[string]any{"run_id": res.RunID, "error": evErr.Error()})
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// IsPartialFailure reports whether err is a *PartialFailureError.
func IsPartialFailure(err error) bool {
	var pf *PartialFailureError
	return errors.As(err, &pf)
}
