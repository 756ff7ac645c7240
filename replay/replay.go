/*
Package replay persists every run so it can be inspected and reproduced.

PURPOSE:
  After a run the caller captures its parameters, result, decision
  ledger and log into a Document and hands it to a Writer. The Writer
  lays the run out on disk the way operators expect to find it:

    <dir>/<run_id>/inputs.json      {"params": ...}
    <dir>/<run_id>/decisions.json   decision ledger entries
    <dir>/<run_id>/logs.json        run log lines
    <dir>/<run_id>/outputs.json     engine.Result
    <dir>/<run_id>/transfers.xlsx   optional workbook (see workbook.go)
    <dir>/LAST_RUN_RESULTS.json     the whole Document of the latest run

  Files are written to a temp name and renamed so readers never see a
  partial document.

SEE ALSO:
  - workbook.go: Transfers / Lines / Decisions spreadsheet
  - api/runs.go: serves documents over HTTP
  - cmd/transfer-engine: prints the document after a CLI run
*/
package replay

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub000/audit"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub000/engine"
)

// File names inside a run directory.
const (
	InputsFile    = "inputs.json"
	DecisionsFile = "decisions.json"
	LogsFile      = "logs.json"
	OutputsFile   = "outputs.json"
	WorkbookFile  = "transfers.xlsx"
	LastRunFile   = "LAST_RUN_RESULTS.json"
)

var (
	// ErrNotFound is returned when no replay exists for a run id.
	ErrNotFound = errors.New("replay not found")

	// ErrInvalidRunID is returned for run ids that cannot name a directory.
	ErrInvalidRunID = errors.New("invalid run id")
)

var runIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{0,127}$`)

// ValidRunID reports whether id is safe to use as a directory name.
func ValidRunID(id string) bool {
	return runIDPattern.MatchString(id)
}

// =============================================================================
// DOCUMENT
// =============================================================================

// Meta identifies a run.
type Meta struct {
	RunID  string        `json:"run_id"`
	TS     time.Time     `json:"ts"`
	Apply  bool          `json:"apply"`
	Params engine.Params `json:"params"`
}

// Document is everything recorded about one run.
type Document struct {
	Meta    Meta           `json:"meta"`
	Results *engine.Result `json:"results"`
	Ledger  []audit.Entry  `json:"ledger"`
	Logs    []audit.Line   `json:"logs"`
}

// Capture snapshots a finished engine. res may be nil when the run failed
// before producing a result.
func Capture(e *engine.Engine, res *engine.Result, at time.Time) Document {
	p := e.Params()
	doc := Document{
		Meta:    Meta{RunID: p.RunID, TS: at, Apply: p.Apply, Params: p},
		Results: res,
		Ledger:  e.Ledger().Entries(),
		Logs:    e.Logger().Lines(),
	}
	if doc.Ledger == nil {
		doc.Ledger = []audit.Entry{}
	}
	if doc.Logs == nil {
		doc.Logs = []audit.Line{}
	}
	return doc
}

// =============================================================================
// WRITER
// =============================================================================

// Writer stores documents under a base directory.
type Writer struct {
	dir      string
	workbook bool
}

// Option configures a Writer.
type Option func(*Writer)

// WithWorkbook also writes transfers.xlsx into each run directory.
func WithWorkbook(enabled bool) Option {
	return func(w *Writer) { w.workbook = enabled }
}

// NewWriter returns a Writer rooted at dir. The directory is created on
// first write.
func NewWriter(dir string, opts ...Option) *Writer {
	w := &Writer{dir: dir}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Dir returns the base directory.
func (w *Writer) Dir() string { return w.dir }

// Write stores doc and returns the run directory.
func (w *Writer) Write(doc Document) (string, error) {
	if !ValidRunID(doc.Meta.RunID) {
		return "", fmt.Errorf("%w: %q", ErrInvalidRunID, doc.Meta.RunID)
	}
	runDir := filepath.Join(w.dir, doc.Meta.RunID)
	if err := os.MkdirAll(runDir, 0o775); err != nil {
		return "", fmt.Errorf("failed to create replay directory: %w", err)
	}

	files := []struct {
		name string
		v    any
	}{
		{InputsFile, map[string]any{"params": doc.Meta.Params}},
		{DecisionsFile, doc.Ledger},
		{LogsFile, doc.Logs},
		{OutputsFile, doc.Results},
	}
	for _, f := range files {
		if err := writeJSON(filepath.Join(runDir, f.name), f.v); err != nil {
			return "", err
		}
	}

	if w.workbook {
		if err := writeWorkbook(filepath.Join(runDir, WorkbookFile), doc); err != nil {
			return "", err
		}
	}

	if err := writeJSON(filepath.Join(w.dir, LastRunFile), doc); err != nil {
		return "", err
	}
	return runDir, nil
}

// Load rebuilds the document of a run from its directory.
func (w *Writer) Load(runID string) (Document, error) {
	if !ValidRunID(runID) {
		return Document{}, fmt.Errorf("%w: %q", ErrInvalidRunID, runID)
	}
	runDir := filepath.Join(w.dir, runID)

	var inputs struct {
		Params engine.Params `json:"params"`
	}
	doc := Document{}
	targets := []struct {
		name string
		v    any
	}{
		{InputsFile, &inputs},
		{DecisionsFile, &doc.Ledger},
		{LogsFile, &doc.Logs},
		{OutputsFile, &doc.Results},
	}
	for _, t := range targets {
		if err := readJSON(filepath.Join(runDir, t.name), t.v); err != nil {
			return Document{}, err
		}
	}

	doc.Meta = Meta{RunID: runID, Params: inputs.Params, Apply: inputs.Params.Apply}
	if info, err := os.Stat(filepath.Join(runDir, OutputsFile)); err == nil {
		doc.Meta.TS = info.ModTime().UTC()
	}
	return doc, nil
}

// LoadLast reads LAST_RUN_RESULTS.json.
func (w *Writer) LoadLast() (Document, error) {
	var doc Document
	if err := readJSON(filepath.Join(w.dir, LastRunFile), &doc); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// =============================================================================
// FILE HELPERS
// =============================================================================

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	return writeAtomic(path, data)
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to rename %s: %w", filepath.Base(path), err)
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, filepath.Base(path))
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", filepath.Base(path), err)
	}
	return nil
}
