/*
resolver.go - Logical role to physical column resolution

PURPOSE:
  Maps (table, logical role) to the column name that actually exists in
  the connected database, using the synonym lists in mapping.go.

RESOLUTION ORDER:
  1. Exact match of a synonym against the live column list
  2. Case-insensitive match (returns the live spelling)
  3. strict=true  -> *SchemaError
     strict=false -> "" with no error (caller degrades the feature)

CACHING:
  Column lists, table existence and resolved names are cached for the
  resolver's lifetime. Build one resolver per run or per process; the
  schema is assumed stable while it lives.

USAGE:
  r := schema.NewResolver(introspector, schema.DefaultMapping)
  if err := r.Validate(ctx); err != nil { ... }      // startup
  col, err := r.Column(ctx, "vend_inventory", "on_hand")
  flag, ok := r.Optional(ctx, "vend_products", "is_deleted")

SEE ALSO:
  - mapping.go: synonym table
  - store/dal/dialect.go: Introspector implementations per database
*/
package schema

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub000/allocation"
)

// Introspector lists live schema metadata.
type Introspector interface {
	ListColumns(ctx context.Context, table string) ([]string, error)
	TableExists(ctx context.Context, table string) (bool, error)
}

// Resolver resolves logical roles to physical columns.
type Resolver struct {
	mapping Mapping
	intro   Introspector

	mu       sync.Mutex
	columns  map[string][]string
	exists   map[string]bool
	resolved map[string]string
}

// NewResolver builds a resolver over the given introspector and mapping.
func NewResolver(intro Introspector, mapping Mapping) *Resolver {
	return &Resolver{
		mapping:  mapping,
		intro:    intro,
		columns:  make(map[string][]string),
		exists:   make(map[string]bool),
		resolved: make(map[string]string),
	}
}

// Mapping returns the synonym table in use.
func (r *Resolver) Mapping() Mapping {
	return r.mapping
}

// TableExists reports whether a table is present. Cached.
func (r *Resolver) TableExists(ctx context.Context, table string) (bool, error) {
	r.mu.Lock()
	if ok, cached := r.exists[table]; cached {
		r.mu.Unlock()
		return ok, nil
	}
	r.mu.Unlock()

	ok, err := r.intro.TableExists(ctx, table)
	if err != nil {
		return false, fmt.Errorf("failed to check table %s: %w", table, err)
	}

	r.mu.Lock()
	r.exists[table] = ok
	r.mu.Unlock()
	return ok, nil
}

// Columns returns the live columns of a table. Cached.
func (r *Resolver) Columns(ctx context.Context, table string) ([]string, error) {
	r.mu.Lock()
	if cols, cached := r.columns[table]; cached {
		r.mu.Unlock()
		return cols, nil
	}
	r.mu.Unlock()

	cols, err := r.intro.ListColumns(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("failed to list columns of %s: %w", table, err)
	}

	r.mu.Lock()
	r.columns[table] = cols
	r.mu.Unlock()
	return cols, nil
}

// ResolveColumn maps a logical role to a live column name.
func (r *Resolver) ResolveColumn(ctx context.Context, table, role string, strict bool) (string, error) {
	key := table + "." + role

	r.mu.Lock()
	if name, cached := r.resolved[key]; cached {
		r.mu.Unlock()
		return name, nil
	}
	r.mu.Unlock()

	def, ok := r.mapping.Role(table, role)
	if !ok {
		if strict {
			return "", &SchemaError{Table: table, Role: role, Reason: "no synonyms configured"}
		}
		return "", nil
	}

	cols, err := r.Columns(ctx, table)
	if err != nil {
		if strict {
			return "", &SchemaError{Table: table, Role: role, Synonyms: def.Synonyms, Reason: "introspection failed", Err: err}
		}
		return "", nil
	}

	name := match(def.Synonyms, cols)
	if name == "" {
		if strict {
			return "", &SchemaError{Table: table, Role: role, Synonyms: def.Synonyms, Available: cols, Reason: "no synonym present"}
		}
		return "", nil
	}

	r.mu.Lock()
	r.resolved[key] = name
	r.mu.Unlock()
	return name, nil
}

// Column resolves strictly.
func (r *Resolver) Column(ctx context.Context, table, role string) (string, error) {
	return r.ResolveColumn(ctx, table, role, true)
}

// Optional resolves non-strictly. ok is false when the role is absent
// (the degraded signal); it never returns an error.
func (r *Resolver) Optional(ctx context.Context, table, role string) (name string, ok bool) {
	name, _ = r.ResolveColumn(ctx, table, role, false)
	return name, name != ""
}

func match(synonyms, cols []string) string {
	for _, s := range synonyms {
		for _, c := range cols {
			if c == s {
				return c
			}
		}
	}
	for _, s := range synonyms {
		for _, c := range cols {
			if strings.EqualFold(c, s) {
				return c
			}
		}
	}
	return ""
}

// Validate checks every required table and required role of the mapping
// against the live database and reports all problems at once.
func (r *Resolver) Validate(ctx context.Context) error {
	names := make([]string, 0, len(r.mapping.Tables))
	for name := range r.mapping.Tables {
		names = append(names, name)
	}
	sort.Strings(names)

	var problems []string
	for _, name := range names {
		t := r.mapping.Tables[name]
		ok, err := r.TableExists(ctx, name)
		if err != nil {
			return err
		}
		if !ok {
			if !t.Optional {
				problems = append(problems, "missing table "+name)
			}
			continue
		}
		for _, role := range t.Roles {
			if role.Optional {
				continue
			}
			if _, err := r.Column(ctx, name, role.Name); err != nil {
				problems = append(problems, err.Error())
			}
		}
	}
	if len(problems) > 0 {
		return &allocation.ConfigurationError{
			Reason:   "schema mapping " + r.mapping.Version + " does not match database",
			Problems: problems,
			Err:      allocation.ErrSchema,
		}
	}
	return nil
}
