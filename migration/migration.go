/*
Package migration upgrades persisted collections to the current schema.

PURPOSE:
  Records written by earlier versions of the panel are still in the store:
  caja codes with the old "CO" prefix, workers without a "TR-" number, and
  cajas carrying a single "monto" instead of apertura/disponible/cierre.
  The Runner rewrites them once, at start-up, before the ledger reads
  anything.

ORDER:
  1. init_clientes              clientesData = [] when absent (unflagged)
  2. migration_codes_v1         regenerate missing / "CO" caja codes
  3. migration_trabajadores_v1  regenerate missing / non-"TR" worker numbers
  4. migration_caja_v2          monto -> montoApertura/Disponible/Cierre

IDEMPOTENCE:
  Each flagged migration checks its flag first and returns without reading
  or writing when it is set. The flag is set only after the collection was
  written, so a failed write is retried on the next start.

RAW RECORDS:
  Migrations work on raw JSON objects, not on caja.Record, so fields this
  package does not know about survive the rewrite. Array elements that are
  not JSON objects are written back untouched.

SEE ALSO:
  - caja/codes.go: caja code generator and legacy prefix
  - generic/store.go: LoadCollection / SaveCollection / flags
*/
package migration

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/warp/caja-engine/caja"
	"github.com/warp/caja-engine/generic"
)

// =============================================================================
// FLAGS & KEYS
// =============================================================================

const (
	FlagCodes        = "migration_codes_v1"
	FlagTrabajadores = "migration_trabajadores_v1"
	FlagCaja         = "migration_caja_v2" // canonical schema version 2

	ClientesKey     = "clientesData"
	TrabajadoresKey = "trabajadoresData"
)

// =============================================================================
// RUNNER
// =============================================================================

// Migration is one schema step. Steps with an empty Flag run on every start
// and must be idempotent on their own.
type Migration struct {
	ID   string
	Flag string
	Run  func(ctx context.Context, s generic.Store) error
}

// Result records what happened to one migration during Run.
type Result struct {
	ID      string
	Applied bool
}

// Status reports whether a flagged migration has completed.
type Status struct {
	ID   string
	Flag string
	Done bool
}

type Runner struct {
	store      generic.Store
	migrations []Migration
}

// Generators groups the code generators the migrations draw from.
type Generators struct {
	CajaCodes     *generic.CodeGenerator
	WorkerNumbers *generic.CodeGenerator
}

// NewRunner returns a runner with the default migrations in order.
func NewRunner(store generic.Store, gens Generators) *Runner {
	return &Runner{store: store, migrations: Default(gens)}
}

// NewRunnerWith returns a runner over an explicit migration list.
func NewRunnerWith(store generic.Store, migrations []Migration) *Runner {
	return &Runner{store: store, migrations: migrations}
}

// Default lists the migrations in dependency order.
func Default(gens Generators) []Migration {
	if gens.CajaCodes == nil {
		gens.CajaCodes = caja.NewCodeGenerator(nil, nil, generic.DefaultMaxAttempts)
	}
	if gens.WorkerNumbers == nil {
		gens.WorkerNumbers = NewWorkerNumberGenerator(nil, nil, generic.DefaultMaxAttempts)
	}
	return []Migration{
		{ID: "init_clientes", Run: ensureCollection(ClientesKey)},
		{ID: FlagCodes, Flag: FlagCodes, Run: migrateCajaCodes(gens.CajaCodes)},
		{ID: FlagTrabajadores, Flag: FlagTrabajadores, Run: migrateWorkerNumbers(gens.WorkerNumbers)},
		{ID: FlagCaja, Flag: FlagCaja, Run: migrateCajaShape},
	}
}

// Run applies every pending migration in order and stops at the first
// failure.
func (r *Runner) Run(ctx context.Context) ([]Result, error) {
	results := make([]Result, 0, len(r.migrations))
	for _, m := range r.migrations {
		if m.Flag != "" {
			done, err := generic.HasFlag(ctx, r.store, m.Flag)
			if err != nil {
				return results, fmt.Errorf("migration %s: read flag: %w", m.ID, err)
			}
			if done {
				log.Debug().Str("migration", m.ID).Msg("migration already applied")
				results = append(results, Result{ID: m.ID})
				continue
			}
		}

		if err := m.Run(ctx, r.store); err != nil {
			return results, fmt.Errorf("migration %s: %w", m.ID, err)
		}
		if m.Flag != "" {
			if err := generic.SetFlag(ctx, r.store, m.Flag); err != nil {
				return results, fmt.Errorf("migration %s: %w", m.ID, err)
			}
		}
		log.Info().Str("migration", m.ID).Msg("migration applied")
		results = append(results, Result{ID: m.ID, Applied: true})
	}
	return results, nil
}

// Status lists the flagged migrations and whether each one has completed.
func (r *Runner) Status(ctx context.Context) ([]Status, error) {
	var out []Status
	for _, m := range r.migrations {
		if m.Flag == "" {
			continue
		}
		done, err := generic.HasFlag(ctx, r.store, m.Flag)
		if err != nil {
			return nil, err
		}
		out = append(out, Status{ID: m.ID, Flag: m.Flag, Done: done})
	}
	return out, nil
}

// =============================================================================
// MIGRATIONS
// =============================================================================

func ensureCollection(key string) func(context.Context, generic.Store) error {
	return func(ctx context.Context, s generic.Store) error {
		exists, err := generic.Exists(ctx, s, key)
		if err != nil || exists {
			return err
		}
		return generic.SaveCollection(ctx, s, key, []json.RawMessage{})
	}
}

func migrateCajaCodes(gen *generic.CodeGenerator) func(context.Context, generic.Store) error {
	return func(ctx context.Context, s generic.Store) error {
		return rewriteCodes(ctx, s, caja.CollectionKey, "codigo", caja.NeedsNewCode, gen)
	}
}

// rewriteCodes regenerates field on every object for which needsNew is
// true. Conforming codes are collected first, and every generated code
// joins the set, so the pass cannot produce duplicates.
func rewriteCodes(ctx context.Context, s generic.Store, key, field string,
	needsNew func(string) bool, gen *generic.CodeGenerator) error {

	records, err := loadObjects(ctx, s, key)
	if err != nil {
		return err
	}

	seen := make(map[string]bool)
	for _, rec := range records {
		if rec.obj == nil {
			continue
		}
		if code := rec.str(field); !needsNew(code) {
			seen[code] = true
		}
	}

	for _, rec := range records {
		if rec.obj == nil || !needsNew(rec.str(field)) {
			continue
		}
		code := gen.Generate(seen)
		seen[code] = true
		if err := rec.set(field, code); err != nil {
			return err
		}
	}
	return saveObjects(ctx, s, key, records)
}

// migrateCajaShape derives the three amounts from the legacy monto field.
func migrateCajaShape(ctx context.Context, s generic.Store) error {
	records, err := loadObjects(ctx, s, caja.CollectionKey)
	if err != nil {
		return err
	}

	for _, rec := range records {
		if rec.obj == nil || !rec.has("monto") || rec.has("montoApertura") {
			continue
		}
		var monto generic.Money
		if err := json.Unmarshal(rec.obj["monto"], &monto); err != nil {
			log.Warn().Err(err).Str("codigo", rec.str("codigo")).Msg("legacy monto unreadable, record left as is")
			continue
		}
		cierre := generic.ZeroMoney
		if caja.Estado(rec.str("estado")) == caja.EstadoCerrado {
			cierre = monto
		}
		if err := rec.set("montoApertura", monto); err != nil {
			return err
		}
		if err := rec.set("montoDisponible", monto); err != nil {
			return err
		}
		if err := rec.set("montoCierre", cierre); err != nil {
			return err
		}
		delete(rec.obj, "monto")
	}
	return saveObjects(ctx, s, caja.CollectionKey, records)
}

// =============================================================================
// RAW OBJECTS
// =============================================================================

// object is one collection element. obj is nil when the element is not a
// JSON object; raw is then written back unchanged.
type object struct {
	raw json.RawMessage
	obj map[string]json.RawMessage
}

func (o *object) has(field string) bool {
	_, ok := o.obj[field]
	return ok
}

func (o *object) str(field string) string {
	raw, ok := o.obj[field]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func (o *object) set(field string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", field, err)
	}
	o.obj[field] = raw
	return nil
}

func loadObjects(ctx context.Context, s generic.Store, key string) ([]*object, error) {
	raws, err := generic.LoadCollection[json.RawMessage](ctx, s, key)
	if err != nil {
		return nil, err
	}
	out := make([]*object, len(raws))
	for i, raw := range raws {
		o := &object{raw: raw}
		var m map[string]json.RawMessage
		if err := json.Unmarshal(raw, &m); err == nil && m != nil {
			o.obj = m
		}
		out[i] = o
	}
	return out, nil
}

func saveObjects(ctx context.Context, s generic.Store, key string, records []*object) error {
	raws := make([]json.RawMessage, len(records))
	for i, o := range records {
		if o.obj == nil {
			raws[i] = o.raw
			continue
		}
		raw, err := json.Marshal(o.obj)
		if err != nil {
			return &generic.PersistenceError{Key: key, Err: err}
		}
		raws[i] = raw
	}
	return generic.SaveCollection(ctx, s, key, raws)
}
