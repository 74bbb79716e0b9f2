/*
ledger.go - Cash register lifecycle over a whole-collection store

PURPOSE:
  The Ledger owns the invariants of a caja record: how it is opened, how
  funds are loaded into it, how it is closed, and what can be derived from
  it. Every operation is a read-mutate-write of the whole "cajaData"
  collection.

STATE MACHINE:
  Abierto --Load--> Abierto
  Abierto --Close--> Cerrado
  Cerrado is terminal. Nothing reopens a register.
  Delete removes a row outright (list view); it never edits a record.

CRITICAL INVARIANTS:
  1. ATOMIC: the collection is re-read for every operation and written in a
     single Set. A failed write leaves the store at its previous state and
     the in-memory copy is dropped. A collection whose records cannot be
     decoded is reported, never overwritten.
  2. APPEND-ONLY HISTORIAL: each successful Load/Close adds exactly one entry.
  3. BALANCE: MontoDisponible = MontoApertura + sum(cargas) while open;
     MontoCierre <= MontoDisponible at close.
  4. UNIQUE CODES: Open generates a code against every code in the store.

ERRORS:
  *ValidationError  bad input, nothing touched (Open)
  *OperationError   missing record, wrong state, bad amount (Load/Close)
  *generic.PersistenceError  the write failed
  *NotFoundError    read path (Detail)
  generic.ErrCorruptCollection  stored records cannot be decoded

SEE ALSO:
  - report.go: closure report
  - generic/store.go: collection helpers
  - migration/migration.go: upgrades records before the ledger reads them
*/
package caja

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/warp/caja-engine/generic"
)

// =============================================================================
// LEDGER
// =============================================================================

type Ledger struct {
	store   generic.Store
	codes   *generic.CodeGenerator
	now     func() time.Time
	refresh func(ctx context.Context)

	// serialises read-mutate-write sequences
	mu sync.Mutex
}

type Option func(*Ledger)

// WithClock sets the time source for fecha/fechaCierre and code fallbacks.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithCodeGenerator replaces the default CAJ-XXXX generator.
func WithCodeGenerator(g *generic.CodeGenerator) Option {
	return func(l *Ledger) { l.codes = g }
}

// WithRefresh registers a callback run after every successful mutation
// (the list view refresh).
func WithRefresh(fn func(ctx context.Context)) Option {
	return func(l *Ledger) { l.refresh = fn }
}

func NewLedger(store generic.Store, opts ...Option) *Ledger {
	l := &Ledger{store: store, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	if l.codes == nil {
		l.codes = NewCodeGenerator(nil, l.now, generic.DefaultMaxAttempts)
	}
	return l
}

// =============================================================================
// OPERATIONS
// =============================================================================

// Open creates a new register with montoApertura as both its opening and
// available amount, and persists it at the end of the collection.
func (l *Ledger) Open(ctx context.Context, descripcion, montoApertura string) (Record, error) {
	descripcion = strings.TrimSpace(descripcion)
	if len([]rune(descripcion)) < MinDescripcionLen {
		return Record{}, &ValidationError{
			Field:   "descripcion",
			Message: fmt.Sprintf("must have at least %d characters", MinDescripcionLen),
		}
	}
	apertura, err := generic.ParseMoney(montoApertura)
	if err != nil || !apertura.IsPositive() {
		return Record{}, &ValidationError{Field: "montoApertura", Message: "must be a positive number"}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	records, err := l.load(ctx)
	if err != nil {
		return Record{}, err
	}

	codes := make([]string, len(records))
	for i, r := range records {
		codes[i] = r.Codigo
	}

	rec := Record{
		Codigo:          l.codes.Generate(generic.CodeSet(codes)),
		Fecha:           formatFecha(l.now()),
		Descripcion:     descripcion,
		MontoApertura:   apertura,
		MontoDisponible: apertura,
		MontoCierre:     generic.ZeroMoney,
		Estado:          EstadoAbierto,
		Historial:       []HistorialEntry{},
	}
	records = append(records, rec)

	if err := l.save(ctx, records); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Load adds monto to the available balance of an open register.
func (l *Ledger) Load(ctx context.Context, index int, monto, descripcion string) (Record, error) {
	return l.mutate(ctx, "load", index, func(rec *Record) error {
		if rec.IsClosed() {
			return &OperationError{Op: "load", Code: CodeClosed, Index: index}
		}
		amount, err := generic.ParseMoney(monto)
		if err != nil || !amount.IsPositive() {
			return &OperationError{Op: "load", Code: CodeInvalidAmount, Index: index,
				Detail: "amount must be greater than zero"}
		}

		descripcion = strings.TrimSpace(descripcion)
		if descripcion == "" {
			descripcion = DefaultCargaDescripcion
		}

		rec.MontoDisponible = rec.MontoDisponible.Add(amount)
		rec.Historial = append(rec.Historial, HistorialEntry{
			Tipo:        TipoCarga,
			Monto:       amount,
			Descripcion: descripcion,
			Fecha:       formatFecha(l.now()),
		})
		return nil
	})
}

// Close confirms montoCierre and moves the register to Cerrado. The
// available balance is frozen from here on.
func (l *Ledger) Close(ctx context.Context, index int, montoCierre, observaciones string) (Record, error) {
	return l.mutate(ctx, "close", index, func(rec *Record) error {
		if rec.IsClosed() {
			return &OperationError{Op: "close", Code: CodeAlreadyClosed, Index: index}
		}
		amount, err := generic.ParseMoney(montoCierre)
		if err != nil {
			return &OperationError{Op: "close", Code: CodeInvalidAmount, Index: index,
				Detail: "amount is not a number"}
		}
		if amount.IsNegative() {
			return &OperationError{Op: "close", Code: CodeInvalidAmount, Index: index,
				Detail: "amount cannot be negative"}
		}
		if amount.GreaterThan(rec.MontoDisponible) {
			return &OperationError{Op: "close", Code: CodeInvalidAmount, Index: index,
				Detail: fmt.Sprintf("amount %s exceeds available %s", amount, rec.MontoDisponible)}
		}

		now := formatFecha(l.now())
		observaciones = strings.TrimSpace(observaciones)

		rec.MontoCierre = amount
		rec.Estado = EstadoCerrado
		rec.FechaCierre = now
		rec.Observaciones = observaciones
		rec.Historial = append(rec.Historial, HistorialEntry{
			Tipo:          TipoCierre,
			Monto:         amount,
			Descripcion:   DefaultCierreDescripcion,
			Observaciones: observaciones,
			Fecha:         now,
		})
		return nil
	})
}

// Detail returns the record at index with its derived difference and, once
// closed, the classification of the closing shortfall. It never writes.
func (l *Ledger) Detail(ctx context.Context, index int) (View, error) {
	records, err := l.load(ctx)
	if err != nil {
		return View{}, err
	}
	if index < 0 || index >= len(records) {
		return View{}, &NotFoundError{Index: index}
	}
	return NewView(index, records[index]), nil
}

// Delete removes the record at index. It is the list view's row delete and
// runs under the same lock as the other mutations.
func (l *Ledger) Delete(ctx context.Context, index int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := generic.DeleteAt(ctx, l.store, CollectionKey, index); err != nil {
		if errors.Is(err, generic.ErrIndexOutOfRange) {
			return &OperationError{Op: "delete", Code: CodeNotFound, Index: index}
		}
		return err
	}
	if l.refresh != nil {
		l.refresh(ctx)
	}
	return nil
}

// List returns every record in collection order.
func (l *Ledger) List(ctx context.Context) ([]Record, error) {
	return l.load(ctx)
}

// ExportFile is a downloadable JSON dump of the collection.
type ExportFile struct {
	Name string
	Data []byte
}

// Export renders the stored collection as indented JSON, named
// caja_YYYY-MM-DD.json. Records are exported as stored.
func (l *Ledger) Export(ctx context.Context) (ExportFile, error) {
	raw, err := generic.LoadCollection[json.RawMessage](ctx, l.store, CollectionKey)
	if err != nil {
		return ExportFile{}, err
	}
	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return ExportFile{}, fmt.Errorf("export: %w", err)
	}
	return ExportFile{
		Name: fmt.Sprintf("caja_%s.json", l.now().Format("2006-01-02")),
		Data: data,
	}, nil
}

// =============================================================================
// READ-MUTATE-WRITE
// =============================================================================

// mutate applies fn to the record at index and writes the collection back.
// If fn returns an error nothing is written.
func (l *Ledger) mutate(ctx context.Context, op string, index int, fn func(*Record) error) (Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	records, err := l.load(ctx)
	if err != nil {
		return Record{}, err
	}
	if index < 0 || index >= len(records) {
		return Record{}, &OperationError{Op: op, Code: CodeNotFound, Index: index}
	}

	rec := records[index]
	if rec.Historial == nil {
		rec.Historial = []HistorialEntry{}
	}
	if err := fn(&rec); err != nil {
		return Record{}, err
	}
	records[index] = rec

	if err := l.save(ctx, records); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (l *Ledger) load(ctx context.Context) ([]Record, error) {
	records, err := generic.LoadCollection[Record](ctx, l.store, CollectionKey)
	if err != nil {
		return nil, err
	}
	for i := range records {
		if records[i].Historial == nil {
			records[i].Historial = []HistorialEntry{}
		}
	}
	return records, nil
}

func (l *Ledger) save(ctx context.Context, records []Record) error {
	if err := generic.SaveCollection(ctx, l.store, CollectionKey, records); err != nil {
		return err
	}
	if l.refresh != nil {
		l.refresh(ctx)
	}
	return nil
}
