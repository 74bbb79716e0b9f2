// Package caja implements the cash register (caja) ledger: opening a
// register, loading funds into it, closing it, and reporting on its history.
// Registers are persisted as one JSON collection in a generic.Store.
package caja

import (
	"time"

	"github.com/warp/caja-engine/generic"
)

// =============================================================================
// KEYS & FORMATS
// =============================================================================

// CollectionKey is the store key holding every caja record.
const CollectionKey = "cajaData"

// DateLayout renders timestamps the way the panel shows them (es-PE locale).
const DateLayout = "02/01/2006, 15:04:05"

// Default historial descriptions.
const (
	DefaultCargaDescripcion  = "Carga de efectivo"
	DefaultCierreDescripcion = "Cierre de caja"
)

// MinDescripcionLen is the minimum trimmed length of a caja description.
const MinDescripcionLen = 3

// =============================================================================
// STATE
// =============================================================================

type Estado string

const (
	EstadoAbierto Estado = "Abierto"
	EstadoCerrado Estado = "Cerrado"
)

type Tipo string

const (
	TipoCarga  Tipo = "Carga"
	TipoCierre Tipo = "Cierre"
)

// =============================================================================
// RECORDS
// =============================================================================

// HistorialEntry is one funding or closing event. Entries are only ever
// appended to a record's Historial.
type HistorialEntry struct {
	Tipo          Tipo          `json:"tipo"`
	Monto         generic.Money `json:"monto"`
	Descripcion   string        `json:"descripcion"`
	Observaciones string        `json:"observaciones,omitempty"`
	Fecha         string        `json:"fecha"`
}

// Record is one cash register session.
//
// INVARIANTS:
//   - Codigo is unique in the collection
//   - amounts are non-negative and carry 2 decimals
//   - while Abierto: MontoCierre is 0.00, FechaCierre and Observaciones are empty
//   - MontoCierre <= MontoDisponible once Cerrado; Cerrado is terminal
type Record struct {
	Codigo          string           `json:"codigo"`
	Fecha           string           `json:"fecha"`
	Descripcion     string           `json:"descripcion"`
	MontoApertura   generic.Money    `json:"montoApertura"`
	MontoDisponible generic.Money    `json:"montoDisponible"`
	MontoCierre     generic.Money    `json:"montoCierre"`
	Estado          Estado           `json:"estado"`
	FechaCierre     string           `json:"fechaCierre,omitempty"`
	Observaciones   string           `json:"observaciones,omitempty"`
	Historial       []HistorialEntry `json:"historial"`
}

func (r *Record) IsOpen() bool   { return r.Estado != EstadoCerrado }
func (r *Record) IsClosed() bool { return r.Estado == EstadoCerrado }

// Diferencia is the difference shown on the detail view: available minus
// opening while open, available minus closing once closed.
func (r *Record) Diferencia() generic.Money {
	if r.IsClosed() {
		return r.MontoDisponible.Sub(r.MontoCierre)
	}
	return r.MontoDisponible.Sub(r.MontoApertura)
}

func formatFecha(t time.Time) string { return t.Format(DateLayout) }
