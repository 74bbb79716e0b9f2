/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the persisted caja record from the external API contract: amounts are
  returned both as the raw two-decimal string and as a display string
  ("S/ 150.00"), and list rows carry their collection index.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Caja:
    CajaDTO, CajaDetailDTO, HistorialDTO, DesvioDTO
    OpenCajaRequest, LoadCajaRequest, CloseCajaRequest

  Report:
    ClosureReportDTO, ClosureRowDTO

  Migrations:
    MigrationStatusDTO

VALIDATION:
  Request structs carry go-playground/validator tags for shape checks
  (required fields, lengths). Business rules (trimmed description length,
  positive amounts, balance bounds) stay in the caja package.

SEE ALSO:
  - handlers.go: Uses these types
  - caja/types.go: Persisted record shape
*/
package api

import (
	"encoding/json"
	"errors"

	"github.com/warp/caja-engine/caja"
	"github.com/warp/caja-engine/generic"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// AmountInput accepts an amount as a JSON string ("150.50") or number
// (150.5) and keeps its text, so the ledger parses it exactly once.
type AmountInput string

func (a *AmountInput) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*a = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*a = AmountInput(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return errors.New("amount must be a string or a number")
	}
	*a = AmountInput(n.String())
	return nil
}

// OpenCajaRequest opens a new register.
type OpenCajaRequest struct {
	Descripcion   string      `json:"descripcion"   validate:"required,max=200"`
	MontoApertura AmountInput `json:"montoApertura" validate:"required"`
}

// LoadCajaRequest adds funds to an open register.
type LoadCajaRequest struct {
	Monto       AmountInput `json:"monto"       validate:"required"`
	Descripcion string      `json:"descripcion" validate:"max=200"`
}

// CloseCajaRequest closes a register. Confirm is the answer to the
// "close this register?" prompt and must be true.
type CloseCajaRequest struct {
	MontoCierre   AmountInput `json:"montoCierre"   validate:"required"`
	Observaciones string      `json:"observaciones" validate:"max=500"`
	Confirm       bool        `json:"confirm"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// HistorialDTO is one funding or closing event.
type HistorialDTO struct {
	Tipo          string `json:"tipo"`
	Monto         string `json:"monto"`
	MontoDisplay  string `json:"montoDisplay"`
	Descripcion   string `json:"descripcion"`
	Observaciones string `json:"observaciones,omitempty"`
	Fecha         string `json:"fecha"`
}

// MontosDisplayDTO holds the formatted amounts of a register.
type MontosDisplayDTO struct {
	Apertura   string `json:"apertura"`
	Disponible string `json:"disponible"`
	Cierre     string `json:"cierre"`
}

// CajaDTO represents a register in API responses.
type CajaDTO struct {
	Index           int              `json:"index"`
	Codigo          string           `json:"codigo"`
	Fecha           string           `json:"fecha"`
	Descripcion     string           `json:"descripcion"`
	MontoApertura   string           `json:"montoApertura"`
	MontoDisponible string           `json:"montoDisponible"`
	MontoCierre     string           `json:"montoCierre"`
	Display         MontosDisplayDTO `json:"display"`
	Estado          string           `json:"estado"`
	FechaCierre     string           `json:"fechaCierre,omitempty"`
	Observaciones   string           `json:"observaciones,omitempty"`
	Historial       []HistorialDTO   `json:"historial"`
}

// DesvioDTO is the arqueo shortfall of a closed register.
type DesvioDTO struct {
	Monto         string `json:"monto"`
	Porcentaje    string `json:"porcentaje"`
	Clasificacion string `json:"clasificacion"` // normal | advertencia | critico
}

// CajaDetailDTO is the detail view of a register.
type CajaDetailDTO struct {
	CajaDTO
	Diferencia        string     `json:"diferencia"`
	DiferenciaDisplay string     `json:"diferenciaDisplay"`
	Desvio            *DesvioDTO `json:"desvio,omitempty"`
}

// ClosureRowDTO is one closed register in the report.
type ClosureRowDTO struct {
	Index         int    `json:"index"`
	Codigo        string `json:"codigo"`
	Fecha         string `json:"fecha"`
	MontoApertura string `json:"montoApertura"`
	MontoCierre   string `json:"montoCierre"`
	Diferencia    string `json:"diferencia"`
	Clasificacion string `json:"clasificacion"`
}

// ClosureReportDTO aggregates every closed register.
type ClosureReportDTO struct {
	Rows            []ClosureRowDTO `json:"rows"`
	TotalApertura   string          `json:"totalApertura"`
	TotalCierre     string          `json:"totalCierre"`
	TotalDiferencia string          `json:"totalDiferencia"`
	Display         struct {
		TotalApertura   string `json:"totalApertura"`
		TotalCierre     string `json:"totalCierre"`
		TotalDiferencia string `json:"totalDiferencia"`
	} `json:"display"`
	Count    int `json:"count"`
	Criticos int `json:"criticos"`
}

// MigrationStatusDTO reports one flagged migration.
type MigrationStatusDTO struct {
	ID   string `json:"id"`
	Flag string `json:"flag"`
	Done bool   `json:"done"`
}

// ErrorResponse is the standard error envelope.
type ErrorResponse struct {
	Detail string            `json:"detail"`
	Fields map[string]string `json:"fields,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

type formatter struct {
	symbol string
}

func (f formatter) money(m generic.Money) string {
	return generic.FormatCurrency(m, f.symbol)
}

func (f formatter) caja(index int, r caja.Record) CajaDTO {
	historial := make([]HistorialDTO, len(r.Historial))
	for i, e := range r.Historial {
		historial[i] = HistorialDTO{
			Tipo:          string(e.Tipo),
			Monto:         e.Monto.String(),
			MontoDisplay:  f.money(e.Monto),
			Descripcion:   e.Descripcion,
			Observaciones: e.Observaciones,
			Fecha:         e.Fecha,
		}
	}
	return CajaDTO{
		Index:           index,
		Codigo:          r.Codigo,
		Fecha:           r.Fecha,
		Descripcion:     r.Descripcion,
		MontoApertura:   r.MontoApertura.String(),
		MontoDisponible: r.MontoDisponible.String(),
		MontoCierre:     r.MontoCierre.String(),
		Display: MontosDisplayDTO{
			Apertura:   f.money(r.MontoApertura),
			Disponible: f.money(r.MontoDisponible),
			Cierre:     f.money(r.MontoCierre),
		},
		Estado:        string(r.Estado),
		FechaCierre:   r.FechaCierre,
		Observaciones: r.Observaciones,
		Historial:     historial,
	}
}

func (f formatter) detail(v caja.View) CajaDetailDTO {
	dto := CajaDetailDTO{
		CajaDTO:           f.caja(v.Index, v.Record),
		Diferencia:        v.Diferencia.String(),
		DiferenciaDisplay: f.money(v.Diferencia),
	}
	if v.Desvio != nil {
		dto.Desvio = &DesvioDTO{
			Monto:         v.Desvio.Monto.String(),
			Porcentaje:    v.Desvio.Porcentaje.StringFixed(2),
			Clasificacion: string(v.Desvio.Clasificacion),
		}
	}
	return dto
}

func (f formatter) report(r caja.ClosureReport) ClosureReportDTO {
	rows := make([]ClosureRowDTO, len(r.Rows))
	for i, row := range r.Rows {
		rows[i] = ClosureRowDTO{
			Index:         row.Index,
			Codigo:        row.Codigo,
			Fecha:         row.Fecha,
			MontoApertura: row.MontoApertura.String(),
			MontoCierre:   row.MontoCierre.String(),
			Diferencia:    row.Diferencia.String(),
			Clasificacion: string(row.Clasificacion),
		}
	}
	dto := ClosureReportDTO{
		Rows:            rows,
		TotalApertura:   r.TotalApertura.String(),
		TotalCierre:     r.TotalCierre.String(),
		TotalDiferencia: r.TotalDiferencia.String(),
		Count:           r.Count,
		Criticos:        r.Criticos,
	}
	dto.Display.TotalApertura = f.money(r.TotalApertura)
	dto.Display.TotalCierre = f.money(r.TotalCierre)
	dto.Display.TotalDiferencia = f.money(r.TotalDiferencia)
	return dto
}
