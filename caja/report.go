package caja

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/warp/caja-engine/generic"
)

// =============================================================================
// ARQUEO CLASSIFICATION
// =============================================================================

// Clasificacion grades how far the closing count is from the available
// balance.
type Clasificacion string

const (
	ClasificacionNormal      Clasificacion = "normal"      // |desvio| <= 1%
	ClasificacionAdvertencia Clasificacion = "advertencia" // |desvio| <= 5%
	ClasificacionCritico     Clasificacion = "critico"     // |desvio| > 5%
)

var (
	umbralNormal      = decimal.NewFromInt(1)
	umbralAdvertencia = decimal.NewFromInt(5)
)

// Desvio is the closing shortfall (available minus closing amount).
type Desvio struct {
	Monto         generic.Money
	Porcentaje    decimal.Decimal
	Clasificacion Clasificacion
}

// NewDesvio measures the shortfall of a closed record. Porcentaje is
// relative to the available balance.
func NewDesvio(r Record) Desvio {
	monto := r.MontoDisponible.Sub(r.MontoCierre)
	pct := monto.Percent(r.MontoDisponible)
	return Desvio{Monto: monto, Porcentaje: pct, Clasificacion: clasificar(pct)}
}

func clasificar(pct decimal.Decimal) Clasificacion {
	abs := pct.Abs()
	switch {
	case abs.LessThanOrEqual(umbralNormal):
		return ClasificacionNormal
	case abs.LessThanOrEqual(umbralAdvertencia):
		return ClasificacionAdvertencia
	default:
		return ClasificacionCritico
	}
}

// =============================================================================
// DETAIL VIEW
// =============================================================================

// View is a record enriched for the detail screen.
type View struct {
	Index      int
	Record     Record
	Diferencia generic.Money
	Desvio     *Desvio // closed records only
}

func NewView(index int, r Record) View {
	v := View{Index: index, Record: r, Diferencia: r.Diferencia()}
	if r.IsClosed() {
		d := NewDesvio(r)
		v.Desvio = &d
	}
	return v
}

// =============================================================================
// CLOSURE REPORT
// =============================================================================

// ClosureRow is one closed register in the report.
type ClosureRow struct {
	Index         int
	Codigo        string
	Fecha         string // fechaCierre, or fecha for records closed without one
	MontoApertura generic.Money
	MontoCierre   generic.Money
	Diferencia    generic.Money // cierre - apertura
	Clasificacion Clasificacion
}

// ClosureReport aggregates every closed register.
type ClosureReport struct {
	Rows            []ClosureRow
	TotalApertura   generic.Money
	TotalCierre     generic.Money
	TotalDiferencia generic.Money
	Count           int
	Criticos        int
}

// BuildClosureReport aggregates the closed subset of records. It returns
// ErrNoClosures when none is closed.
func BuildClosureReport(records []Record) (ClosureReport, error) {
	report := ClosureReport{
		Rows:          []ClosureRow{},
		TotalApertura: generic.ZeroMoney,
		TotalCierre:   generic.ZeroMoney,
	}
	for i, r := range records {
		if !r.IsClosed() {
			continue
		}
		fecha := r.FechaCierre
		if fecha == "" {
			fecha = r.Fecha
		}
		row := ClosureRow{
			Index:         i,
			Codigo:        r.Codigo,
			Fecha:         fecha,
			MontoApertura: r.MontoApertura,
			MontoCierre:   r.MontoCierre,
			Diferencia:    r.MontoCierre.Sub(r.MontoApertura),
			Clasificacion: NewDesvio(r).Clasificacion,
		}
		report.Rows = append(report.Rows, row)
		report.TotalApertura = report.TotalApertura.Add(r.MontoApertura)
		report.TotalCierre = report.TotalCierre.Add(r.MontoCierre)
		if row.Clasificacion == ClasificacionCritico {
			report.Criticos++
		}
	}
	if len(report.Rows) == 0 {
		return ClosureReport{}, ErrNoClosures
	}
	report.Count = len(report.Rows)
	report.TotalDiferencia = report.TotalCierre.Sub(report.TotalApertura)
	return report, nil
}

// ReportClosures loads the collection and builds the closure report.
func (l *Ledger) ReportClosures(ctx context.Context) (ClosureReport, error) {
	records, err := l.load(ctx)
	if err != nil {
		return ClosureReport{}, err
	}
	return BuildClosureReport(records)
}
