package caja_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/caja-engine/caja"
	"github.com/warp/caja-engine/generic"
)

func closed(apertura, disponible, cierre string) caja.Record {
	return caja.Record{
		Codigo:          "CAJ-TEST",
		Fecha:           "01/03/2025, 08:00:00",
		FechaCierre:     "01/03/2025, 20:00:00",
		MontoApertura:   money(apertura),
		MontoDisponible: money(disponible),
		MontoCierre:     money(cierre),
		Estado:          caja.EstadoCerrado,
	}
}

func TestBuildClosureReport_NoClosures(t *testing.T) {
	_, err := caja.BuildClosureReport(nil)
	assert.ErrorIs(t, err, caja.ErrNoClosures)

	open := caja.Record{Estado: caja.EstadoAbierto, MontoApertura: money("10")}
	_, err = caja.BuildClosureReport([]caja.Record{open})
	assert.ErrorIs(t, err, caja.ErrNoClosures)
}

func TestBuildClosureReport_Totals(t *testing.T) {
	// GIVEN: Three closed registers and one open one
	// WHEN: The report is built
	// THEN: Only closed ones count and the total difference equals the sum
	//       of the row differences

	records := []caja.Record{
		closed("100.00", "150.00", "150.00"),
		{Estado: caja.EstadoAbierto, MontoApertura: money("999")},
		closed("50.10", "80.35", "79.99"),
		closed("20.00", "20.00", "12.33"),
	}

	report, err := caja.BuildClosureReport(records)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Count)
	require.Len(t, report.Rows, 3)
	assert.Equal(t, []int{0, 2, 3}, []int{report.Rows[0].Index, report.Rows[1].Index, report.Rows[2].Index})
	assert.Equal(t, "170.10", report.TotalApertura.String())
	assert.Equal(t, "242.32", report.TotalCierre.String())
	assert.Equal(t, "72.22", report.TotalDiferencia.String())

	sum := generic.ZeroMoney
	for _, row := range report.Rows {
		sum = sum.Add(row.Diferencia)
	}
	assert.True(t, sum.Sub(report.TotalDiferencia).Abs().LessThanOrEqual(money("0.01")))
	assert.Equal(t, "01/03/2025, 20:00:00", report.Rows[0].Fecha)
}

func TestBuildClosureReport_Classification(t *testing.T) {
	tests := []struct {
		cierre string
		want   caja.Clasificacion
	}{
		{"100.00", caja.ClasificacionNormal},
		{"99.00", caja.ClasificacionNormal},
		{"98.99", caja.ClasificacionAdvertencia},
		{"95.00", caja.ClasificacionAdvertencia},
		{"94.99", caja.ClasificacionCritico},
		{"0.00", caja.ClasificacionCritico},
	}

	for _, tt := range tests {
		t.Run(tt.cierre, func(t *testing.T) {
			report, err := caja.BuildClosureReport([]caja.Record{closed("100", "100", tt.cierre)})
			require.NoError(t, err)
			assert.Equal(t, tt.want, report.Rows[0].Clasificacion)
		})
	}
}

func TestBuildClosureReport_CountsCriticos(t *testing.T) {
	report, err := caja.BuildClosureReport([]caja.Record{
		closed("100", "100", "50"),
		closed("100", "100", "100"),
		closed("100", "200", "10"),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Criticos)
}

func TestBuildClosureReport_FechaFallsBackToOpening(t *testing.T) {
	rec := closed("10", "10", "10")
	rec.FechaCierre = ""

	report, err := caja.BuildClosureReport([]caja.Record{rec})
	require.NoError(t, err)
	assert.Equal(t, rec.Fecha, report.Rows[0].Fecha)
}

func TestNewDesvio(t *testing.T) {
	d := caja.NewDesvio(closed("100", "120", "115"))
	assert.Equal(t, "5.00", d.Monto.String())
	assert.True(t, d.Porcentaje.Equal(decimal.RequireFromString("4.17")))
	assert.Equal(t, caja.ClasificacionAdvertencia, d.Clasificacion)

	zero := caja.NewDesvio(closed("0", "0", "0"))
	assert.True(t, zero.Porcentaje.IsZero())
	assert.Equal(t, caja.ClasificacionNormal, zero.Clasificacion)
}

func TestLedger_ReportClosures(t *testing.T) {
	ledger, _ := newTestLedger(t)
	ctx := context.Background()

	_, err := ledger.ReportClosures(ctx)
	assert.ErrorIs(t, err, caja.ErrNoClosures)

	_, err = ledger.Open(ctx, "Caja 1", "100")
	require.NoError(t, err)
	_, err = ledger.Open(ctx, "Caja 2", "60")
	require.NoError(t, err)
	_, err = ledger.Load(ctx, 1, "40", "")
	require.NoError(t, err)

	_, err = ledger.ReportClosures(ctx)
	assert.ErrorIs(t, err, caja.ErrNoClosures, "open registers are not reported")

	_, err = ledger.Close(ctx, 1, "95", "")
	require.NoError(t, err)

	report, err := ledger.ReportClosures(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, report.Count)
	assert.Equal(t, 1, report.Rows[0].Index)
	assert.Equal(t, "35.00", report.TotalDiferencia.String())
	assert.Equal(t, caja.ClasificacionAdvertencia, report.Rows[0].Clasificacion)
}
