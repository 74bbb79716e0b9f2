/*
handlers_test.go - HTTP tests for the caja API

Tests for:
- Register lifecycle over HTTP (open, load, close, detail, list)
- Confirmation gating of close and delete
- Error envelope and status mapping
- Report, export and migration status
*/
package api_test

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/caja-engine/api"
	"github.com/warp/caja-engine/caja"
	"github.com/warp/caja-engine/generic/store"
	"github.com/warp/caja-engine/migration"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func fixedNow() time.Time { return time.Date(2025, time.March, 10, 9, 30, 0, 0, time.UTC) }

type testServer struct {
	router http.Handler
	mem    *store.Memory
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	mem := store.NewMemory()
	ledger := caja.NewLedger(mem,
		caja.WithClock(fixedNow),
		caja.WithCodeGenerator(caja.NewCodeGenerator(rand.New(rand.NewSource(5)), fixedNow, 0)),
		caja.WithRefresh(api.LogRefresh),
	)
	runner := migration.NewRunner(mem, migration.Generators{})
	h := api.NewHandler(ledger, runner, "S/")
	return &testServer{router: api.NewRouter(h, []string{"http://localhost:5173"}), mem: mem}
}

func (s *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) open(t *testing.T, descripcion, monto string) api.CajaDTO {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/cajas", `{"descripcion":"`+descripcion+`","montoApertura":"`+monto+`"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[api.CajaDTO](t, rec)
}

func (s *testServer) stored(t *testing.T) string {
	t.Helper()
	raw, _, err := s.mem.Get(context.Background(), caja.CollectionKey)
	require.NoError(t, err)
	return string(raw)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

// =============================================================================
// LIFECYCLE
// =============================================================================

func TestAPI_Lifecycle(t *testing.T) {
	// GIVEN: An empty server
	// WHEN: A register is opened, loaded and closed
	// THEN: Each step returns the updated register with display amounts

	s := newTestServer(t)

	opened := s.open(t, "Caja turno mañana", "100.00")
	assert.Equal(t, 0, opened.Index)
	assert.Regexp(t, `^CAJ-[A-Z0-9]{4}$`, opened.Codigo)
	assert.Equal(t, "100.00", opened.MontoDisponible)
	assert.Equal(t, "S/ 100.00", opened.Display.Disponible)
	assert.Equal(t, "Abierto", opened.Estado)
	assert.Empty(t, opened.Historial)

	rec := s.do(t, http.MethodPost, "/api/cajas/0/cargas", `{"monto":"50.00","descripcion":"Venta extra"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	loaded := decode[api.CajaDTO](t, rec)
	assert.Equal(t, "150.00", loaded.MontoDisponible)
	require.Len(t, loaded.Historial, 1)
	assert.Equal(t, "Carga", loaded.Historial[0].Tipo)
	assert.Equal(t, "S/ 50.00", loaded.Historial[0].MontoDisplay)

	rec = s.do(t, http.MethodPost, "/api/cajas/0/cierre", `{"montoCierre":"150.00","observaciones":"Cierre exacto","confirm":true}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	closed := decode[api.CajaDTO](t, rec)
	assert.Equal(t, "Cerrado", closed.Estado)
	assert.Equal(t, "150.00", closed.MontoCierre)
	assert.Equal(t, "Cierre exacto", closed.Observaciones)
	assert.Len(t, closed.Historial, 2)

	rec = s.do(t, http.MethodGet, "/api/cajas/0", "")
	require.Equal(t, http.StatusOK, rec.Code)
	detail := decode[api.CajaDetailDTO](t, rec)
	assert.Equal(t, "0.00", detail.Diferencia)
	require.NotNil(t, detail.Desvio)
	assert.Equal(t, "normal", detail.Desvio.Clasificacion)

	rec = s.do(t, http.MethodGet, "/api/cajas", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]api.CajaDTO](t, rec), 1)
}

func TestAPI_Open_NumericAmount(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/cajas", `{"descripcion":"Caja 1","montoApertura":1234.5}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	dto := decode[api.CajaDTO](t, rec)
	assert.Equal(t, "1234.50", dto.MontoApertura)
	assert.Equal(t, "S/ 1,234.50", dto.Display.Apertura)
}

func TestAPI_ListEmpty(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/cajas", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

// =============================================================================
// ERRORS
// =============================================================================

func TestAPI_Open_Validation(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		code  int
		field string
	}{
		{"short description", `{"descripcion":"ab","montoApertura":"10"}`, http.StatusUnprocessableEntity, "descripcion"},
		{"missing description", `{"montoApertura":"10"}`, http.StatusUnprocessableEntity, "descripcion"},
		{"missing amount", `{"descripcion":"Caja"}`, http.StatusUnprocessableEntity, "montoApertura"},
		{"zero amount", `{"descripcion":"Caja","montoApertura":"0"}`, http.StatusUnprocessableEntity, "montoApertura"},
		{"malformed json", `{"descripcion":`, http.StatusBadRequest, ""},
		{"amount wrong type", `{"descripcion":"Caja","montoApertura":true}`, http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)

			rec := s.do(t, http.MethodPost, "/api/cajas", tt.body)

			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
			resp := decode[api.ErrorResponse](t, rec)
			assert.NotEmpty(t, resp.Detail)
			if tt.field != "" {
				assert.Contains(t, resp.Fields, tt.field)
			}
			assert.Empty(t, s.stored(t), "nothing persisted")
		})
	}
}

func TestAPI_StatusMapping(t *testing.T) {
	s := newTestServer(t)
	s.open(t, "Caja", "100")

	rec := s.do(t, http.MethodGet, "/api/cajas/3", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/cajas/abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/cajas/9/cargas", `{"monto":"10"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/cajas/0/cargas", `{"monto":"-10"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/cajas/0/cierre", `{"montoCierre":"200","confirm":true}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/cajas/0/cierre", `{"montoCierre":"100","confirm":true}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/cajas/0/cargas", `{"monto":"10"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/cajas/0/cierre", `{"montoCierre":"100","confirm":true}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAPI_Close_RequiresConfirm(t *testing.T) {
	// GIVEN: An open register
	// WHEN: Close is requested without confirm
	// THEN: 428 and the store is untouched

	s := newTestServer(t)
	s.open(t, "Caja", "100")
	before := s.stored(t)

	rec := s.do(t, http.MethodPost, "/api/cajas/0/cierre", `{"montoCierre":"100"}`)

	assert.Equal(t, http.StatusPreconditionRequired, rec.Code)
	assert.Equal(t, before, s.stored(t))
}

func TestAPI_PersistenceFailure(t *testing.T) {
	s := newTestServer(t)
	s.open(t, "Caja", "100")
	before := s.stored(t)
	s.mem.SetQuota(s.mem.Size())

	rec := s.do(t, http.MethodPost, "/api/cajas/0/cargas", `{"monto":"10"}`)

	assert.Equal(t, http.StatusInsufficientStorage, rec.Code)
	assert.Equal(t, before, s.stored(t))
}

func TestAPI_UndecodableCollection(t *testing.T) {
	// GIVEN: A stored collection with a record whose amount is not a number
	// WHEN: Opening a new register through the API
	// THEN: 500 and the stored collection is unchanged

	s := newTestServer(t)
	doc := `[{"codigo":"CAJ-AAAA","montoApertura":"50.00","estado":"Abierto"},` +
		`{"codigo":"CAJ-BBBB","montoApertura":"N/A","estado":"Abierto"}]`
	require.NoError(t, s.mem.Set(context.Background(), caja.CollectionKey, []byte(doc)))

	rec := s.do(t, http.MethodPost, "/api/cajas", `{"descripcion":"Nueva caja","montoApertura":"10"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, doc, s.stored(t))
}

// =============================================================================
// DELETE
// =============================================================================

func TestAPI_Delete(t *testing.T) {
	s := newTestServer(t)
	s.open(t, "Caja 1", "10")
	second := s.open(t, "Caja 2", "20")
	assert.Equal(t, 1, second.Index)

	rec := s.do(t, http.MethodDelete, "/api/cajas/0", "")
	assert.Equal(t, http.StatusPreconditionRequired, rec.Code)

	rec = s.do(t, http.MethodDelete, "/api/cajas/0?confirm=true", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/cajas", "")
	list := decode[[]api.CajaDTO](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, second.Codigo, list[0].Codigo)
	assert.Equal(t, 0, list[0].Index)

	rec = s.do(t, http.MethodDelete, "/api/cajas/5?confirm=true", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// REPORT / EXPORT / ADMIN
// =============================================================================

func TestAPI_Report(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/cajas/reporte", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"detail":"no hay cierres"}`, rec.Body.String())

	s.open(t, "Caja 1", "100")
	s.open(t, "Caja 2", "50")
	rec = s.do(t, http.MethodPost, "/api/cajas/0/cierre", `{"montoCierre":"80","confirm":true}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/cajas/reporte", "")
	require.Equal(t, http.StatusOK, rec.Code)
	report := decode[api.ClosureReportDTO](t, rec)
	assert.Equal(t, 1, report.Count)
	assert.Equal(t, 1, report.Criticos)
	assert.Equal(t, "-20.00", report.TotalDiferencia)
	assert.Equal(t, "S/ -20.00", report.Display.TotalDiferencia)
	require.Len(t, report.Rows, 1)
	assert.Equal(t, "critico", report.Rows[0].Clasificacion)
}

func TestAPI_Export(t *testing.T) {
	s := newTestServer(t)
	s.open(t, "Caja 1", "100")

	rec := s.do(t, http.MethodGet, "/api/cajas/export", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="caja_2025-03-10.json"`, rec.Header().Get("Content-Disposition"))
	var records []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	assert.Len(t, records, 1)
}

func TestAPI_MigrationStatus(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/migrations", "")
	require.Equal(t, http.StatusOK, rec.Code)
	status := decode[[]api.MigrationStatusDTO](t, rec)
	require.Len(t, status, 3)
	assert.Equal(t, migration.FlagCodes, status[0].Flag)
	assert.False(t, status[0].Done)
}

func TestAPI_Health(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
