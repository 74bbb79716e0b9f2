/*
handlers.go - HTTP API handlers for the caja ledger

PURPOSE:
  Exposes the caja engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to the ledger.

ENDPOINTS:
  Cajas:
    GET    /api/cajas                  List all registers
    POST   /api/cajas                  Open a register
    GET    /api/cajas/{index}          Register detail
    POST   /api/cajas/{index}/cargas   Load funds
    POST   /api/cajas/{index}/cierre   Close (requires confirm)
    DELETE /api/cajas/{index}          Remove row (requires ?confirm=true)
    GET    /api/cajas/reporte          Closure report
    GET    /api/cajas/export           Download caja_YYYY-MM-DD.json

  Admin:
    GET    /api/migrations             Migration flags
    GET    /health                     Liveness

CONFIRMATION:
  Close and delete are destructive. A request without confirm=true is
  answered with 428 Precondition Required and nothing is touched.

ERROR HANDLING:
  Errors are returned as {detail, fields} with an HTTP status:
  - 400: Malformed JSON or index
  - 404: No record at index, or no closures to report
  - 409: Register state forbids the operation (closed)
  - 422: Validation errors, invalid amounts
  - 428: Missing confirmation
  - 507: The store could not be written
  - 500: Stored records cannot be decoded, or anything else

SECURITY NOTE:
  No authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/warp/caja-engine/caja"
	"github.com/warp/caja-engine/generic"
	"github.com/warp/caja-engine/migration"
)

var validate = validator.New()

func init() {
	// Report JSON field names, so shape errors and ledger validation errors
	// name fields the same way.
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Ledger     *caja.Ledger
	Migrations *migration.Runner

	format formatter
}

// NewHandler creates a handler. currency is the display symbol ("S/").
func NewHandler(ledger *caja.Ledger, migrations *migration.Runner, currency string) *Handler {
	if currency == "" {
		currency = generic.DefaultCurrencySymbol
	}
	return &Handler{
		Ledger:     ledger,
		Migrations: migrations,
		format:     formatter{symbol: currency},
	}
}

// LogRefresh is the ledger refresh callback: it records that the register
// list changed.
func LogRefresh(ctx context.Context) {
	log.Debug().Str("request_id", middleware.GetReqID(ctx)).Msg("cajas refreshed")
}

// =============================================================================
// CAJA HANDLERS
// =============================================================================

// ListCajas returns every register in collection order.
func (h *Handler) ListCajas(w http.ResponseWriter, r *http.Request) {
	records, err := h.Ledger.List(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	dtos := make([]CajaDTO, len(records))
	for i, rec := range records {
		dtos[i] = h.format.caja(i, rec)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// OpenCaja opens a new register.
func (h *Handler) OpenCaja(w http.ResponseWriter, r *http.Request) {
	var req OpenCajaRequest
	if !bindAndValidate(w, r, &req) {
		return
	}

	rec, err := h.Ledger.Open(r.Context(), req.Descripcion, string(req.MontoApertura))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	records, err := h.Ledger.List(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	log.Info().Str("codigo", rec.Codigo).Str("monto", rec.MontoApertura.String()).Msg("caja opened")
	writeJSON(w, http.StatusCreated, h.format.caja(indexOf(records, rec.Codigo), rec))
}

// GetCaja returns the detail view of one register.
func (h *Handler) GetCaja(w http.ResponseWriter, r *http.Request) {
	index, ok := parseIndex(w, r)
	if !ok {
		return
	}

	view, err := h.Ledger.Detail(r.Context(), index)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.format.detail(view))
}

// LoadCaja adds funds to an open register.
func (h *Handler) LoadCaja(w http.ResponseWriter, r *http.Request) {
	index, ok := parseIndex(w, r)
	if !ok {
		return
	}
	var req LoadCajaRequest
	if !bindAndValidate(w, r, &req) {
		return
	}

	rec, err := h.Ledger.Load(r.Context(), index, string(req.Monto), req.Descripcion)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	log.Info().Str("codigo", rec.Codigo).Str("disponible", rec.MontoDisponible.String()).Msg("caja loaded")
	writeJSON(w, http.StatusOK, h.format.caja(index, rec))
}

// CloseCaja closes a register once the request confirms it.
func (h *Handler) CloseCaja(w http.ResponseWriter, r *http.Request) {
	index, ok := parseIndex(w, r)
	if !ok {
		return
	}
	var req CloseCajaRequest
	if !bindAndValidate(w, r, &req) {
		return
	}
	if !req.Confirm {
		writeError(w, http.StatusPreconditionRequired, "confirmacion requerida para cerrar la caja", nil)
		return
	}

	rec, err := h.Ledger.Close(r.Context(), index, string(req.MontoCierre), req.Observaciones)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	log.Info().Str("codigo", rec.Codigo).Str("cierre", rec.MontoCierre.String()).Msg("caja closed")
	writeJSON(w, http.StatusOK, h.format.caja(index, rec))
}

// DeleteCaja removes the row at index once the request confirms it.
func (h *Handler) DeleteCaja(w http.ResponseWriter, r *http.Request) {
	index, ok := parseIndex(w, r)
	if !ok {
		return
	}
	if r.URL.Query().Get("confirm") != "true" {
		writeError(w, http.StatusPreconditionRequired, "confirmacion requerida para eliminar", nil)
		return
	}

	if err := h.Ledger.Delete(r.Context(), index); err != nil {
		writeDomainError(w, r, err)
		return
	}
	log.Info().Int("index", index).Msg("caja deleted")
	w.WriteHeader(http.StatusNoContent)
}

// ReportClosures returns the aggregated closure report.
func (h *Handler) ReportClosures(w http.ResponseWriter, r *http.Request) {
	report, err := h.Ledger.ReportClosures(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.format.report(report))
}

// ExportCajas downloads the collection as a JSON file.
func (h *Handler) ExportCajas(w http.ResponseWriter, r *http.Request) {
	file, err := h.Ledger.Export(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="`+file.Name+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(file.Data)
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// MigrationStatus lists the migration flags.
func (h *Handler) MigrationStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.Migrations.Status(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	dtos := make([]MigrationStatusDTO, len(status))
	for i, s := range status {
		dtos[i] = MigrationStatusDTO{ID: s.ID, Flag: s.Flag, Done: s.Done}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

// bindAndValidate decodes the JSON body and runs validator tags. It returns
// false after writing the error response; the caller must return without
// writing another one.
func bindAndValidate(w http.ResponseWriter, r *http.Request, req any) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		writeError(w, http.StatusBadRequest, "JSON invalido: "+err.Error(), nil)
		return false
	}
	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			writeError(w, http.StatusBadRequest, err.Error(), nil)
			return false
		}
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
		writeError(w, http.StatusUnprocessableEntity, "Error de validacion", fields)
		return false
	}
	return true
}

func parseIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "indice invalido", nil)
		return 0, false
	}
	return index, true
}

// indexOf finds the collection index of codigo. Codes are unique, so the
// first match is the record.
func indexOf(records []caja.Record, codigo string) int {
	for i, r := range records {
		if r.Codigo == codigo {
			return i
		}
	}
	return len(records) - 1
}

// writeDomainError maps engine errors to HTTP statuses.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *caja.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusUnprocessableEntity, "Error de validacion",
			map[string]string{verr.Field: verr.Message})
	case errors.Is(err, caja.ErrNoClosures):
		writeError(w, http.StatusNotFound, "no hay cierres", nil)
	case caja.IsNotFound(err):
		writeError(w, http.StatusNotFound, "caja no encontrada", nil)
	case errors.Is(err, caja.ErrClosed), errors.Is(err, caja.ErrAlreadyClosed):
		writeError(w, http.StatusConflict, err.Error(), nil)
	case errors.Is(err, caja.ErrInvalidAmount):
		writeError(w, http.StatusUnprocessableEntity, err.Error(), nil)
	case errors.Is(err, generic.ErrCorruptCollection):
		log.Error().Err(err).Str("request_id", middleware.GetReqID(r.Context())).Msg("stored cajas unreadable")
		writeError(w, http.StatusInternalServerError, "los datos guardados de caja no se pueden leer", nil)
	case caja.IsPersistence(err):
		log.Error().Err(err).Str("request_id", middleware.GetReqID(r.Context())).Msg("store write failed")
		writeError(w, http.StatusInsufficientStorage, "no se pudo guardar, intente nuevamente", nil)
	default:
		log.Error().Err(err).Str("request_id", middleware.GetReqID(r.Context())).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "error interno", nil)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, detail string, fields map[string]string) {
	writeJSON(w, status, ErrorResponse{Detail: detail, Fields: fields})
}
