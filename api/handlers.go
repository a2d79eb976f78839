/*
handlers.go - HTTP request handlers for the payroll API

PURPOSE:
  Implements HTTP handlers for shift lifecycle, batch ingestion and the
  per-employee KPI and history reports. Handlers parse requests, call the
  shift service, and format responses.

HANDLER PATTERN:
  Each handler follows this pattern:
  1. Parse URL params / query string / body
  2. Call the service (validation lives there)
  3. Map errors to HTTP status codes
  4. Return JSON (or an .xlsx download)

ERROR HANDLING:
  - 400 Bad Request:  malformed body, ValidationError
  - 404 Not Found:    unknown shift, scheme or employee
  - 409 Conflict:     already imported, locked shift, illegal transition
  - 500 Internal:     anything else (logged with the request ID)

SEE ALSO:
  - dto.go: Request/response types
  - server.go: Route definitions
  - schemes.go, finance.go: remaining endpoint groups
*/
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/clubops/payroll-engine/compensation"
	"github.com/clubops/payroll-engine/factory"
	"github.com/clubops/payroll-engine/ledger"
	"github.com/clubops/payroll-engine/shift"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// maxUploadBytes caps batch workbook uploads.
const maxUploadBytes = 32 << 20

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	store   compensation.TxStore
	shifts  *shift.Service
	ledger  *ledger.Guard
	schemes *factory.SchemeFactory
	logger  *slog.Logger
}

// NewHandler creates a handler over store. A nil logger discards output.
func NewHandler(store compensation.TxStore, logger *slog.Logger, cfg shift.Config) *Handler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Handler{
		store:   store,
		shifts:  shift.NewService(store, logger, cfg),
		ledger:  ledger.NewGuard(store, logger),
		schemes: factory.NewSchemeFactory(),
		logger:  logger.With("component", "api"),
	}
}

// =============================================================================
// SHIFT ENDPOINTS
// =============================================================================

// CreateShift records a completed shift entered by hand.
// POST /api/shifts
func (h *Handler) CreateShift(w http.ResponseWriter, r *http.Request) {
	var req shift.ShiftInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	sh, err := h.shifts.CreateManual(r.Context(), req)
	if err != nil {
		h.fail(w, r, "Failed to create shift", err)
		return
	}
	writeJSON(w, http.StatusCreated, sh)
}

// CheckIn opens a shift.
// POST /api/shifts/check-in
func (h *Handler) CheckIn(w http.ResponseWriter, r *http.Request) {
	var req shift.CheckInInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	sh, err := h.shifts.CheckIn(r.Context(), req)
	if err != nil {
		h.fail(w, r, "Failed to check in", err)
		return
	}
	writeJSON(w, http.StatusCreated, sh)
}

// CheckOut closes an open shift and prices it.
// POST /api/shifts/{id}/check-out
func (h *Handler) CheckOut(w http.ResponseWriter, r *http.Request) {
	var req shift.CheckOutInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	sh, err := h.shifts.CheckOut(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.fail(w, r, "Failed to check out", err)
		return
	}
	writeJSON(w, http.StatusOK, sh)
}

// ListShifts returns shifts matching the query.
// GET /api/shifts?club_id=&employee_id=&status=CLOSED,VERIFIED&from=&to=
func (h *Handler) ListShifts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := compensation.ShiftFilter{
		ClubID:     q.Get("club_id"),
		EmployeeID: q.Get("employee_id"),
	}
	if raw := q.Get("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			st := compensation.ShiftStatus(strings.ToUpper(strings.TrimSpace(s)))
			if !st.Valid() {
				writeError(w, http.StatusBadRequest, "Invalid status filter", fmt.Errorf("unknown status %q", s))
				return
			}
			f.Statuses = append(f.Statuses, st)
		}
	}
	var err error
	if f.From, err = queryTime(r, "from"); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid from", err)
		return
	}
	if f.To, err = queryTime(r, "to"); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid to", err)
		return
	}

	shifts, err := h.shifts.List(r.Context(), f)
	if err != nil {
		h.fail(w, r, "Failed to list shifts", err)
		return
	}
	if shifts == nil {
		shifts = []compensation.ShiftRecord{}
	}
	writeJSON(w, http.StatusOK, shifts)
}

// GetShift returns one shift.
// GET /api/shifts/{id}
func (h *Handler) GetShift(w http.ResponseWriter, r *http.Request) {
	sh, err := h.shifts.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "Failed to get shift", err)
		return
	}
	writeJSON(w, http.StatusOK, sh)
}

// UpdateShift applies a partial update. Setting status drives the
// matching transition.
// PATCH /api/shifts/{id}
func (h *Handler) UpdateShift(w http.ResponseWriter, r *http.Request) {
	var req shift.Patch
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	sh, err := h.shifts.Update(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.fail(w, r, "Failed to update shift", err)
		return
	}
	writeJSON(w, http.StatusOK, sh)
}

// VerifyShift verifies a closed shift and posts its income to the ledger.
// POST /api/shifts/{id}/verify
func (h *Handler) VerifyShift(w http.ResponseWriter, r *http.Request) {
	var req ActorRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	sh, err := h.shifts.Verify(r.Context(), chi.URLParam(r, "id"), req.Actor)
	if err != nil {
		h.fail(w, r, "Failed to verify shift", err)
		return
	}
	writeJSON(w, http.StatusOK, sh)
}

// MarkPaid marks a verified shift as paid out.
// POST /api/shifts/{id}/paid
func (h *Handler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	var req ActorRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	sh, err := h.shifts.MarkPaid(r.Context(), chi.URLParam(r, "id"), req.Actor)
	if err != nil {
		h.fail(w, r, "Failed to mark shift paid", err)
		return
	}
	writeJSON(w, http.StatusOK, sh)
}

// Recalculate reprices a shift against the latest scheme version.
// POST /api/shifts/{id}/recalculate
func (h *Handler) Recalculate(w http.ResponseWriter, r *http.Request) {
	sh, err := h.shifts.Recalculate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "Failed to recalculate shift", err)
		return
	}
	writeJSON(w, http.StatusOK, sh)
}

// DeleteShift removes a shift that has no ledger rows.
// DELETE /api/shifts/{id}
func (h *Handler) DeleteShift(w http.ResponseWriter, r *http.Request) {
	if err := h.shifts.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, "Failed to delete shift", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ShiftTransactions returns the ledger rows posted for a shift.
// GET /api/shifts/{id}/transactions
func (h *Handler) ShiftTransactions(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.shifts.Get(r.Context(), id); err != nil {
		h.fail(w, r, "Failed to get shift", err)
		return
	}

	txs, err := h.ledger.ShiftTransactions(r.Context(), id)
	if err != nil {
		h.fail(w, r, "Failed to list transactions", err)
		return
	}
	if txs == nil {
		txs = []compensation.FinanceTransaction{}
	}
	writeJSON(w, http.StatusOK, txs)
}

// =============================================================================
// BATCH ENDPOINTS
// =============================================================================

// ProcessBatch imports completed shifts from a JSON body or an uploaded
// .xlsx workbook (multipart field "file"). Rows fail independently, so the
// response is 200 whenever the batch itself could be read.
// POST /api/shifts/batch
func (h *Handler) ProcessBatch(w http.ResponseWriter, r *http.Request) {
	var rows []shift.ShiftInput

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
		file, _, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "Missing workbook upload", err)
			return
		}
		defer file.Close()

		if rows, err = shift.ParseBatchWorkbook(file); err != nil {
			h.fail(w, r, "Failed to read workbook", err)
			return
		}
	} else {
		var req BatchRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
		rows = req.Rows
	}

	writeJSON(w, http.StatusOK, h.shifts.ProcessBatch(r.Context(), rows))
}

// BatchTemplate downloads an empty batch workbook with the expected header.
// GET /api/shifts/batch/template
func (h *Handler) BatchTemplate(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := shift.WriteBatchWorkbook(&buf, nil); err != nil {
		h.fail(w, r, "Failed to build template", err)
		return
	}
	writeWorkbook(w, "shifts-template.xlsx", &buf)
}

// =============================================================================
// REPORT ENDPOINTS
// =============================================================================

// GetKPI returns bonus ladder progress for the month.
// GET /api/employees/{id}/kpi?club_id=&month=YYYY-MM
func (h *Handler) GetKPI(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	report, err := h.shifts.KPI(r.Context(), chi.URLParam(r, "id"), q.Get("club_id"), q.Get("month"))
	if err != nil {
		h.fail(w, r, "Failed to build KPI report", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// GetHistory returns the month's shifts with period bonuses apportioned.
// GET /api/employees/{id}/history?club_id=&month=YYYY-MM[&format=xlsx]
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	employeeID := chi.URLParam(r, "id")

	hist, err := h.shifts.History(r.Context(), employeeID, q.Get("club_id"), q.Get("month"))
	if err != nil {
		h.fail(w, r, "Failed to build history", err)
		return
	}

	if q.Get("format") != "xlsx" {
		writeJSON(w, http.StatusOK, hist)
		return
	}

	var buf bytes.Buffer
	if err := shift.WriteHistoryWorkbook(&buf, hist); err != nil {
		h.fail(w, r, "Failed to export history", err)
		return
	}
	writeWorkbook(w, fmt.Sprintf("payroll-%s-%s.xlsx", employeeID, hist.Month), &buf)
}

// =============================================================================
// HELPERS
// =============================================================================

// statusFor maps domain errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case compensation.IsClientError(err):
		return http.StatusBadRequest
	case compensation.IsNotFound(err):
		return http.StatusNotFound
	case compensation.IsConflict(err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err with its mapped status. Server errors are logged.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, message string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), message,
			"error", err,
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()))
	}
	writeError(w, status, message, err)
}

// decodeJSON decodes the request body into v. An empty body leaves v zero.
func decodeJSON(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// queryTime parses an RFC 3339 timestamp or a YYYY-MM-DD date (UTC midnight).
func queryTime(r *http.Request, key string) (*time.Time, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, fmt.Errorf("%s: expected RFC 3339 or YYYY-MM-DD, got %q", key, raw)
	}
	return &t, nil
}

func writeWorkbook(w http.ResponseWriter, filename string, buf *bytes.Buffer) {
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
