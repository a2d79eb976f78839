package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/clubops/payroll-engine/compensation"
	"github.com/clubops/payroll-engine/factory"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// =============================================================================
// EMPLOYEE ENDPOINTS
// =============================================================================

// CreateEmployee creates or replaces an employee.
// POST /api/employees
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req CreateEmployeeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" || req.ClubID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "id, club_id and name are required", nil)
		return
	}

	emp := compensation.Employee{ID: req.ID, ClubID: req.ClubID, Name: req.Name, IsActive: true}
	if err := h.store.SaveEmployee(r.Context(), emp); err != nil {
		h.fail(w, r, "Failed to create employee", err)
		return
	}
	writeJSON(w, http.StatusCreated, emp)
}

// GetEmployee returns an employee.
// GET /api/employees/{id}
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	emp, err := h.store.GetEmployee(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "Failed to get employee", err)
		return
	}
	writeJSON(w, http.StatusOK, emp)
}

// =============================================================================
// SCHEME ENDPOINTS
// =============================================================================

// CreateScheme saves a scheme and, when a formula is given, publishes it as
// the next version. Both happen in one transaction.
// POST /api/schemes
func (h *Handler) CreateScheme(w http.ResponseWriter, r *http.Request) {
	var req factory.SchemeJSON
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	scheme, formula, err := h.schemes.FromJSON(req)
	if err != nil {
		h.fail(w, r, "Invalid scheme configuration", err)
		return
	}

	err = h.store.WithTx(r.Context(), func(st compensation.Store) error {
		if err := st.SaveScheme(r.Context(), *scheme); err != nil {
			return err
		}
		if formula == nil {
			return nil
		}
		_, err := st.PublishVersion(r.Context(), scheme.ID, *formula)
		return err
	})
	if err != nil {
		h.fail(w, r, "Failed to save scheme", err)
		return
	}

	dto, err := h.schemeDTO(r, scheme.ID)
	if err != nil {
		h.fail(w, r, "Failed to load scheme", err)
		return
	}
	writeJSON(w, http.StatusCreated, dto)
}

// GetScheme returns a scheme with every published version.
// GET /api/schemes/{id}
func (h *Handler) GetScheme(w http.ResponseWriter, r *http.Request) {
	dto, err := h.schemeDTO(r, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "Failed to get scheme", err)
		return
	}
	writeJSON(w, http.StatusOK, dto)
}

// PublishVersion appends a formula version. Shifts already priced keep
// the version they were pinned to.
// POST /api/schemes/{id}/versions
func (h *Handler) PublishVersion(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req factory.FormulaJSON
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	formula, err := h.schemes.FormulaFromJSON(req)
	if err != nil {
		h.fail(w, r, "Invalid formula", err)
		return
	}

	v, err := h.store.PublishVersion(r.Context(), id, *formula)
	if err != nil {
		h.fail(w, r, "Failed to publish version", err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (h *Handler) schemeDTO(r *http.Request, id string) (*SchemeDTO, error) {
	scheme, err := h.store.GetScheme(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if scheme == nil {
		return nil, fmt.Errorf("%w: %s", compensation.ErrSchemeNotFound, id)
	}
	versions, err := h.store.ListSchemeVersions(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if versions == nil {
		versions = []compensation.SchemeVersion{}
	}

	var latest *compensation.Formula
	if n := len(versions); n > 0 {
		latest = &versions[n-1].Formula
	}
	return &SchemeDTO{
		Scheme:   *scheme,
		Config:   h.schemes.ToJSON(*scheme, latest),
		Versions: versions,
	}, nil
}

// CreateAssignment makes a scheme the employee's active one at a club.
// POST /api/assignments
func (h *Handler) CreateAssignment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req AssignmentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.EmployeeID == "" || req.ClubID == "" || req.SchemeID == "" {
		writeError(w, http.StatusBadRequest, "employee_id, club_id and scheme_id are required", nil)
		return
	}

	if _, err := h.store.GetEmployee(ctx, req.EmployeeID); err != nil {
		h.fail(w, r, "Failed to create assignment", err)
		return
	}
	scheme, err := h.store.GetScheme(ctx, req.SchemeID)
	if err != nil {
		h.fail(w, r, "Failed to create assignment", err)
		return
	}
	if scheme == nil {
		writeError(w, http.StatusNotFound, "Scheme not found", nil)
		return
	}

	a := compensation.Assignment{
		EmployeeID: req.EmployeeID,
		ClubID:     req.ClubID,
		SchemeID:   req.SchemeID,
		IsActive:   true,
		AssignedAt: time.Now().UTC(),
	}
	if err := h.store.AssignScheme(ctx, a); err != nil {
		h.fail(w, r, "Failed to create assignment", err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// SetPlannedShifts records how many shifts an employee is planned for in a
// month. Bonus floors scale against this instead of the scheme standard.
// PUT /api/planned-shifts
func (h *Handler) SetPlannedShifts(w http.ResponseWriter, r *http.Request) {
	var req PlannedShiftsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.EmployeeID == "" || req.ClubID == "" {
		writeError(w, http.StatusBadRequest, "employee_id and club_id are required", nil)
		return
	}
	if _, err := compensation.ParseMonth(req.Month, time.UTC); err != nil {
		h.fail(w, r, "Invalid month", err)
		return
	}
	if req.Planned < 0 {
		writeError(w, http.StatusBadRequest, "planned must not be negative", nil)
		return
	}

	if err := h.store.SetPlannedShifts(r.Context(), req.EmployeeID, req.ClubID, req.Month, req.Planned); err != nil {
		h.fail(w, r, "Failed to save planned shifts", err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// =============================================================================
// DRY RUN
// =============================================================================

// Evaluate prices hypothetical shift figures without storing anything.
// POST /api/evaluate
func (h *Handler) Evaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	scheme, formula, err := h.schemes.FromJSON(factory.SchemeJSON{
		ClubID:        "dry-run",
		Name:          "dry-run",
		Formula:       &req.Formula,
		PeriodBonuses: req.PeriodBonuses,
	})
	if err != nil {
		h.fail(w, r, "Invalid formula", err)
		return
	}
	snaps := make([]compensation.BonusSnapshot, len(scheme.PeriodBonuses))
	for i, b := range scheme.PeriodBonuses {
		snaps[i] = compensation.BonusSnapshot{Bonus: b}
	}
	f := formula.WithBonuses(snaps)

	sh := compensation.ShiftRecord{
		TotalHours: req.TotalHours,
		CashIncome: req.CashIncome,
		CardIncome: req.CardIncome,
		Expenses:   req.Expenses,
		ReportData: req.ReportData,
	}
	if sh.ReportData == nil {
		sh.ReportData = map[string]decimal.Decimal{}
	}

	res, err := compensation.Evaluate(sh.Metrics(), &f, compensation.NewMetricContext(sh))
	if errors.Is(err, compensation.ErrConfiguration) {
		writeError(w, http.StatusBadRequest, "Formula cannot be evaluated", err)
		return
	}
	if err != nil {
		h.fail(w, r, "Failed to evaluate formula", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// =============================================================================
// CLUB CONFIGURATION
// =============================================================================

// SaveReportTemplate replaces the club's report template.
// PUT /api/clubs/{id}/report-template
func (h *Handler) SaveReportTemplate(w http.ResponseWriter, r *http.Request) {
	var req ReportTemplateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	seen := make(map[string]bool, len(req.Fields))
	for i, f := range req.Fields {
		switch {
		case f.MetricKey == "":
			writeError(w, http.StatusBadRequest, "Invalid template", fmt.Errorf("fields[%d]: metric_key is required", i))
			return
		case seen[f.MetricKey]:
			writeError(w, http.StatusBadRequest, "Invalid template", fmt.Errorf("fields[%d]: duplicate metric_key %q", i, f.MetricKey))
			return
		}
		switch f.FieldType {
		case compensation.FieldIncome, compensation.FieldExpense, compensation.FieldOther:
		default:
			writeError(w, http.StatusBadRequest, "Invalid template", fmt.Errorf("fields[%d]: unknown field_type %q", i, f.FieldType))
			return
		}
		seen[f.MetricKey] = true
	}

	t := compensation.ReportTemplate{ClubID: chi.URLParam(r, "id"), Fields: req.Fields}
	if err := h.store.SaveReportTemplate(r.Context(), t); err != nil {
		h.fail(w, r, "Failed to save report template", err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// SaveClubSettings replaces the club's day/night boundary.
// PUT /api/clubs/{id}/settings
func (h *Handler) SaveClubSettings(w http.ResponseWriter, r *http.Request) {
	var req ClubSettingsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if !validHour(req.DayStartHour) || !validHour(req.NightStartHour) {
		writeError(w, http.StatusBadRequest, "Hours must be between 0 and 23", nil)
		return
	}
	if req.Timezone == "" {
		req.Timezone = "UTC"
	}
	if _, err := time.LoadLocation(req.Timezone); err != nil {
		writeError(w, http.StatusBadRequest, "Unknown timezone", err)
		return
	}

	cs := compensation.ClubSettings{
		ClubID:         chi.URLParam(r, "id"),
		DayStartHour:   req.DayStartHour,
		NightStartHour: req.NightStartHour,
		Timezone:       req.Timezone,
	}
	if err := h.store.SaveClubSettings(r.Context(), cs); err != nil {
		h.fail(w, r, "Failed to save club settings", err)
		return
	}
	writeJSON(w, http.StatusOK, cs)
}

func validHour(h int) bool { return h >= 0 && h <= 23 }
