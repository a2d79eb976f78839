package shift

import (
	"context"

	"github.com/clubops/payroll-engine/compensation"
	"github.com/shopspring/decimal"
)

// =============================================================================
// KPI AND HISTORY VIEWS
// =============================================================================
//
// Both views are read-only. They re-derive bonus progress and per-shift
// attribution from stored shifts and never write shifts or the ledger.

// KPIReport is an employee's bonus progress for one month.
type KPIReport struct {
	EmployeeID     string                       `json:"employee_id"`
	ClubID         string                       `json:"club_id"`
	Month          string                       `json:"month"`
	SchemeID       string                       `json:"scheme_id,omitempty"`
	ShiftsCount    int                          `json:"shifts_count"`
	ReferenceCount int                          `json:"reference_shift_count"`
	Bonuses        []compensation.BonusProgress `json:"bonuses"`
}

// HistoryEntry is one shift with its share of the period bonuses.
type HistoryEntry struct {
	Shift    compensation.ShiftRecord     `json:"shift"`
	KPIBonus decimal.Decimal              `json:"kpi_bonus"`
	Lines    []compensation.BreakdownLine `json:"attributed_breakdown"`
}

// History is an employee's apportioned payroll for one month.
type History struct {
	EmployeeID    string          `json:"employee_id"`
	ClubID        string          `json:"club_id"`
	Month         string          `json:"month"`
	SchemeID      string          `json:"scheme_id,omitempty"`
	TotalSalary   decimal.Decimal `json:"total_salary"`
	BonusAmount   decimal.Decimal `json:"bonus_amount"`
	KPIBonusTotal decimal.Decimal `json:"kpi_bonus_total"`
	Shifts        []HistoryEntry  `json:"shifts"`
}

// periodView is the shared input of both reports.
type periodView struct {
	period   compensation.Period
	shifts   []compensation.ShiftRecord
	scheme   *compensation.Scheme
	formulas map[versionKey]compensation.Formula
	ref      int
}

type versionKey struct {
	schemeID string
	version  int
}

// formulaFor returns the version each shift was pinned to when priced.
func (v *periodView) formulaFor(sh compensation.ShiftRecord) *compensation.Formula {
	f, ok := v.formulas[versionKey{sh.SchemeID, sh.SchemeVersion}]
	if !ok {
		return nil
	}
	return &f
}

// KPI resolves every bonus of the employee's scheme against the month so far.
// month is "YYYY-MM"; empty means the current month.
func (s *Service) KPI(ctx context.Context, employeeID, clubID, month string) (*KPIReport, error) {
	v, err := s.loadView(ctx, employeeID, clubID, month)
	if err != nil {
		return nil, err
	}

	report := &KPIReport{
		EmployeeID:     employeeID,
		ClubID:         clubID,
		Month:          v.period.Key(),
		ShiftsCount:    len(v.shifts),
		ReferenceCount: v.ref,
		Bonuses:        []compensation.BonusProgress{},
	}
	if v.scheme == nil {
		return report, nil
	}
	report.SchemeID = v.scheme.ID
	report.Bonuses, _ = compensation.ResolvePeriod(v.scheme.PeriodBonuses, v.shifts, v.ref)
	return report, nil
}

// History apportions the month's period bonuses back onto its shifts.
func (s *Service) History(ctx context.Context, employeeID, clubID, month string) (*History, error) {
	v, err := s.loadView(ctx, employeeID, clubID, month)
	if err != nil {
		return nil, err
	}

	var bonuses []compensation.PeriodBonus
	h := &History{
		EmployeeID:  employeeID,
		ClubID:      clubID,
		Month:       v.period.Key(),
		TotalSalary: decimal.Zero,
		Shifts:      make([]HistoryEntry, 0, len(v.shifts)),
	}
	if v.scheme != nil {
		h.SchemeID = v.scheme.ID
		bonuses = v.scheme.PeriodBonuses
	}

	ap := compensation.Apportion(v.formulaFor, bonuses, v.shifts, v.ref)
	h.BonusAmount = ap.BonusAmount
	h.KPIBonusTotal = ap.KPIBonusTotal
	for i, attr := range ap.Shifts {
		h.TotalSalary = h.TotalSalary.Add(v.shifts[i].CalculatedSalary)
		h.Shifts = append(h.Shifts, HistoryEntry{
			Shift:    v.shifts[i],
			KPIBonus: attr.KPIBonus,
			Lines:    attr.Breakdown,
		})
	}
	return h, nil
}

func (s *Service) loadView(ctx context.Context, employeeID, clubID, month string) (*periodView, error) {
	if clubID == "" {
		return nil, &compensation.ValidationError{Field: "club_id", Message: "is required"}
	}
	if err := requireEmployee(ctx, s.store, employeeID); err != nil {
		return nil, err
	}
	settings, err := clubSettings(ctx, s.store, clubID)
	if err != nil {
		return nil, err
	}

	at := s.now()
	if month != "" {
		p, err := compensation.ParseMonth(month, settings.Location())
		if err != nil {
			return nil, err
		}
		at = p.Start
	}

	v := &periodView{}
	var scheme compensation.Scheme
	a, err := s.store.ActiveAssignment(ctx, employeeID, clubID)
	if err != nil {
		return nil, err
	}
	if a != nil {
		sc, err := s.store.GetScheme(ctx, a.SchemeID)
		if err != nil {
			return nil, err
		}
		if sc != nil {
			v.scheme = sc
			scheme = *sc
		}
	}

	v.period, v.shifts, v.ref, err = loadPeriod(ctx, s.store, employeeID, clubID, at, scheme)
	if err != nil {
		return nil, err
	}

	v.formulas = make(map[versionKey]compensation.Formula)
	for _, sh := range v.shifts {
		key := versionKey{sh.SchemeID, sh.SchemeVersion}
		if key.schemeID == "" || key.version == 0 {
			continue
		}
		if _, ok := v.formulas[key]; ok {
			continue
		}
		sv, err := s.store.GetSchemeVersion(ctx, key.schemeID, key.version)
		if err != nil {
			return nil, err
		}
		if sv != nil {
			v.formulas[key] = sv.Formula
		}
	}
	return v, nil
}
