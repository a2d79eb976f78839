/*
Package shift implements the shift lifecycle: check-in, check-out, owner
edits, verification and payment, plus batch ingestion of historic shifts.

LIFECYCLE:

	ACTIVE --check-out--> CLOSED --verify--> VERIFIED --mark paid--> PAID

  - Check-out computes hours and prices the shift with the employee's
    assigned scheme, pinning the scheme version used.
  - Edits to a CLOSED shift re-price it with the pinned version. Only
    Recalculate moves a shift to the scheme's latest version.
  - Verification posts the shift's income to the ledger and flips the status
    in one database transaction. It is one-way.
  - VERIFIED and PAID shifts are read-only: the ledger already reflects them.

PRICING:
  Period bonuses are resolved over the employee's shifts in the same
  calendar month (club timezone), including the shift being priced, then
  frozen into the formula handed to compensation.Evaluate. No assignment or
  no published version prices the shift at zero with an empty breakdown.

CONCURRENCY:
  Every mutating operation runs inside TxStore.WithTx and only touches the
  transaction-scoped store it is given.
*/
package shift

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/clubops/payroll-engine/compensation"
	"github.com/clubops/payroll-engine/ledger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultConcurrency is the number of batch workers when Config leaves it unset.
const DefaultConcurrency = 4

// Config tunes the service.
type Config struct {
	// Concurrency bounds the ProcessBatch worker pool.
	Concurrency int
}

// Service is the shift lifecycle controller.
type Service struct {
	store  compensation.TxStore
	guard  *ledger.Guard
	logger *slog.Logger
	cfg    Config
	newID  func() string
	now    func() time.Time
}

// NewService creates a service. A nil logger discards output.
func NewService(store compensation.TxStore, logger *slog.Logger, cfg Config) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	return &Service{
		store:  store,
		guard:  ledger.NewGuard(store, logger),
		logger: logger.With("component", "shift"),
		cfg:    cfg,
		newID:  uuid.NewString,
		now:    time.Now,
	}
}

// =============================================================================
// INPUTS
// =============================================================================

// ShiftInput describes a shift entered after the fact, by hand or in a batch.
type ShiftInput struct {
	EmployeeID string                     `json:"employee_id"`
	ClubID     string                     `json:"club_id"`
	CheckIn    time.Time                  `json:"check_in"`
	CheckOut   *time.Time                 `json:"check_out,omitempty"`
	TotalHours *decimal.Decimal           `json:"total_hours,omitempty"` // overrides the check-in/out span
	CashIncome decimal.Decimal            `json:"cash_income"`
	CardIncome decimal.Decimal            `json:"card_income"`
	Expenses   decimal.Decimal            `json:"expenses"`
	ReportData map[string]decimal.Decimal `json:"report_data,omitempty"`

	// Row is the sheet row a spreadsheet reader took the input from.
	Row int `json:"-"`

	// parseErr is set by the spreadsheet reader for rows it could not decode.
	parseErr error
}

// CheckInInput opens a shift.
type CheckInInput struct {
	EmployeeID string    `json:"employee_id"`
	ClubID     string    `json:"club_id"`
	CheckIn    time.Time `json:"check_in"` // zero means now
}

// CheckOutInput closes a shift with the figures reported at the end of it.
type CheckOutInput struct {
	CheckOut   time.Time                  `json:"check_out"` // zero means now
	CashIncome decimal.Decimal            `json:"cash_income"`
	CardIncome decimal.Decimal            `json:"card_income"`
	Expenses   decimal.Decimal            `json:"expenses"`
	ReportData map[string]decimal.Decimal `json:"report_data,omitempty"`
}

// =============================================================================
// LIFECYCLE OPERATIONS
// =============================================================================

// CheckIn opens an ACTIVE shift. An employee may have one open shift per club.
func (s *Service) CheckIn(ctx context.Context, in CheckInInput) (*compensation.ShiftRecord, error) {
	if in.ClubID == "" {
		return nil, &compensation.ValidationError{Field: "club_id", Message: "is required"}
	}
	if in.CheckIn.IsZero() {
		in.CheckIn = s.now()
	}

	var out *compensation.ShiftRecord
	err := s.store.WithTx(ctx, func(st compensation.Store) error {
		if err := requireEmployee(ctx, st, in.EmployeeID); err != nil {
			return err
		}
		open, err := st.ListShifts(ctx, compensation.ShiftFilter{
			EmployeeID: in.EmployeeID,
			ClubID:     in.ClubID,
			Statuses:   []compensation.ShiftStatus{compensation.StatusActive},
		})
		if err != nil {
			return err
		}
		if len(open) > 0 {
			return &compensation.ValidationError{
				Field:   "employee_id",
				Message: fmt.Sprintf("already checked in (shift %s)", open[0].ID),
			}
		}

		settings, err := clubSettings(ctx, st, in.ClubID)
		if err != nil {
			return err
		}
		sh := &compensation.ShiftRecord{
			ID:               s.newID(),
			EmployeeID:       in.EmployeeID,
			ClubID:           in.ClubID,
			CheckIn:          in.CheckIn,
			Status:           compensation.StatusActive,
			ShiftType:        settings.Classify(in.CheckIn),
			SalaryBreakdown:  []compensation.BreakdownLine{},
			ReportData:       map[string]decimal.Decimal{},
			CalculatedSalary: decimal.Zero,
		}
		if err := st.InsertShift(ctx, sh); err != nil {
			return err
		}
		out = sh
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "shift opened", "shift_id", out.ID, "employee_id", out.EmployeeID, "club_id", out.ClubID)
	return out, nil
}

// CheckOut closes an ACTIVE shift and prices it with the latest scheme version.
func (s *Service) CheckOut(ctx context.Context, id string, in CheckOutInput) (*compensation.ShiftRecord, error) {
	if in.CheckOut.IsZero() {
		in.CheckOut = s.now()
	}
	if err := validateAmounts(in.CashIncome, in.CardIncome, in.Expenses); err != nil {
		return nil, err
	}

	var out *compensation.ShiftRecord
	err := s.store.WithTx(ctx, func(st compensation.Store) error {
		sh, err := st.GetShift(ctx, id)
		if err != nil {
			return err
		}
		if sh.Status != compensation.StatusActive {
			return &compensation.TransitionError{ShiftID: id, From: sh.Status, To: compensation.StatusClosed}
		}
		if !in.CheckOut.After(sh.CheckIn) {
			return &compensation.ValidationError{Field: "check_out", Message: "must be after check_in"}
		}

		checkOut := in.CheckOut
		sh.CheckOut = &checkOut
		sh.TotalHours = compensation.HoursBetween(sh.CheckIn, checkOut)
		sh.CashIncome = in.CashIncome
		sh.CardIncome = in.CardIncome
		sh.Expenses = in.Expenses
		sh.ReportData = copyReport(in.ReportData)
		sh.Status = compensation.StatusClosed

		if err := s.price(ctx, st, sh, true); err != nil {
			return err
		}
		if err := st.UpdateShift(ctx, sh); err != nil {
			return err
		}
		out = sh
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "shift closed",
		"shift_id", out.ID,
		"hours", out.TotalHours.String(),
		"salary", out.CalculatedSalary.String(),
		"scheme_version", out.SchemeVersion,
	)
	return out, nil
}

// CreateManual records a completed shift directly as CLOSED.
func (s *Service) CreateManual(ctx context.Context, in ShiftInput) (*compensation.ShiftRecord, error) {
	if in.parseErr != nil {
		return nil, in.parseErr
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}

	var out *compensation.ShiftRecord
	err := s.store.WithTx(ctx, func(st compensation.Store) error {
		if err := requireEmployee(ctx, st, in.EmployeeID); err != nil {
			return err
		}
		settings, err := clubSettings(ctx, st, in.ClubID)
		if err != nil {
			return err
		}

		sh := &compensation.ShiftRecord{
			ID:         s.newID(),
			EmployeeID: in.EmployeeID,
			ClubID:     in.ClubID,
			CheckIn:    in.CheckIn,
			CheckOut:   in.CheckOut,
			CashIncome: in.CashIncome,
			CardIncome: in.CardIncome,
			Expenses:   in.Expenses,
			ReportData: copyReport(in.ReportData),
			Status:     compensation.StatusClosed,
			ShiftType:  settings.Classify(in.CheckIn),
		}
		switch {
		case in.TotalHours != nil:
			sh.TotalHours = *in.TotalHours
		case in.CheckOut != nil:
			sh.TotalHours = compensation.HoursBetween(in.CheckIn, *in.CheckOut)
		default:
			sh.TotalHours = decimal.Zero
		}

		if err := s.price(ctx, st, sh, true); err != nil {
			return err
		}
		if err := st.InsertShift(ctx, sh); err != nil {
			return err
		}
		out = sh
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Update merges a patch into a shift. Setting Status drives the matching
// transition: CLOSED checks out, VERIFIED verifies, PAID marks paid.
func (s *Service) Update(ctx context.Context, id string, p Patch) (*compensation.ShiftRecord, error) {
	if p.Status != nil && !p.Status.Valid() {
		return nil, &compensation.ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", *p.Status)}
	}

	var out *compensation.ShiftRecord
	err := s.store.WithTx(ctx, func(st compensation.Store) error {
		sh, err := st.GetShift(ctx, id)
		if err != nil {
			return err
		}
		from := sh.Status
		target := from
		if p.Status != nil {
			target = *p.Status
		}

		if p.touchesFields() {
			if locked(from) {
				return fmt.Errorf("update shift %s (%s): %w", id, from, compensation.ErrShiftLocked)
			}
			if err := p.apply(sh); err != nil {
				return err
			}
			if from == compensation.StatusClosed && target == compensation.StatusClosed && p.touchesIncome() {
				sh.HasOwnerCorrections = true
			}
		}

		switch {
		case p.Status != nil && target == from && from == compensation.StatusVerified:
			posted, err := st.TransactionsByShift(ctx, id)
			if err != nil {
				return err
			}
			return &compensation.AlreadyImportedError{ShiftID: id, Existing: len(posted)}
		case p.Status != nil && target == from && from == compensation.StatusPaid:
			return &compensation.TransitionError{ShiftID: id, From: from, To: target}
		case target == from:
			if from == compensation.StatusClosed && p.touchesFields() {
				if err := s.price(ctx, st, sh, false); err != nil {
					return err
				}
			}
		case from == compensation.StatusActive && target == compensation.StatusClosed:
			if sh.CheckOut == nil {
				now := s.now()
				sh.CheckOut = &now
			}
			if !sh.CheckOut.After(sh.CheckIn) {
				return &compensation.ValidationError{Field: "check_out", Message: "must be after check_in"}
			}
			if p.TotalHours == nil {
				sh.TotalHours = compensation.HoursBetween(sh.CheckIn, *sh.CheckOut)
			}
			sh.Status = compensation.StatusClosed
			if err := s.price(ctx, st, sh, true); err != nil {
				return err
			}
		case from == compensation.StatusClosed && target == compensation.StatusVerified:
			if p.touchesFields() {
				if err := s.price(ctx, st, sh, false); err != nil {
					return err
				}
			}
			if err := s.verify(ctx, st, sh, p.Actor); err != nil {
				return err
			}
		case from == compensation.StatusVerified && target == compensation.StatusPaid:
			now := s.now()
			sh.PaidAt = &now
			sh.Status = compensation.StatusPaid
		default:
			return &compensation.TransitionError{ShiftID: id, From: from, To: target}
		}

		if err := st.UpdateShift(ctx, sh); err != nil {
			return err
		}
		out = sh
		return nil
	})
	if err != nil {
		return nil, err
	}
	if p.Status != nil && *p.Status != compensation.StatusClosed {
		s.logger.InfoContext(ctx, "shift status changed", "shift_id", id, "status", out.Status, "actor", p.Actor)
	}
	return out, nil
}

// Verify posts the shift's income to the ledger and marks it VERIFIED.
func (s *Service) Verify(ctx context.Context, id, actor string) (*compensation.ShiftRecord, error) {
	status := compensation.StatusVerified
	return s.Update(ctx, id, Patch{Status: &status, Actor: actor})
}

// MarkPaid moves a VERIFIED shift to PAID.
func (s *Service) MarkPaid(ctx context.Context, id, actor string) (*compensation.ShiftRecord, error) {
	status := compensation.StatusPaid
	return s.Update(ctx, id, Patch{Status: &status, Actor: actor})
}

// Recalculate re-prices a CLOSED shift with its scheme's latest version.
func (s *Service) Recalculate(ctx context.Context, id string) (*compensation.ShiftRecord, error) {
	var out *compensation.ShiftRecord
	err := s.store.WithTx(ctx, func(st compensation.Store) error {
		sh, err := st.GetShift(ctx, id)
		if err != nil {
			return err
		}
		if locked(sh.Status) {
			return fmt.Errorf("recalculate shift %s (%s): %w", id, sh.Status, compensation.ErrShiftLocked)
		}
		if sh.Status != compensation.StatusClosed {
			return &compensation.ValidationError{Field: "status", Message: "shift is still open"}
		}
		if err := s.price(ctx, st, sh, true); err != nil {
			return err
		}
		if err := st.UpdateShift(ctx, sh); err != nil {
			return err
		}
		out = sh
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "shift recalculated", "shift_id", id, "scheme_version", out.SchemeVersion)
	return out, nil
}

// Delete removes a shift unless ledger rows reference it.
func (s *Service) Delete(ctx context.Context, id string) error {
	err := s.store.WithTx(ctx, func(st compensation.Store) error {
		if _, err := st.GetShift(ctx, id); err != nil {
			return err
		}
		posted, err := st.TransactionsByShift(ctx, id)
		if err != nil {
			return err
		}
		if len(posted) > 0 {
			return fmt.Errorf("delete shift %s (%d transactions): %w", id, len(posted), compensation.ErrLedgerLocked)
		}
		return st.DeleteShift(ctx, id)
	})
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "shift deleted", "shift_id", id)
	return nil
}

// Get returns a shift.
func (s *Service) Get(ctx context.Context, id string) (*compensation.ShiftRecord, error) {
	return s.store.GetShift(ctx, id)
}

// List returns shifts matching the filter.
func (s *Service) List(ctx context.Context, f compensation.ShiftFilter) ([]compensation.ShiftRecord, error) {
	return s.store.ListShifts(ctx, f)
}

func (s *Service) verify(ctx context.Context, st compensation.Store, sh *compensation.ShiftRecord, actor string) error {
	if actor == "" {
		return &compensation.ValidationError{Field: "verified_by", Message: "is required"}
	}
	if _, err := s.guard.WithStore(st).ImportShift(ctx, *sh, actor); err != nil {
		return err
	}
	now := s.now()
	sh.Status = compensation.StatusVerified
	sh.VerifiedBy = actor
	sh.VerifiedAt = &now
	return nil
}

// =============================================================================
// PRICING
// =============================================================================

// price recomputes salary and breakdown. With repin the scheme is re-resolved
// from the active assignment and its latest version is pinned; otherwise the
// pinned version is reused, falling back to repin when nothing is pinned yet.
func (s *Service) price(ctx context.Context, st compensation.Store, sh *compensation.ShiftRecord, repin bool) error {
	scheme, version, err := resolveScheme(ctx, st, sh, repin)
	if err != nil {
		return err
	}

	var formula *compensation.Formula
	if version != nil {
		snaps, err := periodSnapshots(ctx, st, *sh, *scheme)
		if err != nil {
			return err
		}
		f := version.Formula.WithBonuses(snaps)
		formula = &f
	}

	res, err := compensation.EvaluateOrZero(sh.Metrics(), formula, compensation.NewMetricContext(*sh))
	if err != nil {
		return fmt.Errorf("price shift %s: %w", sh.ID, err)
	}
	if formula == nil {
		s.logger.DebugContext(ctx, "no scheme for shift, salary is zero",
			"shift_id", sh.ID, "employee_id", sh.EmployeeID, "club_id", sh.ClubID)
	}
	sh.CalculatedSalary = res.Total
	sh.SalaryBreakdown = res.Breakdown
	return nil
}

func resolveScheme(ctx context.Context, st compensation.Store, sh *compensation.ShiftRecord, repin bool) (*compensation.Scheme, *compensation.SchemeVersion, error) {
	schemeID, version := sh.SchemeID, sh.SchemeVersion
	if repin || schemeID == "" {
		a, err := st.ActiveAssignment(ctx, sh.EmployeeID, sh.ClubID)
		if err != nil {
			return nil, nil, err
		}
		if a == nil {
			sh.SchemeID, sh.SchemeVersion = "", 0
			return nil, nil, nil
		}
		schemeID, version = a.SchemeID, 0
	}

	scheme, err := st.GetScheme(ctx, schemeID)
	if err != nil {
		return nil, nil, err
	}
	if scheme == nil {
		sh.SchemeID, sh.SchemeVersion = "", 0
		return nil, nil, nil
	}

	var v *compensation.SchemeVersion
	if version > 0 {
		v, err = st.GetSchemeVersion(ctx, schemeID, version)
	} else {
		v, err = st.LatestSchemeVersion(ctx, schemeID)
	}
	if err != nil {
		return nil, nil, err
	}
	if v == nil {
		sh.SchemeID, sh.SchemeVersion = schemeID, 0
		return scheme, nil, nil
	}
	sh.SchemeID, sh.SchemeVersion = schemeID, v.Version
	return scheme, v, nil
}

// periodSnapshots resolves the scheme's bonuses over the month the shift
// belongs to, with sh standing in for its stored copy.
func periodSnapshots(ctx context.Context, st compensation.Store, sh compensation.ShiftRecord, scheme compensation.Scheme) ([]compensation.BonusSnapshot, error) {
	if len(scheme.PeriodBonuses) == 0 {
		return nil, nil
	}
	_, shifts, ref, err := loadPeriod(ctx, st, sh.EmployeeID, sh.ClubID, sh.CheckIn, scheme)
	if err != nil {
		return nil, err
	}

	merged := make([]compensation.ShiftRecord, 0, len(shifts)+1)
	for _, other := range shifts {
		if other.ID != sh.ID {
			merged = append(merged, other)
		}
	}
	merged = append(merged, sh)

	_, snaps := compensation.ResolvePeriod(scheme.PeriodBonuses, merged, ref)
	return snaps, nil
}

// loadPeriod returns the month containing at, the employee's completed
// shifts in it, and the reference shift count for scaling.
func loadPeriod(ctx context.Context, st compensation.Store, employeeID, clubID string, at time.Time, scheme compensation.Scheme) (compensation.Period, []compensation.ShiftRecord, int, error) {
	settings, err := clubSettings(ctx, st, clubID)
	if err != nil {
		return compensation.Period{}, nil, 0, err
	}
	period := compensation.MonthPeriod(at, settings.Location())

	shifts, err := st.ListShifts(ctx, compensation.ShiftFilter{
		EmployeeID: employeeID,
		ClubID:     clubID,
		Statuses:   completedStatuses,
		From:       &period.Start,
		To:         &period.End,
	})
	if err != nil {
		return period, nil, 0, err
	}

	ref := scheme.StandardMonthlyShifts
	planned, ok, err := st.PlannedShifts(ctx, employeeID, clubID, period.Key())
	if err != nil {
		return period, nil, 0, err
	}
	if ok {
		ref = planned
	}
	return period, shifts, ref, nil
}

var completedStatuses = []compensation.ShiftStatus{
	compensation.StatusClosed,
	compensation.StatusVerified,
	compensation.StatusPaid,
}

// =============================================================================
// HELPERS
// =============================================================================

func locked(st compensation.ShiftStatus) bool {
	return st == compensation.StatusVerified || st == compensation.StatusPaid
}

func requireEmployee(ctx context.Context, st compensation.Store, id string) error {
	if id == "" {
		return &compensation.ValidationError{Field: "employee_id", Message: "is required"}
	}
	_, err := st.GetEmployee(ctx, id)
	return err
}

func clubSettings(ctx context.Context, st compensation.Store, clubID string) (compensation.ClubSettings, error) {
	cs, err := st.ClubSettings(ctx, clubID)
	if err != nil {
		return compensation.ClubSettings{}, fmt.Errorf("load settings for club %s: %w", clubID, err)
	}
	if cs == nil {
		return compensation.DefaultClubSettings(clubID), nil
	}
	return *cs, nil
}

func validateInput(in ShiftInput) error {
	if in.EmployeeID == "" {
		return &compensation.ValidationError{Field: "employee_id", Message: "is required"}
	}
	if in.ClubID == "" {
		return &compensation.ValidationError{Field: "club_id", Message: "is required"}
	}
	if in.CheckIn.IsZero() {
		return &compensation.ValidationError{Field: "check_in", Message: "is required"}
	}
	if in.CheckOut != nil && !in.CheckOut.After(in.CheckIn) {
		return &compensation.ValidationError{Field: "check_out", Message: "must be after check_in"}
	}
	if in.TotalHours != nil && in.TotalHours.IsNegative() {
		return &compensation.ValidationError{Field: "total_hours", Message: "must not be negative"}
	}
	return validateAmounts(in.CashIncome, in.CardIncome, in.Expenses)
}

func validateAmounts(cash, card, expenses decimal.Decimal) error {
	if cash.IsNegative() {
		return &compensation.ValidationError{Field: "cash_income", Message: "must not be negative"}
	}
	if card.IsNegative() {
		return &compensation.ValidationError{Field: "card_income", Message: "must not be negative"}
	}
	if expenses.IsNegative() {
		return &compensation.ValidationError{Field: "expenses", Message: "must not be negative"}
	}
	return nil
}

func copyReport(m map[string]decimal.Decimal) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
