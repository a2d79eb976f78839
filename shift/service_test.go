package shift_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/clubops/payroll-engine/compensation"
	"github.com/clubops/payroll-engine/factory"
	"github.com/clubops/payroll-engine/shift"
	"github.com/clubops/payroll-engine/store/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestService(t *testing.T) (*shift.Service, *sqlite.Store) {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	for _, id := range []string{"emp-1", "emp-2"} {
		require.NoError(t, store.SaveEmployee(ctx, compensation.Employee{ID: id, ClubID: "club-1", Name: id, IsActive: true}))
	}
	return shift.NewService(store, nil, shift.Config{}), store
}

// installScheme saves a scheme from JSON, publishes its formula, and assigns
// it to the employee.
func installScheme(t *testing.T, store *sqlite.Store, employeeID, doc string) compensation.Scheme {
	t.Helper()
	ctx := context.Background()
	scheme, formula, err := factory.NewSchemeFactory().ParseScheme(doc)
	require.NoError(t, err)
	require.NoError(t, store.SaveScheme(ctx, *scheme))
	_, err = store.PublishVersion(ctx, scheme.ID, *formula)
	require.NoError(t, err)
	require.NoError(t, store.AssignScheme(ctx, compensation.Assignment{
		EmployeeID: employeeID, ClubID: scheme.ClubID, SchemeID: scheme.ID,
	}))
	return *scheme
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func march(day, hour int) time.Time {
	return time.Date(2025, time.March, day, hour, 0, 0, 0, time.UTC)
}

func manual(employeeID string, day int, cash, card string) shift.ShiftInput {
	out := march(day, 18)
	return shift.ShiftInput{
		EmployeeID: employeeID,
		ClubID:     "club-1",
		CheckIn:    march(day, 10),
		CheckOut:   &out,
		CashIncome: dec(cash),
		CardIncome: dec(card),
	}
}

// =============================================================================
// CHECK-IN / CHECK-OUT
// =============================================================================

func TestCheckInCheckOut_PricesWithAssignedScheme(t *testing.T) {
	// GIVEN: An employee on a 250/hour scheme
	// WHEN: Working 10:00 to 18:00
	// THEN: 8 hours, salary 2000, version 1 pinned, classified DAY
	svc, store := newTestService(t)
	ctx := context.Background()
	scheme := installScheme(t, store, "emp-1", factory.HourlyJSON("hourly", "club-1", "Hourly", 250))

	sh, err := svc.CheckIn(ctx, shift.CheckInInput{EmployeeID: "emp-1", ClubID: "club-1", CheckIn: march(10, 10)})
	require.NoError(t, err)
	assert.Equal(t, compensation.StatusActive, sh.Status)
	assert.Equal(t, compensation.ShiftDay, sh.ShiftType)

	closed, err := svc.CheckOut(ctx, sh.ID, shift.CheckOutInput{
		CheckOut:   march(10, 18),
		CashIncome: dec("3000"),
		CardIncome: dec("2000"),
	})
	require.NoError(t, err)

	assert.Equal(t, compensation.StatusClosed, closed.Status)
	assert.True(t, closed.TotalHours.Equal(dec("8")))
	assert.True(t, closed.CalculatedSalary.Equal(dec("2000")), "got %s", closed.CalculatedSalary)
	assert.Equal(t, scheme.ID, closed.SchemeID)
	assert.Equal(t, 1, closed.SchemeVersion)
	require.Len(t, closed.SalaryBreakdown, 1)
	assert.Equal(t, compensation.ComponentHourly, closed.SalaryBreakdown[0].Type)

	stored, err := svc.Get(ctx, sh.ID)
	require.NoError(t, err)
	assert.True(t, stored.CalculatedSalary.Equal(dec("2000")))
}

func TestCheckIn_RejectsSecondOpenShift(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CheckIn(ctx, shift.CheckInInput{EmployeeID: "emp-1", ClubID: "club-1", CheckIn: march(10, 10)})
	require.NoError(t, err)

	_, err = svc.CheckIn(ctx, shift.CheckInInput{EmployeeID: "emp-1", ClubID: "club-1", CheckIn: march(10, 11)})
	assert.True(t, compensation.IsClientError(err))
}

func TestCheckIn_UnknownEmployee(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CheckIn(context.Background(), shift.CheckInInput{EmployeeID: "ghost", ClubID: "club-1"})
	assert.True(t, errors.Is(err, compensation.ErrEmployeeNotFound))
}

func TestCheckIn_NightShift(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	require.NoError(t, store.SaveClubSettings(ctx, compensation.ClubSettings{
		ClubID: "club-1", DayStartHour: 9, NightStartHour: 21, Timezone: "UTC",
	}))

	sh, err := svc.CheckIn(ctx, shift.CheckInInput{EmployeeID: "emp-1", ClubID: "club-1", CheckIn: march(10, 22)})
	require.NoError(t, err)
	assert.Equal(t, compensation.ShiftNight, sh.ShiftType)
}

func TestCheckOut_WithoutSchemeIsZero(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	sh, err := svc.CheckIn(ctx, shift.CheckInInput{EmployeeID: "emp-1", ClubID: "club-1", CheckIn: march(10, 10)})
	require.NoError(t, err)
	closed, err := svc.CheckOut(ctx, sh.ID, shift.CheckOutInput{CheckOut: march(10, 18), CashIncome: dec("100")})
	require.NoError(t, err)

	assert.True(t, closed.CalculatedSalary.IsZero())
	assert.Empty(t, closed.SalaryBreakdown)
	assert.Empty(t, closed.SchemeID)
}

func TestCheckOut_Validation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	sh, err := svc.CheckIn(ctx, shift.CheckInInput{EmployeeID: "emp-1", ClubID: "club-1", CheckIn: march(10, 10)})
	require.NoError(t, err)

	_, err = svc.CheckOut(ctx, sh.ID, shift.CheckOutInput{CheckOut: march(10, 9)})
	assert.True(t, compensation.IsClientError(err), "check-out before check-in")

	_, err = svc.CheckOut(ctx, sh.ID, shift.CheckOutInput{CheckOut: march(10, 18), CashIncome: dec("-1")})
	assert.True(t, compensation.IsClientError(err), "negative income")

	_, err = svc.CheckOut(ctx, "missing", shift.CheckOutInput{CheckOut: march(10, 18)})
	assert.True(t, errors.Is(err, compensation.ErrShiftNotFound))
}

func TestCheckOut_TwiceIsInvalidTransition(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	sh, err := svc.CheckIn(ctx, shift.CheckInInput{EmployeeID: "emp-1", ClubID: "club-1", CheckIn: march(10, 10)})
	require.NoError(t, err)
	_, err = svc.CheckOut(ctx, sh.ID, shift.CheckOutInput{CheckOut: march(10, 18)})
	require.NoError(t, err)

	_, err = svc.CheckOut(ctx, sh.ID, shift.CheckOutInput{CheckOut: march(10, 19)})
	assert.True(t, errors.Is(err, compensation.ErrInvalidTransition))
}

// =============================================================================
// EDITS AND VERSION PINNING
// =============================================================================

func TestUpdate_KeepsPinnedVersionUntilRecalculate(t *testing.T) {
	// GIVEN: A shift priced with v1 (250/hour)
	// WHEN: v2 (300/hour) is published and the owner edits the shift
	// THEN: The edit re-prices with v1; only Recalculate moves it to v2
	svc, store := newTestService(t)
	ctx := context.Background()
	scheme := installScheme(t, store, "emp-1", factory.HourlyJSON("hourly", "club-1", "Hourly", 250))

	sh, err := svc.CreateManual(ctx, manual("emp-1", 10, "1000", "0"))
	require.NoError(t, err)
	assert.Equal(t, 1, sh.SchemeVersion)

	_, v2, err := factory.NewSchemeFactory().ParseScheme(factory.HourlyJSON("hourly", "club-1", "Hourly", 300))
	require.NoError(t, err)
	published, err := store.PublishVersion(ctx, scheme.ID, *v2)
	require.NoError(t, err)
	assert.Equal(t, 2, published.Version)

	edited, err := svc.Update(ctx, sh.ID, shift.Patch{TotalHours: decPtr("10")})
	require.NoError(t, err)
	assert.Equal(t, 1, edited.SchemeVersion)
	assert.True(t, edited.CalculatedSalary.Equal(dec("2500")), "got %s", edited.CalculatedSalary)

	recalculated, err := svc.Recalculate(ctx, sh.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, recalculated.SchemeVersion)
	assert.True(t, recalculated.CalculatedSalary.Equal(dec("3000")), "got %s", recalculated.CalculatedSalary)
}

func TestUpdate_IncomeEditFlagsOwnerCorrection(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	installScheme(t, store, "emp-1", factory.HourlyWithRevenueShareJSON("share", "club-1", "Share", 0, 10))

	sh, err := svc.CreateManual(ctx, manual("emp-1", 10, "1000", "0"))
	require.NoError(t, err)
	assert.False(t, sh.HasOwnerCorrections)
	assert.True(t, sh.CalculatedSalary.Equal(dec("100")))

	edited, err := svc.Update(ctx, sh.ID, shift.Patch{CardIncome: decPtr("500")})
	require.NoError(t, err)
	assert.True(t, edited.HasOwnerCorrections)
	assert.True(t, edited.CalculatedSalary.Equal(dec("150")), "got %s", edited.CalculatedSalary)
	assert.True(t, edited.CashIncome.Equal(dec("1000")), "untouched fields survive the merge")
}

func TestUpdate_HoursEditIsNotAnIncomeCorrection(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	sh, err := svc.CreateManual(ctx, manual("emp-1", 10, "1000", "0"))
	require.NoError(t, err)

	out := march(10, 20)
	edited, err := svc.Update(ctx, sh.ID, shift.Patch{CheckOut: &out})
	require.NoError(t, err)
	assert.False(t, edited.HasOwnerCorrections)
	assert.True(t, edited.TotalHours.Equal(dec("10")))
}

func TestUpdate_ReportDataMerges(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	in := manual("emp-1", 10, "0", "0")
	in.ReportData = map[string]decimal.Decimal{"bar_sales": dec("100"), "hookah": dec("3")}
	sh, err := svc.CreateManual(ctx, in)
	require.NoError(t, err)

	edited, err := svc.Update(ctx, sh.ID, shift.Patch{ReportData: map[string]decimal.Decimal{"bar_sales": dec("250")}})
	require.NoError(t, err)
	assert.True(t, edited.ReportData["bar_sales"].Equal(dec("250")))
	assert.True(t, edited.ReportData["hookah"].Equal(dec("3")))
}

func TestUpdate_RemovesReportKeys(t *testing.T) {
	// GIVEN: A closed shift with a metric entered by mistake
	// WHEN: The owner removes it
	// THEN: The key is gone, the rest is kept, and the edit counts as a correction
	svc, _ := newTestService(t)
	ctx := context.Background()
	in := manual("emp-1", 10, "0", "0")
	in.ReportData = map[string]decimal.Decimal{"bar_sales": dec("100"), "hookah": dec("3")}
	sh, err := svc.CreateManual(ctx, in)
	require.NoError(t, err)

	edited, err := svc.Update(ctx, sh.ID, shift.Patch{RemoveReportKeys: []string{"hookah", "never-set"}})
	require.NoError(t, err)
	assert.NotContains(t, edited.ReportData, "hookah")
	assert.True(t, edited.ReportData["bar_sales"].Equal(dec("100")))
	assert.True(t, edited.HasOwnerCorrections)

	stored, err := svc.Get(ctx, sh.ID)
	require.NoError(t, err)
	assert.NotContains(t, stored.ReportData, "hookah")

	verifiedStatus := compensation.StatusVerified
	_, err = svc.Update(ctx, sh.ID, shift.Patch{Status: &verifiedStatus, Actor: "owner-1"})
	require.NoError(t, err)
	_, err = svc.Update(ctx, sh.ID, shift.Patch{RemoveReportKeys: []string{"bar_sales"}})
	assert.True(t, errors.Is(err, compensation.ErrShiftLocked))
}

func TestUpdate_UnknownStatus(t *testing.T) {
	svc, _ := newTestService(t)
	sh, err := svc.CreateManual(context.Background(), manual("emp-1", 10, "0", "0"))
	require.NoError(t, err)

	bogus := compensation.ShiftStatus("ARCHIVED")
	_, err = svc.Update(context.Background(), sh.ID, shift.Patch{Status: &bogus})
	assert.True(t, compensation.IsClientError(err))
}

func TestUpdate_ClosedBackToActiveRejected(t *testing.T) {
	svc, _ := newTestService(t)
	sh, err := svc.CreateManual(context.Background(), manual("emp-1", 10, "0", "0"))
	require.NoError(t, err)

	active := compensation.StatusActive
	_, err = svc.Update(context.Background(), sh.ID, shift.Patch{Status: &active})
	var terr *compensation.TransitionError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, compensation.StatusClosed, terr.From)
	assert.Equal(t, compensation.StatusActive, terr.To)
}

func TestUpdate_StatusClosedChecksOut(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	installScheme(t, store, "emp-1", factory.HourlyJSON("hourly", "club-1", "Hourly", 100))

	sh, err := svc.CheckIn(ctx, shift.CheckInInput{EmployeeID: "emp-1", ClubID: "club-1", CheckIn: march(10, 10)})
	require.NoError(t, err)

	out := march(10, 14)
	closed := compensation.StatusClosed
	res, err := svc.Update(ctx, sh.ID, shift.Patch{CheckOut: &out, Status: &closed})
	require.NoError(t, err)
	assert.Equal(t, compensation.StatusClosed, res.Status)
	assert.True(t, res.CalculatedSalary.Equal(dec("400")))
	assert.False(t, res.HasOwnerCorrections)
}

// =============================================================================
// VERIFICATION AND PAYMENT
// =============================================================================

func TestVerify_PostsIncomeOnce(t *testing.T) {
	// GIVEN: A closed shift with cash 3000 and card 2000
	// WHEN: Verifying it twice
	// THEN: Two ledger rows from the first verify; the second is a conflict
	svc, store := newTestService(t)
	ctx := context.Background()
	sh, err := svc.CreateManual(ctx, manual("emp-1", 10, "3000", "2000"))
	require.NoError(t, err)

	verified, err := svc.Verify(ctx, sh.ID, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, compensation.StatusVerified, verified.Status)
	assert.Equal(t, "owner-1", verified.VerifiedBy)
	require.NotNil(t, verified.VerifiedAt)

	txs, err := store.TransactionsByShift(ctx, sh.ID)
	require.NoError(t, err)
	assert.Len(t, txs, 2)

	_, err = svc.Verify(ctx, sh.ID, "owner-2")
	require.Error(t, err)
	assert.True(t, compensation.IsConflict(err))

	txs, err = store.TransactionsByShift(ctx, sh.ID)
	require.NoError(t, err)
	assert.Len(t, txs, 2)
}

func TestVerify_SecondVerifyOfZeroIncomeShiftRefused(t *testing.T) {
	// GIVEN: A verified shift with no income, so no ledger rows exist
	// WHEN: Verifying it again with another actor
	// THEN: The second verify is refused and the first verifier is kept
	svc, store := newTestService(t)
	ctx := context.Background()
	sh, err := svc.CreateManual(ctx, manual("emp-1", 10, "0", "0"))
	require.NoError(t, err)

	_, err = svc.Verify(ctx, sh.ID, "owner-1")
	require.NoError(t, err)
	txs, err := store.TransactionsByShift(ctx, sh.ID)
	require.NoError(t, err)
	assert.Empty(t, txs)

	_, err = svc.Verify(ctx, sh.ID, "owner-2")
	require.Error(t, err)
	assert.True(t, errors.Is(err, compensation.ErrAlreadyImported))
	assert.True(t, compensation.IsConflict(err))

	got, err := svc.Get(ctx, sh.ID)
	require.NoError(t, err)
	assert.Equal(t, compensation.StatusVerified, got.Status)
	assert.Equal(t, "owner-1", got.VerifiedBy)
}

func TestMarkPaid_TwiceIsInvalidTransition(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	sh, err := svc.CreateManual(ctx, manual("emp-1", 10, "500", "0"))
	require.NoError(t, err)
	_, err = svc.Verify(ctx, sh.ID, "owner-1")
	require.NoError(t, err)
	_, err = svc.MarkPaid(ctx, sh.ID, "owner-1")
	require.NoError(t, err)

	_, err = svc.MarkPaid(ctx, sh.ID, "owner-1")
	assert.True(t, errors.Is(err, compensation.ErrInvalidTransition))
}

func TestVerify_RollsBackWhenLedgerRejects(t *testing.T) {
	// GIVEN: Income for the shift was already posted by hand
	// WHEN: Verifying
	// THEN: The verify fails and the shift stays CLOSED
	svc, store := newTestService(t)
	ctx := context.Background()
	sh, err := svc.CreateManual(ctx, manual("emp-1", 10, "3000", "0"))
	require.NoError(t, err)
	require.NoError(t, store.AppendTransactions(ctx, []compensation.FinanceTransaction{{
		ID: "manual-1", ClubID: "club-1", Amount: dec("3000"), Type: compensation.TxIncome,
		PaymentMethod: compensation.FieldCashIncome, Status: compensation.TxStatusCompleted,
		TransactionDate: sh.CheckIn, RelatedShiftID: sh.ID,
	}}))

	_, err = svc.Verify(ctx, sh.ID, "owner-1")
	assert.True(t, errors.Is(err, compensation.ErrAlreadyImported))

	stored, err := svc.Get(ctx, sh.ID)
	require.NoError(t, err)
	assert.Equal(t, compensation.StatusClosed, stored.Status)
	assert.Empty(t, stored.VerifiedBy)
}

func TestVerify_RequiresActor(t *testing.T) {
	svc, _ := newTestService(t)
	sh, err := svc.CreateManual(context.Background(), manual("emp-1", 10, "10", "0"))
	require.NoError(t, err)

	_, err = svc.Verify(context.Background(), sh.ID, "")
	assert.True(t, compensation.IsClientError(err))
}

func TestVerify_WithEditsDoesNotFlagCorrection(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	sh, err := svc.CreateManual(ctx, manual("emp-1", 10, "3000", "0"))
	require.NoError(t, err)

	verified := compensation.StatusVerified
	res, err := svc.Update(ctx, sh.ID, shift.Patch{CashIncome: decPtr("3100"), Status: &verified, Actor: "owner-1"})
	require.NoError(t, err)
	assert.False(t, res.HasOwnerCorrections)

	txs, err := store.TransactionsByShift(ctx, sh.ID)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.True(t, txs[0].Amount.Equal(dec("3100")), "ledger reflects the corrected figure")
}

func TestVerifiedShiftIsLocked(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	sh, err := svc.CreateManual(ctx, manual("emp-1", 10, "3000", "0"))
	require.NoError(t, err)
	_, err = svc.Verify(ctx, sh.ID, "owner-1")
	require.NoError(t, err)

	_, err = svc.Update(ctx, sh.ID, shift.Patch{CashIncome: decPtr("1")})
	assert.True(t, errors.Is(err, compensation.ErrShiftLocked))

	_, err = svc.Recalculate(ctx, sh.ID)
	assert.True(t, errors.Is(err, compensation.ErrShiftLocked))
}

func TestMarkPaid(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	sh, err := svc.CreateManual(ctx, manual("emp-1", 10, "3000", "0"))
	require.NoError(t, err)

	_, err = svc.MarkPaid(ctx, sh.ID, "owner-1")
	assert.True(t, errors.Is(err, compensation.ErrInvalidTransition), "closed shifts must be verified first")

	_, err = svc.Verify(ctx, sh.ID, "owner-1")
	require.NoError(t, err)
	paid, err := svc.MarkPaid(ctx, sh.ID, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, compensation.StatusPaid, paid.Status)
	assert.NotNil(t, paid.PaidAt)
}

// =============================================================================
// DELETE
// =============================================================================

func TestDelete(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	draft, err := svc.CreateManual(ctx, manual("emp-1", 10, "3000", "0"))
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, draft.ID))
	_, err = svc.Get(ctx, draft.ID)
	assert.True(t, errors.Is(err, compensation.ErrShiftNotFound))

	posted, err := svc.CreateManual(ctx, manual("emp-1", 11, "3000", "0"))
	require.NoError(t, err)
	_, err = svc.Verify(ctx, posted.ID, "owner-1")
	require.NoError(t, err)

	err = svc.Delete(ctx, posted.ID)
	assert.True(t, errors.Is(err, compensation.ErrLedgerLocked))
	txs, err := store.TransactionsByShift(ctx, posted.ID)
	require.NoError(t, err)
	assert.Len(t, txs, 1, "ledger rows are never deleted")

	assert.True(t, errors.Is(svc.Delete(ctx, "missing"), compensation.ErrShiftNotFound))
}

// =============================================================================
// PERIOD BONUSES
// =============================================================================

func ladderScheme() string {
	return factory.RevenueLadderJSON("ladder", "club-1", "Ladder", 1000, 20, [][2]float64{
		{100000, 5},
		{200000, 10},
	})
}

func TestCreateManual_AppliesPeriodBonusSoFar(t *testing.T) {
	// GIVEN: Flat 1000 per shift plus a monthly ladder (100000 -> 5%) over 20 shifts
	// WHEN: A first shift brings 6000 (pace floor 5000)
	// THEN: The tier is met and the shift carries 5% of its revenue
	svc, store := newTestService(t)
	ctx := context.Background()
	installScheme(t, store, "emp-1", ladderScheme())

	sh, err := svc.CreateManual(ctx, manual("emp-1", 3, "6000", "0"))
	require.NoError(t, err)
	assert.True(t, sh.CalculatedSalary.Equal(dec("1300")), "got %s", sh.CalculatedSalary)
	require.Len(t, sh.SalaryBreakdown, 2)
	assert.Equal(t, compensation.ComponentPeriodBonusContribution, sh.SalaryBreakdown[1].Type)
	assert.True(t, sh.SalaryBreakdown[1].Amount.Equal(dec("300")))

	// Below pace pays the flat rate only.
	installScheme(t, store, "emp-2", ladderScheme())
	slow, err := svc.CreateManual(ctx, manual("emp-2", 3, "4000", "0"))
	require.NoError(t, err)
	assert.True(t, slow.CalculatedSalary.Equal(dec("1000")), "got %s", slow.CalculatedSalary)
}

func TestCreateManual_PlannedShiftsOverrideStandard(t *testing.T) {
	// With 10 planned shifts the per-shift floor doubles to 10000.
	svc, store := newTestService(t)
	ctx := context.Background()
	installScheme(t, store, "emp-1", ladderScheme())
	require.NoError(t, store.SetPlannedShifts(ctx, "emp-1", "club-1", "2025-03", 10))

	sh, err := svc.CreateManual(ctx, manual("emp-1", 3, "6000", "0"))
	require.NoError(t, err)
	assert.True(t, sh.CalculatedSalary.Equal(dec("1000")), "got %s", sh.CalculatedSalary)
}

func TestKPIAndHistory(t *testing.T) {
	// GIVEN: 10 shifts of 6000 in March, 20 planned
	// WHEN: Reading KPI and history for March
	// THEN: floors [50000, 100000], tier 0 met, bonus 3000 spread 300 per shift
	svc, store := newTestService(t)
	ctx := context.Background()
	installScheme(t, store, "emp-1", ladderScheme())
	require.NoError(t, store.SetPlannedShifts(ctx, "emp-1", "club-1", "2025-03", 20))

	for day := 1; day <= 10; day++ {
		_, err := svc.CreateManual(ctx, manual("emp-1", day, "6000", "0"))
		require.NoError(t, err)
	}

	kpi, err := svc.KPI(ctx, "emp-1", "club-1", "2025-03")
	require.NoError(t, err)
	assert.Equal(t, "2025-03", kpi.Month)
	assert.Equal(t, 10, kpi.ShiftsCount)
	assert.Equal(t, 20, kpi.ReferenceCount)
	require.Len(t, kpi.Bonuses, 1)

	p := kpi.Bonuses[0]
	require.Len(t, p.Thresholds, 2)
	assert.True(t, p.Thresholds[0].ScaledThreshold.Equal(dec("50000")))
	assert.True(t, p.Thresholds[1].ScaledThreshold.Equal(dec("100000")))
	assert.Equal(t, 0, p.AchievedIndex)
	assert.True(t, p.BonusAmount.Equal(dec("3000")))

	hist, err := svc.History(ctx, "emp-1", "club-1", "2025-03")
	require.NoError(t, err)
	require.Len(t, hist.Shifts, 10)
	assert.True(t, hist.BonusAmount.Equal(dec("3000")))
	assert.True(t, hist.KPIBonusTotal.Equal(dec("3000")))
	assert.True(t, hist.TotalSalary.Equal(dec("13000")), "got %s", hist.TotalSalary)
	for _, e := range hist.Shifts {
		assert.True(t, e.KPIBonus.Equal(dec("300")))
	}

	// History is a view: stored shifts are untouched.
	shifts, err := svc.List(ctx, compensation.ShiftFilter{EmployeeID: "emp-1"})
	require.NoError(t, err)
	assert.Len(t, shifts, 10)
}

func TestHistory_KeepsPinnedVersionBreakdown(t *testing.T) {
	// GIVEN: An 8h shift priced at 100/hour under v1
	// WHEN: v2 at 500/hour is published and history is read
	// THEN: The attributed breakdown still reflects v1
	svc, store := newTestService(t)
	ctx := context.Background()
	scheme := installScheme(t, store, "emp-1", factory.HourlyJSON("hourly", "club-1", "Hourly", 100))

	sh, err := svc.CreateManual(ctx, manual("emp-1", 10, "0", "0"))
	require.NoError(t, err)
	require.Equal(t, 1, sh.SchemeVersion)
	require.True(t, sh.CalculatedSalary.Equal(dec("800")))

	_, err = store.PublishVersion(ctx, scheme.ID, compensation.Formula{Components: []compensation.Component{
		{Kind: compensation.ComponentHourly, Rate: dec("500")},
	}})
	require.NoError(t, err)

	hist, err := svc.History(ctx, "emp-1", "club-1", "2025-03")
	require.NoError(t, err)
	require.Len(t, hist.Shifts, 1)
	lines := hist.Shifts[0].Lines
	require.Len(t, lines, 1)
	assert.Equal(t, compensation.ComponentHourly, lines[0].Type)
	assert.True(t, lines[0].Amount.Equal(dec("800")), "got %s", lines[0].Amount)
}

func TestKPI_Errors(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.KPI(ctx, "ghost", "club-1", "2025-03")
	assert.True(t, errors.Is(err, compensation.ErrEmployeeNotFound))

	_, err = svc.KPI(ctx, "emp-1", "club-1", "March")
	assert.True(t, compensation.IsClientError(err))

	kpi, err := svc.KPI(ctx, "emp-1", "club-1", "2025-03")
	require.NoError(t, err)
	assert.Empty(t, kpi.Bonuses, "no scheme, no bonuses")
}
