/*
Package compensation provides the pure calculation core of the payroll engine.

PURPOSE:
  This package turns shift metrics into pay. It knows nothing about HTTP or
  SQL: every function here is a deterministic fold over plain records, which
  is what makes a payout auditable after the fact.

KEY CONCEPTS IN THIS FILE (types.go):
  - ShiftRecord: one work shift with its income fields and report metrics
  - Formula: ordered list of pay components plus period bonus snapshots
  - PeriodBonus: a KPI bonus (flat or progressive ladder) on a metric
  - FinanceTransaction: immutable ledger row produced from a verified shift

DESIGN PRINCIPLES:
  1. Precision: all money is decimal.Decimal, lines are rounded to cents
  2. Determinism: no clock or random input reaches the evaluator
  3. Immutability: scheme versions and ledger rows are append-only

SEE ALSO:
  - evaluator.go: Formula Evaluator
  - ladder.go: Period Bonus Ladder Scaler
  - apportion.go: Shift Attribution Apportioner
  - store.go: persistence ports
*/
package compensation

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY
// =============================================================================

// MoneyPlaces is the number of decimal places kept on every breakdown line.
const MoneyPlaces = 2

var hundred = decimal.NewFromInt(100)

// RoundMoney rounds half away from zero to cents.
func RoundMoney(d decimal.Decimal) decimal.Decimal { return d.Round(MoneyPlaces) }

// Percent returns value × pct / 100.
func Percent(value, pct decimal.Decimal) decimal.Decimal { return value.Mul(pct).Div(hundred) }

// MustDecimal parses s or returns zero. Intended for presets and tests.
func MustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// =============================================================================
// SHIFT
// =============================================================================

type ShiftStatus string

const (
	StatusActive   ShiftStatus = "ACTIVE"
	StatusClosed   ShiftStatus = "CLOSED"
	StatusVerified ShiftStatus = "VERIFIED"
	StatusPaid     ShiftStatus = "PAID"
)

// Valid reports whether s is a known status.
func (s ShiftStatus) Valid() bool {
	switch s {
	case StatusActive, StatusClosed, StatusVerified, StatusPaid:
		return true
	}
	return false
}

type ShiftType string

const (
	ShiftDay   ShiftType = "DAY"
	ShiftNight ShiftType = "NIGHT"
)

// Standard metric keys. Custom report_data keys live alongside them in a
// MetricContext.
const (
	MetricTotalRevenue = "total_revenue"
	MetricRevenueCash  = "revenue_cash"
	MetricRevenueCard  = "revenue_card"
	MetricExpenses     = "expenses"
	MetricTotalHours   = "total_hours"

	// Income field keys as they appear in report templates.
	FieldCashIncome = "cash_income"
	FieldCardIncome = "card_income"
	FieldExpenses   = "expenses"
)

// ShiftRecord is one employee shift at one club.
type ShiftRecord struct {
	ID         string          `json:"id"`
	EmployeeID string          `json:"employee_id"`
	ClubID     string          `json:"club_id"`
	CheckIn    time.Time       `json:"check_in"`
	CheckOut   *time.Time      `json:"check_out,omitempty"`
	TotalHours decimal.Decimal `json:"total_hours"`

	CashIncome decimal.Decimal            `json:"cash_income"`
	CardIncome decimal.Decimal            `json:"card_income"`
	Expenses   decimal.Decimal            `json:"expenses"`
	ReportData map[string]decimal.Decimal `json:"report_data"`

	Status    ShiftStatus `json:"status"`
	ShiftType ShiftType   `json:"shift_type"`

	CalculatedSalary decimal.Decimal `json:"calculated_salary"`
	SalaryBreakdown  []BreakdownLine `json:"salary_breakdown"`

	// SchemeID and SchemeVersion pin the formula used for CalculatedSalary.
	SchemeID      string `json:"scheme_id"`
	SchemeVersion int    `json:"scheme_version"`

	HasOwnerCorrections bool       `json:"has_owner_corrections"`
	VerifiedBy          string     `json:"verified_by,omitempty"`
	VerifiedAt          *time.Time `json:"verified_at,omitempty"`
	PaidAt              *time.Time `json:"paid_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Metrics returns the evaluator's view of the shift.
func (s ShiftRecord) Metrics() ShiftMetrics {
	return ShiftMetrics{ID: s.ID, TotalHours: s.TotalHours, ReportData: s.ReportData}
}

// TotalRevenue is cash plus card income.
func (s ShiftRecord) TotalRevenue() decimal.Decimal { return s.CashIncome.Add(s.CardIncome) }

// IncomeField returns the value of an income channel: the standard
// cash/card fields, or a report_data metric.
func (s ShiftRecord) IncomeField(key string) decimal.Decimal {
	switch key {
	case FieldCashIncome:
		return s.CashIncome
	case FieldCardIncome:
		return s.CardIncome
	case FieldExpenses:
		return s.Expenses
	}
	return s.ReportData[key]
}

// HoursBetween returns the worked hours between two instants, rounded to
// two places. A check-out before check-in yields zero.
func HoursBetween(in, out time.Time) decimal.Decimal {
	if !out.After(in) {
		return decimal.Zero
	}
	minutes := decimal.NewFromInt(int64(out.Sub(in) / time.Minute))
	return minutes.Div(decimal.NewFromInt(60)).Round(2)
}

// ShiftMetrics is the subset of a shift the evaluator reads.
type ShiftMetrics struct {
	ID         string                     `json:"id"`
	TotalHours decimal.Decimal            `json:"total_hours"`
	ReportData map[string]decimal.Decimal `json:"report_data"`
}

// MetricContext maps metric keys to values for one evaluation.
type MetricContext map[string]decimal.Decimal

// NewMetricContext builds the standard context for a shift: revenue split,
// expenses, and every report_data value under its own key.
func NewMetricContext(s ShiftRecord) MetricContext {
	ctx := make(MetricContext, len(s.ReportData)+4)
	for k, v := range s.ReportData {
		ctx[k] = v
	}
	ctx[MetricTotalRevenue] = s.TotalRevenue()
	ctx[MetricRevenueCash] = s.CashIncome
	ctx[MetricRevenueCard] = s.CardIncome
	ctx[MetricExpenses] = s.Expenses
	return ctx
}

// Value returns the metric or zero.
func (c MetricContext) Value(key string) decimal.Decimal {
	if v, ok := c[key]; ok {
		return v
	}
	return decimal.Zero
}

// Keys returns the metric keys in sorted order.
func (c MetricContext) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// =============================================================================
// FORMULA
// =============================================================================

type ComponentKind string

const (
	ComponentHourly                  ComponentKind = "HOURLY"
	ComponentFlatPerShift            ComponentKind = "FLAT_PER_SHIFT"
	ComponentPercentOfMetric         ComponentKind = "PERCENT_OF_METRIC"
	ComponentCustomMetricMultiplier  ComponentKind = "CUSTOM_METRIC_MULTIPLIER"
	ComponentPeriodBonusContribution ComponentKind = "PERIOD_BONUS_CONTRIBUTION"
	ComponentExpression              ComponentKind = "EXPRESSION"
)

// LineShiftBonus marks a per-shift bonus line produced by a SHIFT-mode flat bonus.
const LineShiftBonus ComponentKind = "SHIFT_BONUS"

// Component is one term of a formula. Which fields are read depends on Kind.
type Component struct {
	Kind       ComponentKind   `json:"type"`
	Label      string          `json:"label,omitempty"`
	Rate       decimal.Decimal `json:"rate"`                 // HOURLY, PERCENT_OF_METRIC (percent), CUSTOM_METRIC_MULTIPLIER
	Amount     decimal.Decimal `json:"amount"`               // FLAT_PER_SHIFT, PERIOD_BONUS_CONTRIBUTION
	Metric     string          `json:"metric,omitempty"`     // PERCENT_OF_METRIC, CUSTOM_METRIC_MULTIPLIER
	Expression string          `json:"expression,omitempty"` // EXPRESSION
}

// Formula is an immutable pay formula snapshot.
type Formula struct {
	Components []Component `json:"components"`

	// PeriodBonuses is supplied per evaluation and never persisted.
	PeriodBonuses []BonusSnapshot `json:"-"`
}

// WithBonuses returns a copy of f carrying the given bonus snapshots.
func (f Formula) WithBonuses(b []BonusSnapshot) Formula {
	out := Formula{Components: append([]Component(nil), f.Components...)}
	out.PeriodBonuses = append([]BonusSnapshot(nil), b...)
	return out
}

// BreakdownLine is one itemized contribution to a salary.
type BreakdownLine struct {
	Type   ComponentKind   `json:"type"`
	Label  string          `json:"label"`
	Amount decimal.Decimal `json:"amount"`
}

// Result is the evaluator output.
type Result struct {
	Total     decimal.Decimal `json:"total"`
	Breakdown []BreakdownLine `json:"breakdown"`
}

// =============================================================================
// SCHEMES AND BONUSES
// =============================================================================

type BonusMode string

const (
	ModeShift BonusMode = "SHIFT"
	ModeMonth BonusMode = "MONTH"
)

type BonusType string

const (
	BonusFlat        BonusType = "FLAT"
	BonusProgressive BonusType = "PROGRESSIVE"
)

type RewardType string

const (
	RewardPercent RewardType = "PERCENT"
	RewardFixed   RewardType = "FIXED"
)

// Threshold is a progressive tier: reaching From over the whole configured
// period pays Percent of the metric.
type Threshold struct {
	From    decimal.Decimal `json:"from"`
	Percent decimal.Decimal `json:"percent"`
}

// PeriodBonus is a KPI bonus attached to a scheme.
type PeriodBonus struct {
	ID        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	MetricKey string    `json:"metric_key"`
	Mode      BonusMode `json:"bonus_mode"`
	Type      BonusType `json:"type"`

	// FLAT
	TargetPerShift decimal.Decimal `json:"target_per_shift"`
	RewardType     RewardType      `json:"reward_type,omitempty"`
	RewardValue    decimal.Decimal `json:"reward_value"`

	// PROGRESSIVE
	Thresholds []Threshold `json:"thresholds,omitempty"`
}

// BonusSnapshot is a bonus as seen by the evaluator. When CurrentRewardValue
// is set the period tier has already been resolved and the snapshot is frozen.
type BonusSnapshot struct {
	Bonus PeriodBonus

	CurrentRewardType  RewardType
	CurrentRewardValue *decimal.Decimal

	// PeriodMetricTotal spreads FIXED frozen rewards across shifts.
	PeriodMetricTotal decimal.Decimal
}

// Frozen reports whether the period tier is already resolved.
func (b BonusSnapshot) Frozen() bool { return b.CurrentRewardValue != nil }

// Scheme is a per-club compensation scheme.
type Scheme struct {
	ID                    string        `json:"id"`
	ClubID                string        `json:"club_id"`
	Name                  string        `json:"name"`
	IsActive              bool          `json:"is_active"`
	StandardMonthlyShifts int           `json:"standard_monthly_shifts"`
	PeriodBonuses         []PeriodBonus `json:"period_bonuses"`
	CreatedAt             time.Time     `json:"created_at"`
}

// SchemeVersion is an immutable formula snapshot.
type SchemeVersion struct {
	SchemeID  string    `json:"scheme_id"`
	Version   int       `json:"version"`
	Formula   Formula   `json:"formula"`
	CreatedAt time.Time `json:"created_at"`
}

// Assignment links an employee at a club to a scheme.
type Assignment struct {
	EmployeeID string    `json:"employee_id"`
	ClubID     string    `json:"club_id"`
	SchemeID   string    `json:"scheme_id"`
	IsActive   bool      `json:"is_active"`
	AssignedAt time.Time `json:"assigned_at"`
}

// Employee is the minimal employee record the core needs.
type Employee struct {
	ID       string `json:"id"`
	ClubID   string `json:"club_id"`
	Name     string `json:"name"`
	IsActive bool   `json:"is_active"`
}

// =============================================================================
// LEDGER
// =============================================================================

type TransactionType string

const (
	TxIncome  TransactionType = "income"
	TxExpense TransactionType = "expense"
)

const TxStatusCompleted = "completed"

// CategoryClubRevenue is the logical bucket shift income is posted to.
const CategoryClubRevenue = "Club revenue"

// FinanceTransaction is an immutable ledger row.
type FinanceTransaction struct {
	ID              string          `json:"id"`
	ClubID          string          `json:"club_id"`
	CategoryID      string          `json:"category_id,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
	Type            TransactionType `json:"type"`
	PaymentMethod   string          `json:"payment_method"`
	Status          string          `json:"status"`
	TransactionDate time.Time       `json:"transaction_date"`
	RelatedShiftID  string          `json:"related_shift_report_id,omitempty"` // empty when not produced from a shift
	Description     string          `json:"description,omitempty"`
	CreatedBy       string          `json:"created_by,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// FinanceCategory resolves a ledger bucket. ClubID "" is the global default.
type FinanceCategory struct {
	ID     string          `json:"id"`
	ClubID string          `json:"club_id"`
	Name   string          `json:"name"`
	Type   TransactionType `json:"type"`
}

// =============================================================================
// EXTERNAL COLLABORATORS
// =============================================================================

type FieldType string

const (
	FieldIncome  FieldType = "INCOME"
	FieldExpense FieldType = "EXPENSE"
	FieldOther   FieldType = "OTHER"
)

// TemplateField is one configured report field.
type TemplateField struct {
	MetricKey   string    `json:"metric_key"`
	FieldType   FieldType `json:"field_type"`
	CustomLabel string    `json:"custom_label,omitempty"`
}

// ReportTemplate defines which metrics a club reports and how they are classified.
type ReportTemplate struct {
	ClubID string          `json:"club_id"`
	Fields []TemplateField `json:"fields"`
}

// DefaultReportTemplate is used when a club has none configured.
func DefaultReportTemplate(clubID string) ReportTemplate {
	return ReportTemplate{ClubID: clubID, Fields: []TemplateField{
		{MetricKey: FieldCashIncome, FieldType: FieldIncome, CustomLabel: "Cash"},
		{MetricKey: FieldCardIncome, FieldType: FieldIncome, CustomLabel: "Card"},
		{MetricKey: FieldExpenses, FieldType: FieldExpense, CustomLabel: "Expenses"},
	}}
}

// IncomeKeys returns metric keys classified INCOME, in template order.
func (t ReportTemplate) IncomeKeys() []string {
	var keys []string
	for _, f := range t.Fields {
		if f.FieldType == FieldIncome {
			keys = append(keys, f.MetricKey)
		}
	}
	return keys
}

// Has reports whether key is defined by the template.
func (t ReportTemplate) Has(key string) bool {
	for _, f := range t.Fields {
		if f.MetricKey == key {
			return true
		}
	}
	return false
}

// ClubSettings carries the day/night boundary used to classify shifts.
type ClubSettings struct {
	ClubID         string `json:"club_id"`
	DayStartHour   int    `json:"day_start_hour"`
	NightStartHour int    `json:"night_start_hour"`
	Timezone       string `json:"timezone"`
}

// DefaultClubSettings is used when a club has none configured.
func DefaultClubSettings(clubID string) ClubSettings {
	return ClubSettings{ClubID: clubID, DayStartHour: 8, NightStartHour: 20, Timezone: "UTC"}
}

// Location resolves the club timezone, falling back to UTC.
func (cs ClubSettings) Location() *time.Location {
	if cs.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(cs.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Classify returns DAY when the local check-in hour falls in
// [DayStartHour, NightStartHour), NIGHT otherwise.
func (cs ClubSettings) Classify(checkIn time.Time) ShiftType {
	h := checkIn.In(cs.Location()).Hour()
	if cs.DayStartHour <= cs.NightStartHour {
		if h >= cs.DayStartHour && h < cs.NightStartHour {
			return ShiftDay
		}
		return ShiftNight
	}
	// Day window wraps midnight.
	if h >= cs.DayStartHour || h < cs.NightStartHour {
		return ShiftDay
	}
	return ShiftNight
}
