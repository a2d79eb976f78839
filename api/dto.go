/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication that are not already
  carried by the domain packages. Shift bodies reuse shift.CheckInInput,
  shift.CheckOutInput, shift.ShiftInput and shift.Patch directly; scheme
  bodies reuse factory.SchemeJSON and factory.FormulaJSON.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Validation is done in handlers and services, not in DTOs. DTOs are pure
  data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/scheme.go: SchemeJSON type
*/
package api

import (
	"time"

	"github.com/clubops/payroll-engine/compensation"
	"github.com/clubops/payroll-engine/factory"
	"github.com/clubops/payroll-engine/shift"
	"github.com/shopspring/decimal"
)

// =============================================================================
// SHIFTS
// =============================================================================

// ActorRequest carries the owner performing a transition.
type ActorRequest struct {
	Actor string `json:"actor"`
}

// BatchRequest is the JSON form of a batch upload.
type BatchRequest struct {
	Rows []shift.ShiftInput `json:"rows"`
}

// =============================================================================
// DIRECTORY
// =============================================================================

// CreateEmployeeRequest is the request to create an employee.
type CreateEmployeeRequest struct {
	ID     string `json:"id"`
	ClubID string `json:"club_id"`
	Name   string `json:"name"`
}

// AssignmentRequest assigns a scheme to an employee at a club.
type AssignmentRequest struct {
	EmployeeID string `json:"employee_id"`
	ClubID     string `json:"club_id"`
	SchemeID   string `json:"scheme_id"`
}

// PlannedShiftsRequest records an employee's planned shifts for a month.
type PlannedShiftsRequest struct {
	EmployeeID string `json:"employee_id"`
	ClubID     string `json:"club_id"`
	Month      string `json:"month"` // YYYY-MM
	Planned    int    `json:"planned"`
}

// ReportTemplateRequest replaces a club's report template.
type ReportTemplateRequest struct {
	Fields []compensation.TemplateField `json:"fields"`
}

// ClubSettingsRequest replaces a club's day/night settings.
type ClubSettingsRequest struct {
	DayStartHour   int    `json:"day_start_hour"`
	NightStartHour int    `json:"night_start_hour"`
	Timezone       string `json:"timezone"`
}

// =============================================================================
// SCHEMES
// =============================================================================

// SchemeDTO is a scheme with its version history.
type SchemeDTO struct {
	Scheme   compensation.Scheme          `json:"scheme"`
	Config   factory.SchemeJSON           `json:"config"` // latest formula in JSON form
	Versions []compensation.SchemeVersion `json:"versions"`
}

// EvaluateRequest is a dry run of a formula against hypothetical figures.
// Period bonuses are applied as they would be on a shift with no period
// history, so only SHIFT-mode flat bonuses can pay.
type EvaluateRequest struct {
	Formula       factory.FormulaJSON        `json:"formula"`
	PeriodBonuses []factory.BonusJSON        `json:"period_bonuses,omitempty"`
	TotalHours    decimal.Decimal            `json:"total_hours"`
	CashIncome    decimal.Decimal            `json:"cash_income"`
	CardIncome    decimal.Decimal            `json:"card_income"`
	Expenses      decimal.Decimal            `json:"expenses"`
	ReportData    map[string]decimal.Decimal `json:"report_data,omitempty"`
}

// =============================================================================
// FINANCE
// =============================================================================

// GenerateRequest imports verified shifts of a club within [from, to).
type GenerateRequest struct {
	ClubID string    `json:"club_id"`
	From   time.Time `json:"from"`
	To     time.Time `json:"to"`
	Actor  string    `json:"actor"`
}

// TransactionRequest is an owner-entered ledger row.
type TransactionRequest struct {
	ClubID          string                       `json:"club_id"`
	CategoryID      string                       `json:"category_id,omitempty"`
	Amount          decimal.Decimal              `json:"amount"`
	Type            compensation.TransactionType `json:"type"`
	PaymentMethod   string                       `json:"payment_method"`
	TransactionDate time.Time                    `json:"transaction_date"`
	Description     string                       `json:"description,omitempty"`
	CreatedBy       string                       `json:"created_by,omitempty"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}
