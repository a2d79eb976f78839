package shift

import (
	"time"

	"github.com/clubops/payroll-engine/compensation"
	"github.com/shopspring/decimal"
)

// Patch is a partial shift update. Nil fields are left unchanged.
// ReportData is merged key by key. RemoveReportKeys deletes metrics and is
// applied before the merge, so a key in both ends up set.
type Patch struct {
	CheckIn    *time.Time                 `json:"check_in,omitempty"`
	CheckOut   *time.Time                 `json:"check_out,omitempty"`
	TotalHours *decimal.Decimal           `json:"total_hours,omitempty"`
	CashIncome *decimal.Decimal           `json:"cash_income,omitempty"`
	CardIncome *decimal.Decimal           `json:"card_income,omitempty"`
	Expenses   *decimal.Decimal           `json:"expenses,omitempty"`
	ReportData map[string]decimal.Decimal `json:"report_data,omitempty"`
	Status     *compensation.ShiftStatus  `json:"status,omitempty"`

	RemoveReportKeys []string `json:"remove_report_keys,omitempty"`

	// Actor is the owner performing the change. Required for verification.
	Actor string `json:"actor,omitempty"`
}

func (p Patch) touchesFields() bool {
	return p.CheckIn != nil || p.CheckOut != nil || p.TotalHours != nil || p.touchesIncome()
}

// touchesIncome reports edits to figures the ledger is built from.
func (p Patch) touchesIncome() bool {
	return p.CashIncome != nil || p.CardIncome != nil || p.Expenses != nil ||
		len(p.ReportData) > 0 || len(p.RemoveReportKeys) > 0
}

// apply merges p into sh and validates the result. Hours follow the
// check-in/out span unless TotalHours is given explicitly.
func (p Patch) apply(sh *compensation.ShiftRecord) error {
	if p.CheckIn != nil {
		sh.CheckIn = *p.CheckIn
	}
	if p.CheckOut != nil {
		out := *p.CheckOut
		sh.CheckOut = &out
	}
	if sh.CheckOut != nil && !sh.CheckOut.After(sh.CheckIn) {
		return &compensation.ValidationError{Field: "check_out", Message: "must be after check_in"}
	}

	switch {
	case p.TotalHours != nil:
		if p.TotalHours.IsNegative() {
			return &compensation.ValidationError{Field: "total_hours", Message: "must not be negative"}
		}
		sh.TotalHours = *p.TotalHours
	case (p.CheckIn != nil || p.CheckOut != nil) && sh.CheckOut != nil:
		sh.TotalHours = compensation.HoursBetween(sh.CheckIn, *sh.CheckOut)
	}

	if p.CashIncome != nil {
		sh.CashIncome = *p.CashIncome
	}
	if p.CardIncome != nil {
		sh.CardIncome = *p.CardIncome
	}
	if p.Expenses != nil {
		sh.Expenses = *p.Expenses
	}
	for _, k := range p.RemoveReportKeys {
		delete(sh.ReportData, k)
	}
	if len(p.ReportData) > 0 {
		if sh.ReportData == nil {
			sh.ReportData = make(map[string]decimal.Decimal, len(p.ReportData))
		}
		for k, v := range p.ReportData {
			sh.ReportData[k] = v
		}
	}
	return validateAmounts(sh.CashIncome, sh.CardIncome, sh.Expenses)
}
