/*
apportion.go - Shift Attribution Apportioner

PURPOSE:
  A period bonus is earned by the period as a whole. History and KPI views
  still want to show "how much bonus did this shift earn", so the aggregate
  is decomposed back onto the shifts that produced it.

ALGORITHM:
  1. Sum each bonus metric across the period's shifts
  2. Resolve the ladder (Progress) against those totals
  3. Freeze every met bonus at its achieved tier
  4. Re-run Evaluate per shift with the frozen snapshot, using the
     formula version the shift was priced with
  5. kpi_bonus = sum of PERIOD_BONUS_CONTRIBUTION and SHIFT_BONUS lines

  Sum of kpi_bonus approximates the aggregate bonus_amount. Each shift is
  rounded on its own and the drift is not reconciled: this is a reporting
  view, never a payout source. Nothing here writes to the ledger.
*/
package compensation

import "github.com/shopspring/decimal"

// ShiftAttribution is one shift's share of the period bonuses.
type ShiftAttribution struct {
	ShiftID   string
	Salary    decimal.Decimal
	KPIBonus  decimal.Decimal
	Breakdown []BreakdownLine
}

// Apportionment is the period view returned by Apportion.
type Apportionment struct {
	Progress      []BonusProgress
	BonusAmount   decimal.Decimal // aggregate, from the resolved ladders
	KPIBonusTotal decimal.Decimal // sum of per-shift attributions
	Shifts        []ShiftAttribution
}

// PeriodTotals sums every metric key across shifts.
func PeriodTotals(shifts []ShiftRecord) MetricContext {
	totals := MetricContext{}
	for _, s := range shifts {
		for k, v := range NewMetricContext(s) {
			totals[k] = totals.Value(k).Add(v)
		}
	}
	return totals
}

// ResolvePeriod resolves every bonus against the shifts worked so far and
// returns both the progress and the snapshots to hand to Evaluate.
func ResolvePeriod(bonuses []PeriodBonus, shifts []ShiftRecord, referenceShiftCount int) ([]BonusProgress, []BonusSnapshot) {
	totals := PeriodTotals(shifts)
	progress := make([]BonusProgress, 0, len(bonuses))
	snaps := make([]BonusSnapshot, 0, len(bonuses))
	for _, b := range bonuses {
		p := Progress(b, totals.Value(b.MetricKey), len(shifts), referenceShiftCount)
		progress = append(progress, p)
		snaps = append(snaps, Freeze(p))
	}
	return progress, snaps
}

// FormulaLookup returns the formula a shift was priced with, or nil when
// it had none.
type FormulaLookup func(ShiftRecord) *Formula

// SameFormula prices every shift with f.
func SameFormula(f Formula) FormulaLookup {
	return func(ShiftRecord) *Formula { return &f }
}

// Apportion distributes the period's bonuses across its shifts. Each shift
// is re-evaluated with the formula formulaFor returns for it.
func Apportion(formulaFor FormulaLookup, bonuses []PeriodBonus, shifts []ShiftRecord, referenceShiftCount int) Apportionment {
	progress, snaps := ResolvePeriod(bonuses, shifts, referenceShiftCount)
	out := Apportionment{
		Progress:      progress,
		BonusAmount:   decimal.Zero,
		KPIBonusTotal: decimal.Zero,
		Shifts:        make([]ShiftAttribution, 0, len(shifts)),
	}
	for _, p := range progress {
		out.BonusAmount = out.BonusAmount.Add(p.BonusAmount)
	}

	for _, s := range shifts {
		var base Formula
		if f := formulaFor(s); f != nil {
			base = *f
		}
		frozen := base.WithBonuses(snaps)
		res, _ := EvaluateOrZero(s.Metrics(), &frozen, NewMetricContext(s))
		kpi := decimal.Zero
		for _, l := range res.Breakdown {
			if l.Type == ComponentPeriodBonusContribution || l.Type == LineShiftBonus {
				kpi = kpi.Add(l.Amount)
			}
		}
		out.KPIBonusTotal = out.KPIBonusTotal.Add(kpi)
		out.Shifts = append(out.Shifts, ShiftAttribution{
			ShiftID:   s.ID,
			Salary:    s.CalculatedSalary,
			KPIBonus:  kpi,
			Breakdown: res.Breakdown,
		})
	}
	return out
}
