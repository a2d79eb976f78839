/*
evaluator.go - Formula Evaluator

PURPOSE:
  Converts (shift metrics, formula, context aggregates) into a salary total
  and an itemized breakdown. Pure: no I/O, no clock, no randomness. The same
  inputs always produce the same lines in the same order.

EVALUATION ORDER:
  1. Formula components, in configured order, one line each
  2. Bonus snapshots, in configured order, at most one line each:
     - frozen snapshot         -> PERIOD_BONUS_CONTRIBUTION
     - unfrozen SHIFT-mode FLAT -> SHIFT_BONUS when the shift hits target
  3. Total = sum of rounded line amounts (never clamped)

EXAMPLE:
  res, err := Evaluate(shift.Metrics(), &formula, NewMetricContext(shift))
  if errors.Is(err, ErrConfiguration) {
      // no scheme: salary 0, empty breakdown
  }
*/
package compensation

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Evaluate runs formula against one shift.
func Evaluate(shift ShiftMetrics, formula *Formula, ctx MetricContext) (Result, error) {
	if formula == nil {
		return Result{}, &ConfigurationError{Reason: "no formula assigned"}
	}
	if len(formula.Components) == 0 && len(formula.PeriodBonuses) == 0 {
		return Result{}, &ConfigurationError{Reason: "formula has no components"}
	}

	lines := make([]BreakdownLine, 0, len(formula.Components)+len(formula.PeriodBonuses))
	for i, c := range formula.Components {
		amount, err := evaluateComponent(c, shift, ctx)
		if err != nil {
			return Result{}, &ConfigurationError{Reason: fmt.Sprintf("component %d (%s): %v", i, c.Kind, err)}
		}
		lines = append(lines, BreakdownLine{Type: c.Kind, Label: componentLabel(c), Amount: RoundMoney(amount)})
	}

	for _, b := range formula.PeriodBonuses {
		if line, ok := evaluateBonus(b, ctx); ok {
			lines = append(lines, line)
		}
	}

	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Amount)
	}
	return Result{Total: total, Breakdown: lines}, nil
}

// EvaluateOrZero degrades a configuration failure to a zero salary.
// Any other error is returned unchanged.
func EvaluateOrZero(shift ShiftMetrics, formula *Formula, ctx MetricContext) (Result, error) {
	res, err := Evaluate(shift, formula, ctx)
	if err != nil {
		if errors.Is(err, ErrConfiguration) {
			return Result{Total: decimal.Zero, Breakdown: []BreakdownLine{}}, nil
		}
		return Result{}, err
	}
	return res, nil
}

func evaluateComponent(c Component, shift ShiftMetrics, ctx MetricContext) (decimal.Decimal, error) {
	switch c.Kind {
	case ComponentHourly:
		return c.Rate.Mul(shift.TotalHours), nil
	case ComponentFlatPerShift:
		return c.Amount, nil
	case ComponentPercentOfMetric:
		if c.Metric == "" {
			return decimal.Zero, fmt.Errorf("metric is required")
		}
		return Percent(ctx.Value(c.Metric), c.Rate), nil
	case ComponentCustomMetricMultiplier:
		if c.Metric == "" {
			return decimal.Zero, fmt.Errorf("metric is required")
		}
		v := shift.ReportData[c.Metric]
		return c.Rate.Mul(v), nil
	case ComponentPeriodBonusContribution:
		return c.Amount, nil
	case ComponentExpression:
		return evaluateExpression(c.Expression, shift, ctx)
	default:
		return decimal.Zero, fmt.Errorf("unknown component kind %q", c.Kind)
	}
}

func evaluateBonus(b BonusSnapshot, ctx MetricContext) (BreakdownLine, bool) {
	metric := ctx.Value(b.Bonus.MetricKey)
	label := b.Bonus.Name
	if label == "" {
		label = b.Bonus.MetricKey
	}

	if b.Frozen() {
		var amount decimal.Decimal
		switch b.CurrentRewardType {
		case RewardFixed:
			if !b.PeriodMetricTotal.IsPositive() {
				return BreakdownLine{}, false
			}
			amount = b.CurrentRewardValue.Mul(metric).Div(b.PeriodMetricTotal)
		default:
			amount = Percent(metric, *b.CurrentRewardValue)
		}
		return BreakdownLine{Type: ComponentPeriodBonusContribution, Label: label, Amount: RoundMoney(amount)}, true
	}

	if b.Bonus.Mode != ModeShift || b.Bonus.Type != BonusFlat {
		return BreakdownLine{}, false
	}
	if !b.Bonus.TargetPerShift.IsPositive() || metric.LessThan(b.Bonus.TargetPerShift) {
		return BreakdownLine{}, false
	}
	amount := b.Bonus.RewardValue
	if b.Bonus.RewardType == RewardPercent {
		amount = Percent(metric, b.Bonus.RewardValue)
	}
	return BreakdownLine{Type: LineShiftBonus, Label: label, Amount: RoundMoney(amount)}, true
}

func componentLabel(c Component) string {
	if c.Label != "" {
		return c.Label
	}
	switch c.Kind {
	case ComponentHourly:
		return "Hourly pay"
	case ComponentFlatPerShift:
		return "Shift rate"
	case ComponentPercentOfMetric, ComponentCustomMetricMultiplier:
		return c.Metric
	case ComponentExpression:
		return c.Expression
	}
	return string(c.Kind)
}
