package compensation

import (
	"fmt"

	"github.com/Knetic/govaluate"
	"github.com/shopspring/decimal"
)

// evaluateExpression computes an EXPRESSION component. Parameters are every
// context metric plus total_hours. Unknown identifiers are an error, so a
// typo in a formula fails loudly instead of paying zero.
func evaluateExpression(expr string, shift ShiftMetrics, ctx MetricContext) (decimal.Decimal, error) {
	compiled, err := CompileExpression(expr)
	if err != nil {
		return decimal.Zero, err
	}

	params := make(map[string]interface{}, len(ctx)+1)
	for _, k := range ctx.Keys() {
		f, _ := ctx[k].Float64()
		params[k] = f
	}
	hours, _ := shift.TotalHours.Float64()
	params[MetricTotalHours] = hours

	for _, v := range compiled.Vars() {
		if _, ok := params[v]; !ok {
			return decimal.Zero, fmt.Errorf("unknown metric %q in expression", v)
		}
	}

	out, err := compiled.Evaluate(params)
	if err != nil {
		return decimal.Zero, fmt.Errorf("evaluate %q: %w", expr, err)
	}
	f, ok := out.(float64)
	if !ok {
		return decimal.Zero, fmt.Errorf("expression %q did not produce a number", expr)
	}
	return decimal.NewFromFloat(f), nil
}

// CompileExpression parses an expression without evaluating it, so schemes
// can be validated when a version is published.
func CompileExpression(expr string) (*govaluate.EvaluableExpression, error) {
	if expr == "" {
		return nil, fmt.Errorf("expression is empty")
	}
	compiled, err := govaluate.NewEvaluableExpression(expr)
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", expr, err)
	}
	return compiled, nil
}
