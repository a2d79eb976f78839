/*
Package factory provides JSON to Go compensation scheme conversion.

PURPOSE:
  Converts JSON scheme definitions into compensation.Scheme and
  compensation.Formula values. Club owners configure pay in the admin UI;
  the factory validates the document and produces the structs the
  evaluator runs on.

JSON SCHEMA:
  {
    "id": "bar-staff",
    "club_id": "club-1",
    "name": "Bar staff",
    "standard_monthly_shifts": 20,
    "formula": {
      "components": [
        {"type": "HOURLY", "rate": 250},
        {"type": "PERCENT_OF_METRIC", "metric": "total_revenue", "rate": 3},
        {"type": "EXPRESSION", "expression": "bar_sales * 0.02"}
      ]
    },
    "period_bonuses": [
      {
        "metric_key": "total_revenue",
        "bonus_mode": "MONTH",
        "type": "PROGRESSIVE",
        "thresholds": [{"from": 100000, "percent": 5}, {"from": 200000, "percent": 10}]
      }
    ]
  }

KEY FEATURES:
  - Rejects unknown component kinds, bonus modes and bonus types
  - Compiles EXPRESSION components so a typo fails at publish time
  - Assigns IDs to the scheme and bonuses when omitted
  - Sorts progressive thresholds ascending

USAGE:
  f := factory.NewSchemeFactory()
  scheme, formula, err := f.ParseScheme(jsonString)
  store.SaveScheme(ctx, *scheme)
  store.PublishVersion(ctx, scheme.ID, *formula)
*/
package factory

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/clubops/payroll-engine/compensation"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// SchemeJSON is the JSON representation of a scheme and its current formula.
type SchemeJSON struct {
	ID                    string       `json:"id,omitempty"`
	ClubID                string       `json:"club_id"`
	Name                  string       `json:"name"`
	IsActive              *bool        `json:"is_active,omitempty"` // default true
	StandardMonthlyShifts int          `json:"standard_monthly_shifts"`
	Formula               *FormulaJSON `json:"formula,omitempty"`
	PeriodBonuses         []BonusJSON  `json:"period_bonuses,omitempty"`
}

// FormulaJSON is the JSON representation of a formula version.
type FormulaJSON struct {
	Components []ComponentJSON `json:"components"`
}

// ComponentJSON represents one formula term.
type ComponentJSON struct {
	Type       string          `json:"type"`
	Label      string          `json:"label,omitempty"`
	Rate       decimal.Decimal `json:"rate,omitempty"`
	Amount     decimal.Decimal `json:"amount,omitempty"`
	Metric     string          `json:"metric,omitempty"`
	Expression string          `json:"expression,omitempty"`
}

// BonusJSON represents a period bonus.
type BonusJSON struct {
	ID             string          `json:"id,omitempty"`
	Name           string          `json:"name,omitempty"`
	MetricKey      string          `json:"metric_key"`
	BonusMode      string          `json:"bonus_mode"`
	Type           string          `json:"type"`
	TargetPerShift decimal.Decimal `json:"target_per_shift,omitempty"`
	RewardType     string          `json:"reward_type,omitempty"`
	RewardValue    decimal.Decimal `json:"reward_value,omitempty"`
	Thresholds     []ThresholdJSON `json:"thresholds,omitempty"`
}

// ThresholdJSON is one progressive tier.
type ThresholdJSON struct {
	From    decimal.Decimal `json:"from"`
	Percent decimal.Decimal `json:"percent"`
}

// =============================================================================
// SCHEME FACTORY
// =============================================================================

// SchemeFactory converts JSON schemes to compensation structs.
type SchemeFactory struct {
	newID func() string
}

// NewSchemeFactory creates a new scheme factory.
func NewSchemeFactory() *SchemeFactory {
	return &SchemeFactory{newID: uuid.NewString}
}

// ParseScheme parses a JSON string into a Scheme and, when present, its Formula.
func (f *SchemeFactory) ParseScheme(jsonStr string) (*compensation.Scheme, *compensation.Formula, error) {
	var sj SchemeJSON
	if err := json.Unmarshal([]byte(jsonStr), &sj); err != nil {
		return nil, nil, fmt.Errorf("failed to parse scheme JSON: %w", err)
	}
	return f.FromJSON(sj)
}

// ParseFormula parses a JSON string holding only a formula.
func (f *SchemeFactory) ParseFormula(jsonStr string) (*compensation.Formula, error) {
	var fj FormulaJSON
	if err := json.Unmarshal([]byte(jsonStr), &fj); err != nil {
		return nil, fmt.Errorf("failed to parse formula JSON: %w", err)
	}
	return f.FormulaFromJSON(fj)
}

// FromJSON converts SchemeJSON to a Scheme and optional Formula.
func (f *SchemeFactory) FromJSON(sj SchemeJSON) (*compensation.Scheme, *compensation.Formula, error) {
	if sj.ClubID == "" {
		return nil, nil, &compensation.ValidationError{Field: "club_id", Message: "is required"}
	}
	if sj.Name == "" {
		return nil, nil, &compensation.ValidationError{Field: "name", Message: "is required"}
	}
	if sj.StandardMonthlyShifts < 0 {
		return nil, nil, &compensation.ValidationError{Field: "standard_monthly_shifts", Message: "must not be negative"}
	}

	scheme := &compensation.Scheme{
		ID:                    sj.ID,
		ClubID:                sj.ClubID,
		Name:                  sj.Name,
		IsActive:              true,
		StandardMonthlyShifts: sj.StandardMonthlyShifts,
	}
	if scheme.ID == "" {
		scheme.ID = f.newID()
	}
	if sj.IsActive != nil {
		scheme.IsActive = *sj.IsActive
	}

	for i, bj := range sj.PeriodBonuses {
		b, err := f.parseBonus(bj)
		if err != nil {
			return nil, nil, fmt.Errorf("period_bonuses[%d]: %w", i, err)
		}
		scheme.PeriodBonuses = append(scheme.PeriodBonuses, b)
	}

	var formula *compensation.Formula
	if sj.Formula != nil {
		var err error
		if formula, err = f.FormulaFromJSON(*sj.Formula); err != nil {
			return nil, nil, err
		}
	}
	return scheme, formula, nil
}

// FormulaFromJSON validates and converts a formula.
func (f *SchemeFactory) FormulaFromJSON(fj FormulaJSON) (*compensation.Formula, error) {
	if len(fj.Components) == 0 {
		return nil, &compensation.ValidationError{Field: "formula.components", Message: "at least one component is required"}
	}
	formula := &compensation.Formula{}
	for i, cj := range fj.Components {
		c, err := parseComponent(cj)
		if err != nil {
			return nil, fmt.Errorf("components[%d]: %w", i, err)
		}
		formula.Components = append(formula.Components, c)
	}
	return formula, nil
}

// ToJSON converts a scheme and formula back to their JSON representation.
func (f *SchemeFactory) ToJSON(scheme compensation.Scheme, formula *compensation.Formula) SchemeJSON {
	active := scheme.IsActive
	sj := SchemeJSON{
		ID:                    scheme.ID,
		ClubID:                scheme.ClubID,
		Name:                  scheme.Name,
		IsActive:              &active,
		StandardMonthlyShifts: scheme.StandardMonthlyShifts,
	}
	for _, b := range scheme.PeriodBonuses {
		bj := BonusJSON{
			ID:             b.ID,
			Name:           b.Name,
			MetricKey:      b.MetricKey,
			BonusMode:      string(b.Mode),
			Type:           string(b.Type),
			TargetPerShift: b.TargetPerShift,
			RewardType:     string(b.RewardType),
			RewardValue:    b.RewardValue,
		}
		for _, t := range b.Thresholds {
			bj.Thresholds = append(bj.Thresholds, ThresholdJSON{From: t.From, Percent: t.Percent})
		}
		sj.PeriodBonuses = append(sj.PeriodBonuses, bj)
	}
	if formula != nil {
		sj.Formula = &FormulaJSON{}
		for _, c := range formula.Components {
			sj.Formula.Components = append(sj.Formula.Components, ComponentJSON{
				Type:       string(c.Kind),
				Label:      c.Label,
				Rate:       c.Rate,
				Amount:     c.Amount,
				Metric:     c.Metric,
				Expression: c.Expression,
			})
		}
	}
	return sj
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parseComponent(cj ComponentJSON) (compensation.Component, error) {
	c := compensation.Component{
		Kind:       compensation.ComponentKind(cj.Type),
		Label:      cj.Label,
		Rate:       cj.Rate,
		Amount:     cj.Amount,
		Metric:     cj.Metric,
		Expression: cj.Expression,
	}

	switch c.Kind {
	case compensation.ComponentHourly,
		compensation.ComponentFlatPerShift,
		compensation.ComponentPeriodBonusContribution:
	case compensation.ComponentPercentOfMetric, compensation.ComponentCustomMetricMultiplier:
		if c.Metric == "" {
			return c, &compensation.ValidationError{Field: "metric", Message: fmt.Sprintf("is required for %s", c.Kind)}
		}
	case compensation.ComponentExpression:
		if _, err := compensation.CompileExpression(c.Expression); err != nil {
			return c, &compensation.ValidationError{Field: "expression", Message: err.Error()}
		}
	default:
		return c, &compensation.ValidationError{Field: "type", Message: fmt.Sprintf("unknown component type %q", cj.Type)}
	}
	return c, nil
}

func (f *SchemeFactory) parseBonus(bj BonusJSON) (compensation.PeriodBonus, error) {
	b := compensation.PeriodBonus{
		ID:             bj.ID,
		Name:           bj.Name,
		MetricKey:      bj.MetricKey,
		Mode:           parseBonusMode(bj.BonusMode),
		Type:           compensation.BonusType(bj.Type),
		TargetPerShift: bj.TargetPerShift,
		RewardType:     compensation.RewardType(bj.RewardType),
		RewardValue:    bj.RewardValue,
	}
	if b.ID == "" {
		b.ID = f.newID()
	}
	if b.MetricKey == "" {
		return b, &compensation.ValidationError{Field: "metric_key", Message: "is required"}
	}
	if b.Mode == "" {
		return b, &compensation.ValidationError{Field: "bonus_mode", Message: fmt.Sprintf("unknown mode %q", bj.BonusMode)}
	}

	switch b.Type {
	case compensation.BonusProgressive:
		if len(bj.Thresholds) == 0 {
			return b, &compensation.ValidationError{Field: "thresholds", Message: "a progressive bonus needs at least one tier"}
		}
		for _, t := range bj.Thresholds {
			if t.From.IsNegative() {
				return b, &compensation.ValidationError{Field: "thresholds.from", Message: "must not be negative"}
			}
			b.Thresholds = append(b.Thresholds, compensation.Threshold{From: t.From, Percent: t.Percent})
		}
		sort.SliceStable(b.Thresholds, func(i, j int) bool {
			return b.Thresholds[i].From.LessThan(b.Thresholds[j].From)
		})
	case compensation.BonusFlat:
		switch b.RewardType {
		case "":
			b.RewardType = compensation.RewardFixed
		case compensation.RewardFixed, compensation.RewardPercent:
		default:
			return b, &compensation.ValidationError{Field: "reward_type", Message: fmt.Sprintf("unknown reward type %q", bj.RewardType)}
		}
		if b.TargetPerShift.IsNegative() {
			return b, &compensation.ValidationError{Field: "target_per_shift", Message: "must not be negative"}
		}
	default:
		return b, &compensation.ValidationError{Field: "type", Message: fmt.Sprintf("unknown bonus type %q", bj.Type)}
	}
	return b, nil
}

func parseBonusMode(s string) compensation.BonusMode {
	switch s {
	case "SHIFT":
		return compensation.ModeShift
	case "MONTH", "":
		return compensation.ModeMonth
	default:
		return ""
	}
}
