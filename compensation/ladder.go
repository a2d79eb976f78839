/*
ladder.go - Period Bonus Ladder Scaler

PURPOSE:
  A progressive bonus is configured against a whole period ("200 000 of
  revenue this month pays 10%"). Mid-period, comparing the running total to
  the full-month floor is unfair, so floors are pace-scaled to the number of
  shifts actually worked.

SCALING:
  SHIFT mode: scaled = from × shiftsCount
  MONTH mode: scaled = from / referenceShiftCount × shiftsCount

  referenceShiftCount is the employee's planned shifts for the month when
  known, else the scheme's standard_monthly_shifts. A reference of zero
  scales every floor to zero and marks every tier unreachable.

TIER RESOLUTION:
  Thresholds are sorted ascending by from. The achieved tier is the highest
  tier whose scaled floor is <= currentValue, scanned top-down. With zero
  shifts nothing is met, whatever currentValue says.

REWARD:
  A met progressive tier pays percent × currentValue: reaching a higher tier
  re-prices everything earned so far, not just the excess.

EXAMPLE:
  thresholds [{100000, 5}, {200000, 10}], MONTH, reference 20, 10 shifts,
  currentValue 60000:
    scaled floors [50000, 100000] -> tier 0 met -> reward 3000
*/
package compensation

import (
	"sort"

	"github.com/shopspring/decimal"
)

// ScaledThreshold is one tier after pace scaling.
type ScaledThreshold struct {
	Index            int             `json:"index"`
	MonthlyThreshold decimal.Decimal `json:"monthly_threshold"` // configured, unscaled
	ScaledThreshold  decimal.Decimal `json:"scaled_threshold"`
	Percent          decimal.Decimal `json:"percent"`
	IsMet            bool            `json:"is_met"`
}

// NextThreshold describes the lowest tier not yet reached.
type NextThreshold struct {
	Index            int             `json:"index"`
	MonthlyThreshold decimal.Decimal `json:"monthly_threshold"`
	ScaledThreshold  decimal.Decimal `json:"scaled_threshold"`
	Percent          decimal.Decimal `json:"percent"`
	RemainingTotal   decimal.Decimal `json:"remaining_total"`
	PerShiftToReach  decimal.Decimal `json:"per_shift_to_reach"`
}

// Projection extrapolates the current pace to the end of the period.
type Projection struct {
	AvgPerShift     decimal.Decimal `json:"avg_per_shift"`
	RemainingShifts int             `json:"remaining_shifts"`
	ProjectedTotal  decimal.Decimal `json:"projected_total"`
	ProjectedIndex  int             `json:"projected_index"` // -1 when no tier is projected
	ProjectedMet    bool            `json:"projected_met"`
	ProjectedBonus  decimal.Decimal `json:"projected_bonus"`
}

// BonusProgress is the resolved state of one bonus for a period so far.
type BonusProgress struct {
	Bonus          PeriodBonus     `json:"bonus"`
	CurrentValue   decimal.Decimal `json:"current_value"`
	ShiftsCount    int             `json:"shifts_count"`
	ReferenceCount int             `json:"reference_shift_count"`

	// Progressive ladders.
	Thresholds     []ScaledThreshold `json:"thresholds"`
	AchievedIndex  int               `json:"achieved_index"` // -1 when nothing is met
	Next           *NextThreshold    `json:"next_threshold,omitempty"`
	PerShiftToStay decimal.Decimal   `json:"per_shift_to_stay"`

	// Flat bonuses.
	Target decimal.Decimal `json:"target"`

	IsMet       bool            `json:"is_met"`
	RewardType  RewardType      `json:"reward_type"`
	RewardValue decimal.Decimal `json:"reward_value"`
	BonusAmount decimal.Decimal `json:"bonus_amount"`

	Projection Projection `json:"projection"`
}

// sortedThresholds returns a copy ordered ascending by From. Ties keep
// configured order.
func sortedThresholds(ts []Threshold) []Threshold {
	out := append([]Threshold(nil), ts...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].From.LessThan(out[j].From) })
	return out
}

// scaleFloor applies pace scaling to a single period-level amount.
func scaleFloor(mode BonusMode, from decimal.Decimal, shiftsCount, referenceShiftCount int) decimal.Decimal {
	shifts := decimal.NewFromInt(int64(shiftsCount))
	if mode == ModeShift {
		return from.Mul(shifts)
	}
	if referenceShiftCount <= 0 {
		return decimal.Zero
	}
	return from.Mul(shifts).Div(decimal.NewFromInt(int64(referenceShiftCount)))
}

// scalingReachable reports whether tiers can be met at all.
func scalingReachable(mode BonusMode, shiftsCount, referenceShiftCount int) bool {
	if shiftsCount <= 0 {
		return false
	}
	return mode == ModeShift || referenceShiftCount > 0
}

// ScaleThresholds returns the bonus's tiers, sorted and pace-scaled. IsMet is
// left false; use Progress to resolve tiers against a current value.
func ScaleThresholds(bonus PeriodBonus, shiftsCount, referenceShiftCount int) []ScaledThreshold {
	sorted := sortedThresholds(bonus.Thresholds)
	out := make([]ScaledThreshold, len(sorted))
	for i, t := range sorted {
		out[i] = ScaledThreshold{
			Index:            i,
			MonthlyThreshold: t.From,
			ScaledThreshold:  RoundMoney(scaleFloor(bonus.Mode, t.From, shiftsCount, referenceShiftCount)),
			Percent:          t.Percent,
		}
	}
	return out
}

// Progress resolves a bonus against the value accumulated so far.
func Progress(bonus PeriodBonus, currentValue decimal.Decimal, shiftsCount, referenceShiftCount int) BonusProgress {
	p := BonusProgress{
		Bonus:          bonus,
		CurrentValue:   currentValue,
		ShiftsCount:    shiftsCount,
		ReferenceCount: referenceShiftCount,
		AchievedIndex:  -1,
		BonusAmount:    decimal.Zero,
	}

	remaining := referenceShiftCount - shiftsCount
	if remaining < 0 {
		remaining = 0
	}
	avg := decimal.Zero
	if shiftsCount > 0 {
		avg = currentValue.Div(decimal.NewFromInt(int64(shiftsCount)))
	}
	projected := currentValue.Add(avg.Mul(decimal.NewFromInt(int64(remaining))))
	p.Projection = Projection{
		AvgPerShift:     RoundMoney(avg),
		RemainingShifts: remaining,
		ProjectedTotal:  RoundMoney(projected),
		ProjectedIndex:  -1,
		ProjectedBonus:  decimal.Zero,
	}

	if bonus.Type == BonusProgressive {
		resolveProgressive(&p, remaining, projected)
	} else {
		resolveFlat(&p, projected)
	}
	return p
}

func resolveProgressive(p *BonusProgress, remaining int, projected decimal.Decimal) {
	p.Thresholds = ScaleThresholds(p.Bonus, p.ShiftsCount, p.ReferenceCount)
	reachable := scalingReachable(p.Bonus.Mode, p.ShiftsCount, p.ReferenceCount)

	// Tiers are judged against the exact floor; the exposed one is rounded.
	if reachable {
		for i := len(p.Thresholds) - 1; i >= 0; i-- {
			floor := scaleFloor(p.Bonus.Mode, p.Thresholds[i].MonthlyThreshold, p.ShiftsCount, p.ReferenceCount)
			if floor.LessThanOrEqual(p.CurrentValue) {
				p.AchievedIndex = i
				break
			}
		}
	}
	for i := range p.Thresholds {
		p.Thresholds[i].IsMet = p.AchievedIndex >= 0 && i <= p.AchievedIndex
	}

	p.RewardType = RewardPercent
	p.RewardValue = decimal.Zero
	if p.AchievedIndex >= 0 {
		achieved := p.Thresholds[p.AchievedIndex]
		p.IsMet = true
		p.RewardValue = achieved.Percent
		p.BonusAmount = RoundMoney(Percent(p.CurrentValue, achieved.Percent))
		if p.ReferenceCount > 0 {
			p.PerShiftToStay = RoundMoney(achieved.MonthlyThreshold.Div(decimal.NewFromInt(int64(p.ReferenceCount))))
		}
	}

	if next := p.AchievedIndex + 1; next < len(p.Thresholds) {
		t := p.Thresholds[next]
		rem := t.MonthlyThreshold.Sub(p.CurrentValue)
		perShift := decimal.Zero
		if remaining > 0 {
			perShift = rem.Div(decimal.NewFromInt(int64(remaining)))
		}
		p.Next = &NextThreshold{
			Index:            next,
			MonthlyThreshold: t.MonthlyThreshold,
			ScaledThreshold:  t.ScaledThreshold,
			Percent:          t.Percent,
			RemainingTotal:   RoundMoney(rem),
			PerShiftToReach:  RoundMoney(perShift),
		}
	}

	// Projection is judged against the unscaled, end-of-period floors.
	if p.ShiftsCount > 0 {
		for i := len(p.Thresholds) - 1; i >= 0; i-- {
			if p.Thresholds[i].MonthlyThreshold.LessThanOrEqual(projected) {
				p.Projection.ProjectedIndex = i
				p.Projection.ProjectedMet = true
				p.Projection.ProjectedBonus = RoundMoney(Percent(projected, p.Thresholds[i].Percent))
				break
			}
		}
	}
}

func resolveFlat(p *BonusProgress, projected decimal.Decimal) {
	target := scaleFloor(p.Bonus.Mode, p.Bonus.TargetPerShift, p.ShiftsCount, p.ReferenceCount)
	p.Target = RoundMoney(target)
	p.RewardType = p.Bonus.RewardType
	if p.RewardType == "" {
		p.RewardType = RewardFixed
	}
	p.RewardValue = p.Bonus.RewardValue

	reachable := scalingReachable(p.Bonus.Mode, p.ShiftsCount, p.ReferenceCount)
	p.IsMet = reachable && p.CurrentValue.GreaterThanOrEqual(target)
	if p.IsMet {
		p.BonusAmount = flatReward(p.RewardType, p.RewardValue, p.CurrentValue)
	}

	// Full-period target: SHIFT mode over the reference count, MONTH mode as configured.
	fullTarget := p.Bonus.TargetPerShift
	if p.Bonus.Mode == ModeShift {
		fullTarget = p.Bonus.TargetPerShift.Mul(decimal.NewFromInt(int64(p.ReferenceCount)))
	}
	if p.ShiftsCount > 0 && projected.GreaterThanOrEqual(fullTarget) {
		p.Projection.ProjectedMet = true
		p.Projection.ProjectedIndex = 0
		p.Projection.ProjectedBonus = flatReward(p.RewardType, p.RewardValue, projected)
	}
}

func flatReward(rt RewardType, value, base decimal.Decimal) decimal.Decimal {
	if rt == RewardPercent {
		return RoundMoney(Percent(base, value))
	}
	return RoundMoney(value)
}

// Freeze converts resolved progress into an evaluator snapshot. Unmet
// bonuses come back unfrozen, which pays nothing for MONTH mode. SHIFT-mode
// flat bonuses are never frozen: each shift is judged on its own target.
func Freeze(p BonusProgress) BonusSnapshot {
	snap := BonusSnapshot{Bonus: p.Bonus, PeriodMetricTotal: p.CurrentValue}
	if !p.IsMet || (p.Bonus.Mode == ModeShift && p.Bonus.Type == BonusFlat) {
		return snap
	}
	v := p.RewardValue
	snap.CurrentRewardType = p.RewardType
	snap.CurrentRewardValue = &v
	return snap
}
