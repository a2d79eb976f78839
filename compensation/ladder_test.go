package compensation_test

import (
	"testing"

	"github.com/clubops/payroll-engine/compensation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func revenueLadder(mode compensation.BonusMode) compensation.PeriodBonus {
	return compensation.PeriodBonus{
		ID:        "ladder",
		Name:      "Revenue ladder",
		MetricKey: "total_revenue",
		Mode:      mode,
		Type:      compensation.BonusProgressive,
		Thresholds: []compensation.Threshold{
			{From: d("200000"), Percent: d("10")},
			{From: d("100000"), Percent: d("5")},
		},
	}
}

// =============================================================================
// PROGRESSIVE LADDERS
// =============================================================================

func TestProgress_MonthLadderMidPeriod(t *testing.T) {
	// GIVEN: Tiers 100000 -> 5% and 200000 -> 10%, 20 reference shifts
	// WHEN: 10 shifts have brought 60000
	// THEN: Floors scale to 50000 and 100000, tier 0 is met, reward 3000
	p := compensation.Progress(revenueLadder(compensation.ModeMonth), d("60000"), 10, 20)

	require.Len(t, p.Thresholds, 2)
	assert.True(t, p.Thresholds[0].ScaledThreshold.Equal(d("50000")))
	assert.True(t, p.Thresholds[1].ScaledThreshold.Equal(d("100000")))
	assert.True(t, p.Thresholds[0].MonthlyThreshold.Equal(d("100000")), "tiers are sorted")
	assert.True(t, p.Thresholds[0].IsMet)
	assert.False(t, p.Thresholds[1].IsMet)

	assert.Equal(t, 0, p.AchievedIndex)
	assert.True(t, p.IsMet)
	assert.Equal(t, compensation.RewardPercent, p.RewardType)
	assert.True(t, p.RewardValue.Equal(d("5")))
	assert.True(t, p.BonusAmount.Equal(d("3000")))
	assert.True(t, p.PerShiftToStay.Equal(d("5000")))

	require.NotNil(t, p.Next)
	assert.Equal(t, 1, p.Next.Index)
	assert.True(t, p.Next.RemainingTotal.Equal(d("140000")))
	assert.True(t, p.Next.PerShiftToReach.Equal(d("14000")))

	assert.True(t, p.Projection.AvgPerShift.Equal(d("6000")))
	assert.Equal(t, 10, p.Projection.RemainingShifts)
	assert.True(t, p.Projection.ProjectedTotal.Equal(d("120000")))
	assert.Equal(t, 0, p.Projection.ProjectedIndex)
	assert.True(t, p.Projection.ProjectedBonus.Equal(d("6000")))
}

func TestProgress_HigherTierRepricesEverything(t *testing.T) {
	p := compensation.Progress(revenueLadder(compensation.ModeMonth), d("110000"), 10, 20)

	assert.Equal(t, 1, p.AchievedIndex)
	assert.True(t, p.BonusAmount.Equal(d("11000")), "10% of the whole value, not the excess")
	assert.Nil(t, p.Next)
}

func TestProgress_ZeroShiftsMeetsNothing(t *testing.T) {
	for _, mode := range []compensation.BonusMode{compensation.ModeMonth, compensation.ModeShift} {
		p := compensation.Progress(revenueLadder(mode), d("1000000"), 0, 20)

		assert.Equal(t, -1, p.AchievedIndex, string(mode))
		assert.False(t, p.IsMet)
		assert.True(t, p.BonusAmount.IsZero())
		assert.Equal(t, -1, p.Projection.ProjectedIndex)
	}
}

func TestProgress_ZeroReferenceIsUnreachable(t *testing.T) {
	p := compensation.Progress(revenueLadder(compensation.ModeMonth), d("500000"), 5, 0)

	for _, th := range p.Thresholds {
		assert.True(t, th.ScaledThreshold.IsZero())
		assert.False(t, th.IsMet)
	}
	assert.Equal(t, -1, p.AchievedIndex)
	assert.True(t, p.BonusAmount.IsZero())
	assert.Equal(t, 0, p.Projection.RemainingShifts)
}

func TestProgress_ShiftModeScalesByShiftCount(t *testing.T) {
	bonus := revenueLadder(compensation.ModeShift)
	bonus.Thresholds = []compensation.Threshold{{From: d("5000"), Percent: d("2")}}

	p := compensation.Progress(bonus, d("16000"), 3, 20)

	assert.True(t, p.Thresholds[0].ScaledThreshold.Equal(d("15000")))
	assert.Equal(t, 0, p.AchievedIndex)
	assert.True(t, p.BonusAmount.Equal(d("320")))

	p = compensation.Progress(bonus, d("14999"), 3, 20)
	assert.Equal(t, -1, p.AchievedIndex)
}

func TestProgress_OverPlanClampsRemaining(t *testing.T) {
	p := compensation.Progress(revenueLadder(compensation.ModeMonth), d("250000"), 25, 20)

	assert.Equal(t, 0, p.Projection.RemainingShifts)
	assert.True(t, p.Projection.ProjectedTotal.Equal(d("250000")))
}

func TestScaleThresholds_MonthFloorsNeverDecrease(t *testing.T) {
	bonus := revenueLadder(compensation.ModeMonth)
	prev := compensation.ScaleThresholds(bonus, 0, 22)
	for n := 1; n <= 30; n++ {
		cur := compensation.ScaleThresholds(bonus, n, 22)
		for i := range cur {
			assert.True(t, cur[i].ScaledThreshold.GreaterThanOrEqual(prev[i].ScaledThreshold), "shifts=%d tier=%d", n, i)
			assert.False(t, cur[i].IsMet)
		}
		prev = cur
	}
	assert.True(t, prev[0].ScaledThreshold.GreaterThan(d("100000")), "past the plan the floor keeps growing")
}

func TestProgress_JudgesUnroundedFloor(t *testing.T) {
	// GIVEN: A 100000 tier over 3 reference shifts, one shift worked
	// WHEN: The running total sits just under the exact floor 33333.333...
	// THEN: The rounded floor is shown but the tier is not met
	bonus := compensation.PeriodBonus{
		MetricKey: "total_revenue", Mode: compensation.ModeMonth, Type: compensation.BonusProgressive,
		Thresholds: []compensation.Threshold{{From: d("100000"), Percent: d("5")}},
	}

	p := compensation.Progress(bonus, d("33333.33"), 1, 3)
	require.Len(t, p.Thresholds, 1)
	assert.True(t, p.Thresholds[0].ScaledThreshold.Equal(d("33333.33")))
	assert.False(t, p.IsMet)
	assert.Equal(t, -1, p.AchievedIndex)

	assert.True(t, compensation.Progress(bonus, d("33333.34"), 1, 3).IsMet)
	assert.True(t, compensation.Progress(bonus, d("100000"), 3, 3).IsMet, "a full month hits the floor exactly")

	flat := compensation.PeriodBonus{
		MetricKey: "total_revenue", Mode: compensation.ModeMonth, Type: compensation.BonusFlat,
		TargetPerShift: d("100000"), RewardValue: d("500"),
	}
	assert.False(t, compensation.Progress(flat, d("33333.33"), 1, 3).IsMet)
}

// =============================================================================
// FLAT BONUSES
// =============================================================================

func TestProgress_FlatMonthTarget(t *testing.T) {
	bonus := compensation.PeriodBonus{
		ID: "flat", MetricKey: "total_revenue",
		Mode: compensation.ModeMonth, Type: compensation.BonusFlat,
		TargetPerShift: d("100000"), RewardValue: d("2000"),
	}

	p := compensation.Progress(bonus, d("60000"), 10, 20)

	assert.True(t, p.Target.Equal(d("50000")))
	assert.True(t, p.IsMet)
	assert.Equal(t, compensation.RewardFixed, p.RewardType, "reward type defaults to FIXED")
	assert.True(t, p.BonusAmount.Equal(d("2000")))
	assert.True(t, p.Projection.ProjectedMet)

	miss := compensation.Progress(bonus, d("40000"), 10, 20)
	assert.False(t, miss.IsMet)
	assert.True(t, miss.BonusAmount.IsZero())
	assert.False(t, miss.Projection.ProjectedMet)
}

func TestProgress_FlatPercentReward(t *testing.T) {
	bonus := compensation.PeriodBonus{
		MetricKey: "total_revenue", Mode: compensation.ModeShift, Type: compensation.BonusFlat,
		TargetPerShift: d("5000"), RewardType: compensation.RewardPercent, RewardValue: d("1"),
	}

	p := compensation.Progress(bonus, d("30000"), 5, 20)

	assert.True(t, p.Target.Equal(d("25000")))
	assert.True(t, p.BonusAmount.Equal(d("300")))
	assert.True(t, p.Projection.ProjectedMet, "120000 projected against 5000 x 20")
	assert.True(t, p.Projection.ProjectedBonus.Equal(d("1200")))
}

// =============================================================================
// FREEZE
// =============================================================================

func TestFreeze(t *testing.T) {
	met := compensation.Progress(revenueLadder(compensation.ModeMonth), d("60000"), 10, 20)
	snap := compensation.Freeze(met)
	require.True(t, snap.Frozen())
	assert.Equal(t, compensation.RewardPercent, snap.CurrentRewardType)
	assert.True(t, snap.CurrentRewardValue.Equal(d("5")))
	assert.True(t, snap.PeriodMetricTotal.Equal(d("60000")))

	unmet := compensation.Progress(revenueLadder(compensation.ModeMonth), d("1000"), 10, 20)
	assert.False(t, compensation.Freeze(unmet).Frozen())

	shiftFlat := compensation.Progress(compensation.PeriodBonus{
		MetricKey: "total_revenue", Mode: compensation.ModeShift, Type: compensation.BonusFlat,
		TargetPerShift: d("1"), RewardValue: d("10"),
	}, d("100"), 2, 20)
	require.True(t, shiftFlat.IsMet)
	assert.False(t, compensation.Freeze(shiftFlat).Frozen(), "per-shift targets are judged per shift")
}
