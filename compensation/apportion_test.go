package compensation_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/clubops/payroll-engine/compensation"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func periodShifts(revenues ...string) []compensation.ShiftRecord {
	out := make([]compensation.ShiftRecord, len(revenues))
	for i, r := range revenues {
		sh := shiftWith(r, "0", "8", nil)
		sh.ID = fmt.Sprintf("shift-%d", i+1)
		sh.CheckIn = sh.CheckIn.AddDate(0, 0, i)
		sh.CalculatedSalary = d("1000")
		out[i] = sh
	}
	return out
}

var flatRate = compensation.Formula{Components: []compensation.Component{
	{Kind: compensation.ComponentFlatPerShift, Amount: d("1000")},
}}

func TestApportion_ProgressiveLadder(t *testing.T) {
	// GIVEN: Three shifts bringing 30000, 20000 and 10000; 100000 -> 5% over 6 planned
	// WHEN: Apportioning the month
	// THEN: The floor scales to 50000, the tier is met, each shift carries 5% of its own revenue
	bonus := compensation.PeriodBonus{
		ID: "ladder", MetricKey: "total_revenue", Mode: compensation.ModeMonth, Type: compensation.BonusProgressive,
		Thresholds: []compensation.Threshold{{From: d("100000"), Percent: d("5")}},
	}
	shifts := periodShifts("30000", "20000", "10000")

	ap := compensation.Apportion(compensation.SameFormula(flatRate), []compensation.PeriodBonus{bonus}, shifts, 6)

	require.Len(t, ap.Progress, 1)
	assert.True(t, ap.Progress[0].IsMet)
	assert.True(t, ap.BonusAmount.Equal(d("3000")))
	assert.True(t, ap.KPIBonusTotal.Equal(d("3000")))

	require.Len(t, ap.Shifts, 3)
	for i, want := range []string{"1500", "1000", "500"} {
		assert.Equal(t, shifts[i].ID, ap.Shifts[i].ShiftID)
		assert.True(t, ap.Shifts[i].KPIBonus.Equal(d(want)), "shift %d got %s", i, ap.Shifts[i].KPIBonus)
		assert.True(t, ap.Shifts[i].Salary.Equal(d("1000")), "stored salary is reported, not recomputed")
		require.Len(t, ap.Shifts[i].Breakdown, 2)
	}
}

func TestApportion_UnmetLadderAttributesNothing(t *testing.T) {
	bonus := compensation.PeriodBonus{
		MetricKey: "total_revenue", Mode: compensation.ModeMonth, Type: compensation.BonusProgressive,
		Thresholds: []compensation.Threshold{{From: d("100000"), Percent: d("5")}},
	}

	ap := compensation.Apportion(compensation.SameFormula(flatRate), []compensation.PeriodBonus{bonus}, periodShifts("1000", "1000"), 6)

	assert.True(t, ap.BonusAmount.IsZero())
	assert.True(t, ap.KPIBonusTotal.IsZero())
	for _, s := range ap.Shifts {
		assert.True(t, s.KPIBonus.IsZero())
	}
}

func TestApportion_FixedRewardRoundingDrift(t *testing.T) {
	// A fixed 100 split over three equal shifts rounds to 33.33 each. The
	// 0.01 drift is reported, not reconciled.
	bonus := compensation.PeriodBonus{
		MetricKey: "total_revenue", Mode: compensation.ModeMonth, Type: compensation.BonusFlat,
		TargetPerShift: d("300"), RewardType: compensation.RewardFixed, RewardValue: d("100"),
	}

	ap := compensation.Apportion(compensation.SameFormula(flatRate), []compensation.PeriodBonus{bonus}, periodShifts("100", "100", "100"), 3)

	assert.True(t, ap.BonusAmount.Equal(d("100")))
	assert.True(t, ap.KPIBonusTotal.Equal(d("99.99")), "got %s", ap.KPIBonusTotal)
	for _, s := range ap.Shifts {
		assert.True(t, s.KPIBonus.Equal(d("33.33")))
	}
}

func TestApportion_ShiftTargetCountsPerShift(t *testing.T) {
	bonus := compensation.PeriodBonus{
		MetricKey: "total_revenue", Mode: compensation.ModeShift, Type: compensation.BonusFlat,
		TargetPerShift: d("5000"), RewardType: compensation.RewardFixed, RewardValue: d("250"),
	}

	ap := compensation.Apportion(compensation.SameFormula(flatRate), []compensation.PeriodBonus{bonus}, periodShifts("6000", "4000", "5000"), 20)

	assert.True(t, ap.Shifts[0].KPIBonus.Equal(d("250")))
	assert.True(t, ap.Shifts[1].KPIBonus.IsZero())
	assert.True(t, ap.Shifts[2].KPIBonus.Equal(d("250")))
	assert.True(t, ap.KPIBonusTotal.Equal(d("500")))
}

func TestApportion_UsesEachShiftsOwnFormula(t *testing.T) {
	// GIVEN: Two shifts priced with different formula versions
	// WHEN: Apportioning without period bonuses
	// THEN: Each breakdown comes from its own formula
	shifts := periodShifts("100", "100")
	shifts[0].SchemeVersion = 1
	shifts[1].SchemeVersion = 2
	v2 := compensation.Formula{Components: []compensation.Component{
		{Kind: compensation.ComponentFlatPerShift, Amount: d("5000")},
	}}
	lookup := func(s compensation.ShiftRecord) *compensation.Formula {
		if s.SchemeVersion == 2 {
			return &v2
		}
		return &flatRate
	}

	ap := compensation.Apportion(lookup, nil, shifts, 20)

	require.Len(t, ap.Shifts, 2)
	require.Len(t, ap.Shifts[0].Breakdown, 1)
	assert.True(t, ap.Shifts[0].Breakdown[0].Amount.Equal(d("1000")))
	require.Len(t, ap.Shifts[1].Breakdown, 1)
	assert.True(t, ap.Shifts[1].Breakdown[0].Amount.Equal(d("5000")))
}

func TestApportion_NoShifts(t *testing.T) {
	ap := compensation.Apportion(compensation.SameFormula(flatRate), nil, nil, 20)

	assert.Empty(t, ap.Shifts)
	assert.True(t, ap.BonusAmount.IsZero())
	assert.True(t, ap.KPIBonusTotal.IsZero())
}

func TestPeriodTotals(t *testing.T) {
	a := shiftWith("100", "50", "8", map[string]decimal.Decimal{"bar": d("7")})
	b := shiftWith("10", "0", "8", map[string]decimal.Decimal{"bar": d("3"), "hookah": d("1")})

	totals := compensation.PeriodTotals([]compensation.ShiftRecord{a, b})

	assert.True(t, totals.Value("total_revenue").Equal(d("160")))
	assert.True(t, totals.Value("revenue_cash").Equal(d("110")))
	assert.True(t, totals.Value("bar").Equal(d("10")))
	assert.True(t, totals.Value("hookah").Equal(d("1")))
}

// =============================================================================
// PERIODS AND CLUB SETTINGS
// =============================================================================

func TestMonthPeriod_UsesClubTimezone(t *testing.T) {
	plus3 := time.FixedZone("UTC+3", 3*60*60)
	late := time.Date(2025, time.March, 31, 22, 30, 0, 0, time.UTC)

	assert.Equal(t, "2025-03", compensation.MonthPeriod(late, time.UTC).Key())
	assert.Equal(t, "2025-04", compensation.MonthPeriod(late, plus3).Key())

	p := compensation.MonthPeriod(late, time.UTC)
	assert.True(t, p.Contains(p.Start))
	assert.False(t, p.Contains(p.End), "half-open")
	assert.Equal(t, "2025-04", p.NextPeriod().Key())
	assert.Equal(t, "2025-02", p.PreviousPeriod().Key())
	assert.Equal(t, "2024-12", compensation.MonthPeriod(time.Date(2025, time.January, 5, 0, 0, 0, 0, time.UTC), nil).PreviousPeriod().Key())
}

func TestParseMonth(t *testing.T) {
	p, err := compensation.ParseMonth("2025-02", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC), p.Start)
	assert.Equal(t, time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC), p.End)

	for _, bad := range []string{"", "2025", "2025-13", "02-2025"} {
		_, err := compensation.ParseMonth(bad, time.UTC)
		assert.True(t, compensation.IsClientError(err), bad)
	}
}

func TestClubSettings_Classify(t *testing.T) {
	at := func(h int) time.Time { return time.Date(2025, time.March, 10, h, 0, 0, 0, time.UTC) }

	def := compensation.DefaultClubSettings("club-1")
	assert.Equal(t, compensation.ShiftNight, def.Classify(at(7)))
	assert.Equal(t, compensation.ShiftDay, def.Classify(at(8)))
	assert.Equal(t, compensation.ShiftDay, def.Classify(at(19)))
	assert.Equal(t, compensation.ShiftNight, def.Classify(at(20)))

	// Day window wrapping midnight.
	wrap := compensation.ClubSettings{DayStartHour: 18, NightStartHour: 2}
	assert.Equal(t, compensation.ShiftDay, wrap.Classify(at(23)))
	assert.Equal(t, compensation.ShiftDay, wrap.Classify(at(1)))
	assert.Equal(t, compensation.ShiftNight, wrap.Classify(at(3)))

	unknown := compensation.ClubSettings{DayStartHour: 8, NightStartHour: 20, Timezone: "Nowhere/Special"}
	assert.Equal(t, time.UTC, unknown.Location())
}
