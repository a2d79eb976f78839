package factory

import "encoding/json"

// =============================================================================
// PRESET SCHEMES
// =============================================================================
//
// Presets build JSON documents for the pay setups clubs start from. They
// round-trip through ParseScheme like any admin-authored scheme.

// HourlyJSON returns JSON for a plain hourly scheme.
func HourlyJSON(id, clubID, name string, hourlyRate float64) string {
	sj := map[string]interface{}{
		"id":      id,
		"club_id": clubID,
		"name":    name,
		"formula": map[string]interface{}{
			"components": []map[string]interface{}{
				{"type": "HOURLY", "rate": hourlyRate},
			},
		},
	}
	b, _ := json.MarshalIndent(sj, "", "  ")
	return string(b)
}

// HourlyWithRevenueShareJSON returns JSON for hourly pay plus a percentage
// of the shift's total revenue.
func HourlyWithRevenueShareJSON(id, clubID, name string, hourlyRate, revenuePercent float64) string {
	sj := map[string]interface{}{
		"id":      id,
		"club_id": clubID,
		"name":    name,
		"formula": map[string]interface{}{
			"components": []map[string]interface{}{
				{"type": "HOURLY", "rate": hourlyRate},
				{"type": "PERCENT_OF_METRIC", "metric": "total_revenue", "rate": revenuePercent, "label": "Revenue share"},
			},
		},
	}
	b, _ := json.MarshalIndent(sj, "", "  ")
	return string(b)
}

// RevenueLadderJSON returns JSON for a flat shift rate with a monthly
// progressive revenue ladder. tiers maps each floor to its percent and
// must be given in ascending order as [from, percent] pairs.
func RevenueLadderJSON(id, clubID, name string, shiftRate float64, monthlyShifts int, tiers [][2]float64) string {
	thresholds := make([]map[string]interface{}, 0, len(tiers))
	for _, t := range tiers {
		thresholds = append(thresholds, map[string]interface{}{"from": t[0], "percent": t[1]})
	}
	sj := map[string]interface{}{
		"id":                      id,
		"club_id":                 clubID,
		"name":                    name,
		"standard_monthly_shifts": monthlyShifts,
		"formula": map[string]interface{}{
			"components": []map[string]interface{}{
				{"type": "FLAT_PER_SHIFT", "amount": shiftRate},
			},
		},
		"period_bonuses": []map[string]interface{}{{
			"id":         id + "-revenue-ladder",
			"name":       "Revenue ladder",
			"metric_key": "total_revenue",
			"bonus_mode": "MONTH",
			"type":       "PROGRESSIVE",
			"thresholds": thresholds,
		}},
	}
	b, _ := json.MarshalIndent(sj, "", "  ")
	return string(b)
}

// ShiftTargetJSON returns JSON for hourly pay plus a fixed bonus for every
// shift whose revenue reaches target.
func ShiftTargetJSON(id, clubID, name string, hourlyRate, target, reward float64) string {
	sj := map[string]interface{}{
		"id":      id,
		"club_id": clubID,
		"name":    name,
		"formula": map[string]interface{}{
			"components": []map[string]interface{}{
				{"type": "HOURLY", "rate": hourlyRate},
			},
		},
		"period_bonuses": []map[string]interface{}{{
			"id":               id + "-shift-target",
			"name":             "Shift target",
			"metric_key":       "total_revenue",
			"bonus_mode":       "SHIFT",
			"type":             "FLAT",
			"target_per_shift": target,
			"reward_type":      "FIXED",
			"reward_value":     reward,
		}},
	}
	b, _ := json.MarshalIndent(sj, "", "  ")
	return string(b)
}
