package compensation

import (
	"fmt"
	"time"
)

// =============================================================================
// PAY PERIOD - The boundary bonuses are measured against
// =============================================================================

// Period is a half-open pay period [Start, End).
//
// Bonus ladders are configured per calendar month in the club's timezone:
// a shift belongs to the month its check-in falls in, locally.
type Period struct {
	Start time.Time
	End   time.Time
}

// Contains returns true if t is within [Start, End).
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && t.Before(p.End)
}

// Key returns the month identifier, e.g. "2025-03".
func (p Period) Key() string { return p.Start.Format("2006-01") }

func (p Period) String() string {
	return "[" + p.Start.Format(time.RFC3339) + ", " + p.End.Format(time.RFC3339) + ")"
}

// MonthPeriod returns the calendar month containing t in loc.
func MonthPeriod(t time.Time, loc *time.Location) Period {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	start := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
	return Period{Start: start, End: start.AddDate(0, 1, 0)}
}

// ParseMonth parses "YYYY-MM" into the month period in loc.
func ParseMonth(s string, loc *time.Location) (Period, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation("2006-01", s, loc)
	if err != nil {
		return Period{}, &ValidationError{Field: "month", Message: fmt.Sprintf("%q is not YYYY-MM", s)}
	}
	return MonthPeriod(t, loc), nil
}

// NextPeriod returns the following month.
func (p Period) NextPeriod() Period {
	return Period{Start: p.End, End: p.End.AddDate(0, 1, 0)}
}

// PreviousPeriod returns the preceding month.
func (p Period) PreviousPeriod() Period {
	return Period{Start: p.Start.AddDate(0, -1, 0), End: p.Start}
}
