// Package billing holds the recurrence and due-date engine: billing periods
// anchored to a user's pot deposit day, occurrence expansion of bill rules and
// the deposit/withdrawal due-ness checks the scheduler and bill views share.
package billing

import (
	"fmt"
	"time"
)

// Period is a half-open billing window [Start, End).
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls strictly inside the period bounds.
func (p Period) Contains(t time.Time) bool {
	return t.After(p.Start) && t.Before(p.End)
}

// CurrentPeriodStart returns midnight on the anchor day of the period that
// now falls in. Anchor days past the end of a month clamp to its last day.
func CurrentPeriodStart(now time.Time, anchorDay int) (time.Time, error) {
	if anchorDay < 1 || anchorDay > 31 {
		return time.Time{}, fmt.Errorf("%w: got %d", ErrInvalidAnchorDay, anchorDay)
	}
	thisMonth := anchorIn(now.Year(), now.Month(), anchorDay, now.Location())
	if now.Day() >= thisMonth.Day() {
		return thisMonth, nil
	}
	return anchorIn(now.Year(), now.Month()-1, anchorDay, now.Location()), nil
}

// CurrentPeriod returns the billing period containing now. End is the start
// of the following period, so consecutive periods never overlap.
func CurrentPeriod(now time.Time, anchorDay int) (Period, error) {
	start, err := CurrentPeriodStart(now, anchorDay)
	if err != nil {
		return Period{}, err
	}
	return Period{
		Start: start,
		End:   anchorIn(start.Year(), start.Month()+1, anchorDay, start.Location()),
	}, nil
}

// anchorIn builds midnight on anchorDay of the given month, clamped to the
// month length. Out-of-range months are normalised by time.Date.
func anchorIn(year int, month time.Month, anchorDay int, loc *time.Location) time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	day := anchorDay
	if last := daysIn(first.Year(), first.Month()); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, loc)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
