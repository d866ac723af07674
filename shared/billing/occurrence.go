package billing

import (
	"fmt"
	"time"

	"github.com/joelsaunders/bilbo/shared/models"
)

// ValidateRule checks a bill's recurrence rule before it is persisted.
func ValidateRule(periodType string, periodFrequency int) error {
	switch periodType {
	case models.PeriodDay, models.PeriodWeek, models.PeriodMonth:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidRecurrenceUnit, periodType)
	}
	if periodFrequency < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidInterval, periodFrequency)
	}
	return nil
}

// Occurrences expands the rule (unit, interval, anchor) and returns the
// occurrences strictly between p.Start and p.End in increasing order.
//
// The k-th occurrence is always derived from anchor rather than from the
// previous occurrence, so month steps from the 31st land on the last day of
// shorter months without drifting afterwards.
//
// Calendar steps are taken in the period's location, whatever location the
// anchor was loaded in.
func Occurrences(p Period, unit string, interval int, anchor time.Time) ([]time.Time, error) {
	if err := ValidateRule(unit, interval); err != nil {
		return nil, err
	}
	anchor = anchor.In(p.Start.Location())

	var out []time.Time
	for k := firstCandidate(p, unit, interval, anchor); ; k++ {
		current := nth(anchor, unit, k*interval)
		if !current.Before(p.End) {
			break
		}
		if current.After(p.Start) {
			out = append(out, current)
		}
	}
	return out, nil
}

// nth returns anchor advanced by n units.
func nth(anchor time.Time, unit string, n int) time.Time {
	switch unit {
	case models.PeriodDay:
		return anchor.AddDate(0, 0, n)
	case models.PeriodWeek:
		return anchor.AddDate(0, 0, 7*n)
	default:
		return addMonths(anchor, n)
	}
}

// addMonths moves t forward n calendar months keeping the wall clock time,
// clamping the day to the length of the target month.
func addMonths(t time.Time, n int) time.Time {
	year, month, day := t.Date()
	first := time.Date(year, month+time.Month(n), 1, 0, 0, 0, 0, t.Location())
	if last := daysIn(first.Year(), first.Month()); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// firstCandidate returns a step index whose occurrence is guaranteed to fall
// before p.Start, skipping the steps between a far-past anchor and the period.
func firstCandidate(p Period, unit string, interval int, anchor time.Time) int {
	if !anchor.Before(p.Start) {
		return 0
	}
	var k int
	switch unit {
	case models.PeriodDay, models.PeriodWeek:
		stepDays := interval
		if unit == models.PeriodWeek {
			stepDays *= 7
		}
		days := int(p.Start.Sub(anchor).Hours() / 24)
		k = days/stepDays - 1
	default:
		months := (p.Start.Year()-anchor.Year())*12 + int(p.Start.Month()) - int(anchor.Month())
		k = months/interval - 1
	}
	if k < 0 {
		return 0
	}
	return k
}
