package billing

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/joelsaunders/bilbo/shared/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOccurrencesMonthly(t *testing.T) {
	period := Period{Start: date(2024, 3, 15), End: date(2024, 4, 15)}

	// Both generated dates land exactly on the bounds and are excluded.
	got, err := Occurrences(period, models.PeriodMonth, 1, date(2024, 1, 15))
	require.NoError(t, err)
	assert.Empty(t, got)

	// Shifted by a minute the Mar 15 occurrence is inside, Apr 15 still excluded.
	anchor := time.Date(2024, 1, 15, 0, 1, 0, 0, time.UTC)
	got, err = Occurrences(period, models.PeriodMonth, 1, anchor)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{time.Date(2024, 3, 15, 0, 1, 0, 0, time.UTC)}, got)

	got, err = Occurrences(period, models.PeriodMonth, 1, date(2024, 1, 20))
	require.NoError(t, err)
	assert.Equal(t, []time.Time{date(2024, 3, 20)}, got)
}

func TestOccurrencesBoundaries(t *testing.T) {
	period := Period{Start: date(2024, 3, 15), End: date(2024, 4, 15)}

	got, err := Occurrences(period, models.PeriodDay, 31, date(2024, 3, 15))
	require.NoError(t, err)
	assert.Empty(t, got, "occurrence equal to period start must be excluded")

	got, err = Occurrences(period, models.PeriodDay, 1, date(2024, 4, 15))
	require.NoError(t, err)
	assert.Empty(t, got, "occurrence equal to period end must be excluded")

	got, err = Occurrences(period, models.PeriodDay, 1, date(2024, 4, 14))
	require.NoError(t, err)
	assert.Equal(t, []time.Time{date(2024, 4, 14)}, got)
}

func TestOccurrencesWeekly(t *testing.T) {
	period := Period{Start: date(2024, 3, 15), End: date(2024, 4, 15)}
	got, err := Occurrences(period, models.PeriodWeek, 2, date(2024, 1, 1))
	require.NoError(t, err)
	// Mondays every fortnight from Jan 1: ..., Mar 11, Mar 25, Apr 8, Apr 22.
	assert.Equal(t, []time.Time{date(2024, 3, 25), date(2024, 4, 8)}, got)
}

func TestOccurrencesDailyFarPastAnchorMatchesNaive(t *testing.T) {
	period := Period{Start: date(2024, 3, 15), End: date(2024, 4, 15)}
	anchor := time.Date(2015, 6, 3, 7, 45, 0, 0, time.UTC)

	got, err := Occurrences(period, models.PeriodDay, 3, anchor)
	require.NoError(t, err)

	var want []time.Time
	for cur := anchor; cur.Before(period.End); cur = cur.AddDate(0, 0, 3) {
		if cur.After(period.Start) {
			want = append(want, cur)
		}
	}
	assert.Equal(t, want, got)
}

func TestOccurrencesMonthEndDoesNotDrift(t *testing.T) {
	anchor := date(2024, 1, 31)

	got, err := Occurrences(Period{Start: date(2024, 2, 1), End: date(2024, 3, 1)}, models.PeriodMonth, 1, anchor)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{date(2024, 2, 29)}, got)

	got, err = Occurrences(Period{Start: date(2024, 3, 1), End: date(2024, 5, 1)}, models.PeriodMonth, 1, anchor)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{date(2024, 3, 31), date(2024, 4, 30)}, got)
}

func TestOccurrencesAnchorAfterPeriod(t *testing.T) {
	got, err := Occurrences(Period{Start: date(2024, 3, 15), End: date(2024, 4, 15)}, models.PeriodDay, 1, date(2024, 5, 1))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestOccurrencesInvalidRule(t *testing.T) {
	period := Period{Start: date(2024, 3, 15), End: date(2024, 4, 15)}

	_, err := Occurrences(period, "fortnight", 1, date(2024, 1, 1))
	assert.ErrorIs(t, err, ErrInvalidRecurrenceUnit)

	_, err = Occurrences(period, models.PeriodDay, 0, date(2024, 1, 1))
	assert.ErrorIs(t, err, ErrInvalidInterval)
}

func TestOccurrencesStrictlyIncreasingWithinPeriod(t *testing.T) {
	periods := []Period{
		{Start: date(2024, 1, 31), End: date(2024, 2, 29)},
		{Start: date(2024, 3, 15), End: date(2024, 4, 15)},
		{Start: date(2023, 12, 1), End: date(2024, 1, 1)},
	}
	anchors := []time.Time{
		date(2020, 1, 31),
		time.Date(2023, 11, 30, 13, 0, 0, 0, time.UTC),
		date(2024, 3, 16),
	}
	for _, unit := range []string{models.PeriodDay, models.PeriodWeek, models.PeriodMonth} {
		for interval := 1; interval <= 5; interval++ {
			for _, p := range periods {
				for _, anchor := range anchors {
					got, err := Occurrences(p, unit, interval, anchor)
					require.NoError(t, err)
					for i, occ := range got {
						assert.True(t, p.Contains(occ), "%s/%d: %v outside %v", unit, interval, occ, p)
						if i > 0 {
							assert.True(t, occ.After(got[i-1]), "%s/%d: not increasing at %d", unit, interval, i)
						}
					}
				}
			}
		}
	}
}

func TestValidateRule(t *testing.T) {
	assert.NoError(t, ValidateRule(models.PeriodWeek, 1))
	assert.ErrorIs(t, ValidateRule("year", 1), ErrInvalidRecurrenceUnit)
	assert.ErrorIs(t, ValidateRule(models.PeriodMonth, -2), ErrInvalidInterval)
}

func mustLondon(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/London")
	require.NoError(t, err)
	return loc
}

func TestOccurrencesIgnoreAnchorLocation(t *testing.T) {
	london := mustLondon(t)
	june := Period{
		Start: time.Date(2024, 6, 1, 0, 0, 0, 0, london),
		End:   time.Date(2024, 7, 1, 0, 0, 0, 0, london),
	}
	start := time.Date(2024, 5, 31, 0, 0, 0, 0, london)

	for _, unit := range []string{models.PeriodDay, models.PeriodWeek, models.PeriodMonth} {
		inLondon, err := Occurrences(june, unit, 1, start)
		require.NoError(t, err)
		inUTC, err := Occurrences(june, unit, 1, start.UTC())
		require.NoError(t, err)
		assert.Equal(t, inLondon, inUTC, unit)
	}

	got, err := Occurrences(june, models.PeriodMonth, 1, start.UTC())
	require.NoError(t, err)
	assert.Equal(t, []time.Time{time.Date(2024, 6, 30, 0, 0, 0, 0, london)}, got)
}

func TestOccurrencesClampInPeriodLocation(t *testing.T) {
	london := mustLondon(t)
	april := Period{
		Start: time.Date(2024, 4, 1, 0, 0, 0, 0, london),
		End:   time.Date(2024, 5, 1, 0, 0, 0, 0, london),
	}
	// Clocks go forward later on Mar 31, so the anchor reads the same in UTC.
	// Stepped in UTC the clamp would land on Apr 30 01:00 BST.
	got, err := Occurrences(april, models.PeriodMonth, 1, time.Date(2024, 3, 31, 0, 0, 0, 0, london).UTC())
	require.NoError(t, err)
	assert.Equal(t, []time.Time{time.Date(2024, 4, 30, 0, 0, 0, 0, london)}, got)
}
