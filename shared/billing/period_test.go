package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestCurrentPeriodStart(t *testing.T) {
	tests := []struct {
		name   string
		now    time.Time
		anchor int
		want   time.Time
	}{
		{"after anchor day starts this month", time.Date(2024, 3, 20, 9, 30, 0, 0, time.UTC), 15, date(2024, 3, 15)},
		{"before anchor day starts previous month", time.Date(2024, 3, 10, 9, 30, 0, 0, time.UTC), 15, date(2024, 2, 15)},
		{"on anchor day starts today at midnight", time.Date(2024, 3, 15, 0, 0, 1, 0, time.UTC), 15, date(2024, 3, 15)},
		{"january rolls back to december", time.Date(2024, 1, 3, 12, 0, 0, 0, time.UTC), 15, date(2023, 12, 15)},
		{"anchor 31 clamps in february", time.Date(2023, 2, 28, 8, 0, 0, 0, time.UTC), 31, date(2023, 2, 28)},
		{"anchor 31 clamps in leap february", time.Date(2024, 2, 29, 8, 0, 0, 0, time.UTC), 31, date(2024, 2, 29)},
		{"anchor 31 before clamped day falls back to january", time.Date(2024, 2, 28, 8, 0, 0, 0, time.UTC), 31, date(2024, 1, 31)},
		{"anchor 30 clamps previous february", time.Date(2023, 3, 5, 8, 0, 0, 0, time.UTC), 30, date(2023, 2, 28)},
		{"anchor 1", time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC), 1, date(2024, 7, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CurrentPeriodStart(tt.now, tt.anchor)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCurrentPeriodStartInvalidAnchor(t *testing.T) {
	for _, anchor := range []int{0, -1, 32} {
		_, err := CurrentPeriodStart(date(2024, 3, 1), anchor)
		assert.ErrorIs(t, err, ErrInvalidAnchorDay)
	}
}

func TestCurrentPeriodEnd(t *testing.T) {
	p, err := CurrentPeriod(time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC), 15)
	require.NoError(t, err)
	assert.Equal(t, date(2024, 3, 15), p.Start)
	assert.Equal(t, date(2024, 4, 15), p.End)

	p, err = CurrentPeriod(time.Date(2024, 12, 20, 0, 0, 0, 0, time.UTC), 15)
	require.NoError(t, err)
	assert.Equal(t, date(2025, 1, 15), p.End)
}

func TestCurrentPeriodsAreContiguousWithClamping(t *testing.T) {
	p, err := CurrentPeriod(time.Date(2023, 1, 31, 12, 0, 0, 0, time.UTC), 31)
	require.NoError(t, err)
	assert.Equal(t, date(2023, 1, 31), p.Start)
	assert.Equal(t, date(2023, 2, 28), p.End)

	next, err := CurrentPeriod(p.End, 31)
	require.NoError(t, err)
	assert.Equal(t, p.End, next.Start)
	assert.Equal(t, date(2023, 3, 31), next.End)
}

func TestCurrentPeriodKeepsLocation(t *testing.T) {
	london, err := time.LoadLocation("Europe/London")
	if err != nil {
		t.Skip("tzdata not available")
	}
	p, err := CurrentPeriod(time.Date(2024, 6, 20, 10, 0, 0, 0, london), 15)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 15, 0, 0, 0, 0, london), p.Start)
	assert.Equal(t, london, p.Start.Location())
}
