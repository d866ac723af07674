package query

import (
	"testing"
	"time"

	"github.com/joelsaunders/bilbo/bill-service/internal/repository"
	"github.com/stretchr/testify/assert"
)

func TestDueCacheTTL(t *testing.T) {
	now := time.Date(2024, 3, 25, 8, 59, 30, 0, time.UTC)

	tests := []struct {
		name      string
		changesAt time.Time
		want      time.Duration
	}{
		{"change far off uses default", now.Add(time.Hour), repository.DueViewTTL},
		{"change inside default window", now.Add(30 * time.Second), 30 * time.Second},
		{"change under a second", now.Add(500 * time.Millisecond), 0},
		{"change now", now, 0},
		{"change already passed", now.Add(-time.Minute), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, dueCacheTTL(now, tt.changesAt))
		})
	}
}
