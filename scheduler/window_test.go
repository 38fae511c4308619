package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFireAt(t *testing.T) {
	due := time.Date(2025, 1, 10, 14, 0, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2025, 1, 10, 13, 30, 0, 0, time.UTC), fireAt(due, 30))
	assert.Equal(t, time.Date(2025, 1, 10, 13, 0, 0, 0, time.UTC), fireAt(due, 60))
}

func TestDueNow(t *testing.T) {
	interval := time.Minute
	fire := time.Date(2025, 1, 10, 13, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"one tick early", fire.Add(-time.Minute), false},
		{"just before the window", fire.Add(-time.Second), false},
		{"window start inclusive", fire, true},
		{"inside the window", fire.Add(30 * time.Second), true},
		{"window end exclusive", fire.Add(interval), false},
		{"one tick late", fire.Add(2 * time.Minute), false},
		{"long after, missed for good", fire.Add(10 * time.Hour), false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, dueNow(tc.now, fire, interval))
		})
	}
}

func TestDueNowWiderInterval(t *testing.T) {
	fire := time.Date(2025, 1, 10, 13, 30, 0, 0, time.UTC)
	interval := 5 * time.Minute

	assert.True(t, dueNow(fire.Add(4*time.Minute), fire, interval))
	assert.False(t, dueNow(fire.Add(5*time.Minute), fire, interval))
}
