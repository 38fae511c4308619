package scheduler

import (
	"testing"
	"time"

	"pgregory.net/rapid"
)

// Under continuous ticking on a fixed grid, every reminder window contains
// exactly one tick, whatever the phase between the grid and the fire time.
func TestWindowContainsExactlyOneTick(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		intervalMinutes := rapid.IntRange(1, 60).Draw(t, "intervalMinutes")
		offset := rapid.IntRange(1, 14*24*60).Draw(t, "offsetMinutes")
		startUnix := rapid.Int64Range(0, 4_000_000_000).Draw(t, "startUnix")
		phaseSeconds := rapid.Int64Range(0, int64(intervalMinutes)*60-1).Draw(t, "phaseSeconds")

		interval := time.Duration(intervalMinutes) * time.Minute
		start := time.Unix(startUnix, 0).UTC()
		fire := start.Add(time.Duration(phaseSeconds) * time.Second)
		due := fire.Add(time.Duration(offset) * time.Minute)

		fired := 0
		for tick := start; tick.Before(fire.Add(3 * interval)); tick = tick.Add(interval) {
			if dueNow(tick, fireAt(due, offset), interval) {
				fired++
			}
		}

		if fired != 1 {
			t.Fatalf("expected exactly one firing tick, got %d (interval=%v phase=%ds)",
				fired, interval, phaseSeconds)
		}
	})
}
