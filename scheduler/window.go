package scheduler

import "time"

// fireAt is the instant a reminder becomes eligible to send: offset minutes
// ahead of the task's due instant.
func fireAt(dueAt time.Time, offsetMinutes int) time.Time {
	return dueAt.Add(-time.Duration(offsetMinutes) * time.Minute)
}

// dueNow reports whether this is the tick the reminder fires on. The window
// is half-open: fireAt <= now < fireAt+interval. Under continuous ticking
// exactly one tick lands in it. If the process was down and now is past the
// whole window, the reminder is missed for good; it never fires late.
func dueNow(now, fireAt time.Time, interval time.Duration) bool {
	return !now.Before(fireAt) && now.Before(fireAt.Add(interval))
}
