package db

import (
	"sort"
	"time"

	"github.com/pkg/errors"
)

// TaskStatus is advanced by command handlers only; the scheduler never
// touches it.
type TaskStatus string

const (
	StatusNew        TaskStatus = "NEW"
	StatusInProgress TaskStatus = "IN_PROGRESS"
	StatusDone       TaskStatus = "DONE"
)

var ErrUnknownStatus = errors.New("unknown task status")

// ParseStatus accepts the lowercase forms users type in chat commands.
func ParseStatus(s string) (TaskStatus, error) {
	switch s {
	case "new", "NEW":
		return StatusNew, nil
	case "in_progress", "IN_PROGRESS":
		return StatusInProgress, nil
	case "done", "DONE":
		return StatusDone, nil
	}
	return "", ErrUnknownStatus
}

// User is a chat participant. ReceiveReminders is the per-user opt-in flag
// controlling whether the user is named in reminder messages.
type User struct {
	ID               int64
	Username         string
	FirstName        string
	LastName         string
	ReceiveReminders bool
	CreatedAt        time.Time
}

type Task struct {
	ID        int64
	Code      string // TK0001-style display handle
	Name      string
	ChatID    int64
	DueAt     time.Time // always UTC
	Status    TaskStatus
	CreatedAt time.Time
	Assignees []User
}

// Reminder is one scheduled notification: fire MinutesBefore minutes ahead
// of the owning task's due instant. Sent goes false->true exactly once.
type Reminder struct {
	ID            int64
	TaskID        int64
	MinutesBefore int
	Sent          bool
	CreatedAt     time.Time
}

// PendingReminder is what the scheduler scans: an unsent reminder joined
// with its task and the task's assignees.
type PendingReminder struct {
	ID            int64
	MinutesBefore int
	Task          Task
}

var ErrInvalidOffset = errors.New("reminder offset must be a positive number of minutes")

// NormalizeOffsets validates a caller-supplied offset list. Non-positive
// offsets are rejected outright. Duplicates are dropped and the result is
// sorted largest-first, so reminders fire in chronological order. An empty
// list is valid and means "no reminders".
func NormalizeOffsets(offsets []int) ([]int, error) {
	seen := make(map[int]bool, len(offsets))
	out := make([]int, 0, len(offsets))
	for _, m := range offsets {
		if m <= 0 {
			return nil, ErrInvalidOffset
		}
		if seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(out)))
	return out, nil
}
