package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"taskbot/db"
)

func TestOffsetPhrase(t *testing.T) {
	assert.Equal(t, "1 hour", OffsetPhrase(60))
	assert.Equal(t, "30 minutes", OffsetPhrase(30))
	assert.Equal(t, "15 minutes", OffsetPhrase(15))
	assert.Equal(t, "120 minutes", OffsetPhrase(120))
}

func TestMention(t *testing.T) {
	assert.Equal(t, "@alice", Mention(db.User{ID: 1, Username: "alice", FirstName: "Alice"}))
	assert.Equal(t, "Bob", Mention(db.User{ID: 2, FirstName: "Bob"}))
	assert.Equal(t, "User 3", Mention(db.User{ID: 3}))
}

func TestEligibleRecipients(t *testing.T) {
	assignees := []db.User{
		{ID: 1, Username: "alice", ReceiveReminders: true},
		{ID: 2, Username: "bob", ReceiveReminders: false},
		{ID: 3, FirstName: "Carol", ReceiveReminders: true},
	}

	got := eligibleRecipients(assignees)

	assert.Len(t, got, 2)
	assert.Equal(t, int64(1), got[0].ID)
	assert.Equal(t, int64(3), got[1].ID)

	assert.Empty(t, eligibleRecipients([]db.User{{ID: 2, ReceiveReminders: false}}))
	assert.Empty(t, eligibleRecipients(nil))
}

func TestComposeReminder(t *testing.T) {
	task := db.Task{
		Code:  "TK0007",
		Name:  "Prepare presentation",
		DueAt: time.Date(2025, 1, 10, 14, 0, 0, 0, time.UTC),
	}
	recipients := []db.User{
		{ID: 1, Username: "alice", ReceiveReminders: true},
		{ID: 2, FirstName: "Bob", ReceiveReminders: true},
	}

	text := composeReminder(task, recipients, 30)

	assert.Contains(t, text, "Prepare presentation")
	assert.Contains(t, text, "TK0007")
	assert.Contains(t, text, "2025-01-10 14:00 UTC")
	assert.Contains(t, text, "@alice, Bob")
	assert.Contains(t, text, "30 minutes")
}
