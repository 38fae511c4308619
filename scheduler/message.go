package scheduler

import (
	"fmt"
	"strings"

	"taskbot/db"
)

const dueDateFormat = "2006-01-02 15:04 UTC"

const fmtReminderMessage = "🔔 <b>Task Reminder</b>\n\n" +
	"📋 <b>Task:</b> %s\n" +
	"🔢 <b>Task Code:</b> %s\n" +
	"⏰ <b>Due:</b> %s\n" +
	"👥 <b>Assigned to:</b> %s\n\n" +
	"⚠️ This task is due in about %s!"

// eligibleRecipients narrows the assignee list to users who opted in to
// reminders.
func eligibleRecipients(assignees []db.User) []db.User {
	var out []db.User
	for _, u := range assignees {
		if u.ReceiveReminders {
			out = append(out, u)
		}
	}
	return out
}

// Mention renders a user reference: @username when the user has a handle,
// otherwise first name, otherwise a numeric fallback.
func Mention(u db.User) string {
	switch {
	case u.Username != "":
		return "@" + u.Username
	case u.FirstName != "":
		return u.FirstName
	default:
		return fmt.Sprintf("User %d", u.ID)
	}
}

// OffsetPhrase turns an offset into the human phrase used in messages.
func OffsetPhrase(minutes int) string {
	switch minutes {
	case 60:
		return "1 hour"
	case 30:
		return "30 minutes"
	default:
		return fmt.Sprintf("%d minutes", minutes)
	}
}

func composeReminder(t db.Task, recipients []db.User, offsetMinutes int) string {
	mentions := make([]string, len(recipients))
	for i, u := range recipients {
		mentions[i] = Mention(u)
	}

	return fmt.Sprintf(fmtReminderMessage,
		t.Name, t.Code, t.DueAt.UTC().Format(dueDateFormat),
		strings.Join(mentions, ", "), OffsetPhrase(offsetMinutes))
}
