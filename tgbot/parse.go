package tgbot

import (
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"taskbot/db"
)

var (
	errBadArguments = errors.New("couldn't parse command arguments")
	errBadOffsets   = errors.New("couldn't parse reminder offsets")
)

// addTaskRequest is the structured form of an /add_task invocation:
//
//	/add_task "task name" @user1 @user2 YYYY-MM-DD HH:MM [60,30,15]
//
// offsets stays nil when the trailing list is omitted, so the caller can
// apply the configured default.
type addTaskRequest struct {
	name      string
	usernames []string
	dueAt     time.Time
	offsets   []int
}

func parseAddTask(args string) (*addTaskRequest, error) {
	args = strings.TrimSpace(args)
	if !strings.HasPrefix(args, `"`) {
		return nil, errBadArguments
	}

	end := strings.Index(args[1:], `"`)
	if end < 0 {
		return nil, errBadArguments
	}

	req := addTaskRequest{name: strings.TrimSpace(args[1 : end+1])}
	if req.name == "" {
		return nil, errBadArguments
	}

	var rest []string
	for _, tok := range strings.Fields(args[end+2:]) {
		if strings.HasPrefix(tok, "@") {
			if handle := strings.TrimPrefix(tok, "@"); handle != "" {
				req.usernames = append(req.usernames, handle)
			}
			continue
		}
		rest = append(rest, tok)
	}

	// What's left is "date time" plus an optional offsets list.
	if len(rest) < 2 || len(rest) > 3 {
		return nil, errBadArguments
	}

	dueAt, err := time.ParseInLocation("2006-01-02 15:04", rest[0]+" "+rest[1], time.UTC)
	if err != nil {
		return nil, errBadArguments
	}
	req.dueAt = dueAt

	if len(rest) == 3 {
		offsets, err := parseOffsets(rest[2])
		if err != nil {
			return nil, err
		}
		req.offsets = offsets
	}

	return &req, nil
}

// parseOffsets parses a comma-separated offsets list like "60,30,15".
// "off" means no reminders and parses to an empty, non-nil slice.
func parseOffsets(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "off") {
		return []int{}, nil
	}

	var offsets []int
	for _, part := range strings.Split(s, ",") {
		m, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, errBadOffsets
		}
		offsets = append(offsets, m)
	}

	normalized, err := db.NormalizeOffsets(offsets)
	if err != nil {
		return nil, err
	}
	if len(normalized) == 0 {
		return nil, errBadOffsets
	}
	return normalized, nil
}

// normalizeCode uppercases a task code so "tk0001" works too.
func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
