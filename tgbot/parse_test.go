package tgbot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAddTask(t *testing.T) {
	req, err := parseAddTask(`"Prepare presentation" @alice @bob 2025-10-20 14:30 60,30,15`)
	require.NoError(t, err)

	assert.Equal(t, "Prepare presentation", req.name)
	assert.Equal(t, []string{"alice", "bob"}, req.usernames)
	assert.Equal(t, time.Date(2025, 10, 20, 14, 30, 0, 0, time.UTC), req.dueAt)
	assert.Equal(t, []int{60, 30, 15}, req.offsets)
}

func TestParseAddTaskDefaultOffsets(t *testing.T) {
	req, err := parseAddTask(`"Ship release" @alice 2025-10-20 09:00`)
	require.NoError(t, err)

	assert.Nil(t, req.offsets, "omitted offsets stay nil so the default applies")
}

func TestParseAddTaskMentionsAnywhere(t *testing.T) {
	req, err := parseAddTask(`"Code review" @sarah 2025-10-25 15:00 @tom`)
	require.NoError(t, err)

	assert.Equal(t, []string{"sarah", "tom"}, req.usernames)
	assert.Equal(t, time.Date(2025, 10, 25, 15, 0, 0, 0, time.UTC), req.dueAt)
}

func TestParseAddTaskRejectsMalformedInput(t *testing.T) {
	for _, args := range []string{
		``,
		`no quotes here 2025-10-20 14:30`,
		`"unterminated @alice 2025-10-20 14:30`,
		`"" @alice 2025-10-20 14:30`,
		`"name" @alice`,
		`"name" @alice 2025-10-20`,
		`"name" @alice 2025-13-45 99:99`,
		`"name" @alice 2025-10-20 14:30 60,30 extra`,
		`"name" @alice 2025-10-20 14:30 0`,
		`"name" @alice 2025-10-20 14:30 -30`,
	} {
		_, err := parseAddTask(args)
		assert.Error(t, err, "args: %s", args)
	}
}

func TestParseOffsets(t *testing.T) {
	got, err := parseOffsets("60,30,15")
	require.NoError(t, err)
	assert.Equal(t, []int{60, 30, 15}, got)

	got, err = parseOffsets(" 15, 60 ,30 ")
	require.NoError(t, err)
	assert.Equal(t, []int{60, 30, 15}, got, "offsets are sorted largest-first")

	got, err = parseOffsets("30,30,30")
	require.NoError(t, err)
	assert.Equal(t, []int{30}, got, "duplicates collapse to one reminder")

	got, err = parseOffsets("off")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestParseOffsetsRejectsInvalid(t *testing.T) {
	for _, s := range []string{"", "abc", "60,,30", "60,zero", "0", "-15", "30,-15"} {
		_, err := parseOffsets(s)
		assert.Error(t, err, "input: %s", s)
	}
}

func TestNormalizeCode(t *testing.T) {
	assert.Equal(t, "TK0001", normalizeCode(" tk0001 "))
	assert.Equal(t, "TK0042", normalizeCode("TK0042"))
}
