package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeOffsets(t *testing.T) {
	got, err := NormalizeOffsets([]int{15, 60, 30})
	require.NoError(t, err)
	assert.Equal(t, []int{60, 30, 15}, got, "sorted largest-first")

	got, err = NormalizeOffsets([]int{30, 30, 60, 30})
	require.NoError(t, err)
	assert.Equal(t, []int{60, 30}, got, "duplicates dropped")

	got, err = NormalizeOffsets(nil)
	require.NoError(t, err)
	assert.Empty(t, got, "empty list means no reminders and is valid")
}

func TestNormalizeOffsetsRejectsNonPositive(t *testing.T) {
	for _, offsets := range [][]int{{0}, {-30}, {60, 0}, {60, -1, 30}} {
		_, err := NormalizeOffsets(offsets)
		assert.ErrorIs(t, err, ErrInvalidOffset, "offsets: %v", offsets)
	}
}

func TestParseStatus(t *testing.T) {
	for in, want := range map[string]TaskStatus{
		"new": StatusNew, "NEW": StatusNew,
		"in_progress": StatusInProgress, "IN_PROGRESS": StatusInProgress,
		"done": StatusDone, "DONE": StatusDone,
	} {
		got, err := ParseStatus(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseStatus("finished")
	assert.ErrorIs(t, err, ErrUnknownStatus)
}
