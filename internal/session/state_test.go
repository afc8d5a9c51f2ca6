package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode_RoundTripsEveryState(t *testing.T) {
	states := []State{
		Idle{},
		Mode1Uploading{Channel: 1},
		Mode2Uploading{Channel: 2},
		RecurringAwaitingMedia{Channel: 3},
		RecurringAwaitingDescription{Channel: 3, File: "a.jpg"},
		RecurringAwaitingSchedule{PostID: 42},
		AwaitingScheduleInput{},
		AwaitingDateInput{EditingPostID: 7},
		AwaitingDateInput{},
		AwaitingDescriptionInput{EditingPostID: 8},
		AwaitingChannelId{},
		AwaitingChannelName{PendingChannelID: 99},
		AwaitingBatchName{Channel: 5},
		BatchMode1Uploading{Batch: 10},
		BatchMode2Uploading{Batch: 11},
		AwaitingBulkEditInput{PostIDs: []int64{1, 2, 3}, ScopeLabel: "channel #5"},
		AwaitingRescheduleSettings{},
		AwaitingBackupName{},
		AwaitingCaptionInput{PostID: 4, NextIndex: 2, Channel: 5},
	}

	for _, s := range states {
		tag, body, err := Encode(s)
		require.NoError(t, err)
		assert.Equal(t, s.Tag(), tag)

		got, err := Decode(tag, body)
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
}

func TestDecode_UnknownTagFails(t *testing.T) {
	_, err := Decode("not_a_real_state", []byte(`{}`))
	assert.Error(t, err)
}

func TestDecode_EmptyBodyYieldsZeroValue(t *testing.T) {
	got, err := Decode(Idle{}.Tag(), nil)
	require.NoError(t, err)
	assert.Equal(t, Idle{}, got)
}
