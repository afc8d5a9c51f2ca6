package schedulecalc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateScheduleParams(t *testing.T) {
	assert.NoError(t, ValidateScheduleParams(10, 20, 2))
	assert.Error(t, ValidateScheduleParams(-1, 20, 2))
	assert.Error(t, ValidateScheduleParams(10, 24, 2))
	assert.Error(t, ValidateScheduleParams(20, 10, 2))
	assert.Error(t, ValidateScheduleParams(10, 20, 0))
	assert.Error(t, ValidateScheduleParams(10, 20, 25))
	assert.Error(t, ValidateScheduleParams(10, 12, 5))
}

func TestParseScheduleInput_Valid(t *testing.T) {
	got, err := ParseScheduleInput("10 20 2")
	require.NoError(t, err)
	assert.Equal(t, ScheduleInput{StartHour: 10, EndHour: 20, IntervalHours: 2}, got)
}

func TestParseScheduleInput_WrongArity(t *testing.T) {
	_, err := ParseScheduleInput("10 20")
	assert.Error(t, err)
}

func TestParseScheduleInput_NotNumbers(t *testing.T) {
	_, err := ParseScheduleInput("a b c")
	assert.Error(t, err)
}

func TestParseDateInput_Valid(t *testing.T) {
	now := time.Date(2025, 7, 20, 0, 0, 0, 0, kyiv)
	got, err := ParseDateInput("2025-07-25 10:00 2", kyiv, now)
	require.NoError(t, err)
	assert.Equal(t, 2, got.IntervalHours)
	assert.True(t, got.Start.Equal(time.Date(2025, 7, 25, 10, 0, 0, 0, kyiv)))
}

func TestParseDateInput_PastRejected(t *testing.T) {
	now := time.Date(2025, 7, 30, 0, 0, 0, 0, kyiv)
	_, err := ParseDateInput("2025-07-25 10:00 2", kyiv, now)
	assert.Error(t, err)
}

func TestParseDateInput_BadTime(t *testing.T) {
	now := time.Date(2025, 7, 20, 0, 0, 0, 0, kyiv)
	_, err := ParseDateInput("2025-07-25 25:00 2", kyiv, now)
	assert.Error(t, err)
}

func TestParseDateInput_WrongArity(t *testing.T) {
	now := time.Date(2025, 7, 20, 0, 0, 0, 0, kyiv)
	_, err := ParseDateInput("2025-07-25 10:00", kyiv, now)
	assert.Error(t, err)
}

func TestParseBulkEditInput_MinimalForm(t *testing.T) {
	now := time.Date(2025, 7, 20, 0, 0, 0, 0, kyiv)
	got, err := ParseBulkEditInput("10 20", kyiv, now)
	require.NoError(t, err)
	assert.Equal(t, 10, got.StartHour)
	assert.Equal(t, 20, got.EndHour)
	assert.Equal(t, 0, got.IntervalHours)
	assert.Nil(t, got.StartDate)
	assert.Empty(t, got.ChannelMarker)
}

func TestParseBulkEditInput_WithInterval(t *testing.T) {
	now := time.Date(2025, 7, 20, 0, 0, 0, 0, kyiv)
	got, err := ParseBulkEditInput("10 20 2", kyiv, now)
	require.NoError(t, err)
	assert.Equal(t, 2, got.IntervalHours)
}

func TestParseBulkEditInput_WithIntervalAndDate(t *testing.T) {
	now := time.Date(2025, 7, 20, 0, 0, 0, 0, kyiv)
	got, err := ParseBulkEditInput("10 20 2 2025-07-25", kyiv, now)
	require.NoError(t, err)
	assert.Equal(t, 2, got.IntervalHours)
	require.NotNil(t, got.StartDate)
	assert.Equal(t, 25, got.StartDate.Day())
}

func TestParseBulkEditInput_WithChannelMarker(t *testing.T) {
	now := time.Date(2025, 7, 20, 0, 0, 0, 0, kyiv)
	got, err := ParseBulkEditInput("10 20 @mychannel", kyiv, now)
	require.NoError(t, err)
	assert.Equal(t, "@mychannel", got.ChannelMarker)
}

func TestParseBulkEditInput_DateOnlyNoInterval(t *testing.T) {
	now := time.Date(2025, 7, 20, 0, 0, 0, 0, kyiv)
	got, err := ParseBulkEditInput("10 20 2025-07-25", kyiv, now)
	require.NoError(t, err)
	assert.Equal(t, 0, got.IntervalHours)
	require.NotNil(t, got.StartDate)
}

func TestParseBulkEditInput_PastDateRejected(t *testing.T) {
	now := time.Date(2025, 7, 30, 0, 0, 0, 0, kyiv)
	_, err := ParseBulkEditInput("10 20 2 2025-07-25", kyiv, now)
	assert.Error(t, err)
}

func TestParseBulkEditInput_IntervalLongerThanWindowRejected(t *testing.T) {
	now := time.Date(2025, 7, 20, 0, 0, 0, 0, kyiv)
	_, err := ParseBulkEditInput("10 12 5", kyiv, now)
	assert.Error(t, err)
}

func TestParseBulkEditInput_StartAfterEndRejected(t *testing.T) {
	now := time.Date(2025, 7, 20, 0, 0, 0, 0, kyiv)
	_, err := ParseBulkEditInput("20 10", kyiv, now)
	assert.Error(t, err)
}
