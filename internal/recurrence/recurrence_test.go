package recurrence

import (
	"testing"
	"time"

	"github.com/castline/scheduler/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestAdvance_ContinuesBelowMaxCount(t *testing.T) {
	max := 3
	r := &model.Recurrence{IntervalHours: 24, MaxCount: &max, PostedCount: 1}
	now := time.Date(2025, 7, 26, 12, 0, 0, 0, time.UTC)

	out := Advance(r, now)

	assert.False(t, out.Terminate)
	assert.Equal(t, 2, out.PostedCount)
	assert.Equal(t, now.Add(24*time.Hour), out.Next)
}

func TestAdvance_TerminatesAtMaxCount(t *testing.T) {
	max := 3
	r := &model.Recurrence{IntervalHours: 24, MaxCount: &max, PostedCount: 2}
	now := time.Date(2025, 7, 27, 12, 0, 0, 0, time.UTC)

	out := Advance(r, now)

	assert.True(t, out.Terminate)
	assert.Equal(t, 3, out.PostedCount)
}

func TestAdvance_TerminatesPastEndTimestamp(t *testing.T) {
	end := time.Date(2025, 7, 26, 0, 0, 0, 0, time.UTC)
	r := &model.Recurrence{IntervalHours: 24, EndTimestamp: &end, PostedCount: 5}
	now := time.Date(2025, 7, 26, 12, 0, 0, 0, time.UTC)

	out := Advance(r, now)

	assert.True(t, out.Terminate)
}

func TestAdvance_NoTerminationConditionsNeverStops(t *testing.T) {
	r := &model.Recurrence{IntervalHours: 6, PostedCount: 40}
	now := time.Date(2025, 7, 26, 12, 0, 0, 0, time.UTC)

	out := Advance(r, now)

	assert.False(t, out.Terminate)
	assert.Equal(t, 41, out.PostedCount)
	assert.Equal(t, now.Add(6*time.Hour), out.Next)
}
