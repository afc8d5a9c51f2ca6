package classify

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_RateLimited(t *testing.T) {
	err := errors.New("Too Many Requests: retry after 5")
	got := Classify(err, 0)
	require.NotNil(t, got)
	assert.Equal(t, KindRateLimited, got.Kind)
	assert.True(t, got.Retryable)
	assert.Equal(t, 6*time.Second, got.RetryAfter)
}

func TestClassify_RateLimited_NoExplicitWait(t *testing.T) {
	got := Classify(errors.New("too many requests"), 0)
	require.NotNil(t, got)
	assert.Equal(t, 31*time.Second, got.RetryAfter)
}

func TestClassify_BotBlocked(t *testing.T) {
	got := Classify(errors.New("Forbidden: bot was blocked by the user"), 0)
	require.NotNil(t, got)
	assert.Equal(t, KindBotBlocked, got.Kind)
	assert.False(t, got.Retryable)
	assert.True(t, got.Surface)
}

func TestClassify_ChatNotFound(t *testing.T) {
	got := Classify(errors.New("Bad Request: chat not found"), 0)
	assert.Equal(t, KindChatNotFound, got.Kind)
	assert.False(t, got.Retryable)
}

func TestClassify_FileTooLarge(t *testing.T) {
	got := Classify(errors.New("Request Entity Too Large: file too large"), 0)
	assert.Equal(t, KindFileTooLarge, got.Kind)
	assert.False(t, got.Retryable)
}

func TestClassify_NetworkTimeout(t *testing.T) {
	got := Classify(errors.New("dial tcp: connection timeout"), 0)
	assert.Equal(t, KindNetworkTimeout, got.Kind)
	assert.True(t, got.Retryable)
	assert.Equal(t, 10*time.Second, got.RetryAfter)
}

func TestClassify_BadCaption(t *testing.T) {
	got := Classify(errors.New("Bad Request: caption is too long"), 0)
	assert.Equal(t, KindBadCaption, got.Kind)
	assert.False(t, got.Retryable)
}

func TestClassify_BadRequestOther(t *testing.T) {
	got := Classify(errors.New("Bad Request: wrong file identifier"), 0)
	assert.Equal(t, KindBadRequestOther, got.Kind)
	assert.False(t, got.Retryable)
}

func TestClassify_UnknownBackoffGrowsAndCaps(t *testing.T) {
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 5 * time.Second},
		{1, 10 * time.Second},
		{2, 20 * time.Second},
		{3, 40 * time.Second},
		{4, 60 * time.Second},
		{10, 60 * time.Second},
	}
	for _, c := range cases {
		got := Classify(errors.New("something exploded"), c.attempt)
		assert.Equal(t, KindUnknown, got.Kind)
		assert.Equal(t, c.want, got.RetryAfter, "attempt %d", c.attempt)
	}
}

func TestClassify_NilError(t *testing.T) {
	assert.Nil(t, Classify(nil, 0))
}

func TestClassify_PassesThroughAlreadyClassified(t *testing.T) {
	original := &Error{Kind: KindBotBlocked, Retryable: false, Cause: errors.New("forbidden")}
	wrapped := errors.New("wrapping: " + original.Error())
	_ = wrapped // distinct error text should not matter once already classified below

	got := Classify(original, 0)
	assert.Same(t, original, got)
}
