// Package classify maps a raw Publisher transport error to the fixed
// taxonomy of spec.md §4.4: each Kind carries a retry directive (whether
// the Dispatcher should retry, and how long to wait) and a flag for
// whether the operator should be told about it.
package classify

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Kind identifies which bucket of the taxonomy an error fell into.
type Kind string

const (
	KindRateLimited     Kind = "rate_limited"
	KindBotBlocked      Kind = "bot_blocked"
	KindChatNotFound    Kind = "chat_not_found"
	KindFileTooLarge    Kind = "file_too_large"
	KindNetworkTimeout  Kind = "network_timeout"
	KindBadCaption      Kind = "bad_caption"
	KindBadRequestOther Kind = "bad_request_other"
	KindUnknown         Kind = "unknown"
)

// Error is the classified form of a Publisher failure. Dispatcher and
// internal/notify match on Kind rather than inspecting error strings.
type Error struct {
	Kind       Kind
	Retryable  bool
	RetryAfter time.Duration // wait before the next attempt, when Retryable
	Surface    bool          // whether the operator should see this at all
	Guidance   string        // remediation text shown to the operator
	Cause      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

var retryAfterPattern = regexp.MustCompile(`retry after (\d+)`)

// Classify turns a raw error returned by a Publisher adapter into the
// spec's taxonomy. attempt is the 0-based retry attempt about to be made,
// used only to compute Unknown's exponential backoff.
func Classify(err error, attempt int) *Error {
	if err == nil {
		return nil
	}

	var existing *Error
	if errors.As(err, &existing) {
		return existing
	}

	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "too many requests") || strings.Contains(msg, "retry after"):
		wait := 30 * time.Second
		if m := retryAfterPattern.FindStringSubmatch(msg); m != nil {
			if secs, convErr := strconv.Atoi(m[1]); convErr == nil {
				wait = time.Duration(secs) * time.Second
			}
		}
		return &Error{
			Kind:       KindRateLimited,
			Retryable:  true,
			RetryAfter: wait + time.Second,
			Surface:    false, // surfaced only after the final retry (dispatcher decides)
			Guidance:   "Transport rate limit reached; will retry automatically.",
			Cause:      err,
		}

	case strings.Contains(msg, "bot was blocked") || strings.Contains(msg, "forbidden"):
		return &Error{
			Kind:      KindBotBlocked,
			Retryable: false,
			Surface:   true,
			Guidance:  "The bot has been blocked or removed from the channel. Re-add it as an admin.",
			Cause:     err,
		}

	case strings.Contains(msg, "chat not found") || strings.Contains(msg, "chat_id is invalid"):
		return &Error{
			Kind:      KindChatNotFound,
			Retryable: false,
			Surface:   true,
			Guidance:  "Channel not found. Verify the channel ID and ensure the bot is an admin.",
			Cause:     err,
		}

	case strings.Contains(msg, "file too large") || strings.Contains(msg, "file size"):
		return &Error{
			Kind:      KindFileTooLarge,
			Retryable: false,
			Surface:   true,
			Guidance:  "File exceeds the transport's size limit. Use a smaller file.",
			Cause:     err,
		}

	case strings.Contains(msg, "network") || strings.Contains(msg, "timeout") || strings.Contains(msg, "connection"):
		return &Error{
			Kind:       KindNetworkTimeout,
			Retryable:  true,
			RetryAfter: 10 * time.Second,
			Surface:    false,
			Guidance:   "Network connectivity issue; will retry automatically.",
			Cause:      err,
		}

	case strings.Contains(msg, "bad request"):
		if strings.Contains(msg, "caption") {
			return &Error{
				Kind:      KindBadCaption,
				Retryable: false,
				Surface:   true,
				Guidance:  "Caption is too long (max 1024 characters) or has invalid formatting.",
				Cause:     err,
			}
		}
		return &Error{
			Kind:      KindBadRequestOther,
			Retryable: false,
			Surface:   true,
			Guidance:  "Invalid request parameters. Check the post content.",
			Cause:     err,
		}

	default:
		return &Error{
			Kind:       KindUnknown,
			Retryable:  true,
			RetryAfter: unknownBackoff(attempt),
			Surface:    false,
			Guidance:   "An unexpected error occurred; will attempt retry.",
			Cause:      err,
		}
	}
}

const unknownBackoffCap = 60 * time.Second

// unknownBackoff implements the spec's 5*2^n seconds, capped at 60s.
func unknownBackoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	wait := 5 * time.Second
	for i := 0; i < attempt; i++ {
		wait *= 2
		if wait >= unknownBackoffCap {
			return unknownBackoffCap
		}
	}
	return wait
}
