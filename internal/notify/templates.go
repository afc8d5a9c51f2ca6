// Package notify renders the operator-facing notification text the
// Dispatcher and Monitor send through Publisher.NotifyOperator. Templates
// are centralized here rather than scattered as inline strings through
// Dispatcher/Monitor, per spec.md §9's redesign flag on ad-hoc error
// handling, and are grounded on the original implementation's
// _post_to_channel/_monitor_scheduled_posts notification copy
// (SPEC_FULL §C.4).
package notify

import (
	"fmt"

	"github.com/castline/scheduler/internal/classify"
)

// Success renders the text sent when a post publishes successfully.
// recurring adds the original's "(recurring)" suffix.
func Success(postID int64, recurring bool) string {
	if recurring {
		return fmt.Sprintf("Post #%d published successfully (recurring).", postID)
	}
	return fmt.Sprintf("Post #%d published successfully.", postID)
}

// Failure renders the text sent when a post terminally fails, including
// the taxonomy's remediation guidance.
func Failure(postID int64, e *classify.Error) string {
	return fmt.Sprintf("Post #%d failed to publish: %s\n%s", postID, e.Kind, e.Guidance)
}

// Delayed renders the "overdue, re-registered" notice Monitor sends once
// per recovered post (spec.md §4.7, end-to-end scenario 6).
func Delayed(postID int64) string {
	return fmt.Sprintf("⚠️ delayed: post #%d was overdue and has been rescheduled to publish shortly.", postID)
}

// AccessDenied renders the notice sent when a post's channel access was
// revoked between scheduling and fire time.
func AccessDenied(postID int64) string {
	return fmt.Sprintf("Post #%d could not be published: you no longer have access to its channel.", postID)
}

// MediaMissing renders the notice sent when a post's file is gone at fire time.
func MediaMissing(postID int64) string {
	return fmt.Sprintf("Post #%d could not be published: its media file is missing. Please re-upload and reschedule.", postID)
}

// Reminder renders the low-queue nudge Monitor's reminder sweep sends.
func Reminder(unscheduledCount int) string {
	return fmt.Sprintf("You have %d post(s) queued without a schedule. Use the scheduling menu to assign them a time.", unscheduledCount)
}
