// Package recurrence implements the pure advance/termination logic of the
// recurrence engine (spec.md §4.6): given a post's Recurrence and the time
// its current occurrence just published, decide whether the series
// terminates or compute the next fire time. Dispatcher owns the
// side-effecting half (Store writes, timer registration); this package
// owns only the decision.
package recurrence

import (
	"time"

	"github.com/castline/scheduler/internal/model"
)

// Outcome is the result of advancing a recurring post past a successful
// publish, per spec.md invariant I4.
type Outcome struct {
	// Terminate is true when the series has reached a termination
	// condition and the post should transition to model.StatusPosted
	// with no further timer.
	Terminate bool
	// Next is the timestamp to register the next occurrence at, valid
	// only when Terminate is false.
	Next time.Time
	// PostedCount is the recurrence's updated posted_count, to persist
	// regardless of Terminate.
	PostedCount int
}

// Advance runs one step of spec.md §4.6 after a successful publish at
// now: increment posted_count, check the any-of termination conditions
// (max_count reached, end_timestamp passed), and otherwise compute the
// next occurrence at now + interval_hours.
func Advance(r *model.Recurrence, now time.Time) Outcome {
	posted := r.PostedCount + 1

	done := (&model.Recurrence{
		MaxCount:     r.MaxCount,
		EndTimestamp: r.EndTimestamp,
		PostedCount:  posted,
	}).Done(now)

	if done {
		return Outcome{Terminate: true, PostedCount: posted}
	}

	return Outcome{
		Terminate:   false,
		Next:        now.Add(time.Duration(r.IntervalHours) * time.Hour),
		PostedCount: posted,
	}
}
