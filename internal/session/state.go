// Package session implements component C8: the per-operator SessionFSM
// that guards ingest, tracking exactly one conversational state per
// operator at a time (spec.md §4.8).
package session

import (
	"encoding/json"
	"fmt"
)

// State is a tagged union over every SessionFSM state. Tag identifies the
// concrete type for persistence (internal/store's sessionRow keeps the
// tag and JSON body as separate columns) and for the bbolt crash-recovery
// cache.
type State interface {
	Tag() string
}

// Idle is the state of an operator with no in-flight conversation.
type Idle struct{}

func (Idle) Tag() string { return "idle" }

// Mode1Uploading is bulk upload: accepts media, appends each to the queue.
type Mode1Uploading struct {
	Channel int64 `json:"channel"`
}

func (Mode1Uploading) Tag() string { return "mode1_uploading" }

// Mode2Uploading is individual upload: each media item is saved with its
// caption in the same message (instant persist, no follow-up prompt).
type Mode2Uploading struct {
	Channel int64 `json:"channel"`
}

func (Mode2Uploading) Tag() string { return "mode2_uploading" }

// RecurringAwaitingMedia is the first step of creating a recurring post.
type RecurringAwaitingMedia struct {
	Channel int64 `json:"channel"`
}

func (RecurringAwaitingMedia) Tag() string { return "recurring_awaiting_media" }

// RecurringAwaitingDescription follows media upload in the recurring flow.
type RecurringAwaitingDescription struct {
	Channel int64  `json:"channel"`
	File    string `json:"file"`
}

func (RecurringAwaitingDescription) Tag() string { return "recurring_awaiting_description" }

// RecurringAwaitingSchedule follows caption entry in the recurring flow;
// the post row already exists (pending, unscheduled) by this point.
type RecurringAwaitingSchedule struct {
	PostID int64 `json:"post_id"`
}

func (RecurringAwaitingSchedule) Tag() string { return "recurring_awaiting_schedule" }

// AwaitingScheduleInput expects a schedule-window or interval string
// (spec.md §4.2.5's ParseScheduleInput grammar).
type AwaitingScheduleInput struct{}

func (AwaitingScheduleInput) Tag() string { return "awaiting_schedule_input" }

// AwaitingDateInput expects a custom date/time string (§4.2.5's
// ParseDateInput). EditingPostID is non-zero when editing an existing
// post's schedule rather than setting one for the first time.
type AwaitingDateInput struct {
	EditingPostID int64 `json:"editing_post_id,omitempty"`
}

func (AwaitingDateInput) Tag() string { return "awaiting_date_input" }

// AwaitingDescriptionInput expects caption text for an existing post.
type AwaitingDescriptionInput struct {
	EditingPostID int64 `json:"editing_post_id"`
}

func (AwaitingDescriptionInput) Tag() string { return "awaiting_description_input" }

// AwaitingChannelId expects the external channel identifier to register.
type AwaitingChannelId struct{}

func (AwaitingChannelId) Tag() string { return "awaiting_channel_id" }

// AwaitingChannelName expects a display name for the channel id already
// supplied in the prior step.
type AwaitingChannelName struct {
	PendingChannelID int64 `json:"pending_channel_id"`
}

func (AwaitingChannelName) Tag() string { return "awaiting_channel_name" }

// AwaitingBatchName expects a name for a new multi-post batch.
type AwaitingBatchName struct {
	Channel int64 `json:"channel"`
}

func (AwaitingBatchName) Tag() string { return "awaiting_batch_name" }

// BatchMode1Uploading is bulk upload scoped to an existing batch.
type BatchMode1Uploading struct {
	Batch int64 `json:"batch"`
}

func (BatchMode1Uploading) Tag() string { return "batch_mode1_uploading" }

// BatchMode2Uploading is individual upload scoped to an existing batch.
type BatchMode2Uploading struct {
	Batch int64 `json:"batch"`
}

func (BatchMode2Uploading) Tag() string { return "batch_mode2_uploading" }

// AwaitingBulkEditInput expects a bulk-edit directive applying to every id
// in PostIDs (spec.md §4.2.5's ParseBulkEditInput). ScopeLabel is the
// human-readable description of that scope shown back to the operator.
type AwaitingBulkEditInput struct {
	PostIDs    []int64 `json:"post_ids"`
	ScopeLabel string  `json:"scope_label"`
}

func (AwaitingBulkEditInput) Tag() string { return "awaiting_bulk_edit_input" }

// AwaitingRescheduleSettings expects a new SchedulingConfig window.
type AwaitingRescheduleSettings struct{}

func (AwaitingRescheduleSettings) Tag() string { return "awaiting_reschedule_settings" }

// AwaitingBackupName expects a name for a new backup snapshot.
type AwaitingBackupName struct{}

func (AwaitingBackupName) Tag() string { return "awaiting_backup_name" }

// AwaitingCaptionInput expects caption text for the NextIndex'th item of
// an in-progress album being built one message at a time.
type AwaitingCaptionInput struct {
	PostID    int64 `json:"post_id"`
	NextIndex int   `json:"next_index"`
	Channel   int64 `json:"channel"`
}

func (AwaitingCaptionInput) Tag() string { return "awaiting_caption_input" }

// factories maps each Tag to a constructor for its zero value, so Decode
// can unmarshal into the right concrete type without a big type switch
// duplicated at every call site.
var factories = map[string]func() State{
	Idle{}.Tag():                         func() State { return &Idle{} },
	Mode1Uploading{}.Tag():                func() State { return &Mode1Uploading{} },
	Mode2Uploading{}.Tag():                func() State { return &Mode2Uploading{} },
	RecurringAwaitingMedia{}.Tag():        func() State { return &RecurringAwaitingMedia{} },
	RecurringAwaitingDescription{}.Tag():  func() State { return &RecurringAwaitingDescription{} },
	RecurringAwaitingSchedule{}.Tag():     func() State { return &RecurringAwaitingSchedule{} },
	AwaitingScheduleInput{}.Tag():         func() State { return &AwaitingScheduleInput{} },
	AwaitingDateInput{}.Tag():             func() State { return &AwaitingDateInput{} },
	AwaitingDescriptionInput{}.Tag():      func() State { return &AwaitingDescriptionInput{} },
	AwaitingChannelId{}.Tag():             func() State { return &AwaitingChannelId{} },
	AwaitingChannelName{}.Tag():           func() State { return &AwaitingChannelName{} },
	AwaitingBatchName{}.Tag():             func() State { return &AwaitingBatchName{} },
	BatchMode1Uploading{}.Tag():           func() State { return &BatchMode1Uploading{} },
	BatchMode2Uploading{}.Tag():           func() State { return &BatchMode2Uploading{} },
	AwaitingBulkEditInput{}.Tag():         func() State { return &AwaitingBulkEditInput{} },
	AwaitingRescheduleSettings{}.Tag():    func() State { return &AwaitingRescheduleSettings{} },
	AwaitingBackupName{}.Tag():            func() State { return &AwaitingBackupName{} },
	AwaitingCaptionInput{}.Tag():          func() State { return &AwaitingCaptionInput{} },
}

// Encode renders a State to its persisted (tag, JSON body) form.
func Encode(s State) (tag string, body []byte, err error) {
	body, err = json.Marshal(s)
	if err != nil {
		return "", nil, fmt.Errorf("session: encode %s: %w", s.Tag(), err)
	}
	return s.Tag(), body, nil
}

// Decode reconstructs a State from its tag and JSON body. An unrecognized
// tag means a newer process wrote a state this build doesn't know about.
func Decode(tag string, body []byte) (State, error) {
	newState, ok := factories[tag]
	if !ok {
		return nil, fmt.Errorf("session: unknown state tag %q", tag)
	}
	s := newState()
	if len(body) == 0 {
		return derefState(s), nil
	}
	if err := json.Unmarshal(body, s); err != nil {
		return nil, fmt.Errorf("session: decode %s: %w", tag, err)
	}
	return derefState(s), nil
}

// derefState returns the pointed-to value so callers get the same State
// shape (value, not pointer) whether freshly constructed or decoded.
func derefState(s State) State {
	switch v := s.(type) {
	case *Idle:
		return *v
	case *Mode1Uploading:
		return *v
	case *Mode2Uploading:
		return *v
	case *RecurringAwaitingMedia:
		return *v
	case *RecurringAwaitingDescription:
		return *v
	case *RecurringAwaitingSchedule:
		return *v
	case *AwaitingScheduleInput:
		return *v
	case *AwaitingDateInput:
		return *v
	case *AwaitingDescriptionInput:
		return *v
	case *AwaitingChannelId:
		return *v
	case *AwaitingChannelName:
		return *v
	case *AwaitingBatchName:
		return *v
	case *BatchMode1Uploading:
		return *v
	case *BatchMode2Uploading:
		return *v
	case *AwaitingBulkEditInput:
		return *v
	case *AwaitingRescheduleSettings:
		return *v
	case *AwaitingBackupName:
		return *v
	case *AwaitingCaptionInput:
		return *v
	default:
		return s
	}
}
