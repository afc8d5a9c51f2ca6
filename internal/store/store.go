// Package store implements component C2: authoritative, crash-safe
// persistence over posts, channels, batches, backups, scheduling
// configuration, reminder settings, and session snapshots, with
// single-writer-per-row transactional semantics (spec.md §4.1).
package store

import (
	"context"
	"errors"
	"time"

	"github.com/castline/scheduler/internal/model"
)

// ErrNotFound is returned when a lookup by id finds no row.
var ErrNotFound = errors.New("store: not found")

// ErrChannelNotOwned is returned by writes that associate a post with a
// channel the user does not own (invariant I6).
var ErrChannelNotOwned = errors.New("store: channel not owned by user")

// ErrNotTerminal is returned by operations that require a post to already
// be in a terminal state (e.g. retrying a post that hasn't failed).
var ErrNotTerminal = errors.New("store: post is not in a terminal state")

// NewPost is the validated input to AddPost.
type NewPost struct {
	UserID    int64
	ChannelID int64
	FileRef   string
	Kind      model.MediaKind
	Album     []model.AlbumItem
	Caption   string
	Mode      model.Mode
	BatchID   *int64
}

// ScheduleEntry pairs a post id with a schedule time for BulkUpdateSchedules.
type ScheduleEntry struct {
	PostID int64
	Time   time.Time
}

// ListFilter narrows the listing operations by user/channel. Zero values
// mean "no filter" except where noted.
type ListFilter struct {
	UserID          int64
	ChannelID       int64 // 0 means any channel
	UnscheduledOnly bool
}

// Store is the durable persistence contract of component C2. Every method
// is transactional per call; Postgres is the only production
// implementation (see postgres.go).
type Store interface {
	AddPost(ctx context.Context, np NewPost) (int64, error)
	UpdatePostSchedule(ctx context.Context, id int64, t time.Time) error
	MarkPosted(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, reason string) error
	IncrementRetry(ctx context.Context, id int64) (int, error)
	GetPost(ctx context.Context, id int64) (*model.Post, error)

	ListPending(ctx context.Context, f ListFilter) ([]*model.Post, error)
	ListUnscheduled(ctx context.Context, userID int64, channelID int64) ([]*model.Post, error)
	ListScheduledByChannel(ctx context.Context, userID int64) (map[int64][]*model.Post, error)
	ListFailed(ctx context.Context, userID int64, channelID int64) ([]*model.Post, error)
	ListOverdue(ctx context.Context, userID int64, now time.Time) ([]*model.Post, error)

	LatestScheduledTime(ctx context.Context, userID int64) (*time.Time, error)

	ClearQueued(ctx context.Context, userID int64, channelID int64) ([]*model.Post, error)
	ClearScheduled(ctx context.Context, userID int64, channelID int64) ([]*model.Post, error)

	BulkUpdateSchedules(ctx context.Context, entries []ScheduleEntry) error
	// AdvanceRecurrence persists the recurrence tail of a successful
	// publish (spec.md §4.6): postedCount is always written; a nil next
	// terminates the series (status -> posted), otherwise scheduled_time
	// is set to *next and the post remains pending.
	AdvanceRecurrence(ctx context.Context, id int64, postedCount int, next *time.Time) error
	RetryFailedPost(ctx context.Context, id int64) error
	RescheduleFromToday(ctx context.Context, userID int64, cfg model.SchedulingConfig, channelID int64, now time.Time) (int, error)

	UserHasChannel(ctx context.Context, userID, channelID int64) (bool, error)
	AddChannel(ctx context.Context, userID, channelID int64, displayName string) error
	ListChannels(ctx context.Context, userID int64) ([]model.Channel, error)

	CreateBatch(ctx context.Context, userID, channelID int64, name string) (int64, error)
	SetBatchStatus(ctx context.Context, id int64, status model.BatchStatus) error

	SaveBackup(ctx context.Context, userID int64, name string, payload []byte) (int64, error)
	ListBackups(ctx context.Context, userID int64) ([]model.Backup, error)
	GetBackup(ctx context.Context, id int64) (*model.Backup, error)

	GetSchedulingConfig(ctx context.Context, userID int64) (model.SchedulingConfig, error)
	SetSchedulingConfig(ctx context.Context, cfg model.SchedulingConfig) error

	GetReminderSettings(ctx context.Context, userID int64) (model.ReminderSettings, error)
	SetReminderSettings(ctx context.Context, s model.ReminderSettings) error
	// ListReminderEnabledUsers returns every operator's reminder settings
	// for those with reminders enabled, for the Monitor reminder sweep.
	ListReminderEnabledUsers(ctx context.Context) ([]model.ReminderSettings, error)
	// CountUnscheduled returns how many of a user's posts are queued
	// (no scheduled_time), for the reminder sweep's threshold check.
	CountUnscheduled(ctx context.Context, userID int64) (int, error)

	// PurgeExpired deletes posted posts whose cleanup_date has passed,
	// returning the file refs of deleted posts so callers can sweep media.
	PurgeExpired(ctx context.Context, now time.Time) ([]string, error)

	// GetSession returns a per-operator SessionFSM snapshot. found is false
	// when no row exists yet (a brand new operator defaults to Idle).
	GetSession(ctx context.Context, userID int64) (tag string, stateJSON []byte, found bool, err error)
	// SetSession persists a SessionFSM snapshot, overwriting any prior one.
	SetSession(ctx context.Context, userID int64, tag string, stateJSON []byte) error
	// DeleteSession removes a userID's session row once it returns to Idle.
	DeleteSession(ctx context.Context, userID int64) error
}
