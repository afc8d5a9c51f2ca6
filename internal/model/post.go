// Package model defines the durable data types of the scheduling subsystem:
// posts, channels, batches, backups, sessions and per-operator configuration.
// Types here are storage-agnostic; internal/store is responsible for
// persisting them.
package model

import "time"

// MediaKind enumerates the artifact types a Post can carry.
type MediaKind string

const (
	MediaPhoto          MediaKind = "photo"
	MediaVideo          MediaKind = "video"
	MediaAudio          MediaKind = "audio"
	MediaAnimation      MediaKind = "animation"
	MediaDocument       MediaKind = "document"
	MediaDocumentImage  MediaKind = "document_image"
	MediaDocumentVideo  MediaKind = "document_video"
	MediaAlbum          MediaKind = "album"
)

// Mode groups posts for reporting only; it never affects dispatch semantics.
type Mode string

const (
	ModeBulk         Mode = "bulk"
	ModeIndividual   Mode = "individual"
	ModeRecurring    Mode = "recurring"
	ModeBatchMember  Mode = "batch-member"
)

// Status is a Post's lifecycle state. Posted and Failed are terminal.
type Status string

const (
	StatusPending Status = "pending"
	StatusPosted  Status = "posted"
	StatusFailed  Status = "failed"
)

// CaptionMaxLen and AlbumMaxItems enforce invariants I5 from the spec.
const (
	CaptionMaxLen  = 1024
	AlbumMaxItems  = 10
)

// AlbumItem is one child media artifact of an album post (I5: 1-10 items).
type AlbumItem struct {
	FileRef string    `json:"file_path"`
	Kind    MediaKind `json:"media_type"`
}

// Recurrence describes a self-perpetuating post series (spec.md §4.6).
// A nil Recurrence means the post fires once.
type Recurrence struct {
	IntervalHours int        `json:"interval_hours"`
	EndTimestamp  *time.Time `json:"end_timestamp,omitempty"`
	MaxCount      *int       `json:"max_count,omitempty"`
	PostedCount   int        `json:"posted_count"`
}

// Done reports whether the recurrence has reached a termination condition,
// evaluated against "now" per spec.md invariant I4.
func (r *Recurrence) Done(now time.Time) bool {
	if r == nil {
		return true
	}
	if r.MaxCount != nil && r.PostedCount >= *r.MaxCount {
		return true
	}
	if r.EndTimestamp != nil && !now.Before(*r.EndTimestamp) {
		return true
	}
	return false
}

// Post is the unit of scheduling (spec.md §3).
type Post struct {
	ID        int64
	UserID    int64
	ChannelID int64

	FileRef string
	Kind    MediaKind
	Album   []AlbumItem // non-empty only when Kind == MediaAlbum

	Caption string
	Mode    Mode

	ScheduledTime *time.Time
	Status        Status

	RetryCount    int
	FailureReason string

	Recurrence *Recurrence

	BatchID *int64

	CleanupDate *time.Time // set on some terminal posts; nil means never purge

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Unscheduled reports whether the post is queued (no scheduled_time yet).
func (p *Post) Unscheduled() bool {
	return p.ScheduledTime == nil
}

// Terminal reports whether the post has reached a terminal status.
func (p *Post) Terminal() bool {
	return p.Status == StatusPosted || p.Status == StatusFailed
}

// Channel is a broadcast destination owned by an operator (user_id, channel_id unique).
type Channel struct {
	UserID      int64
	ChannelID   int64
	DisplayName string
	CreatedAt   time.Time
}

// BatchStatus mirrors the two states a Batch can be in.
type BatchStatus string

const (
	BatchPending   BatchStatus = "pending"
	BatchScheduled BatchStatus = "scheduled"
)

// Batch groups posts for a multi-channel campaign; all its posts share its channel.
type Batch struct {
	ID        int64
	UserID    int64
	Name      string
	ChannelID int64
	Status    BatchStatus
	CreatedAt time.Time
}

// Backup is a named, restorable snapshot of a user's scheduled posts.
type Backup struct {
	ID        int64
	UserID    int64
	Name      string
	CreatedAt time.Time
	Payload   []byte // YAML-encoded snapshot, see internal/store
}

// SchedulingConfig holds an operator's default scheduling window.
type SchedulingConfig struct {
	UserID       int64
	StartHour    int
	EndHour      int
	IntervalHour int
}

// DefaultSchedulingConfig returns the spec's documented defaults (10, 20, 2).
func DefaultSchedulingConfig(userID int64) SchedulingConfig {
	return SchedulingConfig{UserID: userID, StartHour: 10, EndHour: 20, IntervalHour: 2}
}

// ReminderSettings controls the per-operator low-queue reminder sweep.
type ReminderSettings struct {
	UserID    int64
	Enabled   bool
	Threshold int
	LastSent  *time.Time
}
