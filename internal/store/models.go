package store

import (
	"time"

	"github.com/castline/scheduler/internal/model"
	"gorm.io/gorm"
)

// postRow is the GORM-persisted form of model.Post. Album items are stored
// as a JSON column and recurrence as flat columns on the post row rather
// than child tables: they are always read/written as a unit with the
// owning post, so normalizing them
// out would only add joins with no benefit, mirroring how db.RabbitLog
// keeps its payload as a single encoded column rather than a relation.
type postRow struct {
	ID        int64 `gorm:"primaryKey"`
	UserID    int64 `gorm:"index:idx_post_user_channel"`
	ChannelID int64 `gorm:"index:idx_post_user_channel"`

	FileRef string
	Kind    string
	Album   []byte `gorm:"type:jsonb"` // json-encoded []model.AlbumItem, empty unless Kind == album

	Caption string
	Mode    string

	ScheduledTime *time.Time `gorm:"index"`
	Status        string     `gorm:"index"`

	RetryCount    int
	FailureReason string

	RecurrenceIntervalHours int
	RecurrenceEndTimestamp  *time.Time
	RecurrenceMaxCount      *int
	RecurrencePostedCount   int
	HasRecurrence           bool

	BatchID     *int64
	CleanupDate *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (postRow) TableName() string { return "posts" }

type channelRow struct {
	UserID      int64 `gorm:"primaryKey"`
	ChannelID   int64 `gorm:"primaryKey"`
	DisplayName string
	CreatedAt   time.Time
}

func (channelRow) TableName() string { return "channels" }

type batchRow struct {
	ID        int64 `gorm:"primaryKey"`
	UserID    int64 `gorm:"index"`
	Name      string
	ChannelID int64
	Status    string
	CreatedAt time.Time
}

func (batchRow) TableName() string { return "batches" }

type backupRow struct {
	ID        int64 `gorm:"primaryKey"`
	UserID    int64 `gorm:"index"`
	Name      string
	CreatedAt time.Time
	Payload   []byte `gorm:"type:bytea"`
}

func (backupRow) TableName() string { return "backups" }

type schedulingConfigRow struct {
	UserID       int64 `gorm:"primaryKey"`
	StartHour    int
	EndHour      int
	IntervalHour int
}

func (schedulingConfigRow) TableName() string { return "scheduling_configs" }

type reminderSettingsRow struct {
	UserID    int64 `gorm:"primaryKey"`
	Enabled   bool
	Threshold int
	LastSent  *time.Time
}

func (reminderSettingsRow) TableName() string { return "reminder_settings" }

// sessionRow persists a SessionFSM snapshot as opaque JSON; internal/session
// owns the shape of State.
type sessionRow struct {
	UserID    int64 `gorm:"primaryKey"`
	StateTag  string
	StateJSON []byte `gorm:"type:jsonb"`
	UpdatedAt time.Time
}

func (sessionRow) TableName() string { return "sessions" }

// allModels lists every GORM model migrated by Migrate, mirroring the
// single-call AutoMigrate style of db.PGMigrations.
func allModels() []interface{} {
	return []interface{}{
		&postRow{},
		&channelRow{},
		&batchRow{},
		&backupRow{},
		&schedulingConfigRow{},
		&reminderSettingsRow{},
		&sessionRow{},
	}
}

func migrate(db *gorm.DB) error {
	return db.AutoMigrate(allModels()...)
}

func toDomainPost(r postRow) (*model.Post, error) {
	p := &model.Post{
		ID:            r.ID,
		UserID:        r.UserID,
		ChannelID:     r.ChannelID,
		FileRef:       r.FileRef,
		Kind:          model.MediaKind(r.Kind),
		Caption:       r.Caption,
		Mode:          model.Mode(r.Mode),
		ScheduledTime: r.ScheduledTime,
		Status:        model.Status(r.Status),
		RetryCount:    r.RetryCount,
		FailureReason: r.FailureReason,
		BatchID:       r.BatchID,
		CleanupDate:   r.CleanupDate,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}

	if len(r.Album) > 0 {
		items, err := decodeAlbum(r.Album)
		if err != nil {
			return nil, err
		}
		p.Album = items
	}

	if r.HasRecurrence {
		p.Recurrence = &model.Recurrence{
			IntervalHours: r.RecurrenceIntervalHours,
			EndTimestamp:  r.RecurrenceEndTimestamp,
			MaxCount:      r.RecurrenceMaxCount,
			PostedCount:   r.RecurrencePostedCount,
		}
	}

	return p, nil
}

func fromDomainPost(p *model.Post) (postRow, error) {
	r := postRow{
		ID:            p.ID,
		UserID:        p.UserID,
		ChannelID:     p.ChannelID,
		FileRef:       p.FileRef,
		Kind:          string(p.Kind),
		Caption:       p.Caption,
		Mode:          string(p.Mode),
		ScheduledTime: p.ScheduledTime,
		Status:        string(p.Status),
		RetryCount:    p.RetryCount,
		FailureReason: p.FailureReason,
		BatchID:       p.BatchID,
		CleanupDate:   p.CleanupDate,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}

	if len(p.Album) > 0 {
		encoded, err := encodeAlbum(p.Album)
		if err != nil {
			return postRow{}, err
		}
		r.Album = encoded
	}

	if p.Recurrence != nil {
		r.HasRecurrence = true
		r.RecurrenceIntervalHours = p.Recurrence.IntervalHours
		r.RecurrenceEndTimestamp = p.Recurrence.EndTimestamp
		r.RecurrenceMaxCount = p.Recurrence.MaxCount
		r.RecurrencePostedCount = p.Recurrence.PostedCount
	}

	return r, nil
}
