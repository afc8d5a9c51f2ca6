package store

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/castline/scheduler/internal/model"
	"github.com/castline/scheduler/internal/schedulecalc"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostgresStore implements Store on top of GORM + the pgx driver, following
// the connection/migration shape of db.PGInfo/db.PGMigrations: one *gorm.DB,
// pool limits applied to the underlying sql.DB, AutoMigrate run once at
// startup.
type PostgresStore struct {
	db  *gorm.DB
	log zerolog.Logger
}

// Open connects to Postgres at dsn, configures the connection pool, and
// migrates every model in allModels(). poolSize mirrors
// config.PublisherConfig's spirit but applies to the Store's own pool.
func Open(dsn string, poolSize int, log zerolog.Logger) (*PostgresStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("store: connect postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("store: acquire sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(poolSize)
	sqlDB.SetMaxIdleConns(poolSize / 2)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := migrate(db); err != nil {
		return nil, fmt.Errorf("store: migrate: %w", err)
	}

	return &PostgresStore{db: db, log: log}, nil
}

func (s *PostgresStore) AddPost(ctx context.Context, np NewPost) (int64, error) {
	if len(np.Caption) > model.CaptionMaxLen {
		return 0, fmt.Errorf("store: caption exceeds %d characters", model.CaptionMaxLen)
	}
	if np.Kind == model.MediaAlbum && (len(np.Album) < 1 || len(np.Album) > model.AlbumMaxItems) {
		return 0, fmt.Errorf("store: album must have between 1 and %d items", model.AlbumMaxItems)
	}

	ok, err := s.UserHasChannel(ctx, np.UserID, np.ChannelID)
	if err != nil {
		return 0, fmt.Errorf("store: check channel ownership: %w", err)
	}
	if !ok {
		return 0, ErrChannelNotOwned
	}

	p := &model.Post{
		UserID:    np.UserID,
		ChannelID: np.ChannelID,
		FileRef:   np.FileRef,
		Kind:      np.Kind,
		Album:     np.Album,
		Caption:   np.Caption,
		Mode:      np.Mode,
		Status:    model.StatusPending,
		BatchID:   np.BatchID,
	}

	row, err := fromDomainPost(p)
	if err != nil {
		return 0, fmt.Errorf("store: encode post: %w", err)
	}

	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return 0, fmt.Errorf("store: insert post: %w", err)
	}
	return row.ID, nil
}

func (s *PostgresStore) UpdatePostSchedule(ctx context.Context, id int64, t time.Time) error {
	res := s.db.WithContext(ctx).Model(&postRow{}).
		Where("id = ? AND status = ?", id, string(model.StatusPending)).
		Updates(map[string]interface{}{"scheduled_time": t})
	return res.Error
}

func (s *PostgresStore) MarkPosted(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).Model(&postRow{}).
		Where("id = ?", id).
		Update("status", string(model.StatusPosted)).Error
}

func (s *PostgresStore) MarkFailed(ctx context.Context, id int64, reason string) error {
	return s.db.WithContext(ctx).Model(&postRow{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":         string(model.StatusFailed),
			"failure_reason": reason,
		}).Error
}

func (s *PostgresStore) IncrementRetry(ctx context.Context, id int64) (int, error) {
	var row postRow
	tx := s.db.WithContext(ctx).Begin()
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&row).Error; err != nil {
		tx.Rollback()
		return 0, translateNotFound(err)
	}
	row.RetryCount++
	if err := tx.Model(&postRow{}).Where("id = ?", id).Update("retry_count", row.RetryCount).Error; err != nil {
		tx.Rollback()
		return 0, err
	}
	if err := tx.Commit().Error; err != nil {
		return 0, err
	}
	return row.RetryCount, nil
}

func (s *PostgresStore) GetPost(ctx context.Context, id int64) (*model.Post, error) {
	var row postRow
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return toDomainPost(row)
}

func (s *PostgresStore) ListPending(ctx context.Context, f ListFilter) ([]*model.Post, error) {
	q := s.db.WithContext(ctx).Model(&postRow{}).Where("status = ?", string(model.StatusPending))
	if f.UserID != 0 {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.ChannelID != 0 {
		q = q.Where("channel_id = ?", f.ChannelID)
	}
	if f.UnscheduledOnly {
		q = q.Where("scheduled_time IS NULL")
	}
	// scheduled_time NULLS LAST then id, per spec.md's documented ordering.
	q = q.Order("scheduled_time IS NULL, scheduled_time ASC, id ASC")

	var rows []postRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return toDomainPosts(rows)
}

func (s *PostgresStore) ListUnscheduled(ctx context.Context, userID int64, channelID int64) ([]*model.Post, error) {
	return s.ListPending(ctx, ListFilter{UserID: userID, ChannelID: channelID, UnscheduledOnly: true})
}

func (s *PostgresStore) ListScheduledByChannel(ctx context.Context, userID int64) (map[int64][]*model.Post, error) {
	var rows []postRow
	err := s.db.WithContext(ctx).Where("user_id = ? AND status = ? AND scheduled_time IS NOT NULL",
		userID, string(model.StatusPending)).
		Order("scheduled_time ASC").Find(&rows).Error
	if err != nil {
		return nil, err
	}

	grouped := make(map[int64][]*model.Post)
	for _, r := range rows {
		p, err := toDomainPost(r)
		if err != nil {
			return nil, err
		}
		grouped[p.ChannelID] = append(grouped[p.ChannelID], p)
	}
	return grouped, nil
}

func (s *PostgresStore) ListFailed(ctx context.Context, userID int64, channelID int64) ([]*model.Post, error) {
	q := s.db.WithContext(ctx).Where("user_id = ? AND status = ?", userID, string(model.StatusFailed))
	if channelID != 0 {
		q = q.Where("channel_id = ?", channelID)
	}
	var rows []postRow
	if err := q.Order("updated_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return toDomainPosts(rows)
}

func (s *PostgresStore) ListOverdue(ctx context.Context, userID int64, now time.Time) ([]*model.Post, error) {
	q := s.db.WithContext(ctx).Where("status = ? AND scheduled_time IS NOT NULL AND scheduled_time < ?",
		string(model.StatusPending), now)
	if userID != 0 {
		q = q.Where("user_id = ?", userID)
	}
	var rows []postRow
	if err := q.Order("scheduled_time ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return toDomainPosts(rows)
}

func (s *PostgresStore) LatestScheduledTime(ctx context.Context, userID int64) (*time.Time, error) {
	var row postRow
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND scheduled_time IS NOT NULL AND status IN ?", userID,
			[]string{string(model.StatusPending), string(model.StatusPosted)}).
		Order("scheduled_time DESC").First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return row.ScheduledTime, nil
}

func (s *PostgresStore) ClearQueued(ctx context.Context, userID int64, channelID int64) ([]*model.Post, error) {
	return s.deleteMatching(ctx, userID, channelID, func(q *gorm.DB) *gorm.DB {
		return q.Where("scheduled_time IS NULL")
	})
}

func (s *PostgresStore) ClearScheduled(ctx context.Context, userID int64, channelID int64) ([]*model.Post, error) {
	return s.deleteMatching(ctx, userID, channelID, func(q *gorm.DB) *gorm.DB {
		return q.Where("scheduled_time IS NOT NULL AND status = ?", string(model.StatusPending))
	})
}

func (s *PostgresStore) deleteMatching(ctx context.Context, userID, channelID int64, narrow func(*gorm.DB) *gorm.DB) ([]*model.Post, error) {
	q := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if channelID != 0 {
		q = q.Where("channel_id = ?", channelID)
	}
	q = narrow(q)

	var rows []postRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	ids := make([]int64, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Delete(&postRow{}).Error; err != nil {
		return nil, err
	}
	return toDomainPosts(rows)
}

func (s *PostgresStore) BulkUpdateSchedules(ctx context.Context, entries []ScheduleEntry) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, e := range entries {
			if err := tx.Model(&postRow{}).Where("id = ?", e.PostID).
				Update("scheduled_time", e.Time).Error; err != nil {
				return fmt.Errorf("store: bulk update post %d: %w", e.PostID, err)
			}
		}
		return nil
	})
}

func (s *PostgresStore) AdvanceRecurrence(ctx context.Context, id int64, postedCount int, next *time.Time) error {
	updates := map[string]interface{}{"recurrence_posted_count": postedCount}
	if next == nil {
		updates["status"] = string(model.StatusPosted)
	} else {
		updates["scheduled_time"] = *next
	}
	return s.db.WithContext(ctx).Model(&postRow{}).Where("id = ?", id).Updates(updates).Error
}

func (s *PostgresStore) RetryFailedPost(ctx context.Context, id int64) error {
	res := s.db.WithContext(ctx).Model(&postRow{}).
		Where("id = ? AND status = ?", id, string(model.StatusFailed)).
		Updates(map[string]interface{}{
			"status":         string(model.StatusPending),
			"scheduled_time": nil,
			"retry_count":    0,
			"failure_reason": "",
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotTerminal
	}
	return nil
}

func (s *PostgresStore) RescheduleFromToday(ctx context.Context, userID int64, cfg model.SchedulingConfig, channelID int64, now time.Time) (int, error) {
	q := s.db.WithContext(ctx).Where("user_id = ? AND status = ?", userID, string(model.StatusPending))
	if channelID != 0 {
		q = q.Where("channel_id = ?", channelID)
	}
	var rows []postRow
	if err := q.Order("id ASC").Find(&rows).Error; err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })

	anchor := schedulecalc.StartOfTomorrow(now)
	times := schedulecalc.FixedInterval(cfg.StartHour, cfg.EndHour, cfg.IntervalHour, len(rows), anchor)

	entries := make([]ScheduleEntry, len(rows))
	for i, r := range rows {
		entries[i] = ScheduleEntry{PostID: r.ID, Time: times[i]}
	}
	if err := s.BulkUpdateSchedules(ctx, entries); err != nil {
		return 0, err
	}
	return len(entries), nil
}

func (s *PostgresStore) UserHasChannel(ctx context.Context, userID, channelID int64) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&channelRow{}).
		Where("user_id = ? AND channel_id = ?", userID, channelID).Count(&count).Error
	return count > 0, err
}

func (s *PostgresStore) AddChannel(ctx context.Context, userID, channelID int64, displayName string) error {
	return s.db.WithContext(ctx).Create(&channelRow{
		UserID: userID, ChannelID: channelID, DisplayName: displayName, CreatedAt: time.Now(),
	}).Error
}

func (s *PostgresStore) ListChannels(ctx context.Context, userID int64) ([]model.Channel, error) {
	var rows []channelRow
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]model.Channel, len(rows))
	for i, r := range rows {
		out[i] = model.Channel{UserID: r.UserID, ChannelID: r.ChannelID, DisplayName: r.DisplayName, CreatedAt: r.CreatedAt}
	}
	return out, nil
}

func (s *PostgresStore) CreateBatch(ctx context.Context, userID, channelID int64, name string) (int64, error) {
	row := batchRow{UserID: userID, ChannelID: channelID, Name: name, Status: string(model.BatchPending), CreatedAt: time.Now()}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return 0, err
	}
	return row.ID, nil
}

func (s *PostgresStore) SetBatchStatus(ctx context.Context, id int64, status model.BatchStatus) error {
	return s.db.WithContext(ctx).Model(&batchRow{}).Where("id = ?", id).Update("status", string(status)).Error
}

func (s *PostgresStore) SaveBackup(ctx context.Context, userID int64, name string, payload []byte) (int64, error) {
	row := backupRow{UserID: userID, Name: name, Payload: payload, CreatedAt: time.Now()}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return 0, err
	}
	return row.ID, nil
}

func (s *PostgresStore) ListBackups(ctx context.Context, userID int64) ([]model.Backup, error) {
	var rows []backupRow
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]model.Backup, len(rows))
	for i, r := range rows {
		out[i] = model.Backup{ID: r.ID, UserID: r.UserID, Name: r.Name, CreatedAt: r.CreatedAt, Payload: r.Payload}
	}
	return out, nil
}

func (s *PostgresStore) GetBackup(ctx context.Context, id int64) (*model.Backup, error) {
	var row backupRow
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &model.Backup{ID: row.ID, UserID: row.UserID, Name: row.Name, CreatedAt: row.CreatedAt, Payload: row.Payload}, nil
}

func (s *PostgresStore) GetSchedulingConfig(ctx context.Context, userID int64) (model.SchedulingConfig, error) {
	var row schedulingConfigRow
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return model.DefaultSchedulingConfig(userID), nil
	}
	if err != nil {
		return model.SchedulingConfig{}, err
	}
	return model.SchedulingConfig{UserID: row.UserID, StartHour: row.StartHour, EndHour: row.EndHour, IntervalHour: row.IntervalHour}, nil
}

func (s *PostgresStore) SetSchedulingConfig(ctx context.Context, cfg model.SchedulingConfig) error {
	row := schedulingConfigRow{UserID: cfg.UserID, StartHour: cfg.StartHour, EndHour: cfg.EndHour, IntervalHour: cfg.IntervalHour}
	return s.db.WithContext(ctx).Save(&row).Error
}

func (s *PostgresStore) GetReminderSettings(ctx context.Context, userID int64) (model.ReminderSettings, error) {
	var row reminderSettingsRow
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return model.ReminderSettings{UserID: userID, Enabled: true, Threshold: 3}, nil
	}
	if err != nil {
		return model.ReminderSettings{}, err
	}
	return model.ReminderSettings{UserID: row.UserID, Enabled: row.Enabled, Threshold: row.Threshold, LastSent: row.LastSent}, nil
}

func (s *PostgresStore) SetReminderSettings(ctx context.Context, rs model.ReminderSettings) error {
	row := reminderSettingsRow{UserID: rs.UserID, Enabled: rs.Enabled, Threshold: rs.Threshold, LastSent: rs.LastSent}
	return s.db.WithContext(ctx).Save(&row).Error
}

func (s *PostgresStore) ListReminderEnabledUsers(ctx context.Context) ([]model.ReminderSettings, error) {
	var rows []reminderSettingsRow
	if err := s.db.WithContext(ctx).Where("enabled = ?", true).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]model.ReminderSettings, len(rows))
	for i, r := range rows {
		out[i] = model.ReminderSettings{UserID: r.UserID, Enabled: r.Enabled, Threshold: r.Threshold, LastSent: r.LastSent}
	}
	return out, nil
}

func (s *PostgresStore) CountUnscheduled(ctx context.Context, userID int64) (int, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&postRow{}).
		Where("user_id = ? AND status = ? AND scheduled_time IS NULL", userID, string(model.StatusPending)).
		Count(&count).Error
	return int(count), err
}

func (s *PostgresStore) GetSession(ctx context.Context, userID int64) (string, []byte, bool, error) {
	var row sessionRow
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return "", nil, false, nil
	}
	if err != nil {
		return "", nil, false, err
	}
	return row.StateTag, row.StateJSON, true, nil
}

func (s *PostgresStore) SetSession(ctx context.Context, userID int64, tag string, stateJSON []byte) error {
	row := sessionRow{UserID: userID, StateTag: tag, StateJSON: stateJSON, UpdatedAt: time.Now()}
	return s.db.WithContext(ctx).Save(&row).Error
}

func (s *PostgresStore) DeleteSession(ctx context.Context, userID int64) error {
	return s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&sessionRow{}).Error
}

func (s *PostgresStore) PurgeExpired(ctx context.Context, now time.Time) ([]string, error) {
	var rows []postRow
	err := s.db.WithContext(ctx).
		Where("status = ? AND cleanup_date IS NOT NULL AND cleanup_date < ?", string(model.StatusPosted), now).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	ids := make([]int64, len(rows))
	refs := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
		refs[i] = r.FileRef
	}
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Delete(&postRow{}).Error; err != nil {
		return nil, err
	}
	return refs, nil
}

func toDomainPosts(rows []postRow) ([]*model.Post, error) {
	out := make([]*model.Post, len(rows))
	for i, r := range rows {
		p, err := toDomainPost(r)
		if err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}

func translateNotFound(err error) error {
	if err == gorm.ErrRecordNotFound {
		return ErrNotFound
	}
	return err
}
