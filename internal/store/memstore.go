package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/castline/scheduler/internal/model"
	"github.com/castline/scheduler/internal/schedulecalc"
)

// MemStore is an in-memory Store implementation used by the dispatcher,
// monitor and session test suites (and any component test that needs a
// full Store without a real Postgres instance), mirroring the
// fields-plus-tracked-state mock style of queue.MockAMQPChannel /
// storage.MockS3Client rather than a partial stub.
type MemStore struct {
	mu sync.Mutex

	nextPostID   int64
	nextBatchID  int64
	nextBackupID int64
	posts        map[int64]*model.Post
	channels     map[channelKey]model.Channel
	batches      map[int64]model.Batch
	backups      map[int64]model.Backup
	schedConfigs map[int64]model.SchedulingConfig
	reminders    map[int64]model.ReminderSettings
	sessions     map[int64]sessionSnapshot
}

type sessionSnapshot struct {
	tag  string
	data []byte
}

type channelKey struct {
	userID, channelID int64
}

// NewMemStore returns an empty in-memory Store.
func NewMemStore() *MemStore {
	return &MemStore{
		posts:        make(map[int64]*model.Post),
		channels:     make(map[channelKey]model.Channel),
		batches:      make(map[int64]model.Batch),
		backups:      make(map[int64]model.Backup),
		schedConfigs: make(map[int64]model.SchedulingConfig),
		reminders:    make(map[int64]model.ReminderSettings),
		sessions:     make(map[int64]sessionSnapshot),
	}
}

func clonePost(p *model.Post) *model.Post {
	cp := *p
	if p.ScheduledTime != nil {
		t := *p.ScheduledTime
		cp.ScheduledTime = &t
	}
	if p.CleanupDate != nil {
		t := *p.CleanupDate
		cp.CleanupDate = &t
	}
	if p.Recurrence != nil {
		r := *p.Recurrence
		cp.Recurrence = &r
	}
	if p.Album != nil {
		cp.Album = append([]model.AlbumItem(nil), p.Album...)
	}
	return &cp
}

// SeedChannel registers a channel directly, for test setup without going
// through AddChannel's timestamps.
func (m *MemStore) SeedChannel(userID, channelID int64, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels[channelKey{userID, channelID}] = model.Channel{UserID: userID, ChannelID: channelID, DisplayName: name}
}

// SeedPost inserts a post with an explicit id, for test fixtures that need
// to control ids directly.
func (m *MemStore) SeedPost(p *model.Post) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.posts[p.ID] = clonePost(p)
	if p.ID >= m.nextPostID {
		m.nextPostID = p.ID + 1
	}
}

func (m *MemStore) AddPost(ctx context.Context, np NewPost) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(np.Caption) > model.CaptionMaxLen {
		return 0, ErrValidation("caption too long")
	}
	if np.Kind == model.MediaAlbum && (len(np.Album) < 1 || len(np.Album) > model.AlbumMaxItems) {
		return 0, ErrValidation("invalid album size")
	}
	if _, ok := m.channels[channelKey{np.UserID, np.ChannelID}]; !ok {
		return 0, ErrChannelNotOwned
	}

	m.nextPostID++
	id := m.nextPostID
	m.posts[id] = &model.Post{
		ID: id, UserID: np.UserID, ChannelID: np.ChannelID,
		FileRef: np.FileRef, Kind: np.Kind, Album: np.Album,
		Caption: np.Caption, Mode: np.Mode, Status: model.StatusPending,
		BatchID: np.BatchID,
	}
	return id, nil
}

func (m *MemStore) UpdatePostSchedule(ctx context.Context, id int64, t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok || p.Status != model.StatusPending {
		return nil
	}
	p.ScheduledTime = &t
	return nil
}

func (m *MemStore) MarkPosted(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.posts[id]; ok {
		p.Status = model.StatusPosted
	}
	return nil
}

func (m *MemStore) MarkFailed(ctx context.Context, id int64, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.posts[id]; ok {
		p.Status = model.StatusFailed
		p.FailureReason = reason
	}
	return nil
}

func (m *MemStore) IncrementRetry(ctx context.Context, id int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return 0, ErrNotFound
	}
	p.RetryCount++
	return p.RetryCount, nil
}

func (m *MemStore) GetPost(ctx context.Context, id int64) (*model.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clonePost(p), nil
}

func (m *MemStore) ListPending(ctx context.Context, f ListFilter) ([]*model.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Post
	for _, p := range m.posts {
		if p.Status != model.StatusPending {
			continue
		}
		if f.UserID != 0 && p.UserID != f.UserID {
			continue
		}
		if f.ChannelID != 0 && p.ChannelID != f.ChannelID {
			continue
		}
		if f.UnscheduledOnly && p.ScheduledTime != nil {
			continue
		}
		out = append(out, clonePost(p))
	}
	sort.Slice(out, func(i, j int) bool {
		si, sj := out[i].ScheduledTime, out[j].ScheduledTime
		if si == nil && sj == nil {
			return out[i].ID < out[j].ID
		}
		if si == nil {
			return false
		}
		if sj == nil {
			return true
		}
		if si.Equal(*sj) {
			return out[i].ID < out[j].ID
		}
		return si.Before(*sj)
	})
	return out, nil
}

func (m *MemStore) ListUnscheduled(ctx context.Context, userID int64, channelID int64) ([]*model.Post, error) {
	return m.ListPending(ctx, ListFilter{UserID: userID, ChannelID: channelID, UnscheduledOnly: true})
}

func (m *MemStore) ListScheduledByChannel(ctx context.Context, userID int64) (map[int64][]*model.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[int64][]*model.Post)
	for _, p := range m.posts {
		if p.UserID != userID || p.Status != model.StatusPending || p.ScheduledTime == nil {
			continue
		}
		out[p.ChannelID] = append(out[p.ChannelID], clonePost(p))
	}
	return out, nil
}

func (m *MemStore) ListFailed(ctx context.Context, userID int64, channelID int64) ([]*model.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Post
	for _, p := range m.posts {
		if p.UserID != userID || p.Status != model.StatusFailed {
			continue
		}
		if channelID != 0 && p.ChannelID != channelID {
			continue
		}
		out = append(out, clonePost(p))
	}
	return out, nil
}

func (m *MemStore) ListOverdue(ctx context.Context, userID int64, now time.Time) ([]*model.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Post
	for _, p := range m.posts {
		if userID != 0 && p.UserID != userID {
			continue
		}
		if p.Status != model.StatusPending || p.ScheduledTime == nil {
			continue
		}
		if p.ScheduledTime.Before(now) {
			out = append(out, clonePost(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledTime.Before(*out[j].ScheduledTime) })
	return out, nil
}

func (m *MemStore) LatestScheduledTime(ctx context.Context, userID int64) (*time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *time.Time
	for _, p := range m.posts {
		if p.UserID != userID || p.ScheduledTime == nil {
			continue
		}
		if p.Status != model.StatusPending && p.Status != model.StatusPosted {
			continue
		}
		if latest == nil || p.ScheduledTime.After(*latest) {
			t := *p.ScheduledTime
			latest = &t
		}
	}
	return latest, nil
}

func (m *MemStore) ClearQueued(ctx context.Context, userID int64, channelID int64) ([]*model.Post, error) {
	return m.clearMatching(userID, channelID, func(p *model.Post) bool { return p.ScheduledTime == nil })
}

func (m *MemStore) ClearScheduled(ctx context.Context, userID int64, channelID int64) ([]*model.Post, error) {
	return m.clearMatching(userID, channelID, func(p *model.Post) bool {
		return p.ScheduledTime != nil && p.Status == model.StatusPending
	})
}

func (m *MemStore) clearMatching(userID, channelID int64, match func(*model.Post) bool) ([]*model.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var removed []*model.Post
	for id, p := range m.posts {
		if p.UserID != userID {
			continue
		}
		if channelID != 0 && p.ChannelID != channelID {
			continue
		}
		if !match(p) {
			continue
		}
		removed = append(removed, clonePost(p))
		delete(m.posts, id)
	}
	return removed, nil
}

func (m *MemStore) BulkUpdateSchedules(ctx context.Context, entries []ScheduleEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		if p, ok := m.posts[e.PostID]; ok {
			t := e.Time
			p.ScheduledTime = &t
		}
	}
	return nil
}

func (m *MemStore) AdvanceRecurrence(ctx context.Context, id int64, postedCount int, next *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return ErrNotFound
	}
	if p.Recurrence != nil {
		p.Recurrence.PostedCount = postedCount
	}
	if next == nil {
		p.Status = model.StatusPosted
	} else {
		t := *next
		p.ScheduledTime = &t
	}
	return nil
}

func (m *MemStore) RetryFailedPost(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok || p.Status != model.StatusFailed {
		return ErrNotTerminal
	}
	p.Status = model.StatusPending
	p.ScheduledTime = nil
	p.RetryCount = 0
	p.FailureReason = ""
	return nil
}

func (m *MemStore) RescheduleFromToday(ctx context.Context, userID int64, cfg model.SchedulingConfig, channelID int64, now time.Time) (int, error) {
	m.mu.Lock()
	var ids []int64
	for id, p := range m.posts {
		if p.UserID != userID || p.Status != model.StatusPending {
			continue
		}
		if channelID != 0 && p.ChannelID != channelID {
			continue
		}
		ids = append(ids, id)
	}
	m.mu.Unlock()

	if len(ids) == 0 {
		return 0, nil
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	anchor := schedulecalc.StartOfTomorrow(now)
	times := schedulecalc.FixedInterval(cfg.StartHour, cfg.EndHour, cfg.IntervalHour, len(ids), anchor)

	entries := make([]ScheduleEntry, len(ids))
	for i, id := range ids {
		entries[i] = ScheduleEntry{PostID: id, Time: times[i]}
	}
	if err := m.BulkUpdateSchedules(ctx, entries); err != nil {
		return 0, err
	}
	return len(entries), nil
}

func (m *MemStore) UserHasChannel(ctx context.Context, userID, channelID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.channels[channelKey{userID, channelID}]
	return ok, nil
}

func (m *MemStore) AddChannel(ctx context.Context, userID, channelID int64, displayName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels[channelKey{userID, channelID}] = model.Channel{
		UserID: userID, ChannelID: channelID, DisplayName: displayName, CreatedAt: time.Now(),
	}
	return nil
}

func (m *MemStore) ListChannels(ctx context.Context, userID int64) ([]model.Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Channel
	for k, c := range m.channels {
		if k.userID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *MemStore) CreateBatch(ctx context.Context, userID, channelID int64, name string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextBatchID++
	id := m.nextBatchID
	m.batches[id] = model.Batch{ID: id, UserID: userID, ChannelID: channelID, Name: name, Status: model.BatchPending}
	return id, nil
}

func (m *MemStore) SetBatchStatus(ctx context.Context, id int64, status model.BatchStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.batches[id]
	if !ok {
		return ErrNotFound
	}
	b.Status = status
	m.batches[id] = b
	return nil
}

func (m *MemStore) SaveBackup(ctx context.Context, userID int64, name string, payload []byte) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextBackupID++
	id := m.nextBackupID
	m.backups[id] = model.Backup{ID: id, UserID: userID, Name: name, CreatedAt: time.Now(), Payload: payload}
	return id, nil
}

func (m *MemStore) ListBackups(ctx context.Context, userID int64) ([]model.Backup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Backup
	for _, b := range m.backups {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemStore) GetBackup(ctx context.Context, id int64) (*model.Backup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.backups[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := b
	return &cp, nil
}

func (m *MemStore) GetSchedulingConfig(ctx context.Context, userID int64) (model.SchedulingConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cfg, ok := m.schedConfigs[userID]; ok {
		return cfg, nil
	}
	return model.DefaultSchedulingConfig(userID), nil
}

func (m *MemStore) SetSchedulingConfig(ctx context.Context, cfg model.SchedulingConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schedConfigs[cfg.UserID] = cfg
	return nil
}

func (m *MemStore) GetReminderSettings(ctx context.Context, userID int64) (model.ReminderSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rs, ok := m.reminders[userID]; ok {
		return rs, nil
	}
	return model.ReminderSettings{UserID: userID, Enabled: true, Threshold: 3}, nil
}

func (m *MemStore) SetReminderSettings(ctx context.Context, rs model.ReminderSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reminders[rs.UserID] = rs
	return nil
}

func (m *MemStore) ListReminderEnabledUsers(ctx context.Context) ([]model.ReminderSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.ReminderSettings
	for _, rs := range m.reminders {
		if rs.Enabled {
			out = append(out, rs)
		}
	}
	return out, nil
}

func (m *MemStore) CountUnscheduled(ctx context.Context, userID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, p := range m.posts {
		if p.UserID == userID && p.Status == model.StatusPending && p.ScheduledTime == nil {
			count++
		}
	}
	return count, nil
}

func (m *MemStore) GetSession(ctx context.Context, userID int64) (string, []byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.sessions[userID]
	if !ok {
		return "", nil, false, nil
	}
	return snap.tag, append([]byte(nil), snap.data...), true, nil
}

func (m *MemStore) SetSession(ctx context.Context, userID int64, tag string, stateJSON []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[userID] = sessionSnapshot{tag: tag, data: append([]byte(nil), stateJSON...)}
	return nil
}

func (m *MemStore) DeleteSession(ctx context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
	return nil
}

func (m *MemStore) PurgeExpired(ctx context.Context, now time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var refs []string
	for id, p := range m.posts {
		if p.Status != model.StatusPosted || p.CleanupDate == nil || !p.CleanupDate.Before(now) {
			continue
		}
		refs = append(refs, p.FileRef)
		delete(m.posts, id)
	}
	return refs, nil
}

// ErrValidation marks a caller-side validation rejection (spec.md §7's
// ValidationError), distinct from the not-found/not-owned sentinels above.
type ErrValidation string

func (e ErrValidation) Error() string { return string(e) }
