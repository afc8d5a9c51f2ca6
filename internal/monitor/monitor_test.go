package monitor

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/castline/scheduler/internal/clock"
	"github.com/castline/scheduler/internal/config"
	"github.com/castline/scheduler/internal/dispatcher"
	"github.com/castline/scheduler/internal/lock"
	"github.com/castline/scheduler/internal/model"
	"github.com/castline/scheduler/internal/store"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePublisher tracks every NotifyOperator call; PublishSingle/Album are
// never exercised by monitor tests so they just succeed.
type fakePublisher struct {
	mu            sync.Mutex
	notifications []string
}

func (f *fakePublisher) PublishSingle(ctx context.Context, channelID int64, kind model.MediaKind, fileRef, caption string) error {
	return nil
}

func (f *fakePublisher) PublishAlbum(ctx context.Context, channelID int64, items []model.AlbumItem, captionOnFirst string) error {
	return nil
}

func (f *fakePublisher) NotifyOperator(ctx context.Context, userID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notifications = append(f.notifications, text)
	return nil
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.notifications)
}

type fakeACL struct{}

func (fakeACL) UserHasChannel(ctx context.Context, userID, channelID int64) (bool, error) {
	return true, nil
}
func (fakeACL) UserChannels(ctx context.Context, userID int64) ([]model.Channel, error) {
	return nil, nil
}

type fakeMedia struct {
	mu         sync.Mutex
	deleted    []string
	swept      []string
	sweepErr   error
	sweepCalls int
}

func (m *fakeMedia) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	return name, nil
}
func (m *fakeMedia) Open(ctx context.Context, ref string) (io.ReadCloser, error) { return nil, nil }
func (m *fakeMedia) Size(ctx context.Context, ref string) (int64, error)        { return 100, nil }

func (m *fakeMedia) Delete(ctx context.Context, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, ref)
	return nil
}

func (m *fakeMedia) Sweep(ctx context.Context, olderThan time.Time) ([]string, error) {
	m.mu.Lock()
	m.sweepCalls++
	m.mu.Unlock()
	if m.sweepErr != nil {
		return nil, m.sweepErr
	}
	return m.swept, nil
}

func newTestMonitor(st store.Store, disp *dispatcher.Dispatcher, pub *fakePublisher, med *fakeMedia, clk clock.Clock) *Monitor {
	cfg := config.MonitorConfig{ReconcileInterval: 5 * time.Minute, ReminderInterval: time.Hour, ReminderResendWindow: 24 * time.Hour, CleanupHour: 3}
	return New(st, disp, pub, med, clk, lock.NoopLocker{}, cfg, zerolog.Nop())
}

func TestReconcile_ReregistersLostTimerAndNotifiesOverdue(t *testing.T) {
	st := store.NewMemStore()
	st.SeedChannel(1, 100, "chan")
	clk := clock.NewFixed(time.Now(), time.UTC)
	past := clk.Now().Add(-time.Hour)
	st.SeedPost(&model.Post{ID: 1, UserID: 1, ChannelID: 100, FileRef: "a.jpg", Kind: model.MediaPhoto, Status: model.StatusPending, ScheduledTime: &past})

	pub := &fakePublisher{}
	dcfg := config.DispatcherConfig{MaxRetries: 3, PreFireDelay: time.Hour, OverdueOffset: time.Hour}
	disp := dispatcher.New(st, pub, fakeACL{}, &fakeMedia{}, clk, dcfg, 10, zerolog.Nop())

	mon := newTestMonitor(st, disp, pub, &fakeMedia{}, clk)
	mon.Reconcile(context.Background())

	assert.Contains(t, disp.ActivePostIDs(), int64(1))
	assert.Equal(t, 1, pub.count())

	mon.Reconcile(context.Background())
	assert.Equal(t, 1, pub.count(), "a post already re-registered must not be notified twice")
}

func TestReconcile_SkipsPostsAlreadyActiveOrUnscheduled(t *testing.T) {
	st := store.NewMemStore()
	st.SeedChannel(1, 100, "chan")
	clk := clock.NewFixed(time.Now(), time.UTC)
	st.SeedPost(&model.Post{ID: 2, UserID: 1, ChannelID: 100, FileRef: "a.jpg", Kind: model.MediaPhoto, Status: model.StatusPending})

	pub := &fakePublisher{}
	dcfg := config.DispatcherConfig{MaxRetries: 3, PreFireDelay: time.Hour, OverdueOffset: time.Hour}
	disp := dispatcher.New(st, pub, fakeACL{}, &fakeMedia{}, clk, dcfg, 10, zerolog.Nop())

	mon := newTestMonitor(st, disp, pub, &fakeMedia{}, clk)
	mon.Reconcile(context.Background())

	assert.Empty(t, disp.ActivePostIDs(), "an unscheduled post has nothing for Reconcile to register")
	assert.Zero(t, pub.count())
}

func TestReconcile_RestartsADeadDispatcher(t *testing.T) {
	st := store.NewMemStore()
	clk := clock.NewFixed(time.Now(), time.UTC)
	pub := &fakePublisher{}
	dcfg := config.DispatcherConfig{MaxRetries: 3, PreFireDelay: time.Hour, OverdueOffset: time.Hour}
	disp := dispatcher.New(st, pub, fakeACL{}, &fakeMedia{}, clk, dcfg, 10, zerolog.Nop())
	disp.Stop()
	require.False(t, disp.Alive())

	mon := newTestMonitor(st, disp, pub, &fakeMedia{}, clk)
	mon.Reconcile(context.Background())

	assert.True(t, disp.Alive())
}

func TestReminderSweep_NotifiesOnceAtOrBelowThresholdThenSuppressesWithin24h(t *testing.T) {
	st := store.NewMemStore()
	st.SeedChannel(1, 100, "chan")
	clk := clock.NewFixed(time.Now(), time.UTC)
	for i := int64(1); i <= 3; i++ {
		st.SeedPost(&model.Post{ID: i, UserID: 1, ChannelID: 100, FileRef: "a.jpg", Kind: model.MediaPhoto, Status: model.StatusPending})
	}
	require.NoError(t, st.SetReminderSettings(context.Background(), model.ReminderSettings{UserID: 1, Enabled: true, Threshold: 3}))

	pub := &fakePublisher{}
	dcfg := config.DispatcherConfig{MaxRetries: 3, PreFireDelay: time.Hour, OverdueOffset: time.Hour}
	disp := dispatcher.New(st, pub, fakeACL{}, &fakeMedia{}, clk, dcfg, 10, zerolog.Nop())
	mon := newTestMonitor(st, disp, pub, &fakeMedia{}, clk)

	mon.ReminderSweep(context.Background())
	assert.Equal(t, 1, pub.count(), "a queue at the threshold must trigger the low-queue nudge")

	mon.ReminderSweep(context.Background())
	assert.Equal(t, 1, pub.count(), "a reminder already sent within the 24h resend window must not repeat")
}

func TestReminderSweep_AboveThresholdSendsNothing(t *testing.T) {
	st := store.NewMemStore()
	st.SeedChannel(1, 100, "chan")
	clk := clock.NewFixed(time.Now(), time.UTC)
	for i := int64(1); i <= 5; i++ {
		st.SeedPost(&model.Post{ID: i, UserID: 1, ChannelID: 100, FileRef: "a.jpg", Kind: model.MediaPhoto, Status: model.StatusPending})
	}
	require.NoError(t, st.SetReminderSettings(context.Background(), model.ReminderSettings{UserID: 1, Enabled: true, Threshold: 3}))

	pub := &fakePublisher{}
	dcfg := config.DispatcherConfig{MaxRetries: 3, PreFireDelay: time.Hour, OverdueOffset: time.Hour}
	disp := dispatcher.New(st, pub, fakeACL{}, &fakeMedia{}, clk, dcfg, 10, zerolog.Nop())
	mon := newTestMonitor(st, disp, pub, &fakeMedia{}, clk)

	mon.ReminderSweep(context.Background())
	assert.Zero(t, pub.count(), "a queue still above the threshold has nothing to nudge about")
}

func TestReminderSweep_ResendsAfter24h(t *testing.T) {
	st := store.NewMemStore()
	st.SeedChannel(1, 100, "chan")
	start := time.Now()
	clk := clock.NewFixed(start, time.UTC)
	st.SeedPost(&model.Post{ID: 1, UserID: 1, ChannelID: 100, FileRef: "a.jpg", Kind: model.MediaPhoto, Status: model.StatusPending})
	require.NoError(t, st.SetReminderSettings(context.Background(), model.ReminderSettings{UserID: 1, Enabled: true, Threshold: 3}))

	pub := &fakePublisher{}
	dcfg := config.DispatcherConfig{MaxRetries: 3, PreFireDelay: time.Hour, OverdueOffset: time.Hour}
	disp := dispatcher.New(st, pub, fakeACL{}, &fakeMedia{}, clk, dcfg, 10, zerolog.Nop())
	mon := newTestMonitor(st, disp, pub, &fakeMedia{}, clk)

	mon.ReminderSweep(context.Background())
	assert.Equal(t, 1, pub.count())

	clk.Set(start.Add(24 * time.Hour))
	mon.ReminderSweep(context.Background())
	assert.Equal(t, 2, pub.count(), "once the 24h resend window has elapsed the operator is nudged again")
}

func TestCleanupSweep_DeletesExpiredMediaAndSweepsOrphans(t *testing.T) {
	st := store.NewMemStore()
	st.SeedChannel(1, 100, "chan")
	clk := clock.NewFixed(time.Now(), time.UTC)
	past := clk.Now().Add(-time.Hour)
	st.SeedPost(&model.Post{ID: 1, UserID: 1, ChannelID: 100, FileRef: "expired.jpg", Kind: model.MediaPhoto, Status: model.StatusPosted, CleanupDate: &past})

	pub := &fakePublisher{}
	dcfg := config.DispatcherConfig{MaxRetries: 3, PreFireDelay: time.Hour, OverdueOffset: time.Hour}
	disp := dispatcher.New(st, pub, fakeACL{}, &fakeMedia{}, clk, dcfg, 10, zerolog.Nop())
	med := &fakeMedia{swept: []string{"orphan.jpg"}}
	mon := newTestMonitor(st, disp, pub, med, clk)

	mon.CleanupSweep(context.Background())

	assert.Contains(t, med.deleted, "expired.jpg")
	_, err := st.GetPost(context.Background(), 1)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestMaybeCleanup_OnlyRunsOncePerDayAtConfiguredHour(t *testing.T) {
	st := store.NewMemStore()
	loc := time.UTC
	clk := clock.NewFixed(time.Date(2026, 1, 1, 3, 0, 0, 0, loc), loc)

	pub := &fakePublisher{}
	dcfg := config.DispatcherConfig{MaxRetries: 3, PreFireDelay: time.Hour, OverdueOffset: time.Hour}
	disp := dispatcher.New(st, pub, fakeACL{}, &fakeMedia{}, clk, dcfg, 10, zerolog.Nop())
	med := &fakeMedia{swept: []string{"orphan.jpg"}}
	mon := newTestMonitor(st, disp, pub, med, clk)

	mon.maybeCleanup(context.Background())
	assert.Equal(t, "2026-01-01", mon.lastCleanupDay)
	assert.Equal(t, 1, med.sweepCalls)

	mon.maybeCleanup(context.Background())
	assert.Equal(t, 1, med.sweepCalls, "the same calendar day must not run cleanup twice")
}
