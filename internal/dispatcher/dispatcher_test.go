package dispatcher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/castline/scheduler/internal/classify"
	"github.com/castline/scheduler/internal/clock"
	"github.com/castline/scheduler/internal/config"
	"github.com/castline/scheduler/internal/model"
	"github.com/castline/scheduler/internal/store"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePublisher is a tracked mock Publisher, in the
// queue.MockAMQPChannel style: scripted results plus recorded calls.
type fakePublisher struct {
	mu sync.Mutex

	singleErrs []error // consumed in order per call; last element repeats
	albumErr   error

	singleCalls   int
	notifications []string
}

func (f *fakePublisher) PublishSingle(ctx context.Context, channelID int64, kind model.MediaKind, fileRef, caption string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.singleCalls
	if idx >= len(f.singleErrs) {
		idx = len(f.singleErrs) - 1
	}
	f.singleCalls++
	if idx < 0 {
		return nil
	}
	return f.singleErrs[idx]
}

func (f *fakePublisher) PublishAlbum(ctx context.Context, channelID int64, items []model.AlbumItem, captionOnFirst string) error {
	return f.albumErr
}

func (f *fakePublisher) NotifyOperator(ctx context.Context, userID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notifications = append(f.notifications, text)
	return nil
}

func (f *fakePublisher) notificationCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.notifications)
}

type fakeACL struct {
	denyAll bool
}

func (a *fakeACL) UserHasChannel(ctx context.Context, userID, channelID int64) (bool, error) {
	return !a.denyAll, nil
}

func (a *fakeACL) UserChannels(ctx context.Context, userID int64) ([]model.Channel, error) {
	return nil, nil
}

type fakeMedia struct {
	missing map[string]bool
}

func (m *fakeMedia) Size(ctx context.Context, ref string) (int64, error) {
	if m.missing != nil && m.missing[ref] {
		return 0, errors.New("not found")
	}
	return 100, nil
}

func testDispatcher(st store.Store, pub *fakePublisher, acl *fakeACL, media *fakeMedia, clk clock.Clock) *Dispatcher {
	cfg := config.DispatcherConfig{MaxRetries: 3, PreFireDelay: time.Millisecond, OverdueOffset: 10 * time.Millisecond}
	return New(st, pub, acl, media, clk, cfg, 10, zerolog.Nop())
}

func TestDispatcher_SuccessfulPublish_NonRecurring(t *testing.T) {
	st := store.NewMemStore()
	st.SeedChannel(1, 100, "chan")
	st.SeedPost(&model.Post{ID: 1, UserID: 1, ChannelID: 100, FileRef: "a.jpg", Kind: model.MediaPhoto, Status: model.StatusPending})

	pub := &fakePublisher{singleErrs: []error{nil}}
	acl := &fakeACL{}
	media := &fakeMedia{}
	clk := clock.NewFixed(time.Now(), time.UTC)

	d := testDispatcher(st, pub, acl, media, clk)
	d.Register(1, 1, clk.Now().Add(5*time.Millisecond))

	require.Eventually(t, func() bool {
		p, _ := st.GetPost(context.Background(), 1)
		return p.Status == model.StatusPosted
	}, time.Second, 5*time.Millisecond)

	assert.Empty(t, d.ActivePostIDs())
	assert.Equal(t, 1, pub.notificationCount())
}

func TestDispatcher_ChannelAccessDenied(t *testing.T) {
	st := store.NewMemStore()
	st.SeedChannel(1, 100, "chan")
	st.SeedPost(&model.Post{ID: 2, UserID: 1, ChannelID: 100, FileRef: "a.jpg", Kind: model.MediaPhoto, Status: model.StatusPending})

	pub := &fakePublisher{singleErrs: []error{nil}}
	acl := &fakeACL{denyAll: true}
	media := &fakeMedia{}
	clk := clock.NewFixed(time.Now(), time.UTC)

	d := testDispatcher(st, pub, acl, media, clk)
	d.Register(2, 1, clk.Now().Add(5*time.Millisecond))

	require.Eventually(t, func() bool {
		p, _ := st.GetPost(context.Background(), 2)
		return p.Status == model.StatusFailed
	}, time.Second, 5*time.Millisecond)

	p, _ := st.GetPost(context.Background(), 2)
	assert.Equal(t, "channel access denied", p.FailureReason)
}

func TestDispatcher_MediaMissing_FailsAlbumWithoutPublishing(t *testing.T) {
	st := store.NewMemStore()
	st.SeedChannel(1, 100, "chan")
	st.SeedPost(&model.Post{
		ID: 3, UserID: 1, ChannelID: 100, Kind: model.MediaAlbum, Status: model.StatusPending,
		Album: []model.AlbumItem{{FileRef: "a.jpg", Kind: model.MediaPhoto}, {FileRef: "missing.jpg", Kind: model.MediaPhoto}},
	})

	pub := &fakePublisher{albumErr: nil}
	acl := &fakeACL{}
	media := &fakeMedia{missing: map[string]bool{"missing.jpg": true}}
	clk := clock.NewFixed(time.Now(), time.UTC)

	d := testDispatcher(st, pub, acl, media, clk)
	d.Register(3, 1, clk.Now().Add(5*time.Millisecond))

	require.Eventually(t, func() bool {
		p, _ := st.GetPost(context.Background(), 3)
		return p.Status == model.StatusFailed
	}, time.Second, 5*time.Millisecond)

	p, _ := st.GetPost(context.Background(), 3)
	assert.Equal(t, "file not found", p.FailureReason)
}

func TestDispatcher_RetryThenSucceed(t *testing.T) {
	st := store.NewMemStore()
	st.SeedChannel(1, 100, "chan")
	st.SeedPost(&model.Post{ID: 4, UserID: 1, ChannelID: 100, FileRef: "a.jpg", Kind: model.MediaPhoto, Status: model.StatusPending})

	pub := &fakePublisher{singleErrs: []error{classify.Classify(errors.New("too many requests: retry after 0"), 0), nil}}
	acl := &fakeACL{}
	media := &fakeMedia{}
	clk := clock.NewFixed(time.Now(), time.UTC)

	d := testDispatcher(st, pub, acl, media, clk)
	d.Register(4, 1, clk.Now().Add(5*time.Millisecond))

	require.Eventually(t, func() bool {
		p, _ := st.GetPost(context.Background(), 4)
		return p.Status == model.StatusPosted
	}, 2*time.Second, 5*time.Millisecond)

	p, _ := st.GetPost(context.Background(), 4)
	assert.Equal(t, 1, p.RetryCount)
}

func TestDispatcher_RecurringPost_TerminatesAtMaxCount(t *testing.T) {
	st := store.NewMemStore()
	st.SeedChannel(1, 100, "chan")
	maxCount := 1
	st.SeedPost(&model.Post{
		ID: 5, UserID: 1, ChannelID: 100, FileRef: "a.jpg", Kind: model.MediaPhoto, Status: model.StatusPending,
		Recurrence: &model.Recurrence{IntervalHours: 24, MaxCount: &maxCount},
	})

	pub := &fakePublisher{singleErrs: []error{nil}}
	acl := &fakeACL{}
	media := &fakeMedia{}
	clk := clock.NewFixed(time.Now(), time.UTC)

	d := testDispatcher(st, pub, acl, media, clk)
	d.Register(5, 1, clk.Now().Add(5*time.Millisecond))

	require.Eventually(t, func() bool {
		p, _ := st.GetPost(context.Background(), 5)
		return p.Status == model.StatusPosted
	}, time.Second, 5*time.Millisecond)

	assert.Empty(t, d.ActivePostIDs())
}

func TestDispatcher_RecurringPost_ContinuesBelowMaxCount(t *testing.T) {
	st := store.NewMemStore()
	st.SeedChannel(1, 100, "chan")
	maxCount := 3
	st.SeedPost(&model.Post{
		ID: 6, UserID: 1, ChannelID: 100, FileRef: "a.jpg", Kind: model.MediaPhoto, Status: model.StatusPending,
		Recurrence: &model.Recurrence{IntervalHours: 24, MaxCount: &maxCount, PostedCount: 0},
	})

	pub := &fakePublisher{singleErrs: []error{nil}}
	acl := &fakeACL{}
	media := &fakeMedia{}
	clk := clock.NewFixed(time.Now(), time.UTC)

	d := testDispatcher(st, pub, acl, media, clk)
	d.Register(6, 1, clk.Now().Add(5*time.Millisecond))

	require.Eventually(t, func() bool {
		p, _ := st.GetPost(context.Background(), 6)
		return p.Recurrence != nil && p.Recurrence.PostedCount == 1
	}, time.Second, 5*time.Millisecond)

	p, _ := st.GetPost(context.Background(), 6)
	assert.Equal(t, model.StatusPending, p.Status)
	assert.NotEmpty(t, d.ActivePostIDs())
}

func TestDispatcher_CancelUser_RemovesAllTheirTimers(t *testing.T) {
	st := store.NewMemStore()
	st.SeedChannel(1, 100, "chan")
	st.SeedPost(&model.Post{ID: 7, UserID: 1, ChannelID: 100, FileRef: "a.jpg", Kind: model.MediaPhoto, Status: model.StatusPending})
	st.SeedPost(&model.Post{ID: 8, UserID: 1, ChannelID: 100, FileRef: "b.jpg", Kind: model.MediaPhoto, Status: model.StatusPending})

	pub := &fakePublisher{singleErrs: []error{nil}}
	acl := &fakeACL{}
	media := &fakeMedia{}
	clk := clock.NewFixed(time.Now(), time.UTC)

	d := testDispatcher(st, pub, acl, media, clk)
	d.Register(7, 1, clk.Now().Add(time.Hour))
	d.Register(8, 1, clk.Now().Add(time.Hour))

	d.CancelUser(1)
	assert.Empty(t, d.ActivePostIDs())
}
