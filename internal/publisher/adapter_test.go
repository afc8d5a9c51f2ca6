package publisher

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/castline/scheduler/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTransport struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeTransport) SendSingle(ctx context.Context, channelID int64, kind model.MediaKind, fileRef, caption string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return nil
}

func (f *fakeTransport) SendAlbum(ctx context.Context, channelID int64, items []model.AlbumItem, captionOnFirst string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return nil
}

func (f *fakeTransport) SendMessage(ctx context.Context, userID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return nil
}

func (f *fakeTransport) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestRateLimitedAdapter_ForwardsCallsToTransport(t *testing.T) {
	tr := &fakeTransport{}
	a := NewRateLimitedAdapter(tr, 1000, 10)

	require.NoError(t, a.PublishSingle(context.Background(), 1, model.MediaPhoto, "a.jpg", "cap"))
	require.NoError(t, a.PublishAlbum(context.Background(), 1, []model.AlbumItem{{FileRef: "a.jpg"}}, "cap"))
	require.NoError(t, a.NotifyOperator(context.Background(), 1, "hi"))

	assert.Equal(t, 3, tr.count())
}

func TestRateLimitedAdapter_RespectsContextCancellation(t *testing.T) {
	tr := &fakeTransport{}
	// A limiter with a single-token burst and a long refill period, once
	// that token is drained, forces Wait to block until the context expires.
	a := NewRateLimitedAdapter(tr, 0.001, 1)
	a.limiter.Wait(context.Background()) // drain the single burst token

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := a.PublishSingle(ctx, 1, model.MediaPhoto, "a.jpg", "cap")
	assert.Error(t, err)
	assert.Equal(t, 0, tr.count())
}
