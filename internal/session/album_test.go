package session

import (
	"sync"
	"testing"
	"time"

	"github.com/castline/scheduler/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlbumCollector_CoalescesItemsWithinWindow(t *testing.T) {
	c := NewAlbumCollectorWindow(30 * time.Millisecond)

	var mu sync.Mutex
	var flushed []model.AlbumItem
	flush := func(items []model.AlbumItem) {
		mu.Lock()
		defer mu.Unlock()
		flushed = items
	}

	c.Add("group-1", model.AlbumItem{FileRef: "a.jpg", Kind: model.MediaPhoto}, flush)
	time.Sleep(10 * time.Millisecond)
	c.Add("group-1", model.AlbumItem{FileRef: "b.jpg", Kind: model.MediaPhoto}, flush)
	time.Sleep(10 * time.Millisecond)
	c.Add("group-1", model.AlbumItem{FileRef: "c.jpg", Kind: model.MediaPhoto}, flush)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(flushed) == 3
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "a.jpg", flushed[0].FileRef)
	assert.Equal(t, "b.jpg", flushed[1].FileRef)
	assert.Equal(t, "c.jpg", flushed[2].FileRef)
}

func TestAlbumCollector_SeparateGroupsFlushIndependently(t *testing.T) {
	c := NewAlbumCollectorWindow(15 * time.Millisecond)

	var mu sync.Mutex
	results := make(map[string][]model.AlbumItem)
	flush := func(key string) func([]model.AlbumItem) {
		return func(items []model.AlbumItem) {
			mu.Lock()
			defer mu.Unlock()
			results[key] = items
		}
	}

	c.Add("g1", model.AlbumItem{FileRef: "1.jpg"}, flush("g1"))
	c.Add("g2", model.AlbumItem{FileRef: "2.jpg"}, flush("g2"))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(results["g1"]) == 1 && len(results["g2"]) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestAlbumCollector_PendingReportsBufferedCount(t *testing.T) {
	c := NewAlbumCollectorWindow(time.Hour)
	c.Add("g1", model.AlbumItem{FileRef: "1.jpg"}, func([]model.AlbumItem) {})
	c.Add("g1", model.AlbumItem{FileRef: "2.jpg"}, func([]model.AlbumItem) {})

	assert.Equal(t, 2, c.Pending("g1"))
	assert.Equal(t, 0, c.Pending("nonexistent"))
}
