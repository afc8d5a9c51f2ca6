package session

import (
	"sync"
	"time"

	"github.com/castline/scheduler/internal/model"
)

// AlbumWindow is the collection window spec.md §4.8 documents for
// coalescing inputs sharing a group_id into one album artifact (~1s).
const AlbumWindow = time.Second

// AlbumCollector coalesces media items arriving with the same group_id
// within AlbumWindow into a single flush, grounded on Dispatcher's
// time.AfterFunc-per-key timer table (internal/dispatcher) applied here
// to input debouncing instead of fire scheduling.
type AlbumCollector struct {
	mu      sync.Mutex
	window  time.Duration
	pending map[string]*pendingGroup
}

type pendingGroup struct {
	items []model.AlbumItem
	timer *time.Timer
}

// NewAlbumCollector returns a collector using AlbumWindow. Tests may
// construct one directly with a shorter window via NewAlbumCollectorWindow.
func NewAlbumCollector() *AlbumCollector {
	return NewAlbumCollectorWindow(AlbumWindow)
}

// NewAlbumCollectorWindow returns a collector using a custom window.
func NewAlbumCollectorWindow(window time.Duration) *AlbumCollector {
	return &AlbumCollector{window: window, pending: make(map[string]*pendingGroup)}
}

// Add appends item to groupID's pending batch and (re)starts its flush
// timer. Once AlbumWindow elapses without a further Add for groupID, flush
// is called once with every item collected, and the group is forgotten.
func (c *AlbumCollector) Add(groupID string, item model.AlbumItem, flush func([]model.AlbumItem)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	g, ok := c.pending[groupID]
	if !ok {
		g = &pendingGroup{}
		c.pending[groupID] = g
	}
	g.items = append(g.items, item)

	if g.timer != nil {
		g.timer.Stop()
	}
	g.timer = time.AfterFunc(c.window, func() {
		c.mu.Lock()
		items := c.pending[groupID].items
		delete(c.pending, groupID)
		c.mu.Unlock()
		flush(items)
	})
}

// Pending reports how many items are currently buffered for groupID,
// without flushing them; 0 if the group doesn't exist.
func (c *AlbumCollector) Pending(groupID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	g, ok := c.pending[groupID]
	if !ok {
		return 0
	}
	return len(g.items)
}
