// Package dispatcher implements component C6: the in-memory timer wheel
// that fires each scheduled post's publish routine, drives retry and
// error classification, and hands off to the recurrence engine. Spec.md
// §4.5.
package dispatcher

import (
	"context"
	"sync"
	"time"

	"github.com/castline/scheduler/internal/clock"
	"github.com/castline/scheduler/internal/config"
	"github.com/castline/scheduler/internal/publisher"
	"github.com/castline/scheduler/internal/store"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// MediaChecker is the narrow slice of the MediaStore capability the
// Dispatcher needs at fire time: confirm an artifact is still present
// before attempting to publish it (spec.md §4.5 step 4).
type MediaChecker interface {
	Size(ctx context.Context, ref string) (int64, error)
}

// activeTimer tracks one in-flight registration so CancelUser can find
// every timer owned by an operator without a reverse index into Store.
type activeTimer struct {
	timer  *time.Timer
	userID int64
}

// Dispatcher owns the set of active fire timers, one per scheduled post
// id (spec.md's "in-memory timer table"). External callers mutate it only
// through Register/Cancel/CancelUser, matching §5's shared-resource
// policy.
type Dispatcher struct {
	store     store.Store
	publisher publisher.Publisher
	acl       publisher.ACL
	media     MediaChecker
	clock     clock.Clock
	cfg       config.DispatcherConfig
	log       zerolog.Logger

	mu      sync.Mutex
	timers  map[int64]*activeTimer
	running bool

	sem chan struct{}
	grp *errgroup.Group
}

// New constructs a Dispatcher. poolSize bounds the number of concurrent
// in-flight publish goroutines (spec.md §5's "bounded connection pool").
func New(st store.Store, pub publisher.Publisher, acl publisher.ACL, mediaStore MediaChecker, clk clock.Clock, cfg config.DispatcherConfig, poolSize int, log zerolog.Logger) *Dispatcher {
	if poolSize <= 0 {
		poolSize = 50
	}
	return &Dispatcher{
		store:     st,
		publisher: pub,
		acl:       acl,
		media:     mediaStore,
		clock:     clk,
		cfg:       cfg,
		log:       log,
		timers:    make(map[int64]*activeTimer),
		running:   true,
		sem:       make(chan struct{}, poolSize),
		grp:       &errgroup.Group{},
	}
}

// Register installs a fire timer for postID at t, removing any prior
// timer for the same id first (idempotent, spec.md §4.5). If t is not in
// the future, the post is scheduled for now+epsilon instead of dropped,
// and a warning is logged.
func (d *Dispatcher) Register(postID, userID int64, t time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if at, ok := d.timers[postID]; ok {
		at.timer.Stop()
		delete(d.timers, postID)
	}

	now := d.clock.Now()
	delay := t.Sub(now)
	if delay <= 0 {
		d.log.Warn().Int64("post_id", postID).Time("scheduled_time", t).
			Msg("dispatcher: registering overdue post for now+epsilon instead of dropping it")
		delay = d.cfg.OverdueOffset
	}

	timer := time.AfterFunc(delay, func() { d.fire(postID) })
	d.timers[postID] = &activeTimer{timer: timer, userID: userID}
}

// RegisterBatch registers many timers in order, pacing each registration
// by 100ms to avoid overwhelming the dispatcher on large bulk
// redistributes (SPEC_FULL §C.2, grounded on the original's
// schedule_posts pacing delay).
func (d *Dispatcher) RegisterBatch(entries []BatchEntry) {
	for i, e := range entries {
		d.Register(e.PostID, e.UserID, e.Time)
		if i < len(entries)-1 {
			time.Sleep(100 * time.Millisecond)
		}
	}
}

// BatchEntry pairs a post/user/time triple for RegisterBatch.
type BatchEntry struct {
	PostID int64
	UserID int64
	Time   time.Time
}

// Cancel removes postID's timer. Safe to call when absent. It does not
// interrupt an in-flight publish already underway for postID (spec.md
// §4.5 "Cancellation").
func (d *Dispatcher) Cancel(postID int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if at, ok := d.timers[postID]; ok {
		at.timer.Stop()
		delete(d.timers, postID)
	}
}

// CancelUser removes every timer owned by userID.
func (d *Dispatcher) CancelUser(userID int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, at := range d.timers {
		if at.userID == userID {
			at.timer.Stop()
			delete(d.timers, id)
		}
	}
}

// ActivePostIDs returns every post id with a currently-registered timer,
// for Monitor's reconciliation sweep (spec.md §4.7).
func (d *Dispatcher) ActivePostIDs() []int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	ids := make([]int64, 0, len(d.timers))
	for id := range d.timers {
		ids = append(ids, id)
	}
	return ids
}

// Alive reports whether the dispatcher is accepting new registrations.
// Monitor's reconciliation job checks this and calls Restart if false
// (spec.md §4.7).
func (d *Dispatcher) Alive() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// Restart marks the dispatcher healthy again after Monitor observes it
// down. There is a single long-lived Dispatcher value for the process
// lifetime (spec.md §9's redesign flag against shadow schedulers); Restart
// never constructs a new instance.
func (d *Dispatcher) Restart() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.running = true
}

// Stop marks the dispatcher as shutting down and waits for in-flight
// fires to finish (graceful shutdown, spec.md §5). New registrations
// after Stop are accepted but will not fire concurrently with the wait.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	d.running = false
	d.mu.Unlock()
	d.grp.Wait()
}

// FireNow executes the normal §4.5 fire path for postID synchronously,
// instead of waiting for its timer to elapse. It cancels any pending
// timer for postID first, so a later reconciliation sweep does not fire
// it a second time. Used by the operator-initiated "post overdue now"
// control operation (spec.md §4.7), which must go through the same
// ACL/media/publish-with-retry/recurrence path as a normal fire — never
// a shortcut that skips user_has_channel (invariant I6, property P8).
func (d *Dispatcher) FireNow(postID int64) {
	d.Cancel(postID)
	d.runFire(postID)
}

func (d *Dispatcher) fire(postID int64) {
	d.mu.Lock()
	delete(d.timers, postID)
	d.mu.Unlock()

	d.sem <- struct{}{}
	d.grp.Go(func() error {
		defer func() { <-d.sem }()
		d.runFire(postID)
		return nil
	})
}

