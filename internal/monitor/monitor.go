// Package monitor implements component C7: the three periodic background
// jobs that keep the Dispatcher's in-memory timer table consistent with
// durable storage, nudge operators about a thinning queue, and reclaim
// media for posts that have aged out (spec.md §4.7).
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/castline/scheduler/internal/clock"
	"github.com/castline/scheduler/internal/config"
	"github.com/castline/scheduler/internal/dispatcher"
	"github.com/castline/scheduler/internal/lock"
	"github.com/castline/scheduler/internal/media"
	"github.com/castline/scheduler/internal/notify"
	"github.com/castline/scheduler/internal/publisher"
	"github.com/castline/scheduler/internal/store"
	"github.com/rs/zerolog"
)

const (
	reconcileLockName = "monitor:reconcile"
	cleanupLockName   = "monitor:cleanup"
	// mediaRetention bounds how far back Sweep looks for orphaned files
	// with no owning post row left (the original's "old file" cleanup
	// window), independent of a post's own cleanup_date.
	mediaRetention = 30 * 24 * time.Hour
)

// Monitor drives Reconcile, ReminderSweep and CleanupSweep on their own
// tickers via Run, guarding cross-process overlap with a Locker (spec.md
// §4.7: "non-overlapping per job").
type Monitor struct {
	store      store.Store
	dispatcher *dispatcher.Dispatcher
	publisher  publisher.Publisher
	media      media.Store
	clock      clock.Clock
	locker     lock.Locker
	cfg        config.MonitorConfig
	log        zerolog.Logger

	mu             sync.Mutex
	lastCleanupDay string
}

// New constructs a Monitor bound to an already-running Dispatcher.
func New(st store.Store, disp *dispatcher.Dispatcher, pub publisher.Publisher, mediaStore media.Store, clk clock.Clock, locker lock.Locker, cfg config.MonitorConfig, log zerolog.Logger) *Monitor {
	return &Monitor{
		store:      st,
		dispatcher: disp,
		publisher:  pub,
		media:      mediaStore,
		clock:      clk,
		locker:     locker,
		cfg:        cfg,
		log:        log,
	}
}

// Run blocks, firing Reconcile, ReminderSweep and a once-per-day
// CleanupSweep until ctx is cancelled. The cleanup job is checked hourly
// against cfg.CleanupHour rather than given its own 24h ticker, so a
// process restarted mid-day still catches that day's window.
func (m *Monitor) Run(ctx context.Context) {
	reconcileTicker := time.NewTicker(m.cfg.ReconcileInterval)
	reminderTicker := time.NewTicker(m.cfg.ReminderInterval)
	cleanupTicker := time.NewTicker(time.Hour)
	defer reconcileTicker.Stop()
	defer reminderTicker.Stop()
	defer cleanupTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-reconcileTicker.C:
			m.Reconcile(ctx)
		case <-reminderTicker.C:
			m.ReminderSweep(ctx)
		case <-cleanupTicker.C:
			m.maybeCleanup(ctx)
		}
	}
}

// Reconcile re-registers any pending, scheduled post the Dispatcher has
// lost track of (process restart, timer eviction) and verifies the
// Dispatcher itself is still accepting work, restarting it otherwise
// (spec.md §4.7's reconciliation sweep). Safe to call concurrently with
// itself; only one caller across the fleet proceeds past the lock.
func (m *Monitor) Reconcile(ctx context.Context) {
	ok, err := m.locker.Acquire(ctx, reconcileLockName, m.cfg.ReconcileInterval)
	if err != nil {
		m.log.Error().Err(err).Msg("monitor: acquire reconcile lock")
		return
	}
	if !ok {
		return
	}
	defer func() {
		if err := m.locker.Release(ctx, reconcileLockName); err != nil {
			m.log.Error().Err(err).Msg("monitor: release reconcile lock")
		}
	}()

	if !m.dispatcher.Alive() {
		m.log.Warn().Msg("monitor: dispatcher reported not alive, restarting")
		m.dispatcher.Restart()
	}

	active := make(map[int64]bool)
	for _, id := range m.dispatcher.ActivePostIDs() {
		active[id] = true
	}

	pending, err := m.store.ListPending(ctx, store.ListFilter{})
	if err != nil {
		m.log.Error().Err(err).Msg("monitor: list pending posts")
		return
	}

	now := m.clock.Now()
	for _, p := range pending {
		if p.ScheduledTime == nil || active[p.ID] {
			continue
		}
		overdue := p.ScheduledTime.Before(now)
		m.dispatcher.Register(p.ID, p.UserID, *p.ScheduledTime)
		if !overdue {
			continue
		}
		if err := m.publisher.NotifyOperator(ctx, p.UserID, notify.Delayed(p.ID)); err != nil {
			m.log.Error().Err(err).Int64("post_id", p.ID).Msg("monitor: notify delayed post")
		}
	}
}

// ReminderSweep nudges operators whose unscheduled queue has thinned down
// to their configured threshold or below, at most once per
// ReminderResendWindow (24h) each, regardless of how often the sweep
// itself runs (spec.md §4.7.2).
func (m *Monitor) ReminderSweep(ctx context.Context) {
	enabled, err := m.store.ListReminderEnabledUsers(ctx)
	if err != nil {
		m.log.Error().Err(err).Msg("monitor: list reminder-enabled users")
		return
	}

	now := m.clock.Now()
	for _, rs := range enabled {
		count, err := m.store.CountUnscheduled(ctx, rs.UserID)
		if err != nil {
			m.log.Error().Err(err).Int64("user_id", rs.UserID).Msg("monitor: count unscheduled posts")
			continue
		}
		if count > rs.Threshold {
			continue
		}
		if rs.LastSent != nil && now.Sub(*rs.LastSent) < m.cfg.ReminderResendWindow {
			continue
		}
		if err := m.publisher.NotifyOperator(ctx, rs.UserID, notify.Reminder(count)); err != nil {
			m.log.Error().Err(err).Int64("user_id", rs.UserID).Msg("monitor: notify reminder")
			continue
		}
		sent := now
		rs.LastSent = &sent
		if err := m.store.SetReminderSettings(ctx, rs); err != nil {
			m.log.Error().Err(err).Int64("user_id", rs.UserID).Msg("monitor: persist reminder timestamp")
		}
	}
}

// maybeCleanup runs CleanupSweep at most once per local calendar day,
// the first time Run observes the configured cleanup hour.
func (m *Monitor) maybeCleanup(ctx context.Context) {
	now := m.clock.Now()
	if now.Hour() != m.cfg.CleanupHour {
		return
	}
	today := now.Format("2006-01-02")

	m.mu.Lock()
	if m.lastCleanupDay == today {
		m.mu.Unlock()
		return
	}
	m.lastCleanupDay = today
	m.mu.Unlock()

	m.CleanupSweep(ctx)
}

// CleanupSweep deletes the media files of posts whose cleanup_date has
// passed, then sweeps the media store for files orphaned outside the
// retention window with no owning post at all (spec.md §4.7's daily
// media cleanup).
func (m *Monitor) CleanupSweep(ctx context.Context) {
	ok, err := m.locker.Acquire(ctx, cleanupLockName, time.Hour)
	if err != nil {
		m.log.Error().Err(err).Msg("monitor: acquire cleanup lock")
		return
	}
	if !ok {
		return
	}
	defer func() {
		if err := m.locker.Release(ctx, cleanupLockName); err != nil {
			m.log.Error().Err(err).Msg("monitor: release cleanup lock")
		}
	}()

	now := m.clock.Now()
	refs, err := m.store.PurgeExpired(ctx, now)
	if err != nil {
		m.log.Error().Err(err).Msg("monitor: purge expired posts")
		return
	}
	for _, ref := range refs {
		if err := m.media.Delete(ctx, ref); err != nil {
			m.log.Error().Err(err).Str("ref", ref).Msg("monitor: delete expired media")
		}
	}

	orphaned, err := m.media.Sweep(ctx, now.Add(-mediaRetention))
	if err != nil {
		m.log.Error().Err(err).Msg("monitor: sweep orphaned media")
		return
	}
	if len(orphaned) > 0 {
		m.log.Info().Int("count", len(orphaned)).Msg("monitor: swept orphaned media files")
	}
}
