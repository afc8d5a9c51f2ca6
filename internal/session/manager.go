package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/castline/scheduler/internal/store"
	"github.com/rs/zerolog"
)

// ErrChannelNotOwned is returned by any transition that would otherwise
// write a state referencing a channel the operator doesn't own (spec.md
// §4.8's invariant: "every write to Store is guarded by user_has_channel").
var ErrChannelNotOwned = errors.New("session: channel not owned by user")

// Manager tracks one State per operator, authoritative in Store with a
// bbolt SessionCache as a local crash-recovery snapshot (spec.md §4.8,
// grounded on db/bolt.go's embedded-KV-as-cache pattern). Cache is
// optional: nil disables it for deployments that don't run with a local
// data directory.
type Manager struct {
	store store.Store
	cache *store.SessionCache
	log   zerolog.Logger
}

// NewManager constructs a Manager. cache may be nil.
func NewManager(st store.Store, cache *store.SessionCache, log zerolog.Logger) *Manager {
	return &Manager{store: st, cache: cache, log: log}
}

// Get returns userID's current state, defaulting to Idle if none is
// recorded yet.
func (m *Manager) Get(ctx context.Context, userID int64) (State, error) {
	tag, body, found, err := m.store.GetSession(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("session: load state: %w", err)
	}
	if !found {
		return Idle{}, nil
	}
	return Decode(tag, body)
}

// Set persists a new state for userID, writing through to Store first
// (authoritative) and then best-effort to the bbolt cache.
func (m *Manager) Set(ctx context.Context, userID int64, s State) error {
	tag, body, err := Encode(s)
	if err != nil {
		return err
	}
	if err := m.store.SetSession(ctx, userID, tag, body); err != nil {
		return fmt.Errorf("session: persist state: %w", err)
	}
	if m.cache != nil {
		if err := m.cache.Put(userID, body); err != nil {
			m.log.Error().Err(err).Int64("user_id", userID).Msg("session: cache write failed")
		}
	}
	return nil
}

// Reset returns userID to Idle and drops its cache snapshot, following
// SessionCache.Delete's documented "once Postgres confirms Idle" contract.
func (m *Manager) Reset(ctx context.Context, userID int64) error {
	if err := m.store.DeleteSession(ctx, userID); err != nil {
		return fmt.Errorf("session: clear state: %w", err)
	}
	if m.cache != nil {
		if err := m.cache.Delete(userID); err != nil {
			m.log.Error().Err(err).Int64("user_id", userID).Msg("session: cache delete failed")
		}
	}
	return nil
}

// requireChannel enforces the per-state invariant that any state naming a
// channel must name one the operator actually owns.
func (m *Manager) requireChannel(ctx context.Context, userID, channelID int64) error {
	ok, err := m.store.UserHasChannel(ctx, userID, channelID)
	if err != nil {
		return fmt.Errorf("session: check channel ownership: %w", err)
	}
	if !ok {
		return ErrChannelNotOwned
	}
	return nil
}

// EnterMode1 moves userID into bulk-upload mode against channelID.
func (m *Manager) EnterMode1(ctx context.Context, userID, channelID int64) error {
	if err := m.requireChannel(ctx, userID, channelID); err != nil {
		return err
	}
	return m.Set(ctx, userID, Mode1Uploading{Channel: channelID})
}

// EnterMode2 moves userID into individual-upload mode against channelID.
func (m *Manager) EnterMode2(ctx context.Context, userID, channelID int64) error {
	if err := m.requireChannel(ctx, userID, channelID); err != nil {
		return err
	}
	return m.Set(ctx, userID, Mode2Uploading{Channel: channelID})
}

// EnterRecurringFlow starts the recurring-post wizard for channelID.
func (m *Manager) EnterRecurringFlow(ctx context.Context, userID, channelID int64) error {
	if err := m.requireChannel(ctx, userID, channelID); err != nil {
		return err
	}
	return m.Set(ctx, userID, RecurringAwaitingMedia{Channel: channelID})
}

// AdvanceRecurringToDescription records the uploaded media file and moves
// the recurring wizard to its caption step. The caller must already have
// verified userID was in RecurringAwaitingMedia{channelID}.
func (m *Manager) AdvanceRecurringToDescription(ctx context.Context, userID, channelID int64, fileRef string) error {
	if err := m.requireChannel(ctx, userID, channelID); err != nil {
		return err
	}
	return m.Set(ctx, userID, RecurringAwaitingDescription{Channel: channelID, File: fileRef})
}

// AdvanceRecurringToSchedule records the newly created post id and moves
// the recurring wizard to its schedule-input step.
func (m *Manager) AdvanceRecurringToSchedule(ctx context.Context, userID, postID int64) error {
	return m.Set(ctx, userID, RecurringAwaitingSchedule{PostID: postID})
}

// EnterChannelRegistration starts the add-channel flow.
func (m *Manager) EnterChannelRegistration(ctx context.Context, userID int64) error {
	return m.Set(ctx, userID, AwaitingChannelId{})
}

// AdvanceChannelRegistrationToName records the external channel id and
// asks for its display name.
func (m *Manager) AdvanceChannelRegistrationToName(ctx context.Context, userID, pendingChannelID int64) error {
	return m.Set(ctx, userID, AwaitingChannelName{PendingChannelID: pendingChannelID})
}

// EnterBatchNaming starts a new batch against channelID.
func (m *Manager) EnterBatchNaming(ctx context.Context, userID, channelID int64) error {
	if err := m.requireChannel(ctx, userID, channelID); err != nil {
		return err
	}
	return m.Set(ctx, userID, AwaitingBatchName{Channel: channelID})
}

// EnterBatchMode1 moves userID into bulk upload scoped to an existing batch.
func (m *Manager) EnterBatchMode1(ctx context.Context, userID, batchID int64) error {
	return m.Set(ctx, userID, BatchMode1Uploading{Batch: batchID})
}

// EnterBatchMode2 moves userID into individual upload scoped to an
// existing batch.
func (m *Manager) EnterBatchMode2(ctx context.Context, userID, batchID int64) error {
	return m.Set(ctx, userID, BatchMode2Uploading{Batch: batchID})
}

// EnterBulkEdit asks the operator for a bulk-edit directive applying to
// postIDs, described to them as scopeLabel.
func (m *Manager) EnterBulkEdit(ctx context.Context, userID int64, postIDs []int64, scopeLabel string) error {
	return m.Set(ctx, userID, AwaitingBulkEditInput{PostIDs: postIDs, ScopeLabel: scopeLabel})
}

// EnterRescheduleSettings asks the operator for a new default scheduling window.
func (m *Manager) EnterRescheduleSettings(ctx context.Context, userID int64) error {
	return m.Set(ctx, userID, AwaitingRescheduleSettings{})
}

// EnterBackupNaming asks the operator for a name for a new backup.
func (m *Manager) EnterBackupNaming(ctx context.Context, userID int64) error {
	return m.Set(ctx, userID, AwaitingBackupName{})
}

// EnterCaptionInput asks for the caption of the nextIndex'th album item
// of postID, scoped to channelID.
func (m *Manager) EnterCaptionInput(ctx context.Context, userID, postID int64, nextIndex int, channelID int64) error {
	if err := m.requireChannel(ctx, userID, channelID); err != nil {
		return err
	}
	return m.Set(ctx, userID, AwaitingCaptionInput{PostID: postID, NextIndex: nextIndex, Channel: channelID})
}
