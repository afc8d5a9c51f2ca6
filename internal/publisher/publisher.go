// Package publisher defines the external contracts C4 (Publisher) and ACL
// that the core scheduling subsystem depends on but does not implement
// (spec.md §1's Non-goals: transport and user/channel registration are
// external collaborators). Dispatcher and Monitor are written against
// these interfaces only.
package publisher

import (
	"context"

	"github.com/castline/scheduler/internal/classify"
	"github.com/castline/scheduler/internal/model"
)

// Publisher sends a single artifact or an album to a channel on the
// external messaging platform. Spec.md §4.3.
type Publisher interface {
	PublishSingle(ctx context.Context, channelID int64, kind model.MediaKind, fileRef string, caption string) error
	PublishAlbum(ctx context.Context, channelID int64, items []model.AlbumItem, captionOnFirst string) error
	NotifyOperator(ctx context.Context, userID int64, text string) error
}

// ACL exposes the ownership checks the core must consult before any write
// or publish that associates a post with a channel (invariant I6).
type ACL interface {
	UserHasChannel(ctx context.Context, userID, channelID int64) (bool, error)
	UserChannels(ctx context.Context, userID int64) ([]model.Channel, error)
}

// Error re-exports classify.Error so callers outside internal/classify
// (Dispatcher, Monitor, notify) can construct and match on it through the
// Publisher package boundary without importing classify directly for the
// common case of "did publishing fail, and how should I react".
type Error = classify.Error
