package publisher

import (
	"context"

	"github.com/castline/scheduler/internal/model"
)

// channelLister is the slice of Store the ACL adapter needs; kept narrow
// so tests can fake it without pulling in the whole Store contract.
type channelLister interface {
	UserHasChannel(ctx context.Context, userID, channelID int64) (bool, error)
	ListChannels(ctx context.Context, userID int64) ([]model.Channel, error)
}

// StoreACL implements ACL directly against Store's own channel
// bookkeeping, since channel registration (spec.md §4.1) already lives
// there and there is no separate ownership service to call out to.
type StoreACL struct {
	store channelLister
}

// NewStoreACL wraps st as an ACL.
func NewStoreACL(st channelLister) *StoreACL {
	return &StoreACL{store: st}
}

func (a *StoreACL) UserHasChannel(ctx context.Context, userID, channelID int64) (bool, error) {
	return a.store.UserHasChannel(ctx, userID, channelID)
}

func (a *StoreACL) UserChannels(ctx context.Context, userID int64) ([]model.Channel, error) {
	return a.store.ListChannels(ctx, userID)
}
