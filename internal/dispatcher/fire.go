package dispatcher

import (
	"context"
	"fmt"
	"time"

	"github.com/castline/scheduler/internal/model"
	"github.com/castline/scheduler/internal/notify"
	"github.com/castline/scheduler/internal/recurrence"
	"github.com/castline/scheduler/internal/store"
)

// runFire executes spec.md §4.5's fire path for postID: pre-delay, load,
// ACL check, media check, publish-with-retry, then the success/failure
// state transition. It runs inside its own bounded goroutine (see fire in
// dispatcher.go); all mutation goes through Store, which serializes per
// row, so concurrent fires for different posts never race each other.
func (d *Dispatcher) runFire(postID int64) {
	ctx := context.Background()
	log := d.log.With().Int64("post_id", postID).Logger()

	time.Sleep(d.cfg.PreFireDelay)

	post, err := d.store.GetPost(ctx, postID)
	if err != nil {
		if err == store.ErrNotFound {
			return
		}
		log.Error().Err(err).Msg("dispatcher: load post")
		return
	}
	if post.Status != model.StatusPending {
		return
	}

	ok, err := d.acl.UserHasChannel(ctx, post.UserID, post.ChannelID)
	if err != nil {
		log.Error().Err(err).Msg("dispatcher: check channel ownership")
		return
	}
	if !ok {
		d.terminalFail(ctx, post, "channel access denied", notify.AccessDenied(post.ID))
		return
	}

	if err := d.checkMedia(ctx, post); err != nil {
		d.terminalFail(ctx, post, "file not found", notify.MediaMissing(post.ID))
		return
	}

	classified := d.publishWithRetry(ctx, post)
	if classified == nil {
		d.onSuccess(ctx, post)
		return
	}

	reason := fmt.Sprintf("%s: %v", classified.Kind, classified.Cause)
	d.terminalFail(ctx, post, reason, notify.Failure(post.ID, classified))
}

// checkMedia verifies every file a post references is still present,
// per spec.md §4.5 step 4 and property P10 (an album with any missing
// child file fails as a whole, before publishing any item).
func (d *Dispatcher) checkMedia(ctx context.Context, post *model.Post) error {
	if post.Kind == model.MediaAlbum {
		for _, item := range post.Album {
			if _, err := d.media.Size(ctx, item.FileRef); err != nil {
				return err
			}
		}
		return nil
	}
	_, err := d.media.Size(ctx, post.FileRef)
	return err
}

func (d *Dispatcher) terminalFail(ctx context.Context, post *model.Post, reason, operatorText string) {
	if err := d.store.MarkFailed(ctx, post.ID, reason); err != nil {
		d.log.Error().Err(err).Int64("post_id", post.ID).Msg("dispatcher: mark failed")
	}
	if err := d.publisher.NotifyOperator(ctx, post.UserID, operatorText); err != nil {
		d.log.Warn().Err(err).Int64("post_id", post.ID).Msg("dispatcher: notify operator failed")
	}
}

// onSuccess handles a successful publish: terminal completion for a
// one-shot post, or the recurrence tail for a recurring one (spec.md §4.6).
func (d *Dispatcher) onSuccess(ctx context.Context, post *model.Post) {
	if post.Recurrence == nil {
		if err := d.store.MarkPosted(ctx, post.ID); err != nil {
			d.log.Error().Err(err).Int64("post_id", post.ID).Msg("dispatcher: mark posted")
		}
		d.notifySuccess(ctx, post, false)
		return
	}

	out := recurrence.Advance(post.Recurrence, d.clock.Now())

	var next *time.Time
	if !out.Terminate {
		t := out.Next
		next = &t
	}

	if err := d.store.AdvanceRecurrence(ctx, post.ID, out.PostedCount, next); err != nil {
		d.log.Error().Err(err).Int64("post_id", post.ID).Msg("dispatcher: advance recurrence")
		return
	}

	d.notifySuccess(ctx, post, true)

	if next != nil {
		d.Register(post.ID, post.UserID, *next)
	}
}

func (d *Dispatcher) notifySuccess(ctx context.Context, post *model.Post, recurring bool) {
	if err := d.publisher.NotifyOperator(ctx, post.UserID, notify.Success(post.ID, recurring)); err != nil {
		d.log.Warn().Err(err).Int64("post_id", post.ID).Msg("dispatcher: notify operator success")
	}
}
