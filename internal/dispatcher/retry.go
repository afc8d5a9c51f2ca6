package dispatcher

import (
	"context"
	"errors"
	"time"

	"github.com/castline/scheduler/internal/classify"
	"github.com/castline/scheduler/internal/model"
	"github.com/cenkalti/backoff/v4"
)

// waitBackOff drives backoff.Retry's sleep intervals from a value set
// just before each failing attempt returns. The retry *durations*
// themselves come from classify.Classify's exact formulas (spec.md §4.4);
// backoff/v4 supplies the retry-budget bookkeeping and sleep loop rather
// than a hand-rolled one, per SPEC_FULL §B/§A.
type waitBackOff struct {
	next time.Duration
}

func (w *waitBackOff) NextBackOff() time.Duration { return w.next }
func (w *waitBackOff) Reset()                     {}

// publishAttemptFailed wraps a classified, non-terminal publish error so
// it can flow back out of backoff.Retry once the retry budget is spent.
type publishAttemptFailed struct {
	classified *classify.Error
}

func (e *publishAttemptFailed) Error() string { return e.classified.Error() }
func (e *publishAttemptFailed) Unwrap() error { return e.classified }

// publishWithRetry executes the publish call for post, retrying
// retryable classified errors up to the configured budget (spec.md §4.5:
// MAX_RETRIES=3, i.e. 4 total attempts). It returns nil on success or the
// final classify.Error that ended the attempt loop.
func (d *Dispatcher) publishWithRetry(ctx context.Context, post *model.Post) *classify.Error {
	attempt := 0
	wait := &waitBackOff{}

	operation := func() error {
		var pubErr error
		if post.Kind == model.MediaAlbum {
			pubErr = d.publisher.PublishAlbum(ctx, post.ChannelID, post.Album, post.Caption)
		} else {
			pubErr = d.publisher.PublishSingle(ctx, post.ChannelID, post.Kind, post.FileRef, post.Caption)
		}
		if pubErr == nil {
			return nil
		}

		ce := classify.Classify(pubErr, attempt)
		if !ce.Retryable {
			return backoff.Permanent(&publishAttemptFailed{classified: ce})
		}

		if _, incErr := d.store.IncrementRetry(ctx, post.ID); incErr != nil {
			d.log.Error().Err(incErr).Int64("post_id", post.ID).Msg("dispatcher: increment retry")
		}
		attempt++
		wait.next = ce.RetryAfter
		return &publishAttemptFailed{classified: ce}
	}

	bo := backoff.WithMaxRetries(wait, uint64(d.cfg.MaxRetries))
	err := backoff.Retry(operation, bo)
	if err == nil {
		return nil
	}

	var failed *publishAttemptFailed
	if errors.As(err, &failed) {
		return failed.classified
	}
	return classify.Classify(err, attempt)
}
