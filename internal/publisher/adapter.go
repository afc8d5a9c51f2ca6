package publisher

import (
	"context"

	"github.com/castline/scheduler/internal/model"
	"golang.org/x/time/rate"
)

// Transport is the narrow capability a concrete Publisher adapter wraps:
// one outbound call per artifact to the external messaging platform. The
// wire protocol of that platform is outside this system's scope (spec.md
// §1's Non-goals); RateLimitedAdapter is the scaffold every real
// transport plugs into.
type Transport interface {
	SendSingle(ctx context.Context, channelID int64, kind model.MediaKind, fileRef, caption string) error
	SendAlbum(ctx context.Context, channelID int64, items []model.AlbumItem, captionOnFirst string) error
	SendMessage(ctx context.Context, userID int64, text string) error
}

// RateLimitedAdapter implements Publisher over a Transport, bounding the
// outbound call rate with a token bucket (spec.md §5's connection-pool
// policy, complementing the RateLimited taxonomy entry in
// internal/classify by making the client-side limit explicit rather than
// relying solely on the remote side's 429s).
type RateLimitedAdapter struct {
	transport Transport
	limiter   *rate.Limiter
}

// NewRateLimitedAdapter builds an adapter allowing requestsPerSecond
// sustained calls with a burst allowance of burst.
func NewRateLimitedAdapter(t Transport, requestsPerSecond float64, burst int) *RateLimitedAdapter {
	return &RateLimitedAdapter{
		transport: t,
		limiter:   rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
	}
}

func (a *RateLimitedAdapter) PublishSingle(ctx context.Context, channelID int64, kind model.MediaKind, fileRef, caption string) error {
	if err := a.limiter.Wait(ctx); err != nil {
		return err
	}
	return a.transport.SendSingle(ctx, channelID, kind, fileRef, caption)
}

func (a *RateLimitedAdapter) PublishAlbum(ctx context.Context, channelID int64, items []model.AlbumItem, captionOnFirst string) error {
	if err := a.limiter.Wait(ctx); err != nil {
		return err
	}
	return a.transport.SendAlbum(ctx, channelID, items, captionOnFirst)
}

func (a *RateLimitedAdapter) NotifyOperator(ctx context.Context, userID int64, text string) error {
	if err := a.limiter.Wait(ctx); err != nil {
		return err
	}
	return a.transport.SendMessage(ctx, userID, text)
}
