package publisher

import (
	"context"

	"github.com/castline/scheduler/internal/model"
	"github.com/rs/zerolog"
)

// LoggingTransport is the Transport cmd/schedulerd wires by default: it
// records every send as a structured log line instead of reaching an
// external messaging platform. It lets the rest of the system (retry,
// classification, recurrence, reconciliation) run end to end without a
// concrete platform client, and gives operators a drop-in point to swap
// in a real one.
type LoggingTransport struct {
	log zerolog.Logger
}

// NewLoggingTransport builds a Transport that only logs.
func NewLoggingTransport(log zerolog.Logger) *LoggingTransport {
	return &LoggingTransport{log: log}
}

func (t *LoggingTransport) SendSingle(ctx context.Context, channelID int64, kind model.MediaKind, fileRef, caption string) error {
	t.log.Info().
		Int64("channel_id", channelID).
		Str("kind", string(kind)).
		Str("file_ref", fileRef).
		Msg("publish single")
	return nil
}

func (t *LoggingTransport) SendAlbum(ctx context.Context, channelID int64, items []model.AlbumItem, captionOnFirst string) error {
	t.log.Info().
		Int64("channel_id", channelID).
		Int("items", len(items)).
		Msg("publish album")
	return nil
}

func (t *LoggingTransport) SendMessage(ctx context.Context, userID int64, text string) error {
	t.log.Info().
		Int64("user_id", userID).
		Str("text", text).
		Msg("notify operator")
	return nil
}
