//go:build integration

package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/castline/scheduler/internal/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// openTestStore connects against SCHEDULER_TEST_DATABASE_URL, skipping the
// test entirely when it's unset. This mirrors db/postgres_integration_test.go's
// guarded-integration-test convention but against a real local Postgres
// instance rather than a testcontainers-managed one (see DESIGN.md for why
// testcontainers was dropped from this repo's dependency set).
func openTestStore(t *testing.T) *PostgresStore {
	t.Helper()
	dsn := os.Getenv("SCHEDULER_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("SCHEDULER_TEST_DATABASE_URL not set, skipping Postgres integration test")
	}
	s, err := Open(dsn, 5, zerolog.Nop())
	require.NoError(t, err)
	return s
}

func TestPostgresStore_AddPostRequiresOwnedChannel(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.AddPost(ctx, NewPost{UserID: 999999, ChannelID: 888888, FileRef: "x", Kind: model.MediaPhoto})
	require.ErrorIs(t, err, ErrChannelNotOwned)
}

func TestPostgresStore_FullPostLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AddChannel(ctx, 1, 100, "test channel"))

	id, err := s.AddPost(ctx, NewPost{UserID: 1, ChannelID: 100, FileRef: "/tmp/a.jpg", Kind: model.MediaPhoto, Mode: model.ModeIndividual})
	require.NoError(t, err)

	post, err := s.GetPost(ctx, id)
	require.NoError(t, err)
	require.Equal(t, model.StatusPending, post.Status)
	require.Nil(t, post.ScheduledTime)

	future := time.Now().Add(time.Hour)
	require.NoError(t, s.UpdatePostSchedule(ctx, id, future))

	overdue, err := s.ListOverdue(ctx, 1, time.Now().Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, overdue, 1)

	require.NoError(t, s.MarkPosted(ctx, id))
	post, err = s.GetPost(ctx, id)
	require.NoError(t, err)
	require.Equal(t, model.StatusPosted, post.Status)
}

func TestPostgresStore_RetryFailedPost(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AddChannel(ctx, 2, 200, "retry channel"))
	id, err := s.AddPost(ctx, NewPost{UserID: 2, ChannelID: 200, FileRef: "/tmp/b.jpg", Kind: model.MediaPhoto})
	require.NoError(t, err)

	require.NoError(t, s.MarkFailed(ctx, id, "bot_blocked"))
	require.NoError(t, s.RetryFailedPost(ctx, id))

	post, err := s.GetPost(ctx, id)
	require.NoError(t, err)
	require.Equal(t, model.StatusPending, post.Status)
	require.Nil(t, post.ScheduledTime)
	require.Empty(t, post.FailureReason)
}
