package backup

import (
	"testing"
	"time"

	"github.com/castline/scheduler/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePosts() []*model.Post {
	sched := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	return []*model.Post{
		{ChannelID: 1, FileRef: "a.jpg", Kind: model.MediaPhoto, Caption: "hi", Mode: model.ModeIndividual, ScheduledTime: &sched},
		{ChannelID: 1, FileRef: "", Kind: model.MediaAlbum, Album: []model.AlbumItem{{FileRef: "b.jpg"}, {FileRef: "c.jpg"}}, Mode: model.ModeBulk},
	}
}

func TestBuildThenParse_RoundTrips(t *testing.T) {
	now := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	payload, err := Build(samplePosts(), now)
	require.NoError(t, err)

	snap, err := Parse(payload)
	require.NoError(t, err)

	assert.Equal(t, 1, snap.Version)
	assert.True(t, snap.CreatedAt.Equal(now))
	require.Len(t, snap.Posts, 2)
	assert.Equal(t, "a.jpg", snap.Posts[0].FileRef)
	assert.Equal(t, model.MediaAlbum, snap.Posts[1].Kind)
	require.Len(t, snap.Posts[1].Album, 2)
}

func TestNewPosts_IncludeMissingFilesKeepsEverything(t *testing.T) {
	payload, err := Build(samplePosts(), time.Now().UTC())
	require.NoError(t, err)
	snap, err := Parse(payload)
	require.NoError(t, err)

	kept := snap.NewPosts(1, true, func(string) bool { return false })
	assert.Len(t, kept, 2)
}

func TestNewPosts_DropsItemsWhoseFilesAreAllMissing(t *testing.T) {
	payload, err := Build(samplePosts(), time.Now().UTC())
	require.NoError(t, err)
	snap, err := Parse(payload)
	require.NoError(t, err)

	exists := func(ref string) bool { return ref == "b.jpg" }
	kept := snap.NewPosts(1, false, exists)

	require.Len(t, kept, 1)
	assert.Equal(t, model.MediaAlbum, kept[0].Kind)
}
