// Package backup serializes a snapshot of an operator's scheduled posts to
// YAML (spec.md §6's backup create/list/restore) and restores one back
// into the store, the same encode-to-bytes/decode-from-bytes shape
// network.ZitiConfig uses for its own config payloads.
package backup

import (
	"time"

	"github.com/castline/scheduler/internal/model"
	"gopkg.in/yaml.v3"
)

// Snapshot is the YAML document a Backup.Payload holds.
type Snapshot struct {
	Version   int        `yaml:"version"`
	CreatedAt time.Time  `yaml:"created_at"`
	Posts     []PostItem `yaml:"posts"`
}

// PostItem is one post as captured in a backup, stripped of its id (a
// restore always creates fresh rows) and its lifecycle fields.
type PostItem struct {
	ChannelID     int64             `yaml:"channel_id"`
	FileRef       string            `yaml:"file_ref"`
	Kind          model.MediaKind   `yaml:"kind"`
	Album         []model.AlbumItem `yaml:"album,omitempty"`
	Caption       string            `yaml:"caption"`
	Mode          model.Mode        `yaml:"mode"`
	ScheduledTime *time.Time        `yaml:"scheduled_time,omitempty"`
	Recurrence    *model.Recurrence `yaml:"recurrence,omitempty"`
}

const schemaVersion = 1

// Build encodes posts into a Snapshot payload ready for Store.SaveBackup.
func Build(posts []*model.Post, now time.Time) ([]byte, error) {
	snap := Snapshot{
		Version:   schemaVersion,
		CreatedAt: now,
		Posts:     make([]PostItem, 0, len(posts)),
	}
	for _, p := range posts {
		snap.Posts = append(snap.Posts, PostItem{
			ChannelID:     p.ChannelID,
			FileRef:       p.FileRef,
			Kind:          p.Kind,
			Album:         p.Album,
			Caption:       p.Caption,
			Mode:          p.Mode,
			ScheduledTime: p.ScheduledTime,
			Recurrence:    p.Recurrence,
		})
	}
	return yaml.Marshal(snap)
}

// Parse decodes a Backup.Payload back into a Snapshot.
func Parse(payload []byte) (Snapshot, error) {
	var snap Snapshot
	if err := yaml.Unmarshal(payload, &snap); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// RestoreMode controls how a restore reconciles with any posts a channel
// already has scheduled (spec.md §6: "add or replace mode").
type RestoreMode string

const (
	RestoreAdd     RestoreMode = "add"
	RestoreReplace RestoreMode = "replace"
)

// NewPosts converts a Snapshot's items into store.NewPost-shaped values for
// the given user, skipping items whose file no longer exists on disk when
// includeMissingFiles is false. exists is injected so callers can probe
// the configured media.Store without this package importing it directly.
func (s Snapshot) NewPosts(userID int64, includeMissingFiles bool, exists func(fileRef string) bool) []PostItem {
	if includeMissingFiles || exists == nil {
		return s.Posts
	}
	kept := make([]PostItem, 0, len(s.Posts))
	for _, item := range s.Posts {
		if len(item.Album) == 0 && (item.FileRef == "" || exists(item.FileRef)) {
			kept = append(kept, item)
			continue
		}
		allMissing := true
		for _, a := range item.Album {
			if exists(a.FileRef) {
				allMissing = false
				break
			}
		}
		if !allMissing {
			kept = append(kept, item)
		}
	}
	return kept
}
