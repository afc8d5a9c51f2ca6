package main

import (
	"context"
	"fmt"
	"time"

	"github.com/castline/scheduler/internal/backup"
	"github.com/castline/scheduler/internal/store"
	"github.com/spf13/cobra"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "create, list, and restore named snapshots of a user's scheduled posts",
}

var backupCreateCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "snapshot every pending post for a user/channel into a named backup",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		ctx := context.Background()

		posts, err := a.st.ListPending(ctx, store.ListFilter{UserID: flagUserID, ChannelID: flagChannelID})
		if err != nil {
			return err
		}
		payload, err := backup.Build(posts, a.clk.Now())
		if err != nil {
			return err
		}
		id, err := a.st.SaveBackup(ctx, flagUserID, args[0], payload)
		if err != nil {
			return err
		}
		fmt.Printf("saved backup %d (%d post(s))\n", id, len(posts))
		return nil
	},
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "list a user's saved backups",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		ctx := context.Background()

		backups, err := a.st.ListBackups(ctx, flagUserID)
		if err != nil {
			return err
		}
		for _, b := range backups {
			fmt.Printf("%d  %-20s  %s\n", b.ID, b.Name, b.CreatedAt.Format(time.RFC3339))
		}
		return nil
	},
}

var (
	flagRestoreMode         string
	flagIncludeMissingFiles bool
)

var backupRestoreCmd = &cobra.Command{
	Use:   "restore [backup-id]",
	Short: "restore a backup's posts back into the store for a user/channel",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		ctx := context.Background()

		var backupID int64
		if _, err := fmt.Sscanf(args[0], "%d", &backupID); err != nil {
			return fmt.Errorf("invalid backup id %q", args[0])
		}

		b, err := a.st.GetBackup(ctx, backupID)
		if err != nil {
			return err
		}
		snap, err := backup.Parse(b.Payload)
		if err != nil {
			return err
		}

		mode := backup.RestoreMode(flagRestoreMode)
		if mode == backup.RestoreReplace {
			if _, err := a.st.ClearScheduled(ctx, flagUserID, flagChannelID); err != nil {
				return err
			}
		}

		exists := func(ref string) bool {
			_, err := a.media.Size(ctx, ref)
			return err == nil
		}
		items := snap.NewPosts(flagUserID, flagIncludeMissingFiles, exists)

		created := 0
		for _, item := range items {
			np := store.NewPost{
				UserID:    flagUserID,
				ChannelID: item.ChannelID,
				FileRef:   item.FileRef,
				Kind:      item.Kind,
				Album:     item.Album,
				Caption:   item.Caption,
				Mode:      item.Mode,
			}
			id, err := a.st.AddPost(ctx, np)
			if err != nil {
				return fmt.Errorf("restore post: %w", err)
			}
			if item.ScheduledTime != nil {
				if err := a.st.UpdatePostSchedule(ctx, id, *item.ScheduledTime); err != nil {
					return err
				}
			}
			created++
		}
		fmt.Printf("restored %d post(s) from backup %d\n", created, backupID)
		return nil
	},
}

func init() {
	backupRestoreCmd.Flags().StringVar(&flagRestoreMode, "mode", string(backup.RestoreAdd), `"add" or "replace"`)
	backupRestoreCmd.Flags().BoolVar(&flagIncludeMissingFiles, "include-missing-files", false, "restore posts even if their media file is no longer on disk")
}
