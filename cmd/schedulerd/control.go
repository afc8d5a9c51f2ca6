package main

import (
	"context"
	"fmt"
	"time"

	"github.com/castline/scheduler/internal/model"
	"github.com/castline/scheduler/internal/schedulecalc"
	"github.com/castline/scheduler/internal/store"
	"github.com/spf13/cobra"
)

var (
	flagUserID    int64
	flagChannelID int64
)

func addUserChannelFlags(cmd *cobra.Command) {
	cmd.Flags().Int64Var(&flagUserID, "user", 0, "operator user id")
	cmd.Flags().Int64Var(&flagChannelID, "channel", 0, "channel id")
	cmd.MarkFlagRequired("user")
}

func addWindowFlags(cmd *cobra.Command) {
	cmd.Flags().Int("start-hour", 10, "window start hour (0-23)")
	cmd.Flags().Int("end-hour", 20, "window end hour (0-23)")
	cmd.Flags().Int("interval-hours", 2, "hours between posts")
}

func windowFlags(cmd *cobra.Command) (startHour, endHour, interval int, err error) {
	if startHour, err = cmd.Flags().GetInt("start-hour"); err != nil {
		return
	}
	if endHour, err = cmd.Flags().GetInt("end-hour"); err != nil {
		return
	}
	if interval, err = cmd.Flags().GetInt("interval-hours"); err != nil {
		return
	}
	err = schedulecalc.ValidateScheduleParams(startHour, endHour, interval)
	return
}

var scheduleAllCmd = &cobra.Command{
	Use:   "schedule-all",
	Short: "schedule every unscheduled post for a user/channel using their current scheduling config",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		ctx := context.Background()

		cfg, err := a.st.GetSchedulingConfig(ctx, flagUserID)
		if err != nil {
			return err
		}
		posts, err := a.st.ListUnscheduled(ctx, flagUserID, flagChannelID)
		if err != nil {
			return err
		}
		if len(posts) == 0 {
			fmt.Println("nothing to schedule")
			return nil
		}

		anchor := schedulecalc.StartOfTomorrow(a.clk.Now())
		times := schedulecalc.EvenDistribution(cfg.StartHour, cfg.EndHour, len(posts), anchor, cfg.IntervalHour)
		return applySchedule(ctx, a, posts, times)
	},
}

var customIntervalCmd = &cobra.Command{
	Use:   "custom-interval",
	Short: "schedule every unscheduled post for a user/channel at a fixed interval",
	RunE: func(cmd *cobra.Command, args []string) error {
		startHour, endHour, interval, err := windowFlags(cmd)
		if err != nil {
			return err
		}
		a, err := newApp()
		if err != nil {
			return err
		}
		ctx := context.Background()

		posts, err := a.st.ListUnscheduled(ctx, flagUserID, flagChannelID)
		if err != nil {
			return err
		}
		if len(posts) == 0 {
			fmt.Println("nothing to schedule")
			return nil
		}

		anchor := schedulecalc.StartOfTomorrow(a.clk.Now())
		times := schedulecalc.FixedInterval(startHour, endHour, interval, len(posts), anchor)
		return applySchedule(ctx, a, posts, times)
	},
}

var customWindowCmd = &cobra.Command{
	Use:   "custom-window",
	Short: "schedule every unscheduled post for a user/channel evenly across a custom window",
	RunE: func(cmd *cobra.Command, args []string) error {
		startHour, endHour, interval, err := windowFlags(cmd)
		if err != nil {
			return err
		}
		a, err := newApp()
		if err != nil {
			return err
		}
		ctx := context.Background()

		posts, err := a.st.ListUnscheduled(ctx, flagUserID, flagChannelID)
		if err != nil {
			return err
		}
		if len(posts) == 0 {
			fmt.Println("nothing to schedule")
			return nil
		}

		anchor := schedulecalc.StartOfTomorrow(a.clk.Now())
		times := schedulecalc.EvenDistribution(startHour, endHour, len(posts), anchor, interval)
		return applySchedule(ctx, a, posts, times)
	},
}

var customDateCmd = &cobra.Command{
	Use:   "custom-date [input]",
	Short: `schedule every unscheduled post for a user/channel starting from a parsed date/interval ("YYYY-MM-DD HH:MM [interval_hours]")`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		ctx := context.Background()

		parsed, err := schedulecalc.ParseDateInput(args[0], a.clk.Location(), a.clk.Now())
		if err != nil {
			return err
		}

		// Spec §4.2.4: a custom-date schedule must fall inside the
		// operator's default scheduling window; ParseDateInput has no
		// access to that per-operator config, so the caller enforces it.
		cfg, err := a.st.GetSchedulingConfig(ctx, flagUserID)
		if err != nil {
			return err
		}
		if parsed.Start.Hour() < cfg.StartHour || parsed.Start.Hour() >= cfg.EndHour {
			return fmt.Errorf("start time %02d:00 falls outside your scheduling window [%02d:00, %02d:00)", parsed.Start.Hour(), cfg.StartHour, cfg.EndHour)
		}

		posts, err := a.st.ListUnscheduled(ctx, flagUserID, flagChannelID)
		if err != nil {
			return err
		}
		if len(posts) == 0 {
			fmt.Println("nothing to schedule")
			return nil
		}

		interval := parsed.IntervalHours
		if interval <= 0 {
			interval = 1
		}
		times := schedulecalc.CustomDateSchedule(parsed.Start, interval, len(posts))
		for _, t := range times {
			if t.Hour() < cfg.StartHour || t.Hour() >= cfg.EndHour {
				return fmt.Errorf("scheduled time %s falls outside your scheduling window [%02d:00, %02d:00)", t.Format("2006-01-02 15:04"), cfg.StartHour, cfg.EndHour)
			}
		}
		return applySchedule(ctx, a, posts, times)
	},
}

var nextSlotCmd = &cobra.Command{
	Use:   "next-slot",
	Short: "schedule the single oldest unscheduled post for a user/channel into the next available slot",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		ctx := context.Background()

		cfg, err := a.st.GetSchedulingConfig(ctx, flagUserID)
		if err != nil {
			return err
		}
		posts, err := a.st.ListUnscheduled(ctx, flagUserID, flagChannelID)
		if err != nil {
			return err
		}
		if len(posts) == 0 {
			fmt.Println("nothing to schedule")
			return nil
		}

		latest, err := a.st.LatestScheduledTime(ctx, flagUserID)
		if err != nil {
			return err
		}
		anchor := a.clk.Now()
		if latest != nil {
			anchor = *latest
		}
		slot := schedulecalc.NextAvailableSlot(cfg.StartHour, cfg.EndHour, cfg.IntervalHour, anchor)
		return applySchedule(ctx, a, posts[:1], []time.Time{slot})
	},
}

var redistributeCmd = &cobra.Command{
	Use:   "redistribute",
	Short: "clear and re-spread every currently scheduled post for a user/channel evenly across a window",
	RunE: func(cmd *cobra.Command, args []string) error {
		startHour, endHour, interval, err := windowFlags(cmd)
		if err != nil {
			return err
		}
		a, err := newApp()
		if err != nil {
			return err
		}
		ctx := context.Background()

		posts, err := a.st.ClearScheduled(ctx, flagUserID, flagChannelID)
		if err != nil {
			return err
		}
		if len(posts) == 0 {
			fmt.Println("nothing to redistribute")
			return nil
		}

		anchor := schedulecalc.StartOfTomorrow(a.clk.Now())
		times := schedulecalc.EvenDistribution(startHour, endHour, len(posts), anchor, interval)
		return applySchedule(ctx, a, posts, times)
	},
}

var retryFailedCmd = &cobra.Command{
	Use:   "retry-failed",
	Short: "move every failed post for a user/channel back to pending for a fresh schedule attempt",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		ctx := context.Background()

		failed, err := a.st.ListFailed(ctx, flagUserID, flagChannelID)
		if err != nil {
			return err
		}
		for _, p := range failed {
			if err := a.st.RetryFailedPost(ctx, p.ID); err != nil {
				return fmt.Errorf("retry post %d: %w", p.ID, err)
			}
		}
		fmt.Printf("retried %d post(s); run a schedule command to give them new times\n", len(failed))
		return nil
	},
}

var rescheduleFromTodayCmd = &cobra.Command{
	Use:   "reschedule-from-today",
	Short: "reschedule every pending post for a user/channel at a fixed interval starting from tomorrow's window",
	RunE: func(cmd *cobra.Command, args []string) error {
		startHour, endHour, interval, err := windowFlags(cmd)
		if err != nil {
			return err
		}
		a, err := newApp()
		if err != nil {
			return err
		}
		ctx := context.Background()

		cfg := model.SchedulingConfig{UserID: flagUserID, StartHour: startHour, EndHour: endHour, IntervalHour: interval}
		n, err := a.st.RescheduleFromToday(ctx, flagUserID, cfg, flagChannelID, a.clk.Now())
		if err != nil {
			return err
		}
		fmt.Printf("rescheduled %d post(s)\n", n)
		return nil
	},
}

var overdueListCmd = &cobra.Command{
	Use:   "overdue-list",
	Short: "list posts whose scheduled time has passed but are still pending",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		ctx := context.Background()

		posts, err := a.st.ListOverdue(ctx, flagUserID, a.clk.Now())
		if err != nil {
			return err
		}
		for _, p := range posts {
			fmt.Printf("post %d  channel %d  scheduled %s\n", p.ID, p.ChannelID, p.ScheduledTime.Format(time.RFC3339))
		}
		fmt.Printf("%d overdue post(s)\n", len(posts))
		return nil
	},
}

var overdueRescheduleCmd = &cobra.Command{
	Use:   "overdue-reschedule",
	Short: "push every overdue post for a user into the next available slot",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		ctx := context.Background()

		cfg, err := a.st.GetSchedulingConfig(ctx, flagUserID)
		if err != nil {
			return err
		}
		posts, err := a.st.ListOverdue(ctx, flagUserID, a.clk.Now())
		if err != nil {
			return err
		}
		anchor := a.clk.Now()
		for _, p := range posts {
			slot := schedulecalc.NextAvailableSlot(cfg.StartHour, cfg.EndHour, cfg.IntervalHour, anchor)
			if err := a.st.UpdatePostSchedule(ctx, p.ID, slot); err != nil {
				return fmt.Errorf("reschedule post %d: %w", p.ID, err)
			}
			anchor = slot
		}
		fmt.Printf("rescheduled %d overdue post(s)\n", len(posts))
		return nil
	},
}

var overduePostNowCmd = &cobra.Command{
	Use:   "overdue-post-now [post-id]",
	Short: "publish a single overdue post immediately instead of waiting for the next sweep",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		ctx := context.Background()

		var postID int64
		if _, err := fmt.Sscanf(args[0], "%d", &postID); err != nil {
			return fmt.Errorf("invalid post id %q", args[0])
		}

		if _, err := a.st.GetPost(ctx, postID); err != nil {
			return err
		}

		// Route through the dispatcher's normal fire path (spec.md §4.7:
		// "post all overdue now ... goes through the normal publish
		// path"), so the user_has_channel check, media-presence check,
		// retry/classification, and recurrence handoff all still apply
		// (invariant I6, property P8) instead of publishing directly here.
		a.disp.FireNow(postID)
		return nil
	},
}

// applySchedule pairs posts with times positionally and persists the
// result via a single BulkUpdateSchedules call, matching the original's
// "compute then bulk-assign" two-phase shape (calculate_schedule_times
// followed by a bulk Database update in the Python source).
func applySchedule(ctx context.Context, a *app, posts []*model.Post, times []time.Time) error {
	n := len(posts)
	if len(times) < n {
		n = len(times)
	}
	entries := make([]store.ScheduleEntry, n)
	for i := 0; i < n; i++ {
		entries[i] = store.ScheduleEntry{PostID: posts[i].ID, Time: times[i]}
	}
	if err := a.st.BulkUpdateSchedules(ctx, entries); err != nil {
		return err
	}
	fmt.Printf("scheduled %d post(s)\n", n)
	return nil
}

func init() {
	controlCmds := []*cobra.Command{
		scheduleAllCmd, customIntervalCmd, customWindowCmd, customDateCmd, nextSlotCmd,
		redistributeCmd, retryFailedCmd, rescheduleFromTodayCmd,
		overdueListCmd, overdueRescheduleCmd,
	}
	for _, c := range controlCmds {
		addUserChannelFlags(c)
		rootCmd.AddCommand(c)
	}
	for _, c := range []*cobra.Command{customIntervalCmd, customWindowCmd, redistributeCmd, rescheduleFromTodayCmd} {
		addWindowFlags(c)
	}
	rootCmd.AddCommand(overduePostNowCmd)

	backupCmd.AddCommand(backupCreateCmd, backupListCmd, backupRestoreCmd)
	addUserChannelFlags(backupCreateCmd)
	addUserChannelFlags(backupListCmd)
	addUserChannelFlags(backupRestoreCmd)
	rootCmd.AddCommand(backupCmd)
}
