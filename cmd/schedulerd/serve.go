package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/castline/scheduler/internal/store"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "run the dispatcher and monitor as a long-lived daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		if err := rehydrate(ctx, a); err != nil {
			return err
		}

		a.log.Info().Msg("starting monitor")
		go a.mon.Run(ctx)

		<-ctx.Done()
		a.log.Info().Msg("shutting down")
		a.disp.Stop()
		return nil
	},
}

// rehydrate re-registers every currently pending, scheduled post with the
// Dispatcher's in-memory timer table on process start, the same recovery
// path Monitor.Reconcile performs on its periodic sweep (spec.md §4.7's
// "fresh process has an empty timer table" edge case).
func rehydrate(ctx context.Context, a *app) error {
	pending, err := a.st.ListPending(ctx, store.ListFilter{})
	if err != nil {
		return err
	}
	registered := 0
	for _, p := range pending {
		if p.ScheduledTime == nil {
			continue
		}
		a.disp.Register(p.ID, p.UserID, *p.ScheduledTime)
		registered++
	}
	a.log.Info().Int("registered", registered).Msg("rehydrated dispatcher timer table")
	return nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
