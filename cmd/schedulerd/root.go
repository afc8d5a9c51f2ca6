package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// cfgFile holds the path to an optional config file, bound the same way
// cli.RootCmd's --config flag is: flags and env vars still take
// precedence once internal/config.Load reads SCHEDULER_-prefixed
// environment variables, but a file lets an operator check in a
// non-secret baseline.
var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "schedulerd",
	Short: "durable, multi-tenant scheduled message dispatcher",
	Long: `schedulerd schedules media posts for future delivery across channel
destinations, dispatches them at their scheduled time with automatic retry
and error classification, and reconciles its in-memory timer table against
the durable store on a periodic sweep.

Run "schedulerd serve" to start the dispatcher and monitor daemon, or use
the control subcommands (schedule-all, next-slot, custom-date,
custom-interval, custom-window, redistribute, retry-failed,
reschedule-from-today, overdue-list, overdue-reschedule,
overdue-post-now, backup) to operate on the same store a
running daemon uses.`,
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default none; environment variables take precedence)")
}

func initConfig() {
	if cfgFile == "" {
		return
	}
	viper.SetConfigFile(cfgFile)
	if err := viper.ReadInConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to read config file %s: %v\n", cfgFile, err)
		return
	}
	for _, key := range viper.AllKeys() {
		envKey := "SCHEDULER_" + key
		if os.Getenv(envKey) == "" {
			os.Setenv(envKey, fmt.Sprintf("%v", viper.Get(key)))
		}
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
