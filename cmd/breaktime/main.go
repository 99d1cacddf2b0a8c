// Package main is the entry point for the breaktime command.
// Without a subcommand it opens the terminal panel; subcommands talk to
// the running breakd over the session bus.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"breaktime/internal/config"
	"breaktime/internal/ipc"
	"breaktime/internal/ui"

	"github.com/spf13/cobra"
)

// Version information - set by GoReleaser during build
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// callTimeout bounds a single command's daemon call.
const callTimeout = 60 * time.Second

var configPath string

var rootCmd = &cobra.Command{
	Use:   "breaktime",
	Short: "breaktime reminds you to step away from the screen",
	Long: `breaktime shows break reminders on a schedule that follows your account.

Run without arguments to open the panel. The breakd daemon must be running
on your session bus.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		client, err := ipc.Dial()
		if err != nil {
			return err
		}
		defer client.Close()

		return ui.Run(client, ui.NewStyles(cfg), &ui.AppConfig{
			Keys:                  &cfg.Keys,
			ConfirmSkip:           cfg.UX.ConfirmSkip,
			NarrowLayoutThreshold: cfg.UX.NarrowLayoutThreshold,
		})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.Path(), "path to config.yaml")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// withDaemon dials breakd and runs fn with a bounded context.
func withDaemon(cmd *cobra.Command, fn func(ctx context.Context, c *ipc.Client) error) error {
	client, err := ipc.Dial()
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), callTimeout)
	defer cancel()
	return fn(ctx, client)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
