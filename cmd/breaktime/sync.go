package main

import (
	"context"
	"fmt"
	"io"

	"breaktime/internal/ipc"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Pull the remote schedule and push unsent break time",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDaemon(cmd, func(ctx context.Context, c *ipc.Client) error {
			rep, err := c.SyncNow(ctx)
			if err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), rep)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

func printReport(w io.Writer, rep ipc.Report) {
	if !rep.SignedIn {
		fmt.Fprintln(w, "Not signed in; using the local schedule.")
		return
	}
	switch {
	case rep.FetchError != "":
		fmt.Fprintf(w, "Schedule: kept current (%s)\n", rep.FetchError)
	case rep.NotFound:
		fmt.Fprintln(w, "Schedule: none stored remotely, kept current")
	case rep.ConfigChanged:
		fmt.Fprintln(w, "Schedule: updated")
	default:
		fmt.Fprintln(w, "Schedule: unchanged")
	}
	if rep.UsageError != "" {
		fmt.Fprintf(w, "Usage:    not sent (%s)\n", rep.UsageError)
	} else if rep.UsageSent > 0 {
		fmt.Fprintf(w, "Usage:    sent %ds of breaks\n", rep.UsageSent)
	}
	if rep.Rearmed && !rep.NextFire.IsZero() {
		fmt.Fprintf(w, "Next:     %s\n", rep.NextFire.Local().Format("Mon 15:04"))
	}
}
