package main

import (
	"context"
	"fmt"

	"breaktime/internal/ipc"

	"github.com/spf13/cobra"
)

var breakCmd = &cobra.Command{
	Use:     "break",
	Aliases: []string{"b"},
	Short:   "Start, finish or skip a break",
}

var breakStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a break now",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDaemon(cmd, func(ctx context.Context, c *ipc.Client) error {
			if err := c.StartBreak(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Break started")
			return nil
		})
	},
}

var breakFinishCmd = &cobra.Command{
	Use:   "finish",
	Short: "Finish the active break",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDaemon(cmd, func(ctx context.Context, c *ipc.Client) error {
			elapsed, err := c.FinishBreak(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Break finished after %s\n", elapsed)
			return nil
		})
	},
}

var breakSkipCmd = &cobra.Command{
	Use:   "skip",
	Short: "Skip the active break without counting it",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDaemon(cmd, func(ctx context.Context, c *ipc.Client) error {
			if err := c.SkipBreak(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Break skipped")
			return nil
		})
	},
}

func init() {
	breakCmd.AddCommand(breakStartCmd, breakFinishCmd, breakSkipCmd)
	rootCmd.AddCommand(breakCmd)
}
