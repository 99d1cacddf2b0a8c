package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"breaktime/internal/engine"
	"breaktime/internal/ipc"
	"breaktime/internal/schedule"

	"github.com/spf13/cobra"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show reminder, break and account status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDaemon(cmd, func(ctx context.Context, c *ipc.Client) error {
			st, err := c.Status(ctx)
			if err != nil {
				return err
			}
			if statusJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(st)
			}
			printStatus(cmd.OutOrStdout(), st)
			return nil
		})
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "print the raw status as JSON")
	rootCmd.AddCommand(statusCmd)
}

func printStatus(w io.Writer, st engine.Status) {
	switch {
	case !st.SignedIn:
		fmt.Fprintln(w, "Account:   signed out")
	case st.Organization != "":
		fmt.Fprintf(w, "Account:   %s (%s)\n", st.Email, st.Organization)
	case st.Pro:
		fmt.Fprintf(w, "Account:   %s (pro)\n", st.Email)
	default:
		fmt.Fprintf(w, "Account:   %s (trial, %d days left)\n", st.Email, st.TrialDaysRemaining)
	}

	printSchedule(w, st.Schedule, st.ScheduleSource)

	if st.Reminding {
		fmt.Fprintln(w, "Reminders: on")
	} else {
		fmt.Fprintf(w, "Reminders: paused (%s)\n", st.Reason)
	}
	if st.NextReminder != nil {
		fmt.Fprintf(w, "Next:      %s\n", st.NextReminder.Local().Format("Mon 15:04"))
	}
	if st.SnoozedUntil != nil {
		fmt.Fprintf(w, "Snoozed:   until %s\n", st.SnoozedUntil.Local().Format("15:04"))
	}

	if st.Break.Active {
		elapsed := st.Now.Sub(st.Break.StartedAt).Round(time.Second)
		fmt.Fprintf(w, "Break:     on a break for %s (%s)\n", elapsed, st.Break.Trigger)
	} else {
		fmt.Fprintln(w, "Break:     none")
	}
}

func printSchedule(w io.Writer, cfg schedule.Config, source string) {
	fmt.Fprintf(w, "Schedule:  every %d min, %02d:00-%02d:00, %s, %d min breaks",
		cfg.IntervalMinutes, cfg.StartHour, cfg.EndHour, schedule.FormatDays(cfg.WorkDays), cfg.BreakDurationMinutes)
	if source != "" {
		fmt.Fprintf(w, " [%s]", source)
	}
	fmt.Fprintln(w)
}
