package main

import (
	"context"
	"fmt"

	"breaktime/internal/ipc"
	"breaktime/internal/schedule"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Show or change the reminder schedule",
}

var scheduleShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the active schedule",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDaemon(cmd, func(ctx context.Context, c *ipc.Client) error {
			st, err := c.Status(ctx)
			if err != nil {
				return err
			}
			printSchedule(cmd.OutOrStdout(), st.Schedule, st.ScheduleSource)
			return nil
		})
	},
}

var scheduleSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change the schedule; unset flags keep their current value",
	Example: `  breaktime schedule set --every 45
  breaktime schedule set --start 22 --end 6 --days sun-thu`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDaemon(cmd, func(ctx context.Context, c *ipc.Client) error {
			st, err := c.Status(ctx)
			if err != nil {
				return err
			}
			cfg, err := applyScheduleFlags(st.Schedule, cmd.Flags())
			if err != nil {
				return err
			}
			rep, err := c.SaveSettings(ctx, cfg)
			if err != nil {
				return err
			}
			printSchedule(cmd.OutOrStdout(), cfg, "")
			if !rep.NextFire.IsZero() {
				fmt.Fprintf(cmd.OutOrStdout(), "Next reminder: %s\n", rep.NextFire.Local().Format("Mon 15:04"))
			}
			return nil
		})
	},
}

func init() {
	f := scheduleSetCmd.Flags()
	f.Int("every", 0, "minutes between reminders")
	f.Int("start", 0, "first hour of the work window (0-23)")
	f.Int("end", 0, "hour the work window ends (0-23)")
	f.String("days", "", `work days, e.g. "mon-fri", "mon,wed,fri" or "none"`)
	f.Int("break", 0, "break length in minutes")

	scheduleCmd.AddCommand(scheduleShowCmd, scheduleSetCmd)
	rootCmd.AddCommand(scheduleCmd)
}

// applyScheduleFlags overlays the flags that were set on cur and validates
// the result.
func applyScheduleFlags(cur schedule.Config, flags *pflag.FlagSet) (schedule.Config, error) {
	cfg := cur.Clone()
	ints := map[string]*int{
		"every": &cfg.IntervalMinutes,
		"start": &cfg.StartHour,
		"end":   &cfg.EndHour,
		"break": &cfg.BreakDurationMinutes,
	}
	for name, dst := range ints {
		if !flags.Changed(name) {
			continue
		}
		v, err := flags.GetInt(name)
		if err != nil {
			return cur, err
		}
		*dst = v
	}
	if flags.Changed("days") {
		raw, err := flags.GetString("days")
		if err != nil {
			return cur, err
		}
		days, err := schedule.ParseDays(raw)
		if err != nil {
			return cur, err
		}
		cfg.WorkDays = days
	}
	if err := cfg.Validate(); err != nil {
		return cur, err
	}
	return cfg, nil
}
