package main

import (
	"fmt"

	"breaktime/internal/auth"
	"breaktime/internal/logging"

	"github.com/spf13/cobra"
)

var loginFlags struct {
	account string
	org     string
	email   string
	token   string
	pro     bool
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in so the schedule follows your account",
	Long: `Sign in writes the session file in the data directory. A running breakd
picks it up and syncs the schedule for the account or organization.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		sessions := auth.NewFileProvider(cfg.GetDataDir(), logging.Nop())
		err = sessions.SignIn(auth.Session{
			AccountID:      loginFlags.account,
			OrganizationID: loginFlags.org,
			Email:          loginFlags.email,
			Token:          loginFlags.token,
			Pro:            loginFlags.pro,
		})
		if err != nil {
			return err
		}
		who := loginFlags.account
		if loginFlags.email != "" {
			who = loginFlags.email
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", who)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and stop reminders",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := auth.NewFileProvider(cfg.GetDataDir(), logging.Nop()).SignOut(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
		return nil
	},
}

func init() {
	f := loginCmd.Flags()
	f.StringVar(&loginFlags.account, "account", "", "account id (required)")
	f.StringVar(&loginFlags.org, "org", "", "organization id; the organization schedule applies")
	f.StringVar(&loginFlags.email, "email", "", "account email")
	f.StringVar(&loginFlags.token, "token", "", "bearer token for the schedule service")
	f.BoolVar(&loginFlags.pro, "pro", false, "personal account with a pro plan")
	_ = loginCmd.MarkFlagRequired("account")

	rootCmd.AddCommand(loginCmd, logoutCmd)
}
