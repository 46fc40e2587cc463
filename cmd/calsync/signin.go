package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/calsync/internal/config"
)

func newSignInCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "signin",
		Short: "Connect a Google account",
		Long: `Open the Google consent page in the browser and connect the account
that grants access. Signing in to an account that is already connected
replaces its stored credential and keeps its settings.

Requires CALSYNC_GOOGLE_CLIENT_ID and CALSYNC_SECRET_KEY.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := newApp(ctx, cfg, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			fmt.Fprintln(cmd.ErrOrStderr(), "Waiting for consent in the browser...")

			account, err := a.sync.SignIn(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Connected %s\n", account.ID)
			for _, st := range a.sync.Statuses() {
				if st.AccountID != account.ID {
					continue
				}
				if st.LastError != "" {
					fmt.Fprintf(out, "First sync failed: %s\n", st.LastError)
				} else {
					fmt.Fprintf(out, "Synced %d events\n", st.EventCount)
				}
			}
			return nil
		},
	}
}
