package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/calsync/internal/config"
	"github.com/ericfisherdev/calsync/internal/domain/model"
)

func newAccountsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "List connected accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), cfg, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			return printAccounts(cmd.OutOrStdout(), a.sync.Accounts(), a.sync.Calendars)
		},
	}

	cmd.AddCommand(newAccountsRemoveCmd())
	cmd.AddCommand(newAccountsAutoJoinCmd())

	return cmd
}

func newAccountsRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <account>",
		Short: "Disconnect an account and delete its stored data",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), cfg, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.sync.RemoveAccount(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
			return nil
		},
	}
}

func newAccountsAutoJoinCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "autojoin <account> on|off",
		Short:     "Enable or disable auto-join for an account",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			enabled, err := parseOnOff(args[1])
			if err != nil {
				return err
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), cfg, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.sync.SetAutoJoin(cmd.Context(), args[0], enabled); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Auto-join %s for %s\n", args[1], args[0])
			return nil
		},
	}
}

func parseOnOff(v string) (bool, error) {
	switch v {
	case "on":
		return true, nil
	case "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid value %q: expected on or off", v)
	}
}

// printAccounts writes one row per account. calendars looks up the calendars
// of an account.
func printAccounts(w io.Writer, accounts []model.Account, calendars func(string) ([]model.CalendarRef, bool)) error {
	if len(accounts) == 0 {
		_, err := fmt.Fprintln(w, "No accounts connected. Run `calsync signin` to add one.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ACCOUNT\tCOLOR\tAUTO-JOIN\tCALENDARS")
	for _, a := range accounts {
		cals, _ := calendars(a.ID)
		visible := 0
		for _, c := range cals {
			if c.IsVisible {
				visible++
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d/%d visible\n", a.ID, a.ResolvedColor(), onOff(a.AutoJoinEnabled), visible, len(cals))
	}
	return tw.Flush()
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
