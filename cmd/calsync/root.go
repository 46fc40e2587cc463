package main

import (
	"github.com/spf13/cobra"
)

// newRootCmd builds the calsync command tree. Running calsync without a
// subcommand starts the server.
func newRootCmd(version string) *cobra.Command {
	root := &cobra.Command{
		Use:   "calsync",
		Short: "Merges Google calendars into one timeline and joins meetings on time",
		Long: `calsync keeps the events of every connected Google account in a single
local timeline. It serves the timeline over a JSON API and can open the
meeting link of accepted events when they start.

Configuration is read from CALSYNC_* environment variables.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetVersionTemplate(`{{printf "calsync version %s\n" .Version}}`)

	serve := newServeCmd(version)
	root.RunE = serve.RunE

	root.AddCommand(serve)
	root.AddCommand(newSignInCmd())
	root.AddCommand(newAccountsCmd())
	root.AddCommand(newVersionCmd(version))

	return root
}
