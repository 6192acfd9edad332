package cmd

import (
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/receipts-intake/version"
)

// NewVersionCmd creates the version subcommand.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			version.Print(cmd.OutOrStdout(), appName)
		},
	}
}
