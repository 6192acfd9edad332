package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/receipts-intake/internal/ledger"
)

// NewClearLedgerCmd creates the clear-ledger subcommand.
func NewClearLedgerCmd(opts *globalOptions) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear-ledger",
		Short: "Reset the staging ledger to its header row",
		Long: `Delete every row of the staging ledger. Archived files are not touched.
Refuses while a run holds the ledger lock.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("refusing to clear the ledger without --yes")
			}
			cfg, logger, err := opts.load(cmd, false)
			if err != nil {
				return err
			}
			path := cfg.LedgerPath()
			if err := ledger.Reset(path); err != nil {
				return err
			}
			logger.Info("ledger.reset", "path", path)
			fmt.Fprintf(cmd.OutOrStdout(), "cleared %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm the reset")
	return cmd
}
