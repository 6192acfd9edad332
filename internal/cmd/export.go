package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/receipts-intake/internal/export"
)

// NewExportCmd creates the export subcommand.
func NewExportCmd(opts *globalOptions) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the staging ledger to an XLSX workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load(cmd, false)
			if err != nil {
				return err
			}
			n, err := export.NewService(logger).WriteLedgerXLSX(cfg.LedgerPath(), out)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d rows to %s\n", n, out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "receipts.xlsx", "Output XLSX path")
	return cmd
}
