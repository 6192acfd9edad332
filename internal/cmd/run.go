package cmd

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/receipts-intake/constants"
	"github.com/joseph-ayodele/receipts-intake/internal/common"
	"github.com/joseph-ayodele/receipts-intake/internal/pipeline"
)

// NewRunCmd creates the run subcommand: one pass over the incoming folder.
func NewRunCmd(opts *globalOptions) *cobra.Command {
	var retryFailed bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process the incoming folder once",
		Long: `Process every file currently in the incoming folder, in name order.

Duplicates are skipped. Every other file ends up with exactly one ledger row,
either extracted data or an ERROR-* code. Files already recorded with an
ERROR-* row are skipped unless --retry-failed is set. Ctrl-C stops after the
current file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load(cmd, true)
			if err != nil {
				return err
			}
			s, err := newProcessor(cfg, logger, retryFailed).Run(cmd.Context())
			if err != nil {
				return err
			}
			printSummary(cmd.OutOrStdout(), s)
			return nil
		},
	}
	cmd.Flags().BoolVar(&retryFailed, "retry-failed", false, "Extract files recorded with an ERROR-* row again")
	return cmd
}

// printSummary reports each failed file and the run totals.
func printSummary(w io.Writer, s pipeline.Summary) {
	for _, f := range s.Files {
		if f.Status != constants.StatusFailed && f.Err == nil {
			continue
		}
		label := string(f.Code)
		if label == "" {
			label = string(common.CodeOf(f.Err))
		}
		if label == "" {
			label = "ERROR"
		}
		fmt.Fprintf(w, "%-9s %-14s %s: %v\n", f.Status, label, filepath.Base(f.Path), f.Err)
	}
	fmt.Fprintf(w, "run %s: %d completed, %d failed, %d duplicate", s.RunID, s.Completed, s.Failed, s.Duplicate)
	if s.HashErrors > 0 {
		fmt.Fprintf(w, ", %d hash errors", s.HashErrors)
	}
	if s.LedgerErrors > 0 {
		fmt.Fprintf(w, ", %d ledger write errors", s.LedgerErrors)
	}
	if s.Interrupted {
		fmt.Fprint(w, " (interrupted)")
	}
	fmt.Fprintln(w)
}
