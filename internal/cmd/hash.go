package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/receipts-intake/internal/hashing"
)

// NewHashCmd creates the hash subcommand.
func NewHashCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hash FILE...",
		Short: "Print the content hash of files",
		Long:  `Print the SHA-256 content hash used for duplicate detection, one line per file.`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := opts.load(cmd, false)
			if err != nil {
				return err
			}
			h := hashing.NewHasher(cfg.Hash.ChunkSize)
			var firstErr error
			for _, path := range args {
				fh, err := h.Hash(path)
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "%v\n", err)
					if firstErr == nil {
						firstErr = err
					}
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", fh.Hex, fh.Path)
			}
			return firstErr
		},
	}
	return cmd
}
