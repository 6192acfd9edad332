package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/receipts-intake/internal/ingest"
	"github.com/joseph-ayodele/receipts-intake/internal/pipeline"
)

// NewWatchCmd creates the watch subcommand.
func NewWatchCmd(opts *globalOptions) *cobra.Command {
	var retryFailed bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Process the incoming folder whenever it changes",
		Long: `Run once, then watch the incoming folder and run again after each burst of
changes settles (see watch.debounce). Runs never overlap.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load(cmd, true)
			if err != nil {
				return err
			}
			next := newProcessor(cfg, logger, retryFailed)
			steady := newProcessor(cfg, logger, false)
			pc := pipeline.ConfigFrom(cfg)
			out := cmd.OutOrStdout()
			return ingest.Watch(cmd.Context(), ingest.WatchConfig{
				Dir:      pc.Incoming,
				Debounce: cfg.Watch.Debounce,
				Logger:   logger,
			}, func(ctx context.Context) error {
				// runs never overlap, so swapping processors needs no lock
				p := next
				next = steady
				s, err := p.Run(ctx)
				if err != nil {
					return err
				}
				if s.Total() > 0 || s.Interrupted {
					printSummary(out, s)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&retryFailed, "retry-failed", false, "Extract files recorded with an ERROR-* row again on the first run")
	return cmd
}
