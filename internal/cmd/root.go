package cmd

import (
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/receipts-intake/internal/common"
	"github.com/joseph-ayodele/receipts-intake/internal/extract"
	"github.com/joseph-ayodele/receipts-intake/internal/hashing"
	"github.com/joseph-ayodele/receipts-intake/internal/llm/openai"
	"github.com/joseph-ayodele/receipts-intake/internal/pipeline"
	"github.com/joseph-ayodele/receipts-intake/version"
)

const appName = "receipts-intake"

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	configPath string
	extractor  string
	logLevel   string
	logFormat  string
}

// NewRootCmd creates and returns the root cobra command with all subcommands.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   appName,
		Short: "Stage scanned receipts into a ledger",
		Long: `receipts-intake processes scanned receipts dropped into an incoming folder.

Each file is hashed and checked for duplicates, sent to an extractor, archived
into the imported (or failed) folder and recorded in the staging ledger.

Use subcommands to perform different operations:
  - run: process the incoming folder once
  - watch: process the incoming folder whenever it changes
  - export: write the ledger to an XLSX workbook
  - clear-ledger: reset the ledger to its header row
  - hash: print the content hash of files`,
		Version:       version.GetFullVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&opts.extractor, "extractor", "", "Override extractor provider (openai|mock)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Override log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "Override log format (text|json)")

	groupPipeline := "pipeline"
	groupUtilities := "utilities"
	rootCmd.AddGroup(&cobra.Group{ID: groupPipeline, Title: "Pipeline Commands"})
	rootCmd.AddGroup(&cobra.Group{ID: groupUtilities, Title: "Utility Commands"})

	runCmd := NewRunCmd(opts)
	watchCmd := NewWatchCmd(opts)
	exportCmd := NewExportCmd(opts)
	clearCmd := NewClearLedgerCmd(opts)
	hashCmd := NewHashCmd(opts)
	versionCmd := NewVersionCmd()

	runCmd.GroupID = groupPipeline
	watchCmd.GroupID = groupPipeline
	exportCmd.GroupID = groupUtilities
	clearCmd.GroupID = groupUtilities
	hashCmd.GroupID = groupUtilities
	versionCmd.GroupID = groupUtilities

	rootCmd.AddCommand(runCmd, watchCmd, exportCmd, clearCmd, hashCmd, versionCmd)
	return rootCmd
}

// load reads the configuration, applies flag overrides and builds the logger
// for one command. The extractor section is only validated when extracting.
func (o *globalOptions) load(cmd *cobra.Command, extracting bool) (*common.Config, *slog.Logger, error) {
	cfg, err := common.ReadConfig(o.configPath)
	if err != nil {
		return nil, nil, err
	}
	if o.extractor != "" {
		cfg.Extractor.Provider = o.extractor
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if o.logFormat != "" {
		cfg.Log.Format = o.logFormat
	}
	validate := cfg.ValidateLayout
	if extracting {
		validate = cfg.Validate
	}
	if err := validate(); err != nil {
		return nil, nil, err
	}
	logger := NewLogger(cfg.Log, cmd.ErrOrStderr())
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// NewLogger builds the process logger. The text format drops time and level,
// keeping the message and attributes.
func NewLogger(cfg common.LogConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	opts.ReplaceAttr = func(groups []string, a slog.Attr) slog.Attr {
		// Remove time and level attributes, keep message and other variables
		if a.Key == slog.TimeKey || a.Key == slog.LevelKey {
			return slog.Attr{}
		}
		return a
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// newExtractor selects the extraction collaborator once, from config.
func newExtractor(cfg common.ExtractorConfig, logger *slog.Logger) extract.Extractor {
	if cfg.Provider == common.ProviderOpenAI {
		return openai.NewClient(openai.Config{
			APIKey:          cfg.APIKey,
			BaseURL:         cfg.BaseURL,
			Model:           cfg.Model,
			Temperature:     cfg.Temperature,
			Timeout:         cfg.Timeout,
			MaxAttempts:     cfg.MaxAttempts,
			LenientOptional: true,
		}, logger)
	}
	return extract.NewMock(logger)
}

func newProcessor(cfg *common.Config, logger *slog.Logger, retryFailed bool) *pipeline.Processor {
	return pipeline.NewProcessor(
		pipeline.ConfigFrom(cfg),
		hashing.NewHasher(cfg.Hash.ChunkSize),
		newExtractor(cfg.Extractor, logger),
		logger,
		pipeline.WithRetryFailed(retryFailed),
	)
}
