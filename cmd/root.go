package cmd

import (
	"fmt"
	"os"

	"github.com/agentic-research/skilltree/internal/config"
	"github.com/agentic-research/skilltree/internal/logging"
	"github.com/agentic-research/skilltree/internal/progress"
	"github.com/agentic-research/skilltree/internal/source"
	"github.com/agentic-research/skilltree/internal/state"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X ...cmd.version=...".
var version = "dev"

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	logLevel   string
	source     string
	selector   string
	progressDB string
}

// NewRootCmd builds the command tree. Each call returns independent flag
// state.
func NewRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "skilltree",
		Short:         "Skill tree normalizer and achievement tracker",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVarP(&g.configPath, "config", "c", "", "Path to an HCL (.hcl) or JSON config file")
	pf.StringVar(&g.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	pf.StringVarP(&g.source, "source", "s", "", "Tree document URL or file path")
	pf.StringVar(&g.selector, "selector", "", "JSONPath selecting the tree root inside the document, e.g. $.tree")
	pf.StringVar(&g.progressDB, "progress-db", "", "SQLite file persisting completed achievements")

	root.AddCommand(
		newShowCmd(g),
		newNormalizeCmd(g),
		newServeCmd(g),
		newMCPCmd(g),
	)
	return root
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// env is what every command needs once flags are parsed.
type env struct {
	cfg      *config.Config
	logger   *zap.Logger
	fetcher  source.Fetcher
	store    *state.Store
	progress *progress.SQLiteStore // nil without --progress-db
	closers  []func() error
}

func (e *env) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		_ = e.closers[i]()
	}
	_ = e.logger.Sync()
}

// setup resolves configuration (file, environment, then flags) and wires
// the logger, fetcher, progress database and store.
func setup(cmd *cobra.Command, g *globalFlags) (*env, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel = g.logLevel
	}
	if flags.Changed("source") {
		cfg.Source = g.source
	}
	if flags.Changed("selector") {
		cfg.Selector = g.selector
	}
	if flags.Changed("progress-db") {
		cfg.ProgressDB = g.progressDB
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.LogLevel, cfg.Development)
	if err != nil {
		return nil, err
	}
	e := &env{cfg: cfg, logger: logger}

	timeout, _ := cfg.Timeout()
	e.fetcher = &source.Router{
		HTTP: source.NewHTTPFetcher(source.HTTPOptions{
			Timeout:  timeout,
			Selector: cfg.Selector,
			Logger:   logger,
		}),
		Selector: cfg.Selector,
	}

	opts := state.Options{Logger: logger, Normalize: cfg.NormalizeOptions()}
	if cfg.ProgressDB != "" {
		db, err := progress.OpenSQLite(cfg.ProgressDB)
		if err != nil {
			e.Close()
			return nil, err
		}
		e.closers = append(e.closers, db.Close)
		e.progress = db
		opts.Progress = db
	}
	e.store = state.New(opts)
	return e, nil
}
