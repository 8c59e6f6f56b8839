package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/nao1215/fileschema"
	"github.com/nao1215/fileschema/config"
	"github.com/nao1215/fileschema/domain/model"
	"github.com/nao1215/fileschema/transfer"
	"github.com/spf13/cobra"
)

// Version is set at build time
var Version = "dev"

// app holds what every subcommand needs. The session lives for one command so
// staged samples stay readable until the command returns.
type app struct {
	cfgFile  string
	logLevel string
	path     string
	header   bool
	infer    bool

	cfg     *config.Config
	logger  *slog.Logger
	session *fileschema.Session
}

// execute runs the command line args. The session is closed on return.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	a := &app{}
	defer func() { _ = a.close() }()

	rootCmd := newRootCmd(a)
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "fileschema",
		Short: "Discover and stage the schema of flat files",
		Long: `fileschema stages delimited, fixed-width, spreadsheet, XML and Parquet files
into an embedded SQL store and reports the schema discovered from the staged rows.

Root paths are read from the config file, or a single ad hoc path is given with --path.`,
		Version:           Version,
		PersistentPreRunE: a.setup,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}

	rootCmd.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (YAML)")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().StringVar(&a.path, "path", "", "file or directory to use instead of the configured root paths")
	rootCmd.PersistentFlags().BoolVar(&a.header, "header", true, "first row of an ad hoc --path holds column names")
	rootCmd.PersistentFlags().BoolVar(&a.infer, "infer-types", false, "narrow string columns of an ad hoc --path from sampled values")

	rootCmd.AddCommand(newDiscoverCmd(a))
	rootCmd.AddCommand(newReadCmd(a))
	rootCmd.AddCommand(newImportCmd(a))

	return rootCmd
}

// setup loads the configuration and the logger
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return err
	}
	a.cfg = cfg

	level := cfg.LogLevel
	if a.logLevel != "" {
		level = a.logLevel
	}
	logger, err := newLogger(cmd.ErrOrStderr(), level)
	if err != nil {
		return err
	}
	a.logger = logger
	return nil
}

// open starts a session over the root paths selected by args
func (a *app) open(ctx context.Context, args []string) (*fileschema.Session, error) {
	roots, err := a.rootPaths(args)
	if err != nil {
		return nil, err
	}
	session, err := fileschema.NewBuilder().
		AddRootPaths(roots...).
		WithStaging(a.cfg.Staging).
		WithLogger(a.logger).
		WithOptions(fileschema.WithThrottle(transfer.NewThrottle())).
		WithSampleSize(a.cfg.SampleSize).
		Build(ctx)
	if err != nil {
		return nil, err
	}
	a.session = session
	return session, nil
}

func (a *app) close() error {
	if a.session == nil {
		return nil
	}
	session := a.session
	a.session = nil
	return session.Close()
}

// newLogger returns a text logger writing to w at the named level
func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}

// rootPaths returns the root paths selected by args: the ad hoc --path, the
// configured root paths named in args, or every configured root path.
func (a *app) rootPaths(args []string) ([]model.RootPath, error) {
	if a.path != "" {
		return []model.RootPath{{RootPath: a.path, HasHeader: a.header, InferTypes: a.infer}}, nil
	}
	if len(args) == 0 {
		if len(a.cfg.RootPaths) == 0 {
			return nil, model.Configurationf("no root paths configured, use --config or --path")
		}
		return a.cfg.RootPaths, nil
	}

	roots := make([]model.RootPath, 0, len(args))
	for _, name := range args {
		root, ok := a.cfg.RootPath(name)
		if !ok {
			return nil, model.Configurationf("unknown root path %q", name)
		}
		roots = append(roots, root)
	}
	return roots, nil
}

// discover runs schema discovery over the selected root paths
func (a *app) discover(ctx context.Context, args []string) ([]model.Schema, error) {
	session, err := a.open(ctx, args)
	if err != nil {
		return nil, err
	}
	return session.Discover(ctx)
}
