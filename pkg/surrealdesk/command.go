package surrealdesk

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/surrealdb/surrealdesk/pkg/logger"
)

// Version is set at build time with -ldflags.
var Version = "dev"

type rootOptions struct {
	configPath string
	logLevel   string
	storeURL   string
	addr       string
	readOnly   bool

	stdout io.Writer
	stderr io.Writer
}

// NewRootCommand builds the surrealdesk command tree. Output of the
// version command and logs go to stdout and stderr.
func NewRootCommand(stdout, stderr io.Writer) *cobra.Command {
	o := &rootOptions{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:   "surrealdesk",
		Short: "Personal workspace server for documents, tasks, finance and health",
		Long: `surrealdesk serves a personal workspace over HTTP: a document tree with
blocks, daily tasks with streaks, wallets and budgets, and health protocols.

The store is selected by its URL and must be configured together with its
key, either in the YAML file given with --config or through
SURREALDESK_STORE_URL and SURREALDESK_STORE_KEY.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&o.configPath, "config", "", "path to a YAML config file")
	flags.StringVar(&o.logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
	flags.StringVar(&o.storeURL, "store-url", "", "store URL, overrides the config")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withApp(cmd, func(app *App) error {
				return app.Serve(cmd.Context())
			})
		},
	}
	serve.Flags().StringVar(&o.addr, "addr", "", "listen address, overrides the config")
	serve.Flags().BoolVar(&o.readOnly, "read-only", false, "start in maintenance mode")

	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the store schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withApp(cmd, func(app *App) error {
				return app.Migrate(cmd.Context())
			})
		},
	}

	version := &cobra.Command{
		Use:   "version",
		Short: "Print the version number of surrealdesk",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(o.stdout, "surrealdesk version %s\n", Version)
		},
	}

	root.AddCommand(serve, migrate, version)
	return root
}

// config layers the flags that were set over the loaded configuration.
func (o *rootOptions) config(cmd *cobra.Command) (Config, error) {
	cfg, err := LoadConfig(o.configPath)
	if err != nil {
		return cfg, err
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = o.logLevel
	}
	if cmd.Flags().Changed("store-url") {
		cfg.StoreURL = o.storeURL
	}
	if cmd.Flags().Changed("addr") {
		cfg.Addr = o.addr
	}
	if cmd.Flags().Changed("read-only") {
		cfg.ReadOnly = o.readOnly
	}
	return cfg, cfg.Validate()
}

func (o *rootOptions) withApp(cmd *cobra.Command, run func(*App) error) error {
	cfg, err := o.config(cmd)
	if err != nil {
		return err
	}

	build := logger.New().Level(cfg.LogLevel).Console(cfg.LogConsole).FromBuffer(o.stderr)
	if cfg.LogPath != "" {
		build = build.FromPath(cfg.LogPath)
	}
	logData, err := build.Make()
	if err != nil {
		return err
	}
	defer logData.Close()

	log := logData.Logger.With().Str("service", "surrealdesk").Logger()
	app, err := NewApp(cmd.Context(), cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}
	defer closeApp(app, log)

	return run(app)
}

func closeApp(app *App, log zerolog.Logger) {
	if err := app.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close application")
	}
}

// Main runs the command line in args, without the program name, until it
// finishes or ctx ends.
func Main(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := NewRootCommand(stdout, stderr)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}
