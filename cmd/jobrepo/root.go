package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/xraph/jobrepo"
	audithook "github.com/xraph/jobrepo/audit_hook"
	"github.com/xraph/jobrepo/backoff"
	"github.com/xraph/jobrepo/repository"
)

// app carries state shared by every subcommand.
type app struct {
	configPath string
	driver     string
	dsn        string
	database   string
	logLevel   string
	logFormat  string
	timeout    time.Duration
	audit      bool

	cfg    jobrepo.Config
	logger *slog.Logger
	repo   *repository.Repository
	closer func() error
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "jobrepo",
		Short:         "Batch job execution metadata repository",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	f := cmd.PersistentFlags()
	f.StringVarP(&a.configPath, "config", "c", "", "YAML config file")
	f.StringVar(&a.driver, "driver", "", "backend driver (memory, mongo, postgres, bun, sqlite, redis)")
	f.StringVar(&a.dsn, "dsn", "", "backend connection string")
	f.StringVar(&a.database, "database", "", "mongo database name")
	f.StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	f.StringVar(&a.logFormat, "log-format", "", "log format (text, json)")
	f.DurationVar(&a.timeout, "timeout", 0, "per-operation timeout")
	f.BoolVar(&a.audit, "audit", false, "log an audit record for every state change")

	cmd.AddCommand(
		newInitCmd(a),
		newSequencesCmd(a),
		newIndexesCmd(a),
		newInstancesCmd(a),
		newExecutionsCmd(a),
		newStepsCmd(a),
		newServeCmd(a),
	)
	return cmd
}

// setup loads configuration, builds the logger and connects the backend.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := jobrepo.LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	a.applyFlags(cmd, &cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	a.logger, err = newLogger(cmd.ErrOrStderr(), cfg.Log)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	var s storeHandle
	err = backoff.Retry(ctx, backoff.DefaultStrategy(), cfg.Backend.ConnectAttempts, func(ctx context.Context) error {
		if s.store != nil {
			_ = s.close()
		}
		var openErr error
		s, openErr = openStore(ctx, cfg.Backend, a.logger)
		if openErr != nil {
			return openErr
		}
		if pingErr := s.store.Ping(ctx); pingErr != nil {
			a.logger.Warn("jobrepo: backend not reachable", "driver", cfg.Backend.Driver, "error", pingErr)
			return pingErr
		}
		return nil
	})
	if err != nil {
		if s.store != nil {
			_ = s.close()
		}
		return fmt.Errorf("connect %s: %w", cfg.Backend.Driver, err)
	}

	opts := []repository.Option{
		repository.WithLogger(a.logger),
		repository.WithConfig(cfg),
	}
	if a.audit {
		opts = append(opts, repository.WithExtension(
			audithook.New(audithook.LogRecorder(a.logger), audithook.WithLogger(a.logger)),
		))
	}
	a.repo, err = repository.New(s.store, opts...)
	if err != nil {
		_ = s.close()
		return err
	}
	a.closer = s.closeClient
	return nil
}

func (a *app) applyFlags(cmd *cobra.Command, cfg *jobrepo.Config) {
	f := cmd.Flags()
	if f.Changed("driver") {
		cfg.Backend.Driver = a.driver
	}
	if f.Changed("dsn") {
		cfg.Backend.DSN = a.dsn
	}
	if f.Changed("database") {
		cfg.Backend.Database = a.database
	}
	if f.Changed("log-level") {
		cfg.Log.Level = a.logLevel
	}
	if f.Changed("log-format") {
		cfg.Log.Format = a.logFormat
	}
	if f.Changed("timeout") {
		cfg.OperationTimeout = a.timeout
	}
}

// execute runs the command line and releases the backend whatever the
// outcome.
func execute(ctx context.Context, stdout, stderr io.Writer, args []string) error {
	a := &app{}
	cmd := newRootCmd(a)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(ctx)
	if cerr := a.teardown(context.WithoutCancel(ctx)); err == nil {
		err = cerr
	}
	return err
}

func (a *app) teardown(ctx context.Context) error {
	if a.repo == nil {
		return nil
	}
	err := a.repo.Close(ctx)
	if a.closer != nil {
		if cerr := a.closer(); err == nil {
			err = cerr
		}
	}
	a.repo, a.closer = nil, nil
	return err
}

func newLogger(w io.Writer, cfg jobrepo.LogConfig) (*slog.Logger, error) {
	var level slog.Level
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, fmt.Errorf("%w: log level %q", jobrepo.ErrInvalidArgument, cfg.Level)
		}
	}
	hopts := &slog.HandlerOptions{Level: level}

	switch strings.ToLower(cfg.Format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, hopts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, hopts)), nil
	default:
		return nil, fmt.Errorf("%w: log format %q", jobrepo.ErrInvalidArgument, cfg.Format)
	}
}

func stdout(cmd *cobra.Command) io.Writer { return cmd.OutOrStdout() }
