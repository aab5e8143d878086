package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ashita-ai/runsearch"
	"github.com/ashita-ai/runsearch/internal/config"
	"github.com/ashita-ai/runsearch/internal/telemetry"
)

// validOutputs lists the accepted --output values.
var validOutputs = []string{"json", "yaml"}

// app holds what every subcommand needs once configuration is loaded.
type app struct {
	output   string
	envFile  string
	cfg      config.Config
	logger   *slog.Logger
	client   *runsearch.Client
	shutdown telemetry.Shutdown
}

func newRootCommand() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "runsearch",
		Short: "Search runs on an experiment-tracking server",
		Long: `Search runs on an MLflow-compatible tracking server.

Searches can pin runs that are always returned, and can backfill the
parent runs named by lineage tags. The server is read from
MLFLOW_TRACKING_URI.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if !slices.Contains(validOutputs, a.output) {
				return fmt.Errorf("invalid output %q: must be one of %v", a.output, validOutputs)
			}
			return a.setup(cmd.Context(), cmd.ErrOrStderr())
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return a.close()
		},
	}

	cmd.PersistentFlags().StringVarP(&a.output, "output", "o", "json", "output format (json|yaml)")
	cmd.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "dotenv file to load if present")

	cmd.AddCommand(newSearchCommand(a))
	cmd.AddCommand(newParentsCommand(a))
	cmd.AddCommand(newMCPCommand(a))
	return cmd
}

// setup loads configuration and builds the logger, telemetry and client.
// Logs always go to stderr so that stdout carries only results or MCP frames.
func (a *app) setup(ctx context.Context, stderr io.Writer) error {
	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load(a.envFile)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	a.cfg = cfg

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return fmt.Errorf("load config: RUNSEARCH_LOG_LEVEL: %w", err)
	}
	a.logger = slog.New(slog.NewJSONHandler(stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(a.logger)

	a.shutdown, err = telemetry.Init(ctx, telemetry.Config{
		Endpoint:    cfg.OTELEndpoint,
		Insecure:    cfg.OTELInsecure,
		ServiceName: cfg.ServiceName,
		Version:     version,
	})
	if err != nil {
		return err
	}

	opts := []runsearch.Option{
		runsearch.WithTrackingURI(cfg.TrackingURI),
		runsearch.WithTimeout(cfg.RequestTimeout),
		runsearch.WithMaxResults(cfg.MaxResults),
		runsearch.WithUserAgent("runsearch/" + version),
		runsearch.WithLogger(a.logger),
	}
	switch {
	case cfg.TrackingToken != "":
		opts = append(opts, runsearch.WithToken(cfg.TrackingToken))
	case cfg.TrackingUsername != "":
		opts = append(opts, runsearch.WithBasicAuth(cfg.TrackingUsername, cfg.TrackingPassword))
	}
	a.client, err = runsearch.New(opts...)
	if err != nil {
		return err
	}

	a.logger.Debug("runsearch configured",
		"version", version,
		"tracking_uri", cfg.TrackingURI,
		"max_results", cfg.MaxResults,
		"fetch_parents", cfg.FetchParents,
	)
	return nil
}

func (a *app) close() error {
	if a.shutdown == nil {
		return nil
	}
	return a.shutdown(context.Background())
}
