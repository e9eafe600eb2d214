package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/justapithecus/wrangle/internal/config"
	"github.com/justapithecus/wrangle/internal/logging"
	"github.com/justapithecus/wrangle/internal/metrics"
	wrangles3 "github.com/justapithecus/wrangle/wrangle/s3"
)

// globalFlags override the configuration file and environment.
type globalFlags struct {
	configPath    string
	logLevel      string
	logFormat     string
	region        string
	endpoint      string
	pathStyle     bool
	noConcurrency bool
	pushgateway   string
}

// session is the state shared by subcommands of one invocation.
type session struct {
	cfg    *config.Config
	logger *slog.Logger
	client *wrangles3.Client
}

func (s *session) useConcurrency() bool {
	return s.cfg.Concurrency.UseConcurrency()
}

// connectFunc builds the S3 client for a session.
type connectFunc func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*wrangles3.Client, error)

func connectS3(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*wrangles3.Client, error) {
	return wrangles3.Connect(ctx, wrangles3.ClientConfig{
		Region:       cfg.S3.Region,
		Endpoint:     cfg.S3.Endpoint,
		UsePathStyle: cfg.S3.PathStyle,
		Credentials:  wrangles3.StaticCredentials(cfg.S3.AccessKeyID, cfg.S3.SecretAccessKey),
	}, wrangles3.WithLogger(logger))
}

func newRootCmd(connect connectFunc) *cobra.Command {
	var flags globalFlags
	s := &session{}

	root := &cobra.Command{
		Use:   "wrangle",
		Short: "Move tabular data between S3 and Parquet or CSV",
		Long: `A CLI tool for reading and writing Parquet and CSV data on Amazon S3
or any S3-compatible store, with hive-partitioned datasets and bulk object
inventory commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(flags.configPath)
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			applyFlags(cmd, cfg, &flags)
			s.cfg = cfg
			s.logger = logging.Setup(cfg.Logging.Level, cfg.Logging.Format, cmd.ErrOrStderr())
			metrics.Register()

			s.client, err = connect(cmd.Context(), cfg, s.logger)
			if err != nil {
				return fmt.Errorf("connecting to s3: %w", err)
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return metrics.Push(cmd.Context(), s.cfg.Metrics.PushgatewayURL, s.cfg.Metrics.Job)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "wrangle.yaml", "Path to the configuration file")
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	pf.StringVar(&flags.logFormat, "log-format", "", "Log format (text, json)")
	pf.StringVar(&flags.region, "region", "", "AWS region")
	pf.StringVar(&flags.endpoint, "endpoint", "", "Custom S3 endpoint URL")
	pf.BoolVar(&flags.pathStyle, "path-style", false, "Use path-style addressing")
	pf.BoolVar(&flags.noConcurrency, "no-concurrency", false, "Issue per-object requests sequentially")
	pf.StringVar(&flags.pushgateway, "pushgateway", "", "Prometheus Pushgateway URL to push metrics to on exit")

	root.AddCommand(
		newRegionCmd(s),
		newExistsCmd(s),
		newListCmd(s),
		newDeleteCmd(s),
		newDescribeCmd(s),
		newSizeCmd(s),
		newCatCmd(s),
		newConvertCmd(s),
		newImportCmd(s),
	)
	return root
}

// applyFlags overlays explicitly set global flags onto cfg.
func applyFlags(cmd *cobra.Command, cfg *config.Config, f *globalFlags) {
	changed := cmd.Flags().Changed
	if changed("log-level") {
		cfg.Logging.Level = f.logLevel
	}
	if changed("log-format") {
		cfg.Logging.Format = f.logFormat
	}
	if changed("region") {
		cfg.S3.Region = f.region
	}
	if changed("endpoint") {
		cfg.S3.Endpoint = f.endpoint
	}
	if changed("path-style") {
		cfg.S3.PathStyle = f.pathStyle
	}
	if changed("no-concurrency") {
		enabled := !f.noConcurrency
		cfg.Concurrency.Enabled = &enabled
	}
	if changed("pushgateway") {
		cfg.Metrics.PushgatewayURL = f.pushgateway
	}
}

// printSuccess writes a green status line to w.
func printSuccess(w io.Writer, format string, args ...any) {
	color.New(color.FgGreen).Fprintf(w, "✓ "+format+"\n", args...)
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd(connectS3).ExecuteContext(ctx); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "✗ %v\n", err)
		stop()
		os.Exit(1)
	}
}
