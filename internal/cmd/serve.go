package cmd

import (
	"context"
	"fmt"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/3leaps/nimbuswalk/internal/config"
	"github.com/3leaps/nimbuswalk/internal/observability"
	"github.com/3leaps/nimbuswalk/internal/server"
	"github.com/3leaps/nimbuswalk/internal/server/handlers"
	"github.com/3leaps/nimbuswalk/pkg/manifest"
	"github.com/3leaps/nimbuswalk/pkg/provider"
	"github.com/3leaps/nimbuswalk/pkg/walker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve walks over HTTP",
	Long: `Start an HTTP server that streams walks as JSONL.

Endpoints:
  GET /health          run health checks
  GET /health/live     liveness
  GET /version         build information
  GET /v1/walk?uri=... stream a walk (concurrency, max_keys, delimiter,
                       include, exclude, exclude_hidden)

Examples:
  nimbuswalk serve
  nimbuswalk serve --port 9000 --health-target s3://bucket/`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var serveHealthTargets []string

func init() {
	rootCmd.AddCommand(serveCmd)

	f := serveCmd.Flags()
	f.String("host", "localhost", "Listen host")
	f.Int("port", 8080, "Listen port")
	f.Int("max-concurrency", 32, "Highest concurrency a walk request may ask for")
	f.StringSliceVar(&serveHealthTargets, "health-target", nil, "URI probed by /health (repeatable)")

	_ = viper.BindPFlag("server.host", f.Lookup("host"))
	_ = viper.BindPFlag("server.port", f.Lookup("port"))
	_ = viper.BindPFlag("server.max_concurrency", f.Lookup("max-concurrency"))
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}
	logger := observability.CLILogger

	open := newOpener(cfg.S3)
	opts := []server.Option{
		server.WithLogger(logger),
		server.WithVersion(versionInfo),
		server.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.IdleTimeout),
		server.WithWalkHandler(&handlers.WalkHandler{
			Open:   open,
			Logger: logger,
			Defaults: walker.Config{
				Concurrency:   cfg.Walk.Concurrency,
				Delimiter:     cfg.Walk.Delimiter,
				MaxKeys:       cfg.Walk.MaxKeys,
				RateLimit:     cfg.Walk.RateLimit,
				ProgressEvery: cfg.Walk.ProgressEvery,
			},
			MaxConcurrency: cfg.Server.MaxConcurrency,
		}),
	}
	for _, uri := range serveHealthTargets {
		if _, err := ParseURI(uri); err != nil {
			return exitError(foundry.ExitInvalidArgument, "Invalid --health-target", err)
		}
		opts = append(opts, server.WithHealthChecker(uri, targetChecker(open, uri)))
	}

	srv := server.New(cfg.Server.Host, cfg.Server.Port, opts...)
	logger.Info("Starting server",
		zap.String("addr", srv.Addr()),
		zap.String("version", versionInfo.Version),
		zap.Int("max_concurrency", cfg.Server.MaxConcurrency))

	if err := srv.Run(cmd.Context(), cfg.Server.ShutdownTimeout); err != nil {
		return ExitWithCode(logger, foundry.ExitExternalServiceUnavailable, "Server failed", err)
	}
	logger.Info("Server stopped")
	return nil
}

// newOpener resolves walk URIs for the HTTP API using the configured S3
// connection settings.
func newOpener(s3cfg config.S3Config) handlers.Opener {
	return func(ctx context.Context, uri string) (*handlers.Target, error) {
		u, err := ParseURI(uri)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", handlers.ErrBadTarget, err)
		}
		conn := connectionFromURI(u, manifest.ConnectionConfig{
			Region:         s3cfg.Region,
			Endpoint:       s3cfg.Endpoint,
			Profile:        s3cfg.Profile,
			RegionFromIMDS: s3cfg.RegionFromIMDS,
		})
		if conn.Provider == string(provider.ProviderMinio) && conn.Endpoint == "" {
			return nil, fmt.Errorf("%w: minio targets need s3.endpoint configured", handlers.ErrBadTarget)
		}
		p, err := openProvider(ctx, conn, 0, false)
		if err != nil {
			return nil, err
		}
		return &handlers.Target{Lister: p, Root: u.Key, Provider: u.Provider, Pattern: u.Pattern}, nil
	}
}

// targetChecker lists a single page of uri.
func targetChecker(open handlers.Opener, uri string) handlers.HealthChecker {
	return handlers.HealthCheckerFunc(func(ctx context.Context) error {
		return probeTarget(ctx, open, uri)
	})
}

func probeTarget(ctx context.Context, open handlers.Opener, uri string) error {
	t, err := open(ctx, uri)
	if err != nil {
		return err
	}
	defer func() { _ = t.Lister.Close() }()
	_, err = t.Lister.ListWithDelimiter(ctx, provider.ListWithDelimiterOptions{
		Prefix:    t.Root,
		Delimiter: provider.DefaultDelimiter,
		MaxKeys:   1,
	})
	return err
}
