package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/complidocs/complidocs/db"
	"github.com/complidocs/complidocs/internal/api"
	"github.com/complidocs/complidocs/internal/config"
	"github.com/complidocs/complidocs/internal/database"
	"github.com/complidocs/complidocs/internal/docstore"
	"github.com/complidocs/complidocs/internal/embedding"
	"github.com/complidocs/complidocs/internal/log"
	"github.com/complidocs/complidocs/internal/observability"
	"github.com/complidocs/complidocs/internal/retrieval"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// runServe wires the full stack and blocks until SIGINT/SIGTERM.
func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := log.New(log.Config{Level: logLevel(), JSON: flagLogJSON})
	logger.Info("starting", "version", AppVersion)

	shutdownTracing, err := observability.Setup(ctx, observability.Config{
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
	})
	if err != nil {
		return fmt.Errorf("setting up tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("tracing shutdown", "error", err)
		}
	}()

	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}

	pool, err := database.NewPool(ctx, cfg.PostgresConnectionString())
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	provider, err := embedding.NewGemini(ctx, cfg.EmbedderModel, logger.With("component", "embedding"))
	if err != nil {
		return fmt.Errorf("initializing embedding provider: %w", err)
	}

	store := docstore.NewPostgres(pool, logger.With("component", "docstore"))
	service := retrieval.New(store, provider, logger.With("component", "retrieval"), retrieval.Config{
		ChunkSize:         cfg.ChunkSize,
		ChunkOverlap:      cfg.ChunkOverlap,
		MaxParallelEmbeds: int64(cfg.MaxParallelEmbeds),
	})

	server, err := api.NewServer(api.ServerConfig{
		Logger:      logger.With("component", "api"),
		Service:     service,
		Pool:        pool,
		CORSOrigins: cfg.CORSOrigins,
		TrustProxy:  cfg.TrustProxy,
		RateRPS:     cfg.RateLimitRPS,
		RateBurst:   cfg.RateLimitBurst,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	logger.Info("HTTP server ready",
		"addr", cfg.ServerAddr(),
		"api", "/api/v1/*",
		"health", "/health, /ready",
	)

	if err := server.Run(ctx, cfg.ServerAddr()); err != nil {
		return fmt.Errorf("HTTP server: %w", err)
	}
	return nil
}
