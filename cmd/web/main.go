package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"sales-dashboard/internal/config"
	"sales-dashboard/internal/handlers"
	"sales-dashboard/internal/middleware"
	"sales-dashboard/internal/observability"
	"sales-dashboard/internal/pipeline"
	"sales-dashboard/internal/server"
	"sales-dashboard/internal/services"
)

var (
	cfgPath string
	envPath string
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "web",
		Short:        "Serve the sales dashboard",
		SilenceUsage: true,
		RunE:         runServer,
	}
	rootCmd.Flags().StringVarP(&cfgPath, "config", "c", "", "optional config file (yaml, json or toml)")
	rootCmd.Flags().StringVar(&envPath, "env-file", ".env", "dotenv file loaded before reading the environment")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, _ []string) error {
	if err := godotenv.Load(envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", envPath, err)
	}

	cfg, err := config.LoadFile(cfgPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger := observability.NewLogger(cfg.Logger)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"version", "1.0.0",
		"addr", cfg.Address(),
		"month_order", cfg.Dashboard.MonthOrder,
		"upload_max_bytes", cfg.Upload.MaxBytes,
	)

	handler, sessions, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	sessions.StartJanitor(janitorInterval(cfg.Session.TTL))

	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	gracefulServer := server.NewGracefulServer(httpServer, logger, cfg.Server)
	gracefulServer.RegisterShutdownHook(func(ctx context.Context) error {
		logger.Info("releasing session datasets", "stats", sessions.Stats())
		return sessions.Close(ctx)
	})

	if err := gracefulServer.ListenAndServe(); err != nil {
		logger.Error("server failed", "error", err)
		return err
	}

	logger.Info("application stopped gracefully")
	return nil
}

// newApp wires the session registry, routes and middleware chain for cfg.
func newApp(cfg *config.Config, logger *slog.Logger) (http.Handler, *services.Sessions, error) {
	monthOrder, err := pipeline.ParseMonthOrder(cfg.Dashboard.MonthOrder)
	if err != nil {
		return nil, nil, err
	}

	sessions := services.NewSessions(pipeline.Options{
		MonthOrder:  monthOrder,
		TopProducts: cfg.Dashboard.TopProducts,
	}, cfg.Session.TTL, logger)

	srv := server.NewServer(sessions, logger, handlers.Settings{
		MaxUploadBytes: cfg.Upload.MaxBytes,
		TableRows:      cfg.Dashboard.TableRows,
		Currency:       cfg.Dashboard.Currency,
	})

	rateLimiter := middleware.NewRateLimiter(cfg.Security)

	chain := middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Session(cfg.Session.CookieName, cfg.Session.TTL),
		middleware.Logger(logger),
		middleware.Tracing(logger),
		middleware.SecurityHeaders(),
		middleware.CORS(cfg.Security),
		middleware.TrustedProxy(cfg.Security),
		middleware.RateLimit(rateLimiter, logger),
		middleware.BodyLimit(cfg.Upload.MaxBytes),
	)

	return chain(srv), sessions, nil
}

func janitorInterval(ttl time.Duration) time.Duration {
	return min(max(ttl/4, time.Minute), 10*time.Minute)
}
