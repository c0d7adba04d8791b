package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/warp/b2b-engine/api"
	"github.com/warp/b2b-engine/internal/config"
	"github.com/warp/b2b-engine/internal/logging"
	"go.uber.org/zap"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Starts the HTTP API and the background renewal scheduler.

Examples:
  b2bsim serve
  b2bsim serve --store sqlite --dsn ./b2b.db
  B2B_STORE=postgres B2B_DSN=postgres://localhost/b2b b2bsim serve --redis localhost:6379`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger, err := logging.New(cfg.LogLevel)
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		return serve(cmd.Context(), cfg, logger)
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (env B2B_HTTP_ADDR, default :8080)")
	serveCmd.Flags().String("store", "", "Backend: memory, sqlite or postgres (env B2B_STORE)")
	serveCmd.Flags().String("dsn", "", "SQLite path or Postgres connection string (env B2B_DSN)")
	serveCmd.Flags().String("redis", "", "Redis address for distributed locks (env B2B_REDIS_ADDR)")
	serveCmd.Flags().Bool("no-renewals", false, "Disable the background renewal scheduler")
	rootCmd.AddCommand(serveCmd)
}

// loadConfig reads the environment, then applies any flags that were set.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return config.Config{}, err
	}

	flags := cmd.Flags()
	if v, _ := flags.GetString("log-level"); v != "" {
		cfg.LogLevel = v
	}
	if v, _ := flags.GetString("addr"); v != "" {
		cfg.HTTPAddr = v
	}
	if v, _ := flags.GetString("store"); v != "" {
		cfg.Store = config.StoreKind(v)
	}
	if v, _ := flags.GetString("dsn"); v != "" {
		cfg.DSN = v
	}
	if v, _ := flags.GetString("redis"); v != "" {
		cfg.RedisAddr = v
	}
	if v, _ := flags.GetBool("no-renewals"); v {
		cfg.RenewalEnabled = false
	}
	return cfg, cfg.Validate()
}

func serve(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close(logger)

	renewals := api.NewRenewalScheduler(a.handler.Budgets, logger)
	renewals.Interval = cfg.RenewalInterval
	renewals.Enabled = cfg.RenewalEnabled
	renewals.Start()
	defer renewals.Stop()

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      api.NewRouter(a.handler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("addr", cfg.HTTPAddr),
			zap.String("store", string(cfg.Store)))
		serverErrors <- server.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case sig := <-quit:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		_ = server.Close()
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
