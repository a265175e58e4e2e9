// Command warden-server runs the tool-call safety validation service.
package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/clearline-ai/warden/internal/api"
	"github.com/clearline-ai/warden/internal/auth"
	"github.com/clearline-ai/warden/internal/chread"
	"github.com/clearline-ai/warden/internal/policy"
	"github.com/clearline-ai/warden/internal/storage"
	"github.com/clearline-ai/warden/internal/store"
	"github.com/clearline-ai/warden/internal/validator"
)

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOrDefault(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func mustBuildLogger() *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if lvl, err := zapcore.ParseLevel(envOrDefault("WARDEN_LOG_LEVEL", "info")); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	logger, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return logger
}

func main() {
	logger := mustBuildLogger()
	defer logger.Sync() //nolint:errcheck

	policyPath := envOrDefault("WARDEN_POLICY_PATH", "config/policy.yaml")
	ps := policy.Load(policyPath, logger)
	v := validator.New(ps, logger)

	watcher, err := policy.NewWatcher(policyPath, v.ReloadPolicy, logger)
	if err != nil {
		logger.Warn("policy watcher unavailable, hot reload disabled", zap.Error(err))
	} else {
		defer watcher.Close()
	}

	// SIGHUP forces a reload even when the file watcher missed the change.
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	go func() {
		for range hup {
			logger.Info("SIGHUP received, reloading policy")
			v.ReloadPolicy(policy.Load(policyPath, logger))
		}
	}()

	var writer storage.EventWriter
	if dsn := os.Getenv("CLICKHOUSE_DSN"); dsn != "" {
		chw, err := storage.NewClickHouseWriter(dsn, logger)
		if err != nil {
			logger.Error("clickhouse unavailable, falling back to log writer", zap.Error(err))
			writer = storage.NewLogWriter(logger)
		} else {
			writer = chw
			defer chw.Close()
		}
	} else {
		writer = storage.NewLogWriter(logger)
	}

	var reader *chread.Reader
	if dsn := os.Getenv("CLICKHOUSE_DSN"); dsn != "" {
		reader, err = chread.NewReader(dsn, logger)
		if err != nil {
			logger.Error("clickhouse reader unavailable", zap.Error(err))
			reader = nil
		} else {
			defer reader.Close()
		}
	}

	var authenticator auth.Authenticator = auth.NewStaticAuthenticator()
	var tenantStore *store.Store
	if dsn := os.Getenv("POSTGRES_DSN"); dsn != "" {
		db, err := sql.Open("pgx", dsn)
		if err != nil {
			logger.Fatal("postgres open failed", zap.Error(err))
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(30 * time.Minute)

		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := db.PingContext(pingCtx); err != nil {
			cancel()
			logger.Fatal("postgres ping failed", zap.Error(err))
		}
		cancel()
		defer db.Close()

		tenantStore = store.NewStore(db)
		cacheTTL := time.Duration(envIntOrDefault("WARDEN_AUTH_CACHE_TTL_S", 300)) * time.Second
		authenticator = auth.NewPostgresAuthenticator(tenantStore, cacheTTL, logger)
		logger.Info("postgres-backed authentication enabled")
	} else {
		logger.Warn("POSTGRES_DSN not set, API keys are format-checked only")
	}

	handler := api.NewRouter(api.Dependencies{
		Validator: v,
		Auth:      authenticator,
		Store:     tenantStore,
		Writer:    writer,
		Reader:    reader,
		Logger:    logger,
	})

	addr := ":" + envOrDefault("WARDEN_HTTP_PORT", "8080")
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	case sig := <-stop:
		logger.Info("shutting down", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("shutdown error", zap.Error(err))
		}
	}
}
