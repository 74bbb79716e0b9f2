/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the caja engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Configure zerolog (console in development, JSON in production)
  2. Load configuration (env + optional .env)
  3. Open the record store selected by STORE_DRIVER
  4. Run pending migrations (before the ledger reads anything)
  5. Create ledger, API handler and router
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -migrate-only  Run migrations and exit

ENVIRONMENT:
  See config/config.go. The most common ones:
  PORT, STORE_DRIVER (sqlite|memory|postgres|redis), SQLITE_PATH,
  DATABASE_URL, REDIS_URL, LOG_LEVEL

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close the store
  4. Exit

  Start-up failures (store, migrations, listener) also close the store
  before the process exits.

EXAMPLES:
  # SQLite file (default)
  SQLITE_PATH=./data/caja.db ./server

  # Everything in memory
  STORE_DRIVER=memory ./server

  # Redis
  STORE_DRIVER=redis REDIS_URL=redis://cache:6379/0 ./server

SEE ALSO:
  - api/server.go: Router configuration
  - migration/migration.go: Start-up migrations
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/warp/caja-engine/api"
	"github.com/warp/caja-engine/caja"
	"github.com/warp/caja-engine/config"
	"github.com/warp/caja-engine/generic"
	"github.com/warp/caja-engine/generic/store"
	"github.com/warp/caja-engine/migration"
	"github.com/warp/caja-engine/store/postgres"
	"github.com/warp/caja-engine/store/redis"
	"github.com/warp/caja-engine/store/sqlite"
)

func main() {
	migrateOnly := flag.Bool("migrate-only", false, "run migrations and exit")
	flag.Parse()

	// Structured logger: dev pretty, prod JSON
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.IsProduction() {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("level", cfg.LogLevel).Msg("unknown LOG_LEVEL, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	if err := run(context.Background(), cfg, *migrateOnly, quit); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

// run owns the store for the life of the process: every return path closes
// it before main decides the exit code.
func run(ctx context.Context, cfg *config.Config, migrateOnly bool, quit <-chan os.Signal) error {
	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.StoreDriver, err)
	}
	defer func() {
		if err := closeStore(); err != nil {
			log.Error().Err(err).Msg("failed to close store")
		}
	}()

	// Migrations run before the first ledger operation
	runner := migration.NewRunner(st, migration.Generators{
		CajaCodes:     caja.NewCodeGenerator(nil, nil, cfg.CodeMaxAttempts),
		WorkerNumbers: migration.NewWorkerNumberGenerator(nil, nil, cfg.CodeMaxAttempts),
	})
	results, err := runner.Run(ctx)
	if err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	applied := 0
	for _, r := range results {
		if r.Applied {
			applied++
		}
	}
	log.Info().Int("applied", applied).Int("total", len(results)).Msg("migrations done")
	if migrateOnly {
		return nil
	}

	ledger := caja.NewLedger(st,
		caja.WithCodeGenerator(caja.NewCodeGenerator(nil, nil, cfg.CodeMaxAttempts)),
		caja.WithRefresh(api.LogRefresh),
	)
	handler := api.NewHandler(ledger, runner, cfg.CurrencySymbol)
	router := api.NewRouter(handler, cfg.AllowedOrigins())

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	serveErr := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.Port).Str("store", cfg.StoreDriver).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// Wait for interrupt signal or a listener failure
	select {
	case err := <-serveErr:
		return fmt.Errorf("server failed: %w", err)
	case <-quit:
	}

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
	return nil
}

// openStore builds the record store for cfg.StoreDriver and returns its
// close function.
func openStore(ctx context.Context, cfg *config.Config) (generic.Store, func() error, error) {
	switch cfg.StoreDriver {
	case config.DriverMemory:
		return store.NewMemory(), func() error { return nil }, nil
	case config.DriverPostgres:
		s, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case config.DriverRedis:
		s, err := redis.New(ctx, cfg.RedisURL, cfg.RedisPrefix)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		s, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	}
}
