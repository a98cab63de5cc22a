package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/karanb04/18815-GoatTeam/internal/app"
	"github.com/karanb04/18815-GoatTeam/internal/clock"
	"github.com/karanb04/18815-GoatTeam/internal/config"
	"github.com/karanb04/18815-GoatTeam/internal/metrics"
	"github.com/karanb04/18815-GoatTeam/internal/security"
	"github.com/karanb04/18815-GoatTeam/internal/storage/memory"
	"github.com/karanb04/18815-GoatTeam/internal/storage/postgres"
	transporthttp "github.com/karanb04/18815-GoatTeam/internal/transport/http"
	"github.com/karanb04/18815-GoatTeam/migrations"
)

const (
	startupTimeout  = 10 * time.Second
	shutdownTimeout = 10 * time.Second
)

type storage struct {
	pools    app.PoolRepository
	projects app.ProjectRepository
	users    app.UserRepository
	pinger   transporthttp.Pinger
	close    func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("load config")
	}
	logger := newLogger(cfg.Log)
	if cfg.EnvFile != "" {
		logger.Info().Str("path", cfg.EnvFile).Msg("loaded env file")
	}

	startupCtx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	store, err := openStorage(startupCtx, cfg.Database, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open storage")
	}
	defer store.close()

	clk := clock.NewSystem()
	ledger := app.NewLedgerService(store.pools, clk)
	created, err := ledger.SeedPools(startupCtx, cfg.Ledger.SeedPools)
	if err != nil {
		logger.Fatal().Err(err).Msg("seed hardware pools")
	}
	if len(created) > 0 {
		logger.Info().Strs("pools", created).Msg("seeded hardware pools")
	}

	projects := app.NewProjectService(store.projects, store.users, clk)
	hasher := security.NewArgon2Hasher(security.Argon2Params{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
	})
	users := app.NewUserService(store.users, hasher, clk)

	m := metrics.New(prometheus.DefaultRegisterer)
	coordinator := app.NewCoordinator(ledger, projects, clk,
		app.WithLogger(logger.With().Str("component", "coordinator").Logger()),
		app.WithOutcomeRecorder(m),
		app.WithCompensationRetry(cfg.Ledger.CompensationAttempts, cfg.Ledger.CompensationBackoff),
		app.WithCompensationTimeout(cfg.Ledger.CompensationTimeout),
	)

	handler, err := transporthttp.NewRouter(transporthttp.RouterConfig{
		Transfers:      coordinator,
		Pools:          ledger,
		Projects:       projects,
		Users:          users,
		Storage:        store.pinger,
		Log:            logger,
		Metrics:        m,
		MetricsHandler: promhttp.Handler(),
		CORSOrigins:    cfg.Server.CORSOrigins,
		AdminSecret:    cfg.Server.AdminSecret,
		RateLimitPerIP: cfg.Server.RateLimitPerIP,
		Development:    cfg.Server.Development,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("build router")
	}
	if cfg.Server.AdminSecret == "" {
		logger.Warn().Msg("ADMIN_SECRET not set, /create_hardware_set is unauthenticated")
	}

	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info().Str("port", cfg.Server.Port).Msg("api listening")

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- server.ListenAndServe()
	}()

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("server error")
		}
	case <-stopCtx.Done():
		logger.Info().Msg("shutdown signal received, stopping server")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("server shutdown error")
	}
	logger.Info().Msg("server stopped")
}

func newLogger(cfg config.LogConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	var logger zerolog.Logger
	if cfg.Format == "console" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(level).With().Timestamp().Str("service", "hwledger").Logger()
}

// openStorage picks Postgres when a database URL is configured and the
// in-memory store otherwise.
func openStorage(ctx context.Context, cfg config.DatabaseConfig, logger zerolog.Logger) (*storage, error) {
	if cfg.URL == "" {
		logger.Warn().Msg("DATABASE_URL not set, using in-memory storage")
		s := memory.NewStore()
		return &storage{pools: s, projects: s, users: s, pinger: s, close: func() {}}, nil
	}

	pool, err := pgxpool.New(ctx, cfg.URL)
	if err != nil {
		return nil, err
	}
	if err := postgres.Ping(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	ran, err := migrations.Apply(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, err
	}
	if len(ran) > 0 {
		logger.Info().Strs("migrations", ran).Msg("applied migrations")
	}

	return &storage{
		pools:    postgres.NewPoolRepository(pool),
		projects: postgres.NewProjectRepository(pool),
		users:    postgres.NewUserRepository(pool),
		pinger: transporthttp.PingFunc(func(ctx context.Context) error {
			return postgres.Ping(ctx, pool)
		}),
		close: pool.Close,
	}, nil
}
