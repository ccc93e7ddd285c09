package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"go.uber.org/multierr"

	"github.com/bierserv/api/internal/cache"
	"github.com/bierserv/api/internal/config"
	"github.com/bierserv/api/internal/database"
	"github.com/bierserv/api/internal/logger"
	"github.com/bierserv/api/internal/router"
	"github.com/bierserv/api/internal/ws"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logger.Setup("info", "", os.Stdout)
	if err := godotenv.Load(); err != nil {
		log.Info().Msg(".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	logger.Setup(cfg.App.LogLevel, cfg.App.LogFormat, os.Stdout)

	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func run(cfg *config.Config) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.DB.AutoMigrate {
		if err := database.Migrate(cfg.DB.URL); err != nil {
			return err
		}
		log.Info().Msg("migrations applied")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DB.URL)
	if err != nil {
		return err
	}
	if cfg.DB.MaxConns > 0 {
		poolCfg.MaxConns = cfg.DB.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		return err
	}
	log.Info().Msg("connected to database")

	var redisClient *cache.Client
	if cfg.Redis.Enabled() {
		redisClient, err = cache.New(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer func() { err = multierr.Append(err, redisClient.Close()) }()
		log.Info().Msg("connected to redis")
	} else {
		log.Warn().Msg("REDIS_URL not set, idempotency and token revocation are disabled")
	}

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	hub := ws.NewHub()
	go hub.Run(hubCtx)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	handler, err := router.New(router.Deps{
		Config:   cfg,
		Queries:  database.New(pool),
		Pool:     pool,
		Hub:      hub,
		Redis:    redisClient,
		Registry: reg,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("env", cfg.App.Env).Msg("starting api server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err = srv.Shutdown(shutdownCtx)
	stopHub()
	return multierr.Append(err, <-serveErr)
}
