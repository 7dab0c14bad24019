package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/filmpulse/filmpulse/internal/cache"
	"github.com/filmpulse/filmpulse/internal/config"
	httpserver "github.com/filmpulse/filmpulse/internal/http"
	"github.com/filmpulse/filmpulse/internal/logging"
	"github.com/filmpulse/filmpulse/internal/metrics"
	"github.com/filmpulse/filmpulse/internal/rating"
	"github.com/filmpulse/filmpulse/internal/recommend"
	"github.com/filmpulse/filmpulse/internal/repository"
	"github.com/filmpulse/filmpulse/internal/store"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		bootLogger := logging.New(logging.Config{})
		bootLogger.Fatal().Err(err).Msg("load config")
	}

	logger := logging.New(cfg.Log)

	dbCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	st, err := store.New(dbCtx, cfg.Database.URL, store.Options{
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		ConnTimeout:     cfg.Database.ConnTimeout,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer st.Close()

	recoCache, err := buildCache(dbCtx, cfg.Cache)
	if err != nil {
		logger.Fatal().Err(err).Msg("init recommendation cache")
	}

	m := metrics.New()
	repo := repository.New(st)

	ratings := rating.NewService(repo, recoCache, m, logger)

	engine := recommend.NewEngine(repo.Ratings, cfg.Recommend.MinCoRated)
	recommends := recommend.NewService(recommend.ServiceParams{
		Engine:       engine,
		Users:        repo.Users,
		Genres:       repo.Genres,
		Cache:        recoCache,
		Metrics:      m,
		Logger:       logger,
		MaxLimit:     cfg.Recommend.MaxLimit,
		DefaultLimit: cfg.Recommend.DefaultLimit,
	})

	reconciler := rating.NewReconciler(repo.Ratings, cfg.Reconcile.Interval, cfg.Reconcile.Tolerance, m, logger)
	go reconciler.Run(ctx)

	server := httpserver.New(httpserver.Params{
		Config:     cfg,
		Store:      st,
		Repo:       repo,
		Ratings:    ratings,
		Recommends: recommends,
		Metrics:    m,
		Logger:     logger,
	})

	serverErrCh := make(chan error, 1)
	go func() {
		if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			serverErrCh <- err
			return
		}
		serverErrCh <- nil
	}()

	logger.Info().Str("port", cfg.Server.Port).Msg("server started")

	select {
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("server error")
		}
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("graceful shutdown")
	}
}

func buildCache(ctx context.Context, cfg config.CacheConfig) (cache.RecommendationCache, error) {
	switch cfg.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, err
		}
		return cache.NewRedis(client, cfg.TTL), nil
	default:
		return cache.NewMemory(cfg.TTL), nil
	}
}
