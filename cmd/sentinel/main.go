package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"sentinel-antinuke/internal/analytics"
	"sentinel-antinuke/internal/antinuke"
	"sentinel-antinuke/internal/bot"
	"sentinel-antinuke/internal/config"
	"sentinel-antinuke/internal/modules/audit"
	"sentinel-antinuke/internal/redis"
	"sentinel-antinuke/internal/server"
	"sentinel-antinuke/internal/storage"
	"sentinel-antinuke/internal/storage/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := config.BuildLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	store, err := openStore(cfg.Database)
	if err != nil {
		logger.Fatal("storage init failed", zap.String("driver", cfg.Database.Driver), zap.Error(err))
	}
	defer store.Close()
	if err := store.Migrate(); err != nil {
		logger.Fatal("migrations failed", zap.Error(err))
	}

	var debouncer antinuke.Debouncer
	if cfg.Redis.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		client, err := redis.New(ctx, redis.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		cancel()
		if err != nil {
			logger.Warn("redis unavailable, using in-process debounce", zap.Error(err))
		} else {
			defer func() {
				_ = client.Close()
			}()
			debouncer = redis.NewDebouncer(client, cfg.Antinuke.Debounce(), logger.Named("redis"))
			logger.Info("redis debounce enabled", zap.String("addr", cfg.Redis.Addr))
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := antinuke.NewMetrics(registry)

	auditLogger := audit.NewLogger(store, logger)
	analyticsService := analytics.New(store)

	botSvc, err := bot.New(cfg, logger, store, auditLogger, analyticsService, debouncer, metrics)
	if err != nil {
		logger.Fatal("bot init failed", zap.Error(err))
	}

	if err := botSvc.Start(); err != nil {
		logger.Fatal("bot start failed", zap.Error(err))
	}
	logger.Info("bot started")

	serverCtx, stopServer := context.WithCancel(context.Background())
	defer stopServer()
	if cfg.HTTP.Enabled {
		httpServer := server.New(analyticsService, registry, logger.Named("http"))
		go func() {
			if err := httpServer.Run(serverCtx, cfg.HTTP.Addr); err != nil {
				logger.Error("http server error", zap.Error(err))
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutdown requested")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stopServer()
	botSvc.Close(ctx)
}

func openStore(cfg config.DatabaseConfig) (storage.Backend, error) {
	if cfg.Driver == config.DriverPostgres {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		store, err := postgres.New(ctx, cfg.URL)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	store, err := storage.New(cfg.Path)
	if err != nil {
		return nil, err
	}
	return store, nil
}
