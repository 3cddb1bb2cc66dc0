package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"trade-journal/internal/analytics"
	"trade-journal/internal/cache"
	"trade-journal/internal/config"
	"trade-journal/internal/logger"
	"trade-journal/internal/pricestore"
	"trade-journal/internal/schema"
	"trade-journal/internal/server"
	"trade-journal/internal/telemetry"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const configPath = "./configs"

func main() {
	_ = godotenv.Load()

	// Load application configuration
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, level, err := logger.NewAtomic(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	log.Info("Configuration loaded")

	// Only the log level is applied without a restart.
	err = config.Watch(configPath, func(c config.Config) {
		l, err := zapcore.ParseLevel(c.Logger.Level)
		if err != nil {
			log.Warn("Ignoring invalid log level", zap.String("level", c.Logger.Level))
			return
		}
		if l != level.Level() {
			level.SetLevel(l)
			log.Info("Log level changed", zap.Stringer("level", l))
		}
	}, func(err error) {
		log.Warn("Failed to reload configuration", zap.Error(err))
	})
	if err != nil {
		log.Info("Configuration file not watched", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Init(ctx, cfg.Telemetry, os.Stdout)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer shutdownTracing(context.Background())

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	store, err := openCache(cfg.Cache)
	if err != nil {
		log.Fatal("Failed to open cache", zap.Error(err))
	}
	c := cache.New(store, log.Named("cache"), cache.NewMetrics(reg))
	defer c.Close()

	resolver, closePrices, err := pricestore.FromConfig(ctx, &cfg.Prices, schema.Default(), log)
	if err != nil {
		log.Fatal("Failed to set up price sources", zap.Error(err))
	}
	defer closePrices()

	svc := analytics.NewService(pricestore.NewCached(resolver, c, cfg.Cache.TTL), c, cfg.Gaps, cfg.Cache, log)

	if len(cfg.Gaps.WarmupTickers) > 0 {
		scheduler, err := analytics.NewScheduler(ctx, svc, cfg.Gaps.WarmupSchedule, cfg.Gaps.WarmupTickers)
		if err != nil {
			log.Fatal("Failed to schedule warmup", zap.Error(err))
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	router := server.NewRouter(server.Options{Service: "analytics", Mode: cfg.Server.Mode, Registry: reg, Logger: log})
	server.NewAnalyticsHandler(svc).Register(router.Group("/api/v1"))

	addr := fmt.Sprintf(":%d", cfg.Server.AnalyticsPort)
	if err := server.Run(ctx, addr, router, cfg.Server.ShutdownTimeout, log); err != nil {
		log.Error("Web server failed", zap.Error(err))
	}
	log.Info("Analytics service has been shut down")
}

func openCache(cfg config.Cache) (cache.Store, error) {
	switch cfg.Backend {
	case "", "memory":
		m := cache.NewMemory()
		m.StartJanitor(cfg.SweepInterval)
		return m, nil
	case "badger":
		return cache.OpenBadger(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}
