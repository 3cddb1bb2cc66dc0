package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"trade-journal/internal/config"
	"trade-journal/internal/database"
	"trade-journal/internal/importer"
	"trade-journal/internal/journal"
	"trade-journal/internal/logger"
	"trade-journal/internal/schema"
	"trade-journal/internal/server"
	"trade-journal/internal/telemetry"
	"trade-journal/internal/tradestore"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

func main() {
	// A missing .env is fine; the environment and config file still apply.
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Init(ctx, cfg.Telemetry, os.Stdout)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer shutdownTracing(context.Background())

	// Connect to the database
	db, err := database.NewDatabase(&cfg.Database, log)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connection successful and schema migrated", zap.String("driver", cfg.Database.Driver))

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	svc := journal.NewService(
		tradestore.New(db),
		importer.NewParser(schema.Default(), nil),
		cfg.Import,
		log,
		journal.NewMetrics(reg),
	)

	router := server.NewRouter(server.Options{Service: "journal", Mode: cfg.Server.Mode, Registry: reg, Logger: log})
	server.NewJournalHandler(svc, cfg.Import.MaxBytes).Register(router.Group("/api/v1"))

	addr := fmt.Sprintf(":%d", cfg.Server.JournalPort)
	if err := server.Run(ctx, addr, router, cfg.Server.ShutdownTimeout, log); err != nil {
		log.Fatal("Web server failed", zap.Error(err))
	}
	log.Info("Journal service has been shut down")
}
