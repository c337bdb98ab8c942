package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"uptime-report-backend/config"
	"uptime-report-backend/internal/api"
	"uptime-report-backend/internal/db"
	"uptime-report-backend/internal/ingest"
	"uptime-report-backend/internal/jobs"
	"uptime-report-backend/internal/report"
	"uptime-report-backend/internal/store"
)

func main() {
	// Setup logger
	logger := log.New(os.Stdout, "uptime-backend ", log.LstdFlags)

	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	logger.Printf("configuration loaded successfully from %s", configPath)

	// Initialize database
	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}
	logger.Printf("database initialized successfully (driver %s)", cfg.Database.Driver)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appStore := store.NewGormStore(gormDB)

	// Report jobs run on their own worker pool.
	generator := &report.Generator{Store: appStore, Workers: cfg.Report.SiteWorkers}
	manager := jobs.NewManager(cfg.Report.Workers, appStore, generator)
	if err := manager.Start(ctx); err != nil {
		logger.Fatalf("failed to start report workers: %v", err)
	}

	importer := ingest.NewService(&cfg.Ingest, appStore)
	go importer.Run(ctx)

	router, err := api.NewRouter(&cfg.Server, importer, manager)
	if err != nil {
		logger.Fatalf("failed to build router: %v", err)
	}
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	// Setup signal handling for graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Println("Shutdown signal received, stopping services...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("HTTP server Shutdown: %v", err)
	}
	cancel()

	logger.Println("Server gracefully stopped")
}
