package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"

	"camfleet-backend/internal/config"
	"camfleet-backend/internal/database"
	"camfleet-backend/internal/db"
	"camfleet-backend/internal/handlers"
	"camfleet-backend/internal/health"
	"camfleet-backend/internal/hikapi"
	h "camfleet-backend/internal/http"
	"camfleet-backend/internal/middleware"
	"camfleet-backend/internal/monitoring"
	"camfleet-backend/internal/repositories"
	"camfleet-backend/internal/services"
	"camfleet-backend/migrations"
)

const shutdownTimeout = 30 * time.Second

func main() {
	port := flag.Int("port", 0, "Server port (overrides config)")
	flag.Parse()

	// .env is optional; it feeds the CAMFLEET_* overrides in development.
	godotenv.Load()

	cfg := config.Load()
	if *port != 0 {
		cfg.Server.Port = *port
	}

	pool := db.Connect(cfg)
	defer pool.Close()

	if err := database.NewMigrator(pool, migrations.FS).Run(context.Background()); err != nil {
		log.Fatalf("Migrations failed: %v", err)
	}

	registry := prometheus.NewRegistry()
	metrics := monitoring.New(registry)

	// Repositories
	cameraRepo := repositories.NewCameraRepository(pool)
	jobRepo := repositories.NewDownloadJobRepository(pool)
	driveRepo := repositories.NewStorageDriveRepository(pool)

	// Device access and local filesystem
	client := hikapi.NewConsoleClient(cfg.Hikvision.ConsolePath)
	fs := afero.NewOsFs()

	// Services
	jobService := services.NewDownloadJobService(jobRepo)

	// Jobs orphaned in downloading by a previous run are failed before any
	// worker can pick them up.
	if err := jobService.SweepStale(context.Background()); err != nil {
		log.Fatalf("Stale job sweep failed: %v", err)
	}

	storageMonitor := services.NewStorageMonitorService(driveRepo, metrics, cfg.StorageInterval(), cfg.Downloads.RootPath)
	healthService := services.NewCameraHealthService(cameraRepo, client, metrics, cfg.HealthInterval())

	workerOpts := services.WorkerOptions{
		CheckInterval: cfg.CheckInterval(),
		PollInterval:  cfg.PollInterval(),
		MaxConcurrent: cfg.Worker.MaxConcurrentPerCamera,
		Lookback:      cfg.Lookback(),
		DownloadRoot:  cfg.Downloads.RootPath,
		CleanupBatch:  cfg.Cleanup.BatchSize,
	}
	supervisor := services.NewWorkerSupervisor(
		cameraRepo, jobRepo, driveRepo, client, jobService, fs, metrics,
		workerOpts, cfg.RefreshInterval(), cfg.StopGrace(),
	)

	storageMonitor.Start()
	healthService.Start()
	supervisor.Start()

	// Handlers
	cameraHandler := handlers.NewCameraHandler(cameraRepo, healthService, supervisor)
	jobHandler := handlers.NewJobHandler(jobRepo, jobService)
	storageHandler := handlers.NewStorageHandler(driveRepo, storageMonitor)
	workerHandler := handlers.NewWorkerHandler(supervisor)
	dashboardHandler := handlers.NewDashboardHandler(cameraRepo, jobRepo, driveRepo, supervisor)
	footageHandler := handlers.NewFootageHandler(jobRepo)
	statusStream := handlers.NewStatusStreamHandler(jobRepo, supervisor)

	checker := health.NewChecker(pool, supervisor)
	logging := middleware.NewRequestLogging(metrics)
	corsHandler := middleware.NewCORS(cfg)

	router := h.NewRouter(
		cameraHandler, jobHandler, storageHandler, workerHandler,
		dashboardHandler, footageHandler, statusStream,
		checker, logging, registry,
	)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: corsHandler(router),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("Server running on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutdown signal received")

	// Stop taking requests first, then unwind the background services.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown: %v", err)
	}

	supervisor.Stop()
	healthService.Stop()
	storageMonitor.Stop()

	log.Println("Shutdown complete")
}
