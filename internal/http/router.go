// Package http wires the API routes.
package http

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"camfleet-backend/internal/handlers"
	"camfleet-backend/internal/health"
	"camfleet-backend/internal/middleware"
)

// NewRouter assembles the full route table. Every /api route goes through
// the request logging middleware; /healthz and /metrics stay unwrapped.
func NewRouter(
	cameraHandler *handlers.CameraHandler,
	jobHandler *handlers.JobHandler,
	storageHandler *handlers.StorageHandler,
	workerHandler *handlers.WorkerHandler,
	dashboardHandler *handlers.DashboardHandler,
	footageHandler *handlers.FootageHandler,
	statusStream *handlers.StatusStreamHandler,
	checker *health.Checker,
	logging *middleware.RequestLogging,
	registry *prometheus.Registry,
) *mux.Router {
	r := mux.NewRouter()
	r.Use(logging.Handler)

	api := r.PathPrefix("/api").Subrouter()

	// Cameras
	api.HandleFunc("/cameras", cameraHandler.ListCameras).Methods("GET")
	api.HandleFunc("/cameras", cameraHandler.CreateCamera).Methods("POST")
	api.HandleFunc("/cameras/check-all", cameraHandler.CheckAllCameras).Methods("POST")
	api.HandleFunc("/cameras/{id:[0-9]+}", cameraHandler.GetCamera).Methods("GET")
	api.HandleFunc("/cameras/{id:[0-9]+}", cameraHandler.UpdateCamera).Methods("PUT")
	api.HandleFunc("/cameras/{id:[0-9]+}", cameraHandler.DeleteCamera).Methods("DELETE")
	api.HandleFunc("/cameras/{id:[0-9]+}/check", cameraHandler.CheckCamera).Methods("POST")

	// Download jobs
	api.HandleFunc("/download-jobs", jobHandler.ListJobs).Methods("GET")
	api.HandleFunc("/download-jobs/stats", jobHandler.GetJobStats).Methods("GET")
	api.HandleFunc("/download-jobs/{id:[0-9]+}", jobHandler.GetJob).Methods("GET")
	api.HandleFunc("/download-jobs/{id:[0-9]+}/retry", jobHandler.RetryJob).Methods("POST")
	api.HandleFunc("/download-jobs/{id:[0-9]+}/cancel", jobHandler.CancelJob).Methods("POST")

	// Storage drives
	api.HandleFunc("/storage-drives", storageHandler.ListDrives).Methods("GET")
	api.HandleFunc("/storage-drives", storageHandler.CreateDrive).Methods("POST")
	api.HandleFunc("/storage-drives/check", storageHandler.CheckDrives).Methods("POST")
	api.HandleFunc("/storage-drives/{id:[0-9]+}", storageHandler.GetDrive).Methods("GET")
	api.HandleFunc("/storage-drives/{id:[0-9]+}", storageHandler.UpdateDrive).Methods("PUT")
	api.HandleFunc("/storage-drives/{id:[0-9]+}", storageHandler.DeleteDrive).Methods("DELETE")

	// Workers and dashboard
	api.HandleFunc("/workers/status", workerHandler.GetWorkerStatus).Methods("GET")
	api.HandleFunc("/workers/refresh", workerHandler.RefreshWorkers).Methods("POST")
	api.HandleFunc("/dashboard", dashboardHandler.GetDashboard).Methods("GET")
	api.HandleFunc("/footage", footageHandler.FindFootage).Methods("GET")

	// Live status stream
	api.HandleFunc("/ws/status", statusStream.Stream)

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		status := checker.Check()
		w.Header().Set("Content-Type", "application/json")
		if status.Status != "healthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(status)
	}).Methods("GET")

	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods("GET")

	return r
}
