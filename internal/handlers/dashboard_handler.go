package handlers

import (
	"encoding/json"
	"net/http"

	"camfleet-backend/internal/models"
	"camfleet-backend/internal/repositories"
	"camfleet-backend/internal/services"
)

const dashboardHistoryDays = 14

// DashboardHandler aggregates fleet, job and storage state for the admin UI.
type DashboardHandler struct {
	Cameras    *repositories.CameraRepository
	Jobs       *repositories.DownloadJobRepository
	Drives     *repositories.StorageDriveRepository
	Supervisor *services.WorkerSupervisor
}

func NewDashboardHandler(
	cameras *repositories.CameraRepository,
	jobs *repositories.DownloadJobRepository,
	drives *repositories.StorageDriveRepository,
	supervisor *services.WorkerSupervisor,
) *DashboardHandler {
	return &DashboardHandler{Cameras: cameras, Jobs: jobs, Drives: drives, Supervisor: supervisor}
}

func (h *DashboardHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	cameras, err := h.Cameras.GetAll(ctx)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	online := 0
	var offline []models.Camera
	for _, cam := range cameras {
		if cam.IsOnline {
			online++
		} else {
			offline = append(offline, cam)
		}
	}

	stats, err := h.Jobs.GetStats(ctx)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	drives, err := h.Drives.GetAll(ctx)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	perDay, err := h.Jobs.CompletedPerDay(ctx, dashboardHistoryDays)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	data := models.DashboardData{
		TotalCameras:    len(cameras),
		OnlineCameras:   online,
		OfflineCameras:  len(offline),
		Jobs:            *stats,
		OfflineList:     offline,
		StorageDrives:   drives,
		DownloadsPerDay: perDay,
		Workers:         h.Supervisor.Status(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}
