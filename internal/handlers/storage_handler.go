package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"camfleet-backend/internal/models"
	"camfleet-backend/internal/repositories"
	"camfleet-backend/internal/services"
)

type StorageHandler struct {
	Drives  *repositories.StorageDriveRepository
	Monitor *services.StorageMonitorService
}

func NewStorageHandler(drives *repositories.StorageDriveRepository, monitor *services.StorageMonitorService) *StorageHandler {
	return &StorageHandler{Drives: drives, Monitor: monitor}
}

func (h *StorageHandler) ListDrives(w http.ResponseWriter, r *http.Request) {
	drives, err := h.Drives.GetAll(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(drives)
}

func (h *StorageHandler) GetDrive(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid drive id", http.StatusBadRequest)
		return
	}

	drive, err := h.Drives.GetByID(r.Context(), id)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrNotFound) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(drive)
}

type driveRequest struct {
	Name     string `json:"name"`
	RootPath string `json:"root_path"`
}

func (req *driveRequest) validate() error {
	if req.Name == "" {
		return errors.New("name is required")
	}
	if req.RootPath == "" {
		return errors.New("root_path is required")
	}
	return nil
}

func (h *StorageHandler) CreateDrive(w http.ResponseWriter, r *http.Request) {
	var req driveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := req.validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	drive := &models.StorageDrive{
		Name:     req.Name,
		RootPath: req.RootPath,
		Status:   models.DriveStatusNormal,
	}
	if err := h.Drives.Create(r.Context(), drive); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	// Measure the new drive right away so the capacity gate sees real
	// figures. Detached context: the check outlives this request.
	go h.Monitor.CheckAll(context.Background())

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(drive)
}

func (h *StorageHandler) UpdateDrive(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid drive id", http.StatusBadRequest)
		return
	}

	drive, err := h.Drives.GetByID(r.Context(), id)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrNotFound) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}

	var req driveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := req.validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	drive.Name = req.Name
	drive.RootPath = req.RootPath
	if err := h.Drives.Update(r.Context(), drive); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(drive)
}

func (h *StorageHandler) DeleteDrive(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid drive id", http.StatusBadRequest)
		return
	}

	if err := h.Drives.Delete(r.Context(), id); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrNotFound) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"message": "Drive deleted"})
}

// CheckDrives re-measures every drive on demand.
func (h *StorageHandler) CheckDrives(w http.ResponseWriter, r *http.Request) {
	if err := h.Monitor.CheckAll(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	drives, err := h.Drives.GetAll(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(drives)
}
