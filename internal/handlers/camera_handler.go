package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"camfleet-backend/internal/models"
	"camfleet-backend/internal/repositories"
	"camfleet-backend/internal/services"
)

type CameraHandler struct {
	Cameras    *repositories.CameraRepository
	Health     *services.CameraHealthService
	Supervisor *services.WorkerSupervisor
}

func NewCameraHandler(cameras *repositories.CameraRepository, health *services.CameraHealthService, supervisor *services.WorkerSupervisor) *CameraHandler {
	return &CameraHandler{Cameras: cameras, Health: health, Supervisor: supervisor}
}

func (h *CameraHandler) ListCameras(w http.ResponseWriter, r *http.Request) {
	cameras, err := h.Cameras.GetAll(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(cameras)
}

func (h *CameraHandler) GetCamera(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid camera id", http.StatusBadRequest)
		return
	}

	camera, err := h.Cameras.GetByID(r.Context(), id)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrNotFound) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(camera)
}

type cameraRequest struct {
	StoreID   *int64 `json:"store_id"`
	Name      string `json:"name"`
	IPAddress string `json:"ip_address"`
	Port      int    `json:"port"`
	Username  string `json:"username"`
	Password  string `json:"password"`
}

func (req *cameraRequest) validate() error {
	if req.Name == "" {
		return errors.New("name is required")
	}
	if req.IPAddress == "" {
		return errors.New("ip_address is required")
	}
	if req.Port <= 0 || req.Port > 65535 {
		return errors.New("port must be between 1 and 65535")
	}
	return nil
}

func (h *CameraHandler) CreateCamera(w http.ResponseWriter, r *http.Request) {
	var req cameraRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := req.validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	camera := &models.Camera{
		StoreID:   req.StoreID,
		Name:      req.Name,
		IPAddress: req.IPAddress,
		Port:      req.Port,
		Username:  req.Username,
		Password:  req.Password,
	}
	if err := h.Cameras.Create(r.Context(), camera); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	// A new camera gets its worker without waiting for the next refresh.
	// Detached context: the reconciliation outlives this request.
	if h.Supervisor != nil {
		go h.Supervisor.Refresh(context.Background())
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(camera)
}

func (h *CameraHandler) UpdateCamera(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid camera id", http.StatusBadRequest)
		return
	}

	camera, err := h.Cameras.GetByID(r.Context(), id)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrNotFound) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}

	var req cameraRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := req.validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	camera.StoreID = req.StoreID
	camera.Name = req.Name
	camera.IPAddress = req.IPAddress
	camera.Port = req.Port
	camera.Username = req.Username
	if req.Password != "" {
		camera.Password = req.Password
	}
	if err := h.Cameras.Update(r.Context(), camera); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(camera)
}

func (h *CameraHandler) DeleteCamera(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid camera id", http.StatusBadRequest)
		return
	}

	if err := h.Cameras.Delete(r.Context(), id); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrNotFound) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}

	// Retire the camera's worker promptly.
	if h.Supervisor != nil {
		go h.Supervisor.Refresh(context.Background())
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"message": "Camera deleted"})
}

// CheckCamera runs an on-demand health probe against one camera.
func (h *CameraHandler) CheckCamera(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid camera id", http.StatusBadRequest)
		return
	}

	online, err := h.Health.CheckByID(r.Context(), id)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrNotFound) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"camera_id": id,
		"is_online": online,
	})
}

// CheckAllCameras runs an on-demand health sweep across the fleet.
func (h *CameraHandler) CheckAllCameras(w http.ResponseWriter, r *http.Request) {
	if err := h.Health.CheckAll(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Health check completed"})
}

// pathID reads the {id} route variable shared by the resource handlers.
func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
}
