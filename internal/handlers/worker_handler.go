package handlers

import (
	"encoding/json"
	"net/http"

	"camfleet-backend/internal/services"
)

type WorkerHandler struct {
	Supervisor *services.WorkerSupervisor
}

func NewWorkerHandler(supervisor *services.WorkerSupervisor) *WorkerHandler {
	return &WorkerHandler{Supervisor: supervisor}
}

// GetWorkerStatus reports a snapshot of every running camera worker.
func (h *WorkerHandler) GetWorkerStatus(w http.ResponseWriter, r *http.Request) {
	statuses := h.Supervisor.Status()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"worker_count": len(statuses),
		"workers":      statuses,
	})
}

// RefreshWorkers forces an immediate reconciliation of the worker set.
func (h *WorkerHandler) RefreshWorkers(w http.ResponseWriter, r *http.Request) {
	h.Supervisor.Refresh(r.Context())
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message":      "Workers reconciled",
		"worker_count": h.Supervisor.WorkerCount(),
	})
}
