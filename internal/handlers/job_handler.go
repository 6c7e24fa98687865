package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"camfleet-backend/internal/models"
	"camfleet-backend/internal/repositories"
	"camfleet-backend/internal/services"
)

const defaultJobListLimit = 200

type JobHandler struct {
	Jobs    *repositories.DownloadJobRepository
	Service *services.DownloadJobService
}

func NewJobHandler(jobs *repositories.DownloadJobRepository, service *services.DownloadJobService) *JobHandler {
	return &JobHandler{Jobs: jobs, Service: service}
}

// ListJobs returns recent jobs, optionally filtered by ?status=.
func (h *JobHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	limit := defaultJobListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}

	var (
		jobs []models.FileDownloadJob
		err  error
	)
	if status := r.URL.Query().Get("status"); status != "" {
		if !validJobStatus(status) {
			http.Error(w, "Unknown job status", http.StatusBadRequest)
			return
		}
		jobs, err = h.Jobs.GetByStatus(r.Context(), status, limit)
	} else {
		jobs, err = h.Jobs.GetAll(r.Context(), limit)
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(jobs)
}

func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid job id", http.StatusBadRequest)
		return
	}

	job, err := h.Jobs.GetByID(r.Context(), id)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrNotFound) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(job)
}

// RetryJob puts a failed job back in the queue with a clean slate.
func (h *JobHandler) RetryJob(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid job id", http.StatusBadRequest)
		return
	}

	if err := h.Service.Retry(r.Context(), id); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Job queued for retry"})
}

// CancelJob moves a job to the terminal cancelled state, interrupting its
// transfer if one is running.
func (h *JobHandler) CancelJob(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid job id", http.StatusBadRequest)
		return
	}

	if err := h.Service.Cancel(r.Context(), id); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Job cancelled"})
}

func (h *JobHandler) GetJobStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Jobs.GetStats(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

func validJobStatus(s string) bool {
	switch s {
	case models.JobStatusPending, models.JobStatusDownloading, models.JobStatusCompleted,
		models.JobStatusFailed, models.JobStatusCancelled:
		return true
	}
	return false
}
