package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"camfleet-backend/internal/models"
	"camfleet-backend/internal/repositories"
)

// FootageHandler answers evidence queries: which downloaded recordings cover
// a given time window.
type FootageHandler struct {
	Jobs *repositories.DownloadJobRepository
}

func NewFootageHandler(jobs *repositories.DownloadJobRepository) *FootageHandler {
	return &FootageHandler{Jobs: jobs}
}

// FindFootage lists completed downloads whose recording window overlaps
// [from, to]. Optional filters: ?camera_id= and ?type=video|photo.
func (h *FootageHandler) FindFootage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	from, err := parseTimeParam(q.Get("from"), time.Now().Add(-24*time.Hour))
	if err != nil {
		http.Error(w, "Invalid 'from' timestamp, want RFC 3339", http.StatusBadRequest)
		return
	}
	to, err := parseTimeParam(q.Get("to"), time.Now())
	if err != nil {
		http.Error(w, "Invalid 'to' timestamp, want RFC 3339", http.StatusBadRequest)
		return
	}
	if to.Before(from) {
		http.Error(w, "'to' must not precede 'from'", http.StatusBadRequest)
		return
	}

	var cameraID int64
	if v := q.Get("camera_id"); v != "" {
		cameraID, err = strconv.ParseInt(v, 10, 64)
		if err != nil {
			http.Error(w, "Invalid camera_id", http.StatusBadRequest)
			return
		}
	}

	fileType := q.Get("type")
	if fileType != "" && fileType != models.FileTypeVideo && fileType != models.FileTypePhoto {
		http.Error(w, "Unknown file type", http.StatusBadRequest)
		return
	}

	footage, err := h.Jobs.FindFootage(r.Context(), cameraID, from, to, fileType)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"from":    from,
		"to":      to,
		"count":   len(footage),
		"footage": footage,
	})
}

func parseTimeParam(v string, def time.Time) (time.Time, error) {
	if v == "" {
		return def, nil
	}
	return time.Parse(time.RFC3339, v)
}
