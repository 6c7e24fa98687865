package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"camfleet-backend/internal/models"
	"camfleet-backend/internal/repositories"
	"camfleet-backend/internal/services"
)

const statusPushInterval = 3 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The API is CORS-guarded upstream; the websocket endpoint follows suit.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// StatusStreamHandler pushes live worker and job state over a websocket so
// the dashboard does not have to poll.
type StatusStreamHandler struct {
	Jobs       *repositories.DownloadJobRepository
	Supervisor *services.WorkerSupervisor
}

func NewStatusStreamHandler(jobs *repositories.DownloadJobRepository, supervisor *services.WorkerSupervisor) *StatusStreamHandler {
	return &StatusStreamHandler{Jobs: jobs, Supervisor: supervisor}
}

type statusFrame struct {
	Timestamp time.Time   `json:"timestamp"`
	Workers   interface{} `json:"workers"`
	Jobs      interface{} `json:"jobs"`
	Active    interface{} `json:"active_downloads"`
}

func (h *StatusStreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[WS] Upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	// Drain control frames so pings and the close handshake are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(statusPushInterval)
	defer ticker.Stop()

	for {
		if err := h.push(r, conn); err != nil {
			return
		}
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

func (h *StatusStreamHandler) push(r *http.Request, conn *websocket.Conn) error {
	stats, err := h.Jobs.GetStats(r.Context())
	if err != nil {
		log.Printf("[WS] Failed to load job stats: %v", err)
		return err
	}

	downloading, err := h.Jobs.GetByStatus(r.Context(), models.JobStatusDownloading, 50)
	if err != nil {
		log.Printf("[WS] Failed to load active downloads: %v", err)
		return err
	}

	frame := statusFrame{
		Timestamp: time.Now(),
		Workers:   h.Supervisor.Status(),
		Jobs:      stats,
		Active:    downloading,
	}

	conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteJSON(frame)
}
