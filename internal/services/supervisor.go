package services

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/spf13/afero"

	"camfleet-backend/internal/hikapi"
	"camfleet-backend/internal/models"
	"camfleet-backend/internal/monitoring"
)

// WorkerSupervisor keeps one CameraWorker running per camera in the fleet.
// It reconciles the worker set against the camera table on an interval and
// on demand, staggering new worker starts so a large fleet does not hit its
// devices all at once.
type WorkerSupervisor struct {
	cameras CameraStore
	jobs    JobStore
	drives  DriveStore
	client  hikapi.Client
	jobSvc  *DownloadJobService
	fs      afero.Fs
	metrics *monitoring.Metrics
	opts    WorkerOptions

	refreshInterval time.Duration
	stopGrace       time.Duration
	startStagger    time.Duration

	mu      sync.Mutex
	workers map[int64]*CameraWorker

	rootCtx    context.Context
	rootCancel context.CancelFunc
	stopCh     chan struct{}
	wg         sync.WaitGroup
}

func NewWorkerSupervisor(
	cameras CameraStore,
	jobs JobStore,
	drives DriveStore,
	client hikapi.Client,
	jobSvc *DownloadJobService,
	fs afero.Fs,
	metrics *monitoring.Metrics,
	opts WorkerOptions,
	refreshInterval, stopGrace time.Duration,
) *WorkerSupervisor {
	rootCtx, rootCancel := context.WithCancel(context.Background())
	return &WorkerSupervisor{
		cameras:         cameras,
		jobs:            jobs,
		drives:          drives,
		client:          client,
		jobSvc:          jobSvc,
		fs:              fs,
		metrics:         metrics,
		opts:            opts,
		refreshInterval: refreshInterval,
		stopGrace:       stopGrace,
		startStagger:    time.Second,
		workers:         make(map[int64]*CameraWorker),
		rootCtx:         rootCtx,
		rootCancel:      rootCancel,
		stopCh:          make(chan struct{}),
	}
}

// Start reconciles once immediately, then on every refresh interval.
func (s *WorkerSupervisor) Start() {
	log.Printf("[Supervisor] Starting (refresh every %s)", s.refreshInterval)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.Refresh(s.rootCtx)

		ticker := time.NewTicker(s.refreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stopCh:
				return
			case <-ticker.C:
				s.Refresh(s.rootCtx)
			}
		}
	}()
}

// Stop halts reconciliation and shuts every worker down in parallel, each
// bounded by the stop grace period.
func (s *WorkerSupervisor) Stop() {
	log.Println("[Supervisor] Stopping...")
	close(s.stopCh)
	s.wg.Wait()
	s.rootCancel()

	s.mu.Lock()
	workers := make([]*CameraWorker, 0, len(s.workers))
	for _, w := range s.workers {
		workers = append(workers, w)
	}
	s.workers = make(map[int64]*CameraWorker)
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, w := range workers {
		wg.Add(1)
		go func(w *CameraWorker) {
			defer wg.Done()
			w.Stop(s.stopGrace)
		}(w)
	}
	wg.Wait()
	s.metrics.WorkersRunning.Set(0)
	log.Println("[Supervisor] Stopped")
}

// Refresh reconciles the running worker set against the camera table:
// cameras without a worker get one, workers whose camera is gone are
// stopped. Safe to call concurrently with the periodic loop.
func (s *WorkerSupervisor) Refresh(ctx context.Context) {
	cams, err := s.cameras.GetAll(ctx)
	if err != nil {
		log.Printf("[Supervisor] Refresh failed to list cameras: %v", err)
		return
	}

	wanted := make(map[int64]bool, len(cams))
	for _, cam := range cams {
		wanted[cam.ID] = true
	}

	s.mu.Lock()
	var toStop []*CameraWorker
	for id, w := range s.workers {
		if !wanted[id] {
			toStop = append(toStop, w)
			delete(s.workers, id)
		}
	}

	var toStart []models.Camera
	for _, cam := range cams {
		if _, ok := s.workers[cam.ID]; !ok {
			toStart = append(toStart, cam)
		}
	}
	s.mu.Unlock()

	for _, w := range toStop {
		log.Printf("[Supervisor] Camera %d removed, stopping its worker", w.CameraID())
		w.Stop(s.stopGrace)
	}

	for i, cam := range toStart {
		if i > 0 {
			select {
			case <-time.After(s.startStagger):
			case <-ctx.Done():
				return
			}
		}
		w := NewCameraWorker(cam.ID, cam.Name, s.cameras, s.jobs, s.drives, s.client, s.jobSvc, s.fs, s.metrics, s.opts)

		s.mu.Lock()
		if _, ok := s.workers[cam.ID]; ok {
			s.mu.Unlock()
			continue // another refresh beat us to it
		}
		s.workers[cam.ID] = w
		s.mu.Unlock()

		w.Start(s.rootCtx)
		log.Printf("[Supervisor] Started worker for camera %d (%s)", cam.ID, cam.Name)
	}

	s.mu.Lock()
	s.metrics.WorkersRunning.Set(float64(len(s.workers)))
	s.mu.Unlock()
}

// Status returns a snapshot of every running worker.
func (s *WorkerSupervisor) Status() []models.WorkerStatus {
	s.mu.Lock()
	workers := make([]*CameraWorker, 0, len(s.workers))
	for _, w := range s.workers {
		workers = append(workers, w)
	}
	s.mu.Unlock()

	statuses := make([]models.WorkerStatus, 0, len(workers))
	for _, w := range workers {
		statuses = append(statuses, w.Status())
	}
	return statuses
}

// WorkerCount reports how many workers are currently running.
func (s *WorkerSupervisor) WorkerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.workers)
}
