package services

import (
	"context"
	"log"
	"sync"
	"time"

	"camfleet-backend/internal/hikapi"
	"camfleet-backend/internal/models"
	"camfleet-backend/internal/monitoring"
)

// CameraHealthService tests reachability of every camera on a fixed interval.
// It only mutates camera records; job state is untouched.
type CameraHealthService struct {
	cameras CameraStore
	client  hikapi.Client
	metrics *monitoring.Metrics

	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func NewCameraHealthService(cameras CameraStore, client hikapi.Client, metrics *monitoring.Metrics, interval time.Duration) *CameraHealthService {
	return &CameraHealthService{
		cameras:  cameras,
		client:   client,
		metrics:  metrics,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start launches the background check loop.
func (s *CameraHealthService) Start() {
	log.Printf("[Health] Camera health checks starting, interval %s", s.interval)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		if err := s.CheckAll(context.Background()); err != nil {
			log.Printf("[Health] Check failed: %v", err)
		}

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stopCh:
				log.Println("[Health] Camera health checks stopping")
				return
			case <-ticker.C:
				if err := s.CheckAll(context.Background()); err != nil {
					log.Printf("[Health] Check failed: %v", err)
				}
			}
		}
	}()
}

// Stop shuts the loop down and waits for it.
func (s *CameraHealthService) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

// CheckAll probes every camera. Individual failures are recorded on the
// camera and never abort the sweep.
func (s *CameraHealthService) CheckAll(ctx context.Context) error {
	cameras, err := s.cameras.GetAll(ctx)
	if err != nil {
		return err
	}

	online := 0
	for i := range cameras {
		if s.CheckOne(ctx, &cameras[i]) {
			online++
		}
	}
	s.metrics.CamerasOnline.Set(float64(online))
	return nil
}

// CheckByID probes a single camera on demand.
func (s *CameraHealthService) CheckByID(ctx context.Context, id int64) (bool, error) {
	cam, err := s.cameras.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	return s.CheckOne(ctx, cam), nil
}

// CheckOne attempts a bounded connect/login and updates the camera's online
// flag accordingly. The session is released on every path.
func (s *CameraHealthService) CheckOne(ctx context.Context, cam *models.Camera) bool {
	sess, err := s.client.Connect(ctx, cam.IPAddress, cam.Port, cam.Username, cam.Password)
	if err != nil {
		if cam.IsOnline {
			log.Printf("[Health] Camera %s (%d) went offline: %v", cam.Name, cam.ID, err)
		}
		if dbErr := s.cameras.MarkOffline(ctx, cam.ID, err.Error()); dbErr != nil {
			log.Printf("[Health] Failed to mark camera %d offline: %v", cam.ID, dbErr)
		}
		return false
	}
	sess.Close()

	if !cam.IsOnline {
		log.Printf("[Health] Camera %s (%d) is back online", cam.Name, cam.ID)
	}
	if dbErr := s.cameras.MarkOnline(ctx, cam.ID); dbErr != nil {
		log.Printf("[Health] Failed to mark camera %d online: %v", cam.ID, dbErr)
	}
	return true
}
