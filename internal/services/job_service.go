package services

import (
	"context"
	"log"
	"sync"
)

// DownloadJobService handles operator commands against jobs and tracks the
// cancellation handles of in-flight transfers so a cancel command can reach
// a running download.
type DownloadJobService struct {
	jobs JobStore

	mu     sync.Mutex
	active map[int64]context.CancelFunc
}

func NewDownloadJobService(jobs JobStore) *DownloadJobService {
	return &DownloadJobService{
		jobs:   jobs,
		active: make(map[int64]context.CancelFunc),
	}
}

// RegisterActive records the cancel handle for a transfer about to start.
// Workers call this; the handle is removed again by UnregisterActive.
func (s *DownloadJobService) RegisterActive(jobID int64, cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active[jobID] = cancel
}

func (s *DownloadJobService) UnregisterActive(jobID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, jobID)
}

// ActiveCount reports how many transfers currently hold a cancel handle.
func (s *DownloadJobService) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// Retry puts a failed (or still queued) job back to a clean pending state.
// Jobs that are currently downloading are refused.
func (s *DownloadJobService) Retry(ctx context.Context, jobID int64) error {
	if err := s.jobs.ResetForRetry(ctx, jobID); err != nil {
		return err
	}
	log.Printf("[Jobs] Job %d reset for retry", jobID)
	return nil
}

// Cancel moves a job to the terminal cancelled state. The status is written
// first so the download routine, once its context fires, sees the operator's
// decision and does not resurrect the job as pending. Cancelling a job with
// no active transfer is a plain status change.
func (s *DownloadJobService) Cancel(ctx context.Context, jobID int64) error {
	if err := s.jobs.MarkCancelled(ctx, jobID); err != nil {
		return err
	}

	s.mu.Lock()
	cancel, running := s.active[jobID]
	s.mu.Unlock()

	if running {
		cancel()
		log.Printf("[Jobs] Job %d cancelled, in-flight transfer signalled", jobID)
	} else {
		log.Printf("[Jobs] Job %d cancelled", jobID)
	}
	return nil
}

// SweepStale fails every job left in downloading from a previous run. Called
// once at startup, before any worker starts.
func (s *DownloadJobService) SweepStale(ctx context.Context) error {
	n, err := s.jobs.SweepStaleDownloading(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		log.Printf("[Jobs] Swept %d stale downloading job(s) to failed", n)
	}
	return nil
}
