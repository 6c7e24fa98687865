package services

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/afero"

	"camfleet-backend/internal/hikapi"
	"camfleet-backend/internal/models"
	"camfleet-backend/internal/monitoring"
	"camfleet-backend/internal/repositories"
)

// WorkerOptions carries the per-worker tunables from config.
type WorkerOptions struct {
	// CheckInterval is the worker cycle cadence.
	CheckInterval time.Duration
	// PollInterval is the transfer progress polling cadence.
	PollInterval time.Duration
	// MaxConcurrent caps simultaneous transfers against one camera.
	MaxConcurrent int
	// Lookback is the discovery window for cameras with no prior download.
	Lookback time.Duration
	// DownloadRoot is the base directory downloads are written under.
	DownloadRoot string
	// CleanupBatch is how many old completed jobs one cleanup pass removes.
	CleanupBatch int
}

// CameraWorker runs the discovery-and-download loop for one camera. Each
// cycle it reloads the camera record, applies the storage capacity gate,
// discovers new remote files and drains the camera's queue under the
// per-camera concurrency limit.
type CameraWorker struct {
	cameraID int64
	cameras  CameraStore
	jobs     JobStore
	drives   DriveStore
	client   hikapi.Client
	jobSvc   *DownloadJobService
	fs       afero.Fs
	metrics  *monitoring.Metrics
	opts     WorkerOptions

	sem    chan struct{}
	cancel context.CancelFunc
	done   chan struct{}

	activeDownloads atomic.Int32

	mu         sync.Mutex
	cameraName string
	lastCheck  *time.Time
	lastError  *string
}

func NewCameraWorker(
	cameraID int64,
	cameraName string,
	cameras CameraStore,
	jobs JobStore,
	drives DriveStore,
	client hikapi.Client,
	jobSvc *DownloadJobService,
	fs afero.Fs,
	metrics *monitoring.Metrics,
	opts WorkerOptions,
) *CameraWorker {
	if opts.MaxConcurrent < 1 {
		opts.MaxConcurrent = 1
	}
	return &CameraWorker{
		cameraID:   cameraID,
		cameraName: cameraName,
		cameras:    cameras,
		jobs:       jobs,
		drives:     drives,
		client:     client,
		jobSvc:     jobSvc,
		fs:         fs,
		metrics:    metrics,
		opts:       opts,
		sem:        make(chan struct{}, opts.MaxConcurrent),
		done:       make(chan struct{}),
	}
}

func (w *CameraWorker) CameraID() int64 { return w.cameraID }

// Start launches the worker loop. The loop's context is derived from parent,
// so cancelling the parent stops every worker.
func (w *CameraWorker) Start(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	w.cancel = cancel
	go w.run(ctx)
}

// Stop signals the worker and waits up to grace for the loop to unwind. A
// worker stuck in a device call is abandoned after the grace period so
// shutdown stays bounded.
func (w *CameraWorker) Stop(grace time.Duration) {
	w.cancel()
	select {
	case <-w.done:
	case <-time.After(grace):
		log.Printf("[Worker:%d] Did not stop within %s, abandoning", w.cameraID, grace)
	}
}

// Status returns a snapshot for the observability API.
func (w *CameraWorker) Status() models.WorkerStatus {
	w.mu.Lock()
	defer w.mu.Unlock()
	return models.WorkerStatus{
		CameraID:            w.cameraID,
		CameraName:          w.cameraName,
		IsRunning:           true,
		ActiveDownloadCount: int(w.activeDownloads.Load()),
		LastCheckTime:       w.lastCheck,
		LastError:           w.lastError,
	}
}

// setCameraName keeps the status snapshot current when a camera is renamed.
func (w *CameraWorker) setCameraName(name string) {
	w.mu.Lock()
	w.cameraName = name
	w.mu.Unlock()
}

func (w *CameraWorker) run(ctx context.Context) {
	defer close(w.done)
	log.Printf("[Worker:%d] Started", w.cameraID)

	w.cycle(ctx)

	ticker := time.NewTicker(w.opts.CheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Printf("[Worker:%d] Stopped", w.cameraID)
			return
		case <-ticker.C:
			w.cycle(ctx)
		}
	}
}

// cycle performs one full pass. Errors are recorded on the worker and the
// owning records; nothing escapes to kill the loop.
func (w *CameraWorker) cycle(ctx context.Context) {
	now := time.Now()
	w.mu.Lock()
	w.lastCheck = &now
	w.mu.Unlock()

	if err := w.processCamera(ctx); err != nil && ctx.Err() == nil {
		msg := err.Error()
		w.mu.Lock()
		w.lastError = &msg
		w.mu.Unlock()
		log.Printf("[Worker:%d] Cycle error: %v", w.cameraID, err)
	} else if err == nil {
		w.mu.Lock()
		w.lastError = nil
		w.mu.Unlock()
	}
}

func (w *CameraWorker) processCamera(ctx context.Context) error {
	cam, err := w.cameras.GetByID(ctx, w.cameraID)
	if errors.Is(err, repositories.ErrNotFound) {
		// Camera removed; the supervisor retires this worker on its next
		// reconciliation.
		return nil
	}
	if err != nil {
		return fmt.Errorf("reload camera: %w", err)
	}
	w.setCameraName(cam.Name)
	if !cam.IsOnline {
		return nil // nothing to do against an unreachable device
	}

	full, err := w.storageFull(ctx)
	if err != nil {
		return fmt.Errorf("storage gate: %w", err)
	}
	if full {
		log.Printf("[Worker:%d] Storage critically full, cleaning up old downloads", w.cameraID)
		w.cleanupOldDownloads(ctx)

		if full, err = w.storageFull(ctx); err != nil {
			return fmt.Errorf("storage gate recheck: %w", err)
		}
		if full {
			// Backpressure: accounting ran, but no transfer may start.
			log.Printf("[Worker:%d] Storage still critically full, skipping cycle", w.cameraID)
			return nil
		}
	}

	// A discovery failure is recorded but must not stop queue draining.
	discoveryErr := w.discoverFiles(ctx, cam)

	w.drainPending(ctx, cam)

	return discoveryErr
}

func (w *CameraWorker) storageFull(ctx context.Context) (bool, error) {
	drives, err := w.drives.GetAll(ctx)
	if err != nil {
		return false, err
	}
	for i := range drives {
		if IsCriticallyFull(&drives[i]) {
			return true, nil
		}
	}
	return false, nil
}

// cleanupOldDownloads deletes the camera's oldest completed downloads, local
// file first, then the job record. One bounded batch per cycle.
func (w *CameraWorker) cleanupOldDownloads(ctx context.Context) {
	old, err := w.jobs.GetOldestCompleted(ctx, w.cameraID, w.opts.CleanupBatch)
	if err != nil {
		log.Printf("[Worker:%d] Cleanup query failed: %v", w.cameraID, err)
		return
	}

	for _, job := range old {
		if err := w.fs.Remove(job.DownloadPath); err != nil && !isNotExist(err) {
			log.Printf("[Worker:%d] Cleanup could not remove %s: %v", w.cameraID, job.DownloadPath, err)
			continue
		}
		if err := w.jobs.Delete(ctx, job.ID); err != nil {
			log.Printf("[Worker:%d] Cleanup could not delete job %d: %v", w.cameraID, job.ID, err)
			continue
		}
		w.metrics.CleanupDeletions.Inc()
		log.Printf("[Worker:%d] Cleaned up job %d (%s)", w.cameraID, job.ID, job.FileName)
	}
}

func isNotExist(err error) bool {
	if err == nil {
		return false
	}
	// afero's memory backend does not wrap fs.ErrNotExist, so match its
	// message as well.
	return errors.Is(err, fs.ErrNotExist) || strings.Contains(err.Error(), "file does not exist")
}

// discoverFiles lists remote recordings since the camera's download watermark
// and creates pending jobs for files that have none yet. The session is
// closed on every path; errors are recorded on the camera.
func (w *CameraWorker) discoverFiles(ctx context.Context, cam *models.Camera) error {
	sess, err := w.client.Connect(ctx, cam.IPAddress, cam.Port, cam.Username, cam.Password)
	if err != nil {
		w.recordDiscoveryError(ctx, cam, err)
		return fmt.Errorf("discovery connect: %w", err)
	}
	defer sess.Close()

	to := time.Now()
	from := to.Add(-w.opts.Lookback)
	if cam.LastDownloadedAt != nil {
		from = cam.LastDownloadedAt.Add(-5 * time.Minute)
	}

	files, err := w.listAllChannels(ctx, sess, from, to)
	if err != nil {
		w.recordDiscoveryError(ctx, cam, err)
		return fmt.Errorf("discovery list: %w", err)
	}

	created := 0
	for _, f := range files {
		exists, err := w.jobs.ExistsForFile(ctx, cam.ID, f.Name)
		if err != nil {
			w.recordDiscoveryError(ctx, cam, err)
			return fmt.Errorf("discovery dedup check: %w", err)
		}
		if exists {
			continue
		}

		job := &models.FileDownloadJob{
			CameraID:      cam.ID,
			FileName:      f.Name,
			FileType:      fileTypeFor(f.Name),
			FileSize:      f.Size,
			DownloadPath:  filepath.Join(w.opts.DownloadRoot, fmt.Sprintf("%d", cam.ID), f.Name+".mp4"),
			FileStartTime: f.StartTime,
			FileEndTime:   f.EndTime,
		}
		if err := w.jobs.Create(ctx, job); err != nil {
			w.recordDiscoveryError(ctx, cam, err)
			return fmt.Errorf("create job for %s: %w", f.Name, err)
		}
		created++
		w.metrics.FilesDiscovered.Inc()
	}

	if created > 0 {
		log.Printf("[Worker:%d] Discovered %d new file(s)", w.cameraID, created)
	}
	return nil
}

// listAllChannels enumerates recorder channels and lists each online one; a
// device with no channels is treated as a single direct feed.
func (w *CameraWorker) listAllChannels(ctx context.Context, sess hikapi.Session, from, to time.Time) ([]hikapi.RemoteFile, error) {
	channels, err := sess.Channels(ctx)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}

	if len(channels) == 0 {
		return sess.FindFiles(ctx, from, to, hikapi.DirectChannel)
	}

	var files []hikapi.RemoteFile
	for _, ch := range channels {
		if !ch.IsOnline {
			continue
		}
		chFiles, err := sess.FindFiles(ctx, from, to, ch.Number)
		if err != nil {
			return nil, fmt.Errorf("channel %d: %w", ch.Number, err)
		}
		files = append(files, chFiles...)
	}
	return files, nil
}

func (w *CameraWorker) recordDiscoveryError(ctx context.Context, cam *models.Camera, err error) {
	if ctx.Err() != nil {
		return // shutdown, not a device error
	}
	if dbErr := w.cameras.RecordError(ctx, cam.ID, err.Error()); dbErr != nil {
		log.Printf("[Worker:%d] Failed to record discovery error: %v", w.cameraID, dbErr)
	}
}

func fileTypeFor(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png":
		return models.FileTypePhoto
	default:
		return models.FileTypeVideo
	}
}

// drainPending starts transfers for the camera's queued jobs, oldest first,
// each behind the per-camera semaphore. The cycle waits for the batch so two
// cycles never compete for the same jobs.
func (w *CameraWorker) drainPending(ctx context.Context, cam *models.Camera) {
	pending, err := w.jobs.GetPendingForCamera(ctx, cam.ID, w.opts.MaxConcurrent)
	if err != nil {
		log.Printf("[Worker:%d] Failed to load pending jobs: %v", w.cameraID, err)
		return
	}

	var wg sync.WaitGroup
	for i := range pending {
		job := pending[i]

		select {
		case w.sem <- struct{}{}:
		case <-ctx.Done():
			return
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-w.sem }()
			w.downloadFile(ctx, cam, &job)
		}()
	}
	wg.Wait()
}

// downloadFile runs one transfer end to end. Session release, semaphore
// release and the active-transfer registry are all cleaned up on every exit
// path. Cooperative cancellation returns the job to pending unless the
// operator already moved it to cancelled.
func (w *CameraWorker) downloadFile(ctx context.Context, cam *models.Camera, job *models.FileDownloadJob) {
	w.activeDownloads.Add(1)
	w.metrics.ActiveDownloads.Inc()
	defer func() {
		w.activeDownloads.Add(-1)
		w.metrics.ActiveDownloads.Dec()
	}()

	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	w.jobSvc.RegisterActive(job.ID, cancel)
	defer w.jobSvc.UnregisterActive(job.ID)

	if err := w.jobs.MarkDownloading(ctx, job.ID); err != nil {
		// Claimed or cancelled since the queue was read.
		log.Printf("[Worker:%d] Skipping job %d: %v", w.cameraID, job.ID, err)
		return
	}

	log.Printf("[Worker:%d] Starting download of %s (job %d)", w.cameraID, job.FileName, job.ID)

	sess, err := w.client.Connect(jobCtx, cam.IPAddress, cam.Port, cam.Username, cam.Password)
	if err != nil {
		w.finishFailed(job, fmt.Errorf("connect: %w", err))
		return
	}
	defer sess.Close()

	if err := w.fs.MkdirAll(filepath.Dir(job.DownloadPath), 0o755); err != nil {
		w.finishFailed(job, fmt.Errorf("create download dir: %w", err))
		return
	}

	// Re-list around the recording window so the session knows the file (and
	// its size); a file pruned from the device since discovery fails here.
	// The listing covers every channel, same as discovery, so files found on
	// an NVR channel are located again.
	files, err := w.listAllChannels(jobCtx, sess, job.FileStartTime.Add(-time.Hour), time.Now())
	if err != nil {
		w.finish(jobCtx, job, fmt.Errorf("locate file: %w", err))
		return
	}
	found := false
	for _, f := range files {
		if f.Name == job.FileName {
			found = true
			break
		}
	}
	if !found {
		w.finishFailed(job, fmt.Errorf("file %s no longer present on device", job.FileName))
		return
	}

	tempPath := job.DownloadPath + ".tmp"
	transferID, err := sess.StartDownload(jobCtx, job.FileName, tempPath)
	if err != nil {
		w.finish(jobCtx, job, fmt.Errorf("start transfer: %w", err))
		return
	}

	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-jobCtx.Done():
			sess.StopDownload(transferID)
			w.finishCancelled(job, tempPath)
			return
		case <-ticker.C:
		}

		progress, err := sess.PollProgress(transferID)
		if err != nil {
			sess.StopDownload(transferID)
			w.finishFailed(job, fmt.Errorf("transfer: %w", err))
			return
		}

		if err := w.jobs.UpdateProgress(jobCtx, job.ID, progress); err != nil {
			log.Printf("[Worker:%d] Failed to persist progress for job %d: %v", w.cameraID, job.ID, err)
		}

		if progress >= 100 {
			sess.StopDownload(transferID)
			w.finishCompleted(job, tempPath)
			return
		}
	}
}

// finish routes an error to cancelled or failed handling depending on
// whether the job context was torn down.
func (w *CameraWorker) finish(ctx context.Context, job *models.FileDownloadJob, err error) {
	if ctx.Err() != nil {
		w.finishCancelled(job, job.DownloadPath+".tmp")
		return
	}
	w.finishFailed(job, err)
}

func (w *CameraWorker) finishCompleted(job *models.FileDownloadJob, tempPath string) {
	// Final writes run on a fresh context: completion must be recorded even
	// if shutdown fires between the last poll and here.
	ctx := context.Background()

	if err := w.fs.Rename(tempPath, job.DownloadPath); err != nil {
		w.finishFailed(job, fmt.Errorf("move %s into place: %w", tempPath, err))
		return
	}

	if err := w.jobs.MarkCompleted(ctx, job.ID); err != nil {
		log.Printf("[Worker:%d] Failed to mark job %d completed: %v", w.cameraID, job.ID, err)
		return
	}
	if err := w.cameras.SetLastDownloadedAt(ctx, w.cameraID, time.Now()); err != nil {
		log.Printf("[Worker:%d] Failed to advance download watermark: %v", w.cameraID, err)
	}

	w.metrics.DownloadsCompleted.Inc()
	log.Printf("[Worker:%d] Completed download of %s (job %d)", w.cameraID, job.FileName, job.ID)
}

func (w *CameraWorker) finishFailed(job *models.FileDownloadJob, cause error) {
	ctx := context.Background()
	if err := w.jobs.MarkFailed(ctx, job.ID, cause.Error()); err != nil {
		log.Printf("[Worker:%d] Failed to mark job %d failed: %v", w.cameraID, job.ID, err)
	}
	w.metrics.DownloadsFailed.Inc()
	log.Printf("[Worker:%d] Download of %s failed (job %d): %v", w.cameraID, job.FileName, job.ID, cause)
}

// finishCancelled puts an interrupted job back to pending; if the operator
// cancelled it, ResetPending leaves the terminal state alone. The partial
// temp file is discarded either way.
func (w *CameraWorker) finishCancelled(job *models.FileDownloadJob, tempPath string) {
	ctx := context.Background()
	if err := w.fs.Remove(tempPath); err != nil && !isNotExist(err) {
		log.Printf("[Worker:%d] Could not remove partial file %s: %v", w.cameraID, tempPath, err)
	}
	if err := w.jobs.ResetPending(ctx, job.ID, "Download cancelled"); err != nil {
		log.Printf("[Worker:%d] Failed to reset job %d after cancel: %v", w.cameraID, job.ID, err)
	}
	log.Printf("[Worker:%d] Download of %s cancelled (job %d)", w.cameraID, job.FileName, job.ID)
}
