package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/spf13/afero"

	"camfleet-backend/internal/hikapi"
	"camfleet-backend/internal/models"
	"camfleet-backend/internal/repositories"
)

// In-memory store fakes mirroring the SQL guards the repositories enforce.

type fakeCameraStore struct {
	mu      sync.Mutex
	cameras map[int64]*models.Camera
}

func newFakeCameraStore(cams ...*models.Camera) *fakeCameraStore {
	s := &fakeCameraStore{cameras: make(map[int64]*models.Camera)}
	for _, c := range cams {
		s.cameras[c.ID] = c
	}
	return s
}

func (s *fakeCameraStore) GetAll(_ context.Context) ([]models.Camera, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Camera, 0, len(s.cameras))
	for _, c := range s.cameras {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeCameraStore) GetByID(_ context.Context, id int64) (*models.Camera, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cameras[id]
	if !ok {
		return nil, fmt.Errorf("camera %d: %w", id, repositories.ErrNotFound)
	}
	cp := *c
	return &cp, nil
}

func (s *fakeCameraStore) MarkOnline(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.cameras[id]; ok {
		now := time.Now()
		c.IsOnline = true
		c.LastOnlineAt = &now
		c.LastHealthCheckAt = &now
		c.LastError = nil
	}
	return nil
}

func (s *fakeCameraStore) MarkOffline(_ context.Context, id int64, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.cameras[id]; ok {
		now := time.Now()
		c.IsOnline = false
		c.LastError = &errMsg
		c.LastErrorAt = &now
		c.LastHealthCheckAt = &now
	}
	return nil
}

func (s *fakeCameraStore) RecordError(_ context.Context, id int64, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.cameras[id]; ok {
		now := time.Now()
		c.LastError = &errMsg
		c.LastErrorAt = &now
	}
	return nil
}

func (s *fakeCameraStore) SetLastDownloadedAt(_ context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.cameras[id]; ok {
		c.LastDownloadedAt = &at
	}
	return nil
}

func (s *fakeCameraStore) remove(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cameras, id)
}

type fakeJobStore struct {
	mu     sync.Mutex
	nextID int64
	jobs   map[int64]*models.FileDownloadJob
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{jobs: make(map[int64]*models.FileDownloadJob)}
}

func (s *fakeJobStore) Create(_ context.Context, j *models.FileDownloadJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	j.ID = s.nextID
	if j.Status == "" {
		j.Status = models.JobStatusPending
	}
	j.CreatedAt = time.Now().Add(time.Duration(s.nextID) * time.Microsecond)
	cp := *j
	s.jobs[j.ID] = &cp
	return nil
}

func (s *fakeJobStore) GetByID(_ context.Context, id int64) (*models.FileDownloadJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %d: not found", id)
	}
	cp := *j
	return &cp, nil
}

func (s *fakeJobStore) ExistsForFile(_ context.Context, cameraID int64, fileName string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		if j.CameraID == cameraID && j.FileName == fileName {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeJobStore) GetPendingForCamera(_ context.Context, cameraID int64, limit int) ([]models.FileDownloadJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.FileDownloadJob
	for _, j := range s.jobs {
		if j.CameraID == cameraID && (j.Status == models.JobStatusPending || j.Status == models.JobStatusFailed) {
			out = append(out, *j)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.Before(out[k].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeJobStore) GetOldestCompleted(_ context.Context, cameraID int64, limit int) ([]models.FileDownloadJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.FileDownloadJob
	for _, j := range s.jobs {
		if j.CameraID == cameraID && j.Status == models.JobStatusCompleted {
			out = append(out, *j)
		}
	}
	sort.Slice(out, func(i, k int) bool {
		a, b := out[i].EndTime, out[k].EndTime
		if a == nil || b == nil {
			return out[i].ID < out[k].ID
		}
		return a.Before(*b)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeJobStore) MarkDownloading(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok || (j.Status != models.JobStatusPending && j.Status != models.JobStatusFailed) {
		return fmt.Errorf("job %d: not claimable", id)
	}
	now := time.Now()
	j.Status = models.JobStatusDownloading
	j.StartTime = &now
	j.ErrorMessage = nil
	return nil
}

func (s *fakeJobStore) UpdateProgress(_ context.Context, id int64, progress int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[id]; ok && j.Status == models.JobStatusDownloading && progress > j.Progress {
		j.Progress = progress
	}
	return nil
}

func (s *fakeJobStore) MarkCompleted(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[id]; ok {
		now := time.Now()
		j.Status = models.JobStatusCompleted
		j.Progress = 100
		j.EndTime = &now
	}
	return nil
}

func (s *fakeJobStore) MarkFailed(_ context.Context, id int64, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[id]; ok {
		now := time.Now()
		j.Status = models.JobStatusFailed
		j.ErrorMessage = &errMsg
		j.EndTime = &now
	}
	return nil
}

func (s *fakeJobStore) ResetPending(_ context.Context, id int64, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[id]; ok && j.Status != models.JobStatusCancelled {
		j.Status = models.JobStatusPending
		j.ErrorMessage = &reason
	}
	return nil
}

func (s *fakeJobStore) ResetForRetry(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok || j.Status == models.JobStatusDownloading {
		return fmt.Errorf("job %d: not retryable", id)
	}
	j.Status = models.JobStatusPending
	j.Progress = 0
	j.ErrorMessage = nil
	return nil
}

func (s *fakeJobStore) MarkCancelled(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok || (j.Status != models.JobStatusPending && j.Status != models.JobStatusFailed && j.Status != models.JobStatusDownloading) {
		return fmt.Errorf("job %d: not cancellable", id)
	}
	j.Status = models.JobStatusCancelled
	return nil
}

func (s *fakeJobStore) SweepStaleDownloading(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	msg := "Interrupted by service shutdown"
	for _, j := range s.jobs {
		if j.Status == models.JobStatusDownloading {
			j.Status = models.JobStatusFailed
			j.ErrorMessage = &msg
			n++
		}
	}
	return n, nil
}

func (s *fakeJobStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, id)
	return nil
}

func (s *fakeJobStore) get(id int64) models.FileDownloadJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.jobs[id]
}

func (s *fakeJobStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

type fakeDriveStore struct {
	mu     sync.Mutex
	nextID int64
	drives map[int64]*models.StorageDrive
}

func newFakeDriveStore(drives ...*models.StorageDrive) *fakeDriveStore {
	s := &fakeDriveStore{drives: make(map[int64]*models.StorageDrive)}
	for _, d := range drives {
		s.nextID++
		d.ID = s.nextID
		s.drives[d.ID] = d
	}
	return s
}

func (s *fakeDriveStore) GetAll(_ context.Context) ([]models.StorageDrive, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.StorageDrive, 0, len(s.drives))
	for _, d := range s.drives {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeDriveStore) Create(_ context.Context, d *models.StorageDrive) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	d.ID = s.nextID
	cp := *d
	s.drives[d.ID] = &cp
	return nil
}

func (s *fakeDriveStore) UpdateSpace(_ context.Context, id int64, total, used, free int64, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.drives[id]; ok {
		now := time.Now()
		d.TotalSpace = total
		d.UsedSpace = used
		d.FreeSpace = free
		d.Status = status
		d.LastCheckedAt = &now
	}
	return nil
}

func (s *fakeDriveStore) SetStatus(_ context.Context, id int64, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.drives[id]; ok {
		d.Status = status
	}
	return nil
}

func (s *fakeDriveStore) get(id int64) models.StorageDrive {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.drives[id]
}

// fakeClient and fakeSession stand in for the device console.

type fakeClient struct {
	mu         sync.Mutex
	connectErr error
	session    *fakeSession
	connects   int
}

func (c *fakeClient) Connect(_ context.Context, _ string, _ int, _, _ string) (hikapi.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connects++
	if c.connectErr != nil {
		return nil, c.connectErr
	}
	return c.session, nil
}

func (c *fakeClient) connectCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connects
}

type fakeSession struct {
	mu       sync.Mutex
	channels []hikapi.Channel
	files    []hikapi.RemoteFile
	// channelFiles scopes listings to a channel number, matching the
	// Session contract for multi-channel recorders. When nil, files is
	// returned for any channel.
	channelFiles map[int][]hikapi.RemoteFile
	findErr      error
	startErr     error

	// progressSeq values are returned by PollProgress in order; the last
	// value repeats once the sequence is exhausted.
	progressSeq []int
	pollErr     error
	pollCalls   int

	// blockPoll, when non-nil, makes PollProgress hang until it is closed.
	blockPoll chan struct{}

	fs afero.Fs

	stopped bool
	closed  bool
}

func (s *fakeSession) Channels(_ context.Context) ([]hikapi.Channel, error) {
	return s.channels, nil
}

func (s *fakeSession) FindFiles(_ context.Context, _, _ time.Time, channel int) ([]hikapi.RemoteFile, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	if s.channelFiles != nil {
		return s.channelFiles[channel], nil
	}
	return s.files, nil
}

func (s *fakeSession) StartDownload(_ context.Context, fileName, destPath string) (string, error) {
	if s.startErr != nil {
		return "", s.startErr
	}
	if s.fs != nil {
		afero.WriteFile(s.fs, destPath, []byte(fileName), 0o644)
	}
	return "transfer-" + fileName, nil
}

func (s *fakeSession) PollProgress(_ string) (int, error) {
	if s.blockPoll != nil {
		<-s.blockPoll
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pollErr != nil {
		return 0, s.pollErr
	}
	i := s.pollCalls
	s.pollCalls++
	if i >= len(s.progressSeq) {
		i = len(s.progressSeq) - 1
	}
	if i < 0 {
		return 100, nil
	}
	return s.progressSeq[i], nil
}

func (s *fakeSession) StopDownload(_ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
}

func (s *fakeSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}
