package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"camfleet-backend/internal/hikapi"
	"camfleet-backend/internal/models"
	"camfleet-backend/internal/monitoring"
)

func newTestMetrics() *monitoring.Metrics {
	return monitoring.New(prometheus.NewRegistry())
}

func testWorkerOptions() WorkerOptions {
	return WorkerOptions{
		CheckInterval: time.Hour,
		PollInterval:  time.Millisecond,
		MaxConcurrent: 2,
		Lookback:      30 * 24 * time.Hour,
		DownloadRoot:  "/downloads",
		CleanupBatch:  2,
	}
}

func onlineCamera(id int64) *models.Camera {
	return &models.Camera{
		ID:        id,
		Name:      "Cam",
		IPAddress: "10.0.0.5",
		Port:      8000,
		Username:  "admin",
		Password:  "secret",
		IsOnline:  true,
	}
}

type workerFixture struct {
	cameras *fakeCameraStore
	jobs    *fakeJobStore
	drives  *fakeDriveStore
	client  *fakeClient
	session *fakeSession
	jobSvc  *DownloadJobService
	fs      afero.Fs
	worker  *CameraWorker
}

func newWorkerFixture(t *testing.T, cam *models.Camera) *workerFixture {
	t.Helper()
	fs := afero.NewMemMapFs()
	session := &fakeSession{fs: fs, progressSeq: []int{100}}
	f := &workerFixture{
		cameras: newFakeCameraStore(cam),
		jobs:    newFakeJobStore(),
		drives: newFakeDriveStore(&models.StorageDrive{
			Name: "Main", RootPath: "/downloads",
			TotalSpace: 1000, UsedSpace: 100, FreeSpace: 900,
			Status: models.DriveStatusNormal,
		}),
		client:  &fakeClient{session: session},
		session: session,
		fs:      fs,
	}
	f.jobSvc = NewDownloadJobService(f.jobs)
	f.worker = NewCameraWorker(cam.ID, cam.Name, f.cameras, f.jobs, f.drives, f.client, f.jobSvc, f.fs, newTestMetrics(), testWorkerOptions())
	return f
}

func TestWorkerDiscoveryDeduplicates(t *testing.T) {
	cam := onlineCamera(1)
	f := newWorkerFixture(t, cam)
	f.session.files = []hikapi.RemoteFile{
		{Name: "rec_001", Size: 512, StartTime: time.Now().Add(-time.Hour), EndTime: time.Now()},
		{Name: "rec_002", Size: 1024, StartTime: time.Now().Add(-time.Hour), EndTime: time.Now()},
	}

	require.NoError(t, f.worker.discoverFiles(context.Background(), cam))
	assert.Equal(t, 2, f.jobs.count())

	// The same listing on the next cycle must not create duplicates.
	require.NoError(t, f.worker.discoverFiles(context.Background(), cam))
	assert.Equal(t, 2, f.jobs.count())

	job := f.jobs.get(1)
	assert.Equal(t, models.JobStatusPending, job.Status)
	assert.Equal(t, models.FileTypeVideo, job.FileType)
	assert.Equal(t, "/downloads/1/rec_001.mp4", job.DownloadPath)
}

func TestWorkerSkipsOfflineCamera(t *testing.T) {
	cam := onlineCamera(1)
	cam.IsOnline = false
	f := newWorkerFixture(t, cam)

	require.NoError(t, f.worker.processCamera(context.Background()))
	assert.Zero(t, f.client.connectCount(), "no device contact for an offline camera")
}

func TestWorkerStorageGateBlocksDownloads(t *testing.T) {
	cam := onlineCamera(1)
	f := newWorkerFixture(t, cam)

	full := f.drives.get(1)
	f.drives.UpdateSpace(context.Background(), full.ID, 1000, 970, 30, models.DriveStatusFull)

	// A completed job with its file on disk, eligible for cleanup, and a
	// pending job that must not start while the gate holds.
	done := &models.FileDownloadJob{CameraID: 1, FileName: "old", Status: models.JobStatusCompleted, DownloadPath: "/downloads/1/old.mp4"}
	require.NoError(t, f.jobs.Create(context.Background(), done))
	f.jobs.MarkCompleted(context.Background(), done.ID)
	afero.WriteFile(f.fs, done.DownloadPath, []byte("x"), 0o644)

	queued := &models.FileDownloadJob{CameraID: 1, FileName: "new", DownloadPath: "/downloads/1/new.mp4"}
	require.NoError(t, f.jobs.Create(context.Background(), queued))

	require.NoError(t, f.worker.processCamera(context.Background()))

	// Cleanup ran: completed job and its file are gone.
	_, err := f.jobs.GetByID(context.Background(), done.ID)
	assert.Error(t, err)
	exists, _ := afero.Exists(f.fs, done.DownloadPath)
	assert.False(t, exists)

	// The gate still held on re-check, so nothing was started.
	assert.Equal(t, models.JobStatusPending, f.jobs.get(queued.ID).Status)
	assert.Zero(t, f.client.connectCount())
}

func TestWorkerDownloadCompletes(t *testing.T) {
	cam := onlineCamera(1)
	f := newWorkerFixture(t, cam)
	f.session.files = []hikapi.RemoteFile{{Name: "rec_001", Size: 512}}
	f.session.progressSeq = []int{40, 100}

	job := &models.FileDownloadJob{CameraID: 1, FileName: "rec_001", DownloadPath: "/downloads/1/rec_001.mp4"}
	require.NoError(t, f.jobs.Create(context.Background(), job))

	f.worker.downloadFile(context.Background(), cam, job)

	got := f.jobs.get(job.ID)
	assert.Equal(t, models.JobStatusCompleted, got.Status)
	assert.Equal(t, 100, got.Progress)
	assert.NotNil(t, got.EndTime)

	exists, _ := afero.Exists(f.fs, job.DownloadPath)
	assert.True(t, exists, "final file in place")
	tmpExists, _ := afero.Exists(f.fs, job.DownloadPath+".tmp")
	assert.False(t, tmpExists, "temp file renamed away")

	reloaded, err := f.cameras.GetByID(context.Background(), cam.ID)
	require.NoError(t, err)
	assert.NotNil(t, reloaded.LastDownloadedAt, "watermark advanced")

	assert.True(t, f.session.closed)
	assert.Zero(t, f.jobSvc.ActiveCount())
}

func TestWorkerDownloadFailureKeepsProgress(t *testing.T) {
	cam := onlineCamera(1)
	f := newWorkerFixture(t, cam)
	f.session.files = []hikapi.RemoteFile{{Name: "rec_001", Size: 512}}
	f.session.progressSeq = []int{40}

	job := &models.FileDownloadJob{CameraID: 1, FileName: "rec_001", DownloadPath: "/downloads/1/rec_001.mp4"}
	require.NoError(t, f.jobs.Create(context.Background(), job))

	// Polls report 40 until the device drops the connection.
	go func() {
		time.Sleep(5 * time.Millisecond)
		f.session.mu.Lock()
		f.session.pollErr = errors.New("device dropped the connection")
		f.session.mu.Unlock()
	}()

	f.worker.downloadFile(context.Background(), cam, job)

	got := f.jobs.get(job.ID)
	assert.Equal(t, models.JobStatusFailed, got.Status)
	require.NotNil(t, got.ErrorMessage)
	assert.Contains(t, *got.ErrorMessage, "device dropped the connection")
	assert.Equal(t, 40, got.Progress, "partial progress retained on failure")
}

func TestWorkerDownloadFailsWhenFileGone(t *testing.T) {
	cam := onlineCamera(1)
	f := newWorkerFixture(t, cam)
	f.session.files = nil // device pruned the recording since discovery

	job := &models.FileDownloadJob{CameraID: 1, FileName: "rec_001", DownloadPath: "/downloads/1/rec_001.mp4"}
	require.NoError(t, f.jobs.Create(context.Background(), job))

	f.worker.downloadFile(context.Background(), cam, job)

	got := f.jobs.get(job.ID)
	assert.Equal(t, models.JobStatusFailed, got.Status)
	require.NotNil(t, got.ErrorMessage)
	assert.Contains(t, *got.ErrorMessage, "no longer present")
}

func TestWorkerOperatorCancelIsTerminal(t *testing.T) {
	cam := onlineCamera(1)
	f := newWorkerFixture(t, cam)
	f.session.files = []hikapi.RemoteFile{{Name: "rec_001", Size: 512}}
	f.session.progressSeq = []int{10} // never reaches 100

	job := &models.FileDownloadJob{CameraID: 1, FileName: "rec_001", DownloadPath: "/downloads/1/rec_001.mp4"}
	require.NoError(t, f.jobs.Create(context.Background(), job))

	doneCh := make(chan struct{})
	go func() {
		defer close(doneCh)
		f.worker.downloadFile(context.Background(), cam, job)
	}()

	require.Eventually(t, func() bool {
		return f.jobSvc.ActiveCount() == 1 && f.jobs.get(job.ID).Status == models.JobStatusDownloading
	}, time.Second, time.Millisecond)

	require.NoError(t, f.jobSvc.Cancel(context.Background(), job.ID))

	select {
	case <-doneCh:
	case <-time.After(time.Second):
		t.Fatal("download did not unwind after cancel")
	}

	assert.Equal(t, models.JobStatusCancelled, f.jobs.get(job.ID).Status,
		"operator cancel wins over the pending reset")
	tmpExists, _ := afero.Exists(f.fs, job.DownloadPath+".tmp")
	assert.False(t, tmpExists)
}

func TestWorkerShutdownReturnsJobToPending(t *testing.T) {
	cam := onlineCamera(1)
	f := newWorkerFixture(t, cam)
	f.session.files = []hikapi.RemoteFile{{Name: "rec_001", Size: 512}}
	f.session.progressSeq = []int{10}

	job := &models.FileDownloadJob{CameraID: 1, FileName: "rec_001", DownloadPath: "/downloads/1/rec_001.mp4"}
	require.NoError(t, f.jobs.Create(context.Background(), job))

	ctx, cancel := context.WithCancel(context.Background())
	doneCh := make(chan struct{})
	go func() {
		defer close(doneCh)
		f.worker.downloadFile(ctx, cam, job)
	}()

	require.Eventually(t, func() bool {
		return f.jobs.get(job.ID).Status == models.JobStatusDownloading
	}, time.Second, time.Millisecond)

	cancel()
	select {
	case <-doneCh:
	case <-time.After(time.Second):
		t.Fatal("download did not unwind after shutdown")
	}

	got := f.jobs.get(job.ID)
	assert.Equal(t, models.JobStatusPending, got.Status, "interrupted job is resumable")
	assert.True(t, f.session.stopped)
}

func TestWorkerDiscoveryErrorDoesNotBlockDraining(t *testing.T) {
	cam := onlineCamera(1)
	f := newWorkerFixture(t, cam)
	f.session.findErr = errors.New("listing refused")
	f.session.progressSeq = []int{100}

	require.Error(t, f.worker.processCamera(context.Background()))

	reloaded, err := f.cameras.GetByID(context.Background(), cam.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.LastError)
	assert.Contains(t, *reloaded.LastError, "listing refused")
	assert.True(t, reloaded.IsOnline, "discovery errors do not flip the health flag")
}

func TestWorkerDownloadsFileFromRecorderChannel(t *testing.T) {
	cam := onlineCamera(1)
	f := newWorkerFixture(t, cam)

	// Multi-channel recorder: the file only exists on channel 5, so both
	// discovery and the pre-transfer re-list must look there.
	f.session.channels = []hikapi.Channel{{Number: 5, IsOnline: true}}
	f.session.channelFiles = map[int][]hikapi.RemoteFile{
		5: {{Name: "rec_ch5", Size: 512, StartTime: time.Now().Add(-time.Hour), EndTime: time.Now()}},
	}
	f.session.progressSeq = []int{100}

	require.NoError(t, f.worker.discoverFiles(context.Background(), cam))
	require.Equal(t, 1, f.jobs.count())
	job := f.jobs.get(1)
	require.Equal(t, models.JobStatusPending, job.Status)

	f.worker.downloadFile(context.Background(), cam, &job)

	got := f.jobs.get(job.ID)
	assert.Equal(t, models.JobStatusCompleted, got.Status)
	exists, _ := afero.Exists(f.fs, job.DownloadPath)
	assert.True(t, exists)
}

func TestWorkerStatusCarriesCameraName(t *testing.T) {
	cam := onlineCamera(1)
	cam.Name = "Front Gate"
	f := newWorkerFixture(t, cam)

	status := f.worker.Status()
	assert.Equal(t, "Front Gate", status.CameraName)

	// A rename is picked up when the cycle reloads the camera.
	reloaded, err := f.cameras.GetByID(context.Background(), cam.ID)
	require.NoError(t, err)
	reloaded.IsOnline = false
	reloaded.Name = "Back Gate"
	f.cameras.mu.Lock()
	f.cameras.cameras[cam.ID] = reloaded
	f.cameras.mu.Unlock()

	require.NoError(t, f.worker.processCamera(context.Background()))
	assert.Equal(t, "Back Gate", f.worker.Status().CameraName)
}

func TestWorkerStopBoundedWhileDeviceCallBlocks(t *testing.T) {
	cam := onlineCamera(1)
	f := newWorkerFixture(t, cam)
	f.session.files = []hikapi.RemoteFile{{Name: "rec_001", Size: 512}}
	f.session.blockPoll = make(chan struct{}) // PollProgress hangs until the test ends
	defer close(f.session.blockPoll)

	job := &models.FileDownloadJob{CameraID: 1, FileName: "rec_001", DownloadPath: "/downloads/1/rec_001.mp4"}
	require.NoError(t, f.jobs.Create(context.Background(), job))

	f.worker.Start(context.Background())
	require.Eventually(t, func() bool {
		return f.jobs.get(job.ID).Status == models.JobStatusDownloading
	}, time.Second, time.Millisecond)

	grace := 50 * time.Millisecond
	start := time.Now()
	f.worker.Stop(grace)
	elapsed := time.Since(start)

	assert.Less(t, elapsed, grace+400*time.Millisecond,
		"stop must abandon a worker stuck in a device call after the grace period")
}

func TestWorkerSkipsDeletedCamera(t *testing.T) {
	cam := onlineCamera(1)
	f := newWorkerFixture(t, cam)
	f.cameras.remove(cam.ID)

	f.worker.cycle(context.Background())

	status := f.worker.Status()
	assert.Nil(t, status.LastError, "a removed camera is a skip, not a worker error")
	assert.Zero(t, f.client.connectCount())
}

func TestWorkerDiscoveryWindowUsesWatermark(t *testing.T) {
	cam := onlineCamera(1)
	last := time.Now().Add(-2 * time.Hour)
	cam.LastDownloadedAt = &last
	f := newWorkerFixture(t, cam)

	// The nvr path: only online channels are listed.
	f.session.channels = []hikapi.Channel{{Number: 1, IsOnline: true}, {Number: 2, IsOnline: false}}
	f.session.files = []hikapi.RemoteFile{{Name: "rec_ch1", Size: 64}}

	require.NoError(t, f.worker.discoverFiles(context.Background(), cam))
	assert.Equal(t, 1, f.jobs.count())
}

func TestSupervisorReconcilesWorkerSet(t *testing.T) {
	camA := onlineCamera(1)
	camA.IsOnline = false
	camB := onlineCamera(2)
	camB.IsOnline = false

	cameras := newFakeCameraStore(camA, camB)
	jobs := newFakeJobStore()
	drives := newFakeDriveStore()
	client := &fakeClient{session: &fakeSession{}}
	jobSvc := NewDownloadJobService(jobs)

	sup := NewWorkerSupervisor(cameras, jobs, drives, client, jobSvc, afero.NewMemMapFs(), newTestMetrics(), testWorkerOptions(), time.Hour, 100*time.Millisecond)
	sup.startStagger = 0
	defer sup.Stop()

	sup.Refresh(context.Background())
	assert.Equal(t, 2, sup.WorkerCount())

	statuses := sup.Status()
	assert.Len(t, statuses, 2)

	// Removing a camera stops its worker on the next reconciliation.
	cameras.remove(camA.ID)
	sup.Refresh(context.Background())
	assert.Equal(t, 1, sup.WorkerCount())

	statuses = sup.Status()
	require.Len(t, statuses, 1)
	assert.Equal(t, camB.ID, statuses[0].CameraID)
}

func TestSupervisorStopShutsEverythingDown(t *testing.T) {
	cam := onlineCamera(1)
	cam.IsOnline = false
	cameras := newFakeCameraStore(cam)
	jobs := newFakeJobStore()

	sup := NewWorkerSupervisor(cameras, jobs, newFakeDriveStore(), &fakeClient{session: &fakeSession{}},
		NewDownloadJobService(jobs), afero.NewMemMapFs(), newTestMetrics(), testWorkerOptions(), time.Hour, 100*time.Millisecond)
	sup.startStagger = 0

	sup.Start()
	require.Eventually(t, func() bool { return sup.WorkerCount() == 1 }, time.Second, time.Millisecond)

	sup.Stop()
	assert.Zero(t, sup.WorkerCount())
}
