package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"camfleet-backend/internal/models"
)

func TestClassifyUsage(t *testing.T) {
	tests := []struct {
		pct  float64
		want string
	}{
		{0, models.DriveStatusNormal},
		{69.9, models.DriveStatusNormal},
		{70, models.DriveStatusWarning},
		{84.9, models.DriveStatusWarning},
		{85, models.DriveStatusCritical},
		{94.9, models.DriveStatusCritical},
		{95, models.DriveStatusFull},
		{100, models.DriveStatusFull},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyUsage(tt.pct), "usage %.1f%%", tt.pct)
	}
}

func TestIsCriticallyFull(t *testing.T) {
	assert.False(t, IsCriticallyFull(nil))
	assert.False(t, IsCriticallyFull(&models.StorageDrive{TotalSpace: 1000, UsedSpace: 949}))
	assert.True(t, IsCriticallyFull(&models.StorageDrive{TotalSpace: 1000, UsedSpace: 950}))
	assert.False(t, IsCriticallyFull(&models.StorageDrive{TotalSpace: 0, UsedSpace: 0}),
		"unmeasured drive does not block downloads")
}

func TestCheckAllCreatesDefaultDrive(t *testing.T) {
	drives := newFakeDriveStore()
	svc := NewStorageMonitorService(drives, newTestMetrics(), time.Hour, "/downloads")
	svc.diskUsage = func(path string) (*disk.UsageStat, error) {
		return &disk.UsageStat{Total: 1000, Free: 800}, nil
	}

	require.NoError(t, svc.CheckAll(context.Background()))

	all, err := drives.GetAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Default Drive", all[0].Name)
	assert.Equal(t, "/downloads", all[0].RootPath)
	assert.Equal(t, models.DriveStatusNormal, all[0].Status)
	assert.Equal(t, int64(200), all[0].UsedSpace)
	assert.NotNil(t, all[0].LastCheckedAt)
}

func TestCheckAllReclassifiesDrives(t *testing.T) {
	drives := newFakeDriveStore(&models.StorageDrive{
		Name: "Archive", RootPath: "/mnt/archive", Status: models.DriveStatusNormal,
	})
	svc := NewStorageMonitorService(drives, newTestMetrics(), time.Hour, "/downloads")
	svc.diskUsage = func(path string) (*disk.UsageStat, error) {
		return &disk.UsageStat{Total: 1000, Free: 40}, nil // 96% used
	}

	require.NoError(t, svc.CheckAll(context.Background()))

	got := drives.get(1)
	assert.Equal(t, models.DriveStatusFull, got.Status)
	assert.True(t, IsCriticallyFull(&got), "full drive engages the download gate")
}

func TestCheckAllMarksUnreadableDrive(t *testing.T) {
	drives := newFakeDriveStore(&models.StorageDrive{
		Name: "Gone", RootPath: "/mnt/gone", Status: models.DriveStatusNormal,
	})
	svc := NewStorageMonitorService(drives, newTestMetrics(), time.Hour, "/downloads")
	svc.diskUsage = func(path string) (*disk.UsageStat, error) {
		return nil, errors.New("mount not available")
	}

	require.NoError(t, svc.CheckAll(context.Background()))
	assert.Equal(t, models.DriveStatusError, drives.get(1).Status)
}

func TestStorageMonitorStartStop(t *testing.T) {
	drives := newFakeDriveStore(&models.StorageDrive{Name: "Main", RootPath: "/downloads"})
	svc := NewStorageMonitorService(drives, newTestMetrics(), time.Hour, "/downloads")
	svc.diskUsage = func(path string) (*disk.UsageStat, error) {
		return &disk.UsageStat{Total: 1000, Free: 500}, nil
	}

	svc.Start()
	require.Eventually(t, func() bool {
		return drives.get(1).LastCheckedAt != nil
	}, time.Second, time.Millisecond, "immediate check on start")
	svc.Stop()
}
