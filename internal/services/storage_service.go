package services

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/disk"

	"camfleet-backend/internal/models"
	"camfleet-backend/internal/monitoring"
)

// Usage thresholds as a fraction of total capacity, in percent.
const (
	WarningThreshold  = 70.0
	CriticalThreshold = 85.0
	FullThreshold     = 95.0
)

// IsCriticallyFull reports whether a drive is past the Full threshold. This
// is the backpressure predicate: while it holds for any drive, no download is
// allowed to start. It is a pure function of the drive record; callers rely
// on the storage monitor to keep the record fresh.
func IsCriticallyFull(d *models.StorageDrive) bool {
	if d == nil {
		return false
	}
	return d.UsagePercentage() >= FullThreshold
}

// ClassifyUsage maps a usage percentage to a drive status.
func ClassifyUsage(usagePct float64) string {
	switch {
	case usagePct >= FullThreshold:
		return models.DriveStatusFull
	case usagePct >= CriticalThreshold:
		return models.DriveStatusCritical
	case usagePct >= WarningThreshold:
		return models.DriveStatusWarning
	default:
		return models.DriveStatusNormal
	}
}

// StorageMonitorService refreshes storage drive records on a fixed interval.
// Only this service mutates drive space figures.
type StorageMonitorService struct {
	drives      DriveStore
	metrics     *monitoring.Metrics
	interval    time.Duration
	defaultRoot string

	// diskUsage is swappable so tests don't touch real mounts.
	diskUsage func(path string) (*disk.UsageStat, error)

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func NewStorageMonitorService(drives DriveStore, metrics *monitoring.Metrics, interval time.Duration, defaultRoot string) *StorageMonitorService {
	return &StorageMonitorService{
		drives:      drives,
		metrics:     metrics,
		interval:    interval,
		defaultRoot: defaultRoot,
		diskUsage:   disk.Usage,
		stopCh:      make(chan struct{}),
	}
}

// Start launches the background check loop.
func (s *StorageMonitorService) Start() {
	log.Printf("[Storage] Monitor starting, interval %s", s.interval)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		if err := s.CheckAll(context.Background()); err != nil {
			log.Printf("[Storage] Check failed: %v", err)
		}

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stopCh:
				log.Println("[Storage] Monitor stopping")
				return
			case <-ticker.C:
				if err := s.CheckAll(context.Background()); err != nil {
					log.Printf("[Storage] Check failed: %v", err)
				}
			}
		}
	}()
}

// Stop shuts the loop down and waits for it.
func (s *StorageMonitorService) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

// CheckAll measures every configured drive and reclassifies it. With no
// drives configured it creates one default drive rooted at the download
// directory so the capacity gate always has something to stand on.
func (s *StorageMonitorService) CheckAll(ctx context.Context) error {
	drives, err := s.drives.GetAll(ctx)
	if err != nil {
		return err
	}

	if len(drives) == 0 {
		log.Printf("[Storage] No drives configured, adding default at %s", s.defaultRoot)
		def := &models.StorageDrive{
			Name:     "Default Drive",
			RootPath: s.defaultRoot,
			Status:   models.DriveStatusNormal,
		}
		if err := s.drives.Create(ctx, def); err != nil {
			return err
		}
		drives, err = s.drives.GetAll(ctx)
		if err != nil {
			return err
		}
	}

	for i := range drives {
		s.checkDrive(ctx, &drives[i])
	}
	return nil
}

func (s *StorageMonitorService) checkDrive(ctx context.Context, drive *models.StorageDrive) {
	usage, err := s.diskUsage(drive.RootPath)
	if err != nil {
		log.Printf("[Storage] Drive %s (%s) is not readable: %v", drive.Name, drive.RootPath, err)
		if err := s.drives.SetStatus(ctx, drive.ID, models.DriveStatusError); err != nil {
			log.Printf("[Storage] Failed to record error status for drive %s: %v", drive.Name, err)
		}
		return
	}

	total := int64(usage.Total)
	free := int64(usage.Free)
	used := total - free

	usagePct := 0.0
	if total > 0 {
		usagePct = float64(used) / float64(total) * 100
	}
	status := ClassifyUsage(usagePct)

	if status != drive.Status {
		log.Printf("[Storage] Drive %s (%s) status %s -> %s (%.1f%% used)",
			drive.Name, drive.RootPath, drive.Status, status, usagePct)
	}

	if err := s.drives.UpdateSpace(ctx, drive.ID, total, used, free, status); err != nil {
		log.Printf("[Storage] Failed to update drive %s: %v", drive.Name, err)
		return
	}
	s.metrics.DriveUsage.WithLabelValues(drive.Name).Set(usagePct)
}
