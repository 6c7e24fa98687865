package commands

import (
	"fmt"
	"os"

	"camfleet-backend/internal/models"
)

func StatusCommand(args []string) {
	if len(args) > 0 && (args[0] == "help" || args[0] == "-h" || args[0] == "--help") {
		fmt.Println(`camctl status - Show worker and fleet status

USAGE:
    camctl status`)
		return
	}
	if len(args) > 0 {
		fmt.Printf("Unknown status command: %s\n", args[0])
		os.Exit(1)
	}

	var result struct {
		WorkerCount int                   `json:"worker_count"`
		Workers     []models.WorkerStatus `json:"workers"`
	}
	if err := getJSON("/api/workers/status", &result); err != nil {
		fail(err)
	}

	fmt.Printf("Workers running: %d\n\n", result.WorkerCount)
	fmt.Printf("%-8s %-8s %-20s %s\n", "CAMERA", "ACTIVE", "LAST CHECK", "LAST ERROR")
	for _, w := range result.Workers {
		lastCheck := "-"
		if w.LastCheckTime != nil {
			lastCheck = w.LastCheckTime.Format("2006-01-02 15:04:05")
		}
		lastErr := ""
		if w.LastError != nil {
			lastErr = *w.LastError
		}
		fmt.Printf("%-8d %-8d %-20s %s\n", w.CameraID, w.ActiveDownloadCount, lastCheck, lastErr)
	}

	var stats models.JobStats
	if err := getJSON("/api/download-jobs/stats", &stats); err != nil {
		fail(err)
	}
	fmt.Printf("\nJobs: %d pending, %d downloading, %d completed, %d failed, %d cancelled\n",
		stats.Pending, stats.Downloading, stats.Completed, stats.Failed, stats.Cancelled)
}
