package commands

import (
	"fmt"
	"net/url"
	"os"
	"strconv"

	"camfleet-backend/internal/models"
)

func JobsCommand(args []string) {
	if len(args) == 0 {
		printJobsUsage()
		os.Exit(1)
	}

	switch args[0] {
	case "list":
		jobsList(args[1:])
	case "retry":
		jobsRetry(args[1:])
	case "cancel":
		jobsCancel(args[1:])
	case "stats":
		jobsStats()
	case "help", "-h", "--help":
		printJobsUsage()
	default:
		fmt.Printf("Unknown jobs command: %s\n\n", args[0])
		printJobsUsage()
		os.Exit(1)
	}
}

func jobsList(args []string) {
	path := "/api/download-jobs"
	if len(args) >= 2 && args[0] == "--status" {
		path += "?status=" + url.QueryEscape(args[1])
	}

	var jobs []models.FileDownloadJob
	if err := getJSON(path, &jobs); err != nil {
		fail(err)
	}

	fmt.Printf("%-6s %-6s %-30s %-12s %-9s %s\n", "ID", "CAM", "FILE", "STATUS", "PROGRESS", "ERROR")
	for _, j := range jobs {
		errMsg := ""
		if j.ErrorMessage != nil {
			errMsg = *j.ErrorMessage
		}
		fmt.Printf("%-6d %-6d %-30s %-12s %-9s %s\n",
			j.ID, j.CameraID, j.FileName, j.Status, fmt.Sprintf("%d%%", j.Progress), errMsg)
	}
}

func jobsRetry(args []string) {
	id := jobID(args, "retry")
	if err := postJSON(fmt.Sprintf("/api/download-jobs/%d/retry", id), nil); err != nil {
		fail(err)
	}
	fmt.Printf("Job %d queued for retry\n", id)
}

func jobsCancel(args []string) {
	id := jobID(args, "cancel")
	if err := postJSON(fmt.Sprintf("/api/download-jobs/%d/cancel", id), nil); err != nil {
		fail(err)
	}
	fmt.Printf("Job %d cancelled\n", id)
}

func jobsStats() {
	var stats models.JobStats
	if err := getJSON("/api/download-jobs/stats", &stats); err != nil {
		fail(err)
	}

	fmt.Printf("Pending:      %d\n", stats.Pending)
	fmt.Printf("Downloading:  %d\n", stats.Downloading)
	fmt.Printf("Completed:    %d\n", stats.Completed)
	fmt.Printf("Failed:       %d\n", stats.Failed)
	fmt.Printf("Cancelled:    %d\n", stats.Cancelled)
	fmt.Printf("Total:        %d\n", stats.Total)
}

func jobID(args []string, verb string) int64 {
	if len(args) == 0 {
		fmt.Printf("Usage: camctl jobs %s <id>\n", verb)
		os.Exit(1)
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		fail(fmt.Errorf("invalid job id %q", args[0]))
	}
	return id
}

func printJobsUsage() {
	fmt.Println(`camctl jobs - Manage download jobs

USAGE:
    camctl jobs <subcommand> [options]

SUBCOMMANDS:
    list        List recent jobs (--status pending|downloading|completed|failed|cancelled)
    retry       Put a failed job back in the queue
    cancel      Cancel a job (interrupts a running transfer)
    stats       Show aggregate job counts

EXAMPLES:
    camctl jobs list --status failed
    camctl jobs retry 120
    camctl jobs cancel 121
    camctl jobs stats`)
}
