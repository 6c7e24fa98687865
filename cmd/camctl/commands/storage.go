package commands

import (
	"fmt"
	"os"

	"camfleet-backend/internal/models"
)

func StorageCommand(args []string) {
	if len(args) == 0 {
		printStorageUsage()
		os.Exit(1)
	}

	switch args[0] {
	case "list":
		storageList(nil)
	case "check":
		storageCheck()
	case "help", "-h", "--help":
		printStorageUsage()
	default:
		fmt.Printf("Unknown storage command: %s\n\n", args[0])
		printStorageUsage()
		os.Exit(1)
	}
}

func storageList(drives []models.StorageDrive) {
	if drives == nil {
		if err := getJSON("/api/storage-drives", &drives); err != nil {
			fail(err)
		}
	}

	fmt.Printf("%-5s %-20s %-30s %-10s %s\n", "ID", "NAME", "PATH", "STATUS", "USAGE")
	for _, d := range drives {
		fmt.Printf("%-5d %-20s %-30s %-10s %.1f%% (%s free)\n",
			d.ID, d.Name, d.RootPath, d.Status, d.UsagePercentage(), humanBytes(d.FreeSpace))
	}
}

func storageCheck() {
	var drives []models.StorageDrive
	if err := postJSON("/api/storage-drives/check", &drives); err != nil {
		fail(err)
	}
	fmt.Println("Drives re-measured")
	storageList(drives)
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func printStorageUsage() {
	fmt.Println(`camctl storage - Manage storage drives

USAGE:
    camctl storage <subcommand>

SUBCOMMANDS:
    list        List drives with usage and status
    check       Re-measure every drive now

EXAMPLES:
    camctl storage list
    camctl storage check`)
}
