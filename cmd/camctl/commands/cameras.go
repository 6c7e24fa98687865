package commands

import (
	"fmt"
	"os"
	"strconv"

	"camfleet-backend/internal/models"
)

func CamerasCommand(args []string) {
	if len(args) == 0 {
		printCamerasUsage()
		os.Exit(1)
	}

	switch args[0] {
	case "list":
		camerasList()
	case "check":
		camerasCheck(args[1:])
	case "check-all":
		camerasCheckAll()
	case "help", "-h", "--help":
		printCamerasUsage()
	default:
		fmt.Printf("Unknown cameras command: %s\n\n", args[0])
		printCamerasUsage()
		os.Exit(1)
	}
}

func camerasList() {
	var cameras []models.Camera
	if err := getJSON("/api/cameras", &cameras); err != nil {
		fail(err)
	}

	fmt.Printf("%-5s %-25s %-20s %-8s %s\n", "ID", "NAME", "ADDRESS", "ONLINE", "LAST DOWNLOAD")
	for _, c := range cameras {
		lastDownload := "-"
		if c.LastDownloadedAt != nil {
			lastDownload = c.LastDownloadedAt.Format("2006-01-02 15:04")
		}
		fmt.Printf("%-5d %-25s %-20s %-8t %s\n",
			c.ID, c.Name, fmt.Sprintf("%s:%d", c.IPAddress, c.Port), c.IsOnline, lastDownload)
	}
}

func camerasCheck(args []string) {
	if len(args) == 0 {
		fmt.Println("Usage: camctl cameras check <id>")
		os.Exit(1)
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		fail(fmt.Errorf("invalid camera id %q", args[0]))
	}

	var result struct {
		CameraID int64 `json:"camera_id"`
		IsOnline bool  `json:"is_online"`
	}
	if err := postJSON(fmt.Sprintf("/api/cameras/%d/check", id), &result); err != nil {
		fail(err)
	}

	state := "OFFLINE"
	if result.IsOnline {
		state = "ONLINE"
	}
	fmt.Printf("Camera %d: %s\n", result.CameraID, state)
}

func camerasCheckAll() {
	if err := postJSON("/api/cameras/check-all", nil); err != nil {
		fail(err)
	}
	fmt.Println("Health check completed")
	camerasList()
}

func printCamerasUsage() {
	fmt.Println(`camctl cameras - Manage cameras

USAGE:
    camctl cameras <subcommand> [options]

SUBCOMMANDS:
    list        List cameras and their health
    check       Probe one camera now
    check-all   Probe the whole fleet now

EXAMPLES:
    camctl cameras list
    camctl cameras check 3
    camctl cameras check-all`)
}
