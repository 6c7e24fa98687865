package main

import (
	"fmt"
	"os"

	"camfleet-backend/cmd/camctl/commands"
)

const version = "1.0.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "cameras":
		commands.CamerasCommand(os.Args[2:])
	case "jobs":
		commands.JobsCommand(os.Args[2:])
	case "storage":
		commands.StorageCommand(os.Args[2:])
	case "status":
		commands.StatusCommand(os.Args[2:])
	case "version":
		fmt.Printf("camctl version %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`camctl - Camera Fleet Download Service CLI

USAGE:
    camctl <command> [options]

COMMANDS:
    cameras     Manage cameras (list, check, check-all)
    jobs        Manage download jobs (list, retry, cancel, stats)
    storage     Manage storage drives (list, check)
    status      Show worker and fleet status
    version     Print version information
    help        Show this help message

EXAMPLES:
    # List cameras and their health
    camctl cameras list

    # Probe one camera now
    camctl cameras check 3

    # List failed jobs and retry one
    camctl jobs list --status failed
    camctl jobs retry 120

    # Cancel a running download
    camctl jobs cancel 121

    # Show worker status
    camctl status

The API address is read from CAMFLEET_API (default http://localhost:8080).`)
}
