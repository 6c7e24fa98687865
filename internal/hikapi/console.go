package hikapi

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const fileTimeLayout = "2006-01-02 15:04:05"

// ConsoleClient drives devices through the vendor console binary. Each call
// spawns a short-lived subcommand (`test`, `channels`, `list`) except
// downloads, which run as a long-lived child process writing the destination
// file; progress is derived from bytes on disk against the listed file size.
type ConsoleClient struct {
	// BinaryPath is the vendor console executable.
	BinaryPath string
}

func NewConsoleClient(binaryPath string) *ConsoleClient {
	return &ConsoleClient{BinaryPath: binaryPath}
}

// Connect authenticates by running the console `test` subcommand with a
// bounded wait. The returned session carries the credentials for subsequent
// subcommands; there is no persistent connection to release beyond any
// transfers the session starts.
func (c *ConsoleClient) Connect(ctx context.Context, addr string, port int, username, password string) (Session, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	out, err := exec.CommandContext(ctx, c.BinaryPath, "test",
		addr, strconv.Itoa(port), username, password).CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("device %s:%d unreachable: %w", addr, port, err)
	}
	if !strings.Contains(string(out), "Connection successful") {
		return nil, fmt.Errorf("device %s:%d login failed: %s", addr, port, strings.TrimSpace(string(out)))
	}

	return &consoleSession{
		binary:    c.BinaryPath,
		addr:      addr,
		port:      strconv.Itoa(port),
		username:  username,
		password:  password,
		sizes:     make(map[string]int64),
		transfers: make(map[string]*transfer),
	}, nil
}

type transfer struct {
	cmd      *exec.Cmd
	destPath string
	expected int64
	done     chan error
}

type consoleSession struct {
	binary   string
	addr     string
	port     string
	username string
	password string

	mu        sync.Mutex
	sizes     map[string]int64 // remote file name -> size, from FindFiles
	transfers map[string]*transfer
	closed    bool
}

func (s *consoleSession) Channels(ctx context.Context) ([]Channel, error) {
	raw, err := s.runJSON(ctx, "channels")
	if err != nil {
		return nil, err
	}

	var channels []Channel
	if err := json.Unmarshal(raw, &channels); err != nil {
		return nil, fmt.Errorf("parse channel list: %w", err)
	}
	return channels, nil
}

func (s *consoleSession) FindFiles(ctx context.Context, start, end time.Time, channel int) ([]RemoteFile, error) {
	args := []string{start.Format(fileTimeLayout), end.Format(fileTimeLayout)}
	if channel != DirectChannel {
		args = append(args, strconv.Itoa(channel))
	}

	raw, err := s.runJSON(ctx, "list", args...)
	if err != nil {
		return nil, err
	}

	files, err := parseFileList(raw)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	for _, f := range files {
		s.sizes[f.Name] = f.Size
	}
	s.mu.Unlock()
	return files, nil
}

// StartDownload spawns the console `download` subcommand writing destPath.
// The child keeps running after StartDownload returns; PollProgress tracks it.
func (s *consoleSession) StartDownload(ctx context.Context, fileName, destPath string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", fmt.Errorf("session closed")
	}

	cmd := exec.CommandContext(ctx, s.binary, "download",
		s.addr, s.port, s.username, s.password, fileName, destPath)
	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("start download of %s: %w", fileName, err)
	}

	t := &transfer{
		cmd:      cmd,
		destPath: destPath,
		expected: s.sizes[fileName],
		done:     make(chan error, 1),
	}
	go func() { t.done <- cmd.Wait() }()

	id := uuid.NewString()
	s.transfers[id] = t
	return id, nil
}

// PollProgress reports bytes written so far against the listed file size.
// A still-running transfer is capped at 99 so only a cleanly exited child
// reports 100.
func (s *consoleSession) PollProgress(transferID string) (int, error) {
	s.mu.Lock()
	t, ok := s.transfers[transferID]
	s.mu.Unlock()
	if !ok {
		return 0, fmt.Errorf("unknown transfer %s", transferID)
	}

	select {
	case err := <-t.done:
		t.done <- err // keep readable for repeated polls
		if err != nil {
			return 0, fmt.Errorf("transfer exited: %w", err)
		}
		return 100, nil
	default:
	}

	if t.expected <= 0 {
		return 0, nil
	}
	info, err := os.Stat(t.destPath)
	if err != nil {
		return 0, nil // destination not created yet
	}
	pct := int(info.Size() * 100 / t.expected)
	if pct > 99 {
		pct = 99
	}
	return pct, nil
}

func (s *consoleSession) StopDownload(transferID string) {
	s.mu.Lock()
	t, ok := s.transfers[transferID]
	delete(s.transfers, transferID)
	s.mu.Unlock()
	if !ok {
		return
	}

	select {
	case err := <-t.done:
		t.done <- err // already finished
	default:
		if t.cmd.Process != nil {
			_ = t.cmd.Process.Kill()
		}
	}
}

func (s *consoleSession) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	transfers := make([]*transfer, 0, len(s.transfers))
	for _, t := range s.transfers {
		transfers = append(transfers, t)
	}
	s.transfers = make(map[string]*transfer)
	s.mu.Unlock()

	for _, t := range transfers {
		select {
		case <-t.done:
		default:
			if t.cmd.Process != nil {
				_ = t.cmd.Process.Kill()
			}
		}
	}
}

// runJSON executes a console subcommand that writes its result to a JSON file
// and returns the raw bytes. The temp file is removed on every path.
func (s *consoleSession) runJSON(ctx context.Context, subcommand string, extra ...string) ([]byte, error) {
	jsonPath := filepath.Join(os.TempDir(), fmt.Sprintf("hik-%s-%s.json", subcommand, uuid.NewString()))
	defer os.Remove(jsonPath)

	args := append([]string{subcommand, s.addr, s.port, s.username, s.password}, extra...)
	args = append(args, jsonPath)

	if out, err := exec.CommandContext(ctx, s.binary, args...).CombinedOutput(); err != nil {
		return nil, fmt.Errorf("console %s: %w: %s", subcommand, err, strings.TrimSpace(string(out)))
	}

	raw, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, fmt.Errorf("console %s produced no output file: %w", subcommand, err)
	}
	return raw, nil
}

// consoleFile matches the JSON the vendor tool emits for `list`.
type consoleFile struct {
	Name      string `json:"Name"`
	Size      int64  `json:"Size"`
	StartTime string `json:"StartTime"`
	EndTime   string `json:"EndTime"`
}

func parseFileList(raw []byte) ([]RemoteFile, error) {
	var entries []consoleFile
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse file list: %w", err)
	}

	files := make([]RemoteFile, 0, len(entries))
	for _, e := range entries {
		start, err := time.Parse(fileTimeLayout, e.StartTime)
		if err != nil {
			return nil, fmt.Errorf("file %s: bad start time %q: %w", e.Name, e.StartTime, err)
		}
		end, err := time.Parse(fileTimeLayout, e.EndTime)
		if err != nil {
			return nil, fmt.Errorf("file %s: bad end time %q: %w", e.Name, e.EndTime, err)
		}
		files = append(files, RemoteFile{
			Name:      e.Name,
			Size:      e.Size,
			StartTime: start,
			EndTime:   end,
		})
	}
	return files, nil
}
