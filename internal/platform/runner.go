package platform

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// Line channel buffer size
const lineBufferSize = 64

// Runner abstracts starting external tool processes so the download pipeline
// can be exercised in tests without spawning real subprocesses.
type Runner interface {
	Start(ctx context.Context, name string, args ...string) (Handle, error)
}

// Handle is one running external process.
type Handle interface {
	// Lines streams combined stdout/stderr output line by line.
	// The channel is closed when the process closes its pipes.
	Lines() <-chan string

	// Wait blocks until the process exits and returns a non-nil error for a
	// nonzero exit code. Wait must be called exactly once, after Lines is
	// drained.
	Wait() error
}

// ExecRunner starts real subprocesses via os/exec. Cancelling the start
// context sends SIGTERM; if the process is still alive after Grace it is
// killed.
type ExecRunner struct {
	Grace time.Duration
}

// Start launches name with args and begins streaming its output
func (r ExecRunner) Start(ctx context.Context, name string, args ...string) (Handle, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = r.Grace

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", name, err)
	}

	h := &execHandle{
		cmd:   cmd,
		lines: make(chan string, lineBufferSize),
	}
	h.readers.Add(2)
	go h.scan(bufio.NewScanner(stdout))
	go h.scan(bufio.NewScanner(stderr))
	go func() {
		h.readers.Wait()
		close(h.lines)
	}()

	return h, nil
}

type execHandle struct {
	cmd     *exec.Cmd
	lines   chan string
	readers sync.WaitGroup
}

func (h *execHandle) scan(sc *bufio.Scanner) {
	defer h.readers.Done()
	// yt-dlp can emit very long single-line JSON dumps
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		h.lines <- sc.Text()
	}
}

func (h *execHandle) Lines() <-chan string {
	return h.lines
}

func (h *execHandle) Wait() error {
	h.readers.Wait()
	return h.cmd.Wait()
}
