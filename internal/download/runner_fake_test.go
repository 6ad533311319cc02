package download

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/echodl/echo-downloader/internal/config"
	"github.com/echodl/echo-downloader/internal/platform"
)

// fakeRunner hands out pre-scripted handles in Start order so tests can
// exercise the pipeline without real subprocesses.
type fakeRunner struct {
	mu       sync.Mutex
	handles  []*fakeHandle
	startErr error
	starts   [][]string
}

func (r *fakeRunner) enqueue(handles ...*fakeHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handles = append(r.handles, handles...)
}

func (r *fakeRunner) Start(ctx context.Context, name string, args ...string) (platform.Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.starts = append(r.starts, append([]string{name}, args...))
	if r.startErr != nil {
		return nil, r.startErr
	}

	var h *fakeHandle
	if len(r.handles) > 0 {
		h = r.handles[0]
		r.handles = r.handles[1:]
	} else {
		h = newFakeHandle(nil, nil)
	}
	go h.play(ctx)
	return h, nil
}

func (r *fakeRunner) startCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.starts)
}

// fakeHandle emits its script, optionally holds the "process" open until
// released or the context is cancelled, then reports its exit result.
type fakeHandle struct {
	script  []string
	waitErr error
	hold    chan struct{}
	lines   chan string
	result  chan error
}

func newFakeHandle(script []string, waitErr error) *fakeHandle {
	return &fakeHandle{
		script:  script,
		waitErr: waitErr,
		lines:   make(chan string, 64),
		result:  make(chan error, 1),
	}
}

// blocking makes the handle stay alive after its script until release is
// called or the start context is cancelled.
func (h *fakeHandle) blocking() *fakeHandle {
	h.hold = make(chan struct{})
	return h
}

func (h *fakeHandle) release() {
	close(h.hold)
}

func (h *fakeHandle) play(ctx context.Context) {
	err := h.waitErr
	for _, line := range h.script {
		h.lines <- line
	}
	if h.hold != nil {
		select {
		case <-h.hold:
		case <-ctx.Done():
			err = errors.New("signal: terminated")
		}
	}
	close(h.lines)
	h.result <- err
}

func (h *fakeHandle) Lines() <-chan string {
	return h.lines
}

func (h *fakeHandle) Wait() error {
	return <-h.result
}

func testSettings(t *testing.T) config.Settings {
	t.Helper()
	s := config.Defaults()
	s.DownloadsDir = t.TempDir()
	s.JobTimeout = config.Duration(10 * time.Second)
	return s
}

// waitFor polls cond until it holds or the deadline expires
func waitFor(t *testing.T, msg string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", msg)
}
