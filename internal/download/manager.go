package download

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/echodl/echo-downloader/internal/config"
	"github.com/echodl/echo-downloader/internal/model"
	"github.com/echodl/echo-downloader/internal/platform"
	"github.com/echodl/echo-downloader/internal/store"
)

// Manager accepts job submissions, enforces the concurrency policy, and
// routes cancellation to the owning worker.
type Manager struct {
	settings config.Settings
	store    *store.Store
	runner   platform.Runner

	mu        sync.Mutex
	queue     []string // queued job ids, FIFO by creation
	running   map[string]context.CancelFunc
	queueMode bool
	wg        sync.WaitGroup
}

// NewManager creates a manager over the given store and process runner
func NewManager(settings config.Settings, st *store.Store, runner platform.Runner) *Manager {
	return &Manager{
		settings:  settings,
		store:     st,
		runner:    runner,
		running:   make(map[string]context.CancelFunc),
		queueMode: settings.QueueMode,
	}
}

// Submit validates the request, creates a Queued job, and returns its id
// immediately. The job starts right away if a slot is free.
func (m *Manager) Submit(rawURL, rawFormat string) (string, error) {
	format, err := model.ParseFormat(rawFormat)
	if err != nil {
		return "", err
	}
	cleanURL, err := validateURL(rawURL)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.queue) >= m.settings.MaxQueueLen {
		return "", model.ErrQueueFull
	}

	job := model.Job{
		ID:        uuid.NewString(),
		URL:       cleanURL,
		Format:    format,
		State:     model.StateQueued,
		ETASec:    -1,
		CreatedAt: time.Now(),
	}
	m.store.Add(job)
	m.queue = append(m.queue, job.ID)
	m.admitLocked()

	return job.ID, nil
}

// Cancel stops a job. A Queued job is removed from the admission queue and
// transitions directly to Cancelled; a Running job is signalled and finalized
// asynchronously by its worker. Cancelling a terminal job is a no-op.
func (m *Manager) Cancel(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap, ok := m.store.RequestCancel(id)
	if !ok {
		return model.ErrNotFound
	}

	switch {
	case snap.State.IsTerminal():
		// idempotent
	case snap.State == model.StateQueued:
		m.removeQueuedLocked(id)
		m.store.Finalize(id, model.StateCancelled, "", nil)
	default:
		if cancel, ok := m.running[id]; ok {
			cancel()
		}
	}
	return nil
}

// Status returns a point-in-time snapshot of the job
func (m *Manager) Status(id string) (model.Job, error) {
	job, ok := m.store.Get(id)
	if !ok {
		return model.Job{}, model.ErrNotFound
	}
	return job, nil
}

// List returns snapshots of all jobs ordered by creation time
func (m *Manager) List() []model.Job {
	return m.store.List()
}

// History returns the most recent completed downloads
func (m *Manager) History() []store.HistoryEntry {
	return m.store.History()
}

// SetQueueMode switches between serial-queue execution (one slot) and the
// configured parallel slot count. Turning queue mode off admits queued jobs
// into the newly available slots; running jobs are never interrupted.
func (m *Manager) SetQueueMode(on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.queueMode = on
	if !on {
		m.admitLocked()
	}
}

// QueueMode reports whether serial-queue execution is active
func (m *Manager) QueueMode() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queueMode
}

// Shutdown cancels all running jobs and waits for their workers to finish,
// bounded by ctx.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	for _, cancel := range m.running {
		cancel()
	}
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// slotCountLocked returns the effective slot count under the current policy
func (m *Manager) slotCountLocked() int {
	if m.queueMode {
		return 1
	}
	return m.settings.MaxParallel
}

// admitLocked promotes queue heads into free slots. Called with m.mu held,
// on every submission, slot release, and policy change.
func (m *Manager) admitLocked() {
	for len(m.running) < m.slotCountLocked() && len(m.queue) > 0 {
		id := m.queue[0]
		m.queue = m.queue[1:]

		if !m.store.MarkRunning(id) {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), m.settings.JobTimeout.Std())
		m.running[id] = cancel

		job, _ := m.store.Get(id)
		w := &worker{
			job:      job,
			settings: m.settings,
			store:    m.store,
			runner:   m.runner,
		}

		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			w.run(ctx)
			m.release(id, cancel)
		}()
	}
}

// release frees the job's slot exactly once and admits the next queued job
func (m *Manager) release(id string, cancel context.CancelFunc) {
	cancel()

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.running, id)
	m.admitLocked()
}

func (m *Manager) removeQueuedLocked(id string) {
	for i, queued := range m.queue {
		if queued == id {
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			return
		}
	}
}

// validateURL checks that the submission is syntactically a plausible media
// URL: absolute, http or https, with a host.
func validateURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: url is required", model.ErrInvalidRequest)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", model.ErrInvalidRequest, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: unsupported scheme %q", model.ErrInvalidRequest, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: url has no host", model.ErrInvalidRequest)
	}
	return raw, nil
}
