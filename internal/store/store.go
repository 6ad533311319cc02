package store

import (
	"sync"
	"time"

	"github.com/echodl/echo-downloader/internal/model"
)

// HistoryEntry records one finished download for the session history
type HistoryEntry struct {
	Title      string       `json:"title"`
	Format     model.Format `json:"format"`
	FinishedAt time.Time    `json:"finished_at"`
}

// Store is the concurrency-safe in-memory job table
type Store struct {
	mu          sync.RWMutex
	jobs        map[string]*model.Job
	order       []string // job ids in creation order
	history     []HistoryEntry
	historySize int
}

// New creates an empty store keeping at most historySize completed entries
func New(historySize int) *Store {
	return &Store{
		jobs:        make(map[string]*model.Job),
		historySize: historySize,
	}
}

// Add registers a new job. The store keeps its own copy.
func (s *Store) Add(job model.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.jobs[job.ID] = &job
	s.order = append(s.order, job.ID)
}

// Get returns a point-in-time snapshot of the job
func (s *Store) Get(id string) (model.Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return model.Job{}, false
	}
	return *job, true
}

// List returns snapshots of all jobs ordered by creation time
func (s *Store) List() []model.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Job, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.jobs[id])
	}
	return out
}

// MarkRunning transitions a Queued job to Running. Returns false if the job
// is unknown or not Queued.
func (s *Store) MarkRunning(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok || job.State != model.StateQueued {
		return false
	}
	job.State = model.StateRunning
	job.StartedAt = time.Now()
	return true
}

// ApplyProgress updates the progress figures of a Running job. Percent is
// monotonic: a lower value than already recorded is kept but never applied.
func (s *Store) ApplyProgress(id string, percent, speedBPS float64, etaSec int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok || job.State != model.StateRunning {
		return
	}
	if percent > job.Percent {
		job.Percent = percent
	}
	job.SpeedBPS = speedBPS
	job.ETASec = etaSec
}

// SetTitle records the media title once it becomes known
func (s *Store) SetTitle(id, title string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok || job.State.IsTerminal() || title == "" {
		return
	}
	job.Title = title
}

// RequestCancel sets the cancel flag (at most once, never cleared) and
// returns a snapshot of the job as of the request.
func (s *Store) RequestCancel(id string) (model.Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return model.Job{}, false
	}
	if !job.State.IsTerminal() {
		job.CancelRequested = true
	}
	return *job, true
}

// Finalize moves a job into a terminal state, freezing it. Calls on an
// already-terminal job are ignored, so the first terminal transition wins.
// Returns false if the job is unknown or already terminal.
func (s *Store) Finalize(id string, state model.JobState, outputPath string, errInfo *model.ErrorInfo) bool {
	if !state.IsTerminal() {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok || job.State.IsTerminal() {
		return false
	}

	job.State = state
	job.FinishedAt = time.Now()
	job.SpeedBPS = 0
	job.ETASec = -1

	switch state {
	case model.StateCompleted:
		job.Percent = 100
		job.OutputPath = outputPath
		s.recordHistoryLocked(job)
	case model.StateFailed:
		job.Error = errInfo
	}
	return true
}

// History returns the most recent completed downloads, newest first
func (s *Store) History() []HistoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]HistoryEntry, len(s.history))
	copy(out, s.history)
	return out
}

func (s *Store) recordHistoryLocked(job *model.Job) {
	title := job.Title
	if title == "" {
		title = job.URL
	}
	entry := HistoryEntry{Title: title, Format: job.Format, FinishedAt: job.FinishedAt}

	s.history = append([]HistoryEntry{entry}, s.history...)
	if len(s.history) > s.historySize {
		s.history = s.history[:s.historySize]
	}
}
