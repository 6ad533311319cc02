package preview

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/echodl/echo-downloader/internal/config"
	"github.com/echodl/echo-downloader/internal/model"
	"github.com/echodl/echo-downloader/internal/platform"
)

// Fallback when the probe tool returns no title
const DefaultTitle = "Unknown"

// Result is the metadata returned for a previewed URL
type Result struct {
	Title        string `json:"title"`
	ThumbnailURL string `json:"thumbnail_url"`
}

// Service performs metadata-only lookups via the external probe tool
type Service struct {
	runner  platform.Runner
	bin     string
	timeout time.Duration
	limiter *rate.Limiter

	mu    sync.Mutex
	cache map[string]Result // never evicted; bounded by process lifetime
}

// NewService creates a preview service from settings
func NewService(settings config.Settings, runner platform.Runner) *Service {
	return &Service{
		runner:  runner,
		bin:     settings.ProbeBin,
		timeout: settings.PreviewTimeout.Std(),
		limiter: rate.NewLimiter(rate.Limit(settings.PreviewPerSec), 1),
		cache:   make(map[string]Result),
	}
}

// Lookup returns title and thumbnail for the URL. Identical URLs are served
// from cache without invoking the probe tool again.
func (s *Service) Lookup(ctx context.Context, rawURL string) (Result, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return Result{}, fmt.Errorf("%w: url is required", model.ErrInvalidRequest)
	}

	s.mu.Lock()
	if cached, ok := s.cache[rawURL]; ok {
		s.mu.Unlock()
		return cached, nil
	}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.limiter.Wait(ctx); err != nil {
		return Result{}, model.ErrPreviewTimeout
	}

	handle, err := s.runner.Start(ctx, s.bin,
		"--dump-json", "--skip-download", "--no-warnings", "--no-playlist", rawURL)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", model.ErrPreviewUnavailable, err)
	}

	// Keep only the metadata line; warnings and noise may surround it
	var jsonLine, lastDiag string
	for line := range handle.Lines() {
		line = strings.TrimSpace(line)
		if jsonLine == "" && strings.HasPrefix(line, "{") && strings.HasSuffix(line, "}") {
			jsonLine = line
		}
		if msg, ok := strings.CutPrefix(line, "ERROR:"); ok {
			lastDiag = strings.TrimSpace(msg)
		}
	}
	waitErr := handle.Wait()

	switch {
	case ctx.Err() == context.DeadlineExceeded:
		return Result{}, model.ErrPreviewTimeout
	case waitErr != nil:
		info := platform.ClassifyFailure(lastDiag)
		return Result{}, fmt.Errorf("%w: %s", model.ErrPreviewUnavailable, info.Detail)
	case jsonLine == "":
		return Result{}, fmt.Errorf("%w: no metadata returned", model.ErrPreviewUnavailable)
	}

	var meta struct {
		Title     string `json:"title"`
		Thumbnail string `json:"thumbnail"`
	}
	if err := json.Unmarshal([]byte(jsonLine), &meta); err != nil {
		return Result{}, fmt.Errorf("%w: malformed metadata", model.ErrPreviewUnavailable)
	}
	if meta.Title == "" {
		meta.Title = DefaultTitle
	}

	result := Result{Title: meta.Title, ThumbnailURL: meta.Thumbnail}
	s.mu.Lock()
	s.cache[rawURL] = result
	s.mu.Unlock()

	return result, nil
}
