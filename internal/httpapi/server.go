package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/echodl/echo-downloader/internal/download"
	"github.com/echodl/echo-downloader/internal/model"
	"github.com/echodl/echo-downloader/internal/platform"
	"github.com/echodl/echo-downloader/internal/preview"
)

// Previewer resolves metadata for a URL without downloading it
type Previewer interface {
	Lookup(ctx context.Context, url string) (preview.Result, error)
}

type Server struct {
	Manager *download.Manager
	Preview Previewer
}

func (s Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(cors)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Post("/download", s.handleSubmit)
	r.Get("/status/{job_id}", s.handleStatus)
	r.Get("/jobs", s.handleListJobs)
	r.Post("/cancel/{job_id}", s.handleCancel)
	r.Get("/preview", s.handlePreview)
	r.Post("/open_folder/{job_id}", s.handleOpenFolder)
	r.Post("/mode", s.handleSetMode)
	r.Get("/mode", s.handleGetMode)
	r.Get("/history", s.handleHistory)

	return r
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL    string `json:"url"`
		Format string `json:"format"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	id, err := s.Manager.Submit(req.URL, req.Format)
	if err != nil {
		writeErr(w, errStatus(err), err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{"job_id": id})
}

func (s Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	job, err := s.Manager.Status(chi.URLParam(r, "job_id"))
	if err != nil {
		writeErr(w, errStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, jobResponse(job))
}

func (s Server) handleListJobs(w http.ResponseWriter, _ *http.Request) {
	jobs := s.Manager.List()
	resp := make([]map[string]any, 0, len(jobs))
	for _, job := range jobs {
		resp = append(resp, jobResponse(job))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "job_id")
	if err := s.Manager.Cancel(id); err != nil {
		writeErr(w, errStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"job_id": id, "cancel_requested": true})
}

func (s Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	url := strings.TrimSpace(r.URL.Query().Get("url"))
	result, err := s.Preview.Lookup(r.Context(), url)
	if err != nil {
		writeErr(w, errStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s Server) handleOpenFolder(w http.ResponseWriter, r *http.Request) {
	job, err := s.Manager.Status(chi.URLParam(r, "job_id"))
	if err != nil {
		writeErr(w, errStatus(err), err)
		return
	}
	if job.State != model.StateCompleted || job.OutputPath == "" {
		writeErr(w, http.StatusConflict, fmt.Errorf("job %s has no completed output", job.ID))
		return
	}
	if err := platform.OpenFolder(filepath.Dir(job.OutputPath)); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"opened": true})
}

func (s Server) handleSetMode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Queue bool `json:"queue"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	s.Manager.SetQueueMode(req.Queue)
	writeJSON(w, http.StatusOK, map[string]any{"queue_mode": s.Manager.QueueMode()})
}

func (s Server) handleGetMode(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"queue_mode": s.Manager.QueueMode()})
}

func (s Server) handleHistory(w http.ResponseWriter, _ *http.Request) {
	entries := s.Manager.History()
	resp := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, map[string]any{
			"title":       e.Title,
			"format":      e.Format,
			"finished_at": e.FinishedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// jobResponse renders a job for polling clients, with the transfer rate and
// ETA already humanized.
func jobResponse(job model.Job) map[string]any {
	resp := map[string]any{
		"id":               job.ID,
		"source_url":       job.URL,
		"format":           job.Format,
		"state":            job.State,
		"progress_percent": job.Percent,
		"cancel_requested": job.CancelRequested,
		"created_at":       job.CreatedAt,
	}
	if rate := job.SpeedString(); rate != "" {
		resp["transfer_rate"] = rate
	}
	if eta := job.ETAString(); eta != "" {
		resp["eta"] = eta
	}
	if job.Title != "" {
		resp["title"] = job.Title
	}
	if job.OutputPath != "" {
		resp["output_path"] = job.OutputPath
	}
	if job.Error != nil {
		resp["error_info"] = job.Error
	}
	if !job.StartedAt.IsZero() {
		resp["started_at"] = job.StartedAt
	}
	if !job.FinishedAt.IsZero() {
		resp["finished_at"] = job.FinishedAt
	}
	return resp
}

func errStatus(err error) int {
	switch {
	case errors.Is(err, model.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrQueueFull):
		return http.StatusServiceUnavailable
	case errors.Is(err, model.ErrPreviewTimeout):
		return http.StatusRequestTimeout
	case errors.Is(err, model.ErrPreviewUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]any{"error": err.Error()})
}
