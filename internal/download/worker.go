package download

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/echodl/echo-downloader/internal/config"
	"github.com/echodl/echo-downloader/internal/model"
	"github.com/echodl/echo-downloader/internal/platform"
	"github.com/echodl/echo-downloader/internal/store"
)

// worker drives exactly one external fetch process for exactly one job from
// Running to a terminal state.
type worker struct {
	job      model.Job
	settings config.Settings
	store    *store.Store
	runner   platform.Runner
}

// run blocks until the job reaches a terminal state. It never panics out:
// an unexpected crash is converted into a Failed job so the slot is always
// released by the caller.
func (w *worker) run(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("worker %s: recovered: %v", w.job.ID, r)
			w.fail(model.ErrorInfo{
				Kind:   model.ErrKindProcessFailure,
				Detail: fmt.Sprintf("internal worker failure: %v", r),
			})
		}
	}()

	handle, err := w.runner.Start(ctx, w.settings.FetchBin, w.buildArgs()...)
	if err != nil {
		kind := model.ErrKindProcessFailure
		if errors.Is(err, exec.ErrNotFound) {
			kind = model.ErrKindDependencyMissing
		}
		w.fail(model.ErrorInfo{Kind: kind, Detail: err.Error()})
		return
	}

	var destination, lastDiag string
	for line := range handle.Lines() {
		switch ev := platform.ParseProgressLine(line); ev.Kind {
		case platform.EventProgress:
			w.store.ApplyProgress(w.job.ID, ev.Percent, ev.SpeedBPS, ev.ETASec)
		case platform.EventFinished:
			// transfer done, post-processing may still follow
			w.store.ApplyProgress(w.job.ID, 100, 0, -1)
		case platform.EventDestination:
			destination = ev.Path
			w.store.SetTitle(w.job.ID, titleFromPath(ev.Path))
		case platform.EventDiagnostic:
			lastDiag = ev.Message
		}
	}

	waitErr := handle.Wait()
	w.finalize(ctx, destination, lastDiag, waitErr)
}

// finalize picks the terminal state from the cancel flag, the run context,
// and the process exit result, in that order.
func (w *worker) finalize(ctx context.Context, destination, lastDiag string, waitErr error) {
	snap, _ := w.store.Get(w.job.ID)

	switch {
	case snap.CancelRequested:
		platform.RemovePartials(destination)
		w.store.Finalize(w.job.ID, model.StateCancelled, "", nil)

	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		platform.RemovePartials(destination)
		w.fail(model.ErrorInfo{
			Kind:   model.ErrKindProcessFailure,
			Detail: fmt.Sprintf("job timed out after %s", w.settings.JobTimeout.Std()),
		})

	case errors.Is(ctx.Err(), context.Canceled):
		// shutdown, not a user cancel
		platform.RemovePartials(destination)
		w.store.Finalize(w.job.ID, model.StateCancelled, "", nil)

	case waitErr != nil:
		info := platform.ClassifyFailure(lastDiag)
		if lastDiag == "" {
			info.Detail = waitErr.Error()
		}
		w.fail(info)

	default:
		output, err := platform.ResolveOutput(destination)
		if err != nil {
			w.fail(model.ErrorInfo{
				Kind:   model.ErrKindProcessFailure,
				Detail: "process exited cleanly but produced no output file",
			})
			return
		}
		w.store.Finalize(w.job.ID, model.StateCompleted, output, nil)
	}
}

func (w *worker) fail(info model.ErrorInfo) {
	w.store.Finalize(w.job.ID, model.StateFailed, "", &info)
}

// buildArgs assembles the fetch tool command line for the job
func (w *worker) buildArgs() []string {
	outDir := filepath.Join(w.settings.DownloadsDir, w.job.Format.Subdir())

	args := []string{
		"--newline",
		"--no-warnings",
		"--no-playlist",
		"--progress-template", "%(progress)j",
	}
	if w.job.Format == model.FormatAudio {
		args = append(args, "-x", "--audio-format", "mp3", "--audio-quality", "0")
	}
	args = append(args,
		"-o", filepath.Join(outDir, "%(title)s.%(ext)s"),
		w.job.URL,
	)
	return args
}

func titleFromPath(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}
