package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/echodl/echo-downloader/internal/config"
	"github.com/echodl/echo-downloader/internal/download"
	"github.com/echodl/echo-downloader/internal/httpapi"
	"github.com/echodl/echo-downloader/internal/model"
	"github.com/echodl/echo-downloader/internal/platform"
	"github.com/echodl/echo-downloader/internal/preview"
	"github.com/echodl/echo-downloader/internal/store"
)

const shutdownGrace = 15 * time.Second

func main() {
	loadDotEnv()

	settings, err := config.Load(os.Getenv("ECHODL_CONFIG"))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	for _, format := range []model.Format{model.FormatAudio, model.FormatVideo} {
		dir := filepath.Join(settings.DownloadsDir, format.Subdir())
		if err := platform.EnsureDir(dir); err != nil {
			log.Fatalf("create downloads dir %s: %v", dir, err)
		}
	}

	runner := platform.ExecRunner{Grace: settings.CancelGrace.Std()}
	jobStore := store.New(settings.HistorySize)
	manager := download.NewManager(settings, jobStore, runner)
	previews := preview.NewService(settings, runner)

	server := &http.Server{
		Addr:    settings.Addr,
		Handler: httpapi.Server{Manager: manager, Preview: previews}.Router(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("listening on %s (downloads in %s, max parallel %d)",
			settings.Addr, settings.DownloadsDir, settings.MaxParallel)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Printf("shutting down")

		grace, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()

		if err := server.Shutdown(grace); err != nil {
			log.Printf("http shutdown: %v", err)
		}
		if err := manager.Shutdown(grace); err != nil {
			log.Printf("job shutdown: %v", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("serve: %v", err)
	}
}

func loadDotEnv() {
	dir, err := os.Getwd()
	if err != nil {
		return
	}
	for i := 0; i < 5; i++ {
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			_ = godotenv.Load(envPath)
			return
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return
		}
		dir = parent
	}
}
