package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bdougie/videoprobe/internal/analyzer"
	"github.com/bdougie/videoprobe/internal/config"
	"github.com/bdougie/videoprobe/internal/embeddings"
	"github.com/bdougie/videoprobe/internal/monitor"
	"github.com/bdougie/videoprobe/internal/orchestrator"
	"github.com/bdougie/videoprobe/internal/server"
	"github.com/bdougie/videoprobe/internal/storage"
	"github.com/bdougie/videoprobe/internal/tracing"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	settings, err := config.LoadEnv()
	if err != nil {
		return err
	}
	logger := config.NewLogger(os.Stderr, settings.LogLevel)

	if settings.OTLPEndpoint != "" {
		tp, err := tracing.InitTracer(ctx, settings.OTLPEndpoint, "videoprobed")
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = tp.Shutdown(shutdownCtx)
		}()
	}

	defaults := settings.Defaults()
	var overrides *config.Overrides
	if settings.ConfigFile != "" {
		if overrides, err = config.LoadOverrides(settings.ConfigFile); err != nil {
			return err
		}
		defaults = config.Resolve(defaults, overrides)
		if err := config.Validate(defaults); err != nil {
			return err
		}
	}

	var classifier analyzer.Classifier
	if settings.Classifier {
		client, err := analyzer.NewOllamaClient()
		if err != nil {
			return fmt.Errorf("create ollama client: %w", err)
		}
		c, err := analyzer.PrepareClassifier(ctx, client, defaults.ClassifyObjects, logger)
		if err != nil {
			return err
		}
		classifier = c
	}

	deps := orchestrator.Deps{
		Defaults:   defaults,
		Classifier: classifier,
		LogOutput:  os.Stderr,
	}
	var store storage.Storage = storage.NewFileStorage(settings.ReportDir)
	if settings.DatabaseURL != "" {
		if err := storage.Migrate(settings.DatabaseURL, logger); err != nil {
			return err
		}
		features := embeddings.NewService(4)
		defer features.Close()
		deps.Features = features
		pg, err := storage.NewPostgresStorage(ctx, settings.DatabaseURL, features, logger)
		if err != nil {
			return err
		}
		defer pg.Close()
		store = pg
	}

	orch := orchestrator.New(deps)

	workRoot := settings.WorkRoot
	if workRoot == "" {
		workRoot = filepath.Join(os.TempDir(), "videoprobed")
	}

	if settings.MonitorFile != "" {
		jobs, err := monitor.LoadJobs(settings.MonitorFile)
		if err != nil {
			return err
		}
		scheduler := monitor.NewScheduler(orch, store, filepath.Join(workRoot, "monitor"), logger)
		for _, j := range jobs {
			if err := scheduler.Add(j); err != nil {
				return err
			}
		}
		scheduler.Start()
		defer scheduler.Stop(30 * time.Second)
	}

	gin.SetMode(gin.ReleaseMode)
	handler := server.NewAnalyzeHandler(orch, store, filepath.Join(workRoot, "requests"), logger)
	srv := &http.Server{
		Addr:    settings.ListenAddr,
		Handler: server.NewRouter(handler, logger),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

