package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bdougie/videoprobe/internal/analyzer"
	"github.com/bdougie/videoprobe/internal/config"
	"github.com/bdougie/videoprobe/internal/embeddings"
	"github.com/bdougie/videoprobe/internal/errdefs"
	"github.com/bdougie/videoprobe/internal/models"
	"github.com/bdougie/videoprobe/internal/orchestrator"
	"github.com/bdougie/videoprobe/internal/storage"
	"github.com/bdougie/videoprobe/internal/tracing"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	settings, err := config.LoadEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	input := flag.String("input", "", "video file or stream URL to analyze")
	optionsFile := flag.String("options", "", "JSON file selecting the analyses")
	configFile := flag.String("config", settings.ConfigFile, "configuration overrides file (YAML, JSON or TOML)")
	logLevel := flag.String("log-level", settings.LogLevel, "trace, debug, info, warn or error")
	outputDir := flag.String("output", "", "directory to store the report in")
	dsn := flag.String("dsn", settings.DatabaseURL, "PostgreSQL DSN to store the report in")
	flag.Parse()

	logger := config.NewLogger(os.Stderr, *logLevel)

	if *input == "" {
		fmt.Fprintln(os.Stderr, "Usage: videoprobe --input path/to/video.mp4 [--options options.json] [--config overrides.yaml] [--output dir] [--dsn postgres://...]")
		return 2
	}

	var opts *models.Options
	if *optionsFile != "" {
		data, err := os.ReadFile(*optionsFile)
		if err != nil {
			logger.Error("failed to read options", "file", *optionsFile, "error", err)
			return 2
		}
		if opts, err = models.ParseOptions(data); err != nil {
			logger.Error("invalid options", "error", err)
			return 2
		}
	}

	var overrides *config.Overrides
	if *configFile != "" {
		if overrides, err = config.LoadOverrides(*configFile); err != nil {
			logger.Error("invalid configuration", "error", err)
			return 2
		}
	}

	if settings.OTLPEndpoint != "" {
		tp, err := tracing.InitTracer(ctx, settings.OTLPEndpoint, "videoprobe")
		if err != nil {
			logger.Warn("tracing disabled", "error", err)
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = tp.Shutdown(shutdownCtx)
			}()
		}
	}

	defaults := settings.Defaults()
	var classifier analyzer.Classifier
	if settings.Classifier || (opts != nil && opts.ExtractFrames != nil && opts.ExtractFrames.ClassifyObjects) {
		cfg := config.Resolve(defaults, overrides)
		if c, err := prepareClassifier(ctx, cfg.ClassifyObjects, logger); err != nil {
			logger.Warn("classification unavailable", "error", err)
		} else {
			classifier = c
		}
	}

	deps := orchestrator.Deps{
		Defaults:   defaults,
		Classifier: classifier,
		LogOutput:  os.Stderr,
	}
	var features *embeddings.Service
	if *dsn != "" {
		features = embeddings.NewService(4)
		defer features.Close()
		deps.Features = features
	}
	orch := orchestrator.New(deps)

	report, err := orch.Run(ctx, orchestrator.Request{
		Input:     *input,
		Options:   opts,
		Overrides: overrides,
		LogLevel:  *logLevel,
	})
	if err != nil {
		logger.Error("analysis failed", "error", err)
		if errdefs.IsValidation(err) || errdefs.IsInput(err) {
			return 2
		}
		return 1
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		logger.Error("failed to write report", "error", err)
		return 1
	}

	stored := storage.NewStoredReport(*input, report)
	if *outputDir != "" {
		store := storage.NewFileStorage(*outputDir)
		if err := saveReport(ctx, store, stored); err != nil {
			logger.Error("failed to store report", "error", err)
			return 1
		}
		logger.Info("report stored", "file", store.Path(stored.ID))
	}
	if *dsn != "" {
		if err := saveToPostgres(ctx, *dsn, stored, features, logger); err != nil {
			logger.Error("failed to store report in database", "error", err)
			return 1
		}
	}
	return 0
}

func prepareClassifier(ctx context.Context, cfg config.ClassifierConfig, logger *slog.Logger) (*analyzer.OllamaClassifier, error) {
	client, err := analyzer.NewOllamaClient()
	if err != nil {
		return nil, fmt.Errorf("create ollama client: %w", err)
	}
	return analyzer.PrepareClassifier(ctx, client, cfg, logger)
}

func saveReport(ctx context.Context, store storage.Storage, r storage.StoredReport) error {
	if err := store.Save(ctx, r); err != nil {
		return err
	}
	return store.Flush()
}

func saveToPostgres(ctx context.Context, dsn string, r storage.StoredReport, features *embeddings.Service, logger *slog.Logger) error {
	if err := storage.Migrate(dsn, logger); err != nil {
		return err
	}

	pg, err := storage.NewPostgresStorage(ctx, dsn, features, logger)
	if err != nil {
		return err
	}
	defer pg.Close()

	if err := saveReport(ctx, pg, r); err != nil {
		return err
	}
	logger.Info("report stored in database", "id", r.ID)
	return nil
}
