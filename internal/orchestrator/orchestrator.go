// Package orchestrator runs an analysis request from validation to report.
package orchestrator

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/bdougie/videoprobe/internal/analyzer"
	"github.com/bdougie/videoprobe/internal/config"
	"github.com/bdougie/videoprobe/internal/errdefs"
	"github.com/bdougie/videoprobe/internal/extractor"
	"github.com/bdougie/videoprobe/internal/ffmpeg"
	"github.com/bdougie/videoprobe/internal/metrics"
	"github.com/bdougie/videoprobe/internal/models"
	"github.com/bdougie/videoprobe/internal/telemetry"
	"github.com/bdougie/videoprobe/internal/workspace"
)

// MediaTool runs the ffmpeg based analyses
type MediaTool interface {
	VmafMotionAvg(ctx context.Context, input string, cfg config.TimedConfig) (float64, error)
	DetectEvents(ctx context.Context, input string, kind telemetry.EventKind, cfg config.TimedConfig) (models.EventResult, error)
	MeasureSeries(ctx context.Context, input string, kind telemetry.SeriesKind, cfg config.SampledConfig) (models.MetricSeries, error)
	RecordVideo(ctx context.Context, input string, cfg config.RecordConfig) (models.RecordedVideo, error)
}

// FrameExtractor produces the frame records of a source
type FrameExtractor interface {
	ExtractFrames(ctx context.Context, input string, opts *models.FrameOptions, cfg config.Config, scope *workspace.Scope) ([]models.FrameRecord, error)
}

// Toolset holds the capabilities a single request runs against
type Toolset struct {
	Prober ffmpeg.Prober
	Media  MediaTool
	Frames FrameExtractor
}

// FeatureAnnotator sets the feature vector of extracted frames
type FeatureAnnotator interface {
	Annotate(ctx context.Context, frames []models.FrameRecord) error
}

// ToolsetFactory builds the toolset for a resolved configuration.
type ToolsetFactory func(cfg config.Config, classifier analyzer.Classifier, logger *slog.Logger) Toolset

// Deps are the long-lived dependencies of an Orchestrator
type Deps struct {
	// Defaults is the configuration that request overrides are merged onto.
	Defaults config.Config
	// Classifier is nil when no classifier was prepared.
	Classifier analyzer.Classifier
	Tools      ToolsetFactory
	LogOutput  io.Writer
	// Features, when set, annotates extracted frames before their
	// workspace is released.
	Features FeatureAnnotator
}

// Request is one call to Run
type Request struct {
	Input     string
	Options   *models.Options
	Overrides *config.Overrides
	LogLevel  string
	// WorkRoot, when set, holds this request's workspaces. Concurrent
	// requests must use distinct roots.
	WorkRoot string
}

// Orchestrator validates requests, dispatches the selected analyses
// concurrently and assembles the report
type Orchestrator struct {
	defaults   config.Config
	classifier analyzer.Classifier
	tools      ToolsetFactory
	logOutput  io.Writer
	features   FeatureAnnotator
}

// New creates an Orchestrator. A nil Tools uses the ffmpeg, ffprobe and
// tesseract command line tools.
func New(deps Deps) *Orchestrator {
	o := &Orchestrator{
		defaults:   deps.Defaults,
		classifier: deps.Classifier,
		tools:      deps.Tools,
		logOutput:  deps.LogOutput,
		features:   deps.Features,
	}
	if o.tools == nil {
		o.tools = NewToolset
	}
	if o.logOutput == nil {
		o.logOutput = os.Stderr
	}
	return o
}

// NewToolset wires the command line tools named in cfg.
func NewToolset(cfg config.Config, classifier analyzer.Classifier, logger *slog.Logger) Toolset {
	ff := ffmpeg.NewTool(ffmpeg.NewExecRunner(cfg.FFmpeg.FFmpegPath, cfg.FFmpeg, logger), logger)
	ocr := analyzer.NewTesseractOCR(ffmpeg.NewExecRunner(cfg.ImgNumberOCR.Binary, cfg.FFmpeg, logger))
	return Toolset{
		Prober: ffmpeg.NewFFprobe(ffmpeg.NewExecRunner(cfg.FFmpeg.FFprobePath, cfg.FFmpeg, logger)),
		Media:  ff,
		Frames: extractor.NewPipeline(ff, analyzer.NewFrameAnalyzer(ocr, classifier, logger), logger),
	}
}

// Run executes a request. It returns a ValidationError or InputError before
// any external process starts, and an AnalysisError wrapping the first
// failing analysis otherwise. Workspaces are released on every path.
func (o *Orchestrator) Run(ctx context.Context, req Request) (report *models.Report, err error) {
	requestID := uuid.NewString()
	logger := config.NewLogger(o.logOutput, req.LogLevel).With("request_id", requestID)

	ctx, span := otel.Tracer("orchestrator").Start(ctx, "Orchestrator.Run")
	defer span.End()
	span.SetAttributes(
		attribute.String("request.id", requestID),
		attribute.String("request.input", req.Input),
	)

	metrics.RequestsInFlight.Inc()
	defer metrics.RequestsInFlight.Dec()
	defer func() {
		metrics.RequestsTotal.WithLabelValues(metrics.Status(err)).Inc()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	if err := CheckInput(req.Input); err != nil {
		return nil, err
	}

	cfg, err := o.Prepare(req)
	if err != nil {
		return nil, err
	}

	opts := req.Options
	if opts.IsEmpty() {
		logger.Debug("no analyses selected, probing metadata only")
		opts = &models.Options{MetaData: true}
	}

	scope := workspace.NewScope(cfg.KeepWorkspaces, logger)
	if req.WorkRoot != "" {
		scope.Track(req.WorkRoot, workspace.RequestRoot)
	}
	defer func() {
		if rerr := scope.Release(); rerr != nil {
			logger.Error("workspace teardown failed", "error", rerr)
			if err == nil {
				report, err = nil, rerr
			}
		}
	}()

	logger.Info("starting analysis", "input", req.Input, "analyses", enabled(opts))
	start := time.Now()
	tools := o.tools(cfg, o.classifier, logger)
	report, err = o.dispatch(ctx, req.Input, opts, cfg, tools, scope, logger)
	if err != nil {
		logger.Error("analysis failed", "error", err)
		return nil, err
	}
	if o.features != nil && len(report.Frames) > 0 {
		if ferr := o.features.Annotate(ctx, report.Frames); ferr != nil {
			logger.Warn("frame features incomplete", "error", ferr)
		}
	}
	logger.Info("analysis complete", "keys", report.Keys(), "elapsed", time.Since(start))
	return report, nil
}

// Prepare resolves and validates the configuration of a request.
func (o *Orchestrator) Prepare(req Request) (config.Config, error) {
	cfg := config.Resolve(o.defaults, req.Overrides)
	if req.WorkRoot != "" {
		cfg.ExtractFrames.Workspace = filepath.Join(req.WorkRoot, "frames")
		cfg.ImgCropper.Workspace = filepath.Join(req.WorkRoot, "ocr")
	}
	if err := config.Validate(cfg); err != nil {
		return cfg, err
	}
	if err := config.ValidateOptions(req.Options, cfg); err != nil {
		return cfg, err
	}
	if opts := req.Options; opts != nil && opts.ExtractFrames != nil && opts.ExtractFrames.ClassifyObjects && o.classifier == nil {
		return cfg, &errdefs.ValidationError{
			Field:  "extractFrames.classifyObjects",
			Reason: "no classifier is available",
		}
	}
	return cfg, nil
}

// CheckInput accepts URLs with a scheme and existing regular files.
func CheckInput(input string) error {
	if input == "" {
		return &errdefs.InputError{Input: input, Err: fmt.Errorf("no input given")}
	}
	if u, err := url.Parse(input); err == nil && len(u.Scheme) > 1 && u.Host != "" {
		return nil
	}
	fi, err := os.Stat(input)
	if err != nil {
		return &errdefs.InputError{Input: input, Err: err}
	}
	if !fi.Mode().IsRegular() {
		return &errdefs.InputError{Input: input, Err: fmt.Errorf("not a regular file")}
	}
	return nil
}

func enabled(opts *models.Options) []string {
	var names []string
	for _, a := range models.AllAnalyses {
		if opts.Enabled(a) {
			names = append(names, string(a))
		}
	}
	return names
}
