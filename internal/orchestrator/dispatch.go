package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/bdougie/videoprobe/internal/config"
	"github.com/bdougie/videoprobe/internal/errdefs"
	"github.com/bdougie/videoprobe/internal/metrics"
	"github.com/bdougie/videoprobe/internal/models"
	"github.com/bdougie/videoprobe/internal/telemetry"
	"github.com/bdougie/videoprobe/internal/workspace"
)

// unit runs one analysis and returns the function that stores its result.
type unit func(ctx context.Context) (func(*models.Report), error)

// dispatchTable maps every analysis to its unit of work. Building it runs nothing.
func dispatchTable(input string, opts *models.Options, cfg config.Config, tools Toolset, scope *workspace.Scope) map[models.Analysis]unit {
	events := func(kind telemetry.EventKind, c config.TimedConfig, set func(*models.Report, *models.EventResult)) unit {
		return func(ctx context.Context) (func(*models.Report), error) {
			res, err := tools.Media.DetectEvents(ctx, input, kind, c)
			if err != nil {
				return nil, err
			}
			return func(r *models.Report) { set(r, &res) }, nil
		}
	}
	series := func(kind telemetry.SeriesKind, c config.SampledConfig, set func(*models.Report, *models.MetricSeries)) unit {
		return func(ctx context.Context) (func(*models.Report), error) {
			res, err := tools.Media.MeasureSeries(ctx, input, kind, c)
			if err != nil {
				return nil, err
			}
			return func(r *models.Report) { set(r, &res) }, nil
		}
	}

	return map[models.Analysis]unit{
		models.MetaDataAnalysis: func(ctx context.Context) (func(*models.Report), error) {
			md, err := tools.Prober.Probe(ctx, input)
			if err != nil {
				return nil, err
			}
			return func(r *models.Report) { r.MetaData = md }, nil
		},
		models.VmafMotionAvgAnalysis: func(ctx context.Context) (func(*models.Report), error) {
			v, err := tools.Media.VmafMotionAvg(ctx, input, cfg.VmafMotionAvg)
			if err != nil {
				return nil, err
			}
			return func(r *models.Report) { r.VmafMotionAvg = &v }, nil
		},
		models.DetectBlacknessAnalysis: events(telemetry.Black, cfg.DetectBlackness,
			func(r *models.Report, e *models.EventResult) { r.BlackParts = e }),
		models.DetectFreezesAnalysis: events(telemetry.Freeze, cfg.DetectFreezes,
			func(r *models.Report, e *models.EventResult) { r.FreezeParts = e }),
		models.DetectSilentPartsAnalysis: events(telemetry.Silence, cfg.DetectSilentParts,
			func(r *models.Report, e *models.EventResult) { r.SilentParts = e }),
		models.MeasureBitplaneNoiseAnalysis: series(telemetry.BitplaneNoise, cfg.BitplaneNoise,
			func(r *models.Report, s *models.MetricSeries) { r.BitplaneNoise = s }),
		models.MeasureEntropyAnalysis: series(telemetry.Entropy, cfg.Entropy,
			func(r *models.Report, s *models.MetricSeries) { r.Entropy = s }),
		models.ExtractFramesAnalysis: func(ctx context.Context) (func(*models.Report), error) {
			frames, err := tools.Frames.ExtractFrames(ctx, input, opts.ExtractFrames, cfg, scope)
			if err != nil {
				return nil, err
			}
			if frames == nil {
				frames = []models.FrameRecord{}
			}
			return func(r *models.Report) { r.Frames = frames }, nil
		},
		models.RecordVideoAnalysis: func(ctx context.Context) (func(*models.Report), error) {
			rec, err := tools.Media.RecordVideo(ctx, input, cfg.RecordVideo)
			if err != nil {
				return nil, err
			}
			return func(r *models.Report) { r.RecordedVideo = &rec }, nil
		},
	}
}

// dispatch launches every enabled unit and joins them all. Siblings of a
// failed unit are not cancelled; they run to completion before the first
// failure is returned.
func (o *Orchestrator) dispatch(ctx context.Context, input string, opts *models.Options, cfg config.Config, tools Toolset, scope *workspace.Scope, logger *slog.Logger) (*models.Report, error) {
	table := dispatchTable(input, opts, cfg, tools, scope)
	tracer := otel.Tracer("orchestrator")

	var selected []models.Analysis
	for _, a := range models.AllAnalyses {
		if opts.Enabled(a) {
			selected = append(selected, a)
		}
	}
	setters := make([]func(*models.Report), len(selected))

	var g errgroup.Group
	for i, a := range selected {
		run := table[a]
		g.Go(func() error {
			ctx, span := tracer.Start(ctx, string(a))
			defer span.End()

			start := time.Now()
			set, err := run(ctx)
			metrics.AnalysisDuration.WithLabelValues(string(a)).Observe(time.Since(start).Seconds())
			metrics.AnalysesTotal.WithLabelValues(string(a), metrics.Status(err)).Inc()
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				logger.Warn("analysis failed", "analysis", a, "error", err)
				return &errdefs.AnalysisError{Analysis: string(a), Err: err}
			}
			logger.Debug("analysis done", "analysis", a, "elapsed", time.Since(start))
			setters[i] = set
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &models.Report{}
	for _, set := range setters {
		set(report)
	}
	return report, nil
}
