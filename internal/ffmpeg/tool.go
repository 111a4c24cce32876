package ffmpeg

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/bdougie/videoprobe/internal/config"
	"github.com/bdougie/videoprobe/internal/errdefs"
	"github.com/bdougie/videoprobe/internal/models"
	"github.com/bdougie/videoprobe/internal/telemetry"
	"github.com/bdougie/videoprobe/internal/workspace"
)

// FramePattern is the file name ffmpeg writes extracted frames to.
const FramePattern = "frame_%04d"

var vmafMotionLine = regexp.MustCompile(`VMAF Motion avg:\s*(-?\d+(?:\.\d+)?)`)

// Tool builds ffmpeg invocations for each analysis and parses their output
type Tool struct {
	runner Runner
	logger *slog.Logger
	now    func() time.Time
}

// NewTool creates a Tool on top of runner.
func NewTool(runner Runner, logger *slog.Logger) *Tool {
	return &Tool{runner: runner, logger: logger, now: time.Now}
}

// timeLimit returns the -t argument for the first seconds of the source.
func timeLimit(seconds int) []string {
	if seconds <= 0 {
		return nil
	}
	d := time.Duration(seconds) * time.Second
	return []string{"-t", fmt.Sprintf("%02d:%02d:%02d", int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60)}
}

// VmafMotionAvg returns the average VMAF motion score.
func (t *Tool) VmafMotionAvg(ctx context.Context, input string, cfg config.TimedConfig) (float64, error) {
	args := append(timeLimit(cfg.TimeLength), "-i", input, "-vf", "vmafmotion", "-f", "null", "-")
	out, err := t.runner.Run(ctx, args)
	if err != nil {
		return 0, err
	}
	m := vmafMotionLine.FindSubmatch(out.Stderr)
	if m == nil {
		return 0, &errdefs.ExternalToolError{Tool: "ffmpeg", Args: args, Stderr: string(out.Stderr), Err: fmt.Errorf("no VMAF Motion avg in output")}
	}
	v, err := strconv.ParseFloat(string(m[1]), 64)
	if err != nil {
		return 0, fmt.Errorf("parse vmaf motion avg: %w", err)
	}
	t.logger.Debug("vmaf motion avg", "input", input, "value", v)
	return v, nil
}

// DetectEvents runs an interval detector and parses its diagnostics.
func (t *Tool) DetectEvents(ctx context.Context, input string, kind telemetry.EventKind, cfg config.TimedConfig) (models.EventResult, error) {
	graph := "-vf"
	if kind.Audio {
		graph = "-af"
	}
	args := append(timeLimit(cfg.TimeLength), "-nostats", "-i", input, graph, kind.Marker, "-f", "null", "-")
	out, err := t.runner.Run(ctx, args)
	if err != nil {
		return models.EventResult{}, err
	}
	res := telemetry.ParseEvents(string(out.Stderr), kind)
	if res.Outcome == models.OutcomeDegraded {
		t.logger.Warn("detector output could not be parsed, returning raw lines", "kind", kind.Name, "lines", len(res.Raw))
	}
	t.logger.Debug("events detected", "kind", kind.Name, "outcome", res.Outcome, "count", len(res.Events))
	return res, nil
}

// MeasureSeries samples a per-frame metric at the configured frame rate.
func (t *Tool) MeasureSeries(ctx context.Context, input string, kind telemetry.SeriesKind, cfg config.SampledConfig) (models.MetricSeries, error) {
	filter := fmt.Sprintf("fps=%s,%s,metadata=mode=print:file=-", cfg.FrameRate, kind.Filter)
	args := append(timeLimit(cfg.TimeLength), "-i", input, "-vf", filter, "-f", "null", "-")
	out, err := t.runner.Run(ctx, args)
	if err != nil {
		return models.MetricSeries{}, err
	}
	series := telemetry.ParseSeries(string(out.Stdout), kind, nil)
	if series.Dropped > 0 {
		t.logger.Warn("dropped malformed sample blocks", "kind", kind.Name, "dropped", series.Dropped)
	}
	return series, nil
}

// SplitFrames writes numbered frames of the source into dir.
func (t *Tool) SplitFrames(ctx context.Context, input string, cfg config.ExtractFramesConfig, dir string) error {
	args := []string{"-hide_banner", "-i", input}
	args = append(args, timeLimit(cfg.TimeLength)...)
	if cfg.FrameRate != "" {
		args = append(args, "-vf", "fps="+cfg.FrameRate)
	}
	if cfg.ImgFormat == "jpg" && cfg.Quality > 0 {
		args = append(args, "-qscale:v", strconv.Itoa(cfg.Quality))
	}
	args = append(args, "-y", filepath.Join(dir, FramePattern+"."+cfg.ImgFormat))

	t.logger.Info("extracting frames", "input", input, "dir", dir, "frameRate", cfg.FrameRate)
	_, err := t.runner.Run(ctx, args)
	return err
}

// RecordVideo copies the first TimeLength seconds of the source into OutputDir.
func (t *Tool) RecordVideo(ctx context.Context, input string, cfg config.RecordConfig) (models.RecordedVideo, error) {
	if err := workspace.Ensure(cfg.OutputDir); err != nil {
		return models.RecordedVideo{}, err
	}
	now := t.now()
	dst := filepath.Join(cfg.OutputDir, fmt.Sprintf("recorded_%d.mp4", now.UnixMilli()))

	args := []string{"-hide_banner", "-i", input}
	args = append(args, timeLimit(cfg.TimeLength)...)
	args = append(args, "-c", "copy", "-y", dst)
	if _, err := t.runner.Run(ctx, args); err != nil {
		return models.RecordedVideo{}, err
	}
	t.logger.Info("video recorded", "input", input, "file", dst)
	return models.RecordedVideo{Source: input, SavedVideo: dst, RecordedAt: now}, nil
}
