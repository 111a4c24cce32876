// Package extractor splits a source into frames and analyzes every frame.
package extractor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/sourcegraph/conc/pool"

	"github.com/bdougie/videoprobe/internal/config"
	"github.com/bdougie/videoprobe/internal/errdefs"
	"github.com/bdougie/videoprobe/internal/metrics"
	"github.com/bdougie/videoprobe/internal/models"
	"github.com/bdougie/videoprobe/internal/workspace"
)

var frameIndexPattern = regexp.MustCompile(`(\d+)\.(\w+)$`)

// FrameSplitter writes numbered frames of a source into a directory
type FrameSplitter interface {
	SplitFrames(ctx context.Context, input string, cfg config.ExtractFramesConfig, dir string) error
}

// FrameAnalyzer produces the record of a single frame
type FrameAnalyzer interface {
	AnalyzeFrame(ctx context.Context, framePath string, index int, opts *models.FrameOptions, cfg config.Config) (models.FrameRecord, error)
}

// Pipeline extracts frames and fans them out to a FrameAnalyzer
type Pipeline struct {
	splitter FrameSplitter
	analyzer FrameAnalyzer
	logger   *slog.Logger
}

// NewPipeline creates a Pipeline.
func NewPipeline(splitter FrameSplitter, analyzer FrameAnalyzer, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		splitter: splitter,
		analyzer: analyzer,
		logger:   logger,
	}
}

// ExtractFrames stages frames in the frame workspace, analyzes them with at
// most cfg.ExtractFrames.Parallelism frames in flight and returns the records
// in ascending frame index order. Workspaces are acquired through scope, which
// the caller releases.
func (p *Pipeline) ExtractFrames(ctx context.Context, input string, opts *models.FrameOptions, cfg config.Config, scope *workspace.Scope) ([]models.FrameRecord, error) {
	frameDir := cfg.ExtractFrames.Workspace

	// Drain rather than recreate so the directory itself never disappears
	if err := scope.Acquire(frameDir, workspace.FrameExtraction); err != nil {
		return nil, err
	}

	if err := p.splitter.SplitFrames(ctx, input, cfg.ExtractFrames, frameDir); err != nil {
		return nil, err
	}

	frames, err := ListFrames(frameDir, cfg.ExtractFrames.ImgFormat)
	if err != nil {
		return nil, err
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("no frames found in directory '%s'", frameDir)
	}
	p.logger.Info("frames extracted", "count", len(frames), "dir", frameDir)

	if opts.NeedsOCR() {
		if err := scope.Acquire(cfg.ImgCropper.Workspace, workspace.OCRStaging); err != nil {
			return nil, err
		}
	}

	return p.analyzeFrames(ctx, frames, opts, cfg)
}

func (p *Pipeline) analyzeFrames(ctx context.Context, frames []models.WorkItem, opts *models.FrameOptions, cfg config.Config) ([]models.FrameRecord, error) {
	records := make([]models.FrameRecord, len(frames))

	remainingFrames := atomic.Int64{}
	remainingFrames.Store(int64(len(frames)))

	workers := pool.New().
		WithErrors().
		WithFirstError().
		WithMaxGoroutines(max(cfg.ExtractFrames.Parallelism, 1))

	for i, work := range frames {
		workers.Go(func() error {
			rec, err := p.analyzer.AnalyzeFrame(ctx, work.FramePath, work.FrameNum, opts, cfg)
			if err != nil {
				return err
			}
			records[i] = rec
			metrics.FramesAnalyzedTotal.Inc()

			remaining := remainingFrames.Add(-1)
			p.logger.Debug("frame done", "frame", work.FrameNum, "remaining", remaining, "total", work.Total)
			return nil
		})
	}

	if err := workers.Wait(); err != nil {
		return nil, err
	}
	return records, nil
}

// ListFrames returns the frame files in dir with extension ext, ordered by the
// numeric index in their names. Directory listings are not guaranteed to be
// numerically ordered.
func ListFrames(dir, ext string) ([]models.WorkItem, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &errdefs.WorkspaceError{Op: "list", Path: dir, Err: err}
	}

	var frames []models.WorkItem
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		m := frameIndexPattern.FindStringSubmatch(e.Name())
		if m == nil || !strings.EqualFold(m[2], ext) {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		frames = append(frames, models.WorkItem{
			FramePath: filepath.Join(dir, e.Name()),
			FrameNum:  n,
		})
	}

	sort.SliceStable(frames, func(i, j int) bool {
		if frames[i].FrameNum != frames[j].FrameNum {
			return frames[i].FrameNum < frames[j].FrameNum
		}
		return strings.Compare(frames[i].FramePath, frames[j].FramePath) < 0
	})
	for i := range frames {
		frames[i].Total = len(frames)
	}
	return frames, nil
}
