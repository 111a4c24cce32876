package extractor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bdougie/videoprobe/internal/config"
	"github.com/bdougie/videoprobe/internal/models"
	"github.com/bdougie/videoprobe/internal/workspace"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// shuffledSplitter writes frames 1..n without zero padding and in an order
// that differs from both numeric and lexical order.
type shuffledSplitter struct {
	n   int
	err error
}

func (s *shuffledSplitter) SplitFrames(_ context.Context, _ string, cfg config.ExtractFramesConfig, dir string) error {
	if s.err != nil {
		return s.err
	}
	order := make([]int, 0, s.n)
	for i := s.n; i >= 1; i -= 2 {
		order = append(order, i)
	}
	for i := s.n - 1; i >= 1; i -= 2 {
		order = append(order, i)
	}
	for _, i := range order {
		name := filepath.Join(dir, fmt.Sprintf("frame_%d.%s", i, cfg.ImgFormat))
		if err := os.WriteFile(name, []byte("img"), 0644); err != nil {
			return err
		}
	}
	return nil
}

type recordingAnalyzer struct {
	delay    time.Duration
	failOn   int
	inFlight atomic.Int32
	peak     atomic.Int32

	mu   sync.Mutex
	seen []int
}

func (a *recordingAnalyzer) AnalyzeFrame(_ context.Context, framePath string, index int, _ *models.FrameOptions, _ config.Config) (models.FrameRecord, error) {
	n := a.inFlight.Add(1)
	defer a.inFlight.Add(-1)
	for {
		p := a.peak.Load()
		if n <= p || a.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(a.delay)

	a.mu.Lock()
	a.seen = append(a.seen, index)
	a.mu.Unlock()

	if a.failOn != 0 && index == a.failOn {
		return models.FrameRecord{}, errors.New("frame analysis failed")
	}
	return models.FrameRecord{FrameIndex: index, Frame: framePath}, nil
}

func testConfig(t *testing.T) config.Config {
	root := t.TempDir()
	cfg := config.Defaults()
	cfg.ExtractFrames.Workspace = filepath.Join(root, "frames")
	cfg.ExtractFrames.Parallelism = 3
	cfg.ImgCropper.Workspace = filepath.Join(root, "ocr")
	return cfg
}

func TestExtractFramesOrdersByIndex(t *testing.T) {
	cfg := testConfig(t)
	analyzer := &recordingAnalyzer{delay: time.Millisecond}
	p := NewPipeline(&shuffledSplitter{n: 12}, analyzer, testLogger())
	scope := workspace.NewScope(false, testLogger())

	records, err := p.ExtractFrames(context.Background(), "in.mp4", &models.FrameOptions{}, cfg, scope)
	require.NoError(t, err)
	require.Len(t, records, 12)
	for i, rec := range records {
		assert.Equal(t, i+1, rec.FrameIndex)
		assert.Equal(t, filepath.Join(cfg.ExtractFrames.Workspace, fmt.Sprintf("frame_%d.jpg", i+1)), rec.Frame)
	}
	assert.Equal(t, []string{cfg.ExtractFrames.Workspace}, scope.Paths())
}

func TestExtractFramesBoundsParallelism(t *testing.T) {
	cfg := testConfig(t)
	analyzer := &recordingAnalyzer{delay: 20 * time.Millisecond}
	p := NewPipeline(&shuffledSplitter{n: 12}, analyzer, testLogger())

	_, err := p.ExtractFrames(context.Background(), "in.mp4", &models.FrameOptions{}, cfg, workspace.NewScope(false, testLogger()))
	require.NoError(t, err)
	assert.LessOrEqual(t, analyzer.peak.Load(), int32(3))
	assert.Len(t, analyzer.seen, 12)
}

func TestExtractFramesDrainsStaleFrames(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.MkdirAll(cfg.ExtractFrames.Workspace, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.ExtractFrames.Workspace, "frame_99.jpg"), []byte("old"), 0644))

	p := NewPipeline(&shuffledSplitter{n: 2}, &recordingAnalyzer{}, testLogger())
	records, err := p.ExtractFrames(context.Background(), "in.mp4", &models.FrameOptions{}, cfg, workspace.NewScope(false, testLogger()))
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestExtractFramesAcquiresOCRWorkspace(t *testing.T) {
	cfg := testConfig(t)
	p := NewPipeline(&shuffledSplitter{n: 1}, &recordingAnalyzer{}, testLogger())
	scope := workspace.NewScope(false, testLogger())

	_, err := p.ExtractFrames(context.Background(), "in.mp4", &models.FrameOptions{ImgNumberOCR: true}, cfg, scope)
	require.NoError(t, err)
	assert.DirExists(t, cfg.ImgCropper.Workspace)
	assert.Equal(t, []string{cfg.ExtractFrames.Workspace, cfg.ImgCropper.Workspace}, scope.Paths())

	require.NoError(t, scope.Release())
	assert.NoDirExists(t, cfg.ExtractFrames.Workspace)
	assert.NoDirExists(t, cfg.ImgCropper.Workspace)
}

func TestExtractFramesFailures(t *testing.T) {
	cfg := testConfig(t)
	splitErr := errors.New("ffmpeg exploded")
	p := NewPipeline(&shuffledSplitter{err: splitErr}, &recordingAnalyzer{}, testLogger())
	_, err := p.ExtractFrames(context.Background(), "in.mp4", &models.FrameOptions{}, cfg, workspace.NewScope(false, testLogger()))
	assert.ErrorIs(t, err, splitErr)

	p = NewPipeline(&shuffledSplitter{n: 0}, &recordingAnalyzer{}, testLogger())
	_, err = p.ExtractFrames(context.Background(), "in.mp4", &models.FrameOptions{}, cfg, workspace.NewScope(false, testLogger()))
	assert.ErrorContains(t, err, "no frames found")

	// a failing frame fails the batch but the others still run
	analyzer := &recordingAnalyzer{failOn: 4}
	p = NewPipeline(&shuffledSplitter{n: 6}, analyzer, testLogger())
	_, err = p.ExtractFrames(context.Background(), "in.mp4", &models.FrameOptions{}, cfg, workspace.NewScope(false, testLogger()))
	assert.ErrorContains(t, err, "frame analysis failed")
	assert.Len(t, analyzer.seen, 6)
}

func TestListFrames(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"frame_10.jpg", "frame_2.jpg", "frame_0001.jpg", "notes.txt", "frame_3.JPG", "frame_4.png"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "frame_5.jpg"), 0755))

	frames, err := ListFrames(dir, "jpg")
	require.NoError(t, err)
	var idx []int
	for _, f := range frames {
		idx = append(idx, f.FrameNum)
		assert.Equal(t, 4, f.Total)
	}
	assert.Equal(t, []int{1, 2, 3, 10}, idx)

	frames, err = ListFrames(dir, "png")
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, 4, frames[0].FrameNum)

	_, err = ListFrames(filepath.Join(dir, "missing"), "jpg")
	assert.Error(t, err)
}
