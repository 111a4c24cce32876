package embeddings

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bdougie/videoprobe/internal/models"
)

func TestFrameFeatures(t *testing.T) {
	v := FrameFeatures([]models.Colour{
		{Hex: "000000", Count: 10},
		{Hex: "FF0000", R: 255, Count: 50},
		{Hex: "00FF00", G: 255, Count: 30},
		{Hex: "0000FF", B: 255, Count: 5},
	})
	require.Len(t, v, Dimensions)
	assert.Equal(t, []float32{1, 0, 0, 0, 1, 0, 0, 0, 0}, v)

	assert.Equal(t, make([]float32, Dimensions), FrameFeatures(nil))
}

func TestServiceUsesRecordColours(t *testing.T) {
	s := NewService(2)
	defer s.Close()
	s.dominant = func(string, int) ([]models.Colour, error) {
		t.Error("should not read the frame")
		return nil, nil
	}

	res := <-s.GetFeatures(context.Background(), models.FrameRecord{
		Frame:           "frame_0001.jpg",
		DominantColours: []models.Colour{{R: 51, G: 102, B: 255, Count: 1}},
	})
	require.NoError(t, res.Error)
	assert.InDelta(t, 0.2, res.Features[0], 1e-6)
	assert.InDelta(t, 0.4, res.Features[1], 1e-6)
	assert.InDelta(t, 1.0, res.Features[2], 1e-6)
}

func TestServiceCachesComputedFeatures(t *testing.T) {
	var calls atomic.Int32
	s := &Service{numWorkers: 1, workQueue: make(chan Work, 4)}
	s.dominant = func(path string, k int) ([]models.Colour, error) {
		calls.Add(1)
		assert.Equal(t, 3, k)
		if path == "broken.jpg" {
			return nil, errors.New("decode failed")
		}
		return []models.Colour{{R: 255, Count: 1}}, nil
	}
	s.startWorkers()
	defer s.Close()

	for range 3 {
		res := <-s.GetFeatures(context.Background(), models.FrameRecord{Frame: "frame_0002.jpg"})
		require.NoError(t, res.Error)
		assert.Equal(t, float32(1), res.Features[0])
	}
	assert.Equal(t, int32(1), calls.Load())

	res := <-s.GetFeatures(context.Background(), models.FrameRecord{Frame: "broken.jpg"})
	assert.ErrorContains(t, res.Error, "decode failed")
}

func TestServiceAppliesBackPressure(t *testing.T) {
	s := &Service{numWorkers: 2, workQueue: make(chan Work, 1)}
	s.dominant = func(string, int) ([]models.Colour, error) {
		return []models.Colour{{G: 255, Count: 1}}, nil
	}
	s.startWorkers()
	defer s.Close()

	frames := make([]models.FrameRecord, 300)
	for i := range frames {
		frames[i] = models.FrameRecord{FrameIndex: i + 1, Frame: fmt.Sprintf("frame_%04d.jpg", i+1)}
	}
	require.NoError(t, s.Annotate(context.Background(), frames))
	for _, f := range frames {
		require.Len(t, f.Features, Dimensions, f.Frame)
		assert.Equal(t, float32(1), f.Features[1])
	}
}

func TestServiceReusesAnnotatedFeatures(t *testing.T) {
	s := NewService(1)
	defer s.Close()
	s.dominant = func(path string, _ int) ([]models.Colour, error) {
		return nil, fmt.Errorf("open %s: no such file or directory", path)
	}

	want := []float32{0, 0, 1, 0, 0, 0, 0, 0, 0}
	res := <-s.GetFeatures(context.Background(), models.FrameRecord{Frame: "gone.jpg", Features: want})
	require.NoError(t, res.Error)
	assert.Equal(t, want, res.Features)

	frames := []models.FrameRecord{{Frame: "gone.jpg"}, {Frame: "kept.jpg", DominantColours: []models.Colour{{R: 255, Count: 1}}}}
	err := s.Annotate(context.Background(), frames)
	assert.ErrorContains(t, err, "gone.jpg")
	assert.Nil(t, frames[0].Features)
	assert.Equal(t, float32(1), frames[1].Features[0])
}

func TestGetFeaturesHonoursContext(t *testing.T) {
	s := &Service{workQueue: make(chan Work)}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := <-s.GetFeatures(ctx, models.FrameRecord{Frame: "frame_0001.jpg"})
	assert.ErrorIs(t, res.Error, context.Canceled)
}
