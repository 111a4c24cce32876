// Package embeddings turns frame records into fixed-size colour feature vectors.
package embeddings

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/bdougie/videoprobe/internal/imgproc"
	"github.com/bdougie/videoprobe/internal/models"
)

const (
	// Dimensions is the length of every feature vector.
	Dimensions = 9
	colours    = Dimensions / 3
)

// FrameFeatures returns the RGB of the most dominant colours scaled to
// [0,1], ordered by pixel count and zero padded.
func FrameFeatures(cs []models.Colour) []float32 {
	sorted := append([]models.Colour(nil), cs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Count > sorted[j].Count
	})

	v := make([]float32, Dimensions)
	for i, c := range sorted {
		if i == colours {
			break
		}
		v[3*i] = float32(c.R) / 255
		v[3*i+1] = float32(c.G) / 255
		v[3*i+2] = float32(c.B) / 255
	}
	return v
}

// Result is the outcome of computing one frame's features
type Result struct {
	Frame    string
	Features []float32
	Error    error
}

// Work is one queued frame
type Work struct {
	Record models.FrameRecord
	Result chan<- Result
}

// Service computes frame features on a pool of workers. Frames without
// dominant colours are read from disk, and the results are cached by path.
type Service struct {
	numWorkers int
	workQueue  chan Work
	cache      sync.Map
	wg         sync.WaitGroup

	dominant func(path string, k int) ([]models.Colour, error)
}

// NewService creates a service with the given number of workers
func NewService(numWorkers int) *Service {
	if numWorkers <= 0 {
		numWorkers = 4
	}

	s := &Service{
		numWorkers: numWorkers,
		workQueue:  make(chan Work, 100),
		dominant:   imgproc.DominantColours,
	}
	s.startWorkers()
	return s
}

func (s *Service) startWorkers() {
	for i := 0; i < s.numWorkers; i++ {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for work := range s.workQueue {
				work.Result <- s.compute(work.Record)
			}
		}()
	}
}

func (s *Service) compute(rec models.FrameRecord) Result {
	if len(rec.Features) == Dimensions {
		return Result{Frame: rec.Frame, Features: rec.Features}
	}
	if len(rec.DominantColours) > 0 {
		return Result{Frame: rec.Frame, Features: FrameFeatures(rec.DominantColours)}
	}
	if cached, ok := s.cache.Load(rec.Frame); ok {
		return Result{Frame: rec.Frame, Features: cached.([]float32)}
	}

	cs, err := s.dominant(rec.Frame, colours)
	if err != nil {
		return Result{Frame: rec.Frame, Error: fmt.Errorf("dominant colours of %s: %w", rec.Frame, err)}
	}
	features := FrameFeatures(cs)
	s.cache.Store(rec.Frame, features)
	return Result{Frame: rec.Frame, Features: features}
}

// GetFeatures queues a frame and returns a channel that receives its result.
// It blocks while the queue is full; a cancelled ctx ends the wait and is
// reported as the result's error.
func (s *Service) GetFeatures(ctx context.Context, rec models.FrameRecord) <-chan Result {
	resultChan := make(chan Result, 1)

	select {
	case s.workQueue <- Work{Record: rec, Result: resultChan}:
	case <-ctx.Done():
		resultChan <- Result{Frame: rec.Frame, Error: ctx.Err()}
	}
	return resultChan
}

// Annotate sets Features on every frame whose features can be computed.
// It must run while the frame files still exist. Per-frame failures are
// joined into the returned error and leave that frame's Features nil.
func (s *Service) Annotate(ctx context.Context, frames []models.FrameRecord) error {
	pending := make([]<-chan Result, len(frames))
	for i := range frames {
		pending[i] = s.GetFeatures(ctx, frames[i])
	}
	var errs []error
	for i, ch := range pending {
		res := <-ch
		if res.Error != nil {
			errs = append(errs, res.Error)
			continue
		}
		frames[i].Features = res.Features
	}
	return errors.Join(errs...)
}

// Close stops the workers after the queued work is done.
func (s *Service) Close() {
	close(s.workQueue)
	s.wg.Wait()
}
