// Package workspace manages the ephemeral directories a request stages
// frames and derived images in. Every operation is idempotent.
package workspace

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/bdougie/videoprobe/internal/errdefs"
)

// Purpose names what a workspace is used for
type Purpose string

const (
	FrameExtraction Purpose = "frame-extraction"
	OCRStaging      Purpose = "ocr-staging"
	RequestRoot     Purpose = "request-root"
)

// Ensure creates the directory if it does not exist. Existing contents are kept.
func Ensure(path string) error {
	if err := os.MkdirAll(path, 0755); err != nil {
		return &errdefs.WorkspaceError{Op: "ensure", Path: path, Err: err}
	}
	return nil
}

// Drain removes every entry inside the directory but keeps the directory.
// A missing directory is not an error.
func Drain(path string) error {
	entries, err := os.ReadDir(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return &errdefs.WorkspaceError{Op: "drain", Path: path, Err: err}
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(path, e.Name())); err != nil {
			return &errdefs.WorkspaceError{Op: "drain", Path: path, Err: err}
		}
	}
	return nil
}

// Remove deletes the directory and its contents. A missing directory is not an error.
func Remove(path string) error {
	if err := os.RemoveAll(path); err != nil {
		return &errdefs.WorkspaceError{Op: "remove", Path: path, Err: err}
	}
	return nil
}

// Scope tracks the workspaces acquired during one request so they can be
// released together, whatever the outcome of the request.
type Scope struct {
	keep   bool
	logger *slog.Logger

	mu       sync.Mutex
	acquired map[string]Purpose
	order    []string
}

// NewScope creates a scope. When keep is set, Release leaves directories in place.
func NewScope(keep bool, logger *slog.Logger) *Scope {
	return &Scope{
		keep:     keep,
		logger:   logger,
		acquired: make(map[string]Purpose),
	}
}

// Acquire ensures the directory exists and is empty, and records it for release.
func (s *Scope) Acquire(path string, purpose Purpose) error {
	s.mu.Lock()
	if _, ok := s.acquired[path]; !ok {
		s.acquired[path] = purpose
		s.order = append(s.order, path)
	}
	s.mu.Unlock()

	if err := Ensure(path); err != nil {
		return err
	}
	if err := Drain(path); err != nil {
		return err
	}
	s.logger.Debug("workspace acquired", "path", path, "purpose", purpose)
	return nil
}

// Track records a directory for release without touching it.
func (s *Scope) Track(path string, purpose Purpose) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.acquired[path]; !ok {
		s.acquired[path] = purpose
		s.order = append(s.order, path)
	}
}

// Paths returns the recorded directories in acquisition order.
func (s *Scope) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...)
}

// Release removes every recorded directory and returns the joined errors.
// It is safe to call more than once.
func (s *Scope) Release() error {
	s.mu.Lock()
	paths := s.order
	s.order = nil
	s.acquired = make(map[string]Purpose)
	s.mu.Unlock()

	if s.keep {
		for _, p := range paths {
			s.logger.Info("keeping workspace", "path", p)
		}
		return nil
	}

	var errs []error
	for i := len(paths) - 1; i >= 0; i-- {
		if err := Remove(paths[i]); err != nil {
			errs = append(errs, err)
			continue
		}
		s.logger.Debug("workspace removed", "path", paths[i])
	}
	return errors.Join(errs...)
}
