// Package storage persists analysis reports.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bdougie/videoprobe/internal/models"
)

const batchSize = 10 // Number of reports to batch write

// StoredReport is a report together with the request it answered
type StoredReport struct {
	ID        uuid.UUID      `json:"id"`
	Input     string         `json:"input"`
	CreatedAt time.Time      `json:"createdAt"`
	Report    *models.Report `json:"report"`
}

// NewStoredReport assigns a fresh ID to a report.
func NewStoredReport(input string, report *models.Report) StoredReport {
	return StoredReport{
		ID:        uuid.New(),
		Input:     input,
		CreatedAt: time.Now().UTC(),
		Report:    report,
	}
}

// Storage defines the interface for storing reports
type Storage interface {
	// Save adds a single report
	Save(ctx context.Context, report StoredReport) error

	// Flush ensures all pending reports are saved
	Flush() error
}

// FileStorage writes each report to <dir>/<id>.json in batches
type FileStorage struct {
	pending   []StoredReport
	mu        sync.Mutex
	outputDir string
}

// NewFileStorage creates a file storage rooted at outputDir
func NewFileStorage(outputDir string) *FileStorage {
	return &FileStorage{outputDir: outputDir}
}

// Save adds a report to the batch and flushes if the batch is full
func (s *FileStorage) Save(ctx context.Context, report StoredReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, report)

	if len(s.pending) >= batchSize {
		return s.flush()
	}
	return nil
}

// Flush writes all pending reports to disk
func (s *FileStorage) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flush()
}

// Path returns the file a report is written to.
func (s *FileStorage) Path(id uuid.UUID) string {
	return filepath.Join(s.outputDir, id.String()+".json")
}

func (s *FileStorage) flush() error {
	if len(s.pending) == 0 {
		return nil
	}
	if err := os.MkdirAll(s.outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create directory for reports: %w", err)
	}

	for i, r := range s.pending {
		data, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			s.pending = s.pending[i:]
			return fmt.Errorf("failed to encode report %s: %w", r.ID, err)
		}
		// Write then rename so readers never see a partial report
		tmp := s.Path(r.ID) + ".tmp"
		if err := os.WriteFile(tmp, data, 0644); err != nil {
			s.pending = s.pending[i:]
			return fmt.Errorf("failed to write report %s: %w", r.ID, err)
		}
		if err := os.Rename(tmp, s.Path(r.ID)); err != nil {
			s.pending = s.pending[i:]
			return fmt.Errorf("failed to write report %s: %w", r.ID, err)
		}
	}

	s.pending = nil
	return nil
}

// Load reads a stored report back from disk.
func (s *FileStorage) Load(id uuid.UUID) (StoredReport, error) {
	var r StoredReport
	data, err := os.ReadFile(s.Path(id))
	if err != nil {
		return r, fmt.Errorf("failed to read report %s: %w", id, err)
	}
	if err := json.Unmarshal(data, &r); err != nil {
		return r, fmt.Errorf("failed to decode report %s: %w", id, err)
	}
	return r, nil
}
