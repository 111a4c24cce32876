package storage

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/bdougie/videoprobe/internal/embeddings"
	"github.com/bdougie/videoprobe/internal/models"
)

//go:embed migrations/*.sql
var migrations embed.FS

// FrameMatch is a stored frame ranked by feature distance
type FrameMatch struct {
	ReportID   uuid.UUID
	Input      string
	FrameIndex int
	FramePath  string
	OCRNumber  *string
	Distance   float64
}

// PostgresStorage saves reports and frame feature vectors in PostgreSQL
type PostgresStorage struct {
	pool     *pgxpool.Pool
	features *embeddings.Service
	logger   *slog.Logger
}

// NewPostgresStorage connects to the database at dsn
func NewPostgresStorage(ctx context.Context, dsn string, features *embeddings.Service, logger *slog.Logger) (*PostgresStorage, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStorage{pool: pool, features: features, logger: logger}, nil
}

// Close closes the database connection
func (s *PostgresStorage) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Save stores the report and one feature vector per frame in one transaction.
// Frames carry their features from the run; frames without them are computed
// from their colours or files, and skipped with a warning when neither exists.
func (s *PostgresStorage) Save(ctx context.Context, r StoredReport) error {
	doc, err := json.Marshal(r.Report)
	if err != nil {
		return fmt.Errorf("failed to encode report %s: %w", r.ID, err)
	}

	var frames []models.FrameRecord
	if r.Report != nil {
		frames = r.Report.Frames
	}
	pending := make([]<-chan embeddings.Result, len(frames))
	for i, f := range frames {
		pending[i] = s.features.GetFeatures(ctx, f)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO reports (id, input, created_at, report) VALUES ($1, $2, $3, $4)`,
		r.ID, r.Input, r.CreatedAt, doc); err != nil {
		return fmt.Errorf("failed to store report: %w", err)
	}

	batch := &pgx.Batch{}
	skipped := 0
	for i, f := range frames {
		res := <-pending[i]
		if res.Error != nil {
			s.logger.Debug("frame without features", "frame", f.Frame, "error", res.Error)
			skipped++
			continue
		}
		batch.Queue(
			`INSERT INTO frames (report_id, frame_index, frame_path, ocr_number, features)
			VALUES ($1, $2, $3, $4, $5)`,
			r.ID, f.FrameIndex, f.Frame, f.OCRNumber, pgvector.NewVector(res.Features))
	}
	if skipped > 0 {
		s.logger.Warn("frames skipped without features", "id", r.ID, "skipped", skipped, "frames", len(frames))
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to store frames: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit report %s: %w", r.ID, err)
	}
	s.logger.Debug("report stored", "id", r.ID, "frames", batch.Len())
	return nil
}

// Flush implements the Storage interface - no-op for Postgres as we save immediately
func (s *PostgresStorage) Flush() error {
	return nil
}

// SearchSimilarFrames returns the stored frames closest to features.
// A non-nil exclude drops the frames of that report.
func (s *PostgresStorage) SearchSimilarFrames(ctx context.Context, features []float32, exclude *uuid.UUID, limit int) ([]FrameMatch, error) {
	if len(features) != embeddings.Dimensions {
		return nil, fmt.Errorf("expected %d features, got %d", embeddings.Dimensions, len(features))
	}

	rows, err := s.pool.Query(ctx,
		`SELECT f.report_id, r.input, f.frame_index, f.frame_path, f.ocr_number,
        f.features <-> $1 AS distance
        FROM frames f
        JOIN reports r ON f.report_id = r.id
        WHERE $2::uuid IS NULL OR f.report_id <> $2
        ORDER BY f.features <-> $1
        LIMIT $3`,
		pgvector.NewVector(features), exclude, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search similar frames: %w", err)
	}
	defer rows.Close()

	var results []FrameMatch
	for rows.Next() {
		var m FrameMatch
		if err := rows.Scan(&m.ReportID, &m.Input, &m.FrameIndex, &m.FramePath, &m.OCRNumber, &m.Distance); err != nil {
			return nil, fmt.Errorf("failed to scan search results: %w", err)
		}
		results = append(results, m)
	}
	return results, rows.Err()
}

// Migrate applies the embedded schema migrations to the database at dsn.
func Migrate(dsn string, logger *slog.Logger) error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, migrateURL(dsn))
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer m.Close()

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("read schema version: %w", err)
	}
	if dirty {
		return fmt.Errorf("database is dirty at version %d", version)
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("database schema up to date", "version", version)
			return nil
		}
		return fmt.Errorf("apply migrations: %w", err)
	}
	version, _, _ = m.Version()
	logger.Info("database schema migrated", "version", version)
	return nil
}

// migrateURL switches a postgres:// DSN to the pgx v5 migrate driver.
func migrateURL(dsn string) string {
	for _, prefix := range []string{"postgres://", "postgresql://"} {
		if strings.HasPrefix(dsn, prefix) {
			return "pgx5://" + strings.TrimPrefix(dsn, prefix)
		}
	}
	return dsn
}
