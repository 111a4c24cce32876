package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bdougie/videoprobe/internal/models"
)

func TestFileStorageBatchesUntilFlush(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	s := NewFileStorage(dir)
	ctx := context.Background()

	v := 1.5
	r := NewStoredReport("in.mp4", &models.Report{VmafMotionAvg: &v})
	require.NoError(t, s.Save(ctx, r))
	assert.NoFileExists(t, s.Path(r.ID))

	require.NoError(t, s.Flush())
	require.FileExists(t, s.Path(r.ID))

	loaded, err := s.Load(r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.ID, loaded.ID)
	assert.Equal(t, "in.mp4", loaded.Input)
	assert.Equal(t, []string{"vmafMotionAvg"}, loaded.Report.Keys())

	// nothing pending is a no-op
	require.NoError(t, s.Flush())
}

func TestFileStorageFlushesFullBatch(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStorage(dir)

	var last StoredReport
	for i := 0; i < batchSize; i++ {
		last = NewStoredReport("in.mp4", &models.Report{})
		require.NoError(t, s.Save(context.Background(), last))
	}
	assert.FileExists(t, s.Path(last.ID))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, batchSize)
}

func TestMigrateURL(t *testing.T) {
	assert.Equal(t, "pgx5://u:p@db:5432/probe?sslmode=disable", migrateURL("postgres://u:p@db:5432/probe?sslmode=disable"))
	assert.Equal(t, "pgx5://db/probe", migrateURL("postgresql://db/probe"))
	assert.Equal(t, "pgx5://db/probe", migrateURL("pgx5://db/probe"))
}

func TestMigrationsAreEmbedded(t *testing.T) {
	entries, err := migrations.ReadDir("migrations")
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Contains(t, names, "000001_create_reports.up.sql")
	assert.Contains(t, names, "000001_create_reports.down.sql")
}
