package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thomasruntaochen-ops/art-activity-collection/internal/domain"
	"github.com/thomasruntaochen-ops/art-activity-collection/internal/logger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	s, err := Open(dbPath, logger.Noop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// seedSource inserts a source row to satisfy foreign keys.
func seedSource(t *testing.T, s *Store, name string) *domain.Source {
	t.Helper()
	src, created, err := s.GetOrCreateSourceByName(context.Background(), name, "https://example.org", name)
	require.NoError(t, err)
	require.True(t, created)
	return src
}

func TestOpen(t *testing.T) {
	s := newTestStore(t)

	var journalMode string
	require.NoError(t, s.db.QueryRow("PRAGMA journal_mode").Scan(&journalMode))
	assert.Equal(t, "wal", journalMode)

	var fk int
	require.NoError(t, s.db.QueryRow("PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)

	tables := []string{"sources", "venues", "activities", "activity_tags", "ingestion_runs"}
	for _, table := range tables {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		assert.NoError(t, err, "table %s not found", table)
	}
}

func TestOpenClose(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")

	s, err := Open(dbPath, logger.Noop())
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// Re-open works because the schema is idempotent.
	s2, err := Open(dbPath, logger.Noop())
	require.NoError(t, err)
	require.NoError(t, s2.Close())
}

func TestPing(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.Ping(context.Background()))
}

func TestTimeRoundTrip(t *testing.T) {
	in := time.Date(2026, 3, 7, 18, 0, 0, 0, time.FixedZone("EST", -5*3600))
	out, err := parseTime(formatTime(in))
	require.NoError(t, err)
	assert.True(t, in.Equal(out))
	assert.Equal(t, time.UTC, out.Location())
}
