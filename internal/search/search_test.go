package search

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thomasruntaochen-ops/art-activity-collection/internal/domain"
)

func setupTestIndex(t *testing.T) *Index {
	t.Helper()

	index, err := Open(Options{
		Path: filepath.Join(t.TempDir(), "suggest.bleve"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	return index
}

func seedDocuments(t *testing.T, index *Index) {
	t.Helper()

	start := time.Date(2026, 10, 3, 18, 0, 0, 0, time.UTC).UnixMilli()
	docs := []*Document{
		{ID: "act_1", Title: "Teen Open Studio", VenueName: "Whitney Museum of American Art", City: "New York", State: "NY", ActivityType: "open_studio", StartAt: start},
		{ID: "act_2", Title: "Teen Print Night", VenueName: "The Metropolitan Museum of Art", City: "New York", State: "NY", ActivityType: "workshop", StartAt: start},
		{ID: "act_3", Title: "Family Collage Lab", VenueName: "Museum of Fine Arts, Boston", City: "Boston", State: "MA", ActivityType: "workshop", Tags: []string{"drop-in"}, StartAt: start},
	}
	require.NoError(t, index.IndexDocuments(docs))
}

func TestOpenCreatesEmptyIndex(t *testing.T) {
	index := setupTestIndex(t)

	count, err := index.DocCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)
}

func TestOpenReusesExistingIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "suggest.bleve")

	index, err := Open(Options{Path: path})
	require.NoError(t, err)
	require.NoError(t, index.IndexDocument(&Document{ID: "act_1", Title: "Teen Open Studio"}))
	require.NoError(t, index.Close())

	reopened, err := Open(Options{Path: path})
	require.NoError(t, err)
	defer reopened.Close()

	count, err := reopened.DocCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

func TestIndexDocumentReplacesByID(t *testing.T) {
	index := setupTestIndex(t)

	require.NoError(t, index.IndexDocument(&Document{ID: "act_1", Title: "Teen Open Studio"}))
	require.NoError(t, index.IndexDocument(&Document{ID: "act_1", Title: "Teen Open Studio (Rescheduled)"}))

	count, err := index.DocCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

func TestDeleteDocument(t *testing.T) {
	index := setupTestIndex(t)
	seedDocuments(t, index)

	require.NoError(t, index.DeleteDocument("act_1"))

	count, err := index.DocCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)
}

func TestSuggestByTitlePrefix(t *testing.T) {
	index := setupTestIndex(t)
	seedDocuments(t, index)

	suggestions, err := index.Suggest(context.Background(), "teen", 10)
	require.NoError(t, err)

	values := make([]string, 0, len(suggestions))
	for _, s := range suggestions {
		if s.Field == "title" {
			values = append(values, s.Value)
			assert.NotEmpty(t, s.ActivityID)
		}
	}
	assert.ElementsMatch(t, []string{"Teen Open Studio", "Teen Print Night"}, values)
}

func TestSuggestByVenuePrefix(t *testing.T) {
	index := setupTestIndex(t)
	seedDocuments(t, index)

	suggestions, err := index.Suggest(context.Background(), "whit", 10)
	require.NoError(t, err)

	require.NotEmpty(t, suggestions)
	assert.Equal(t, "venue_name", suggestions[0].Field)
	assert.Equal(t, "Whitney Museum of American Art", suggestions[0].Value)
	assert.Empty(t, suggestions[0].ActivityID)
}

func TestSuggestByCityPrefix(t *testing.T) {
	index := setupTestIndex(t)
	seedDocuments(t, index)

	suggestions, err := index.Suggest(context.Background(), "bos", 10)
	require.NoError(t, err)

	found := false
	for _, s := range suggestions {
		if s.Field == "city" && s.Value == "Boston" {
			found = true
		}
	}
	assert.True(t, found, "expected a Boston city suggestion, got %v", suggestions)
}

func TestSuggestDeduplicatesValues(t *testing.T) {
	index := setupTestIndex(t)
	seedDocuments(t, index)

	// Both New York activities share the city; it must appear once.
	suggestions, err := index.Suggest(context.Background(), "new", 10)
	require.NoError(t, err)

	cityCount := 0
	for _, s := range suggestions {
		if s.Field == "city" && s.Value == "New York" {
			cityCount++
		}
	}
	assert.Equal(t, 1, cityCount)
}

func TestSuggestHonorsLimit(t *testing.T) {
	index := setupTestIndex(t)
	seedDocuments(t, index)

	suggestions, err := index.Suggest(context.Background(), "teen", 1)
	require.NoError(t, err)
	assert.Len(t, suggestions, 1)
}

func TestSuggestEmptyQuery(t *testing.T) {
	index := setupTestIndex(t)
	seedDocuments(t, index)

	suggestions, err := index.Suggest(context.Background(), "   ", 10)
	require.NoError(t, err)
	assert.Empty(t, suggestions)
}

func TestFromActivity(t *testing.T) {
	start := time.Date(2026, 10, 3, 18, 0, 0, 0, time.UTC)
	a := &domain.Activity{
		ID:           "act_9",
		Title:        "Teen Open Studio",
		ActivityType: "open_studio",
		StartAt:      start,
	}

	doc := FromActivity(a, "Whitney Museum of American Art", "New York", "NY", []string{"drop-in"})
	assert.Equal(t, "act_9", doc.ID)
	assert.Equal(t, "Teen Open Studio", doc.Title)
	assert.Equal(t, start.UnixMilli(), doc.StartAt)

	m := doc.ToMap()
	assert.Equal(t, "Whitney Museum of American Art", m["venue_name"])
	assert.Equal(t, []string{"drop-in"}, m["tags"])
}

func TestRebuild(t *testing.T) {
	index := setupTestIndex(t)
	seedDocuments(t, index)

	require.NoError(t, index.Rebuild())

	count, err := index.DocCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)
}
