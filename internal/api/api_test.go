package api

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/require"

	"github.com/thomasruntaochen-ops/art-activity-collection/internal/domain"
	"github.com/thomasruntaochen-ops/art-activity-collection/internal/logger"
	"github.com/thomasruntaochen-ops/art-activity-collection/internal/search"
	"github.com/thomasruntaochen-ops/art-activity-collection/internal/store/sqlite"
)

// testEnv wires a server against a throwaway database and suggest index.
type testEnv struct {
	api    humatest.TestAPI
	store  *sqlite.Store
	index  *search.Index
	server *Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()

	st, err := sqlite.Open(filepath.Join(dir, "catalog.db"), logger.Noop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	index, err := search.Open(search.Options{
		Path:   filepath.Join(dir, "suggest.bleve"),
		Logger: logger.Noop(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	srv := NewServer(st, index, logger.Noop())
	return &testEnv{
		api:    humatest.Wrap(t, srv.api),
		store:  st,
		index:  index,
		server: srv,
	}
}

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }

// seedCatalog loads one source, one venue, and two activities, and mirrors
// them into the suggest index the way the ingest command does.
func seedCatalog(t *testing.T, env *testEnv) (source *domain.Source, teen, kids *domain.Activity) {
	t.Helper()
	ctx := context.Background()

	source, _, err := env.store.GetOrCreateSourceByName(ctx,
		"whitney_teens", "https://whitney.org/education/teens", "whitney_teens")
	require.NoError(t, err)

	venue, _, err := env.store.FindOrCreateVenue(ctx, &domain.Venue{
		Name:    "Whitney Museum",
		City:    "New York",
		State:   "NY",
		Website: "https://whitney.org",
	})
	require.NoError(t, err)

	now := time.Now().UTC().Truncate(time.Second)
	teen = &domain.Activity{
		SourceID:         source.ID,
		SourceURL:        "https://whitney.org/events/open-studio",
		Title:            "Teen Open Studio",
		Description:      "Drop-in studio time with teaching artists.",
		ActivityType:     "open_studio",
		AgeMin:           intPtr(13),
		AgeMax:           intPtr(19),
		IsFree:           true,
		FreeStatus:       domain.FreeConfirmed,
		DropIn:           boolPtr(true),
		StartAt:          time.Date(2026, 10, 3, 18, 0, 0, 0, time.UTC),
		Timezone:         "America/New_York",
		VenueID:          venue.ID,
		ExtractionMethod: domain.ExtractionHardcoded,
		Status:           domain.StatusActive,
		ConfidenceScore:  0.9,
		FirstSeenAt:      now,
		LastSeenAt:       now,
		UpdatedAt:        now,
	}
	require.NoError(t, env.store.CreateActivity(ctx, teen))
	require.NoError(t, env.store.ReplaceActivityTags(ctx, teen.ID, []string{"drop-in", "teens"}))

	kids = &domain.Activity{
		SourceID:         source.ID,
		SourceURL:        "https://whitney.org/events/family-day",
		Title:            "Family Art Day",
		ActivityType:     "workshop",
		AgeMin:           intPtr(5),
		AgeMax:           intPtr(12),
		IsFree:           true,
		FreeStatus:       domain.FreeConfirmed,
		DropIn:           boolPtr(false),
		StartAt:          time.Date(2026, 10, 10, 15, 0, 0, 0, time.UTC),
		Timezone:         "America/New_York",
		VenueID:          venue.ID,
		ExtractionMethod: domain.ExtractionHardcoded,
		Status:           domain.StatusNeedsReview,
		ConfidenceScore:  0.6,
		FirstSeenAt:      now,
		LastSeenAt:       now,
		UpdatedAt:        now,
	}
	require.NoError(t, env.store.CreateActivity(ctx, kids))

	for _, a := range []*domain.Activity{teen, kids} {
		tags, err := env.store.GetActivityTags(ctx, a.ID)
		require.NoError(t, err)
		doc := search.FromActivity(a, venue.Name, venue.City, venue.State, tags)
		require.NoError(t, env.index.IndexDocument(doc))
	}

	return source, teen, kids
}
