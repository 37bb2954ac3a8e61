package search

import (
	"context"
	"fmt"

	"github.com/thomasruntaochen-ops/art-activity-collection/internal/domain"
	"github.com/thomasruntaochen-ops/art-activity-collection/internal/store"
)

// Reindex wipes the suggest index and rebuilds it from the catalog's
// serving activities. Returns the number of documents indexed.
func Reindex(ctx context.Context, st store.Store, index *Index) (int, error) {
	if err := index.Rebuild(); err != nil {
		return 0, fmt.Errorf("rebuild index: %w", err)
	}

	activities, err := st.ListActivities(ctx, store.ActivityFilters{
		Statuses: []domain.ActivityStatus{domain.StatusActive, domain.StatusNeedsReview},
	})
	if err != nil {
		return 0, fmt.Errorf("list activities: %w", err)
	}

	venues := make(map[string]*domain.Venue)
	docs := make([]*Document, 0, len(activities))
	for _, a := range activities {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		var venueName, city, state string
		if a.VenueID != "" {
			venue, ok := venues[a.VenueID]
			if !ok {
				venue, err = st.GetVenue(ctx, a.VenueID)
				if err != nil {
					venue = nil
				}
				venues[a.VenueID] = venue
			}
			if venue != nil {
				venueName, city, state = venue.Name, venue.City, venue.State
			}
		}

		tags, err := st.GetActivityTags(ctx, a.ID)
		if err != nil {
			tags = nil
		}

		docs = append(docs, FromActivity(a, venueName, city, state, tags))
	}

	if err := index.IndexDocuments(docs); err != nil {
		return 0, fmt.Errorf("index documents: %w", err)
	}
	return len(docs), nil
}
