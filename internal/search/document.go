// Package search provides the typeahead suggest index using Bleve. The
// catalog indexes every served activity so clients can autocomplete
// titles, venues, and cities while they type.
package search

import (
	"github.com/thomasruntaochen-ops/art-activity-collection/internal/domain"
)

// Document is the shape of one indexed activity.
//
// Venue and city are denormalized onto each activity document so one
// prefix query covers every suggestable field without a join.
type Document struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	VenueName    string   `json:"venue_name,omitempty"`
	City         string   `json:"city,omitempty"`
	State        string   `json:"state,omitempty"`
	ActivityType string   `json:"activity_type,omitempty"`
	Tags         []string `json:"tags,omitempty"`

	// StartAt is Unix millis, used to prefer upcoming activities.
	StartAt int64 `json:"start_at"`
}

// ToMap converts the document to a map with lowercase field names so the
// field names match the index mapping. Bleve would otherwise index the
// capitalized Go field names.
func (d *Document) ToMap() map[string]interface{} {
	m := map[string]interface{}{
		"id":       d.ID,
		"title":    d.Title,
		"start_at": d.StartAt,
	}
	if d.VenueName != "" {
		m["venue_name"] = d.VenueName
	}
	if d.City != "" {
		m["city"] = d.City
	}
	if d.State != "" {
		m["state"] = d.State
	}
	if d.ActivityType != "" {
		m["activity_type"] = d.ActivityType
	}
	if len(d.Tags) > 0 {
		m["tags"] = d.Tags
	}
	return m
}

// FromActivity builds the index document for one activity. The venue name
// and city come from the caller since the search package does not read
// the store.
func FromActivity(a *domain.Activity, venueName, city, state string, tags []string) *Document {
	return &Document{
		ID:           a.ID,
		Title:        a.Title,
		VenueName:    venueName,
		City:         city,
		State:        state,
		ActivityType: a.ActivityType,
		Tags:         tags,
		StartAt:      a.StartAt.UnixMilli(),
	}
}
