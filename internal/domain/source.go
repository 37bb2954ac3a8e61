package domain

import "time"

// Source is a crawl target: one venue/site paired with an adapter that
// knows how to fetch and parse it. Sources are created by seed
// configuration, rarely mutated, and never deleted while activities
// reference them.
type Source struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	BaseURL        string    `json:"base_url"`
	AdapterType    string    `json:"adapter_type"`
	CrawlFrequency string    `json:"crawl_frequency"`
	Active         bool      `json:"active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Venue is a physical location shared by many activities. Identity is
// inferred: sources carry no stable venue key, so the reconciler matches
// or creates venues by (name, city, state) similarity.
type Venue struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address,omitempty"`
	City      string    `json:"city,omitempty"`
	State     string    `json:"state,omitempty"`
	Zip       string    `json:"zip,omitempty"`
	Lat       *float64  `json:"lat,omitempty"`
	Lng       *float64  `json:"lng,omitempty"`
	Website   string    `json:"website,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ActivityTag is a label on an activity. The (activity_id, tag) pair has
// set semantics.
type ActivityTag struct {
	ActivityID string    `json:"activity_id"`
	Tag        string    `json:"tag"`
	CreatedAt  time.Time `json:"created_at"`
}
