// Package store defines the persistence interface for the activity catalog.
package store

import (
	"context"
	"time"

	"github.com/thomasruntaochen-ops/art-activity-collection/internal/domain"
	domainerrors "github.com/thomasruntaochen-ops/art-activity-collection/internal/errors"
)

// Sentinel errors returned by store implementations. They carry the
// catalog's error codes so the API layer can map them to HTTP statuses.
var (
	ErrNotFound      = domainerrors.ErrNotFound
	ErrAlreadyExists = domainerrors.ErrAlreadyExists
	ErrInvalidInput  = domainerrors.ErrValidation
	ErrConflict      = domainerrors.ErrConflict
)

// MergeFunc resolves an incoming activity against the stored row with the
// same dedup key. It returns the row to persist. Called inside the upsert
// transaction, so it must not touch the store.
type MergeFunc func(existing, incoming *domain.Activity) *domain.Activity

// ActivityFilters narrows ListActivities. Zero values mean "no filter".
type ActivityFilters struct {
	// Age keeps activities whose age band includes this age.
	Age *int
	// DropIn filters on the drop_in flag when set.
	DropIn *bool
	// Venue, City and State match case-insensitively against the linked venue.
	Venue string
	City  string
	State string
	// From and Until bound start_at.
	From  *time.Time
	Until *time.Time
	// Statuses defaults to (active, needs_review) when empty.
	Statuses []domain.ActivityStatus
	// SourceID restricts to one source.
	SourceID string

	Limit  int
	Offset int
}

// FilterOptions holds the distinct values the UI can filter on.
type FilterOptions struct {
	Venues        []string `json:"venues"`
	Cities        []string `json:"cities"`
	States        []string `json:"states"`
	ActivityTypes []string `json:"activity_types"`
}

// Store defines the interface for all persistence operations.
type Store interface {
	// Lifecycle
	Close() error
	Ping(ctx context.Context) error

	// Sources
	CreateSource(ctx context.Context, source *domain.Source) error
	GetSource(ctx context.Context, id string) (*domain.Source, error)
	GetSourceByName(ctx context.Context, name string) (*domain.Source, error)
	GetOrCreateSourceByName(ctx context.Context, name, baseURL, adapterType string) (*domain.Source, bool, error)
	UpdateSource(ctx context.Context, source *domain.Source) error
	ListSources(ctx context.Context) ([]*domain.Source, error)

	// Venues
	CreateVenue(ctx context.Context, venue *domain.Venue) error
	GetVenue(ctx context.Context, id string) (*domain.Venue, error)
	FindVenue(ctx context.Context, name, city, state string) (*domain.Venue, error)
	FindOrCreateVenue(ctx context.Context, venue *domain.Venue) (*domain.Venue, bool, error)
	ListVenues(ctx context.Context) ([]*domain.Venue, error)

	// Activities
	CreateActivity(ctx context.Context, activity *domain.Activity) error
	GetActivity(ctx context.Context, id string) (*domain.Activity, error)
	GetActivityByKey(ctx context.Context, key domain.DedupKey) (*domain.Activity, error)
	UpdateActivity(ctx context.Context, activity *domain.Activity) error
	UpsertActivity(ctx context.Context, activity *domain.Activity, merge MergeFunc) (*domain.Activity, bool, error)
	ListActivities(ctx context.Context, filters ActivityFilters) ([]*domain.Activity, error)
	CountActivities(ctx context.Context) (int, error)
	FilterOptions(ctx context.Context) (*FilterOptions, error)
	ExpireStale(ctx context.Context, sourceID string, olderThan time.Time) (int, error)

	// Tags
	ReplaceActivityTags(ctx context.Context, activityID string, tags []string) error
	GetActivityTags(ctx context.Context, activityID string) ([]string, error)

	// Ingestion runs
	CreateRun(ctx context.Context, run *domain.IngestionRun) error
	GetRun(ctx context.Context, id string) (*domain.IngestionRun, error)
	FinishRun(ctx context.Context, id string, status domain.RunStatus, found, saved int, errs string) error
	ListRuns(ctx context.Context, sourceID string, limit int) ([]*domain.IngestionRun, error)
	CloseStaleRuns(ctx context.Context, olderThan time.Time) (int, error)
}
