package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/thomasruntaochen-ops/art-activity-collection/internal/domain"
	"github.com/thomasruntaochen-ops/art-activity-collection/internal/id"
	"github.com/thomasruntaochen-ops/art-activity-collection/internal/store"
)

// venueColumns is the ordered list of columns selected in venue queries.
// Must match the scan order in scanVenue.
const venueColumns = `id, name, address, city, state, zip, lat, lng, website,
	created_at, updated_at`

// scanVenue scans a sql.Row (or sql.Rows via its Scan method) into a domain.Venue.
func scanVenue(scanner interface{ Scan(dest ...any) error }) (*domain.Venue, error) {
	var (
		v         domain.Venue
		address   sql.NullString
		city      sql.NullString
		state     sql.NullString
		zip       sql.NullString
		lat       sql.NullFloat64
		lng       sql.NullFloat64
		website   sql.NullString
		createdAt string
		updatedAt string
	)

	err := scanner.Scan(
		&v.ID,
		&v.Name,
		&address,
		&city,
		&state,
		&zip,
		&lat,
		&lng,
		&website,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	v.Address = address.String
	v.City = city.String
	v.State = state.String
	v.Zip = zip.String
	v.Lat = floatFromNull(lat)
	v.Lng = floatFromNull(lng)
	v.Website = website.String

	v.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	v.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, err
	}

	return &v, nil
}

// CreateVenue inserts a new venue.
func (s *Store) CreateVenue(ctx context.Context, venue *domain.Venue) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO venues (id, name, address, city, state, zip, lat, lng, website,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		venue.ID,
		venue.Name,
		nullString(venue.Address),
		nullString(venue.City),
		nullString(venue.State),
		nullString(venue.Zip),
		nullFloat(venue.Lat),
		nullFloat(venue.Lng),
		nullString(venue.Website),
		formatTime(venue.CreatedAt),
		formatTime(venue.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrAlreadyExists
		}
		return fmt.Errorf("insert venue: %w", err)
	}

	return nil
}

// GetVenue returns a venue by ID.
func (s *Store) GetVenue(ctx context.Context, venueID string) (*domain.Venue, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+venueColumns+` FROM venues WHERE id = ?`, venueID)

	v, err := scanVenue(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get venue: %w", err)
	}

	return v, nil
}

// FindVenue looks up a venue by its inferred identity: case-insensitive
// (name, city, state). Empty city/state match rows where the column is NULL.
func (s *Store) FindVenue(ctx context.Context, name, city, state string) (*domain.Venue, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+venueColumns+`
		FROM venues
		WHERE lower(name) = lower(?)
		  AND lower(coalesce(city, '')) = lower(?)
		  AND upper(coalesce(state, '')) = upper(?)`,
		name, city, state)

	v, err := scanVenue(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find venue: %w", err)
	}

	return v, nil
}

// FindOrCreateVenue finds an existing venue matching the candidate's
// (name, city, state) or creates a new one. Returns (venue, created, error).
func (s *Store) FindOrCreateVenue(ctx context.Context, venue *domain.Venue) (*domain.Venue, bool, error) {
	existing, err := s.FindVenue(ctx, venue.Name, venue.City, venue.State)
	if err == nil {
		return existing, false, nil
	}
	if err != store.ErrNotFound {
		return nil, false, err
	}

	venueID, err := id.Generate(id.PrefixVenue)
	if err != nil {
		return nil, false, fmt.Errorf("generate venue id: %w", err)
	}

	now := time.Now().UTC()
	created := *venue
	created.ID = venueID
	created.CreatedAt = now
	created.UpdatedAt = now

	if err := s.CreateVenue(ctx, &created); err != nil {
		if err == store.ErrAlreadyExists {
			// Race: a concurrent run created the same identity.
			existing, err := s.FindVenue(ctx, venue.Name, venue.City, venue.State)
			if err != nil {
				return nil, false, err
			}
			return existing, false, nil
		}
		return nil, false, err
	}

	return &created, true, nil
}

// ListVenues returns all venues sorted by name.
func (s *Store) ListVenues(ctx context.Context) ([]*domain.Venue, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+venueColumns+` FROM venues ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query venues: %w", err)
	}
	defer rows.Close()

	var venues []*domain.Venue
	for rows.Next() {
		v, err := scanVenue(rows)
		if err != nil {
			return nil, fmt.Errorf("scan venue: %w", err)
		}
		venues = append(venues, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if venues == nil {
		venues = []*domain.Venue{}
	}

	return venues, nil
}
