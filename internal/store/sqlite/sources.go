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

// sourceColumns is the ordered list of columns selected in source queries.
// Must match the scan order in scanSource.
const sourceColumns = `id, name, base_url, adapter_type, crawl_frequency, active,
	created_at, updated_at`

// scanSource scans a sql.Row (or sql.Rows via its Scan method) into a domain.Source.
func scanSource(scanner interface{ Scan(dest ...any) error }) (*domain.Source, error) {
	var (
		src       domain.Source
		active    int
		createdAt string
		updatedAt string
	)

	err := scanner.Scan(
		&src.ID,
		&src.Name,
		&src.BaseURL,
		&src.AdapterType,
		&src.CrawlFrequency,
		&active,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	src.Active = active != 0
	src.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	src.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, err
	}

	return &src, nil
}

// CreateSource inserts a new crawl source.
func (s *Store) CreateSource(ctx context.Context, source *domain.Source) error {
	active := 0
	if source.Active {
		active = 1
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sources (id, name, base_url, adapter_type, crawl_frequency, active,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		source.ID,
		source.Name,
		source.BaseURL,
		source.AdapterType,
		source.CrawlFrequency,
		active,
		formatTime(source.CreatedAt),
		formatTime(source.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrAlreadyExists
		}
		return fmt.Errorf("insert source: %w", err)
	}

	return nil
}

// GetSource returns a source by ID.
func (s *Store) GetSource(ctx context.Context, sourceID string) (*domain.Source, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sourceColumns+` FROM sources WHERE id = ?`, sourceID)

	src, err := scanSource(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get source: %w", err)
	}

	return src, nil
}

// GetSourceByName returns a source by its unique name.
func (s *Store) GetSourceByName(ctx context.Context, name string) (*domain.Source, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sourceColumns+` FROM sources WHERE name = ?`, name)

	src, err := scanSource(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get source by name: %w", err)
	}

	return src, nil
}

// GetOrCreateSourceByName finds an existing source by name or creates a new
// active one. Returns (source, created, error).
func (s *Store) GetOrCreateSourceByName(ctx context.Context, name, baseURL, adapterType string) (*domain.Source, bool, error) {
	existing, err := s.GetSourceByName(ctx, name)
	if err == nil {
		return existing, false, nil
	}
	if err != store.ErrNotFound {
		return nil, false, err
	}

	sourceID, err := id.Generate(id.PrefixSource)
	if err != nil {
		return nil, false, fmt.Errorf("generate source id: %w", err)
	}

	now := time.Now().UTC()
	src := &domain.Source{
		ID:             sourceID,
		Name:           name,
		BaseURL:        baseURL,
		AdapterType:    adapterType,
		CrawlFrequency: "daily",
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.CreateSource(ctx, src); err != nil {
		if err == store.ErrAlreadyExists {
			// Race: another run seeded it first.
			existing, err := s.GetSourceByName(ctx, name)
			if err != nil {
				return nil, false, err
			}
			return existing, false, nil
		}
		return nil, false, err
	}

	return src, true, nil
}

// UpdateSource updates a source row.
func (s *Store) UpdateSource(ctx context.Context, source *domain.Source) error {
	active := 0
	if source.Active {
		active = 1
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE sources
		SET name = ?, base_url = ?, adapter_type = ?, crawl_frequency = ?,
			active = ?, updated_at = ?
		WHERE id = ?`,
		source.Name,
		source.BaseURL,
		source.AdapterType,
		source.CrawlFrequency,
		active,
		formatTime(time.Now()),
		source.ID,
	)
	if err != nil {
		return fmt.Errorf("update source: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}

	return nil
}

// ListSources returns all sources sorted by name.
func (s *Store) ListSources(ctx context.Context) ([]*domain.Source, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sourceColumns+` FROM sources ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query sources: %w", err)
	}
	defer rows.Close()

	var sources []*domain.Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		sources = append(sources, src)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if sources == nil {
		sources = []*domain.Source{}
	}

	return sources, nil
}
