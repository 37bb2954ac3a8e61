package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/thomasruntaochen-ops/art-activity-collection/internal/domain"
	"github.com/thomasruntaochen-ops/art-activity-collection/internal/id"
	"github.com/thomasruntaochen-ops/art-activity-collection/internal/store"
)

// activityColumns is the ordered list of columns selected in activity queries.
// Must match the scan order in scanActivity.
const activityColumns = `id, source_id, source_url, external_id, title, description,
	activity_type, age_min, age_max, is_free, free_verification_status,
	drop_in, registration_required, start_at, end_at, timezone,
	recurrence_text, location_text, venue_id,
	extraction_method, extractor_version, llm_provider, llm_model, llm_confidence,
	status, confidence_score, field_confidence,
	first_seen_at, last_seen_at, updated_at`

// scanActivity scans a sql.Row (or sql.Rows via its Scan method) into a domain.Activity.
func scanActivity(scanner interface{ Scan(dest ...any) error }) (*domain.Activity, error) {
	var (
		a domain.Activity

		externalID   sql.NullString
		description  sql.NullString
		activityType sql.NullString
		ageMin       sql.NullInt64
		ageMax       sql.NullInt64
		isFree       int
		dropIn       sql.NullInt64
		regRequired  sql.NullInt64
		startAt      string
		endAt        sql.NullString
		recurrence   sql.NullString
		locationText sql.NullString
		venueID      sql.NullString
		extractorVer sql.NullString
		llmProvider  sql.NullString
		llmModel     sql.NullString
		llmConf      sql.NullFloat64
		fieldConf    sql.NullString
		firstSeenAt  string
		lastSeenAt   string
		updatedAt    string
	)

	err := scanner.Scan(
		&a.ID,
		&a.SourceID,
		&a.SourceURL,
		&externalID,
		&a.Title,
		&description,
		&activityType,
		&ageMin,
		&ageMax,
		&isFree,
		&a.FreeStatus,
		&dropIn,
		&regRequired,
		&startAt,
		&endAt,
		&a.Timezone,
		&recurrence,
		&locationText,
		&venueID,
		&a.ExtractionMethod,
		&extractorVer,
		&llmProvider,
		&llmModel,
		&llmConf,
		&a.Status,
		&a.ConfidenceScore,
		&fieldConf,
		&firstSeenAt,
		&lastSeenAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.ExternalID = externalID.String
	a.Description = description.String
	a.ActivityType = activityType.String
	a.AgeMin = intFromNull(ageMin)
	a.AgeMax = intFromNull(ageMax)
	a.IsFree = isFree != 0
	a.DropIn = boolFromNull(dropIn)
	a.RegistrationRequired = boolFromNull(regRequired)
	a.RecurrenceText = recurrence.String
	a.LocationText = locationText.String
	a.VenueID = venueID.String
	a.ExtractorVersion = extractorVer.String
	a.LLMProvider = llmProvider.String
	a.LLMModel = llmModel.String
	a.LLMConfidence = floatFromNull(llmConf)

	a.StartAt, err = parseTime(startAt)
	if err != nil {
		return nil, err
	}
	a.EndAt, err = parseNullableTime(endAt)
	if err != nil {
		return nil, err
	}
	a.FirstSeenAt, err = parseTime(firstSeenAt)
	if err != nil {
		return nil, err
	}
	a.LastSeenAt, err = parseTime(lastSeenAt)
	if err != nil {
		return nil, err
	}
	a.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, err
	}

	if fieldConf.Valid && fieldConf.String != "" {
		if err := json.Unmarshal([]byte(fieldConf.String), &a.FieldConfidence); err != nil {
			return nil, fmt.Errorf("unmarshal field_confidence: %w", err)
		}
	}

	return &a, nil
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// insertActivity writes a new activity row. The dedup key columns are
// derived from the activity itself so the unique index always compares
// normalized values.
func insertActivity(ctx context.Context, db execer, a *domain.Activity) error {
	fieldConf, err := marshalFieldConfidence(a.FieldConfidence)
	if err != nil {
		return err
	}

	isFree := 0
	if a.IsFree {
		isFree = 1
	}

	key := a.Key()

	_, err = db.ExecContext(ctx, `
		INSERT INTO activities (id, source_id, source_url, external_id, title, description,
			activity_type, age_min, age_max, is_free, free_verification_status,
			drop_in, registration_required, start_at, end_at, timezone,
			recurrence_text, location_text, venue_id,
			extraction_method, extractor_version, llm_provider, llm_model, llm_confidence,
			status, confidence_score, field_confidence,
			first_seen_at, last_seen_at, updated_at,
			dedup_url, dedup_title, dedup_start_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID,
		a.SourceID,
		a.SourceURL,
		nullString(a.ExternalID),
		a.Title,
		nullString(a.Description),
		nullString(a.ActivityType),
		nullInt(a.AgeMin),
		nullInt(a.AgeMax),
		isFree,
		string(a.FreeStatus),
		nullBool(a.DropIn),
		nullBool(a.RegistrationRequired),
		formatTime(a.StartAt),
		nullTimeString(a.EndAt),
		a.Timezone,
		nullString(a.RecurrenceText),
		nullString(a.LocationText),
		nullString(a.VenueID),
		string(a.ExtractionMethod),
		nullString(a.ExtractorVersion),
		nullString(a.LLMProvider),
		nullString(a.LLMModel),
		nullFloat(a.LLMConfidence),
		string(a.Status),
		a.ConfidenceScore,
		fieldConf,
		formatTime(a.FirstSeenAt),
		formatTime(a.LastSeenAt),
		formatTime(a.UpdatedAt),
		key.SourceURL,
		key.Title,
		formatTime(key.StartAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrAlreadyExists
		}
		return fmt.Errorf("insert activity: %w", err)
	}

	return nil
}

// updateActivity rewrites all mutable columns of an existing row. The dedup
// key columns are refreshed too in case title or URL cleanup changed them.
func updateActivity(ctx context.Context, db execer, a *domain.Activity) error {
	fieldConf, err := marshalFieldConfidence(a.FieldConfidence)
	if err != nil {
		return err
	}

	isFree := 0
	if a.IsFree {
		isFree = 1
	}

	key := a.Key()

	result, err := db.ExecContext(ctx, `
		UPDATE activities
		SET source_url = ?, external_id = ?, title = ?, description = ?,
			activity_type = ?, age_min = ?, age_max = ?, is_free = ?,
			free_verification_status = ?, drop_in = ?, registration_required = ?,
			start_at = ?, end_at = ?, timezone = ?,
			recurrence_text = ?, location_text = ?, venue_id = ?,
			extraction_method = ?, extractor_version = ?,
			llm_provider = ?, llm_model = ?, llm_confidence = ?,
			status = ?, confidence_score = ?, field_confidence = ?,
			last_seen_at = ?, updated_at = ?,
			dedup_url = ?, dedup_title = ?, dedup_start_at = ?
		WHERE id = ?`,
		a.SourceURL,
		nullString(a.ExternalID),
		a.Title,
		nullString(a.Description),
		nullString(a.ActivityType),
		nullInt(a.AgeMin),
		nullInt(a.AgeMax),
		isFree,
		string(a.FreeStatus),
		nullBool(a.DropIn),
		nullBool(a.RegistrationRequired),
		formatTime(a.StartAt),
		nullTimeString(a.EndAt),
		a.Timezone,
		nullString(a.RecurrenceText),
		nullString(a.LocationText),
		nullString(a.VenueID),
		string(a.ExtractionMethod),
		nullString(a.ExtractorVersion),
		nullString(a.LLMProvider),
		nullString(a.LLMModel),
		nullFloat(a.LLMConfidence),
		string(a.Status),
		a.ConfidenceScore,
		fieldConf,
		formatTime(a.LastSeenAt),
		formatTime(a.UpdatedAt),
		key.SourceURL,
		key.Title,
		formatTime(key.StartAt),
		a.ID,
	)
	if err != nil {
		return fmt.Errorf("update activity: %w", err)
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

// marshalFieldConfidence serializes the per-field confidence map, NULL when empty.
func marshalFieldConfidence(m map[string]float64) (sql.NullString, error) {
	if len(m) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshal field_confidence: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// CreateActivity inserts a new activity. A missing ID is generated.
func (s *Store) CreateActivity(ctx context.Context, activity *domain.Activity) error {
	if activity.ID == "" {
		activityID, err := id.Generate(id.PrefixActivity)
		if err != nil {
			return fmt.Errorf("generate activity id: %w", err)
		}
		activity.ID = activityID
	}
	return insertActivity(ctx, s.db, activity)
}

// GetActivity returns an activity by ID.
func (s *Store) GetActivity(ctx context.Context, activityID string) (*domain.Activity, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+activityColumns+` FROM activities WHERE id = ?`, activityID)

	a, err := scanActivity(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get activity: %w", err)
	}

	return a, nil
}

// dedupKeyQuery is the WHERE clause matching one activity by its dedup key.
const dedupKeyQuery = `SELECT ` + activityColumns + ` FROM activities
	WHERE source_id = ? AND dedup_url = ? AND dedup_title = ? AND dedup_start_at = ?`

// GetActivityByKey returns the activity with the given dedup key.
func (s *Store) GetActivityByKey(ctx context.Context, key domain.DedupKey) (*domain.Activity, error) {
	return getActivityByKey(ctx, s.db, key)
}

func getActivityByKey(ctx context.Context, db execer, key domain.DedupKey) (*domain.Activity, error) {
	row := db.QueryRowContext(ctx, dedupKeyQuery,
		key.SourceID, key.SourceURL, key.Title, formatTime(key.StartAt))

	a, err := scanActivity(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get activity by key: %w", err)
	}

	return a, nil
}

// UpdateActivity updates an existing activity row by ID.
func (s *Store) UpdateActivity(ctx context.Context, activity *domain.Activity) error {
	return updateActivity(ctx, s.db, activity)
}

// UpsertActivity inserts the activity or, when a row with the same dedup key
// exists, applies merge and updates that row. Lookup and write happen in one
// transaction so concurrent runs cannot interleave between match and write.
// Returns the persisted row and whether it was newly created.
func (s *Store) UpsertActivity(ctx context.Context, activity *domain.Activity, merge store.MergeFunc) (*domain.Activity, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	existing, err := getActivityByKey(ctx, tx, activity.Key())
	if err != nil && err != store.ErrNotFound {
		return nil, false, err
	}

	if existing == nil {
		if activity.ID == "" {
			activityID, err := id.Generate(id.PrefixActivity)
			if err != nil {
				return nil, false, fmt.Errorf("generate activity id: %w", err)
			}
			activity.ID = activityID
		}
		if err := insertActivity(ctx, tx, activity); err != nil {
			return nil, false, err
		}
		if err := tx.Commit(); err != nil {
			return nil, false, fmt.Errorf("commit tx: %w", err)
		}
		return activity, true, nil
	}

	merged := activity
	if merge != nil {
		merged = merge(existing, activity)
	}
	merged.ID = existing.ID
	merged.FirstSeenAt = existing.FirstSeenAt

	if err := updateActivity(ctx, tx, merged); err != nil {
		return nil, false, err
	}
	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit tx: %w", err)
	}

	return merged, false, nil
}

// ListActivities returns activities matching the filters, ordered by start
// time. Only free rows are served; status defaults to active and needs_review.
func (s *Store) ListActivities(ctx context.Context, filters store.ActivityFilters) ([]*domain.Activity, error) {
	query := `SELECT ` + activityColumns + ` FROM activities WHERE is_free = 1`
	var args []any

	statuses := filters.Statuses
	if len(statuses) == 0 {
		statuses = []domain.ActivityStatus{domain.StatusActive, domain.StatusNeedsReview}
	}
	placeholders := make([]string, len(statuses))
	for i, st := range statuses {
		placeholders[i] = "?"
		args = append(args, string(st))
	}
	query += ` AND status IN (` + strings.Join(placeholders, ", ") + `)`

	if filters.SourceID != "" {
		query += ` AND source_id = ?`
		args = append(args, filters.SourceID)
	}
	if filters.Age != nil {
		query += ` AND (age_min IS NULL OR age_min <= ?) AND (age_max IS NULL OR age_max >= ?)`
		args = append(args, *filters.Age, *filters.Age)
	}
	if filters.DropIn != nil {
		dropIn := 0
		if *filters.DropIn {
			dropIn = 1
		}
		query += ` AND drop_in = ?`
		args = append(args, dropIn)
	}
	if filters.Venue != "" {
		query += ` AND venue_id IN (SELECT id FROM venues WHERE lower(name) = lower(?))`
		args = append(args, filters.Venue)
	}
	if filters.City != "" {
		query += ` AND venue_id IN (SELECT id FROM venues WHERE lower(coalesce(city, '')) = lower(?))`
		args = append(args, filters.City)
	}
	if filters.State != "" {
		query += ` AND venue_id IN (SELECT id FROM venues WHERE upper(coalesce(state, '')) = upper(?))`
		args = append(args, filters.State)
	}
	if filters.From != nil {
		query += ` AND start_at >= ?`
		args = append(args, formatTime(*filters.From))
	}
	if filters.Until != nil {
		query += ` AND start_at <= ?`
		args = append(args, formatTime(*filters.Until))
	}

	query += ` ORDER BY start_at, id`
	if filters.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, filters.Limit, filters.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query activities: %w", err)
	}
	defer rows.Close()

	var activities []*domain.Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		activities = append(activities, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if activities == nil {
		activities = []*domain.Activity{}
	}

	return activities, nil
}

// CountActivities returns the total number of activity rows.
func (s *Store) CountActivities(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM activities`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count activities: %w", err)
	}
	return count, nil
}

// FilterOptions returns the distinct filterable values across served rows.
func (s *Store) FilterOptions(ctx context.Context) (*store.FilterOptions, error) {
	opts := &store.FilterOptions{
		Venues:        []string{},
		Cities:        []string{},
		States:        []string{},
		ActivityTypes: []string{},
	}

	served := `SELECT venue_id FROM activities
		WHERE is_free = 1 AND status IN ('active', 'needs_review') AND venue_id IS NOT NULL`

	queries := []struct {
		dest  *[]string
		query string
	}{
		{&opts.Venues, `SELECT DISTINCT name FROM venues WHERE id IN (` + served + `) ORDER BY name`},
		{&opts.Cities, `SELECT DISTINCT city FROM venues
			WHERE city IS NOT NULL AND city != '' AND id IN (` + served + `) ORDER BY city`},
		{&opts.States, `SELECT DISTINCT state FROM venues
			WHERE state IS NOT NULL AND state != '' AND id IN (` + served + `) ORDER BY state`},
		{&opts.ActivityTypes, `SELECT DISTINCT activity_type FROM activities
			WHERE is_free = 1 AND status IN ('active', 'needs_review')
			  AND activity_type IS NOT NULL AND activity_type != ''
			ORDER BY activity_type`},
	}

	for _, q := range queries {
		values, err := s.queryStrings(ctx, q.query)
		if err != nil {
			return nil, err
		}
		*q.dest = values
	}

	return opts, nil
}

func (s *Store) queryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query strings: %w", err)
	}
	defer rows.Close()

	values := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan string: %w", err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return values, nil
}

// ExpireStale flips active activities of a source to expired when they have
// not been seen since olderThan. Idempotent: already-expired rows are
// untouched. Returns the number of rows expired.
func (s *Store) ExpireStale(ctx context.Context, sourceID string, olderThan time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE activities
		SET status = ?, updated_at = ?
		WHERE source_id = ? AND status = ? AND last_seen_at < ?`,
		string(domain.StatusExpired),
		formatTime(time.Now()),
		sourceID,
		string(domain.StatusActive),
		formatTime(olderThan),
	)
	if err != nil {
		return 0, fmt.Errorf("expire stale activities: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	return int(n), nil
}
