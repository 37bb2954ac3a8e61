package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/thomasruntaochen-ops/art-activity-collection/internal/util"
)

// ReplaceActivityTags replaces all tags for an activity in a single
// transaction. Tags are stored as canonical slugs; the (activity_id, tag)
// pair has set semantics, so inputs that slug identically collapse to one
// row.
func (s *Store) ReplaceActivityTags(ctx context.Context, activityID string, tags []string) error {
	if _, err := s.GetActivity(ctx, activityID); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM activity_tags WHERE activity_id = ?`, activityID); err != nil {
		return fmt.Errorf("delete activity_tags: %w", err)
	}

	now := formatTime(time.Now())
	for _, tag := range tags {
		slug := util.NormalizeTagSlug(tag)
		if slug == "" {
			continue
		}
		_, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO activity_tags (activity_id, tag, created_at)
			VALUES (?, ?, ?)`,
			activityID, slug, now)
		if err != nil {
			return fmt.Errorf("insert activity_tag: %w", err)
		}
	}

	return tx.Commit()
}

// GetActivityTags returns the tags of an activity sorted alphabetically.
func (s *Store) GetActivityTags(ctx context.Context, activityID string) ([]string, error) {
	tags, err := s.queryStrings(ctx,
		`SELECT tag FROM activity_tags WHERE activity_id = ? ORDER BY tag`, activityID)
	if err != nil {
		return nil, err
	}
	return tags, nil
}
