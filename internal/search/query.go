package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// DefaultSuggestLimit caps suggestion responses when the caller passes
// zero.
const DefaultSuggestLimit = 10

// Suggestion is one typeahead completion.
type Suggestion struct {
	// Value is the completed text shown to the user.
	Value string `json:"value"`
	// Field names where the match came from: "title", "venue_name", or
	// "city".
	Field string `json:"field"`
	// ActivityID is set for title matches so clients can link straight to
	// the activity.
	ActivityID string  `json:"activity_id,omitempty"`
	Score      float64 `json:"score"`
}

// Suggest returns typeahead completions for a partial query. Matches are
// collected across titles, venue names, and cities, deduplicated by
// completed value, and returned best first.
func (s *Index) Suggest(ctx context.Context, q string, limit int) ([]Suggestion, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return []Suggestion{}, nil
	}
	if limit <= 0 {
		limit = DefaultSuggestLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	searchRequest := bleve.NewSearchRequestOptions(buildSuggestQuery(q), limit*3, 0, false)
	searchRequest.Fields = []string{"title", "venue_name", "city"}

	searchResult, err := s.index.SearchInContext(ctx, searchRequest)
	if err != nil {
		return nil, fmt.Errorf("execute suggest query: %w", err)
	}

	folded := strings.ToLower(q)
	seen := make(map[string]bool)
	suggestions := make([]Suggestion, 0, limit)

	add := func(hitID, field, value string, score float64) bool {
		dedupKey := field + "\x00" + strings.ToLower(value)
		if seen[dedupKey] {
			return false
		}
		seen[dedupKey] = true

		suggestion := Suggestion{Value: value, Field: field, Score: score}
		if field == "title" {
			suggestion.ActivityID = hitID
		}
		suggestions = append(suggestions, suggestion)
		return len(suggestions) == limit
	}

	for _, hit := range searchResult.Hits {
		matched := false
		for _, field := range []string{"title", "venue_name", "city"} {
			value, ok := hit.Fields[field].(string)
			if !ok || value == "" || !matchesQuery(value, folded) {
				continue
			}
			matched = true
			if add(hit.ID, field, value, hit.Score) {
				return suggestions, nil
			}
		}
		// A fuzzy-only hit fails the literal filter on every field; offer
		// its title so typos still complete.
		if !matched {
			if title, ok := hit.Fields["title"].(string); ok && title != "" {
				if add(hit.ID, "title", title, hit.Score) {
					return suggestions, nil
				}
			}
		}
	}

	return suggestions, nil
}

// buildSuggestQuery combines per-field prefix queries with a fuzzy title
// match for typo tolerance. Titles outrank venues, venues outrank cities.
func buildSuggestQuery(q string) query.Query {
	folded := strings.ToLower(q)
	queries := []query.Query{}

	titlePrefix := bleve.NewPrefixQuery(folded)
	titlePrefix.SetField("title")
	titlePrefix.SetBoost(3.0)
	queries = append(queries, titlePrefix)

	venuePrefix := bleve.NewPrefixQuery(folded)
	venuePrefix.SetField("venue_name")
	venuePrefix.SetBoost(2.0)
	queries = append(queries, venuePrefix)

	cityPrefix := bleve.NewPrefixQuery(folded)
	cityPrefix.SetField("city")
	cityPrefix.SetBoost(1.0)
	queries = append(queries, cityPrefix)

	if len(q) >= 3 {
		fuzzy := bleve.NewFuzzyQuery(folded)
		fuzzy.SetFuzziness(1)
		fuzzy.SetField("title")
		fuzzy.SetBoost(0.5)
		queries = append(queries, fuzzy)
	}

	return bleve.NewDisjunctionQuery(queries...)
}

// matchesQuery reports whether the stored value actually contains the
// query. Prefix queries match per token, so a hit on one field must not
// surface the other stored fields as completions.
func matchesQuery(value, foldedQuery string) bool {
	folded := strings.ToLower(value)
	if strings.HasPrefix(folded, foldedQuery) {
		return true
	}
	for _, wordStart := range []string{" " + foldedQuery, "-" + foldedQuery} {
		if strings.Contains(folded, wordStart) {
			return true
		}
	}
	return false
}
