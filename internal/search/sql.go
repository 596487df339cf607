package search

import (
	"context"
	"strings"

	"taskboard/api/internal/store"
)

// CardFinder is the store query the SQL fallback runs.
type CardFinder interface {
	SearchCards(ctx context.Context, boardID, q string, limit, offset int) ([]store.CardHit, int, error)
}

// SQLSearch matches card titles with a case-insensitive LIKE. It serves
// whenever Meilisearch is absent or unhealthy.
type SQLSearch struct {
	finder CardFinder
}

func NewSQLSearch(finder CardFinder) *SQLSearch {
	return &SQLSearch{finder: finder}
}

func (s *SQLSearch) Search(ctx context.Context, q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}
	q = q.normalized()

	hits, total, err := s.finder.SearchCards(ctx, q.BoardID, q.Text, q.Limit, q.Offset)
	if err != nil {
		return nil, 0, err
	}
	results := make([]Result, 0, len(hits))
	for _, hit := range hits {
		results = append(results, Result{
			ID:      hit.ID,
			Title:   hit.Title,
			ListID:  hit.ListID,
			BoardID: hit.BoardID,
			Snippet: hit.Title,
		})
	}
	return results, total, nil
}
