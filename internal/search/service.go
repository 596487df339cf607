package search

import (
	"context"
	"log"
	"strings"
)

// Service is the facade that tries the index first and falls back to SQL.
type Service struct {
	index    Index
	fallback Searcher
}

// NewService creates a search service. index may be nil when Meilisearch is
// not configured.
func NewService(index Index, fallback Searcher) *Service {
	return &Service{index: index, fallback: fallback}
}

func (s *Service) Search(ctx context.Context, q Query) Response {
	text := strings.TrimSpace(q.Text)
	empty := Response{Results: []Result{}, Total: 0, Query: text}
	if text == "" {
		return empty
	}
	q.Text = text

	if s.index != nil && s.index.Healthy() {
		results, total, err := s.index.Search(ctx, q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: text}
		}
		log.Printf("search: meilisearch error, falling back to sql: %v", err)
	}

	results, total, err := s.fallback.Search(ctx, q)
	if err != nil {
		log.Printf("search: sql error: %v", err)
		return empty
	}
	return Response{Results: nonNil(results), Total: total, Query: text}
}

// IndexCard indexes a card (fire-and-forget).
func (s *Service) IndexCard(card CardRecord) {
	if s.index == nil || !s.index.Healthy() {
		return
	}
	go func() {
		if err := s.index.IndexCards([]CardRecord{card}); err != nil {
			log.Printf("search: index card %s: %v", card.ID, err)
		}
	}()
}

// DeleteCard removes a card from the index (fire-and-forget).
func (s *Service) DeleteCard(id string) {
	if s.index == nil || !s.index.Healthy() {
		return
	}
	go func() {
		if err := s.index.DeleteCard(id); err != nil {
			log.Printf("search: delete card %s: %v", id, err)
		}
	}()
}

// Reindex pushes cards into the index in one batch, synchronously.
func (s *Service) Reindex(cards []CardRecord) {
	if s.index == nil || !s.index.Healthy() || len(cards) == 0 {
		return
	}
	if err := s.index.IndexCards(cards); err != nil {
		log.Printf("search: reindex %d cards: %v", len(cards), err)
	}
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
