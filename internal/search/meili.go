package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
)

const idxCards = "taskboard_cards"

// Meili implements Index via Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili creates a Meilisearch client and configures the card index. An
// unreachable server is not an error: Healthy reports false until the
// background health loop sees it come back.
func NewMeili(url, apiKey string) *Meili {
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client: client,
		done:   make(chan struct{}),
	}

	if _, err := client.Health(); err != nil {
		log.Printf("search: meilisearch unavailable at %s: %v", url, err)
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndex()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndex() {
	if _, err := m.client.CreateIndex(&meili.IndexConfig{Uid: idxCards, PrimaryKey: "id"}); err != nil {
		log.Printf("search: create index %s (may already exist): %v", idxCards, err)
	}

	index := m.client.Index(idxCards)
	filterable := []interface{}{"boardId", "listId"}
	if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
		log.Printf("search: update filterable attrs for %s: %v", idxCards, err)
	}
	searchable := []string{"title"}
	if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
		log.Printf("search: update searchable attrs for %s: %v", idxCards, err)
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				log.Println("search: meilisearch recovered, reconfiguring index")
				m.configureIndex()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

func (m *Meili) Search(ctx context.Context, q Query) ([]Result, int, error) {
	if !m.healthy.Load() {
		return nil, 0, fmt.Errorf("meilisearch unhealthy")
	}
	q = q.normalized()

	resp, err := m.client.MultiSearch(&meili.MultiSearchRequest{
		Queries: []*meili.SearchRequest{{
			IndexUID:              idxCards,
			Query:                 q.Text,
			Limit:                 int64(q.Limit),
			Offset:                int64(q.Offset),
			Filter:                boardFilter(q.BoardID),
			AttributesToHighlight: []string{"title"},
			HighlightPreTag:       "<mark>",
			HighlightPostTag:      "</mark>",
		}},
	})
	if err != nil {
		m.healthy.Store(false)
		return nil, 0, fmt.Errorf("meilisearch multi-search: %w", err)
	}

	results := make([]Result, 0)
	total := 0
	for _, sr := range resp.Results {
		total += int(sr.EstimatedTotalHits)
		for _, hit := range sr.Hits {
			results = append(results, hitToResult(hit))
		}
	}
	return results, total, nil
}

func boardFilter(boardID string) string {
	return fmt.Sprintf("boardId = %q", boardID)
}

func hitToResult(hit meili.Hit) Result {
	title := decodeString(hit, "title")
	return Result{
		ID:      decodeString(hit, "id"),
		Title:   title,
		ListID:  decodeString(hit, "listId"),
		BoardID: decodeString(hit, "boardId"),
		Snippet: firstNonBlank(decodeFormattedString(hit, "title"), title),
	}
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

func decodeFormattedString(hit meili.Hit, key string) string {
	raw, ok := hit["_formatted"]
	if !ok {
		return ""
	}
	var formatted map[string]json.RawMessage
	if err := json.Unmarshal(raw, &formatted); err != nil {
		return ""
	}
	var s string
	if err := json.Unmarshal(formatted[key], &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

// IndexCards adds or replaces cards in the index.
func (m *Meili) IndexCards(cards []CardRecord) error {
	if len(cards) == 0 {
		return nil
	}
	_, err := m.client.Index(idxCards).AddDocuments(cards, nil)
	return err
}

func (m *Meili) DeleteCard(id string) error {
	_, err := m.client.Index(idxCards).DeleteDocument(id, nil)
	return err
}
