package search

import "context"

// Result is a single card hit returned to the caller.
type Result struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	ListID  string `json:"listId"`
	BoardID string `json:"boardId"`
	Snippet string `json:"snippet"`
}

// Query is always scoped to one board.
type Query struct {
	BoardID string
	Text    string
	Limit   int
	Offset  int
}

func (q Query) normalized() Query {
	if q.Limit <= 0 || q.Limit > 100 {
		q.Limit = 20
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return q
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// CardRecord is the data we index for a card.
type CardRecord struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	ListID  string `json:"listId"`
	BoardID string `json:"boardId"`
}

// Searcher can execute a card search.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]Result, int, error)
}

// Index is a search engine that also accepts card writes.
type Index interface {
	Searcher
	Healthy() bool
	IndexCards(cards []CardRecord) error
	DeleteCard(id string) error
}
