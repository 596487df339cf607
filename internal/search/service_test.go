package search

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskboard/api/internal/testutil"
)

type fakeIndex struct {
	healthy bool
	results []Result
	err     error
	indexed chan []CardRecord
	deleted chan string
}

func newFakeIndex(healthy bool) *fakeIndex {
	return &fakeIndex{healthy: healthy, indexed: make(chan []CardRecord, 4), deleted: make(chan string, 4)}
}

func (f *fakeIndex) Healthy() bool { return f.healthy }

func (f *fakeIndex) Search(ctx context.Context, q Query) ([]Result, int, error) {
	return f.results, len(f.results), f.err
}

func (f *fakeIndex) IndexCards(cards []CardRecord) error {
	f.indexed <- cards
	return nil
}

func (f *fakeIndex) DeleteCard(id string) error {
	f.deleted <- id
	return nil
}

type fakeSearcher struct {
	calls   int
	results []Result
	err     error
}

func (f *fakeSearcher) Search(ctx context.Context, q Query) ([]Result, int, error) {
	f.calls++
	return f.results, len(f.results), f.err
}

func TestServiceUsesHealthyIndex(t *testing.T) {
	index := newFakeIndex(true)
	index.results = []Result{{ID: "c1", Title: "Ship it"}}
	fallback := &fakeSearcher{}

	resp := NewService(index, fallback).Search(context.Background(), Query{BoardID: "b1", Text: " ship "})
	assert.Equal(t, "ship", resp.Query)
	assert.Equal(t, 1, resp.Total)
	assert.Equal(t, 0, fallback.calls)
}

func TestServiceFallsBackWhenIndexFails(t *testing.T) {
	index := newFakeIndex(true)
	index.err = errors.New("connection refused")
	fallback := &fakeSearcher{results: []Result{{ID: "c2"}}}

	resp := NewService(index, fallback).Search(context.Background(), Query{BoardID: "b1", Text: "x"})
	assert.Equal(t, 1, fallback.calls)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "c2", resp.Results[0].ID)
}

func TestServiceWithoutIndex(t *testing.T) {
	fallback := &fakeSearcher{err: errors.New("db down")}
	resp := NewService(nil, fallback).Search(context.Background(), Query{BoardID: "b1", Text: "x"})
	assert.NotNil(t, resp.Results)
	assert.Empty(t, resp.Results)

	resp = NewService(nil, fallback).Search(context.Background(), Query{BoardID: "b1", Text: "   "})
	assert.Equal(t, 1, fallback.calls, "blank queries never reach a backend")
	assert.Empty(t, resp.Results)
}

func TestServiceIndexWrites(t *testing.T) {
	index := newFakeIndex(true)
	svc := NewService(index, &fakeSearcher{})

	svc.IndexCard(CardRecord{ID: "c1", BoardID: "b1"})
	svc.DeleteCard("c2")

	select {
	case cards := <-index.indexed:
		assert.Equal(t, "c1", cards[0].ID)
	case <-time.After(time.Second):
		t.Fatal("card was not indexed")
	}
	select {
	case id := <-index.deleted:
		assert.Equal(t, "c2", id)
	case <-time.After(time.Second):
		t.Fatal("card was not deleted")
	}

	unhealthy := newFakeIndex(false)
	NewService(unhealthy, &fakeSearcher{}).Reindex([]CardRecord{{ID: "c3"}})
	assert.Empty(t, unhealthy.indexed)
}

func TestSQLSearch(t *testing.T) {
	s := testutil.NewTestStore(t)
	owner := testutil.SeedUser(t, s, "ada")
	testutil.SeedBoard(t, s, "b1", owner.ID, 2)
	testutil.SeedBoard(t, s, "b2", owner.ID, 2)

	results, total, err := NewSQLSearch(s).Search(context.Background(), Query{BoardID: "b1", Text: "C1"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, results, 1)
	assert.Equal(t, "b1-l0-c1", results[0].ID)
	assert.Equal(t, "b1-l0", results[0].ListID)
}

func TestHitToResult(t *testing.T) {
	hit := meili.Hit{
		"id":         json.RawMessage(`"c1"`),
		"title":      json.RawMessage(`"Fix login"`),
		"listId":     json.RawMessage(`"l1"`),
		"boardId":    json.RawMessage(`"b1"`),
		"_formatted": json.RawMessage(`{"title":"Fix <mark>login</mark>","id":"c1"}`),
	}
	r := hitToResult(hit)
	assert.Equal(t, Result{ID: "c1", Title: "Fix login", ListID: "l1", BoardID: "b1", Snippet: "Fix <mark>login</mark>"}, r)

	bare := hitToResult(meili.Hit{"id": json.RawMessage(`"c2"`), "title": json.RawMessage(`"Plain"`)})
	assert.Equal(t, "Plain", bare.Snippet)
}

func TestBoardFilterQuotes(t *testing.T) {
	assert.Equal(t, `boardId = "brd_1"`, boardFilter("brd_1"))
}
