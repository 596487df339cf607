package testutil

import (
	"context"
	"fmt"
	"testing"

	"taskboard/api/internal/store"
)

// Board is a seeded board: its id, owner, and list and card ids in
// position order.
type Board struct {
	ID      string
	OwnerID string
	Lists   []string
	Cards   map[string][]string
}

// SeedUser inserts a user whose id, name and email derive from name.
func SeedUser(t *testing.T, s *store.SQLStore, name string) store.User {
	t.Helper()
	user, err := s.CreateUser(context.Background(), store.User{
		ID:           "usr_" + name,
		Email:        name + "@example.test",
		Name:         name,
		PasswordHash: "x",
	})
	if err != nil {
		t.Fatalf("seed user %s: %v", name, err)
	}
	return user
}

// SeedBoard creates a board owned by ownerID with one list per entry of
// cardsPerList, holding that many cards. Ids are prefixed with boardID, so
// lists read "<board>-l0" and cards "<board>-l0-c0".
func SeedBoard(t *testing.T, s *store.SQLStore, boardID, ownerID string, cardsPerList ...int) Board {
	t.Helper()
	ctx := context.Background()
	if _, err := s.InsertBoard(ctx, store.Board{ID: boardID, Title: boardID, OwnerID: ownerID}); err != nil {
		t.Fatalf("seed board %s: %v", boardID, err)
	}

	board := Board{ID: boardID, OwnerID: ownerID, Cards: make(map[string][]string)}
	for i, n := range cardsPerList {
		listID := fmt.Sprintf("%s-l%d", boardID, i)
		if _, err := s.InsertList(ctx, store.List{ID: listID, BoardID: boardID, Title: listID, Position: i}); err != nil {
			t.Fatalf("seed list %s: %v", listID, err)
		}
		board.Lists = append(board.Lists, listID)
		for j := 0; j < n; j++ {
			cardID := fmt.Sprintf("%s-c%d", listID, j)
			if _, err := s.InsertCard(ctx, store.Card{ID: cardID, ListID: listID, Title: cardID, Position: j}); err != nil {
				t.Fatalf("seed card %s: %v", cardID, err)
			}
			board.Cards[listID] = append(board.Cards[listID], cardID)
		}
	}
	return board
}
