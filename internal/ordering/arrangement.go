// Package ordering keeps lists within a board, and cards within a list, in a
// dense zero-based order. It turns a client-submitted arrangement into the
// position writes needed to persist it and decides whether an actor may
// submit one at all. Nothing here touches storage.
package ordering

import "fmt"

// Arrangement is a move intent: the full order a client wants a board to
// have. It is never persisted as such.
type Arrangement struct {
	Lists []ListOrder
}

// ListOrder names a list and the cards it should contain, in order.
type ListOrder struct {
	ID    string
	Cards []string
}

// Snapshot is the persisted arrangement of one board, lists and cards sorted
// by their stored position.
type Snapshot struct {
	BoardID string
	Lists   []PlacedList
}

type PlacedList struct {
	ID       string
	Position int
	Cards    []PlacedCard
}

type PlacedCard struct {
	ID       string
	Position int
}

type Kind string

const (
	KindList Kind = "list"
	KindCard Kind = "card"
)

// Update is a single position write. ListID is only meaningful for cards and
// is always set for them, so a cross-list move and an in-place reorder are
// the same write.
type Update struct {
	Kind     Kind
	ID       string
	Position int
	ListID   string
}

// VerifyDense reports the first scope whose positions are not exactly
// 0..n-1 in order.
func VerifyDense(s Snapshot) error {
	for i, list := range s.Lists {
		if list.Position != i {
			return fmt.Errorf("board %s: list %s at position %d, want %d", s.BoardID, list.ID, list.Position, i)
		}
		for j, card := range list.Cards {
			if card.Position != j {
				return fmt.Errorf("list %s: card %s at position %d, want %d", list.ID, card.ID, card.Position, j)
			}
		}
	}
	return nil
}
