package ordering

import "taskboard/api/internal/rbac"

// Access is what the validator needs to know about a board's participants.
type Access struct {
	OwnerID   string
	MemberIDs []string
}

// Authorize reports whether actor may rearrange the board. The decision is
// board-wide: there is no per-list or per-card grant.
func Authorize(actor string, access Access) bool {
	return rbac.Can(rbac.RoleFor(actor, access.OwnerID, access.MemberIDs), rbac.ActionWrite)
}

// Validate checks the arrangement in isolation: every id present, every list
// named once, every card placed in exactly one list.
func Validate(desired Arrangement) error {
	lists := make(map[string]struct{}, len(desired.Lists))
	cards := make(map[string]struct{})
	for _, list := range desired.Lists {
		if list.ID == "" {
			return &ValidationError{Reason: "list id is required"}
		}
		if _, dup := lists[list.ID]; dup {
			return &ValidationError{Reason: "list submitted more than once", ID: list.ID}
		}
		lists[list.ID] = struct{}{}

		for _, cardID := range list.Cards {
			if cardID == "" {
				return &ValidationError{Reason: "card id is required"}
			}
			if _, dup := cards[cardID]; dup {
				return &ValidationError{Reason: "card placed more than once", ID: cardID}
			}
			cards[cardID] = struct{}{}
		}
	}
	return nil
}

// CheckReferences compares the arrangement against the persisted board. Each
// submitted list must belong to the board, and each submitted card must
// currently sit in one of the submitted lists (any of them, since the card may
// be the one being moved).
func CheckReferences(current Snapshot, desired Arrangement) error {
	persisted := make(map[string]PlacedList, len(current.Lists))
	for _, list := range current.Lists {
		persisted[list.ID] = list
	}

	reachable := make(map[string]struct{})
	for _, list := range desired.Lists {
		placed, ok := persisted[list.ID]
		if !ok {
			return &ReferenceError{Kind: KindList, ID: list.ID, BoardID: current.BoardID}
		}
		for _, card := range placed.Cards {
			reachable[card.ID] = struct{}{}
		}
	}

	for _, list := range desired.Lists {
		for _, cardID := range list.Cards {
			if _, ok := reachable[cardID]; !ok {
				return &ReferenceError{Kind: KindCard, ID: cardID, BoardID: current.BoardID}
			}
		}
	}
	return nil
}
