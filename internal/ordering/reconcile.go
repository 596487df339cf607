package ordering

// Reconcile computes the writes that make the persisted board match the
// desired arrangement. Submitted lists take positions 0..k-1 in submission
// order and are written only when their position changes. Submitted cards are
// always written with their index and owning list, so a cross-list move never
// depends on the old position happening to differ.
//
// The result leaves every scope of the board dense:
//   - lists the submission omits keep their relative order after the
//     submitted ones;
//   - cards of a submitted list that the submission does not mention keep
//     their relative order after the submitted cards of that list;
//   - cards of omitted lists are compacted in place.
//
// Reconcile does not check references; callers run CheckReferences first.
func Reconcile(current Snapshot, desired Arrangement) ([]Update, error) {
	if err := Validate(desired); err != nil {
		return nil, err
	}

	persisted := make(map[string]PlacedList, len(current.Lists))
	for _, list := range current.Lists {
		persisted[list.ID] = list
	}
	submittedLists := make(map[string]struct{}, len(desired.Lists))
	submittedCards := make(map[string]struct{})
	for _, list := range desired.Lists {
		submittedLists[list.ID] = struct{}{}
		for _, cardID := range list.Cards {
			submittedCards[cardID] = struct{}{}
		}
	}

	var updates []Update
	placeList := func(id string, position int) {
		if list, ok := persisted[id]; ok && list.Position == position {
			return
		}
		updates = append(updates, Update{Kind: KindList, ID: id, Position: position})
	}

	for i, list := range desired.Lists {
		placeList(list.ID, i)
	}
	next := len(desired.Lists)
	for _, list := range current.Lists {
		if _, ok := submittedLists[list.ID]; ok {
			continue
		}
		placeList(list.ID, next)
		next++
	}

	for _, list := range desired.Lists {
		for j, cardID := range list.Cards {
			updates = append(updates, Update{Kind: KindCard, ID: cardID, Position: j, ListID: list.ID})
		}
		position := len(list.Cards)
		for _, card := range persisted[list.ID].Cards {
			if _, moved := submittedCards[card.ID]; moved {
				continue
			}
			if card.Position != position {
				updates = append(updates, Update{Kind: KindCard, ID: card.ID, Position: position, ListID: list.ID})
			}
			position++
		}
	}

	for _, list := range current.Lists {
		if _, ok := submittedLists[list.ID]; ok {
			continue
		}
		position := 0
		for _, card := range list.Cards {
			if _, moved := submittedCards[card.ID]; moved {
				continue
			}
			if card.Position != position {
				updates = append(updates, Update{Kind: KindCard, ID: card.ID, Position: position, ListID: list.ID})
			}
			position++
		}
	}

	return updates, nil
}
