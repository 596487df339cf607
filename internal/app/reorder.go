package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"taskboard/api/internal/ordering"
	"taskboard/api/internal/search"
	"taskboard/api/internal/store"
)

type ReorderInput struct {
	BoardID string
	// Version, when set, must equal the board's persisted version.
	Version     *int64
	Arrangement ordering.Arrangement
}

type ReorderResult struct {
	Success bool  `json:"success"`
	Version int64 `json:"version"`
}

// Reorder persists a client-submitted arrangement of a board. Authorization
// and shape checks run before anything is written; the version bump,
// referential check, reconciliation and position writes share one
// transaction, so a rejected or failed reorder leaves the board as it was.
func (s *Service) Reorder(ctx context.Context, actor string, input ReorderInput) (ReorderResult, error) {
	boardID, err := s.resolveReorderBoard(ctx, input)
	if err != nil {
		return ReorderResult{}, err
	}

	board, err := s.store.GetBoard(ctx, boardID)
	if err != nil {
		return ReorderResult{}, notFoundAs(err, "Board")
	}
	if !ordering.Authorize(actor, ordering.Access{OwnerID: board.OwnerID, MemberIDs: board.MemberIDs}) {
		return ReorderResult{}, errForbidden()
	}
	if err := ordering.Validate(input.Arrangement); err != nil {
		return ReorderResult{}, err
	}

	var (
		version int64
		updates int
		moved   map[string]bool
	)
	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx store.DBTX) error {
		st := s.store.WithTx(tx)

		v, err := st.AdvanceBoardVersion(ctx, boardID, input.Version)
		if err != nil {
			return err
		}
		// Membership is read again under the board row lock.
		locked, err := st.GetBoard(ctx, boardID)
		if err != nil {
			return err
		}
		if !ordering.Authorize(actor, ordering.Access{OwnerID: locked.OwnerID, MemberIDs: locked.MemberIDs}) {
			return errForbidden()
		}
		current, err := st.LoadSnapshot(ctx, boardID)
		if err != nil {
			return err
		}
		if err := ordering.CheckReferences(current, input.Arrangement); err != nil {
			return err
		}
		planned, err := ordering.Reconcile(current, input.Arrangement)
		if err != nil {
			return err
		}
		if err := st.ApplyPositionUpdates(ctx, boardID, planned); err != nil {
			return fmt.Errorf("%w: %w", store.ErrCommit, err)
		}
		version, updates = v, len(planned)
		moved = movedCards(current, planned)
		return nil
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ReorderResult{}, errNotFound("Board")
		}
		return ReorderResult{}, err
	}

	log.Printf(`{"event":"board_reordered","board_id":"%s","actor":"%s","updates":%d,"version":%d}`,
		boardID, actor, updates, version)
	s.reindexMoved(ctx, boardID, moved)
	return ReorderResult{Success: true, Version: version}, nil
}

// movedCards returns the ids of cards whose list changes under updates.
func movedCards(current ordering.Snapshot, updates []ordering.Update) map[string]bool {
	listOf := make(map[string]string)
	for _, list := range current.Lists {
		for _, card := range list.Cards {
			listOf[card.ID] = list.ID
		}
	}
	moved := make(map[string]bool)
	for _, u := range updates {
		if u.Kind == ordering.KindCard && listOf[u.ID] != u.ListID {
			moved[u.ID] = true
		}
	}
	return moved
}

// reindexMoved pushes the new list of each moved card to the search index.
func (s *Service) reindexMoved(ctx context.Context, boardID string, moved map[string]bool) {
	if s.index == nil || len(moved) == 0 {
		return
	}
	lists, err := s.store.ListListsWithCards(ctx, boardID)
	if err != nil {
		log.Printf("search: load moved cards of board %s: %v", boardID, err)
		return
	}
	records := make([]search.CardRecord, 0, len(moved))
	for _, list := range lists {
		for _, card := range list.Cards {
			if moved[card.ID] {
				records = append(records, search.CardRecord{ID: card.ID, Title: card.Title, ListID: list.ID, BoardID: boardID})
			}
		}
	}
	go s.search.Reindex(records)
}

// resolveReorderBoard returns the explicit board id, or the board owning the
// first submitted list.
func (s *Service) resolveReorderBoard(ctx context.Context, input ReorderInput) (string, error) {
	if boardID := strings.TrimSpace(input.BoardID); boardID != "" {
		return boardID, nil
	}
	if len(input.Arrangement.Lists) == 0 || input.Arrangement.Lists[0].ID == "" {
		return "", &ordering.ValidationError{Reason: "boardId or at least one list is required"}
	}
	first := input.Arrangement.Lists[0].ID
	list, err := s.store.GetList(ctx, first)
	if errors.Is(err, store.ErrNotFound) {
		return "", domainError(http.StatusUnprocessableEntity, "REFERENTIAL_ERROR", "list "+first+" does not exist", map[string]any{
			"kind": ordering.KindList,
			"id":   first,
		})
	}
	if err != nil {
		return "", err
	}
	return list.BoardID, nil
}
