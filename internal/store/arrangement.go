package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"taskboard/api/internal/ordering"
)

// AdvanceBoardVersion bumps the board's version and returns the new value.
// Inside a transaction the UPDATE holds the board row until commit, so
// structural writes to one board are serialized. When expected is set and
// differs from the persisted version nothing is written and ErrStaleVersion
// is returned.
func (s *SQLStore) AdvanceBoardVersion(ctx context.Context, boardID string, expected *int64) (int64, error) {
	var (
		version int64
		err     error
	)
	if expected == nil {
		err = s.queryRow(ctx, `
			UPDATE boards SET version = version + 1, updated_at = ? WHERE id = ? RETURNING version
		`, now(), boardID).Scan(&version)
	} else {
		err = s.queryRow(ctx, `
			UPDATE boards SET version = version + 1, updated_at = ? WHERE id = ? AND version = ? RETURNING version
		`, now(), boardID, *expected).Scan(&version)
	}
	if err == nil {
		return version, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("advance board version: %w", err)
	}
	if expected == nil {
		return 0, fmt.Errorf("advance board version: %w", ErrNotFound)
	}

	var count int
	if err := s.queryRow(ctx, `SELECT COUNT(*) FROM boards WHERE id = ?`, boardID).Scan(&count); err != nil {
		return 0, fmt.Errorf("check board: %w", err)
	}
	if count == 0 {
		return 0, fmt.Errorf("advance board version: %w", ErrNotFound)
	}
	return 0, fmt.Errorf("advance board version: %w", ErrStaleVersion)
}

// LoadSnapshot reads the persisted arrangement of a board: lists and their
// cards in position order, ties broken by id.
func (s *SQLStore) LoadSnapshot(ctx context.Context, boardID string) (ordering.Snapshot, error) {
	snapshot := ordering.Snapshot{BoardID: boardID}

	rows, err := s.query(ctx, `
		SELECT id, position FROM lists WHERE board_id = ? ORDER BY position ASC, id ASC
	`, boardID)
	if err != nil {
		return ordering.Snapshot{}, fmt.Errorf("load lists: %w", err)
	}
	index := make(map[string]int)
	for rows.Next() {
		var list ordering.PlacedList
		if err := rows.Scan(&list.ID, &list.Position); err != nil {
			rows.Close()
			return ordering.Snapshot{}, fmt.Errorf("scan list: %w", err)
		}
		index[list.ID] = len(snapshot.Lists)
		snapshot.Lists = append(snapshot.Lists, list)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return ordering.Snapshot{}, fmt.Errorf("iterate lists: %w", err)
	}
	rows.Close()

	rows, err = s.query(ctx, `
		SELECT c.id, c.list_id, c.position
		FROM cards c
		JOIN lists l ON l.id = c.list_id
		WHERE l.board_id = ?
		ORDER BY c.position ASC, c.id ASC
	`, boardID)
	if err != nil {
		return ordering.Snapshot{}, fmt.Errorf("load cards: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			card   ordering.PlacedCard
			listID string
		)
		if err := rows.Scan(&card.ID, &listID, &card.Position); err != nil {
			return ordering.Snapshot{}, fmt.Errorf("scan card: %w", err)
		}
		if i, ok := index[listID]; ok {
			snapshot.Lists[i].Cards = append(snapshot.Lists[i].Cards, card)
		}
	}
	if err := rows.Err(); err != nil {
		return ordering.Snapshot{}, fmt.Errorf("iterate cards: %w", err)
	}
	return snapshot, nil
}

// ApplyPositionUpdates writes reconciled positions. Every statement is scoped
// to the board, so an update can never touch another board's rows; a
// statement that matches no row fails with ErrRowMissing. Callers run it in
// a unit of work so a failure leaves nothing applied.
func (s *SQLStore) ApplyPositionUpdates(ctx context.Context, boardID string, updates []ordering.Update) error {
	for _, u := range updates {
		var (
			result sql.Result
			err    error
		)
		switch u.Kind {
		case ordering.KindList:
			result, err = s.exec(ctx, `
				UPDATE lists SET position = ? WHERE id = ? AND board_id = ?
			`, u.Position, u.ID, boardID)
		case ordering.KindCard:
			result, err = s.exec(ctx, `
				UPDATE cards SET position = ?, list_id = ?
				WHERE id = ? AND list_id IN (SELECT id FROM lists WHERE board_id = ?)
			`, u.Position, u.ListID, u.ID, boardID)
		default:
			return fmt.Errorf("apply position update: unknown kind %q", u.Kind)
		}
		if err != nil {
			return fmt.Errorf("apply %s %s position: %w", u.Kind, u.ID, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("apply %s %s position rows: %w", u.Kind, u.ID, err)
		}
		if affected != 1 {
			return fmt.Errorf("apply %s %s position: %w", u.Kind, u.ID, ErrRowMissing)
		}
	}
	return nil
}
