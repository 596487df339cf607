package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLStore is the relational store behind the API. The same methods run on
// the pool or, through WithTx, inside a unit of work.
type SQLStore struct {
	base    *sql.DB
	db      DBTX
	dialect Dialect
}

func NewSQLStore(db *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{base: db, db: db, dialect: dialect}
}

// WithTx returns a store whose statements run on tx.
func (s *SQLStore) WithTx(tx DBTX) *SQLStore {
	return &SQLStore{base: s.base, db: tx, dialect: s.dialect}
}

func (s *SQLStore) DB() *sql.DB {
	return s.base
}

func (s *SQLStore) Dialect() Dialect {
	return s.dialect
}

func (s *SQLStore) Ping(ctx context.Context) error {
	if err := s.base.PingContext(ctx); err != nil {
		return fmt.Errorf("ping db: %w", err)
	}
	return nil
}

func (s *SQLStore) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, rebind(s.dialect, query), args...)
}

func (s *SQLStore) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, rebind(s.dialect, query), args...)
}

func (s *SQLStore) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, rebind(s.dialect, query), args...)
}

func now() time.Time {
	return time.Now().UTC()
}

func nullable(id string) any {
	if id == "" {
		return nil
	}
	return id
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}

func expectOne(result sql.Result, what string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows: %w", what, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}

func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", what, err)
}

// Users

func (s *SQLStore) CreateUser(ctx context.Context, user User) (User, error) {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now()
	}
	_, err := s.exec(ctx, `
		INSERT INTO users (id, email, name, password_hash, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, user.ID, user.Email, user.Name, user.PasswordHash, user.CreatedAt)
	if isUniqueViolation(err) {
		return User{}, fmt.Errorf("create user: %w", ErrDuplicate)
	}
	if err != nil {
		return User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

func (s *SQLStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := s.queryRow(ctx, `
		SELECT id, email, name, password_hash, created_at FROM users WHERE email=?
	`, strings.ToLower(strings.TrimSpace(email))).Scan(&user.ID, &user.Email, &user.Name, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		return User{}, notFound(err, "get user by email")
	}
	return user, nil
}

func (s *SQLStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	var user User
	err := s.queryRow(ctx, `
		SELECT id, email, name, password_hash, created_at FROM users WHERE id=?
	`, userID).Scan(&user.ID, &user.Email, &user.Name, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		return User{}, notFound(err, "get user")
	}
	return user, nil
}

func (s *SQLStore) UpdateUserName(ctx context.Context, userID, name string) error {
	result, err := s.exec(ctx, `UPDATE users SET name=? WHERE id=?`, name, userID)
	if err != nil {
		return fmt.Errorf("update user name: %w", err)
	}
	return expectOne(result, "update user name")
}

func (s *SQLStore) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.query(ctx, `SELECT id, email, name, created_at FROM users ORDER BY name ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	items := make([]User, 0)
	for rows.Next() {
		var item User
		if err := rows.Scan(&item.ID, &item.Email, &item.Name, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return items, nil
}

// Sessions

func (s *SQLStore) SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	_, err := s.exec(ctx, `
		INSERT INTO refresh_sessions (token_hash, user_id, expires_at)
		VALUES (?, ?, ?)
		ON CONFLICT (token_hash) DO UPDATE SET user_id=excluded.user_id, expires_at=excluded.expires_at, revoked_at=NULL
	`, tokenHash, userID, expiresAt.UTC())
	if err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

func (s *SQLStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	_, err := s.exec(ctx, `UPDATE refresh_sessions SET revoked_at=? WHERE token_hash=?`, now(), tokenHash)
	if err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

// LookupRefreshSession returns the session's user while the session is
// neither revoked nor expired.
func (s *SQLStore) LookupRefreshSession(ctx context.Context, tokenHash string) (User, error) {
	var (
		user      User
		expiresAt time.Time
		revokedAt sql.NullTime
	)
	err := s.queryRow(ctx, `
		SELECT u.id, u.email, u.name, rs.expires_at, rs.revoked_at
		FROM refresh_sessions rs
		JOIN users u ON u.id = rs.user_id
		WHERE rs.token_hash = ?
	`, tokenHash).Scan(&user.ID, &user.Email, &user.Name, &expiresAt, &revokedAt)
	if err != nil {
		return User{}, notFound(err, "lookup refresh session")
	}
	if revokedAt.Valid || !expiresAt.After(now()) {
		return User{}, fmt.Errorf("lookup refresh session: %w", ErrNotFound)
	}
	return user, nil
}

func (s *SQLStore) RevokeAccessToken(ctx context.Context, jti string, exp time.Time) error {
	_, err := s.exec(ctx, `
		INSERT INTO revoked_access_tokens (jti, expires_at)
		VALUES (?, ?)
		ON CONFLICT (jti) DO NOTHING
	`, jti, exp.UTC())
	if err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}
	return nil
}

func (s *SQLStore) IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error) {
	var count int
	err := s.queryRow(ctx, `SELECT COUNT(*) FROM revoked_access_tokens WHERE jti=?`, jti).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return count > 0, nil
}

// Boards

func (s *SQLStore) InsertBoard(ctx context.Context, board Board) (Board, error) {
	ts := now()
	board.CreatedAt, board.UpdatedAt = ts, ts
	_, err := s.exec(ctx, `
		INSERT INTO boards (id, title, owner_id, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, board.ID, board.Title, board.OwnerID, board.Version, board.CreatedAt, board.UpdatedAt)
	if err != nil {
		return Board{}, fmt.Errorf("insert board: %w", err)
	}
	return board, nil
}

// GetBoard returns the board with the ids of its non-owner members.
func (s *SQLStore) GetBoard(ctx context.Context, boardID string) (Board, error) {
	var board Board
	err := s.queryRow(ctx, `
		SELECT id, title, owner_id, version, created_at, updated_at FROM boards WHERE id=?
	`, boardID).Scan(&board.ID, &board.Title, &board.OwnerID, &board.Version, &board.CreatedAt, &board.UpdatedAt)
	if err != nil {
		return Board{}, notFound(err, "get board")
	}

	rows, err := s.query(ctx, `SELECT user_id FROM board_members WHERE board_id=? ORDER BY created_at ASC, user_id ASC`, boardID)
	if err != nil {
		return Board{}, fmt.Errorf("list board member ids: %w", err)
	}
	defer rows.Close()

	board.MemberIDs = make([]string, 0)
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return Board{}, fmt.Errorf("scan board member id: %w", err)
		}
		board.MemberIDs = append(board.MemberIDs, userID)
	}
	if err := rows.Err(); err != nil {
		return Board{}, fmt.Errorf("iterate board member ids: %w", err)
	}
	return board, nil
}

func (s *SQLStore) ListBoardsForUser(ctx context.Context, userID string) ([]Board, error) {
	rows, err := s.query(ctx, `
		SELECT id, title, owner_id, version, created_at, updated_at
		FROM boards
		WHERE owner_id=? OR id IN (SELECT board_id FROM board_members WHERE user_id=?)
		ORDER BY created_at ASC, id ASC
	`, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("list boards: %w", err)
	}
	defer rows.Close()

	items := make([]Board, 0)
	for rows.Next() {
		var item Board
		if err := rows.Scan(&item.ID, &item.Title, &item.OwnerID, &item.Version, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan board: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate boards: %w", err)
	}
	return items, nil
}

func (s *SQLStore) UpdateBoardTitle(ctx context.Context, boardID, title string) error {
	result, err := s.exec(ctx, `UPDATE boards SET title=?, updated_at=? WHERE id=?`, title, now(), boardID)
	if err != nil {
		return fmt.Errorf("update board title: %w", err)
	}
	return expectOne(result, "update board title")
}

func (s *SQLStore) DeleteBoard(ctx context.Context, boardID string) error {
	result, err := s.exec(ctx, `DELETE FROM boards WHERE id=?`, boardID)
	if err != nil {
		return fmt.Errorf("delete board: %w", err)
	}
	return expectOne(result, "delete board")
}

func (s *SQLStore) AddBoardMember(ctx context.Context, boardID, userID string) error {
	_, err := s.exec(ctx, `INSERT INTO board_members (board_id, user_id, created_at) VALUES (?, ?, ?)`, boardID, userID, now())
	if isUniqueViolation(err) {
		return fmt.Errorf("add board member: %w", ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("add board member: %w", err)
	}
	return nil
}

func (s *SQLStore) RemoveBoardMember(ctx context.Context, boardID, userID string) error {
	result, err := s.exec(ctx, `DELETE FROM board_members WHERE board_id=? AND user_id=?`, boardID, userID)
	if err != nil {
		return fmt.Errorf("remove board member: %w", err)
	}
	return expectOne(result, "remove board member")
}

// ListBoardMembers returns the owner first, then members in join order.
func (s *SQLStore) ListBoardMembers(ctx context.Context, boardID string) ([]Member, error) {
	var owner Member
	err := s.queryRow(ctx, `
		SELECT u.id, u.name, u.email, b.created_at
		FROM boards b
		JOIN users u ON u.id = b.owner_id
		WHERE b.id = ?
	`, boardID).Scan(&owner.UserID, &owner.Name, &owner.Email, &owner.JoinedAt)
	if err != nil {
		return nil, notFound(err, "get board owner")
	}
	owner.IsOwner = true

	rows, err := s.query(ctx, `
		SELECT u.id, u.name, u.email, bm.created_at
		FROM board_members bm
		JOIN users u ON u.id = bm.user_id
		WHERE bm.board_id = ?
		ORDER BY bm.created_at ASC, u.id ASC
	`, boardID)
	if err != nil {
		return nil, fmt.Errorf("list board members: %w", err)
	}
	defer rows.Close()

	items := []Member{owner}
	for rows.Next() {
		var item Member
		if err := rows.Scan(&item.UserID, &item.Name, &item.Email, &item.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan board member: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate board members: %w", err)
	}
	return items, nil
}

// Lists

func (s *SQLStore) GetList(ctx context.Context, listID string) (List, error) {
	var item List
	err := s.queryRow(ctx, `
		SELECT id, board_id, title, position, created_at FROM lists WHERE id=?
	`, listID).Scan(&item.ID, &item.BoardID, &item.Title, &item.Position, &item.CreatedAt)
	if err != nil {
		return List{}, notFound(err, "get list")
	}
	return item, nil
}

// MaxListPosition returns nil when the board has no lists.
func (s *SQLStore) MaxListPosition(ctx context.Context, boardID string) (*int, error) {
	var max sql.NullInt64
	if err := s.queryRow(ctx, `SELECT MAX(position) FROM lists WHERE board_id=?`, boardID).Scan(&max); err != nil {
		return nil, fmt.Errorf("max list position: %w", err)
	}
	if !max.Valid {
		return nil, nil
	}
	v := int(max.Int64)
	return &v, nil
}

func (s *SQLStore) InsertList(ctx context.Context, list List) (List, error) {
	list.CreatedAt = now()
	_, err := s.exec(ctx, `
		INSERT INTO lists (id, board_id, title, position, created_at) VALUES (?, ?, ?, ?, ?)
	`, list.ID, list.BoardID, list.Title, list.Position, list.CreatedAt)
	if err != nil {
		return List{}, fmt.Errorf("insert list: %w", err)
	}
	return list, nil
}

func (s *SQLStore) UpdateListTitle(ctx context.Context, listID, title string) error {
	result, err := s.exec(ctx, `UPDATE lists SET title=? WHERE id=?`, title, listID)
	if err != nil {
		return fmt.Errorf("update list title: %w", err)
	}
	return expectOne(result, "update list title")
}

func (s *SQLStore) DeleteList(ctx context.Context, listID string) error {
	result, err := s.exec(ctx, `DELETE FROM lists WHERE id=?`, listID)
	if err != nil {
		return fmt.Errorf("delete list: %w", err)
	}
	return expectOne(result, "delete list")
}

// ListListsWithCards returns the board's lists in position order, each with
// its cards in position order, their assignee and labels.
func (s *SQLStore) ListListsWithCards(ctx context.Context, boardID string) ([]ListWithCards, error) {
	lists, err := s.listLists(ctx, boardID)
	if err != nil {
		return nil, err
	}
	cards, err := s.listBoardCards(ctx, boardID)
	if err != nil {
		return nil, err
	}
	labels, err := s.listBoardLabels(ctx, boardID)
	if err != nil {
		return nil, err
	}

	index := make(map[string]int, len(lists))
	for i := range lists {
		index[lists[i].ID] = i
	}
	for _, card := range cards {
		card.Labels = labels[card.ID]
		if card.Labels == nil {
			card.Labels = []Label{}
		}
		if i, ok := index[card.ListID]; ok {
			lists[i].Cards = append(lists[i].Cards, card)
		}
	}
	return lists, nil
}

func (s *SQLStore) listLists(ctx context.Context, boardID string) ([]ListWithCards, error) {
	rows, err := s.query(ctx, `
		SELECT id, board_id, title, position, created_at
		FROM lists
		WHERE board_id=?
		ORDER BY position ASC, id ASC
	`, boardID)
	if err != nil {
		return nil, fmt.Errorf("list lists: %w", err)
	}
	defer rows.Close()

	items := make([]ListWithCards, 0)
	for rows.Next() {
		var item ListWithCards
		if err := rows.Scan(&item.ID, &item.BoardID, &item.Title, &item.Position, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan list: %w", err)
		}
		item.Cards = make([]CardDetail, 0)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lists: %w", err)
	}
	return items, nil
}

func (s *SQLStore) listBoardCards(ctx context.Context, boardID string) ([]CardDetail, error) {
	rows, err := s.query(ctx, `
		SELECT c.id, c.list_id, c.title, c.position, c.created_at, u.id, u.name, u.email
		FROM cards c
		JOIN lists l ON l.id = c.list_id
		LEFT JOIN users u ON u.id = c.assigned_to_id
		WHERE l.board_id=?
		ORDER BY c.position ASC, c.id ASC
	`, boardID)
	if err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	defer rows.Close()

	items := make([]CardDetail, 0)
	for rows.Next() {
		var (
			item                                 CardDetail
			assigneeID, assigneeName, assigneeEm sql.NullString
		)
		if err := rows.Scan(&item.ID, &item.ListID, &item.Title, &item.Position, &item.CreatedAt, &assigneeID, &assigneeName, &assigneeEm); err != nil {
			return nil, fmt.Errorf("scan card: %w", err)
		}
		if assigneeID.Valid {
			item.AssignedToID = assigneeID.String
			item.Assignee = &Assignee{ID: assigneeID.String, Name: assigneeName.String, Email: assigneeEm.String}
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cards: %w", err)
	}
	return items, nil
}

func (s *SQLStore) listBoardLabels(ctx context.Context, boardID string) (map[string][]Label, error) {
	rows, err := s.query(ctx, `
		SELECT lb.id, lb.card_id, lb.name, lb.color, lb.created_at
		FROM labels lb
		JOIN cards c ON c.id = lb.card_id
		JOIN lists l ON l.id = c.list_id
		WHERE l.board_id=?
		ORDER BY lb.created_at ASC, lb.id ASC
	`, boardID)
	if err != nil {
		return nil, fmt.Errorf("list labels: %w", err)
	}
	defer rows.Close()

	byCard := make(map[string][]Label)
	for rows.Next() {
		var item Label
		if err := rows.Scan(&item.ID, &item.CardID, &item.Name, &item.Color, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan label: %w", err)
		}
		byCard[item.CardID] = append(byCard[item.CardID], item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate labels: %w", err)
	}
	return byCard, nil
}

// Cards

func (s *SQLStore) GetCard(ctx context.Context, cardID string) (CardLocation, error) {
	var (
		item     CardLocation
		assignee sql.NullString
	)
	err := s.queryRow(ctx, `
		SELECT c.id, c.list_id, c.title, c.position, c.assigned_to_id, c.created_at, l.board_id
		FROM cards c
		JOIN lists l ON l.id = c.list_id
		WHERE c.id=?
	`, cardID).Scan(&item.ID, &item.ListID, &item.Title, &item.Position, &assignee, &item.CreatedAt, &item.BoardID)
	if err != nil {
		return CardLocation{}, notFound(err, "get card")
	}
	item.AssignedToID = assignee.String
	return item, nil
}

// MaxCardPosition returns nil when the list has no cards.
func (s *SQLStore) MaxCardPosition(ctx context.Context, listID string) (*int, error) {
	var max sql.NullInt64
	if err := s.queryRow(ctx, `SELECT MAX(position) FROM cards WHERE list_id=?`, listID).Scan(&max); err != nil {
		return nil, fmt.Errorf("max card position: %w", err)
	}
	if !max.Valid {
		return nil, nil
	}
	v := int(max.Int64)
	return &v, nil
}

func (s *SQLStore) InsertCard(ctx context.Context, card Card) (Card, error) {
	card.CreatedAt = now()
	_, err := s.exec(ctx, `
		INSERT INTO cards (id, list_id, title, position, assigned_to_id, created_at) VALUES (?, ?, ?, ?, ?, ?)
	`, card.ID, card.ListID, card.Title, card.Position, nullable(card.AssignedToID), card.CreatedAt)
	if err != nil {
		return Card{}, fmt.Errorf("insert card: %w", err)
	}
	return card, nil
}

// UpdateCard writes the card's title and assignee. Position and list are
// owned by the arrangement and never change here.
func (s *SQLStore) UpdateCard(ctx context.Context, card Card) error {
	result, err := s.exec(ctx, `UPDATE cards SET title=?, assigned_to_id=? WHERE id=?`, card.Title, nullable(card.AssignedToID), card.ID)
	if err != nil {
		return fmt.Errorf("update card: %w", err)
	}
	return expectOne(result, "update card")
}

func (s *SQLStore) DeleteCard(ctx context.Context, cardID string) error {
	result, err := s.exec(ctx, `DELETE FROM cards WHERE id=?`, cardID)
	if err != nil {
		return fmt.Errorf("delete card: %w", err)
	}
	return expectOne(result, "delete card")
}

// SearchCards matches card titles of one board case-insensitively.
func (s *SQLStore) SearchCards(ctx context.Context, boardID, q string, limit, offset int) ([]CardHit, int, error) {
	if s.dialect == DialectSQLite {
		return s.searchCardsFolded(ctx, boardID, q, limit, offset)
	}
	pattern := "%" + escapeLike(strings.ToLower(strings.TrimSpace(q))) + "%"

	var total int
	if err := s.queryRow(ctx, `
		SELECT COUNT(*)
		FROM cards c
		JOIN lists l ON l.id = c.list_id
		WHERE l.board_id=? AND LOWER(c.title) LIKE ? ESCAPE '\'
	`, boardID, pattern).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count card matches: %w", err)
	}

	rows, err := s.query(ctx, `
		SELECT c.id, c.title, c.list_id, l.board_id
		FROM cards c
		JOIN lists l ON l.id = c.list_id
		WHERE l.board_id=? AND LOWER(c.title) LIKE ? ESCAPE '\'
		ORDER BY l.position ASC, c.position ASC
		LIMIT ? OFFSET ?
	`, boardID, pattern, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("search cards: %w", err)
	}
	defer rows.Close()

	items := make([]CardHit, 0)
	for rows.Next() {
		var item CardHit
		if err := rows.Scan(&item.ID, &item.Title, &item.ListID, &item.BoardID); err != nil {
			return nil, 0, fmt.Errorf("scan card match: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate card matches: %w", err)
	}
	return items, total, nil
}

// searchCardsFolded filters titles in Go. SQLite's LOWER only folds ASCII,
// so "École" would not match "école" in SQL.
func (s *SQLStore) searchCardsFolded(ctx context.Context, boardID, q string, limit, offset int) ([]CardHit, int, error) {
	needle := strings.ToLower(strings.TrimSpace(q))
	rows, err := s.query(ctx, `
		SELECT c.id, c.title, c.list_id, l.board_id
		FROM cards c
		JOIN lists l ON l.id = c.list_id
		WHERE l.board_id=?
		ORDER BY l.position ASC, c.position ASC
	`, boardID)
	if err != nil {
		return nil, 0, fmt.Errorf("search cards: %w", err)
	}
	defer rows.Close()

	matches := make([]CardHit, 0)
	for rows.Next() {
		var item CardHit
		if err := rows.Scan(&item.ID, &item.Title, &item.ListID, &item.BoardID); err != nil {
			return nil, 0, fmt.Errorf("scan card match: %w", err)
		}
		if strings.Contains(strings.ToLower(item.Title), needle) {
			matches = append(matches, item)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate card matches: %w", err)
	}

	total := len(matches)
	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return []CardHit{}, total, nil
	}
	end := total
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return matches[offset:end], total, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// Labels

func (s *SQLStore) InsertLabel(ctx context.Context, label Label) (Label, error) {
	label.CreatedAt = now()
	_, err := s.exec(ctx, `
		INSERT INTO labels (id, card_id, name, color, created_at) VALUES (?, ?, ?, ?, ?)
	`, label.ID, label.CardID, label.Name, label.Color, label.CreatedAt)
	if err != nil {
		return Label{}, fmt.Errorf("insert label: %w", err)
	}
	return label, nil
}

// GetLabel returns the label and the id of the board it belongs to.
func (s *SQLStore) GetLabel(ctx context.Context, labelID string) (Label, string, error) {
	var (
		item    Label
		boardID string
	)
	err := s.queryRow(ctx, `
		SELECT lb.id, lb.card_id, lb.name, lb.color, lb.created_at, l.board_id
		FROM labels lb
		JOIN cards c ON c.id = lb.card_id
		JOIN lists l ON l.id = c.list_id
		WHERE lb.id=?
	`, labelID).Scan(&item.ID, &item.CardID, &item.Name, &item.Color, &item.CreatedAt, &boardID)
	if err != nil {
		return Label{}, "", notFound(err, "get label")
	}
	return item, boardID, nil
}

func (s *SQLStore) DeleteLabel(ctx context.Context, labelID string) error {
	result, err := s.exec(ctx, `DELETE FROM labels WHERE id=?`, labelID)
	if err != nil {
		return fmt.Errorf("delete label: %w", err)
	}
	return expectOne(result, "delete label")
}

// Comments

func (s *SQLStore) InsertComment(ctx context.Context, comment Comment) (Comment, error) {
	comment.CreatedAt = now()
	_, err := s.exec(ctx, `
		INSERT INTO comments (id, card_id, user_id, content, created_at) VALUES (?, ?, ?, ?, ?)
	`, comment.ID, comment.CardID, comment.UserID, comment.Content, comment.CreatedAt)
	if err != nil {
		return Comment{}, fmt.Errorf("insert comment: %w", err)
	}
	return comment, nil
}

// GetComment returns the comment and the id of the board it belongs to.
func (s *SQLStore) GetComment(ctx context.Context, commentID string) (Comment, string, error) {
	var (
		item    Comment
		boardID string
	)
	err := s.queryRow(ctx, `
		SELECT cm.id, cm.card_id, cm.user_id, u.name, cm.content, cm.created_at, l.board_id
		FROM comments cm
		JOIN users u ON u.id = cm.user_id
		JOIN cards c ON c.id = cm.card_id
		JOIN lists l ON l.id = c.list_id
		WHERE cm.id=?
	`, commentID).Scan(&item.ID, &item.CardID, &item.UserID, &item.AuthorName, &item.Content, &item.CreatedAt, &boardID)
	if err != nil {
		return Comment{}, "", notFound(err, "get comment")
	}
	return item, boardID, nil
}

func (s *SQLStore) ListComments(ctx context.Context, cardID string) ([]Comment, error) {
	rows, err := s.query(ctx, `
		SELECT cm.id, cm.card_id, cm.user_id, u.name, cm.content, cm.created_at
		FROM comments cm
		JOIN users u ON u.id = cm.user_id
		WHERE cm.card_id=?
		ORDER BY cm.created_at ASC, cm.id ASC
	`, cardID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	items := make([]Comment, 0)
	for rows.Next() {
		var item Comment
		if err := rows.Scan(&item.ID, &item.CardID, &item.UserID, &item.AuthorName, &item.Content, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}
	return items, nil
}

func (s *SQLStore) DeleteComment(ctx context.Context, commentID string) error {
	result, err := s.exec(ctx, `DELETE FROM comments WHERE id=?`, commentID)
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	return expectOne(result, "delete comment")
}
