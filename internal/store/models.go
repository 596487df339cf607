package store

import (
	"errors"
	"time"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrStaleVersion = errors.New("board version is stale")
	ErrRowMissing   = errors.New("position update matched no row")
	ErrCommit       = errors.New("commit transaction")
	ErrDuplicate    = errors.New("already exists")
)

type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	CreatedAt    time.Time
}

type Board struct {
	ID        string
	Title     string
	OwnerID   string
	Version   int64
	MemberIDs []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Member struct {
	UserID   string
	Name     string
	Email    string
	IsOwner  bool
	JoinedAt time.Time
}

type List struct {
	ID        string
	BoardID   string
	Title     string
	Position  int
	CreatedAt time.Time
}

type Card struct {
	ID           string
	ListID       string
	Title        string
	Position     int
	AssignedToID string
	CreatedAt    time.Time
}

// CardLocation is a card together with the board it belongs to.
type CardLocation struct {
	Card
	BoardID string
}

type Assignee struct {
	ID    string
	Name  string
	Email string
}

type CardDetail struct {
	Card
	Assignee *Assignee
	Labels   []Label
}

// ListWithCards is one list of a board with its cards in position order.
type ListWithCards struct {
	List
	Cards []CardDetail
}

type Label struct {
	ID        string
	CardID    string
	Name      string
	Color     string
	CreatedAt time.Time
}

type Comment struct {
	ID         string
	CardID     string
	UserID     string
	AuthorName string
	Content    string
	CreatedAt  time.Time
}

type CardHit struct {
	ID      string
	Title   string
	ListID  string
	BoardID string
}
