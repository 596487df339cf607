package app

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"taskboard/api/internal/auth"
	"taskboard/api/internal/authpw"
	"taskboard/api/internal/config"
	"taskboard/api/internal/email"
	"taskboard/api/internal/export"
	"taskboard/api/internal/ordering"
	"taskboard/api/internal/rbac"
	"taskboard/api/internal/search"
	"taskboard/api/internal/store"
	"taskboard/api/internal/util"
)

type Session struct {
	Token     string
	UserID    string
	UserName  string
	JTI       string
	ExpiresAt time.Time
}

// SessionStore keeps refresh sessions and the access-token deny list. The SQL
// store and the Redis store both satisfy it.
type SessionStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
	RevokeAccessToken(ctx context.Context, jti string, exp time.Time) error
	IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error)
}

type Service struct {
	cfg        config.Config
	store      *store.SQLStore
	uow        store.UnitOfWork
	sessions   SessionStore
	tokens     *auth.Issuer
	passwords  *authpw.Service
	search     *search.Service
	export     *export.Service
	refreshTTL time.Duration
	now        func() time.Time

	index        search.Index
	objects      export.ObjectStore
	mailer       Mailer
	passwordCost int
}

// Mailer delivers membership notifications. Failures are logged, never
// returned to the caller.
type Mailer interface {
	SendBoardInvite(invite email.Invite) error
}

type Option func(*Service)

// WithUnitOfWork replaces the transaction runner used for board mutations.
func WithUnitOfWork(uow store.UnitOfWork) Option {
	return func(s *Service) { s.uow = uow }
}

func WithSessionStore(sessions SessionStore) Option {
	return func(s *Service) { s.sessions = sessions }
}

func WithSearchIndex(index search.Index) Option {
	return func(s *Service) { s.index = index }
}

func WithObjectStore(objects export.ObjectStore) Option {
	return func(s *Service) { s.objects = objects }
}

func WithMailer(mailer Mailer) Option {
	return func(s *Service) { s.mailer = mailer }
}

func WithPasswordCost(cost int) Option {
	return func(s *Service) { s.passwordCost = cost }
}

func New(cfg config.Config, data *store.SQLStore, opts ...Option) *Service {
	accessTTL := cfg.AccessTTL
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	refreshTTL := cfg.RefreshTTL
	if refreshTTL <= 0 {
		refreshTTL = 30 * 24 * time.Hour
	}

	s := &Service{
		cfg:        cfg,
		store:      data,
		uow:        store.NewUnitOfWork(data.DB()),
		sessions:   data,
		tokens:     auth.NewIssuer(cfg.JWTSecret, accessTTL),
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.passwords = authpw.NewService(data)
	if s.passwordCost > 0 {
		s.passwords.WithCost(s.passwordCost)
	}
	s.search = search.NewService(s.index, search.NewSQLSearch(data))
	s.export = export.NewService(data, s.objects)
	return s
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Views

type UserView struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name"`
}

type AuthResult struct {
	Token        string   `json:"token"`
	RefreshToken string   `json:"refreshToken"`
	User         UserView `json:"user"`
}

type BoardSummary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	OwnerID   string    `json:"ownerId"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type BoardView struct {
	BoardSummary
	Lists   []ListView   `json:"lists"`
	Members []MemberView `json:"members"`
}

type MemberView struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	Role     rbac.Role `json:"role"`
	JoinedAt time.Time `json:"joinedAt"`
}

type ListView struct {
	ID        string     `json:"id"`
	BoardID   string     `json:"boardId"`
	Title     string     `json:"title"`
	Position  int        `json:"position"`
	Cards     []CardView `json:"cards"`
	CreatedAt time.Time  `json:"createdAt"`
}

type CardView struct {
	ID           string      `json:"id"`
	ListID       string      `json:"listId"`
	Title        string      `json:"title"`
	Position     int         `json:"position"`
	AssignedToID *string     `json:"assignedToId"`
	Assignee     *UserView   `json:"assignee"`
	Labels       []LabelView `json:"labels"`
	CreatedAt    time.Time   `json:"createdAt"`
}

type LabelView struct {
	ID     string `json:"id"`
	CardID string `json:"cardId"`
	Name   string `json:"name"`
	Color  string `json:"color"`
}

type CommentView struct {
	ID        string    `json:"id"`
	CardID    string    `json:"cardId"`
	Content   string    `json:"content"`
	Author    UserView  `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
}

func userView(u store.User) UserView {
	return UserView{ID: u.ID, Email: u.Email, Name: u.Name}
}

func boardSummary(b store.Board) BoardSummary {
	return BoardSummary{
		ID:        b.ID,
		Title:     b.Title,
		OwnerID:   b.OwnerID,
		Version:   b.Version,
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
	}
}

func memberViews(members []store.Member) []MemberView {
	items := make([]MemberView, 0, len(members))
	for _, m := range members {
		role := rbac.RoleMember
		if m.IsOwner {
			role = rbac.RoleOwner
		}
		items = append(items, MemberView{ID: m.UserID, Name: m.Name, Email: m.Email, Role: role, JoinedAt: m.JoinedAt})
	}
	return items
}

func listView(l store.ListWithCards) ListView {
	cards := make([]CardView, 0, len(l.Cards))
	for _, c := range l.Cards {
		cards = append(cards, cardView(c))
	}
	return ListView{
		ID:        l.ID,
		BoardID:   l.BoardID,
		Title:     l.Title,
		Position:  l.Position,
		Cards:     cards,
		CreatedAt: l.CreatedAt,
	}
}

func cardView(c store.CardDetail) CardView {
	view := CardView{
		ID:        c.ID,
		ListID:    c.ListID,
		Title:     c.Title,
		Position:  c.Position,
		Labels:    make([]LabelView, 0, len(c.Labels)),
		CreatedAt: c.CreatedAt,
	}
	if c.AssignedToID != "" {
		id := c.AssignedToID
		view.AssignedToID = &id
	}
	if c.Assignee != nil {
		view.Assignee = &UserView{ID: c.Assignee.ID, Email: c.Assignee.Email, Name: c.Assignee.Name}
	}
	for _, l := range c.Labels {
		view.Labels = append(view.Labels, labelView(l))
	}
	return view
}

func labelView(l store.Label) LabelView {
	return LabelView{ID: l.ID, CardID: l.CardID, Name: l.Name, Color: l.Color}
}

func commentView(c store.Comment) CommentView {
	return CommentView{
		ID:        c.ID,
		CardID:    c.CardID,
		Content:   c.Content,
		Author:    UserView{ID: c.UserID, Name: c.AuthorName},
		CreatedAt: c.CreatedAt,
	}
}

// Authentication

func (s *Service) SignUp(ctx context.Context, email, password, name string) (AuthResult, error) {
	user, err := s.passwords.SignUp(ctx, authpw.SignUpRequest{Email: email, Password: password, Name: name})
	if err != nil {
		return AuthResult{}, mapAuthError(err)
	}
	return s.issueSession(ctx, user)
}

func (s *Service) Login(ctx context.Context, email, password string) (AuthResult, error) {
	user, err := s.passwords.SignIn(ctx, authpw.SignInRequest{Email: email, Password: password})
	if err != nil {
		return AuthResult{}, mapAuthError(err)
	}
	return s.issueSession(ctx, user)
}

func mapAuthError(err error) error {
	switch {
	case errors.Is(err, authpw.ErrInvalidCredentials):
		return domainError(http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid credentials", nil)
	case errors.Is(err, authpw.ErrUserExists):
		return domainError(http.StatusBadRequest, "USER_EXISTS", "User already exists", nil)
	case errors.Is(err, authpw.ErrMissingCredentials),
		errors.Is(err, authpw.ErrInvalidEmail),
		errors.Is(err, authpw.ErrWeakPassword):
		return errValidation(err.Error())
	default:
		return err
	}
}

// Refresh exchanges a refresh token for a new session. The presented token is
// revoked, so each refresh token works once.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (AuthResult, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return AuthResult{}, errValidation("refreshToken is required")
	}
	invalid := domainError(http.StatusUnauthorized, "UNAUTHORIZED", "Invalid refresh token", nil)

	tokenHash := auth.HashToken(refreshToken)
	owner, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if errors.Is(err, store.ErrNotFound) {
		return AuthResult{}, invalid
	}
	if err != nil {
		return AuthResult{}, err
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return AuthResult{}, err
	}
	user, err := s.store.GetUserByID(ctx, owner.ID)
	if errors.Is(err, store.ErrNotFound) {
		return AuthResult{}, invalid
	}
	if err != nil {
		return AuthResult{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (AuthResult, error) {
	token, _, err := s.tokens.Issue(user.ID, user.Name, util.NewID("jti"))
	if err != nil {
		return AuthResult{}, err
	}
	refresh, err := auth.NewRefreshToken()
	if err != nil {
		return AuthResult{}, err
	}
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user.ID, s.now().Add(s.refreshTTL)); err != nil {
		return AuthResult{}, err
	}
	return AuthResult{Token: token, RefreshToken: refresh, User: userView(user)}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return Session{}, err
	}
	revoked, err := s.sessions.IsAccessTokenRevoked(ctx, claims.JTI)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, auth.ErrInvalidToken
	}

	user, err := s.store.GetUserByID(ctx, claims.Sub)
	if errors.Is(err, store.ErrNotFound) {
		return Session{}, auth.ErrInvalidToken
	}
	if err != nil {
		return Session{}, err
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.Name,
		JTI:       claims.JTI,
		ExpiresAt: claims.ExpiresAt(),
	}, nil
}

func (s *Service) Logout(ctx context.Context, session Session, refreshToken string) error {
	if session.JTI != "" {
		if err := s.sessions.RevokeAccessToken(ctx, session.JTI, session.ExpiresAt); err != nil {
			return err
		}
	}
	if refreshToken != "" {
		if err := s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) Me(ctx context.Context, userID string) (UserView, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return UserView{}, notFoundAs(err, "User")
	}
	return userView(user), nil
}

func (s *Service) UpdateMe(ctx context.Context, userID, name string) (UserView, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return UserView{}, errValidation("name is required")
	}
	if err := s.store.UpdateUserName(ctx, userID, name); err != nil {
		return UserView{}, notFoundAs(err, "User")
	}
	return s.Me(ctx, userID)
}

func (s *Service) ListUsers(ctx context.Context) ([]UserView, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]UserView, 0, len(users))
	for _, u := range users {
		items = append(items, userView(u))
	}
	return items, nil
}

// notFoundAs turns a store miss into a 404 naming what was missing.
func notFoundAs(err error, what string) error {
	if errors.Is(err, store.ErrNotFound) {
		return errNotFound(what)
	}
	return err
}

// authorizeBoard loads the board and checks the actor's role on it.
func (s *Service) authorizeBoard(ctx context.Context, actor, boardID string, action rbac.Action) (store.Board, error) {
	board, err := s.store.GetBoard(ctx, boardID)
	if err != nil {
		return store.Board{}, notFoundAs(err, "Board")
	}
	if !rbac.Can(rbac.RoleFor(actor, board.OwnerID, board.MemberIDs), action) {
		return store.Board{}, errForbidden()
	}
	return board, nil
}

// withinBoardTx runs fn in one transaction after advancing the board's
// version, which also locks the board row until commit.
func (s *Service) withinBoardTx(ctx context.Context, boardID string, fn func(ctx context.Context, st *store.SQLStore) error) (int64, error) {
	var version int64
	err := s.uow.WithinTx(ctx, func(ctx context.Context, tx store.DBTX) error {
		st := s.store.WithTx(tx)
		v, err := st.AdvanceBoardVersion(ctx, boardID, nil)
		if err != nil {
			return err
		}
		version = v
		return fn(ctx, st)
	})
	return version, err
}

// Boards

func (s *Service) ListBoards(ctx context.Context, actor string) ([]BoardSummary, error) {
	boards, err := s.store.ListBoardsForUser(ctx, actor)
	if err != nil {
		return nil, err
	}
	items := make([]BoardSummary, 0, len(boards))
	for _, b := range boards {
		items = append(items, boardSummary(b))
	}
	return items, nil
}

func (s *Service) CreateBoard(ctx context.Context, actor, title string) (BoardSummary, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return BoardSummary{}, errValidation("title is required")
	}
	board, err := s.store.InsertBoard(ctx, store.Board{ID: util.NewID("brd"), Title: title, OwnerID: actor})
	if err != nil {
		return BoardSummary{}, err
	}
	return boardSummary(board), nil
}

func (s *Service) GetBoard(ctx context.Context, actor, boardID string) (BoardView, error) {
	board, err := s.authorizeBoard(ctx, actor, boardID, rbac.ActionRead)
	if err != nil {
		return BoardView{}, err
	}
	lists, err := s.store.ListListsWithCards(ctx, boardID)
	if err != nil {
		return BoardView{}, err
	}
	members, err := s.store.ListBoardMembers(ctx, boardID)
	if err != nil {
		return BoardView{}, err
	}

	view := BoardView{
		BoardSummary: boardSummary(board),
		Lists:        make([]ListView, 0, len(lists)),
		Members:      memberViews(members),
	}
	for _, l := range lists {
		view.Lists = append(view.Lists, listView(l))
	}
	return view, nil
}

func (s *Service) UpdateBoard(ctx context.Context, actor, boardID, title string) (BoardSummary, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return BoardSummary{}, errValidation("title is required")
	}
	if _, err := s.authorizeBoard(ctx, actor, boardID, rbac.ActionManage); err != nil {
		return BoardSummary{}, err
	}
	if err := s.store.UpdateBoardTitle(ctx, boardID, title); err != nil {
		return BoardSummary{}, notFoundAs(err, "Board")
	}
	board, err := s.store.GetBoard(ctx, boardID)
	if err != nil {
		return BoardSummary{}, notFoundAs(err, "Board")
	}
	return boardSummary(board), nil
}

func (s *Service) DeleteBoard(ctx context.Context, actor, boardID string) error {
	if _, err := s.authorizeBoard(ctx, actor, boardID, rbac.ActionManage); err != nil {
		return err
	}
	cardIDs, err := s.boardCardIDs(ctx, boardID, "")
	if err != nil {
		return err
	}
	if err := s.store.DeleteBoard(ctx, boardID); err != nil {
		return notFoundAs(err, "Board")
	}
	for _, id := range cardIDs {
		s.search.DeleteCard(id)
	}
	return nil
}

// boardCardIDs lists the ids of the board's cards, limited to one list when
// listID is set.
func (s *Service) boardCardIDs(ctx context.Context, boardID, listID string) ([]string, error) {
	lists, err := s.store.ListListsWithCards(ctx, boardID)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, l := range lists {
		if listID != "" && l.ID != listID {
			continue
		}
		for _, c := range l.Cards {
			ids = append(ids, c.ID)
		}
	}
	return ids, nil
}

func (s *Service) ListMembers(ctx context.Context, actor, boardID string) ([]MemberView, error) {
	if _, err := s.authorizeBoard(ctx, actor, boardID, rbac.ActionRead); err != nil {
		return nil, err
	}
	members, err := s.store.ListBoardMembers(ctx, boardID)
	if err != nil {
		return nil, err
	}
	return memberViews(members), nil
}

func (s *Service) AddMember(ctx context.Context, actor, boardID, userID string) ([]MemberView, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, errValidation("userId is required")
	}
	board, err := s.authorizeBoard(ctx, actor, boardID, rbac.ActionManage)
	if err != nil {
		return nil, err
	}
	alreadyMember := domainError(http.StatusConflict, "ALREADY_MEMBER", "User is already a member of this board", nil)
	if userID == board.OwnerID {
		return nil, alreadyMember
	}
	member, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, notFoundAs(err, "User")
	}
	if err := s.store.AddBoardMember(ctx, boardID, userID); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, alreadyMember
		}
		return nil, err
	}
	s.notifyMemberAdded(ctx, actor, board, member)
	return s.ListMembers(ctx, actor, boardID)
}

func (s *Service) notifyMemberAdded(ctx context.Context, actor string, board store.Board, member store.User) {
	if s.mailer == nil {
		return
	}
	inviter := actor
	if u, err := s.store.GetUserByID(ctx, actor); err == nil {
		inviter = u.Name
	}
	err := s.mailer.SendBoardInvite(email.Invite{
		To:          member.Email,
		MemberName:  member.Name,
		InviterName: inviter,
		BoardID:     board.ID,
		BoardTitle:  board.Title,
	})
	if err != nil {
		log.Printf("member invite email failed board=%s user=%s: %v", board.ID, member.ID, err)
	}
}

func (s *Service) RemoveMember(ctx context.Context, actor, boardID, userID string) error {
	if _, err := s.authorizeBoard(ctx, actor, boardID, rbac.ActionManage); err != nil {
		return err
	}
	if err := s.store.RemoveBoardMember(ctx, boardID, userID); err != nil {
		return notFoundAs(err, "Member")
	}
	return nil
}

// Lists

func (s *Service) ListLists(ctx context.Context, actor, boardID string) ([]ListView, error) {
	if strings.TrimSpace(boardID) == "" {
		return nil, errValidation("boardId is required")
	}
	if _, err := s.authorizeBoard(ctx, actor, boardID, rbac.ActionRead); err != nil {
		return nil, err
	}
	lists, err := s.store.ListListsWithCards(ctx, boardID)
	if err != nil {
		return nil, err
	}
	items := make([]ListView, 0, len(lists))
	for _, l := range lists {
		items = append(items, listView(l))
	}
	return items, nil
}

// CreateList appends a list to the board.
func (s *Service) CreateList(ctx context.Context, actor, boardID, title string) (ListView, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return ListView{}, errValidation("title is required")
	}
	if strings.TrimSpace(boardID) == "" {
		return ListView{}, errValidation("boardId is required")
	}
	if _, err := s.authorizeBoard(ctx, actor, boardID, rbac.ActionWrite); err != nil {
		return ListView{}, err
	}

	var created store.List
	_, err := s.withinBoardTx(ctx, boardID, func(ctx context.Context, st *store.SQLStore) error {
		top, err := st.MaxListPosition(ctx, boardID)
		if err != nil {
			return err
		}
		created, err = st.InsertList(ctx, store.List{
			ID:       util.NewID("lst"),
			BoardID:  boardID,
			Title:    title,
			Position: ordering.Allocate(top),
		})
		return err
	})
	if err != nil {
		return ListView{}, err
	}
	return listView(store.ListWithCards{List: created}), nil
}

func (s *Service) UpdateList(ctx context.Context, actor, listID, title string) (ListView, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return ListView{}, errValidation("title is required")
	}
	list, err := s.store.GetList(ctx, listID)
	if err != nil {
		return ListView{}, notFoundAs(err, "List")
	}
	if _, err := s.authorizeBoard(ctx, actor, list.BoardID, rbac.ActionWrite); err != nil {
		return ListView{}, err
	}
	if err := s.store.UpdateListTitle(ctx, listID, title); err != nil {
		return ListView{}, notFoundAs(err, "List")
	}
	return s.findList(ctx, list.BoardID, listID)
}

func (s *Service) findList(ctx context.Context, boardID, listID string) (ListView, error) {
	lists, err := s.store.ListListsWithCards(ctx, boardID)
	if err != nil {
		return ListView{}, err
	}
	for _, l := range lists {
		if l.ID == listID {
			return listView(l), nil
		}
	}
	return ListView{}, errNotFound("List")
}

// DeleteList removes the list and its cards. Sibling positions are left
// with a gap until the next reorder.
func (s *Service) DeleteList(ctx context.Context, actor, listID string) error {
	list, err := s.store.GetList(ctx, listID)
	if err != nil {
		return notFoundAs(err, "List")
	}
	if _, err := s.authorizeBoard(ctx, actor, list.BoardID, rbac.ActionWrite); err != nil {
		return err
	}
	cardIDs, err := s.boardCardIDs(ctx, list.BoardID, listID)
	if err != nil {
		return err
	}
	if _, err := s.withinBoardTx(ctx, list.BoardID, func(ctx context.Context, st *store.SQLStore) error {
		return notFoundAs(st.DeleteList(ctx, listID), "List")
	}); err != nil {
		return err
	}
	for _, id := range cardIDs {
		s.search.DeleteCard(id)
	}
	return nil
}

// Cards

type CreateCardInput struct {
	ListID       string
	Title        string
	AssignedToID string
}

// UpdateCardInput carries optional fields. A nil field is left unchanged; an
// AssignedToID pointing at "" clears the assignee.
type UpdateCardInput struct {
	Title        *string
	AssignedToID *string
}

func checkAssignee(board store.Board, assignee string) error {
	if assignee == "" {
		return nil
	}
	if rbac.RoleFor(assignee, board.OwnerID, board.MemberIDs) == rbac.RoleNone {
		return domainError(http.StatusBadRequest, "INVALID_ASSIGNEE", "Assignee must be a member of the board", nil)
	}
	return nil
}

// CreateCard appends a card to the end of its list.
func (s *Service) CreateCard(ctx context.Context, actor string, input CreateCardInput) (CardView, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return CardView{}, errValidation("title is required")
	}
	if strings.TrimSpace(input.ListID) == "" {
		return CardView{}, errValidation("listId is required")
	}
	list, err := s.store.GetList(ctx, input.ListID)
	if err != nil {
		return CardView{}, notFoundAs(err, "List")
	}
	board, err := s.authorizeBoard(ctx, actor, list.BoardID, rbac.ActionWrite)
	if err != nil {
		return CardView{}, err
	}
	assignee := strings.TrimSpace(input.AssignedToID)
	if err := checkAssignee(board, assignee); err != nil {
		return CardView{}, err
	}

	var created store.Card
	if _, err := s.withinBoardTx(ctx, board.ID, func(ctx context.Context, st *store.SQLStore) error {
		top, err := st.MaxCardPosition(ctx, list.ID)
		if err != nil {
			return err
		}
		created, err = st.InsertCard(ctx, store.Card{
			ID:           util.NewID("crd"),
			ListID:       list.ID,
			Title:        title,
			Position:     ordering.Allocate(top),
			AssignedToID: assignee,
		})
		return err
	}); err != nil {
		return CardView{}, err
	}

	s.search.IndexCard(search.CardRecord{ID: created.ID, Title: created.Title, ListID: created.ListID, BoardID: board.ID})
	return s.findCard(ctx, board.ID, created.ID)
}

func (s *Service) UpdateCard(ctx context.Context, actor, cardID string, input UpdateCardInput) (CardView, error) {
	loc, err := s.store.GetCard(ctx, cardID)
	if err != nil {
		return CardView{}, notFoundAs(err, "Card")
	}
	board, err := s.authorizeBoard(ctx, actor, loc.BoardID, rbac.ActionWrite)
	if err != nil {
		return CardView{}, err
	}

	card := loc.Card
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return CardView{}, errValidation("title is required")
		}
		card.Title = title
	}
	if input.AssignedToID != nil {
		assignee := strings.TrimSpace(*input.AssignedToID)
		if err := checkAssignee(board, assignee); err != nil {
			return CardView{}, err
		}
		card.AssignedToID = assignee
	}
	if err := s.store.UpdateCard(ctx, card); err != nil {
		return CardView{}, notFoundAs(err, "Card")
	}

	s.search.IndexCard(search.CardRecord{ID: card.ID, Title: card.Title, ListID: card.ListID, BoardID: board.ID})
	return s.findCard(ctx, board.ID, card.ID)
}

func (s *Service) findCard(ctx context.Context, boardID, cardID string) (CardView, error) {
	lists, err := s.store.ListListsWithCards(ctx, boardID)
	if err != nil {
		return CardView{}, err
	}
	for _, l := range lists {
		for _, c := range l.Cards {
			if c.ID == cardID {
				return cardView(c), nil
			}
		}
	}
	return CardView{}, errNotFound("Card")
}

func (s *Service) DeleteCard(ctx context.Context, actor, cardID string) error {
	loc, err := s.store.GetCard(ctx, cardID)
	if err != nil {
		return notFoundAs(err, "Card")
	}
	if _, err := s.authorizeBoard(ctx, actor, loc.BoardID, rbac.ActionWrite); err != nil {
		return err
	}
	if _, err := s.withinBoardTx(ctx, loc.BoardID, func(ctx context.Context, st *store.SQLStore) error {
		return notFoundAs(st.DeleteCard(ctx, cardID), "Card")
	}); err != nil {
		return err
	}
	s.search.DeleteCard(cardID)
	return nil
}

// Labels

func (s *Service) CreateLabel(ctx context.Context, actor, cardID, name, color string) (LabelView, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return LabelView{}, errValidation("name is required")
	}
	color = strings.TrimSpace(color)
	if color == "" {
		color = "#808080"
	}
	loc, err := s.store.GetCard(ctx, cardID)
	if err != nil {
		return LabelView{}, notFoundAs(err, "Card")
	}
	if _, err := s.authorizeBoard(ctx, actor, loc.BoardID, rbac.ActionWrite); err != nil {
		return LabelView{}, err
	}
	label, err := s.store.InsertLabel(ctx, store.Label{ID: util.NewID("lbl"), CardID: cardID, Name: name, Color: color})
	if err != nil {
		return LabelView{}, err
	}
	return labelView(label), nil
}

func (s *Service) DeleteLabel(ctx context.Context, actor, labelID string) error {
	_, boardID, err := s.store.GetLabel(ctx, labelID)
	if err != nil {
		return notFoundAs(err, "Label")
	}
	if _, err := s.authorizeBoard(ctx, actor, boardID, rbac.ActionWrite); err != nil {
		return err
	}
	return notFoundAs(s.store.DeleteLabel(ctx, labelID), "Label")
}

// Comments

func (s *Service) ListComments(ctx context.Context, actor, cardID string) ([]CommentView, error) {
	if strings.TrimSpace(cardID) == "" {
		return nil, errValidation("cardId is required")
	}
	loc, err := s.store.GetCard(ctx, cardID)
	if err != nil {
		return nil, notFoundAs(err, "Card")
	}
	if _, err := s.authorizeBoard(ctx, actor, loc.BoardID, rbac.ActionRead); err != nil {
		return nil, err
	}
	comments, err := s.store.ListComments(ctx, cardID)
	if err != nil {
		return nil, err
	}
	items := make([]CommentView, 0, len(comments))
	for _, c := range comments {
		items = append(items, commentView(c))
	}
	return items, nil
}

func (s *Service) CreateComment(ctx context.Context, actor, cardID, content string) (CommentView, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return CommentView{}, errValidation("content is required")
	}
	loc, err := s.store.GetCard(ctx, cardID)
	if err != nil {
		return CommentView{}, notFoundAs(err, "Card")
	}
	if _, err := s.authorizeBoard(ctx, actor, loc.BoardID, rbac.ActionWrite); err != nil {
		return CommentView{}, err
	}
	author, err := s.store.GetUserByID(ctx, actor)
	if err != nil {
		return CommentView{}, notFoundAs(err, "User")
	}
	comment, err := s.store.InsertComment(ctx, store.Comment{
		ID:      util.NewID("cmt"),
		CardID:  cardID,
		UserID:  actor,
		Content: content,
	})
	if err != nil {
		return CommentView{}, err
	}
	comment.AuthorName = author.Name
	return commentView(comment), nil
}

// DeleteComment is allowed for the comment's author only.
func (s *Service) DeleteComment(ctx context.Context, actor, commentID string) error {
	comment, boardID, err := s.store.GetComment(ctx, commentID)
	if err != nil {
		return notFoundAs(err, "Comment")
	}
	if _, err := s.authorizeBoard(ctx, actor, boardID, rbac.ActionRead); err != nil {
		return err
	}
	if comment.UserID != actor {
		return domainError(http.StatusForbidden, "FORBIDDEN", "Only the author can delete this comment", nil)
	}
	return notFoundAs(s.store.DeleteComment(ctx, commentID), "Comment")
}

// Search and export

func (s *Service) SearchCards(ctx context.Context, actor, boardID, text string, limit, offset int) (search.Response, error) {
	if _, err := s.authorizeBoard(ctx, actor, boardID, rbac.ActionRead); err != nil {
		return search.Response{}, err
	}
	return s.search.Search(ctx, search.Query{BoardID: boardID, Text: text, Limit: limit, Offset: offset}), nil
}

func (s *Service) ExportBoard(ctx context.Context, actor, boardID, format string) (*export.Result, error) {
	parsed, err := export.ParseFormat(strings.ToLower(strings.TrimSpace(format)))
	if err != nil {
		return nil, domainError(http.StatusBadRequest, "UNSUPPORTED_FORMAT", "format must be json or markdown", nil)
	}
	if _, err := s.authorizeBoard(ctx, actor, boardID, rbac.ActionRead); err != nil {
		return nil, err
	}
	result, err := s.export.Export(ctx, boardID, parsed)
	if err != nil {
		return nil, notFoundAs(err, "Board")
	}
	return result, nil
}

// SnapshotBoard uploads the board's JSON export to object storage.
func (s *Service) SnapshotBoard(ctx context.Context, actor, boardID string) (export.Snapshot, error) {
	if _, err := s.authorizeBoard(ctx, actor, boardID, rbac.ActionWrite); err != nil {
		return export.Snapshot{}, err
	}
	snapshot, err := s.export.Snapshot(ctx, boardID)
	if errors.Is(err, export.ErrObjectStoreDisabled) {
		return export.Snapshot{}, domainError(http.StatusServiceUnavailable, "OBJECT_STORE_DISABLED", "Object storage is not configured", nil)
	}
	if err != nil {
		return export.Snapshot{}, notFoundAs(err, "Board")
	}
	return snapshot, nil
}
