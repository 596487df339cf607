package app

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"taskboard/api/internal/auth"
	"taskboard/api/internal/ordering"
	"taskboard/api/internal/store"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(s.routes())
}

type authedHandler func(w http.ResponseWriter, r *http.Request, session Session)

func (s *HTTPServer) routes() *mux.Router {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Route not found", nil)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	})

	r.HandleFunc("/api/health", s.handleHealth).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/api/ready", s.handleReady).Methods(http.MethodGet, http.MethodHead)

	r.HandleFunc("/api/auth/signup", s.handleAuthSignUp).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/login", s.handleAuthLogin).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/refresh", s.handleAuthRefresh).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/logout", s.authed(s.handleAuthLogout)).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/me", s.authed(s.handleMe)).Methods(http.MethodGet)
	r.HandleFunc("/api/auth/me", s.authed(s.handleUpdateMe)).Methods(http.MethodPut)

	r.HandleFunc("/api/users", s.authed(s.handleListUsers)).Methods(http.MethodGet)

	// Registered ahead of /api/boards/{boardId} so "reorder" is never read as an id.
	r.HandleFunc("/api/boards/reorder", s.authed(s.handleReorder)).Methods(http.MethodPost)
	r.HandleFunc("/boards/reorder", s.authed(s.handleReorder)).Methods(http.MethodPost)

	r.HandleFunc("/api/boards", s.authed(s.handleListBoards)).Methods(http.MethodGet)
	r.HandleFunc("/api/boards", s.authed(s.handleCreateBoard)).Methods(http.MethodPost)
	r.HandleFunc("/api/boards/{boardId}", s.authed(s.handleGetBoard)).Methods(http.MethodGet)
	r.HandleFunc("/api/boards/{boardId}", s.authed(s.handleUpdateBoard)).Methods(http.MethodPut)
	r.HandleFunc("/api/boards/{boardId}", s.authed(s.handleDeleteBoard)).Methods(http.MethodDelete)
	r.HandleFunc("/api/boards/{boardId}/reorder", s.authed(s.handleReorder)).Methods(http.MethodPost)
	r.HandleFunc("/api/boards/{boardId}/members", s.authed(s.handleListMembers)).Methods(http.MethodGet)
	r.HandleFunc("/api/boards/{boardId}/members", s.authed(s.handleAddMember)).Methods(http.MethodPost)
	r.HandleFunc("/api/boards/{boardId}/members/{userId}", s.authed(s.handleRemoveMember)).Methods(http.MethodDelete)
	r.HandleFunc("/api/boards/{boardId}/search", s.authed(s.handleSearch)).Methods(http.MethodGet)
	r.HandleFunc("/api/boards/{boardId}/export", s.authed(s.handleExport)).Methods(http.MethodGet)
	r.HandleFunc("/api/boards/{boardId}/snapshots", s.authed(s.handleSnapshot)).Methods(http.MethodPost)

	r.HandleFunc("/api/lists", s.authed(s.handleListLists)).Methods(http.MethodGet)
	r.HandleFunc("/api/lists", s.authed(s.handleCreateList)).Methods(http.MethodPost)
	r.HandleFunc("/api/lists/{listId}", s.authed(s.handleUpdateList)).Methods(http.MethodPut)
	r.HandleFunc("/api/lists/{listId}", s.authed(s.handleDeleteList)).Methods(http.MethodDelete)

	r.HandleFunc("/api/cards", s.authed(s.handleCreateCard)).Methods(http.MethodPost)
	r.HandleFunc("/api/cards/{cardId}", s.authed(s.handleUpdateCard)).Methods(http.MethodPut)
	r.HandleFunc("/api/cards/{cardId}", s.authed(s.handleDeleteCard)).Methods(http.MethodDelete)

	r.HandleFunc("/api/labels", s.authed(s.handleCreateLabel)).Methods(http.MethodPost)
	r.HandleFunc("/api/labels/{labelId}", s.authed(s.handleDeleteLabel)).Methods(http.MethodDelete)

	r.HandleFunc("/api/comments", s.authed(s.handleListComments)).Methods(http.MethodGet)
	r.HandleFunc("/api/comments", s.authed(s.handleCreateComment)).Methods(http.MethodPost)
	r.HandleFunc("/api/comments/{commentId}", s.authed(s.handleDeleteComment)).Methods(http.MethodDelete)

	return r
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	statusCode := http.StatusOK
	checks := map[string]any{
		"database": map[string]any{"status": "ok"},
	}

	if err := s.service.Ping(ctx); err != nil {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
		checks["database"] = map[string]any{
			"status": "error",
			"error":  err.Error(),
		}
	}

	writeJSON(w, statusCode, map[string]any{
		"ok":     status == "ready",
		"status": status,
		"checks": checks,
	})
}

// Auth

func (s *HTTPServer) handleAuthSignUp(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Name     string `json:"name"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	result, err := s.service.SignUp(r.Context(), body.Email, body.Password, body.Name)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (s *HTTPServer) handleAuthLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	result, err := s.service.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleAuthRefresh(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	result, err := s.service.Refresh(r.Context(), body.RefreshToken)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleAuthLogout(w http.ResponseWriter, r *http.Request, session Session) {
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	if err := s.service.Logout(r.Context(), session, body.RefreshToken); err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleMe(w http.ResponseWriter, r *http.Request, session Session) {
	user, err := s.service.Me(r.Context(), session.UserID)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

func (s *HTTPServer) handleUpdateMe(w http.ResponseWriter, r *http.Request, session Session) {
	var body struct {
		Name string `json:"name"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	user, err := s.service.UpdateMe(r.Context(), session.UserID, body.Name)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

func (s *HTTPServer) handleListUsers(w http.ResponseWriter, r *http.Request, _ Session) {
	users, err := s.service.ListUsers(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

// Reorder

func (s *HTTPServer) handleReorder(w http.ResponseWriter, r *http.Request, session Session) {
	var body struct {
		BoardID string `json:"boardId"`
		Version *int64 `json:"version"`
		Lists   []struct {
			ID    string `json:"id"`
			Cards []struct {
				ID string `json:"id"`
			} `json:"cards"`
		} `json:"lists"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	if body.Lists == nil {
		writeError(w, http.StatusBadRequest, "INVALID_ARRANGEMENT", "lists is required", nil)
		return
	}

	boardID := strings.TrimSpace(body.BoardID)
	if routeID := mux.Vars(r)["boardId"]; routeID != "" {
		if boardID != "" && boardID != routeID {
			writeError(w, http.StatusBadRequest, "INVALID_ARRANGEMENT", "boardId does not match the route", nil)
			return
		}
		boardID = routeID
	}

	arrangement := ordering.Arrangement{Lists: make([]ordering.ListOrder, 0, len(body.Lists))}
	for _, list := range body.Lists {
		order := ordering.ListOrder{ID: list.ID, Cards: make([]string, 0, len(list.Cards))}
		for _, card := range list.Cards {
			order.Cards = append(order.Cards, card.ID)
		}
		arrangement.Lists = append(arrangement.Lists, order)
	}

	result, err := s.service.Reorder(r.Context(), session.UserID, ReorderInput{
		BoardID:     boardID,
		Version:     body.Version,
		Arrangement: arrangement,
	})
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Boards

func (s *HTTPServer) handleListBoards(w http.ResponseWriter, r *http.Request, session Session) {
	boards, err := s.service.ListBoards(r.Context(), session.UserID)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"boards": boards})
}

func (s *HTTPServer) handleCreateBoard(w http.ResponseWriter, r *http.Request, session Session) {
	var body struct {
		Title string `json:"title"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	board, err := s.service.CreateBoard(r.Context(), session.UserID, body.Title)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, board)
}

func (s *HTTPServer) handleGetBoard(w http.ResponseWriter, r *http.Request, session Session) {
	board, err := s.service.GetBoard(r.Context(), session.UserID, mux.Vars(r)["boardId"])
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

func (s *HTTPServer) handleUpdateBoard(w http.ResponseWriter, r *http.Request, session Session) {
	var body struct {
		Title string `json:"title"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	board, err := s.service.UpdateBoard(r.Context(), session.UserID, mux.Vars(r)["boardId"], body.Title)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

func (s *HTTPServer) handleDeleteBoard(w http.ResponseWriter, r *http.Request, session Session) {
	if err := s.service.DeleteBoard(r.Context(), session.UserID, mux.Vars(r)["boardId"]); err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *HTTPServer) handleListMembers(w http.ResponseWriter, r *http.Request, session Session) {
	members, err := s.service.ListMembers(r.Context(), session.UserID, mux.Vars(r)["boardId"])
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"members": members})
}

func (s *HTTPServer) handleAddMember(w http.ResponseWriter, r *http.Request, session Session) {
	var body struct {
		UserID string `json:"userId"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	members, err := s.service.AddMember(r.Context(), session.UserID, mux.Vars(r)["boardId"], body.UserID)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"members": members})
}

func (s *HTTPServer) handleRemoveMember(w http.ResponseWriter, r *http.Request, session Session) {
	vars := mux.Vars(r)
	if err := s.service.RemoveMember(r.Context(), session.UserID, vars["boardId"], vars["userId"]); err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request, session Session) {
	query := r.URL.Query()
	limit := 20
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "limit must be an integer", nil)
			return
		}
		limit = parsed
	}
	offset := 0
	if raw := strings.TrimSpace(query.Get("offset")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "offset must be an integer", nil)
			return
		}
		offset = parsed
	}

	payload, err := s.service.SearchCards(r.Context(), session.UserID, mux.Vars(r)["boardId"], query.Get("q"), limit, offset)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request, session Session) {
	result, err := s.service.ExportBoard(r.Context(), session.UserID, mux.Vars(r)["boardId"], r.URL.Query().Get("format"))
	if err != nil {
		s.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", result.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, result.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}

func (s *HTTPServer) handleSnapshot(w http.ResponseWriter, r *http.Request, session Session) {
	snapshot, err := s.service.SnapshotBoard(r.Context(), session.UserID, mux.Vars(r)["boardId"])
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, snapshot)
}

// Lists

func (s *HTTPServer) handleListLists(w http.ResponseWriter, r *http.Request, session Session) {
	lists, err := s.service.ListLists(r.Context(), session.UserID, r.URL.Query().Get("boardId"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"lists": lists})
}

func (s *HTTPServer) handleCreateList(w http.ResponseWriter, r *http.Request, session Session) {
	var body struct {
		Title   string `json:"title"`
		BoardID string `json:"boardId"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	list, err := s.service.CreateList(r.Context(), session.UserID, body.BoardID, body.Title)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, list)
}

func (s *HTTPServer) handleUpdateList(w http.ResponseWriter, r *http.Request, session Session) {
	var body struct {
		Title string `json:"title"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	list, err := s.service.UpdateList(r.Context(), session.UserID, mux.Vars(r)["listId"], body.Title)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *HTTPServer) handleDeleteList(w http.ResponseWriter, r *http.Request, session Session) {
	if err := s.service.DeleteList(r.Context(), session.UserID, mux.Vars(r)["listId"]); err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// Cards

func (s *HTTPServer) handleCreateCard(w http.ResponseWriter, r *http.Request, session Session) {
	var body struct {
		Title        string `json:"title"`
		ListID       string `json:"listId"`
		AssignedToID string `json:"assignedToId"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	card, err := s.service.CreateCard(r.Context(), session.UserID, CreateCardInput{
		ListID:       body.ListID,
		Title:        body.Title,
		AssignedToID: body.AssignedToID,
	})
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, card)
}

func (s *HTTPServer) handleUpdateCard(w http.ResponseWriter, r *http.Request, session Session) {
	var body struct {
		Title        *string         `json:"title"`
		AssignedToID json.RawMessage `json:"assignedToId"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}

	input := UpdateCardInput{Title: body.Title}
	if len(body.AssignedToID) > 0 {
		assignee := ""
		if string(body.AssignedToID) != "null" {
			if err := json.Unmarshal(body.AssignedToID, &assignee); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", "assignedToId must be a string or null", nil)
				return
			}
		}
		input.AssignedToID = &assignee
	}

	card, err := s.service.UpdateCard(r.Context(), session.UserID, mux.Vars(r)["cardId"], input)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}

func (s *HTTPServer) handleDeleteCard(w http.ResponseWriter, r *http.Request, session Session) {
	if err := s.service.DeleteCard(r.Context(), session.UserID, mux.Vars(r)["cardId"]); err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// Labels and comments

func (s *HTTPServer) handleCreateLabel(w http.ResponseWriter, r *http.Request, session Session) {
	var body struct {
		Name   string `json:"name"`
		Color  string `json:"color"`
		CardID string `json:"cardId"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	label, err := s.service.CreateLabel(r.Context(), session.UserID, body.CardID, body.Name, body.Color)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, label)
}

func (s *HTTPServer) handleDeleteLabel(w http.ResponseWriter, r *http.Request, session Session) {
	if err := s.service.DeleteLabel(r.Context(), session.UserID, mux.Vars(r)["labelId"]); err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *HTTPServer) handleListComments(w http.ResponseWriter, r *http.Request, session Session) {
	comments, err := s.service.ListComments(r.Context(), session.UserID, r.URL.Query().Get("cardId"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"comments": comments})
}

func (s *HTTPServer) handleCreateComment(w http.ResponseWriter, r *http.Request, session Session) {
	var body struct {
		Content string `json:"content"`
		CardID  string `json:"cardId"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	comment, err := s.service.CreateComment(r.Context(), session.UserID, body.CardID, body.Content)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, comment)
}

func (s *HTTPServer) handleDeleteComment(w http.ResponseWriter, r *http.Request, session Session) {
	if err := s.service.DeleteComment(r.Context(), session.UserID, mux.Vars(r)["commentId"]); err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// Plumbing

func (s *HTTPServer) authed(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := s.requireSession(w, r)
		if !ok {
			return
		}
		next(w, r, session)
	}
}

func (s *HTTPServer) requireSession(w http.ResponseWriter, r *http.Request) (Session, bool) {
	token, ok := auth.BearerToken(r.Header.Get("Authorization"))
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return Session{}, false
	}
	session, err := s.service.SessionFromToken(r.Context(), token)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) || errors.Is(err, auth.ErrInvalidToken) {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
			return Session{}, false
		}
		writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Session lookup failed", nil)
		return Session{}, false
	}
	return session, true
}

// fail writes the mapped error. Server errors are logged with their cause,
// which never reaches the client.
func (s *HTTPServer) fail(w http.ResponseWriter, err error) {
	status, code, message, details := mapError(err)
	if status >= http.StatusInternalServerError {
		log.Printf(`{"level":"error","code":"%s","error":%q}`, code, err.Error())
	}
	writeError(w, status, code, message, details)
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		if r.Method == http.MethodOptions {
			writer.WriteHeader(http.StatusNoContent)
		} else {
			next.ServeHTTP(writer, r)
		}

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}

	var invalid *ordering.ValidationError
	if errors.As(err, &invalid) {
		var d any
		if invalid.ID != "" {
			d = map[string]any{"id": invalid.ID}
		}
		return http.StatusBadRequest, "INVALID_ARRANGEMENT", invalid.Error(), d
	}
	var foreign *ordering.ReferenceError
	if errors.As(err, &foreign) {
		return http.StatusUnprocessableEntity, "REFERENTIAL_ERROR", foreign.Error(), map[string]any{
			"kind":    foreign.Kind,
			"id":      foreign.ID,
			"boardId": foreign.BoardID,
		}
	}

	switch {
	case errors.Is(err, store.ErrStaleVersion):
		return http.StatusConflict, "STALE_ARRANGEMENT", "Board changed since it was loaded; refetch and retry", nil
	case errors.Is(err, store.ErrCommit), errors.Is(err, store.ErrRowMissing):
		return http.StatusInternalServerError, "COMMIT_FAILED", "Changes could not be committed; refetch and retry", nil
	case errors.Is(err, store.ErrNotFound), errors.Is(err, sql.ErrNoRows):
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrExpiredToken):
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
