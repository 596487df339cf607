package app

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"taskboard/api/internal/config"
	"taskboard/api/internal/store"
	"taskboard/api/internal/testutil"
)

type testEnv struct {
	db      *sql.DB
	store   *store.SQLStore
	service *Service
	handler http.Handler
}

func testConfig() config.Config {
	return config.Config{
		JWTSecret:  "test-secret",
		AccessTTL:  time.Hour,
		RefreshTTL: 24 * time.Hour,
	}
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	return newTestEnvWithDB(t, testutil.NewTestDB(t), opts...)
}

func newTestEnvWithDB(t *testing.T, db *sql.DB, opts ...Option) *testEnv {
	t.Helper()
	st := store.NewSQLStore(db, store.DialectSQLite)
	opts = append([]Option{WithPasswordCost(bcrypt.MinCost)}, opts...)
	svc := New(testConfig(), st, opts...)
	return &testEnv{
		db:      db,
		store:   st,
		service: svc,
		handler: NewHTTPServer(svc, "*").Handler(),
	}
}

// login issues a session for a seeded user and returns its access token.
func (e *testEnv) login(t *testing.T, user store.User) string {
	t.Helper()
	result, err := e.service.issueSession(context.Background(), user)
	if err != nil {
		t.Fatalf("issue session for %s: %v", user.ID, err)
	}
	return result.Token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch v := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(v)
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("encode body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) boardVersion(t *testing.T, boardID string) int64 {
	t.Helper()
	board, err := e.store.GetBoard(context.Background(), boardID)
	if err != nil {
		t.Fatalf("get board %s: %v", boardID, err)
	}
	return board.Version
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), target); err != nil {
		t.Fatalf("parse response: %v body=%s", err, rr.Body.String())
	}
}

func expectStatus(t *testing.T, rr *httptest.ResponseRecorder, status int) {
	t.Helper()
	if rr.Code != status {
		t.Fatalf("expected status %d, got %d body=%s", status, rr.Code, rr.Body.String())
	}
}

func expectError(t *testing.T, rr *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	expectStatus(t, rr, status)
	var payload map[string]any
	decodeJSON(t, rr, &payload)
	if payload["code"] != code {
		t.Fatalf("expected code %s, got %v", code, payload["code"])
	}
	if msg, _ := payload["error"].(string); msg == "" {
		t.Fatalf("expected error message, got %v", payload)
	}
}
