package app

import (
	"net/http"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"taskboard/api/internal/session"
)

func signUp(t *testing.T, env *testEnv, email, password, name string) AuthResult {
	t.Helper()
	rr := env.do(t, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"email":    email,
		"password": password,
		"name":     name,
	})
	expectStatus(t, rr, http.StatusCreated)
	var result AuthResult
	decodeJSON(t, rr, &result)
	return result
}

func TestSignUpReturnsSessionContract(t *testing.T) {
	env := newTestEnv(t)

	result := signUp(t, env, "  Avery@Example.test ", "secret1", "Avery")
	if result.Token == "" || result.RefreshToken == "" {
		t.Fatalf("expected token and refreshToken, got %+v", result)
	}
	if result.User.Email != "avery@example.test" {
		t.Fatalf("expected normalized email, got %q", result.User.Email)
	}
	if result.User.Name != "Avery" {
		t.Fatalf("expected name Avery, got %q", result.User.Name)
	}

	rr := env.do(t, http.MethodGet, "/api/auth/me", result.Token, nil)
	expectStatus(t, rr, http.StatusOK)
	var payload struct {
		User UserView `json:"user"`
	}
	decodeJSON(t, rr, &payload)
	if payload.User.ID != result.User.ID {
		t.Fatalf("expected me to return %s, got %s", result.User.ID, payload.User.ID)
	}
}

func TestSignUpRejectsDuplicateAndWeakInput(t *testing.T) {
	env := newTestEnv(t)
	signUp(t, env, "avery@example.test", "secret1", "Avery")

	rr := env.do(t, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"email": "AVERY@example.test", "password": "secret1",
	})
	expectError(t, rr, http.StatusBadRequest, "USER_EXISTS")

	rr = env.do(t, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"email": "other@example.test", "password": "123",
	})
	expectError(t, rr, http.StatusBadRequest, "VALIDATION_ERROR")

	rr = env.do(t, http.MethodPost, "/api/auth/signup", "", `{"email":`)
	expectError(t, rr, http.StatusBadRequest, "INVALID_BODY")
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	signUp(t, env, "avery@example.test", "secret1", "Avery")

	rr := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "avery@example.test", "password": "wrong-password",
	})
	expectError(t, rr, http.StatusUnauthorized, "INVALID_CREDENTIALS")

	rr = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "nobody@example.test", "password": "secret1",
	})
	expectError(t, rr, http.StatusUnauthorized, "INVALID_CREDENTIALS")

	rr = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "Avery@example.test", "password": "secret1",
	})
	expectStatus(t, rr, http.StatusOK)
	var result AuthResult
	decodeJSON(t, rr, &result)
	if result.Token == "" {
		t.Fatalf("expected token")
	}
}

func TestRefreshRotatesToken(t *testing.T) {
	env := newTestEnv(t)
	first := signUp(t, env, "avery@example.test", "secret1", "Avery")

	rr := env.do(t, http.MethodPost, "/api/auth/refresh", "", map[string]string{"refreshToken": first.RefreshToken})
	expectStatus(t, rr, http.StatusOK)
	var second AuthResult
	decodeJSON(t, rr, &second)
	if second.RefreshToken == "" || second.RefreshToken == first.RefreshToken {
		t.Fatalf("expected a new refresh token, got %q", second.RefreshToken)
	}

	rr = env.do(t, http.MethodPost, "/api/auth/refresh", "", map[string]string{"refreshToken": first.RefreshToken})
	expectError(t, rr, http.StatusUnauthorized, "UNAUTHORIZED")

	rr = env.do(t, http.MethodPost, "/api/auth/refresh", "", map[string]string{})
	expectError(t, rr, http.StatusBadRequest, "VALIDATION_ERROR")
}

func TestLogoutRevokesAccessAndRefreshTokens(t *testing.T) {
	env := newTestEnv(t)
	result := signUp(t, env, "avery@example.test", "secret1", "Avery")

	rr := env.do(t, http.MethodPost, "/api/auth/logout", result.Token, map[string]string{"refreshToken": result.RefreshToken})
	expectStatus(t, rr, http.StatusOK)

	rr = env.do(t, http.MethodGet, "/api/auth/me", result.Token, nil)
	expectError(t, rr, http.StatusUnauthorized, "UNAUTHORIZED")

	rr = env.do(t, http.MethodPost, "/api/auth/refresh", "", map[string]string{"refreshToken": result.RefreshToken})
	expectError(t, rr, http.StatusUnauthorized, "UNAUTHORIZED")
}

func TestProtectedRoutesRejectMissingOrInvalidBearer(t *testing.T) {
	env := newTestEnv(t)

	expectError(t, env.do(t, http.MethodGet, "/api/boards", "", nil), http.StatusUnauthorized, "UNAUTHORIZED")
	expectError(t, env.do(t, http.MethodGet, "/api/boards", "definitely-not-a-token", nil), http.StatusUnauthorized, "UNAUTHORIZED")
}

func TestUpdateMe(t *testing.T) {
	env := newTestEnv(t)
	result := signUp(t, env, "avery@example.test", "secret1", "Avery")

	rr := env.do(t, http.MethodPut, "/api/auth/me", result.Token, map[string]string{"name": "Avery Q"})
	expectStatus(t, rr, http.StatusOK)
	var payload struct {
		User UserView `json:"user"`
	}
	decodeJSON(t, rr, &payload)
	if payload.User.Name != "Avery Q" {
		t.Fatalf("expected updated name, got %q", payload.User.Name)
	}

	rr = env.do(t, http.MethodPut, "/api/auth/me", result.Token, map[string]string{"name": "  "})
	expectError(t, rr, http.StatusBadRequest, "VALIDATION_ERROR")
}

func TestSessionsInRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	env := newTestEnv(t, WithSessionStore(session.NewRedisStoreWithClient(client)))

	first := signUp(t, env, "avery@example.test", "secret1", "Avery")
	if len(mr.Keys()) == 0 {
		t.Fatalf("expected the refresh session to be stored in redis")
	}

	rr := env.do(t, http.MethodPost, "/api/auth/refresh", "", map[string]string{"refreshToken": first.RefreshToken})
	expectStatus(t, rr, http.StatusOK)
	var second AuthResult
	decodeJSON(t, rr, &second)

	rr = env.do(t, http.MethodPost, "/api/auth/logout", second.Token, map[string]string{"refreshToken": second.RefreshToken})
	expectStatus(t, rr, http.StatusOK)

	rr = env.do(t, http.MethodGet, "/api/auth/me", second.Token, nil)
	expectError(t, rr, http.StatusUnauthorized, "UNAUTHORIZED")
}
