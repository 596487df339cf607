package authpw

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"taskboard/api/internal/store"
)

type mockUserStore struct {
	users map[string]store.User // email -> user
}

func newMockUserStore() *mockUserStore {
	return &mockUserStore{users: make(map[string]store.User)}
}

func (m *mockUserStore) GetUserByEmail(ctx context.Context, email string) (store.User, error) {
	if user, ok := m.users[strings.ToLower(strings.TrimSpace(email))]; ok {
		return user, nil
	}
	return store.User{}, fmt.Errorf("get user by email: %w", store.ErrNotFound)
}

func (m *mockUserStore) CreateUser(ctx context.Context, user store.User) (store.User, error) {
	if _, ok := m.users[user.Email]; ok {
		return store.User{}, store.ErrDuplicate
	}
	m.users[user.Email] = user
	return user, nil
}

func newTestService() (*Service, *mockUserStore) {
	users := newMockUserStore()
	return NewService(users).WithCost(bcrypt.MinCost), users
}

func TestSignUp(t *testing.T) {
	svc, users := newTestService()

	user, err := svc.SignUp(context.Background(), SignUpRequest{
		Email:    " Test@Example.com ",
		Password: "password123",
		Name:     "Test User",
	})
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}
	if user.ID == "" || !strings.HasPrefix(user.ID, "usr_") {
		t.Fatalf("unexpected user id %q", user.ID)
	}
	if user.Email != "test@example.com" {
		t.Fatalf("email = %q, want normalized", user.Email)
	}
	if user.PasswordHash == "password123" {
		t.Fatal("password stored in clear")
	}
	if _, ok := users.users["test@example.com"]; !ok {
		t.Fatal("user not persisted")
	}
}

func TestSignUpDefaultsName(t *testing.T) {
	svc, _ := newTestService()
	user, err := svc.SignUp(context.Background(), SignUpRequest{Email: "jo@example.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}
	if user.Name != "jo" {
		t.Fatalf("name = %q, want %q", user.Name, "jo")
	}
}

func TestSignUpValidation(t *testing.T) {
	svc, _ := newTestService()
	cases := []struct {
		name string
		req  SignUpRequest
		want error
	}{
		{"missing email", SignUpRequest{Password: "password123"}, ErrMissingCredentials},
		{"missing password", SignUpRequest{Email: "a@b.c"}, ErrMissingCredentials},
		{"bad email", SignUpRequest{Email: "nobody", Password: "password123"}, ErrInvalidEmail},
		{"short password", SignUpRequest{Email: "a@b.c", Password: "12345"}, ErrWeakPassword},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.SignUp(context.Background(), tc.req); !errors.Is(err, tc.want) {
				t.Fatalf("SignUp() error = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestSignUpDuplicateEmail(t *testing.T) {
	svc, _ := newTestService()
	req := SignUpRequest{Email: "dup@example.com", Password: "password123"}
	if _, err := svc.SignUp(context.Background(), req); err != nil {
		t.Fatalf("first SignUp() error = %v", err)
	}
	req.Email = "DUP@example.com"
	if _, err := svc.SignUp(context.Background(), req); !errors.Is(err, ErrUserExists) {
		t.Fatalf("second SignUp() error = %v, want ErrUserExists", err)
	}
}

func TestSignIn(t *testing.T) {
	svc, _ := newTestService()
	created, err := svc.SignUp(context.Background(), SignUpRequest{Email: "me@example.com", Password: "password123"})
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}

	user, err := svc.SignIn(context.Background(), SignInRequest{Email: "me@example.com", Password: "password123"})
	if err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
	if user.ID != created.ID {
		t.Fatalf("SignIn() user = %s, want %s", user.ID, created.ID)
	}

	if _, err := svc.SignIn(context.Background(), SignInRequest{Email: "me@example.com", Password: "wrong"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password error = %v", err)
	}
	if _, err := svc.SignIn(context.Background(), SignInRequest{Email: "ghost@example.com", Password: "password123"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown email error = %v", err)
	}
	if _, err := svc.SignIn(context.Background(), SignInRequest{}); !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("empty request error = %v", err)
	}
}
