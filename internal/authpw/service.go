// Package authpw provides email/password sign-up and sign-in.
package authpw

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"taskboard/api/internal/store"
	"taskboard/api/internal/util"
)

var (
	ErrMissingCredentials = errors.New("email and password required")
	ErrInvalidEmail       = errors.New("email is not valid")
	ErrWeakPassword       = errors.New("password must be at least 6 characters")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

const minPasswordLength = 6

// UserStore is the slice of the store that authentication needs.
type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (store.User, error)
	CreateUser(ctx context.Context, user store.User) (store.User, error)
}

type Service struct {
	store UserStore
	cost  int
}

func NewService(users UserStore) *Service {
	return &Service{store: users, cost: bcrypt.DefaultCost}
}

// WithCost overrides the bcrypt cost.
func (s *Service) WithCost(cost int) *Service {
	s.cost = cost
	return s
}

type SignUpRequest struct {
	Email    string
	Password string
	Name     string
}

// SignUp creates an account. A missing name defaults to the email's local part.
func (s *Service) SignUp(ctx context.Context, req SignUpRequest) (store.User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return store.User{}, ErrMissingCredentials
	}
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" || domain == "" {
		return store.User{}, ErrInvalidEmail
	}
	if len(req.Password) < minPasswordLength {
		return store.User{}, ErrWeakPassword
	}

	if _, err := s.store.GetUserByEmail(ctx, email); err == nil {
		return store.User{}, ErrUserExists
	} else if !errors.Is(err, store.ErrNotFound) {
		return store.User{}, fmt.Errorf("lookup email: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return store.User{}, fmt.Errorf("hash password: %w", err)
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = local
	}
	user, err := s.store.CreateUser(ctx, store.User{
		ID:           util.NewID("usr"),
		Email:        email,
		Name:         name,
		PasswordHash: string(hash),
	})
	if errors.Is(err, store.ErrDuplicate) {
		return store.User{}, ErrUserExists
	}
	if err != nil {
		return store.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

type SignInRequest struct {
	Email    string
	Password string
}

// SignIn returns the user whose credentials match. Unknown emails and wrong
// passwords fail the same way.
func (s *Service) SignIn(ctx context.Context, req SignInRequest) (store.User, error) {
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return store.User{}, ErrMissingCredentials
	}

	user, err := s.store.GetUserByEmail(ctx, req.Email)
	if errors.Is(err, store.ErrNotFound) {
		return store.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return store.User{}, fmt.Errorf("lookup email: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return store.User{}, ErrInvalidCredentials
	}
	return user, nil
}
