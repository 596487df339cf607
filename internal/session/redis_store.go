// Package session keeps refresh sessions and the access-token deny list in
// Redis. Keys expire with the tokens they describe.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"taskboard/api/internal/store"
)

type refreshData struct {
	UserID   string    `json:"user_id"`
	IssuedAt time.Time `json:"issued_at"`
}

type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to redisURL and verifies the connection.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return &RedisStore{client: client}, nil
}

func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func refreshKey(tokenHash string) string {
	return "taskboard:refresh:" + tokenHash
}

func revokedKey(jti string) string {
	return "taskboard:revoked:" + jti
}

// SaveRefreshSession stores the session until expiresAt. A session that has
// already expired is not stored.
func (s *RedisStore) SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return fmt.Errorf("save refresh session: already expired")
	}

	payload, err := json.Marshal(refreshData{UserID: userID, IssuedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal refresh session: %w", err)
	}
	if err := s.client.Set(ctx, refreshKey(tokenHash), payload, ttl).Err(); err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

// LookupRefreshSession returns a user carrying only the session's user id.
func (s *RedisStore) LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error) {
	raw, err := s.client.Get(ctx, refreshKey(tokenHash)).Bytes()
	if errors.Is(err, redis.Nil) {
		return store.User{}, fmt.Errorf("lookup refresh session: %w", store.ErrNotFound)
	}
	if err != nil {
		return store.User{}, fmt.Errorf("lookup refresh session: %w", err)
	}

	var data refreshData
	if err := json.Unmarshal(raw, &data); err != nil {
		return store.User{}, fmt.Errorf("decode refresh session: %w", err)
	}
	return store.User{ID: data.UserID}, nil
}

func (s *RedisStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	if err := s.client.Del(ctx, refreshKey(tokenHash)).Err(); err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

// RevokeAccessToken deny-lists jti until the token would have expired anyway.
func (s *RedisStore) RevokeAccessToken(ctx context.Context, jti string, exp time.Time) error {
	ttl := time.Until(exp)
	if ttl <= 0 {
		return nil
	}
	if err := s.client.Set(ctx, revokedKey(jti), "1", ttl).Err(); err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}
	return nil
}

func (s *RedisStore) IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := s.client.Exists(ctx, revokedKey(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return n > 0, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
