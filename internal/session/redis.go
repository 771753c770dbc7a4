package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/prn-tf/vaultbox/internal/domain"
	"github.com/prn-tf/vaultbox/internal/pkg/crypto"
)

const redisKeyPrefix = "session:"

// RedisStore implements Store on Redis. Each session is a JSON value with a
// native key TTL, so expiry needs no sweeper.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore creates a RedisStore.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func redisKey(token string) string {
	return redisKeyPrefix + token
}

// Create stores identity under a new token.
func (s *RedisStore) Create(ctx context.Context, identity domain.Identity, ttl time.Duration) (string, error) {
	token, err := crypto.GenerateToken()
	if err != nil {
		return "", err
	}

	payload, err := json.Marshal(identity)
	if err != nil {
		return "", fmt.Errorf("failed to encode session: %w", err)
	}

	ok, err := s.client.SetNX(ctx, redisKey(token), payload, ttl).Result()
	if err != nil {
		return "", fmt.Errorf("failed to store session: %w", err)
	}
	if !ok {
		return "", fmt.Errorf("session token collision")
	}

	return token, nil
}

// Get resolves a token.
func (s *RedisStore) Get(ctx context.Context, token string) (*domain.Identity, error) {
	payload, err := s.client.Get(ctx, redisKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var identity domain.Identity
	if err := json.Unmarshal(payload, &identity); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}

	return &identity, nil
}

// Delete removes a session.
func (s *RedisStore) Delete(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, redisKey(token)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

var _ Store = (*RedisStore)(nil)
