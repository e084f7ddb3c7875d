package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedis constructs a redis-backed session store. Expiration is delegated
// to redis TTLs.
func NewRedis(cfg Config) (Store, error) {
	if cfg.Redis == nil {
		return nil, fmt.Errorf("redis configuration missing")
	}
	if cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("redis address required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	prefix := cfg.Redis.Prefix
	if prefix == "" {
		prefix = "auth:session:"
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &redisStore{
		client: client,
		ttl:    ttl,
		prefix: prefix,
	}, nil
}

func (s *redisStore) key(token string) string {
	return s.prefix + token
}

func (s *redisStore) Store(ctx context.Context, session Session) error {
	if session.Token == "" {
		return fmt.Errorf("session token required")
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	expiry := s.ttl
	if session.ExpiresAt != nil {
		expiry = time.Until(*session.ExpiresAt)
	}
	return s.client.Set(ctx, s.key(session.Token), data, expiry).Err()
}

func (s *redisStore) Get(ctx context.Context, token string) (Session, error) {
	raw, err := s.client.Get(ctx, s.key(token)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return Session{}, fmt.Errorf("session not found")
		}
		return Session{}, err
	}
	var session Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return Session{}, err
	}
	if session.ExpiresAt != nil && time.Now().After(*session.ExpiresAt) {
		_ = s.Remove(ctx, token)
		return Session{}, fmt.Errorf("session expired")
	}
	return session, nil
}

func (s *redisStore) Remove(ctx context.Context, token string) error {
	return s.client.Del(ctx, s.key(token)).Err()
}

func (s *redisStore) List(ctx context.Context) ([]string, error) {
	var cursor uint64
	tokens := make([]string, 0)
	pattern := s.prefix + "*"
	for {
		res, nextCursor, err := s.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, err
		}
		for _, key := range res {
			tokens = append(tokens, strings.TrimPrefix(key, s.prefix))
		}
		if nextCursor == 0 {
			break
		}
		cursor = nextCursor
	}
	return tokens, nil
}

func (s *redisStore) CleanupExpired(context.Context) error {
	// Redis handles expiration via TTL.
	return nil
}

func (s *redisStore) Close(_ context.Context) error {
	return s.client.Close()
}
