package auth

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/medicore/portal/pkg/common/models"
	"github.com/redis/go-redis/v9"
)

// ErrNoSession means the token is unknown or expired.
var ErrNoSession = errors.New("no session")

type Session struct {
	Token     string          `json:"token"`
	Identity  models.Identity `json:"identity"`
	CreatedAt time.Time       `json:"created_at"`
}

// SessionStore keeps server-side session state; the browser only ever sees
// the opaque token.
type SessionStore interface {
	Create(ctx context.Context, identity models.Identity) (Session, error)
	Get(ctx context.Context, token string) (Session, error)
	Delete(ctx context.Context, token string) error
}

const sessionKeyPrefix = "portal:session:"

type RedisSessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSessionStore(client *redis.Client, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{client: client, ttl: ttl}
}

func (s *RedisSessionStore) Create(ctx context.Context, identity models.Identity) (Session, error) {
	session := Session{
		Token:     uuid.New().String(),
		Identity:  identity,
		CreatedAt: time.Now().UTC(),
	}
	payload, err := json.Marshal(session)
	if err != nil {
		return Session{}, err
	}
	if err := s.client.Set(ctx, sessionKeyPrefix+session.Token, payload, s.ttl).Err(); err != nil {
		return Session{}, err
	}
	return session, nil
}

func (s *RedisSessionStore) Get(ctx context.Context, token string) (Session, error) {
	payload, err := s.client.Get(ctx, sessionKeyPrefix+token).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, ErrNoSession
	}
	if err != nil {
		return Session{}, err
	}
	var session Session
	if err := json.Unmarshal(payload, &session); err != nil {
		return Session{}, err
	}
	return session, nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, token string) error {
	return s.client.Del(ctx, sessionKeyPrefix+token).Err()
}

// MemorySessionStore backs dev setups and tests.
type MemorySessionStore struct {
	mu       sync.RWMutex
	ttl      time.Duration
	sessions map[string]memorySession
}

type memorySession struct {
	session   Session
	expiresAt time.Time
}

func NewMemorySessionStore(ttl time.Duration) *MemorySessionStore {
	return &MemorySessionStore{ttl: ttl, sessions: make(map[string]memorySession)}
}

func (s *MemorySessionStore) Create(ctx context.Context, identity models.Identity) (Session, error) {
	session := Session{
		Token:     uuid.New().String(),
		Identity:  identity,
		CreatedAt: time.Now().UTC(),
	}
	s.mu.Lock()
	s.sessions[session.Token] = memorySession{session: session, expiresAt: session.CreatedAt.Add(s.ttl)}
	s.mu.Unlock()
	return session, nil
}

func (s *MemorySessionStore) Get(ctx context.Context, token string) (Session, error) {
	s.mu.RLock()
	entry, ok := s.sessions[token]
	s.mu.RUnlock()
	if !ok || time.Now().After(entry.expiresAt) {
		return Session{}, ErrNoSession
	}
	return entry.session, nil
}

func (s *MemorySessionStore) Delete(ctx context.Context, token string) error {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
	return nil
}
