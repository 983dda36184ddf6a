package auth

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/bhavnindersingh/RecipeManager/internal/models"

	"github.com/go-redis/redis/v8"
)

var ErrNoSession = errors.New("session not found")

// Session is the signed-in user's context: who they are, what they may
// open and where they land. It lives from login until logout or expiry.
type Session struct {
	ID            string          `json:"id"`
	UserID        uint            `json:"user_id"`
	Name          string          `json:"name"`
	Role          models.UserRole `json:"role"`
	Screens       []Screen        `json:"screens"`
	DefaultScreen Screen          `json:"default_screen"`
	CreatedAt     time.Time       `json:"created_at"`
	ExpiresAt     time.Time       `json:"expires_at"`
}

func (s *Session) Actor() Actor {
	return Actor{UserID: s.UserID, Name: s.Name, Role: s.Role}
}

// Actor identifies who performed a write.
type Actor struct {
	UserID uint
	Name   string
	Role   models.UserRole
}

type SessionStore interface {
	Put(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
	// Purge drops expired sessions and reports how many were removed.
	Purge(ctx context.Context, now time.Time) (int, error)
}

type MemorySessions struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewMemorySessions() *MemorySessions {
	return &MemorySessions{sessions: make(map[string]*Session)}
}

func (m *MemorySessions) Put(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

func (m *MemorySessions) Get(_ context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok || time.Now().After(s.ExpiresAt) {
		return nil, ErrNoSession
	}
	cp := *s
	return &cp, nil
}

func (m *MemorySessions) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *MemorySessions) Purge(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, s := range m.sessions {
		if now.After(s.ExpiresAt) {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

const sessionKeyPrefix = "session:"

// RedisSessions keeps sessions in Redis with a TTL matching the token, so
// every instance sees logins and logouts.
type RedisSessions struct {
	client *redis.Client
}

func NewRedisSessions(client *redis.Client) *RedisSessions {
	return &RedisSessions{client: client}
}

func (r *RedisSessions) Put(ctx context.Context, s *Session) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	ttl := time.Until(s.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	return r.client.Set(ctx, sessionKeyPrefix+s.ID, b, ttl).Err()
}

func (r *RedisSessions) Get(ctx context.Context, id string) (*Session, error) {
	b, err := r.client.Get(ctx, sessionKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, err
	}
	var s Session
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *RedisSessions) Delete(ctx context.Context, id string) error {
	return r.client.Del(ctx, sessionKeyPrefix+id).Err()
}

// Purge is a no-op: Redis expires keys itself.
func (r *RedisSessions) Purge(context.Context, time.Time) (int, error) {
	return 0, nil
}
