package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultSessionTTL   = 7 * 24 * time.Hour
	DefaultSweepEvery   = 24 * time.Hour
	sessionKeyPrefix    = "session:"
	sessionIDRandomSize = 32
)

// SessionStore 会话 id -> 用户 id；Lookup 找不到或已过期返回 ("", nil)
type SessionStore interface {
	Create(ctx context.Context, userID string) (string, error)
	Lookup(ctx context.Context, sid string) (string, error)
	Destroy(ctx context.Context, sid string) error
}

func newSessionID() (string, error) {
	b := make([]byte, sessionIDRandomSize)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// ---- redis ----

// RedisSessionStore 多实例共享会话，过期交给 redis TTL
type RedisSessionStore struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

func NewRedisSessionStore(rdb redis.UniversalClient, ttl time.Duration) *RedisSessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &RedisSessionStore{rdb: rdb, ttl: ttl}
}

func (s *RedisSessionStore) Create(ctx context.Context, userID string) (string, error) {
	sid, err := newSessionID()
	if err != nil {
		return "", err
	}
	if err := s.rdb.Set(ctx, sessionKeyPrefix+sid, userID, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("save session: %w", err)
	}
	return sid, nil
}

func (s *RedisSessionStore) Lookup(ctx context.Context, sid string) (string, error) {
	if sid == "" {
		return "", nil
	}
	uid, err := s.rdb.Get(ctx, sessionKeyPrefix+sid).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load session: %w", err)
	}
	return uid, nil
}

func (s *RedisSessionStore) Destroy(ctx context.Context, sid string) error {
	if sid == "" {
		return nil
	}
	return s.rdb.Del(ctx, sessionKeyPrefix+sid).Err()
}

// ---- memory ----

type memSession struct {
	userID  string
	expires time.Time
}

// MemorySessionStore 单实例使用；过期项在 Lookup 时剔除，并由 Sweep 定期清理
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]memSession
	ttl      time.Duration
	now      func() time.Time
}

func NewMemorySessionStore(ttl time.Duration) *MemorySessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &MemorySessionStore{sessions: map[string]memSession{}, ttl: ttl, now: time.Now}
}

func (s *MemorySessionStore) Create(_ context.Context, userID string) (string, error) {
	sid, err := newSessionID()
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.sessions[sid] = memSession{userID: userID, expires: s.now().Add(s.ttl)}
	s.mu.Unlock()
	return sid, nil
}

func (s *MemorySessionStore) Lookup(_ context.Context, sid string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ms, ok := s.sessions[sid]
	if !ok {
		return "", nil
	}
	if !s.now().Before(ms.expires) {
		delete(s.sessions, sid)
		return "", nil
	}
	return ms.userID, nil
}

func (s *MemorySessionStore) Destroy(_ context.Context, sid string) error {
	s.mu.Lock()
	delete(s.sessions, sid)
	s.mu.Unlock()
	return nil
}

// Sweep 清理过期会话，返回清理数量
func (s *MemorySessionStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	n := 0
	for sid, ms := range s.sessions {
		if !now.Before(ms.expires) {
			delete(s.sessions, sid)
			n++
		}
	}
	return n
}

// RunSweeper 每 every 清理一次，ctx 取消后退出
func (s *MemorySessionStore) RunSweeper(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = DefaultSweepEvery
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Sweep()
		}
	}
}

func (s *MemorySessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
