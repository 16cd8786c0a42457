package jobber

import (
	"context"
	"errors"
	"sync"
	"time"

	"ops-dashboard/pkg/utils"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"
)

var ErrNoToken = errors.New("jobber: not connected")

// TokenStore persists the single Jobber token and pending OAuth states.
type TokenStore interface {
	LoadToken(ctx context.Context) (*oauth2.Token, error)
	SaveToken(ctx context.Context, tok *oauth2.Token) error
	SaveState(ctx context.Context, state string, ttl time.Duration) error
	// ConsumeState reports whether state was pending and removes it.
	ConsumeState(ctx context.Context, state string) (bool, error)
}

// Locker serializes token refresh across processes.
type Locker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (unlock func(context.Context) error, err error)
}

const (
	tokenKey    = "jobber:oauth:token"
	statePrefix = "jobber:oauth:state:"
)

type RedisStore struct {
	rdb redis.Cmdable
}

func NewRedisStore(rdb redis.Cmdable) *RedisStore { return &RedisStore{rdb: rdb} }

func (s *RedisStore) LoadToken(ctx context.Context) (*oauth2.Token, error) {
	var tok oauth2.Token
	if err := utils.GetJSON(ctx, s.rdb, tokenKey, &tok); err != nil {
		if errors.Is(err, utils.ErrCacheMiss) {
			return nil, ErrNoToken
		}
		return nil, err
	}
	return &tok, nil
}

func (s *RedisStore) SaveToken(ctx context.Context, tok *oauth2.Token) error {
	return utils.SetJSON(ctx, s.rdb, tokenKey, tok, 0)
}

func (s *RedisStore) SaveState(ctx context.Context, state string, ttl time.Duration) error {
	return utils.SetJSON(ctx, s.rdb, statePrefix+state, true, ttl)
}

func (s *RedisStore) ConsumeState(ctx context.Context, state string) (bool, error) {
	var ok bool
	err := utils.TakeJSON(ctx, s.rdb, statePrefix+state, &ok)
	if errors.Is(err, utils.ErrCacheMiss) {
		return false, nil
	}
	return ok, err
}

// RedisLocker wraps redislock. The default retry waits out a concurrent
// refresh rather than failing it.
type RedisLocker struct {
	client *redislock.Client
	retry  redislock.RetryStrategy
}

// NewRedisLocker uses retry between attempts; nil selects the default.
func NewRedisLocker(rdb redislock.RedisClient, retry redislock.RetryStrategy) *RedisLocker {
	if retry == nil {
		retry = redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), 50)
	}
	return &RedisLocker{client: redislock.New(rdb), retry: retry}
}

func (l *RedisLocker) Lock(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	lock, err := l.client.Obtain(ctx, key, ttl, &redislock.Options{RetryStrategy: l.retry})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrRefreshBusy
	}
	if err != nil {
		return nil, err
	}
	return lock.Release, nil
}

// MemoryStore backs tests and single-process local runs.
type MemoryStore struct {
	mu     sync.Mutex
	token  *oauth2.Token
	states map[string]time.Time
	now    func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: map[string]time.Time{}, now: time.Now}
}

func (s *MemoryStore) LoadToken(ctx context.Context) (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == nil {
		return nil, ErrNoToken
	}
	cp := *s.token
	return &cp, nil
}

func (s *MemoryStore) SaveToken(ctx context.Context, tok *oauth2.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *tok
	s.token = &cp
	return nil
}

func (s *MemoryStore) SaveState(ctx context.Context, state string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state] = s.now().Add(ttl)
	return nil
}

func (s *MemoryStore) ConsumeState(ctx context.Context, state string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.states[state]
	delete(s.states, state)
	return ok && s.now().Before(exp), nil
}

// MutexLocker is an in-process Locker.
type MutexLocker struct {
	mu sync.Mutex
}

func (l *MutexLocker) Lock(ctx context.Context, _ string, _ time.Duration) (func(context.Context) error, error) {
	l.mu.Lock()
	return func(context.Context) error {
		l.mu.Unlock()
		return nil
	}, nil
}
