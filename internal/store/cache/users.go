// Package cache wraps a store.UserStore with a read-through profile cache:
// an in-process expirable LRU, optionally backed by a shared Redis tier.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"

	"github.com/nextlevelbuilder/storycast/internal/store"
)

const keyPrefix = "storycast:user:"

// MaxLocalTTLWithRemote caps the in-process TTL when a shared tier is present.
// Writes on one instance only clear its own LRU, so peers may serve a stale
// profile for at most this long.
const MaxLocalTTLWithRemote = 15 * time.Second

// Remote is the shared cache tier.
type Remote interface {
	Get(ctx context.Context, key string) ([]byte, error) // returns ErrMiss when absent
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// ErrMiss is returned by Remote.Get for absent keys.
var ErrMiss = errors.New("cache miss")

// UserStore is a caching store.UserStore. Writes go to the backend and then
// invalidate both tiers.
type UserStore struct {
	backend store.UserStore
	local    *expirable.LRU[string, store.UserProfile]
	localTTL time.Duration
	remote   Remote
	ttl      time.Duration
}

// NewUserStore wraps backend. remote may be nil. ttl applies to the shared
// tier; with a remote the local tier keeps entries for at most
// MaxLocalTTLWithRemote.
func NewUserStore(backend store.UserStore, size int, ttl time.Duration, remote Remote) *UserStore {
	if size <= 0 {
		size = 1024
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	localTTL := ttl
	if remote != nil {
		localTTL = min(ttl, MaxLocalTTLWithRemote)
	}
	return &UserStore{
		backend:  backend,
		local:    expirable.NewLRU[string, store.UserProfile](size, nil, localTTL),
		localTTL: localTTL,
		remote:   remote,
		ttl:      ttl,
	}
}

func (c *UserStore) GetUser(ctx context.Context, identity string) (*store.UserProfile, error) {
	if u, ok := c.local.Get(identity); ok {
		return &u, nil
	}

	if c.remote != nil {
		data, err := c.remote.Get(ctx, keyPrefix+identity)
		switch {
		case err == nil:
			var u store.UserProfile
			if jerr := json.Unmarshal(data, &u); jerr == nil {
				c.local.Add(identity, u)
				return &u, nil
			}
			slog.Warn("cache.bad_entry", "identity_len", len(identity))
		case !errors.Is(err, ErrMiss):
			slog.Warn("cache.remote_get_failed", "error", err)
		}
	}

	u, err := c.backend.GetUser(ctx, identity)
	if err != nil {
		return nil, err
	}
	c.local.Add(identity, *u)
	if c.remote != nil {
		if data, err := json.Marshal(cachedProfile(*u)); err == nil {
			if err := c.remote.Set(ctx, keyPrefix+identity, data, c.ttl); err != nil {
				slog.Warn("cache.remote_set_failed", "error", err)
			}
		}
	}
	return u, nil
}

func (c *UserStore) UpsertUser(ctx context.Context, u *store.UserProfile) error {
	if err := c.backend.UpsertUser(ctx, u); err != nil {
		return err
	}
	c.invalidate(ctx, u.Identity)
	return nil
}

func (c *UserStore) IncrementStoryCount(ctx context.Context, identity string) error {
	if err := c.backend.IncrementStoryCount(ctx, identity); err != nil {
		return err
	}
	c.invalidate(ctx, identity)
	return nil
}

func (c *UserStore) Close() error { return c.backend.Close() }

func (c *UserStore) invalidate(ctx context.Context, identity string) {
	c.local.Remove(identity)
	if c.remote != nil {
		if err := c.remote.Del(ctx, keyPrefix+identity); err != nil {
			slog.Warn("cache.remote_del_failed", "error", err)
		}
	}
}

// cachedProfile strips the password hash from profiles stored in the shared tier.
func cachedProfile(u store.UserProfile) store.UserProfile {
	u.PasswordHash = ""
	return u
}

// RedisRemote adapts a go-redis client to Remote.
type RedisRemote struct {
	client *redis.Client
}

// NewRedisRemote parses url (redis://...) and verifies the connection.
func NewRedisRemote(ctx context.Context, url string) (*RedisRemote, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisRemote{client: client}, nil
}

func (r *RedisRemote) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	return b, err
}

func (r *RedisRemote) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *RedisRemote) Del(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

func (r *RedisRemote) Close() error { return r.client.Close() }
