package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/charmbracelet/log"
	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	go_store "github.com/eko/gocache/store/go_cache/v4"
	redis_store "github.com/eko/gocache/store/redis/v4"
	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// Store is a JSON cache with tag based invalidation. Values are kept as
// strings so the memory and redis stores behave the same way.
type Store struct {
	cache  *cache.Cache[string]
	ttl    time.Duration
	prefix string
}

// NewMemory creates an in-process cache backed by go-cache.
func NewMemory(ttl time.Duration) *Store {
	client := gocache.New(ttl, 2*ttl)
	return &Store{
		cache:  cache.New[string](go_store.NewGoCache(client)),
		ttl:    ttl,
		prefix: "fh:",
	}
}

// NewRedis creates a cache shared by every instance using the given client.
func NewRedis(client *redis.Client, ttl time.Duration) *Store {
	return &Store{
		cache:  cache.New[string](redis_store.NewRedis(client)),
		ttl:    ttl,
		prefix: "fh:",
	}
}

// GetJSON loads key into out. It reports false on a miss or a decode error.
func (s *Store) GetJSON(ctx context.Context, key string, out any) bool {
	if s == nil {
		return false
	}
	raw, err := s.cache.Get(ctx, s.prefix+key)
	if err != nil || raw == "" {
		return false
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		log.Warn("cache entry could not be decoded", "key", key, "error", err)
		return false
	}
	return true
}

// SetJSON stores v under key with the configured TTL and the given tags.
// Failures are logged; a cache write never fails a request.
func (s *Store) SetJSON(ctx context.Context, key string, v any, tags ...string) {
	if s == nil {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		log.Warn("cache value could not be encoded", "key", key, "error", err)
		return
	}
	opts := []store.Option{store.WithExpiration(s.ttl)}
	if len(tags) > 0 {
		opts = append(opts, store.WithTags(tags))
	}
	if err := s.cache.Set(ctx, s.prefix+key, string(b), opts...); err != nil {
		log.Warn("cache set failed", "key", key, "error", err)
	}
}

func (s *Store) Delete(ctx context.Context, key string) {
	if s == nil {
		return
	}
	if err := s.cache.Delete(ctx, s.prefix+key); err != nil {
		log.Debug("cache delete failed", "key", key, "error", err)
	}
}

// Invalidate drops every entry stored with one of the tags.
func (s *Store) Invalidate(ctx context.Context, tags ...string) {
	if s == nil || len(tags) == 0 {
		return
	}
	if err := s.cache.Invalidate(ctx, store.WithInvalidateTags(tags)); err != nil {
		log.Warn("cache invalidate failed", "tags", tags, "error", err)
	}
}
