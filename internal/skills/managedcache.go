package skills

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// ManagedCacheConfig is the subset of Redis connection settings the
// managed-tier skills cache needs.
type ManagedCacheConfig struct {
	Enabled               bool
	Addr                  string
	Password              string
	DB                    int
	TLSInsecureSkipVerify bool
	TTL                   time.Duration
}

// ManagedCache is a Redis-backed cache of the parsed "managed" source
// directory's skill definitions, keyed by a caller-supplied generation
// (typically the directory's aggregate mtime or an explicit version
// counter) so a cold cache never serves stale definitions past a reload.
// A nil *ManagedCache is safe to call: every method is then a no-op miss.
type ManagedCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewManagedCache dials Redis and returns a ManagedCache, or (nil, nil) if
// cfg disables the cache. §4.H's managed tier works identically without
// it; this only saves re-parsing the directory on every LoadAll call.
func NewManagedCache(cfg ManagedCacheConfig) (*ManagedCache, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	opts := &redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}
	if cfg.TLSInsecureSkipVerify {
		opts.TLSConfig = &tls.Config{InsecureSkipVerify: true}
	}
	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("skills: managed cache ping: %w", err)
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &ManagedCache{client: client, ttl: ttl}, nil
}

func (c *ManagedCache) key(generation string) string {
	return "skills:managed:" + generation
}

// Get returns the cached definition set for generation, if present.
func (c *ManagedCache) Get(ctx context.Context, generation string) ([]Definition, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	val, err := c.client.Get(ctx, c.key(generation)).Result()
	if err != nil {
		if err != redis.Nil {
			log.Debug().Err(err).Str("generation", generation).Msg("skills_managed_cache_get_failed")
		}
		return nil, false
	}
	var defs []Definition
	if err := json.Unmarshal([]byte(val), &defs); err != nil {
		log.Debug().Err(err).Str("generation", generation).Msg("skills_managed_cache_unmarshal_failed")
		return nil, false
	}
	return defs, true
}

// Set caches defs under generation.
func (c *ManagedCache) Set(ctx context.Context, generation string, defs []Definition) {
	if c == nil || c.client == nil {
		return
	}
	data, err := json.Marshal(defs)
	if err != nil {
		log.Debug().Err(err).Msg("skills_managed_cache_marshal_failed")
		return
	}
	if err := c.client.Set(ctx, c.key(generation), data, c.ttl).Err(); err != nil {
		log.Debug().Err(err).Str("generation", generation).Msg("skills_managed_cache_set_failed")
	}
}

// Invalidate drops every cached generation.
func (c *ManagedCache) Invalidate(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	iter := c.client.Scan(ctx, 0, "skills:managed:*", 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			log.Debug().Err(err).Str("key", iter.Val()).Msg("skills_managed_cache_invalidate_failed")
		}
	}
	return iter.Err()
}

// Close releases the underlying Redis connection.
func (c *ManagedCache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}
