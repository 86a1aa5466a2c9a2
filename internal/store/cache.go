package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/antinvestor/codecraft/internal/policy"
)

// Redis key prefix and TTL for cached profiles.
const (
	profileKeyPrefix  = "profile:"
	defaultProfileTTL = 10 * time.Minute
)

// ProfileCache is a Redis-backed read-through cache for policy profiles.
// Profiles change rarely while every session evaluates one, so lookups
// are served from Redis when possible.
type ProfileCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewProfileCache creates a new Redis-backed profile cache.
func NewProfileCache(client *redis.Client, ttl time.Duration) *ProfileCache {
	if ttl <= 0 {
		ttl = defaultProfileTTL
	}
	return &ProfileCache{
		client: client,
		ttl:    ttl,
	}
}

// Get returns a cached profile, or nil when the key is absent.
func (c *ProfileCache) Get(ctx context.Context, profileID string) (*policy.Profile, error) {
	if c.client == nil {
		return nil, nil //nolint:nilnil // nil profile is valid for a cache miss
	}

	data, err := c.client.Get(ctx, profileKeyPrefix+profileID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil //nolint:nilnil // nil profile is valid for a cache miss
	}
	if err != nil {
		return nil, fmt.Errorf("get key: %w", err)
	}

	var profile policy.Profile
	if unmarshalErr := json.Unmarshal(data, &profile); unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal profile: %w", unmarshalErr)
	}
	return &profile, nil
}

// Set caches a profile with the configured TTL.
func (c *ProfileCache) Set(ctx context.Context, profile *policy.Profile) error {
	if c.client == nil {
		return nil
	}

	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}

	key := profileKeyPrefix + profile.ProfileID
	if setErr := c.client.Set(ctx, key, data, c.ttl).Err(); setErr != nil {
		return fmt.Errorf("set key: %w", setErr)
	}
	return nil
}

// Invalidate removes a cached profile, for use after imports that replace
// an existing profile.
func (c *ProfileCache) Invalidate(ctx context.Context, profileID string) error {
	if c.client == nil {
		return nil
	}
	if err := c.client.Del(ctx, profileKeyPrefix+profileID).Err(); err != nil {
		return fmt.Errorf("delete key: %w", err)
	}
	return nil
}
