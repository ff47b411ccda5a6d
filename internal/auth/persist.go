package auth

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pawhaven/pawhaven-backend/internal/models"
)

// Fixed keys for the durable copy of SessionState. Both are cleared together
// on sign-out. Keys under ProviderKeyPrefix belong to the auth provider
// (cached tokens and the like) and are swept on full logout.
const (
	KeyUserProfile     = "auth:user_profile"
	KeyIsAuthenticated = "auth:is_authenticated"
	ProviderKeyPrefix  = "authsvc:"

	providerSessionKey = ProviderKeyPrefix + "session"
	persistTimeout     = 3 * time.Second
)

// Persister is the durable-storage backend of the session Store. Exactly one
// owner (the Store) writes through it; the Reconciler reads it once at start.
type Persister interface {
	SaveSession(user *models.UserProfile, authenticated bool) error
	LoadSession() (*models.UserProfile, bool, error)
	// ClearSession removes the two fixed session keys.
	ClearSession() error
	// ClearProviderState sweeps every key under the provider namespace.
	ClearProviderState() error
}

// TokenCache holds the auth provider's current tokens between calls. The
// Gateway itself stays stateless; tokens live here, inside the provider
// namespace so a full logout sweeps them too.
type TokenCache interface {
	SaveTokens(s *Session) error
	LoadTokens() (*Session, error)
	ClearTokens() error
}

// RedisPersister mirrors SessionState into Redis under the fixed keys.
type RedisPersister struct {
	Client *redis.Client
}

func NewRedisPersister(client *redis.Client) *RedisPersister {
	return &RedisPersister{Client: client}
}

func (p *RedisPersister) SaveSession(user *models.UserProfile, authenticated bool) error {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if user == nil || !authenticated {
		return p.clear(ctx)
	}

	data, err := json.Marshal(user)
	if err != nil {
		return err
	}
	if err := p.Client.Set(ctx, KeyUserProfile, data, 0).Err(); err != nil {
		return err
	}
	return p.Client.Set(ctx, KeyIsAuthenticated, "true", 0).Err()
}

func (p *RedisPersister) LoadSession() (*models.UserProfile, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	flag, err := p.Client.Get(ctx, KeyIsAuthenticated).Result()
	if err != nil || flag != "true" {
		return nil, false, nil
	}

	data, err := p.Client.Get(ctx, KeyUserProfile).Result()
	if err != nil {
		return nil, false, nil
	}

	var user models.UserProfile
	if err := json.Unmarshal([]byte(data), &user); err != nil {
		return nil, false, err
	}
	return &user, true, nil
}

func (p *RedisPersister) ClearSession() error {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	return p.clear(ctx)
}

func (p *RedisPersister) clear(ctx context.Context) error {
	return p.Client.Del(ctx, KeyUserProfile, KeyIsAuthenticated).Err()
}

// ClearProviderState deletes every key in the provider namespace.
func (p *RedisPersister) ClearProviderState() error {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	iter := p.Client.Scan(ctx, 0, ProviderKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := p.Client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

// RedisTokenCache keeps the provider session tokens at authsvc:session.
type RedisTokenCache struct {
	Client *redis.Client
}

func NewRedisTokenCache(client *redis.Client) *RedisTokenCache {
	return &RedisTokenCache{Client: client}
}

func (c *RedisTokenCache) SaveTokens(s *Session) error {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if s == nil {
		return c.Client.Del(ctx, providerSessionKey).Err()
	}
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return c.Client.Set(ctx, providerSessionKey, data, 0).Err()
}

func (c *RedisTokenCache) LoadTokens() (*Session, error) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	data, err := c.Client.Get(ctx, providerSessionKey).Result()
	if err != nil {
		return nil, nil // absent, not an error
	}
	var s Session
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *RedisTokenCache) ClearTokens() error {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	return c.Client.Del(ctx, providerSessionKey).Err()
}

// MemoryTokenCache is the in-process fallback used when no Redis-backed cache
// is supplied (tests, one-shot tools).
type MemoryTokenCache struct {
	mu      sync.Mutex
	session *Session
}

func (c *MemoryTokenCache) SaveTokens(s *Session) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = s
	return nil
}

func (c *MemoryTokenCache) LoadTokens() (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil, nil
	}
	s := *c.session
	return &s, nil
}

func (c *MemoryTokenCache) ClearTokens() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = nil
	return nil
}
