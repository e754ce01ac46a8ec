package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/KeremKalyoncu/grabkit/internal/types"
)

// ErrCacheMiss is returned when no result is stored for a key
var ErrCacheMiss = errors.New("cache miss")

// Key hashes platform and normalized URL into a fixed-length cache key
func Key(platform types.Platform, rawURL string) string {
	normalized := strings.TrimSpace(rawURL)
	normalized = strings.TrimRight(normalized, "/")
	sum := sha256.Sum256([]byte(string(platform) + "|" + normalized))
	return hex.EncodeToString(sum[:])
}

// Results caches successful extraction results in redis for a short TTL
type Results struct {
	client redis.UniversalClient
	logger *zap.Logger
	prefix string
	ttl    time.Duration
}

// NewResults creates a redis result cache
func NewResults(client redis.UniversalClient, prefix string, ttl time.Duration, logger *zap.Logger) *Results {
	if prefix == "" {
		prefix = "result:"
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Results{client: client, logger: logger, prefix: prefix, ttl: ttl}
}

// Get returns the cached result or ErrCacheMiss
func (c *Results) Get(ctx context.Context, platform types.Platform, rawURL string) (*types.MediaResult, error) {
	key := c.prefix + Key(platform, rawURL)

	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		c.logger.Warn("Failed to get cached result", zap.String("url", rawURL), zap.Error(err))
		return nil, fmt.Errorf("failed to get cache: %w", err)
	}

	var res types.MediaResult
	if err := json.Unmarshal(data, &res); err != nil {
		c.logger.Error("Failed to unmarshal cached result", zap.String("url", rawURL), zap.Error(err))
		return nil, fmt.Errorf("failed to unmarshal value: %w", err)
	}
	return &res, nil
}

// Set stores res under platform and URL
func (c *Results) Set(ctx context.Context, platform types.Platform, rawURL string, res *types.MediaResult) error {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	if err := c.client.Set(ctx, c.prefix+Key(platform, rawURL), data, c.ttl).Err(); err != nil {
		c.logger.Warn("Failed to cache result", zap.String("url", rawURL), zap.Error(err))
		return fmt.Errorf("failed to set cache: %w", err)
	}
	c.logger.Debug("Cached extraction result",
		zap.String("platform", string(platform)),
		zap.Duration("ttl", c.ttl),
	)
	return nil
}

// Invalidate removes a cached result
func (c *Results) Invalidate(ctx context.Context, platform types.Platform, rawURL string) error {
	return c.client.Del(ctx, c.prefix+Key(platform, rawURL)).Err()
}

// Count scans the cached results. SCAN is used so redis is never blocked.
func (c *Results) Count(ctx context.Context) (int64, error) {
	var (
		cursor uint64
		count  int64
	)
	for {
		batch, next, err := c.client.Scan(ctx, cursor, c.prefix+"*", 100).Result()
		if err != nil {
			return 0, fmt.Errorf("failed to scan keys: %w", err)
		}
		count += int64(len(batch))
		cursor = next
		if cursor == 0 {
			return count, nil
		}
	}
}

// Memory is an in-process result cache used when redis is not configured
type Memory struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]memoryEntry
}

type memoryEntry struct {
	data    []byte
	expires time.Time
}

// NewMemory creates an in-process result cache
func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Memory{ttl: ttl, now: time.Now, entries: make(map[string]memoryEntry)}
}

func (m *Memory) Get(_ context.Context, platform types.Platform, rawURL string) (*types.MediaResult, error) {
	key := Key(platform, rawURL)

	m.mu.Lock()
	e, ok := m.entries[key]
	if ok && m.now().After(e.expires) {
		delete(m.entries, key)
		ok = false
	}
	m.mu.Unlock()

	if !ok {
		return nil, ErrCacheMiss
	}
	var res types.MediaResult
	if err := json.Unmarshal(e.data, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (m *Memory) Set(_ context.Context, platform types.Platform, rawURL string, res *types.MediaResult) error {
	data, err := json.Marshal(res)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.entries[Key(platform, rawURL)] = memoryEntry{data: data, expires: m.now().Add(m.ttl)}
	m.mu.Unlock()
	return nil
}

func (m *Memory) Invalidate(_ context.Context, platform types.Platform, rawURL string) error {
	m.mu.Lock()
	delete(m.entries, Key(platform, rawURL))
	m.mu.Unlock()
	return nil
}
