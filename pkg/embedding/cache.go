package embedding

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/redis/go-redis/v9"
)

// CacheConfig holds configuration for the caching embedder.
type CacheConfig struct {
	// MaxEntries bounds the in-process cache.
	MaxEntries int64

	// Redis optionally enables a shared second-level cache. Nil disables it.
	Redis *redis.Client

	// RedisTTL is the expiry for shared cache entries.
	RedisTTL time.Duration

	// KeyPrefix namespaces shared cache keys.
	KeyPrefix string
}

// CachingEmbedder wraps an Embedder with an in-process ristretto cache and
// an optional shared Redis layer. Embedding is deterministic, so cached
// vectors never go stale; the caches exist purely to skip recomputation.
type CachingEmbedder struct {
	inner  *Embedder
	local  *ristretto.Cache
	remote *redis.Client
	ttl    time.Duration
	prefix string

	logger cacheLogger
}

type cacheLogger interface {
	Warn(msg string, args ...any)
}

type nopCacheLogger struct{}

func (nopCacheLogger) Warn(msg string, args ...any) {}

// NewCachingEmbedder creates a caching wrapper around inner.
func NewCachingEmbedder(inner *Embedder, cfg CacheConfig, log cacheLogger) (*CachingEmbedder, error) {
	if log == nil {
		log = nopCacheLogger{}
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 4096
	}
	if cfg.RedisTTL <= 0 {
		cfg.RedisTTL = 24 * time.Hour
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "mnemos:vec"
	}

	local, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cfg.MaxEntries * 10,
		MaxCost:     cfg.MaxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding: create cache: %w", err)
	}

	return &CachingEmbedder{
		inner:  inner,
		local:  local,
		remote: cfg.Redis,
		ttl:    cfg.RedisTTL,
		prefix: cfg.KeyPrefix,
		logger: log,
	}, nil
}

// Dimension returns the wrapped embedder's vector length.
func (c *CachingEmbedder) Dimension() int {
	return c.inner.Dimension()
}

// Embed returns the vector for text, computing it at most once per process
// (and, with Redis enabled, at most once per deployment).
func (c *CachingEmbedder) Embed(ctx context.Context, text string) []float32 {
	if text == "" {
		return make([]float32, c.inner.Dimension())
	}

	if v, ok := c.local.Get(text); ok {
		if vec, ok := v.([]float32); ok {
			return vec
		}
	}

	if c.remote != nil {
		if vec := c.remoteGet(ctx, text); vec != nil {
			c.local.Set(text, vec, 1)
			return vec
		}
	}

	vec := c.inner.Embed(text)
	c.local.Set(text, vec, 1)
	if c.remote != nil {
		c.remoteSet(ctx, text, vec)
	}
	return vec
}

// EmbedText is a context-free convenience for callers that only need the
// deterministic computation; the shared cache layers stay best-effort.
func (c *CachingEmbedder) EmbedText(text string) []float32 {
	return c.Embed(context.Background(), text)
}

// Close releases the in-process cache.
func (c *CachingEmbedder) Close() {
	c.local.Close()
}

func (c *CachingEmbedder) remoteKey(text string) string {
	return fmt.Sprintf("%s:%d:%s", c.prefix, c.inner.Dimension(), text)
}

func (c *CachingEmbedder) remoteGet(ctx context.Context, text string) []float32 {
	data, err := c.remote.Get(ctx, c.remoteKey(text)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("embedding: redis cache read failed", "error", err)
		}
		return nil
	}
	if len(data) != c.inner.Dimension()*4 {
		return nil
	}
	vec := make([]float32, c.inner.Dimension())
	for i := range vec {
		bits := binary.LittleEndian.Uint32(data[i*4 : i*4+4])
		vec[i] = math.Float32frombits(bits)
	}
	return vec
}

func (c *CachingEmbedder) remoteSet(ctx context.Context, text string, vec []float32) {
	data := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(data[i*4:i*4+4], math.Float32bits(v))
	}
	if err := c.remote.Set(ctx, c.remoteKey(text), data, c.ttl).Err(); err != nil {
		c.logger.Warn("embedding: redis cache write failed", "error", err)
	}
}
