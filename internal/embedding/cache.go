package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"math"
	"time"

	"github.com/redis/go-redis/v9"

	"docqa-backend/internal/shared/telemetry"
)

const (
	defaultCachePrefix = "docqa:emb:"
	defaultCacheTTL    = 24 * time.Hour
)

// CachedEmbedder memoizes another Embedder's vectors in Redis. Cache errors
// are logged and bypassed.
type CachedEmbedder struct {
	Base   Embedder
	Client redis.Cmdable
	TTL    time.Duration
	Prefix string
}

// NewCachedEmbedder wraps base with a Redis-backed cache.
func NewCachedEmbedder(base Embedder, client redis.Cmdable, ttl time.Duration) *CachedEmbedder {
	return &CachedEmbedder{Base: base, Client: client, TTL: ttl}
}

// Model delegates to the wrapped embedder.
func (c *CachedEmbedder) Model() string {
	return c.Base.Model()
}

// Embed returns a cached vector when present, otherwise embeds and stores.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.key(ctx, text)

	raw, err := c.Client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		if vec, ok := decodeVector(raw); ok {
			return vec, nil
		}
		telemetry.Warn("embedding.cache_corrupt", map[string]any{"key": key})
	case errors.Is(err, redis.Nil):
	default:
		telemetry.Warn("embedding.cache_read_failed", map[string]any{"err": err.Error()})
	}

	vec, err := c.Base.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	ttl := c.TTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	if err := c.Client.Set(ctx, key, encodeVector(vec), ttl).Err(); err != nil {
		telemetry.Warn("embedding.cache_write_failed", map[string]any{"err": err.Error()})
	}
	return vec, nil
}

func (c *CachedEmbedder) key(ctx context.Context, text string) string {
	prefix := c.Prefix
	if prefix == "" {
		prefix = defaultCachePrefix
	}
	sum := sha256.Sum256([]byte(string(InputTypeFromContext(ctx)) + "\n" + text))
	return prefix + c.Base.Model() + ":" + hex.EncodeToString(sum[:])
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(buf []byte) ([]float32, bool) {
	if len(buf) == 0 || len(buf)%4 != 0 {
		return nil, false
	}
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec, true
}
