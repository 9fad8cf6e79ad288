package embedding

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type countingEmbedder struct {
	calls atomic.Int32
	err   error
}

func (c *countingEmbedder) Model() string { return "fake:3" }

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return []float32{float32(len(text)), 0.25, -1}, nil
}

func TestCachedEmbedderHitsRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	base := &countingEmbedder{}
	cached := NewCachedEmbedder(base, client, time.Hour)
	ctx := context.Background()

	first, err := cached.Embed(ctx, "chunk text")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	second, err := cached.Embed(ctx, "chunk text")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if base.calls.Load() != 1 {
		t.Fatalf("expected 1 base call, got %d", base.calls.Load())
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("cached vector differs at %d", i)
		}
	}

	keys := mr.Keys()
	if len(keys) != 1 {
		t.Fatalf("expected 1 key, got %v", keys)
	}
	if ttl := mr.TTL(keys[0]); ttl != time.Hour {
		t.Fatalf("expected 1h ttl, got %v", ttl)
	}
}

func TestCachedEmbedderSeparatesInputTypes(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	base := &countingEmbedder{}
	cached := NewCachedEmbedder(base, client, 0)

	_, _ = cached.Embed(WithInputType(context.Background(), InputDocument), "same")
	_, _ = cached.Embed(WithInputType(context.Background(), InputQuery), "same")
	if base.calls.Load() != 2 {
		t.Fatalf("expected 2 base calls, got %d", base.calls.Load())
	}
}

func TestCachedEmbedderBypassesUnavailableRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	base := &countingEmbedder{}
	vec, err := NewCachedEmbedder(base, client, time.Minute).Embed(context.Background(), "abc")
	if err != nil {
		t.Fatalf("expected cache failure to be bypassed, got %v", err)
	}
	if len(vec) != 3 || base.calls.Load() != 1 {
		t.Fatalf("unexpected result vec=%v calls=%d", vec, base.calls.Load())
	}
}

func TestCachedEmbedderPropagatesBaseError(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	boom := errors.New("provider down")
	_, err := NewCachedEmbedder(&countingEmbedder{err: boom}, client, time.Minute).Embed(context.Background(), "abc")
	if !errors.Is(err, boom) {
		t.Fatalf("expected provider error, got %v", err)
	}
	if len(mr.Keys()) != 0 {
		t.Fatalf("expected nothing cached on failure")
	}
}
