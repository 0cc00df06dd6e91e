package embedding

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

// countingEmbedder counts Embed calls so tests can observe cache hits.
type countingEmbedder struct {
	inner Embedder
	calls atomic.Int64
	fail  error
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls.Add(1)
	if c.fail != nil {
		return nil, c.fail
	}
	return c.inner.Embed(ctx, text)
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := c.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (c *countingEmbedder) Dimensions() int { return c.inner.Dimensions() }
func (c *countingEmbedder) Close() error    { return nil }

func TestGateway_CachesByContent(t *testing.T) {
	inner := &countingEmbedder{inner: NewMockEmbedder(8)}
	g := NewGateway(inner, 16)
	ctx := context.Background()

	v1, err := g.Embed(ctx, "a red toolbox")
	if err != nil {
		t.Fatal(err)
	}
	v2, err := g.Embed(ctx, "a red toolbox")
	if err != nil {
		t.Fatal(err)
	}
	if inner.calls.Load() != 1 {
		t.Errorf("expected 1 model call, got %d", inner.calls.Load())
	}
	for i := range v1 {
		if v1[i] != v2[i] {
			t.Fatal("cached vector differs from original")
		}
	}
	if _, err := g.Embed(ctx, "something else"); err != nil {
		t.Fatal(err)
	}
	if inner.calls.Load() != 2 {
		t.Errorf("expected 2 model calls, got %d", inner.calls.Load())
	}
	if g.CacheLen() != 2 {
		t.Errorf("CacheLen=%d", g.CacheLen())
	}
}

func TestGateway_NoRetryOnFailure(t *testing.T) {
	inner := &countingEmbedder{inner: NewMockEmbedder(8), fail: ErrModelUnavailable}
	g := NewGateway(inner, 16)

	_, err := g.Embed(context.Background(), "x")
	if !errors.Is(err, ErrModelUnavailable) {
		t.Fatalf("expected ErrModelUnavailable, got %v", err)
	}
	if inner.calls.Load() != 1 {
		t.Errorf("gateway must not retry, got %d calls", inner.calls.Load())
	}
	if g.CacheLen() != 0 {
		t.Errorf("failed embed must not be cached, CacheLen=%d", g.CacheLen())
	}
}

func TestMockEmbedder_DeterministicAndRelated(t *testing.T) {
	e := NewMockEmbedder(64)
	ctx := context.Background()
	a1, _ := e.Embed(ctx, "metal taps for cutting threads")
	a2, _ := e.Embed(ctx, "metal taps for cutting threads")
	for i := range a1 {
		if a1[i] != a2[i] {
			t.Fatal("mock embedder is not deterministic")
		}
	}
	related, _ := e.Embed(ctx, "tool for cutting threads")
	unrelated, _ := e.Embed(ctx, "box of paperclips")
	dot := func(x, y []float32) float64 {
		var s float64
		for i := range x {
			s += float64(x[i] * y[i])
		}
		return s
	}
	if dot(a1, related) <= dot(a1, unrelated) {
		t.Error("related text should score higher than unrelated text")
	}
}
