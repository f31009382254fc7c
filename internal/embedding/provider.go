// Package embedding defines the pluggable similarity-embedding capability
// used by the modality stores.
//
// One Provider instance exists per modality. EmbedContent converts raw
// content bytes into a fixed-length vector; EmbedQuery embeds a text query
// into the same geometric space, which is what makes cross-modal retrieval
// (text query against image or audio collections) work.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Provider converts content or query text into fixed-length vectors.
// Identical input must yield a reproducible vector; floating-point noise
// from the backing model is tolerated.
type Provider interface {
	// EmbedContent embeds raw content bytes. The interpretation of the
	// bytes is modality-specific: UTF-8 text, image bytes, or a
	// standardized mono float32 waveform for audio.
	EmbedContent(ctx context.Context, content []byte) ([]float32, error)

	// EmbedQuery embeds a text query into the provider's vector space.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the vector dimensionality.
	Dimensions() int

	// Name identifies the provider.
	Name() string
}

// Failure reports that the backing model was unavailable or rejected the
// input. Callers decide whether to skip-and-log (bulk listing) or fail the
// whole operation (ingestion, search).
type Failure struct {
	Provider string
	Op       string
	Err      error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("embedding: %s %s: %v", f.Provider, f.Op, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// IsFailure reports whether err is (or wraps) an embedding Failure.
func IsFailure(err error) bool {
	var f *Failure
	return errors.As(err, &f)
}

const (
	defaultTimeout = 30 * time.Second
	retryBackoff   = 500 * time.Millisecond
)

// bounded enforces a per-call time budget and retries a failed inference
// call exactly once before surfacing a Failure.
type bounded struct {
	p       Provider
	timeout time.Duration
}

// WithBudget wraps p so that every inference call runs under the given
// timeout and failed calls are retried once after a short backoff.
// A timeout of zero uses the default budget.
func WithBudget(p Provider, timeout time.Duration) Provider {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &bounded{p: p, timeout: timeout}
}

func (b *bounded) EmbedContent(ctx context.Context, content []byte) ([]float32, error) {
	return b.call(ctx, "embed_content", func(ctx context.Context) ([]float32, error) {
		return b.p.EmbedContent(ctx, content)
	})
}

func (b *bounded) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return b.call(ctx, "embed_query", func(ctx context.Context) ([]float32, error) {
		return b.p.EmbedQuery(ctx, text)
	})
}

func (b *bounded) Dimensions() int { return b.p.Dimensions() }
func (b *bounded) Name() string    { return b.p.Name() }

func (b *bounded) call(ctx context.Context, op string, fn func(context.Context) ([]float32, error)) ([]float32, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, &Failure{Provider: b.p.Name(), Op: op, Err: ctx.Err()}
			case <-time.After(retryBackoff):
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, b.timeout)
		vec, err := fn(callCtx)
		cancel()
		if err == nil {
			return vec, nil
		}
		lastErr = err

		// The parent context being done means the request itself is gone.
		if ctx.Err() != nil {
			break
		}
	}
	return nil, &Failure{Provider: b.p.Name(), Op: op, Err: lastErr}
}

// serialized guards a provider whose backing model is not safe for
// concurrent inference.
type serialized struct {
	p  Provider
	mu sync.Mutex
}

// Serialized wraps p so that at most one inference call runs at a time.
func Serialized(p Provider) Provider {
	return &serialized{p: p}
}

func (s *serialized) EmbedContent(ctx context.Context, content []byte) ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.p.EmbedContent(ctx, content)
}

func (s *serialized) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.p.EmbedQuery(ctx, text)
}

func (s *serialized) Dimensions() int { return s.p.Dimensions() }
func (s *serialized) Name() string    { return s.p.Name() }
