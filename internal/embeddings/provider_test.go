package embeddings

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProvider(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ProviderConfig
		wantDim int
		wantErr error
	}{
		{name: "hash default dimension", cfg: ProviderConfig{Provider: "hash"}, wantDim: DefaultHashDimension},
		{name: "hash explicit dimension", cfg: ProviderConfig{Provider: "HASH", Dimension: 32}, wantDim: 32},
		{name: "tei detects dimension", cfg: ProviderConfig{Provider: "tei", BaseURL: "http://localhost:8080", Model: "BAAI/bge-small-en-v1.5"}, wantDim: 384},
		{name: "tei requires url", cfg: ProviderConfig{Provider: "tei"}, wantErr: ErrInvalidConfig},
		{name: "openai requires key", cfg: ProviderConfig{Provider: "openai"}, wantErr: ErrInvalidConfig},
		{name: "unknown", cfg: ProviderConfig{Provider: "word2vec"}, wantErr: ErrInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProvider(tt.cfg)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			defer p.Close()
			assert.Equal(t, tt.wantDim, p.Dimension())
		})
	}
}

func TestDetectDimension(t *testing.T) {
	assert.Equal(t, 1536, detectDimension("text-embedding-3-small"))
	assert.Equal(t, 3072, detectDimension("text-embedding-3-large"))
	assert.Equal(t, 768, detectDimension("BAAI/bge-base-en-v1.5"))
	assert.Equal(t, 0, detectDimension("custom"))
}

func TestHashProvider(t *testing.T) {
	p, err := NewHashProvider(64)
	require.NoError(t, err)
	ctx := context.Background()

	a, err := p.EmbedQuery(ctx, "Java developer")
	require.NoError(t, err)
	b, err := p.EmbedQuery(ctx, "java DEVELOPER!")
	require.NoError(t, err)
	assert.Equal(t, a, b, "hashing is case and punctuation insensitive")
	assert.Len(t, a, 64)

	var norm float32
	for _, x := range a {
		norm += x * x
	}
	assert.InDelta(t, 1.0, norm, 1e-5)

	docs, err := p.EmbedDocuments(ctx, []string{"Java developer", "sales manager"})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, a, docs[0])

	zero, err := p.EmbedQuery(ctx, "!!!")
	require.NoError(t, err)
	for _, x := range zero {
		assert.Zero(t, x)
	}

	_, err = p.EmbedQuery(ctx, "")
	assert.ErrorIs(t, err, ErrEmptyInput)
	_, err = p.EmbedDocuments(ctx, nil)
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = NewHashProvider(0)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestTEIProvider(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embed", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		var req teiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Truncate)
		out := make([][]float32, len(req.Inputs))
		for i := range req.Inputs {
			out[i] = []float32{float32(i), 1}
		}
		_ = json.NewEncoder(w).Encode(out)
	}))
	defer srv.Close()

	p, err := NewTEIProvider(TEIConfig{BaseURL: srv.URL + "/", APIKey: "k", Dimension: 2})
	require.NoError(t, err)

	vecs, err := p.EmbedDocuments(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0, 1}, {1, 1}}, vecs)
	assert.Equal(t, "Bearer k", gotAuth)

	vec, err := p.EmbedQuery(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1}, vec)
}

func TestTEIProviderStatusErrors(t *testing.T) {
	tests := []struct {
		status    int
		retryable bool
	}{
		{http.StatusBadRequest, false},
		{http.StatusTooManyRequests, true},
		{http.StatusServiceUnavailable, true},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "nope", tt.status)
			}))
			defer srv.Close()

			p, err := NewTEIProvider(TEIConfig{BaseURL: srv.URL})
			require.NoError(t, err)
			_, err = p.EmbedQuery(context.Background(), "q")
			require.ErrorIs(t, err, ErrEmbeddingFailed)

			var se *StatusError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tt.status, se.Code)
			assert.Equal(t, tt.retryable, isRetryable(err))
		})
	}
}

// flakyProvider fails the first n calls with err.
type flakyProvider struct {
	failures int
	err      error
	calls    atomic.Int32
}

func (f *flakyProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := f.EmbedQuery(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (f *flakyProvider) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	n := int(f.calls.Add(1))
	if n <= f.failures {
		return nil, f.err
	}
	return []float32{float32(len(text)), 0}, nil
}

func (f *flakyProvider) Dimension() int { return 2 }
func (f *flakyProvider) Close() error   { return nil }

func TestResilientRetries(t *testing.T) {
	tests := []struct {
		name      string
		failures  int
		err       error
		retries   int
		wantErr   bool
		wantCalls int32
	}{
		{name: "succeeds first try", failures: 0, err: ErrEmbeddingFailed, retries: 3, wantCalls: 1},
		{name: "recovers after transient failures", failures: 2, err: ErrEmbeddingFailed, retries: 3, wantCalls: 3},
		{name: "gives up after max retries", failures: 10, err: ErrEmbeddingFailed, retries: 2, wantErr: true, wantCalls: 3},
		{name: "empty input is final", failures: 10, err: ErrEmptyInput, retries: 3, wantErr: true, wantCalls: 1},
		{name: "client status is final", failures: 10, err: &StatusError{Code: 401}, retries: 3, wantErr: true, wantCalls: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inner := &flakyProvider{failures: tt.failures, err: tt.err}
			r := NewResilient(inner, ResilientConfig{
				Model:           "test",
				MaxRetries:      tt.retries,
				InitialInterval: time.Millisecond,
				MaxInterval:     2 * time.Millisecond,
			}, NewMetrics(nil), nil)

			vec, err := r.EmbedQuery(context.Background(), "abc")
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, []float32{3, 0}, vec)
			}
			assert.Equal(t, tt.wantCalls, inner.calls.Load())
		})
	}
}

func TestResilientStopsOnCancel(t *testing.T) {
	inner := &flakyProvider{failures: 100, err: ErrEmbeddingFailed}
	r := NewResilient(inner, ResilientConfig{MaxRetries: 50, InitialInterval: 50 * time.Millisecond}, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := r.EmbedQuery(ctx, "abc")
	require.Error(t, err)
	assert.Less(t, inner.calls.Load(), int32(50))
}

func TestResilientRateLimit(t *testing.T) {
	inner := &flakyProvider{}
	r := NewResilient(inner, ResilientConfig{MaxRetries: 1, RateLimit: 1000}, nil, nil)
	for i := 0; i < 5; i++ {
		_, err := r.EmbedQuery(context.Background(), "q")
		require.NoError(t, err)
	}
	assert.Equal(t, int32(5), inner.calls.Load())
}

func TestCached(t *testing.T) {
	inner := &flakyProvider{}
	c, err := NewCached(inner, 2, nil)
	require.NoError(t, err)
	ctx := context.Background()

	v1, err := c.EmbedQuery(ctx, "java")
	require.NoError(t, err)
	v1[0] = 99 // caller mutation must not leak into the cache

	v2, err := c.EmbedQuery(ctx, "java")
	require.NoError(t, err)
	assert.Equal(t, []float32{4, 0}, v2)
	assert.Equal(t, int32(1), inner.calls.Load())

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)

	// Evict "java" by filling the two-entry cache.
	_, _ = c.EmbedQuery(ctx, "sql")
	_, _ = c.EmbedQuery(ctx, "python")
	_, _ = c.EmbedQuery(ctx, "java")
	assert.Equal(t, int32(4), inner.calls.Load())

	_, err = NewCached(inner, 0, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.NoError(t, c.Close())
}
