package embeddings

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// DefaultHashDimension is the vector size of the hash provider when none
// is configured.
const DefaultHashDimension = 256

// HashProvider embeds text by feature hashing its lower-cased word tokens
// into a fixed number of signed buckets. It needs no model or network, and
// texts sharing words get positive cosine similarity.
type HashProvider struct {
	dim int
}

// NewHashProvider returns a hashing embedder producing dim-sized vectors.
func NewHashProvider(dim int) (*HashProvider, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("%w: hash dimension must be positive", ErrInvalidConfig)
	}
	return &HashProvider{dim: dim}, nil
}

// EmbedDocuments implements Embedder.
func (p *HashProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = p.embed(t)
	}
	return out, nil
}

// EmbedQuery implements Embedder. Text without any word characters
// yields a zero vector.
func (p *HashProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.embed(text), nil
}

func (p *HashProvider) embed(text string) []float32 {
	vec := make([]float32, p.dim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New64a()
		h.Write([]byte(w))
		sum := h.Sum64()
		sign := float32(1)
		if sum>>63 == 1 {
			sign = -1
		}
		vec[sum%uint64(p.dim)] += sign
	}

	var norm float64
	for _, x := range vec {
		norm += float64(x) * float64(x)
	}
	if norm > 0 {
		inv := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= inv
		}
	}
	return vec
}

// Dimension implements Provider.
func (p *HashProvider) Dimension() int { return p.dim }

// Close implements Provider.
func (p *HashProvider) Close() error { return nil }
