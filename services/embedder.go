package services

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"regexp"
	"strings"
	"sync"
)

// Embedder maps chunks and queries into the same L2-normalized vector space.
//
// Implementations must be deterministic for the same input text and model.
type Embedder interface {
	ModelID() string
	Embed(ctx context.Context, chunks []Chunk) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// TextEmbedder is a raw embedding backend. NewEmbedder adds normalization and
// dimension checks on top of it.
type TextEmbedder interface {
	ModelID() string
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

type normalizingEmbedder struct {
	backend TextEmbedder

	mu  sync.Mutex
	dim int
}

// NewEmbedder wraps a backend so every vector it returns is unit length and
// of one fixed dimension.
func NewEmbedder(backend TextEmbedder) Embedder {
	return &normalizingEmbedder{backend: backend}
}

func (e *normalizingEmbedder) ModelID() string { return e.backend.ModelID() }

func (e *normalizingEmbedder) Embed(ctx context.Context, chunks []Chunk) ([][]float32, error) {
	if len(chunks) == 0 {
		return [][]float32{}, nil
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	return e.embed(ctx, texts)
}

func (e *normalizingEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *normalizingEmbedder) embed(ctx context.Context, texts []string) ([][]float32, error) {
	vecs, err := e.backend.EmbedTexts(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", e.backend.ModelID(), err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("%s: got %d embeddings for %d texts", e.backend.ModelID(), len(vecs), len(texts))
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for i, v := range vecs {
		if e.dim == 0 {
			e.dim = len(v)
		}
		if len(v) != e.dim || len(v) == 0 {
			return nil, fmt.Errorf("%s: embedding dim changed mid-run: got %d want %d", e.backend.ModelID(), len(v), e.dim)
		}
		vecs[i] = NormalizeL2(v)
	}
	return vecs, nil
}

// NormalizeL2 returns v scaled to unit length. Zero vectors are returned as is.
func NormalizeL2(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	inv := 1 / math.Sqrt(sum)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) * inv)
	}
	return out
}

// Dot is the similarity used by the index; for unit vectors it equals cosine.
func Dot(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var s float64
	for i := 0; i < n; i++ {
		s += float64(a[i]) * float64(b[i])
	}
	return float32(s)
}

const DefaultHashDimension = 384

var wordRe = regexp.MustCompile(`[\p{L}\p{N}]+`)

// HashEmbedder is a local feature-hashing embedder over word unigrams and
// bigrams. It needs no model download or network and is fully deterministic.
type HashEmbedder struct {
	dim int
}

func NewHashEmbedder(dim int) *HashEmbedder {
	if dim <= 0 {
		dim = DefaultHashDimension
	}
	return &HashEmbedder{dim: dim}
}

func (h *HashEmbedder) ModelID() string { return fmt.Sprintf("hash:%d", h.dim) }

func (h *HashEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = h.vector(t)
	}
	return out, nil
}

func (h *HashEmbedder) vector(text string) []float32 {
	vec := make([]float32, h.dim)
	words := wordRe.FindAllString(strings.ToLower(text), -1)
	for i, w := range words {
		h.add(vec, w, 1)
		if i > 0 {
			h.add(vec, words[i-1]+" "+w, 0.5)
		}
	}
	return vec
}

func (h *HashEmbedder) add(vec []float32, feature string, weight float32) {
	f := fnv.New64a()
	_, _ = f.Write([]byte(feature))
	sum := f.Sum64()
	bucket := int(sum % uint64(h.dim))
	if sum>>63 == 1 {
		weight = -weight
	}
	vec[bucket] += weight
}
