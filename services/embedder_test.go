package services

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"
)

func norm(v []float32) float64 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

func TestHashEmbedder_DeterministicAndNormalized(t *testing.T) {
	ctx := context.Background()
	e := NewEmbedder(NewHashEmbedder(0))
	if e.ModelID() != "hash:384" {
		t.Errorf("ModelID = %q", e.ModelID())
	}

	chunks := []Chunk{{Text: "Paris is the capital of France."}, {Text: "Water boils at 100 degrees."}}
	first, err := e.Embed(ctx, chunks)
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	second, err := NewEmbedder(NewHashEmbedder(0)).Embed(ctx, chunks)
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("same text produced different vectors")
	}
	for i, v := range first {
		if len(v) != 384 {
			t.Errorf("vector %d dim = %d", i, len(v))
		}
		if n := norm(v); math.Abs(n-1) > 1e-5 {
			t.Errorf("vector %d norm = %f", i, n)
		}
	}

	q, err := e.EmbedQuery(ctx, "Paris is the capital of France.")
	if err != nil {
		t.Fatalf("EmbedQuery: %v", err)
	}
	if !reflect.DeepEqual(q, first[0]) {
		t.Error("query and chunk embeddings of the same text differ")
	}
}

func TestHashEmbedder_SimilarTextScoresHigher(t *testing.T) {
	ctx := context.Background()
	e := NewEmbedder(NewHashEmbedder(384))

	q, _ := e.EmbedQuery(ctx, "capital of France")
	near, _ := e.EmbedQuery(ctx, "Paris is the capital of France")
	far, _ := e.EmbedQuery(ctx, "mitochondria produce energy in cells")

	if Dot(q, near) <= Dot(q, far) {
		t.Errorf("related text scored %f, unrelated %f", Dot(q, near), Dot(q, far))
	}
}

func TestEmbed_EmptyInput(t *testing.T) {
	vecs, err := NewEmbedder(NewHashEmbedder(8)).Embed(context.Background(), nil)
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if vecs == nil || len(vecs) != 0 {
		t.Errorf("Embed(nil) = %#v, want empty", vecs)
	}
}

type shiftingEmbedder struct{ calls int }

func (s *shiftingEmbedder) ModelID() string { return "shifting" }

func (s *shiftingEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	s.calls++
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, 2+s.calls)
		out[i][0] = 1
	}
	return out, nil
}

func TestEmbed_DimensionChangeIsError(t *testing.T) {
	ctx := context.Background()
	e := NewEmbedder(&shiftingEmbedder{})
	if _, err := e.EmbedQuery(ctx, "one"); err != nil {
		t.Fatalf("first call: %v", err)
	}
	if _, err := e.EmbedQuery(ctx, "two"); err == nil {
		t.Fatal("expected error when dimension changes")
	}
}

type failingEmbedder struct{}

func (failingEmbedder) ModelID() string { return "failing" }

func (failingEmbedder) EmbedTexts(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("model offline")
}

func TestEmbed_BackendErrorWrapped(t *testing.T) {
	_, err := NewEmbedder(failingEmbedder{}).EmbedQuery(context.Background(), "x")
	if err == nil || err.Error() != "failing: model offline" {
		t.Errorf("err = %v", err)
	}
}

func TestNormalizeL2_ZeroVector(t *testing.T) {
	v := []float32{0, 0, 0}
	if got := NormalizeL2(v); !reflect.DeepEqual(got, v) {
		t.Errorf("NormalizeL2(zero) = %v", got)
	}
}
