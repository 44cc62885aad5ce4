package services

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
)

// VectorIndex stores (chunk, embedding) pairs for one session.
//
// Rebuild replaces the whole collection: the new entries are built first and
// swapped in at once, so Search observes either the old or the new set, and
// a failed Rebuild leaves the old set searchable.
type VectorIndex interface {
	Rebuild(ctx context.Context, name string, chunks []Chunk, embeddings [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]ScoredChunk, error)
	Count(ctx context.Context) (int, error)
	Chunks(ctx context.Context) ([]Chunk, error)
	Drop(ctx context.Context) error
}

// validateEntries checks the rebuild input and returns the common dimension.
func validateEntries(name string, chunks []Chunk, embeddings [][]float32) (int, error) {
	if len(chunks) == 0 {
		return 0, &IndexError{Kind: IndexEmpty, Collection: name}
	}
	if len(chunks) != len(embeddings) {
		return 0, &IndexError{Kind: IndexRebuildFailed, Collection: name,
			Err: fmt.Errorf("chunks and embeddings length mismatch: %d != %d", len(chunks), len(embeddings))}
	}
	dim := len(embeddings[0])
	if dim == 0 {
		return 0, &IndexError{Kind: IndexRebuildFailed, Collection: name, Err: fmt.Errorf("zero-length embedding")}
	}
	for i, e := range embeddings {
		if len(e) != dim {
			return 0, &IndexError{Kind: IndexRebuildFailed, Collection: name,
				Err: fmt.Errorf("embedding %d has dim %d, want %d", i, len(e), dim)}
		}
	}
	return dim, nil
}

func clampK(k, n int) int {
	if k <= 0 {
		k = 1
	}
	if k > n {
		k = n
	}
	return k
}

type memorySnapshot struct {
	name    string
	chunks  []Chunk
	vectors [][]float32
	dim     int
}

// MemoryIndex is an in-process index using brute-force dot product.
// Snapshots are immutable once published.
type MemoryIndex struct {
	rebuildMu sync.Mutex

	mu     sync.RWMutex
	active *memorySnapshot

	beforeSwap func() // test hook, runs after the new snapshot is built
}

func NewMemoryIndex() *MemoryIndex { return &MemoryIndex{} }

func (m *MemoryIndex) Rebuild(ctx context.Context, name string, chunks []Chunk, embeddings [][]float32) error {
	m.rebuildMu.Lock()
	defer m.rebuildMu.Unlock()

	dim, err := validateEntries(name, chunks, embeddings)
	if err != nil {
		return err
	}

	snap := &memorySnapshot{
		name:    name,
		chunks:  append([]Chunk(nil), chunks...),
		vectors: make([][]float32, len(embeddings)),
		dim:     dim,
	}
	for i, e := range embeddings {
		snap.vectors[i] = append([]float32(nil), e...)
	}
	if err := ctx.Err(); err != nil {
		return &IndexError{Kind: IndexRebuildFailed, Collection: name, Err: err}
	}
	if m.beforeSwap != nil {
		m.beforeSwap()
	}

	m.mu.Lock()
	m.active = snap
	m.mu.Unlock()

	log.Printf("INDEX: Collection '%s' rebuilt with %d entries (dim %d)", name, len(snap.chunks), dim)
	return nil
}

func (m *MemoryIndex) snapshot() *memorySnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active
}

func (m *MemoryIndex) Search(_ context.Context, query []float32, k int) ([]ScoredChunk, error) {
	snap := m.snapshot()
	if snap == nil || len(snap.chunks) == 0 {
		return nil, errEmptyIndex("")
	}
	if len(query) != snap.dim {
		return nil, fmt.Errorf("query dim %d != index dim %d", len(query), snap.dim)
	}

	scored := make([]ScoredChunk, len(snap.chunks))
	for i := range snap.chunks {
		scored[i] = ScoredChunk{Chunk: snap.chunks[i], Score: Dot(query, snap.vectors[i])}
	}
	sort.SliceStable(scored, func(a, b int) bool { return scored[a].Score > scored[b].Score })
	return scored[:clampK(k, len(scored))], nil
}

func (m *MemoryIndex) Count(_ context.Context) (int, error) {
	snap := m.snapshot()
	if snap == nil {
		return 0, nil
	}
	return len(snap.chunks), nil
}

func (m *MemoryIndex) Chunks(_ context.Context) ([]Chunk, error) {
	snap := m.snapshot()
	if snap == nil {
		return []Chunk{}, nil
	}
	return append([]Chunk(nil), snap.chunks...), nil
}

func (m *MemoryIndex) Drop(_ context.Context) error {
	m.rebuildMu.Lock()
	defer m.rebuildMu.Unlock()
	m.mu.Lock()
	m.active = nil
	m.mu.Unlock()
	return nil
}
