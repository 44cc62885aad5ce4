// Package store persists the append-only study history (emotion samples and
// task events) and reads it back by trailing time window.
package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

const (
	KindEmotion = "emotion"
	KindTask    = "task"
)

// Record is one timestamped history entry.
type Record struct {
	Kind      string    `bson:"kind" json:"kind"`
	Value     string    `bson:"value" json:"value"`
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
}

// HistoryStore is append-only. Since returns records of kind with
// Timestamp >= since, oldest first.
type HistoryStore interface {
	Append(ctx context.Context, rec Record) error
	Since(ctx context.Context, kind string, since time.Time) ([]Record, error)
	Close() error
}

// MemoryStore keeps history in process; it is lost on exit.
type MemoryStore struct {
	mu      sync.RWMutex
	records []Record
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (m *MemoryStore) Append(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.Timestamp = rec.Timestamp.UTC()
	m.records = append(m.records, rec)
	return nil
}

func (m *MemoryStore) Since(_ context.Context, kind string, since time.Time) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Record{}
	for _, r := range m.records {
		if r.Kind == kind && !r.Timestamp.Before(since) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }
