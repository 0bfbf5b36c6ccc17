// Package proxima is an embedded, in-memory vector store with exact
// brute-force search and an optional HNSW-style approximate index.
//
// A Store holds vectors of a fixed dimension under a single distance
// metric. Mutations are serialized; searches run concurrently. The
// approximate index is a derived, immutable cache: any mutation invalidates
// it, and BuildIndex swaps in a freshly built graph.
package proxima

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/proximadb/proxima/distance"
	"github.com/proximadb/proxima/index/hnsw"
	"github.com/proximadb/proxima/metadata"
)

// Store is an in-memory vector collection with search. It is safe for
// concurrent use.
type Store struct {
	opts         options
	dimension    int
	metric       distance.Metric
	distanceFunc distance.Func

	mu    sync.RWMutex
	byID  map[string]uint32
	slots []*Vector // dense arena, nil when free
	free  []uint32
	count int
	gen   uint64 // bumped on every mutation, guards index swaps

	metaIdx *metadata.Index

	index atomic.Pointer[hnsw.Graph]
}

// New creates an empty store for vectors of the given dimension, compared
// with the given metric.
func New(dimension int, metric distance.Metric, optFns ...Option) (*Store, error) {
	if dimension < 1 {
		return nil, &ErrInvalidDimension{Dimension: dimension}
	}

	fn, err := distance.Provider(metric)
	if err != nil {
		return nil, err
	}

	return &Store{
		opts:         applyOptions(optFns),
		dimension:    dimension,
		metric:       metric,
		distanceFunc: fn,
		byID:         make(map[string]uint32),
		metaIdx:      metadata.NewIndex(),
	}, nil
}

// Dimension returns the fixed embedding length of the store.
func (s *Store) Dimension() int {
	return s.dimension
}

// Metric returns the distance metric of the store.
func (s *Store) Metric() distance.Metric {
	return s.metric
}

// Count returns the number of stored vectors.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.count
}

// Add inserts v, replacing any existing vector with the same id. The
// embedding length must match the store dimension. CreatedAt is stamped
// when zero. Any cached index is invalidated.
func (s *Store) Add(ctx context.Context, v Vector) error {
	start := time.Now()
	err := s.add(v)

	s.opts.metricsCollector.RecordInsert(time.Since(start), err)
	s.opts.logger.LogInsert(ctx, v.ID, len(v.Embedding), err)

	return err
}

// AddBatch inserts all vectors, preserving input order. The batch is
// all-or-nothing: every embedding is validated before any is applied, and a
// single invalid element fails the whole batch with no partial state.
func (s *Store) AddBatch(ctx context.Context, vectors []Vector) error {
	start := time.Now()
	err := s.addBatch(vectors)

	s.opts.metricsCollector.RecordBatchInsert(len(vectors), time.Since(start), err)
	s.opts.logger.LogBatchInsert(ctx, len(vectors), err)

	return err
}

// Get returns a copy of the vector stored under id. The second return
// value reports whether it exists.
func (s *Store) Get(id string) (Vector, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	slot, ok := s.byID[id]
	if !ok {
		return Vector{}, false
	}

	return s.slots[slot].clone(), true
}

// Delete removes the vector stored under id and reports whether it
// existed. Any cached index is invalidated on success.
func (s *Store) Delete(ctx context.Context, id string) bool {
	start := time.Now()

	s.mu.Lock()

	slot, found := s.byID[id]
	if found {
		delete(s.byID, id)
		s.slots[slot] = nil
		s.free = append(s.free, slot)
		s.count--
		s.metaIdx.Remove(slot)
		s.invalidateLocked()
	}

	s.mu.Unlock()

	s.opts.metricsCollector.RecordDelete(time.Since(start), found)
	s.opts.logger.LogDelete(ctx, id, found)

	return found
}

// Clear removes all vectors and invalidates any cached index.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.byID = make(map[string]uint32)
	s.slots = nil
	s.free = nil
	s.count = 0
	s.metaIdx = metadata.NewIndex()
	s.invalidateLocked()
}

// Stats describe the current state of a store.
type Stats struct {
	// Count is the number of stored vectors.
	Count int `json:"count"`

	// Dimensions is the fixed embedding length.
	Dimensions int `json:"dimensions"`

	// Metric is the stable name of the distance metric.
	Metric string `json:"metric"`

	// IndexCached reports whether a built proximity graph is available.
	IndexCached bool `json:"indexCached"`

	// MemoryBytes is a lower-bound footprint estimate covering the raw
	// embedding data (4 bytes per component).
	MemoryBytes int64 `json:"memoryBytes"`
}

// Stats returns a snapshot of store statistics.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Stats{
		Count:       s.count,
		Dimensions:  s.dimension,
		Metric:      s.metric.String(),
		IndexCached: s.index.Load() != nil,
		MemoryBytes: int64(s.count) * int64(s.dimension) * 4,
	}
}

func (s *Store) add(v Vector) error {
	if len(v.Embedding) != s.dimension {
		return &ErrDimensionMismatch{Expected: s.dimension, Actual: len(v.Embedding)}
	}

	if v.ID == "" {
		return fmt.Errorf("vector id must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.addLocked(v)

	return nil
}

func (s *Store) addBatch(vectors []Vector) error {
	for i := range vectors {
		if len(vectors[i].Embedding) != s.dimension {
			return fmt.Errorf("batch element %d: %w", i, &ErrDimensionMismatch{
				Expected: s.dimension,
				Actual:   len(vectors[i].Embedding),
			})
		}

		if vectors[i].ID == "" {
			return fmt.Errorf("batch element %d: vector id must not be empty", i)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range vectors {
		s.addLocked(vectors[i])
	}

	return nil
}

// addLocked inserts or replaces a validated vector. Caller holds mu.
func (s *Store) addLocked(v Vector) {
	stored := v.clone()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}

	slot, exists := s.byID[v.ID]
	if !exists {
		if n := len(s.free); n > 0 {
			slot = s.free[n-1]
			s.free = s.free[:n-1]
		} else {
			slot = uint32(len(s.slots))
			s.slots = append(s.slots, nil)
		}

		s.byID[v.ID] = slot
		s.count++
	}

	s.slots[slot] = &stored
	s.metaIdx.Set(slot, stored.Metadata)
	s.invalidateLocked()
}

// invalidateLocked drops the cached index. Mutations never edit a graph in
// place; readers holding the old graph finish against it. Caller holds mu.
func (s *Store) invalidateLocked() {
	s.gen++
	s.index.Store(nil)
}
