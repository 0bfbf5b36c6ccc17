package proxima

import (
	"context"
	"time"

	"github.com/proximadb/proxima/index/hnsw"
)

// DefaultEF is the traversal budget used by SearchWithIndex when the caller
// does not provide one. It is raised to k when smaller.
const DefaultEF = hnsw.DefaultEF

// IndexSearchOptions control approximate search behavior.
type IndexSearchOptions struct {
	// EF is the candidate pool size on the base layer (default 50, clamped
	// to at least k).
	EF int

	// IncludeEmbedding copies the matched embedding into each result.
	IncludeEmbedding bool
}

// WithEF sets the traversal candidate budget.
func WithEF(ef int) func(*IndexSearchOptions) {
	return func(o *IndexSearchOptions) {
		o.EF = ef
	}
}

// WithIndexIncludeEmbedding copies embeddings into indexed search results.
func WithIndexIncludeEmbedding() func(*IndexSearchOptions) {
	return func(o *IndexSearchOptions) {
		o.IncludeEmbedding = true
	}
}

// BuildIndex discards any cached proximity graph and builds a fresh one
// from the current collection. Searches running against a previously built
// graph finish undisturbed.
func (s *Store) BuildIndex(ctx context.Context, optFns ...func(o *hnsw.Options)) error {
	start := time.Now()
	nodes, err := s.buildIndex(optFns)

	s.opts.metricsCollector.RecordBuild(nodes, time.Since(start), err)
	s.opts.logger.LogBuild(ctx, nodes, time.Since(start), err)

	return err
}

func (s *Store) buildIndex(optFns []func(o *hnsw.Options)) (int, error) {
	s.mu.RLock()

	gen := s.gen
	entries := make([]hnsw.Entry, 0, s.count)

	for _, v := range s.slots {
		if v != nil {
			entries = append(entries, hnsw.Entry{ID: v.ID, Vector: v.Embedding})
		}
	}

	s.mu.RUnlock()

	if s.opts.randomSeed != nil {
		optFns = append([]func(o *hnsw.Options){hnsw.WithRandomSeed(*s.opts.randomSeed)}, optFns...)
	}

	graph, err := hnsw.Build(s.dimension, s.distanceFunc, entries, optFns...)
	if err != nil {
		return 0, translateError(err)
	}

	// Swap in the new graph only if nothing mutated while it was building;
	// a stale graph must never resurrect the cache.
	s.mu.Lock()
	if s.gen == gen {
		s.index.Store(graph)
	}
	s.mu.Unlock()

	return graph.Len(), nil
}

// SearchWithIndex searches the proximity graph for the k nearest vectors,
// building the index with defaults first if none is cached. Metadata is
// joined live from the store, which stays authoritative; ids deleted since
// the build are dropped from the results.
func (s *Store) SearchWithIndex(ctx context.Context, query []float32, k int, optFns ...func(o *IndexSearchOptions)) ([]SearchResult, error) {
	opts := IndexSearchOptions{EF: DefaultEF}

	for _, fn := range optFns {
		fn(&opts)
	}

	start := time.Now()
	results, err := s.searchWithIndex(ctx, query, k, opts)

	s.opts.metricsCollector.RecordSearch(k, time.Since(start), err)
	s.opts.logger.LogSearch(ctx, k, len(results), err)

	return results, err
}

func (s *Store) searchWithIndex(ctx context.Context, query []float32, k int, opts IndexSearchOptions) ([]SearchResult, error) {
	if len(query) != s.dimension {
		return nil, &ErrDimensionMismatch{Expected: s.dimension, Actual: len(query)}
	}

	if k < 1 {
		return nil, ErrInvalidK
	}

	graph := s.index.Load()
	if graph == nil {
		if err := s.BuildIndex(ctx); err != nil {
			return nil, err
		}

		graph = s.index.Load()
		if graph == nil {
			// A concurrent mutation won the race; fall back to an
			// uncached build for this call.
			g, err := s.buildDetached()
			if err != nil {
				return nil, err
			}

			graph = g
		}
	}

	hits, err := graph.Search(query, k, opts.EF)
	if err != nil {
		return nil, translateError(err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]SearchResult, 0, len(hits))

	for _, hit := range hits {
		slot, ok := s.byID[hit.ID]
		if !ok {
			continue
		}

		v := s.slots[slot]

		result := SearchResult{
			ID:       hit.ID,
			Distance: hit.Distance,
			Metadata: v.Metadata.Clone(),
		}

		if opts.IncludeEmbedding {
			result.Embedding = make([]float32, len(v.Embedding))
			copy(result.Embedding, v.Embedding)
		}

		results = append(results, result)
	}

	return results, nil
}

// buildDetached builds a graph for immediate use without caching it.
func (s *Store) buildDetached() (*hnsw.Graph, error) {
	s.mu.RLock()

	entries := make([]hnsw.Entry, 0, s.count)

	for _, v := range s.slots {
		if v != nil {
			entries = append(entries, hnsw.Entry{ID: v.ID, Vector: v.Embedding})
		}
	}

	s.mu.RUnlock()

	var optFns []func(o *hnsw.Options)
	if s.opts.randomSeed != nil {
		optFns = append(optFns, hnsw.WithRandomSeed(*s.opts.randomSeed))
	}

	graph, err := hnsw.Build(s.dimension, s.distanceFunc, entries, optFns...)
	if err != nil {
		return nil, translateError(err)
	}

	return graph, nil
}
