package proxima

import (
	"context"
	"runtime"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"golang.org/x/sync/errgroup"

	"github.com/proximadb/proxima/internal/queue"
	"github.com/proximadb/proxima/metadata"
)

// DefaultK is the number of results returned when the caller does not ask
// for a specific k.
const DefaultK = 10

// parallelScanThreshold is the candidate count above which the brute-force
// scan fans out across CPUs.
const parallelScanThreshold = 4096

// SearchOptions control exact search behavior.
type SearchOptions struct {
	// K is the maximum number of results (default 10).
	K int

	// Threshold, when non-zero, keeps only results with distance less than
	// or equal to it.
	Threshold float32

	// Filter, when set, keeps only vectors whose metadata satisfies the
	// predicate.
	Filter func(md metadata.Metadata) bool

	// Filters, when set, keeps only vectors matching every filter. Equality
	// filters are served from the metadata index.
	Filters *metadata.FilterSet

	// IncludeEmbedding copies the matched embedding into each result.
	IncludeEmbedding bool
}

// WithK sets the maximum number of results.
func WithK(k int) func(*SearchOptions) {
	return func(o *SearchOptions) {
		o.K = k
	}
}

// WithThreshold keeps only results within the given distance.
func WithThreshold(threshold float32) func(*SearchOptions) {
	return func(o *SearchOptions) {
		o.Threshold = threshold
	}
}

// WithFilter keeps only vectors whose metadata satisfies the predicate.
func WithFilter(filter func(md metadata.Metadata) bool) func(*SearchOptions) {
	return func(o *SearchOptions) {
		o.Filter = filter
	}
}

// WithFilters keeps only vectors matching every filter in the set.
func WithFilters(filters ...metadata.Filter) func(*SearchOptions) {
	return func(o *SearchOptions) {
		o.Filters = metadata.NewFilterSet(filters...)
	}
}

// WithIncludeEmbedding copies embeddings into results.
func WithIncludeEmbedding() func(*SearchOptions) {
	return func(o *SearchOptions) {
		o.IncludeEmbedding = true
	}
}

// Search runs an exact brute-force scan over the whole collection and
// returns up to K results sorted by ascending distance.
func (s *Store) Search(ctx context.Context, query []float32, optFns ...func(o *SearchOptions)) ([]SearchResult, error) {
	opts := SearchOptions{K: DefaultK}

	for _, fn := range optFns {
		fn(&opts)
	}

	start := time.Now()
	results, err := s.search(ctx, query, opts)

	s.opts.metricsCollector.RecordSearch(opts.K, time.Since(start), err)
	s.opts.logger.LogSearch(ctx, opts.K, len(results), err)

	return results, err
}

func (s *Store) search(ctx context.Context, query []float32, opts SearchOptions) ([]SearchResult, error) {
	if len(query) != s.dimension {
		return nil, &ErrDimensionMismatch{Expected: s.dimension, Actual: len(query)}
	}

	if opts.K < 1 {
		return nil, ErrInvalidK
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.count == 0 {
		return nil, nil
	}

	candidates, residual := s.candidatesLocked(opts.Filters)
	if candidates != nil && candidates.IsEmpty() {
		return nil, nil
	}

	var filters *metadata.FilterSet
	if residual {
		filters = opts.Filters
	}

	found, err := s.scanLocked(ctx, query, candidates, filters, opts)
	if err != nil {
		return nil, err
	}

	return s.collectLocked(found, opts), nil
}

// candidatesLocked resolves a filter set against the metadata index. A nil
// bitmap means every live slot is a candidate. residual reports whether the
// full filter set must still be evaluated per candidate.
func (s *Store) candidatesLocked(fs *metadata.FilterSet) (*roaring.Bitmap, bool) {
	if fs == nil {
		return nil, false
	}

	bm, exact, ok := s.metaIdx.Candidates(fs)
	if !ok {
		return nil, true
	}

	return bm, !exact
}

// scanLocked computes distances for every candidate and keeps the K
// closest in a bounded max-heap. Large scans fan out across CPUs with one
// heap per worker, merged at the end.
func (s *Store) scanLocked(ctx context.Context, query []float32, candidates *roaring.Bitmap, filters *metadata.FilterSet, opts SearchOptions) (*queue.PriorityQueue, error) {
	slots := s.candidateSlotsLocked(candidates)

	if len(slots) < parallelScanThreshold {
		found := queue.NewMax(opts.K)
		s.scanChunkLocked(query, slots, filters, opts, found)

		return found, nil
	}

	workers := runtime.GOMAXPROCS(0)
	if workers > len(slots) {
		workers = len(slots)
	}

	heaps := make([]*queue.PriorityQueue, workers)
	chunk := (len(slots) + workers - 1) / workers

	g, _ := errgroup.WithContext(ctx)

	for w := 0; w < workers; w++ {
		lo := w * chunk

		hi := lo + chunk
		if hi > len(slots) {
			hi = len(slots)
		}

		heaps[w] = queue.NewMax(opts.K)

		part := slots[lo:hi]
		found := heaps[w]

		g.Go(func() error {
			s.scanChunkLocked(query, part, filters, opts, found)

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := heaps[0]

	for _, h := range heaps[1:] {
		for h.Len() > 0 {
			item, _ := h.PopItem()
			merged.PushBounded(item, opts.K)
		}
	}

	return merged, nil
}

func (s *Store) candidateSlotsLocked(candidates *roaring.Bitmap) []uint32 {
	if candidates != nil {
		return candidates.ToArray()
	}

	slots := make([]uint32, 0, s.count)

	for slot, v := range s.slots {
		if v != nil {
			slots = append(slots, uint32(slot))
		}
	}

	return slots
}

func (s *Store) scanChunkLocked(query []float32, slots []uint32, filters *metadata.FilterSet, opts SearchOptions, found *queue.PriorityQueue) {
	for _, slot := range slots {
		v := s.slots[slot]
		if v == nil {
			continue
		}

		if filters != nil && !filters.Matches(v.Metadata) {
			continue
		}

		if opts.Filter != nil && !opts.Filter(v.Metadata) {
			continue
		}

		d := s.distanceFunc(query, v.Embedding)

		if opts.Threshold != 0 && d > opts.Threshold {
			continue
		}

		found.PushBounded(queue.Item{Node: slot, Distance: d}, opts.K)
	}
}

// collectLocked drains the max-heap into results sorted ascending,
// attaching live metadata and, when requested, an embedding copy.
func (s *Store) collectLocked(found *queue.PriorityQueue, opts SearchOptions) []SearchResult {
	if found.Len() == 0 {
		return nil
	}

	results := make([]SearchResult, found.Len())

	for i := found.Len() - 1; i >= 0; i-- {
		item, _ := found.PopItem()
		v := s.slots[item.Node]

		result := SearchResult{
			ID:       v.ID,
			Distance: item.Distance,
			Metadata: v.Metadata.Clone(),
		}

		if opts.IncludeEmbedding {
			result.Embedding = make([]float32, len(v.Embedding))
			copy(result.Embedding, v.Embedding)
		}

		results[i] = result
	}

	return results
}
