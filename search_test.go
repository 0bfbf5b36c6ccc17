package proxima

import (
	"context"
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proximadb/proxima/distance"
	"github.com/proximadb/proxima/metadata"
	"github.com/proximadb/proxima/testutil"
)

func TestSearchScenario(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, 3, distance.MetricEuclidean)

	require.NoError(t, store.AddBatch(ctx, []Vector{
		{ID: "a", Embedding: []float32{1, 0, 0}},
		{ID: "b", Embedding: []float32{0, 1, 0}},
		{ID: "c", Embedding: []float32{1, 0, 0.001}},
	}))

	results, err := store.Search(ctx, []float32{1, 0, 0}, WithK(2))
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "a", results[0].ID)
	assert.Equal(t, "c", results[1].ID)
}

func TestSearchSortedAndCapped(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, 8, distance.MetricEuclidean)

	rng := testutil.NewRNG(21)

	for i, vec := range rng.UniformVectors(100, 8) {
		require.NoError(t, store.Add(ctx, Vector{ID: fmt.Sprintf("v%d", i), Embedding: vec}))
	}

	results, err := store.Search(ctx, rng.UniformVector(8), WithK(7))
	require.NoError(t, err)
	require.Len(t, results, 7)

	assert.True(t, sort.SliceIsSorted(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	}))
}

func TestSearchDefaultK(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, 2, distance.MetricEuclidean)

	for i := 0; i < 25; i++ {
		require.NoError(t, store.Add(ctx, Vector{
			ID:        fmt.Sprintf("v%d", i),
			Embedding: []float32{float32(i), float32(i)},
		}))
	}

	results, err := store.Search(ctx, []float32{0, 0})
	require.NoError(t, err)
	assert.Len(t, results, DefaultK)
}

func TestSearchThreshold(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, 1, distance.MetricEuclidean)

	require.NoError(t, store.AddBatch(ctx, []Vector{
		{ID: "near", Embedding: []float32{1}},
		{ID: "mid", Embedding: []float32{5}},
		{ID: "far", Embedding: []float32{100}},
	}))

	results, err := store.Search(ctx, []float32{0}, WithThreshold(10))
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "near", results[0].ID)
	assert.Equal(t, "mid", results[1].ID)
}

func TestSearchFilterPredicate(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, 2, distance.MetricEuclidean)

	require.NoError(t, store.AddBatch(ctx, []Vector{
		{ID: "a", Embedding: []float32{1, 0}, Metadata: metadata.Metadata{"lang": "go"}},
		{ID: "b", Embedding: []float32{1, 0.1}, Metadata: metadata.Metadata{"lang": "rust"}},
		{ID: "c", Embedding: []float32{1, 0.2}, Metadata: metadata.Metadata{"lang": "go"}},
	}))

	results, err := store.Search(ctx, []float32{1, 0}, WithFilter(func(md metadata.Metadata) bool {
		return md["lang"] == "go"
	}))
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "a", results[0].ID)
	assert.Equal(t, "c", results[1].ID)
}

func TestSearchFilters(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, 2, distance.MetricEuclidean)

	require.NoError(t, store.AddBatch(ctx, []Vector{
		{ID: "a", Embedding: []float32{1, 0}, Metadata: metadata.Metadata{"lang": "go", "stars": 10}},
		{ID: "b", Embedding: []float32{1, 0.1}, Metadata: metadata.Metadata{"lang": "go", "stars": 500}},
		{ID: "c", Embedding: []float32{1, 0.2}, Metadata: metadata.Metadata{"lang": "rust", "stars": 900}},
	}))

	t.Run("indexed equality", func(t *testing.T) {
		results, err := store.Search(ctx, []float32{1, 0}, WithFilters(metadata.Eq("lang", "go")))
		require.NoError(t, err)
		require.Len(t, results, 2)

		assert.Equal(t, "a", results[0].ID)
		assert.Equal(t, "b", results[1].ID)
	})

	t.Run("equality with residual range", func(t *testing.T) {
		results, err := store.Search(ctx, []float32{1, 0},
			WithFilters(metadata.Eq("lang", "go"), metadata.Gt("stars", 100)))
		require.NoError(t, err)
		require.Len(t, results, 1)

		assert.Equal(t, "b", results[0].ID)
	})

	t.Run("absent term matches nothing", func(t *testing.T) {
		results, err := store.Search(ctx, []float32{1, 0}, WithFilters(metadata.Eq("lang", "zig")))
		require.NoError(t, err)
		assert.Empty(t, results)
	})
}

func TestSearchIncludeEmbedding(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, 2, distance.MetricEuclidean)

	require.NoError(t, store.Add(ctx, Vector{ID: "a", Embedding: []float32{1, 2}}))

	results, err := store.Search(ctx, []float32{1, 2})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Nil(t, results[0].Embedding)

	results, err = store.Search(ctx, []float32{1, 2}, WithIncludeEmbedding())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, []float32{1, 2}, results[0].Embedding)
}

func TestSearchErrors(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, 2, distance.MetricEuclidean)

	require.NoError(t, store.Add(ctx, Vector{ID: "a", Embedding: []float32{1, 2}}))

	t.Run("dimension mismatch", func(t *testing.T) {
		_, err := store.Search(ctx, []float32{1, 2, 3})

		var mismatch *ErrDimensionMismatch
		require.ErrorAs(t, err, &mismatch)
	})

	t.Run("invalid k", func(t *testing.T) {
		_, err := store.Search(ctx, []float32{1, 2}, WithK(0))
		assert.ErrorIs(t, err, ErrInvalidK)
	})
}

func TestSearchEmptyStore(t *testing.T) {
	store := newTestStore(t, 2, distance.MetricEuclidean)

	results, err := store.Search(context.Background(), []float32{1, 2})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchParallelScan(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, 4, distance.MetricEuclidean)

	rng := testutil.NewRNG(31)
	vectors := rng.UniformVectors(parallelScanThreshold+100, 4)

	batch := make([]Vector, len(vectors))
	for i, vec := range vectors {
		batch[i] = Vector{ID: fmt.Sprintf("v%d", i), Embedding: vec}
	}

	require.NoError(t, store.AddBatch(ctx, batch))

	query := rng.UniformVector(4)

	parallel, err := store.Search(ctx, query, WithK(15))
	require.NoError(t, err)
	require.Len(t, parallel, 15)

	assert.True(t, sort.SliceIsSorted(parallel, func(i, j int) bool {
		return parallel[i].Distance < parallel[j].Distance
	}))

	// The fan-out path must agree with a serial rescan.
	type hit struct {
		id string
		d  float32
	}

	exact := make([]hit, 0, len(vectors))
	for i, vec := range vectors {
		exact = append(exact, hit{id: fmt.Sprintf("v%d", i), d: distance.Euclidean(query, vec)})
	}

	sort.Slice(exact, func(i, j int) bool { return exact[i].d < exact[j].d })

	for i, r := range parallel {
		assert.Equal(t, exact[i].id, r.ID)
	}
}
