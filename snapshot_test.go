package proxima

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proximadb/proxima/blobstore"
	"github.com/proximadb/proxima/codec"
	"github.com/proximadb/proxima/distance"
	"github.com/proximadb/proxima/metadata"
	"github.com/proximadb/proxima/testutil"
)

func populatedStore(t *testing.T, optFns ...Option) *Store {
	t.Helper()

	store, err := New(4, distance.MetricCosine, optFns...)
	require.NoError(t, err)

	rng := testutil.NewRNG(55)

	batch := make([]Vector, 50)
	for i, vec := range rng.UniformVectors(50, 4) {
		batch[i] = Vector{
			ID:        fmt.Sprintf("v%d", i),
			Embedding: vec,
			Metadata:  metadata.Metadata{"n": i},
		}
	}

	require.NoError(t, store.AddBatch(context.Background(), batch))

	return store
}

func requireSameSearchResults(t *testing.T, a, b *Store, query []float32) {
	t.Helper()

	ctx := context.Background()

	ra, err := a.Search(ctx, query, WithK(10))
	require.NoError(t, err)

	rb, err := b.Search(ctx, query, WithK(10))
	require.NoError(t, err)

	require.Len(t, rb, len(ra))

	for i := range ra {
		assert.Equal(t, ra[i].ID, rb[i].ID)
		assert.Equal(t, ra[i].Distance, rb[i].Distance)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	store := populatedStore(t)

	snap := store.ToSnapshot()
	assert.Equal(t, 4, snap.Dimensions)
	assert.Equal(t, "cosine", snap.Metric)
	assert.Len(t, snap.Vectors, 50)

	restored, err := FromSnapshot(snap)
	require.NoError(t, err)

	assert.Equal(t, store.Count(), restored.Count())

	rng := testutil.NewRNG(56)
	for i := 0; i < 5; i++ {
		requireSameSearchResults(t, store, restored, rng.UniformVector(4))
	}
}

func TestWriteReadSnapshot(t *testing.T) {
	codecs := []codec.Codec{codec.JSON{}, codec.GoJSON{}}
	compressions := []Compression{CompressionNone, CompressionZstd, CompressionLZ4}

	for _, c := range codecs {
		for _, comp := range compressions {
			t.Run(fmt.Sprintf("%s_%s", c.Name(), comp), func(t *testing.T) {
				store := populatedStore(t, WithCodec(c), WithCompression(comp))

				var buf bytes.Buffer
				require.NoError(t, store.WriteSnapshot(&buf))

				restored, err := ReadSnapshot(&buf)
				require.NoError(t, err)

				assert.Equal(t, store.Count(), restored.Count())

				rng := testutil.NewRNG(57)
				requireSameSearchResults(t, store, restored, rng.UniformVector(4))
			})
		}
	}
}

func TestReadSnapshotCorrupt(t *testing.T) {
	t.Run("garbage", func(t *testing.T) {
		_, err := ReadSnapshot(bytes.NewReader([]byte("not a snapshot at all")))
		assert.ErrorIs(t, err, ErrCorruptSnapshot)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := ReadSnapshot(bytes.NewReader(nil))
		assert.ErrorIs(t, err, ErrCorruptSnapshot)
	})

	t.Run("truncated payload", func(t *testing.T) {
		store := populatedStore(t)

		var buf bytes.Buffer
		require.NoError(t, store.WriteSnapshot(&buf))

		_, err := ReadSnapshot(bytes.NewReader(buf.Bytes()[:buf.Len()/2]))
		assert.ErrorIs(t, err, ErrCorruptSnapshot)
	})

	t.Run("bad version", func(t *testing.T) {
		store := populatedStore(t)

		var buf bytes.Buffer
		require.NoError(t, store.WriteSnapshot(&buf))

		data := buf.Bytes()
		data[4] = 99

		_, err := ReadSnapshot(bytes.NewReader(data))
		assert.ErrorIs(t, err, ErrCorruptSnapshot)
	})
}

func TestFromSnapshotInvalid(t *testing.T) {
	t.Run("unknown metric", func(t *testing.T) {
		_, err := FromSnapshot(Snapshot{Dimensions: 2, Metric: "chebyshev"})
		assert.ErrorIs(t, err, ErrCorruptSnapshot)
	})

	t.Run("invalid dimensions", func(t *testing.T) {
		_, err := FromSnapshot(Snapshot{Dimensions: 0, Metric: "cosine"})
		assert.ErrorIs(t, err, ErrCorruptSnapshot)
	})

	t.Run("mismatched vector", func(t *testing.T) {
		_, err := FromSnapshot(Snapshot{
			Dimensions: 2,
			Metric:     "cosine",
			Vectors: []Vector{
				{ID: "a", Embedding: []float32{1, 0, 0}},
			},
		})
		assert.ErrorIs(t, err, ErrCorruptSnapshot)
	})
}

func TestSaveLoadFile(t *testing.T) {
	ctx := context.Background()
	store := populatedStore(t, WithCompression(CompressionZstd))

	path := filepath.Join(t.TempDir(), "store.snap")
	require.NoError(t, store.SaveToFile(ctx, path))

	restored, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, store.Count(), restored.Count())
}

func TestSaveLoadBlob(t *testing.T) {
	ctx := context.Background()
	store := populatedStore(t, WithCompression(CompressionLZ4))

	blobs := blobstore.NewMemoryStore()
	require.NoError(t, store.SaveToBlob(ctx, blobs, "snapshots/latest"))

	names, err := blobs.List(ctx, "snapshots/")
	require.NoError(t, err)
	assert.Equal(t, []string{"snapshots/latest"}, names)

	restored, err := LoadFromBlob(ctx, blobs, "snapshots/latest")
	require.NoError(t, err)

	assert.Equal(t, store.Count(), restored.Count())

	rng := testutil.NewRNG(58)
	requireSameSearchResults(t, store, restored, rng.UniformVector(4))
}
