package s3

import (
	"context"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proximadb/proxima/blobstore"
)

// Integration test against a real bucket. Set S3_BUCKET to enable.
func TestStoreIntegration(t *testing.T) {
	bucket := os.Getenv("S3_BUCKET")
	if bucket == "" {
		t.Skip("Skipping S3 integration test: S3_BUCKET not set")
	}

	ctx := context.Background()

	store, err := NewStoreFromEnv(ctx, bucket, "proxima-test")
	require.NoError(t, err)

	name := "snapshots/it"

	require.NoError(t, store.Put(ctx, name, strings.NewReader("payload")))

	t.Cleanup(func() {
		_ = store.Delete(ctx, name)
	})

	rc, err := store.Get(ctx, name)
	require.NoError(t, err)

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "payload", string(data))

	names, err := store.List(ctx, "snapshots/")
	require.NoError(t, err)
	assert.Contains(t, names, name)

	require.NoError(t, store.Delete(ctx, name))

	_, err = store.Get(ctx, name)
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}

func TestKeyPrefix(t *testing.T) {
	store := &Store{prefix: "root"}

	assert.Equal(t, "root/a/b", store.key("a/b"))

	store = &Store{}
	assert.Equal(t, "a/b", store.key("a/b"))
}
