package blobstore

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

// ThrottledStore wraps another Store and limits the byte rate of blob
// reads and writes with a shared token bucket. Metadata operations
// (Delete, List) pass through unthrottled.
type ThrottledStore struct {
	inner   Store
	limiter *rate.Limiter
}

var _ Store = (*ThrottledStore)(nil)

// NewThrottledStore wraps inner with a bytes-per-second limit. burst is the
// largest single chunk the bucket can release; it also caps the momentary
// overshoot after an idle period.
func NewThrottledStore(inner Store, bytesPerSecond float64, burst int) *ThrottledStore {
	return &ThrottledStore{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(bytesPerSecond), burst),
	}
}

// Put writes the contents of r under name at a limited rate.
func (s *ThrottledStore) Put(ctx context.Context, name string, r io.Reader) error {
	return s.inner.Put(ctx, name, &throttledReader{
		ctx:     ctx,
		inner:   r,
		limiter: s.limiter,
	})
}

// Get opens the blob stored under name, limiting the read rate.
func (s *ThrottledStore) Get(ctx context.Context, name string) (io.ReadCloser, error) {
	rc, err := s.inner.Get(ctx, name)
	if err != nil {
		return nil, err
	}

	return &throttledReadCloser{
		throttledReader: throttledReader{
			ctx:     ctx,
			inner:   rc,
			limiter: s.limiter,
		},
		closer: rc,
	}, nil
}

// Delete removes the blob stored under name.
func (s *ThrottledStore) Delete(ctx context.Context, name string) error {
	return s.inner.Delete(ctx, name)
}

// List returns all blob names with the given prefix, sorted.
func (s *ThrottledStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.inner.List(ctx, prefix)
}

type throttledReader struct {
	ctx     context.Context
	inner   io.Reader
	limiter *rate.Limiter
}

func (r *throttledReader) Read(p []byte) (int, error) {
	// Keep each read within a single bucket reservation.
	if burst := r.limiter.Burst(); len(p) > burst {
		p = p[:burst]
	}

	n, err := r.inner.Read(p)
	if n > 0 {
		if werr := r.limiter.WaitN(r.ctx, n); werr != nil {
			return n, werr
		}
	}

	return n, err
}

type throttledReadCloser struct {
	throttledReader
	closer io.Closer
}

func (r *throttledReadCloser) Close() error {
	return r.closer.Close()
}
