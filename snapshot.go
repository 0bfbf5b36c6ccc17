package proxima

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/proximadb/proxima/blobstore"
	"github.com/proximadb/proxima/codec"
	"github.com/proximadb/proxima/distance"
)

// Compression selects how snapshot payloads are compressed on the wire.
type Compression string

const (
	// CompressionNone stores the payload as-is.
	CompressionNone Compression = "none"

	// CompressionZstd compresses the payload with zstandard.
	CompressionZstd Compression = "zstd"

	// CompressionLZ4 compresses the payload with the LZ4 frame format.
	CompressionLZ4 Compression = "lz4"
)

// ParseCompression resolves a compression name read from a snapshot header.
func ParseCompression(name string) (Compression, error) {
	switch Compression(name) {
	case CompressionNone, CompressionZstd, CompressionLZ4:
		return Compression(name), nil
	default:
		return "", fmt.Errorf("unknown compression %q", name)
	}
}

// snapshotMagic identifies a serialized snapshot container.
var snapshotMagic = [4]byte{'P', 'X', 'S', 'N'}

const snapshotVersion = 1

// Snapshot is the logical, codec-independent form of a store's contents.
type Snapshot struct {
	Dimensions int      `json:"dimensions"`
	Metric     string   `json:"metric"`
	Vectors    []Vector `json:"vectors"`
}

// ToSnapshot captures the current contents of the store.
func (s *Store) ToSnapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	vectors := make([]Vector, 0, s.count)

	for _, v := range s.slots {
		if v != nil {
			vectors = append(vectors, v.clone())
		}
	}

	return Snapshot{
		Dimensions: s.dimension,
		Metric:     s.metric.String(),
		Vectors:    vectors,
	}
}

// FromSnapshot constructs a new store from a logical snapshot. A
// structurally invalid snapshot fails the whole restore with
// ErrCorruptSnapshot and no partial state.
func FromSnapshot(snap Snapshot, optFns ...Option) (*Store, error) {
	metric, err := distance.ParseMetric(snap.Metric)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptSnapshot, err)
	}

	store, err := New(snap.Dimensions, metric, optFns...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptSnapshot, err)
	}

	if err := store.addBatch(snap.Vectors); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptSnapshot, err)
	}

	return store, nil
}

// WriteSnapshot serializes the store to w as a self-describing container:
// a fixed header naming the codec and compression, followed by the encoded
// payload.
func (s *Store) WriteSnapshot(w io.Writer) error {
	snap := s.ToSnapshot()

	payload, err := s.opts.codec.Marshal(snap)
	if err != nil {
		return err
	}

	payload, err = compressPayload(payload, s.opts.compression)
	if err != nil {
		return err
	}

	if err := writeHeader(w, s.opts.codec.Name(), string(s.opts.compression)); err != nil {
		return err
	}

	_, err = w.Write(payload)

	return err
}

// ReadSnapshot restores a store from a container previously written by
// WriteSnapshot. The codec and compression are taken from the header, so
// options only configure the new store's behavior.
func ReadSnapshot(r io.Reader, optFns ...Option) (*Store, error) {
	codecName, compressionName, err := readHeader(r)
	if err != nil {
		return nil, err
	}

	c, ok := codec.ByName(codecName)
	if !ok {
		return nil, fmt.Errorf("%w: unknown codec %q", ErrCorruptSnapshot, codecName)
	}

	compression, err := ParseCompression(compressionName)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptSnapshot, err)
	}

	payload, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptSnapshot, err)
	}

	payload, err = decompressPayload(payload, compression)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptSnapshot, err)
	}

	var snap Snapshot
	if err := c.Unmarshal(payload, &snap); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptSnapshot, err)
	}

	return FromSnapshot(snap, optFns...)
}

// SaveToFile writes a snapshot container to path.
func (s *Store) SaveToFile(ctx context.Context, path string) error {
	var buf bytes.Buffer

	err := s.WriteSnapshot(&buf)
	if err == nil {
		err = os.WriteFile(path, buf.Bytes(), 0o644)
	}

	s.opts.logger.LogSnapshot(ctx, path, err)

	return err
}

// LoadFromFile restores a store from a snapshot container at path.
func LoadFromFile(path string, optFns ...Option) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return ReadSnapshot(f, optFns...)
}

// SaveToBlob writes a snapshot container to a blob store under name.
func (s *Store) SaveToBlob(ctx context.Context, store blobstore.Store, name string) error {
	var buf bytes.Buffer

	err := s.WriteSnapshot(&buf)
	if err == nil {
		err = store.Put(ctx, name, &buf)
	}

	s.opts.logger.LogSnapshot(ctx, name, err)

	return err
}

// LoadFromBlob restores a store from a snapshot container in a blob store.
func LoadFromBlob(ctx context.Context, store blobstore.Store, name string, optFns ...Option) (*Store, error) {
	rc, err := store.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	return ReadSnapshot(rc, optFns...)
}

func writeHeader(w io.Writer, codecName, compressionName string) error {
	if len(codecName) > 255 || len(compressionName) > 255 {
		return fmt.Errorf("header field too long")
	}

	header := make([]byte, 0, 5+1+len(codecName)+1+len(compressionName))
	header = append(header, snapshotMagic[:]...)
	header = append(header, snapshotVersion)
	header = append(header, byte(len(codecName)))
	header = append(header, codecName...)
	header = append(header, byte(len(compressionName)))
	header = append(header, compressionName...)

	_, err := w.Write(header)

	return err
}

func readHeader(r io.Reader) (codecName, compressionName string, err error) {
	var fixed [5]byte
	if _, err := io.ReadFull(r, fixed[:]); err != nil {
		return "", "", fmt.Errorf("%w: short header: %w", ErrCorruptSnapshot, err)
	}

	if !bytes.Equal(fixed[:4], snapshotMagic[:]) {
		return "", "", fmt.Errorf("%w: bad magic", ErrCorruptSnapshot)
	}

	if fixed[4] != snapshotVersion {
		return "", "", fmt.Errorf("%w: unsupported version %d", ErrCorruptSnapshot, fixed[4])
	}

	codecName, err = readLenPrefixed(r)
	if err != nil {
		return "", "", err
	}

	compressionName, err = readLenPrefixed(r)
	if err != nil {
		return "", "", err
	}

	return codecName, compressionName, nil
}

func readLenPrefixed(r io.Reader) (string, error) {
	var n [1]byte
	if _, err := io.ReadFull(r, n[:]); err != nil {
		return "", fmt.Errorf("%w: short header: %w", ErrCorruptSnapshot, err)
	}

	buf := make([]byte, n[0])
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("%w: short header: %w", ErrCorruptSnapshot, err)
	}

	return string(buf), nil
}

func compressPayload(data []byte, c Compression) ([]byte, error) {
	switch c {
	case CompressionNone, "":
		return data, nil
	case CompressionZstd:
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, err
		}
		defer enc.Close()

		return enc.EncodeAll(data, nil), nil
	case CompressionLZ4:
		var buf bytes.Buffer

		w := lz4.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, err
		}

		if err := w.Close(); err != nil {
			return nil, err
		}

		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unknown compression %q", c)
	}
}

func decompressPayload(data []byte, c Compression) ([]byte, error) {
	switch c {
	case CompressionNone, "":
		return data, nil
	case CompressionZstd:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer dec.Close()

		return dec.DecodeAll(data, nil)
	case CompressionLZ4:
		return io.ReadAll(lz4.NewReader(bytes.NewReader(data)))
	default:
		return nil, fmt.Errorf("unknown compression %q", c)
	}
}
