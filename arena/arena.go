// Package arena implements the append-only, offset-addressable memory arena
// that backs the whole index: every entity the index owns (loose files,
// archive subfiles, directories, shaders, interned strings, hash table
// buckets) lives in one Arena and is referenced by other entities through
// 32-bit Offset handles rather than pointers. That makes the arena's
// contents, plus a handful of table headers, a directly serializable blob.
package arena

import (
	"encoding/binary"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// DefaultBucketSize is the capacity of a freshly appended bucket. Tests use
// a much smaller size so that bucket-boundary and exhaustion paths are
// cheap to exercise.
const DefaultBucketSize = 1 << 20 // 1 MiB

// align4 rounds n up to the next multiple of 4.
func align4(n uint32) uint32 {
	return (n + 3) &^ 3
}

// positionBits is the number of low bits of an Offset reserved for the
// intra-bucket position; the remaining high bits select the bucket.
const positionBits = 20 // 1 MiB buckets need 20 bits of intra-bucket offset

// Offset is an arena-relative handle: bucketID<<positionBits | position.
// The zero Offset is reserved to mean "absent" (a null reference).
type Offset uint32

// Null is the offset value meaning "absent".
const Null Offset = 0

// IsNull reports whether off is the null offset.
func (off Offset) IsNull() bool { return off == Null }

func newOffset(bucket int, pos uint32) Offset {
	return Offset(uint32(bucket)<<positionBits | pos)
}

func (off Offset) split() (bucket int, pos uint32) {
	return int(uint32(off) >> positionBits), uint32(off) & ((1 << positionBits) - 1)
}

// ErrCorruption is returned when an offset cannot be reconciled with the
// arena's bucket layout: the arena invariant that every non-null offset
// resolves has been broken. It is an ordinary returned error; nothing in
// this module logs it at Fatal level or panics on it.
var ErrCorruption = errors.New("arena: corruption: invalid offset")

// ErrExhausted is returned by Allocate when size exceeds a single bucket's
// capacity; the arena never spans a single allocation across buckets.
var ErrExhausted = errors.New("arena: exhausted: allocation larger than bucket capacity")

type bucket struct {
	data []byte
	fill uint32
}

// Arena is a bucketed, append-only allocator. It is NOT safe for concurrent
// use: per the specification's concurrency model (spec.md §5 / SPEC_FULL.md
// §5), all index mutation happens on a single cooperative thread.
type Arena struct {
	bucketSize uint32
	buckets    []*bucket
	log        *logrus.Entry
}

// New creates an empty Arena whose buckets are bucketSize bytes each.
// A bucketSize of 0 selects DefaultBucketSize.
func New(bucketSize uint32) *Arena {
	if bucketSize == 0 {
		bucketSize = DefaultBucketSize
	}
	return &Arena{
		bucketSize: bucketSize,
		log:        logrus.WithField("component", "arena"),
	}
}

// BucketSize returns the configured per-bucket capacity.
func (a *Arena) BucketSize() uint32 { return a.bucketSize }

// BucketCount returns the number of buckets currently appended.
func (a *Arena) BucketCount() int { return len(a.buckets) }

func (a *Arena) appendBucket() *bucket {
	b := &bucket{data: make([]byte, a.bucketSize)}
	a.buckets = append(a.buckets, b)
	a.log.WithField("bucket", len(a.buckets)-1).WithField("size", humanize.Bytes(uint64(a.bucketSize))).
		Debug("arena bucket appended")
	return b
}

// Allocate reserves size zero-initialized bytes and returns an Offset to
// them. size must be no larger than the arena's bucket capacity; Allocate
// never splits an allocation across two buckets.
func (a *Arena) Allocate(size uint32) (Offset, error) {
	size = align4(size)
	if size == 0 {
		size = 4
	}
	if size > a.bucketSize {
		return Null, errors.Wrapf(ErrExhausted, "requested %d bytes, bucket capacity %d", size, a.bucketSize)
	}
	// Offset 0 is Null, so position 0 of bucket 0 is never handed out.
	if len(a.buckets) == 0 {
		a.appendBucket().fill = 4
	}
	// Try the last bucket first (the common, append-only case).
	if n := len(a.buckets); n > 0 {
		b := a.buckets[n-1]
		if a.bucketSize-b.fill >= size {
			off := newOffset(n-1, b.fill)
			b.fill += size
			return off, nil
		}
	}
	b := a.appendBucket()
	off := newOffset(len(a.buckets)-1, b.fill)
	b.fill += size
	return off, nil
}

// Resolve dereferences off and returns a mutable view of size bytes
// starting at it. allowNull controls whether off == Null is tolerated
// (returning a nil slice, nil error) or reported as ErrCorruption.
func (a *Arena) Resolve(off Offset, size uint32, allowNull bool) ([]byte, error) {
	if off.IsNull() {
		if allowNull {
			return nil, nil
		}
		return nil, errors.Wrap(ErrCorruption, "null offset with allowNull=false")
	}
	bucketID, pos := off.split()
	if bucketID < 0 || bucketID >= len(a.buckets) {
		a.log.WithField("offset", uint32(off)).Error("offset resolves to out-of-range bucket")
		return nil, errors.Wrapf(ErrCorruption, "bucket %d out of range (have %d)", bucketID, len(a.buckets))
	}
	b := a.buckets[bucketID]
	end := pos + size
	if pos > b.fill || end > b.fill {
		return nil, errors.Wrapf(ErrCorruption, "offset %d..%d out of filled range [0,%d) in bucket %d", pos, end, b.fill, bucketID)
	}
	return b.data[pos:end], nil
}

// Export serializes the arena as: bucket count, then per bucket the fill
// followed by exactly `fill` bytes (unused capacity is not written).
func (a *Arena) Export(w io.Writer) error {
	var hdr [4]byte
	binary.LittleEndian.PutUint32(hdr[:], uint32(len(a.buckets)))
	if _, err := w.Write(hdr[:]); err != nil {
		return errors.Wrap(err, "arena: writing bucket count")
	}
	for i, b := range a.buckets {
		var fillBuf [4]byte
		binary.LittleEndian.PutUint32(fillBuf[:], b.fill)
		if _, err := w.Write(fillBuf[:]); err != nil {
			return errors.Wrapf(err, "arena: writing fill of bucket %d", i)
		}
		if _, err := w.Write(b.data[:b.fill]); err != nil {
			return errors.Wrapf(err, "arena: writing bytes of bucket %d", i)
		}
	}
	return nil
}

// Import replaces the arena's contents with the blob written by Export.
// A bucket whose recorded fill exceeds the arena's configured bucket size
// is a structural validation failure and is fatal (ErrCorruption), per
// spec.md §4.6's cache-file handling: a version mismatch is handled by the
// caller (index/cachefile) before Import is ever called, so anything that
// reaches here and fails is a genuine structural mismatch.
func (a *Arena) Import(r io.Reader) error {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return errors.Wrap(err, "arena: reading bucket count")
	}
	count := binary.LittleEndian.Uint32(hdr[:])
	buckets := make([]*bucket, 0, count)
	for i := uint32(0); i < count; i++ {
		var fillBuf [4]byte
		if _, err := io.ReadFull(r, fillBuf[:]); err != nil {
			return errors.Wrapf(err, "arena: reading fill of bucket %d", i)
		}
		fill := binary.LittleEndian.Uint32(fillBuf[:])
		if fill > a.bucketSize {
			return errors.Wrapf(ErrCorruption, "bucket %d fill %d exceeds bucket size %d", i, fill, a.bucketSize)
		}
		data := make([]byte, a.bucketSize)
		if _, err := io.ReadFull(r, data[:fill]); err != nil {
			return errors.Wrapf(err, "arena: reading bytes of bucket %d", i)
		}
		buckets = append(buckets, &bucket{data: data, fill: fill})
	}
	a.buckets = buckets
	return nil
}

// PutBytes allocates len(p) bytes and copies p into them, returning the
// offset. Used for string-pool entries and other variable-length blobs.
func (a *Arena) PutBytes(p []byte) (Offset, error) {
	off, err := a.Allocate(uint32(len(p)))
	if err != nil {
		return Null, err
	}
	dst, err := a.Resolve(off, uint32(len(p)), false)
	if err != nil {
		return Null, err
	}
	copy(dst, p)
	return off, nil
}

// GetBytes resolves a previously PutBytes-allocated region.
func (a *Arena) GetBytes(off Offset, n uint32) ([]byte, error) {
	return a.Resolve(off, n, n == 0)
}
