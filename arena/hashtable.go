package arena

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// HashTable is a chained hash table whose buckets are themselves offsets
// into the arena: insertion and iteration never allocate anything outside
// the arena. Every entity stored in a HashTable is assumed to begin with a
// 4-byte little-endian "next" field (the type-erased chaining link spec.md
// §4.2 requires); HashTable never interprets any other part of the entry,
// so the same table implementation serves files-by-name, archives-by-hash,
// directories, and shaders alike.
type HashTable struct {
	arena       *Arena
	bucketCount uint32
	array       Offset // offset of a bucketCount*4 byte array of Offsets
	utilization uint32
}

// NewHashTable allocates a fresh bucket array of bucketCount entries (all
// initially Null) inside a.
func NewHashTable(a *Arena, bucketCount uint32) (*HashTable, error) {
	if bucketCount == 0 {
		bucketCount = 1
	}
	off, err := a.Allocate(bucketCount * 4)
	if err != nil {
		return nil, errors.Wrap(err, "hashtable: allocating bucket array")
	}
	return &HashTable{arena: a, bucketCount: bucketCount, array: off}, nil
}

func (h *HashTable) bucketSlot(hash uint64) (Offset, error) {
	idx := uint32(hash % uint64(h.bucketCount))
	buf, err := h.arena.Resolve(h.array, h.bucketCount*4, false)
	if err != nil {
		return Null, err
	}
	return Offset(binary.LittleEndian.Uint32(buf[idx*4 : idx*4+4])), nil
}

func (h *HashTable) setBucketSlot(hash uint64, val Offset) error {
	idx := uint32(hash % uint64(h.bucketCount))
	buf, err := h.arena.Resolve(h.array, h.bucketCount*4, false)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(buf[idx*4:idx*4+4], uint32(val))
	return nil
}

func (h *HashTable) readNext(entry Offset) (Offset, error) {
	buf, err := h.arena.Resolve(entry, 4, false)
	if err != nil {
		return Null, err
	}
	return Offset(binary.LittleEndian.Uint32(buf)), nil
}

func (h *HashTable) writeNext(entry Offset, next Offset) error {
	buf, err := h.arena.Resolve(entry, 4, false)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(buf, uint32(next))
	return nil
}

// Insert links entryOffset into the chain for hash, as the new chain head.
func (h *HashTable) Insert(entryOffset Offset, hash uint64) error {
	head, err := h.bucketSlot(hash)
	if err != nil {
		return err
	}
	if err := h.writeNext(entryOffset, head); err != nil {
		return err
	}
	if err := h.setBucketSlot(hash, entryOffset); err != nil {
		return err
	}
	h.utilization++
	return nil
}

// Iterator walks every entry chained under one hash bucket; the caller is
// responsible for filtering by equality (hash collisions are expected).
type Iterator struct {
	ht  *HashTable
	cur Offset
}

// Iterate returns an Iterator positioned at the head of hash's chain.
func (h *HashTable) Iterate(hash uint64) (*Iterator, error) {
	head, err := h.bucketSlot(hash)
	if err != nil {
		return nil, err
	}
	return &Iterator{ht: h, cur: head}, nil
}

// Next yields the current offset and advances; ok is false once the chain
// is exhausted.
func (it *Iterator) Next() (off Offset, ok bool, err error) {
	if it.cur.IsNull() {
		return Null, false, nil
	}
	off = it.cur
	it.cur, err = it.ht.readNext(it.cur)
	if err != nil {
		return Null, false, err
	}
	return off, true, nil
}

// AllIterator walks every entry in a table across every bucket, in bucket
// order then chain order, for callers that need a full-table scan rather
// than a single hash bucket's chain (e.g. the manifest engine's mod-dir-wide
// selectors, which have no single hash to look up by).
type AllIterator struct {
	ht     *HashTable
	bucket uint32
	cur    Offset
}

// IterateAll returns an AllIterator starting at bucket 0.
func (h *HashTable) IterateAll() *AllIterator {
	return &AllIterator{ht: h}
}

// Next yields the current offset and advances, skipping empty buckets; ok
// is false once every bucket has been exhausted.
func (it *AllIterator) Next() (Offset, bool, error) {
	for {
		if !it.cur.IsNull() {
			off := it.cur
			next, err := it.ht.readNext(it.cur)
			if err != nil {
				return Null, false, err
			}
			it.cur = next
			return off, true, nil
		}
		if it.bucket >= it.ht.bucketCount {
			return Null, false, nil
		}
		head, err := it.ht.bucketSlot(uint64(it.bucket))
		if err != nil {
			return Null, false, err
		}
		it.bucket++
		it.cur = head
	}
}

// BucketCount returns the number of buckets.
func (h *HashTable) BucketCount() uint32 { return h.bucketCount }

// Utilization returns the number of entries ever inserted (not decremented
// on deactivation: the index never deletes, only marks entries inactive).
func (h *HashTable) Utilization() uint32 { return h.utilization }

// tableHeader is the {bucket_count, utilization, array offset} triple
// serialized for each hash table in a cache file, per spec.md §4.2.
type tableHeader struct {
	BucketCount uint32
	Utilization uint32
	Array       Offset
}

// Export writes the table header. The bucket array's bytes themselves are
// part of the arena blob and are not duplicated here.
func (h *HashTable) Export(w io.Writer) error {
	hdr := tableHeader{BucketCount: h.bucketCount, Utilization: h.utilization, Array: h.array}
	return binary.Write(w, binary.LittleEndian, hdr)
}

// ImportHashTable reconstructs a HashTable header; the arena must already
// have been imported so the bucket array offset resolves.
func ImportHashTable(a *Arena, r io.Reader) (*HashTable, error) {
	var hdr tableHeader
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, errors.Wrap(err, "hashtable: reading header")
	}
	return &HashTable{arena: a, bucketCount: hdr.BucketCount, utilization: hdr.Utilization, array: hdr.Array}, nil
}
