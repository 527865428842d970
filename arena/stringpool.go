package arena

import (
	"encoding/binary"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"
)

// StringPool deduplicates strings inside an Arena. Lookup is case
// insensitive; the canonical stored form preserves whichever case was
// first interned, per spec.md §3's invariant.
//
// Entry layout (all fields live inside one arena allocation so the chain
// link and the payload travel together): next(4) | length(4) | bytes...
type StringPool struct {
	arena *Arena
	table *HashTable
}

// NewStringPool creates a string pool with bucketCount hash buckets.
func NewStringPool(a *Arena, bucketCount uint32) (*StringPool, error) {
	ht, err := NewHashTable(a, bucketCount)
	if err != nil {
		return nil, errors.Wrap(err, "stringpool: allocating hash table")
	}
	return &StringPool{arena: a, table: ht}, nil
}

func lowerBytes(s string) []byte {
	b := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		b[i] = c
	}
	return b
}

// HashCI returns the case-insensitive hash used for both the string pool
// and, per spec.md §4.6, the files-by-name hash table.
func HashCI(s string) uint64 {
	return xxhash.Sum64(lowerBytes(s))
}

func (p *StringPool) readString(off Offset) (string, error) {
	lenBuf, err := p.arena.Resolve(off+4, 4, false)
	if err != nil {
		return "", err
	}
	n := binary.LittleEndian.Uint32(lenBuf)
	bytesBuf, err := p.arena.Resolve(off+8, n, n == 0)
	if err != nil {
		return "", err
	}
	return string(bytesBuf), nil
}

func (p *StringPool) allocString(s string) (Offset, error) {
	n := uint32(len(s))
	off, err := p.arena.Allocate(8 + n)
	if err != nil {
		return Null, err
	}
	lenBuf, err := p.arena.Resolve(off+4, 4, false)
	if err != nil {
		return Null, err
	}
	binary.LittleEndian.PutUint32(lenBuf, n)
	if n > 0 {
		dst, err := p.arena.Resolve(off+8, n, false)
		if err != nil {
			return Null, err
		}
		copy(dst, s)
	}
	return off, nil
}

// Intern looks up s case-insensitively. If found, it returns the offset of
// the existing (first-seen-case) entry and found=true. If not found and
// create is true, a new entry is allocated and inserted; found=false.
// If not found and create is false, Intern returns Null, false, nil.
func (p *StringPool) Intern(s string, create bool) (off Offset, found bool, err error) {
	h := HashCI(s)
	it, err := p.table.Iterate(h)
	if err != nil {
		return Null, false, err
	}
	for {
		cand, ok, err := it.Next()
		if err != nil {
			return Null, false, err
		}
		if !ok {
			break
		}
		stored, err := p.readString(cand)
		if err != nil {
			return Null, false, err
		}
		if strings.EqualFold(stored, s) {
			return cand, true, nil
		}
	}
	if !create {
		return Null, false, nil
	}
	off, err = p.allocString(s)
	if err != nil {
		return Null, false, err
	}
	if err := p.table.Insert(off, h); err != nil {
		return Null, false, err
	}
	return off, false, nil
}

// String resolves a previously-interned offset back to its text.
func (p *StringPool) String(off Offset) (string, error) {
	if off.IsNull() {
		return "", nil
	}
	return p.readString(off)
}

// Table exposes the underlying hash table, e.g. for cache-file export.
func (p *StringPool) Table() *HashTable { return p.table }

// RestoreStringPool reconstructs a StringPool around an already-imported
// hash table (index/cachefile imports the table header itself, since the
// header format is table-type-agnostic).
func RestoreStringPool(a *Arena, ht *HashTable) *StringPool {
	return &StringPool{arena: a, table: ht}
}
