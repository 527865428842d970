package arena

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"
)

// PutValue encodes a fixed-size value (a struct of only fixed-width
// numeric/array fields — no strings, slices, or pointers) into a fresh
// arena allocation and returns its offset. Every entity type the index
// stores (spec.md §3) is exactly such a struct, with its chaining "next"
// field declared first so HashTable's type-erased traversal works
// regardless of which concrete entity type it is walking.
func PutValue[T any](a *Arena, v T) (Offset, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
		return Null, errors.Wrap(err, "arena: encoding value")
	}
	return a.PutBytes(buf.Bytes())
}

// GetValue decodes the fixed-size value previously stored at off.
func GetValue[T any](a *Arena, off Offset) (T, error) {
	var v T
	size := uint32(binary.Size(v))
	buf, err := a.GetBytes(off, size)
	if err != nil {
		return v, err
	}
	if err := binary.Read(bytes.NewReader(buf), binary.LittleEndian, &v); err != nil {
		return v, errors.Wrap(err, "arena: decoding value")
	}
	return v, nil
}

// PutValueAt re-encodes v over an existing allocation at off, in place.
// Used for safe in-place mutation of "regular" files whose size/mtime
// changed between scans (spec.md §4.6 step 2).
func PutValueAt[T any](a *Arena, off Offset, v T) error {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
		return errors.Wrap(err, "arena: encoding value")
	}
	dst, err := a.Resolve(off, uint32(buf.Len()), false)
	if err != nil {
		return err
	}
	copy(dst, buf.Bytes())
	return nil
}
