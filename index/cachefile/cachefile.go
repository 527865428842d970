// Package cachefile serializes an index.Index to and from the on-disk
// binary cache format spec.md §4.6/§6 describes: magic, version, then the
// arena blob followed by each hash table's header in a fixed order.
package cachefile

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"

	"github.com/pakvfs/corefs/arena"
	"github.com/pakvfs/corefs/index"
)

// Magic identifies a corefs index cache file.
const Magic uint32 = 0x43465856 // "CFXV"

// Version must match exactly; any mismatch discards the cache silently
// (spec.md §4.6, §6), never treated as a structural error.
const Version uint32 = 1

// ErrVersionMismatch signals a cache written by an incompatible version;
// callers must treat this as "no cache" and rescan from scratch, not as a
// fatal error.
var ErrVersionMismatch = errors.New("cachefile: version mismatch")

// Export writes idx's full serialized state: magic, version, the arena
// blob, then five table headers in a fixed order (string pool,
// files-by-name, directories, shaders, archives-by-hash). The mod-dir table is
// deliberately not persisted — it is rebuilt at session start from the
// active mod configuration, not from a scan, so caching it would only ever
// be shadowed by fresh state anyway.
func Export(w io.Writer, idx *index.Index) error {
	var hdr [8]byte
	binary.LittleEndian.PutUint32(hdr[0:], Magic)
	binary.LittleEndian.PutUint32(hdr[4:], Version)
	if _, err := w.Write(hdr[:]); err != nil {
		return errors.Wrap(err, "cachefile: writing header")
	}
	if err := idx.Arena.Export(w); err != nil {
		return errors.Wrap(err, "cachefile: writing arena")
	}
	if err := idx.Pool.Table().Export(w); err != nil {
		return errors.Wrap(err, "cachefile: writing string pool table")
	}
	for _, t := range []*arena.HashTable{idx.FilesByName(), idx.Directories(), idx.Shaders(), idx.ArchivesByHash()} {
		if err := t.Export(w); err != nil {
			return errors.Wrap(err, "cachefile: writing table")
		}
	}
	return nil
}

// Import reads a cache file written by Export into a fresh index.Index.
// Every LooseFile it restores starts at generation 0 (inactive); the
// caller's index.New already defaults currentGeneration to 1 via BeginScan,
// so imported entries are inactive until the next scan reactivates them,
// per spec.md §4.6's note on imported entries.
//
// A version mismatch returns ErrVersionMismatch and the caller must discard
// the cache silently and rescan; any other error (a truncated or corrupt
// file after the version check passes) is a structural validation failure
// and is fatal, matching spec.md's "structural validation mismatch is
// fatal".
func Import(r io.Reader, opener index.OpenerForImport) (*index.Index, error) {
	var hdr [8]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, errors.Wrap(err, "cachefile: reading header")
	}
	magic := binary.LittleEndian.Uint32(hdr[0:])
	version := binary.LittleEndian.Uint32(hdr[4:])
	if magic != Magic || version != Version {
		return nil, ErrVersionMismatch
	}

	a := arena.New(0)
	if err := a.Import(r); err != nil {
		return nil, errors.Wrap(err, "cachefile: importing arena")
	}
	pool, err := importStringPool(a, r)
	if err != nil {
		return nil, errors.Wrap(err, "cachefile: importing string pool table")
	}
	filesByName, err := arena.ImportHashTable(a, r)
	if err != nil {
		return nil, errors.Wrap(err, "cachefile: importing files-by-name table")
	}
	directories, err := arena.ImportHashTable(a, r)
	if err != nil {
		return nil, errors.Wrap(err, "cachefile: importing directories table")
	}
	shaders, err := arena.ImportHashTable(a, r)
	if err != nil {
		return nil, errors.Wrap(err, "cachefile: importing shaders table")
	}
	archivesByHash, err := arena.ImportHashTable(a, r)
	if err != nil {
		return nil, errors.Wrap(err, "cachefile: importing archives-by-hash table")
	}

	return index.Restore(a, pool, filesByName, directories, shaders, archivesByHash, opener)
}

func importStringPool(a *arena.Arena, r io.Reader) (*arena.StringPool, error) {
	ht, err := arena.ImportHashTable(a, r)
	if err != nil {
		return nil, err
	}
	return arena.RestoreStringPool(a, ht), nil
}
