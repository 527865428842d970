// Package index owns the arena, the string pool, and the hash tables
// (files-by-name, archives-by-hash, directories, shaders) that together
// form the persistent, hash-indexed database of every file reachable
// through any configured source directory (spec.md §1, §3, §4.6).
package index

import "github.com/pakvfs/corefs/arena"

// FileFlags is the shared flag set every File variant carries (spec.md §3).
type FileFlags uint8

const (
	FlagLoose FileFlags = 1 << iota
	FlagInArchive
	FlagInArchiveDownloadDir
	FlagNestedDirBundleArchive
)

// FileKind tags which concrete File variant an offset refers to, since the
// index's File type is a sum type of LooseFile and ArchiveSubfile (spec.md
// §9's "dynamic dispatch across file kinds" design note).
type FileKind uint8

const (
	KindLooseFile FileKind = iota
	KindArchiveSubfile
)

func (k FileKind) String() string {
	switch k {
	case KindLooseFile:
		return "LooseFile"
	case KindArchiveSubfile:
		return "ArchiveSubfile"
	default:
		return "unknown"
	}
}

// LooseFile is a file reachable directly from a source directory: a
// regular file, an archive, or a nested-dir-bundle member (spec.md §3).
// Every field is fixed-size so the whole struct can live as one arena
// allocation; Next must stay the first field for HashTable chaining.
type LooseFile struct {
	Next arena.Offset

	Dir   arena.Offset // interned logical directory
	Base  arena.Offset // interned base name
	Ext   arena.Offset // interned extension
	Flags uint8

	UncompressedSize uint32

	SourceDirID        uint16
	OSPath             arena.Offset // interned OS path
	ModDir             arena.Offset // interned mod-dir name
	NestedBundleParent arena.Offset // interned bundle name, or Null

	MTimeUnix int64

	ArchiveIdentityHash uint32 // 0 if this file is not itself an archive
	Generation          uint32

	SubfileCount uint32
	ShaderCount  uint32
}

// ArchiveSubfile is a file packaged inside an archive (spec.md §3).
type ArchiveSubfile struct {
	Next arena.Offset

	Dir   arena.Offset
	Base  arena.Offset
	Ext   arena.Offset
	Flags uint8

	UncompressedSize uint32

	Owner             arena.Offset // -> LooseFile (the owning archive)
	LocalHeaderOffset uint32
	CompressedSize    uint32
	Method            uint16
	Position          uint32 // intra-archive position, rule 15 tie-break
}

// Directory is an interned directory path with linked-list children, used
// only for prefix enumeration (spec.md §3, §4.11).
type Directory struct {
	Next arena.Offset

	Path           arena.Offset
	FirstChildDir  arena.Offset
	NextSiblingDir arena.Offset
	FirstChildFile arena.Offset // -> DirFileEntry chain
}

// DirFileEntry is one link in a Directory's child-file list; it tags
// whether Target is a LooseFile or an ArchiveSubfile offset.
type DirFileEntry struct {
	Next   arena.Offset
	Kind   uint8
	Target arena.Offset
}

// FileRef is the entry actually stored in the files-by-name table. Since
// that one table is shared between two differently-shaped entity types
// (LooseFile and ArchiveSubfile), every entry inserted is a fixed-size
// FileRef tagging which one Target points at — the table's generic chain
// traversal only ever reads FileRef's own Next field, never the target's.
type FileRef struct {
	Next   arena.Offset
	Kind   uint8 // FileKind
	Target arena.Offset
}

// Shader is one parsed material definition (spec.md §3, §4.4).
type Shader struct {
	Next arena.Offset

	Name       arena.Offset // interned, lowercased
	SourceKind uint8        // sourceKind
	Source     arena.Offset // -> LooseFile or ArchiveSubfile
	Start      uint32
	End        uint32
}

// ArchiveIdentityEntry maps an archive's identity hash to the LooseFile
// that holds it; multiple entries may share a hash (spec.md §3).
type ArchiveIdentityEntry struct {
	Next        arena.Offset
	ArchiveHash uint32
	LooseFile   arena.Offset
}

// ModDirStateEntry is the auxiliary mod-dir table the precedence engine's
// candidate annotation step (§4.7 step 2) consults to turn a candidate's
// mod-dir name into one of the four priority states.
type ModDirStateEntry struct {
	Next  arena.Offset
	Name  arena.Offset
	State uint8
}
