package index

import (
	"io"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"

	"github.com/pakvfs/corefs/arena"
	"github.com/pakvfs/corefs/archive"
	"github.com/pakvfs/corefs/corelog"
	"github.com/pakvfs/corefs/external"
	"github.com/pakvfs/corefs/shader"
)

// Class is the (dir, name, ext) classification of a scanned file (spec.md
// §4.6 step 1), used to decide what the index does with it beyond plain
// indexing (shader parsing, archive reading) and, later, how the precedence
// engine weighs it.
type Class uint8

const (
	ClassRegular Class = iota
	ClassArchive
	ClassDownloadArchive
	ClassShaderFile
	ClassImage
	ClassCodeModule
	ClassConfig
)

// ArchiveExtensions lists the extensions (lowercase, no dot) the index
// treats as archives (spec.md §6's cvar-configurable archive extension, plus
// the common variants the rest of the pack's archive-aware backends expect).
var ArchiveExtensions = map[string]bool{
	"pk3": true,
	"pkz": true,
	"zip": true,
}

var imageExtensions = map[string]bool{
	"tga": true, "jpg": true, "jpeg": true, "png": true, "pcx": true, "dds": true, "webp": true,
}

var shaderExtensions = map[string]bool{
	"shader": true, "mtr": true,
}

var codeModuleExtensions = map[string]bool{
	"qvm": true,
}

var configExtensions = map[string]bool{
	"cfg": true, "json": true, "yaml": true, "yml": true,
}

// Classify implements spec.md §4.6 step 1. dir is the logical directory
// (mod-dir-relative) and ext the extension without a leading dot. ext is
// lowercased here before matching; dir is compared as given (the stored
// case is preserved separately via the string pool).
func Classify(dir, ext string, inDownloadDir bool) Class {
	lext := lowerASCII(ext)
	if ArchiveExtensions[lext] {
		if inDownloadDir {
			return ClassDownloadArchive
		}
		return ClassArchive
	}
	if dir == "scripts" && shaderExtensions[lext] {
		return ClassShaderFile
	}
	if imageExtensions[lext] {
		return ClassImage
	}
	if codeModuleExtensions[lext] {
		return ClassCodeModule
	}
	if configExtensions[lext] {
		return ClassConfig
	}
	return ClassRegular
}

func lowerASCII(s string) string {
	b := []byte(s)
	for i := range b {
		if b[i] >= 'A' && b[i] <= 'Z' {
			b[i] += 'a' - 'A'
		}
	}
	return string(b)
}

// ScanFile is everything the scanner (spec.md §4.5) observed about one
// filesystem entry, handed to the index for ingestion.
type ScanFile struct {
	ModDir             string
	Dir                string // logical directory, mod-dir-relative
	Base               string // base name without extension
	Ext                string
	OSPath             string
	NestedBundleParent string // "" if not inside a .pk3dir
	SourceDirID        uint16
	Size               uint32
	MTimeUnix          int64
	InDownloadDir      bool
}

// Index owns the arena, string pool and the index's four hash tables
// (files-by-name, archives-by-hash, directories, shaders), per spec.md
// §4.6, plus an auxiliary mod-dir state table. It has no internal locking
// and is not safe for concurrent use.
type Index struct {
	Arena  *arena.Arena
	Pool   *arena.StringPool
	Opener external.OSOpener

	filesByName    *arena.HashTable
	archivesByHash *arena.HashTable
	directories    *arena.HashTable
	shaders        *arena.HashTable
	modDirs        *arena.HashTable

	currentGeneration uint32
}

// ModDirState is one of the four mod-dir priority states the precedence
// engine's rule 4 and rule 9 compare (spec.md §4.7 step 2).
type ModDirState uint8

const (
	ModDirInactive ModDirState = iota
	ModDirBasegame
	ModDirBasemodOverlay
	ModDirCurrentMod
)

const (
	defaultTableBuckets = 4096
)

// OpenerForImport is the subset of external.OSOpener a restored index needs
// to read archives and shader files again on the next scan; named
// separately from external.OSOpener only so index/cachefile need not import
// external itself.
type OpenerForImport = external.OSOpener

// Restore reconstructs an Index from already-imported arena and table
// state (index/cachefile.Import's job). All restored LooseFile entries
// were written with whatever generation they had at export time, which is
// always < the fresh generation counter started below, so every entry is
// inactive until the next scan reactivates it (spec.md §4.6).
func Restore(a *arena.Arena, pool *arena.StringPool, filesByName, directories, shaders, archivesByHash *arena.HashTable, opener external.OSOpener) (*Index, error) {
	modDirs, err := arena.NewHashTable(a, 64)
	if err != nil {
		return nil, errors.Wrap(err, "index: creating mod-dir table")
	}
	return &Index{
		Arena:             a,
		Pool:              pool,
		Opener:            opener,
		filesByName:       filesByName,
		directories:       directories,
		shaders:           shaders,
		archivesByHash:    archivesByHash,
		modDirs:           modDirs,
		currentGeneration: 1,
	}, nil
}

// New creates an empty index backed by a fresh arena.
func New(opener external.OSOpener) (*Index, error) {
	a := arena.New(0)
	pool, err := arena.NewStringPool(a, defaultTableBuckets)
	if err != nil {
		return nil, errors.Wrap(err, "index: creating string pool")
	}
	filesByName, err := arena.NewHashTable(a, defaultTableBuckets)
	if err != nil {
		return nil, errors.Wrap(err, "index: creating files-by-name table")
	}
	archivesByHash, err := arena.NewHashTable(a, defaultTableBuckets)
	if err != nil {
		return nil, errors.Wrap(err, "index: creating archives-by-hash table")
	}
	directories, err := arena.NewHashTable(a, defaultTableBuckets)
	if err != nil {
		return nil, errors.Wrap(err, "index: creating directories table")
	}
	shaders, err := arena.NewHashTable(a, defaultTableBuckets)
	if err != nil {
		return nil, errors.Wrap(err, "index: creating shaders table")
	}
	modDirs, err := arena.NewHashTable(a, 64)
	if err != nil {
		return nil, errors.Wrap(err, "index: creating mod-dir table")
	}
	return &Index{
		Arena:             a,
		Pool:              pool,
		Opener:            opener,
		filesByName:       filesByName,
		archivesByHash:    archivesByHash,
		directories:       directories,
		shaders:           shaders,
		modDirs:           modDirs,
		currentGeneration: 1,
	}, nil
}

// SetModDirState records dir's priority state, overwriting any prior entry
// for the same name (a fresh entry is appended and shadows the old one on
// lookup, which always returns the most recently inserted match — mod-dir
// state changes at most once per session, when the active mod changes).
func (idx *Index) SetModDirState(dir string, state ModDirState) error {
	nameOff, err := idx.intern(dir)
	if err != nil {
		return err
	}
	entry := ModDirStateEntry{Name: nameOff, State: uint8(state)}
	off, err := arena.PutValue(idx.Arena, entry)
	if err != nil {
		return err
	}
	return idx.modDirs.Insert(off, arena.HashCI(dir))
}

// ModDirStateOf returns dir's recorded priority state, defaulting to
// ModDirInactive if never set.
func (idx *Index) ModDirStateOf(dir string) (ModDirState, error) {
	it, err := idx.modDirs.Iterate(arena.HashCI(dir))
	if err != nil {
		return ModDirInactive, err
	}
	var found *ModDirStateEntry
	for {
		off, ok, err := it.Next()
		if err != nil {
			return ModDirInactive, err
		}
		if !ok {
			break
		}
		e, err := arena.GetValue[ModDirStateEntry](idx.Arena, off)
		if err != nil {
			return ModDirInactive, err
		}
		name, err := idx.Pool.String(e.Name)
		if err != nil {
			return ModDirInactive, err
		}
		if name == dir {
			found = &e
			break
		}
	}
	if found == nil {
		return ModDirInactive, nil
	}
	return ModDirState(found.State), nil
}

// BeginScan advances the generation counter; entries not reactivated or
// created during the scan that follows become inactive (spec.md §3, §4.6).
func (idx *Index) BeginScan() {
	idx.currentGeneration++
}

// Generation returns the index's current generation.
func (idx *Index) Generation() uint32 { return idx.currentGeneration }

// filesByNameHash implements spec.md §4.6's "files-by-name hash is
// case_insensitive_hash(basename) ^ case_insensitive_hash(dirname)".
func filesByNameHash(base, dir string) uint64 {
	return arena.HashCI(base) ^ arena.HashCI(dir)
}

// intern interns s, creating it if absent, and wraps any arena error.
func (idx *Index) intern(s string) (arena.Offset, error) {
	off, _, err := idx.Pool.Intern(s, true)
	return off, err
}

// insertFileRef wraps target in a fixed-size FileRef and inserts it into
// files-by-name, the type-erasure indirection that lets one chain mix
// LooseFile and ArchiveSubfile targets (spec.md §9's "dynamic dispatch
// across file kinds" note).
func (idx *Index) insertFileRef(target arena.Offset, kind FileKind, base, dir string) error {
	ref := FileRef{Kind: uint8(kind), Target: target}
	refOff, err := arena.PutValue(idx.Arena, ref)
	if err != nil {
		return err
	}
	return idx.filesByName.Insert(refOff, filesByNameHash(base, dir))
}

// Ingest implements spec.md §4.6 steps 2-4 for one scanned file: find an
// existing matching entry and reactivate or mutate it in place, or allocate
// a new LooseFile (reading it as an archive and/or shader file as needed).
func (idx *Index) Ingest(sf ScanFile) error {
	class := Classify(sf.Dir, sf.Ext, sf.InDownloadDir)

	existing, err := idx.findMatchingLooseFile(sf)
	if err != nil {
		return err
	}
	if existing != arena.Null {
		lf, err := arena.GetValue[LooseFile](idx.Arena, existing)
		if err != nil {
			return err
		}
		if lf.UncompressedSize == sf.Size && lf.MTimeUnix == sf.MTimeUnix {
			lf.Generation = idx.currentGeneration
			return arena.PutValueAt(idx.Arena, existing, lf)
		}
		if class == ClassRegular {
			// Safe in-place mutation: a regular file is never structurally
			// indexed by size/mtime, only by (mod-dir, dir, name, ext, OS
			// path, bundle parent).
			lf.UncompressedSize = sf.Size
			lf.MTimeUnix = sf.MTimeUnix
			lf.Generation = idx.currentGeneration
			return arena.PutValueAt(idx.Arena, existing, lf)
		}
		// Size/mtime changed on a structurally-indexed kind: the old entry
		// is simply left inactive and a fresh LooseFile is allocated below.
	}

	return idx.allocateNewLooseFile(sf, class)
}

// findMatchingLooseFile searches the files-by-name chain for a LooseFile
// entry whose (mod-dir, dir, name, ext, OS path, bundle parent) match sf,
// regardless of size/mtime (spec.md §4.6 step 2).
func (idx *Index) findMatchingLooseFile(sf ScanFile) (arena.Offset, error) {
	hash := filesByNameHash(sf.Base, sf.Dir)
	it, err := idx.filesByName.Iterate(hash)
	if err != nil {
		return arena.Null, err
	}
	for {
		refOff, ok, err := it.Next()
		if err != nil {
			return arena.Null, err
		}
		if !ok {
			return arena.Null, nil
		}
		ref, err := arena.GetValue[FileRef](idx.Arena, refOff)
		if err != nil {
			return arena.Null, err
		}
		if FileKind(ref.Kind) != KindLooseFile {
			continue
		}
		lf, err := arena.GetValue[LooseFile](idx.Arena, ref.Target)
		if err != nil {
			return arena.Null, err
		}
		matches, err := idx.looseFileMatches(lf, sf)
		if err != nil {
			return arena.Null, err
		}
		if matches {
			return ref.Target, nil
		}
	}
}

// CandidateRef is one entry yielded by LookupByName: a resolved (kind,
// offset) pair the precedence engine turns into a Candidate.
type CandidateRef struct {
	Kind   FileKind
	Offset arena.Offset
}

// LookupByName walks the files-by-name chain for (base, dir) and yields
// every entry whose interned base+dir match case-insensitively, along with
// whether the match was case-exact (spec.md §4.7 step 1's candidate
// collection plus the case-mismatch annotation of step 2). The precedence
// engine is the only consumer of this method.
func (idx *Index) LookupByName(base, dir string) ([]CandidateRef, []bool, error) {
	hash := filesByNameHash(base, dir)
	it, err := idx.filesByName.Iterate(hash)
	if err != nil {
		return nil, nil, err
	}
	var refs []CandidateRef
	var caseExact []bool
	for {
		refOff, ok, err := it.Next()
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			break
		}
		ref, err := arena.GetValue[FileRef](idx.Arena, refOff)
		if err != nil {
			return nil, nil, err
		}
		kind := FileKind(ref.Kind)
		var gotBase, gotDir arena.Offset
		switch kind {
		case KindLooseFile:
			lf, err := arena.GetValue[LooseFile](idx.Arena, ref.Target)
			if err != nil {
				return nil, nil, err
			}
			gotBase, gotDir = lf.Base, lf.Dir
		case KindArchiveSubfile:
			as, err := arena.GetValue[ArchiveSubfile](idx.Arena, ref.Target)
			if err != nil {
				return nil, nil, err
			}
			gotBase, gotDir = as.Base, as.Dir
		}
		gotBaseStr, err := idx.Pool.String(gotBase)
		if err != nil {
			return nil, nil, err
		}
		gotDirStr, err := idx.Pool.String(gotDir)
		if err != nil {
			return nil, nil, err
		}
		if !equalFold(gotBaseStr, base) || !equalFold(gotDirStr, dir) {
			continue
		}
		refs = append(refs, CandidateRef{Kind: kind, Offset: ref.Target})
		caseExact = append(caseExact, gotBaseStr == base && gotDirStr == dir)
	}
	return refs, caseExact, nil
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if ca >= 'A' && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if cb >= 'A' && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// LooseFileView exposes LooseFile field strings and metadata needed to build a
// precedence.Candidate, without leaking arena offsets into package
// precedence beyond the opaque arena.Offset type itself.
type LooseFileView struct {
	Dir, Base, Ext      string
	ModDir              string
	OSPath              string
	SourceDirID         uint16
	Flags               uint8
	ArchiveIdentityHash uint32
	UncompressedSize    uint32
	Active              bool
}

// ViewLooseFile resolves a LooseFile offset into a LooseFileView.
func (idx *Index) ViewLooseFile(off arena.Offset) (LooseFileView, error) {
	lf, err := arena.GetValue[LooseFile](idx.Arena, off)
	if err != nil {
		return LooseFileView{}, err
	}
	return idx.viewLooseFile(lf)
}

func (idx *Index) viewLooseFile(lf LooseFile) (LooseFileView, error) {
	var v LooseFileView
	var err error
	if v.Dir, err = idx.Pool.String(lf.Dir); err != nil {
		return v, err
	}
	if v.Base, err = idx.Pool.String(lf.Base); err != nil {
		return v, err
	}
	if v.Ext, err = idx.Pool.String(lf.Ext); err != nil {
		return v, err
	}
	if v.ModDir, err = idx.Pool.String(lf.ModDir); err != nil {
		return v, err
	}
	if v.OSPath, err = idx.Pool.String(lf.OSPath); err != nil {
		return v, err
	}
	v.SourceDirID = lf.SourceDirID
	v.Flags = lf.Flags
	v.ArchiveIdentityHash = lf.ArchiveIdentityHash
	v.UncompressedSize = lf.UncompressedSize
	v.Active = lf.Generation == idx.currentGeneration
	return v, nil
}

// ArchiveSubfileView is the ArchiveSubfile analogue of LooseFileView, plus
// its owning archive's view (the precedence engine needs both: its own
// extension/flags and its owner's archive name and download-dir state).
type ArchiveSubfileView struct {
	Dir, Base, Ext   string
	Flags            uint8
	Position         uint32
	UncompressedSize uint32
	Owner            arena.Offset
	OwnerView        LooseFileView
	Active           bool
}

// ViewArchiveSubfile resolves an ArchiveSubfile offset into a view,
// including its owning LooseFile's view.
func (idx *Index) ViewArchiveSubfile(off arena.Offset) (ArchiveSubfileView, error) {
	as, err := arena.GetValue[ArchiveSubfile](idx.Arena, off)
	if err != nil {
		return ArchiveSubfileView{}, err
	}
	var v ArchiveSubfileView
	if v.Dir, err = idx.Pool.String(as.Dir); err != nil {
		return v, err
	}
	if v.Base, err = idx.Pool.String(as.Base); err != nil {
		return v, err
	}
	if v.Ext, err = idx.Pool.String(as.Ext); err != nil {
		return v, err
	}
	v.Flags = as.Flags
	v.Position = as.Position
	v.UncompressedSize = as.UncompressedSize
	v.Owner = as.Owner
	ownerLF, err := arena.GetValue[LooseFile](idx.Arena, as.Owner)
	if err != nil {
		return v, err
	}
	if v.OwnerView, err = idx.viewLooseFile(ownerLF); err != nil {
		return v, err
	}
	v.Active = v.OwnerView.Active
	return v, nil
}

// ShaderView is what the precedence engine's shader-name walk needs.
type ShaderView struct {
	Name       string
	SourceKind FileKind
	Source     arena.Offset
	Start, End uint32
}

// LookupShaders returns every Shader entry with the given interned name
// (case-insensitive), per spec.md §4.7 step 1's shader-name walk.
func (idx *Index) LookupShaders(name string) ([]ShaderView, error) {
	it, err := idx.shaders.Iterate(arena.HashCI(name))
	if err != nil {
		return nil, err
	}
	var views []ShaderView
	for {
		off, ok, err := it.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		sh, err := arena.GetValue[Shader](idx.Arena, off)
		if err != nil {
			return nil, err
		}
		gotName, err := idx.Pool.String(sh.Name)
		if err != nil {
			return nil, err
		}
		if !equalFold(gotName, name) {
			continue
		}
		views = append(views, ShaderView{
			Name:       gotName,
			SourceKind: FileKind(sh.SourceKind),
			Source:     sh.Source,
			Start:      sh.Start,
			End:        sh.End,
		})
	}
	return views, nil
}

// ArchiveSystemPakHash returns the identity hash for the archive stored at
// a LooseFile offset, used by the precedence engine's system-pak-rank
// annotation in concert with a caller-supplied rank table.
func (idx *Index) ArchiveSystemPakHash(off arena.Offset) (uint32, error) {
	lf, err := arena.GetValue[LooseFile](idx.Arena, off)
	if err != nil {
		return 0, err
	}
	return lf.ArchiveIdentityHash, nil
}

func (idx *Index) looseFileMatches(lf LooseFile, sf ScanFile) (bool, error) {
	fields := []struct {
		off  arena.Offset
		want string
	}{
		{lf.ModDir, sf.ModDir},
		{lf.Dir, sf.Dir},
		{lf.Base, sf.Base},
		{lf.Ext, sf.Ext},
		{lf.OSPath, sf.OSPath},
		{lf.NestedBundleParent, sf.NestedBundleParent},
	}
	for _, f := range fields {
		got, err := idx.Pool.String(f.off)
		if err != nil {
			return false, err
		}
		if got != f.want {
			return false, nil
		}
	}
	return true, nil
}

func (idx *Index) allocateNewLooseFile(sf ScanFile, class Class) error {
	dirOff, err := idx.intern(sf.Dir)
	if err != nil {
		return err
	}
	baseOff, err := idx.intern(sf.Base)
	if err != nil {
		return err
	}
	extOff, err := idx.intern(sf.Ext)
	if err != nil {
		return err
	}
	modDirOff, err := idx.intern(sf.ModDir)
	if err != nil {
		return err
	}
	osPathOff, err := idx.intern(sf.OSPath)
	if err != nil {
		return err
	}
	bundleOff := arena.Null
	if sf.NestedBundleParent != "" {
		bundleOff, err = idx.intern(sf.NestedBundleParent)
		if err != nil {
			return err
		}
	}

	var flags uint8
	switch class {
	case ClassArchive:
		flags |= uint8(FlagLoose)
	case ClassDownloadArchive:
		flags |= uint8(FlagLoose) | uint8(FlagInArchiveDownloadDir)
	default:
		flags |= uint8(FlagLoose)
	}
	if sf.NestedBundleParent != "" {
		flags |= uint8(FlagNestedDirBundleArchive)
	}

	lf := LooseFile{
		Dir:                dirOff,
		Base:               baseOff,
		Ext:                extOff,
		Flags:              flags,
		UncompressedSize:   sf.Size,
		SourceDirID:        sf.SourceDirID,
		OSPath:             osPathOff,
		ModDir:             modDirOff,
		NestedBundleParent: bundleOff,
		MTimeUnix:          sf.MTimeUnix,
		Generation:         idx.currentGeneration,
	}

	off, err := arena.PutValue(idx.Arena, lf)
	if err != nil {
		return err
	}
	if err := idx.insertFileRef(off, KindLooseFile, sf.Base, sf.Dir); err != nil {
		return err
	}
	if err := idx.linkFileIntoDirectory(sf.Dir, KindLooseFile, off); err != nil {
		return err
	}

	if class == ClassArchive || class == ClassDownloadArchive {
		if err := idx.ingestArchive(off, &lf, sf); err != nil {
			corelog.For(corelog.Index).WithField("path", sf.OSPath).WithError(err).
				Warn("archive-malformed: skipping subfile ingestion")
			return nil
		}
		if err := arena.PutValueAt(idx.Arena, off, lf); err != nil {
			return err
		}
	}

	if class == ClassShaderFile {
		if err := idx.ingestShaderFile(off, &lf, sf); err != nil {
			corelog.For(corelog.Index).WithField("path", sf.OSPath).WithError(err).
				Warn("shader-file could not be read, skipping")
			return nil
		}
		if err := arena.PutValueAt(idx.Arena, off, lf); err != nil {
			return err
		}
	}

	return nil
}

// ingestArchive implements spec.md §4.6 step 3's archive branch: reads the
// archive, allocates an ArchiveSubfile per entry, interns its path
// components, inserts it into files-by-name, and records the archive's
// identity hash both on the LooseFile and in archives-by-hash.
func (idx *Index) ingestArchive(owner arena.Offset, lf *LooseFile, sf ScanFile) error {
	a, err := archive.Open(sf.OSPath, idx.Opener)
	if err != nil {
		return errors.Wrap(err, "index: reading archive")
	}
	lf.ArchiveIdentityHash = a.IdentityHash

	var count uint32
	var totalSize uint64
	for i, s := range a.Subfiles {
		if s.IsDir {
			continue
		}
		totalSize += uint64(s.UncompressedSize)
		dir, base, ext := splitSubfilePath(s.Name)
		dirOff, err := idx.intern(dir)
		if err != nil {
			return err
		}
		baseOff, err := idx.intern(base)
		if err != nil {
			return err
		}
		extOff, err := idx.intern(ext)
		if err != nil {
			return err
		}
		var subFlags uint8 = uint8(FlagInArchive)
		if lf.Flags&uint8(FlagInArchiveDownloadDir) != 0 {
			subFlags |= uint8(FlagInArchiveDownloadDir)
		}
		as := ArchiveSubfile{
			Dir:               dirOff,
			Base:              baseOff,
			Ext:               extOff,
			Flags:             subFlags,
			UncompressedSize:  s.UncompressedSize,
			Owner:             owner,
			LocalHeaderOffset: s.LocalHeaderOffset,
			CompressedSize:    s.CompressedSize,
			Method:            s.Method,
			Position:          uint32(i),
		}
		subOff, err := arena.PutValue(idx.Arena, as)
		if err != nil {
			return err
		}
		if err := idx.insertFileRef(subOff, KindArchiveSubfile, base, dir); err != nil {
			return err
		}
		if err := idx.linkFileIntoDirectory(dir, KindArchiveSubfile, subOff); err != nil {
			return err
		}
		count++

		if Classify(dir, ext, lf.Flags&uint8(FlagInArchiveDownloadDir) != 0) == ClassShaderFile {
			if err := idx.ingestArchiveShaderSubfile(a, s, subOff); err != nil {
				corelog.For(corelog.Index).WithField("path", sf.OSPath).WithField("subfile", s.Name).
					WithError(err).Warn("archive shader subfile could not be parsed, skipping")
			}
		}
	}
	lf.SubfileCount = count
	corelog.For(corelog.Index).WithField("path", sf.OSPath).WithField("subfiles", count).
		WithField("size", humanize.Bytes(totalSize)).Debug("archive ingested")

	entry := ArchiveIdentityEntry{ArchiveHash: a.IdentityHash, LooseFile: owner}
	entryOff, err := arena.PutValue(idx.Arena, entry)
	if err != nil {
		return err
	}
	return idx.archivesByHash.Insert(entryOff, uint64(a.IdentityHash))
}

// ingestArchiveShaderSubfile implements spec.md §4.6 step 4 for a
// shader-definition file found inside an archive: stream-decompress it and
// parse material blocks the same way a loose shader file is parsed, except
// each Shader entry's source is the ArchiveSubfile itself rather than a
// LooseFile.
func (idx *Index) ingestArchiveShaderSubfile(a *archive.Archive, sub archive.Subfile, subOff arena.Offset) error {
	r, err := archive.NewSubfileReader(a, idx.Opener, sub, 0)
	if err != nil {
		return errors.Wrap(err, "index: opening archive shader subfile")
	}
	defer r.Close()

	data := make([]byte, sub.UncompressedSize)
	if _, err := io.ReadFull(r, data); err != nil {
		return errors.Wrap(err, "index: reading archive shader subfile")
	}

	res := shader.Parse(data)
	for _, m := range res.Materials {
		nameOff, err := idx.intern(m.Name)
		if err != nil {
			return err
		}
		sh := Shader{
			Name:       nameOff,
			SourceKind: uint8(KindArchiveSubfile),
			Source:     subOff,
			Start:      uint32(m.Start),
			End:        uint32(m.End),
		}
		shOff, err := arena.PutValue(idx.Arena, sh)
		if err != nil {
			return err
		}
		if err := idx.shaders.Insert(shOff, arena.HashCI(m.Name)); err != nil {
			return err
		}
	}
	for _, issue := range res.Issues {
		corelog.For(corelog.Shader).WithField("subfile", sub.Name).WithField("offset", issue.Offset).
			Warn(issue.Msg)
	}
	return nil
}

// ingestShaderFile implements spec.md §4.6 step 4 and §4.4: parses material
// blocks out of the file and inserts each into the shaders table.
func (idx *Index) ingestShaderFile(owner arena.Offset, lf *LooseFile, sf ScanFile) error {
	f, err := idx.Opener.OpenRead(sf.OSPath)
	if err != nil {
		return errors.Wrap(err, "index: opening shader file")
	}
	defer f.Close()

	data := make([]byte, sf.Size)
	if _, err := io.ReadFull(f, data); err != nil {
		return errors.Wrap(err, "index: reading shader file")
	}

	res := shader.Parse(data)
	var count uint32
	for _, m := range res.Materials {
		nameOff, err := idx.intern(m.Name)
		if err != nil {
			return err
		}
		sh := Shader{
			Name:       nameOff,
			SourceKind: uint8(KindLooseFile),
			Source:     owner,
			Start:      uint32(m.Start),
			End:        uint32(m.End),
		}
		shOff, err := arena.PutValue(idx.Arena, sh)
		if err != nil {
			return err
		}
		if err := idx.shaders.Insert(shOff, arena.HashCI(m.Name)); err != nil {
			return err
		}
		count++
	}
	for _, issue := range res.Issues {
		corelog.For(corelog.Shader).WithField("path", sf.OSPath).WithField("offset", issue.Offset).
			Warn(issue.Msg)
	}
	lf.ShaderCount = count
	return nil
}

// splitSubfilePath splits an archive entry's forward-slash path into
// (dir, base, ext) the same way the scanner derives them for loose files.
func splitSubfilePath(name string) (dir, base, ext string) {
	slash := -1
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '/' {
			slash = i
			break
		}
	}
	var fileName string
	if slash >= 0 {
		dir = name[:slash]
		fileName = name[slash+1:]
	} else {
		fileName = name
	}
	dot := -1
	for i := len(fileName) - 1; i >= 0; i-- {
		if fileName[i] == '.' {
			dot = i
			break
		}
	}
	if dot > 0 {
		base = fileName[:dot]
		ext = fileName[dot+1:]
	} else {
		base = fileName
	}
	return dir, base, ext
}

// IsActive reports whether a LooseFile offset is visible to lookup (spec.md
// §3's activity invariant).
func (idx *Index) IsActive(off arena.Offset) (bool, error) {
	lf, err := arena.GetValue[LooseFile](idx.Arena, off)
	if err != nil {
		return false, err
	}
	return lf.Generation == idx.currentGeneration, nil
}

// SubfileIsActive is active iff its owning LooseFile is active, per spec.md
// §3's transitive-activation invariant.
func (idx *Index) SubfileIsActive(off arena.Offset) (bool, error) {
	as, err := arena.GetValue[ArchiveSubfile](idx.Arena, off)
	if err != nil {
		return false, err
	}
	return idx.IsActive(as.Owner)
}

// FilesByName exposes the files-by-name table for the precedence engine's
// candidate collection (spec.md §4.7 step 1).
func (idx *Index) FilesByName() *arena.HashTable { return idx.filesByName }

// ArchivesByHash exposes the archives-by-hash table.
func (idx *Index) ArchivesByHash() *arena.HashTable { return idx.archivesByHash }

// Shaders exposes the shaders table.
func (idx *Index) Shaders() *arena.HashTable { return idx.shaders }

// Directories exposes the directories table.
func (idx *Index) Directories() *arena.HashTable { return idx.directories }

// AllActiveArchiveLooseFiles walks every LooseFile in the index and
// returns the active ones that are themselves archives (spec.md §4.10's
// manifest wildcard selectors, e.g. "*mod_paks", need "every archive
// under this mod-dir" — a full-table scan, since files-by-name and
// archives-by-hash are both keyed, not enumerable by mod-dir).
func (idx *Index) AllActiveArchiveLooseFiles() ([]LooseFileView, error) {
	it := idx.filesByName.IterateAll()
	var views []LooseFileView
	seen := map[arena.Offset]bool{}
	for {
		refOff, ok, err := it.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		ref, err := arena.GetValue[FileRef](idx.Arena, refOff)
		if err != nil {
			return nil, err
		}
		if FileKind(ref.Kind) != KindLooseFile || seen[ref.Target] {
			continue
		}
		seen[ref.Target] = true
		lf, err := arena.GetValue[LooseFile](idx.Arena, ref.Target)
		if err != nil {
			return nil, err
		}
		if lf.ArchiveIdentityHash == 0 || lf.Generation != idx.currentGeneration {
			continue
		}
		v, err := idx.viewLooseFile(lf)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, nil
}
