package handle

import (
	"io"

	"github.com/pkg/errors"

	"github.com/pakvfs/corefs/archive"
	"github.com/pakvfs/corefs/external"
	"github.com/pakvfs/corefs/vfscache"
)

// OpenCacheRead opens a cache-read handle over identity, populating the
// cache from data if it is not already resident (spec.md §4.9).
func OpenCacheRead(t *Table, owner Owner, cache *vfscache.Cache, identity vfscache.Identity, data []byte, displayPath string) (Ref, error) {
	entry, hit, err := cache.Get(identity)
	if err != nil {
		return Ref{}, errors.Wrap(err, "handle: cache lookup")
	}
	if !hit {
		entry, err = cache.Put(identity, data)
		if err != nil {
			return Ref{}, errors.Wrap(err, "handle: cache store")
		}
	}
	return t.Open(owner, CacheRead, displayPath, newCacheReadHandle(entry))
}

// OpenDirectRead opens a direct-read handle over path.
func OpenDirectRead(t *Table, owner Owner, opener external.OSOpener, path string) (Ref, error) {
	f, err := opener.OpenRead(path)
	if err != nil {
		return Ref{}, errors.Wrap(err, "handle: opening direct-read")
	}
	return t.Open(owner, DirectRead, path, newDirectReadHandle(f))
}

// OpenArchiveRead opens an archive-read handle streaming sub out of a.
func OpenArchiveRead(t *Table, owner Owner, opener external.OSOpener, a *archive.Archive, sub archive.Subfile, bufSize int, displayPath string) (Ref, error) {
	r, err := archive.NewSubfileReader(a, opener, sub, bufSize)
	if err != nil {
		return Ref{}, errors.Wrap(err, "handle: opening archive-read")
	}
	return t.Open(owner, ArchiveRead, displayPath, newArchiveReadHandle(r))
}

// OpenWrite opens a write handle over path, truncating unless append is
// set, optionally syncing the OS file after every write.
func OpenWrite(t *Table, owner Owner, opener external.OSOpener, path string, appendMode, syncOnWrite bool) (Ref, error) {
	f, err := opener.OpenWrite(path, appendMode)
	if err != nil {
		return Ref{}, errors.Wrap(err, "handle: opening write handle")
	}
	return t.Open(owner, Write, path, newWriteHandle(f, syncOnWrite))
}

// OpenPipe opens a one-way read-only pipe handle over a FIFO at path.
func OpenPipe(t *Table, owner Owner, opener external.OSOpener, path string) (Ref, error) {
	f, err := opener.OpenRead(path)
	if err != nil {
		return Ref{}, errors.Wrap(err, "handle: opening pipe handle")
	}
	return t.Open(owner, Pipe, path, newPipeHandle(f))
}

// ChooseReadKind implements spec.md §4.9's read-handle selection policy:
// cache-read when the file is small enough to fit the cache's one-third
// rule, otherwise direct-read for loose files or archive-read for archive
// subfiles.
func ChooseReadKind(size uint32, cacheCapacityBytes int, isLoose bool) Kind {
	if uint64(size)*3 <= uint64(cacheCapacityBytes) {
		return CacheRead
	}
	if isLoose {
		return DirectRead
	}
	return ArchiveRead
}

// OpenReadLooseFile opens the best read handle for a loose file of the
// given size, per ChooseReadKind: a cache-read handle reads the whole
// file into cache first, a direct-read handle wraps the OS file as-is.
func OpenReadLooseFile(t *Table, owner Owner, cache *vfscache.Cache, opener external.OSOpener, identity vfscache.Identity, path string, size uint32, cacheCapacityBytes int) (Ref, error) {
	if ChooseReadKind(size, cacheCapacityBytes, true) == DirectRead {
		return OpenDirectRead(t, owner, opener, path)
	}
	f, err := opener.OpenRead(path)
	if err != nil {
		return Ref{}, errors.Wrap(err, "handle: reading loose file for cache")
	}
	defer f.Close()
	data := make([]byte, size)
	if _, err := io.ReadFull(f, data); err != nil {
		return Ref{}, errors.Wrap(err, "handle: reading loose file for cache")
	}
	return OpenCacheRead(t, owner, cache, identity, data, path)
}

// OpenReadArchiveSubfile opens the best read handle for an archive
// subfile of the given size: a cache-read handle decompresses it once and
// caches the bytes, an archive-read handle streams it directly.
func OpenReadArchiveSubfile(t *Table, owner Owner, cache *vfscache.Cache, opener external.OSOpener, a *archive.Archive, sub archive.Subfile, identity vfscache.Identity, bufSize int, cacheCapacityBytes int, displayPath string) (Ref, error) {
	if ChooseReadKind(sub.UncompressedSize, cacheCapacityBytes, false) == ArchiveRead {
		return OpenArchiveRead(t, owner, opener, a, sub, bufSize, displayPath)
	}
	r, err := archive.NewSubfileReader(a, opener, sub, bufSize)
	if err != nil {
		return Ref{}, errors.Wrap(err, "handle: reading archive subfile for cache")
	}
	defer r.Close()
	data := make([]byte, sub.UncompressedSize)
	if _, err := io.ReadFull(r, data); err != nil {
		return Ref{}, errors.Wrap(err, "handle: reading archive subfile for cache")
	}
	return OpenCacheRead(t, owner, cache, identity, data, displayPath)
}
