// Package vfscache implements the bounded read-through byte cache of
// spec.md §4.8: a single contiguous buffer carved into variable-length
// entries on a circular advancing cursor, indexed by file identity for
// O(1) lookup.
package vfscache

import (
	"github.com/dustin/go-humanize"
	"github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"

	"github.com/pakvfs/corefs/arena"
	"github.com/pakvfs/corefs/corelog"
)

// ErrTooLarge is returned by Allocate/Put when a file exceeds one-third of
// the cache's total capacity; the caller is expected to fall back to a
// plain heap allocation (spec.md §4.8's allocation rule).
var ErrTooLarge = errors.New("vfscache: file exceeds one-third of cache capacity")

// ErrNoSpace is returned when no unlocked region large enough exists even
// after one wraparound pass.
var ErrNoSpace = errors.New("vfscache: no unlocked region large enough")

// maxIndexEntries bounds the golang-lru index's own capacity far above any
// realistic live-entry count; the circular buffer, not the LRU's built-in
// eviction, decides what gets evicted (Allocate's overlap sweep).
const maxIndexEntries = 1 << 16

// Identity is the (file, size, mtime) triple spec.md §4.8 keys a cache
// entry on: Offset names the LooseFile or ArchiveSubfile the bytes came
// from, so a stale entry whose size or mtime no longer match the index
// naturally misses rather than serving wrong bytes.
type Identity struct {
	Offset    arena.Offset
	Size      uint32
	MTimeUnix int64
}

// entry is the cache's internal bookkeeping record for one occupied
// region of the buffer.
type entry struct {
	identity  Identity
	stage     uint32
	lockCount int
	start     uint32
	length    uint32
}

// Entry is a caller's handle on one cached region. The caller must Unlock
// every Entry it locks (directly, or by closing the handle.Handle built on
// top of it).
type Entry struct {
	cache *Cache
	e     *entry
}

// Identity returns the entry's cache key.
func (en *Entry) Identity() Identity { return en.e.identity }

// Data returns the entry's bytes. The slice is only valid while the entry
// remains locked; an unlocked entry's bytes may be overwritten by a
// subsequent Allocate.
func (en *Entry) Data() []byte {
	return en.cache.buf[en.e.start : en.e.start+en.e.length]
}

// Lock pins the entry against eviction.
func (en *Entry) Lock() { en.e.lockCount++ }

// Unlock releases one lock. Unlocking an entry with no outstanding locks
// is a no-op (mirrors the teacher's tolerant Close semantics rather than
// panicking on a caller bug).
func (en *Entry) Unlock() {
	if en.e.lockCount > 0 {
		en.e.lockCount--
	}
}

// Cache is the bounded byte cache. Not safe for concurrent use, matching
// spec.md §5's single-threaded cooperative model.
type Cache struct {
	buf    []byte
	cursor uint32
	stage  uint32
	index  *lru.Cache // Identity -> *entry
}

// New creates a cache backed by a buffer of capacityBytes.
func New(capacityBytes int) (*Cache, error) {
	idx, err := lru.New(maxIndexEntries)
	if err != nil {
		return nil, errors.Wrap(err, "vfscache: creating index")
	}
	corelog.For(corelog.VFSCache).WithField("capacity", humanize.Bytes(uint64(capacityBytes))).
		Debug("read cache allocated")
	return &Cache{
		buf:   make([]byte, capacityBytes),
		index: idx,
	}, nil
}

// Get looks up identity. A hit from an earlier stage is copied into a
// fresh entry in the current stage before being returned, per spec.md
// §4.8's "allocates a fresh copy in the current stage" rule, so repeated
// lookups within one stage stay cheap.
func (c *Cache) Get(identity Identity) (*Entry, bool, error) {
	v, ok := c.index.Get(identity)
	if !ok {
		return nil, false, nil
	}
	e := v.(*entry)
	if e.stage == c.stage {
		return &Entry{cache: c, e: e}, true, nil
	}
	fresh, err := c.Allocate(e.length, identity)
	if err != nil {
		// The stale entry is still a valid (if stale-staged) hit; surface
		// it rather than failing the lookup outright.
		corelog.For(corelog.VFSCache).WithError(err).Warn("vfscache: could not promote stale-stage hit, serving stale copy")
		return &Entry{cache: c, e: e}, true, nil
	}
	copy(fresh.Data(), c.buf[e.start:e.start+e.length])
	return fresh, true, nil
}

// Put copies data into a freshly allocated entry for identity and indexes
// it, replacing any existing entry for the same identity.
func (c *Cache) Put(identity Identity, data []byte) (*Entry, error) {
	en, err := c.Allocate(uint32(len(data)), identity)
	if err != nil {
		return nil, err
	}
	copy(en.Data(), data)
	return en, nil
}

// Allocate reserves size contiguous bytes for identity, advancing the
// circular cursor, evicting unlocked entries in its path and stepping past
// locked ones (spec.md §4.8's allocate operation). It wraps around the buffer at most once;
// if no unlocked region of the requested size exists even after
// wrapping, it returns ErrNoSpace. Oversized requests (more than
// one-third of total capacity) return ErrTooLarge without touching the
// buffer.
func (c *Cache) Allocate(size uint32, identity Identity) (*Entry, error) {
	if size == 0 {
		return nil, errors.New("vfscache: zero-size allocation")
	}
	total := uint32(len(c.buf))
	if uint64(size)*3 > uint64(total) {
		return nil, ErrTooLarge
	}

	wrapped := false
	for {
		if c.cursor+size > total {
			if wrapped {
				return nil, ErrNoSpace
			}
			c.cursor = 0
			wrapped = true
			continue
		}
		start, end := c.cursor, c.cursor+size

		var blocker *entry
		for _, key := range c.index.Keys() {
			v, ok := c.index.Peek(key)
			if !ok {
				continue
			}
			e := v.(*entry)
			if !overlaps(e.start, e.start+e.length, start, end) {
				continue
			}
			if e.lockCount > 0 {
				blocker = e
				break
			}
			c.index.Remove(key)
		}
		if blocker != nil {
			// Step past the locked entry; the check at the top of the loop
			// wraps (once) when the rest of the buffer is too short.
			c.cursor = blocker.start + blocker.length
			continue
		}

		c.cursor = end % total
		e := &entry{identity: identity, stage: c.stage, start: start, length: size}
		c.index.Add(identity, e)
		return &Entry{cache: c, e: e}, nil
	}
}

// AdvanceStage bumps the current stage, causing every existing entry to
// be treated as stale on its next Get (spec.md §4.8's coarse-sync-point
// reuse mechanism, e.g. a map load).
func (c *Cache) AdvanceStage() {
	c.stage++
}

func overlaps(aStart, aEnd, bStart, bEnd uint32) bool {
	return aStart < bEnd && bStart < aEnd
}
