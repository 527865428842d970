// Package handle implements the unified handle registry of spec.md §4.9:
// one interface, five kinds, backed respectively by a vfscache.Entry, a
// raw external.OSFile, an archive.SubfileReader, a write-mode
// external.OSFile, and a FIFO external.OSFile.
package handle

import (
	"io"

	"github.com/pkg/errors"

	"github.com/pakvfs/corefs/archive"
	"github.com/pakvfs/corefs/external"
	"github.com/pakvfs/corefs/vfscache"
)

// ErrReadOnly and ErrWriteOnly mark operations a given handle kind does
// not support (spec.md §4.9's per-kind "all operations pass through" vs.
// one-way restrictions).
var (
	ErrReadOnly  = errors.New("handle: write not supported on this handle kind")
	ErrWriteOnly = errors.New("handle: read not supported on this handle kind")
	ErrNoSeek    = errors.New("handle: seek not supported on this handle kind")
)

// Owner identifies which engine module opened a handle, purely for the
// CloseAllForOwner leak-containment sweep and diagnostic logging (spec.md
// §4.9).
type Owner uint8

const (
	System Owner = iota
	CGame
	UI
	ServerGame
)

func (o Owner) String() string {
	switch o {
	case System:
		return "system"
	case CGame:
		return "cgame"
	case UI:
		return "ui"
	case ServerGame:
		return "server-game"
	default:
		return "unknown"
	}
}

// Kind is one of the five handle kinds spec.md §4.9 names.
type Kind uint8

const (
	CacheRead Kind = iota
	DirectRead
	ArchiveRead
	Write
	Pipe
)

func (k Kind) String() string {
	switch k {
	case CacheRead:
		return "cache-read"
	case DirectRead:
		return "direct-read"
	case ArchiveRead:
		return "archive-read"
	case Write:
		return "write"
	case Pipe:
		return "pipe"
	default:
		return "unknown"
	}
}

// Handle is the common interface every kind implements. A kind that does
// not support an operation returns ErrReadOnly/ErrWriteOnly/ErrNoSeek
// rather than panicking.
type Handle interface {
	Read(p []byte) (int, error)
	Seek(offset int64, whence int) (int64, error)
	Write(p []byte) (int, error)
	Close() error
}

// cacheReadHandle implements cache-read: it owns a lock on a cache entry,
// Read copies bytes forward, Seek is O(1) (spec.md §4.9).
type cacheReadHandle struct {
	entry *vfscache.Entry
	pos   int64
}

func newCacheReadHandle(entry *vfscache.Entry) *cacheReadHandle {
	entry.Lock()
	return &cacheReadHandle{entry: entry}
}

func (h *cacheReadHandle) Read(p []byte) (int, error) {
	data := h.entry.Data()
	if h.pos >= int64(len(data)) {
		return 0, io.EOF
	}
	n := copy(p, data[h.pos:])
	h.pos += int64(n)
	return n, nil
}

func (h *cacheReadHandle) Seek(offset int64, whence int) (int64, error) {
	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = h.pos + offset
	case io.SeekEnd:
		target = int64(len(h.entry.Data())) + offset
	default:
		return 0, errors.New("handle: invalid whence")
	}
	if target < 0 {
		return 0, errors.New("handle: negative seek position")
	}
	h.pos = target
	return h.pos, nil
}

func (h *cacheReadHandle) Write(p []byte) (int, error) { return 0, ErrReadOnly }

func (h *cacheReadHandle) Close() error {
	h.entry.Unlock()
	return nil
}

// directReadHandle implements direct-read: a plain passthrough wrapper
// around an OSFile opened read-only.
type directReadHandle struct {
	f external.OSFile
}

func newDirectReadHandle(f external.OSFile) *directReadHandle {
	return &directReadHandle{f: f}
}

func (h *directReadHandle) Read(p []byte) (int, error)               { return h.f.Read(p) }
func (h *directReadHandle) Seek(off int64, whence int) (int64, error) { return h.f.Seek(off, whence) }
func (h *directReadHandle) Write(p []byte) (int, error)               { return 0, ErrReadOnly }
func (h *directReadHandle) Close() error                              { return h.f.Close() }

// archiveReadHandle implements archive-read: the streaming subfile
// reader; backward seeks reopen the stream (archive.SubfileReader's own
// behavior, spec.md §4.3/§4.9).
type archiveReadHandle struct {
	r *archive.SubfileReader
}

func newArchiveReadHandle(r *archive.SubfileReader) *archiveReadHandle {
	return &archiveReadHandle{r: r}
}

func (h *archiveReadHandle) Read(p []byte) (int, error) { return h.r.Read(p) }
func (h *archiveReadHandle) Seek(off int64, whence int) (int64, error) {
	return h.r.Seek(off, whence)
}
func (h *archiveReadHandle) Write(p []byte) (int, error) { return 0, ErrReadOnly }
func (h *archiveReadHandle) Close() error                { return h.r.Close() }

// writeHandle implements write: an OSFile opened in write/append mode,
// optionally synced after every write (spec.md §4.9).
type writeHandle struct {
	f           external.OSFile
	syncOnWrite bool
}

func newWriteHandle(f external.OSFile, syncOnWrite bool) *writeHandle {
	return &writeHandle{f: f, syncOnWrite: syncOnWrite}
}

func (h *writeHandle) Read(p []byte) (int, error) { return 0, ErrWriteOnly }
func (h *writeHandle) Seek(off int64, whence int) (int64, error) {
	return h.f.Seek(off, whence)
}
func (h *writeHandle) Write(p []byte) (int, error) {
	n, err := h.f.Write(p)
	if err != nil {
		return n, err
	}
	if h.syncOnWrite {
		if err := h.f.Sync(); err != nil {
			return n, errors.Wrap(err, "handle: sync after write")
		}
	}
	return n, nil
}
func (h *writeHandle) Close() error { return h.f.Close() }

// pipeHandle implements pipe: a one-way read from an OS FIFO (spec.md
// §4.9). Seek is never meaningful on a pipe.
type pipeHandle struct {
	f external.OSFile
}

func newPipeHandle(f external.OSFile) *pipeHandle {
	return &pipeHandle{f: f}
}

func (h *pipeHandle) Read(p []byte) (int, error)               { return h.f.Read(p) }
func (h *pipeHandle) Seek(off int64, whence int) (int64, error) { return 0, ErrNoSeek }
func (h *pipeHandle) Write(p []byte) (int, error)               { return 0, ErrWriteOnly }
func (h *pipeHandle) Close() error                              { return h.f.Close() }
