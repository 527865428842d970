package archive

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/pkg/errors"

	"github.com/pakvfs/corefs/corelog"
	"github.com/pakvfs/corefs/external"
)

// DefaultInputBufferSize is the handle-mode reader's input buffer size
// (spec.md §4.3: "a configurable input buffer").
const DefaultInputBufferSize = 32 * 1024

// SubfileReader streams the decompressed bytes of one Subfile. Forward
// reads are efficient; Seek backward is implemented by closing and
// reopening the inflate stream and discarding bytes forward to the new
// position — slow but correct, and intentionally not optimized further
// (spec.md §4.3, §9: "do not over-engineer it").
type SubfileReader struct {
	archive  *Archive
	opener   external.OSOpener
	sub      Subfile
	bufSize  int

	f          external.OSFile
	dataOffset int64
	method     uint16
	src        io.Reader // bounded to CompressedSize
	flateR     io.ReadCloser
	pos        int64 // uncompressed bytes produced so far
}

// NewSubfileReader opens sub for streaming. bufSize of 0 selects
// DefaultInputBufferSize.
func NewSubfileReader(a *Archive, opener external.OSOpener, sub Subfile, bufSize int) (*SubfileReader, error) {
	if bufSize <= 0 {
		bufSize = DefaultInputBufferSize
	}
	r := &SubfileReader{archive: a, opener: opener, sub: sub, bufSize: bufSize}
	if err := r.open(); err != nil {
		return nil, err
	}
	return r, nil
}

// open (re)establishes the stream at the start of the subfile's data.
func (r *SubfileReader) open() error {
	f, err := r.opener.OpenRead(r.archive.Path)
	if err != nil {
		return errors.Wrapf(err, "archive: reopening %q", r.archive.Path)
	}
	localHdr := make([]byte, localHeaderFixedSize)
	if err := readAt(f, int64(r.sub.LocalHeaderOffset), localHdr); err != nil {
		f.Close()
		return errors.Wrapf(err, "archive: reading local header for %q", r.sub.Name)
	}
	if binary.LittleEndian.Uint32(localHdr) != sigLocalFileHeader {
		f.Close()
		return errors.Wrapf(ErrMalformed, "archive: %q: bad local file header signature", r.sub.Name)
	}
	nameLen := binary.LittleEndian.Uint16(localHdr[26:])
	extraLen := binary.LittleEndian.Uint16(localHdr[28:])
	dataOffset := int64(r.sub.LocalHeaderOffset) + localHeaderFixedSize + int64(nameLen) + int64(extraLen)
	if dataOffset+int64(r.sub.CompressedSize) > r.archive.Size {
		f.Close()
		return errors.Wrapf(ErrMalformed, "archive: %q: subfile data extends past end of archive", r.sub.Name)
	}
	if _, err := f.Seek(dataOffset, io.SeekStart); err != nil {
		f.Close()
		return errors.Wrapf(err, "archive: seeking to subfile data for %q", r.sub.Name)
	}

	bounded := io.LimitReader(f, int64(r.sub.CompressedSize))
	r.f = f
	r.dataOffset = dataOffset
	r.method = r.sub.Method
	r.pos = 0

	switch r.method {
	case MethodStored:
		r.src = bounded
		r.flateR = nil
	case MethodDeflate:
		buffered := bufio.NewReaderSize(bounded, r.bufSize)
		r.flateR = flate.NewReader(buffered)
		r.src = r.flateR
	default:
		f.Close()
		return errors.Wrapf(ErrMalformed, "archive: %q: unsupported method %d", r.sub.Name, r.method)
	}
	return nil
}

// Read decompresses (or copies, for stored entries) the next bytes.
func (r *SubfileReader) Read(p []byte) (int, error) {
	n, err := r.src.Read(p)
	r.pos += int64(n)
	if err != nil && err != io.EOF {
		corelog.For(corelog.Archive).WithField("subfile", r.sub.Name).WithError(err).Warn("inflate failure")
		return n, errors.Wrap(ErrInflate, err.Error())
	}
	return n, err
}

// Seek repositions the stream. Forward seeks within the current stream
// discard bytes by reading and dropping them; any backward seek reopens
// the subfile from scratch and discards forward to the target, per
// spec.md §4.3.
func (r *SubfileReader) Seek(offset int64, whence int) (int64, error) {
	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = r.pos + offset
	case io.SeekEnd:
		target = int64(r.sub.UncompressedSize) + offset
	default:
		return 0, errors.New("archive: invalid whence")
	}
	if target < 0 {
		return 0, errors.New("archive: negative seek position")
	}
	if target < r.pos {
		if err := r.Close(); err != nil {
			return 0, err
		}
		if err := r.open(); err != nil {
			return 0, err
		}
	}
	toDiscard := target - r.pos
	if toDiscard > 0 {
		if _, err := io.CopyN(io.Discard, r, toDiscard); err != nil {
			return 0, errors.Wrap(err, "archive: discarding bytes during seek")
		}
	}
	return r.pos, nil
}

// Close releases the underlying OS file and inflate stream.
func (r *SubfileReader) Close() error {
	if r.flateR != nil {
		_ = r.flateR.Close()
		r.flateR = nil
	}
	if r.f != nil {
		err := r.f.Close()
		r.f = nil
		return err
	}
	return nil
}
