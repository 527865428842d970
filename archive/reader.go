package archive

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"

	"github.com/pakvfs/corefs/corelog"
	"github.com/pakvfs/corefs/external"
)

// Subfile is the per-entry metadata spec.md §4.3 requires the reader to
// expose: path, sizes, compression method, CRC, and the (offset-corrected)
// local header offset needed to stream its bytes.
type Subfile struct {
	Name              string
	CompressedSize    uint32
	UncompressedSize  uint32
	Method            uint16
	CRC32             uint32
	LocalHeaderOffset uint32
	IsDir             bool
}

// Archive is a parsed archive: its subfile table and identity hash.
// Opening an archive reads only the End-Of-Central-Directory record and
// the central directory into memory; subfile bytes are streamed on
// demand via NewSubfileReader.
type Archive struct {
	Path         string
	Size         int64
	Subfiles     []Subfile
	IdentityHash uint32
	// correction is added to every central-directory-declared local
	// header offset to compensate for a self-extractor stub prepended to
	// the archive (spec.md §4.3, §6).
	correction int64
}

func readAt(f external.OSFile, offset int64, buf []byte) error {
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return errors.Wrapf(err, "seek to %d", offset)
	}
	if _, err := io.ReadFull(f, buf); err != nil {
		return errors.Wrapf(ErrMalformed, "short read at %d: %v", offset, err)
	}
	return nil
}

// Open parses path as an archive. Malformed archives are reported via a
// wrapped ErrMalformed and must be skipped by the caller (index), not
// treated as fatal (spec.md §4.3, §7).
func Open(path string, opener external.OSOpener) (*Archive, error) {
	log := corelog.For(corelog.Archive)
	f, err := opener.OpenRead(path)
	if err != nil {
		return nil, errors.Wrapf(err, "archive: opening %q", path)
	}
	defer f.Close()

	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, errors.Wrapf(err, "archive: seeking end of %q", path)
	}

	eocdOffset, eocd, err := findEOCD(f, size)
	if err != nil {
		return nil, errors.Wrapf(err, "archive: %q", path)
	}
	if err := eocd.validateNotSpanned(); err != nil {
		return nil, errors.Wrapf(err, "archive: %q", path)
	}

	cdPhysicalOffset := eocdOffset - int64(eocd.centralDirSize)
	if cdPhysicalOffset < 0 || cdPhysicalOffset > size {
		return nil, errors.Wrapf(ErrMalformed, "archive: %q: central directory offset out of bounds", path)
	}
	correction := cdPhysicalOffset - int64(eocd.centralDirOffset)
	if correction != 0 {
		log.WithField("path", path).WithField("correction", correction).
			Debug("detected self-extractor prefix, correcting local header offsets")
	}

	entries, err := readCentralDirectory(f, cdPhysicalOffset, int(eocd.totalEntries), size)
	if err != nil {
		return nil, errors.Wrapf(err, "archive: %q", path)
	}

	subfiles := make([]Subfile, 0, len(entries))
	for _, e := range entries {
		localOff := int64(e.localHeaderOffset) + correction
		if localOff < 0 || localOff+localHeaderFixedSize > size {
			return nil, errors.Wrapf(ErrMalformed, "archive: %q: subfile %q local header out of bounds", path, e.name)
		}
		if int64(e.compressedSize) > size-localOff {
			return nil, errors.Wrapf(ErrMalformed, "archive: %q: subfile %q compressed size out of bounds", path, e.name)
		}
		subfiles = append(subfiles, Subfile{
			Name:              e.name,
			CompressedSize:    e.compressedSize,
			UncompressedSize:  e.uncompressedSize,
			Method:            e.method,
			CRC32:             e.crc32,
			LocalHeaderOffset: uint32(localOff),
			IsDir:             isDirEntry(e),
		})
	}

	a := &Archive{
		Path:         path,
		Size:         size,
		Subfiles:     subfiles,
		correction:   correction,
		IdentityHash: computeIdentityHash(subfiles),
	}
	return a, nil
}

func isDirEntry(e centralDirEntry) bool {
	return e.uncompressedSize == 0 && len(e.name) > 0 && e.name[len(e.name)-1] == '/'
}

// findEOCD scans the last min(size, maxEOCDSearch) bytes backwards for the
// EOCD magic (spec.md §4.3) and parses the fixed-size record.
func findEOCD(f external.OSFile, size int64) (eocdOffset int64, rec eocdRecord, err error) {
	window := int64(maxEOCDSearch)
	if window > size {
		window = size
	}
	if window < eocdFixedSize {
		return 0, rec, errors.Wrap(ErrMalformed, "file too small to contain an EOCD record")
	}
	start := size - window
	buf := make([]byte, window)
	if err := readAt(f, start, buf); err != nil {
		return 0, rec, err
	}

	for i := len(buf) - eocdFixedSize; i >= 0; i-- {
		if binary.LittleEndian.Uint32(buf[i:]) != sigEndOfCentralDir {
			continue
		}
		commentLen := binary.LittleEndian.Uint16(buf[i+20:])
		// The comment field must reach exactly to EOF; otherwise this is
		// a coincidental 4-byte match inside file data, not a real EOCD.
		if start+int64(i)+eocdFixedSize+int64(commentLen) != size {
			continue
		}
		rec = eocdRecord{
			diskNumber:        binary.LittleEndian.Uint16(buf[i+4:]),
			cdStartDisk:       binary.LittleEndian.Uint16(buf[i+6:]),
			entriesOnThisDisk: binary.LittleEndian.Uint16(buf[i+8:]),
			totalEntries:      binary.LittleEndian.Uint16(buf[i+10:]),
			centralDirSize:    binary.LittleEndian.Uint32(buf[i+12:]),
			centralDirOffset:  binary.LittleEndian.Uint32(buf[i+16:]),
			commentLength:     commentLen,
		}
		return start + int64(i), rec, nil
	}
	return 0, rec, errors.Wrap(ErrMalformed, "no End-Of-Central-Directory signature found")
}

// readCentralDirectory parses count consecutive central-directory entries
// starting at offset.
func readCentralDirectory(f external.OSFile, offset int64, count int, fileSize int64) ([]centralDirEntry, error) {
	entries := make([]centralDirEntry, 0, count)
	cur := offset
	const fixedSize = 46
	for i := 0; i < count; i++ {
		if cur+fixedSize > fileSize {
			return nil, errors.Wrapf(ErrMalformed, "central directory entry %d truncated", i)
		}
		hdr := make([]byte, fixedSize)
		if err := readAt(f, cur, hdr); err != nil {
			return nil, err
		}
		if binary.LittleEndian.Uint32(hdr) != sigCentralDirEntry {
			return nil, errors.Wrapf(ErrMalformed, "central directory entry %d has bad signature", i)
		}
		method := binary.LittleEndian.Uint16(hdr[10:])
		crc := binary.LittleEndian.Uint32(hdr[16:])
		compSize := binary.LittleEndian.Uint32(hdr[20:])
		uncompSize := binary.LittleEndian.Uint32(hdr[24:])
		nameLen := binary.LittleEndian.Uint16(hdr[28:])
		extraLen := binary.LittleEndian.Uint16(hdr[30:])
		commentLen := binary.LittleEndian.Uint16(hdr[32:])
		localOffset := binary.LittleEndian.Uint32(hdr[42:])

		nameOff := cur + fixedSize
		if nameOff+int64(nameLen) > fileSize {
			return nil, errors.Wrapf(ErrMalformed, "central directory entry %d name truncated", i)
		}
		nameBuf := make([]byte, nameLen)
		if nameLen > 0 {
			if err := readAt(f, nameOff, nameBuf); err != nil {
				return nil, err
			}
		}
		if method != MethodStored && method != MethodDeflate {
			return nil, errors.Wrapf(ErrMalformed, "central directory entry %d has unsupported method %d", i, method)
		}

		entries = append(entries, centralDirEntry{
			method:            method,
			crc32:             crc,
			compressedSize:    compSize,
			uncompressedSize:  uncompSize,
			filenameLength:    nameLen,
			extraLength:       extraLen,
			commentLength:     commentLen,
			localHeaderOffset: localOffset,
			name:              string(nameBuf),
		})
		cur = nameOff + int64(nameLen) + int64(extraLen) + int64(commentLen)
	}
	return entries, nil
}
