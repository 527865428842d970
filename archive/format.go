// Package archive implements the streaming reader for the core's archive
// format: a zip variant using DEFLATE or stored entries (spec.md §4.3,
// §6). It exposes per-subfile metadata and a stable 32-bit archive
// identity hash derived from subfile CRCs, and streams decompressed bytes
// on demand without holding the whole archive in memory.
package archive

import "github.com/pkg/errors"

// Signatures from spec.md §6.
const (
	sigEndOfCentralDir   = 0x06054b50
	sigCentralDirEntry   = 0x02014b50
	sigLocalFileHeader   = 0x04034b50
)

// Compression methods corefs understands; anything else is malformed.
const (
	MethodStored  = 0
	MethodDeflate = 8
)

// eocdFixedSize is the size of the End-Of-Central-Directory record
// excluding the variable-length comment.
const eocdFixedSize = 22

// maxEOCDSearch bounds the backward scan for the EOCD signature (spec.md
// §4.3: "scanning the last ≤64 KiB backwards").
const maxEOCDSearch = 64 * 1024

// ErrMalformed is returned (and causes the archive to be skipped, not
// treated as fatal) for invalid signatures, truncated entries, or entries
// whose offsets/sizes fall outside the archive's bounds (spec.md §4.3,
// §7).
var ErrMalformed = errors.New("archive: malformed")

// ErrSpanned is a specific ErrMalformed cause: spanned/multi-disk archives
// are explicitly unsupported (spec.md §4.3).
var ErrSpanned = errors.New("archive: spanned archives are not supported")

// ErrInflate is returned when DEFLATE decompression of a subfile's bytes
// fails partway through (spec.md §7).
var ErrInflate = errors.New("archive: inflate failure")

type eocdRecord struct {
	diskNumber           uint16
	cdStartDisk          uint16
	entriesOnThisDisk    uint16
	totalEntries         uint16
	centralDirSize       uint32
	centralDirOffset     uint32
	commentLength        uint16
}

func (e eocdRecord) validateNotSpanned() error {
	if e.diskNumber != 0 || e.cdStartDisk != 0 || e.entriesOnThisDisk != e.totalEntries {
		return ErrSpanned
	}
	return nil
}

type centralDirEntry struct {
	method            uint16
	crc32             uint32
	compressedSize    uint32
	uncompressedSize  uint32
	filenameLength    uint16
	extraLength       uint16
	commentLength     uint16
	localHeaderOffset uint32
	name              string
}

// localHeaderFixedSize is the fixed-size prefix of a local file header,
// i.e. everything up to (but not including) the variable-length filename
// and extra field (spec.md §4.3).
const localHeaderFixedSize = 30
