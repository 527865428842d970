package archive

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// computeIdentityHash derives the archive's stable 32-bit identity from
// the concatenation of every non-directory subfile's little-endian CRC32,
// in central-directory order (spec.md §3, §4.3). Two archives with
// byte-identical content hash equal regardless of filename; prepending a
// self-extractor stub does not change the hash, because the central
// directory's subfile order and CRCs are unaffected by the correction
// applied in Open.
func computeIdentityHash(subfiles []Subfile) uint32 {
	buf := make([]byte, 0, len(subfiles)*4)
	for _, s := range subfiles {
		if s.IsDir {
			continue
		}
		var crcBuf [4]byte
		binary.LittleEndian.PutUint32(crcBuf[:], s.CRC32)
		buf = append(buf, crcBuf[:]...)
	}
	return uint32(xxhash.Sum64(buf))
}
