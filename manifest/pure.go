package manifest

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"

	"github.com/pakvfs/corefs/archive"
)

// maxPureChecksumCacheEntries bounds the memoization cache, matching the
// teacher's own MAX_PURE_CHECKSUM_CACHE constant in spirit (spec.md
// §4.10: "a small LRU cache memoizes the pure-checksum computation").
const maxPureChecksumCacheEntries = 256

// blockChecksum hashes data the same way archive's identity hash does
// (truncated xxhash), since spec.md §4.10 only requires block_checksum to
// be a stable 32-bit digest, not a specific algorithm.
func blockChecksum(data []byte) uint32 {
	return uint32(xxhash.Sum64(data))
}

type pureCacheKey struct {
	archiveHash uint32
	feed        uint32
}

// PureChecksumCache memoizes per-(archive, checksum_feed) pure checksums,
// since checksum_feed changes every map but an archive's CRC array does
// not (spec.md §4.10).
type PureChecksumCache struct {
	cache *lru.Cache
}

// NewPureChecksumCache creates an empty memoization cache.
func NewPureChecksumCache() (*PureChecksumCache, error) {
	c, err := lru.New(maxPureChecksumCacheEntries)
	if err != nil {
		return nil, errors.Wrap(err, "manifest: creating pure-checksum cache")
	}
	return &PureChecksumCache{cache: c}, nil
}

// Checksum returns a's pure checksum for the given checksum_feed, computing
// and caching it on a miss.
func (c *PureChecksumCache) Checksum(a *archive.Archive, feed uint32) uint32 {
	key := pureCacheKey{archiveHash: a.IdentityHash, feed: feed}
	if v, ok := c.cache.Get(key); ok {
		return v.(uint32)
	}
	v := computePureChecksum(a, feed)
	c.cache.Add(key, v)
	return v
}

// computePureChecksum implements spec.md §4.10's
// block_checksum(checksum_feed || crc_array).
func computePureChecksum(a *archive.Archive, feed uint32) uint32 {
	buf := make([]byte, 4, 4+len(a.Subfiles)*4)
	binary.LittleEndian.PutUint32(buf, feed)
	for _, s := range a.Subfiles {
		if s.IsDir {
			continue
		}
		var crcBuf [4]byte
		binary.LittleEndian.PutUint32(crcBuf[:], s.CRC32)
		buf = append(buf, crcBuf[:]...)
	}
	return blockChecksum(buf)
}

// PureValidationString builds the full client pure-validation string of
// spec.md §6: "<cgame-pure> <ui-pure> @ <ref1-pure> … <final>" where
// final = checksum_feed XOR (XOR of ref pures) XOR ref_count.
func PureValidationString(cgamePure, uiPure uint32, refPures []uint32, checksumFeed uint32) string {
	final := checksumFeed
	for _, p := range refPures {
		final ^= p
	}
	final ^= uint32(len(refPures))

	parts := make([]string, 0, len(refPures)+1)
	for _, p := range refPures {
		parts = append(parts, strconv.FormatUint(uint64(p), 10))
	}
	parts = append(parts, strconv.FormatUint(uint64(final), 10))
	return fmt.Sprintf("%d %d @ %s", cgamePure, uiPure, strings.Join(parts, " "))
}

// AbbreviatedPureValidationString builds the abbreviated form used when
// full-pure-validation is off and the server is not in semi-pure mode
// (spec.md §6): "<cgame-pure> <ui-pure> @ <cgame-pure> <checksum_feed XOR
// cgame-pure XOR 1>".
func AbbreviatedPureValidationString(cgamePure, uiPure, checksumFeed uint32) string {
	final := checksumFeed ^ cgamePure ^ 1
	return fmt.Sprintf("%d %d @ %d %d", cgamePure, uiPure, cgamePure, final)
}
