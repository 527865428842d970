package cachefile

import (
	"encoding/binary"
	"sync"
	"time"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

// scanMetaBucket holds one key per source-dir id, value = 8-byte mtime
// (unix seconds) the directory had when it was last fully scanned. This is
// additive to the spec: it lets a caller skip re-walking a source directory
// whose root mtime hasn't changed since the blob was written, gated behind
// fs_index_cache the same as the blob itself.
const scanMetaBucket = "scan_meta"

// SideIndex wraps a bbolt database alongside the binary cache blob file,
// mirroring the locking rclone's backend/cache.Persistent uses because,
// like that type, it may be touched from a goroutine other than the one
// driving the scan (a background cache-warmer).
type SideIndex struct {
	mu   sync.Mutex
	db   *bolt.DB
	path string
}

// OpenSideIndex opens (creating if necessary) the bbolt database at path.
func OpenSideIndex(path string, waitTimeout time.Duration) (*SideIndex, error) {
	db, err := bolt.Open(path, 0o644, &bolt.Options{Timeout: waitTimeout})
	if err != nil {
		return nil, errors.Wrapf(err, "cachefile: opening side index %q", path)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, e := tx.CreateBucketIfNotExists([]byte(scanMetaBucket))
		return e
	})
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "cachefile: initializing side index buckets")
	}
	return &SideIndex{db: db, path: path}, nil
}

// Close closes the underlying bbolt database.
func (s *SideIndex) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

func sourceDirKey(sourceDirID uint16) []byte {
	var k [2]byte
	binary.LittleEndian.PutUint16(k[:], sourceDirID)
	return k[:]
}

// RecordScanned remembers that sourceDirID's root had rootMTime at the end
// of a successful full scan.
func (s *SideIndex) RecordScanned(sourceDirID uint16, rootMTime time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var v [8]byte
	binary.LittleEndian.PutUint64(v[:], uint64(rootMTime.Unix()))
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(scanMetaBucket))
		return b.Put(sourceDirKey(sourceDirID), v[:])
	})
}

// UnchangedSince reports whether sourceDirID's root mtime recorded at the
// last scan equals rootMTime — if so, the caller may skip re-walking it.
func (s *SideIndex) UnchangedSince(sourceDirID uint16, rootMTime time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var unchanged bool
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(scanMetaBucket))
		v := b.Get(sourceDirKey(sourceDirID))
		if v == nil {
			return nil
		}
		recorded := int64(binary.LittleEndian.Uint64(v))
		unchanged = recorded == rootMTime.Unix()
		return nil
	})
	return unchanged, err
}
