package external

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// OS is the default OSDirectory/OSOpener implementation, backed directly
// by the standard library. It is what corefs uses when no embedding
// client/server supplies its own platform layer — the same role rclone's
// backend/local plays relative to rclone's fs.Fs abstraction.
type OS struct{}

var _ OSDirectory = OS{}
var _ OSOpener = OS{}

// WalkDir delegates to filepath.WalkDir.
func (OS) WalkDir(root string, walkFn fs.WalkDirFunc) error {
	return filepath.WalkDir(root, walkFn)
}

// IsJunction reports whether path is a symlink. On POSIX platforms a
// directory reparse point is exactly a symlink to a directory; corefs's
// scanner is told never to follow one (spec.md §4.5).
func (OS) IsJunction(path string) (bool, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return false, errors.Wrapf(err, "stat %q", path)
	}
	return info.Mode()&os.ModeSymlink != 0, nil
}

// OpenRead opens path read-only.
func (OS) OpenRead(path string) (OSFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %q", path)
	}
	return f, nil
}

// OpenWrite opens path for writing, creating it if necessary, truncating
// unless append is set.
func (OS) OpenWrite(path string, appendMode bool) (OSFile, error) {
	flags := os.O_CREATE | os.O_WRONLY
	if appendMode {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "open %q for write", path)
	}
	return f, nil
}

// Stat returns the file's os.FileInfo.
func (OS) Stat(path string) (fs.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrapf(err, "stat %q", path)
	}
	return info, nil
}
