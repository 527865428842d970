// Package scan implements the source-dir scanner (spec.md §4.5): it walks
// one configured source directory and feeds every file it finds, decoded
// into an index.ScanFile, to a sink (normally *index.Index.Ingest).
package scan

import (
	"io/fs"
	"path"
	"strings"

	"github.com/pkg/errors"

	"github.com/pakvfs/corefs/corelog"
	"github.com/pakvfs/corefs/external"
	"github.com/pakvfs/corefs/index"
)

// MaxFileSize is the spec's ">4 GiB files are skipped" threshold.
const MaxFileSize = 4 << 30

// downloadDirName is the well-known subdirectory whose archives are
// classified as download-archives rather than plain archives (spec.md §3's
// in-archive-under-download-dir flag).
const downloadDirName = "downloads"

// Scanner walks one source directory and reports every file it finds.
type Scanner struct {
	dir         external.OSDirectory
	opener      external.OSOpener
	sourceDirID uint16
	root        string
}

// New creates a scanner for root, tagged with sourceDirID (spec.md §4.7
// rule 14 breaks ties on this id, so each configured source directory must
// get a stable, distinct one from its caller).
func New(d external.OSDirectory, opener external.OSOpener, root string, sourceDirID uint16) *Scanner {
	return &Scanner{dir: d, opener: opener, sourceDirID: sourceDirID, root: root}
}

// Sink receives one decoded file per call during a Walk.
type Sink func(index.ScanFile) error

// Walk recursively walks the scanner's root directory, deriving each file's
// logical path and mod-dir per spec.md §4.5, and invokes sink once per file.
// Per-file errors (stat failures, oversize files) are logged and the file is
// skipped; only a failure of the walk itself (e.g. the root not existing)
// is returned.
func (s *Scanner) Walk(sink Sink) error {
	log := corelog.For(corelog.Scanner)
	return s.dir.WalkDir(s.root, func(osPath string, d fs.DirEntry, err error) error {
		if err != nil {
			if osPath == s.root {
				return errors.Wrapf(err, "scan: walking %q", s.root)
			}
			log.WithField("path", osPath).WithError(err).Warn("walk error, skipping")
			return nil
		}
		if d.IsDir() {
			if isJunction, jerr := s.dir.IsJunction(osPath); jerr == nil && isJunction {
				log.WithField("path", osPath).Debug("skipping junction/reparse point")
				return fs.SkipDir
			}
			if strings.HasSuffix(d.Name(), ".app") && osPath != s.root {
				log.WithField("path", osPath).Debug("skipping app bundle")
				return fs.SkipDir
			}
			return nil
		}

		rel := relPath(s.root, osPath)
		modDir, remainder, bundleParent := decomposePath(rel)
		if remainder == "" {
			return nil
		}
		dir, base, ext := splitLogicalPath(remainder)

		info, err := d.Info()
		if err != nil {
			log.WithField("path", osPath).WithError(err).Warn("stat failed, skipping")
			return nil
		}
		if info.Size() > MaxFileSize {
			log.WithField("path", osPath).WithField("size", info.Size()).Warn("file exceeds 4 GiB, skipping")
			return nil
		}

		sf := index.ScanFile{
			ModDir:             modDir,
			Dir:                dir,
			Base:               base,
			Ext:                ext,
			OSPath:             osPath,
			NestedBundleParent: bundleParent,
			SourceDirID:        s.sourceDirID,
			Size:               uint32(info.Size()),
			MTimeUnix:          info.ModTime().Unix(),
			InDownloadDir:      isUnderDownloadDir(dir),
		}
		if err := sink(sf); err != nil {
			return errors.Wrapf(err, "scan: ingesting %q", osPath)
		}
		return nil
	})
}

// relPath returns path relative to root using forward slashes, regardless
// of OS path separator conventions.
func relPath(root, p string) string {
	rel := strings.TrimPrefix(p, root)
	rel = strings.TrimPrefix(rel, "/")
	rel = strings.TrimPrefix(rel, "\\")
	rel = strings.ReplaceAll(rel, "\\", "/")
	return rel
}

// decomposePath splits rel into (mod-dir, remainder, nested-bundle-parent)
// per spec.md §4.5: mod-dir is the first path segment; a segment anywhere
// in the path ending in ".pk3dir" is spliced out as a nested-dir-bundle.
func decomposePath(rel string) (modDir, remainder, bundleParent string) {
	segments := strings.Split(rel, "/")
	if len(segments) == 0 {
		return "", "", ""
	}
	modDir = segments[0]
	rest := segments[1:]

	kept := rest[:0:0]
	for _, seg := range rest {
		if strings.HasSuffix(seg, ".pk3dir") {
			bundleParent = strings.TrimSuffix(seg, ".pk3dir")
			continue
		}
		kept = append(kept, seg)
	}
	return modDir, strings.Join(kept, "/"), bundleParent
}

// splitLogicalPath splits a slash-separated logical path into (dir, base,
// ext), the same convention index.splitSubfilePath uses for in-archive
// entries.
func splitLogicalPath(p string) (dir, base, ext string) {
	dir = path.Dir(p)
	if dir == "." {
		dir = ""
	}
	name := path.Base(p)
	e := path.Ext(name)
	if e != "" {
		base = strings.TrimSuffix(name, e)
		ext = strings.TrimPrefix(e, ".")
	} else {
		base = name
	}
	return dir, base, ext
}

func isUnderDownloadDir(dir string) bool {
	for _, seg := range strings.Split(dir, "/") {
		if seg == downloadDirName {
			return true
		}
	}
	return false
}
