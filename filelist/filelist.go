// Package filelist implements spec.md §2's file-list query (SPEC_FULL.md
// §4.11): given a directory prefix and an optional extension filter, walks
// the index's Directory tree from the prefix node and returns every active
// file found, loose or packed, recursing into subdirectories on request.
package filelist

import (
	"strings"

	"github.com/pakvfs/corefs/arena"
	"github.com/pakvfs/corefs/corelog"
	"github.com/pakvfs/corefs/index"
)

// Entry is one file returned by List, resolved enough to display or open
// without the caller touching index internals.
type Entry struct {
	Dir, Base, Ext string
	ModDir         string
	Kind           index.FileKind
	Offset         arena.Offset
	Size           uint32
}

// ExtensionFilter restricts List to files whose extension (lowercase, no
// dot) is a key of the set; a nil filter matches every extension.
type ExtensionFilter map[string]bool

// NewExtensionFilter builds a filter from a list of extensions, lowercasing
// and stripping any leading dot so callers can pass either "pk3" or ".pk3".
func NewExtensionFilter(exts ...string) ExtensionFilter {
	f := make(ExtensionFilter, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimPrefix(e, "."))
		f[e] = true
	}
	return f
}

func (f ExtensionFilter) matches(ext string) bool {
	if f == nil {
		return true
	}
	return f[strings.ToLower(ext)]
}

// Options configures a List call.
type Options struct {
	// Filter restricts results by extension; nil matches everything.
	Filter ExtensionFilter
	// Recursive also lists every subdirectory under prefix; otherwise only
	// prefix's own direct files are returned.
	Recursive bool
}

// normalizePrefix strips leading/trailing slashes so "/textures/" and
// "textures" address the same Directory node the index populates its
// entries under (index paths never carry them).
func normalizePrefix(prefix string) string {
	return strings.Trim(prefix, "/")
}

// List returns every active file directly under prefix (and, if
// opts.Recursive, under every descendant directory), filtered by
// opts.Filter. A prefix that was never populated (no file has ever been
// ingested under it) yields an empty, non-error result.
func List(idx *index.Index, prefix string, opts Options) ([]Entry, error) {
	prefix = normalizePrefix(prefix)
	var out []Entry
	if err := walk(idx, prefix, opts, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func walk(idx *index.Index, dir string, opts Options, out *[]Entry) error {
	files, found, err := idx.DirectoryFiles(dir)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}

	for _, de := range files {
		entry, active, err := resolve(idx, de)
		if err != nil {
			corelog.For(corelog.FileList).WithField("dir", dir).WithError(err).
				Warn("could not resolve directory entry, skipping")
			continue
		}
		if !active || !opts.Filter.matches(entry.Ext) {
			continue
		}
		*out = append(*out, entry)
	}

	if !opts.Recursive {
		return nil
	}
	children, _, err := idx.DirectoryChildPaths(dir)
	if err != nil {
		return err
	}
	for _, child := range children {
		if err := walk(idx, child, opts, out); err != nil {
			return err
		}
	}
	return nil
}

func resolve(idx *index.Index, de index.DirEntry) (Entry, bool, error) {
	switch de.Kind {
	case index.KindLooseFile:
		v, err := idx.ViewLooseFile(de.Offset)
		if err != nil {
			return Entry{}, false, err
		}
		return Entry{
			Dir: v.Dir, Base: v.Base, Ext: v.Ext, ModDir: v.ModDir,
			Kind: index.KindLooseFile, Offset: de.Offset,
			Size: v.UncompressedSize,
		}, v.Active, nil
	case index.KindArchiveSubfile:
		v, err := idx.ViewArchiveSubfile(de.Offset)
		if err != nil {
			return Entry{}, false, err
		}
		return Entry{
			Dir: v.Dir, Base: v.Base, Ext: v.Ext, ModDir: v.OwnerView.ModDir,
			Kind: index.KindArchiveSubfile, Offset: de.Offset,
			Size: v.UncompressedSize,
		}, v.Active, nil
	default:
		return Entry{}, false, nil
	}
}
