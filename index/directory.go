package index

import (
	"path"

	"github.com/pakvfs/corefs/arena"
)

// dirHash keys the directories table the same case-insensitive way
// files-by-name keys its own entries.
func dirHash(p string) uint64 { return arena.HashCI(p) }

// ensureDirectory finds or creates the Directory entry for logical path p,
// linking it into its parent's child-directory chain (and that parent's
// parent, up to the root "") so a prefix walk starting from any ancestor
// reaches every descendant (spec.md §3, §4.11).
func (idx *Index) ensureDirectory(p string) (arena.Offset, error) {
	off, found, err := idx.findDirectory(p)
	if err != nil {
		return arena.Null, err
	}
	if found {
		return off, nil
	}

	pathOff, err := idx.intern(p)
	if err != nil {
		return arena.Null, err
	}
	dirOff, err := arena.PutValue(idx.Arena, Directory{Path: pathOff})
	if err != nil {
		return arena.Null, err
	}
	if err := idx.directories.Insert(dirOff, dirHash(p)); err != nil {
		return arena.Null, err
	}

	if p != "" {
		parent := path.Dir(p)
		if parent == "." {
			parent = ""
		}
		parentOff, err := idx.ensureDirectory(parent)
		if err != nil {
			return arena.Null, err
		}
		if err := idx.linkChildDir(parentOff, dirOff); err != nil {
			return arena.Null, err
		}
	}
	return dirOff, nil
}

func (idx *Index) findDirectory(p string) (arena.Offset, bool, error) {
	it, err := idx.directories.Iterate(dirHash(p))
	if err != nil {
		return arena.Null, false, err
	}
	for {
		off, ok, err := it.Next()
		if err != nil {
			return arena.Null, false, err
		}
		if !ok {
			return arena.Null, false, nil
		}
		d, err := arena.GetValue[Directory](idx.Arena, off)
		if err != nil {
			return arena.Null, false, err
		}
		got, err := idx.Pool.String(d.Path)
		if err != nil {
			return arena.Null, false, err
		}
		if got == p {
			return off, true, nil
		}
	}
}

func (idx *Index) linkChildDir(parentOff, childOff arena.Offset) error {
	parent, err := arena.GetValue[Directory](idx.Arena, parentOff)
	if err != nil {
		return err
	}
	for cur := parent.FirstChildDir; !cur.IsNull(); {
		if cur == childOff {
			return nil
		}
		c, err := arena.GetValue[Directory](idx.Arena, cur)
		if err != nil {
			return err
		}
		cur = c.NextSiblingDir
	}
	child, err := arena.GetValue[Directory](idx.Arena, childOff)
	if err != nil {
		return err
	}
	child.NextSiblingDir = parent.FirstChildDir
	if err := arena.PutValueAt(idx.Arena, childOff, child); err != nil {
		return err
	}
	parent.FirstChildDir = childOff
	return arena.PutValueAt(idx.Arena, parentOff, parent)
}

// linkFileIntoDirectory prepends a DirFileEntry for (kind, target) onto p's
// Directory's file chain, creating p and its ancestor directories first if
// they don't exist yet.
func (idx *Index) linkFileIntoDirectory(p string, kind FileKind, target arena.Offset) error {
	dirOff, err := idx.ensureDirectory(p)
	if err != nil {
		return err
	}
	d, err := arena.GetValue[Directory](idx.Arena, dirOff)
	if err != nil {
		return err
	}
	entry := DirFileEntry{Next: d.FirstChildFile, Kind: uint8(kind), Target: target}
	entryOff, err := arena.PutValue(idx.Arena, entry)
	if err != nil {
		return err
	}
	d.FirstChildFile = entryOff
	return arena.PutValueAt(idx.Arena, dirOff, d)
}

// DirEntry is one file attached to a Directory, resolved enough for
// filelist to classify and filter without touching arena internals.
type DirEntry struct {
	Kind   FileKind
	Offset arena.Offset
}

// DirectoryFiles returns every DirFileEntry attached directly to path p
// (not recursive), or (nil, false, nil) if p has never been populated.
func (idx *Index) DirectoryFiles(p string) ([]DirEntry, bool, error) {
	off, found, err := idx.findDirectory(p)
	if err != nil || !found {
		return nil, found, err
	}
	d, err := arena.GetValue[Directory](idx.Arena, off)
	if err != nil {
		return nil, false, err
	}
	var out []DirEntry
	for cur := d.FirstChildFile; !cur.IsNull(); {
		e, err := arena.GetValue[DirFileEntry](idx.Arena, cur)
		if err != nil {
			return nil, false, err
		}
		out = append(out, DirEntry{Kind: FileKind(e.Kind), Offset: e.Target})
		cur = e.Next
	}
	return out, true, nil
}

// DirectoryChildPaths returns the logical path of every direct
// subdirectory of p that has been populated.
func (idx *Index) DirectoryChildPaths(p string) ([]string, bool, error) {
	off, found, err := idx.findDirectory(p)
	if err != nil || !found {
		return nil, found, err
	}
	d, err := arena.GetValue[Directory](idx.Arena, off)
	if err != nil {
		return nil, false, err
	}
	var out []string
	for cur := d.FirstChildDir; !cur.IsNull(); {
		c, err := arena.GetValue[Directory](idx.Arena, cur)
		if err != nil {
			return nil, false, err
		}
		childPath, err := idx.Pool.String(c.Path)
		if err != nil {
			return nil, false, err
		}
		out = append(out, childPath)
		cur = c.NextSiblingDir
	}
	return out, true, nil
}
