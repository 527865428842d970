// Package external pins down the boundary of every collaborator the core
// filesystem depends on but does not implement: the CLI/console command
// binder, cvar storage, the game VM loader, the HTTP downloader, and the
// platform OS abstraction (spec.md §1 "Out of scope"). The core imports
// only these interfaces; a real client/server embeds corefs and supplies
// concrete implementations. A minimal OS-backed default (OS) is provided
// so this module is independently runnable and testable.
package external

import (
	"io"
	"io/fs"
)

// CvarStore is the configuration-variable storage collaborator (spec.md
// §6). corefs never stores cvars itself; package config reads a settings
// file into a CvarStore implementation at startup.
type CvarStore interface {
	GetString(name string) string
	GetInt(name string) int
	GetBool(name string) bool
}

// Module is an opaque handle to a loaded game-logic module (native or
// VM bytecode); corefs never executes one, it only resolves which file a
// VMLoader should be given.
type Module interface {
	Close() error
}

// VMLoader is the game VM loader collaborator (spec.md §1, §4.7 rule 5).
type VMLoader interface {
	LoadNative(path string) (Module, error)
	LoadBytecode(path string) (Module, error)
}

// Downloader is the HTTP/UDP downloader collaborator (spec.md §1, §4.10).
type Downloader interface {
	Enqueue(name string, archiveHash uint32) error
}

// ConsoleBinder is the CLI/console command binding layer collaborator
// (spec.md §1). corefs never registers console commands itself; a binary
// embedding it (e.g. cmd/corefsctl, for debug use only) may.
type ConsoleBinder interface {
	Register(cmd string, fn func(args []string))
}

// OSDirectory is the directory-iteration half of the platform OS
// abstraction collaborator (spec.md §1, §4.5).
type OSDirectory interface {
	WalkDir(root string, walkFn fs.WalkDirFunc) error
	// IsJunction reports whether path is a reparse point / junction that
	// the scanner must not follow (spec.md §4.5).
	IsJunction(path string) (bool, error)
}

// OSFile is the raw file I/O half of the platform OS abstraction
// collaborator (spec.md §1, §4.9).
type OSFile interface {
	io.ReadWriteSeeker
	io.Closer
	Sync() error
}

// OSOpener opens OSFile handles in the modes the handle layer needs.
type OSOpener interface {
	OpenRead(path string) (OSFile, error)
	OpenWrite(path string, append bool) (OSFile, error)
	Stat(path string) (fs.FileInfo, error)
}
