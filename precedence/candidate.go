// Package precedence implements the core lookup algorithm: given a query
// (logical path plus category), collect every matching candidate file
// across loose files, archive subfiles, and shaders, and pick the single
// winner through the ordered 17-rule comparator of spec.md §4.7.
package precedence

import (
	"github.com/pakvfs/corefs/arena"
	"github.com/pakvfs/corefs/index"
)

// DisableReason records why rule 1 would knock a candidate out, per
// spec.md §7.
type DisableReason uint8

const (
	NotDisabled DisableReason = iota
	DisabledInactiveMod
	DisabledNotInPureList
	DisabledConfigRestricted
	DisabledNativeModuleFromDownload
	DisabledUntrustedCodeModule
)

// Candidate is one lookup candidate, with both the raw fields needed to
// open/resolve it and the derived fields the rule list compares (spec.md
// §4.7 step 2's annotation).
type Candidate struct {
	Kind   index.FileKind
	Offset arena.Offset // LooseFile or ArchiveSubfile offset

	Dir, Base, Ext string
	ModDir         string
	SourceDirID    uint16
	IsLoose        bool
	InDownloadDir  bool
	IsShader       bool
	ShaderStart    uint32
	ArchivePosition uint32 // intra-archive position; meaningful only when Kind == index.KindArchiveSubfile

	ArchiveBaseName     string // base name of the owning archive (or of itself, if a LooseFile archive)
	ArchiveIdentityHash uint32

	// Annotated fields (spec.md §4.7 step 2).
	ModDirState   index.ModDirState
	SystemPakRank int
	PureListPos   int // 0 = absent from the pure list
	CaseMismatch  bool
	ExtIndex      int
	IsNative      bool
	SameArchiveAsCurrentMap bool
	IsSpecialShader         bool

	Disabled      bool
	DisableReason DisableReason
}
