package precedence

import (
	"sort"
	"strings"

	"github.com/pakvfs/corefs/index"
)

// Engine runs Lookup against one Index plus the session state the rule
// ladder's annotation step needs: the pure list, the system-pak rank
// table, the current map's archive, and the download-folder restriction
// policy (spec.md §4.7 step 2, §6, §7).
type Engine struct {
	Index *index.Index

	// SystemPakRanks maps an archive's identity hash to its compile-time
	// rank (spec.md §4.7 step 2); absent means rank 0.
	SystemPakRanks map[uint32]int

	// PureList maps an archive's identity hash to its 1-based position in
	// the server's pure list; absent means "not in the pure list".
	PureList map[uint32]int
	// PureModeActive is true while connected to a server that published a
	// pure list; only then does rule-1's pure-list disable reason apply
	// (spec.md E2).
	PureModeActive bool

	// CurrentMapArchiveHash is the identity hash of the archive the
	// current map was loaded from, used by rule 7.
	CurrentMapArchiveHash uint32

	// RestrictDownloadFolder mirrors fs_restrict_dlfolder (spec.md E4):
	// when true, a native code module loaded from a download-folder
	// archive is disabled in favor of a non-downloaded candidate.
	RestrictDownloadFolder bool

	// TrustedCodeModuleHashes gates disable reason 5 (user-defined
	// trusted-hash restriction on downloaded code modules, spec.md §7):
	// nil disables the check entirely.
	TrustedCodeModuleHashes map[uint32]bool

	// ForbiddenConfigModDirs names mod-dirs a settings config may not be
	// loaded from (disable reason 3), on top of the blanket
	// archive-sourced-config restriction spec.md §7 always applies.
	ForbiddenConfigModDirs map[string]bool

	// NativeExtension is the platform's dynamic-library extension, used
	// to recognize a code-module candidate as native (spec.md §4.7's
	// code-module flavor).
	NativeExtension string

	// Debug carries the fs_debug_lookup setting (spec.md §4.7's final
	// paragraph). Lookup and LookupDebug do not read it; explain output
	// comes from calling LookupDebug.
	Debug bool
}

// Explained is one entry of Lookup's debug-mode output: a candidate plus
// the rule name that decided its position relative to its predecessor in
// the sorted order.
type Explained struct {
	Candidate Candidate
	Rule      string // empty for the first (best) candidate
}

// Lookup implements spec.md §4.7: collect, annotate, compare, and return
// the winner. A nil *Candidate with a nil error means "no match"; a
// disabled winner also yields (nil, nil) per step 4.
func (e *Engine) Lookup(q Query) (*Candidate, error) {
	candidates, err := e.collect(q)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	for i := range candidates {
		if err := e.annotate(&candidates[i], q); err != nil {
			return nil, err
		}
	}
	sortCandidates(candidates)
	winner := &candidates[0]
	if winner.Disabled {
		return nil, nil
	}
	return winner, nil
}

// LookupDebug is Lookup plus the full sorted list annotated with the
// deciding rule between each candidate and its predecessor (spec.md §4.7's
// debug-mode paragraph).
func (e *Engine) LookupDebug(q Query) ([]Explained, error) {
	candidates, err := e.collect(q)
	if err != nil {
		return nil, err
	}
	for i := range candidates {
		if err := e.annotate(&candidates[i], q); err != nil {
			return nil, err
		}
	}
	sortCandidates(candidates)
	explained := make([]Explained, len(candidates))
	for i := range candidates {
		explained[i].Candidate = candidates[i]
		if i > 0 {
			_, rule := Compare(&candidates[i-1], &candidates[i])
			explained[i].Rule = rule
		}
	}
	return explained, nil
}

func sortCandidates(candidates []Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		v, _ := Compare(&candidates[i], &candidates[j])
		return v < 0
	})
}

// collect implements spec.md §4.7 step 1: walk files-by-name for each of
// the query's extensions, plus the shaders table if a shader name is set.
func (e *Engine) collect(q Query) ([]Candidate, error) {
	var out []Candidate

	if q.ShaderName != "" {
		shaders, err := e.Index.LookupShaders(q.ShaderName)
		if err != nil {
			return nil, err
		}
		for _, sh := range shaders {
			c, err := e.candidateFromShader(sh)
			if err != nil {
				return nil, err
			}
			out = append(out, c)
		}
	}

	refs, exact, err := e.Index.LookupByName(q.Name, q.Dir)
	if err != nil {
		return nil, err
	}
	for extIdx, ext := range q.Extensions {
		for i, ref := range refs {
			c, extMatch, err := e.candidateFromRef(ref, ext, extIdx, exact[i])
			if err != nil {
				return nil, err
			}
			if extMatch {
				out = append(out, c)
			}
		}
	}
	return out, nil
}

func (e *Engine) candidateFromRef(ref index.CandidateRef, wantExt string, extIdx int, caseExact bool) (Candidate, bool, error) {
	var c Candidate
	c.Kind = ref.Kind
	c.Offset = ref.Offset
	c.ExtIndex = extIdx
	c.CaseMismatch = !caseExact

	switch ref.Kind {
	case index.KindLooseFile:
		v, err := e.Index.ViewLooseFile(ref.Offset)
		if err != nil {
			return c, false, err
		}
		if !strings.EqualFold(v.Ext, wantExt) {
			return c, false, nil
		}
		c.Dir, c.Base, c.Ext = v.Dir, v.Base, v.Ext
		c.ModDir = v.ModDir
		c.SourceDirID = v.SourceDirID
		c.IsLoose = true
		c.InDownloadDir = v.Flags&uint8(index.FlagInArchiveDownloadDir) != 0
		c.ArchiveBaseName = v.Base
		c.ArchiveIdentityHash = v.ArchiveIdentityHash
		c.IsNative = e.NativeExtension != "" && strings.EqualFold(v.Ext, e.NativeExtension)
		if !v.Active {
			c.Disabled = true
		}
	case index.KindArchiveSubfile:
		v, err := e.Index.ViewArchiveSubfile(ref.Offset)
		if err != nil {
			return c, false, err
		}
		if !strings.EqualFold(v.Ext, wantExt) {
			return c, false, nil
		}
		c.Dir, c.Base, c.Ext = v.Dir, v.Base, v.Ext
		c.ModDir = v.OwnerView.ModDir
		c.SourceDirID = v.OwnerView.SourceDirID
		c.IsLoose = false
		c.InDownloadDir = v.Flags&uint8(index.FlagInArchiveDownloadDir) != 0
		c.ArchivePosition = v.Position
		c.ArchiveBaseName = v.OwnerView.Base
		c.ArchiveIdentityHash = v.OwnerView.ArchiveIdentityHash
		c.IsNative = e.NativeExtension != "" && strings.EqualFold(v.Ext, e.NativeExtension)
		if !v.Active {
			c.Disabled = true
		}
	}
	return c, true, nil
}

func (e *Engine) candidateFromShader(sh index.ShaderView) (Candidate, error) {
	var c Candidate
	c.IsShader = true
	c.ShaderStart = sh.Start
	c.Kind = sh.SourceKind

	switch sh.SourceKind {
	case index.KindLooseFile:
		v, err := e.Index.ViewLooseFile(sh.Source)
		if err != nil {
			return c, err
		}
		c.Offset = sh.Source
		c.Dir, c.Base, c.Ext = v.Dir, v.Base, v.Ext
		c.ModDir = v.ModDir
		c.SourceDirID = v.SourceDirID
		c.IsLoose = true
		c.InDownloadDir = v.Flags&uint8(index.FlagInArchiveDownloadDir) != 0
		c.ArchiveBaseName = v.Base
		c.ArchiveIdentityHash = v.ArchiveIdentityHash
		if !v.Active {
			c.Disabled = true
		}
	case index.KindArchiveSubfile:
		v, err := e.Index.ViewArchiveSubfile(sh.Source)
		if err != nil {
			return c, err
		}
		c.Offset = sh.Source
		c.Dir, c.Base, c.Ext = v.Dir, v.Base, v.Ext
		c.ModDir = v.OwnerView.ModDir
		c.SourceDirID = v.OwnerView.SourceDirID
		c.IsLoose = false
		c.InDownloadDir = v.Flags&uint8(index.FlagInArchiveDownloadDir) != 0
		c.ArchivePosition = v.Position
		c.ArchiveBaseName = v.OwnerView.Base
		c.ArchiveIdentityHash = v.OwnerView.ArchiveIdentityHash
		if !v.Active {
			c.Disabled = true
		}
	}
	return c, nil
}

// annotate implements spec.md §4.7 step 2: derive mod-dir state, pure-list
// position, system-pak rank, same-archive flag, and every rule-1 disable
// reason.
func (e *Engine) annotate(c *Candidate, q Query) error {
	state, err := e.Index.ModDirStateOf(c.ModDir)
	if err != nil {
		return err
	}
	c.ModDirState = state

	if e.SystemPakRanks != nil {
		c.SystemPakRank = e.SystemPakRanks[c.ArchiveIdentityHash]
	}
	if e.PureList != nil {
		c.PureListPos = e.PureList[c.ArchiveIdentityHash]
	}
	c.SameArchiveAsCurrentMap = c.ArchiveIdentityHash != 0 && c.ArchiveIdentityHash == e.CurrentMapArchiveHash

	if c.IsShader {
		c.IsSpecialShader = state == index.ModDirCurrentMod || state == index.ModDirBasemodOverlay ||
			c.SystemPakRank > 0 || c.PureListPos > 0
	}

	if c.Disabled {
		return nil // already disabled (inactive generation); no need to layer reasons
	}

	if state == index.ModDirInactive {
		c.Disabled = true
		c.DisableReason = DisabledInactiveMod
		return nil
	}

	if e.PureModeActive && q.Flags&FlagIgnorePureList == 0 && q.Flags&FlagPureAllowDirectSource == 0 {
		if c.PureListPos == 0 {
			c.Disabled = true
			c.DisableReason = DisabledNotInPureList
			return nil
		}
	}

	isConfigQuery := q.Flags&FlagIgnorePureList != 0
	if isConfigQuery && (!c.IsLoose || e.ForbiddenConfigModDirs[c.ModDir]) {
		c.Disabled = true
		c.DisableReason = DisabledConfigRestricted
		return nil
	}

	if c.IsNative && e.RestrictDownloadFolder && c.InDownloadDir {
		c.Disabled = true
		c.DisableReason = DisabledNativeModuleFromDownload
		return nil
	}

	if c.IsNative && c.InDownloadDir && e.TrustedCodeModuleHashes != nil && !e.TrustedCodeModuleHashes[c.ArchiveIdentityHash] {
		c.Disabled = true
		c.DisableReason = DisabledUntrustedCodeModule
	}

	return nil
}
