package manifest

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pakvfs/corefs/index"
	"github.com/pakvfs/corefs/precedence"
)

// ArchiveRef is one archive selected into a reference set.
type ArchiveRef struct {
	ModDir string
	Name   string
	Hash   uint32
}

// ReferenceTracker is the "referenced paks" set: every archive whose
// contents have actually been looked up this session, fed by
// Register and consumed by the "*referenced_paks" selector
// (spec.md §4.10).
type ReferenceTracker struct {
	hashes map[uint32]ArchiveRef
}

// NewReferenceTracker creates an empty tracker.
func NewReferenceTracker() *ReferenceTracker {
	return &ReferenceTracker{hashes: make(map[uint32]ArchiveRef)}
}

// Register records ref as referenced, a no-op if already present.
func (t *ReferenceTracker) Register(ref ArchiveRef) {
	if ref.Hash == 0 {
		return
	}
	if _, ok := t.hashes[ref.Hash]; !ok {
		t.hashes[ref.Hash] = ref
	}
}

// Reset clears every tracked reference.
func (t *ReferenceTracker) Reset() {
	t.hashes = make(map[uint32]ArchiveRef)
}

// All returns every tracked reference, in no particular order.
func (t *ReferenceTracker) All() []ArchiveRef {
	out := make([]ArchiveRef, 0, len(t.hashes))
	for _, r := range t.hashes {
		out = append(out, r)
	}
	return out
}

// Context supplies BuildReferenceSet with everything it needs to resolve
// wildcard selectors and compute per-candidate sort keys: the index (for
// archive enumeration), the precedence engine (for mod-dir state and
// system-pak rank), and the session's tracked references and well-known
// pak identities.
type Context struct {
	Index                 *index.Index
	Engine                *precedence.Engine
	ActiveModDir          string
	CurrentMapArchiveHash uint32
	CGameArchiveHash      uint32
	UIArchiveHash         uint32
	Tracker               *ReferenceTracker
}

type sortKey struct {
	cluster       int
	overlayRank   int
	systemPakRank int
	modType       int
	modDir        string
	archiveName   string
	nameMatch     int
}

// compareSortKey returns -1 if a outranks b, +1 if b outranks a, 0 if
// equal, per spec.md §4.10's collision resolution order: {cluster desc,
// overlay-mod-type desc, system-pak-rank, mod-type, mod-dir, archive-name,
// name-match}. Numeric fields favor the higher value, so a later cluster
// (one reached after more "-" tokens) outranks an earlier one; mod-dir and
// archive-name favor the lexically lower string.
func compareSortKey(a, b sortKey) int {
	switch {
	case a.cluster != b.cluster:
		return boolCmp(a.cluster > b.cluster)
	case a.overlayRank != b.overlayRank:
		return boolCmp(a.overlayRank > b.overlayRank)
	case a.systemPakRank != b.systemPakRank:
		return boolCmp(a.systemPakRank > b.systemPakRank)
	case a.modType != b.modType:
		return boolCmp(a.modType > b.modType)
	case a.modDir != b.modDir:
		return boolCmp(a.modDir < b.modDir)
	case a.archiveName != b.archiveName:
		return boolCmp(a.archiveName < b.archiveName)
	case a.nameMatch != b.nameMatch:
		return boolCmp(a.nameMatch > b.nameMatch)
	default:
		return 0
	}
}

func boolCmp(aWins bool) int {
	if aWins {
		return -1
	}
	return 1
}

type setEntry struct {
	ref ArchiveRef
	key sortKey
}

// ReferenceSet is BuildReferenceSet's output: archives deduplicated by
// hash, each kept only in its highest-priority form.
type ReferenceSet struct {
	entries map[uint32]setEntry
}

// Refs returns every selected archive, sorted by mod-dir and then archive
// name for deterministic output.
func (s *ReferenceSet) Refs() []ArchiveRef {
	out := make([]ArchiveRef, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.ref)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ModDir != out[j].ModDir {
			return out[i].ModDir < out[j].ModDir
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Len returns the number of selected archives.
func (s *ReferenceSet) Len() int { return len(s.entries) }

type builder struct {
	ctx         *Context
	out         *ReferenceSet
	excludeSet  map[uint32]bool
	cluster     int
	excludeMode bool
}

// BuildReferenceSet parses and evaluates a manifest DSL string into an
// ordered, deduplicated set of archive references (spec.md §4.10).
func BuildReferenceSet(dsl string, ctx *Context) (*ReferenceSet, error) {
	tokens, err := Tokenize(dsl)
	if err != nil {
		return nil, err
	}
	b := &builder{
		ctx:        ctx,
		out:        &ReferenceSet{entries: make(map[uint32]setEntry)},
		excludeSet: make(map[uint32]bool),
	}
	for _, tok := range tokens {
		switch tok.Kind {
		case TokenExcludeReset:
			b.excludeSet = make(map[uint32]bool)
		case TokenExcludeSet:
			b.excludeMode = true
			continue // spec.md §4.10: persists until the very next token
		case TokenClusterBreak:
			b.cluster++
		case TokenWildcard:
			refs, err := b.expandWildcard(tok.Wildcard)
			if err != nil {
				return nil, err
			}
			b.apply(refs, 1)
		case TokenExplicit:
			refs, nameMatch, err := b.resolveExplicit(tok)
			if err != nil {
				return nil, err
			}
			b.apply(refs, nameMatch)
		}
		b.excludeMode = false
	}
	return b.out, nil
}

func (b *builder) apply(refs []ArchiveRef, nameMatch int) {
	for _, ref := range refs {
		if b.excludeMode {
			b.excludeSet[ref.Hash] = true
			continue
		}
		if b.excludeSet[ref.Hash] {
			continue
		}
		key := b.sortKeyFor(ref, nameMatch)
		existing, ok := b.out.entries[ref.Hash]
		if !ok || compareSortKey(key, existing.key) < 0 {
			b.out.entries[ref.Hash] = setEntry{ref: ref, key: key}
		}
	}
}

func (b *builder) sortKeyFor(ref ArchiveRef, nameMatch int) sortKey {
	state, _ := b.ctx.Index.ModDirStateOf(ref.ModDir)
	overlayRank := 0
	if state >= index.ModDirBasemodOverlay {
		overlayRank = 1
	}
	rank := 0
	if b.ctx.Engine.SystemPakRanks != nil {
		rank = b.ctx.Engine.SystemPakRanks[ref.Hash]
	}
	return sortKey{
		cluster:       b.cluster,
		overlayRank:   overlayRank,
		systemPakRank: rank,
		modType:       int(state),
		modDir:        strings.ToLower(ref.ModDir),
		archiveName:   strings.ToLower(ref.Name),
		nameMatch:     nameMatch,
	}
}

// expandWildcard resolves one wildcard selector into its archive refs.
func (b *builder) expandWildcard(w string) ([]ArchiveRef, error) {
	switch w {
	case WildcardModPaks:
		return b.archivesInModDirState(func(s index.ModDirState) bool { return s == index.ModDirCurrentMod })
	case WildcardBasePaks:
		return b.archivesInModDirState(func(s index.ModDirState) bool { return s == index.ModDirBasegame })
	case WildcardInactiveModPaks:
		return b.archivesInModDirState(func(s index.ModDirState) bool { return s == index.ModDirInactive })
	case WildcardReferencedPaks:
		return b.ctx.Tracker.All(), nil
	case WildcardCurrentMapPak:
		return archiveRefForHash(b.ctx, b.ctx.CurrentMapArchiveHash), nil
	case WildcardCGamePak:
		return archiveRefForHash(b.ctx, b.ctx.CGameArchiveHash), nil
	case WildcardUIPak:
		return archiveRefForHash(b.ctx, b.ctx.UIArchiveHash), nil
	default:
		return nil, fmt.Errorf("manifest: unknown wildcard %q", w)
	}
}

func (b *builder) archivesInModDirState(match func(index.ModDirState) bool) ([]ArchiveRef, error) {
	views, err := b.ctx.Index.AllActiveArchiveLooseFiles()
	if err != nil {
		return nil, err
	}
	var out []ArchiveRef
	for _, v := range views {
		state, err := b.ctx.Index.ModDirStateOf(v.ModDir)
		if err != nil {
			return nil, err
		}
		if match(state) {
			out = append(out, ArchiveRef{ModDir: v.ModDir, Name: v.Base + "." + v.Ext, Hash: v.ArchiveIdentityHash})
		}
	}
	return out, nil
}

func archiveRefForHash(ctx *Context, hash uint32) []ArchiveRef {
	if hash == 0 {
		return nil
	}
	views, err := ctx.Index.AllActiveArchiveLooseFiles()
	if err != nil {
		return nil
	}
	for _, v := range views {
		if v.ArchiveIdentityHash == hash {
			return []ArchiveRef{{ModDir: v.ModDir, Name: v.Base + "." + v.Ext, Hash: hash}}
		}
	}
	return nil
}

// resolveExplicit resolves "mod/name" or "mod/name:hash" against the
// index, returning a name_match quality code (spec.md §4.10's original
// "0 = no pak, 1 = no name match, 2 = case-insensitive match, 3 = exact
// match", collapsed here to a 1-3 scale since an unresolved reference is
// dropped rather than kept with no backing pak).
func (b *builder) resolveExplicit(tok Token) ([]ArchiveRef, int, error) {
	views, err := b.ctx.Index.AllActiveArchiveLooseFiles()
	if err != nil {
		return nil, 0, err
	}
	for _, v := range views {
		if tok.HasHash && v.ArchiveIdentityHash != tok.Hash {
			continue
		}
		name := v.Base + "." + v.Ext
		if v.ModDir == tok.ModDir && name == tok.Name {
			return []ArchiveRef{{ModDir: v.ModDir, Name: name, Hash: v.ArchiveIdentityHash}}, 3, nil
		}
	}
	for _, v := range views {
		if tok.HasHash && v.ArchiveIdentityHash != tok.Hash {
			continue
		}
		name := v.Base + "." + v.Ext
		if strings.EqualFold(v.ModDir, tok.ModDir) && strings.EqualFold(name, tok.Name) {
			return []ArchiveRef{{ModDir: v.ModDir, Name: name, Hash: v.ArchiveIdentityHash}}, 2, nil
		}
	}
	if tok.HasHash {
		for _, v := range views {
			if v.ArchiveIdentityHash == tok.Hash {
				return []ArchiveRef{{ModDir: v.ModDir, Name: v.Base + "." + v.Ext, Hash: v.ArchiveIdentityHash}}, 1, nil
			}
		}
	}
	return nil, 0, nil
}
