package precedence

import (
	"strings"

	"github.com/pakvfs/corefs/index"
)

// Rule is one entry in the ordered tie-break ladder (spec.md §4.7 step 3,
// modeled per spec.md §9's design note as data rather than branches
// scattered through the lookup code). Compare returns -1 if a outranks b,
// +1 if b outranks a, 0 if this rule does not distinguish them (the
// comparison falls through to the next rule).
type Rule struct {
	Name    string
	Compare func(a, b *Candidate) int
}

func boolRule(aWins, bWins bool) int {
	switch {
	case aWins && !bWins:
		return -1
	case bWins && !aWins:
		return 1
	default:
		return 0
	}
}

// Rules is the fixed 17-rule ladder, in priority order. Never reorder
// without re-deriving spec.md §4.7's table.
var Rules = []Rule{
	{"disabled-vs-enabled", func(a, b *Candidate) int {
		return boolRule(!a.Disabled, !b.Disabled)
	}},
	{"special-shader", func(a, b *Candidate) int {
		return boolRule(a.IsSpecialShader, b.IsSpecialShader)
	}},
	{"pure-list-position", func(a, b *Candidate) int {
		aIn, bIn := a.PureListPos > 0, b.PureListPos > 0
		if aIn != bIn {
			return boolRule(aIn, bIn)
		}
		if aIn && bIn && a.PureListPos != b.PureListPos {
			if a.PureListPos < b.PureListPos {
				return -1
			}
			return 1
		}
		return 0
	}},
	{"mod-dir-priority-high", func(a, b *Candidate) int {
		if a.ModDirState >= 2 && a.ModDirState > b.ModDirState {
			return -1
		}
		if b.ModDirState >= 2 && b.ModDirState > a.ModDirState {
			return 1
		}
		return 0
	}},
	{"native-vs-vm", func(a, b *Candidate) int {
		return boolRule(a.IsNative, b.IsNative)
	}},
	{"system-pak-rank", func(a, b *Candidate) int {
		if a.SystemPakRank == b.SystemPakRank {
			return 0
		}
		if a.SystemPakRank > b.SystemPakRank {
			return -1
		}
		return 1
	}},
	{"same-archive-as-current-map", func(a, b *Candidate) int {
		return boolRule(a.SameArchiveAsCurrentMap, b.SameArchiveAsCurrentMap)
	}},
	{"shader-vs-image", func(a, b *Candidate) int {
		return boolRule(a.IsShader, b.IsShader)
	}},
	{"mod-dir-priority-low", func(a, b *Candidate) int {
		if a.ModDirState > 1 || b.ModDirState > 1 {
			return 0
		}
		if a.ModDirState == b.ModDirState {
			return 0
		}
		if a.ModDirState > b.ModDirState {
			return -1
		}
		return 1
	}},
	{"loose-vs-archive", func(a, b *Candidate) int {
		return boolRule(a.IsLoose, b.IsLoose)
	}},
	{"download-folder", func(a, b *Candidate) int {
		return boolRule(!a.InDownloadDir, !b.InDownloadDir)
	}},
	{"archive-name-lexicographic", func(a, b *Candidate) int {
		al, bl := strings.ToLower(a.ArchiveBaseName), strings.ToLower(b.ArchiveBaseName)
		if al != bl {
			if al > bl {
				return -1
			}
			return 1
		}
		if a.ArchiveBaseName == b.ArchiveBaseName {
			return 0
		}
		if a.ArchiveBaseName > b.ArchiveBaseName {
			return -1
		}
		return 1
	}},
	{"query-extension-index", func(a, b *Candidate) int {
		if a.ExtIndex == b.ExtIndex {
			return 0
		}
		if a.ExtIndex < b.ExtIndex {
			return -1
		}
		return 1
	}},
	{"source-dir-id", func(a, b *Candidate) int {
		if a.SourceDirID == b.SourceDirID {
			return 0
		}
		if a.SourceDirID < b.SourceDirID {
			return -1
		}
		return 1
	}},
	{"intra-archive-position", func(a, b *Candidate) int {
		ap, bp, ok := intraArchivePositions(a, b)
		if !ok || ap == bp {
			return 0
		}
		if ap > bp {
			return -1
		}
		return 1
	}},
	{"shader-start-offset", func(a, b *Candidate) int {
		if !a.IsShader || !b.IsShader || a.ShaderStart == b.ShaderStart {
			return 0
		}
		if a.ShaderStart < b.ShaderStart {
			return -1
		}
		return 1
	}},
	{"case-exact-match", func(a, b *Candidate) int {
		return boolRule(!a.CaseMismatch, !b.CaseMismatch)
	}},
}

func intraArchivePositions(a, b *Candidate) (ap, bp uint32, ok bool) {
	if a.Kind != index.KindArchiveSubfile || b.Kind != index.KindArchiveSubfile {
		return 0, 0, false
	}
	return a.ArchivePosition, b.ArchivePosition, true
}

// Compare runs the full rule ladder, short-circuiting on the first
// deciding rule. Returns the deciding rule's name, or 0 and an empty name
// if every rule tied: rule 17 decides only when exactly one of the two is a
// case-exact match, so two candidates that agree on every compared field
// tie.
func Compare(a, b *Candidate) (result int, decidingRule string) {
	for _, r := range Rules {
		if v := r.Compare(a, b); v != 0 {
			return v, r.Name
		}
	}
	return 0, ""
}
