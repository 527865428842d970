// Package manifest implements the reference/manifest engine of spec.md
// §4.10: a small whitespace-separated DSL that selects archives into an
// ordered reference set, from which the server's download list and pure
// list are built, plus the client-side pure-checksum computation the
// server's published list is verified against.
package manifest

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// TokenKind classifies one DSL token (spec.md §4.10, §6's token list).
type TokenKind uint8

const (
	TokenExcludeSet TokenKind = iota
	TokenExcludeReset
	TokenClusterBreak
	TokenWildcard
	TokenExplicit
)

// Wildcard selector names (spec.md §6).
const (
	WildcardModPaks         = "*mod_paks"
	WildcardBasePaks        = "*base_paks"
	WildcardInactiveModPaks = "*inactivemod_paks"
	WildcardReferencedPaks  = "*referenced_paks"
	WildcardCurrentMapPak   = "*currentmap_pak"
	WildcardCGamePak        = "*cgame_pak"
	WildcardUIPak           = "*ui_pak"
)

// Token is one parsed DSL token.
type Token struct {
	Kind TokenKind

	Wildcard string // set when Kind == TokenWildcard

	ModDir string // set when Kind == TokenExplicit
	Name   string
	Hash   uint32
	HasHash bool
}

// ErrMalformedExplicitRef is returned by Tokenize when an explicit
// "mod/name[:hash]" reference is missing its mod-dir or name component.
var ErrMalformedExplicitRef = errors.New("manifest: malformed explicit reference")

var wildcards = map[string]bool{
	WildcardModPaks: true, WildcardBasePaks: true, WildcardInactiveModPaks: true,
	WildcardReferencedPaks: true, WildcardCurrentMapPak: true, WildcardCGamePak: true,
	WildcardUIPak: true,
}

// Tokenize splits a manifest DSL string into tokens (spec.md §4.10: "#"
// comments are not supported, tokens are whitespace-separated).
func Tokenize(dsl string) ([]Token, error) {
	fields := strings.Fields(dsl)
	tokens := make([]Token, 0, len(fields))
	for _, f := range fields {
		switch {
		case f == "&exclude":
			tokens = append(tokens, Token{Kind: TokenExcludeSet})
		case f == "&exclude_reset":
			tokens = append(tokens, Token{Kind: TokenExcludeReset})
		case f == "-":
			tokens = append(tokens, Token{Kind: TokenClusterBreak})
		case wildcards[f]:
			tokens = append(tokens, Token{Kind: TokenWildcard, Wildcard: f})
		default:
			tok, err := parseExplicitRef(f)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, tok)
		}
	}
	return tokens, nil
}

// parseExplicitRef parses "mod/name" or "mod/name:hash".
func parseExplicitRef(f string) (Token, error) {
	slash := strings.IndexByte(f, '/')
	if slash <= 0 || slash == len(f)-1 {
		return Token{}, errors.Wrapf(ErrMalformedExplicitRef, "%q", f)
	}
	modDir := f[:slash]
	rest := f[slash+1:]
	name := rest
	var hash uint32
	hasHash := false
	if colon := strings.IndexByte(rest, ':'); colon >= 0 {
		name = rest[:colon]
		hashStr := rest[colon+1:]
		if name == "" || hashStr == "" {
			return Token{}, errors.Wrapf(ErrMalformedExplicitRef, "%q", f)
		}
		v, err := strconv.ParseUint(hashStr, 10, 32)
		if err != nil {
			return Token{}, errors.Wrapf(ErrMalformedExplicitRef, "%q: non-numeric hash", f)
		}
		hash = uint32(v)
		hasHash = true
	}
	if name == "" {
		return Token{}, errors.Wrapf(ErrMalformedExplicitRef, "%q", f)
	}
	return Token{Kind: TokenExplicit, ModDir: modDir, Name: name, Hash: hash, HasHash: hasHash}, nil
}
