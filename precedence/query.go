package precedence

// Flags is a bitmask of per-lookup modifiers (spec.md §6's LOOKUPFLAG_*
// family).
type Flags uint32

const (
	// FlagPureAllowDirectSource exempts the lookup from rule-3's pure-list
	// disable check (spec.md E2).
	FlagPureAllowDirectSource Flags = 1 << iota
	// FlagIgnorePureList is set by the config flavor: settings configs are
	// never subject to pure-list filtering (spec.md §4.7 flavor table).
	FlagIgnorePureList
)

// Query is what Engine.Lookup consumes: a logical (dir, name) plus the
// extension preference order and any category-specific fields.
type Query struct {
	Dir  string
	Name string

	// Extensions is tried in order; rule 13 breaks ties on array index.
	Extensions []string

	// ShaderName, if non-empty, also triggers a shaders-table walk whose
	// hits are collected as "shader" candidates ahead of plain extensions
	// (spec.md §4.7 step 1).
	ShaderName string

	Flags Flags
}

var imageFallbackExtensions = []string{"tga", "jpg", "jpeg", "png", "pcx", "dds"}

// General builds the general-purpose lookup flavor: a single extension
// taken from the path itself.
func General(dir, name, ext string) Query {
	return Query{Dir: dir, Name: name, Extensions: []string{ext}}
}

// Shader builds the shader lookup flavor: one shader name plus fallback
// image extensions, per spec.md §4.7's flavor table.
func Shader(shaderName, dir, name string) Query {
	return Query{Dir: dir, Name: name, Extensions: imageFallbackExtensions, ShaderName: shaderName}
}

// Image builds the image-only lookup flavor.
func Image(dir, name string) Query {
	return Query{Dir: dir, Name: name, Extensions: imageFallbackExtensions}
}

// Sound builds the sound lookup flavor: fixed wav/mp3 extensions.
func Sound(dir, name string) Query {
	return Query{Dir: dir, Name: name, Extensions: []string{"wav", "mp3"}}
}

// CodeModule builds the code-module lookup flavor: the VM-bytecode
// extension first, then the platform native dynamic-library extension,
// ordered so that if both are present rule 5 (native beats VM) decides
// first and rule 13 (extension order) only matters when rule 5 is silent
// (native unavailable).
func CodeModule(dir, name, nativeExt string) Query {
	return Query{Dir: dir, Name: name, Extensions: []string{"qvm", nativeExt}}
}

// Config builds the config lookup flavor: same as General, but the
// pure-list is ignored for it (spec.md §4.7 flavor table).
func Config(dir, name, ext string) Query {
	return Query{Dir: dir, Name: name, Extensions: []string{ext}, Flags: FlagIgnorePureList}
}
