package external

import (
	"strings"

	"github.com/pkg/errors"
)

// ErrUnsafePath is returned by SanitizeWritePath when name cannot be made
// safe, or names an extension/config file that is rejected outright
// (spec.md §6).
var ErrUnsafePath = errors.New("external: path rejected by sanitization")

// allowedPunctuation is the exact allow-list from spec.md §6.
const allowedPunctuation = "~!@#$%^&_-+=()[]{}';,. "

func isAllowedWriteChar(c byte) bool {
	if c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' {
		return true
	}
	return strings.IndexByte(allowedPunctuation, c) >= 0
}

// restrictedExtensions are rejected unless allowExecutable is set.
var restrictedExtensions = map[string]bool{
	"qvm": true,
	"exe": true,
	"app": true,
}

// PlatformDynamicLibraryExtensions names the native-module extensions for
// the three platform families corefs cares about (spec.md §6).
var PlatformDynamicLibraryExtensions = map[string]bool{
	"dll": true,
	"so":  true,
	"dylib": true,
}

// SanitizeOptions controls the two override flags spec.md §6 allows.
type SanitizeOptions struct {
	AllowExecutableExtension bool // override for qvm/exe/app/native-lib extensions
	AllowSpecialConfig       bool // override for q3config.cfg / autoexec.cfg
}

// SanitizeWritePath maps name onto a safe relative path for the one
// designated writable source directory, per spec.md §6. Any segment
// containing ".." is rejected outright (ErrUnsafePath); every other
// character outside the allow-list is replaced with '_', and a leading or
// trailing space/period on each segment is replaced with '_'.
func SanitizeWritePath(name string, opts SanitizeOptions) (string, error) {
	if name == "" {
		return "", errors.Wrap(ErrUnsafePath, "empty path")
	}
	segments := strings.Split(filepathSlashes(name), "/")
	for i, seg := range segments {
		if seg == "" {
			continue
		}
		if strings.Contains(seg, "..") {
			return "", errors.Wrapf(ErrUnsafePath, "segment %q contains ..", seg)
		}
		segments[i] = sanitizeSegment(seg)
	}
	clean := strings.Join(segments, "/")

	base := clean
	if idx := strings.LastIndexByte(clean, '/'); idx >= 0 {
		base = clean[idx+1:]
	}
	lowerBase := strings.ToLower(base)

	if ext := extensionOf(lowerBase); ext != "" {
		if restrictedExtensions[ext] && !opts.AllowExecutableExtension {
			return "", errors.Wrapf(ErrUnsafePath, "extension %q rejected", ext)
		}
		if PlatformDynamicLibraryExtensions[ext] && !opts.AllowExecutableExtension {
			return "", errors.Wrapf(ErrUnsafePath, "extension %q rejected", ext)
		}
	}
	if (lowerBase == "q3config.cfg" || lowerBase == "autoexec.cfg") && !opts.AllowSpecialConfig {
		return "", errors.Wrapf(ErrUnsafePath, "special config file %q rejected", lowerBase)
	}
	return clean, nil
}

func filepathSlashes(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}

func extensionOf(name string) string {
	idx := strings.LastIndexByte(name, '.')
	if idx < 0 || idx == len(name)-1 {
		return ""
	}
	return name[idx+1:]
}

func sanitizeSegment(seg string) string {
	b := []byte(seg)
	for i := range b {
		if !isAllowedWriteChar(b[i]) {
			b[i] = '_'
		}
	}
	if len(b) > 0 && (b[0] == ' ' || b[0] == '.') {
		b[0] = '_'
	}
	if len(b) > 0 && (b[len(b)-1] == ' ' || b[len(b)-1] == '.') {
		b[len(b)-1] = '_'
	}
	return string(b)
}
