// Package corelog is the ambient structured-logging layer every other
// package in this module uses, wrapping github.com/sirupsen/logrus the way
// the teacher (rclone) wraps its own logger in fs/log: one shared logger,
// per-subsystem fields, and a level controllable at runtime by the
// fs_debug_* family of cvars (SPEC_FULL.md §2a, §6).
package corelog

import (
	"io"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	mu     sync.Mutex
	logger = logrus.New()
)

func init() {
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logger.SetLevel(logrus.InfoLevel)
}

// Subsystem is one of the named debug flags from fs_debug_* (spec.md §6):
// each maps to one package's logging component.
type Subsystem string

const (
	Arena      Subsystem = "arena"
	Archive    Subsystem = "archive"
	Shader     Subsystem = "shader"
	Index      Subsystem = "index"
	Scanner    Subsystem = "scanner"
	Precedence Subsystem = "precedence"
	VFSCache   Subsystem = "vfscache"
	Handle     Subsystem = "handle"
	Manifest   Subsystem = "manifest"
	FileList   Subsystem = "filelist"
)

// For returns a logrus.Entry tagged with component=sub, the way the
// teacher tags log lines per-backend.
func For(sub Subsystem) *logrus.Entry {
	mu.Lock()
	defer mu.Unlock()
	return logger.WithField("component", string(sub))
}

// SetLevel adjusts the shared logger's level; wired to fs_debug_* cvars by
// package config at startup (and can be called again if a cvar changes).
func SetLevel(level logrus.Level) {
	mu.Lock()
	defer mu.Unlock()
	logger.SetLevel(level)
}

// SetOutput redirects all log output; tests use this to capture output or
// silence it.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	logger.SetOutput(w)
}
