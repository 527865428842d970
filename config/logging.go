package config

import (
	"github.com/sirupsen/logrus"

	"github.com/pakvfs/corefs/corelog"
)

// ApplyDebugLogging sets corelog's shared level from fs_debug_* (spec.md
// §6): debug if any subsystem flag is set, info otherwise. corelog has one
// shared logger, not a per-subsystem level, matching the teacher's own
// single-logger-with-fields design (SPEC_FULL.md §2a).
func (s *Settings) ApplyDebugLogging() {
	for _, enabled := range s.Debug {
		if enabled {
			corelog.SetLevel(logrus.DebugLevel)
			return
		}
	}
	corelog.SetLevel(logrus.InfoLevel)
}
