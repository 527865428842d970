// Package config is the boot-time settings loader (SPEC_FULL.md §2a): it
// reads the cvars of spec.md §6 from a YAML file into a Settings struct,
// with defaults matching that table. It is deliberately not a cvar
// engine — that collaborator is external.CvarStore — only the thing a
// binary uses once, at startup, to populate one.
package config

import (
	"os"

	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"
)

// Settings holds every cvar spec.md §6 recognizes.
type Settings struct {
	Dirs                 []string `yaml:"fs_dirs"`
	Game                 string   `yaml:"fs_game"`
	ModSettings          bool     `yaml:"fs_mod_settings"`
	IndexCache           bool     `yaml:"fs_index_cache"`
	ReadInactiveMods     int      `yaml:"fs_read_inactive_mods"`
	ListInactiveMods     int      `yaml:"fs_list_inactive_mods"`
	DownloadManifest     string   `yaml:"fs_download_manifest"`
	PureManifest         string   `yaml:"fs_pure_manifest"`
	RedownloadAcrossMods bool     `yaml:"fs_redownload_across_mods"`
	FullPureValidation   bool     `yaml:"fs_full_pure_validation"`
	DownloadMode         int      `yaml:"fs_download_mode"`
	RestrictDLFolder     bool     `yaml:"fs_restrict_dlfolder"`

	// Debug maps a corelog subsystem name (e.g. "index", "precedence") to
	// whether fs_debug_<name> is set, per spec.md §6's "fs_debug_*" entry.
	Debug map[string]bool `yaml:"fs_debug"`
}

// Defaults returns the settings a fresh install boots with.
func Defaults() Settings {
	return Settings{
		Dirs:             nil,
		Game:             "",
		ModSettings:      false,
		IndexCache:       true,
		ReadInactiveMods: 0,
		ListInactiveMods: 0,
		DownloadMode:     0,
		Debug:            map[string]bool{},
	}
}

// Load reads and parses a YAML settings file at path, starting from
// Defaults() so any field the file omits keeps its default value.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "config: reading settings file")
	}
	s := Defaults()
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, errors.Wrap(err, "config: parsing settings file")
	}
	return &s, nil
}
