package config

import "github.com/pakvfs/corefs/external"

// cvarStore is a static external.CvarStore backed by a loaded Settings,
// for binaries that don't have a real console cvar engine wired up yet
// (tests, cmd/corefsctl).
type cvarStore struct {
	strings map[string]string
	ints    map[string]int
	bools   map[string]bool
}

// AsCvarStore snapshots s into a static external.CvarStore keyed by the
// cvar names of spec.md §6.
func (s *Settings) AsCvarStore() external.CvarStore {
	c := &cvarStore{
		strings: map[string]string{
			"fs_game":              s.Game,
			"fs_download_manifest": s.DownloadManifest,
			"fs_pure_manifest":     s.PureManifest,
		},
		ints: map[string]int{
			"fs_read_inactive_mods": s.ReadInactiveMods,
			"fs_list_inactive_mods": s.ListInactiveMods,
			"fs_download_mode":      s.DownloadMode,
		},
		bools: map[string]bool{
			"fs_mod_settings":           s.ModSettings,
			"fs_index_cache":            s.IndexCache,
			"fs_redownload_across_mods": s.RedownloadAcrossMods,
			"fs_full_pure_validation":   s.FullPureValidation,
			"fs_restrict_dlfolder":      s.RestrictDLFolder,
		},
	}
	for sub, enabled := range s.Debug {
		c.bools["fs_debug_"+sub] = enabled
	}
	return c
}

func (c *cvarStore) GetString(name string) string { return c.strings[name] }
func (c *cvarStore) GetInt(name string) int        { return c.ints[name] }
func (c *cvarStore) GetBool(name string) bool      { return c.bools[name] }
