package manifest

import (
	"fmt"
	"strconv"
	"strings"
)

// DownloadList is the server's serialized download pak list (spec.md
// §4.10): a hash list and parallel name list, plus a side table mapping
// served names back to the archive that streams them.
type DownloadList struct {
	HashList string
	NameList string
	byName   map[string]ArchiveRef
}

// ByName resolves a served pak name back to its ArchiveRef.
func (d *DownloadList) ByName(name string) (ArchiveRef, bool) {
	r, ok := d.byName[name]
	return r, ok
}

// BuildDownloadList serializes refs into a DownloadList, stripping any
// archive with a nonzero system-pak rank — those ship with every client
// already and would otherwise trigger spurious download errors (spec.md
// §4.10: "paks known to be part of the stock game are stripped").
func BuildDownloadList(refs []ArchiveRef, systemPakRanks map[uint32]int) *DownloadList {
	var hashes, names []string
	byName := make(map[string]ArchiveRef)
	for _, r := range refs {
		if systemPakRanks != nil && systemPakRanks[r.Hash] > 0 {
			continue
		}
		served := fmt.Sprintf("%s/%s", r.ModDir, r.Name)
		hashes = append(hashes, strconv.FormatUint(uint64(r.Hash), 10))
		names = append(names, served)
		byName[served] = r
	}
	return &DownloadList{
		HashList: strings.Join(hashes, " "),
		NameList: strings.Join(names, " "),
		byName:   byName,
	}
}
