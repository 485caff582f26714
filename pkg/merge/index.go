package merge

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"projectcas/pkg/archive"
	"projectcas/pkg/log"
	"projectcas/pkg/store"
)

const indexFileName = ".dedupe_index.json"

// index maps content hashes to paths relative to the target root.
type index struct {
	root    string
	entries map[string]string
}

func loadIndex(root string) *index {
	idx := &index{root: root, entries: make(map[string]string)}

	data, err := os.ReadFile(filepath.Join(root, indexFileName))
	if errors.Is(err, os.ErrNotExist) {
		return idx
	}
	if err != nil {
		log.Warn().Err(err).Str("root", root).Msg("Failed to read dedup index, starting empty")
		return idx
	}
	if err := json.Unmarshal(data, &idx.entries); err != nil {
		log.Warn().Err(err).Str("root", root).Msg("Dedup index is corrupt, starting empty")
		idx.entries = make(map[string]string)
	}
	return idx
}

// lookup returns the indexed location for hash when the file there still
// exists with the expected size. Stale entries are evicted.
func (idx *index) lookup(hash string, size int64) (string, bool) {
	rel, ok := idx.entries[hash]
	if !ok {
		return "", false
	}

	if clean, safe := archive.NormalizePath(rel); safe && clean != "" {
		info, err := os.Stat(filepath.Join(idx.root, filepath.FromSlash(clean)))
		if err == nil && info.Mode().IsRegular() && info.Size() == size {
			return clean, true
		}
	}

	log.Debug().Str("hash", hash).Str("path", rel).Msg("Evicting stale dedup index entry")
	delete(idx.entries, hash)
	return "", false
}

func (idx *index) record(hash, rel string) {
	idx.entries[hash] = rel
}

func (idx *index) save() error {
	return store.WriteJSONAtomic(filepath.Join(idx.root, indexFileName), idx.entries)
}
