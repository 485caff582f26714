// Package materialize rebuilds a project's merged file set from the manifests
// of the uploads that contributed to it.
package materialize

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"projectcas/pkg/archive"
	"projectcas/pkg/log"
	"projectcas/pkg/manifest"
	"projectcas/pkg/store"
)

// ManifestLoader loads the manifest recorded for an upload.
type ManifestLoader interface {
	Load(uploadID int64) (*manifest.Manifest, error)
}

// ObjectReader reads stored objects by hash.
type ObjectReader interface {
	ReadAll(hash string) ([]byte, error)
}

// Materializer reconstructs merged project views and their fingerprints.
type Materializer struct {
	manifests ManifestLoader
	objects   ObjectReader
}

// New creates a Materializer.
func New(manifests ManifestLoader, objects ObjectReader) *Materializer {
	return &Materializer{manifests: manifests, objects: objects}
}

// view is a merged relative-path -> entry mapping.
type view map[string]manifest.FileEntry

func (v view) sortedPaths() []string {
	paths := make([]string, 0, len(v))
	for p := range v {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// mergedView filters every manifest to relPath and merges them in caller
// order, so later upload ids win on path collisions.
func (m *Materializer) mergedView(relPath string, uploadIDs []int64) (view, error) {
	prefix := strings.Trim(relPath, "/")
	merged := make(view)

	for _, uploadID := range uploadIDs {
		mf, err := m.manifests.Load(uploadID)
		if err != nil {
			return nil, err
		}
		for entryPath, entry := range mf.Files {
			rel, ok := relativeTo(entryPath, prefix)
			if !ok {
				continue
			}
			merged[rel] = entry
		}
	}
	return merged, nil
}

// relativeTo strips prefix from entryPath; ok is false for paths outside the
// prefix or that fail traversal re-validation.
func relativeTo(entryPath, prefix string) (string, bool) {
	rel := entryPath
	if prefix != "" {
		if !strings.HasPrefix(entryPath, prefix+"/") {
			return "", false
		}
		rel = entryPath[len(prefix)+1:]
	}

	cleaned, ok := archive.NormalizePath(rel)
	if !ok || cleaned == "" {
		return "", false
	}
	return cleaned, true
}

// Materialize copies the merged view of relPath into destRoot/relPath and
// returns that directory. Later ids in uploadIDs win path collisions; pass
// CanonicalOrder(ids) to get the tree that Fingerprint describes.
func (m *Materializer) Materialize(relPath string, uploadIDs []int64, destRoot string) (string, error) {
	merged, err := m.mergedView(relPath, uploadIDs)
	if err != nil {
		return "", err
	}

	projectDir := destRoot
	if prefix := strings.Trim(relPath, "/"); prefix != "" {
		projectDir = filepath.Join(destRoot, filepath.FromSlash(prefix))
	}

	for _, rel := range merged.sortedPaths() {
		entry := merged[rel]

		data, err := m.objects.ReadAll(entry.Hash)
		if err != nil {
			log.Error().Err(err).Str("hash", entry.Hash).Str("path", rel).Msg("Failed to read object")
			return "", err
		}

		target := filepath.Join(projectDir, filepath.FromSlash(rel))
		if err := store.WriteFileAtomic(target, data); err != nil {
			log.Error().Err(err).Str("target", target).Msg("Failed to write materialized file")
			return "", err
		}
	}

	log.Info().
		Str("rel_path", relPath).
		Int("files", len(merged)).
		Str("dest", projectDir).
		Msg("Project materialized")
	return projectDir, nil
}

// Fingerprint hashes the sorted (path, hash, size) triples of the merged view.
// The result does not depend on upload id or manifest ordering.
func (m *Materializer) Fingerprint(relPath string, uploadIDs []int64) (string, error) {
	merged, err := m.mergedView(relPath, CanonicalOrder(uploadIDs))
	if err != nil {
		return "", err
	}
	return fingerprintOf(merged), nil
}

// FileCount returns the number of distinct relative paths in the merged view.
func (m *Materializer) FileCount(relPath string, uploadIDs []int64) (int, error) {
	merged, err := m.mergedView(relPath, uploadIDs)
	if err != nil {
		return 0, err
	}
	return len(merged), nil
}

func fingerprintOf(merged view) string {
	hasher := sha256.New()
	for _, rel := range merged.sortedPaths() {
		entry := merged[rel]
		fmt.Fprintf(hasher, "%s\x00%s\x00%s\n", rel, entry.Hash, strconv.FormatInt(entry.Size, 10))
	}
	return hex.EncodeToString(hasher.Sum(nil))
}

// CanonicalOrder returns the upload ids sorted ascending, the order in which
// Fingerprint resolves path collisions. The input is not modified.
func CanonicalOrder(uploadIDs []int64) []int64 {
	ordered := append([]int64(nil), uploadIDs...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i] < ordered[j] })
	return ordered
}
