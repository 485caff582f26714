// Package merge flattens archives straight into a persistent working tree,
// skipping content that already exists anywhere under the same target root.
package merge

import (
	"archive/zip"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"projectcas/pkg/archive"
	"projectcas/pkg/log"
	"projectcas/pkg/store"
)

const filesManifestName = ".files_manifest.json"

// ErrInvalidProject is returned when the project name is not a single safe
// path segment.
var ErrInvalidProject = errors.New("invalid project name")

// FileRecord describes where one archive entry ended up.
type FileRecord struct {
	Filename       string `json:"filename"`
	Path           string `json:"path"`
	IsDeduplicated bool   `json:"is_deduplicated"`
	Hash           string `json:"hash"`
	ActualLocation string `json:"actual_location,omitempty"`
}

// Result summarizes one merge.
type Result struct {
	Project           string       `json:"project"`
	FilesWritten      int          `json:"files_written"`
	FilesDeduplicated int          `json:"files_deduplicated"`
	Skipped           int          `json:"skipped"`
	Files             []FileRecord `json:"files"`
}

// Merger merges archives into target roots. Merges into the same root are
// serialized across every Merger and every process sharing the root; merges
// into different roots run concurrently.
type Merger struct{}

// NewMerger creates a Merger.
func NewMerger() *Merger {
	return &Merger{}
}

// Merge writes every entry of zipPath into targetRoot/project, deduplicating
// against the root-wide index.
func (m *Merger) Merge(zipPath, targetRoot, project string) (*Result, error) {
	projectName, ok := archive.NormalizePath(project)
	if !ok || projectName == "" || path.Base(projectName) != projectName || reservedRootName(projectName) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidProject, project)
	}

	root, err := filepath.Abs(targetRoot)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrStorageIO, err)
	}
	root = filepath.Clean(root)

	reader, err := archive.Open(zipPath)
	if err != nil {
		log.Error().Err(err).Str("zip", zipPath).Msg("Failed to open archive for merge")
		return nil, err
	}
	defer func() {
		if err := reader.Close(); err != nil {
			log.Error().Err(err).Str("zip", zipPath).Msg("Failed to close archive")
		}
	}()

	result := &Result{Project: projectName, Files: []FileRecord{}}
	err = withRootLock(root, func() error {
		return mergeLocked(reader.File, root, projectName, result)
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("root", root).
		Str("project", projectName).
		Int("written", result.FilesWritten).
		Int("deduplicated", result.FilesDeduplicated).
		Int("skipped", result.Skipped).
		Msg("Merge complete")
	return result, nil
}

// reservedRootName reports names that the merge root itself uses.
func reservedRootName(name string) bool {
	return name == indexFileName || name == lockFileName
}

func mergeLocked(files []*zip.File, root, project string, result *Result) error {
	idx := loadIndex(root)
	projectDir := filepath.Join(root, project)

	err := mergeEntries(files, idx, projectDir, project, result)

	// The index reflects whatever was written, even when an entry failed.
	if saveErr := idx.save(); saveErr != nil {
		log.Warn().Err(saveErr).Str("root", root).Msg("Failed to persist dedup index")
	}
	if err != nil {
		return err
	}

	if err := saveFilesManifest(projectDir, result.Files); err != nil {
		log.Warn().Err(err).Str("project", project).Msg("Failed to persist files manifest")
	}
	return nil
}

func mergeEntries(files []*zip.File, idx *index, projectDir, project string, result *Result) error {
	for _, f := range files {
		if f.FileInfo().IsDir() {
			continue
		}

		entryPath, ok := archive.NormalizePath(f.Name)
		if !ok || entryPath == "" {
			log.Warn().Str("entry", f.Name).Msg("Skipping unsafe archive entry")
			result.Skipped++
			continue
		}

		data, err := archive.ReadEntry(f)
		if err != nil {
			return err
		}
		hash := store.Sum(data)

		if location, hit := idx.lookup(hash, int64(len(data))); hit {
			result.FilesDeduplicated++
			result.Files = append(result.Files, FileRecord{
				Filename:       path.Base(location),
				Path:           entryPath,
				IsDeduplicated: true,
				Hash:           hash,
				ActualLocation: location,
			})
			continue
		}

		filename, err := chooseFilename(projectDir, path.Base(entryPath), hash)
		if err != nil {
			return err
		}
		if err := store.WriteFileAtomic(filepath.Join(projectDir, filename), data); err != nil {
			log.Error().Err(err).Str("entry", entryPath).Str("project", project).Msg("Failed to write merged file")
			return err
		}

		idx.record(hash, project+"/"+filename)
		result.FilesWritten++
		result.Files = append(result.Files, FileRecord{
			Filename: filename,
			Path:     entryPath,
			Hash:     hash,
		})
	}
	return nil
}

// saveFilesManifest folds records into the project's existing files manifest,
// replacing records for the same archive path.
func saveFilesManifest(projectDir string, records []FileRecord) error {
	manifestPath := filepath.Join(projectDir, filesManifestName)

	var existing []FileRecord
	data, err := os.ReadFile(manifestPath)
	switch {
	case err == nil:
		if jsonErr := json.Unmarshal(data, &existing); jsonErr != nil {
			log.Warn().Err(jsonErr).Str("path", manifestPath).Msg("Rebuilding corrupt files manifest")
			existing = nil
		}
	case !errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("%w: %w", store.ErrStorageIO, err)
	}

	position := make(map[string]int, len(existing)+len(records))
	merged := make([]FileRecord, 0, len(existing)+len(records))
	for _, record := range append(existing, records...) {
		if i, seen := position[record.Path]; seen {
			merged[i] = record
			continue
		}
		position[record.Path] = len(merged)
		merged = append(merged, record)
	}

	return store.WriteJSONAtomic(manifestPath, merged)
}
