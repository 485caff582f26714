package manifest

import (
	"fmt"
	"time"

	"projectcas/pkg/archive"
	"projectcas/pkg/log"
	"projectcas/pkg/store"
)

// Builder hashes every archive entry into the object store and records a
// manifest for the upload.
type Builder struct {
	objects   store.Store
	manifests *Repository
	now       func() time.Time
}

// NewBuilder creates a manifest builder.
func NewBuilder(objects store.Store, manifests *Repository) *Builder {
	return &Builder{
		objects:   objects,
		manifests: manifests,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Ingest stores every entry of zipPath and persists the manifest for uploadID.
// Nothing is persisted as a manifest unless every entry succeeds; objects
// written before a failure stay in the store as harmless orphans. An upload id
// that already has a manifest is rejected with ErrManifestExists before any
// entry is read.
func (b *Builder) Ingest(zipPath string, uploadID int64) (*Manifest, error) {
	log.Info().Str("zip", zipPath).Int64("upload_id", uploadID).Msg("Ingesting archive")

	exists, err := b.manifests.Exists(uploadID)
	if err != nil {
		return nil, err
	}
	if exists {
		log.Warn().Int64("upload_id", uploadID).Msg("Manifest already written for upload")
		return nil, fmt.Errorf("%w: upload %d", ErrManifestExists, uploadID)
	}

	reader, err := archive.Open(zipPath)
	if err != nil {
		log.Error().Err(err).Str("zip", zipPath).Msg("Failed to open archive")
		return nil, err
	}
	defer func() {
		if err := reader.Close(); err != nil {
			log.Error().Err(err).Str("zip", zipPath).Msg("Failed to close archive")
		}
	}()

	m := &Manifest{
		UploadID:  uploadID,
		CreatedAt: b.now(),
		Files:     make(map[string]FileEntry, len(reader.File)),
	}

	skipped := 0
	for _, f := range reader.File {
		if f.FileInfo().IsDir() {
			continue
		}

		entryPath, ok := archive.NormalizePath(f.Name)
		if !ok {
			log.Warn().Str("entry", f.Name).Int64("upload_id", uploadID).Msg("Skipping unsafe archive entry")
			skipped++
			continue
		}
		if entryPath == "" {
			continue
		}

		data, err := archive.ReadEntry(f)
		if err != nil {
			log.Error().Err(err).Str("entry", f.Name).Msg("Failed to read archive entry")
			return nil, err
		}

		hash, err := b.objects.Put(data)
		if err != nil {
			log.Error().Err(err).Str("entry", entryPath).Msg("Failed to store object")
			return nil, err
		}

		m.Files[entryPath] = FileEntry{Hash: hash, Size: int64(len(data))}
	}

	if err := b.manifests.Save(m); err != nil {
		log.Error().Err(err).Int64("upload_id", uploadID).Msg("Failed to persist manifest")
		return nil, err
	}

	log.Info().
		Int64("upload_id", uploadID).
		Int("files", len(m.Files)).
		Int("skipped", skipped).
		Int64("bytes", m.TotalSize()).
		Msg("Manifest written")
	return m, nil
}
