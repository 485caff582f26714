// Package manifest records, per upload, which logical paths map to which
// stored objects.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"projectcas/pkg/store"
)

const manifestsDirName = "manifests"

// ErrManifestNotFound is returned when no manifest exists for an upload id.
var ErrManifestNotFound = errors.New("manifest not found")

// ErrManifestExists is returned when a manifest was already written for an
// upload id. Manifests are immutable once written.
var ErrManifestExists = errors.New("manifest already exists")

// FileEntry is the content address and size of one logical path.
type FileEntry struct {
	Hash string `json:"hash"`
	Size int64  `json:"size"`
}

// Manifest maps an upload's logical paths to content addresses.
type Manifest struct {
	UploadID  int64                `json:"upload_id"`
	CreatedAt time.Time            `json:"created_at"`
	Files     map[string]FileEntry `json:"files"`
}

// Paths returns the manifest's paths in lexicographic order.
func (m *Manifest) Paths() []string {
	paths := make([]string, 0, len(m.Files))
	for p := range m.Files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// TotalSize sums the logical size of every entry.
func (m *Manifest) TotalSize() int64 {
	var total int64
	for _, entry := range m.Files {
		total += entry.Size
	}
	return total
}

// Repository persists manifests under <storageDir>/manifests/<upload_id>.json.
type Repository struct {
	dir string
	mu  sync.Mutex // serializes the exists check and write in Save
}

// NewRepository creates a manifest repository rooted at storageDir.
func NewRepository(storageDir string) *Repository {
	return &Repository{dir: filepath.Join(storageDir, manifestsDirName)}
}

// Path returns the manifest file location for an upload id.
func (r *Repository) Path(uploadID int64) string {
	return filepath.Join(r.dir, strconv.FormatInt(uploadID, 10)+".json")
}

// Save writes the manifest atomically. It fails with ErrManifestExists when
// the upload id already has one.
func (r *Repository) Save(m *Manifest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	exists, err := r.Exists(m.UploadID)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: upload %d", ErrManifestExists, m.UploadID)
	}
	return store.WriteJSONAtomic(r.Path(m.UploadID), m)
}

// Load reads the manifest for an upload id.
func (r *Repository) Load(uploadID int64) (*Manifest, error) {
	data, err := os.ReadFile(r.Path(uploadID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: upload %d", ErrManifestNotFound, uploadID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrStorageIO, err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: decode manifest %d: %w", store.ErrStorageIO, uploadID, err)
	}
	if m.Files == nil {
		m.Files = make(map[string]FileEntry)
	}
	return &m, nil
}

// Exists reports whether a manifest was written for the upload id.
func (r *Repository) Exists(uploadID int64) (bool, error) {
	_, err := os.Stat(r.Path(uploadID))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("%w: %w", store.ErrStorageIO, err)
}
