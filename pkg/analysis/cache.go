// Package analysis keeps the most recent analysis result per project, keyed by
// the fingerprint of the merged file set it was computed from.
package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"projectcas/pkg/log"
	"projectcas/pkg/store"
)

const cacheDirName = "analysis_cache"

// Entry is the cached analysis for one project.
type Entry struct {
	ProjectID   int64           `json:"project_id"`
	Fingerprint string          `json:"fingerprint"`
	CreatedAt   time.Time       `json:"created_at"`
	Payload     json.RawMessage `json:"payload"`
}

// Matches reports whether the entry was computed for fingerprint.
func (e *Entry) Matches(fingerprint string) bool {
	return e != nil && e.Fingerprint == fingerprint
}

// Cache stores one entry per project under <storageDir>/analysis_cache.
// It never checks staleness; callers compare fingerprints.
type Cache struct {
	dir string
	now func() time.Time
}

// NewCache creates a cache rooted at storageDir.
func NewCache(storageDir string) *Cache {
	return &Cache{
		dir: filepath.Join(storageDir, cacheDirName),
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Path returns the cache file for a project.
func (c *Cache) Path(projectID int64) string {
	return filepath.Join(c.dir, fmt.Sprintf("project_%d.json", projectID))
}

// Get returns the cached entry, or nil when the project has none.
func (c *Cache) Get(projectID int64) (*Entry, error) {
	data, err := os.ReadFile(c.Path(projectID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrStorageIO, err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		log.Warn().Err(err).Int64("project_id", projectID).Msg("Discarding unreadable analysis cache entry")
		return nil, nil
	}
	return &entry, nil
}

// Put overwrites the project's slot with payload computed for fingerprint.
func (c *Cache) Put(projectID int64, fingerprint string, payload json.RawMessage) (*Entry, error) {
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	if !json.Valid(payload) {
		return nil, fmt.Errorf("analysis payload for project %d is not valid JSON", projectID)
	}

	entry := &Entry{
		ProjectID:   projectID,
		Fingerprint: fingerprint,
		CreatedAt:   c.now(),
		Payload:     payload,
	}
	if err := store.WriteJSONAtomic(c.Path(projectID), entry); err != nil {
		return nil, err
	}

	log.Debug().Int64("project_id", projectID).Str("fingerprint", fingerprint).Msg("Analysis cached")
	return entry, nil
}
