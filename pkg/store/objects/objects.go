// Package objects implements store.Store on a plain directory tree sharded by
// the first two hex characters of each object's hash.
package objects

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"

	"projectcas/pkg/log"
	"projectcas/pkg/store"
)

const (
	objectsDirName = "objects"
	shardLength    = 2
)

// Store implements the store.Store interface on the local filesystem.
type Store struct {
	rootDir string
}

var _ store.Store = (*Store)(nil)

// New creates an object store rooted at <storageDir>/objects.
func New(storageDir string) *Store {
	return &Store{rootDir: filepath.Join(storageDir, objectsDirName)}
}

// Path returns the on-disk location for a hash: objects/<h[:2]>/<h>.
func (s *Store) Path(hash string) string {
	if len(hash) < shardLength {
		return ""
	}
	return filepath.Join(s.rootDir, hash[:shardLength], hash)
}

// Put stores data and returns its hash. Existing objects are left untouched.
func (s *Store) Put(data []byte) (string, error) {
	hash := store.Sum(data)
	targetPath := s.Path(hash)

	if exists, err := s.exists(targetPath); err != nil {
		return "", err
	} else if exists {
		log.Debug().Str("hash", hash).Msg("Object already stored")
		return hash, nil
	}

	if err := os.MkdirAll(filepath.Dir(targetPath), store.DirPerm); err != nil {
		log.Error().Err(err).Str("shard_dir", filepath.Dir(targetPath)).Msg("Failed to create shard directory")
		return "", fmt.Errorf("%w: %w", store.ErrStorageIO, err)
	}

	pending, err := renameio.NewPendingFile(targetPath, renameio.WithPermissions(store.FilePerm))
	if err != nil {
		log.Error().Err(err).Str("hash", hash).Msg("Failed to create temporary object file")
		return "", fmt.Errorf("%w: %w", store.ErrStorageIO, err)
	}
	defer func() {
		if err := pending.Cleanup(); err != nil {
			log.Error().Err(err).Str("hash", hash).Msg("Failed to clean up temporary object file")
		}
	}()

	if _, err := pending.Write(data); err != nil {
		log.Error().Err(err).Str("hash", hash).Msg("Failed to write object")
		return "", fmt.Errorf("%w: %w", store.ErrStorageIO, err)
	}

	// Another writer may have finished first; identical hash means identical
	// bytes, so its copy is kept and ours is discarded by Cleanup.
	if exists, err := s.exists(targetPath); err != nil {
		return "", err
	} else if exists {
		log.Debug().Str("hash", hash).Msg("Object stored concurrently, discarding temporary copy")
		return hash, nil
	}

	if err := pending.CloseAtomicallyReplace(); err != nil {
		log.Error().Err(err).Str("hash", hash).Msg("Failed to commit object")
		return "", fmt.Errorf("%w: %w", store.ErrStorageIO, err)
	}

	log.Debug().Str("hash", hash).Int("size", len(data)).Msg("Object stored")
	return hash, nil
}

// Exists checks if an object with the given hash is stored.
func (s *Store) Exists(hash string) (bool, error) {
	hash = strings.ToLower(hash)
	if !store.ValidateHash(hash) {
		return false, store.InvalidHashError{Hash: hash}
	}
	return s.exists(s.Path(hash))
}

// Open returns a reader over the object's bytes.
func (s *Store) Open(hash string) (io.ReadCloser, error) {
	hash = strings.ToLower(hash)
	if !store.ValidateHash(hash) {
		log.Error().Str("hash", hash).Msg("Invalid hash format")
		return nil, store.InvalidHashError{Hash: hash}
	}

	f, err := os.Open(s.Path(hash)) //nolint:gosec // path is constructed from validated hash
	if errors.Is(err, os.ErrNotExist) {
		return nil, store.ObjectNotFoundError{Hash: hash}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrStorageIO, err)
	}
	return f, nil
}

// Stat retrieves metadata about a stored object.
func (s *Store) Stat(hash string) (*store.ObjectInfo, error) {
	hash = strings.ToLower(hash)
	if !store.ValidateHash(hash) {
		return nil, store.InvalidHashError{Hash: hash}
	}

	info, err := os.Stat(s.Path(hash))
	if errors.Is(err, os.ErrNotExist) {
		return nil, store.ObjectNotFoundError{Hash: hash}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrStorageIO, err)
	}

	return &store.ObjectInfo{
		Hash:      hash,
		Size:      info.Size(),
		CreatedAt: info.ModTime(),
	}, nil
}

// ReadAll returns the object's full contents.
func (s *Store) ReadAll(hash string) ([]byte, error) {
	rc, err := s.Open(hash)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrStorageIO, err)
	}
	return data, nil
}

func (s *Store) exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("%w: %w", store.ErrStorageIO, err)
}
