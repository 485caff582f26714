package store

import (
	"errors"
	"io"
	"time"
)

// HashLength is the length of a lowercase hex sha256 digest.
const HashLength = 64

// ErrStorageIO is returned when a disk or permission failure prevents writing
// or reading stored content.
var ErrStorageIO = errors.New("storage i/o error")

// ObjectInfo represents metadata about a stored object.
type ObjectInfo struct {
	Hash      string    `json:"hash"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// Store defines the content-addressable object operations.
// Objects are immutable: there is no update or delete.
type Store interface {
	// Put stores data and returns its hash. Storing bytes that already
	// exist is a no-op returning the same hash.
	Put(data []byte) (string, error)

	// Exists checks if an object with the given hash is stored.
	Exists(hash string) (bool, error)

	// Open returns a reader for the object's bytes.
	Open(hash string) (io.ReadCloser, error)

	// Stat retrieves metadata about a stored object.
	Stat(hash string) (*ObjectInfo, error)
}

// ObjectNotFoundError is returned when trying to access an object that doesn't exist.
type ObjectNotFoundError struct {
	Hash string
}

func (e ObjectNotFoundError) Error() string {
	return "object not found: " + e.Hash
}

// InvalidHashError is returned when a hash has invalid format.
type InvalidHashError struct {
	Hash string
}

func (e InvalidHashError) Error() string {
	return "invalid hash format"
}

// ValidateHash checks if a hash string is a lowercase hex sha256 digest.
func ValidateHash(hash string) bool {
	if len(hash) != HashLength {
		return false
	}

	for _, char := range hash {
		if (char < '0' || char > '9') && (char < 'a' || char > 'f') {
			return false
		}
	}

	return true
}
