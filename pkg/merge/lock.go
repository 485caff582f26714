package merge

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"

	"projectcas/pkg/log"
	"projectcas/pkg/store"
)

const (
	lockFileName = ".merge.lock"
	lockDirPerm  = 0o750
	lockFilePerm = 0o600
)

// rootLocks is shared by every Merger in the process so that merges into the
// same root are serialized no matter which Merger runs them. The flock on
// lockFileName extends this to other processes (a CLI merge next to serve).
var (
	rootLocksMutex sync.Mutex
	rootLocks      = make(map[string]*sync.Mutex)
)

func rootMutex(root string) *sync.Mutex {
	rootLocksMutex.Lock()
	defer rootLocksMutex.Unlock()

	if mutex, exists := rootLocks[root]; exists {
		return mutex
	}

	mutex := &sync.Mutex{}
	rootLocks[root] = mutex
	return mutex
}

// withRootLock runs fn while holding the in-process lock and the file lock
// for root.
func withRootLock(root string, fn func() error) error {
	mutex := rootMutex(root)
	mutex.Lock()
	defer mutex.Unlock()

	unlock, err := lockRootFile(root)
	if err != nil {
		return err
	}
	defer unlock()

	return fn()
}

// lockRootFile takes an exclusive flock on root/.merge.lock, blocking until
// it is available.
func lockRootFile(root string) (func(), error) {
	if err := os.MkdirAll(root, lockDirPerm); err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrStorageIO, err)
	}

	lockPath := filepath.Join(root, lockFileName)
	file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, lockFilePerm) //nolint:gosec // path under the merge root
	if err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrStorageIO, err)
	}

	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX); err != nil { // #nosec G115 - fd fits in int
		_ = file.Close()
		return nil, fmt.Errorf("%w: lock %s: %w", store.ErrStorageIO, lockPath, err)
	}

	return func() {
		if err := syscall.Flock(int(file.Fd()), syscall.LOCK_UN); err != nil { // #nosec G115 - fd fits in int
			log.Warn().Err(err).Str("lock", lockPath).Msg("Failed to release merge lock")
		}
		if err := file.Close(); err != nil {
			log.Warn().Err(err).Str("lock", lockPath).Msg("Failed to close merge lock")
		}
	}, nil
}
