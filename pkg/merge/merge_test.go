package merge

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"projectcas/pkg/archive"
	"projectcas/pkg/archive/archivetest"
	"projectcas/pkg/store"
)

// MergeTestSuite tests incremental merges and the dedup index
type MergeTestSuite struct {
	suite.Suite
	tempDir string
	root    string
	merger  *Merger
	zips    int
}

// SetupTest runs before each test
func (s *MergeTestSuite) SetupTest() {
	s.tempDir = s.T().TempDir()
	s.root = filepath.Join(s.tempDir, "tree")
	s.merger = NewMerger()
	s.zips = 0
}

func (s *MergeTestSuite) zip(pairs ...string) string {
	s.zips++
	return archivetest.Write(s.T(), filepath.Join(s.tempDir, "zips"), fmt.Sprintf("%d.zip", s.zips),
		archivetest.Files(pairs...)...)
}

func (s *MergeTestSuite) merge(project string, pairs ...string) *Result {
	result, err := s.merger.Merge(s.zip(pairs...), s.root, project)
	s.Require().NoError(err)
	return result
}

func (s *MergeTestSuite) readIndex() map[string]string {
	data, err := os.ReadFile(filepath.Join(s.root, indexFileName))
	s.Require().NoError(err)
	entries := map[string]string{}
	s.Require().NoError(json.Unmarshal(data, &entries))
	return entries
}

func (s *MergeTestSuite) readFilesManifest(project string) []FileRecord {
	data, err := os.ReadFile(filepath.Join(s.root, project, filesManifestName))
	s.Require().NoError(err)
	var records []FileRecord
	s.Require().NoError(json.Unmarshal(data, &records))
	return records
}

func (s *MergeTestSuite) projectFiles(project string) []string {
	entries, err := os.ReadDir(filepath.Join(s.root, project))
	s.Require().NoError(err)
	var names []string
	for _, e := range entries {
		if e.Name() != filesManifestName {
			names = append(names, e.Name())
		}
	}
	return names
}

// TestDuplicateEntriesInOneArchive tests that identical entries write once
func (s *MergeTestSuite) TestDuplicateEntriesInOneArchive() {
	result := s.merge("proj", "a/one.txt", "same", "b/two.txt", "same")

	s.Equal(1, result.FilesWritten)
	s.Equal(1, result.FilesDeduplicated)
	s.Equal([]string{"one.txt"}, s.projectFiles("proj"))

	s.Require().Len(result.Files, 2)
	s.False(result.Files[0].IsDeduplicated)
	s.Empty(result.Files[0].ActualLocation)
	s.True(result.Files[1].IsDeduplicated)
	s.Equal("b/two.txt", result.Files[1].Path)
	s.Equal("proj/one.txt", result.Files[1].ActualLocation)
}

// TestIdenticalContentAcrossArchives tests dedup across separate merges
func (s *MergeTestSuite) TestIdenticalContentAcrossArchives() {
	first := s.merge("proj", "x.txt", "shared bytes")
	s.Equal(1, first.FilesWritten)

	second := s.merge("other", "renamed/y.txt", "shared bytes")
	s.Equal(0, second.FilesWritten)
	s.Equal(1, second.FilesDeduplicated)

	records := s.readFilesManifest("other")
	s.Require().Len(records, 1)
	s.Equal("renamed/y.txt", records[0].Path)
	s.Equal("proj/x.txt", records[0].ActualLocation)

	data, err := os.ReadFile(filepath.Join(s.root, filepath.FromSlash(records[0].ActualLocation)))
	s.Require().NoError(err)
	s.Equal("shared bytes", string(data))
}

// TestSameNameDistinctContent tests collision-safe naming
func (s *MergeTestSuite) TestSameNameDistinctContent() {
	contents := []string{"version one", "version two", "version three"}
	for _, content := range contents {
		result := s.merge("proj", "main.py", content)
		s.Equal(1, result.FilesWritten)
	}

	h2 := store.Sum([]byte("version two"))[:8]
	h3 := store.Sum([]byte("version three"))[:8]
	s.ElementsMatch([]string{"main.py", "main-" + h2 + ".py", "main-" + h3 + ".py"}, s.projectFiles("proj"))

	again := s.merge("proj", "main.py", "version one")
	s.Equal(0, again.FilesWritten)
	s.Equal(1, again.FilesDeduplicated)
	s.Len(s.projectFiles("proj"), 3)
}

// TestCounterSuffix tests the third naming tier
func (s *MergeTestSuite) TestCounterSuffix() {
	dir := filepath.Join(s.tempDir, "names")
	s.Require().NoError(os.MkdirAll(dir, 0o750))

	hash := store.Sum([]byte("payload"))
	name, err := chooseFilename(dir, "notes.tar.gz", hash)
	s.Require().NoError(err)
	s.Equal("notes.tar.gz", name)

	for _, taken := range []string{"notes.tar.gz", "notes.tar-" + hash[:8] + ".gz", "notes.tar-" + hash[:8] + "-1.gz"} {
		s.Require().NoError(os.WriteFile(filepath.Join(dir, taken), nil, 0o600))
	}
	name, err = chooseFilename(dir, "notes.tar.gz", hash)
	s.Require().NoError(err)
	s.Equal("notes.tar-"+hash[:8]+"-2.gz", name)

	name, err = chooseFilename(dir, filesManifestName, hash)
	s.Require().NoError(err)
	s.NotEqual(filesManifestName, name)
}

// TestDotfileCollisionNames tests suffixing of names that start with a dot
func (s *MergeTestSuite) TestDotfileCollisionNames() {
	dir := filepath.Join(s.tempDir, "dotfiles")
	s.Require().NoError(os.MkdirAll(dir, 0o750))
	hash := store.Sum([]byte("node_modules/"))

	for _, tc := range []struct{ name, want string }{
		{".gitignore", ".gitignore-" + hash[:8]},
		{".env.local", ".env-" + hash[:8] + ".local"},
		{"Makefile", "Makefile-" + hash[:8]},
	} {
		s.Require().NoError(os.WriteFile(filepath.Join(dir, tc.name), nil, 0o600))
		name, err := chooseFilename(dir, tc.name, hash)
		s.Require().NoError(err)
		s.Equal(tc.want, name, tc.name)
	}

	s.Require().NoError(os.WriteFile(filepath.Join(dir, ".gitignore-"+hash[:8]), nil, 0o600))
	name, err := chooseFilename(dir, ".gitignore", hash)
	s.Require().NoError(err)
	s.Equal(".gitignore-"+hash[:8]+"-1", name)

	s.merge("proj", ".gitignore", "a")
	result := s.merge("proj", ".gitignore", "b")
	s.Equal(".gitignore-"+store.Sum([]byte("b"))[:8], result.Files[0].Filename)
}

// TestStaleIndexEntryRewritten tests eviction of entries deleted out of band
func (s *MergeTestSuite) TestStaleIndexEntryRewritten() {
	s.merge("proj", "data.csv", "a,b,c")
	hash := store.Sum([]byte("a,b,c"))
	s.Equal("proj/data.csv", s.readIndex()[hash])

	s.Require().NoError(os.Remove(filepath.Join(s.root, "proj", "data.csv")))

	result := s.merge("moved", "data.csv", "a,b,c")
	s.Equal(1, result.FilesWritten)
	s.Equal(0, result.FilesDeduplicated)
	s.Equal("moved/data.csv", s.readIndex()[hash])
}

// TestSizeMismatchIsStale tests that a truncated indexed file is not trusted
func (s *MergeTestSuite) TestSizeMismatchIsStale() {
	s.merge("proj", "blob.bin", "0123456789")
	s.Require().NoError(os.WriteFile(filepath.Join(s.root, "proj", "blob.bin"), []byte("012"), 0o600))

	result := s.merge("proj", "blob.bin", "0123456789")
	s.Equal(1, result.FilesWritten)

	hash := store.Sum([]byte("0123456789"))
	s.Equal("proj/blob-"+hash[:8]+".bin", s.readIndex()[hash])
}

// TestTraversalEntriesSkipped tests that unsafe names never escape the root
func (s *MergeTestSuite) TestTraversalEntriesSkipped() {
	result := s.merge("proj", "../../etc/passwd", "root:x:0:0", "ok.txt", "fine")

	s.Equal(1, result.FilesWritten)
	s.Equal(1, result.Skipped)
	s.NoFileExists(filepath.Join(s.tempDir, "etc", "passwd"))
	s.Equal([]string{"ok.txt"}, s.projectFiles("proj"))
}

// TestInvalidInputs tests archive and project validation before any write
func (s *MergeTestSuite) TestInvalidInputs() {
	_, err := s.merger.Merge(filepath.Join(s.tempDir, "missing.zip"), s.root, "proj")
	s.True(errors.Is(err, archive.ErrInvalidArchive))
	s.NoDirExists(s.root)

	for _, project := range []string{"", "..", "a/b", "../escape"} {
		_, err := s.merger.Merge(s.zip("f.txt", "x"), s.root, project)
		s.True(errors.Is(err, ErrInvalidProject), "project %q", project)
	}
	s.NoDirExists(s.root)
}

// TestSidecarFailureIsNonFatal tests that a broken files manifest is only logged
func (s *MergeTestSuite) TestSidecarFailureIsNonFatal() {
	s.Require().NoError(os.MkdirAll(filepath.Join(s.root, "proj", filesManifestName), 0o750))

	result := s.merge("proj", "kept.txt", "kept")
	s.Equal(1, result.FilesWritten)
	s.FileExists(filepath.Join(s.root, "proj", "kept.txt"))
}

// TestFilesManifestAccumulates tests that records from earlier merges survive
func (s *MergeTestSuite) TestFilesManifestAccumulates() {
	s.merge("proj", "a.txt", "a")
	s.merge("proj", "b.txt", "b", "a.txt", "a")

	records := s.readFilesManifest("proj")
	s.Require().Len(records, 2)
	s.Equal("a.txt", records[0].Path)
	s.True(records[0].IsDeduplicated)
	s.Equal("b.txt", records[1].Path)
	s.False(records[1].IsDeduplicated)
}

// TestConcurrentMergesSameRoot tests per-root serialization of the index
func (s *MergeTestSuite) TestConcurrentMergesSameRoot() {
	const workers = 8

	zips := make([]string, workers)
	for i := range zips {
		zips[i] = s.zip(fmt.Sprintf("file%d.txt", i), fmt.Sprintf("distinct content %d", i))
	}

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.merger.Merge(zips[i], s.root, fmt.Sprintf("p%d", i%2))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		s.NoError(err)
	}

	index := s.readIndex()
	s.Len(index, workers)
	for i := 0; i < workers; i++ {
		hash := store.Sum([]byte(fmt.Sprintf("distinct content %d", i)))
		s.Equal(fmt.Sprintf("p%d/file%d.txt", i%2, i), index[hash])
	}
	s.Len(s.readFilesManifest("p0"), workers/2)
	s.Len(s.readFilesManifest("p1"), workers/2)
}

// TestRootLockKeyedByCleanPath tests that equivalent spellings share a lock
func (s *MergeTestSuite) TestRootLockKeyedByCleanPath() {
	a := rootMutex(filepath.Clean(s.root))
	b := rootMutex(filepath.Clean(s.root + "/"))
	s.Same(a, b)
	s.NotSame(a, rootMutex(s.tempDir))
}

// TestConcurrentMergersShareRootLock tests serialization across Merger values
func (s *MergeTestSuite) TestConcurrentMergersShareRootLock() {
	const workers = 6

	zips := make([]string, workers)
	for i := range zips {
		zips[i] = s.zip(fmt.Sprintf("f%d.txt", i), fmt.Sprintf("payload %d", i))
	}

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := NewMerger().Merge(zips[i], s.root, "shared")
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		s.NoError(err)
	}
	s.Len(s.readIndex(), workers)
	s.Len(s.readFilesManifest("shared"), workers)
}

// TestMergeWaitsForFileLock tests that a lock held through the lock file
// blocks a merge until it is released
func (s *MergeTestSuite) TestMergeWaitsForFileLock() {
	unlock, err := lockRootFile(s.root)
	s.Require().NoError(err)

	done := make(chan error, 1)
	go func() {
		_, mergeErr := s.merger.Merge(s.zip("late.txt", "late"), s.root, "proj")
		done <- mergeErr
	}()

	select {
	case <-done:
		s.Fail("merge finished while the root was locked")
	case <-time.After(200 * time.Millisecond):
	}
	s.NoFileExists(filepath.Join(s.root, "proj", "late.txt"))

	unlock()
	select {
	case err := <-done:
		s.NoError(err)
	case <-time.After(5 * time.Second):
		s.Fail("merge did not resume after unlock")
	}
	s.FileExists(filepath.Join(s.root, "proj", "late.txt"))
}

// TestReservedProjectNames tests that root-level sidecar names are rejected
func (s *MergeTestSuite) TestReservedProjectNames() {
	for _, project := range []string{indexFileName, lockFileName} {
		_, err := s.merger.Merge(s.zip("f.txt", "x"), s.root, project)
		s.True(errors.Is(err, ErrInvalidProject), "project %q", project)
	}
}

func TestMergeSuite(t *testing.T) {
	suite.Run(t, new(MergeTestSuite))
}
