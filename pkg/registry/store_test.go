package registry

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"

	"projectcas/pkg/models"
)

// StoreTestSuite tests the project registry.
type StoreTestSuite struct {
	suite.Suite
	dbPath string
	store  *Store
}

// SetupTest runs before each test.
func (s *StoreTestSuite) SetupTest() {
	s.dbPath = filepath.Join(s.T().TempDir(), "registry.db")
	var err error
	s.store, err = NewStore(s.dbPath)
	s.Require().NoError(err)
}

// TearDownTest runs after each test.
func (s *StoreTestSuite) TearDownTest() {
	if s.store != nil {
		s.store.Close()
	}
}

func (s *StoreTestSuite) create(name, relPath string, fileCount int) *models.Project {
	project, err := s.store.CreateProject(models.DetectedProject{Name: name, RelPath: relPath, FileCount: fileCount})
	s.Require().NoError(err)
	return project
}

// TestNewStoreInvalidPath tests store creation with an invalid path.
func (s *StoreTestSuite) TestNewStoreInvalidPath() {
	_, err := NewStore("/nonexistent/path/to/registry.db")
	s.Error(err)
}

// TestCreateAndGetProject tests round-tripping a project.
func (s *StoreTestSuite) TestCreateAndGetProject() {
	created, err := s.store.CreateProject(models.DetectedProject{
		Name: "sub", RelPath: "p2/sub", HasGitRepo: true, FileCount: 4,
	})
	s.Require().NoError(err)
	s.Positive(created.ID)

	project, err := s.store.GetProject(created.ID)
	s.Require().NoError(err)
	s.Equal("sub", project.Name)
	s.Equal("p2/sub", project.RelPath)
	s.True(project.HasGitRepo)
	s.Equal(int64(4), project.FileCount)
	s.Empty(project.UploadIDs)
	s.False(project.CreatedAt.IsZero())
}

// TestCreateProjectInvalidName tests name validation.
func (s *StoreTestSuite) TestCreateProjectInvalidName() {
	_, err := s.store.CreateProject(models.DetectedProject{Name: "  "})
	s.True(errors.Is(err, ErrInvalidProjectName))
}

// TestGetProjectNotFound tests the not-found sentinel.
func (s *StoreTestSuite) TestGetProjectNotFound() {
	_, err := s.store.GetProject(404)
	s.True(errors.Is(err, ErrProjectNotFound))

	_, err = s.store.UploadIDs(404)
	s.True(errors.Is(err, ErrProjectNotFound))

	s.True(errors.Is(s.store.AddUpload(404, 1), ErrProjectNotFound))
	s.True(errors.Is(s.store.IncrementFileCount(404, 1), ErrProjectNotFound))
}

// TestFindByNames tests case-insensitive lookup.
func (s *StoreTestSuite) TestFindByNames() {
	webApp := s.create("WebApp", "WebApp", 3)
	s.create("webapp", "other/webapp", 1)
	cli := s.create("cli", "cli", 2)

	found, err := s.store.FindByNames([]string{"webapp", "CLI", "missing"})
	s.Require().NoError(err)
	s.Equal(map[string]int64{"webapp": webApp.ID, "cli": cli.ID}, found)

	found, err = s.store.FindByNames(nil)
	s.Require().NoError(err)
	s.Empty(found)
}

// TestFindByNamesUnicode tests case folding beyond ASCII.
func (s *StoreTestSuite) TestFindByNamesUnicode() {
	cafe := s.create("CAFÉ", "CAFÉ", 1)
	street := s.create("Straße", "Straße", 1)

	for _, name := range []string{"CAFÉ", "café", "Café"} {
		found, err := s.store.FindByNames([]string{name})
		s.Require().NoError(err)
		s.Equal(map[string]int64{"café": cafe.ID}, found, name)
	}

	found, err := s.store.FindByNames([]string{"STRASSE", "straße"})
	s.Require().NoError(err)
	s.Equal(map[string]int64{"straße": street.ID}, found)
	s.Equal("café", NameKey("CAFÉ"))
}

// TestAddUploadIdempotent tests association ordering and idempotence.
func (s *StoreTestSuite) TestAddUploadIdempotent() {
	project := s.create("app", "app", 1)

	for _, uploadID := range []int64{7, 3, 7, 9, 3} {
		s.Require().NoError(s.store.AddUpload(project.ID, uploadID))
	}

	uploadIDs, err := s.store.UploadIDs(project.ID)
	s.Require().NoError(err)
	s.Equal([]int64{7, 3, 9}, uploadIDs)

	fetched, err := s.store.GetProject(project.ID)
	s.Require().NoError(err)
	s.Equal([]int64{7, 3, 9}, fetched.UploadIDs)
}

// TestIncrementFileCount tests the raw contribution counter.
func (s *StoreTestSuite) TestIncrementFileCount() {
	project := s.create("app", "app", 5)

	s.Require().NoError(s.store.IncrementFileCount(project.ID, 5))
	s.Require().NoError(s.store.IncrementFileCount(project.ID, 2))

	fetched, err := s.store.GetProject(project.ID)
	s.Require().NoError(err)
	s.Equal(int64(12), fetched.FileCount)
}

// TestListProjects tests listing order.
func (s *StoreTestSuite) TestListProjects() {
	projects, err := s.store.ListProjects()
	s.Require().NoError(err)
	s.Empty(projects)

	s.create("b", "b", 1)
	s.create("a", "a", 1)

	projects, err = s.store.ListProjects()
	s.Require().NoError(err)
	s.Require().Len(projects, 2)
	s.Equal("b", projects[0].Name)
	s.Equal("a", projects[1].Name)
}

// TestReopenPersists tests that data survives reopening the database.
func (s *StoreTestSuite) TestReopenPersists() {
	project := s.create("app", "app", 1)
	s.Require().NoError(s.store.AddUpload(project.ID, 1))
	s.Require().NoError(s.store.Close())

	reopened, err := NewStore(s.dbPath)
	s.Require().NoError(err)
	s.store = reopened

	uploadIDs, err := s.store.UploadIDs(project.ID)
	s.Require().NoError(err)
	s.Equal([]int64{1}, uploadIDs)
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreTestSuite))
}
