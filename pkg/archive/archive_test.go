package archive

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"

	"projectcas/pkg/archive/archivetest"
)

// ArchiveTestSuite tests zip access and path normalization
type ArchiveTestSuite struct {
	suite.Suite
	tempDir string
}

func (s *ArchiveTestSuite) SetupTest() {
	s.tempDir = s.T().TempDir()
}

// TestNormalizePath tests entry-name normalization and traversal rejection
func (s *ArchiveTestSuite) TestNormalizePath() {
	testCases := []struct {
		name     string
		input    string
		expected string
		ok       bool
	}{
		{"plain", "src/main.go", "src/main.go", true},
		{"leading_slash", "/src/main.go", "src/main.go", true},
		{"many_leading_slashes", "///a.txt", "a.txt", true},
		{"backslashes", `src\util\x.py`, "src/util/x.py", true},
		{"double_slash", "a//b.txt", "a/b.txt", true},
		{"directory_marker", "src/", "", true},
		{"empty", "", "", true},
		{"dot_segment", "a/./b.txt", "", false},
		{"parent_segment", "../../etc/passwd", "", false},
		{"nested_parent", "a/b/../c", "", false},
		{"dots_in_name", "a/..hidden/.env", "a/..hidden/.env", true},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			got, ok := NormalizePath(tc.input)
			s.Equal(tc.ok, ok)
			s.Equal(tc.expected, got)
		})
	}
}

// TestSegments tests path splitting
func (s *ArchiveTestSuite) TestSegments() {
	s.Nil(Segments(""))
	s.Equal([]string{"a", "b", "c.txt"}, Segments("a/b/c.txt"))
}

// TestOpenRejectsNonZipExtension tests the extension check
func (s *ArchiveTestSuite) TestOpenRejectsNonZipExtension() {
	path := filepath.Join(s.tempDir, "upload.tar")
	s.Require().NoError(os.WriteFile(path, []byte("data"), 0o600))

	_, err := Open(path)
	s.ErrorIs(err, ErrInvalidArchive)
}

// TestOpenRejectsCorruptZip tests unparseable archives
func (s *ArchiveTestSuite) TestOpenRejectsCorruptZip() {
	path := filepath.Join(s.tempDir, "broken.zip")
	s.Require().NoError(os.WriteFile(path, []byte("not a zip"), 0o600))

	_, err := Open(path)
	s.ErrorIs(err, ErrInvalidArchive)

	_, err = Open(filepath.Join(s.tempDir, "missing.zip"))
	s.ErrorIs(err, ErrInvalidArchive)
}

// TestNamesAndReadEntry tests listing and reading entries in zip order
func (s *ArchiveTestSuite) TestNamesAndReadEntry() {
	path := archivetest.Write(s.T(), s.tempDir, "UPLOAD.ZIP",
		archivetest.Entry{Name: "proj/"},
		archivetest.Entry{Name: "proj/a.py", Data: "print(1)"},
		archivetest.Entry{Name: "readme.md", Data: "# hi"},
	)

	names, err := Names(path)
	s.Require().NoError(err)
	s.Equal([]string{"proj/", "proj/a.py", "readme.md"}, names)

	reader, err := Open(path)
	s.Require().NoError(err)
	defer reader.Close()

	data, err := ReadEntry(reader.File[1])
	s.Require().NoError(err)
	s.Equal("print(1)", string(data))
}

func TestArchiveSuite(t *testing.T) {
	suite.Run(t, new(ArchiveTestSuite))
}
