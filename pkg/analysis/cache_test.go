package analysis

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

// CacheTestSuite tests the per-project analysis cache
type CacheTestSuite struct {
	suite.Suite
	cache *Cache
}

// SetupTest runs before each test
func (s *CacheTestSuite) SetupTest() {
	s.cache = NewCache(s.T().TempDir())
	s.cache.now = func() time.Time { return time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC) }
}

// TestGetMissing tests that an absent slot is not an error
func (s *CacheTestSuite) TestGetMissing() {
	entry, err := s.cache.Get(7)
	s.Require().NoError(err)
	s.Nil(entry)
	s.False(entry.Matches("anything"))
}

// TestPutOverwritesSlot tests single-slot semantics
func (s *CacheTestSuite) TestPutOverwritesSlot() {
	_, err := s.cache.Put(7, "fp1", json.RawMessage(`{"languages":["go"]}`))
	s.Require().NoError(err)
	_, err = s.cache.Put(7, "fp2", json.RawMessage(`{"languages":["python"]}`))
	s.Require().NoError(err)

	entry, err := s.cache.Get(7)
	s.Require().NoError(err)
	s.Require().NotNil(entry)
	s.Equal(int64(7), entry.ProjectID)
	s.Equal("fp2", entry.Fingerprint)
	s.JSONEq(`{"languages":["python"]}`, string(entry.Payload))
	s.True(entry.Matches("fp2"))
	s.False(entry.Matches("fp1"))

	other, err := s.cache.Get(8)
	s.Require().NoError(err)
	s.Nil(other)
}

// TestWireFormat tests the on-disk document
func (s *CacheTestSuite) TestWireFormat() {
	_, err := s.cache.Put(3, "abc", json.RawMessage(`[1,2]`))
	s.Require().NoError(err)

	s.Equal("project_3.json", filepath.Base(s.cache.Path(3)))
	data, err := os.ReadFile(s.cache.Path(3))
	s.Require().NoError(err)
	s.JSONEq(`{
		"project_id": 3,
		"fingerprint": "abc",
		"created_at": "2026-03-04T05:06:07Z",
		"payload": [1,2]
	}`, string(data))
}

// TestPayloadValidation tests invalid and empty payloads
func (s *CacheTestSuite) TestPayloadValidation() {
	_, err := s.cache.Put(1, "fp", json.RawMessage(`{not json`))
	s.Error(err)

	entry, err := s.cache.Put(1, "fp", nil)
	s.Require().NoError(err)
	s.Equal("null", string(entry.Payload))
}

// TestCorruptEntryIsMiss tests that an unreadable slot reads as absent
func (s *CacheTestSuite) TestCorruptEntryIsMiss() {
	s.Require().NoError(os.MkdirAll(filepath.Dir(s.cache.Path(9)), 0o750))
	s.Require().NoError(os.WriteFile(s.cache.Path(9), []byte("{"), 0o600))

	entry, err := s.cache.Get(9)
	s.Require().NoError(err)
	s.Nil(entry)
}

func TestCacheSuite(t *testing.T) {
	suite.Run(t, new(CacheTestSuite))
}
