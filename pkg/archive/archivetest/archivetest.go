// Package archivetest builds zip fixtures for tests.
package archivetest

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// Entry is one zip member. A Name ending in "/" is written as a directory marker.
type Entry struct {
	Name string
	Data string
}

// Write creates dir/name as a zip containing entries in the given order and
// returns its path.
func Write(t testing.TB, dir, name string, entries ...Entry) string {
	t.Helper()

	zipPath := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(zipPath), 0o750))

	f, err := os.Create(zipPath) //nolint:gosec // test fixture path
	require.NoError(t, err)
	defer func() { require.NoError(t, f.Close()) }()

	zw := zip.NewWriter(f)
	for _, entry := range entries {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: entry.Name, Method: zip.Deflate})
		require.NoError(t, err)
		if entry.Data != "" {
			_, err = w.Write([]byte(entry.Data))
			require.NoError(t, err)
		}
	}
	require.NoError(t, zw.Close())

	return zipPath
}

// Files is shorthand for entries given as name/data pairs.
func Files(pairs ...string) []Entry {
	entries := make([]Entry, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		entries = append(entries, Entry{Name: pairs[i], Data: pairs[i+1]})
	}
	return entries
}
