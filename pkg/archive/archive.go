// Package archive opens uploaded zip archives and normalizes their entry
// names so that no entry can address a location outside its destination.
package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrInvalidArchive is returned when a path is not a .zip file or cannot be parsed.
var ErrInvalidArchive = errors.New("invalid archive")

const zipExt = ".zip"

// Open validates the extension and opens the archive for reading.
func Open(zipPath string) (*zip.ReadCloser, error) {
	if !strings.HasSuffix(strings.ToLower(zipPath), zipExt) {
		return nil, fmt.Errorf("%w: %s is not a .zip file", ErrInvalidArchive, zipPath)
	}

	reader, err := zip.OpenReader(zipPath)
	if errors.Is(err, zip.ErrInsecurePath) && reader != nil {
		// Unsafe names are filtered entry by entry via NormalizePath.
		err = nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArchive, err)
	}
	return reader, nil
}

// Names returns the raw entry names of the archive in namelist order.
func Names(zipPath string) ([]string, error) {
	reader, err := Open(zipPath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = reader.Close() }()

	names := make([]string, 0, len(reader.File))
	for _, f := range reader.File {
		names = append(names, f.Name)
	}
	return names, nil
}

// NormalizePath converts an entry name into a clean forward-slash relative path.
// ok is false when the name contains a "." or ".." segment; an empty result
// with ok=true denotes a directory marker.
func NormalizePath(name string) (string, bool) {
	s := strings.ReplaceAll(name, "\\", "/")
	s = strings.TrimLeft(s, "/")

	parts := strings.Split(s, "/")
	kept := parts[:0]
	for _, part := range parts {
		switch part {
		case "":
			continue
		case ".", "..":
			return "", false
		}
		kept = append(kept, part)
	}
	if strings.HasSuffix(s, "/") {
		// directory marker
		return "", true
	}
	return strings.Join(kept, "/"), true
}

// Segments splits a normalized path into its components.
func Segments(normalized string) []string {
	if normalized == "" {
		return nil
	}
	return strings.Split(normalized, "/")
}

// ReadEntry reads the full contents of a zip entry.
func ReadEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrInvalidArchive, f.Name, err)
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrInvalidArchive, f.Name, err)
	}
	return data, nil
}
