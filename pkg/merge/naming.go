package merge

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"projectcas/pkg/store"
)

const shortHashLength = 8

// chooseFilename picks a free name in dir for a file called name with the
// given hash: the bare name, then <stem>-<hash8><ext>, then
// <stem>-<hash8>-<n><ext> for n = 1, 2, ...
func chooseFilename(dir, name, hash string) (string, error) {
	free, err := isFree(dir, name)
	if err != nil || free {
		return name, err
	}

	stem, ext := splitExt(name)
	short := hash
	if len(short) > shortHashLength {
		short = short[:shortHashLength]
	}

	candidate := fmt.Sprintf("%s-%s%s", stem, short, ext)
	for counter := 1; ; counter++ {
		free, err := isFree(dir, candidate)
		if err != nil || free {
			return candidate, err
		}
		candidate = fmt.Sprintf("%s-%s-%d%s", stem, short, counter, ext)
	}
}

// splitExt splits name into stem and extension. A leading-dot name with no
// other dot (".gitignore") has no extension.
func splitExt(name string) (string, string) {
	if strings.HasPrefix(name, ".") && !strings.Contains(name[1:], ".") {
		return name, ""
	}
	ext := path.Ext(name)
	return strings.TrimSuffix(name, ext), ext
}

func isFree(dir, name string) (bool, error) {
	if name == filesManifestName || name == indexFileName {
		return false, nil
	}
	_, err := os.Lstat(filepath.Join(dir, name))
	if err == nil {
		return false, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return true, nil
	}
	return false, fmt.Errorf("%w: %w", store.ErrStorageIO, err)
}
