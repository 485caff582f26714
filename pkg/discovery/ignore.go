package discovery

import (
	"path"
	"strings"

	"projectcas/pkg/archive"
)

const gitDirName = ".git"

// DefaultIgnorePatterns lists vendor, build and tooling directories that are
// never interesting as project content.
var DefaultIgnorePatterns = []string{
	"node_modules",
	"__pycache__",
	".venv",
	"venv",
	"dist",
	"build",
	"target",
	"vendor",
	".idea",
	".vscode",
	"__MACOSX",
	".DS_Store",
	gitDirName,
}

// entry is a parsed archive name.
type entry struct {
	path     string
	segments []string
	isDir    bool
}

func parseEntry(name string) (entry, bool) {
	slashed := strings.ReplaceAll(name, "\\", "/")
	isDir := strings.HasSuffix(slashed, "/")

	cleaned, ok := archive.NormalizePath(strings.TrimRight(slashed, "/"))
	if !ok || cleaned == "" {
		return entry{}, false
	}
	return entry{path: cleaned, segments: archive.Segments(cleaned), isDir: isDir}, true
}

func parseEntries(names []string) []entry {
	entries := make([]entry, 0, len(names))
	for _, name := range names {
		if e, ok := parseEntry(name); ok {
			entries = append(entries, e)
		}
	}
	return entries
}

// matcher tests path segments against glob patterns.
type matcher struct {
	patterns []string
}

// newMatcher builds a matcher; with keepGit the .git pattern is dropped so git
// metadata stays visible as a project marker.
func newMatcher(patterns []string, keepGit bool) matcher {
	kept := make([]string, 0, len(patterns))
	for _, p := range patterns {
		p = strings.Trim(strings.TrimSpace(p), "/")
		if p == "" || (keepGit && p == gitDirName) {
			continue
		}
		kept = append(kept, p)
	}
	return matcher{patterns: kept}
}

func (m matcher) ignored(segments []string) bool {
	for _, seg := range segments {
		for _, pattern := range m.patterns {
			if pattern == seg {
				return true
			}
			if matched, err := path.Match(pattern, seg); err == nil && matched {
				return true
			}
		}
	}
	return false
}
