// Package discovery interprets a flat archive namelist as a directory tree
// and a set of logical projects.
package discovery

import (
	"path"
	"sort"
	"strings"

	"projectcas/pkg/models"
)

const (
	DocsProject  = "docs"
	MediaProject = "media"
)

var docExtensions = map[string]struct{}{
	".md": {}, ".markdown": {}, ".txt": {}, ".rst": {}, ".pdf": {},
	".doc": {}, ".docx": {}, ".odt": {}, ".rtf": {},
	".ppt": {}, ".pptx": {}, ".odp": {},
	".xls": {}, ".xlsx": {}, ".ods": {},
}

var mediaExtensions = map[string]struct{}{
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".bmp": {}, ".svg": {},
	".webp": {}, ".ico": {}, ".tif": {}, ".tiff": {},
	".mp4": {}, ".mov": {}, ".avi": {}, ".mkv": {}, ".webm": {},
	".mp3": {}, ".wav": {}, ".ogg": {}, ".flac": {}, ".m4a": {}, ".aac": {},
}

// DiscoverProjects finds the logical projects in an archive namelist.
//
// Candidate roots are the top-level directories plus, per top-level
// directory, the parent of its deepest .git marker. Each file is attributed to
// the deepest candidate root containing it, so a folder that only wraps a
// nested repository yields no project of its own. Loose root-level files are
// grouped into the "docs" and "media" pseudo-projects.
func DiscoverProjects(names []string, ignorePatterns []string) []models.DetectedProject {
	ignore := newMatcher(ignorePatterns, true)

	var entries []entry
	for _, e := range parseEntries(names) {
		if !ignore.ignored(e.segments) {
			entries = append(entries, e)
		}
	}

	candidates := make(map[string]bool) // root -> has git repo
	for top := range topLevelDirs(entries) {
		candidates[top] = false
	}
	for _, gitRoot := range gitRoots(entries) {
		candidates[gitRoot] = true
	}

	counts := make(map[string]int, len(candidates))
	docs, media := 0, 0
	for _, e := range entries {
		if e.isDir || hasGitSegment(e.segments) {
			continue
		}
		if len(e.segments) == 1 {
			switch classifyLooseFile(e.path) {
			case DocsProject:
				docs++
			case MediaProject:
				media++
			}
			continue
		}
		if root, ok := deepestCandidate(e.segments, candidates); ok {
			counts[root]++
		}
	}

	projects := make([]models.DetectedProject, 0, len(counts)+2)
	for root, hasGit := range candidates {
		if counts[root] == 0 {
			continue
		}
		projects = append(projects, models.DetectedProject{
			Name:       path.Base(root),
			RelPath:    root,
			HasGitRepo: hasGit,
			FileCount:  counts[root],
		})
	}
	sort.Slice(projects, func(i, j int) bool { return projects[i].RelPath < projects[j].RelPath })

	if docs > 0 {
		projects = append(projects, models.DetectedProject{Name: DocsProject, FileCount: docs})
	}
	if media > 0 {
		projects = append(projects, models.DetectedProject{Name: MediaProject, FileCount: media})
	}
	return projects
}

func topLevelDirs(entries []entry) map[string]struct{} {
	tops := make(map[string]struct{})
	for _, e := range entries {
		if len(e.segments) > 1 || e.isDir {
			if top := e.segments[0]; top != gitDirName {
				tops[top] = struct{}{}
			}
		}
	}
	return tops
}

// gitRoots returns, per top-level directory, the parent of its deepest .git
// marker. Markers at archive root have no parent directory and are ignored.
func gitRoots(entries []entry) map[string]string {
	roots := make(map[string]string)
	depth := make(map[string]int)

	for _, e := range entries {
		idx := gitSegmentIndex(e.segments)
		if idx < 1 {
			continue
		}
		parent := strings.Join(e.segments[:idx], "/")
		top := e.segments[0]

		current, seen := roots[top]
		if !seen || idx > depth[top] || (idx == depth[top] && parent < current) {
			roots[top] = parent
			depth[top] = idx
		}
	}
	return roots
}

func deepestCandidate(segments []string, candidates map[string]bool) (string, bool) {
	for k := len(segments) - 1; k >= 1; k-- {
		prefix := strings.Join(segments[:k], "/")
		if _, ok := candidates[prefix]; ok {
			return prefix, true
		}
	}
	return "", false
}

func gitSegmentIndex(segments []string) int {
	for i, seg := range segments {
		if seg == gitDirName {
			return i
		}
	}
	return -1
}

func hasGitSegment(segments []string) bool {
	return gitSegmentIndex(segments) >= 0
}

// classifyLooseFile returns the pseudo-project name for a root-level file, or "".
func classifyLooseFile(name string) string {
	ext := strings.ToLower(path.Ext(name))
	if _, ok := docExtensions[ext]; ok {
		return DocsProject
	}
	if _, ok := mediaExtensions[ext]; ok {
		return MediaProject
	}
	return ""
}
