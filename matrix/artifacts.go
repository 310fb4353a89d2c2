package matrix

import (
	"path"
	"sort"
	"strings"
)

// minReferenceDepth keeps shallow directories like /workspace from marking every mount as used.
const minReferenceDepth = 2

// UnusedArtifacts returns the artifact mount paths that no script of runs refers to. A mount is
// referenced by its own path, by a path below it, or by one of its parent directories.
func UnusedArtifacts(runs []ResolvedRun) []string {
	mountPaths := map[string]bool{}
	var scripts []string
	for _, run := range runs {
		for mountPath := range run.Artifacts {
			mountPaths[mountPath] = true
		}
		scripts = append(scripts, run.ScriptSetup, run.Script)
	}

	var unused []string
	for mountPath := range mountPaths {
		if !isReferenced(mountPath, scripts) {
			unused = append(unused, mountPath)
		}
	}
	sort.Strings(unused)

	return unused
}

func isReferenced(mountPath string, scripts []string) bool {
	for i, candidate := range referenceCandidates(mountPath) {
		// only the mount itself may be referenced through its children,
		// a sibling below a parent directory says nothing about this mount
		withChildren := i == 0
		for _, script := range scripts {
			if containsPath(script, candidate, withChildren) {
				return true
			}
		}
	}
	return false
}

func referenceCandidates(mountPath string) []string {
	var candidates []string
	for current := path.Clean(mountPath); depth(current) >= minReferenceDepth; current = path.Dir(current) {
		candidates = append(candidates, current)
	}
	return candidates
}

func depth(pth string) int {
	trimmed := strings.Trim(pth, "/")
	if trimmed == "" {
		return 0
	}
	return strings.Count(trimmed, "/") + 1
}

// containsPath reports whether pth occurs in text as a whole path, not as the prefix of a longer one.
// With withChildren a path below pth (pth/...) counts as well.
func containsPath(text, pth string, withChildren bool) bool {
	for offset := 0; offset < len(text); {
		idx := strings.Index(text[offset:], pth)
		if idx < 0 {
			return false
		}
		start := offset + idx
		end := start + len(pth)

		before := start == 0 || !isPathChar(text[start-1])
		after := end == len(text) || !isPathChar(text[end])
		if !after && text[end] == '/' {
			after = withChildren || end+1 == len(text) || !isPathChar(text[end+1])
		}
		if before && after {
			return true
		}
		offset = start + 1
	}
	return false
}

func isPathChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '_', c == '-', c == '.', c == '/':
		return true
	}
	return false
}
