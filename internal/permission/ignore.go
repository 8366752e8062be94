package permission

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// GitignoreChecker is a best-effort IgnoreChecker backed by a project's
// .gitignore, loaded lazily and cached per working directory. No
// ecosystem gitignore-matching library appears anywhere in the example
// pack, so this is a small stdlib glob matcher; see DESIGN.md.
type GitignoreChecker struct {
	mu    sync.Mutex
	cache map[string][]string
}

// NewGitignoreChecker returns a checker with an empty cache.
func NewGitignoreChecker() *GitignoreChecker {
	return &GitignoreChecker{cache: make(map[string][]string)}
}

// IsIgnored reports whether path (relative or absolute, under
// workingDirectory) matches a pattern in workingDirectory's .gitignore.
// Any failure to load or parse the file is absorbed into "not ignored".
func (g *GitignoreChecker) IsIgnored(workingDirectory, path string) bool {
	patterns := g.patternsFor(workingDirectory)
	if len(patterns) == 0 {
		return false
	}

	rel := path
	if filepath.IsAbs(path) {
		if r, err := filepath.Rel(workingDirectory, path); err == nil {
			rel = r
		}
	}
	rel = filepath.ToSlash(rel)

	for _, p := range patterns {
		if matchGitignorePattern(p, rel) {
			return true
		}
	}
	return false
}

func (g *GitignoreChecker) patternsFor(workingDirectory string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if p, ok := g.cache[workingDirectory]; ok {
		return p
	}

	patterns := loadGitignore(workingDirectory)
	g.cache[workingDirectory] = patterns
	return patterns
}

func loadGitignore(workingDirectory string) []string {
	f, err := os.Open(filepath.Join(workingDirectory, ".gitignore"))
	if err != nil {
		return nil
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, strings.TrimPrefix(line, "/"))
	}
	return patterns
}

func matchGitignorePattern(pattern, relPath string) bool {
	pattern = strings.TrimSuffix(pattern, "/")
	if strings.Contains(pattern, "/") {
		ok, _ := filepath.Match(pattern, relPath)
		return ok
	}
	for _, seg := range strings.Split(relPath, "/") {
		if ok, _ := filepath.Match(pattern, seg); ok {
			return true
		}
	}
	return false
}
