// Package discover lists the version-controlled files of a project.
package discover

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	ignore "github.com/sabhiram/go-gitignore"
)

// ErrNoRepository is returned when the root is not inside a git work tree
// or git is not installed.
var ErrNoRepository = errors.New("no git repository found")

// Scope narrows a listing.
type Scope struct {
	// Depth bounds how many directory levels below Directory are walked.
	// 0 lists only files directly in Directory; nil is unlimited.
	Depth *int
	// Directory is a root-relative subtree to list. Empty means the root.
	Directory string
}

var skipDirs = map[string]struct{}{
	"__pycache__":   {},
	"node_modules":  {},
	"venv":          {},
	".venv":         {},
	".tox":          {},
	".mypy_cache":   {},
	".ruff_cache":   {},
	".pytest_cache": {},
}

const listTimeout = 10 * time.Second

// GitSource lists tracked files with `git ls-files`.
type GitSource struct {
	root    string
	exclude *ignore.GitIgnore
}

// NewGitSource returns a source rooted at root (an absolute directory).
// exclude holds gitignore-syntax patterns applied to root-relative paths.
func NewGitSource(root string, exclude []string) *GitSource {
	s := &GitSource{root: root}
	if len(exclude) > 0 {
		s.exclude = ignore.CompileIgnoreLines(exclude...)
	}
	return s
}

// Root returns the directory the source lists from.
func (s *GitSource) Root() string {
	return s.root
}

// TrackedFiles returns the sorted absolute paths of files tracked (or
// untracked but not ignored) under the scope.
func (s *GitSource) TrackedFiles(ctx context.Context, scope Scope) ([]string, error) {
	dir, err := cleanDirectory(scope.Directory)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()

	args := []string{"ls-files", "-z", "--cached", "--others", "--exclude-standard"}
	if dir != "" {
		args = append(args, "--", dir)
	}
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = s.root
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) || strings.Contains(stderr.String(), "not a git repository") {
			return nil, ErrNoRepository
		}
		return nil, fmt.Errorf("git ls-files: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	seen := make(map[string]struct{})
	var files []string
	for _, rel := range strings.Split(string(out), "\x00") {
		if rel == "" {
			continue
		}
		if _, dup := seen[rel]; dup {
			continue
		}
		seen[rel] = struct{}{}
		if !s.keep(rel, dir, scope.Depth) {
			continue
		}
		files = append(files, filepath.Join(s.root, filepath.FromSlash(rel)))
	}
	sort.Strings(files)
	return files, nil
}

func (s *GitSource) keep(rel, dir string, depth *int) bool {
	parts := strings.Split(rel, "/")
	for _, p := range parts[:len(parts)-1] {
		if _, skip := skipDirs[p]; skip {
			return false
		}
	}
	if s.exclude != nil && s.exclude.MatchesPath(rel) {
		return false
	}
	if depth != nil {
		within := rel
		if dir != "" {
			within = strings.TrimPrefix(rel, dir+"/")
		}
		if strings.Count(within, "/") > *depth {
			return false
		}
	}
	return true
}

// cleanDirectory normalizes a root-relative directory to slash form with no
// leading "./" or trailing slash. Paths escaping the root are rejected.
func cleanDirectory(dir string) (string, error) {
	if dir == "" {
		return "", nil
	}
	d := path.Clean(filepath.ToSlash(dir))
	if d == "." {
		return "", nil
	}
	if path.IsAbs(d) || d == ".." || strings.HasPrefix(d, "../") {
		return "", fmt.Errorf("directory %q is outside the project root", dir)
	}
	return d, nil
}
