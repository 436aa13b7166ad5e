// Package render caches scope-aware excerpts of source files keyed by file
// modification time.
package render

import (
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/phobologic/symnav/internal/treecontext"
)

type fileContext struct {
	ctx   *treecontext.Context
	mtime time.Time
}

type treeKey struct {
	relPath string
	lois    string // sorted distinct lines, comma separated
	mtime   int64  // UnixNano
}

// Cache renders excerpts through two levels of caching: parsed contexts per
// file and rendered output per (file, lines of interest, mtime). It is safe
// for concurrent use.
type Cache struct {
	mu       sync.Mutex
	contexts map[string]fileContext
	rendered map[treeKey]string

	readFile func(string) ([]byte, error)
	stat     func(string) (fs.FileInfo, error)
}

// Option configures a Cache.
type Option func(*Cache)

// WithReadFile replaces the function used to read file contents.
func WithReadFile(fn func(string) ([]byte, error)) Option {
	return func(c *Cache) { c.readFile = fn }
}

// WithStat replaces the function used to read modification times.
func WithStat(fn func(string) (fs.FileInfo, error)) Option {
	return func(c *Cache) { c.stat = fn }
}

// NewCache returns an empty cache.
func NewCache(opts ...Option) *Cache {
	c := &Cache{
		contexts: make(map[string]fileContext),
		rendered: make(map[treeKey]string),
		readFile: os.ReadFile,
		stat:     os.Stat,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Render returns the excerpt of absPath showing lines (1-indexed). For an
// unchanged file and the same line set the result is served from cache
// without reading the file.
func (c *Cache) Render(absPath, relPath string, lines []int) (string, error) {
	fi, err := c.stat(absPath)
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", relPath, err)
	}
	mtime := fi.ModTime()
	key := treeKey{relPath: relPath, lois: linesKey(lines), mtime: mtime.UnixNano()}

	c.mu.Lock()
	defer c.mu.Unlock()

	if out, ok := c.rendered[key]; ok {
		return out, nil
	}

	fc, ok := c.contexts[relPath]
	if !ok || !fc.mtime.Equal(mtime) {
		code, err := c.readFile(absPath)
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", relPath, err)
		}
		if len(code) == 0 || code[len(code)-1] != '\n' {
			code = append(code, '\n')
		}
		tc, err := treecontext.New(relPath, code)
		if err != nil {
			return "", err
		}
		fc = fileContext{ctx: tc, mtime: mtime}
		c.contexts[relPath] = fc
	}

	fc.ctx.SetLinesOfInterest(lines)
	fc.ctx.AddContext()
	out := fc.ctx.Format()
	c.rendered[key] = out
	return out, nil
}

// Len returns the number of parsed contexts and rendered excerpts held.
func (c *Cache) Len() (contexts, rendered int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.contexts), len(c.rendered)
}

func linesKey(lines []int) string {
	distinct := make(map[int]struct{}, len(lines))
	sorted := make([]int, 0, len(lines))
	for _, n := range lines {
		if _, dup := distinct[n]; dup {
			continue
		}
		distinct[n] = struct{}{}
		sorted = append(sorted, n)
	}
	sort.Ints(sorted)

	var b strings.Builder
	for i, n := range sorted {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(n))
	}
	return b.String()
}
