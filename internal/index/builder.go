package index

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/phobologic/symnav/internal/discover"
	"github.com/phobologic/symnav/internal/logging"
	"github.com/phobologic/symnav/internal/model"
)

// FileSource lists the absolute paths of the project's tracked files.
type FileSource interface {
	TrackedFiles(ctx context.Context, scope discover.Scope) ([]string, error)
}

// Extractor returns the tags of one file. Implementations must be safe for
// concurrent use when Builder.Workers > 1.
type Extractor interface {
	Extract(absPath, relPath string) ([]model.Tag, error)
}

// Builder rebuilds a SymbolIndex from the current tree on every call.
// Files are extracted by a worker pool rather than in one linear pass, but
// results are folded in listing order, so the index is the same as a
// sequential scan would produce.
type Builder struct {
	Root      string
	Source    FileSource
	Extractor Extractor

	// Workers is the number of files extracted concurrently.
	// Zero means GOMAXPROCS. Reference order never depends on it.
	Workers int
	// Progress, if set, is called after each file with the number of files
	// processed so far and the total.
	Progress func(done, total int)
	Logger   *slog.Logger
}

// Build lists the scope's files and indexes their tags. Listing errors are
// returned; files that fail extraction are logged and skipped.
func (b *Builder) Build(ctx context.Context, scope discover.Scope) (*SymbolIndex, error) {
	logger := b.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	start := time.Now()

	files, err := b.Source.TrackedFiles(ctx, scope)
	if err != nil {
		return nil, err
	}

	results, err := b.extractAll(ctx, files, logger)
	if err != nil {
		return nil, err
	}

	idx := New()
	var defs, refs int
	for _, tags := range results {
		for _, tag := range tags {
			idx.Add(tag)
			if tag.IsDefinition() {
				defs++
			} else {
				refs++
			}
		}
	}

	logger.Debug("built symbol index",
		"files", len(files),
		"definitions", defs,
		"references", refs,
		"duration", time.Since(start),
	)
	return idx, nil
}

// RelPath converts an absolute path to the slash-separated path relative to
// the builder's root.
func (b *Builder) RelPath(abs string) (string, error) {
	rel, err := filepath.Rel(b.Root, abs)
	if err != nil {
		return "", err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is outside %s", abs, b.Root)
	}
	return filepath.ToSlash(rel), nil
}

// extractAll returns the tags of every file, indexed like files.
func (b *Builder) extractAll(ctx context.Context, files []string, logger *slog.Logger) ([][]model.Tag, error) {
	type result struct {
		index int
		tags  []model.Tag
	}

	numWorkers := b.Workers
	if numWorkers <= 0 {
		numWorkers = runtime.GOMAXPROCS(0)
	}
	if numWorkers > len(files) {
		numWorkers = len(files)
	}

	work := make(chan int)
	results := make(chan result, len(files))

	var wg sync.WaitGroup
	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range work {
				results <- result{index: i, tags: b.extractOne(files[i], logger)}
			}
		}()
	}

	go func() {
		defer close(work)
		for i := range files {
			select {
			case work <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	// Collect in listing order so reference order is deterministic.
	indexed := make([][]model.Tag, len(files))
	done := 0
	for r := range results {
		indexed[r.index] = r.tags
		done++
		if b.Progress != nil {
			b.Progress(done, len(files))
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return indexed, nil
}

func (b *Builder) extractOne(abs string, logger *slog.Logger) []model.Tag {
	rel, err := b.RelPath(abs)
	if err != nil {
		logger.Warn("skipping file", "path", abs, "error", err)
		return nil
	}
	tags, err := b.Extractor.Extract(abs, rel)
	if err != nil {
		logger.Warn("skipping file", "path", rel, "error", err)
		return nil
	}
	return tags
}
