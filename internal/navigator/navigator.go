// Package navigator answers "where is this symbol defined?" and "where is it
// used?" with scope-aware excerpts of the files involved.
package navigator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/phobologic/symnav/internal/discover"
	"github.com/phobologic/symnav/internal/fuzzy"
	"github.com/phobologic/symnav/internal/index"
	"github.com/phobologic/symnav/internal/logging"
	"github.com/phobologic/symnav/internal/model"
	"github.com/phobologic/symnav/internal/parse"
	"github.com/phobologic/symnav/internal/render"
)

// ErrNavigationDisabled wraps unexpected failures to list the project's
// files. It is distinct from a symbol not being found.
var ErrNavigationDisabled = errors.New("navigation disabled")

// NoRepositoryMessage is returned instead of results when the root is not a
// git work tree.
const NoRepositoryMessage = "No git repository found. Navigation commands are disabled. Please use bash commands instead."

// Renderer produces the excerpt of a file for the given 1-indexed lines.
type Renderer interface {
	Render(absPath, relPath string, lines []int) (string, error)
}

// Options configures a Navigator. Zero values select defaults.
type Options struct {
	Source    index.FileSource
	Extractor index.Extractor
	Renderer  Renderer
	Scope     discover.Scope
	Exclude   []string

	Workers             int
	MaxFileSize         int64
	MaxLineLength       int
	MaxSuggestions      int
	SimilarityThreshold float64

	Progress func(done, total int)
	Logger   *slog.Logger
}

// Navigator serves symbol queries for one project root. Its render cache is
// owned by the instance and safe for concurrent queries.
type Navigator struct {
	root          string
	builder       *index.Builder
	renderer      Renderer
	matcher       *fuzzy.Matcher
	scope         discover.Scope
	maxLineLength int
	logger        *slog.Logger
}

// New returns a Navigator for root. Relative roots are resolved against the
// working directory.
func New(root string, opts Options) (*Navigator, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving root: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	source := opts.Source
	if source == nil {
		source = discover.NewGitSource(abs, opts.Exclude)
	}
	extractor := opts.Extractor
	if extractor == nil {
		maxSize := opts.MaxFileSize
		if maxSize == 0 {
			maxSize = parse.DefaultMaxFileSize
		}
		extractor = parse.NewExtractor(parse.WithMaxFileSize(maxSize), parse.WithLogger(logger))
	}
	renderer := opts.Renderer
	if renderer == nil {
		renderer = render.NewCache()
	}
	maxLine := opts.MaxLineLength
	if maxLine == 0 {
		maxLine = render.DefaultMaxLineLength
	}

	return &Navigator{
		root: abs,
		builder: &index.Builder{
			Root:      abs,
			Source:    source,
			Extractor: extractor,
			Workers:   opts.Workers,
			Progress:  opts.Progress,
			Logger:    logger,
		},
		renderer:      renderer,
		matcher:       fuzzy.New(opts.SimilarityThreshold, opts.MaxSuggestions),
		scope:         opts.Scope,
		maxLineLength: maxLine,
		logger:        logger,
	}, nil
}

// Root returns the absolute project root.
func (n *Navigator) Root() string {
	return n.root
}

// FindDefinitions renders every definition of symbol. A non-empty
// pathFilter keeps only files whose relative path contains it.
func (n *Navigator) FindDefinitions(ctx context.Context, symbol, pathFilter string) (string, error) {
	idx, err := n.buildIndex(ctx)
	if err != nil {
		return n.unavailable(err)
	}

	tags := idx.Definitions(symbol, filepath.ToSlash(pathFilter))
	if len(tags) == 0 {
		return n.notFound("definitions", symbol, idx), nil
	}
	return "\nDefinition(s) of `" + symbol + "`:\n" + n.renderTags(tags, true) + "\n", nil
}

// FindReferences renders every reference to symbol, anchored at the line of
// each occurrence.
func (n *Navigator) FindReferences(ctx context.Context, symbol string) (string, error) {
	idx, err := n.buildIndex(ctx)
	if err != nil {
		return n.unavailable(err)
	}

	tags := idx.References(symbol)
	if len(tags) == 0 {
		return n.notFound("references", symbol, idx), nil
	}
	return "\nReferences to `" + symbol + "`:\n" + n.renderTags(tags, false) + "\n", nil
}

func (n *Navigator) buildIndex(ctx context.Context) (*index.SymbolIndex, error) {
	return n.builder.Build(ctx, n.scope)
}

func (n *Navigator) unavailable(err error) (string, error) {
	if errors.Is(err, discover.ErrNoRepository) {
		n.logger.Info("navigation unavailable", "root", n.root, "error", err)
		return NoRepositoryMessage, nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "", err
	}
	return "", fmt.Errorf("%w: %w", ErrNavigationDisabled, err)
}

func (n *Navigator) notFound(what, symbol string, idx *index.SymbolIndex) string {
	msg := "No " + what + " found for `" + symbol + "`"
	suggestions := n.matcher.Suggest(symbol, idx.Identifiers())
	if len(suggestions) == 0 {
		return msg + "."
	}
	return msg + ". Maybe you meant one of these: " + strings.Join(suggestions, ", ") + "?"
}

// renderTags groups sorted tags by file and renders one section per file.
// With fullRange every line a tag spans is of interest; otherwise only its
// first line.
func (n *Navigator) renderTags(tags []model.Tag, fullRange bool) string {
	var sections []string
	for start := 0; start < len(tags); {
		end := start
		for end < len(tags) && tags[end].RelPath == tags[start].RelPath {
			end++
		}
		sections = append(sections, n.renderFile(tags[start:end], fullRange))
		start = end
	}
	return render.TruncateLines(strings.Join(sections, "\n"), n.maxLineLength)
}

func (n *Navigator) renderFile(tags []model.Tag, fullRange bool) string {
	file := tags[0]
	var lines []int
	for _, tag := range tags {
		if tag.StartLine < 1 {
			continue
		}
		if !fullRange {
			lines = append(lines, tag.StartLine)
			continue
		}
		for l := tag.StartLine; l <= max(tag.StartLine, tag.EndLine); l++ {
			lines = append(lines, l)
		}
	}

	header := file.RelPath + ":\n"
	if len(lines) == 0 {
		return header
	}
	excerpt, err := n.renderer.Render(file.AbsPath, file.RelPath, lines)
	if err != nil {
		n.logger.Warn("omitting excerpt", "path", file.RelPath, "error", err)
		return header
	}
	return header + excerpt
}
