// Package parse extracts definition and reference tags from source files
// using tree-sitter.
package parse

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/symnav/internal/lang"
	"github.com/phobologic/symnav/internal/logging"
	"github.com/phobologic/symnav/internal/model"
)

// DefaultMaxFileSize is the size above which files are not parsed.
const DefaultMaxFileSize = 1_000_000 // 1 MB

// ExtractTags parses source and returns its definition and reference tags.
// The parser must be created for the language the query was compiled for.
//
// Definition tags span the whole definition node; reference tags cover the
// line of the referenced name.
func ExtractTags(parser *sitter.Parser, query *sitter.Query, source []byte, absPath, relPath string) ([]model.Tag, error) {
	if len(source) == 0 {
		return nil, nil
	}

	tree, err := parser.ParseCtx(context.Background(), nil, source)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", relPath, err)
	}
	defer tree.Close()

	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(query, tree.RootNode())

	var tags []model.Tag
	for {
		match, ok := qc.NextMatch()
		if !ok {
			break
		}
		match = qc.FilterPredicates(match, source)

		var nameNode, tagNode *sitter.Node
		var kind model.TagKind
		for _, c := range match.Captures {
			cname := query.CaptureNameForId(c.Index)
			switch {
			case cname == "name":
				nameNode = c.Node
			case strings.HasPrefix(cname, "definition."):
				kind, tagNode = model.Definition, c.Node
			case strings.HasPrefix(cname, "reference."):
				kind, tagNode = model.Reference, c.Node
			}
		}
		if nameNode == nil || tagNode == nil {
			continue
		}

		tag := model.Tag{
			Name:    lang.NodeText(nameNode, source),
			Kind:    kind,
			AbsPath: absPath,
			RelPath: relPath,
		}
		if kind == model.Definition {
			tag.StartLine = int(tagNode.StartPoint().Row) + 1
			tag.EndLine = endLine(tagNode)
		} else {
			tag.StartLine = int(nameNode.StartPoint().Row) + 1
			tag.EndLine = tag.StartLine
		}
		tags = append(tags, tag)
	}

	return tags, nil
}

// endLine returns the 1-indexed last line a node occupies. A node ending at
// column 0 ends on the previous line.
func endLine(node *sitter.Node) int {
	end := node.EndPoint()
	line := int(end.Row) + 1
	if end.Column == 0 && end.Row > node.StartPoint().Row {
		line--
	}
	return line
}

// Extractor reads files and extracts their tags. It is safe for concurrent use.
type Extractor struct {
	maxFileSize int64
	logger      *slog.Logger
	readFile    func(string) ([]byte, error)
	stat        func(string) (fs.FileInfo, error)

	mu      sync.Mutex
	parsers map[string]*sync.Pool
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithMaxFileSize skips files larger than n bytes. Zero disables the limit.
func WithMaxFileSize(n int64) Option {
	return func(e *Extractor) { e.maxFileSize = n }
}

// WithLogger sets the logger used for skipped-file warnings.
func WithLogger(l *slog.Logger) Option {
	return func(e *Extractor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithReadFile replaces the function used to read source files.
func WithReadFile(fn func(string) ([]byte, error)) Option {
	return func(e *Extractor) { e.readFile = fn }
}

// WithStat replaces the function used to read file sizes.
func WithStat(fn func(string) (fs.FileInfo, error)) Option {
	return func(e *Extractor) { e.stat = fn }
}

// NewExtractor returns an Extractor for every registered language.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{
		maxFileSize: DefaultMaxFileSize,
		logger:      logging.Discard(),
		readFile:    os.ReadFile,
		stat:        os.Stat,
		parsers:     make(map[string]*sync.Pool),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns the tags of the file at absPath. Files in unsupported
// languages and files over the size limit yield no tags and no error.
func (e *Extractor) Extract(absPath, relPath string) ([]model.Tag, error) {
	l := lang.ForPath(absPath)
	if l == nil {
		return nil, nil
	}

	if e.maxFileSize > 0 {
		fi, err := e.stat(absPath)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", relPath, err)
		}
		if fi.Size() > e.maxFileSize {
			e.logger.Warn("skipping oversized file", "path", relPath, "size", fi.Size(), "limit", e.maxFileSize)
			return nil, nil
		}
	}

	query, err := l.GetTagQuery()
	if err != nil {
		return nil, err
	}

	source, err := e.readFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", relPath, err)
	}

	pool := e.pool(l)
	parser := pool.Get().(*sitter.Parser)
	defer pool.Put(parser)

	return ExtractTags(parser, query, source, absPath, relPath)
}

func (e *Extractor) pool(l *lang.Language) *sync.Pool {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.parsers[l.Name]
	if !ok {
		p = &sync.Pool{New: func() any { return l.NewParser() }}
		e.parsers[l.Name] = p
	}
	return p
}
