// Package index builds cross-file definition and reference lookups from
// extracted tags.
package index

import (
	"sort"
	"strings"

	"github.com/phobologic/symnav/internal/model"
)

// FileSymbol keys tags by the file they occur in and their identifier.
type FileSymbol struct {
	Path string
	Name string
}

// TagSet is a set of tags, deduplicated by value.
type TagSet map[model.Tag]struct{}

// SymbolIndex holds the four lookups derived from one scan of the tree.
type SymbolIndex struct {
	// DefinitionFiles maps an identifier to the files defining it.
	DefinitionFiles map[string]map[string]struct{}
	// ReferenceFiles maps an identifier to the files referencing it, one
	// entry per reference tag in scan order.
	ReferenceFiles map[string][]string
	DefinitionTags map[FileSymbol]TagSet
	ReferenceTags  map[FileSymbol]TagSet
}

// New returns an empty index.
func New() *SymbolIndex {
	return &SymbolIndex{
		DefinitionFiles: make(map[string]map[string]struct{}),
		ReferenceFiles:  make(map[string][]string),
		DefinitionTags:  make(map[FileSymbol]TagSet),
		ReferenceTags:   make(map[FileSymbol]TagSet),
	}
}

// Add folds one tag into the index.
func (idx *SymbolIndex) Add(tag model.Tag) {
	key := FileSymbol{Path: tag.RelPath, Name: tag.Name}
	switch tag.Kind {
	case model.Definition:
		files := idx.DefinitionFiles[tag.Name]
		if files == nil {
			files = make(map[string]struct{})
			idx.DefinitionFiles[tag.Name] = files
		}
		files[tag.RelPath] = struct{}{}
		addTag(idx.DefinitionTags, key, tag)
	case model.Reference:
		idx.ReferenceFiles[tag.Name] = append(idx.ReferenceFiles[tag.Name], tag.RelPath)
		addTag(idx.ReferenceTags, key, tag)
	}
}

func addTag(m map[FileSymbol]TagSet, key FileSymbol, tag model.Tag) {
	set := m[key]
	if set == nil {
		set = make(TagSet)
		m[key] = set
	}
	set[tag] = struct{}{}
}

// Definitions returns the distinct definition tags of name, sorted by path
// and line. A non-empty pathFilter keeps only files whose relative path
// contains it.
func (idx *SymbolIndex) Definitions(name, pathFilter string) []model.Tag {
	if name == "" {
		return nil
	}
	found := make(TagSet)
	for path := range idx.DefinitionFiles[name] {
		if pathFilter != "" && !strings.Contains(path, pathFilter) {
			continue
		}
		for tag := range idx.DefinitionTags[FileSymbol{Path: path, Name: name}] {
			found[tag] = struct{}{}
		}
	}
	return sortedTags(found)
}

// References returns the distinct reference tags of name, sorted by path
// and line.
func (idx *SymbolIndex) References(name string) []model.Tag {
	if name == "" {
		return nil
	}
	found := make(TagSet)
	for _, path := range idx.ReferenceFiles[name] {
		for tag := range idx.ReferenceTags[FileSymbol{Path: path, Name: name}] {
			found[tag] = struct{}{}
		}
	}
	return sortedTags(found)
}

// Identifiers returns every defined or referenced identifier, sorted.
func (idx *SymbolIndex) Identifiers() []string {
	seen := make(map[string]struct{}, len(idx.DefinitionFiles)+len(idx.ReferenceFiles))
	for name := range idx.DefinitionFiles {
		seen[name] = struct{}{}
	}
	for name := range idx.ReferenceFiles {
		seen[name] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// sortedTags orders tags by (RelPath, StartLine); the remaining fields only
// break ties so the result is deterministic.
func sortedTags(set TagSet) []model.Tag {
	if len(set) == 0 {
		return nil
	}
	tags := make([]model.Tag, 0, len(set))
	for tag := range set {
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool {
		a, b := tags[i], tags[j]
		if a.RelPath != b.RelPath {
			return a.RelPath < b.RelPath
		}
		if a.StartLine != b.StartLine {
			return a.StartLine < b.StartLine
		}
		if a.EndLine != b.EndLine {
			return a.EndLine < b.EndLine
		}
		return a.AbsPath < b.AbsPath
	})
	return tags
}
