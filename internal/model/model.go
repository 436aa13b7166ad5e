// Package model defines core data structures for symnav.
package model

// TagKind indicates whether a tag is a definition or a reference.
type TagKind string

const (
	Definition TagKind = "def"
	Reference  TagKind = "ref"
)

// Tag is a single occurrence of an identifier in a source file.
//
// Tag is comparable; two tags are equal iff every field is equal, so a
// map[Tag]struct{} deduplicates identical occurrences.
type Tag struct {
	Name    string
	Kind    TagKind
	AbsPath string
	RelPath string // slash-separated, relative to the project root

	// 1-indexed, inclusive. StartLine == EndLine for single-line tags.
	StartLine int
	EndLine   int
}

// IsDefinition reports whether the tag defines its identifier.
func (t Tag) IsDefinition() bool {
	return t.Kind == Definition
}
