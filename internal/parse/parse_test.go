package parse

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/symnav/internal/lang"
	"github.com/phobologic/symnav/internal/model"
)

func setup(t *testing.T, langName string) func(source string) []model.Tag {
	t.Helper()
	l := lang.Languages[langName]
	require.NotNil(t, l, "language %q not registered", langName)
	q, err := l.GetTagQuery()
	require.NoError(t, err)
	rel := "test" + l.Extensions[0]
	return func(source string) []model.Tag {
		tags, err := ExtractTags(l.NewParser(), q, []byte(source), "/abs/"+rel, rel)
		require.NoError(t, err)
		return tags
	}
}

// span is a compact view of a tag for assertions.
type span struct {
	name       string
	start, end int
}

func spans(tags []model.Tag, kind model.TagKind) []span {
	var out []span
	for _, tag := range tags {
		if tag.Kind == kind {
			out = append(out, span{tag.Name, tag.StartLine, tag.EndLine})
		}
	}
	return out
}

func TestPythonDefinitionsSpanTheirBlock(t *testing.T) {
	t.Parallel()
	extract := setup(t, "python")

	tags := extract("class Foo(Base):\n    def bar(self):\n        pass\n")
	assert.ElementsMatch(t, []span{{"Foo", 1, 3}, {"bar", 2, 3}}, spans(tags, model.Definition))

	for _, tag := range tags {
		assert.Equal(t, "test.py", tag.RelPath)
		assert.Equal(t, "/abs/test.py", tag.AbsPath)
	}
}

func TestPythonCallReferences(t *testing.T) {
	t.Parallel()
	extract := setup(t, "python")

	tags := extract("x = foo()\ny = bar.baz()\n")
	assert.ElementsMatch(t, []span{{"foo", 1, 1}, {"baz", 2, 2}}, spans(tags, model.Reference))
}

func TestPythonImportIsNotReference(t *testing.T) {
	t.Parallel()
	extract := setup(t, "python")

	tags := extract("from models import User\n\nobj = User()\n")
	assert.Equal(t, []span{{"User", 3, 3}}, spans(tags, model.Reference))
}

func TestPythonEmptySource(t *testing.T) {
	t.Parallel()
	extract := setup(t, "python")

	assert.Empty(t, extract(""))
}

func TestGoTags(t *testing.T) {
	t.Parallel()
	extract := setup(t, "go")

	source := `package main

type Config struct{}

func (c *Config) Load() error {
	return nil
}

func main() {
	c := Config{}
	c.Load()
}
`
	tags := extract(source)
	assert.ElementsMatch(t,
		[]span{{"Config", 3, 3}, {"Load", 5, 7}, {"main", 9, 12}},
		spans(tags, model.Definition))
	assert.ElementsMatch(t,
		[]span{{"Config", 10, 10}, {"Load", 11, 11}},
		spans(tags, model.Reference))
}

func TestRubyTags(t *testing.T) {
	t.Parallel()
	extract := setup(t, "ruby")

	source := `class Greeter
  def hello
    puts "hi"
  end
end
`
	tags := extract(source)
	assert.ElementsMatch(t, []span{{"Greeter", 1, 5}, {"hello", 2, 4}}, spans(tags, model.Definition))
	assert.Contains(t, spans(tags, model.Reference), span{"puts", 3, 3})
}

func TestJavaScriptTags(t *testing.T) {
	t.Parallel()
	extract := setup(t, "javascript")

	source := `class A {
  run() {}
}
function make() {
  return new A();
}
make().run();
`
	tags := extract(source)
	assert.ElementsMatch(t,
		[]span{{"A", 1, 3}, {"run", 2, 2}, {"make", 4, 6}},
		spans(tags, model.Definition))
	assert.ElementsMatch(t,
		[]span{{"A", 5, 5}, {"make", 7, 7}, {"run", 7, 7}},
		spans(tags, model.Reference))
}

func TestExtractorUnsupportedLanguage(t *testing.T) {
	t.Parallel()

	reads := 0
	e := NewExtractor(WithReadFile(func(string) ([]byte, error) {
		reads++
		return nil, nil
	}))
	tags, err := e.Extract("/nowhere/README.md", "README.md")
	require.NoError(t, err)
	assert.Empty(t, tags)
	assert.Zero(t, reads)
}

func TestExtractorReadsFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "a.py")
	require.NoError(t, os.WriteFile(path, []byte("def hello():\n    pass\n"), 0o644))

	tags, err := NewExtractor().Extract(path, "a.py")
	require.NoError(t, err)
	assert.Equal(t, []span{{"hello", 1, 2}}, spans(tags, model.Definition))
}

func TestExtractorSkipsOversizedFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "big.py")
	require.NoError(t, os.WriteFile(path, []byte("def hello():\n    pass\n"), 0o644))

	tags, err := NewExtractor(WithMaxFileSize(5)).Extract(path, "big.py")
	require.NoError(t, err)
	assert.Empty(t, tags)
}

func TestExtractorMissingFile(t *testing.T) {
	t.Parallel()

	_, err := NewExtractor().Extract(filepath.Join(t.TempDir(), "gone.py"), "gone.py")
	assert.Error(t, err)
}

type sizedInfo struct {
	fs.FileInfo
	size int64
}

func (s sizedInfo) Size() int64 { return s.size }

func TestExtractorUsesInjectedStat(t *testing.T) {
	t.Parallel()

	source := []byte("def hello():\n    pass\n")
	reads := 0
	newExtractor := func(size int64, statErr error) *Extractor {
		return NewExtractor(
			WithMaxFileSize(100),
			WithStat(func(string) (fs.FileInfo, error) {
				if statErr != nil {
					return nil, statErr
				}
				return sizedInfo{size: size}, nil
			}),
			WithReadFile(func(string) ([]byte, error) {
				reads++
				return source, nil
			}),
		)
	}

	tags, err := newExtractor(int64(len(source)), nil).Extract("/virtual/a.py", "a.py")
	require.NoError(t, err)
	assert.Equal(t, []span{{"hello", 1, 2}}, spans(tags, model.Definition))
	assert.Equal(t, 1, reads)

	tags, err = newExtractor(1<<20, nil).Extract("/virtual/a.py", "a.py")
	require.NoError(t, err)
	assert.Empty(t, tags)
	assert.Equal(t, 1, reads, "oversized file must not be read")

	_, err = newExtractor(0, errors.New("boom")).Extract("/virtual/a.py", "a.py")
	assert.ErrorContains(t, err, "boom")
	assert.Equal(t, 1, reads)
}
