package navigator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/symnav/internal/discover"
	"github.com/phobologic/symnav/internal/render"
)

// fakeSource lists fixed files, standing in for git.
type fakeSource struct {
	files []string
	err   error
}

func (f fakeSource) TrackedFiles(context.Context, discover.Scope) ([]string, error) {
	return f.files, f.err
}

type countingReader struct {
	reads atomic.Int32
}

func (r *countingReader) ReadFile(path string) ([]byte, error) {
	r.reads.Add(1)
	return os.ReadFile(path)
}

var baseTime = time.Now().Add(-time.Hour).Truncate(time.Second)

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	require.NoError(t, os.Chtimes(path, baseTime, baseTime))
	return path
}

type fixture struct {
	root   string
	nav    *Navigator
	reader *countingReader
}

func newFixture(t *testing.T, files map[string]string) *fixture {
	t.Helper()
	root := t.TempDir()
	var paths []string
	for rel, content := range files {
		paths = append(paths, writeFile(t, root, rel, content))
	}
	reader := &countingReader{}
	nav, err := New(root, Options{
		Source:   fakeSource{files: paths},
		Renderer: render.NewCache(render.WithReadFile(reader.ReadFile)),
	})
	require.NoError(t, err)
	return &fixture{root: root, nav: nav, reader: reader}
}

const (
	defSource = "class TestSymbol:\n    def test_method(self):\n        pass"
	refSource = "from test_def import TestSymbol\n\nobj = TestSymbol()\nobj.test_method()"
)

func sampleFixture(t *testing.T) *fixture {
	return newFixture(t, map[string]string{
		"test_def.py": defSource,
		"test_ref.py": refSource,
	})
}

func TestFindDefinitions(t *testing.T) {
	t.Parallel()
	f := sampleFixture(t)

	got, err := f.nav.FindDefinitions(context.Background(), "TestSymbol", "")
	require.NoError(t, err)
	assert.Equal(t, "\nDefinition(s) of `TestSymbol`:\n"+
		"test_def.py:\n"+
		"  1│class TestSymbol:\n"+
		"  2│    def test_method(self):\n"+
		"  3│        pass\n", got)
}

func TestFindReferences(t *testing.T) {
	t.Parallel()
	f := sampleFixture(t)

	got, err := f.nav.FindReferences(context.Background(), "TestSymbol")
	require.NoError(t, err)
	assert.Equal(t, "\nReferences to `TestSymbol`:\n"+
		"test_ref.py:\n"+
		"...⋮...\n"+
		"  3│obj = TestSymbol()\n"+
		"...⋮...\n", got)
}

func TestReferenceInsideFirstLineScope(t *testing.T) {
	t.Parallel()
	f := newFixture(t, map[string]string{
		"c.py": "def main():\n    x = 1\n    Foo()\n",
	})

	got, err := f.nav.FindReferences(context.Background(), "Foo")
	require.NoError(t, err)
	assert.Equal(t, "\nReferences to `Foo`:\n"+
		"c.py:\n"+
		"...⋮...\n"+
		"  2│    x = 1\n"+
		"  3│    Foo()\n", got)
}

func TestDefinitionRangeIncludesEndLine(t *testing.T) {
	t.Parallel()
	f := newFixture(t, map[string]string{
		"m.py": "import os\ndef helper():\n    return 42\n\n\nx = 1\n",
	})

	got, err := f.nav.FindDefinitions(context.Background(), "helper", "")
	require.NoError(t, err)
	assert.Contains(t, got, "  2│def helper():\n")
	assert.Contains(t, got, "  3│    return 42\n")
	assert.NotContains(t, got, "x = 1")
}

func TestDefinitionsAcrossFilesInPathOrder(t *testing.T) {
	t.Parallel()
	f := newFixture(t, map[string]string{
		"z.py":         "def run():\n    pass\n",
		"a.py":         "def run():\n    pass\n\n\ndef run():\n    pass\n",
		"sub/dir/m.py": "def run():\n    pass\n",
	})

	got, err := f.nav.FindDefinitions(context.Background(), "run", "")
	require.NoError(t, err)

	for _, header := range []string{"a.py:\n", "sub/dir/m.py:\n", "z.py:\n"} {
		assert.Equal(t, 1, strings.Count(got, header), header)
	}
	a := strings.Index(got, "a.py:")
	m := strings.Index(got, "sub/dir/m.py:")
	z := strings.Index(got, "z.py:")
	assert.Less(t, a, m)
	assert.Less(t, m, z)
	// Blank line between file sections.
	assert.Contains(t, got, "\n\nsub/dir/m.py:\n")
}

func TestDefinitionsPathFilter(t *testing.T) {
	t.Parallel()
	f := newFixture(t, map[string]string{
		"top.py":        "def run():\n    pass\n",
		"sub/dir/in.py": "def run():\n    pass\n",
	})

	got, err := f.nav.FindDefinitions(context.Background(), "run", "sub/dir")
	require.NoError(t, err)
	assert.Contains(t, got, "sub/dir/in.py:")
	assert.NotContains(t, got, "top.py")

	got, err = f.nav.FindDefinitions(context.Background(), "run", "elsewhere")
	require.NoError(t, err)
	assert.Equal(t, "No definitions found for `run`.", got)
}

func TestNotFoundSuggestions(t *testing.T) {
	t.Parallel()
	f := sampleFixture(t)
	ctx := context.Background()

	got, err := f.nav.FindDefinitions(ctx, "NonExistentSymbol", "")
	require.NoError(t, err)
	assert.Equal(t, "No definitions found for `NonExistentSymbol`. Maybe you meant one of these: TestSymbol, test_method?", got)

	got, err = f.nav.FindReferences(ctx, "NonExistentSymbol")
	require.NoError(t, err)
	assert.Equal(t, "No references found for `NonExistentSymbol`. Maybe you meant one of these: TestSymbol, test_method?", got)
}

func TestNotFoundWithoutSuggestions(t *testing.T) {
	t.Parallel()
	f := sampleFixture(t)
	ctx := context.Background()

	got, err := f.nav.FindDefinitions(ctx, "Zzzq", "")
	require.NoError(t, err)
	assert.Equal(t, "No definitions found for `Zzzq`.", got)

	got, err = f.nav.FindReferences(ctx, "Zzzq")
	require.NoError(t, err)
	assert.Equal(t, "No references found for `Zzzq`.", got)
}

func TestRepeatedQueryServedFromCache(t *testing.T) {
	t.Parallel()
	f := sampleFixture(t)
	ctx := context.Background()

	first, err := f.nav.FindDefinitions(ctx, "TestSymbol", "")
	require.NoError(t, err)
	second, err := f.nav.FindDefinitions(ctx, "TestSymbol", "")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.EqualValues(t, 1, f.reader.reads.Load())
}

func TestEditedFileIsReRendered(t *testing.T) {
	t.Parallel()
	f := sampleFixture(t)
	ctx := context.Background()

	before, err := f.nav.FindDefinitions(ctx, "TestSymbol", "")
	require.NoError(t, err)
	require.Contains(t, before, "test_method")

	path := filepath.Join(f.root, "test_def.py")
	require.NoError(t, os.WriteFile(path, []byte("class TestSymbol:\n    def renamed(self):\n        pass\n"), 0o644))
	later := baseTime.Add(time.Minute)
	require.NoError(t, os.Chtimes(path, later, later))

	after, err := f.nav.FindDefinitions(ctx, "TestSymbol", "")
	require.NoError(t, err)
	assert.Contains(t, after, "renamed")
	assert.NotContains(t, after, "test_method")
	assert.EqualValues(t, 2, f.reader.reads.Load())
}

func TestLongLinesTruncated(t *testing.T) {
	t.Parallel()
	long := strings.Repeat("a", 500)
	f := newFixture(t, map[string]string{
		"gen.py": "def generated():\n    return '" + long + "'\n",
	})

	got, err := f.nav.FindDefinitions(context.Background(), "generated", "")
	require.NoError(t, err)
	for _, line := range strings.Split(got, "\n") {
		assert.LessOrEqual(t, utf8.RuneCountInString(line), render.DefaultMaxLineLength)
	}
	assert.Contains(t, got, "  2│    return 'aaa")
}

func TestNoRepository(t *testing.T) {
	t.Parallel()

	nav, err := New(t.TempDir(), Options{Source: fakeSource{err: discover.ErrNoRepository}})
	require.NoError(t, err)
	ctx := context.Background()

	got, err := nav.FindDefinitions(ctx, "TestSymbol", "")
	require.NoError(t, err)
	assert.Equal(t, NoRepositoryMessage, got)

	got, err = nav.FindReferences(ctx, "TestSymbol")
	require.NoError(t, err)
	assert.Equal(t, NoRepositoryMessage, got)
}

func TestListingFailureDisablesNavigation(t *testing.T) {
	t.Parallel()

	cause := errors.New("permission denied")
	nav, err := New(t.TempDir(), Options{Source: fakeSource{err: cause}})
	require.NoError(t, err)

	_, err = nav.FindReferences(context.Background(), "TestSymbol")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNavigationDisabled)
	assert.ErrorIs(t, err, cause)
}

type failingRenderer struct{}

func (failingRenderer) Render(string, string, []int) (string, error) {
	return "", os.ErrNotExist
}

func TestRenderFailureKeepsFileHeader(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	path := writeFile(t, root, "a.py", "def run():\n    pass\n")
	nav, err := New(root, Options{
		Source:   fakeSource{files: []string{path}},
		Renderer: failingRenderer{},
	})
	require.NoError(t, err)

	got, err := nav.FindDefinitions(context.Background(), "run", "")
	require.NoError(t, err)
	assert.Equal(t, "\nDefinition(s) of `run`:\na.py:\n", got)
}

func TestDefaultsWireGitSource(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	nav, err := New(root, Options{})
	require.NoError(t, err)
	assert.Equal(t, root, nav.Root())
	_, ok := nav.builder.Source.(*discover.GitSource)
	assert.True(t, ok)
}
