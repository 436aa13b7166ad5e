package lang

import (
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/ruby"
)

func init() {
	register(&Language{
		Name:       "python",
		Extensions: []string{".py", ".pyi"},
		lang:       python.GetLanguage(),
	})
	register(&Language{
		Name:       "go",
		Extensions: []string{".go"},
		lang:       golang.GetLanguage(),
	})
	register(&Language{
		Name:       "ruby",
		Extensions: []string{".rb"},
		lang:       ruby.GetLanguage(),
	})
	register(&Language{
		Name:       "javascript",
		Extensions: []string{".js", ".jsx", ".mjs", ".cjs"},
		lang:       javascript.GetLanguage(),
	})
}
