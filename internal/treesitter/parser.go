package treesitter

import (
	"fmt"
	"path/filepath"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

// LanguageParser wraps a tree-sitter parser with a language grammar.
// Always call Close() to release the CGO-side allocations.
type LanguageParser struct {
	parser   *sitter.Parser
	language *sitter.Language
	langName string
}

// NewLanguageParser creates a parser for javascript, jsx, typescript, tsx or
// python.
func NewLanguageParser(lang string) (*LanguageParser, error) {
	parser := sitter.NewParser()
	if parser == nil {
		return nil, fmt.Errorf("failed to create tree-sitter parser")
	}

	var language *sitter.Language
	switch lang {
	case "javascript", "jsx":
		language = sitter.NewLanguage(tree_sitter_javascript.Language())
	case "typescript":
		language = sitter.NewLanguage(tree_sitter_typescript.LanguageTypescript())
	case "tsx":
		language = sitter.NewLanguage(tree_sitter_typescript.LanguageTSX())
	case "python":
		language = sitter.NewLanguage(tree_sitter_python.Language())
	default:
		parser.Close()
		return nil, fmt.Errorf("unsupported language: %s", lang)
	}

	if err := parser.SetLanguage(language); err != nil {
		parser.Close()
		return nil, fmt.Errorf("failed to set language %s: %w", lang, err)
	}

	return &LanguageParser{parser: parser, language: language, langName: lang}, nil
}

// Close releases parser resources.
func (lp *LanguageParser) Close() {
	if lp.parser != nil {
		lp.parser.Close()
	}
}

// Parse parses source code and returns the syntax tree. The caller must call
// tree.Close() when done.
func (lp *LanguageParser) Parse(code []byte) (*sitter.Tree, error) {
	tree := lp.parser.Parse(code, nil)
	if tree == nil {
		return nil, fmt.Errorf("failed to parse code")
	}
	return tree, nil
}

// DetectLanguage returns the grammar identifier for a file path, or "" for
// unsupported extensions.
func DetectLanguage(filePath string) string {
	langMap := map[string]string{
		".js":  "javascript",
		".jsx": "jsx",
		".cjs": "javascript",
		".mjs": "javascript",
		".ts":  "typescript",
		".tsx": "tsx",
		".mts": "typescript",
		".cts": "typescript",
		".py":  "python",
		".pyi": "python",
	}
	return langMap[strings.ToLower(filepath.Ext(filePath))]
}
