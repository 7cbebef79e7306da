package registry

import (
	"os"
	"path/filepath"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/apiviz/apiviz-go/internal/models"
	"github.com/apiviz/apiviz-go/internal/treesitter"
)

// TypeScriptAnalyzer parses ES module imports, dynamic import() calls and
// CommonJS require() calls out of TypeScript and JavaScript sources.
type TypeScriptAnalyzer struct{}

func NewTypeScriptAnalyzer() *TypeScriptAnalyzer {
	return &TypeScriptAnalyzer{}
}

func (a *TypeScriptAnalyzer) Name() string { return "typescript" }

func (a *TypeScriptAnalyzer) Extensions() []string {
	return []string{".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs"}
}

func (a *TypeScriptAnalyzer) IgnoreGlobs() []string {
	return []string{
		"**/node_modules/**",
		"**/.next/**",
		"**/dist/**",
		"**/build/**",
		"**/.git/**",
		"**/coverage/**",
	}
}

// resolveExtensions is the probe order for extensionless specifiers.
var resolveExtensions = []string{".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs"}

// indexFileNames is the probe order for directory specifiers.
var indexFileNames = []string{"index.ts", "index.tsx", "index.js", "index.jsx"}

// ParseImports parses one file and returns its import descriptors.
func (a *TypeScriptAnalyzer) ParseImports(path string) ([]models.ImportDescriptor, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	lang := treesitter.DetectLanguage(path)
	if lang == "" {
		lang = "typescript"
	}
	lp, err := treesitter.NewLanguageParser(lang)
	if err != nil {
		return nil, err
	}
	defer lp.Close()

	tree, err := lp.Parse(code)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	var imports []models.ImportDescriptor

	treesitter.Walk(tree.RootNode(), func(node *sitter.Node) bool {
		switch node.Kind() {
		case "import_statement":
			source := node.ChildByFieldName("source")
			if source == nil {
				return false
			}
			importType := models.ImportStatic
			if treesitter.NamedChildOfKind(node, "import_clause") == nil {
				// import "./styles.css"
				importType = models.ImportSideEffect
			}
			imports = append(imports, models.ImportDescriptor{
				ImportPath: treesitter.StringContent(source, code),
				ImportType: importType,
			})
			return false

		case "export_statement":
			// export { x } from "./mod" re-exports are edges too.
			if source := node.ChildByFieldName("source"); source != nil {
				imports = append(imports, models.ImportDescriptor{
					ImportPath: treesitter.StringContent(source, code),
					ImportType: models.ImportStatic,
				})
			}
			return true

		case "call_expression":
			if desc, ok := a.callImport(node, code); ok {
				imports = append(imports, desc)
			}
			return true
		}
		return true
	})

	return imports, nil
}

// callImport recognizes import("x") and require("x") call expressions.
func (a *TypeScriptAnalyzer) callImport(node *sitter.Node, code []byte) (models.ImportDescriptor, bool) {
	fn := node.ChildByFieldName("function")
	if fn == nil {
		return models.ImportDescriptor{}, false
	}

	var importType models.ImportType
	switch {
	case fn.Kind() == "import":
		importType = models.ImportDynamic
	case fn.Kind() == "identifier" && treesitter.Text(fn, code) == "require":
		importType = models.ImportRequire
	default:
		return models.ImportDescriptor{}, false
	}

	args := node.ChildByFieldName("arguments")
	if args == nil {
		return models.ImportDescriptor{}, false
	}
	str := treesitter.NamedChildOfKind(args, "string")
	if str == nil {
		return models.ImportDescriptor{}, false
	}
	return models.ImportDescriptor{
		ImportPath: treesitter.StringContent(str, code),
		ImportType: importType,
	}, true
}

// ResolveImport resolves a specifier to an absolute path: relative
// specifiers against the importer's directory, alias and bare specifiers
// against the project root and root/src. Each base is probed exact, then
// with each resolvable extension, then as a directory with each index file.
func (a *TypeScriptAnalyzer) ResolveImport(specifier, fromFile, projectRoot string) (string, bool) {
	if specifier == "" {
		return "", false
	}

	if strings.HasPrefix(specifier, ".") {
		return probeBase(filepath.Join(filepath.Dir(fromFile), specifier))
	}

	candidate := specifier
	if rest, ok := strings.CutPrefix(specifier, "@/"); ok {
		candidate = rest
	} else if rest, ok := strings.CutPrefix(specifier, "~/"); ok {
		candidate = rest
	}

	if resolved, ok := probeBase(filepath.Join(projectRoot, candidate)); ok {
		return resolved, true
	}
	if resolved, ok := probeBase(filepath.Join(projectRoot, "src", candidate)); ok {
		return resolved, true
	}

	// Unresolvable bare specifier: an external package.
	return "", false
}

// probeBase tries base exactly, with each extension appended, and as a
// directory holding an index file.
func probeBase(base string) (string, bool) {
	if isFile(base) {
		return normalize(base), true
	}
	for _, ext := range resolveExtensions {
		if isFile(base + ext) {
			return normalize(base + ext), true
		}
	}
	for _, index := range indexFileNames {
		candidate := filepath.Join(base, index)
		if isFile(candidate) {
			return normalize(candidate), true
		}
	}
	return "", false
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func normalize(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return abs
}
