package registry

import (
	"os"
	"path/filepath"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/apiviz/apiviz-go/internal/models"
	"github.com/apiviz/apiviz-go/internal/treesitter"
)

// PythonAnalyzer parses import and from-import statements out of Python
// sources. Route analysis for Python runs out of process; this analyzer only
// feeds the file-level dependency graph.
type PythonAnalyzer struct{}

func NewPythonAnalyzer() *PythonAnalyzer {
	return &PythonAnalyzer{}
}

func (a *PythonAnalyzer) Name() string { return "python" }

func (a *PythonAnalyzer) Extensions() []string {
	return []string{".py"}
}

func (a *PythonAnalyzer) IgnoreGlobs() []string {
	return []string{
		"**/__pycache__/**",
		"**/venv/**",
		"**/env/**",
		"**/.venv/**",
		"**/.git/**",
		"**/site-packages/**",
	}
}

// ParseImports parses one file and returns its import descriptors. The
// import path keeps Python's dotted form, including leading dots for
// relative imports ("..models.user").
func (a *PythonAnalyzer) ParseImports(path string) ([]models.ImportDescriptor, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	lp, err := treesitter.NewLanguageParser("python")
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
			// import a.b, c as d
			for i := uint(0); i < node.ChildCount(); i++ {
				child := node.Child(i)
				switch child.Kind() {
				case "dotted_name":
					imports = append(imports, models.ImportDescriptor{
						ImportPath: treesitter.Text(child, code),
						ImportType: models.ImportStatic,
					})
				case "aliased_import":
					if name := treesitter.NamedChildOfKind(child, "dotted_name"); name != nil {
						imports = append(imports, models.ImportDescriptor{
							ImportPath: treesitter.Text(name, code),
							ImportType: models.ImportStatic,
						})
					}
				}
			}
			return false

		case "import_from_statement":
			if module := node.ChildByFieldName("module_name"); module != nil {
				imports = append(imports, models.ImportDescriptor{
					ImportPath: treesitter.Text(module, code),
					ImportType: models.ImportStatic,
				})
			}
			return false
		}
		return true
	})

	return imports, nil
}

// ResolveImport resolves a dotted module path to a file. Relative imports
// walk up from the importer's directory, one level per extra leading dot.
// Absolute imports probe under the project root, longest file prefix first,
// so "app.models.User" still resolves to app/models.py.
func (a *PythonAnalyzer) ResolveImport(specifier, fromFile, projectRoot string) (string, bool) {
	if specifier == "" {
		return "", false
	}

	base := projectRoot
	rest := specifier

	if strings.HasPrefix(specifier, ".") {
		dots := 0
		for dots < len(specifier) && specifier[dots] == '.' {
			dots++
		}
		base = filepath.Dir(fromFile)
		for i := 1; i < dots; i++ {
			base = filepath.Dir(base)
		}
		rest = specifier[dots:]
		if rest == "" {
			// "from . import x" points at the package itself.
			if resolved, ok := probeModule(base, nil); ok {
				return resolved, true
			}
			return "", false
		}
	}

	parts := strings.Split(rest, ".")
	for i := len(parts); i > 0; i-- {
		if resolved, ok := probeModule(base, parts[:i]); ok {
			return resolved, true
		}
	}
	return "", false
}

// probeModule tries base/parts.py then base/parts/__init__.py.
func probeModule(base string, parts []string) (string, bool) {
	path := base
	if len(parts) > 0 {
		path = filepath.Join(append([]string{base}, parts...)...)
	}
	if isFile(path + ".py") {
		return normalize(path + ".py"), true
	}
	if init := filepath.Join(path, "__init__.py"); isFile(init) {
		return normalize(init), true
	}
	return "", false
}
