// Package program builds an in-memory, type-aware view of a TypeScript
// project: every exported interface, type alias, and zod schema, plus the
// import maps needed to follow a type name across files. The route extractor
// leans on it to turn named types into field lists.
package program

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/apiviz/apiviz-go/internal/config"
	"github.com/apiviz/apiviz-go/internal/logging"
	"github.com/apiviz/apiviz-go/internal/models"
	"github.com/apiviz/apiviz-go/internal/registry"
	"github.com/apiviz/apiviz-go/internal/treesitter"
)

// typeDecl is one indexed type declaration. Exactly one of fields/aliasOf is
// meaningful; extends lists heritage type names resolved lazily.
type typeDecl struct {
	fields  []models.SchemaField
	extends []string
	aliasOf string
}

// fileIndex is the per-file slice of the program.
type fileIndex struct {
	path    string
	types   map[string]*typeDecl
	zod     map[string][]models.SchemaField
	imports map[string]string // local name -> import specifier
}

// Program spans all TypeScript sources under one project root.
type Program struct {
	root     string
	maxDepth int
	analyzer *registry.TypeScriptAnalyzer
	files    map[string]*fileIndex
}

// Load parses every TypeScript file under root and indexes its type
// declarations. Files that fail to read or parse are skipped.
func Load(root string, cfg *config.AnalysisConfig) (*Program, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	maxDepth := 5
	if cfg != nil && cfg.Analysis.MaxTypeDepth > 0 {
		maxDepth = cfg.Analysis.MaxTypeDepth
	}

	p := &Program{
		root:     absRoot,
		maxDepth: maxDepth,
		analyzer: registry.NewTypeScriptAnalyzer(),
		files:    make(map[string]*fileIndex),
	}

	ignore := p.analyzer.IgnoreGlobs()
	if cfg != nil {
		ignore = append(ignore, cfg.Exclude...)
	}

	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		rel, relErr := filepath.Rel(absRoot, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if rel == "." {
				return nil
			}
			if globMatch(ignore, rel+"/x") {
				return filepath.SkipDir
			}
			return nil
		}
		if globMatch(ignore, rel) {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs":
		default:
			return nil
		}
		if idx, err := indexFile(path); err == nil {
			p.files[normalizePath(path)] = idx
		} else {
			logging.Debug("program skipping file", "file", path, "error", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Root returns the project root the program was built for.
func (p *Program) Root() string { return p.root }

// FileCount reports how many files the program indexed.
func (p *Program) FileCount() int { return len(p.files) }

// Fields resolves a named type, interface, or zod schema declared in or
// imported by fromFile into its field list. Interface heritage and alias
// chains are followed across files, bounded by the configured type depth.
// An unresolvable name yields nil.
func (p *Program) Fields(name, fromFile string) []models.SchemaField {
	return p.resolve(name, normalizePath(fromFile), p.maxDepth, map[string]bool{})
}

func (p *Program) resolve(name, file string, depth int, visited map[string]bool) []models.SchemaField {
	if depth <= 0 {
		return nil
	}
	name = baseTypeName(name)
	key := file + "#" + name
	if visited[key] {
		return nil
	}
	visited[key] = true

	idx, ok := p.files[file]
	if !ok {
		return nil
	}

	if decl, ok := idx.types[name]; ok {
		if decl.aliasOf != "" {
			return p.resolve(decl.aliasOf, file, depth-1, visited)
		}
		fields := decl.fields
		// Base fields come first; a redeclared field in the derived
		// type shadows the base one.
		for i := len(decl.extends) - 1; i >= 0; i-- {
			base := p.resolve(decl.extends[i], file, depth-1, visited)
			fields = mergeFields(base, fields)
		}
		return fields
	}

	if fields, ok := idx.zod[name]; ok {
		return fields
	}

	if spec, ok := idx.imports[name]; ok {
		if target, ok := p.analyzer.ResolveImport(spec, file, p.root); ok {
			return p.resolve(name, normalizePath(target), depth-1, visited)
		}
	}
	return nil
}

// TypeFields resolves an arbitrary type expression node to field lists:
// inline object types are read directly, named references go through the
// program index.
func (p *Program) TypeFields(node *sitter.Node, code []byte, fromFile string) []models.SchemaField {
	if node == nil {
		return nil
	}
	switch node.Kind() {
	case "object_type":
		return ObjectTypeFields(node, code)
	case "parenthesized_type":
		for i := uint(0); i < node.ChildCount(); i++ {
			child := node.Child(i)
			if child.Kind() != "(" && child.Kind() != ")" {
				return p.TypeFields(child, code, fromFile)
			}
		}
		return nil
	case "intersection_type":
		var fields []models.SchemaField
		for i := uint(0); i < node.ChildCount(); i++ {
			child := node.Child(i)
			if child.Kind() == "&" {
				continue
			}
			fields = mergeFields(fields, p.TypeFields(child, code, fromFile))
		}
		return fields
	case "type_identifier", "generic_type":
		return p.Fields(treesitter.Text(node, code), fromFile)
	}
	return nil
}

// mergeFields appends overlay over base, letting overlay shadow by name.
func mergeFields(base, overlay []models.SchemaField) []models.SchemaField {
	if len(base) == 0 {
		return overlay
	}
	shadowed := map[string]bool{}
	for _, f := range overlay {
		shadowed[f.Name] = true
	}
	merged := make([]models.SchemaField, 0, len(base)+len(overlay))
	for _, f := range base {
		if !shadowed[f.Name] {
			merged = append(merged, f)
		}
	}
	return append(merged, overlay...)
}

// baseTypeName strips generic arguments: "Paginated<User>" -> "Paginated".
func baseTypeName(name string) string {
	if i := strings.IndexByte(name, '<'); i >= 0 {
		name = name[:i]
	}
	return strings.TrimSpace(name)
}

func globMatch(globs []string, rel string) bool {
	for _, g := range globs {
		if ok, err := doublestar.Match(g, rel); err == nil && ok {
			return true
		}
	}
	return false
}

func normalizePath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return abs
}

// indexFile parses one source file and indexes its type-level declarations.
func indexFile(path string) (*fileIndex, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	lang := treesitter.DetectLanguage(path)
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

	idx := &fileIndex{
		path:    path,
		types:   make(map[string]*typeDecl),
		zod:     make(map[string][]models.SchemaField),
		imports: make(map[string]string),
	}

	root := tree.RootNode()
	for i := uint(0); i < root.ChildCount(); i++ {
		indexTopLevel(idx, root.Child(i), code)
	}
	return idx, nil
}

func indexTopLevel(idx *fileIndex, node *sitter.Node, code []byte) {
	switch node.Kind() {
	case "export_statement":
		if decl := node.ChildByFieldName("declaration"); decl != nil {
			indexTopLevel(idx, decl, code)
		}

	case "interface_declaration":
		name := treesitter.Text(node.ChildByFieldName("name"), code)
		if name == "" {
			return
		}
		decl := &typeDecl{}
		if body := node.ChildByFieldName("body"); body != nil {
			decl.fields = ObjectTypeFields(body, code)
		}
		if heritage := treesitter.NamedChildOfKind(node, "extends_type_clause"); heritage != nil {
			for i := uint(0); i < heritage.ChildCount(); i++ {
				child := heritage.Child(i)
				if child.Kind() == "type_identifier" || child.Kind() == "generic_type" {
					decl.extends = append(decl.extends, treesitter.Text(child, code))
				}
			}
		}
		idx.types[name] = decl

	case "type_alias_declaration":
		name := treesitter.Text(node.ChildByFieldName("name"), code)
		value := node.ChildByFieldName("value")
		if name == "" || value == nil {
			return
		}
		idx.types[name] = aliasDecl(value, code)

	case "lexical_declaration", "variable_declaration":
		for i := uint(0); i < node.ChildCount(); i++ {
			declarator := node.Child(i)
			if declarator.Kind() != "variable_declarator" {
				continue
			}
			name := treesitter.Text(declarator.ChildByFieldName("name"), code)
			value := declarator.ChildByFieldName("value")
			if name == "" || value == nil {
				continue
			}
			if fields, ok := zodObjectFields(value, code); ok {
				idx.zod[name] = fields
			}
		}

	case "import_statement":
		indexImport(idx, node, code)
	}
}

// aliasDecl classifies a type alias value.
func aliasDecl(value *sitter.Node, code []byte) *typeDecl {
	switch value.Kind() {
	case "object_type":
		return &typeDecl{fields: ObjectTypeFields(value, code)}
	case "intersection_type":
		decl := &typeDecl{}
		for i := uint(0); i < value.ChildCount(); i++ {
			child := value.Child(i)
			switch child.Kind() {
			case "object_type":
				decl.fields = mergeFields(decl.fields, ObjectTypeFields(child, code))
			case "type_identifier", "generic_type":
				decl.extends = append(decl.extends, treesitter.Text(child, code))
			}
		}
		return decl
	case "type_identifier", "generic_type":
		return &typeDecl{aliasOf: treesitter.Text(value, code)}
	default:
		return &typeDecl{}
	}
}

// indexImport records local-name -> specifier bindings for default, named,
// and namespace imports.
func indexImport(idx *fileIndex, node *sitter.Node, code []byte) {
	source := node.ChildByFieldName("source")
	if source == nil {
		return
	}
	spec := treesitter.StringContent(source, code)
	if spec == "" {
		return
	}

	clause := treesitter.NamedChildOfKind(node, "import_clause")
	if clause == nil {
		return
	}
	treesitter.Walk(clause, func(n *sitter.Node) bool {
		switch n.Kind() {
		case "identifier":
			idx.imports[treesitter.Text(n, code)] = spec
		case "import_specifier":
			local := n.ChildByFieldName("alias")
			if local == nil {
				local = n.ChildByFieldName("name")
			}
			if local != nil {
				idx.imports[treesitter.Text(local, code)] = spec
			}
			return false
		}
		return true
	})
}
