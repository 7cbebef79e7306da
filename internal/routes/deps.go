package routes

import (
	"sort"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/apiviz/apiviz-go/internal/config"
	"github.com/apiviz/apiviz-go/internal/deps"
	"github.com/apiviz/apiviz-go/internal/models"
	"github.com/apiviz/apiviz-go/internal/treesitter"
)

// fileImport is one import statement of a route file with its bound names.
type fileImport struct {
	specifier string
	names     []string
}

// collectImports reads the import statements of a file with the local names
// each one binds.
func collectImports(root *sitter.Node, code []byte) []fileImport {
	var imports []fileImport
	for i := uint(0); i < root.ChildCount(); i++ {
		stmt := root.Child(i)
		if stmt.Kind() != "import_statement" {
			continue
		}
		source := stmt.ChildByFieldName("source")
		if source == nil {
			continue
		}
		imp := fileImport{specifier: treesitter.StringContent(source, code)}
		if clause := treesitter.NamedChildOfKind(stmt, "import_clause"); clause != nil {
			treesitter.Walk(clause, func(n *sitter.Node) bool {
				switch n.Kind() {
				case "identifier":
					imp.names = append(imp.names, treesitter.Text(n, code))
				case "import_specifier":
					local := n.ChildByFieldName("alias")
					if local == nil {
						local = n.ChildByFieldName("name")
					}
					if local != nil {
						imp.names = append(imp.names, treesitter.Text(local, code))
					}
					return false
				}
				return true
			})
		}
		imports = append(imports, imp)
	}
	return imports
}

// crudMethods are ORM operation names recognized on client.model chains.
var crudMethods = map[string]bool{
	"findMany": true, "findFirst": true, "findUnique": true,
	"create": true, "createMany": true,
	"update": true, "updateMany": true, "upsert": true,
	"delete": true, "deleteMany": true,
	"count": true, "aggregate": true, "groupBy": true,
}

// builderMethods are query-builder entry points taking a table argument.
var builderMethods = []string{"from", "insert", "update", "delete"}

// extractDependencies categorizes a handler's imports and scans its body for
// outbound calls and database access.
func extractDependencies(hc *handlerCtx, imports []fileImport, cfg *config.AnalysisConfig) *models.ApiDependencies {
	result := &models.ApiDependencies{
		Services:  []models.DependencyRef{},
		Database:  []models.DependencyRef{},
		External:  []models.DependencyRef{},
		Utilities: []models.DependencyRef{},
	}

	seen := map[string]bool{}
	add := func(ref models.DependencyRef) {
		key := ref.Name + ":" + ref.Module
		if seen[key] {
			return
		}
		seen[key] = true
		switch ref.Type {
		case "database":
			result.Database = append(result.Database, ref)
		case "services":
			result.Services = append(result.Services, ref)
		case "utilities":
			result.Utilities = append(result.Utilities, ref)
		case "external":
			result.External = append(result.External, ref)
		}
	}

	for _, imp := range imports {
		category := cfg.Categorize(imp.specifier)
		if category == "" {
			continue
		}
		names := imp.names
		if len(names) == 0 {
			names = []string{imp.specifier}
		}
		for _, name := range names {
			add(models.DependencyRef{Name: name, Module: imp.specifier, Type: category})
		}
	}

	if hc.body != nil {
		scanCalls(hc, cfg, add, result)
	}

	result.Grouped = deps.Group(result)
	return result
}

// scanCalls walks a handler body for network calls and ORM access.
func scanCalls(hc *handlerCtx, cfg *config.AnalysisConfig, add func(models.DependencyRef), result *models.ApiDependencies) {
	tables := map[string]bool{}
	apiCalls := map[string]bool{}

	treesitter.Walk(hc.body, func(n *sitter.Node) bool {
		if n.Kind() != "call_expression" {
			return true
		}

		if url, ok := outboundCallTarget(n, hc); ok {
			switch {
			case strings.HasPrefix(url, "/api"):
				apiCalls[url] = true
				add(models.DependencyRef{
					Name:   "Internal: " + url,
					Module: url,
					Type:   "external",
				})
			case strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://"):
				add(models.DependencyRef{Name: url, Module: url, Type: "external"})
			}
		}

		if table, client, ok := ormAccess(n, hc, cfg); ok {
			tables[table] = true
			add(models.DependencyRef{Name: table, Module: client, Type: "database"})
		}
		return true
	})

	for table := range tables {
		result.Tables = append(result.Tables, table)
	}
	for call := range apiCalls {
		result.APICalls = append(result.APICalls, call)
	}
	sort.Strings(result.Tables)
	sort.Strings(result.APICalls)
}

// outboundCallTarget matches fetch/axios style calls and returns the static
// leading part of the first URL argument.
func outboundCallTarget(call *sitter.Node, hc *handlerCtx) (string, bool) {
	fn := call.ChildByFieldName("function")
	if fn == nil {
		return "", false
	}

	matched := false
	switch fn.Kind() {
	case "identifier":
		name := hc.text(fn)
		matched = name == "fetch" || name == "axios"
	case "member_expression":
		obj := fn.ChildByFieldName("object")
		matched = obj != nil && obj.Kind() == "identifier" && hc.text(obj) == "axios"
	}
	if !matched {
		return "", false
	}

	arg := firstArg(call.ChildByFieldName("arguments"))
	if arg == nil {
		return "", false
	}
	switch arg.Kind() {
	case "string":
		return treesitter.StringContent(arg, hc.code), true
	case "template_string":
		// Only the static prefix before the first substitution is
		// reliable.
		for i := uint(0); i < arg.ChildCount(); i++ {
			child := arg.Child(i)
			if child.Kind() == "string_fragment" {
				return hc.text(child), true
			}
			if child.Kind() == "template_substitution" {
				break
			}
		}
	}
	return "", false
}

// ormAccess matches `<client>.<model>.<crud>()` chains and
// `db.from/insert/update/delete(Table)` builder calls, returning the
// normalized table name and the client identifier.
func ormAccess(call *sitter.Node, hc *handlerCtx, cfg *config.AnalysisConfig) (table, client string, ok bool) {
	fn := call.ChildByFieldName("function")
	if fn == nil || fn.Kind() != "member_expression" {
		return "", "", false
	}
	prop := fn.ChildByFieldName("property")
	obj := fn.ChildByFieldName("object")
	if prop == nil || obj == nil {
		return "", "", false
	}
	method := hc.text(prop)

	// client.model.crud()
	if crudMethods[method] && obj.Kind() == "member_expression" {
		inner := obj.ChildByFieldName("object")
		model := obj.ChildByFieldName("property")
		if inner != nil && model != nil && inner.Kind() == "identifier" {
			name := hc.text(inner)
			if isClientName(name, cfg) {
				return normalizeTable(hc.text(model), cfg), name, true
			}
		}
	}

	// db.from(usersTable) style builder calls.
	for _, builder := range builderMethods {
		if method != builder {
			continue
		}
		if obj.Kind() != "identifier" || !isClientName(hc.text(obj), cfg) {
			continue
		}
		arg := firstArg(call.ChildByFieldName("arguments"))
		if arg == nil || arg.Kind() != "identifier" {
			continue
		}
		return normalizeTable(hc.text(arg), cfg), hc.text(obj), true
	}
	return "", "", false
}

func isClientName(name string, cfg *config.AnalysisConfig) bool {
	for _, client := range cfg.Database.ClientNames {
		if name == client {
			return true
		}
	}
	return false
}

// normalizeTable strips configured suffixes and lowercases the identifier.
func normalizeTable(name string, cfg *config.AnalysisConfig) string {
	for _, suffix := range cfg.Database.TableSuffixes {
		if trimmed, ok := strings.CutSuffix(name, suffix); ok && trimmed != "" {
			name = trimmed
			break
		}
	}
	return strings.ToLower(name)
}
