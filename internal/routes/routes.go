// Package routes extracts HTTP endpoints from file-system-routed handler
// files: verb-named exported handlers, request/response schemas, query
// parameters, and categorized dependencies.
package routes

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/apiviz/apiviz-go/internal/cache"
	"github.com/apiviz/apiviz-go/internal/config"
	"github.com/apiviz/apiviz-go/internal/logging"
	"github.com/apiviz/apiviz-go/internal/models"
	"github.com/apiviz/apiviz-go/internal/program"
	"github.com/apiviz/apiviz-go/internal/treesitter"
)

// routeFileGlobs are the file-system routing conventions we recognize.
var routeFileGlobs = []string{
	"**/app/**/route.{ts,tsx,js}",
	"**/pages/api/**/*.{ts,tsx,js}",
}

var httpVerbs = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "PATCH": true,
	"DELETE": true, "HEAD": true, "OPTIONS": true,
}

// Extractor analyzes route handler files for one or more projects. Per-file
// results are cached by mtime so a re-scan of an unchanged project is cheap.
type Extractor struct {
	cfg      *config.AnalysisConfig
	programs *program.Manager
	results  *cache.Cache[[]models.ApiEndpoint]
}

func NewExtractor(cfg *config.AnalysisConfig, programs *program.Manager) *Extractor {
	if cfg == nil {
		cfg = config.Default()
	}
	if programs == nil {
		programs = program.NewManager()
	}
	ttl := cache.DefaultTTL
	if cfg.Analysis.CacheTTLMs > 0 {
		ttl = cfg.Analysis.CacheTTL()
	}
	return &Extractor{
		cfg:      cfg,
		programs: programs,
		results:  cache.New[[]models.ApiEndpoint](ttl, cache.DefaultMaxSize),
	}
}

// CacheStats reports the route-result cache counters.
func (e *Extractor) CacheStats() models.CacheStats {
	return e.results.Stats()
}

// Invalidate drops cached results and the type program for a root.
func (e *Extractor) Invalidate(root string) {
	e.results.InvalidateDirectory(root)
	e.programs.Invalidate(root)
}

// AnalyzeProject discovers every route file under root and returns the
// endpoint list, merged by path and sorted lexicographically. An invalid
// root yields an empty list, not an error.
func (e *Extractor) AnalyzeProject(root string) []models.ApiEndpoint {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return []models.ApiEndpoint{}
	}
	if info, statErr := os.Stat(absRoot); statErr != nil || !info.IsDir() {
		return []models.ApiEndpoint{}
	}

	files := e.discoverRouteFiles(absRoot)
	var all []models.ApiEndpoint
	for _, file := range files {
		all = append(all, e.AnalyzeFile(absRoot, file)...)
	}
	return mergeByPath(all)
}

// AnalyzeFile extracts the endpoints defined in one route file.
func (e *Extractor) AnalyzeFile(root, file string) []models.ApiEndpoint {
	if cached, ok := e.results.Get(file); ok {
		return cached
	}

	endpoints, err := e.analyzeFile(root, file)
	if err != nil {
		logging.Warn("route analysis failed", "file", file, "error", err)
		return []models.ApiEndpoint{}
	}
	if err := e.results.Set(file, endpoints); err != nil {
		logging.Debug("route result not cached", "file", file, "error", err)
	}
	return endpoints
}

// skipGlobs prune the walk; generated trees never hold route sources.
var skipGlobs = []string{
	"**/node_modules/**",
	"**/.next/**",
	"**/dist/**",
	"**/build/**",
	"**/.git/**",
	"**/coverage/**",
}

func (e *Extractor) discoverRouteFiles(root string) []string {
	var files []string
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if rel == "." {
				return nil
			}
			if globMatch(skipGlobs, rel+"/x") {
				return filepath.SkipDir
			}
			return nil
		}
		if globMatch(routeFileGlobs, rel) {
			files = append(files, path)
		}
		return nil
	})
	sort.Strings(files)
	return files
}

func (e *Extractor) analyzeFile(root, file string) ([]models.ApiEndpoint, error) {
	code, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}

	lang := treesitter.DetectLanguage(file)
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

	prog, err := e.programs.Load(root, e.cfg)
	if err != nil {
		logging.Warn("type program unavailable", "root", root, "error", err)
		prog = nil
	}

	rel, err := filepath.Rel(root, file)
	if err != nil {
		rel = file
	}
	rel = filepath.ToSlash(rel)
	routePath := DerivePath(rel)
	if routePath == "" {
		return []models.ApiEndpoint{}, nil
	}

	fileImports := collectImports(tree.RootNode(), code)

	var endpoints []models.ApiEndpoint
	for _, h := range findHandlers(tree.RootNode(), code) {
		hc := newHandlerCtx(file, code, prog, h)
		endpoint := models.ApiEndpoint{
			Path:         routePath,
			Methods:      []string{h.verb},
			Params:       pathParams(routePath),
			QueryParams:  extractQueryParams(hc),
			RequestBody:  extractRequestBody(hc),
			Responses:    extractResponses(hc),
			FilePath:     file,
			RelativePath: rel,
			LineNumber:   h.line,
			Description:  h.description,
		}
		for _, r := range endpoint.Responses {
			if !r.IsError {
				endpoint.ResponseBody = r.Fields
				break
			}
		}
		endpoint.Dependencies = extractDependencies(hc, fileImports, e.cfg)
		endpoints = append(endpoints, endpoint)
	}
	return mergeByPath(endpoints), nil
}

// DerivePath maps a route file's project-relative path to its URL path.
// App-router files take the directory chain after the last "app" segment;
// pages-router files take their own path under "pages", minus the extension,
// with trailing "index" collapsed.
func DerivePath(rel string) string {
	segments := strings.Split(rel, "/")

	if base := segments[len(segments)-1]; strings.HasPrefix(base, "route.") {
		appIdx := -1
		for i, s := range segments[:len(segments)-1] {
			if s == "app" {
				appIdx = i
			}
		}
		if appIdx < 0 {
			return ""
		}
		middle := segments[appIdx+1 : len(segments)-1]
		kept := middle[:0]
		for _, s := range middle {
			// Route groups like "(marketing)" do not contribute
			// URL segments.
			if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
				continue
			}
			kept = append(kept, s)
		}
		return "/" + strings.Join(kept, "/")
	}

	for i, s := range segments {
		if s == "pages" && i+1 < len(segments) && segments[i+1] == "api" {
			rest := segments[i+1:]
			last := rest[len(rest)-1]
			last = strings.TrimSuffix(last, filepath.Ext(last))
			if last == "index" {
				rest = rest[:len(rest)-1]
			} else {
				rest[len(rest)-1] = last
			}
			return "/" + strings.Join(rest, "/")
		}
	}
	return ""
}

// pathParams extracts dynamic segments: "[id]" and "[...slug]".
func pathParams(routePath string) []models.SchemaField {
	var params []models.SchemaField
	for _, seg := range strings.Split(routePath, "/") {
		if !strings.HasPrefix(seg, "[") || !strings.HasSuffix(seg, "]") {
			continue
		}
		name := strings.Trim(seg, "[]")
		paramType := "string"
		if rest, ok := strings.CutPrefix(name, "..."); ok {
			name = rest
			paramType = "string[]"
		}
		params = append(params, models.SchemaField{Name: name, Type: paramType})
	}
	return params
}

// handler is one verb-named exported declaration.
type handler struct {
	verb        string
	body        *sitter.Node
	params      *sitter.Node
	line        int
	description string
}

// findHandlers walks top-level statements for exported verb handlers, both
// `export async function GET(...)` and `export const GET = async (...) =>`.
func findHandlers(root *sitter.Node, code []byte) []handler {
	var handlers []handler
	for i := uint(0); i < root.ChildCount(); i++ {
		stmt := root.Child(i)
		if stmt.Kind() != "export_statement" {
			continue
		}
		decl := stmt.ChildByFieldName("declaration")
		if decl == nil {
			continue
		}
		desc := leadingComment(root, i, code)

		switch decl.Kind() {
		case "function_declaration":
			name := treesitter.Text(decl.ChildByFieldName("name"), code)
			if !httpVerbs[name] {
				continue
			}
			handlers = append(handlers, handler{
				verb:        name,
				body:        decl.ChildByFieldName("body"),
				params:      decl.ChildByFieldName("parameters"),
				line:        treesitter.Line(stmt),
				description: desc,
			})

		case "lexical_declaration":
			for j := uint(0); j < decl.ChildCount(); j++ {
				declarator := decl.Child(j)
				if declarator.Kind() != "variable_declarator" {
					continue
				}
				name := treesitter.Text(declarator.ChildByFieldName("name"), code)
				if !httpVerbs[name] {
					continue
				}
				value := declarator.ChildByFieldName("value")
				if value == nil {
					continue
				}
				if value.Kind() != "arrow_function" && value.Kind() != "function_expression" {
					continue
				}
				handlers = append(handlers, handler{
					verb:        name,
					body:        value.ChildByFieldName("body"),
					params:      value.ChildByFieldName("parameters"),
					line:        treesitter.Line(stmt),
					description: desc,
				})
			}
		}
	}
	return handlers
}

// leadingComment returns the text of a comment directly above statement i.
func leadingComment(root *sitter.Node, i uint, code []byte) string {
	if i == 0 {
		return ""
	}
	prev := root.Child(i - 1)
	if prev == nil || prev.Kind() != "comment" {
		return ""
	}
	text := treesitter.Text(prev, code)
	text = strings.TrimPrefix(text, "//")
	text = strings.TrimPrefix(text, "/*")
	text = strings.TrimSuffix(text, "*/")
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "*"))
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, " ")
}

// mergeByPath collapses endpoints sharing a path into one record with the
// union of methods, then sorts by path.
func mergeByPath(endpoints []models.ApiEndpoint) []models.ApiEndpoint {
	byPath := map[string]*models.ApiEndpoint{}
	var order []string
	for i := range endpoints {
		ep := endpoints[i]
		existing, ok := byPath[ep.Path]
		if !ok {
			copied := ep
			byPath[ep.Path] = &copied
			order = append(order, ep.Path)
			continue
		}
		for _, m := range ep.Methods {
			if !containsString(existing.Methods, m) {
				existing.Methods = append(existing.Methods, m)
			}
		}
		if len(existing.RequestBody) == 0 {
			existing.RequestBody = ep.RequestBody
		}
		if len(existing.ResponseBody) == 0 {
			existing.ResponseBody = ep.ResponseBody
		}
		existing.Responses = append(existing.Responses, ep.Responses...)
		existing.QueryParams = mergeFieldsByName(existing.QueryParams, ep.QueryParams)
		if existing.Dependencies == nil {
			existing.Dependencies = ep.Dependencies
		}
		if existing.Description == "" {
			existing.Description = ep.Description
		}
	}

	merged := make([]models.ApiEndpoint, 0, len(order))
	for _, path := range order {
		merged = append(merged, *byPath[path])
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Path < merged[j].Path })
	return merged
}

func mergeFieldsByName(base, extra []models.SchemaField) []models.SchemaField {
	seen := map[string]bool{}
	for _, f := range base {
		seen[f.Name] = true
	}
	for _, f := range extra {
		if !seen[f.Name] {
			seen[f.Name] = true
			base = append(base, f)
		}
	}
	return base
}

func containsString(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}

func globMatch(globs []string, rel string) bool {
	for _, g := range globs {
		if ok, err := doublestar.Match(g, rel); err == nil && ok {
			return true
		}
	}
	return false
}
