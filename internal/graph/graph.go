// Package graph builds file-level dependency graphs for a project by walking
// its source tree, parsing imports through the language registry, and
// resolving them to files on disk.
package graph

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/apiviz/apiviz-go/internal/cache"
	"github.com/apiviz/apiviz-go/internal/config"
	"github.com/apiviz/apiviz-go/internal/logging"
	"github.com/apiviz/apiviz-go/internal/models"
	"github.com/apiviz/apiviz-go/internal/registry"
)

// projectMarkers identify a project root when walking up from a file.
var projectMarkers = []string{
	"package.json",
	"go.mod",
	"pyproject.toml",
	"requirements.txt",
	"setup.py",
	"Cargo.toml",
}

// DiscoverRoot walks up from start until it finds a directory holding a
// project marker file. Returns start's directory when nothing matches.
func DiscoverRoot(start string) string {
	dir := start
	if info, err := os.Stat(start); err != nil || !info.IsDir() {
		dir = filepath.Dir(start)
	}
	for {
		for _, marker := range projectMarkers {
			if isFile(filepath.Join(dir, marker)) {
				return dir
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	if info, err := os.Stat(start); err == nil && info.IsDir() {
		return start
	}
	return filepath.Dir(start)
}

// Builder constructs dependency graphs. Parse results are cached per file
// keyed by mtime, so repeated builds over an unchanged tree reparse nothing.
type Builder struct {
	registry *registry.Registry
	cfg      *config.AnalysisConfig
	imports  *cache.Cache[[]models.ImportDescriptor]
}

func NewBuilder(reg *registry.Registry, cfg *config.AnalysisConfig) *Builder {
	ttl := cache.DefaultTTL
	if cfg != nil && cfg.Analysis.CacheTTLMs > 0 {
		ttl = cfg.Analysis.CacheTTL()
	}
	return &Builder{
		registry: reg,
		cfg:      cfg,
		imports:  cache.New[[]models.ImportDescriptor](ttl, cache.DefaultMaxSize),
	}
}

// InvalidateFile drops the cached parse for one file.
func (b *Builder) InvalidateFile(path string) {
	b.imports.Invalidate(path)
}

// InvalidateDir drops cached parses under a directory.
func (b *Builder) InvalidateDir(dir string) {
	b.imports.InvalidateDirectory(dir)
}

// CacheStats reports hit/miss counters for the parse cache.
func (b *Builder) CacheStats() models.CacheStats {
	return b.imports.Stats()
}

// Build scans scanDir and returns its dependency graph, resolving aliased
// and bare specifiers against projectRoot. Node ids are normalized absolute
// paths. Every scanned file becomes a file node, including files whose
// imports fail to parse (those contribute no edges); a resolved import
// target outside the scanned set becomes an external node. Unresolvable
// bare specifiers are external packages and contribute nothing. Self-loops
// are skipped. Distinct import statements hitting the same target keep
// their own edges; nodes and edges come back sorted so two builds of one
// tree compare equal.
func (b *Builder) Build(scanDir, projectRoot string) (*models.DependencyGraph, error) {
	scanDir, err := filepath.Abs(scanDir)
	if err != nil {
		return nil, err
	}
	if projectRoot == "" {
		projectRoot = DiscoverRoot(scanDir)
	}
	root, err := filepath.Abs(projectRoot)
	if err != nil {
		return nil, err
	}

	files, err := b.collectFiles(scanDir)
	if err != nil {
		return nil, err
	}
	scanned := make(map[string]bool, len(files))
	for _, f := range files {
		scanned[f] = true
	}

	nodes := map[string]models.DependencyNode{}
	edges := []models.DependencyEdge{}

	for _, file := range files {
		nodes[file] = models.DependencyNode{
			ID:    file,
			Label: filepath.Base(file),
			Kind:  models.NodeFile,
		}

		imports, err := b.parseImports(file)
		if err != nil {
			logging.Warn("skipping unparsable file", "file", file, "error", err)
			continue
		}

		analyzer := b.registry.ForFile(file)
		for _, imp := range imports {
			target, ok := analyzer.ResolveImport(imp.ImportPath, file, root)
			if !ok || target == file {
				continue
			}
			if !scanned[target] {
				nodes[target] = models.DependencyNode{
					ID:         target,
					Label:      filepath.Base(target),
					Kind:       models.NodeExternal,
					IsExternal: true,
				}
			}
			edges = append(edges, models.DependencyEdge{Source: file, Target: target})
		}
	}

	g := &models.DependencyGraph{
		Nodes: make([]models.DependencyNode, 0, len(nodes)),
		Edges: edges,
	}
	for _, n := range nodes {
		g.Nodes = append(g.Nodes, n)
	}
	sort.Slice(g.Nodes, func(i, j int) bool { return g.Nodes[i].ID < g.Nodes[j].ID })
	sort.Slice(g.Edges, func(i, j int) bool {
		if g.Edges[i].Source != g.Edges[j].Source {
			return g.Edges[i].Source < g.Edges[j].Source
		}
		return g.Edges[i].Target < g.Edges[j].Target
	})
	return g, nil
}

// collectFiles walks the tree gathering supported source files, pruning
// directories excluded by the registry's ignore globs and the config.
func (b *Builder) collectFiles(scanDir string) ([]string, error) {
	ignore := b.registry.IgnoreGlobs()
	if b.cfg != nil {
		ignore = append(ignore, b.cfg.Exclude...)
	}

	var files []string
	err := filepath.WalkDir(scanDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logging.Warn("walk error", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		rel, relErr := filepath.Rel(scanDir, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if rel == "." {
				return nil
			}
			// Match with a phantom child so "**/node_modules/**"
			// style globs prune the walk early.
			if matchesAny(ignore, rel) || matchesAny(ignore, rel+"/x") {
				return filepath.SkipDir
			}
			return nil
		}

		if matchesAny(ignore, rel) {
			return nil
		}
		if b.registry.ForFile(path) == nil {
			return nil
		}
		if b.cfg != nil && len(b.cfg.Include) > 0 && !matchesAny(b.cfg.Include, rel) {
			return nil
		}
		files = append(files, normalize(path))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func (b *Builder) parseImports(file string) ([]models.ImportDescriptor, error) {
	if cached, ok := b.imports.Get(file); ok {
		return cached, nil
	}
	analyzer := b.registry.ForFile(file)
	imports, err := analyzer.ParseImports(file)
	if err != nil {
		return nil, err
	}
	if err := b.imports.Set(file, imports); err != nil {
		logging.Debug("parse result not cached", "file", file, "error", err)
	}
	return imports, nil
}

func matchesAny(globs []string, rel string) bool {
	for _, g := range globs {
		if ok, err := doublestar.Match(g, rel); err == nil && ok {
			return true
		}
	}
	return false
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
