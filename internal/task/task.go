// Package task is the analysis entry point for callers: typed
// request/response dispatch with crash containment. A panicking analysis
// never reaches the caller; it resolves to the task's safe default instead.
package task

import (
	"context"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/apiviz/apiviz-go/internal/config"
	"github.com/apiviz/apiviz-go/internal/detect"
	"github.com/apiviz/apiviz-go/internal/graph"
	"github.com/apiviz/apiviz-go/internal/logging"
	"github.com/apiviz/apiviz-go/internal/models"
	"github.com/apiviz/apiviz-go/internal/program"
	"github.com/apiviz/apiviz-go/internal/pyscan"
	"github.com/apiviz/apiviz-go/internal/registry"
	"github.com/apiviz/apiviz-go/internal/routes"
)

// Type enumerates the dispatchable analysis tasks.
type Type string

const (
	TypeDeps         Type = "deps"
	TypeDetect       Type = "detect-project"
	TypeRoute        Type = "analyze-route"
	TypeAPIEndpoints Type = "analyze-api-endpoints"
	TypeCacheStats   Type = "cache-stats"
)

// Request is one unit of analysis work.
type Request struct {
	ID      string  `json:"id,omitempty"`
	Type    Type    `json:"type"`
	Payload Payload `json:"payload"`
}

// Payload carries the task arguments. Path is the scan target; File narrows
// analyze-route to a single handler file.
type Payload struct {
	Path string `json:"path"`
	File string `json:"file,omitempty"`
}

// Response is the task outcome. Status is "success" or "error"; Results is
// always populated on success, holding the task-specific shape.
type Response struct {
	ID      string `json:"id,omitempty"`
	Status  string `json:"type"`
	Results any    `json:"results,omitempty"`
	Error   string `json:"error,omitempty"`
}

// projectContext bundles the per-root analyzer state: config, caches, and
// the type program. One exists per project root for the dispatcher's
// lifetime.
type projectContext struct {
	root     string
	cfg      *config.AnalysisConfig
	graph    *graph.Builder
	routes   *routes.Extractor
	programs *program.Manager
}

func (pc *projectContext) invalidate() {
	pc.graph.InvalidateDir(pc.root)
	pc.routes.Invalidate(pc.root)
	pc.programs.Invalidate(pc.root)
}

// Dispatcher routes requests to analyzers. Analysis for one root is
// single-flight: concurrent identical requests share one execution, because
// the per-root caches and program are not built for concurrent mutation.
type Dispatcher struct {
	mu       sync.Mutex
	contexts map[string]*projectContext
	group    singleflight.Group
	programs *program.Manager
	py       *pyscan.Analyzer
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		contexts: make(map[string]*projectContext),
		programs: program.NewManager(),
		py:       pyscan.NewAnalyzer(),
	}
}

// contextFor returns the analyzer context for a root, creating it on first
// use. Config loads once per context.
func (d *Dispatcher) contextFor(root string) *projectContext {
	d.mu.Lock()
	defer d.mu.Unlock()
	if pc, ok := d.contexts[root]; ok {
		return pc
	}
	cfg := config.Load(root)
	pc := &projectContext{
		root:     root,
		cfg:      cfg,
		graph:    graph.NewBuilder(registry.NewDefault(), cfg),
		routes:   routes.NewExtractor(cfg, d.programs),
		programs: d.programs,
	}
	d.contexts[root] = pc
	return pc
}

// Invalidate drops all cached state for a root. Watchers call this when
// files change.
func (d *Dispatcher) Invalidate(root string) {
	d.mu.Lock()
	pc, ok := d.contexts[root]
	d.mu.Unlock()
	if ok {
		pc.invalidate()
		logging.Debug("analysis state invalidated", "root", root)
	} else {
		d.programs.Invalidate(root)
	}
}

// Dispatch executes one request and always returns a response: task
// failures and panics resolve to the task's safe default with a success
// status, so callers never block on analysis trouble.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) Response {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	results := d.execute(ctx, req)
	return Response{ID: req.ID, Status: "success", Results: results}
}

func (d *Dispatcher) execute(ctx context.Context, req Request) (results any) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error("analysis task panicked",
				"task", string(req.Type),
				"path", req.Payload.Path,
				"panic", r)
			results = safeDefault(req.Type)
		}
	}()

	key := string(req.Type) + ":" + req.Payload.Path + ":" + req.Payload.File
	v, _, _ := d.group.Do(key, func() (any, error) {
		return d.run(ctx, req), nil
	})
	if v == nil {
		return safeDefault(req.Type)
	}
	return v
}

func (d *Dispatcher) run(ctx context.Context, req Request) any {
	defer func() {
		// Contain panics inside the shared singleflight execution too,
		// so one crashing caller cannot poison the others.
		if r := recover(); r != nil {
			logging.Error("analysis task panicked",
				"task", string(req.Type),
				"path", req.Payload.Path,
				"panic", r)
		}
	}()

	switch req.Type {
	case TypeDeps:
		root := graph.DiscoverRoot(req.Payload.Path)
		pc := d.contextFor(root)
		g, err := pc.graph.Build(req.Payload.Path, root)
		if err != nil {
			logging.Warn("graph build failed", "path", req.Payload.Path, "error", err)
			return emptyGraph()
		}
		return g

	case TypeDetect:
		return detect.Detect(req.Payload.Path)

	case TypeRoute:
		return d.analyzeRoute(ctx, req.Payload)

	case TypeAPIEndpoints:
		return d.analyzeEndpoints(ctx, req.Payload.Path)

	case TypeCacheStats:
		return d.cacheStats(req.Payload.Path)

	default:
		logging.Warn("unknown task type", "task", string(req.Type))
		return nil
	}
}

// analyzeRoute analyzes a single handler file.
func (d *Dispatcher) analyzeRoute(ctx context.Context, p Payload) []models.ApiEndpoint {
	file := p.File
	if file == "" {
		file = p.Path
	}
	if abs, err := filepath.Abs(file); err == nil {
		file = abs
	}
	root := graph.DiscoverRoot(file)

	if strings.EqualFold(filepath.Ext(file), ".py") {
		matched := []models.ApiEndpoint{}
		for _, ep := range d.py.AnalyzeProject(ctx, root) {
			if ep.FilePath == file {
				matched = append(matched, ep)
			}
		}
		return matched
	}

	pc := d.contextFor(root)
	return pc.routes.AnalyzeFile(root, file)
}

// analyzeEndpoints picks the per-language analyzer from project detection.
func (d *Dispatcher) analyzeEndpoints(ctx context.Context, path string) []models.ApiEndpoint {
	info := detect.Detect(path)
	switch info.Type {
	case detect.TypeFastAPI, detect.TypePython:
		return d.py.AnalyzeProject(ctx, path)
	case detect.TypeNextJS, detect.TypeNode:
		pc := d.contextFor(path)
		return pc.routes.AnalyzeProject(path)
	default:
		// Unknown layouts get both passes; whichever finds routes wins.
		pc := d.contextFor(path)
		if eps := pc.routes.AnalyzeProject(path); len(eps) > 0 {
			return eps
		}
		return d.py.AnalyzeProject(ctx, path)
	}
}

// cacheStats aggregates the per-kind cache counters for one root.
func (d *Dispatcher) cacheStats(path string) map[string]models.CacheStats {
	root := graph.DiscoverRoot(path)
	pc := d.contextFor(root)
	return map[string]models.CacheStats{
		"dependencies": pc.graph.CacheStats(),
		"routes":       pc.routes.CacheStats(),
	}
}

// safeDefault is the crash-containment fallback per task type.
func safeDefault(t Type) any {
	switch t {
	case TypeDeps:
		return emptyGraph()
	case TypeDetect:
		return models.ProjectInfo{Type: detect.TypeUnknown, IsProject: false}
	case TypeRoute, TypeAPIEndpoints:
		return []models.ApiEndpoint{}
	case TypeCacheStats:
		return map[string]models.CacheStats{}
	default:
		return nil
	}
}

func emptyGraph() *models.DependencyGraph {
	return &models.DependencyGraph{
		Nodes: []models.DependencyNode{},
		Edges: []models.DependencyEdge{},
	}
}
