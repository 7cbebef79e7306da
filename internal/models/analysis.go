// Package models holds the shared result types exchanged between analyzers,
// the task dispatcher, and callers. Field names follow the JSON shape
// consumers expect, so everything here marshals directly.
package models

// NodeKind distinguishes project files from external packages in the
// dependency graph.
type NodeKind string

const (
	NodeFile     NodeKind = "file"
	NodeExternal NodeKind = "external"
)

// DependencyNode is one vertex of a project dependency graph.
type DependencyNode struct {
	ID         string   `json:"id"`
	Label      string   `json:"label"`
	Kind       NodeKind `json:"type"`
	IsExternal bool     `json:"isExternal,omitempty"`
}

// DependencyEdge is a directed import relation between two nodes.
type DependencyEdge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// DependencyGraph is the full file-level graph of a project.
type DependencyGraph struct {
	Nodes []DependencyNode `json:"nodes"`
	Edges []DependencyEdge `json:"edges"`
}

// ImportType classifies how a module was imported.
type ImportType string

const (
	ImportStatic     ImportType = "static"
	ImportDynamic    ImportType = "dynamic"
	ImportRequire    ImportType = "require"
	ImportSideEffect ImportType = "side-effect"
)

// ImportDescriptor is one import found in a source file, before resolution.
type ImportDescriptor struct {
	ImportPath string     `json:"importPath"`
	ImportType ImportType `json:"importType"`
}

// SchemaField describes one field of a request or response body shape.
type SchemaField struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Optional    bool   `json:"optional"`
	Description string `json:"description,omitempty"`
}

// ResponseInfo is one response shape a handler can return.
type ResponseInfo struct {
	StatusCode int           `json:"statusCode"`
	IsError    bool          `json:"isError"`
	Fields     []SchemaField `json:"fields,omitempty"`
}

// DependencyRef is one dependency used by an endpoint, categorized by the
// pattern configuration.
type DependencyRef struct {
	Name   string `json:"name"`
	Module string `json:"module"`
	Type   string `json:"type"`
}

// GroupedDependency collapses the refs of one module into a single entry.
type GroupedDependency struct {
	Module      string   `json:"module"`
	ModuleLabel string   `json:"moduleLabel"`
	Type        string   `json:"type"`
	Items       []string `json:"items"`
	Count       int      `json:"count"`
}

// ApiDependencies collects everything an endpoint reaches for, split by
// category plus the derived views consumers render.
type ApiDependencies struct {
	Services  []DependencyRef     `json:"services"`
	Database  []DependencyRef     `json:"database"`
	External  []DependencyRef     `json:"external"`
	Utilities []DependencyRef     `json:"utilities"`
	Grouped   []GroupedDependency `json:"grouped"`
	Tables    []string            `json:"tables,omitempty"`
	APICalls  []string            `json:"apiCalls,omitempty"`
}

// ApiEndpoint is one discovered HTTP endpoint with its full analysis.
type ApiEndpoint struct {
	Path         string           `json:"path"`
	Methods      []string         `json:"methods"`
	Params       []SchemaField    `json:"params,omitempty"`
	QueryParams  []SchemaField    `json:"queryParams,omitempty"`
	RequestBody  []SchemaField    `json:"requestBody,omitempty"`
	ResponseBody []SchemaField    `json:"responseBody,omitempty"`
	Responses    []ResponseInfo   `json:"responses,omitempty"`
	Dependencies *ApiDependencies `json:"dependencies,omitempty"`
	FilePath     string           `json:"filePath"`
	RelativePath string           `json:"relativePath"`
	LineNumber   int              `json:"lineNumber,omitempty"`
	Description  string           `json:"description,omitempty"`
}

// CacheStats is a point-in-time snapshot of a cache's counters.
type CacheStats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Size    int     `json:"size"`
	HitRate float64 `json:"hitRate"`
}

// ProjectInfo is the result of project type detection.
type ProjectInfo struct {
	Type      string `json:"type"`
	IsProject bool   `json:"isProject"`
	Root      string `json:"root,omitempty"`
}
