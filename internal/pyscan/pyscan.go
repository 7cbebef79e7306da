// Package pyscan runs the bundled Python route scanner out of process and
// maps its JSON output onto the shared endpoint model. The scanner script is
// embedded at build time and materialized to a temp directory per run, so
// the binary stays self-contained.
package pyscan

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "embed"

	"github.com/google/uuid"

	"github.com/apiviz/apiviz-go/internal/errors"
	"github.com/apiviz/apiviz-go/internal/logging"
	"github.com/apiviz/apiviz-go/internal/models"
)

//go:embed scripts/scanner.py
var scannerScript []byte

// DefaultTimeout bounds one scanner run.
const DefaultTimeout = 60 * time.Second

// Analyzer shells out to python3 for route discovery in Python projects.
type Analyzer struct {
	python  string
	timeout time.Duration
}

func NewAnalyzer() *Analyzer {
	return &Analyzer{python: "python3", timeout: DefaultTimeout}
}

// scannerRoute mirrors one element of the scanner's JSON output.
type scannerRoute struct {
	Path         string         `json:"path"`
	Method       string         `json:"method"`
	FullPath     string         `json:"full_path"`
	LineNo       int            `json:"lineno"`
	FilePath     string         `json:"file_path"`
	FunctionName string         `json:"function_name"`
	Dependencies *scannerDeps   `json:"dependencies"`
	Request      []scannerField `json:"request_schema"`
	Response     []scannerField `json:"response_schema"`
}

type scannerField struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Required bool   `json:"required"`
}

type scannerDeps struct {
	Services  []models.GroupedDependency `json:"services"`
	Database  []models.GroupedDependency `json:"database"`
	External  []models.GroupedDependency `json:"external"`
	Utilities []models.GroupedDependency `json:"utilities"`
	Grouped   []models.GroupedDependency `json:"grouped"`
	Tables    []string                   `json:"tables"`
	APICalls  []string                   `json:"apiCalls"`
}

// AnalyzeProject scans a Python project for endpoints. Subprocess failures
// and malformed output resolve to an empty list, never an error to the
// caller; the raw output is logged for diagnostics.
func (a *Analyzer) AnalyzeProject(ctx context.Context, root string) []models.ApiEndpoint {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return []models.ApiEndpoint{}
	}

	raw, err := a.run(ctx, absRoot)
	if err != nil {
		logging.Warn("python scanner failed", "root", absRoot, "error", err)
		return []models.ApiEndpoint{}
	}

	routes, err := extractRoutes(raw)
	if err != nil {
		logging.Warn("python scanner output unusable",
			"root", absRoot,
			"error", err,
			"raw", truncate(string(raw), 2000))
		return []models.ApiEndpoint{}
	}
	return mapEndpoints(absRoot, routes)
}

// run materializes the embedded script and executes it against root.
func (a *Analyzer) run(ctx context.Context, root string) ([]byte, error) {
	dir := filepath.Join(os.TempDir(), "apiviz-scanner-"+uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.FileSystemError(err, "create scanner dir")
	}
	defer os.RemoveAll(dir)

	script := filepath.Join(dir, "scanner.py")
	if err := os.WriteFile(script, scannerScript, 0o644); err != nil {
		return nil, errors.FileSystemError(err, "write scanner script")
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, a.python, script, root)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, errors.ExternalError(err, "python scanner: "+stderr.String())
	}
	if stderr.Len() > 0 {
		logging.Debug("python scanner stderr", "output", truncate(stderr.String(), 2000))
	}
	return stdout.Bytes(), nil
}

// extractRoutes pulls the JSON array out of combined stdout, tolerating
// incidental log noise around it.
func extractRoutes(raw []byte) ([]scannerRoute, error) {
	start := bytes.IndexByte(raw, '[')
	end := bytes.LastIndexByte(raw, ']')
	if start < 0 || end < start {
		return nil, errors.New(errors.ErrorTypeExternal, "no JSON array in scanner output")
	}
	var routes []scannerRoute
	if err := json.Unmarshal(raw[start:end+1], &routes); err != nil {
		return nil, errors.ExternalError(err, "decode scanner output")
	}
	return routes, nil
}

// mapEndpoints converts scanner routes to endpoints, merging by full path.
func mapEndpoints(root string, routes []scannerRoute) []models.ApiEndpoint {
	byPath := map[string]*models.ApiEndpoint{}
	var order []string

	for _, r := range routes {
		path := r.FullPath
		if path == "" {
			path = r.Path
		}
		if path == "" {
			continue
		}

		ep, ok := byPath[path]
		if !ok {
			ep = &models.ApiEndpoint{
				Path:         path,
				Params:       pathParams(path),
				FilePath:     filepath.Join(root, filepath.FromSlash(r.FilePath)),
				RelativePath: r.FilePath,
				LineNumber:   r.LineNo,
				Description:  r.FunctionName,
			}
			byPath[path] = ep
			order = append(order, path)
		}
		if r.Method != "" && !containsString(ep.Methods, r.Method) {
			ep.Methods = append(ep.Methods, r.Method)
		}
		if len(ep.RequestBody) == 0 {
			ep.RequestBody = mapFields(r.Request)
		}
		if len(ep.ResponseBody) == 0 {
			ep.ResponseBody = mapFields(r.Response)
		}
		if ep.Dependencies == nil && r.Dependencies != nil {
			ep.Dependencies = mapDeps(r.Dependencies)
		}
	}

	endpoints := make([]models.ApiEndpoint, 0, len(order))
	for _, path := range order {
		endpoints = append(endpoints, *byPath[path])
	}
	sort.Slice(endpoints, func(i, j int) bool { return endpoints[i].Path < endpoints[j].Path })
	return endpoints
}

func mapFields(fields []scannerField) []models.SchemaField {
	var mapped []models.SchemaField
	for _, f := range fields {
		mapped = append(mapped, models.SchemaField{
			Name:     f.Name,
			Type:     f.Type,
			Optional: !f.Required,
		})
	}
	return mapped
}

// mapDeps flattens the scanner's grouped categories into refs and carries
// the grouped view through unchanged.
func mapDeps(d *scannerDeps) *models.ApiDependencies {
	result := &models.ApiDependencies{
		Services:  groupsToRefs(d.Services, "services"),
		Database:  groupsToRefs(d.Database, "database"),
		External:  groupsToRefs(d.External, "external"),
		Utilities: groupsToRefs(d.Utilities, "utilities"),
		Grouped:   d.Grouped,
		Tables:    d.Tables,
		APICalls:  d.APICalls,
	}
	if result.Grouped == nil {
		result.Grouped = []models.GroupedDependency{}
	}
	return result
}

func groupsToRefs(groups []models.GroupedDependency, kind string) []models.DependencyRef {
	refs := []models.DependencyRef{}
	for _, g := range groups {
		for _, item := range g.Items {
			refs = append(refs, models.DependencyRef{
				Name:   item,
				Module: g.Module,
				Type:   kind,
			})
		}
	}
	return refs
}

// pathParams extracts "{param}" segments from a resolved path.
func pathParams(path string) []models.SchemaField {
	var params []models.SchemaField
	for _, seg := range strings.Split(path, "/") {
		if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
			params = append(params, models.SchemaField{
				Name: strings.Trim(seg, "{}"),
				Type: "string",
			})
		}
	}
	return params
}

func containsString(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
