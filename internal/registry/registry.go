package registry

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/apiviz/apiviz-go/internal/models"
)

// LanguageAnalyzer is one import-parsing/resolution strategy, registered by
// the file extensions it claims.
type LanguageAnalyzer interface {
	Name() string
	Extensions() []string
	IgnoreGlobs() []string

	// ParseImports returns the raw import descriptors of one source file.
	ParseImports(path string) ([]models.ImportDescriptor, error)

	// ResolveImport maps a specifier to an absolute file path. The second
	// return is false for unresolvable specifiers (external packages).
	ResolveImport(specifier, fromFile, projectRoot string) (string, bool)
}

// Registry indexes analyzers by extension.
type Registry struct {
	byExt     map[string]LanguageAnalyzer
	analyzers []LanguageAnalyzer
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{byExt: make(map[string]LanguageAnalyzer)}
}

// NewDefault returns a registry with the built-in analyzers. This is the
// compile-time registration table; nothing registers itself at import time.
func NewDefault() *Registry {
	r := New()
	r.Register(NewTypeScriptAnalyzer())
	r.Register(NewPythonAnalyzer())
	return r
}

// Register indexes an analyzer by every extension it declares. Extension
// clashes are not enforced: the last registration wins, which is a known
// limitation rather than a supported feature.
func (r *Registry) Register(a LanguageAnalyzer) {
	r.analyzers = append(r.analyzers, a)
	for _, ext := range a.Extensions() {
		r.byExt[strings.ToLower(ext)] = a
	}
}

// ForFile returns the analyzer registered for the file's extension, or nil
// when the extension is unsupported. Callers skip nil silently.
func (r *Registry) ForFile(path string) LanguageAnalyzer {
	return r.byExt[strings.ToLower(filepath.Ext(path))]
}

// SupportedExtensions returns every registered extension, sorted.
func (r *Registry) SupportedExtensions() []string {
	exts := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Analyzers returns the registered analyzers in registration order.
func (r *Registry) Analyzers() []LanguageAnalyzer {
	return r.analyzers
}

// IgnoreGlobs returns the union of ignore globs across all analyzers.
func (r *Registry) IgnoreGlobs() []string {
	seen := make(map[string]bool)
	var globs []string
	for _, a := range r.analyzers {
		for _, g := range a.IgnoreGlobs() {
			if !seen[g] {
				seen[g] = true
				globs = append(globs, g)
			}
		}
	}
	return globs
}
