// Package deps post-processes categorized dependency lists into the grouped
// display form consumers render.
package deps

import (
	"sort"
	"strings"

	"github.com/apiviz/apiviz-go/internal/models"
)

// aliasPrefixes are import shorthands stripped once when shortening labels.
var aliasPrefixes = []string{"@/", "~/"}

// Group merges the four categorized lists into display groups keyed by
// module and category, with deduplicated member names and a count.
func Group(d *models.ApiDependencies) []models.GroupedDependency {
	if d == nil {
		return []models.GroupedDependency{}
	}

	type groupKey struct {
		module string
		kind   string
	}
	groups := map[groupKey]*models.GroupedDependency{}
	var order []groupKey

	collect := func(refs []models.DependencyRef) {
		for _, ref := range refs {
			key := groupKey{module: ref.Module, kind: ref.Type}
			g, ok := groups[key]
			if !ok {
				g = &models.GroupedDependency{
					Module:      ref.Module,
					ModuleLabel: ShortLabel(ref.Module),
					Type:        ref.Type,
				}
				groups[key] = g
				order = append(order, key)
			}
			if !containsString(g.Items, ref.Name) {
				g.Items = append(g.Items, ref.Name)
				g.Count = len(g.Items)
			}
		}
	}

	collect(d.Services)
	collect(d.Database)
	collect(d.External)
	collect(d.Utilities)

	result := make([]models.GroupedDependency, 0, len(order))
	for _, key := range order {
		result = append(result, *groups[key])
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Type != result[j].Type {
			return result[i].Type < result[j].Type
		}
		return result[i].Module < result[j].Module
	})
	return result
}

// ShortLabel shortens a module specifier for display: a single leading alias
// prefix is stripped; otherwise multi-segment specifiers keep only their
// last path segment. Scoped package roots keep their full name.
func ShortLabel(module string) string {
	for _, prefix := range aliasPrefixes {
		if rest, ok := strings.CutPrefix(module, prefix); ok && rest != "" {
			return rest
		}
	}
	if strings.HasPrefix(module, "@") && strings.Count(module, "/") == 1 {
		return module
	}
	if i := strings.LastIndexByte(module, '/'); i >= 0 && i+1 < len(module) {
		return module[i+1:]
	}
	return module
}

func containsString(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
