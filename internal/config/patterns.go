package config

import "strings"

// MatchesPattern reports whether an import specifier matches any of the
// configured patterns. Three forms are recognized:
//
//   - exact:        "drizzle-orm" matches "drizzle-orm"
//   - wildcard:     "@/services/*" matches "@/services/users" and deeper
//   - package root: "drizzle-orm" matches "drizzle-orm/pg-core"
func MatchesPattern(value string, patterns []string) bool {
	for _, pattern := range patterns {
		if value == pattern {
			return true
		}
		if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
			if strings.HasPrefix(value, prefix+"/") {
				return true
			}
			continue
		}
		if strings.HasPrefix(value, pattern+"/") {
			return true
		}
	}
	return false
}

// Categorize maps an import specifier to its dependency category, or ""
// when no pattern matches. Database wins over services wins over utilities,
// matching the order the route extractor reports them in.
func (c *AnalysisConfig) Categorize(specifier string) string {
	switch {
	case MatchesPattern(specifier, c.Patterns.Database):
		return "database"
	case MatchesPattern(specifier, c.Patterns.Services):
		return "services"
	case MatchesPattern(specifier, c.Patterns.Utilities):
		return "utilities"
	case MatchesPattern(specifier, c.Patterns.External):
		return "external"
	default:
		return ""
	}
}
