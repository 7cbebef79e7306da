package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/apiviz/apiviz-go/internal/logging"
)

// AnalysisConfig holds the project-level classification rules used by the
// route extractors plus analysis tuning knobs.
type AnalysisConfig struct {
	Include []string `json:"include"`
	Exclude []string `json:"exclude"`

	Patterns PatternConfig  `json:"patterns"`
	Database DatabaseConfig `json:"database"`
	Analysis AnalysisOpts   `json:"analysis"`
}

// PatternConfig maps import-specifier patterns to dependency categories.
type PatternConfig struct {
	Database  []string `json:"database"`
	Services  []string `json:"services"`
	Utilities []string `json:"utilities"`
	External  []string `json:"external"`
}

// DatabaseConfig tunes the ORM call heuristics.
type DatabaseConfig struct {
	ClientNames   []string `json:"clientNames"`
	TableSuffixes []string `json:"tableSuffixes"`
}

// AnalysisOpts tunes caching and type inference.
type AnalysisOpts struct {
	Cache        bool `json:"cache"`
	CacheTTLMs   int  `json:"cacheTtl"`
	MaxTypeDepth int  `json:"maxTypeDepth"`
}

// CacheTTL returns the configured TTL as a duration.
func (a AnalysisOpts) CacheTTL() time.Duration {
	return time.Duration(a.CacheTTLMs) * time.Millisecond
}

// candidateFiles is the fixed search order in the project root. The first
// file that exists and parses wins.
var candidateFiles = []string{
	".api-viz.config.js",
	".api-viz.config.mjs",
	".api-viz.config.json",
	"api-viz.config.js",
	"api-viz.config.json",
}

// Default returns the built-in classification rules.
func Default() *AnalysisConfig {
	return &AnalysisConfig{
		Include: []string{"**/*.ts", "**/*.tsx", "**/*.js", "**/*.jsx", "**/*.py"},
		Exclude: []string{"**/node_modules/**", "**/.next/**", "**/dist/**", "**/build/**"},
		Patterns: PatternConfig{
			Database:  []string{"drizzle-orm", "@prisma/client", "@/db/*", "@/lib/db", "@/drizzle/*", "@supabase/supabase-js"},
			Services:  []string{"@/services/*", "@/lib/services/*", "@/server/*"},
			Utilities: []string{"@/utils/*", "@/lib/*", "@/helpers/*"},
			External:  []string{"axios", "node-fetch", "got", "ky"},
		},
		Database: DatabaseConfig{
			ClientNames:   []string{"prisma", "db", "drizzle", "supabase"},
			TableSuffixes: []string{"Table", "Schema"},
		},
		Analysis: AnalysisOpts{
			Cache:        true,
			CacheTTLMs:   int(5 * time.Minute / time.Millisecond),
			MaxTypeDepth: 5,
		},
	}
}

// Load resolves the effective config for a project root: the first candidate
// file that parses is merged one level deep over the defaults; a file that
// fails to parse is logged and the search continues. Environment variables
// (APIVIZ_ prefix) override last.
func Load(projectRoot string) *AnalysisConfig {
	loadEnvFiles(projectRoot)

	cfg := Default()

	for _, name := range candidateFiles {
		path := filepath.Join(projectRoot, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}

		user, err := parseFile(path)
		if err != nil {
			logging.Warn("failed to parse config file, continuing search",
				"path", path, "error", err)
			continue
		}

		merge(cfg, user)
		logging.Debug("loaded analysis config", "path", path)
		break
	}

	applyEnvOverrides(cfg)
	return cfg
}

// parseFile parses one candidate. JSON is decoded directly; .js/.mjs files
// are evaluated fresh by a node subprocess each call, so edits take effect
// without any module-cache staleness.
func parseFile(path string) (*fileConfig, error) {
	var data []byte
	var err error

	switch filepath.Ext(path) {
	case ".json":
		data, err = os.ReadFile(path)
	default:
		data, err = evalJSConfig(path)
	}
	if err != nil {
		return nil, err
	}

	var user fileConfig
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// fileConfig mirrors AnalysisConfig with pointer fields so absent keys can be
// told apart from explicit zero values during the merge.
type fileConfig struct {
	Include  *[]string `json:"include"`
	Exclude  *[]string `json:"exclude"`
	Patterns *struct {
		Database  *[]string `json:"database"`
		Services  *[]string `json:"services"`
		Utilities *[]string `json:"utilities"`
		External  *[]string `json:"external"`
	} `json:"patterns"`
	Database *struct {
		ClientNames   *[]string `json:"clientNames"`
		TableSuffixes *[]string `json:"tableSuffixes"`
	} `json:"database"`
	Analysis *struct {
		Cache        *bool `json:"cache"`
		CacheTTLMs   *int  `json:"cacheTtl"`
		MaxTypeDepth *int  `json:"maxTypeDepth"`
	} `json:"analysis"`
}

// merge overlays user values onto cfg. Nested objects merge one level deep;
// there is no recursive merge beyond that.
func merge(cfg *AnalysisConfig, user *fileConfig) {
	if user.Include != nil {
		cfg.Include = *user.Include
	}
	if user.Exclude != nil {
		cfg.Exclude = *user.Exclude
	}
	if p := user.Patterns; p != nil {
		if p.Database != nil {
			cfg.Patterns.Database = *p.Database
		}
		if p.Services != nil {
			cfg.Patterns.Services = *p.Services
		}
		if p.Utilities != nil {
			cfg.Patterns.Utilities = *p.Utilities
		}
		if p.External != nil {
			cfg.Patterns.External = *p.External
		}
	}
	if d := user.Database; d != nil {
		if d.ClientNames != nil {
			cfg.Database.ClientNames = *d.ClientNames
		}
		if d.TableSuffixes != nil {
			cfg.Database.TableSuffixes = *d.TableSuffixes
		}
	}
	if a := user.Analysis; a != nil {
		if a.Cache != nil {
			cfg.Analysis.Cache = *a.Cache
		}
		if a.CacheTTLMs != nil {
			cfg.Analysis.CacheTTLMs = *a.CacheTTLMs
		}
		if a.MaxTypeDepth != nil {
			cfg.Analysis.MaxTypeDepth = *a.MaxTypeDepth
		}
	}
}

func loadEnvFiles(projectRoot string) {
	for _, name := range []string{".env.local", ".env"} {
		path := filepath.Join(projectRoot, name)
		if _, err := os.Stat(path); err == nil {
			godotenv.Load(path)
		}
	}
}

func applyEnvOverrides(cfg *AnalysisConfig) {
	v := viper.New()
	v.SetEnvPrefix("APIVIZ")
	v.AutomaticEnv()

	if s := v.GetString("CACHE"); s != "" {
		if b, err := strconv.ParseBool(s); err == nil {
			cfg.Analysis.Cache = b
		}
	}
	if s := v.GetString("CACHE_TTL_MS"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			cfg.Analysis.CacheTTLMs = n
		}
	}
	if s := v.GetString("MAX_TYPE_DEPTH"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			cfg.Analysis.MaxTypeDepth = n
		}
	}
}
