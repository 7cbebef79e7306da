// Package detect classifies a directory as a known project type. Detection
// never fails: anything unrecognized comes back as unknown.
package detect

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/apiviz/apiviz-go/internal/logging"
	"github.com/apiviz/apiviz-go/internal/models"
)

// Project types, most specific first.
const (
	TypeNextJS  = "nextjs"
	TypeNode    = "node"
	TypeFastAPI = "fastapi"
	TypePython  = "python"
	TypeUnknown = "unknown"
)

// Detect inspects root and returns its project classification. An invalid
// or inaccessible path yields {unknown, false}.
func Detect(root string) models.ProjectInfo {
	unknown := models.ProjectInfo{Type: TypeUnknown, IsProject: false}

	abs, err := filepath.Abs(root)
	if err != nil {
		return unknown
	}
	if info, err := os.Stat(abs); err != nil || !info.IsDir() {
		return unknown
	}

	if t, ok := detectNode(abs); ok {
		return models.ProjectInfo{Type: t, IsProject: true, Root: abs}
	}
	if t, ok := detectPython(abs); ok {
		return models.ProjectInfo{Type: t, IsProject: true, Root: abs}
	}
	return unknown
}

// detectNode reads package.json and next config markers.
func detectNode(root string) (string, bool) {
	pkgPath := filepath.Join(root, "package.json")
	raw, err := os.ReadFile(pkgPath)
	if err != nil {
		return "", false
	}

	for _, name := range []string{"next.config.js", "next.config.mjs", "next.config.ts"} {
		if fileExists(filepath.Join(root, name)) {
			return TypeNextJS, true
		}
	}

	var pkg struct {
		Dependencies    map[string]string `json:"dependencies"`
		DevDependencies map[string]string `json:"devDependencies"`
	}
	if err := json.Unmarshal(raw, &pkg); err != nil {
		logging.Debug("unparsable package.json", "path", pkgPath, "error", err)
		return TypeNode, true
	}
	if _, ok := pkg.Dependencies["next"]; ok {
		return TypeNextJS, true
	}
	if _, ok := pkg.DevDependencies["next"]; ok {
		return TypeNextJS, true
	}
	return TypeNode, true
}

// detectPython looks for dependency manifests and a fastapi reference.
func detectPython(root string) (string, bool) {
	manifests := []string{"requirements.txt", "pyproject.toml", "setup.py", "Pipfile"}
	found := false
	for _, name := range manifests {
		path := filepath.Join(root, name)
		raw, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		found = true
		if strings.Contains(strings.ToLower(string(raw)), "fastapi") {
			return TypeFastAPI, true
		}
	}
	if found {
		return TypePython, true
	}

	// A bare directory of Python sources still counts as a Python project.
	entries, err := os.ReadDir(root)
	if err != nil {
		return "", false
	}
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".py") {
			return TypePython, true
		}
	}
	return "", false
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
