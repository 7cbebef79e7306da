package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apiviz/apiviz-go/internal/models"
)

type fakeAnalyzer struct {
	name string
	exts []string
}

func (f *fakeAnalyzer) Name() string          { return f.name }
func (f *fakeAnalyzer) Extensions() []string  { return f.exts }
func (f *fakeAnalyzer) IgnoreGlobs() []string { return []string{"**/.git/**"} }
func (f *fakeAnalyzer) ParseImports(string) ([]models.ImportDescriptor, error) {
	return nil, nil
}
func (f *fakeAnalyzer) ResolveImport(string, string, string) (string, bool) {
	return "", false
}

func TestForFileLookup(t *testing.T) {
	r := NewDefault()

	ts := r.ForFile("/proj/src/app/api/users/route.ts")
	require.NotNil(t, ts)
	assert.Equal(t, "typescript", ts.Name())

	py := r.ForFile("/proj/app/main.py")
	require.NotNil(t, py)
	assert.Equal(t, "python", py.Name())

	assert.Nil(t, r.ForFile("/proj/README.md"))
	assert.Nil(t, r.ForFile("/proj/Makefile"))
}

func TestLastRegistrationWins(t *testing.T) {
	r := New()
	r.Register(&fakeAnalyzer{name: "first", exts: []string{".ts"}})
	r.Register(&fakeAnalyzer{name: "second", exts: []string{".ts"}})

	got := r.ForFile("x.ts")
	require.NotNil(t, got)
	assert.Equal(t, "second", got.Name())
}

func TestSupportedExtensionsSorted(t *testing.T) {
	r := NewDefault()
	exts := r.SupportedExtensions()
	require.NotEmpty(t, exts)
	assert.IsType(t, []string{}, exts)
	for i := 1; i < len(exts); i++ {
		assert.LessOrEqual(t, exts[i-1], exts[i])
	}
	assert.Contains(t, exts, ".ts")
	assert.Contains(t, exts, ".py")
}

func TestIgnoreGlobsDeduped(t *testing.T) {
	r := New()
	r.Register(&fakeAnalyzer{name: "a", exts: []string{".a"}})
	r.Register(&fakeAnalyzer{name: "b", exts: []string{".b"}})

	globs := r.IgnoreGlobs()
	count := 0
	for _, g := range globs {
		if g == "**/.git/**" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestTypeScriptParseImports(t *testing.T) {
	dir := t.TempDir()
	src := `import React from "react";
import { db } from "@/db/client";
import "./globals.css";
export { helper } from "./lib/helper";
const mod = await import("./dynamic");
const legacy = require("./legacy");
`
	path := filepath.Join(dir, "page.tsx")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))

	a := NewTypeScriptAnalyzer()
	imports, err := a.ParseImports(path)
	require.NoError(t, err)

	byPath := map[string]models.ImportType{}
	for _, imp := range imports {
		byPath[imp.ImportPath] = imp.ImportType
	}

	assert.Equal(t, models.ImportStatic, byPath["react"])
	assert.Equal(t, models.ImportStatic, byPath["@/db/client"])
	assert.Equal(t, models.ImportSideEffect, byPath["./globals.css"])
	assert.Equal(t, models.ImportStatic, byPath["./lib/helper"])
	assert.Equal(t, models.ImportDynamic, byPath["./dynamic"])
	assert.Equal(t, models.ImportRequire, byPath["./legacy"])
}

func TestTypeScriptResolveImport(t *testing.T) {
	root := t.TempDir()
	mustWrite := func(rel string) {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("export {}"), 0o644))
	}
	mustWrite("src/lib/util.ts")
	mustWrite("src/components/index.tsx")
	mustWrite("app/api/users/route.ts")

	a := NewTypeScriptAnalyzer()
	from := filepath.Join(root, "app/api/users/route.ts")

	resolved, ok := a.ResolveImport("@/lib/util", from, root)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, "src/lib/util.ts"), resolved)

	resolved, ok = a.ResolveImport("@/components", from, root)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, "src/components/index.tsx"), resolved)

	mustWrite("app/api/users/helpers.ts")
	resolved, ok = a.ResolveImport("./helpers", from, root)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, "app/api/users/helpers.ts"), resolved)

	_, ok = a.ResolveImport("next/server", from, root)
	assert.False(t, ok)
}

func TestPythonParseImports(t *testing.T) {
	dir := t.TempDir()
	src := `import os
import app.models as m
from fastapi import APIRouter
from .schemas import UserRead
from ..core import settings
`
	path := filepath.Join(dir, "routes.py")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))

	a := NewPythonAnalyzer()
	imports, err := a.ParseImports(path)
	require.NoError(t, err)

	var paths []string
	for _, imp := range imports {
		paths = append(paths, imp.ImportPath)
	}
	assert.ElementsMatch(t, []string{"os", "app.models", "fastapi", ".schemas", "..core"}, paths)
}

func TestPythonResolveImport(t *testing.T) {
	root := t.TempDir()
	mustWrite := func(rel string) {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(""), 0o644))
	}
	mustWrite("app/__init__.py")
	mustWrite("app/models.py")
	mustWrite("app/api/__init__.py")
	mustWrite("app/api/routes.py")
	mustWrite("app/schemas.py")

	a := NewPythonAnalyzer()
	from := filepath.Join(root, "app/api/routes.py")

	// Absolute import, longest file prefix wins over trailing attribute.
	resolved, ok := a.ResolveImport("app.models", from, root)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, "app/models.py"), resolved)

	resolved, ok = a.ResolveImport("app.models.User", from, root)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, "app/models.py"), resolved)

	// Package import hits __init__.py.
	resolved, ok = a.ResolveImport("app.api", from, root)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, "app/api/__init__.py"), resolved)

	// Relative imports walk up from the importer.
	resolved, ok = a.ResolveImport("..schemas", from, root)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, "app/schemas.py"), resolved)

	_, ok = a.ResolveImport("fastapi", from, root)
	assert.False(t, ok)
}
