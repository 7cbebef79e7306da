package program

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apiviz/apiviz-go/internal/config"
	"github.com/apiviz/apiviz-go/internal/models"
)

func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func fieldNames(fields []models.SchemaField) []string {
	var names []string
	for _, f := range fields {
		names = append(names, f.Name)
	}
	return names
}

func TestInterfaceFields(t *testing.T) {
	root := writeProject(t, map[string]string{
		"package.json": "{}",
		"types.ts": `export interface User {
  id: string;
  name: string;
  age?: number;
}
`,
	})

	p, err := Load(root, config.Default())
	require.NoError(t, err)

	fields := p.Fields("User", filepath.Join(root, "types.ts"))
	require.Len(t, fields, 3)
	assert.Equal(t, models.SchemaField{Name: "id", Type: "string"}, fields[0])
	assert.Equal(t, models.SchemaField{Name: "name", Type: "string"}, fields[1])
	assert.Equal(t, models.SchemaField{Name: "age", Type: "number", Optional: true}, fields[2])
}

func TestInterfaceExtendsMergesBaseFields(t *testing.T) {
	root := writeProject(t, map[string]string{
		"package.json": "{}",
		"types.ts": `interface Base {
  id: string;
  createdAt: string;
}
export interface Post extends Base {
  title: string;
  createdAt: Date;
}
`,
	})

	p, err := Load(root, config.Default())
	require.NoError(t, err)

	fields := p.Fields("Post", filepath.Join(root, "types.ts"))
	assert.Equal(t, []string{"id", "title", "createdAt"}, fieldNames(fields))
	for _, f := range fields {
		if f.Name == "createdAt" {
			assert.Equal(t, "Date", f.Type)
		}
	}
}

func TestTypeAliasAndAliasChain(t *testing.T) {
	root := writeProject(t, map[string]string{
		"package.json": "{}",
		"types.ts": `export type CreateUser = {
  name: string;
  email?: string;
};
export type NewUser = CreateUser;
`,
	})

	p, err := Load(root, config.Default())
	require.NoError(t, err)

	fields := p.Fields("NewUser", filepath.Join(root, "types.ts"))
	assert.Equal(t, []string{"name", "email"}, fieldNames(fields))
}

func TestCrossFileResolutionThroughImports(t *testing.T) {
	root := writeProject(t, map[string]string{
		"package.json": "{}",
		"src/models/user.ts": `export interface User {
  id: string;
  email: string;
}
`,
		"src/api/handler.ts": `import { User } from "../models/user";
export const placeholder = 1;
`,
	})

	p, err := Load(root, config.Default())
	require.NoError(t, err)

	fields := p.Fields("User", filepath.Join(root, "src/api/handler.ts"))
	assert.Equal(t, []string{"id", "email"}, fieldNames(fields))
}

func TestAliasPrefixImportResolution(t *testing.T) {
	root := writeProject(t, map[string]string{
		"package.json": "{}",
		"src/types/index.ts": `export interface Widget {
  label: string;
}
`,
		"src/app/page.ts": `import { Widget } from "@/types";
export const placeholder = 1;
`,
	})

	p, err := Load(root, config.Default())
	require.NoError(t, err)

	fields := p.Fields("Widget", filepath.Join(root, "src/app/page.ts"))
	assert.Equal(t, []string{"label"}, fieldNames(fields))
}

func TestZodSchemaFields(t *testing.T) {
	root := writeProject(t, map[string]string{
		"package.json": "{}",
		"schema.ts": `import { z } from "zod";
export const createUserSchema = z.object({
  name: z.string().min(1),
  age: z.number().optional(),
  active: z.boolean(),
});
`,
	})

	p, err := Load(root, config.Default())
	require.NoError(t, err)

	fields := p.Fields("createUserSchema", filepath.Join(root, "schema.ts"))
	require.Len(t, fields, 3)
	assert.Equal(t, models.SchemaField{Name: "name", Type: "string"}, fields[0])
	assert.Equal(t, models.SchemaField{Name: "age", Type: "number", Optional: true}, fields[1])
	assert.Equal(t, models.SchemaField{Name: "active", Type: "boolean"}, fields[2])
}

func TestCircularAliasTerminates(t *testing.T) {
	root := writeProject(t, map[string]string{
		"package.json": "{}",
		"types.ts": `export type A = B;
export type B = A;
`,
	})

	p, err := Load(root, config.Default())
	require.NoError(t, err)
	assert.Nil(t, p.Fields("A", filepath.Join(root, "types.ts")))
}

func TestUnknownTypeYieldsNil(t *testing.T) {
	root := writeProject(t, map[string]string{
		"package.json": "{}",
		"types.ts":     `export const x = 1;`,
	})

	p, err := Load(root, config.Default())
	require.NoError(t, err)
	assert.Nil(t, p.Fields("Missing", filepath.Join(root, "types.ts")))
}

func TestManagerCachesAndInvalidates(t *testing.T) {
	root := writeProject(t, map[string]string{
		"package.json": "{}",
		"types.ts":     `export interface A { x: string; }`,
	})

	m := NewManager()
	first, err := m.Load(root, config.Default())
	require.NoError(t, err)
	second, err := m.Load(root, config.Default())
	require.NoError(t, err)
	assert.Same(t, first, second)

	m.Invalidate(root)
	third, err := m.Load(root, config.Default())
	require.NoError(t, err)
	assert.NotSame(t, first, third)
}
