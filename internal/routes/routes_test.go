package routes

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

func analyze(t *testing.T, files map[string]string) []models.ApiEndpoint {
	t.Helper()
	root := writeProject(t, files)
	return NewExtractor(config.Default(), nil).AnalyzeProject(root)
}

func TestDerivePath(t *testing.T) {
	cases := []struct {
		rel  string
		want string
	}{
		{"app/api/users/route.ts", "/api/users"},
		{"src/app/api/users/[id]/route.ts", "/api/users/[id]"},
		{"app/api/(admin)/stats/route.ts", "/api/stats"},
		{"pages/api/users.ts", "/api/users"},
		{"pages/api/users/index.ts", "/api/users"},
		{"src/pages/api/posts/[slug].ts", "/api/posts/[slug]"},
		{"src/lib/helper.ts", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, DerivePath(tc.rel), tc.rel)
	}
}

func TestVerbHandlersMergeIntoOneEndpoint(t *testing.T) {
	endpoints := analyze(t, map[string]string{
		"package.json": "{}",
		"app/api/users/route.ts": `export async function GET(req: Request) {
  return Response.json({ users: [] });
}

export async function POST(req: Request) {
  return Response.json({ ok: true }, { status: 201 });
}
`,
	})

	require.Len(t, endpoints, 1)
	assert.Equal(t, "/api/users", endpoints[0].Path)
	assert.Equal(t, []string{"GET", "POST"}, endpoints[0].Methods)
}

func TestArrowFunctionHandler(t *testing.T) {
	endpoints := analyze(t, map[string]string{
		"package.json": "{}",
		"app/api/ping/route.ts": `export const GET = async (req: Request) => {
  return Response.json({ pong: true });
}
`,
	})

	require.Len(t, endpoints, 1)
	assert.Equal(t, []string{"GET"}, endpoints[0].Methods)
}

func TestAssertedRequestBody(t *testing.T) {
	endpoints := analyze(t, map[string]string{
		"package.json": "{}",
		"app/api/users/route.ts": `export async function POST(req: Request) {
  const body = (await req.json()) as { name: string; age?: number };
  return Response.json({ ok: true });
}
`,
	})

	require.Len(t, endpoints, 1)
	assert.Equal(t, []models.SchemaField{
		{Name: "name", Type: "string"},
		{Name: "age", Type: "number", Optional: true},
	}, endpoints[0].RequestBody)
}

func TestAssertedNamedTypeRequestBody(t *testing.T) {
	endpoints := analyze(t, map[string]string{
		"package.json": "{}",
		"types.ts": `export interface CreateUser {
  email: string;
  name?: string;
}
`,
		"app/api/users/route.ts": `import { CreateUser } from "../../../types";

export async function POST(req: Request) {
  const body = (await req.json()) as CreateUser;
  return Response.json({ ok: true });
}
`,
	})

	require.Len(t, endpoints, 1)
	assert.Equal(t, []models.SchemaField{
		{Name: "email", Type: "string"},
		{Name: "name", Type: "string", Optional: true},
	}, endpoints[0].RequestBody)
}

func TestDestructuredRequestBody(t *testing.T) {
	endpoints := analyze(t, map[string]string{
		"package.json": "{}",
		"app/api/items/route.ts": `export async function POST(req: Request) {
  const { title, count = 1 } = await req.json();
  return Response.json({ ok: true });
}
`,
	})

	require.Len(t, endpoints, 1)
	body := endpoints[0].RequestBody
	require.Len(t, body, 2)
	assert.Equal(t, models.SchemaField{Name: "title", Type: "any"}, body[0])
	assert.Equal(t, models.SchemaField{Name: "count", Type: "any", Optional: true}, body[1])
}

func TestDeferredDestructuring(t *testing.T) {
	endpoints := analyze(t, map[string]string{
		"package.json": "{}",
		"app/api/items/route.ts": `export async function POST(req: Request) {
  const body = await req.json();
  const { sku, qty } = body;
  return Response.json({ ok: true });
}
`,
	})

	require.Len(t, endpoints, 1)
	names := []string{}
	for _, f := range endpoints[0].RequestBody {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"sku", "qty"}, names)
}

func TestFormDataFields(t *testing.T) {
	endpoints := analyze(t, map[string]string{
		"package.json": "{}",
		"app/api/upload/route.ts": `export async function POST(req: Request) {
  const form = await req.formData();
  const file = form.get("file");
  const label = form.get("label") as string;
  return Response.json({ ok: true });
}
`,
	})

	require.Len(t, endpoints, 1)
	body := endpoints[0].RequestBody
	require.Len(t, body, 2)
	assert.Equal(t, models.SchemaField{Name: "file", Type: "FormDataEntryValue", Optional: true}, body[0])
	assert.Equal(t, models.SchemaField{Name: "label", Type: "string", Optional: true}, body[1])
}

func TestZodSchemaTakesPrecedence(t *testing.T) {
	endpoints := analyze(t, map[string]string{
		"package.json": "{}",
		"app/api/users/schema.ts": `import { z } from "zod";
export const createUserSchema = z.object({
  email: z.string().email(),
  nickname: z.string().optional(),
});
`,
		"app/api/users/route.ts": `import { createUserSchema } from "./schema";

export async function POST(req: Request) {
  const body = (await req.json()) as { raw: string };
  const parsed = createUserSchema.parse(body);
  return Response.json({ ok: true });
}
`,
	})

	require.Len(t, endpoints, 1)
	assert.Equal(t, []models.SchemaField{
		{Name: "email", Type: "string"},
		{Name: "nickname", Type: "string", Optional: true},
	}, endpoints[0].RequestBody)
}

func TestResponsesWithStatusAndError(t *testing.T) {
	endpoints := analyze(t, map[string]string{
		"package.json": "{}",
		"app/api/users/route.ts": `export async function GET(req: Request) {
  if (Math.random() > 0.5) {
    return Response.json({ error: "not found" }, { status: 404 });
  }
  return Response.json({ users: [], total: 0 });
}
`,
	})

	require.Len(t, endpoints, 1)
	responses := endpoints[0].Responses
	require.Len(t, responses, 2)

	assert.False(t, responses[0].IsError)
	assert.Equal(t, 200, responses[0].StatusCode)
	assert.True(t, responses[1].IsError)
	assert.Equal(t, 404, responses[1].StatusCode)

	names := []string{}
	for _, f := range responses[0].Fields {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"users", "total"}, names)
	assert.Equal(t, responses[0].Fields, endpoints[0].ResponseBody)
}

func TestErrorFieldDefaultsStatus400(t *testing.T) {
	endpoints := analyze(t, map[string]string{
		"package.json": "{}",
		"app/api/risky/route.ts": `export async function GET(req: Request) {
  return Response.json({ error: "bad" });
}
`,
	})

	require.Len(t, endpoints, 1)
	require.Len(t, endpoints[0].Responses, 1)
	assert.True(t, endpoints[0].Responses[0].IsError)
	assert.Equal(t, 400, endpoints[0].Responses[0].StatusCode)
}

func TestResponseThroughLocalVariable(t *testing.T) {
	endpoints := analyze(t, map[string]string{
		"package.json": "{}",
		"app/api/info/route.ts": `export async function GET(req: Request) {
  const payload = { version: "1.0", uptime: 42 };
  return Response.json(payload);
}
`,
	})

	require.Len(t, endpoints, 1)
	require.Len(t, endpoints[0].Responses, 1)
	fields := endpoints[0].Responses[0].Fields
	require.Len(t, fields, 2)
	assert.Equal(t, models.SchemaField{Name: "version", Type: "string"}, fields[0])
	assert.Equal(t, models.SchemaField{Name: "uptime", Type: "number"}, fields[1])
}

func TestDuplicateResponsesDeduplicated(t *testing.T) {
	endpoints := analyze(t, map[string]string{
		"package.json": "{}",
		"app/api/dup/route.ts": `export async function GET(req: Request) {
  if (a) {
    return Response.json({ ok: true });
  }
  return Response.json({ ok: false });
}
`,
	})

	require.Len(t, endpoints, 1)
	assert.Len(t, endpoints[0].Responses, 1)
}

func TestQueryParams(t *testing.T) {
	endpoints := analyze(t, map[string]string{
		"package.json": "{}",
		"app/api/search/route.ts": `export async function GET(req: Request) {
  const { searchParams } = new URL(req.url);
  const q = searchParams.get("q");
  const page = searchParams.get("page");
  const again = searchParams.get("q");
  return Response.json({ results: [] });
}
`,
	})

	require.Len(t, endpoints, 1)
	assert.Equal(t, []models.SchemaField{
		{Name: "q", Type: "string|null", Optional: true},
		{Name: "page", Type: "string|null", Optional: true},
	}, endpoints[0].QueryParams)
}

func TestPathParams(t *testing.T) {
	endpoints := analyze(t, map[string]string{
		"package.json": "{}",
		"app/api/users/[id]/route.ts": `export async function GET(req: Request) {
  return Response.json({ ok: true });
}
`,
	})

	require.Len(t, endpoints, 1)
	assert.Equal(t, "/api/users/[id]", endpoints[0].Path)
	assert.Equal(t, []models.SchemaField{{Name: "id", Type: "string"}}, endpoints[0].Params)
}

func TestDependencyCategorization(t *testing.T) {
	endpoints := analyze(t, map[string]string{
		"package.json": "{}",
		"src/db/client.ts": `export const db = {};
export const usersTable = {};
`,
		"src/services/user.ts": `export function getUser() {}`,
		"app/api/users/route.ts": `import { db, usersTable } from "@/db/client";
import { getUser } from "@/services/user";
import axios from "axios";

export async function GET(req: Request) {
  const rows = await db.from(usersTable);
  const external = await fetch("https://api.example.com/v1/info");
  const internal = await fetch("/api/health");
  return Response.json({ rows });
}
`,
	})

	require.Len(t, endpoints, 1)
	d := endpoints[0].Dependencies
	require.NotNil(t, d)

	assert.Equal(t, []string{"users"}, d.Tables)
	assert.Equal(t, []string{"/api/health"}, d.APICalls)

	dbNames := []string{}
	for _, ref := range d.Database {
		dbNames = append(dbNames, ref.Name)
	}
	assert.Contains(t, dbNames, "db")
	assert.Contains(t, dbNames, "users")

	require.Len(t, d.Services, 1)
	assert.Equal(t, "getUser", d.Services[0].Name)

	extNames := []string{}
	for _, ref := range d.External {
		extNames = append(extNames, ref.Name)
	}
	assert.Contains(t, extNames, "axios")
	assert.Contains(t, extNames, "https://api.example.com/v1/info")
	assert.Contains(t, extNames, "Internal: /api/health")

	assert.NotEmpty(t, d.Grouped)
}

func TestPrismaStyleOrmDetection(t *testing.T) {
	endpoints := analyze(t, map[string]string{
		"package.json": "{}",
		"app/api/posts/route.ts": `import { prisma } from "@prisma/client";

export async function GET(req: Request) {
  const posts = await prisma.post.findMany();
  return Response.json({ posts });
}
`,
	})

	require.Len(t, endpoints, 1)
	require.NotNil(t, endpoints[0].Dependencies)
	assert.Equal(t, []string{"post"}, endpoints[0].Dependencies.Tables)
}

func TestInvalidRootYieldsEmptyList(t *testing.T) {
	e := NewExtractor(config.Default(), nil)
	assert.Empty(t, e.AnalyzeProject(filepath.Join(t.TempDir(), "missing")))
}

func TestEndpointsSortedByPath(t *testing.T) {
	endpoints := analyze(t, map[string]string{
		"package.json": "{}",
		"app/api/zebra/route.ts": `export async function GET(req: Request) {
  return Response.json({ ok: true });
}
`,
		"app/api/alpha/route.ts": `export async function GET(req: Request) {
  return Response.json({ ok: true });
}
`,
	})

	require.Len(t, endpoints, 2)
	assert.Equal(t, "/api/alpha", endpoints[0].Path)
	assert.Equal(t, "/api/zebra", endpoints[1].Path)
}
