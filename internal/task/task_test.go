package task

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apiviz/apiviz-go/internal/detect"
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

func nextProject(t *testing.T) string {
	return writeProject(t, map[string]string{
		"package.json": `{"dependencies": {"next": "14.0.0"}}`,
		"app/api/users/route.ts": `import { listUsers } from "../../../lib/users";

export async function GET() {
  return Response.json({ users: [] });
}
`,
		"lib/users.ts": `export function listUsers() { return []; }`,
	})
}

func TestDispatchAssignsRequestID(t *testing.T) {
	d := NewDispatcher()
	root := nextProject(t)

	resp := d.Dispatch(context.Background(), Request{
		Type:    TypeDetect,
		Payload: Payload{Path: root},
	})
	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, "success", resp.Status)

	resp = d.Dispatch(context.Background(), Request{
		ID:      "req-7",
		Type:    TypeDetect,
		Payload: Payload{Path: root},
	})
	assert.Equal(t, "req-7", resp.ID)
}

func TestDispatchDetect(t *testing.T) {
	d := NewDispatcher()
	root := nextProject(t)

	resp := d.Dispatch(context.Background(), Request{
		Type:    TypeDetect,
		Payload: Payload{Path: root},
	})

	info, ok := resp.Results.(models.ProjectInfo)
	require.True(t, ok, "results should be ProjectInfo, got %T", resp.Results)
	assert.Equal(t, detect.TypeNextJS, info.Type)
	assert.True(t, info.IsProject)
}

func TestDispatchDeps(t *testing.T) {
	d := NewDispatcher()
	root := nextProject(t)

	resp := d.Dispatch(context.Background(), Request{
		Type:    TypeDeps,
		Payload: Payload{Path: root},
	})

	g, ok := resp.Results.(*models.DependencyGraph)
	require.True(t, ok, "results should be a graph, got %T", resp.Results)
	require.NotEmpty(t, g.Nodes)

	route := filepath.Join(root, "app/api/users/route.ts")
	users := filepath.Join(root, "lib/users.ts")
	assert.Contains(t, g.Edges, models.DependencyEdge{Source: route, Target: users})
}

func TestDispatchRouteFile(t *testing.T) {
	d := NewDispatcher()
	root := nextProject(t)

	resp := d.Dispatch(context.Background(), Request{
		Type: TypeRoute,
		Payload: Payload{
			Path: root,
			File: filepath.Join(root, "app/api/users/route.ts"),
		},
	})

	eps, ok := resp.Results.([]models.ApiEndpoint)
	require.True(t, ok, "results should be endpoints, got %T", resp.Results)
	require.Len(t, eps, 1)
	assert.Equal(t, "/api/users", eps[0].Path)
	assert.Equal(t, []string{"GET"}, eps[0].Methods)
}

func TestDispatchEndpointsForNextProject(t *testing.T) {
	d := NewDispatcher()
	root := nextProject(t)

	resp := d.Dispatch(context.Background(), Request{
		Type:    TypeAPIEndpoints,
		Payload: Payload{Path: root},
	})

	eps, ok := resp.Results.([]models.ApiEndpoint)
	require.True(t, ok, "results should be endpoints, got %T", resp.Results)
	require.Len(t, eps, 1)
	assert.Equal(t, "/api/users", eps[0].Path)
}

func TestDispatchCacheStats(t *testing.T) {
	d := NewDispatcher()
	root := nextProject(t)

	// Prime the caches.
	d.Dispatch(context.Background(), Request{Type: TypeDeps, Payload: Payload{Path: root}})

	resp := d.Dispatch(context.Background(), Request{
		Type:    TypeCacheStats,
		Payload: Payload{Path: root},
	})

	stats, ok := resp.Results.(map[string]models.CacheStats)
	require.True(t, ok, "results should be stats, got %T", resp.Results)
	assert.Contains(t, stats, "dependencies")
	assert.Contains(t, stats, "routes")
}

func TestDispatchUnknownTaskStillSucceeds(t *testing.T) {
	d := NewDispatcher()

	resp := d.Dispatch(context.Background(), Request{
		Type:    Type("bogus"),
		Payload: Payload{Path: t.TempDir()},
	})
	assert.Equal(t, "success", resp.Status)
	assert.Nil(t, resp.Results)
}

func TestDispatchOnMissingPathReturnsDefaults(t *testing.T) {
	d := NewDispatcher()
	missing := filepath.Join(t.TempDir(), "does-not-exist")

	resp := d.Dispatch(context.Background(), Request{
		Type:    TypeDetect,
		Payload: Payload{Path: missing},
	})
	info, ok := resp.Results.(models.ProjectInfo)
	require.True(t, ok)
	assert.Equal(t, detect.TypeUnknown, info.Type)
	assert.False(t, info.IsProject)
}

func TestInvalidateUnknownRootIsSafe(t *testing.T) {
	d := NewDispatcher()
	d.Invalidate(t.TempDir())
}

func TestSafeDefaultShapes(t *testing.T) {
	g, ok := safeDefault(TypeDeps).(*models.DependencyGraph)
	require.True(t, ok)
	assert.NotNil(t, g.Nodes)
	assert.NotNil(t, g.Edges)
	assert.Empty(t, g.Nodes)

	info, ok := safeDefault(TypeDetect).(models.ProjectInfo)
	require.True(t, ok)
	assert.Equal(t, detect.TypeUnknown, info.Type)

	eps, ok := safeDefault(TypeRoute).([]models.ApiEndpoint)
	require.True(t, ok)
	assert.Empty(t, eps)

	stats, ok := safeDefault(TypeCacheStats).(map[string]models.CacheStats)
	require.True(t, ok)
	assert.Empty(t, stats)

	assert.Nil(t, safeDefault(Type("bogus")))
}
