package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingInvalidator struct {
	mu    sync.Mutex
	roots []string
}

func (r *recordingInvalidator) Invalidate(root string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.roots = append(r.roots, root)
}

func (r *recordingInvalidator) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.roots)
}

func startWatcher(t *testing.T, root string, inv Invalidator, batches chan []string) *Watcher {
	t.Helper()
	w, err := New(root, inv, func(changed []string) {
		batches <- changed
	}, WithDebounce(50*time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go w.Run(ctx)
	// Give the event loop a moment before mutating the tree.
	time.Sleep(50 * time.Millisecond)
	return w
}

func waitForBatch(t *testing.T, batches chan []string) []string {
	t.Helper()
	select {
	case changed := <-batches:
		return changed
	case <-time.After(3 * time.Second):
		t.Fatal("no change batch arrived")
		return nil
	}
}

func TestWatcherBatchesWrites(t *testing.T) {
	root := t.TempDir()
	inv := &recordingInvalidator{}
	batches := make(chan []string, 4)
	startWatcher(t, root, inv, batches)

	file := filepath.Join(root, "a.ts")
	require.NoError(t, os.WriteFile(file, []byte("export {}"), 0o644))

	changed := waitForBatch(t, batches)
	assert.Contains(t, changed, file)
	assert.GreaterOrEqual(t, inv.count(), 1)
}

func TestWatcherCoalescesBursts(t *testing.T) {
	root := t.TempDir()
	batches := make(chan []string, 8)
	startWatcher(t, root, nil, batches)

	a := filepath.Join(root, "a.ts")
	b := filepath.Join(root, "b.ts")
	require.NoError(t, os.WriteFile(a, []byte("1"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("2"), 0o644))

	changed := waitForBatch(t, batches)
	// Both writes land within one debounce window, so the first batch
	// should already carry both paths.
	if len(changed) == 1 {
		changed = append(changed, waitForBatch(t, batches)...)
	}
	assert.Contains(t, changed, a)
	assert.Contains(t, changed, b)
}

func TestWatcherSeesNewDirectories(t *testing.T) {
	root := t.TempDir()
	batches := make(chan []string, 4)
	startWatcher(t, root, nil, batches)

	sub := filepath.Join(root, "src", "api")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	// Let the new watch register before writing inside it.
	time.Sleep(200 * time.Millisecond)

	file := filepath.Join(sub, "route.ts")
	require.NoError(t, os.WriteFile(file, []byte("export {}"), 0o644))

	changed := waitForBatch(t, batches)
	assert.Contains(t, changed, file)
}

func TestWatcherIgnoresSkippedDirectories(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "node_modules", "pkg"), 0o755))

	batches := make(chan []string, 4)
	startWatcher(t, root, nil, batches)

	require.NoError(t, os.WriteFile(
		filepath.Join(root, "node_modules", "pkg", "index.js"), []byte("x"), 0o644))

	select {
	case changed := <-batches:
		t.Fatalf("unexpected batch for ignored path: %v", changed)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcherFiltersByExtension(t *testing.T) {
	root := t.TempDir()
	batches := make(chan []string, 4)

	w, err := New(root, nil, func(changed []string) {
		batches <- changed
	}, WithDebounce(50*time.Millisecond), WithExtensions(".ts"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go w.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.ts"), []byte("export {}"), 0o644))

	changed := waitForBatch(t, batches)
	assert.Contains(t, changed, filepath.Join(root, "a.ts"))
	assert.NotContains(t, changed, filepath.Join(root, "notes.txt"))
}

func TestWatcherCloseIsIdempotent(t *testing.T) {
	root := t.TempDir()
	w, err := New(root, nil, nil)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
}
