package detect

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestDetectNextJSByDependency(t *testing.T) {
	root := t.TempDir()
	write(t, root, "package.json", `{"dependencies": {"next": "14.0.0"}}`)

	info := Detect(root)
	assert.Equal(t, TypeNextJS, info.Type)
	assert.True(t, info.IsProject)
	assert.Equal(t, root, info.Root)
}

func TestDetectNextJSByConfigFile(t *testing.T) {
	root := t.TempDir()
	write(t, root, "package.json", `{}`)
	write(t, root, "next.config.js", `module.exports = {}`)

	assert.Equal(t, TypeNextJS, Detect(root).Type)
}

func TestDetectPlainNode(t *testing.T) {
	root := t.TempDir()
	write(t, root, "package.json", `{"dependencies": {"express": "4.0.0"}}`)

	assert.Equal(t, TypeNode, Detect(root).Type)
}

func TestDetectFastAPI(t *testing.T) {
	root := t.TempDir()
	write(t, root, "requirements.txt", "fastapi==0.110.0\nuvicorn\n")

	assert.Equal(t, TypeFastAPI, Detect(root).Type)
}

func TestDetectPlainPython(t *testing.T) {
	root := t.TempDir()
	write(t, root, "requirements.txt", "flask\n")

	assert.Equal(t, TypePython, Detect(root).Type)
}

func TestDetectPythonByLooseSources(t *testing.T) {
	root := t.TempDir()
	write(t, root, "script.py", "print('hi')\n")

	assert.Equal(t, TypePython, Detect(root).Type)
}

func TestDetectUnknown(t *testing.T) {
	info := Detect(t.TempDir())
	assert.Equal(t, TypeUnknown, info.Type)
	assert.False(t, info.IsProject)
}

func TestDetectMissingPathIsUnknownNotError(t *testing.T) {
	info := Detect(filepath.Join(t.TempDir(), "nope"))
	assert.Equal(t, TypeUnknown, info.Type)
	assert.False(t, info.IsProject)
}
