package config

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	apierrors "github.com/apiviz/apiviz-go/internal/errors"
)

// evalTimeout bounds the node subprocess; a config file must evaluate near
// instantly or something is wrong with it.
const evalTimeout = 5 * time.Second

// cjsEval prints the resolved export of a CommonJS config module.
const cjsEval = `const c = require(process.argv[1]); const v = c && c.default !== undefined ? c.default : c; process.stdout.write(JSON.stringify(v));`

// esmEval does the same through a dynamic import for .mjs configs.
const esmEval = `import(process.argv[1]).then(m => { const v = m.default !== undefined ? m.default : m; process.stdout.write(JSON.stringify(v)); }).catch(e => { console.error(String(e)); process.exit(1); });`

// evalJSConfig evaluates a .js or .mjs config file in a fresh node process
// and returns its export serialized as JSON. Running a new process per call
// is what guarantees re-evaluation: there is no module cache to go stale.
func evalJSConfig(path string) ([]byte, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	script := cjsEval
	if strings.HasSuffix(abs, ".mjs") {
		script = esmEval
		// import() needs a URL on some platforms
		abs = "file://" + filepath.ToSlash(abs)
	}

	ctx, cancel := context.WithTimeout(context.Background(), evalTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "node", "-e", script, abs)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, apierrors.ExternalError(err,
			fmt.Sprintf("node evaluation of %s failed: %s", path, strings.TrimSpace(stderr.String())))
	}

	out := bytes.TrimSpace(stdout.Bytes())
	if len(out) == 0 || string(out) == "undefined" {
		return nil, apierrors.ConfigErrorf("config file %s exported nothing", path)
	}
	return out, nil
}
