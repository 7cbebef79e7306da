package program

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/apiviz/apiviz-go/internal/config"
	"github.com/apiviz/apiviz-go/internal/logging"
)

// Manager owns the per-root program cache. Programs are expensive to build,
// so concurrent loads for the same root collapse into one, and a built
// program is reused until invalidated or expired.
type Manager struct {
	programs *gocache.Cache
	group    singleflight.Group
}

const (
	programTTL    = 30 * time.Minute
	sweepInterval = 10 * time.Minute
)

func NewManager() *Manager {
	return &Manager{
		programs: gocache.New(programTTL, sweepInterval),
	}
}

// Load returns the cached program for root, building it on first use.
// Concurrent callers for the same root share one build.
func (m *Manager) Load(root string, cfg *config.AnalysisConfig) (*Program, error) {
	if cached, ok := m.programs.Get(root); ok {
		return cached.(*Program), nil
	}

	v, err, shared := m.group.Do(root, func() (any, error) {
		if cached, ok := m.programs.Get(root); ok {
			return cached.(*Program), nil
		}
		started := time.Now()
		p, err := Load(root, cfg)
		if err != nil {
			return nil, err
		}
		logging.Debug("program built",
			"root", root,
			"files", p.FileCount(),
			"elapsed", time.Since(started).String())
		m.programs.Set(root, p, gocache.DefaultExpiration)
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		logging.Debug("program load coalesced", "root", root)
	}
	return v.(*Program), nil
}

// Invalidate drops the cached program for one root.
func (m *Manager) Invalidate(root string) {
	m.programs.Delete(root)
}

// InvalidateAll drops every cached program.
func (m *Manager) InvalidateAll() {
	m.programs.Flush()
}
