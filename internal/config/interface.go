package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/specialistvlad/blockorder/internal/ctxlog"
	"github.com/specialistvlad/blockorder/internal/fsutil"
)

// Loader is the interface for a format-specific configuration loader.
type Loader interface {
	// Load reads configuration from the given files or directories and
	// translates it into the format-agnostic model. The result is not yet
	// validated.
	Load(ctx context.Context, paths ...string) (*Model, error)
	// Extensions lists the file extensions the loader understands.
	Extensions() []string
}

// MultiLoader dispatches each discovered file to the loader registered for
// its extension and merges the results in path order.
type MultiLoader struct {
	byExt map[string]Loader
}

// NewMultiLoader registers loaders by their extensions. A later loader wins
// an extension claimed twice.
func NewMultiLoader(loaders ...Loader) *MultiLoader {
	m := &MultiLoader{byExt: make(map[string]Loader)}
	for _, l := range loaders {
		for _, ext := range l.Extensions() {
			m.byExt[ext] = l
		}
	}
	return m
}

func (m *MultiLoader) Extensions() []string {
	exts := make([]string, 0, len(m.byExt))
	for ext := range m.byExt {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

func (m *MultiLoader) Load(ctx context.Context, paths ...string) (*Model, error) {
	logger := ctxlog.FromContext(ctx)

	var files []string
	for _, p := range paths {
		found, err := fsutil.FindFilesByExtension(p, m.Extensions()...)
		if err != nil {
			return nil, err
		}
		files = append(files, found...)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no configuration files found in %v", paths)
	}
	logger.Debug("Discovered configuration files.", "count", len(files))

	model := &Model{}
	for _, f := range files {
		l, ok := m.byExt[filepath.Ext(f)]
		if !ok {
			return nil, fmt.Errorf("%s: no loader for extension %q", f, filepath.Ext(f))
		}
		part, err := l.Load(ctx, f)
		if err != nil {
			return nil, err
		}
		if err := model.Merge(part); err != nil {
			return nil, fmt.Errorf("%s: %w", f, err)
		}
	}
	return model, nil
}
