package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/specialistvlad/blockorder/internal/app"
	"github.com/specialistvlad/blockorder/internal/config"
	"github.com/specialistvlad/blockorder/internal/hcl"
	"github.com/specialistvlad/blockorder/internal/yamlcfg"
	"github.com/stretchr/testify/require"
)

// HarnessResult holds the outcomes of an integration test run.
type HarnessResult struct {
	LogOutput string
	Err       error
	App       *app.App
	Report    *app.Report
	Dir       string
}

// WriteFiles writes files, keyed by path relative to dir, creating
// subdirectories as needed.
func WriteFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

// NewLoader returns the loader the CLI uses.
func NewLoader() config.Loader {
	return config.NewMultiLoader(hcl.NewLoader(), yamlcfg.NewLoader())
}

// RunReplay writes files to a temporary directory and replays them through a
// fresh App. mutate, when not nil, adjusts the app configuration before the
// app is built. Set BLOCKORDER_TEST_LOGS=true to print the log output.
func RunReplay(t *testing.T, files map[string]string, mutate func(dir string, cfg *app.Config)) *HarnessResult {
	t.Helper()

	dir := t.TempDir()
	WriteFiles(t, dir, files)

	cfg := &app.Config{
		ConfigPaths: []string{dir},
		LogLevel:    "debug",
		LogFormat:   "text",
	}
	if mutate != nil {
		mutate(dir, cfg)
	}

	logBuffer := &SafeBuffer{}
	t.Cleanup(func() {
		if os.Getenv("BLOCKORDER_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logBuffer.String())
		}
	})

	a, err := app.NewApp(logBuffer, cfg, NewLoader())
	if err != nil {
		return &HarnessResult{LogOutput: logBuffer.String(), Err: err, Dir: dir}
	}
	report, err := a.Run(context.Background())
	return &HarnessResult{
		LogOutput: logBuffer.String(),
		Err:       err,
		App:       a,
		Report:    report,
		Dir:       dir,
	}
}
