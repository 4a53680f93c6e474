package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRun_Replay(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	workload := `
write "a" {
  block = 1
  data  = "hello"
}
write "b" {
  block      = 2
  data       = "world"
  depends_on = ["a"]
}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.hcl"), []byte(workload), 0o600))

	out := &bytes.Buffer{}
	err := run(context.Background(), out, []string{"--log-level", "warn", dir})

	require.NoError(t, err)
	require.Contains(t, out.String(), "replayed 2 operations, 2 blocks flushed")
}

func TestRun_LoadError(t *testing.T) {
	t.Parallel()

	invalidHCL := `
		write "a" {
			block = 1
		// Missing closing brace here
	`
	tempDir := t.TempDir()
	filePath := filepath.Join(tempDir, "main.hcl")
	require.NoError(t, os.WriteFile(filePath, []byte(invalidHCL), 0o600))

	err := run(context.Background(), &bytes.Buffer{}, []string{filePath})

	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to load configuration")
	require.Contains(t, err.Error(), "failed to parse")
}

func TestRun_ShouldExit(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	err := run(context.Background(), out, []string{"-h"})

	require.NoError(t, err, "run() should return a nil error when shouldExit is true")
	require.Contains(t, out.String(), "Usage:", "Expected help text to be printed to the output buffer")
}

func TestRun_ParseError(t *testing.T) {
	t.Parallel()

	err := run(context.Background(), &bytes.Buffer{}, []string{"--this-is-not-a-valid-flag"})

	require.Error(t, err, "run() should return an error when argument parsing fails")
	require.Contains(t, err.Error(), "flag provided but not defined: -this-is-not-a-valid-flag")
}
