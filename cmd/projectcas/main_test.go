package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"projectcas/pkg/archive/archivetest"
	"projectcas/pkg/config"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()

	out := &bytes.Buffer{}
	rootCmd.SetOut(out)
	rootCmd.SetErr(out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute(), out.String())
	return out.String()
}

func TestVersionCommand(t *testing.T) {
	assert.Equal(t, "projectcas "+version()+"\n", execute(t, "version"))
	assert.NotEmpty(t, version())
}

func TestIngestFingerprintMaterialize(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(config.DirEnv, filepath.Join(dir, "data"))

	zipPath := archivetest.Write(t, dir, "first.zip", archivetest.Files(
		"app/go.mod", "module app",
		"app/main.go", "package main",
	)...)

	out := execute(t, "ingest", zipPath, "--upload-id", "1", "--format", "json")
	var result struct {
		Projects []struct {
			ID   int64  `json:"id"`
			Name string `json:"name"`
		} `json:"projects"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	require.Len(t, result.Projects, 1)
	assert.Equal(t, "app", result.Projects[0].Name)

	out = execute(t, "fingerprint", "1")
	assert.Contains(t, out, "2 files")

	dest := filepath.Join(dir, "out")
	out = execute(t, "materialize", "1", "--dest", dest)
	assert.Equal(t, filepath.Join(dest, "app")+"\n", out)
	assert.FileExists(t, filepath.Join(dest, "app", "main.go"))
}

func TestDiscoverCommand(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(config.DirEnv, filepath.Join(dir, "data"))

	zipPath := archivetest.Write(t, dir, "mixed.zip", archivetest.Files(
		"svc/package.json", "{}",
		"svc/node_modules/dep/index.js", "x",
		"notes.md", "# notes",
	)...)

	out := execute(t, "discover", zipPath, "--format", "json")
	var result struct {
		Projects []struct {
			Name string `json:"name"`
		} `json:"projects"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result))

	var names []string
	for _, p := range result.Projects {
		names = append(names, p.Name)
	}
	assert.Contains(t, names, "svc")
}

func TestJoinIDs(t *testing.T) {
	assert.Equal(t, "", joinIDs(nil))
	assert.Equal(t, "3,10,42", joinIDs([]int64{3, 10, 42}))
	assert.Equal(t, "/", displayPath(""))
}
