package services

import (
	"archive/tar"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"model-deployer/internal/core/domain"
)

func writeSavedModel(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "saved_model.pb"), []byte("graph"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "variables"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "variables", "variables.index"), []byte("index"), 0o644))
	return dir
}

func readArchive(t *testing.T, path string) map[string]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	tr := tar.NewReader(gz)

	entries := make(map[string]string)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		body, err := io.ReadAll(tr)
		require.NoError(t, err)
		entries[hdr.Name] = string(body)
	}
	return entries
}

func TestBuildArchive(t *testing.T) {
	modelDir := writeSavedModel(t)
	dest := t.TempDir()

	path, err := BuildArchive(modelDir, "r1", domain.NamedModelRoot("r1"), dest)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dest, "model-r1.tar.gz"), path)

	entries := readArchive(t, path)
	assert.Equal(t, map[string]string{
		"intent-model-r1/1/":                          "",
		"intent-model-r1/1/saved_model.pb":            "graph",
		"intent-model-r1/1/variables/":                "",
		"intent-model-r1/1/variables/variables.index": "index",
	}, entries)
}

func TestBuildArchive_DeterministicNames(t *testing.T) {
	modelDir := writeSavedModel(t)

	first, err := BuildArchive(modelDir, "same", "1", t.TempDir())
	require.NoError(t, err)
	second, err := BuildArchive(modelDir, "same", "1", t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, filepath.Base(first), filepath.Base(second))
	assert.Equal(t, readArchive(t, first), readArchive(t, second))
}

func TestBuildArchive_InvalidInput(t *testing.T) {
	modelDir := writeSavedModel(t)

	_, err := BuildArchive(filepath.Join(modelDir, "missing"), "r1", "1", t.TempDir())
	assert.ErrorIs(t, err, domain.ErrInvalidModelDir)

	_, err = BuildArchive(filepath.Join(modelDir, "saved_model.pb"), "r1", "1", t.TempDir())
	assert.ErrorIs(t, err, domain.ErrInvalidModelDir)

	for _, root := range []string{"", ".", "/abs", "../up"} {
		_, err = BuildArchive(modelDir, "r1", root, t.TempDir())
		assert.Error(t, err, "root %q", root)
	}
}

func TestBuildArchive_VersionRoot(t *testing.T) {
	path, err := BuildArchive(writeSavedModel(t), "r1", domain.ServingVersion, t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"1/":                          "",
		"1/saved_model.pb":            "graph",
		"1/variables/":                "",
		"1/variables/variables.index": "index",
	}, readArchive(t, path))
}

func TestBuildArchive_RejectsUnsafeRunID(t *testing.T) {
	modelDir := writeSavedModel(t)
	base := t.TempDir()
	dest := filepath.Join(base, "work", "model-archive-1")
	require.NoError(t, os.MkdirAll(dest, 0o755))

	for _, runID := range []string{"", "../x", "a/b", "x/../../../escaped"} {
		t.Run(runID, func(t *testing.T) {
			path, err := BuildArchive(modelDir, runID, "1", dest)
			assert.ErrorIs(t, err, domain.ErrInvalidRunID)
			assert.Empty(t, path)
		})
	}

	var written []string
	require.NoError(t, filepath.WalkDir(base, func(p string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			written = append(written, p)
		}
		return err
	}))
	assert.Empty(t, written)
}
