package walker

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func TestWalk_FindsRecognizedExtensions(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.go", "package main")
	writeFile(t, root, "lib.py", "x = 1")
	writeFile(t, root, "readme.md", "not code")
	writeFile(t, root, "node_modules/dep/index.js", "module.exports = {}")
	writeFile(t, root, ".git/HEAD", "ref: refs/heads/main")

	w, err := New(root, nil)
	require.NoError(t, err)

	files, err := w.Walk()
	require.NoError(t, err)

	var names []string
	for _, f := range files {
		rel, _ := filepath.Rel(root, f)
		names = append(names, filepath.ToSlash(rel))
	}
	sort.Strings(names)

	assert.Equal(t, []string{"lib.py", "main.go"}, names)
}

func TestWalk_HonorsCallerExcludeGlobs(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "keep.go", "package main")
	writeFile(t, root, "generated/skip.go", "package generated")

	w, err := New(root, []string{"generated/**"})
	require.NoError(t, err)

	files, err := w.Walk()
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Contains(t, files[0], "keep.go")
}

func TestWalk_NeverReturnsRagDataAsHidden(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".terminal_helper/rag-data/code_bm25.json", "{}")
	writeFile(t, root, ".hidden/skip.go", "package hidden")
	writeFile(t, root, "main.go", "package main")

	w, err := New(root, nil)
	require.NoError(t, err)

	files, err := w.Walk()
	require.NoError(t, err)

	var names []string
	for _, f := range files {
		rel, _ := filepath.Rel(root, f)
		names = append(names, filepath.ToSlash(rel))
	}
	// code_bm25.json has no recognized extension, and .hidden is excluded;
	// only main.go should surface, but .terminal_helper itself must not
	// have been pruned as a hidden directory.
	assert.Equal(t, []string{"main.go"}, names)
}
