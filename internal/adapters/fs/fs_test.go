package fs_test

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/kiln/internal/adapters/fs"
	"go.trai.ch/kiln/internal/core/domain"
)

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), domain.DirPerm))
		require.NoError(t, os.WriteFile(path, []byte(content), domain.PrivateFilePerm))
	}
}

func TestWalker_WalkFiles(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		".git/config":          "git config",
		"src/ossia/network.cpp": "int x;",
		"CMakeLists.txt":        "project(ossia)",
	})

	var got []string
	for path := range fs.NewWalker().WalkFiles(root) {
		rel, err := filepath.Rel(root, path)
		require.NoError(t, err)
		got = append(got, filepath.ToSlash(rel))
	}

	assert.Equal(t, []string{"CMakeLists.txt", "src/ossia/network.cpp"}, got)
}

func TestWalker_WalkFilesMissingRoot(t *testing.T) {
	got := slices.Collect(fs.NewWalker().WalkFiles(filepath.Join(t.TempDir(), "missing")))
	assert.Empty(t, got)
}

func TestHasher_HashTree(t *testing.T) {
	h := fs.NewHasher(fs.NewWalker())

	a, b := t.TempDir(), t.TempDir()
	files := map[string]string{
		"include/ossia/ossia.hpp": "#pragma once",
		"lib/libossia.a":          "!<arch>",
	}
	writeFiles(t, a, files)
	writeFiles(t, b, files)

	hashA, err := h.HashTree(a)
	require.NoError(t, err)
	hashB, err := h.HashTree(b)
	require.NoError(t, err)
	assert.Len(t, hashA, 16)
	assert.Equal(t, hashA, hashB, "hash must not depend on the tree location")

	writeFiles(t, b, map[string]string{"lib/libossia.a": "!<arch> changed"})
	hashB, err = h.HashTree(b)
	require.NoError(t, err)
	assert.NotEqual(t, hashA, hashB)

	require.NoError(t, os.Rename(filepath.Join(a, "lib", "libossia.a"), filepath.Join(a, "lib", "libossia2.a")))
	renamed, err := h.HashTree(a)
	require.NoError(t, err)
	assert.NotEqual(t, hashA, renamed, "renames change the hash")
}

func TestHasher_HashTreeEmpty(t *testing.T) {
	h := fs.NewHasher(fs.NewWalker())

	got, err := h.HashTree(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = h.HashTree(filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestScanner_Scan(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"lib/libossia.so.3.0.0":       "elf",
		"lib/libfoo.a":                "ar",
		"lib/cmake/ossia/config.cmake": "",
		"lib/pkgconfig/ossia.pc":       "",
		"bin/ossia.dll":                "pe",
		"bin/ossia-tool":               "elf",
		"include/ossia.hpp":            "",
	})
	require.NoError(t, os.Symlink("libossia.so.3.0.0", filepath.Join(root, "lib", "libossia.so")))

	libs, err := fs.NewScanner(fs.NewWalker()).Scan(root, []string{"lib", "bin", "lib64"})
	require.NoError(t, err)

	var paths, names []string
	for _, l := range libs {
		paths = append(paths, l.Path)
		names = append(names, l.Name)
	}
	assert.Equal(t, []string{"bin/ossia.dll", "lib/libfoo.a", "lib/libossia.so", "lib/libossia.so.3.0.0"}, paths)
	assert.Equal(t, []string{"ossia", "foo", "ossia", "ossia"}, names)
	assert.True(t, libs[0].Shared)
	assert.False(t, libs[1].Shared)
}

func TestScanner_ScanBrokenSymlink(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "lib"), domain.DirPerm))
	require.NoError(t, os.Symlink("missing.so.1", filepath.Join(root, "lib", "libgone.so")))

	libs, err := fs.NewScanner(fs.NewWalker()).Scan(root, []string{"lib"})
	require.NoError(t, err)
	assert.Empty(t, libs)
}
