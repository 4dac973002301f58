package fs

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.LibraryScanner = (*Scanner)(nil)

// Scanner finds library files directly inside the given install directories.
// Subdirectories such as lib/cmake or lib/pkgconfig are not searched.
type Scanner struct {
	walker *Walker
}

// NewScanner creates a new Scanner.
func NewScanner(walker *Walker) *Scanner {
	return &Scanner{walker: walker}
}

// Scan returns the library files of dirs, relative to root, in path order.
func (s *Scanner) Scan(root string, dirs []string) ([]ports.LibraryFile, error) {
	var out []ports.LibraryFile
	for _, dir := range dirs {
		abs := filepath.Join(root, dir)
		if _, err := os.Stat(abs); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, zerr.With(zerr.Wrap(err, "failed to stat library directory"), "path", abs)
		}
		for entry := range s.walker.ListFiles(abs) {
			lib, ok := classify(entry.Name())
			if !ok {
				continue
			}
			lib.Path = filepath.ToSlash(filepath.Join(dir, entry.Name()))
			out = append(out, lib)
		}
	}
	slices.SortFunc(out, func(a, b ports.LibraryFile) int {
		return strings.Compare(a.Path, b.Path)
	})
	return out, nil
}

// classify recognizes a library file by its name and derives the library
// name: the lib prefix is stripped from Unix style names, and every library
// extension including a trailing .so version is removed.
func classify(file string) (ports.LibraryFile, bool) {
	var lib ports.LibraryFile
	var base string

	switch {
	case strings.HasSuffix(file, ".dll.a"):
		base, lib.Import = strings.TrimSuffix(file, ".dll.a"), true
	case strings.HasSuffix(file, ".a"):
		base = strings.TrimSuffix(file, ".a")
	case strings.HasSuffix(file, ".lib"):
		lib.Name, lib.Import = strings.TrimSuffix(file, ".lib"), true
		return lib, lib.Name != ""
	case strings.HasSuffix(file, ".dll"):
		lib.Name, lib.Shared = strings.TrimSuffix(file, ".dll"), true
		return lib, lib.Name != ""
	case strings.HasSuffix(file, ".dylib"):
		base, lib.Shared = strings.TrimSuffix(file, ".dylib"), true
		// libfoo.1.dylib
		if i := strings.IndexByte(base, '.'); i > 0 {
			base = base[:i]
		}
	default:
		i := strings.LastIndex(file, ".so")
		if i <= 0 || !isSOVersion(file[i+len(".so"):]) {
			return lib, false
		}
		base, lib.Shared = file[:i], true
	}

	lib.Name = strings.TrimPrefix(base, "lib")
	return lib, lib.Name != ""
}

// isSOVersion reports whether s is empty or a dotted numeric suffix like ".1.2".
func isSOVersion(s string) bool {
	if s == "" {
		return true
	}
	for _, part := range strings.Split(s, ".")[1:] {
		if part == "" {
			return false
		}
		for _, r := range part {
			if r < '0' || r > '9' {
				return false
			}
		}
	}
	return s[0] == '.'
}
