package ports

// LibraryFile is a library found in an install tree.
type LibraryFile struct {
	// Path is relative to the install root.
	Path string
	// Name is the library name without prefix and extensions.
	Name string
	// Shared is true for shared libraries.
	Shared bool
	// Import is true for static files that may be the import library of a
	// DLL (.lib and .dll.a).
	Import bool
}

// LibraryScanner finds library files in an install tree.
//
//go:generate mockgen -source=scanner.go -destination=mocks/mock_scanner.go -package=mocks
type LibraryScanner interface {
	// Scan walks the given directories, relative to root, and returns every
	// library file in lexical path order. Missing directories are skipped.
	Scan(root string, dirs []string) ([]LibraryFile, error)
}
