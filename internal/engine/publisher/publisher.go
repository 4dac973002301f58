// Package publisher computes the artifact a recipe exposes to its consumers.
package publisher

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/zerr"
)

// LibraryDirs are the install directories searched during discovery, relative
// to the install root. DLLs live in bin on Windows.
var LibraryDirs = []string{"lib", "bin"}

// Publisher builds artifacts from install layouts.
type Publisher struct {
	scanner ports.LibraryScanner
	logger  ports.Logger
}

// New creates a new Publisher.
func New(scanner ports.LibraryScanner, logger ports.Logger) *Publisher {
	return &Publisher{scanner: scanner, logger: logger}
}

// Publish returns the artifact of the install tree at root. Declared library
// names are used as given; otherwise libraries are discovered. Include
// directories are the declared ones, "include" by default.
func (p *Publisher) Publish(ref domain.Reference, root string, decl domain.PackageDecl) (domain.Artifact, error) {
	libs := slices.Clone(decl.Libs)
	if len(libs) == 0 {
		var err error
		libs, err = p.discover(root)
		if err != nil {
			return domain.Artifact{}, err
		}
	}

	artifact := domain.Artifact{
		Ref:         ref,
		Root:        root,
		Libs:        libs,
		IncludeDirs: decl.IncludeDirsOrDefault(),
	}

	p.logger.Debug(fmt.Sprintf("published %s: libs=[%s] include_dirs=[%s]",
		ref, strings.Join(artifact.Libs, " "), strings.Join(artifact.IncludeDirs, " ")))

	return artifact, nil
}

type candidate struct {
	shared bool
	static bool
	imp    bool
	paths  []string
}

func (p *Publisher) discover(root string) ([]string, error) {
	files, err := p.scanner.Scan(root, LibraryDirs)
	if err != nil {
		return nil, domain.NewRecipeError(domain.ErrDiscovery, zerr.Wrap(err, "failed to scan install layout"))
	}

	found := make(map[string]*candidate)
	for _, f := range files {
		c, ok := found[f.Name]
		if !ok {
			c = &candidate{}
			found[f.Name] = c
		}
		switch {
		case f.Shared:
			c.shared = true
		case f.Import:
			c.imp = true
		default:
			c.static = true
		}
		c.paths = append(c.paths, f.Path)
	}

	if len(found) == 0 {
		err := domain.Tag(domain.ErrNoLibraries, "searched", strings.Join(LibraryDirs, ","))
		return nil, domain.NewRecipeError(domain.ErrDiscovery, err)
	}

	names := slices.Sorted(maps.Keys(found))
	for _, name := range names {
		// An import library next to its DLL is part of the shared library.
		if c := found[name]; c.shared && c.static {
			err := domain.Tag(domain.ErrAmbiguousLibrary, "library", name)
			err = zerr.With(err, "files", strings.Join(c.paths, ","))
			return nil, domain.NewRecipeError(domain.ErrDiscovery, err)
		}
	}
	return names, nil
}
