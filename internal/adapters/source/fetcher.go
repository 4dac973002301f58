// Package source fetches recipe sources from git remotes and local
// directories.
package source

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/zerr"
)

var (
	// ErrMissingRef is returned when a git source names no branch, tag or commit.
	ErrMissingRef = zerr.New("git source declares no ref")

	// ErrDestinationExists is returned when the fetch destination already exists.
	ErrDestinationExists = zerr.New("fetch destination already exists")

	// ErrMissingExport is returned when an exported file does not exist next to the recipe.
	ErrMissingExport = zerr.New("exported file not found")
)

var _ ports.SourceFetcher = (*Fetcher)(nil)

// Fetcher implements ports.SourceFetcher. Git sources are fetched at their
// pinned ref with a shallow fetch driven through the executor. Local sources
// are copied.
type Fetcher struct {
	executor ports.Executor
}

// NewFetcher creates a new Fetcher.
func NewFetcher(executor ports.Executor) *Fetcher {
	return &Fetcher{executor: executor}
}

// Fetch populates req.Dest with the recipe's source and its exported files.
func (f *Fetcher) Fetch(ctx context.Context, req ports.FetchRequest) error {
	if _, err := os.Stat(req.Dest); err == nil {
		return domain.Tag(ErrDestinationExists, "path", req.Dest)
	}

	var err error
	if req.Source.IsLocal() {
		err = CopyTree(filepath.Join(req.RecipeDir, req.Source.Path), req.Dest)
	} else {
		err = f.clone(ctx, req)
	}
	if err != nil {
		return err
	}

	for _, export := range req.Exports {
		src := filepath.Join(req.RecipeDir, export)
		if _, err := os.Stat(src); err != nil {
			return domain.Tag(ErrMissingExport, "path", src)
		}
		if err := copyFile(src, filepath.Join(req.Dest, export)); err != nil {
			return err
		}
	}
	return nil
}

func (f *Fetcher) clone(ctx context.Context, req ports.FetchRequest) error {
	if req.Source.Ref == "" {
		return domain.Tag(ErrMissingRef, "url", req.Source.Git)
	}
	if err := os.MkdirAll(req.Dest, domain.DirPerm); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to create source directory"), "path", req.Dest)
	}

	log := req.Log
	if log == nil {
		log = io.Discard
	}

	for _, cmd := range cloneCommands(req.Source, req.Dest) {
		if err := f.executor.Execute(ctx, cmd, log, log); err != nil {
			return zerr.With(zerr.With(err, "url", req.Source.Git), "ref", req.Source.Ref)
		}
	}
	return nil
}

// cloneCommands returns the git invocations that check out ref into dest
// without fetching the remote's history.
func cloneCommands(src domain.SourceRef, dest string) []ports.Command {
	git := func(name string, args ...string) ports.Command {
		return ports.Command{
			Name: "git " + name,
			Args: append([]string{"git"}, args...),
			Dir:  dest,
			Env:  []string{"GIT_TERMINAL_PROMPT=0"},
		}
	}
	return []ports.Command{
		git("init", "init", "--quiet"),
		git("remote", "remote", "add", "origin", src.Git),
		git("fetch", "fetch", "--depth", "1", "origin", src.Ref),
		git("checkout", "checkout", "--quiet", "--detach", "FETCH_HEAD"),
		git("submodule", "submodule", "update", "--init", "--recursive", "--depth", "1"),
	}
}
