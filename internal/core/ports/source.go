package ports

import (
	"context"
	"io"

	"go.trai.ch/kiln/internal/core/domain"
)

// FetchRequest describes one source fetch.
type FetchRequest struct {
	// Source is the recipe's source reference.
	Source domain.SourceRef
	// RecipeDir is the directory of the recipe file. Local sources and
	// exported files are resolved against it.
	RecipeDir string
	// Dest is the exclusively owned directory to fetch into. It does not exist
	// when Fetch is called.
	Dest string
	// Exports are files next to the recipe copied into Dest after the fetch.
	Exports []string
	// Log receives the output of the version control tool.
	Log io.Writer
}

// SourceFetcher fetches a recipe's source at its pinned reference.
//
//go:generate mockgen -source=source.go -destination=mocks/mock_source.go -package=mocks
type SourceFetcher interface {
	Fetch(ctx context.Context, req FetchRequest) error
}
