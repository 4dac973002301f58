package ports

import "go.trai.ch/kiln/internal/core/domain"

// ConfigLoader defines the interface for loading recipes.
//
//go:generate mockgen -source=config_loader.go -destination=mocks/mock_config_loader.go -package=mocks
type ConfigLoader interface {
	// Load reads kiln.work.yaml or kiln.yaml, walking up from the given working
	// directory, and returns the workspace with its validated recipe graph.
	Load(cwd string) (*domain.Workspace, error)

	// DiscoverRoot walks up from cwd to find the workspace root.
	// Returns the directory containing kiln.work.yaml or kiln.yaml.
	DiscoverRoot(cwd string) (string, error)
}
