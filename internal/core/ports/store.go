package ports

import "go.trai.ch/kiln/internal/core/domain"

// BuildInfoStore defines the interface for storing and retrieving the
// progress records of recipe instances below a workspace root.
//
//go:generate mockgen -source=store.go -destination=mocks/mock_store.go -package=mocks
type BuildInfoStore interface {
	// Get retrieves the build info for a given instance ID.
	// Returns nil, nil if not found.
	Get(root, instanceID string) (*domain.BuildInfo, error)

	// Put stores the build info and marks it as the latest record of its recipe.
	Put(root string, info domain.BuildInfo) error

	// Latest returns the most recent record of the named recipe, or nil, nil.
	Latest(root, recipe string) (*domain.BuildInfo, error)
}
