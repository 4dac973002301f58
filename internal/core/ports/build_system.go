package ports

import (
	"context"
	"io"

	"go.trai.ch/kiln/internal/core/domain"
)

// ConfigureRequest carries everything the build system needs to configure a
// build tree.
type ConfigureRequest struct {
	Recipe   string
	Settings domain.Settings
	// Definitions is the resolved build configuration.
	Definitions domain.DefinitionMap
	// Prefix is prepended to toggle cache names.
	Prefix string
	Layout domain.InstanceLayout
	// SourceDir is the directory holding the top-level build file.
	SourceDir string
	// PrefixPaths are the install roots of linked dependencies.
	PrefixPaths []string
	// Log receives the tool output.
	Log io.Writer
}

// BuildRequest carries everything the build system needs to compile.
type BuildRequest struct {
	Recipe   string
	Settings domain.Settings
	Layout   domain.InstanceLayout
	// ToolPaths are directories prepended to PATH while building.
	ToolPaths []string
	// Log receives the tool output.
	Log io.Writer
}

// BuildSystem drives the external native build system.
//
//go:generate mockgen -source=build_system.go -destination=mocks/mock_build_system.go -package=mocks
type BuildSystem interface {
	// Configure prepares the build tree. It must leave an existing build tree
	// untouched when the inputs did not change.
	Configure(ctx context.Context, req ConfigureRequest) error

	// Build compiles the configured build tree.
	Build(ctx context.Context, req BuildRequest) error

	// Install copies the build products into the install root.
	Install(ctx context.Context, req BuildRequest) error
}
