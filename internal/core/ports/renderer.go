package ports

import (
	"context"
	"time"
)

// Renderer is the abstraction for output rendering.
// It decouples telemetry collection from presentation logic.
//
//go:generate mockgen -source=renderer.go -destination=mocks/mock_renderer.go -package=mocks
type Renderer interface {
	// Start initializes the renderer and begins its lifecycle.
	Start(ctx context.Context) error

	// Stop signals the renderer to stop accepting new events and flush output.
	Stop() error

	// Wait blocks until the renderer has fully terminated.
	Wait() error

	// OnPlanEmit is called when the scheduler has planned the recipe graph.
	// recipes: all recipe names in execution order
	// deps: dependency map (recipe -> list of dependencies)
	// targets: the user-requested recipes
	OnPlanEmit(recipes []string, deps map[string][]string, targets []string)

	// OnTaskStart is called when a recipe or one of its phases starts.
	OnTaskStart(spanID, parentID, name string, startTime time.Time)

	// OnTaskLog is called when a phase emits output.
	OnTaskLog(spanID string, data []byte)

	// OnTaskComplete is called when a recipe or phase finishes.
	OnTaskComplete(spanID string, endTime time.Time, err error)
}
