// Package domain contains the core domain models and business logic of kiln:
// recipes, option resolution, build definitions and the recipe dependency graph.
package domain

import (
	"iter"
	"maps"
	"slices"

	"go.trai.ch/zerr"
)

// Graph represents the dependency graph of the recipes of one workspace.
type Graph struct {
	recipes        map[string]*Recipe
	executionOrder []string
	deps           map[string][]string
	forced         map[string]map[string]string
	forcedBy       map[string]map[string]string
}

// NewGraph creates a new empty Graph.
func NewGraph() *Graph {
	return &Graph{
		recipes: make(map[string]*Recipe),
	}
}

// AddRecipe adds a recipe to the graph.
// It returns an error if a recipe with the same name already exists.
func (g *Graph) AddRecipe(r *Recipe) error {
	if _, exists := g.recipes[r.Name]; exists {
		return Tag(ErrRecipeAlreadyExists, "recipe", r.Name)
	}
	g.recipes[r.Name] = r
	return nil
}

// Recipe returns the named recipe.
func (g *Graph) Recipe(name string) (*Recipe, bool) {
	r, ok := g.recipes[name]
	return r, ok
}

// Names returns the recipe names in sorted order.
func (g *Graph) Names() []string {
	return slices.Sorted(maps.Keys(g.recipes))
}

// Len returns the number of recipes.
func (g *Graph) Len() int {
	return len(g.recipes)
}

// Validate links requirements to workspace recipes, checks pins and option
// overrides, and detects cycles. It populates the execution order if
// successful.
//
// A requirement whose name is not a recipe of the workspace is external and
// adds no edge.
func (g *Graph) Validate() error {
	g.deps = make(map[string][]string, len(g.recipes))
	g.forced = make(map[string]map[string]string)
	g.forcedBy = make(map[string]map[string]string)

	for _, name := range g.Names() {
		r := g.recipes[name]
		for _, req := range r.Requirements {
			dep, ok := g.recipes[req.Ref.Name]
			if !ok {
				continue
			}
			if req.Ref.Version != dep.Version {
				err := Tag(ErrPinMismatch, "recipe", name)
				err = zerr.With(err, "requires", req.Ref.String())
				return configurationError(zerr.With(err, "available", dep.Ref().String()))
			}
			if !slices.Contains(g.deps[name], dep.Name) {
				g.deps[name] = append(g.deps[name], dep.Name)
			}
			if req.Kind == KindLinked {
				if err := g.force(name, dep, req.Options); err != nil {
					return err
				}
			}
		}
	}

	return g.sort()
}

func (g *Graph) force(requester string, dep *Recipe, options map[string]string) error {
	for _, opt := range slices.Sorted(maps.Keys(options)) {
		o, ok := dep.Options.Lookup(opt)
		if !ok {
			err := Tag(ErrUnknownOption, "option", opt)
			err = zerr.With(err, "recipe", dep.Name)
			return configurationError(zerr.With(err, "required_by", requester))
		}
		value, ok := o.Domain.Normalize(options[opt])
		if !ok {
			err := Tag(ErrInvalidOptionValue, "option", opt)
			err = zerr.With(err, "value", options[opt])
			return configurationError(zerr.With(err, "required_by", requester))
		}

		if g.forced[dep.Name] == nil {
			g.forced[dep.Name] = make(map[string]string)
			g.forcedBy[dep.Name] = make(map[string]string)
		}
		prev, exists := g.forced[dep.Name][opt]
		if !exists {
			g.forced[dep.Name][opt] = value
			g.forcedBy[dep.Name][opt] = requester
			continue
		}
		if prev != value {
			err := Tag(ErrConflictingOverride, "recipe", dep.Name)
			err = zerr.With(err, "option", opt)
			err = zerr.With(err, "forced_by", g.forcedBy[dep.Name][opt]+"="+prev)
			return configurationError(zerr.With(err, "conflicts_with", requester+"="+value))
		}
	}
	return nil
}

func (g *Graph) sort() error {
	g.executionOrder = make([]string, 0, len(g.recipes))
	visited := make(map[string]int) // 0: unvisited, 1: visiting, 2: visited
	var path []string

	var visit func(u string) error
	visit = func(u string) error {
		visited[u] = 1
		path = append(path, u)

		for _, dep := range g.deps[u] {
			if visited[dep] == 1 {
				return g.buildCycleError(path, dep)
			}
			if visited[dep] == 0 {
				if err := visit(dep); err != nil {
					return err
				}
			}
		}

		visited[u] = 2
		path = path[:len(path)-1]
		g.executionOrder = append(g.executionOrder, u)
		return nil
	}

	for _, name := range g.Names() {
		if visited[name] == 0 {
			if err := visit(name); err != nil {
				return err
			}
		}
	}

	return nil
}

// buildCycleError constructs an error with cycle path metadata.
func (g *Graph) buildCycleError(path []string, dep string) error {
	cyclePath := ""
	startIdx := -1
	for i, node := range path {
		if node == dep {
			startIdx = i
			break
		}
	}
	for i := startIdx; i < len(path); i++ {
		cyclePath += path[i] + " -> "
	}
	cyclePath += dep
	return Tag(ErrCycleDetected, "cycle", cyclePath)
}

// Dependencies returns the workspace recipes name depends on, in declaration
// order. It assumes Validate() has been called and returned nil.
func (g *Graph) Dependencies(name string) []string {
	return slices.Clone(g.deps[name])
}

// ForcedOptions returns the option values dependents force onto name.
func (g *Graph) ForcedOptions(name string) map[string]string {
	return maps.Clone(g.forced[name])
}

// ForcedBy returns the dependent that forces option on name.
func (g *Graph) ForcedBy(name, option string) string {
	return g.forcedBy[name][option]
}

// External returns the requirements of name that are not workspace recipes.
func (g *Graph) External(name string) []Requirement {
	r, ok := g.recipes[name]
	if !ok {
		return nil
	}
	var out []Requirement
	for _, req := range r.Requirements {
		if _, ok := g.recipes[req.Ref.Name]; !ok {
			out = append(out, req)
		}
	}
	return out
}

// Closure returns targets and all their transitive workspace dependencies in
// execution order.
func (g *Graph) Closure(targets []string) ([]string, error) {
	if len(targets) == 0 {
		return nil, ErrNoTargetsSpecified
	}
	needed := make(map[string]bool)
	var mark func(string)
	mark = func(name string) {
		if needed[name] {
			return
		}
		needed[name] = true
		for _, dep := range g.deps[name] {
			mark(dep)
		}
	}
	for _, t := range targets {
		if _, ok := g.recipes[t]; !ok {
			return nil, Tag(ErrRecipeNotFound, "recipe", t)
		}
		mark(t)
	}

	out := make([]string, 0, len(needed))
	for _, name := range g.executionOrder {
		if needed[name] {
			out = append(out, name)
		}
	}
	return out, nil
}

// Walk returns an iterator that yields recipes in execution order,
// dependencies first. It assumes Validate() has been called and returned nil.
func (g *Graph) Walk() iter.Seq[*Recipe] {
	return func(yield func(*Recipe) bool) {
		for _, name := range g.executionOrder {
			if !yield(g.recipes[name]) {
				return
			}
		}
	}
}
