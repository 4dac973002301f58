package domain_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/zerr"
)

func recipe(t *testing.T, name, version string, reqs ...domain.Requirement) *domain.Recipe {
	t.Helper()
	return &domain.Recipe{
		Name:         name,
		Version:      version,
		Options:      libSchema(t),
		Source:       domain.SourceRef{Path: "."},
		Requirements: reqs,
	}
}

func linked(ref string, opts map[string]string) domain.Requirement {
	r, err := domain.ParseReference(ref)
	if err != nil {
		panic(err)
	}
	return domain.Requirement{Ref: r, Kind: domain.KindLinked, Options: opts}
}

func tool(ref string) domain.Requirement {
	r, err := domain.ParseReference(ref)
	if err != nil {
		panic(err)
	}
	return domain.Requirement{Ref: r, Kind: domain.KindBuildTool}
}

func TestGraph_AddRecipe(t *testing.T) {
	g := domain.NewGraph()
	r := recipe(t, "libossia", "1.2.1")

	require.NoError(t, g.AddRecipe(r))

	err := g.AddRecipe(r)
	require.Error(t, err)
	zErr, ok := err.(*zerr.Error)
	require.True(t, ok, "expected *zerr.Error, got %T", err)
	assert.Equal(t, "libossia", zErr.Metadata()["recipe"])
}

func TestGraph_Walk(t *testing.T) {
	g := domain.NewGraph()
	// runner -> libossia -> boost
	require.NoError(t, g.AddRecipe(recipe(t, "runner", "1.0.0", linked("libossia/1.2.1", nil))))
	require.NoError(t, g.AddRecipe(recipe(t, "libossia", "1.2.1", linked("boost/1.83.0", nil))))
	require.NoError(t, g.AddRecipe(recipe(t, "boost", "1.83.0")))

	require.NoError(t, g.Validate())

	var order []string
	for r := range g.Walk() {
		order = append(order, r.Name)
	}
	assert.Equal(t, []string{"boost", "libossia", "runner"}, order)
	assert.Equal(t, []string{"libossia"}, g.Dependencies("runner"))
}

func TestGraph_Validate_Cycle(t *testing.T) {
	g := domain.NewGraph()
	require.NoError(t, g.AddRecipe(recipe(t, "a", "1", linked("b/1", nil))))
	require.NoError(t, g.AddRecipe(recipe(t, "b", "1", tool("a/1"))))

	err := g.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle detected")

	zErr, ok := err.(*zerr.Error)
	require.True(t, ok)
	assert.Equal(t, "a -> b -> a", zErr.Metadata()["cycle"])
}

func TestGraph_Validate_PinPreservedVerbatim(t *testing.T) {
	g := domain.NewGraph()
	require.NoError(t, g.AddRecipe(recipe(t, "runner", "1.0.0", linked("libossia/v2.0.0-rc6-133-gad48e52a1", nil))))
	require.NoError(t, g.AddRecipe(recipe(t, "libossia", "v2.0.0-rc6-133-gad48e52a1")))

	require.NoError(t, g.Validate())

	r, ok := g.Recipe("runner")
	require.True(t, ok)
	assert.Equal(t, "v2.0.0-rc6-133-gad48e52a1", r.Requirements[0].Ref.Version)
}

func TestGraph_Validate_PinMismatch(t *testing.T) {
	g := domain.NewGraph()
	require.NoError(t, g.AddRecipe(recipe(t, "runner", "1.0.0", linked("libossia/1.2.0", nil))))
	require.NoError(t, g.AddRecipe(recipe(t, "libossia", "1.2.1")))

	err := g.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConfiguration))
	assert.Contains(t, err.Error(), "pinned version does not match recipe version")
}

func TestGraph_Validate_ForcedOptions(t *testing.T) {
	g := domain.NewGraph()
	require.NoError(t, g.AddRecipe(recipe(t, "runner", "1.0.0", linked("libossia/1.2.1", map[string]string{"shared": "False"}))))
	require.NoError(t, g.AddRecipe(recipe(t, "tools", "1.0.0", linked("libossia/1.2.1", map[string]string{"shared": "false"}))))
	require.NoError(t, g.AddRecipe(recipe(t, "libossia", "1.2.1")))

	require.NoError(t, g.Validate())
	assert.Equal(t, map[string]string{"shared": "false"}, g.ForcedOptions("libossia"))
	assert.Equal(t, "runner", g.ForcedBy("libossia", "shared"))
}

func TestGraph_Validate_ConflictingOverrides(t *testing.T) {
	g := domain.NewGraph()
	require.NoError(t, g.AddRecipe(recipe(t, "runner", "1.0.0", linked("libossia/1.2.1", map[string]string{"shared": "false"}))))
	require.NoError(t, g.AddRecipe(recipe(t, "tools", "1.0.0", linked("libossia/1.2.1", map[string]string{"shared": "true"}))))
	require.NoError(t, g.AddRecipe(recipe(t, "libossia", "1.2.1")))

	err := g.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConfiguration))
	assert.Contains(t, err.Error(), "conflicting option override")
}

func TestGraph_Validate_ConflictNamesFirstRequester(t *testing.T) {
	g := domain.NewGraph()
	require.NoError(t, g.AddRecipe(recipe(t, "a-runner", "1.0.0", linked("libossia/1.2.1", map[string]string{"shared": "false"}))))
	require.NoError(t, g.AddRecipe(recipe(t, "b-tools", "1.0.0", linked("libossia/1.2.1", map[string]string{"shared": "False"}))))
	require.NoError(t, g.AddRecipe(recipe(t, "c-plugin", "1.0.0", linked("libossia/1.2.1", map[string]string{"shared": "true"}))))
	require.NoError(t, g.AddRecipe(recipe(t, "libossia", "1.2.1")))

	err := g.Validate()
	require.ErrorIs(t, err, domain.ErrConflictingOverride)

	var zErr *zerr.Error
	require.ErrorAs(t, err, &zErr)
	assert.Equal(t, "a-runner=false", zErr.Metadata()["forced_by"])
	assert.Equal(t, "c-plugin=true", zErr.Metadata()["conflicts_with"])
}

func TestGraph_Validate_UnknownForcedOption(t *testing.T) {
	g := domain.NewGraph()
	require.NoError(t, g.AddRecipe(recipe(t, "runner", "1.0.0", linked("libossia/1.2.1", map[string]string{"static": "true"}))))
	require.NoError(t, g.AddRecipe(recipe(t, "libossia", "1.2.1")))

	err := g.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown option")
}

func TestGraph_ExternalRequirements(t *testing.T) {
	g := domain.NewGraph()
	require.NoError(t, g.AddRecipe(recipe(t, "runner", "1.0.0",
		linked("libossia/1.2.1", nil),
		linked("boost/1.83.0", nil),
		tool("cmake/3.27.9"),
	)))
	require.NoError(t, g.AddRecipe(recipe(t, "libossia", "1.2.1")))

	require.NoError(t, g.Validate())

	ext := g.External("runner")
	require.Len(t, ext, 2)
	assert.Equal(t, "boost/1.83.0", ext[0].Ref.String())
	assert.Equal(t, "cmake/3.27.9", ext[1].Ref.String())
	assert.Equal(t, []string{"libossia"}, g.Dependencies("runner"))
}

func TestGraph_Closure(t *testing.T) {
	g := domain.NewGraph()
	require.NoError(t, g.AddRecipe(recipe(t, "runner", "1.0.0", linked("libossia/1.2.1", nil))))
	require.NoError(t, g.AddRecipe(recipe(t, "libossia", "1.2.1")))
	require.NoError(t, g.AddRecipe(recipe(t, "unrelated", "0.1.0")))
	require.NoError(t, g.Validate())

	got, err := g.Closure([]string{"runner"})
	require.NoError(t, err)
	assert.Equal(t, []string{"libossia", "runner"}, got)

	_, err = g.Closure([]string{"missing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "recipe not found")

	_, err = g.Closure(nil)
	require.ErrorIs(t, err, domain.ErrNoTargetsSpecified)
}
