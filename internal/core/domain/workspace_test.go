package domain_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/kiln/internal/core/domain"
)

func workspace(t *testing.T) *domain.Workspace {
	t.Helper()
	g := domain.NewGraph()
	require.NoError(t, g.AddRecipe(recipe(t, "libossia", "3.0.0")))
	require.NoError(t, g.AddRecipe(recipe(t, "runner", "1.0.0", linked("libossia/3.0.0", map[string]string{"shared": "True"}))))
	require.NoError(t, g.Validate())
	return &domain.Workspace{Root: t.TempDir(), Graph: g}
}

func TestWorkspace_Overrides(t *testing.T) {
	w := workspace(t)

	got, err := w.Overrides("libossia")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"shared": "true"}, got)

	w.SetOption("libossia", "fPIC", "false")
	w.SetOption("libossia", "shared", "on")
	got, err = w.Overrides("libossia")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"shared": "true", "fPIC": "false"}, got)
}

func TestWorkspace_OverridesConflict(t *testing.T) {
	w := workspace(t)
	w.SetOption("libossia", "shared", "false")

	_, err := w.Overrides("libossia")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConfiguration))
	assert.Contains(t, err.Error(), "conflicting option override")
}

func TestWorkspace_OverridesUnknownRecipe(t *testing.T) {
	w := workspace(t)
	_, err := w.Overrides("missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "recipe not found")
}

func TestWorkspace_Settings(t *testing.T) {
	w := workspace(t)
	w.Profile = map[string]string{"os": domain.OSWindows, "build_type": "Debug"}

	s, err := w.Settings()
	require.NoError(t, err)
	assert.Equal(t, domain.OSWindows, s.OS)
	assert.Equal(t, "Debug", s.BuildType)

	w.Profile = map[string]string{"libc": "musl"}
	_, err = w.Settings()
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConfiguration))
}

func TestWorkspace_EffectivePreset(t *testing.T) {
	w := workspace(t)
	r, _ := w.Graph.Recipe("libossia")
	assert.Equal(t, r.Preset, w.EffectivePreset(r))

	w.Preset = domain.PresetFull
	assert.Equal(t, domain.PresetFull, w.EffectivePreset(r))
}
