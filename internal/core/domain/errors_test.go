package domain_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/zerr"
)

func TestRecipeError_Classification(t *testing.T) {
	re := &domain.RecipeError{
		Kind:     domain.ErrBuild,
		Recipe:   "libossia",
		Phase:    domain.PhaseBuild,
		ExitCode: 2,
		LogRef:   ".kiln/logs/libossia-build.log",
		Err:      zerr.New("command failed"),
	}
	wrapped := fmt.Errorf("graph: %w", re)

	assert.True(t, errors.Is(wrapped, domain.ErrBuild))
	assert.False(t, errors.Is(wrapped, domain.ErrPackage))

	got, ok := domain.AsRecipeError(wrapped)
	require.True(t, ok)
	assert.Equal(t, 2, got.ExitCode)
	assert.Equal(t,
		"build error in libossia during build (exit status 2), see .kiln/logs/libossia-build.log",
		got.Message())
	assert.Equal(t, got.Message()+": command failed", got.Error())
}

func TestTag(t *testing.T) {
	err := domain.Tag(domain.ErrRecipeNotFound, "recipe", "libmapper")
	err = zerr.With(err, "workspace", "/src")

	assert.ErrorIs(t, err, domain.ErrRecipeNotFound)
	assert.Equal(t, "recipe not found", err.Error())

	var zErr *zerr.Error
	require.ErrorAs(t, err, &zErr)
	assert.Equal(t, map[string]any{"recipe": "libmapper", "workspace": "/src"}, zErr.Metadata())

	_, err = domain.ParseToggle("NOPE")
	assert.ErrorIs(t, err, domain.ErrUnknownToggle)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestAttribute(t *testing.T) {
	_, err := domain.ParseToggle("NOPE")
	require.Error(t, err)

	attributed := domain.Attribute(err, "runner", domain.PhaseConfigure)
	re, ok := domain.AsRecipeError(attributed)
	require.True(t, ok)
	assert.Equal(t, "runner", re.Recipe)
	assert.Equal(t, domain.PhaseConfigure, re.Phase)
	assert.True(t, errors.Is(attributed, domain.ErrConfiguration))

	again := domain.Attribute(attributed, "other", domain.PhaseBuild)
	re, _ = domain.AsRecipeError(again)
	assert.Equal(t, "runner", re.Recipe, "attribution is only filled in once")

	plain := zerr.New("plain")
	assert.Equal(t, plain, domain.Attribute(plain, "runner", domain.PhaseBuild))
}
