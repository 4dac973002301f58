package lifecycle_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/kiln/internal/adapters/cas"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/kiln/internal/core/ports/mocks"
	"go.trai.ch/kiln/internal/engine/lifecycle"
	"go.trai.ch/zerr"
	"go.uber.org/mock/gomock"
)

type publishFunc func(ref domain.Reference, root string, decl domain.PackageDecl) (domain.Artifact, error)

func (f publishFunc) Publish(ref domain.Reference, root string, decl domain.PackageDecl) (domain.Artifact, error) {
	return f(ref, root, decl)
}

func publishOssia(ref domain.Reference, root string, decl domain.PackageDecl) (domain.Artifact, error) {
	return domain.Artifact{Ref: ref, Root: root, Libs: []string{"ossia"}, IncludeDirs: decl.IncludeDirsOrDefault()}, nil
}

type fixture struct {
	root    string
	fetcher *mocks.MockSourceFetcher
	build   *mocks.MockBuildSystem
	hasher  *mocks.MockHasher
	store   *cas.Store
	deps    lifecycle.Deps
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)

	logger := mocks.NewMockLogger(ctrl)
	logger.EXPECT().Debug(gomock.Any()).AnyTimes()
	logger.EXPECT().Warn(gomock.Any()).AnyTimes()

	f := &fixture{
		root:    t.TempDir(),
		fetcher: mocks.NewMockSourceFetcher(ctrl),
		build:   mocks.NewMockBuildSystem(ctrl),
		hasher:  mocks.NewMockHasher(ctrl),
		store:   cas.NewStore(),
	}
	f.deps = lifecycle.Deps{
		Fetcher:     f.fetcher,
		BuildSystem: f.build,
		Publisher:   publishFunc(publishOssia),
		Store:       f.store,
		Hasher:      f.hasher,
		Logger:      logger,
	}
	return f
}

func ossiaRecipe(t *testing.T) *domain.Recipe {
	t.Helper()
	schema, err := domain.NewOptionSchema(domain.Option{Name: "shared", Domain: domain.BoolDomain(), Default: "false"})
	require.NoError(t, err)
	return &domain.Recipe{
		Name:             "libossia",
		Version:          "3.0.0",
		Dir:              "/recipes/libossia",
		Settings:         domain.SettingNames,
		Options:          schema,
		Preset:           domain.PresetEmbeddable,
		DefinitionPrefix: "OSSIA_",
		Source:           domain.SourceRef{Git: "https://github.com/ossia/libossia", Ref: "v3.0.0"},
		Generators:       []string{domain.GeneratorCMake},
	}
}

func (f *fixture) newInstance(t *testing.T, overrides map[string]string) *lifecycle.Instance {
	t.Helper()
	inst, err := lifecycle.New(f.deps, lifecycle.Config{
		Root:      f.root,
		Recipe:    ossiaRecipe(t),
		Settings:  domain.Settings{OS: "Linux", Compiler: "gcc", BuildType: "Release", Arch: "x86_64"},
		Overrides: overrides,
	})
	require.NoError(t, err)
	return inst
}

// expectToolchain makes the build system behave like CMake on disk.
func (f *fixture) expectToolchain() {
	f.fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req ports.FetchRequest) error {
			_, _ = req.Log.Write([]byte("Cloning into 'src'...\n"))
			return os.MkdirAll(req.Dest, domain.DirPerm)
		})
	f.build.EXPECT().Configure(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req ports.ConfigureRequest) error {
			_, _ = req.Log.Write([]byte("-- Configuring done\n"))
			return os.MkdirAll(req.Layout.Build, domain.DirPerm)
		})
	f.build.EXPECT().Build(gomock.Any(), gomock.Any()).Return(nil)
	f.build.EXPECT().Install(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req ports.BuildRequest) error {
			return os.MkdirAll(filepath.Join(req.Layout.Install, "include"), domain.DirPerm)
		})
}

func TestInstance_Run(t *testing.T) {
	f := newFixture(t)
	f.expectToolchain()
	f.hasher.EXPECT().HashTree(gomock.Any()).Return("cafe", nil)

	inst := f.newInstance(t, nil)
	var out bytes.Buffer
	artifact, err := inst.Run(t.Context(), lifecycle.Env{PrefixPaths: []string{"/deps/boost/install"}}, &out)
	require.NoError(t, err)

	assert.Equal(t, []string{"ossia"}, artifact.Libs)
	assert.Equal(t, inst.Layout().Install, artifact.Root)
	assert.Equal(t, domain.PhasePackageInfo, inst.Phase())
	assert.Equal(t, "Cloning into 'src'...\n-- Configuring done\n", out.String())

	name := domain.InstanceDirName(domain.Reference{Name: "libossia", Version: "3.0.0"}, inst.ID())
	log, err := os.ReadFile(filepath.Join(f.root, domain.DefaultLogsPath(), name+".log"))
	require.NoError(t, err)
	assert.Contains(t, string(log), "==> libossia configure\n-- Configuring done\n")

	info, err := f.store.Latest(f.root, "libossia")
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, domain.PhasePackageInfo, info.Phase)
	assert.Equal(t, inst.ID(), info.InstanceID)
	assert.Equal(t, "cafe", info.InstallHash)
	require.NotNil(t, info.Artifact)
	assert.Equal(t, []string{"ossia"}, info.Artifact.Libs)
}

func TestInstance_PhaseOrder(t *testing.T) {
	f := newFixture(t)
	inst := f.newInstance(t, nil)

	err := inst.Package(t.Context(), nil)
	require.ErrorIs(t, err, domain.ErrPhaseOrder)
	assert.Contains(t, err.Error(), "predecessor phase has not completed")

	_, err = inst.PackageInfo(t.Context())
	require.ErrorIs(t, err, domain.ErrPhaseOrder)

	// An order violation leaves the instance usable.
	f.fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any()).Return(nil)
	require.NoError(t, inst.Source(t.Context(), nil))
	assert.Equal(t, domain.PhaseSource, inst.Phase())

	err = inst.Build(t.Context(), nil, nil)
	require.ErrorIs(t, err, domain.ErrPhaseOrder)
}

func TestInstance_BuildFailureTerminates(t *testing.T) {
	f := newFixture(t)
	f.fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any()).Return(nil)
	f.build.EXPECT().Configure(gomock.Any(), gomock.Any()).Return(nil)
	f.build.EXPECT().Build(gomock.Any(), gomock.Any()).
		Return(zerr.With(zerr.New("command failed"), "exit_code", 2))

	inst := f.newInstance(t, nil)
	_, err := inst.Run(t.Context(), lifecycle.Env{}, nil)
	require.ErrorIs(t, err, domain.ErrBuild)

	re, ok := domain.AsRecipeError(err)
	require.True(t, ok)
	assert.Equal(t, "libossia", re.Recipe)
	assert.Equal(t, domain.PhaseBuild, re.Phase)
	assert.Equal(t, 2, re.ExitCode)
	assert.NotEmpty(t, re.LogRef)
	assert.Contains(t, err.Error(), "build error in libossia during build (exit status 2)")

	err = inst.Package(t.Context(), nil)
	require.ErrorIs(t, err, domain.ErrInstanceTerminated)
	_, err = inst.PackageInfo(t.Context())
	require.ErrorIs(t, err, domain.ErrInstanceTerminated)
}

func TestInstance_SourceFailure(t *testing.T) {
	f := newFixture(t)
	f.fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any()).Return(errors.New("repository not found"))

	inst := f.newInstance(t, nil)
	err := inst.Source(t.Context(), nil)
	require.ErrorIs(t, err, domain.ErrSourceFetch)
	assert.Contains(t, err.Error(), "repository not found")

	err = inst.Configure(t.Context(), nil, nil)
	require.ErrorIs(t, err, domain.ErrInstanceTerminated)
}

func TestInstance_ConfigureTwice(t *testing.T) {
	f := newFixture(t)
	f.fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any()).Return(nil)
	f.build.EXPECT().Configure(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req ports.ConfigureRequest) error {
			assert.Equal(t, "OSSIA_", req.Prefix)
			assert.Equal(t, []string{"/deps/boost/install"}, req.PrefixPaths)
			assert.True(t, req.Definitions.Has("CORE"))
			return nil
		}).Times(1)

	inst := f.newInstance(t, nil)
	require.NoError(t, inst.Source(t.Context(), nil))
	require.NoError(t, inst.Configure(t.Context(), []string{"/deps/boost/install"}, nil))
	require.NoError(t, inst.Configure(t.Context(), []string{"/deps/boost/install"}, nil))
	assert.Equal(t, domain.PhaseConfigure, inst.Phase())
}

func TestInstance_PackageInfoDiscoveryFailure(t *testing.T) {
	f := newFixture(t)
	f.expectToolchain()
	f.deps.Publisher = publishFunc(func(domain.Reference, string, domain.PackageDecl) (domain.Artifact, error) {
		return domain.Artifact{}, domain.NewRecipeError(domain.ErrDiscovery, domain.ErrNoLibraries)
	})

	inst := f.newInstance(t, nil)
	_, err := inst.Run(t.Context(), lifecycle.Env{}, nil)
	require.ErrorIs(t, err, domain.ErrDiscovery)

	re, ok := domain.AsRecipeError(err)
	require.True(t, ok)
	assert.Equal(t, domain.PhasePackageInfo, re.Phase)
	assert.Equal(t, "libossia", re.Recipe)
	assert.Empty(t, re.LogRef)
}

func TestInstance_PackageRequiresBuildTree(t *testing.T) {
	f := newFixture(t)
	f.expectToolchain()
	f.hasher.EXPECT().HashTree(gomock.Any()).Return("cafe", nil)

	inst := f.newInstance(t, nil)
	_, err := inst.Run(t.Context(), lifecycle.Env{}, nil)
	require.NoError(t, err)

	require.NoError(t, os.RemoveAll(inst.Layout().Build))
	err = inst.Package(t.Context(), nil)
	require.ErrorIs(t, err, domain.ErrPackage)
	assert.Contains(t, err.Error(), "build output no longer exists")
}

func TestInstance_MissingDeclaredIncludeDir(t *testing.T) {
	f := newFixture(t)
	f.fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any()).Return(nil)
	f.build.EXPECT().Configure(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req ports.ConfigureRequest) error {
			return os.MkdirAll(req.Layout.Build, domain.DirPerm)
		})
	f.build.EXPECT().Build(gomock.Any(), gomock.Any()).Return(nil)
	f.build.EXPECT().Install(gomock.Any(), gomock.Any()).Return(nil)

	r := ossiaRecipe(t)
	r.Package.IncludeDirs = []string{"include/ossia"}
	inst, err := lifecycle.New(f.deps, lifecycle.Config{Root: f.root, Recipe: r, Settings: domain.HostSettings()})
	require.NoError(t, err)

	_, err = inst.Run(t.Context(), lifecycle.Env{}, nil)
	require.ErrorIs(t, err, domain.ErrPackage)
	assert.Contains(t, err.Error(), "declared include directory missing")
}

func TestInstance_RestoreRepackages(t *testing.T) {
	f := newFixture(t)
	f.expectToolchain()
	f.hasher.EXPECT().HashTree(gomock.Any()).Return("cafe", nil)

	first := f.newInstance(t, map[string]string{"shared": "True"})
	_, err := first.Run(t.Context(), lifecycle.Env{}, nil)
	require.NoError(t, err)

	// No fetch, configure or build this time.
	f.build.EXPECT().Install(gomock.Any(), gomock.Any()).Return(nil)
	f.hasher.EXPECT().HashTree(gomock.Any()).Return("cafe", nil)

	second := f.newInstance(t, map[string]string{"shared": "true"})
	assert.Equal(t, first.ID(), second.ID())
	require.NoError(t, second.Restore())
	assert.Equal(t, domain.PhaseBuild, second.Phase())

	require.NoError(t, second.Package(t.Context(), nil))
	artifact, err := second.PackageInfo(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []string{"ossia"}, artifact.Libs)
}

func TestInstance_RestoreWithoutBuild(t *testing.T) {
	f := newFixture(t)
	inst := f.newInstance(t, nil)

	err := inst.Restore()
	require.ErrorIs(t, err, domain.ErrPhaseOrder)
	assert.Contains(t, err.Error(), "no successful build recorded")
}

func TestInstance_SourceReusesFetchedTree(t *testing.T) {
	f := newFixture(t)
	f.fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req ports.FetchRequest) error {
			return os.MkdirAll(req.Dest, domain.DirPerm)
		}).Times(1)

	require.NoError(t, f.newInstance(t, nil).Source(t.Context(), nil))
	require.NoError(t, f.newInstance(t, nil).Source(t.Context(), nil))
}

func TestNew_ConfigurationErrors(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name      string
		overrides map[string]string
		preset    domain.Preset
		contains  string
	}{
		{name: "value not in option domain", overrides: map[string]string{"shared": "maybe"}, contains: "value not in option domain"},
		{name: "undeclared option", overrides: map[string]string{"with_rtaudio": "True"}, contains: "unknown option"},
		{name: "unknown preset", preset: "minimal", contains: "unknown preset"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := lifecycle.New(f.deps, lifecycle.Config{
				Root:      f.root,
				Recipe:    ossiaRecipe(t),
				Settings:  domain.HostSettings(),
				Overrides: tt.overrides,
				Preset:    tt.preset,
			})
			require.ErrorIs(t, err, domain.ErrConfiguration)
			assert.Contains(t, err.Error(), tt.contains)

			re, ok := domain.AsRecipeError(err)
			require.True(t, ok)
			assert.Equal(t, "libossia", re.Recipe)
			assert.Equal(t, domain.PhaseConfigure, re.Phase)
		})
	}
}
