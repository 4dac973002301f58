package app_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/synctest"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/kiln/internal/adapters/cas"
	"go.trai.ch/kiln/internal/adapters/detector"
	"go.trai.ch/kiln/internal/app"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/kiln/internal/core/ports/mocks"
	"go.trai.ch/kiln/internal/engine/lifecycle"
	"go.uber.org/mock/gomock"
)

type publishFunc func(ref domain.Reference, root string, decl domain.PackageDecl) (domain.Artifact, error)

func (f publishFunc) Publish(ref domain.Reference, root string, decl domain.PackageDecl) (domain.Artifact, error) {
	return f(ref, root, decl)
}

type testApp struct {
	app     *app.App
	root    string
	loader  *mocks.MockConfigLoader
	fetcher *mocks.MockSourceFetcher
	build   *mocks.MockBuildSystem
	hasher  *mocks.MockHasher
	logger  *mocks.MockLogger
	store   *cas.Store
	stdout  *bytes.Buffer
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	ctrl := gomock.NewController(t)

	ta := &testApp{
		root:    t.TempDir(),
		loader:  mocks.NewMockConfigLoader(ctrl),
		fetcher: mocks.NewMockSourceFetcher(ctrl),
		build:   mocks.NewMockBuildSystem(ctrl),
		hasher:  mocks.NewMockHasher(ctrl),
		logger:  mocks.NewMockLogger(ctrl),
		store:   cas.NewStore(),
		stdout:  &bytes.Buffer{},
	}
	ta.logger.EXPECT().Debug(gomock.Any()).AnyTimes()

	publish := func(ref domain.Reference, root string, decl domain.PackageDecl) (domain.Artifact, error) {
		return domain.Artifact{Ref: ref, Root: root, Libs: []string{ref.Name}, IncludeDirs: decl.IncludeDirsOrDefault()}, nil
	}
	ta.app = app.New(ta.loader, ta.logger, lifecycle.Deps{
		Fetcher:     ta.fetcher,
		BuildSystem: ta.build,
		Publisher:   publishFunc(publish),
		Store:       ta.store,
		Hasher:      ta.hasher,
		Logger:      ta.logger,
	}).WithOutput(ta.stdout, &bytes.Buffer{})
	return ta
}

func (ta *testApp) workspace(t *testing.T) *domain.Workspace {
	t.Helper()
	schema, err := domain.NewOptionSchema(
		domain.Option{Name: domain.OptionShared, Domain: domain.BoolDomain(), Default: domain.ValueFalse},
		domain.Option{Name: domain.OptionFPIC, Domain: domain.BoolDomain(), Default: domain.ValueTrue},
	)
	require.NoError(t, err)

	g := domain.NewGraph()
	require.NoError(t, g.AddRecipe(&domain.Recipe{
		Name:       "boost",
		Version:    "1.83.0",
		Settings:   domain.SettingNames,
		Generators: []string{domain.GeneratorCMake},
	}))
	require.NoError(t, g.AddRecipe(&domain.Recipe{
		Name:             "libossia",
		Version:          "3.0.0",
		Settings:         domain.SettingNames,
		Options:          schema,
		Preset:           domain.PresetEmbeddable,
		DefinitionPrefix: "OSSIA_",
		Generators:       []string{domain.GeneratorCMake},
		Requirements: []domain.Requirement{
			{Ref: domain.Reference{Name: "boost", Version: "1.83.0"}, Kind: domain.KindLinked},
			{Ref: domain.Reference{Name: "ninja", Version: "1.11.1"}, Kind: domain.KindBuildTool},
		},
	}))
	require.NoError(t, g.Validate())

	return &domain.Workspace{
		Root:    ta.root,
		Graph:   g,
		Profile: map[string]string{domain.SettingOS: "Linux"},
	}
}

// expectToolchain makes every phase succeed on disk.
func (ta *testApp) expectToolchain() {
	ta.fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req ports.FetchRequest) error {
			return os.MkdirAll(req.Dest, domain.DirPerm)
		}).AnyTimes()
	ta.build.EXPECT().Configure(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req ports.ConfigureRequest) error {
			return os.MkdirAll(req.Layout.Build, domain.DirPerm)
		}).AnyTimes()
	ta.build.EXPECT().Build(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	ta.build.EXPECT().Install(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	ta.hasher.EXPECT().HashTree(gomock.Any()).Return("cafe", nil).AnyTimes()
}

func TestApp_Build(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ta := newTestApp(t)
		ta.loader.EXPECT().Load(".").Return(ta.workspace(t), nil)
		ta.expectToolchain()

		err := ta.app.Build(t.Context(), []string{"libossia"}, app.BuildOptions{Parallelism: 2})
		require.NoError(t, err)

		for _, name := range []string{"boost", "libossia"} {
			info, err := ta.store.Latest(ta.root, name)
			require.NoError(t, err)
			require.NotNil(t, info, name)
			assert.Equal(t, domain.PhasePackageInfo, info.Phase)
		}
	})
}

func TestApp_Build_InteractiveRenderer(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ta := newTestApp(t)
		ta.app.WithTeaOptions(
			tea.WithInput(strings.NewReader("")),
			tea.WithOutput(io.Discard),
			tea.WithoutSignalHandler(),
			tea.WithoutRenderer(),
		)
		ta.loader.EXPECT().Load(".").Return(ta.workspace(t), nil)
		ta.expectToolchain()

		err := ta.app.Build(t.Context(), []string{"libossia"}, app.BuildOptions{OutputMode: "tui"})
		require.NoError(t, err)

		info, err := ta.store.Latest(ta.root, "libossia")
		require.NoError(t, err)
		require.NotNil(t, info)
		assert.Equal(t, domain.PhasePackageInfo, info.Phase)
		assert.Empty(t, ta.stdout.String(), "tool output goes to the interactive view")
	})
}

func TestApp_Build_UnknownOutputMode(t *testing.T) {
	ta := newTestApp(t)

	err := ta.app.Build(t.Context(), []string{"libossia"}, app.BuildOptions{OutputMode: "fancy"})
	require.ErrorIs(t, err, detector.ErrUnknownOutputMode)
}

func TestApp_Build_NoTargets(t *testing.T) {
	ta := newTestApp(t)

	err := ta.app.Build(t.Context(), nil, app.BuildOptions{})
	require.Error(t, err)
	assert.Equal(t, "no targets specified", err.Error())
}

func TestApp_Build_ConfigLoaderError(t *testing.T) {
	ta := newTestApp(t)
	ta.loader.EXPECT().Load(".").Return(nil, errors.New("config error"))

	err := ta.app.Build(t.Context(), []string{"libossia"}, app.BuildOptions{})
	require.Error(t, err)
	assert.Equal(t, "failed to load configuration: config error", err.Error())
}

func TestApp_Build_FailureIsGraphExecutionFailure(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ta := newTestApp(t)
		ta.loader.EXPECT().Load(".").Return(ta.workspace(t), nil)
		ta.logger.EXPECT().Warn("1 recipe(s) blocked: libossia")
		ta.fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, req ports.FetchRequest) error {
				if strings.Contains(filepath.Base(filepath.Dir(req.Dest)), "boost-") {
					return errors.New("repository not found")
				}
				return os.MkdirAll(req.Dest, domain.DirPerm)
			}).Times(2)

		err := ta.app.Build(t.Context(), []string{"libossia"}, app.BuildOptions{})
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrGraphExecutionFailed)
		assert.ErrorIs(t, err, domain.ErrSourceFetch)
		assert.ErrorContains(t, err, "repository not found")
	})
}

func TestApp_Build_InvalidRequests(t *testing.T) {
	tests := []struct {
		name     string
		req      app.Request
		contains string
	}{
		{name: "malformed option", req: app.Request{Options: []string{"libossia-shared"}}, contains: "expected name:option=value"},
		{name: "unknown recipe", req: app.Request{Options: []string{"zlib:shared=true"}}, contains: "recipe not found"},
		{name: "malformed setting", req: app.Request{Settings: []string{"os"}}, contains: "expected key=value"},
		{name: "unknown preset", req: app.Request{Preset: "tiny"}, contains: "unknown preset"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ta := newTestApp(t)
			ta.loader.EXPECT().Load(".").Return(ta.workspace(t), nil)

			err := ta.app.Build(t.Context(), []string{"libossia"}, app.BuildOptions{Request: tt.req})
			require.Error(t, err)
			assert.ErrorContains(t, err, tt.contains)
		})
	}
}

func TestApp_Options(t *testing.T) {
	ta := newTestApp(t)
	ta.loader.EXPECT().Load(".").Return(ta.workspace(t), nil)

	err := ta.app.Options(t.Context(), "libossia", app.Request{
		Options:  []string{"libossia:shared=True"},
		Settings: []string{"os=Windows"},
	})
	require.NoError(t, err)

	out := ta.stdout.String()
	assert.Contains(t, out, "libossia/3.0.0 (preset embeddable, instance libossia-3.0.0-")
	assert.Regexp(t, `shared\s+true`, out)
	assert.Regexp(t, `fPIC\s+\(pruned\)`, out)
	assert.Regexp(t, `BUILD_SHARED_LIBS\s+ON`, out)
	assert.Regexp(t, `OSSIA_CPP\s+ON`, out)
	assert.Regexp(t, `OSSIA_CPP_ONLY\s+ON`, out)
}

func TestApp_Options_UnknownRecipe(t *testing.T) {
	ta := newTestApp(t)
	ta.loader.EXPECT().Load(".").Return(ta.workspace(t), nil)

	err := ta.app.Options(t.Context(), "zlib", app.Request{})
	require.ErrorIs(t, err, domain.ErrRecipeNotFound)
}

func TestApp_Graph(t *testing.T) {
	ta := newTestApp(t)
	ta.loader.EXPECT().Load(".").Return(ta.workspace(t), nil)

	require.NoError(t, ta.app.Graph(t.Context()))
	assert.Equal(t, "boost/1.83.0\n"+
		"libossia/3.0.0\n"+
		"  linked boost/1.83.0\n"+
		"  tool ninja/1.11.1 (external)\n", ta.stdout.String())
}

func TestApp_Package(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ta := newTestApp(t)
		ta.loader.EXPECT().Load(".").Return(ta.workspace(t), nil).Times(2)
		ta.expectToolchain()

		require.NoError(t, ta.app.Build(t.Context(), []string{"boost"}, app.BuildOptions{}))
		ta.stdout.Reset()

		require.NoError(t, ta.app.Package(t.Context(), "boost", app.PackageOptions{}))
		assert.Contains(t, ta.stdout.String(), "boost/1.83.0\n")
		assert.Regexp(t, `libs:\s+boost`, ta.stdout.String())
	})
}

func TestApp_Package_WithoutBuild(t *testing.T) {
	ta := newTestApp(t)
	ta.loader.EXPECT().Load(".").Return(ta.workspace(t), nil)

	err := ta.app.Package(t.Context(), "boost", app.PackageOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPhaseOrder)
}

func TestApp_Clean(t *testing.T) {
	ta := newTestApp(t)
	ta.loader.EXPECT().DiscoverRoot(".").Return(ta.root, nil)
	ta.logger.EXPECT().Info(gomock.Any()).AnyTimes()

	for _, dir := range []string{domain.DefaultInstancesPath(), domain.DefaultStorePath(), domain.DefaultLogsPath()} {
		require.NoError(t, os.MkdirAll(filepath.Join(ta.root, dir), domain.DirPerm))
	}

	err := ta.app.Clean(t.Context(), app.CleanOptions{Instances: true, Store: true})
	require.NoError(t, err)

	assert.NoDirExists(t, filepath.Join(ta.root, domain.DefaultInstancesPath()))
	assert.NoDirExists(t, filepath.Join(ta.root, domain.DefaultStorePath()))
	assert.DirExists(t, filepath.Join(ta.root, domain.DefaultLogsPath()))
}

func TestApp_SetVerbose(t *testing.T) {
	ta := newTestApp(t)
	// Mock loggers do not support verbosity; the call must not panic.
	ta.app.SetVerbose(true)
}
