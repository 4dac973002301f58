// Package cmake drives CMake through the executor.
package cmake

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/zerr"
)

// Cache variables kiln derives from well-known definitions.
const (
	SharedLibsVariable = "BUILD_SHARED_LIBS"
	PICVariable        = "CMAKE_POSITION_INDEPENDENT_CODE"
)

// stampFile records the arguments of the last successful configure run in the
// build tree.
const stampFile = "kiln-configure.args"

var _ ports.BuildSystem = (*BuildSystem)(nil)

// BuildSystem implements ports.BuildSystem.
type BuildSystem struct {
	executor ports.Executor
	logger   ports.Logger
}

// New creates a new BuildSystem.
func New(executor ports.Executor, logger ports.Logger) *BuildSystem {
	return &BuildSystem{executor: executor, logger: logger}
}

// CacheVariable returns the CMake cache variable for a definition name.
// Toggles get the prefix and their cache name, SHARED and PIC map to the
// standard CMake variables and every other name is used as is.
func CacheVariable(prefix, name string) string {
	switch name {
	case domain.DefinitionShared:
		return SharedLibsVariable
	case domain.DefinitionPIC:
		return PICVariable
	}
	if t, err := domain.ParseToggle(name); err == nil {
		return prefix + t.CacheName()
	}
	return name
}

// ConfigureArgs returns the argv of the configure run.
func ConfigureArgs(req ports.ConfigureRequest) []string {
	args := []string{
		"cmake",
		"-S", req.SourceDir,
		"-B", req.Layout.Build,
		"-DCMAKE_INSTALL_PREFIX:PATH=" + req.Layout.Install,
	}
	if req.Settings.BuildType != "" {
		args = append(args, "-DCMAKE_BUILD_TYPE:STRING="+req.Settings.BuildType)
	}
	if len(req.PrefixPaths) > 0 {
		args = append(args, "-DCMAKE_PREFIX_PATH:PATH="+strings.Join(req.PrefixPaths, ";"))
	}
	if arch := osxArchitecture(req.Settings); arch != "" {
		args = append(args, "-DCMAKE_OSX_ARCHITECTURES:STRING="+arch)
	}

	for _, d := range req.Definitions.Entries() {
		variable := CacheVariable(req.Prefix, d.Name)
		if d.Kind == domain.DefinitionBool {
			value := "OFF"
			if d.Bool() {
				value = "ON"
			}
			args = append(args, "-D"+variable+":BOOL="+value)
			continue
		}
		args = append(args, "-D"+variable+":STRING="+d.Value)
	}
	return args
}

func osxArchitecture(s domain.Settings) string {
	if s.OS != domain.OSMacos {
		return ""
	}
	switch s.Arch {
	case "armv8":
		return "arm64"
	case "x86_64":
		return "x86_64"
	default:
		return ""
	}
}

// Configure generates the build tree. When the tree was already configured
// with identical arguments, CMake is not invoked again.
func (b *BuildSystem) Configure(ctx context.Context, req ports.ConfigureRequest) error {
	args := ConfigureArgs(req)
	stamp := []byte(strings.Join(args, "\n") + "\n")
	stampPath := filepath.Join(req.Layout.Build, stampFile)

	prev, err := os.ReadFile(stampPath) //nolint:gosec // path inside the instance build tree
	switch {
	case err == nil && bytes.Equal(prev, stamp):
		if _, err := os.Stat(filepath.Join(req.Layout.Build, "CMakeCache.txt")); err == nil {
			b.logger.Debug("build tree of " + req.Recipe + " is up to date")
			return nil
		}
	case err != nil && !errors.Is(err, fs.ErrNotExist):
		return zerr.With(zerr.Wrap(err, "failed to read configure stamp"), "path", stampPath)
	}

	if err := os.MkdirAll(req.Layout.Build, domain.DirPerm); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to create build directory"), "path", req.Layout.Build)
	}

	cmd := ports.Command{
		Name: "cmake configure",
		Args: args,
		Dir:  req.Layout.Build,
	}
	if err := b.executor.Execute(ctx, cmd, logOrDiscard(req.Log), logOrDiscard(req.Log)); err != nil {
		return err
	}

	if err := os.WriteFile(stampPath, stamp, domain.FilePerm); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to write configure stamp"), "path", stampPath)
	}
	return nil
}

// Build compiles the build tree. Tool requirement directories are prepended
// to PATH.
func (b *BuildSystem) Build(ctx context.Context, req ports.BuildRequest) error {
	args := []string{"cmake", "--build", req.Layout.Build}
	if req.Settings.BuildType != "" {
		args = append(args, "--config", req.Settings.BuildType)
	}
	return b.executor.Execute(ctx, ports.Command{
		Name: "cmake build",
		Args: args,
		Dir:  req.Layout.Build,
		Env:  toolEnv(req.ToolPaths),
	}, logOrDiscard(req.Log), logOrDiscard(req.Log))
}

// Install copies the build products into the install root.
func (b *BuildSystem) Install(ctx context.Context, req ports.BuildRequest) error {
	args := []string{"cmake", "--install", req.Layout.Build, "--prefix", req.Layout.Install}
	if req.Settings.BuildType != "" {
		args = append(args, "--config", req.Settings.BuildType)
	}
	return b.executor.Execute(ctx, ports.Command{
		Name: "cmake install",
		Args: args,
		Dir:  req.Layout.Build,
		Env:  toolEnv(req.ToolPaths),
	}, logOrDiscard(req.Log), logOrDiscard(req.Log))
}

func toolEnv(paths []string) []string {
	if len(paths) == 0 {
		return nil
	}
	return []string{"PATH=" + strings.Join(paths, string(os.PathListSeparator))}
}

func logOrDiscard(w io.Writer) io.Writer {
	if w == nil {
		return io.Discard
	}
	return w
}
