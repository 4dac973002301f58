package shell_test

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/kiln/internal/adapters/shell"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/kiln/internal/core/ports/mocks"
	"go.uber.org/mock/gomock"
)

func newExecutor(t *testing.T) *shell.Executor {
	t.Helper()
	ctrl := gomock.NewController(t)
	log := mocks.NewMockLogger(ctrl)
	log.EXPECT().Debug(gomock.Any()).AnyTimes()
	return shell.NewExecutor(log)
}

func TestExecutor_Execute_Output(t *testing.T) {
	executor := newExecutor(t)

	var stdout bytes.Buffer
	err := executor.Execute(t.Context(), ports.Command{
		Name: "echo",
		Args: []string{"sh", "-c", "echo line1; printf part1; sleep 0.1; echo part2"},
		Dir:  t.TempDir(),
	}, &stdout, io.Discard)
	require.NoError(t, err)

	out := stdout.String()
	assert.Contains(t, out, "line1")
	assert.Contains(t, out, "part1part2")
}

func TestExecutor_Execute_WorkingDir(t *testing.T) {
	executor := newExecutor(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "CMakeLists.txt"), []byte("project(x)"), domain.FilePerm))

	var stdout bytes.Buffer
	err := executor.Execute(t.Context(), ports.Command{
		Name: "ls",
		Args: []string{"ls"},
		Dir:  dir,
	}, &stdout, io.Discard)
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "CMakeLists.txt")
}

func TestExecutor_Execute_Env(t *testing.T) {
	executor := newExecutor(t)

	var stdout bytes.Buffer
	err := executor.Execute(t.Context(), ports.Command{
		Name: "env",
		Args: []string{"sh", "-c", "echo $CMAKE_BUILD_PARALLEL_LEVEL"},
		Dir:  t.TempDir(),
		Env:  []string{"CMAKE_BUILD_PARALLEL_LEVEL=1"},
	}, &stdout, io.Discard)
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "1")
}

func TestExecutor_Execute_ToolPath(t *testing.T) {
	executor := newExecutor(t)

	toolDir := t.TempDir()
	//nolint:gosec // test requires an executable file
	require.NoError(t, os.WriteFile(filepath.Join(toolDir, "protoc-stub"), []byte("#!/bin/sh\necho generated\n"), 0o700))

	var stdout bytes.Buffer
	err := executor.Execute(t.Context(), ports.Command{
		Name: "protoc",
		Args: []string{"protoc-stub"},
		Dir:  t.TempDir(),
		Env:  []string{"PATH=" + toolDir},
	}, &stdout, io.Discard)
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "generated")
}

func TestExecutor_Execute_ExitCode(t *testing.T) {
	executor := newExecutor(t)

	err := executor.Execute(t.Context(), ports.Command{
		Name: "cmake --build",
		Args: []string{"sh", "-c", "exit 42"},
		Dir:  t.TempDir(),
	}, io.Discard, io.Discard)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "command failed"))

	code, ok := domain.ExitCode(err)
	require.True(t, ok)
	assert.Equal(t, 42, code)
}

func TestExecutor_Execute_MissingTool(t *testing.T) {
	executor := newExecutor(t)

	err := executor.Execute(t.Context(), ports.Command{
		Name: "missing",
		Args: []string{"nonexistent-command-xyz123"},
		Dir:  t.TempDir(),
	}, io.Discard, io.Discard)
	require.Error(t, err)

	code, ok := domain.ExitCode(err)
	require.True(t, ok)
	assert.Equal(t, -1, code)
}

func TestExecutor_Execute_EmptyCommand(t *testing.T) {
	executor := newExecutor(t)

	err := executor.Execute(t.Context(), ports.Command{Name: "empty"}, io.Discard, io.Discard)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty command")
}

func TestExecutor_Execute_LogsLines(t *testing.T) {
	ctrl := gomock.NewController(t)
	log := mocks.NewMockLogger(ctrl)
	log.EXPECT().Debug("-- Configuring done").Times(1)
	log.EXPECT().Debug("-- Generating done").Times(1)

	executor := shell.NewExecutor(log)
	err := executor.Execute(t.Context(), ports.Command{
		Name: "cmake",
		Args: []string{"sh", "-c", "echo '-- Configuring done'; printf -- '-- Generating done'"},
		Dir:  t.TempDir(),
	}, io.Discard, io.Discard)
	require.NoError(t, err)
}
