// Package shell runs external tools such as git and cmake.
package shell

import (
	"bytes"
	"context"
	"errors"
	"io"
	"maps"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"

	"github.com/creack/pty"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/zerr"
)

// ErrEmptyCommand is returned when a command has no argv.
var ErrEmptyCommand = zerr.New("empty command")

// Executor implements ports.Executor. Commands run attached to a pseudo
// terminal so that tools keep their colored, line-buffered output.
type Executor struct {
	logger ports.Logger
}

// NewExecutor creates a new Executor. Every output line is also logged at
// debug level.
func NewExecutor(logger ports.Logger) *Executor {
	return &Executor{logger: logger}
}

// Execute runs cmd and waits for it. The terminal merges both output streams
// into stdout.
func (e *Executor) Execute(ctx context.Context, cmd ports.Command, stdout, _ io.Writer) error {
	if len(cmd.Args) == 0 {
		return zerr.With(zerr.Wrap(ErrEmptyCommand, ""), "command", cmd.Name)
	}

	env := resolveEnvironment(os.Environ(), cmd.Env)
	name := cmd.Args[0]
	executable := name
	if !filepath.IsAbs(name) {
		if lp, err := lookPath(name, env); err == nil {
			executable = lp
		}
	}

	c := exec.CommandContext(ctx, executable, cmd.Args[1:]...) //nolint:gosec // argv is built by kiln
	c.Args[0] = name
	c.Dir = cmd.Dir
	c.Env = env

	ptmx, err := pty.Start(c)
	if err != nil {
		err = zerr.With(zerr.Wrap(err, "failed to start command"), "command", cmd.Name)
		return zerr.With(err, "exit_code", -1)
	}

	log := &logWriter{logger: e.logger}
	ioDone := make(chan struct{})
	go func() {
		defer close(ioDone)
		defer func() { _ = log.Close() }()
		// Reading the master returns EIO once the child exits.
		_, _ = io.Copy(io.MultiWriter(log, stdout), ptmx)
	}()

	err = c.Wait()
	<-ioDone
	_ = ptmx.Close()

	if err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		err = zerr.With(zerr.Wrap(err, "command failed"), "command", cmd.Name)
		return zerr.With(err, "exit_code", exitCode)
	}
	return nil
}

type logWriter struct {
	logger ports.Logger
	buf    []byte
}

func (w *logWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.logLine(w.buf[:i])
		w.buf = w.buf[i+1:]
	}
	return len(p), nil
}

func (w *logWriter) Close() error {
	if len(w.buf) > 0 {
		w.logLine(w.buf)
		w.buf = nil
	}
	return nil
}

func (w *logWriter) logLine(line []byte) {
	w.logger.Debug(strings.TrimSuffix(string(line), "\r"))
}

// allowListedEnvVars are the system environment variables passed through to
// external tools. Everything else is dropped to keep builds reproducible.
var allowListedEnvVars = map[string]struct{}{
	"HOME":          {},
	"USER":          {},
	"PATH":          {},
	"TERM":          {},
	"TMPDIR":        {},
	"LANG":          {},
	"SSH_AUTH_SOCK": {},
	"CC":            {},
	"CXX":           {},
}

// resolveEnvironment filters the system environment and applies the command
// environment on top. A PATH entry is prepended to the system PATH.
func resolveEnvironment(sysEnv, cmdEnv []string) []string {
	envMap := make(map[string]string)
	for _, entry := range sysEnv {
		k, v, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		if _, allowed := allowListedEnvVars[k]; allowed {
			envMap[k] = v
		}
	}

	for _, entry := range cmdEnv {
		k, v, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		if k == "PATH" {
			if sysPath := envMap["PATH"]; sysPath != "" {
				v = v + string(os.PathListSeparator) + sysPath
			}
		}
		envMap[k] = v
	}

	result := make([]string, 0, len(envMap))
	for _, k := range slices.Sorted(maps.Keys(envMap)) {
		result = append(result, k+"="+envMap[k])
	}
	return result
}

// lookPath searches for an executable in the PATH of env.
func lookPath(file string, env []string) (string, error) {
	var path string
	for _, e := range env {
		if p, ok := strings.CutPrefix(e, "PATH="); ok {
			path = p
			break
		}
	}
	if path == "" {
		return "", exec.ErrNotFound
	}

	for _, dir := range filepath.SplitList(path) {
		if dir == "" {
			dir = "."
		}
		candidate := filepath.Join(dir, file)
		if err := findExecutable(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", exec.ErrNotFound
}

func findExecutable(file string) error {
	d, err := os.Stat(file)
	if err != nil {
		return err
	}
	if m := d.Mode(); !m.IsDir() && m&0o111 != 0 {
		return nil
	}
	return os.ErrPermission
}
