// Package ports defines the core interfaces for the application.
package ports

import (
	"context"
	"io"
)

// Command is one external process invocation.
type Command struct {
	// Name labels the command in logs and errors, e.g. "git clone".
	Name string
	// Args is the argv of the process. Args[0] is looked up in PATH.
	Args []string
	// Dir is the working directory.
	Dir string
	// Env holds extra environment variables in "KEY=VALUE" format. A PATH
	// entry is prepended to the inherited PATH.
	Env []string
}

// Executor defines the interface for running external tools such as git and cmake.
//
//go:generate mockgen -source=executor.go -destination=mocks/mock_executor.go -package=mocks
type Executor interface {
	// Execute runs the command, streaming its output to stdout and stderr.
	//
	// A non-zero exit status is returned as an error carrying the
	// "exit_code" metadata; see ExitCode.
	Execute(ctx context.Context, cmd Command, stdout, stderr io.Writer) error
}
