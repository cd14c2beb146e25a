// Package runner spawns the interactive processes behind terminal sessions.
// Two backends exist: a local pty and a per-session Docker container. The
// broker talks to both through the same narrow capability surface.
package runner

import (
	"context"
	"io"
)

// Spec describes one process to spawn. HomeDir is the identity's private
// credential directory; it must already exist and be built only from the
// normalized identity.
type Spec struct {
	Identity string
	HomeDir  string
	Cols     uint16
	Rows     uint16
}

// Process is the capability surface of one spawned interactive process:
// an output stream, input writes, resize, kill, and exit notification.
type Process interface {
	// Output streams the process's combined terminal output. Read returns
	// an error once the process is gone.
	Output() io.Reader
	Write(p []byte) (int, error)
	Resize(cols, rows uint16) error
	Kill() error
	// Done is closed when the process has exited.
	Done() <-chan struct{}
	// ExitCode is valid once Done is closed; -1 when unknown.
	ExitCode() int
}

// Runner is a process backend.
type Runner interface {
	Initialize(ctx context.Context) error
	IsAvailable(ctx context.Context) bool
	BackendName() string
	Start(ctx context.Context, spec Spec) (Process, error)
}
