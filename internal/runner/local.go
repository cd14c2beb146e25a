package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"sort"
	"sync"

	"github.com/creack/pty"
)

// LocalRunner spawns the configured shell on a pty, directly on the broker
// host. The shell runs with a minimal environment so broker secrets never
// leak into user sessions.
type LocalRunner struct {
	Shell    string
	Args     []string
	ExtraEnv map[string]string

	available bool
}

func (l *LocalRunner) Initialize(_ context.Context) error {
	if l.Shell == "" {
		return fmt.Errorf("no shell configured")
	}
	if _, err := exec.LookPath(l.Shell); err != nil {
		return fmt.Errorf("shell %s: %w", l.Shell, err)
	}
	l.available = true
	log.Printf("Local runner ready (shell: %s)", l.Shell)
	return nil
}

func (l *LocalRunner) IsAvailable(_ context.Context) bool {
	return l.available
}

func (l *LocalRunner) BackendName() string {
	return "local"
}

func (l *LocalRunner) Start(_ context.Context, spec Spec) (Process, error) {
	cmd := exec.Command(l.Shell, l.Args...)
	cmd.Dir = spec.HomeDir
	cmd.Env = buildEnv(spec, l.ExtraEnv)

	ptmx, err := pty.Start(cmd)
	if err != nil {
		return nil, fmt.Errorf("start pty: %w", err)
	}
	if spec.Cols > 0 && spec.Rows > 0 {
		if err := pty.Setsize(ptmx, &pty.Winsize{Cols: spec.Cols, Rows: spec.Rows}); err != nil {
			log.Printf("terminal %s: set initial size: %v", spec.Identity, err)
		}
	}

	p := &localProcess{
		cmd:      cmd,
		ptmx:     ptmx,
		done:     make(chan struct{}),
		exitCode: -1,
	}
	go p.wait()
	return p, nil
}

func buildEnv(spec Spec, extra map[string]string) []string {
	env := []string{
		"HOME=" + spec.HomeDir,
		"USER=" + spec.Identity,
		"LOGNAME=" + spec.Identity,
		"TERM=xterm-256color",
		"PATH=/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin",
	}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+extra[k])
	}
	return env
}

type localProcess struct {
	cmd  *exec.Cmd
	ptmx *os.File

	mu       sync.Mutex
	exitCode int
	done     chan struct{}
}

func (p *localProcess) wait() {
	err := p.cmd.Wait()
	code := 0
	if err != nil {
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			code = ee.ExitCode()
		} else {
			code = -1
		}
	}
	p.mu.Lock()
	p.exitCode = code
	p.mu.Unlock()
	p.ptmx.Close()
	close(p.done)
}

func (p *localProcess) Output() io.Reader {
	return p.ptmx
}

func (p *localProcess) Write(b []byte) (int, error) {
	return p.ptmx.Write(b)
}

func (p *localProcess) Resize(cols, rows uint16) error {
	return pty.Setsize(p.ptmx, &pty.Winsize{Cols: cols, Rows: rows})
}

func (p *localProcess) Kill() error {
	return p.cmd.Process.Kill()
}

func (p *localProcess) Done() <-chan struct{} {
	return p.done
}

func (p *localProcess) ExitCode() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode
}
