package runner

import (
	"context"
	"errors"
	"io"
	"sync"
)

// SetForTest sets the global runner for testing.
func SetForTest(r Runner) {
	mu.Lock()
	defer mu.Unlock()
	current = r
}

// ResetForTest clears the global runner.
func ResetForTest() {
	mu.Lock()
	defer mu.Unlock()
	current = nil
}

// FakeProcess is a scripted Process for tests. Output is fed through a pipe
// with EmitOutput; Exit closes the output stream and the done channel.
type FakeProcess struct {
	pr *io.PipeReader
	pw *io.PipeWriter

	mu       sync.Mutex
	writes   []string
	resizes  [][2]uint16
	killed   bool
	exited   bool
	exitCode int
	done     chan struct{}
}

func NewFakeProcess() *FakeProcess {
	pr, pw := io.Pipe()
	return &FakeProcess{
		pr:       pr,
		pw:       pw,
		exitCode: -1,
		done:     make(chan struct{}),
	}
}

func (p *FakeProcess) Output() io.Reader { return p.pr }

func (p *FakeProcess) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.exited {
		return 0, errors.New("process finished")
	}
	p.writes = append(p.writes, string(b))
	return len(b), nil
}

func (p *FakeProcess) Resize(cols, rows uint16) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resizes = append(p.resizes, [2]uint16{cols, rows})
	return nil
}

func (p *FakeProcess) Kill() error {
	p.mu.Lock()
	p.killed = true
	p.mu.Unlock()
	p.Exit(137)
	return nil
}

func (p *FakeProcess) Done() <-chan struct{} { return p.done }

func (p *FakeProcess) ExitCode() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode
}

// EmitOutput feeds data into the process output stream. It blocks until a
// reader consumes it.
func (p *FakeProcess) EmitOutput(s string) {
	p.pw.Write([]byte(s))
}

// Exit ends the fake process with the given code. Safe to call twice.
func (p *FakeProcess) Exit(code int) {
	p.mu.Lock()
	if p.exited {
		p.mu.Unlock()
		return
	}
	p.exited = true
	p.exitCode = code
	p.mu.Unlock()
	p.pw.Close()
	close(p.done)
}

func (p *FakeProcess) Writes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.writes...)
}

func (p *FakeProcess) Resizes() [][2]uint16 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][2]uint16(nil), p.resizes...)
}

func (p *FakeProcess) Killed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.killed
}

// FakeRunner hands out FakeProcesses and records every spawn.
type FakeRunner struct {
	mu       sync.Mutex
	specs    []Spec
	procs    []*FakeProcess
	StartErr error
}

func (r *FakeRunner) Initialize(_ context.Context) error { return nil }
func (r *FakeRunner) IsAvailable(_ context.Context) bool { return true }
func (r *FakeRunner) BackendName() string                { return "fake" }

func (r *FakeRunner) Start(_ context.Context, spec Spec) (Process, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.StartErr != nil {
		return nil, r.StartErr
	}
	p := NewFakeProcess()
	r.specs = append(r.specs, spec)
	r.procs = append(r.procs, p)
	return p, nil
}

// SpawnCount reports how many processes have been started.
func (r *FakeRunner) SpawnCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.procs)
}

// Proc returns the i-th spawned process.
func (r *FakeRunner) Proc(i int) *FakeProcess {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.procs[i]
}

// LastSpec returns the most recent spawn spec.
func (r *FakeRunner) LastSpec() Spec {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.specs[len(r.specs)-1]
}
