package runner

import (
	"strings"
	"testing"
	"time"
)

func TestParseCPUToNanoCPUs(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"500m", 500_000_000},
		{"2000m", 2_000_000_000},
		{"1", 1_000_000_000},
		{"1.5", 1_500_000_000},
		{"0.5", 500_000_000},
		{"garbage", 0},
	}
	for _, tt := range tests {
		if got := parseCPUToNanoCPUs(tt.in); got != tt.want {
			t.Errorf("parseCPUToNanoCPUs(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestBuildEnv(t *testing.T) {
	spec := Spec{Identity: "alice", HomeDir: "/data/users/alice"}
	env := buildEnv(spec, map[string]string{"LANG": "C.UTF-8", "EDITOR": "vi"})

	joined := strings.Join(env, "\n")
	for _, want := range []string{
		"HOME=/data/users/alice",
		"USER=alice",
		"TERM=xterm-256color",
		"EDITOR=vi",
		"LANG=C.UTF-8",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("env missing %q:\n%s", want, joined)
		}
	}

	// Extra vars are appended in sorted order so spawns are reproducible.
	if strings.Index(joined, "EDITOR=") > strings.Index(joined, "LANG=") {
		t.Error("extra env not sorted")
	}
}

func TestFakeProcessLifecycle(t *testing.T) {
	p := NewFakeProcess()

	if _, err := p.Write([]byte("ls\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := p.Resize(100, 30); err != nil {
		t.Fatalf("Resize: %v", err)
	}

	go p.EmitOutput("hello")
	buf := make([]byte, 16)
	n, err := p.Output().Read(buf)
	if err != nil || string(buf[:n]) != "hello" {
		t.Fatalf("Read = %q, %v", buf[:n], err)
	}

	p.Exit(3)
	p.Exit(99) // second exit must be a no-op

	select {
	case <-p.Done():
	case <-time.After(time.Second):
		t.Fatal("Done not closed after Exit")
	}
	if p.ExitCode() != 3 {
		t.Errorf("ExitCode = %d, want 3", p.ExitCode())
	}
	if _, err := p.Write([]byte("x")); err == nil {
		t.Error("Write after exit should fail")
	}

	if got := p.Writes(); len(got) != 1 || got[0] != "ls\n" {
		t.Errorf("Writes = %v", got)
	}
	if got := p.Resizes(); len(got) != 1 || got[0] != [2]uint16{100, 30} {
		t.Errorf("Resizes = %v", got)
	}
}

func TestDockerContainerName(t *testing.T) {
	d := &DockerRunner{}
	if got := d.containerName("alice"); got != "xterm-alice" {
		t.Errorf("containerName = %q", got)
	}
}
