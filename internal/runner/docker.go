package runner

import (
	"context"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"sync"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	dockerclient "github.com/docker/docker/client"
	"github.com/docker/go-units"
)

const labelManagedBy = "skychat-xterm"

// DockerRunner gives each session its own container: the configured image
// runs the shell as PID 1 on a container TTY, with the identity's credential
// directory bind-mounted as its home.
type DockerRunner struct {
	Image    string
	Shell    string
	Args     []string
	ExtraEnv map[string]string
	Memory   string
	CPUs     string

	client    *dockerclient.Client
	memBytes  int64
	nanoCPUs  int64
	available bool
}

func (d *DockerRunner) Initialize(ctx context.Context) error {
	cli, err := dockerclient.NewClientWithOpts(dockerclient.FromEnv, dockerclient.WithAPIVersionNegotiation())
	if err != nil {
		return fmt.Errorf("docker client: %w", err)
	}
	if _, err := cli.Ping(ctx); err != nil {
		return fmt.Errorf("docker ping: %w", err)
	}
	d.client = cli

	if d.Memory != "" {
		d.memBytes, err = units.RAMInBytes(d.Memory)
		if err != nil {
			return fmt.Errorf("parse memory limit %q: %w", d.Memory, err)
		}
	}
	if d.CPUs != "" {
		d.nanoCPUs = parseCPUToNanoCPUs(d.CPUs)
	}

	d.available = true
	log.Println("Docker daemon connected")
	return nil
}

func (d *DockerRunner) IsAvailable(_ context.Context) bool {
	return d.available
}

func (d *DockerRunner) BackendName() string {
	return "docker"
}

// parseCPUToNanoCPUs accepts either millicores ("500m") or a plain float
// ("1.5") and converts to Docker's NanoCPUs unit.
func parseCPUToNanoCPUs(cpuStr string) int64 {
	if strings.HasSuffix(cpuStr, "m") {
		n, err := strconv.ParseInt(cpuStr[:len(cpuStr)-1], 10, 64)
		if err != nil {
			return 0
		}
		return n * 1_000_000
	}
	f, err := strconv.ParseFloat(cpuStr, 64)
	if err != nil {
		return 0
	}
	return int64(f * 1_000_000_000)
}

func (d *DockerRunner) containerName(identity string) string {
	return "xterm-" + identity
}

func (d *DockerRunner) ensureImage(ctx context.Context, img string) error {
	if _, _, err := d.client.ImageInspectWithRaw(ctx, img); err == nil {
		return nil
	}
	log.Printf("Image %s not found locally, pulling...", img)
	reader, err := d.client.ImagePull(ctx, img, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("pull image %s: %w", img, err)
	}
	defer reader.Close()
	io.Copy(io.Discard, reader)
	return nil
}

func (d *DockerRunner) Start(ctx context.Context, spec Spec) (Process, error) {
	if err := d.ensureImage(ctx, d.Image); err != nil {
		return nil, err
	}

	name := d.containerName(spec.Identity)
	// A crashed broker can leave a container behind under this name.
	_ = d.client.ContainerRemove(ctx, name, container.RemoveOptions{Force: true})

	env := []string{"HOME=/home/user", "TERM=xterm-256color", "USER=" + spec.Identity}
	for k, v := range d.ExtraEnv {
		env = append(env, k+"="+v)
	}

	cfg := &container.Config{
		Image:        d.Image,
		Cmd:          append([]string{d.Shell}, d.Args...),
		Env:          env,
		WorkingDir:   "/home/user",
		Hostname:     spec.Identity,
		Tty:          true,
		OpenStdin:    true,
		AttachStdin:  true,
		AttachStdout: true,
		AttachStderr: true,
		Labels:       map[string]string{"managed-by": labelManagedBy, "identity": spec.Identity},
	}
	hostCfg := &container.HostConfig{
		Mounts: []mount.Mount{
			{Type: mount.TypeBind, Source: spec.HomeDir, Target: "/home/user"},
		},
		Resources: container.Resources{
			Memory:   d.memBytes,
			NanoCPUs: d.nanoCPUs,
		},
		ConsoleSize: [2]uint{uint(spec.Rows), uint(spec.Cols)},
	}

	resp, err := d.client.ContainerCreate(ctx, cfg, hostCfg, nil, nil, name)
	if err != nil {
		return nil, fmt.Errorf("create container: %w", err)
	}

	attach, err := d.client.ContainerAttach(ctx, resp.ID, container.AttachOptions{
		Stream: true,
		Stdin:  true,
		Stdout: true,
		Stderr: true,
	})
	if err != nil {
		_ = d.client.ContainerRemove(ctx, resp.ID, container.RemoveOptions{Force: true})
		return nil, fmt.Errorf("attach container: %w", err)
	}

	if err := d.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		attach.Close()
		_ = d.client.ContainerRemove(ctx, resp.ID, container.RemoveOptions{Force: true})
		return nil, fmt.Errorf("start container: %w", err)
	}

	p := &dockerProcess{
		client:   d.client,
		id:       resp.ID,
		attach:   attach,
		done:     make(chan struct{}),
		exitCode: -1,
	}
	go p.wait()
	return p, nil
}

type dockerProcess struct {
	client *dockerclient.Client
	id     string
	attach types.HijackedResponse

	mu       sync.Mutex
	exitCode int
	done     chan struct{}
}

func (p *dockerProcess) wait() {
	statusCh, errCh := p.client.ContainerWait(context.Background(), p.id, container.WaitConditionNotRunning)
	code := -1
	select {
	case status := <-statusCh:
		code = int(status.StatusCode)
	case err := <-errCh:
		log.Printf("container %s: wait: %v", p.id[:12], err)
	}
	p.mu.Lock()
	p.exitCode = code
	p.mu.Unlock()
	p.attach.Close()
	if err := p.client.ContainerRemove(context.Background(), p.id, container.RemoveOptions{Force: true, RemoveVolumes: true}); err != nil {
		log.Printf("container %s: remove: %v", p.id[:12], err)
	}
	close(p.done)
}

func (p *dockerProcess) Output() io.Reader {
	// Tty containers produce a raw stream, no multiplexing headers.
	return p.attach.Reader
}

func (p *dockerProcess) Write(b []byte) (int, error) {
	return p.attach.Conn.Write(b)
}

func (p *dockerProcess) Resize(cols, rows uint16) error {
	return p.client.ContainerResize(context.Background(), p.id, container.ResizeOptions{
		Height: uint(rows),
		Width:  uint(cols),
	})
}

func (p *dockerProcess) Kill() error {
	return p.client.ContainerKill(context.Background(), p.id, "SIGKILL")
}

func (p *dockerProcess) Done() <-chan struct{} {
	return p.done
}

func (p *dockerProcess) ExitCode() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode
}
