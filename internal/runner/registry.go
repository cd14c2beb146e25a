package runner

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/skychatorg/skychat-xterm/internal/database"
)

var (
	current Runner
	mu      sync.RWMutex
)

// Config carries the spawn settings shared by both backends.
type Config struct {
	Backend  string // "auto", "local" or "docker"
	Shell    string
	Args     []string
	ExtraEnv map[string]string

	DockerImage  string
	DockerMemory string
	DockerCPUs   string
}

// Init picks a backend and initializes it. An explicit Backend wins;
// otherwise the choice persisted in settings is honored, and failing that
// Docker is probed before falling back to the local pty.
func Init(ctx context.Context, cfg Config) error {
	backend := cfg.Backend
	if backend == "" || backend == "auto" {
		if saved, err := database.GetSetting("runner_backend"); err == nil && saved != "" {
			backend = saved
		} else {
			backend = "auto"
		}
	}

	if backend == "auto" || backend == "docker" {
		docker := &DockerRunner{
			Image:    cfg.DockerImage,
			Shell:    cfg.Shell,
			Args:     cfg.Args,
			ExtraEnv: cfg.ExtraEnv,
			Memory:   cfg.DockerMemory,
			CPUs:     cfg.DockerCPUs,
		}
		if err := docker.Initialize(ctx); err == nil && docker.IsAvailable(ctx) {
			mu.Lock()
			current = docker
			mu.Unlock()
			log.Println("Runner: using Docker backend")
			if backend == "auto" {
				_ = database.SetSetting("runner_backend", "docker")
			}
			return nil
		} else if err != nil {
			log.Printf("Docker backend unavailable: %v", err)
		}
	}

	if backend == "auto" || backend == "local" {
		local := &LocalRunner{
			Shell:    cfg.Shell,
			Args:     cfg.Args,
			ExtraEnv: cfg.ExtraEnv,
		}
		if err := local.Initialize(ctx); err == nil && local.IsAvailable(ctx) {
			mu.Lock()
			current = local
			mu.Unlock()
			log.Println("Runner: using local pty backend")
			if backend == "auto" {
				_ = database.SetSetting("runner_backend", "local")
			}
			return nil
		} else if err != nil {
			log.Printf("Local backend unavailable: %v", err)
		}
	}

	return fmt.Errorf("no runner backend available (tried: %s)", backend)
}

func Get() Runner {
	mu.RLock()
	defer mu.RUnlock()
	return current
}
