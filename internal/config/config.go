package config

import (
	"log"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Settings struct {
	ListenAddr string `envconfig:"LISTEN_ADDR" default:":8080"`
	DataDir    string `envconfig:"DATA_DIR" default:"./data"`
	LogPath    string `envconfig:"LOG_PATH" default:""`

	// Optional HTTPS with a self-signed certificate persisted in the
	// settings table. TLSHosts is a comma-separated SAN list.
	TLSEnabled bool   `envconfig:"TLS" default:"false"`
	TLSHosts   string `envconfig:"TLS_HOSTS" default:"localhost,127.0.0.1"`

	// Authentication against the SkyChat API. With AuthDisabled set, any
	// credential is accepted and no remote call is made (development only).
	SkyChatURL   string        `envconfig:"SKYCHAT_URL" default:"http://localhost:8081"`
	AuthDisabled bool          `envconfig:"AUTH_DISABLED" default:"false"`
	SessionTTL   time.Duration `envconfig:"SESSION_TTL" default:"24h"`

	// Session lifecycle.
	IdleTimeout   time.Duration `envconfig:"IDLE_TIMEOUT" default:"2h"`
	SweepInterval time.Duration `envconfig:"SWEEP_INTERVAL" default:"5m"`
	TermCols      int           `envconfig:"TERM_COLS" default:"80"`
	TermRows      int           `envconfig:"TERM_ROWS" default:"24"`

	// Process spawning.
	Runner       string `envconfig:"RUNNER" default:"auto"`
	Shell        string `envconfig:"SHELL_CMD" default:"/bin/bash"`
	DockerImage  string `envconfig:"DOCKER_IMAGE" default:"alpine:3.20"`
	DockerMemory string `envconfig:"DOCKER_MEMORY" default:"256m"`
	DockerCPUs   string `envconfig:"DOCKER_CPUS" default:"0.5"`
	ProfilePath  string `envconfig:"PROFILE_PATH" default:""`
}

var Cfg Settings

// Profile holds the optional YAML spawn profile, nil when none is configured.
var Prof *Profile

func Load() {
	if err := envconfig.Process("XTERM", &Cfg); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if Cfg.LogPath == "" {
		Cfg.LogPath = filepath.Join(Cfg.DataDir, "xterm.log")
	}

	if Cfg.ProfilePath != "" {
		p, err := LoadProfile(Cfg.ProfilePath)
		if err != nil {
			log.Fatalf("failed to load spawn profile: %v", err)
		}
		Prof = p
		p.Apply(&Cfg)
	}
}
