package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Profile describes the spawned terminal environment. It is an optional YAML
// file for settings that are awkward as env vars (argument lists, extra
// environment). Fields it sets override the corresponding env settings.
type Profile struct {
	Shell string            `yaml:"shell"`
	Args  []string          `yaml:"args"`
	Env   map[string]string `yaml:"env"`

	Docker struct {
		Image  string `yaml:"image"`
		Memory string `yaml:"memory"`
		CPUs   string `yaml:"cpus"`
	} `yaml:"docker"`
}

func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse profile %s: %w", path, err)
	}
	return &p, nil
}

// Apply copies the profile's set fields over the env-derived settings.
func (p *Profile) Apply(s *Settings) {
	if p.Shell != "" {
		s.Shell = p.Shell
	}
	if p.Docker.Image != "" {
		s.DockerImage = p.Docker.Image
	}
	if p.Docker.Memory != "" {
		s.DockerMemory = p.Docker.Memory
	}
	if p.Docker.CPUs != "" {
		s.DockerCPUs = p.Docker.CPUs
	}
}
