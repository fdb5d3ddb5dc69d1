package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models onboard.yml.
type Config struct {
	Services struct {
		Auth       Service `yaml:"auth"`
		Workflows  Service `yaml:"workflows"`
		Onboarding Service `yaml:"onboarding"`
	} `yaml:"services"`
	Auth struct {
		JWTSecret     string `yaml:"jwt_secret"`
		TokenTTLHours int    `yaml:"token_ttl_hours"`
	} `yaml:"auth"`
	Uploads struct {
		MaxFiles int `yaml:"max_files"`
	} `yaml:"uploads"`
	// Peers point the onboarding service at the other two when they run as
	// separate processes. Empty peers mean all three share one process and
	// name resolution goes straight to the database.
	Peers struct {
		AuthURL     string `yaml:"auth_url"`
		WorkflowURL string `yaml:"workflow_url"`
	} `yaml:"peers"`
}

type Service struct {
	Addr    string `yaml:"addr"`
	Enabled bool   `yaml:"enabled"`
}

// Default returns the configuration used when no onboard.yml exists.
func Default() *Config {
	c := &Config{}
	c.Services.Auth = Service{Addr: ":4000", Enabled: true}
	c.Services.Workflows = Service{Addr: ":4001", Enabled: true}
	c.Services.Onboarding = Service{Addr: ":4002", Enabled: true}
	c.Auth.JWTSecret = "dev-secret"
	c.Auth.TokenTTLHours = 24
	c.Uploads.MaxFiles = 10
	return c
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, ".onboard", "onboard.yml")
}

// Load reads config from the workspace, falling back to defaults when the
// file does not exist.
func Load(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// FromYAML parses and validates a config document.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config as YAML, creating parent directories as needed.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("config.auth.jwt_secret is required")
	}
	if c.Auth.TokenTTLHours <= 0 {
		return fmt.Errorf("config.auth.token_ttl_hours must be positive")
	}
	if c.Uploads.MaxFiles <= 0 {
		return fmt.Errorf("config.uploads.max_files must be positive")
	}
	for name, svc := range map[string]Service{
		"auth":       c.Services.Auth,
		"workflows":  c.Services.Workflows,
		"onboarding": c.Services.Onboarding,
	} {
		if svc.Enabled && svc.Addr == "" {
			return fmt.Errorf("config.services.%s.addr is required when enabled", name)
		}
	}
	return nil
}
