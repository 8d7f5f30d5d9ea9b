package config

import (
	"fmt"
	"os"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// LoadFile reads and parses the configuration from a YAML file, applies
// defaults for anything left unset, and validates the result.
func LoadFile(path string) (*Config, error) {
	// #nosec G304
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Load(data)
}

// Load parses configuration from raw YAML bytes.
func Load(data []byte) (*Config, error) {
	var rawConfig map[string]interface{}
	if err := yaml.Unmarshal(data, &rawConfig); err != nil {
		return nil, fmt.Errorf("failed to unmarshal yaml: %w", err)
	}

	// Decoding over the defaults keeps insecure_tls true unless the file
	// sets it explicitly.
	cfg := Default()
	if err := mapstructure.Decode(rawConfig, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// applyDefaults refills fields a partial YAML document may have zeroed.
func applyDefaults(cfg *Config) {
	defaults := Default()
	if cfg.LabDomain == "" {
		cfg.LabDomain = defaults.LabDomain
	}
	if cfg.StorePath == "" {
		cfg.StorePath = defaults.StorePath
	}
	if cfg.MaxParallel == 0 {
		cfg.MaxParallel = defaults.MaxParallel
	}
	if cfg.Vault.Address == "" {
		cfg.Vault.Address = defaults.Vault.Address
	}
	if cfg.Vault.Image == "" {
		cfg.Vault.Image = defaults.Vault.Image
	}
	if cfg.Vault.KVMount == "" {
		cfg.Vault.KVMount = defaults.Vault.KVMount
	}
	if cfg.Keycloak.Address == "" {
		cfg.Keycloak.Address = defaults.Keycloak.Address
	}
	if cfg.Keycloak.Image == "" {
		cfg.Keycloak.Image = defaults.Keycloak.Image
	}
	if cfg.Keycloak.Realm == "" {
		cfg.Keycloak.Realm = defaults.Keycloak.Realm
	}
	if cfg.Keycloak.AdminUser == "" {
		cfg.Keycloak.AdminUser = defaults.Keycloak.AdminUser
	}
	if cfg.Keycloak.TestUser == "" {
		cfg.Keycloak.TestUser = defaults.Keycloak.TestUser
	}
	if cfg.Keycloak.TestUserPassword == "" {
		cfg.Keycloak.TestUserPassword = defaults.Keycloak.TestUserPassword
	}
	if cfg.Boundary.Address == "" {
		cfg.Boundary.Address = defaults.Boundary.Address
	}
	if cfg.Boundary.Image == "" {
		cfg.Boundary.Image = defaults.Boundary.Image
	}
	if cfg.Boundary.OrgName == "" {
		cfg.Boundary.OrgName = defaults.Boundary.OrgName
	}
	if cfg.Boundary.ProjectName == "" {
		cfg.Boundary.ProjectName = defaults.Boundary.ProjectName
	}
	if cfg.Boundary.AuthMethodID == "" {
		cfg.Boundary.AuthMethodID = defaults.Boundary.AuthMethodID
	}
	if cfg.Boundary.LoginName == "" {
		cfg.Boundary.LoginName = defaults.Boundary.LoginName
	}
	if cfg.Postgres.RepoURL == "" {
		cfg.Postgres.RepoURL = defaults.Postgres.RepoURL
	}
	if cfg.Postgres.Chart == "" {
		cfg.Postgres.Chart = defaults.Postgres.Chart
	}
	if cfg.Postgres.ChartVersion == "" {
		cfg.Postgres.ChartVersion = defaults.Postgres.ChartVersion
	}
	if cfg.Postgres.ReleaseName == "" {
		cfg.Postgres.ReleaseName = defaults.Postgres.ReleaseName
	}
	if cfg.Postgres.Namespace == "" {
		cfg.Postgres.Namespace = defaults.Postgres.Namespace
	}
	if cfg.Sandbox.Namespace == "" {
		cfg.Sandbox.Namespace = defaults.Sandbox.Namespace
	}
	if cfg.Sandbox.Image == "" {
		cfg.Sandbox.Image = defaults.Sandbox.Image
	}
	if len(cfg.Sandbox.Targets) == 0 {
		cfg.Sandbox.Targets = defaults.Sandbox.Targets
	}
}
