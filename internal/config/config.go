// Package config defines the lab configuration, its defaults, and the
// environment-variable timeout overrides.
package config

// Config is the root configuration for a lab deployment.
type Config struct {
	// LabDomain is the DNS suffix every component is served under.
	LabDomain string `mapstructure:"lab_domain"`

	// KubeconfigPath points at the cluster the lab is deployed into.
	// Empty means ~/.kube/config via the usual loading rules.
	KubeconfigPath string `mapstructure:"kubeconfig"`

	// StorePath is the local credential store database file.
	StorePath string `mapstructure:"store_path"`

	// MaxParallel caps how many components deploy concurrently within a
	// dependency layer.
	MaxParallel int `mapstructure:"max_parallel"`

	// Skip lists component names excluded from this run.
	Skip []string `mapstructure:"skip"`

	// InsecureTLS skips certificate verification when talking to the lab
	// endpoints. The lab issues its own CA, so this defaults to true.
	InsecureTLS bool `mapstructure:"insecure_tls"`

	Vault    VaultConfig    `mapstructure:"vault"`
	Keycloak KeycloakConfig `mapstructure:"keycloak"`
	Boundary BoundaryConfig `mapstructure:"boundary"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Sandbox  SandboxConfig  `mapstructure:"sandbox"`
}

// VaultConfig holds the Vault component settings.
type VaultConfig struct {
	Address string `mapstructure:"address"`
	Image   string `mapstructure:"image"`
	KVMount string `mapstructure:"kv_mount"`
}

// KeycloakConfig holds the Keycloak component settings.
type KeycloakConfig struct {
	Address   string `mapstructure:"address"`
	Image     string `mapstructure:"image"`
	Realm     string `mapstructure:"realm"`
	AdminUser string `mapstructure:"admin_user"`

	// TestUser is provisioned into the realm for end-to-end login checks.
	TestUser         string `mapstructure:"test_user"`
	TestUserPassword string `mapstructure:"test_user_password"`
}

// BoundaryConfig holds the Boundary component settings.
type BoundaryConfig struct {
	Address      string `mapstructure:"address"`
	Image        string `mapstructure:"image"`
	OrgName      string `mapstructure:"org_name"`
	ProjectName  string `mapstructure:"project_name"`
	AuthMethodID string `mapstructure:"auth_method_id"`
	LoginName    string `mapstructure:"login_name"`
}

// PostgresConfig holds the PostgreSQL chart settings.
type PostgresConfig struct {
	RepoURL      string `mapstructure:"repo_url"`
	Chart        string `mapstructure:"chart"`
	ChartVersion string `mapstructure:"chart_version"`
	ReleaseName  string `mapstructure:"release_name"`
	Namespace    string `mapstructure:"namespace"`
}

// SandboxConfig holds the SSH sandbox workload settings.
type SandboxConfig struct {
	Namespace string   `mapstructure:"namespace"`
	Image     string   `mapstructure:"image"`
	Targets   []string `mapstructure:"targets"`
}

// Default returns a Config with every field set to the lab defaults.
func Default() *Config {
	return &Config{
		LabDomain:   "hashicorp.lab",
		StorePath:   "labctl.db",
		MaxParallel: 4,
		InsecureTLS: true,
		Vault: VaultConfig{
			Address: "https://vault.hashicorp.lab",
			Image:   "hashicorp/vault:1.17",
			KVMount: "secret",
		},
		Keycloak: KeycloakConfig{
			Address:          "https://keycloak.hashicorp.lab",
			Image:            "quay.io/keycloak/keycloak:25.0",
			Realm:            "hashicorp",
			AdminUser:        "admin",
			TestUser:         "developer@example.com",
			TestUserPassword: "Developer123",
		},
		Boundary: BoundaryConfig{
			Address:      "https://boundary.hashicorp.lab",
			Image:        "hashicorp/boundary:0.17",
			OrgName:      "DevOps",
			ProjectName:  "Agent-Sandbox",
			AuthMethodID: "ampw_1234567890",
			LoginName:    "admin",
		},
		Postgres: PostgresConfig{
			RepoURL:      "https://charts.bitnami.com/bitnami",
			Chart:        "postgresql",
			ChartVersion: "15.5.20",
			ReleaseName:  "postgres",
			Namespace:    "postgres",
		},
		Sandbox: SandboxConfig{
			Namespace: "sandbox",
			Image:     "linuxserver/openssh-server:latest",
			Targets:   []string{"claude-ssh", "gemini-ssh"},
		},
	}
}
