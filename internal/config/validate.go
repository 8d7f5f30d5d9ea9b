package config

import (
	"fmt"
	"net/url"
	"strings"
)

// knownComponents are the names Skip entries may reference.
var knownComponents = map[string]bool{
	"tls":      true,
	"postgres": true,
	"vault":    true,
	"keycloak": true,
	"boundary": true,
	"sandbox":  true,
}

// Validate checks the configuration for common errors.
func (c *Config) Validate() error {
	if c.LabDomain == "" {
		return fmt.Errorf("lab_domain is required")
	}
	if strings.Contains(c.LabDomain, "://") {
		return fmt.Errorf("lab_domain must be a bare domain, not a URL: %q", c.LabDomain)
	}
	if c.MaxParallel < 1 {
		return fmt.Errorf("max_parallel must be at least 1, got %d", c.MaxParallel)
	}
	if c.StorePath == "" {
		return fmt.Errorf("store_path is required")
	}

	for _, name := range c.Skip {
		if !knownComponents[name] {
			return fmt.Errorf("skip references unknown component %q", name)
		}
	}

	for field, addr := range map[string]string{
		"vault.address":    c.Vault.Address,
		"keycloak.address": c.Keycloak.Address,
		"boundary.address": c.Boundary.Address,
	} {
		if err := validateURL(field, addr); err != nil {
			return err
		}
	}

	if len(c.Sandbox.Targets) == 0 {
		return fmt.Errorf("sandbox.targets must name at least one workload")
	}
	seen := map[string]bool{}
	for _, target := range c.Sandbox.Targets {
		if target == "" {
			return fmt.Errorf("sandbox.targets must not contain empty names")
		}
		if seen[target] {
			return fmt.Errorf("sandbox.targets lists %q twice", target)
		}
		seen[target] = true
	}

	return nil
}

func validateURL(field, addr string) error {
	if addr == "" {
		return fmt.Errorf("%s is required", field)
	}
	parsed, err := url.Parse(addr)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("%s must be an absolute URL, got %q", field, addr)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s must use http or https, got %q", field, addr)
	}
	return nil
}
