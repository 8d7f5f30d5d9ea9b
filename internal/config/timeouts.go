package config

import (
	"os"
	"strconv"
	"time"
)

// Timeouts holds all configurable wait budgets.
// These values can be customized via environment variables.
type Timeouts struct {
	RolloutAttempts  int           // Attempts when waiting for a workload rollout
	RolloutInterval  time.Duration // Delay between rollout probes
	EndpointAttempts int           // Attempts when waiting for a platform API
	EndpointInterval time.Duration // Delay between platform API probes
	HelmTimeout      time.Duration // Budget for a helm install or upgrade
}

// LoadTimeouts loads timeout configuration from environment variables.
// If an environment variable is not set or invalid, a default value is used.
//
// Environment Variables:
//   - LABCTL_ROLLOUT_ATTEMPTS (default: 60)
//   - LABCTL_ROLLOUT_INTERVAL (default: 5s)
//   - LABCTL_ENDPOINT_ATTEMPTS (default: 30)
//   - LABCTL_ENDPOINT_INTERVAL (default: 5s)
//   - LABCTL_HELM_TIMEOUT (default: 5m)
func LoadTimeouts() *Timeouts {
	return &Timeouts{
		RolloutAttempts:  parseInt("LABCTL_ROLLOUT_ATTEMPTS", 60),
		RolloutInterval:  parseDuration("LABCTL_ROLLOUT_INTERVAL", 5*time.Second),
		EndpointAttempts: parseInt("LABCTL_ENDPOINT_ATTEMPTS", 30),
		EndpointInterval: parseDuration("LABCTL_ENDPOINT_INTERVAL", 5*time.Second),
		HelmTimeout:      parseDuration("LABCTL_HELM_TIMEOUT", 5*time.Minute),
	}
}

// parseDuration parses a duration from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseDuration(envVar string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}

	return d
}

// parseInt parses an integer from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseInt(envVar string, defaultVal int) int {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}

	return i
}
