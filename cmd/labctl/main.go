// Package main is the entry point for the labctl CLI.
//
// labctl brings up the HashiCorp access lab on a Kubernetes cluster: Vault,
// Keycloak, Boundary, their PostgreSQL database, the TLS material binding
// them together, and the SSH sandbox workloads Boundary brokers access to.
// Runs are idempotent and resumable; a partially deployed lab picks up where
// it left off.
//
// Commands: deploy, resume, status, version, completion.
//
// For detailed usage information, run:
//
//	labctl --help
package main

import (
	"fmt"
	"os"

	"github.com/hashilab/labctl/cmd/labctl/commands"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)
	if err := commands.Root().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
