// Package handlers implements the business logic for CLI commands.
//
// Handlers are framework-agnostic and can be tested independently of the CLI
// framework; the commands package binds them to cobra.
package handlers

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/hashilab/labctl/internal/components"
	"github.com/hashilab/labctl/internal/config"
	"github.com/hashilab/labctl/internal/credstore"
	"github.com/hashilab/labctl/internal/deploy"
	"github.com/hashilab/labctl/internal/k8s"
	"github.com/hashilab/labctl/internal/platform/boundary"
	"github.com/hashilab/labctl/internal/platform/keycloak"
	"github.com/hashilab/labctl/internal/platform/vault"
	"github.com/hashilab/labctl/internal/reconcile"
)

// defaultConfigFile is picked up from the working directory when --config is
// not given. Its absence is not an error; the defaults describe a complete lab.
const defaultConfigFile = "labctl.yaml"

// DeployOptions carries the deploy/resume flag values.
type DeployOptions struct {
	ConfigPath  string
	Kubeconfig  string
	Skip        []string
	MaxParallel int

	// Out receives the run report. Defaults to stdout.
	Out io.Writer
}

// clusterClient is what the deployment needs from the Kubernetes client.
type clusterClient interface {
	reconcile.Cluster
	deploy.ClusterProbe
}

// Factory function variables - can be replaced in tests for dependency injection.
var (
	loadConfigFile = config.LoadFile

	newClusterClient = func(kubeconfigPath string) (clusterClient, error) {
		return k8s.NewClient(kubeconfigPath)
	}

	newHelmClient = func(kubeconfigPath string, timeout time.Duration) (deploy.HelmRunner, error) {
		return k8s.NewHelmClient(kubeconfigPath, timeout, nil)
	}

	newStore = func(path string) (credstore.Store, error) {
		return credstore.NewBoltStore(path)
	}

	newVaultClient = func(addr string, insecure bool) (vault.API, error) {
		return vault.NewClient(addr, insecure)
	}

	newKeycloakClient = func(addr string, insecure bool) keycloak.AdminAPI {
		return keycloak.NewClient(addr, insecure)
	}

	newBoundaryClient = func(addr string, insecure bool) boundary.AdminAPI {
		return boundary.NewClient(addr, insecure)
	}

	labComponents = components.All
)

// Deploy brings the lab to its desired state and prints the run report.
// It returns an error when the run finished with failures, so the CLI exits
// non-zero.
func Deploy(ctx context.Context, opts DeployOptions) error {
	cfg, err := loadLabConfig(opts.ConfigPath)
	if err != nil {
		return err
	}
	if opts.Kubeconfig != "" {
		cfg.KubeconfigPath = opts.Kubeconfig
	}
	if opts.MaxParallel > 0 {
		cfg.MaxParallel = opts.MaxParallel
	}
	cfg.Skip = append(cfg.Skip, opts.Skip...)
	if err := cfg.Validate(); err != nil {
		return err
	}

	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	dctx, store, err := buildContext(ctx, cfg, deploy.NewObserver(out))
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	report, err := deploy.NewDriver().Run(dctx, labComponents())
	if err != nil {
		return err
	}

	fmt.Fprintln(out, report.Render())
	if report.Failed() {
		return fmt.Errorf("deployment finished with errors")
	}
	return nil
}

// loadLabConfig loads the named config file, falls back to labctl.yaml in the
// working directory, and falls back to pure defaults when neither exists.
func loadLabConfig(path string) (*config.Config, error) {
	if path == "" {
		if _, err := os.Stat(defaultConfigFile); err != nil {
			return config.Default(), nil
		}
		path = defaultConfigFile
	}
	return loadConfigFile(path)
}

// buildContext wires the deployment context from the configuration. The
// returned store must be closed by the caller.
func buildContext(ctx context.Context, cfg *config.Config, observer deploy.Observer) (*deploy.Context, credstore.Store, error) {
	dctx := deploy.NewContext(ctx, cfg, observer)

	store, err := newStore(cfg.StorePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open credential store: %w", err)
	}

	cluster, err := newClusterClient(cfg.KubeconfigPath)
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	helm, err := newHelmClient(cfg.KubeconfigPath, dctx.Timeouts.HelmTimeout)
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	vaultAPI, err := newVaultClient(cfg.Vault.Address, cfg.InsecureTLS)
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}

	reconciler := reconcile.NewReconciler(cluster)

	dctx.Creds = credstore.NewBootstrap(store)
	dctx.Cluster = cluster
	dctx.Reconciler = reconciler
	dctx.Propagator = reconcile.NewPropagator(store, reconciler)
	dctx.Probe = cluster
	dctx.Helm = helm
	dctx.Vault = vaultAPI
	dctx.Keycloak = newKeycloakClient(cfg.Keycloak.Address, cfg.InsecureTLS)
	dctx.Boundary = newBoundaryClient(cfg.Boundary.Address, cfg.InsecureTLS)

	return dctx, store, nil
}
