package deploy

import (
	"context"
	"time"

	"github.com/hashilab/labctl/internal/config"
	"github.com/hashilab/labctl/internal/credstore"
	"github.com/hashilab/labctl/internal/platform/boundary"
	"github.com/hashilab/labctl/internal/platform/keycloak"
	"github.com/hashilab/labctl/internal/platform/vault"
	"github.com/hashilab/labctl/internal/poll"
	"github.com/hashilab/labctl/internal/reconcile"
)

// Context wraps all dependencies a component needs to deploy.
type Context struct {
	context.Context

	Config   *config.Config
	Timeouts *config.Timeouts
	Observer Observer

	// Creds generates and persists credentials across runs.
	Creds *credstore.Bootstrap

	// Cluster applies and queries arbitrary objects; Reconciler and
	// Propagator build on it; Probe answers readiness questions.
	Cluster    reconcile.Cluster
	Reconciler *reconcile.Reconciler
	Propagator *reconcile.Propagator
	Probe      ClusterProbe

	Helm     HelmRunner
	Vault    vault.API
	Keycloak keycloak.AdminAPI
	Boundary boundary.AdminAPI
}

// NewContext creates a deployment context with an observer and timeouts
// loaded from the environment. Collaborators are assigned by the caller.
func NewContext(ctx context.Context, cfg *config.Config, observer Observer) *Context {
	if observer == nil {
		observer = NopObserver{}
	}
	return &Context{
		Context:  ctx,
		Config:   cfg,
		Timeouts: config.LoadTimeouts(),
		Observer: observer,
	}
}

// WaitForRollout polls until the named workload reports a complete rollout,
// within the configured rollout budget.
func (c *Context) WaitForRollout(kind, namespace, name string) (bool, string) {
	return poll.WaitUntilReady(c, poll.Check{
		Name:        namespace + "/" + name,
		MaxAttempts: c.Timeouts.RolloutAttempts,
		Interval:    c.Timeouts.RolloutInterval,
		Probe: func(ctx context.Context) (bool, string, error) {
			return c.Probe.RolloutStatus(ctx, kind, namespace, name)
		},
	})
}

// WaitForEndpoint polls an arbitrary probe within the endpoint budget. Used
// for platform APIs that come up after their pods are running.
func (c *Context) WaitForEndpoint(name string, probe poll.Probe) (bool, string) {
	return poll.WaitUntilReady(c, poll.Check{
		Name:        name,
		MaxAttempts: c.Timeouts.EndpointAttempts,
		Interval:    c.Timeouts.EndpointInterval,
		Probe:       probe,
	})
}

// clock is stubbed in driver tests.
var now = time.Now
