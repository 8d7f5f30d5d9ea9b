package deploy

import "context"

// Component is one deployable unit of the lab. Components declare their
// dependencies by name; the plan orders and parallelizes them.
type Component interface {
	// Name is the stable identifier used in dependency declarations,
	// skip lists, and reports.
	Name() string

	// DependsOn lists the components that must be deployed (or already
	// satisfied) before this one runs.
	DependsOn() []string

	// Deploy brings the component to its desired state. It must be safe
	// to call against a partially or fully deployed component.
	Deploy(ctx *Context) error

	// Satisfied probes whether the component's done signature already
	// holds, so a resumed run can skip it without redeploying. The detail
	// string describes what was observed.
	Satisfied(ctx *Context) (bool, string, error)
}

// HelmRunner installs or upgrades a chart release. Implemented by
// k8s.HelmClient.
type HelmRunner interface {
	EnsureRelease(namespace, releaseName, repoURL, chartName, version string, values map[string]interface{}) (bool, error)
}

// ClusterProbe answers the readiness and done-signature questions components
// ask about the cluster. Implemented by k8s.Client.
type ClusterProbe interface {
	RolloutStatus(ctx context.Context, kind, namespace, name string) (bool, string, error)
	PodsRunning(ctx context.Context, namespace, labelSelector string) (bool, string, error)
	SecretExists(ctx context.Context, namespace, name string) (bool, error)
	GetSecretData(ctx context.Context, namespace, name, key string) ([]byte, error)
}
