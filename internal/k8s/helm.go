package k8s

import (
	"fmt"
	"os"
	"time"

	"k8s.io/apimachinery/pkg/api/meta"
	"k8s.io/client-go/discovery"
	"k8s.io/client-go/discovery/cached/memory"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/restmapper"
	"k8s.io/client-go/tools/clientcmd"
	clientcmdapi "k8s.io/client-go/tools/clientcmd/api"

	"helm.sh/helm/v3/pkg/action"
	"helm.sh/helm/v3/pkg/chart/loader"
	"helm.sh/helm/v3/pkg/cli"
)

// HelmClient installs chart-packaged components (the lab's PostgreSQL).
type HelmClient struct {
	settings   *cli.EnvSettings
	restConfig *rest.Config
	timeout    time.Duration
	logf       func(format string, v ...interface{})
}

// NewHelmClient creates a HelmClient for the cluster reachable via
// kubeconfigPath. timeout bounds each install or upgrade, including its
// readiness wait.
func NewHelmClient(kubeconfigPath string, timeout time.Duration, logf func(format string, v ...interface{})) (*HelmClient, error) {
	restConfig, err := clientcmd.BuildConfigFromFlags("", kubeconfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to build kubeconfig: %w", err)
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	if logf == nil {
		logf = func(string, ...interface{}) {}
	}
	return &HelmClient{
		settings:   cli.New(),
		restConfig: restConfig,
		timeout:    timeout,
		logf:       logf,
	}, nil
}

// EnsureRelease installs the chart if the release does not exist, or upgrades
// it in place otherwise. It returns changed=true only for a fresh install; an
// upgrade with identical chart and values converges to the same release.
func (h *HelmClient) EnsureRelease(namespace, releaseName, repoURL, chartName, version string, values map[string]interface{}) (bool, error) {
	actionConfig := new(action.Configuration)
	clientGetter := &restClientGetter{config: h.restConfig, namespace: namespace}

	if err := actionConfig.Init(clientGetter, namespace, os.Getenv("HELM_DRIVER"), h.logf); err != nil {
		return false, fmt.Errorf("failed to init helm action config: %w", err)
	}

	cp := &action.ChartPathOptions{}
	cp.RepoURL = repoURL
	cp.Version = version

	chartPath, err := cp.LocateChart(chartName, h.settings)
	if err != nil {
		return false, fmt.Errorf("failed to locate chart %s: %w", chartName, err)
	}

	chart, err := loader.Load(chartPath)
	if err != nil {
		return false, fmt.Errorf("failed to load chart %s: %w", chartName, err)
	}

	histClient := action.NewHistory(actionConfig)
	histClient.Max = 1
	if _, err := histClient.Run(releaseName); err == nil {
		upgrade := action.NewUpgrade(actionConfig)
		upgrade.Namespace = namespace
		upgrade.Wait = true
		upgrade.Timeout = h.timeout
		if _, err := upgrade.Run(releaseName, chart, values); err != nil {
			return false, fmt.Errorf("helm upgrade %s failed: %w", releaseName, err)
		}
		return false, nil
	}

	install := action.NewInstall(actionConfig)
	install.Namespace = namespace
	install.ReleaseName = releaseName
	install.CreateNamespace = true
	install.Wait = true
	install.Timeout = h.timeout
	if _, err := install.Run(chart, values); err != nil {
		return false, fmt.Errorf("helm install %s failed: %w", releaseName, err)
	}
	return true, nil
}

// restClientGetter implements the minimal RESTClientGetter Helm needs.
type restClientGetter struct {
	config    *rest.Config
	namespace string
}

func (g *restClientGetter) ToRESTConfig() (*rest.Config, error) {
	return g.config, nil
}

func (g *restClientGetter) ToDiscoveryClient() (discovery.CachedDiscoveryInterface, error) {
	discoveryClient, err := discovery.NewDiscoveryClientForConfig(g.config)
	if err != nil {
		return nil, err
	}
	return memory.NewMemCacheClient(discoveryClient), nil
}

func (g *restClientGetter) ToRESTMapper() (meta.RESTMapper, error) {
	discoveryClient, err := g.ToDiscoveryClient()
	if err != nil {
		return nil, err
	}
	return restmapper.NewDeferredDiscoveryRESTMapper(discoveryClient), nil
}

func (g *restClientGetter) ToRawKubeConfigLoader() clientcmd.ClientConfig {
	return clientcmd.NewDefaultClientConfig(*clientcmdapi.NewConfig(), &clientcmd.ConfigOverrides{})
}
