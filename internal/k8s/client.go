// Package k8s implements the cluster control-plane interface on client-go.
package k8s

import (
	"context"
	"fmt"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/clientcmd"
)

// Client wraps the typed and dynamic Kubernetes clients behind the narrow
// surface the deployment core needs: get/create/update of arbitrary objects
// and rollout status queries.
type Client struct {
	clientset kubernetes.Interface
	dynamic   dynamic.Interface
}

// NewClient creates a Client from a kubeconfig file path.
func NewClient(kubeconfigPath string) (*Client, error) {
	config, err := clientcmd.BuildConfigFromFlags("", kubeconfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to build kubeconfig: %w", err)
	}

	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create clientset: %w", err)
	}

	dynamicClient, err := dynamic.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create dynamic client: %w", err)
	}

	return &Client{clientset: clientset, dynamic: dynamicClient}, nil
}

// NewClientFromBytes creates a Client from raw kubeconfig bytes.
func NewClientFromBytes(kubeconfigData []byte) (*Client, error) {
	config, err := clientcmd.RESTConfigFromKubeConfig(kubeconfigData)
	if err != nil {
		return nil, fmt.Errorf("failed to build kubeconfig from bytes: %w", err)
	}

	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create clientset: %w", err)
	}

	dynamicClient, err := dynamic.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create dynamic client: %w", err)
	}

	return &Client{clientset: clientset, dynamic: dynamicClient}, nil
}

// Get implements reconcile.Cluster. Absent objects report found=false.
func (c *Client) Get(ctx context.Context, ref *unstructured.Unstructured) (*unstructured.Unstructured, bool, error) {
	live, err := c.resource(ref).Get(ctx, ref.GetName(), metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return live, true, nil
}

// Create implements reconcile.Cluster.
func (c *Client) Create(ctx context.Context, obj *unstructured.Unstructured) error {
	_, err := c.resource(obj).Create(ctx, obj, metav1.CreateOptions{})
	return err
}

// Update implements reconcile.Cluster.
func (c *Client) Update(ctx context.Context, obj *unstructured.Unstructured) error {
	_, err := c.resource(obj).Update(ctx, obj, metav1.UpdateOptions{})
	return err
}

// resource resolves the dynamic resource interface for an object, scoping to
// its namespace when it has one.
func (c *Client) resource(obj *unstructured.Unstructured) dynamic.ResourceInterface {
	gvk := obj.GroupVersionKind()
	gvr := schema.GroupVersionResource{
		Group:    gvk.Group,
		Version:  gvk.Version,
		Resource: resourceForKind(gvk.Kind),
	}

	if ns := obj.GetNamespace(); ns != "" {
		return c.dynamic.Resource(gvr).Namespace(ns)
	}
	return c.dynamic.Resource(gvr)
}

// resourceForKind maps a Kubernetes kind to its resource name. Covers the
// kinds the lab manifests use; anything else falls back to the plural form.
func resourceForKind(kind string) string {
	switch kind {
	case "Deployment":
		return "deployments"
	case "StatefulSet":
		return "statefulsets"
	case "DaemonSet":
		return "daemonsets"
	case "Service":
		return "services"
	case "ConfigMap":
		return "configmaps"
	case "Secret":
		return "secrets"
	case "ServiceAccount":
		return "serviceaccounts"
	case "Namespace":
		return "namespaces"
	case "Job":
		return "jobs"
	case "Ingress":
		return "ingresses"
	case "NetworkPolicy":
		return "networkpolicies"
	case "PersistentVolumeClaim":
		return "persistentvolumeclaims"
	case "Role":
		return "roles"
	case "RoleBinding":
		return "rolebindings"
	case "ClusterRole":
		return "clusterroles"
	case "ClusterRoleBinding":
		return "clusterrolebindings"
	default:
		return pluralize(kind)
	}
}

func pluralize(kind string) string {
	lower := ""
	for _, r := range kind {
		if r >= 'A' && r <= 'Z' {
			r += 'a' - 'A'
		}
		lower += string(r)
	}
	return lower + "s"
}
