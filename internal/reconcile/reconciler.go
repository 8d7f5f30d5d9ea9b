// Package reconcile implements idempotent apply-if-different for declarative
// cluster resources, and the secret propagation built on top of it.
package reconcile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	apiequality "k8s.io/apimachinery/pkg/api/equality"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	k8syaml "k8s.io/apimachinery/pkg/util/yaml"
)

// ErrMalformed marks a resource definition that cannot be applied at all:
// missing kind or name, undecodable YAML. Malformed definitions are fatal to
// the run, not retryable.
var ErrMalformed = errors.New("malformed resource definition")

// Definition is a declarative description of one cluster object.
type Definition struct {
	Object *unstructured.Unstructured
}

// String identifies the definition in logs and errors.
func (d Definition) String() string {
	if d.Object == nil {
		return "<nil>"
	}
	if ns := d.Object.GetNamespace(); ns != "" {
		return fmt.Sprintf("%s %s/%s", d.Object.GetKind(), ns, d.Object.GetName())
	}
	return fmt.Sprintf("%s %s", d.Object.GetKind(), d.Object.GetName())
}

// ParseDefinitions decodes a (possibly multi-document) YAML manifest into
// definitions. Empty documents are skipped. Undecodable input or objects
// without kind/name are reported as ErrMalformed.
func ParseDefinitions(manifest []byte) ([]Definition, error) {
	decoder := k8syaml.NewYAMLOrJSONDecoder(bytes.NewReader(manifest), 4096)

	var defs []Definition
	for {
		var obj unstructured.Unstructured
		err := decoder.Decode(&obj)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if len(obj.Object) == 0 {
			continue
		}
		if obj.GetKind() == "" || obj.GetName() == "" {
			return nil, fmt.Errorf("%w: object missing kind or name", ErrMalformed)
		}
		defs = append(defs, Definition{Object: &obj})
	}

	return defs, nil
}

// Cluster is the narrow control-plane surface the reconciler needs. Get
// reports found=false for absent objects instead of an error so that callers
// can distinguish "not there yet" from connectivity failures.
type Cluster interface {
	Get(ctx context.Context, ref *unstructured.Unstructured) (live *unstructured.Unstructured, found bool, err error)
	Create(ctx context.Context, obj *unstructured.Unstructured) error
	Update(ctx context.Context, obj *unstructured.Unstructured) error
	RolloutStatus(ctx context.Context, kind, namespace, name string) (ready bool, detail string, err error)
}

// Reconciler applies definitions to the cluster, skipping writes when the live
// object already matches.
type Reconciler struct {
	cluster Cluster
}

// NewReconciler creates a Reconciler backed by cluster.
func NewReconciler(cluster Cluster) *Reconciler {
	return &Reconciler{cluster: cluster}
}

// Apply ensures the definition exists in the cluster with the desired content.
// It returns applied=false when the live object already matches (a successful
// no-op). Transient connectivity errors surface unchanged; retry policy belongs
// to the caller.
func (r *Reconciler) Apply(ctx context.Context, def Definition) (bool, error) {
	if def.Object == nil || def.Object.GetKind() == "" || def.Object.GetName() == "" {
		return false, fmt.Errorf("%w: object missing kind or name", ErrMalformed)
	}

	live, found, err := r.cluster.Get(ctx, def.Object)
	if err != nil {
		return false, fmt.Errorf("failed to get %s: %w", def, err)
	}

	if !found {
		if err := r.cluster.Create(ctx, def.Object.DeepCopy()); err != nil {
			return false, fmt.Errorf("failed to create %s: %w", def, err)
		}
		return true, nil
	}

	if matches(def.Object, live) {
		return false, nil
	}

	desired := def.Object.DeepCopy()
	desired.SetResourceVersion(live.GetResourceVersion())
	if err := r.cluster.Update(ctx, desired); err != nil {
		return false, fmt.Errorf("failed to update %s: %w", def, err)
	}
	return true, nil
}

// ApplyAll applies definitions in order and reports whether any write happened.
func (r *Reconciler) ApplyAll(ctx context.Context, defs []Definition) (bool, error) {
	changed := false
	for _, def := range defs {
		applied, err := r.Apply(ctx, def)
		if err != nil {
			return changed, err
		}
		changed = changed || applied
	}
	return changed, nil
}

// matches reports whether the live object already carries everything the
// desired object declares. Comparison is a semantic subset check: only fields
// the definition sets are considered, so server-populated defaults and status
// never cause spurious updates.
func matches(desired, live *unstructured.Unstructured) bool {
	for key, want := range desired.Object {
		switch key {
		case "apiVersion", "kind", "status":
			continue
		case "metadata":
			if !metadataMatches(desired, live) {
				return false
			}
		default:
			if !apiequality.Semantic.DeepEqual(want, live.Object[key]) {
				return false
			}
		}
	}
	return true
}

// metadataMatches compares only the declared labels and annotations; all other
// metadata is owned by the server.
func metadataMatches(desired, live *unstructured.Unstructured) bool {
	for k, v := range desired.GetLabels() {
		if live.GetLabels()[k] != v {
			return false
		}
	}
	for k, v := range desired.GetAnnotations() {
		if live.GetAnnotations()[k] != v {
			return false
		}
	}
	return true
}
