package reconcile

import (
	"context"
	"errors"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"

	"github.com/hashilab/labctl/internal/credstore"
)

// MissingSourceError reports a source credential that does not exist yet. This
// is a retryable precondition: the phase that owns the credential has not run,
// and a later run resolves it without special-casing first vs Nth execution.
type MissingSourceError struct {
	Credential string
}

func (e *MissingSourceError) Error() string {
	return fmt.Sprintf("source credential %s not available yet", e.Credential)
}

// IsMissingSource reports whether err is a missing-source precondition failure.
func IsMissingSource(err error) bool {
	var missing *MissingSourceError
	return errors.As(err, &missing)
}

// Source maps one stored credential into a key of the target bundle.
type Source struct {
	// Credential is the logical name in the credential store.
	Credential string
	// Key is the data key in the resulting secret.
	Key string
	// Transform optionally rewrites the stored value before propagation
	// (e.g. extracting one field of a JSON credential). Nil means verbatim.
	Transform func(value []byte) ([]byte, error)
}

// Bundle describes the target secret a set of credentials is copied into.
type Bundle struct {
	Name      string
	Namespace string
	Type      corev1.SecretType
	Labels    map[string]string
}

// Propagator copies credentials from the durable store into consumer-visible
// secret bundles. The write is delegated to the Reconciler and inherits its
// idempotence: an unchanged bundle is left untouched.
type Propagator struct {
	store      credstore.Store
	reconciler *Reconciler
}

// NewPropagator creates a Propagator reading from store and writing through rec.
func NewPropagator(store credstore.Store, rec *Reconciler) *Propagator {
	return &Propagator{store: store, reconciler: rec}
}

// Propagate renders the bundle from current credential values and applies it.
// It returns changed=false when the stored bundle already matches. A missing
// source credential yields a MissingSourceError.
func (p *Propagator) Propagate(ctx context.Context, sources []Source, bundle Bundle) (bool, error) {
	data := make(map[string][]byte, len(sources))
	for _, src := range sources {
		value, found, err := p.store.Get(src.Credential)
		if err != nil {
			return false, err
		}
		if !found {
			return false, &MissingSourceError{Credential: src.Credential}
		}
		if src.Transform != nil {
			value, err = src.Transform(value)
			if err != nil {
				return false, fmt.Errorf("failed to transform credential %s: %w", src.Credential, err)
			}
		}
		data[src.Key] = value
	}

	def, err := secretDefinition(bundle, data)
	if err != nil {
		return false, err
	}

	changed, err := p.reconciler.Apply(ctx, def)
	if err != nil {
		return false, fmt.Errorf("failed to propagate bundle %s/%s: %w", bundle.Namespace, bundle.Name, err)
	}
	return changed, nil
}

// secretDefinition renders the bundle as a Secret definition.
func secretDefinition(bundle Bundle, data map[string][]byte) (Definition, error) {
	secretType := bundle.Type
	if secretType == "" {
		secretType = corev1.SecretTypeOpaque
	}

	secret := &corev1.Secret{
		TypeMeta: metav1.TypeMeta{APIVersion: "v1", Kind: "Secret"},
		ObjectMeta: metav1.ObjectMeta{
			Name:      bundle.Name,
			Namespace: bundle.Namespace,
			Labels:    bundle.Labels,
		},
		Type: secretType,
		Data: data,
	}

	obj, err := runtime.DefaultUnstructuredConverter.ToUnstructured(secret)
	if err != nil {
		return Definition{}, fmt.Errorf("failed to convert bundle %s/%s: %w", bundle.Namespace, bundle.Name, err)
	}

	u := &unstructured.Unstructured{Object: obj}
	// The converter emits an empty creationTimestamp that the live object
	// never matches; strip it so the subset comparison stays semantic.
	unstructured.RemoveNestedField(u.Object, "metadata", "creationTimestamp")
	return Definition{Object: u}, nil
}
