package components

import (
	"fmt"
	"time"

	corev1 "k8s.io/api/core/v1"

	"github.com/hashilab/labctl/internal/deploy"
	"github.com/hashilab/labctl/internal/reconcile"
	"github.com/hashilab/labctl/internal/tlsgen"
)

const (
	caValidity   = 10 * 365 * 24 * time.Hour
	leafValidity = 2 * 365 * 24 * time.Hour
)

// tlsEndpoint maps one issued certificate to the secret that carries it.
type tlsEndpoint struct {
	Host       string // subdomain under the lab domain
	SecretName string
	Namespace  string
}

// TLS issues the lab CA and per-endpoint certificates, and propagates them as
// kubernetes.io/tls secrets into the component namespaces.
type TLS struct{}

// NewTLS creates the TLS component.
func NewTLS() *TLS {
	return &TLS{}
}

func (t *TLS) Name() string        { return "tls" }
func (t *TLS) DependsOn() []string { return nil }

// labEndpoints lists every certificate the lab needs. The Boundary worker
// terminates its own listener, so it gets a certificate separate from the
// controller's.
func labEndpoints() []tlsEndpoint {
	return []tlsEndpoint{
		{Host: "vault", SecretName: "vault-tls", Namespace: "vault"},
		{Host: "keycloak", SecretName: "keycloak-tls", Namespace: "keycloak"},
		{Host: "boundary", SecretName: "boundary-tls", Namespace: "boundary"},
		{Host: "boundary-worker", SecretName: "boundary-worker-tls", Namespace: "boundary"},
	}
}

func (t *TLS) Deploy(ctx *deploy.Context) error {
	// Namespaces first: every TLS secret lands in one of them.
	if err := applyManifest(ctx, t.Name(), "namespaces.yaml", map[string]interface{}{
		"Namespaces": []string{"vault", "keycloak", "boundary", ctx.Config.Postgres.Namespace, ctx.Config.Sandbox.Namespace},
	}); err != nil {
		return err
	}

	caRaw, created, err := ctx.Creds.EnsureCredential("tls/ca", func() ([]byte, error) {
		ca, err := tlsgen.GenerateCA(ctx.Config.LabDomain+" lab CA", caValidity)
		if err != nil {
			return nil, err
		}
		return ca.Encode()
	})
	if err != nil {
		return err
	}
	if created {
		ctx.Observer.Printf("issued new lab CA for %s", ctx.Config.LabDomain)
	}
	ca, err := tlsgen.DecodeBundle(caRaw)
	if err != nil {
		return fmt.Errorf("stored CA bundle is unreadable: %w", err)
	}

	for _, endpoint := range labEndpoints() {
		fqdn := endpoint.Host + "." + ctx.Config.LabDomain
		_, _, err := ctx.Creds.EnsureCredential("tls/"+endpoint.Host, func() ([]byte, error) {
			leaf, err := tlsgen.IssueCert(ca, fqdn, []string{endpoint.Host}, leafValidity)
			if err != nil {
				return nil, err
			}
			return leaf.Encode()
		})
		if err != nil {
			return fmt.Errorf("failed to ensure certificate for %s: %w", fqdn, err)
		}

		_, err = ctx.Propagator.Propagate(ctx,
			[]reconcile.Source{
				{Credential: "tls/" + endpoint.Host, Key: "tls.crt", Transform: extractCert},
				{Credential: "tls/" + endpoint.Host, Key: "tls.key", Transform: extractKey},
				{Credential: "tls/ca", Key: "ca.crt", Transform: extractCert},
			},
			reconcile.Bundle{
				Name:      endpoint.SecretName,
				Namespace: endpoint.Namespace,
				Type:      corev1.SecretTypeTLS,
				Labels:    map[string]string{"app.kubernetes.io/managed-by": "labctl"},
			},
		)
		if err != nil {
			return fmt.Errorf("failed to propagate %s/%s: %w", endpoint.Namespace, endpoint.SecretName, err)
		}
	}
	return nil
}

// Satisfied holds when every TLS secret exists in its namespace.
func (t *TLS) Satisfied(ctx *deploy.Context) (bool, string, error) {
	for _, endpoint := range labEndpoints() {
		exists, err := ctx.Probe.SecretExists(ctx, endpoint.Namespace, endpoint.SecretName)
		if err != nil {
			return false, "", err
		}
		if !exists {
			return false, fmt.Sprintf("secret %s/%s missing", endpoint.Namespace, endpoint.SecretName), nil
		}
	}
	return true, "all TLS secrets present", nil
}

func extractCert(raw []byte) ([]byte, error) {
	bundle, err := tlsgen.DecodeBundle(raw)
	if err != nil {
		return nil, err
	}
	return bundle.CertPEM, nil
}

func extractKey(raw []byte) ([]byte, error) {
	bundle, err := tlsgen.DecodeBundle(raw)
	if err != nil {
		return nil, err
	}
	return bundle.KeyPEM, nil
}
