// Package components implements the deployable units of the lab: TLS
// material, PostgreSQL, Vault, Keycloak, Boundary, and the SSH sandbox
// workloads. Manifests are embedded at build time and rendered as Go
// templates with the lab configuration injected at runtime.
package components

import (
	"bytes"
	"embed"
	"fmt"
	"text/template"

	"github.com/hashilab/labctl/internal/deploy"
	"github.com/hashilab/labctl/internal/reconcile"
)

//go:embed manifests/*
var manifestsFS embed.FS

// renderManifest loads an embedded manifest template and renders it with the
// given data.
func renderManifest(name string, data interface{}) ([]byte, error) {
	raw, err := manifestsFS.ReadFile("manifests/" + name)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest %s: %w", name, err)
	}

	tmpl, err := template.New(name).Option("missingkey=error").Parse(string(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to render manifest %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

// applyManifest renders one embedded manifest and reconciles every document
// in it against the cluster.
func applyManifest(ctx *deploy.Context, component, name string, data interface{}) error {
	rendered, err := renderManifest(name, data)
	if err != nil {
		return err
	}

	definitions, err := reconcile.ParseDefinitions(rendered)
	if err != nil {
		return err
	}

	for _, def := range definitions {
		applied, err := ctx.Reconciler.Apply(ctx, def)
		if err != nil {
			return fmt.Errorf("failed to apply %s: %w", def, err)
		}
		eventType := deploy.EventResourceExists
		message := "up to date"
		if applied {
			eventType = deploy.EventResourceApplied
			message = "applied"
		}
		ctx.Observer.Event(deploy.Event{
			Type:      eventType,
			Component: component,
			Resource:  def.String(),
			Message:   message,
		})
	}
	return nil
}

// All returns the lab components in declaration order.
func All() []deploy.Component {
	return []deploy.Component{
		NewTLS(),
		NewPostgres(),
		NewVault(),
		NewKeycloak(),
		NewBoundary(),
		NewSandbox(),
	}
}
